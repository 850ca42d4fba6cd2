package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lgen/internal/buildpipeline"
	"lgen/internal/cache"
	"lgen/internal/observ"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] file...",
	Short: "Generate LLVM IR for mono IR files",
	Long: `Build loads each IR file (.yaml or .msgpack), generates code for it and
writes <name>.ll into the output directory. Files are built in parallel.`,
	Args: cobra.MinimumNArgs(1),
	RunE: buildExecution,
}

func init() {
	registerCodegenFlags(buildCmd)
	buildCmd.Flags().StringP("out", "o", "", "output directory (default from lgen.toml)")
	buildCmd.Flags().IntP("jobs", "j", 0, "parallel units (0 = lgen.toml or GOMAXPROCS)")
	buildCmd.Flags().String("backend", "", "build backend (vm, llvm)")
	buildCmd.Flags().Bool("emit-mir", false, "write <name>.mir next to the LLVM output")
	buildCmd.Flags().Bool("obj", false, "compile the LLVM IR to an object file with clang or llc")
	buildCmd.Flags().Bool("print-commands", false, "print external build commands")
	buildCmd.Flags().Bool("cache", false, "reuse generated LLVM IR from the build cache")
	buildCmd.Flags().Bool("no-cache", false, "disable the build cache even if lgen.toml enables it")
	buildCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyCodegenFlags(cmd, cfg); err != nil {
		return err
	}
	opts, err := cfg.CodegenOptions()
	if err != nil {
		return err
	}

	outDir, err := flags.GetString("out")
	if err != nil {
		return err
	}
	if outDir == "" {
		outDir = cfg.Build.OutDir
		if cfg.Path != "" && !filepath.IsAbs(outDir) {
			outDir = filepath.Join(filepath.Dir(cfg.Path), outDir)
		}
	}
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return err
	}
	if jobs <= 0 {
		jobs = cfg.Build.Jobs
	}
	backendValue, err := flags.GetString("backend")
	if err != nil {
		return err
	}
	if backendValue == "" {
		backendValue = cfg.Build.Backend
	}
	backend := buildpipeline.Backend(backendValue)
	if backend != buildpipeline.BackendVM && backend != buildpipeline.BackendLLVM {
		return &usageError{msg: fmt.Sprintf("unsupported backend: %s (supported: vm, llvm)", backendValue)}
	}
	emitMIR, err := flags.GetBool("emit-mir")
	if err != nil {
		return err
	}
	object, err := flags.GetBool("obj")
	if err != nil {
		return err
	}
	if object && backend != buildpipeline.BackendLLVM {
		return &usageError{msg: "--obj requires --backend=llvm"}
	}
	printCommands, err := flags.GetBool("print-commands")
	if err != nil {
		return err
	}
	useCache, err := flags.GetBool("cache")
	if err != nil {
		return err
	}
	noCache, err := flags.GetBool("no-cache")
	if err != nil {
		return err
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}

	req := &buildpipeline.BuildRequest{
		Inputs:        args,
		Options:       opts,
		Backend:       backend,
		OutDir:        outDir,
		EmitMIR:       emitMIR,
		Object:        object,
		PrintCommands: printCommands,
		Jobs:          jobs,
	}
	if (useCache || cfg.Build.Cache) && !noCache {
		req.Cache, err = cache.Open("")
		if err != nil {
			return err
		}
	}

	var results []buildpipeline.UnitResult
	if !quiet && shouldUseTUI(mode) {
		results, err = runBuildWithUI(cmd.Context(), "lgen build", args, req)
	} else {
		results, err = buildpipeline.BuildAll(cmd.Context(), req)
	}

	out := cmd.OutOrStdout()
	cwd, _ := os.Getwd()
	var report observ.Report
	for _, res := range results {
		if res.Input == "" {
			continue
		}
		report.Merge(filepath.Base(res.Input), res.Report)
		if quiet {
			continue
		}
		switch {
		case res.OutputPath != "":
			status := "built"
			if res.Cached {
				status = "cached"
			}
			fmt.Fprintf(out, "%s %s\n", color.GreenString("%-7s", status), formatPathForOutput(cwd, res.OutputPath))
			if res.ObjectPath != "" {
				fmt.Fprintf(out, "%s %s\n", color.GreenString("%-7s", "object"), formatPathForOutput(cwd, res.ObjectPath))
			}
		case res.MIR != nil:
			fmt.Fprintf(out, "%s %s (%d functions)\n", color.GreenString("%-7s", "checked"), res.Input, len(res.MIR.Funcs))
		}
	}
	if showTimings && len(report.Phases) > 0 {
		if printErr := report.Fprint(cmd.ErrOrStderr()); printErr != nil {
			return errors.Join(err, printErr)
		}
	}
	return err
}

func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	if strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
