package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lgen/internal/backend/llvm"
	"lgen/internal/buildpipeline"
	"lgen/internal/irfile"
	"lgen/internal/mir"
	"lgen/internal/mono"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] file",
	Short: "Print an IR file as mono IR, MIR or LLVM IR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, err := cmd.Flags().GetString("stage")
		if err != nil {
			return err
		}
		skipHelpers, err := cmd.Flags().GetBool("skip-helpers")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if stage == "mono" {
			prog, err := irfile.Load(args[0])
			if err != nil {
				return err
			}
			return mono.Dump(out, prog)
		}
		if stage != "mir" && stage != "llvm" {
			return &usageError{msg: fmt.Sprintf("invalid --stage %q (expected mono|mir|llvm)", stage)}
		}

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
		compiled, err := buildpipeline.Compile(cmd.Context(), &buildpipeline.CompileRequest{Input: args[0], Options: opts})
		if err != nil {
			return err
		}
		if stage == "mir" {
			return mir.DumpModule(out, compiled.MIR, mir.DumpOptions{SkipHelpers: skipHelpers})
		}
		text, err := llvm.EmitModule(compiled.MIR)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, text)
		return err
	},
}

func init() {
	registerCodegenFlags(dumpCmd)
	dumpCmd.Flags().String("stage", "mir", "what to print (mono|mir|llvm)")
	dumpCmd.Flags().Bool("skip-helpers", false, "omit generated helper functions from MIR dumps")
}
