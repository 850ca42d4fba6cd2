package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"lgen/internal/buildpipeline"
	"lgen/internal/codegen"
	"lgen/internal/layout"
	"lgen/internal/mono"
	"lgen/internal/trace"
	"lgen/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] file [-- args...]",
	Short: "Run a procedure of an IR file on the reference VM",
	Long: `Run generates code for the IR file and executes it on the reference VM.
With --main the wrapped C entry point runs and its status becomes the exit
code. Otherwise --call names the procedure and the remaining arguments are
parsed according to its parameter layouts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExecution,
}

func init() {
	registerCodegenFlags(runCmd)
	runCmd.Flags().String("call", "", "procedure to call (name or name_N for a specialization)")
	runCmd.Flags().Bool("stats", false, "print VM allocation statistics")
	runCmd.Flags().Uint64("memory-limit", 0, "VM heap limit in bytes (0 = default)")
}

func runExecution(cmd *cobra.Command, args []string) error {
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
	callName, err := flags.GetString("call")
	if err != nil {
		return err
	}
	if opts.Main == "" && callName == "" {
		return &usageError{msg: "run needs --main or --call"}
	}
	showStats, err := flags.GetBool("stats")
	if err != nil {
		return err
	}
	memoryLimit, err := flags.GetUint64("memory-limit")
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}

	input := args[0]
	compiled, err := buildpipeline.Compile(cmd.Context(), &buildpipeline.CompileRequest{Input: input, Options: opts})
	if err != nil {
		return err
	}

	vmOpts := vm.DefaultOptions()
	vmOpts.Tracer = trace.FromContext(cmd.Context())
	vmOpts.Parent = trace.CurrentSpan(cmd.Context()).SpanID
	if memoryLimit > 0 {
		vmOpts.MemoryLimit = memoryLimit
	}
	machine := vm.New(compiled.MIR, vmOpts)
	out := cmd.OutOrStdout()

	start := time.Now()
	var runErr error
	if callName == "" {
		var status vm.Value
		status, runErr = machine.Call("main")
		if runErr == nil && status.Signed(32) != 0 {
			runErr = &programExit{code: int(status.Signed(32))}
		}
	} else {
		runErr = callProc(out, machine, compiled.Program, callName, args[1:])
	}
	compiled.Timings.Set(buildpipeline.StageRun, time.Since(start))

	if showTimings {
		printStageTimings(cmd.ErrOrStderr(), input, compiled.Timings)
	}
	if showStats {
		printVMStats(cmd.ErrOrStderr(), machine.Stats())
	}

	if t, ok := vm.IsTrap(runErr); ok {
		return errors.New(t.Format())
	}
	if x, ok := vm.IsException(runErr); ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("uncaught exception:"), x.Message)
		return &programExit{code: 1}
	}
	return runErr
}

// callProc runs one specialization of name with textual arguments and prints
// its result.
func callProc(out io.Writer, machine *vm.VM, prog *mono.Program, name string, rawArgs []string) error {
	proc, fnName, err := findProc(prog, name)
	if err != nil {
		return err
	}
	if len(rawArgs) != len(proc.Args) {
		return &usageError{msg: fmt.Sprintf("%s takes %d arguments, got %d", fnName, len(proc.Args), len(rawArgs))}
	}
	values := make([]vm.Value, len(rawArgs))
	for i, raw := range rawArgs {
		v, err := parseArg(machine, proc.Args[i].Layout, raw)
		if err != nil {
			return &usageError{msg: fmt.Sprintf("argument %s: %v", proc.Args[i].Sym, err)}
		}
		values[i] = v
	}
	res, err := machine.Call(fnName, values...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, formatResult(machine, proc.Result, res))
	return err
}

// findProc accepts a procedure name, which picks its first specialization,
// or the generated name_N of a particular one.
func findProc(prog *mono.Program, name string) (*mono.Proc, string, error) {
	for _, p := range prog.Procs {
		fnName, _ := codegen.ProcName(prog, p.Ref())
		if string(p.Name) == name || fnName == name {
			return p, fnName, nil
		}
	}
	return nil, "", &usageError{msg: fmt.Sprintf("no procedure named %q", name)}
}

func parseArg(machine *vm.VM, l layout.Layout, raw string) (vm.Value, error) {
	switch {
	case l.IsBool():
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return vm.Value{}, err
		}
		return vm.Bool(b), nil
	case l.Kind == layout.KindInt:
		n, err := strconv.ParseInt(raw, 0, l.Width)
		if err != nil {
			// u8 and other unsigned-looking widths accept the full unsigned range.
			u, uerr := strconv.ParseUint(raw, 0, l.Width)
			if uerr != nil {
				return vm.Value{}, err
			}
			n = int64(u)
		}
		return vm.Int(n, l.Width), nil
	case l.Kind == layout.KindFloat:
		f, err := strconv.ParseFloat(raw, l.Width)
		if err != nil {
			return vm.Value{}, err
		}
		if l.Width == 32 {
			return vm.F32(float32(f)), nil
		}
		return vm.F64(f), nil
	case l.Kind == layout.KindStr:
		return machine.NewStr(raw), nil
	default:
		return vm.Value{}, fmt.Errorf("layout %s cannot be passed from the command line", l)
	}
}

func formatResult(machine *vm.VM, l layout.Layout, v vm.Value) string {
	if l.Kind == layout.KindStr {
		return strconv.Quote(machine.ReadStr(v))
	}
	return v.Format(codegen.BasicType(l, machine.PtrBytes()))
}

func printVMStats(out io.Writer, st vm.Stats) {
	p := message.NewPrinter(language.English)
	p.Fprintf(out, "allocations: %d\n", st.Allocs)
	p.Fprintf(out, "frees:       %d\n", st.Frees)
	p.Fprintf(out, "live blocks: %d (%d bytes)\n", st.Live, st.LiveBytes)
	p.Fprintf(out, "peak heap:   %d bytes\n", st.PeakBytes)
}
