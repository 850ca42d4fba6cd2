// Command lgen lowers monomorphized IR files to LLVM IR and runs them.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lgen/internal/trace"
	"lgen/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "lgen",
	Short:         "Layout-directed code generator",
	Long:          `lgen lowers monomorphized IR to LLVM IR, or runs it on the reference VM.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := applyColor(cmd); err != nil {
			return err
		}
		cleanupTrace, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		cleanupProf, err := setupProfiling(cmd)
		if err != nil {
			cleanupTrace()
			return err
		}
		cleanups = append(cleanups, cleanupProf, cleanupTrace)
		return nil
	},
}

// cleanups run in order once the command returns.
var cleanups []func()

func main() {
	rootCmd.Version = version.Plain()

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.String("config", "", "path to lgen.toml (default: search upwards from the working directory)")
	registerTraceFlags(flags)
	registerProfileFlags(flags)

	err := rootCmd.Execute()
	if err != nil {
		_ = trace.DumpRing(activeTracer, os.Stderr)
	}
	for _, cleanup := range cleanups {
		cleanup()
	}
	if err != nil {
		var exit *programExit
		if !errors.As(err, &exit) {
			color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func applyColor(cmd *cobra.Command) error {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return err
	}
	switch value {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return &usageError{msg: "invalid --color value " + value + " (expected auto|on|off)"}
	}
	return nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
