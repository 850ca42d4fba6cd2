package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lgen/internal/irfile"
	"lgen/internal/mono"
)

var convertCmd = &cobra.Command{
	Use:   "convert in out",
	Short: "Convert an IR file between YAML and MessagePack",
	Long: `Convert reads an IR file and writes it in the format implied by the
output extension (.yaml, .yml, .mp or .msgpack). The program is checked
before it is written.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, err := irfile.Load(args[0])
		if err != nil {
			return err
		}
		if err := mono.Check(prog); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if err := irfile.Save(args[1], prog); err != nil {
			return err
		}
		quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d procedures)\n", args[1], len(prog.Procs))
		}
		return nil
	},
}
