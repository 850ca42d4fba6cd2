package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lgen/internal/codegen"
	"lgen/internal/layout"
)

var layoutCmd = &cobra.Command{
	Use:   "layout [flags] layout...",
	Short: "Show size, alignment and machine type of layouts",
	Example: `  lgen layout i64 'list<str>' 'union[(i64)|(str, bool)]'
  lgen layout --target wasm32 '{i64, u8}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyCodegenFlags(cmd, cfg); err != nil {
			return err
		}
		target, err := cfg.LayoutTarget()
		if err != nil {
			return err
		}
		layouts := make([]layout.Layout, len(args))
		for i, arg := range args {
			l, err := layout.Parse(arg)
			if err != nil {
				return &usageError{msg: err.Error()}
			}
			layouts[i] = l
		}
		return printLayouts(cmd.OutOrStdout(), target, layouts)
	},
}

func init() {
	layoutCmd.Flags().String("target", "", "target triple (default from lgen.toml)")
}

func printLayouts(out io.Writer, target layout.Target, layouts []layout.Layout) error {
	ptr := target.PtrBytes
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "LAYOUT\tSIZE\tALIGN\tRC\tTYPE (%s)\n", target.Triple)
	for _, l := range layouts {
		rc := "-"
		switch {
		case l.IsRefcounted():
			rc = "yes"
		case l.ContainsRefcounted():
			rc = "inner"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", l, l.StackSize(ptr), l.Alignment(ptr), rc, codegen.BasicType(l, ptr))
	}
	return w.Flush()
}
