package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lgen/internal/config"
)

// loadConfig reads --config, or searches upwards from the working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.Discover(cwd)
}

// registerCodegenFlags adds the flags that override the [target] and
// [codegen] tables.
func registerCodegenFlags(cmd *cobra.Command) {
	cmd.Flags().String("target", "", "target triple (default from lgen.toml)")
	cmd.Flags().String("host-prefix", "", "prefix of host-visible symbols")
	cmd.Flags().String("main", "", "zero-argument procedure to wrap as the C main")
	cmd.Flags().Bool("emit-names", false, "keep descriptive block names")
	cmd.Flags().Bool("no-check", false, "skip MIR validation")
}

// applyCodegenFlags copies explicitly set flags over cfg.
func applyCodegenFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("target") {
		v, err := flags.GetString("target")
		if err != nil {
			return err
		}
		cfg.Target.Triple = v
		cfg.Target.PtrBytes = 0
	}
	if flags.Changed("host-prefix") {
		v, err := flags.GetString("host-prefix")
		if err != nil {
			return err
		}
		if v == "" {
			return &usageError{msg: "--host-prefix must not be empty"}
		}
		cfg.Codegen.HostPrefix = v
	}
	if flags.Changed("main") {
		v, err := flags.GetString("main")
		if err != nil {
			return err
		}
		cfg.Codegen.Main = v
	}
	if flags.Changed("emit-names") {
		v, err := flags.GetBool("emit-names")
		if err != nil {
			return err
		}
		cfg.Codegen.EmitNames = v
	}
	if flags.Changed("no-check") {
		v, err := flags.GetBool("no-check")
		if err != nil {
			return err
		}
		cfg.Codegen.CheckMIR = !v
	}
	return nil
}
