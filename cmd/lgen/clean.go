package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lgen/internal/cache"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the output directory and the build cache",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().Bool("cache-only", false, "keep the output directory")
}

func runClean(cmd *cobra.Command, _ []string) error {
	cacheOnly, err := cmd.Flags().GetBool("cache-only")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	c, err := cache.Open("")
	if err != nil {
		return err
	}
	if err := c.DropAll(); err != nil {
		return err
	}
	fmt.Fprintf(out, "cleared cache %s\n", c.Dir())
	if cacheOnly {
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	targetDir := cfg.Build.OutDir
	if cfg.Path != "" && !filepath.IsAbs(targetDir) {
		targetDir = filepath.Join(filepath.Dir(cfg.Path), targetDir)
	}
	info, err := os.Stat(targetDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(out, "output directory not found\n")
			return nil
		}
		return fmt.Errorf("failed to stat %q: %w", targetDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", targetDir)
	}
	if err := os.RemoveAll(targetDir); err != nil {
		return fmt.Errorf("failed to remove %q: %w", targetDir, err)
	}
	cwd, _ := os.Getwd()
	fmt.Fprintf(out, "removed %s\n", formatPathForOutput(cwd, targetDir))
	return nil
}
