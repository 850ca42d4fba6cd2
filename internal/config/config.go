// Package config loads lgen.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"lgen/internal/codegen"
	"lgen/internal/layout"
)

// FileName is the configuration file searched for by Find.
const FileName = "lgen.toml"

type Config struct {
	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`

	Target  TargetConfig  `toml:"target"`
	Codegen CodegenConfig `toml:"codegen"`
	Build   BuildConfig   `toml:"build"`
}

type TargetConfig struct {
	Triple   string `toml:"triple"`
	PtrBytes int    `toml:"ptr_bytes"`
}

type CodegenConfig struct {
	HostPrefix string `toml:"host_prefix"`
	EmitNames  bool   `toml:"emit_names"`
	CheckMIR   bool   `toml:"check_mir"`
	Main       string `toml:"main"`
}

type BuildConfig struct {
	Jobs    int    `toml:"jobs"`
	Cache   bool   `toml:"cache"`
	OutDir  string `toml:"out_dir"`
	Backend string `toml:"backend"`
}

// Default is the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Target:  TargetConfig{Triple: "x86_64-linux-gnu"},
		Codegen: CodegenConfig{HostPrefix: "roc", CheckMIR: true},
		Build:   BuildConfig{Jobs: runtime.GOMAXPROCS(0), OutDir: "target", Backend: "llvm"},
	}
}

// Find walks up from startDir looking for lgen.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the nearest lgen.toml above startDir, or the defaults.
func Discover(startDir string) (*Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load reads path over the defaults. Unknown keys are errors.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.LayoutTarget(); err != nil {
		return err
	}
	if c.Build.Jobs < 0 {
		return fmt.Errorf("[build].jobs must not be negative")
	}
	switch c.Build.Backend {
	case "llvm", "vm":
	default:
		return fmt.Errorf("[build].backend must be llvm or vm, got %q", c.Build.Backend)
	}
	if strings.TrimSpace(c.Codegen.HostPrefix) == "" {
		return fmt.Errorf("[codegen].host_prefix must not be empty")
	}
	return nil
}

// LayoutTarget resolves [target]. An explicit ptr_bytes overrides the
// triple's pointer width.
func (c *Config) LayoutTarget() (layout.Target, error) {
	t, ok := layout.TargetByName(c.Target.Triple)
	if !ok {
		return layout.Target{}, fmt.Errorf("[target].triple: unknown target %q", c.Target.Triple)
	}
	switch c.Target.PtrBytes {
	case 0:
	case 4, 8:
		t.PtrBytes = c.Target.PtrBytes
	default:
		return layout.Target{}, fmt.Errorf("[target].ptr_bytes must be 4 or 8, got %d", c.Target.PtrBytes)
	}
	return t, nil
}

// CodegenOptions converts the configuration to generator options.
func (c *Config) CodegenOptions() (codegen.Options, error) {
	t, err := c.LayoutTarget()
	if err != nil {
		return codegen.Options{}, err
	}
	return codegen.Options{
		Target:     t,
		HostPrefix: c.Codegen.HostPrefix,
		EmitNames:  c.Codegen.EmitNames,
		CheckMIR:   c.Codegen.CheckMIR,
		Main:       c.Codegen.Main,
	}, nil
}
