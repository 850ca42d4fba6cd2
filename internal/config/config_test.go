package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, `
[target]
triple = "wasm32"

[codegen]
host_prefix = "app"
emit_names = true
main = "start"

[build]
jobs = 3
cache = true
backend = "vm"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatal(err)
	}
	cfg, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	opts, err := cfg.CodegenOptions()
	if err != nil {
		t.Fatalf("CodegenOptions: %v", err)
	}
	if opts.Target.PtrBytes != 4 || opts.HostPrefix != "app" || !opts.EmitNames || opts.Main != "start" {
		t.Errorf("options = %+v", opts)
	}
	if !opts.CheckMIR {
		t.Error("check_mir should keep its default")
	}
	if cfg.Build.Jobs != 3 || !cfg.Build.Cache || cfg.Build.Backend != "vm" || cfg.Build.OutDir != "target" {
		t.Errorf("build = %+v", cfg.Build)
	}
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("Path = %q, want empty", cfg.Path)
	}
	tgt, err := cfg.LayoutTarget()
	if err != nil || tgt.PtrBytes != 8 {
		t.Errorf("target = %+v, %v", tgt, err)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "[codegen]\nhost_prefx = \"x\"\n", "unknown keys: codegen.host_prefx"},
		{"bad triple", "[target]\ntriple = \"pdp11\"\n", "unknown target"},
		{"bad ptr", "[target]\nptr_bytes = 2\n", "must be 4 or 8"},
		{"bad backend", "[build]\nbackend = \"jvm\"\n", "llvm or vm"},
		{"syntax", "[build\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) || !strings.Contains(err.Error(), path) {
				t.Fatalf("error %q should mention %q and the path", err, tt.want)
			}
		})
	}
}
