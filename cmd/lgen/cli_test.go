package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"lgen/internal/codegen"
	"lgen/internal/irfile"
	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/vm"
)

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, " on ": uiModeOn, "off": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), 1},
		{&usageError{msg: "bad flag"}, 2},
		{&programExit{code: 3}, 3},
		{&programExit{code: 0}, 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestCallProc(t *testing.T) {
	prog, err := irfile.Load("../../internal/irfile/testdata/sum.yaml")
	if err != nil {
		t.Fatal(err)
	}
	mod, err := codegen.Generate(context.Background(), prog, codegen.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	machine := vm.New(mod, vm.Options{})

	var out bytes.Buffer
	if err := callProc(&out, machine, prog, "sum_to", []string{"100"}); err != nil {
		t.Fatalf("sum_to: %v", err)
	}
	if err := callProc(&out, machine, prog, "greeting_1", nil); err != nil {
		t.Fatalf("greeting: %v", err)
	}
	if got, want := out.String(), "5050\n\"hello, host\"\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}

	var usage *usageError
	if err := callProc(&out, machine, prog, "sum_to", nil); !errors.As(err, &usage) {
		t.Errorf("arity mismatch error = %v", err)
	}
	if err := callProc(&out, machine, prog, "sum_to", []string{"many"}); !errors.As(err, &usage) {
		t.Errorf("bad argument error = %v", err)
	}
	if err := callProc(&out, machine, prog, "missing", nil); !errors.As(err, &usage) {
		t.Errorf("unknown procedure error = %v", err)
	}
}

func TestParseArg(t *testing.T) {
	machine := vm.New(mir.NewModule("x86_64-linux-gnu", 8), vm.Options{})
	v, err := parseArg(machine, layout.U8(), "255")
	if err != nil || v.Bits != 255 {
		t.Errorf("u8 255 = %d, %v", v.Bits, err)
	}
	v, err = parseArg(machine, layout.Bool(), "true")
	if err != nil || !v.Truth() {
		t.Errorf("bool true = %v, %v", v, err)
	}
	v, err = parseArg(machine, layout.F64(), "2.5")
	if err != nil || v.Float(64) != 2.5 {
		t.Errorf("f64 2.5 = %v, %v", v, err)
	}
	if _, err := parseArg(machine, layout.List(layout.I64()), "[1]"); err == nil {
		t.Error("lists cannot come from the command line")
	}
}

func TestPrintLayouts(t *testing.T) {
	var out bytes.Buffer
	layouts := []layout.Layout{layout.I64(), layout.Str()}
	if err := printLayouts(&out, layout.X86_64LinuxGNU(), layouts); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("output:\n%s", out.String())
	}
	if got := strings.Fields(lines[1])[:4]; strings.Join(got, " ") != "i64 8 8 -" {
		t.Errorf("i64 row = %q", lines[1])
	}
	if got := strings.Fields(lines[2])[:4]; strings.Join(got, " ") != "str 16 8 yes" {
		t.Errorf("str row = %q", lines[2])
	}
}

func TestVersionJSON(t *testing.T) {
	fields, err := parseStampFields([]string{"commit", " GO "})
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := writeStampJSON(&out, stamp{Release: "1.2.3", Toolchain: "go1.24 linux/amd64", Routines: 7}, fields); err != nil {
		t.Fatal(err)
	}
	var report stampReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	want := stampReport{Tool: "lgen", Release: "1.2.3", Routines: 7, Commit: "unknown", Toolchain: "go1.24 linux/amd64"}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
}

func TestVersionRejectsUnknownField(t *testing.T) {
	_, err := parseStampFields([]string{"commit", "colour"})
	var usage *usageError
	if !errors.As(err, &usage) || !strings.Contains(err.Error(), "colour") {
		t.Fatalf("err = %v, want a usage error naming the field", err)
	}
}

func TestVersionPrettyListsSelectedFields(t *testing.T) {
	var out bytes.Buffer
	writeStamp(&out, stamp{Release: "1.2.3", Built: "2026-10-19", Routines: 3}, showBuilt)
	got := out.String()
	if !strings.Contains(got, "3 runtime routines") || !strings.Contains(got, "built:") || !strings.Contains(got, "2026-10-19") {
		t.Errorf("output:\n%s", got)
	}
	if strings.Contains(got, "commit:") {
		t.Errorf("unselected field printed:\n%s", got)
	}
}

func TestPrintVMStats(t *testing.T) {
	var out bytes.Buffer
	printVMStats(&out, vm.Stats{Allocs: 12345, Frees: 12345, PeakBytes: 1 << 20})
	if !strings.Contains(out.String(), "12,345") || !strings.Contains(out.String(), "1,048,576 bytes") {
		t.Errorf("stats:\n%s", out.String())
	}
}
