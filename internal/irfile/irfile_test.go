package irfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lgen/internal/codegen"
	"lgen/internal/layout"
	"lgen/internal/mono"
	"lgen/internal/vm"
)

func dump(t *testing.T, p *mono.Program) string {
	t.Helper()
	var buf bytes.Buffer
	if err := mono.Dump(&buf, p); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	return buf.String()
}

func TestLoadYAMLFixture(t *testing.T) {
	prog, err := Load(filepath.Join("testdata", "sum.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(prog.Procs) != 2 || len(prog.Exposed) != 1 {
		t.Fatalf("procs = %d, exposed = %d", len(prog.Procs), len(prog.Exposed))
	}
	join, ok := prog.Procs[0].Body.(*mono.Let).Cont.(*mono.Let).Cont.(*mono.Join)
	if !ok {
		t.Fatalf("sum_to body does not end in a join: %s", dump(t, prog))
	}
	if len(join.Params) != 2 || !layout.Equal(join.Params[1].Layout, layout.I64()) {
		t.Fatalf("join params = %+v", join.Params)
	}

	mod, err := codegen.Generate(context.Background(), prog, codegen.DefaultOptions())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	m := vm.New(mod, vm.Options{})
	v, err := m.Call("sum_to_1", vm.I64(100))
	if err != nil {
		t.Fatalf("sum_to: %v", err)
	}
	if got := v.Signed(64); got != 5050 {
		t.Fatalf("sum_to(100) = %d, want 5050", got)
	}
	s, err := m.Call("greeting_1")
	if err != nil {
		t.Fatalf("greeting: %v", err)
	}
	if got := m.ReadStr(s); got != "hello, host" {
		t.Fatalf("greeting = %q", got)
	}
}

func TestYAMLAndMsgpackAgree(t *testing.T) {
	prog, err := Load(filepath.Join("testdata", "sum.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := dump(t, prog)

	dir := t.TempDir()
	for _, name := range []string{"sum.mp", "again.yaml"} {
		path := filepath.Join(dir, name)
		if err := Save(path, prog); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
		back, err := Load(path)
		if err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
		if got := dump(t, back); got != want {
			t.Errorf("%s differs:\n%s\nwant:\n%s", name, got, want)
		}
	}
}

func TestAllStatementKinds(t *testing.T) {
	i64 := layout.I64()
	list := layout.List(i64)
	cons := layout.MustParse("nu<0>(i64, rec)")
	inc := &mono.Proc{
		Name:   "inc",
		Args:   []mono.Param{{Sym: "x", Layout: i64}},
		Result: i64,
		Body: &mono.Let{Sym: "one", Expr: mono.IntLit(1), Layout: i64, Cont: &mono.Let{
			Sym: "y", Expr: &mono.Call{Type: mono.LowLevel{Op: mono.NumAdd}, Args: []mono.Symbol{"x", "one"}}, Layout: i64,
			Cont: &mono.Ret{Sym: "y"},
		}},
	}
	all := &mono.Proc{
		Name:   "all",
		Args:   []mono.Param{{Sym: "xs", Layout: list}, {Sym: "c", Layout: cons}},
		Result: list,
		Body: &mono.Let{Sym: "ys", Layout: list,
			Expr: &mono.Call{Type: mono.HigherOrder{Op: mono.ListMap, Proc: inc.Ref()}, Args: []mono.Symbol{"xs"}},
			Cont: &mono.Refcounting{Kind: mono.RcInc, Sym: "ys", Amount: 2, Cont: &mono.Let{
				Sym: "t", Expr: &mono.GetTagID{Structure: "c"}, Layout: i64,
				Cont: &mono.Let{Sym: "u", Expr: &mono.StructExpr{}, Layout: layout.Unit(), Cont: &mono.Let{
					Sym: "e", Expr: &mono.EmptyArray{}, Layout: list, Cont: &mono.Let{
						Sym: "f", Expr: &mono.Literal{Kind: mono.LitFloat, Float: 0.25}, Layout: layout.F64(),
						Cont: &mono.Invoke{
							Sym:       "z",
							Call:      &mono.Call{Type: mono.ByName{Proc: inc.Ref()}, Args: []mono.Symbol{"t"}},
							Layout:    i64,
							Exception: "exn",
							Pass: &mono.Switch{
								Cond:       "z",
								CondLayout: i64,
								Branches:   []mono.Branch{{Value: 3, Body: &mono.RuntimeError{Message: ""}}},
								Default:    &mono.Refcounting{Kind: mono.RcDecRef, Sym: "e", Cont: &mono.Ret{Sym: "ys"}},
								Result:     list,
							},
							Fail: &mono.Resume{Exception: "exn"},
						},
					}},
				}},
			}},
	}
	prog := &mono.Program{
		Procs:    []*mono.Proc{inc, all},
		Closures: []mono.HostClosure{{Def: "all", Alias: "f", Proc: inc.Ref()}},
	}
	want := dump(t, prog)
	for _, format := range []Format{FormatYAML, FormatMsgpack} {
		data, err := Marshal(prog, format)
		if err != nil {
			t.Fatalf("Marshal %s: %v", format, err)
		}
		back, err := Unmarshal(data, format)
		if err != nil {
			t.Fatalf("Unmarshal %s: %v", format, err)
		}
		if got := dump(t, back); got != want {
			t.Errorf("%s round trip differs:\n%s\nwant:\n%s", format, got, want)
		}
	}
}

func TestMalformedDocuments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown field", "procs:\n  - name: f\n    result: i64\n    colour: red\n", "colour"},
		{"empty body", "procs:\n  - name: f\n    result: i64\n    body: []\n", "empty block"},
		{"bad layout", "procs:\n  - name: f\n    result: int64\n    body: [{ret: x}]\n", "result"},
		{"let at end", "procs:\n  - name: f\n    result: i64\n    body:\n      - let: {sym: x, layout: i64, int: 1}\n", "must end with"},
		{"ret in middle", "procs:\n  - name: f\n    result: i64\n    body: [{ret: x}, {ret: y}]\n", "only let and rc"},
		{"two exprs", "procs:\n  - name: f\n    result: i64\n    body:\n      - let: {sym: x, layout: i64, int: 1, str: a}\n      - ret: x\n", "exactly one expression"},
		{"unknown op", "procs:\n  - name: f\n    result: i64\n    body:\n      - let: {sym: x, layout: i64, call: {op: NumFrobnicate}}\n      - ret: x\n", "NumFrobnicate"},
		{"hof without proc", "procs:\n  - name: f\n    result: i64\n    body:\n      - let: {sym: x, layout: i64, call: {op: ListMap, args: [l]}}\n      - ret: x\n", "needs a proc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.src), FormatYAML)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{"a.yaml": FormatYAML, "b.YML": FormatYAML, "c.mp": FormatMsgpack} {
		got, err := FormatOf(path)
		if err != nil || got != want {
			t.Errorf("FormatOf(%s) = %s, %v", path, got, err)
		}
	}
	if _, err := FormatOf("prog.json"); err == nil {
		t.Error("expected an error for .json")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load of a missing file: %v", err)
	}
}

