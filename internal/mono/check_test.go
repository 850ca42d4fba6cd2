package mono_test

import (
	"bytes"
	"strings"
	"testing"

	"lgen/internal/layout"
	"lgen/internal/mono"
)

func identityProc() *mono.Proc {
	return &mono.Proc{
		Name:   "id",
		Args:   []mono.Param{{Sym: "x", Layout: layout.I64()}},
		Result: layout.I64(),
		Body:   &mono.Ret{Sym: "x"},
	}
}

func TestCheckAcceptsWellFormed(t *testing.T) {
	loop := &mono.Proc{
		Name:   "count",
		Args:   []mono.Param{{Sym: "n", Layout: layout.I64()}},
		Result: layout.I64(),
		Body: &mono.Join{
			ID:     1,
			Params: []mono.Param{{Sym: "acc", Layout: layout.I64()}},
			Remainder: &mono.Jump{ID: 1, Args: []mono.Symbol{"n"}},
			Continuation: &mono.Let{
				Sym:    "r",
				Expr:   &mono.Call{Type: mono.ByName{Proc: identityProc().Ref()}, Args: []mono.Symbol{"acc"}},
				Layout: layout.I64(),
				Cont:   &mono.Ret{Sym: "r"},
			},
		},
	}
	prog := &mono.Program{
		Procs:   []*mono.Proc{identityProc(), loop},
		Exposed: []mono.Exposed{{Ident: "count", Proc: loop.Ref()}},
	}
	if err := mono.Check(prog); err != nil {
		t.Fatalf("Check: unexpected error: %v", err)
	}
}

func TestCheckReportsProblems(t *testing.T) {
	tests := []struct {
		name string
		prog *mono.Program
		want string
	}{
		{
			name: "duplicate specialization",
			prog: &mono.Program{Procs: []*mono.Proc{identityProc(), identityProc()}},
			want: "duplicate specialization",
		},
		{
			name: "unbound symbol",
			prog: &mono.Program{Procs: []*mono.Proc{{
				Name: "f", Result: layout.I64(), Body: &mono.Ret{Sym: "ghost"},
			}}},
			want: "ghost used before binding",
		},
		{
			name: "jump outside join",
			prog: &mono.Program{Procs: []*mono.Proc{{
				Name: "f", Result: layout.I64(), Body: &mono.Jump{ID: 7},
			}}},
			want: "unbound join point j7",
		},
		{
			name: "unknown exposed",
			prog: &mono.Program{
				Procs:   []*mono.Proc{identityProc()},
				Exposed: []mono.Exposed{{Ident: "nope", Proc: mono.ProcRef{Name: "nope", Result: layout.I64()}}},
			},
			want: "exposed nope: unknown proc",
		},
		{
			name: "higher-order op used directly",
			prog: &mono.Program{Procs: []*mono.Proc{{
				Name: "f", Args: []mono.Param{{Sym: "l", Layout: layout.List(layout.I64())}}, Result: layout.I64(),
				Body: &mono.Let{
					Sym: "r", Layout: layout.I64(),
					Expr: &mono.Call{Type: mono.LowLevel{Op: mono.ListMap}, Args: []mono.Symbol{"l"}},
					Cont: &mono.Ret{Sym: "r"},
				},
			}}},
			want: "not a direct low-level op",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mono.Check(tt.prog)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestThunkSymbolsAreVisible(t *testing.T) {
	thunk := &mono.Proc{
		Name:   "answer",
		Result: layout.I64(),
		Body: &mono.Let{
			Sym: "v", Expr: mono.IntLit(42), Layout: layout.I64(),
			Cont: &mono.Ret{Sym: "v"},
		},
	}
	user := &mono.Proc{Name: "use", Args: []mono.Param{{Sym: "x", Layout: layout.I64()}}, Result: layout.I64(), Body: &mono.Ret{Sym: "answer"}}
	if err := mono.Check(&mono.Program{Procs: []*mono.Proc{thunk, user}}); err != nil {
		t.Fatalf("thunk reference rejected: %v", err)
	}
}

func TestParseOpRoundTrip(t *testing.T) {
	for _, name := range []string{"NumAdd", "ListSortWith", "DictWalk", "StrCountGraphemes"} {
		op, err := mono.ParseOp(name)
		if err != nil {
			t.Fatalf("ParseOp(%q): %v", name, err)
		}
		if op.String() != name {
			t.Fatalf("ParseOp(%q).String() = %q", name, op.String())
		}
	}
	if _, err := mono.ParseOp("ListFrobnicate"); err == nil {
		t.Fatalf("expected error for unknown op")
	}
	if !mono.ListMap2.IsHigherOrder() || mono.ListAppend.IsHigherOrder() {
		t.Fatalf("IsHigherOrder misclassifies ops")
	}
}

func TestDumpShowsStructure(t *testing.T) {
	var buf bytes.Buffer
	if err := mono.Dump(&buf, &mono.Program{Procs: []*mono.Proc{identityProc()}}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"proc id(x: i64) -> i64", "ret x"} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump missing %q:\n%s", want, out)
		}
	}
}
