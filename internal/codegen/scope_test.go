package codegen

import (
	"fmt"
	"testing"

	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
)

func TestScopeBranchesAreIsolated(t *testing.T) {
	var base Scope
	for i := range 100 {
		base = base.Bind(mono.Symbol(fmt.Sprintf("v%d", i)), layout.I64(), mir.Const(mir.I64(), int64(i)))
	}
	left := base.Clone().Bind("only_left", layout.I64(), mir.Const(mir.I64(), -1))
	right := base.Clone().Unbind("v50").Bind("v7", layout.I64(), mir.Const(mir.I64(), 700))

	if _, ok := right.Lookup("only_left"); ok {
		t.Fatalf("binding leaked from a sibling branch")
	}
	if _, ok := base.Lookup("only_left"); ok {
		t.Fatalf("binding leaked into the parent scope")
	}
	if _, ok := right.Lookup("v50"); ok {
		t.Fatalf("unbound symbol still visible")
	}
	if b, ok := left.Lookup("v50"); !ok || b.Value.Int != 50 {
		t.Fatalf("left lost v50: %+v, %v", b, ok)
	}
	if b, _ := base.Lookup("v7"); b.Value.Int != 7 {
		t.Fatalf("shadowing in a branch changed the parent: %d", b.Value.Int)
	}
	if b, _ := right.Lookup("v7"); b.Value.Int != 700 {
		t.Fatalf("right v7 = %d, want 700", b.Value.Int)
	}
	if base.Len() != 100 || left.Len() != 101 || right.Len() != 99 {
		t.Fatalf("sizes = %d, %d, %d", base.Len(), left.Len(), right.Len())
	}
}

func TestScopeJoins(t *testing.T) {
	s := Scope{}.BindJoin(3, JoinPoint{Block: 9})
	if jp, ok := s.LookupJoin(3); !ok || jp.Block != 9 {
		t.Fatalf("join 3 = %+v, %v", jp, ok)
	}
	if _, ok := s.LookupJoin(4); ok {
		t.Fatalf("unknown join resolved")
	}
}
