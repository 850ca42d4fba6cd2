// Package mono defines the monomorphized, layout-annotated IR consumed by the
// code generator. Every value carries exactly one concrete layout; no type
// inference or checking happens past this point.
package mono

import (
	"strings"

	"lgen/internal/layout"
)

// Symbol names a value or a procedure.
type Symbol string

// JoinID names a join point inside one procedure.
type JoinID uint32

type Param struct {
	Sym    Symbol
	Layout layout.Layout
}

// ProcRef identifies one specialization of a procedure.
type ProcRef struct {
	Name   Symbol
	Args   []layout.Layout
	Result layout.Layout
}

// ProcKey is the comparable identity of a ProcRef.
type ProcKey struct {
	Name    Symbol
	Layouts string
}

func (r ProcRef) Key() ProcKey {
	var b strings.Builder
	b.WriteString("(")
	for i, a := range r.Args {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(layout.Key(a))
	}
	b.WriteString(")->")
	b.WriteString(layout.Key(r.Result))
	return ProcKey{Name: r.Name, Layouts: b.String()}
}

// Proc is one monomorphized procedure.
type Proc struct {
	Name   Symbol
	Args   []Param
	Result layout.Layout
	Body   Stmt
}

func (p *Proc) Ref() ProcRef {
	args := make([]layout.Layout, len(p.Args))
	for i, a := range p.Args {
		args[i] = a.Layout
	}
	return ProcRef{Name: p.Name, Args: args, Result: p.Result}
}

// IsThunk reports whether p is a top-level zero-argument procedure.
func (p *Proc) IsThunk() bool { return len(p.Args) == 0 }

// Exposed marks a procedure as callable by the host under Ident.
type Exposed struct {
	Ident string
	Proc  ProcRef
}

// HostClosure exposes a closure to the host: the host receives an opaque
// pointer to Captured data and calls it through a generated caller.
type HostClosure struct {
	Def      string
	Alias    string
	Proc     ProcRef
	Captured layout.Layout
}

// Program is one compilation unit.
type Program struct {
	Procs    []*Proc
	Exposed  []Exposed
	Closures []HostClosure
}

// Lookup finds the procedure specialization ref names.
func (p *Program) Lookup(ref ProcRef) (*Proc, bool) {
	if p == nil {
		return nil, false
	}
	key := ref.Key()
	for _, proc := range p.Procs {
		if proc.Ref().Key() == key {
			return proc, true
		}
	}
	return nil, false
}
