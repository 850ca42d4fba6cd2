package codegen

import (
	"fmt"
	"strings"

	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
)

// InternalError reports a violated generator invariant. It always points at
// a bug in the stage that produced the program.
type InternalError struct {
	Proc   string
	Symbol mono.Symbol
	Layout string
	Value  string
	Detail string
}

func (e *InternalError) Error() string {
	var b strings.Builder
	b.WriteString("internal error")
	if e.Proc != "" {
		fmt.Fprintf(&b, " in %s", e.Proc)
	}
	if e.Symbol != "" {
		fmt.Fprintf(&b, " at %s", e.Symbol)
	}
	b.WriteString(": ")
	b.WriteString(e.Detail)
	if e.Layout != "" {
		fmt.Fprintf(&b, " (layout %s", e.Layout)
		if e.Value != "" {
			fmt.Fprintf(&b, ", value %s", e.Value)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *emitter) fail(sym mono.Symbol, detail string, args ...any) {
	panic(&InternalError{Proc: e.name, Symbol: sym, Detail: fmt.Sprintf(detail, args...)})
}

func (e *emitter) failLayout(sym mono.Symbol, l layout.Layout, v mir.Operand, detail string, args ...any) {
	panic(&InternalError{
		Proc:   e.name,
		Symbol: sym,
		Layout: l.String(),
		Value:  fmt.Sprintf("%s %s", v.Type, v),
		Detail: fmt.Sprintf(detail, args...),
	})
}

// internalFromPanic converts a recovered InternalError into an error.
// Other panics keep unwinding; a malformed layout is reported with the
// procedure name.
func internalFromPanic(proc string, r any) error {
	switch x := r.(type) {
	case *InternalError:
		if x.Proc == "" {
			x.Proc = proc
		}
		return x
	case *layout.LayoutError:
		return &InternalError{Proc: proc, Layout: x.Layout, Detail: x.Error()}
	default:
		panic(r)
	}
}
