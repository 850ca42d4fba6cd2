// Package llvm prints MIR modules as textual LLVM IR.
package llvm

import (
	"fmt"
	"sort"
	"strings"

	"lgen/internal/mir"
)

// personality is the unwinding personality of functions with landing pads.
const personality = "__gxx_personality_v0"

// landingPadType is the value a landingpad instruction produces.
const landingPadType = "{ ptr, i32 }"

var dataLayouts = map[string]string{
	"x86_64-unknown-linux-gnu": "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128",
	"x86_64-linux-gnu":         "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128",
	"wasm32-unknown-unknown":   "e-m:e-p:32:32-p10:8:8-p20:8:8-i64:64-n32:64-S128-ni:1:10:20",
}

type Emitter struct {
	mod  *mir.Module
	buf  strings.Builder
	body strings.Builder

	// intrinsics referenced by instructions rather than module decls.
	intrinsics     map[string]string
	needsUnwinding bool
}

type funcEmitter struct {
	emitter *Emitter
	f       *mir.Func
	out     *strings.Builder
	block   mir.BlockID
}

// EmitModule renders mod as an LLVM IR module.
func EmitModule(mod *mir.Module) (string, error) {
	if mod == nil {
		return "", nil
	}
	e := &Emitter{
		mod:        mod,
		intrinsics: make(map[string]string),
	}
	for _, f := range mod.Funcs {
		if err := e.emitFunction(f); err != nil {
			return "", fmt.Errorf("llvm: function %s: %w", f.Name, err)
		}
	}
	e.emitPreamble()
	e.emitGlobals()
	e.emitDecls()
	e.buf.WriteString(e.body.String())
	return e.buf.String(), nil
}

func (e *Emitter) emitPreamble() {
	fmt.Fprintf(&e.buf, "; ModuleID = %q\n", "lgen")
	if dl, ok := dataLayouts[e.mod.Triple]; ok {
		fmt.Fprintf(&e.buf, "target datalayout = %q\n", dl)
	}
	if e.mod.Triple != "" {
		fmt.Fprintf(&e.buf, "target triple = %q\n", e.mod.Triple)
	}
	e.buf.WriteString("\n")
}

func (e *Emitter) emitDecls() {
	declared := make(map[string]bool, len(e.mod.Decls))
	for _, d := range e.mod.Decls {
		declared[d.Name] = true
		params := make([]string, len(d.Params))
		for i, p := range d.Params {
			params[i] = p.String()
		}
		attrs := ""
		if d.NoReturn {
			attrs = " noreturn"
		}
		fmt.Fprintf(&e.buf, "declare %s%s @%s(%s)%s\n", callConv(d.Conv), d.Result, mir.QuoteName(d.Name), strings.Join(params, ", "), attrs)
	}
	names := make([]string, 0, len(e.intrinsics))
	for name := range e.intrinsics {
		if !declared[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&e.buf, "%s\n", e.intrinsics[name])
	}
	if e.needsUnwinding {
		fmt.Fprintf(&e.buf, "declare i32 @%s(...)\n", personality)
	}
	e.buf.WriteString("\n")
}

// callConv renders the calling convention keyword with a trailing space.
func callConv(c mir.CallConv) string {
	switch c {
	case mir.CallConvC:
		return ""
	case mir.CallConvFast:
		return "fastcc "
	case mir.CallConvCold:
		return "coldcc "
	default:
		return fmt.Sprintf("cc %d ", c)
	}
}

// useIntrinsic records the declaration of an intrinsic the output calls.
func (e *Emitter) useIntrinsic(name, decl string) {
	e.intrinsics[name] = decl
}
