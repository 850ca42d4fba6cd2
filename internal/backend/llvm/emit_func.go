package llvm

import (
	"fmt"
	"strings"

	"lgen/internal/mir"
)

func (e *Emitter) emitFunction(f *mir.Func) error {
	if f == nil {
		return nil
	}
	if len(f.Blocks) == 0 {
		return fmt.Errorf("function has no body")
	}
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %%v%d", p.Type, p.ID)
	}
	linkage := ""
	if f.Linkage == mir.LinkageInternal {
		linkage = "internal "
	}
	attrs := ""
	if unwinds(f) {
		attrs = " personality ptr @" + personality
		e.needsUnwinding = true
	}
	fmt.Fprintf(&e.body, "define %s%s%s @%s(%s)%s {\n",
		linkage, callConv(f.CallConv), f.Result, mir.QuoteName(f.Name), strings.Join(params, ", "), attrs)

	fe := &funcEmitter{emitter: e, f: f, out: &e.body}
	for _, bb := range f.Blocks {
		fe.block = bb.ID
		if bb.Name != "" {
			fmt.Fprintf(fe.out, "bb%d: ; %s\n", bb.ID, bb.Name)
		} else {
			fmt.Fprintf(fe.out, "bb%d:\n", bb.ID)
		}
		for i := range bb.Instrs {
			if err := fe.emitInstr(&bb.Instrs[i]); err != nil {
				return fmt.Errorf("bb%d: %w", bb.ID, err)
			}
		}
		if err := fe.emitTerminator(&bb.Term); err != nil {
			return fmt.Errorf("bb%d: %w", bb.ID, err)
		}
	}
	e.body.WriteString("}\n\n")
	return nil
}

// unwinds reports whether f has landing pads or resumes, which require a
// personality.
func unwinds(f *mir.Func) bool {
	for _, bb := range f.Blocks {
		if bb.Term.Kind == mir.TermResume {
			return true
		}
		for i := range bb.Instrs {
			if bb.Instrs[i].Kind == mir.InstrLandingPad {
				return true
			}
		}
	}
	return false
}

func (fe *funcEmitter) line(format string, args ...any) {
	fe.out.WriteString("  ")
	fmt.Fprintf(fe.out, format, args...)
	fe.out.WriteString("\n")
}
