package llvm

import (
	"fmt"
	"strings"

	"lgen/internal/mir"
)

func (fe *funcEmitter) emitTerminator(term *mir.Terminator) error {
	switch term.Kind {
	case mir.TermReturn:
		if term.Return.HasValue {
			fe.line("ret %s", fe.typed(term.Return.Value))
			return nil
		}
		fe.line("ret void")
	case mir.TermGoto:
		fe.line("br label %%bb%d", term.Goto.Target)
	case mir.TermIf:
		cond := term.If.Cond
		if !cond.Type.Equal(mir.I1()) {
			return fmt.Errorf("if condition must be i1, got %s", cond.Type)
		}
		fe.line("br i1 %s, label %%bb%d, label %%bb%d", fe.operand(cond), term.If.Then, term.If.Else)
	case mir.TermSwitch:
		return fe.emitSwitch(&term.Switch)
	case mir.TermInvoke:
		inv := &term.Invoke
		call := fe.call(inv.Type, &inv.Call)
		dst := ""
		if inv.Dst != mir.NoValueID {
			dst = fmt.Sprintf("%%v%d = ", inv.Dst)
		}
		fe.line("%sinvoke %s", dst, call)
		fe.line("        to label %%bb%d unwind label %%bb%d", inv.Normal, inv.Unwind)
	case mir.TermResume:
		exn := fe.typed(term.Resume.Exception)
		pad := fmt.Sprintf("%%resume.bb%d", fe.block)
		fe.line("%s = insertvalue %s undef, %s, 0", pad, landingPadType, exn)
		fe.line("resume %s %s", landingPadType, pad)
	case mir.TermUnreachable:
		fe.line("unreachable")
	case mir.TermNone:
		return fmt.Errorf("unterminated block")
	default:
		return fmt.Errorf("unsupported terminator kind %d", term.Kind)
	}
	return nil
}

func (fe *funcEmitter) emitSwitch(sw *mir.SwitchTerm) error {
	t := sw.Value.Type
	if !t.IsInt() {
		return fmt.Errorf("switch on non-integer %s", t)
	}
	cases := make([]string, len(sw.Cases))
	for i, c := range sw.Cases {
		cases[i] = fmt.Sprintf("%s %d, label %%bb%d", t, c.Value, c.Target)
	}
	fe.line("switch %s, label %%bb%d [ %s ]", fe.typed(sw.Value), sw.Default, strings.Join(cases, " "))
	return nil
}
