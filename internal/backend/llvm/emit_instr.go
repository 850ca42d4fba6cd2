package llvm

import (
	"fmt"
	"strings"

	"lgen/internal/mir"
)

func (fe *funcEmitter) emitInstr(ins *mir.Instr) error {
	dst := fmt.Sprintf("%%v%d", ins.Dst)
	switch ins.Kind {
	case mir.InstrBinary:
		b := &ins.Binary
		fe.line("%s = %s %s, %s", dst, b.Op, fe.typed(b.X), fe.operand(b.Y))
	case mir.InstrOverflow:
		o := &ins.Overflow
		name := fmt.Sprintf("llvm.%s.with.overflow.%s", o.Op, o.X.Type)
		fe.emitter.useIntrinsic(name, fmt.Sprintf("declare %s @%s(%s, %s)", ins.Type, name, o.X.Type, o.X.Type))
		fe.line("%s = call %s @%s(%s, %s)", dst, ins.Type, name, fe.typed(o.X), fe.typed(o.Y))
	case mir.InstrCmp:
		c := &ins.Cmp
		op := "icmp"
		if c.Pred.IsFloat() {
			op = "fcmp"
		}
		fe.line("%s = %s %s %s, %s", dst, op, c.Pred, fe.typed(c.X), fe.operand(c.Y))
	case mir.InstrCast:
		c := &ins.Cast
		fe.line("%s = %s %s to %s", dst, c.Op, fe.typed(c.X), ins.Type)
	case mir.InstrAlloca:
		a := &ins.Alloca
		fe.line("%s = alloca %s, align %d", dst, a.Elem, max(a.Align, 1))
	case mir.InstrLoad:
		fe.line("%s = load %s, %s", dst, ins.Type, fe.typed(ins.Load.Addr))
	case mir.InstrStore:
		fe.line("store %s, %s", fe.typed(ins.Store.Value), fe.typed(ins.Store.Addr))
	case mir.InstrPtrAdd:
		p := &ins.PtrAdd
		fe.line("%s = getelementptr inbounds i8, %s, %s", dst, fe.typed(p.Base), fe.typed(p.Offset))
	case mir.InstrExtract:
		x := &ins.Extract
		fe.line("%s = extractvalue %s, %d", dst, fe.typed(x.Agg), x.Index)
	case mir.InstrInsert:
		x := &ins.Insert
		fe.line("%s = insertvalue %s, %s, %d", dst, fe.typed(x.Agg), fe.typed(x.Value), x.Index)
	case mir.InstrSelect:
		s := &ins.Select
		fe.line("%s = select %s, %s, %s", dst, fe.typed(s.Cond), fe.typed(s.Then), fe.typed(s.Else))
	case mir.InstrPhi:
		incoming := make([]string, len(ins.Phi.Incoming))
		for i, in := range ins.Phi.Incoming {
			incoming[i] = fmt.Sprintf("[ %s, %%bb%d ]", fe.operand(in.Value), in.Block)
		}
		fe.line("%s = phi %s %s", dst, ins.Type, strings.Join(incoming, ", "))
	case mir.InstrCall:
		call := fe.call(ins.Type, &ins.Call)
		if ins.HasResult() {
			fe.line("%s = call %s", dst, call)
		} else {
			fe.line("call %s", call)
		}
	case mir.InstrLandingPad:
		pad := fmt.Sprintf("%%lp%d", ins.Dst)
		fe.line("%s = landingpad %s catch ptr null", pad, landingPadType)
		fe.line("%s = extractvalue %s %s, 0", dst, landingPadType, pad)
	default:
		return fmt.Errorf("unsupported instruction kind %d", ins.Kind)
	}
	return nil
}

// call renders "[cc] T callee(args)" shared by call and invoke.
func (fe *funcEmitter) call(result mir.Type, c *mir.CallInstr) string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = fe.typed(a)
	}
	return fmt.Sprintf("%s%s %s(%s)", callConv(c.Conv), result, fe.operand(c.Callee), strings.Join(args, ", "))
}
