package vm

import (
	"math"
	"math/bits"

	"lgen/internal/mir"
	"lgen/internal/trace"
)

// run executes fn to completion. Allocas made by fn are released on return
// and when an exception unwinds through it.
func (vm *VM) run(fn *mir.Func, args []Value) Value {
	if len(vm.frames) >= vm.opts.MaxDepth {
		vm.trap(TrapStackOverflow, "call depth %d exceeded", vm.opts.MaxDepth)
	}
	if len(fn.Blocks) == 0 {
		vm.trap(TrapBadCall, "function %s has no body", fn.Name)
	}
	fr := &frame{fn: fn, regs: make([]Value, len(fn.ValueTypes))}
	for i, p := range fn.Params {
		fr.regs[p.ID] = args[i]
	}
	var span *trace.Span
	if vm.tracer.Level().ShouldEmit(trace.ScopeProc) {
		span = trace.Begin(vm.tracer, trace.ScopeProc, fn.Name, vm.opts.Parent)
	}
	sp := vm.mem.sp
	vm.frames = append(vm.frames, fr)
	defer func() {
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.mem.sp = sp
		if span != nil {
			span.End("")
		}
	}()

	prev, cur := mir.NoBlockID, mir.BlockID(0)
	for {
		fr.block = cur
		b := fn.Blocks[cur]
		first := vm.enter(fr, b, prev)
		for i := first; i < len(b.Instrs); i++ {
			vm.exec(fr, &b.Instrs[i])
		}
		t := &b.Term
		prev = cur
		switch t.Kind {
		case mir.TermReturn:
			if t.Return.HasValue {
				return vm.operand(fr, t.Return.Value)
			}
			return Value{}
		case mir.TermGoto:
			cur = t.Goto.Target
		case mir.TermIf:
			if vm.operand(fr, t.If.Cond).Truth() {
				cur = t.If.Then
			} else {
				cur = t.If.Else
			}
		case mir.TermSwitch:
			cur = vm.switchTarget(fr, &t.Switch)
		case mir.TermInvoke:
			cur = vm.invoke(fr, &t.Invoke)
		case mir.TermResume:
			vm.throw(vm.operand(fr, t.Resume.Exception).Bits)
		case mir.TermUnreachable:
			vm.trap(TrapUnreachable, "unreachable reached in %s", fn.Name)
		default:
			vm.trap(TrapTypeMismatch, "block %d of %s has no terminator", cur, fn.Name)
		}
	}
}

// enter evaluates the leading phis of b for an edge from prev and returns
// the index of the first non-phi instruction. All phis read their inputs
// before any of them is written.
func (vm *VM) enter(fr *frame, b *mir.Block, prev mir.BlockID) int {
	n := 0
	for n < len(b.Instrs) && b.Instrs[n].Kind == mir.InstrPhi {
		n++
	}
	if n == 0 {
		return 0
	}
	vals := make([]Value, n)
	for i := 0; i < n; i++ {
		ins := &b.Instrs[i]
		found := false
		for _, in := range ins.Phi.Incoming {
			if in.Block == prev {
				vals[i] = vm.operand(fr, in.Value)
				found = true
				break
			}
		}
		if !found {
			vm.trap(TrapTypeMismatch, "phi in bb%d of %s has no value for bb%d", b.ID, fr.fn.Name, prev)
		}
	}
	for i := 0; i < n; i++ {
		fr.regs[b.Instrs[i].Dst] = vals[i]
	}
	return n
}

func (vm *VM) switchTarget(fr *frame, s *mir.SwitchTerm) mir.BlockID {
	v := vm.operand(fr, s.Value)
	width := s.Value.Type.Bits
	for _, c := range s.Cases {
		if mask(uint64(c.Value), width) == v.Bits {
			return c.Target
		}
	}
	return s.Default
}

// invoke runs a call that may raise and picks the successor.
func (vm *VM) invoke(fr *frame, inv *mir.InvokeTerm) (next mir.BlockID) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		x, ok := r.(*Exception)
		if !ok {
			panic(r)
		}
		fr.exn = x.Payload
		next = inv.Unwind
	}()
	v := vm.call(fr, &inv.Call)
	if inv.Dst != mir.NoValueID {
		fr.regs[inv.Dst] = v
	}
	return inv.Normal
}

// throw raises an exception whose payload is the message pointer.
func (vm *VM) throw(payload uint64) {
	panic(&Exception{Payload: payload, Message: vm.CString(payload)})
}

func (vm *VM) call(fr *frame, c *mir.CallInstr) Value {
	target := vm.operand(fr, c.Callee)
	args := make([]Value, len(c.Args))
	for i, a := range c.Args {
		args[i] = vm.operand(fr, a)
	}
	return vm.invokeCallee(vm.resolve(target.Bits), args)
}

// CallAddr calls the function at a code address, as runtime routines do
// with the shims they receive.
func (vm *VM) CallAddr(addr uint64, args ...Value) Value {
	return vm.invokeCallee(vm.resolve(addr), args)
}

func (vm *VM) operand(fr *frame, o mir.Operand) Value {
	switch o.Kind {
	case mir.OperandValue:
		return fr.regs[o.Value]
	case mir.OperandConst:
		if o.Type.Kind == mir.TypeInt {
			return Value{Bits: mask(uint64(o.Int), o.Type.Bits)}
		}
		return Value{Bits: uint64(o.Int)}
	case mir.OperandFloat:
		return Value{Bits: floatBits(o.Float, o.Type.Bits)}
	case mir.OperandNull:
		return Value{}
	case mir.OperandUndef, mir.OperandZero:
		return zeroValue(o.Type)
	case mir.OperandGlobal:
		a, ok := vm.globals[o.Name]
		if !ok {
			vm.trap(TrapBadCall, "unknown global %s", o.Name)
		}
		return Value{Bits: a}
	case mir.OperandFunc:
		a, ok := vm.FuncAddr(o.Name)
		if !ok {
			vm.trap(TrapBadCall, "unknown function %s", o.Name)
		}
		return Value{Bits: a}
	}
	vm.trap(TrapTypeMismatch, "operand kind %d", o.Kind)
	return Value{}
}

func (vm *VM) exec(fr *frame, ins *mir.Instr) {
	var out Value
	switch ins.Kind {
	case mir.InstrBinary:
		x, y := vm.operand(fr, ins.Binary.X), vm.operand(fr, ins.Binary.Y)
		out = vm.binary(ins.Binary.Op, ins.Type, x, y)
	case mir.InstrOverflow:
		x, y := vm.operand(fr, ins.Overflow.X), vm.operand(fr, ins.Overflow.Y)
		r, o := overflow(ins.Overflow.Op, ins.Overflow.X.Type.Bits, x, y)
		out = Agg(r, Bool(o))
	case mir.InstrCmp:
		x, y := vm.operand(fr, ins.Cmp.X), vm.operand(fr, ins.Cmp.Y)
		out = Bool(compare(ins.Cmp.Pred, ins.Cmp.X.Type, x, y, vm.mem.ptr))
	case mir.InstrCast:
		out = vm.cast(ins.Cast.Op, ins.Cast.X.Type, ins.Type, vm.operand(fr, ins.Cast.X))
	case mir.InstrAlloca:
		out = Ptr(vm.stackAlloc(ins.Alloca.Elem.Size(vm.mem.ptr), ins.Alloca.Align))
	case mir.InstrLoad:
		out = vm.Load(ins.Type, vm.operand(fr, ins.Load.Addr).Bits)
	case mir.InstrStore:
		v := vm.operand(fr, ins.Store.Value)
		vm.Store(ins.Store.Value.Type, vm.operand(fr, ins.Store.Addr).Bits, v)
		return
	case mir.InstrPtrAdd:
		base := vm.operand(fr, ins.PtrAdd.Base)
		off := vm.operand(fr, ins.PtrAdd.Offset).Signed(ins.PtrAdd.Offset.Type.Bits)
		out = Ptr(mask(base.Bits+uint64(off), 8*vm.mem.ptr))
	case mir.InstrExtract:
		out = vm.operand(fr, ins.Extract.Agg).Field(ins.Extract.Index)
	case mir.InstrInsert:
		agg := vm.operand(fr, ins.Insert.Agg).clone()
		if ins.Insert.Index < 0 || ins.Insert.Index >= len(agg.Fields) {
			vm.trap(TrapTypeMismatch, "insert at %d into %s", ins.Insert.Index, ins.Type)
		}
		agg.Fields[ins.Insert.Index] = vm.operand(fr, ins.Insert.Value)
		out = agg
	case mir.InstrSelect:
		if vm.operand(fr, ins.Select.Cond).Truth() {
			out = vm.operand(fr, ins.Select.Then)
		} else {
			out = vm.operand(fr, ins.Select.Else)
		}
	case mir.InstrCall:
		out = vm.call(fr, &ins.Call)
	case mir.InstrLandingPad:
		out = Ptr(fr.exn)
	case mir.InstrPhi:
		vm.trap(TrapTypeMismatch, "phi after the start of bb%d in %s", fr.block, fr.fn.Name)
	default:
		vm.trap(TrapUnimplemented, "instruction kind %d", ins.Kind)
	}
	if ins.Dst != mir.NoValueID {
		fr.regs[ins.Dst] = out
	}
}

func (vm *VM) binary(op mir.BinOp, t mir.Type, x, y Value) Value {
	if t.Kind == mir.TypeFloat {
		a, b := x.Float(t.Bits), y.Float(t.Bits)
		var r float64
		switch op {
		case mir.BinFAdd:
			r = a + b
		case mir.BinFSub:
			r = a - b
		case mir.BinFMul:
			r = a * b
		case mir.BinFDiv:
			r = a / b
		case mir.BinFRem:
			r = math.Mod(a, b)
		default:
			vm.trap(TrapTypeMismatch, "integer op %s on %s", op, t)
		}
		return Value{Bits: floatBits(r, t.Bits)}
	}
	w := t.Bits
	if t.Kind == mir.TypePtr {
		w = 8 * vm.mem.ptr
	}
	ux, uy := x.Bits, y.Bits
	sx, sy := x.Signed(w), y.Signed(w)
	var r uint64
	switch op {
	case mir.BinAdd:
		r = ux + uy
	case mir.BinSub:
		r = ux - uy
	case mir.BinMul:
		r = ux * uy
	case mir.BinSDiv, mir.BinSRem:
		if sy == 0 {
			vm.trap(TrapDivideByZero, "%s by zero", op)
		}
		if sx == math.MinInt64 && sy == -1 {
			// Go would panic on the remainder; the quotient wraps.
			if op == mir.BinSDiv {
				r = uint64(sx)
			}
			break
		}
		if op == mir.BinSDiv {
			r = uint64(sx / sy)
		} else {
			r = uint64(sx % sy)
		}
	case mir.BinUDiv:
		if uy == 0 {
			vm.trap(TrapDivideByZero, "%s by zero", op)
		}
		r = ux / uy
	case mir.BinURem:
		if uy == 0 {
			vm.trap(TrapDivideByZero, "%s by zero", op)
		}
		r = ux % uy
	case mir.BinAnd:
		r = ux & uy
	case mir.BinOr:
		r = ux | uy
	case mir.BinXor:
		r = ux ^ uy
	case mir.BinShl:
		r = ux << uy
	case mir.BinLShr:
		r = ux >> uy
	case mir.BinAShr:
		r = uint64(sx >> uy)
	default:
		vm.trap(TrapTypeMismatch, "float op %s on %s", op, t)
	}
	if uy >= uint64(w) && (op == mir.BinShl || op == mir.BinLShr || op == mir.BinAShr) {
		r = 0
		if op == mir.BinAShr && sx < 0 {
			r = math.MaxUint64
		}
	}
	return Value{Bits: mask(r, w)}
}

// overflow computes op on w-bit integers and reports whether the exact
// result does not fit.
func overflow(op mir.OverflowOp, w int, x, y Value) (Value, bool) {
	ux, uy := x.Bits, y.Bits
	sx, sy := x.Signed(w), y.Signed(w)
	var r uint64
	var over bool
	switch op {
	case mir.OverflowSAdd:
		r = ux + uy
		s := Value{Bits: mask(r, w)}.Signed(w)
		over = (sx >= 0) == (sy >= 0) && (s >= 0) != (sx >= 0)
	case mir.OverflowSSub:
		r = ux - uy
		s := Value{Bits: mask(r, w)}.Signed(w)
		over = (sx >= 0) != (sy >= 0) && (s >= 0) != (sx >= 0)
	case mir.OverflowSMul:
		r = uint64(sx * sy)
		if w <= 32 {
			p := sx * sy
			over = p != Value{Bits: mask(uint64(p), w)}.Signed(w)
			break
		}
		hi, lo := bits.Mul64(absU(sx), absU(sy))
		neg := (sx < 0) != (sy < 0)
		limit := uint64(1) << (w - 1)
		over = hi != 0 || lo > limit || (lo == limit && !neg)
	case mir.OverflowUAdd:
		r = ux + uy
		over = r < ux || mask(r, w) != r
	case mir.OverflowUSub:
		r = ux - uy
		over = uy > ux
	case mir.OverflowUMul:
		hi, lo := bits.Mul64(ux, uy)
		r = lo
		over = hi != 0 || mask(lo, w) != lo
	}
	return Value{Bits: mask(r, w)}, over
}

func absU(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func compare(pred mir.CmpPred, t mir.Type, x, y Value, ptr int) bool {
	if pred.IsFloat() {
		a, b := x.Float(t.Bits), y.Float(t.Bits)
		nan := math.IsNaN(a) || math.IsNaN(b)
		switch pred {
		case mir.CmpFOEq:
			return !nan && a == b
		case mir.CmpFUNe:
			return nan || a != b
		case mir.CmpFOLt:
			return !nan && a < b
		case mir.CmpFOLe:
			return !nan && a <= b
		case mir.CmpFOGt:
			return !nan && a > b
		default:
			return !nan && a >= b
		}
	}
	w := t.Bits
	if t.Kind == mir.TypePtr {
		w = 8 * ptr
	}
	sx, sy := x.Signed(w), y.Signed(w)
	switch pred {
	case mir.CmpEq:
		return x.Bits == y.Bits
	case mir.CmpNe:
		return x.Bits != y.Bits
	case mir.CmpSLt:
		return sx < sy
	case mir.CmpSLe:
		return sx <= sy
	case mir.CmpSGt:
		return sx > sy
	case mir.CmpSGe:
		return sx >= sy
	case mir.CmpULt:
		return x.Bits < y.Bits
	case mir.CmpULe:
		return x.Bits <= y.Bits
	case mir.CmpUGt:
		return x.Bits > y.Bits
	default:
		return x.Bits >= y.Bits
	}
}

func (vm *VM) cast(op mir.CastOp, from, to mir.Type, x Value) Value {
	toBits := to.Bits
	if to.Kind == mir.TypePtr {
		toBits = 8 * vm.mem.ptr
	}
	fromBits := from.Bits
	if from.Kind == mir.TypePtr {
		fromBits = 8 * vm.mem.ptr
	}
	switch op {
	case mir.CastTrunc, mir.CastZExt, mir.CastPtrToInt, mir.CastIntToPtr, mir.CastBitcast:
		return Value{Bits: mask(x.Bits, toBits)}
	case mir.CastSExt:
		return Value{Bits: mask(uint64(x.Signed(fromBits)), toBits)}
	case mir.CastSIToFP:
		return Value{Bits: floatBits(float64(x.Signed(fromBits)), toBits)}
	case mir.CastUIToFP:
		return Value{Bits: floatBits(float64(x.Bits), toBits)}
	case mir.CastFPToSI:
		f := math.Trunc(x.Float(fromBits))
		if math.IsNaN(f) || f >= math.Ldexp(1, toBits-1) || f < -math.Ldexp(1, toBits-1) {
			return Value{}
		}
		return Value{Bits: mask(uint64(int64(f)), toBits)}
	case mir.CastFPExt, mir.CastFPTrunc:
		return Value{Bits: floatBits(x.Float(fromBits), toBits)}
	}
	vm.trap(TrapUnimplemented, "cast %s", op)
	return Value{}
}
