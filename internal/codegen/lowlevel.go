package codegen

import (
	"math"

	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
)

// Ordering values returned by NumCompare and sort comparators.
const (
	orderEQ = 0
	orderGT = 1
	orderLT = 2
)

// call lowers a call expression bound to sym with result layout l.
func (e *emitter) call(scope Scope, sym mono.Symbol, x *mono.Call, l layout.Layout) mir.Operand {
	switch ct := x.Type.(type) {
	case mono.ByName:
		info := e.g.lookupProc(ct.Proc)
		if len(x.Args) != len(info.proc.Args) {
			e.fail(sym, "call to %s with %d args, want %d", info.name, len(x.Args), len(info.proc.Args))
		}
		return e.b.Call(info.fn.Result, mir.FuncAddr(info.name), mir.CallConvFast, e.args(scope, x.Args)...)
	case mono.LowLevel:
		return e.lowLevel(sym, ct.Op, e.bindings(scope, x.Args), l)
	case mono.HigherOrder:
		return e.higherOrder(sym, ct, e.bindings(scope, x.Args), l)
	case mono.Foreign:
		return e.foreign(sym, ct, e.bindings(scope, x.Args))
	default:
		e.fail(sym, "unsupported call type %T", x.Type)
		return mir.Operand{}
	}
}

func (e *emitter) bindings(scope Scope, syms []mono.Symbol) []Binding {
	out := make([]Binding, len(syms))
	for i, s := range syms {
		out[i] = e.lookup(scope, s)
	}
	return out
}

func (e *emitter) arity(sym mono.Symbol, op mono.Op, args []Binding, n int) {
	if len(args) != n {
		e.fail(sym, "%s takes %d arguments, got %d", op, n, len(args))
	}
}

// numeric returns the layout shared by numeric operands.
func (e *emitter) numeric(sym mono.Symbol, op mono.Op, args []Binding) layout.Layout {
	l := args[0].Layout
	if l.Kind != layout.KindInt && l.Kind != layout.KindFloat {
		e.failLayout(sym, l, args[0].Value, "%s on a non-numeric value", op)
	}
	for _, a := range args[1:] {
		if !layout.Equal(a.Layout, l) {
			e.failLayout(sym, a.Layout, a.Value, "%s operands disagree: %s", op, l)
		}
	}
	return l
}

// lowLevel lowers a direct built-in operation.
func (e *emitter) lowLevel(sym mono.Symbol, op mono.Op, args []Binding, l layout.Layout) mir.Operand {
	switch op {
	case mono.NumAdd, mono.NumSub, mono.NumMul:
		e.arity(sym, op, args, 2)
		return e.arith(sym, op, args)
	case mono.NumAddWrap, mono.NumSubWrap, mono.NumMulWrap:
		e.arity(sym, op, args, 2)
		nl := e.numeric(sym, op, args)
		return e.b.Binary(wrapOp(op, nl.Kind == layout.KindFloat), args[0].Value, args[1].Value)
	case mono.NumAddChecked, mono.NumSubChecked, mono.NumMulChecked:
		e.arity(sym, op, args, 2)
		if e.numeric(sym, op, args).Kind != layout.KindInt {
			e.failLayout(sym, args[0].Layout, args[0].Value, "%s needs integers", op)
		}
		return e.b.Overflow(overflowOp(op), args[0].Value, args[1].Value)
	case mono.NumDivUnchecked, mono.NumRemUnchecked:
		e.arity(sym, op, args, 2)
		isFloat := e.numeric(sym, op, args).Kind == layout.KindFloat
		bop := mir.BinSDiv
		switch {
		case op == mono.NumDivUnchecked && isFloat:
			bop = mir.BinFDiv
		case op == mono.NumRemUnchecked && isFloat:
			bop = mir.BinFRem
		case op == mono.NumRemUnchecked:
			bop = mir.BinSRem
		}
		return e.b.Binary(bop, args[0].Value, args[1].Value)
	case mono.NumNeg:
		e.arity(sym, op, args, 1)
		return e.negate(sym, args[0])
	case mono.NumAbs:
		e.arity(sym, op, args, 1)
		return e.abs(sym, args[0])
	case mono.NumPowInt:
		e.arity(sym, op, args, 2)
		nl := e.numeric(sym, op, args)
		if nl.Kind != layout.KindInt {
			e.failLayout(sym, nl, args[0].Value, "NumPowInt needs integers")
		}
		r := e.callRuntime(rtNumPowInt, e.b.IntResize(args[0].Value, 64, true), e.b.IntResize(args[1].Value, 64, true))
		return e.b.IntResize(r, nl.Width, true)

	case mono.Eq, mono.NotEq:
		e.arity(sym, op, args, 2)
		if !layout.Equal(args[0].Layout, args[1].Layout) {
			e.failLayout(sym, args[1].Layout, args[1].Value, "%s operands disagree: %s", op, args[0].Layout)
		}
		eq := e.equal(args[0].Value, args[1].Value, args[0].Layout)
		if op == mono.NotEq {
			return e.b.Binary(mir.BinXor, eq, mir.Bool(true))
		}
		return eq
	case mono.NumLt, mono.NumLte, mono.NumGt, mono.NumGte:
		e.arity(sym, op, args, 2)
		isFloat := e.numeric(sym, op, args).Kind == layout.KindFloat
		return e.b.Cmp(comparePred(op, isFloat), args[0].Value, args[1].Value)
	case mono.NumCompare:
		e.arity(sym, op, args, 2)
		isFloat := e.numeric(sym, op, args).Kind == layout.KindFloat
		x, y := args[0].Value, args[1].Value
		lt := e.b.Cmp(comparePred(mono.NumLt, isFloat), x, y)
		gt := e.b.Cmp(comparePred(mono.NumGt, isFloat), x, y)
		i8 := func(v int64) mir.Operand { return mir.Const(mir.I8(), v) }
		return e.b.Select(lt, i8(orderLT), e.b.Select(gt, i8(orderGT), i8(orderEQ)))
	case mono.And, mono.Or:
		e.arity(sym, op, args, 2)
		bop := mir.BinAnd
		if op == mono.Or {
			bop = mir.BinOr
		}
		return e.b.Binary(bop, args[0].Value, args[1].Value)
	case mono.Not:
		e.arity(sym, op, args, 1)
		return e.b.Binary(mir.BinXor, args[0].Value, mir.Bool(true))
	case mono.NumBitwiseAnd, mono.NumBitwiseOr, mono.NumBitwiseXor:
		e.arity(sym, op, args, 2)
		e.numeric(sym, op, args)
		bop := map[mono.Op]mir.BinOp{mono.NumBitwiseAnd: mir.BinAnd, mono.NumBitwiseOr: mir.BinOr, mono.NumBitwiseXor: mir.BinXor}[op]
		return e.b.Binary(bop, args[0].Value, args[1].Value)
	case mono.NumShiftLeftBy, mono.NumShiftRightBy, mono.NumShiftRightZfBy:
		e.arity(sym, op, args, 2)
		x := args[0].Value
		if args[0].Layout.Kind != layout.KindInt || args[1].Layout.Kind != layout.KindInt {
			e.failLayout(sym, args[0].Layout, x, "%s needs integers", op)
		}
		by := e.b.IntResize(args[1].Value, x.Type.Bits, false)
		bop := map[mono.Op]mir.BinOp{mono.NumShiftLeftBy: mir.BinShl, mono.NumShiftRightBy: mir.BinAShr, mono.NumShiftRightZfBy: mir.BinLShr}[op]
		return e.b.Binary(bop, x, by)

	case mono.NumIntCast:
		e.arity(sym, op, args, 1)
		if args[0].Layout.Kind != layout.KindInt || l.Kind != layout.KindInt {
			e.failLayout(sym, args[0].Layout, args[0].Value, "NumIntCast to %s", l)
		}
		return e.b.IntResize(args[0].Value, l.Width, args[0].Layout.Width > 1)
	case mono.NumToFloat:
		e.arity(sym, op, args, 1)
		if l.Kind != layout.KindFloat {
			e.fail(sym, "NumToFloat result layout %s", l)
		}
		return e.toFloat(args[0], l)
	case mono.NumFloor, mono.NumCeiling, mono.NumRound:
		e.arity(sym, op, args, 1)
		name := map[mono.Op]string{mono.NumFloor: "floor", mono.NumCeiling: "ceil", mono.NumRound: "round"}[op]
		return e.rounding(sym, name, args[0], l)
	case mono.NumSqrtUnchecked:
		e.arity(sym, op, args, 1)
		x := args[0].Value
		if args[0].Layout.Kind != layout.KindFloat {
			e.failLayout(sym, args[0].Layout, x, "square root of an integer")
		}
		return e.b.Call(x.Type, e.floatIntrinsic("sqrt", x.Type), mir.CallConvC, x)

	case mono.ExpectTrue:
		e.arity(sym, op, args, 1)
		e.raiseIf(e.b.Binary(mir.BinXor, args[0].Value, mir.Bool(true)), "assert failed!")
		return mir.Zero(e.basic(l))
	}

	if v, ok := e.strOp(sym, op, args, l); ok {
		return v
	}
	if v, ok := e.listOp(sym, op, args, l); ok {
		return v
	}
	if v, ok := e.dictOp(sym, op, args, l); ok {
		return v
	}
	e.fail(sym, "op %s is not a direct low-level op", op)
	return mir.Operand{}
}

var overflowMessages = map[mono.Op]string{
	mono.NumAdd: "integer addition overflowed!",
	mono.NumSub: "integer subtraction overflowed!",
	mono.NumMul: "integer multiplication overflowed!",
}

// arith lowers the raising arithmetic ops; floats never raise.
func (e *emitter) arith(sym mono.Symbol, op mono.Op, args []Binding) mir.Operand {
	nl := e.numeric(sym, op, args)
	if nl.Kind == layout.KindFloat {
		return e.b.Binary(wrapOp(op, true), args[0].Value, args[1].Value)
	}
	r := e.b.Overflow(overflowOp(op), args[0].Value, args[1].Value)
	e.raiseIf(e.b.Extract(r, 1), overflowMessages[op])
	return e.b.Extract(r, 0)
}

func wrapOp(op mono.Op, isFloat bool) mir.BinOp {
	switch op {
	case mono.NumAdd, mono.NumAddWrap:
		if isFloat {
			return mir.BinFAdd
		}
		return mir.BinAdd
	case mono.NumSub, mono.NumSubWrap:
		if isFloat {
			return mir.BinFSub
		}
		return mir.BinSub
	default:
		if isFloat {
			return mir.BinFMul
		}
		return mir.BinMul
	}
}

func overflowOp(op mono.Op) mir.OverflowOp {
	switch op {
	case mono.NumAdd, mono.NumAddChecked:
		return mir.OverflowSAdd
	case mono.NumSub, mono.NumSubChecked:
		return mir.OverflowSSub
	default:
		return mir.OverflowSMul
	}
}

func comparePred(op mono.Op, isFloat bool) mir.CmpPred {
	switch op {
	case mono.NumLt:
		if isFloat {
			return mir.CmpFOLt
		}
		return mir.CmpSLt
	case mono.NumLte:
		if isFloat {
			return mir.CmpFOLe
		}
		return mir.CmpSLe
	case mono.NumGt:
		if isFloat {
			return mir.CmpFOGt
		}
		return mir.CmpSGt
	default:
		if isFloat {
			return mir.CmpFOGe
		}
		return mir.CmpSGe
	}
}

func minInt(bits int) int64 {
	if bits >= 64 {
		return math.MinInt64
	}
	return -1 << (bits - 1)
}

func (e *emitter) negate(sym mono.Symbol, a Binding) mir.Operand {
	x := a.Value
	switch a.Layout.Kind {
	case layout.KindFloat:
		return e.b.Binary(mir.BinFSub, mir.ConstFloat(x.Type, math.Copysign(0, -1)), x)
	case layout.KindInt:
		e.raiseIf(e.b.Cmp(mir.CmpEq, x, mir.Const(x.Type, minInt(x.Type.Bits))),
			"integer negation overflowed because its argument is the minimum value")
		return e.b.Binary(mir.BinSub, mir.Const(x.Type, 0), x)
	}
	e.failLayout(sym, a.Layout, x, "negation of a non-numeric value")
	return mir.Operand{}
}

func (e *emitter) abs(sym mono.Symbol, a Binding) mir.Operand {
	x := a.Value
	switch a.Layout.Kind {
	case layout.KindFloat:
		neg := e.b.Cmp(mir.CmpFOLt, x, mir.ConstFloat(x.Type, 0))
		return e.b.Select(neg, e.b.Binary(mir.BinFSub, mir.ConstFloat(x.Type, math.Copysign(0, -1)), x), x)
	case layout.KindInt:
		e.raiseIf(e.b.Cmp(mir.CmpEq, x, mir.Const(x.Type, minInt(x.Type.Bits))),
			"integer absolute overflowed because its argument is the minimum value")
		neg := e.b.Cmp(mir.CmpSLt, x, mir.Const(x.Type, 0))
		return e.b.Select(neg, e.b.Binary(mir.BinSub, mir.Const(x.Type, 0), x), x)
	}
	e.failLayout(sym, a.Layout, x, "absolute value of a non-numeric value")
	return mir.Operand{}
}

func (e *emitter) toFloat(a Binding, l layout.Layout) mir.Operand {
	to := mir.Float(l.Width)
	x := a.Value
	switch {
	case a.Layout.Kind == layout.KindInt:
		return e.b.Cast(mir.CastSIToFP, x, to)
	case x.Type.Bits < l.Width:
		return e.b.Cast(mir.CastFPExt, x, to)
	case x.Type.Bits > l.Width:
		return e.b.Cast(mir.CastFPTrunc, x, to)
	default:
		return x
	}
}

// rounding applies a float rounding intrinsic and converts to the integer
// result layout.
func (e *emitter) rounding(sym mono.Symbol, name string, a Binding, l layout.Layout) mir.Operand {
	x := a.Value
	if a.Layout.Kind != layout.KindFloat {
		e.failLayout(sym, a.Layout, x, "%s of a non-float value", name)
	}
	r := e.b.Call(x.Type, e.floatIntrinsic(name, x.Type), mir.CallConvC, x)
	if l.Kind == layout.KindFloat {
		return r
	}
	return e.b.Cast(mir.CastFPToSI, r, mir.Int(l.Width))
}

func (e *emitter) floatIntrinsic(name string, t mir.Type) mir.Operand {
	suffix := "f64"
	if t.Bits == 32 {
		suffix = "f32"
	}
	return e.g.intrinsic("llvm."+name+"."+suffix, []mir.Type{t}, t)
}
