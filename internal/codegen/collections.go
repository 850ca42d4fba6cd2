package codegen

import (
	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
)

// Collection ops follow one ownership rule: queries borrow their arguments,
// constructing ops consume every refcounted argument they receive.

// spill stores v in a fresh stack slot so runtime routines can read it as
// bytes.
func (e *emitter) spill(v mir.Operand, l layout.Layout) mir.Operand {
	slot := e.entryAlloca(v.Type, l.Alignment(e.ptr()))
	e.b.Store(v, slot)
	return slot
}

// elemDesc is the width, alignment and refcount shims of one element
// layout, in the order runtime routines take them.
func (e *emitter) elemDesc(l layout.Layout) []mir.Operand {
	return []mir.Operand{
		e.word(l.StackSize(e.ptr())),
		mir.Const(mir.I32(), int64(l.Alignment(e.ptr()))),
		e.g.incPtrShim(l),
		e.g.decPtrShim(l),
	}
}

// entryDesc describes dictionary entries {key, value}.
func (e *emitter) entryDesc(key, value layout.Layout) []mir.Operand {
	entry := layout.Struct(key, value)
	offsets, _, _ := layout.StructOffsets([]layout.Layout{key, value}, e.ptr())
	valueOffset := entry.StackSize(e.ptr())
	if !value.IsZeroSized() {
		valueOffset = offsets[len(offsets)-1]
	}
	return []mir.Operand{
		e.word(entry.StackSize(e.ptr())),
		mir.Const(mir.I32(), int64(entry.Alignment(e.ptr()))),
		e.word(key.StackSize(e.ptr())),
		e.word(valueOffset),
		e.word(value.StackSize(e.ptr())),
		e.g.eqPtrShim(key),
		e.g.incPtrShim(key),
		e.g.decPtrShim(key),
		e.g.incPtrShim(value),
		e.g.decPtrShim(value),
	}
}

func (e *emitter) expectKind(sym mono.Symbol, op mono.Op, b Binding, kind layout.Kind) {
	if b.Layout.Kind != kind {
		e.failLayout(sym, b.Layout, b.Value, "%s operand is not a %s", op, kind)
	}
}

func (e *emitter) strOp(sym mono.Symbol, op mono.Op, args []Binding, l layout.Layout) (mir.Operand, bool) {
	var r routine
	switch op {
	case mono.StrIsEmpty:
		e.arity(sym, op, args, 1)
		e.expectKind(sym, op, args[0], layout.KindStr)
		return e.b.Cmp(mir.CmpEq, e.b.Extract(args[0].Value, 1), e.word(0)), true
	case mono.StrCountGraphemes:
		e.arity(sym, op, args, 1)
		e.expectKind(sym, op, args[0], layout.KindStr)
		n := e.callRuntime(rtStrCountGraphemes, args[0].Value)
		return e.b.IntResize(n, l.Width, false), true
	case mono.StrFromInt:
		e.arity(sym, op, args, 1)
		if args[0].Layout.Kind != layout.KindInt {
			e.failLayout(sym, args[0].Layout, args[0].Value, "StrFromInt of a non-integer")
		}
		return e.callRuntime(rtStrFromInt, e.b.IntResize(args[0].Value, 64, args[0].Layout.Width > 1)), true
	case mono.StrJoinWith:
		e.arity(sym, op, args, 2)
		if args[0].Layout.Kind != layout.KindList || args[0].Layout.Elem.Kind != layout.KindStr {
			e.failLayout(sym, args[0].Layout, args[0].Value, "StrJoinWith needs a list of strings")
		}
		e.expectKind(sym, op, args[1], layout.KindStr)
		return e.callRuntime(rtStrJoinWith, args[0].Value, args[1].Value), true
	case mono.StrConcat:
		r = rtStrConcat
	case mono.StrStartsWith:
		r = rtStrStartsWith
	case mono.StrEndsWith:
		r = rtStrEndsWith
	case mono.StrSplit:
		r = rtStrSplit
	default:
		return mir.Operand{}, false
	}
	e.arity(sym, op, args, 2)
	e.expectKind(sym, op, args[0], layout.KindStr)
	e.expectKind(sym, op, args[1], layout.KindStr)
	return e.callRuntime(r, args[0].Value, args[1].Value), true
}

func (e *emitter) listOp(sym mono.Symbol, op mono.Op, args []Binding, l layout.Layout) (mir.Operand, bool) {
	switch op {
	case mono.ListLen:
		e.arity(sym, op, args, 1)
		e.expectKind(sym, op, args[0], layout.KindList)
		return e.b.IntResize(e.b.Extract(args[0].Value, 1), l.Width, false), true
	case mono.ListGetUnsafe:
		e.arity(sym, op, args, 2)
		e.expectKind(sym, op, args[0], layout.KindList)
		elem := *args[0].Layout.Elem
		if elem.IsZeroSized() {
			return mir.Zero(e.basic(elem)), true
		}
		idx := e.b.IntResize(args[1].Value, 8*e.ptr(), false)
		at := e.b.PtrAdd(e.b.Extract(args[0].Value, 0), e.b.Binary(mir.BinMul, idx, e.word(elem.StackSize(e.ptr()))))
		return e.b.Load(e.basic(elem), at), true
	case mono.ListSet:
		e.arity(sym, op, args, 3)
		e.expectKind(sym, op, args[0], layout.KindList)
		elem := *args[0].Layout.Elem
		idx := e.b.IntResize(args[1].Value, 8*e.ptr(), false)
		return e.callRuntime(rtListSet, append([]mir.Operand{args[0].Value, idx, e.spill(args[2].Value, elem)}, e.elemDesc(elem)...)...), true
	case mono.ListAppend, mono.ListPrepend:
		e.arity(sym, op, args, 2)
		e.expectKind(sym, op, args[0], layout.KindList)
		elem := *args[0].Layout.Elem
		r := rtListAppend
		if op == mono.ListPrepend {
			r = rtListPrepend
		}
		return e.callRuntime(r, append([]mir.Operand{args[0].Value, e.spill(args[1].Value, elem)}, e.elemDesc(elem)...)...), true
	case mono.ListConcat:
		e.arity(sym, op, args, 2)
		e.expectKind(sym, op, args[0], layout.KindList)
		if !layout.Equal(args[0].Layout, args[1].Layout) {
			e.failLayout(sym, args[1].Layout, args[1].Value, "ListConcat operands disagree: %s", args[0].Layout)
		}
		return e.callRuntime(rtListConcat, append([]mir.Operand{args[0].Value, args[1].Value}, e.elemDesc(*args[0].Layout.Elem)...)...), true
	case mono.ListSingle:
		e.arity(sym, op, args, 1)
		elem := e.resultElem(sym, l)
		return e.callRuntime(rtListSingle, append([]mir.Operand{e.spill(args[0].Value, elem)}, e.elemDesc(elem)...)...), true
	case mono.ListRepeat:
		e.arity(sym, op, args, 2)
		elem := e.resultElem(sym, l)
		n := e.b.IntResize(args[1].Value, 8*e.ptr(), false)
		return e.callRuntime(rtListRepeat, append([]mir.Operand{e.spill(args[0].Value, elem), n}, e.elemDesc(elem)...)...), true
	case mono.ListReverse:
		e.arity(sym, op, args, 1)
		e.expectKind(sym, op, args[0], layout.KindList)
		return e.callRuntime(rtListReverse, append([]mir.Operand{args[0].Value}, e.elemDesc(*args[0].Layout.Elem)...)...), true
	case mono.ListContains:
		e.arity(sym, op, args, 2)
		e.expectKind(sym, op, args[0], layout.KindList)
		elem := *args[0].Layout.Elem
		return e.callRuntime(rtListContains, args[0].Value, e.spill(args[1].Value, elem),
			e.word(elem.StackSize(e.ptr())), e.g.eqPtrShim(elem)), true
	case mono.ListSum:
		e.arity(sym, op, args, 1)
		e.expectKind(sym, op, args[0], layout.KindList)
		return e.listSum(sym, args[0]), true
	}
	return mir.Operand{}, false
}

func (e *emitter) resultElem(sym mono.Symbol, l layout.Layout) layout.Layout {
	if l.Kind != layout.KindList {
		e.fail(sym, "list constructor with result layout %s", l)
	}
	return *l.Elem
}

// listSum adds the elements of a numeric list; integer overflow raises.
func (e *emitter) listSum(sym mono.Symbol, list Binding) mir.Operand {
	elem := *list.Layout.Elem
	t := e.basic(elem)
	var zero mir.Operand
	switch elem.Kind {
	case layout.KindInt:
		zero = mir.Const(t, 0)
	case layout.KindFloat:
		zero = mir.ConstFloat(t, 0)
	default:
		e.failLayout(sym, list.Layout, list.Value, "ListSum of non-numeric elements")
	}
	acc := e.entryAlloca(t, elem.Alignment(e.ptr()))
	e.b.Store(zero, acc)
	n := e.b.Extract(list.Value, 1)
	e.forEach(e.b.Extract(list.Value, 0), n, elem.StackSize(e.ptr()), func(at mir.Operand) {
		x, cur := e.b.Load(t, at), e.b.Load(t, acc)
		if elem.Kind == layout.KindFloat {
			e.b.Store(e.b.Binary(mir.BinFAdd, cur, x), acc)
			return
		}
		r := e.b.Overflow(mir.OverflowSAdd, cur, x)
		e.raiseIf(e.b.Extract(r, 1), overflowMessages[mono.NumAdd])
		e.b.Store(e.b.Extract(r, 0), acc)
	})
	return e.b.Load(t, acc)
}

func (e *emitter) dictLayout(sym mono.Symbol, op mono.Op, b Binding) (key, value layout.Layout) {
	e.expectKind(sym, op, b, layout.KindDict)
	return *b.Layout.Key, *b.Layout.Value
}

func (e *emitter) dictOp(sym mono.Symbol, op mono.Op, args []Binding, l layout.Layout) (mir.Operand, bool) {
	switch op {
	case mono.DictEmpty:
		e.arity(sym, op, args, 0)
		return mir.Zero(fatType(e.ptr())), true
	case mono.DictSize:
		e.arity(sym, op, args, 1)
		e.expectKind(sym, op, args[0], layout.KindDict)
		return e.b.IntResize(e.b.Extract(args[0].Value, 1), l.Width, false), true
	case mono.DictInsert:
		e.arity(sym, op, args, 3)
		k, v := e.dictLayout(sym, op, args[0])
		call := []mir.Operand{args[0].Value, e.spill(args[1].Value, k), e.spill(args[2].Value, v)}
		return e.callRuntime(rtDictInsert, append(call, e.entryDesc(k, v)...)...), true
	case mono.DictRemove, mono.DictContains:
		e.arity(sym, op, args, 2)
		k, v := e.dictLayout(sym, op, args[0])
		r := rtDictRemove
		if op == mono.DictContains {
			r = rtDictContains
		}
		return e.callRuntime(r, append([]mir.Operand{args[0].Value, e.spill(args[1].Value, k)}, e.entryDesc(k, v)...)...), true
	case mono.DictGetUnsafe:
		e.arity(sym, op, args, 2)
		k, v := e.dictLayout(sym, op, args[0])
		out := e.entryAlloca(e.basic(v), v.Alignment(e.ptr()))
		call := []mir.Operand{args[0].Value, e.spill(args[1].Value, k), out}
		e.callRuntime(rtDictGetUnsafe, append(call, e.entryDesc(k, v)...)...)
		return e.b.Load(e.basic(v), out), true
	case mono.DictKeys, mono.DictValues:
		e.arity(sym, op, args, 1)
		k, v := e.dictLayout(sym, op, args[0])
		r, elem := rtDictKeys, k
		if op == mono.DictValues {
			r, elem = rtDictValues, v
		}
		call := append([]mir.Operand{args[0].Value}, e.entryDesc(k, v)...)
		return e.callRuntime(r, append(call, e.elemDesc(elem)...)...), true
	case mono.DictUnion:
		e.arity(sym, op, args, 2)
		k, v := e.dictLayout(sym, op, args[0])
		if !layout.Equal(args[0].Layout, args[1].Layout) {
			e.failLayout(sym, args[1].Layout, args[1].Value, "DictUnion operands disagree: %s", args[0].Layout)
		}
		return e.callRuntime(rtDictUnion, append([]mir.Operand{args[0].Value, args[1].Value}, e.entryDesc(k, v)...)...), true
	}
	return mir.Operand{}, false
}
