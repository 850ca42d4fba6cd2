package codegen

import (
	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
)

// closureDescType is the descriptor runtime routines receive for the
// function argument of a higher-order op:
//
//	{ptr caller, ptr data, ptr inc, ptr dec, i8 data_is_owned}
//
// caller is called as caller(data, arg ptrs..., out ptr). The runtime
// increments data once per call because the callee consumes it, and
// decrements it once at the end when it is owned.
func closureDescType() mir.Type {
	return mir.Struct(mir.Ptr(), mir.Ptr(), mir.Ptr(), mir.Ptr(), mir.I8())
}

// higherOrder lowers a built-in that calls back into ho.Proc.
func (e *emitter) higherOrder(sym mono.Symbol, ho mono.HigherOrder, args []Binding, l layout.Layout) mir.Operand {
	if !ho.Op.IsHigherOrder() {
		e.fail(sym, "op %s is not higher-order", ho.Op)
	}
	info := e.g.lookupProc(ho.Proc)
	captured := !ho.Captured.IsZeroSized() && ho.Captured.Kind != layout.KindInvalid
	var data mir.Operand
	if captured {
		if len(args) == 0 {
			e.fail(sym, "%s without its captured data", ho.Op)
		}
		data = args[len(args)-1].Value
		args = args[:len(args)-1]
	}
	desc := e.closureDesc(info, ho, data, captured)

	switch ho.Op {
	case mono.ListMap, mono.ListMap2, mono.ListMap3:
		n := ho.Op.ListArity()
		e.arity(sym, ho.Op, args, n)
		out := e.resultElem(sym, l)
		var call []mir.Operand
		for _, a := range args {
			e.expectKind(sym, ho.Op, a, layout.KindList)
			call = append(call, a.Value)
		}
		call = append(call, desc)
		for _, a := range args {
			call = append(call, e.elemDesc(*a.Layout.Elem)...)
		}
		call = append(call, e.elemDesc(out)...)
		r := map[mono.Op]routine{mono.ListMap: rtListMap, mono.ListMap2: rtListMap2, mono.ListMap3: rtListMap3}[ho.Op]
		return e.callRuntime(r, call...)

	case mono.ListKeepIf, mono.ListSortWith:
		e.arity(sym, ho.Op, args, 1)
		e.expectKind(sym, ho.Op, args[0], layout.KindList)
		r := rtListKeepIf
		if ho.Op == mono.ListSortWith {
			r = rtListSortWith
		}
		return e.callRuntime(r, append([]mir.Operand{args[0].Value, desc}, e.elemDesc(*args[0].Layout.Elem)...)...)

	case mono.ListKeepOks, mono.ListKeepErrs:
		e.arity(sym, ho.Op, args, 1)
		e.expectKind(sym, ho.Op, args[0], layout.KindList)
		res := info.proc.Result
		if !res.IsUnion(layout.ShapeNonRecursive) {
			e.failLayout(sym, res, mir.Operand{}, "%s callback must return an inline result union", ho.Op)
		}
		r := rtListKeepOks
		if ho.Op == mono.ListKeepErrs {
			r = rtListKeepErrs
		}
		call := append([]mir.Operand{args[0].Value, desc}, e.elemDesc(*args[0].Layout.Elem)...)
		call = append(call, e.word(res.StackSize(e.ptr())), e.g.decPtrShim(res))
		return e.callRuntime(r, append(call, e.elemDesc(e.resultElem(sym, l))...)...)

	case mono.ListWalk, mono.ListWalkBackwards, mono.ListWalkUntil, mono.DictWalk:
		e.arity(sym, ho.Op, args, 2)
		state, out := e.spill(args[1].Value, l), e.entryAlloca(e.basic(l), l.Alignment(e.ptr()))
		call := []mir.Operand{args[0].Value, state, out, desc}
		if ho.Op == mono.DictWalk {
			k, v := e.dictLayout(sym, ho.Op, args[0])
			call = append(call, e.entryDesc(k, v)...)
		} else {
			e.expectKind(sym, ho.Op, args[0], layout.KindList)
			call = append(call, e.elemDesc(*args[0].Layout.Elem)...)
		}
		call = append(call, e.word(l.StackSize(e.ptr())))
		r := map[mono.Op]routine{mono.ListWalk: rtListWalk, mono.ListWalkBackwards: rtListWalkBackwards, mono.ListWalkUntil: rtListWalkUntil, mono.DictWalk: rtDictWalk}[ho.Op]
		if ho.Op == mono.ListWalkUntil {
			step := info.proc.Result
			if !step.IsUnion(layout.ShapeNonRecursive) {
				e.failLayout(sym, step, mir.Operand{}, "ListWalkUntil callback must return an inline step union")
			}
			call = append(call, e.word(step.StackSize(e.ptr())))
		}
		e.callRuntime(r, call...)
		return e.b.Load(e.basic(l), out)
	}
	e.fail(sym, "unsupported higher-order op %s", ho.Op)
	return mir.Operand{}
}

// closureDesc builds the descriptor of the function argument. Captured data
// is copied to the stack; the descriptor points at the copy.
func (e *emitter) closureDesc(info *procInfo, ho mono.HigherOrder, data mir.Operand, captured bool) mir.Operand {
	t := closureDescType()
	desc := e.entryAlloca(t, e.ptr())
	dataPtr, inc, dec := mir.Null(), mir.Null(), mir.Null()
	if captured {
		dataPtr = e.spill(data, ho.Captured)
		inc, dec = e.g.incPtrShim(ho.Captured), e.g.decPtrShim(ho.Captured)
	}
	owned := int64(0)
	if ho.Owned {
		owned = 1
	}
	fields := []mir.Operand{mir.FuncAddr(e.g.hofCaller(info, captured)), dataPtr, inc, dec, mir.Const(mir.I8(), owned)}
	for i, f := range fields {
		e.b.Store(f, e.b.PtrOffset(desc, t.FieldOffset(i, e.ptr())))
	}
	return desc
}

// hofCaller adapts a procedure to the pointer-based calling shape runtime
// routines use: caller(data, arg ptrs..., out).
func (g *Generator) hofCaller(info *procInfo, captured bool) string {
	p := info.proc
	n := len(p.Args)
	if captured {
		n--
	}
	params := make([]mir.Type, 0, n+2)
	params = append(params, mir.Ptr())
	for i := 0; i < n; i++ {
		params = append(params, mir.Ptr())
	}
	params = append(params, mir.Ptr())
	name := "#hof_caller_" + info.name
	return g.helper(name, params, mir.Void(), mir.CallConvC, func(e *emitter) {
		args := make([]mir.Operand, 0, len(p.Args))
		for i := 0; i < n; i++ {
			args = append(args, e.b.Load(e.basic(p.Args[i].Layout), e.f.Arg(i+1)))
		}
		if captured {
			args = append(args, e.b.Load(e.basic(p.Args[n].Layout), e.f.Arg(0)))
		}
		r := e.b.Call(info.fn.Result, mir.FuncAddr(info.name), mir.CallConvFast, args...)
		if !p.Result.IsZeroSized() {
			e.b.Store(r, e.f.Arg(n+1))
		}
		e.b.RetVoid()
	})
}
