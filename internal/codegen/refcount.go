package codegen

import (
	"fmt"

	"lgen/internal/layout"
	"lgen/internal/mir"
)

// Heap blocks carry a signed, pointer-sized count directly before the data.
// A count of 1 means unique; a decrement that leaves the count at or below
// zero frees the block; a count of 0 marks a static block that is never
// modified.

// reserve allocates a refcounted block for one heap union value.
func (e *emitter) reserve(l layout.Layout) mir.Operand {
	size, align := layout.HeapBlockSize(l.Union, e.ptr())
	return e.reserveBytes(e.word(size), align)
}

// reserveBytes allocates size data bytes behind a header and sets the count
// to 1. It returns the data pointer.
func (e *emitter) reserveBytes(size mir.Operand, align int) mir.Operand {
	header := e.g.opts.Target.RefcountHeaderBytes(align)
	total := e.b.Binary(mir.BinAdd, size, e.word(header))
	start := e.b.Call(mir.Ptr(), e.g.runtime(rtAlloc), mir.CallConvC, total, mir.Const(mir.I32(), int64(max(align, e.ptr()))))
	data := e.b.PtrOffset(start, header)
	e.b.Store(e.word(1), e.b.PtrOffset(data, -e.ptr()))
	return data
}

// free releases the block whose data starts at data.
func (e *emitter) free(data mir.Operand, align int) {
	header := e.g.opts.Target.RefcountHeaderBytes(align)
	start := e.b.PtrOffset(data, -header)
	e.b.Call(mir.Void(), e.g.runtime(rtDealloc), mir.CallConvC, start, mir.Const(mir.I32(), int64(max(align, e.ptr()))))
}

// increment adds n references to v.
func (e *emitter) increment(v mir.Operand, l layout.Layout, n mir.Operand) {
	if !l.ContainsRefcounted() {
		return
	}
	e.b.Call(mir.Void(), mir.FuncAddr(e.g.incHelper(l)), mir.CallConvFast, v, n)
}

// decrement drops one reference to v, releasing children of freed blocks.
func (e *emitter) decrement(v mir.Operand, l layout.Layout) {
	if !l.ContainsRefcounted() {
		return
	}
	e.b.Call(mir.Void(), mir.FuncAddr(e.g.decHelper(l)), mir.CallConvFast, v)
}

// incHeaderHelper adds n to the count of a non-static block.
func (g *Generator) incHeaderHelper() string {
	return g.helper("#rc_inc_header", []mir.Type{mir.Ptr(), g.usize()}, mir.Void(), mir.CallConvFast, func(e *emitter) {
		data, n := e.f.Arg(0), e.f.Arg(1)
		countAddr := e.b.PtrOffset(data, -e.ptr())
		count := e.b.Load(e.usize(), countAddr)
		isStatic := e.b.Cmp(mir.CmpEq, count, e.word(0))
		bump, done := e.block("bump"), e.block("done")
		e.b.If(isStatic, done, bump)
		e.b.SetBlock(bump)
		e.b.Store(e.b.Binary(mir.BinAdd, count, n), countAddr)
		e.b.Goto(done)
		e.b.SetBlock(done)
		e.b.RetVoid()
	})
}

// decHeaderHelper drops one reference and reports whether the block must be
// freed now.
func (g *Generator) decHeaderHelper() string {
	return g.helper("#rc_dec_header", []mir.Type{mir.Ptr()}, mir.I1(), mir.CallConvFast, func(e *emitter) {
		data := e.f.Arg(0)
		countAddr := e.b.PtrOffset(data, -e.ptr())
		count := e.b.Load(e.usize(), countAddr)
		isStatic := e.b.Cmp(mir.CmpEq, count, e.word(0))
		drop, keep := e.block("drop"), e.block("static")
		e.b.If(isStatic, keep, drop)
		e.b.SetBlock(keep)
		e.b.Ret(mir.Bool(false))
		e.b.SetBlock(drop)
		next := e.b.Binary(mir.BinSub, count, e.word(1))
		e.b.Store(next, countAddr)
		e.b.Ret(e.b.Cmp(mir.CmpSLe, next, e.word(0)))
	})
}

// ifThen runs body in a block entered when cond holds and continues after it.
func (e *emitter) ifThen(cond mir.Operand, name string, body func()) {
	then, done := e.block(name), e.block(name+"_done")
	e.b.If(cond, then, done)
	e.b.SetBlock(then)
	body()
	if !e.b.Terminated() {
		e.b.Goto(done)
	}
	e.b.SetBlock(done)
}

// fatNonEmpty tests the length word of a string, list or dictionary. Small
// strings have the flag bit set and read as negative; empty values are 0.
func (e *emitter) fatNonEmpty(v mir.Operand) mir.Operand {
	return e.b.Cmp(mir.CmpSGt, e.b.Extract(v, 1), e.word(0))
}

// forEach iterates i over [0, n) and calls body with the element address
// base + i*stride.
func (e *emitter) forEach(base, n mir.Operand, stride int, body func(elem mir.Operand)) {
	pre := e.b.Cur
	head, loop, exit := e.block("loop_head"), e.block("loop_body"), e.block("loop_exit")
	e.b.Goto(head)
	e.b.SetBlock(head)
	i := e.b.Phi(e.usize(), mir.PhiIncoming{Block: pre, Value: e.word(0)})
	phiAt := len(e.f.Block(head).Instrs) - 1
	e.b.If(e.b.Cmp(mir.CmpULt, i, n), loop, exit)
	e.b.SetBlock(loop)
	body(e.b.PtrAdd(base, e.b.Binary(mir.BinMul, i, e.word(stride))))
	next := e.b.Binary(mir.BinAdd, i, e.word(1))
	phi := &e.f.Block(head).Instrs[phiAt]
	phi.Phi.Incoming = append(phi.Phi.Incoming, mir.PhiIncoming{Block: e.b.Cur, Value: next})
	e.b.Goto(head)
	e.b.SetBlock(exit)
}

// eachRefcountedField calls visit for every stored field of fields at base
// whose layout contains refcounted data.
func (e *emitter) eachRefcountedField(base mir.Operand, fields []layout.Layout, visit func(v mir.Operand, l layout.Layout)) {
	offsets, _, _ := layout.StructOffsets(fields, e.ptr())
	k := 0
	for _, f := range fields {
		if f.IsZeroSized() {
			continue
		}
		if f.ContainsRefcounted() {
			visit(e.b.Load(e.basic(f), e.b.PtrOffset(base, offsets[k])), f)
		}
		k++
	}
}

// eachVariant switches on tag and runs visit for the variants of l whose
// payloads hold refcounted data.
func (e *emitter) eachVariant(tag mir.Operand, l layout.Layout, visit func(tagID int, fields []layout.Layout)) {
	u := l.Union
	var cases []mir.SwitchCase
	var ids []int
	for id := 0; id < u.NumTags(); id++ {
		if u.IsNullable(id) {
			continue
		}
		fields := substituteAll(u.FieldsOf(id), l)
		if !layout.Struct(fields...).ContainsRefcounted() {
			continue
		}
		cases = append(cases, mir.SwitchCase{Value: int64(id), Target: e.block("variant")})
		ids = append(ids, id)
	}
	if len(cases) == 0 {
		return
	}
	done := e.block("variant_done")
	e.b.Switch(tag, cases, done)
	for i, c := range cases {
		e.b.SetBlock(c.Target)
		visit(ids[i], substituteAll(u.FieldsOf(ids[i]), l))
		e.b.Goto(done)
	}
	e.b.SetBlock(done)
}

// visitChildren walks the refcounted parts of an inline value.
func (e *emitter) visitChildren(v mir.Operand, l layout.Layout, visit func(v mir.Operand, l layout.Layout)) {
	switch l.Kind {
	case layout.KindStruct:
		kept := layout.NonEmptyFields(l.Fields)
		if len(kept) == 1 {
			visit(v, kept[0])
			return
		}
		for i, f := range kept {
			if f.ContainsRefcounted() {
				visit(e.b.Extract(v, i), f)
			}
		}
	case layout.KindUnion:
		base := e.payloadBase(v, l)
		e.eachVariant(e.b.Extract(v, 0), l, func(_ int, fields []layout.Layout) {
			e.eachRefcountedField(base, fields, visit)
		})
	}
}

func (g *Generator) incHelper(l layout.Layout) string {
	name := fmt.Sprintf("#rc_inc_%d", g.layoutID(l))
	return g.helper(name, []mir.Type{g.basic(l), g.usize()}, mir.Void(), mir.CallConvFast, func(e *emitter) {
		v, n := e.f.Arg(0), e.f.Arg(1)
		switch {
		case l.Kind == layout.KindStr || l.Kind == layout.KindList || l.Kind == layout.KindDict:
			e.ifThen(e.fatNonEmpty(v), "inc", func() {
				e.b.Call(mir.Void(), mir.FuncAddr(e.g.incHeaderHelper()), mir.CallConvFast, e.b.Extract(v, 0), n)
			})
		case l.Kind == layout.KindUnion && l.Union.OnHeap():
			e.ifThen(e.b.Cmp(mir.CmpNe, v, mir.Null()), "inc", func() {
				e.b.Call(mir.Void(), mir.FuncAddr(e.g.incHeaderHelper()), mir.CallConvFast, v, n)
			})
		default:
			e.visitChildren(v, l, func(c mir.Operand, cl layout.Layout) {
				e.increment(c, cl, n)
			})
		}
		e.b.RetVoid()
	})
}

func (g *Generator) decHelper(l layout.Layout) string {
	name := fmt.Sprintf("#rc_dec_%d", g.layoutID(l))
	return g.helper(name, []mir.Type{g.basic(l)}, mir.Void(), mir.CallConvFast, func(e *emitter) {
		v := e.f.Arg(0)
		switch l.Kind {
		case layout.KindStr:
			e.ifThen(e.fatNonEmpty(v), "dec", func() {
				data := e.b.Extract(v, 0)
				e.ifThen(e.decHeader(data), "free", func() { e.free(data, 1) })
			})
		case layout.KindList:
			e.decContainer(v, *l.Elem, layout.Struct(*l.Elem))
		case layout.KindDict:
			e.decContainer(v, layout.Struct(*l.Key, *l.Value), layout.Struct(*l.Key, *l.Value))
		case layout.KindUnion:
			if l.Union.OnHeap() {
				e.decHeapUnion(v, l)
				break
			}
			e.visitChildren(v, l, func(c mir.Operand, cl layout.Layout) { e.decrement(c, cl) })
		default:
			e.visitChildren(v, l, func(c mir.Operand, cl layout.Layout) { e.decrement(c, cl) })
		}
		e.b.RetVoid()
	})
}

func (e *emitter) decHeader(data mir.Operand) mir.Operand {
	return e.b.Call(mir.I1(), mir.FuncAddr(e.g.decHeaderHelper()), mir.CallConvFast, data)
}

// decContainer drops a list or dictionary buffer. Elements are released
// when the buffer is freed. entry describes one element as stored.
func (e *emitter) decContainer(v mir.Operand, elem, entry layout.Layout) {
	_, stride, align := layout.StructOffsets([]layout.Layout{elem}, e.ptr())
	e.ifThen(e.fatNonEmpty(v), "dec", func() {
		data := e.b.Extract(v, 0)
		e.ifThen(e.decHeader(data), "free", func() {
			if elem.ContainsRefcounted() {
				e.forEach(data, e.b.Extract(v, 1), stride, func(at mir.Operand) {
					e.eachRefcountedField(at, entry.Fields, func(c mir.Operand, cl layout.Layout) {
						e.decrement(c, cl)
					})
				})
			}
			e.free(data, align)
		})
	})
}

// decHeapUnion drops a reference to a heap union block. When a block is
// freed the payload of the stored variant is released; its last field of
// the union's own layout is released by looping instead of by a nested
// call, so long chains run in constant stack.
func (e *emitter) decHeapUnion(p mir.Operand, l layout.Layout) {
	u := l.Union
	_, align := layout.HeapBlockSize(u, e.ptr())
	pre := e.b.Cur
	head, live, freeB, exit := e.block("dec_head"), e.block("dec_live"), e.block("dec_free"), e.block("dec_exit")
	e.b.Goto(head)
	e.b.SetBlock(head)
	cur := e.b.Phi(mir.Ptr(), mir.PhiIncoming{Block: pre, Value: p})
	phiAt := len(e.f.Block(head).Instrs) - 1
	e.b.If(e.b.Cmp(mir.CmpNe, cur, mir.Null()), live, exit)
	e.b.SetBlock(live)
	e.b.If(e.decHeader(cur), freeB, exit)
	e.b.SetBlock(freeB)

	var again []mir.PhiIncoming
	release := func(base mir.Operand, fields []layout.Layout) {
		tail := -1
		for i, f := range fields {
			if layout.Equal(f, l) {
				tail = i
			}
		}
		offsets, _, _ := layout.StructOffsets(fields, e.ptr())
		var next mir.Operand
		k := 0
		for i, f := range fields {
			if f.IsZeroSized() {
				continue
			}
			at := e.b.PtrOffset(base, offsets[k])
			k++
			switch {
			case i == tail:
				next = e.b.Load(mir.Ptr(), at)
			case f.ContainsRefcounted():
				e.decrement(e.b.Load(e.basic(f), at), f)
			}
		}
		e.free(cur, align)
		if tail < 0 {
			e.b.Goto(exit)
			return
		}
		again = append(again, mir.PhiIncoming{Block: e.b.Cur, Value: next})
		e.b.Goto(head)
	}

	switch u.Shape {
	case layout.ShapeRecursive, layout.ShapeNullableWrapped:
		base := e.b.PtrOffset(cur, layout.TagBytes)
		tag := e.b.Load(mir.I64(), cur)
		var cases []mir.SwitchCase
		var variants [][]layout.Layout
		for id := 0; id < u.NumTags(); id++ {
			if u.IsNullable(id) {
				continue
			}
			fields := substituteAll(u.FieldsOf(id), l)
			if !layout.Struct(fields...).ContainsRefcounted() {
				continue
			}
			cases = append(cases, mir.SwitchCase{Value: int64(id), Target: e.block("dec_variant")})
			variants = append(variants, fields)
		}
		plain := e.block("dec_plain")
		if len(cases) == 0 {
			e.b.Goto(plain)
		} else {
			e.b.Switch(tag, cases, plain)
		}
		for i, c := range cases {
			e.b.SetBlock(c.Target)
			release(base, variants[i])
		}
		e.b.SetBlock(plain)
		release(base, nil)
	default:
		id := 0
		if u.Shape == layout.ShapeNullableUnwrapped {
			id = u.OtherID()
		}
		release(cur, substituteAll(u.FieldsOf(id), l))
	}

	phi := &e.f.Block(head).Instrs[phiAt]
	phi.Phi.Incoming = append(phi.Phi.Incoming, again...)
	e.b.SetBlock(exit)
}

// decRefHelper drops one reference to a container without visiting its
// elements.
func (g *Generator) decRefHelper(l layout.Layout) string {
	name := fmt.Sprintf("#rc_decref_%d", g.layoutID(l))
	return g.helper(name, []mir.Type{g.basic(l)}, mir.Void(), mir.CallConvFast, func(e *emitter) {
		v := e.f.Arg(0)
		switch {
		case l.Kind == layout.KindStr || l.Kind == layout.KindList || l.Kind == layout.KindDict:
			align := 1
			switch l.Kind {
			case layout.KindList:
				align = l.Elem.Alignment(e.ptr())
			case layout.KindDict:
				align = layout.Struct(*l.Key, *l.Value).Alignment(e.ptr())
			}
			e.ifThen(e.fatNonEmpty(v), "dec", func() {
				data := e.b.Extract(v, 0)
				e.ifThen(e.decHeader(data), "free", func() { e.free(data, align) })
			})
		case l.Kind == layout.KindUnion && l.Union.OnHeap():
			_, align := layout.HeapBlockSize(l.Union, e.ptr())
			e.ifThen(e.b.Cmp(mir.CmpNe, v, mir.Null()), "dec", func() {
				e.ifThen(e.decHeader(v), "free", func() { e.free(v, align) })
			})
		default:
			panic(&InternalError{Proc: name, Layout: l.String(), Detail: "decref of a layout without its own refcount"})
		}
		e.b.RetVoid()
	})
}

// incPtrShim adapts the increment helper of l to an element pointer, for
// runtime routines that see elements as bytes.
func (g *Generator) incPtrShim(l layout.Layout) mir.Operand {
	if !l.ContainsRefcounted() {
		return mir.Null()
	}
	name := fmt.Sprintf("#rc_inc_ptr_%d", g.layoutID(l))
	return mir.FuncAddr(g.helper(name, []mir.Type{mir.Ptr(), g.usize()}, mir.Void(), mir.CallConvC, func(e *emitter) {
		e.increment(e.b.Load(e.basic(l), e.f.Arg(0)), l, e.f.Arg(1))
		e.b.RetVoid()
	}))
}

func (g *Generator) decPtrShim(l layout.Layout) mir.Operand {
	if !l.ContainsRefcounted() {
		return mir.Null()
	}
	name := fmt.Sprintf("#rc_dec_ptr_%d", g.layoutID(l))
	return mir.FuncAddr(g.helper(name, []mir.Type{mir.Ptr()}, mir.Void(), mir.CallConvC, func(e *emitter) {
		e.decrement(e.b.Load(e.basic(l), e.f.Arg(0)), l)
		e.b.RetVoid()
	}))
}
