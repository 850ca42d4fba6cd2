package codegen

import (
	"fmt"

	"lgen/internal/layout"
	"lgen/internal/mir"
)

// equal compares two values of layout l structurally.
func (e *emitter) equal(x, y mir.Operand, l layout.Layout) mir.Operand {
	switch l.Kind {
	case layout.KindInt:
		return e.b.Cmp(mir.CmpEq, x, y)
	case layout.KindFloat:
		return e.b.Cmp(mir.CmpFOEq, x, y)
	case layout.KindFunctionPointer:
		return e.b.Cmp(mir.CmpEq, x, y)
	case layout.KindStr:
		return e.callRuntime(rtStrEqual, x, y)
	}
	if l.IsZeroSized() {
		return mir.Bool(true)
	}
	return e.b.Call(mir.I1(), mir.FuncAddr(e.g.eqHelper(l)), mir.CallConvFast, x, y)
}

func (g *Generator) eqHelper(l layout.Layout) string {
	name := fmt.Sprintf("#eq_%d", g.layoutID(l))
	t := g.basic(l)
	return g.helper(name, []mir.Type{t, t}, mir.I1(), mir.CallConvFast, func(e *emitter) {
		a, b := e.f.Arg(0), e.f.Arg(1)
		switch l.Kind {
		case layout.KindList:
			e.b.Ret(e.callRuntime(rtListEqual, a, b, e.word(l.Elem.StackSize(e.ptr())), e.g.eqPtrShim(*l.Elem)))
		case layout.KindDict:
			args := append([]mir.Operand{a, b}, e.entryDesc(*l.Key, *l.Value)...)
			args = append(args, e.g.eqPtrShim(*l.Value))
			e.b.Ret(e.callRuntime(rtDictEqual, args...))
		case layout.KindStruct:
			kept := layout.NonEmptyFields(l.Fields)
			if len(kept) == 1 {
				e.b.Ret(e.equal(a, b, kept[0]))
				return
			}
			result := mir.Bool(true)
			for i, f := range kept {
				result = e.b.Binary(mir.BinAnd, result, e.equal(e.b.Extract(a, i), e.b.Extract(b, i), f))
			}
			e.b.Ret(result)
		case layout.KindUnion:
			e.unionEq(a, b, l)
		default:
			panic(&InternalError{Proc: name, Layout: l.String(), Detail: "no equality for layout"})
		}
	})
}

// unionEq returns from the helper with the comparison of two union values.
// Heap values that are the same pointer are equal without a dereference.
func (e *emitter) unionEq(a, b mir.Operand, l layout.Layout) {
	u := l.Union
	if u.OnHeap() {
		e.ifThen(e.b.Cmp(mir.CmpEq, a, b), "same", func() { e.b.Ret(mir.Bool(true)) })
	}
	ta, tb := e.tagID(a, l), e.tagID(b, l)
	differ := e.block("tags_differ")
	compare := e.block("compare")
	e.b.If(e.b.Cmp(mir.CmpEq, ta, tb), compare, differ)
	e.b.SetBlock(differ)
	e.b.Ret(mir.Bool(false))

	e.b.SetBlock(compare)
	var cases []mir.SwitchCase
	var fieldSets [][]layout.Layout
	for id := 0; id < u.NumTags(); id++ {
		if u.IsNullable(id) {
			continue
		}
		fields := substituteAll(u.FieldsOf(id), l)
		if layout.Struct(fields...).IsZeroSized() {
			continue
		}
		cases = append(cases, mir.SwitchCase{Value: int64(id), Target: e.block("variant")})
		fieldSets = append(fieldSets, fields)
	}
	if len(cases) == 0 {
		e.b.Ret(mir.Bool(true))
		return
	}
	trivial := e.block("variant_empty")
	e.b.Switch(ta, cases, trivial)
	e.b.SetBlock(trivial)
	e.b.Ret(mir.Bool(true))
	for i, c := range cases {
		e.b.SetBlock(c.Target)
		baseA, baseB := e.payloadBase(a, l), e.payloadBase(b, l)
		offsets, _, _ := layout.StructOffsets(fieldSets[i], e.ptr())
		result := mir.Bool(true)
		k := 0
		for _, f := range fieldSets[i] {
			if f.IsZeroSized() {
				continue
			}
			t := e.basic(f)
			x := e.b.Load(t, e.b.PtrOffset(baseA, offsets[k]))
			y := e.b.Load(t, e.b.PtrOffset(baseB, offsets[k]))
			result = e.b.Binary(mir.BinAnd, result, e.equal(x, y, f))
			k++
		}
		e.b.Ret(result)
	}
}

// eqPtrShim compares two values of l through pointers, for runtime routines.
func (g *Generator) eqPtrShim(l layout.Layout) mir.Operand {
	name := fmt.Sprintf("#eq_ptr_%d", g.layoutID(l))
	return mir.FuncAddr(g.helper(name, []mir.Type{mir.Ptr(), mir.Ptr()}, mir.I1(), mir.CallConvC, func(e *emitter) {
		t := e.basic(l)
		e.b.Ret(e.equal(e.b.Load(t, e.f.Arg(0)), e.b.Load(t, e.f.Arg(1)), l))
	}))
}
