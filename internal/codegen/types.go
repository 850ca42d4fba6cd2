package codegen

import (
	"lgen/internal/layout"
	"lgen/internal/mir"
)

// BasicType maps a layout to the machine type of its values.
func BasicType(l layout.Layout, ptr int) mir.Type {
	switch l.Kind {
	case layout.KindInt:
		return mir.Int(l.Width)
	case layout.KindFloat:
		return mir.Float(l.Width)
	case layout.KindStr, layout.KindList, layout.KindDict:
		return fatType(ptr)
	case layout.KindStruct:
		kept := layout.NonEmptyFields(l.Fields)
		if len(kept) == 1 {
			return BasicType(kept[0], ptr)
		}
		return variantType(kept, ptr)
	case layout.KindUnion:
		if l.Union.OnHeap() {
			return mir.Ptr()
		}
		return inlineUnionType(l.Union, ptr)
	case layout.KindRecursivePointer, layout.KindFunctionPointer:
		return mir.Ptr()
	default:
		panic(&InternalError{Layout: l.String(), Detail: "no machine type for layout"})
	}
}

// fatType is {ptr, usize}, shared by strings, lists and dictionaries.
func fatType(ptr int) mir.Type {
	return mir.Struct(mir.Ptr(), mir.Int(8*ptr))
}

// variantType is the padded struct of the stored fields of a variant. Its
// field offsets agree with layout.StructOffsets.
func variantType(fields []layout.Layout, ptr int) mir.Type {
	kept := layout.NonEmptyFields(fields)
	out := make([]mir.Type, len(kept))
	for i, f := range kept {
		out[i] = BasicType(f, ptr)
	}
	return mir.Struct(out...)
}

func inlineUnionType(u *layout.UnionLayout, ptr int) mir.Type {
	return mir.Struct(mir.I64(), mir.Array(layout.PayloadWords(u, ptr), mir.I64()))
}

// substituteRec replaces RecursivePointer in l with the enclosing union u.
// Nested unions keep their own placeholders.
func substituteRec(l, u layout.Layout) layout.Layout {
	switch l.Kind {
	case layout.KindRecursivePointer:
		return u
	case layout.KindStruct:
		fields := make([]layout.Layout, len(l.Fields))
		for i, f := range l.Fields {
			fields[i] = substituteRec(f, u)
		}
		return layout.Struct(fields...)
	case layout.KindList:
		return layout.List(substituteRec(*l.Elem, u))
	case layout.KindDict:
		return layout.Dict(substituteRec(*l.Key, u), substituteRec(*l.Value, u))
	default:
		return l
	}
}

func substituteAll(fields []layout.Layout, u layout.Layout) []layout.Layout {
	out := make([]layout.Layout, len(fields))
	for i, f := range fields {
		out[i] = substituteRec(f, u)
	}
	return out
}

// storedIndex maps a declared field index to its index among stored fields,
// or -1 when the field is zero-sized.
func storedIndex(fields []layout.Layout, idx int) int {
	if idx < 0 || idx >= len(fields) || fields[idx].IsZeroSized() {
		return -1
	}
	n := 0
	for i := 0; i < idx; i++ {
		if !fields[i].IsZeroSized() {
			n++
		}
	}
	return n
}

// usize is the pointer-sized integer type.
func (g *Generator) usize() mir.Type { return mir.Int(8 * g.ptr) }

func (g *Generator) basic(l layout.Layout) mir.Type { return BasicType(l, g.ptr) }
