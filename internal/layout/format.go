package layout

import (
	"fmt"
	"strings"
)

// String renders l in the syntax accepted by Parse.
func (l Layout) String() string {
	var b strings.Builder
	writeLayout(&b, l)
	return b.String()
}

func writeLayout(b *strings.Builder, l Layout) {
	switch l.Kind {
	case KindInt:
		fmt.Fprintf(b, "i%d", l.Width)
	case KindFloat:
		fmt.Fprintf(b, "f%d", l.Width)
	case KindStr:
		b.WriteString("str")
	case KindList:
		b.WriteString("list<")
		writeOpt(b, l.Elem)
		b.WriteString(">")
	case KindDict:
		b.WriteString("dict<")
		writeOpt(b, l.Key)
		b.WriteString(", ")
		writeOpt(b, l.Value)
		b.WriteString(">")
	case KindStruct:
		b.WriteString("{")
		writeList(b, l.Fields)
		b.WriteString("}")
	case KindRecursivePointer:
		b.WriteString("rec")
	case KindFunctionPointer:
		b.WriteString("fn(")
		writeList(b, l.Args)
		b.WriteString(") -> ")
		writeOpt(b, l.Result)
	case KindUnion:
		writeUnion(b, l.Union)
	default:
		b.WriteString("<invalid>")
	}
}

func writeUnion(b *strings.Builder, u *UnionLayout) {
	if u == nil {
		b.WriteString("<invalid union>")
		return
	}
	switch u.Shape {
	case ShapeNonRecursive, ShapeRecursive:
		b.WriteString(u.Shape.String())
		writeVariants(b, u.Tags)
	case ShapeNonNullableUnwrapped:
		b.WriteString("nnu")
		writeVariant(b, firstTag(u))
	case ShapeNullableWrapped:
		fmt.Fprintf(b, "nw<%d>", u.NullableID)
		writeVariants(b, u.Tags)
	case ShapeNullableUnwrapped:
		fmt.Fprintf(b, "nu<%d>", u.NullableID)
		writeVariant(b, firstTag(u))
	default:
		b.WriteString("<invalid union>")
	}
}

func firstTag(u *UnionLayout) []Layout {
	if len(u.Tags) == 0 {
		return nil
	}
	return u.Tags[0]
}

func writeVariants(b *strings.Builder, tags [][]Layout) {
	b.WriteString("[")
	for i, tag := range tags {
		if i > 0 {
			b.WriteString(" | ")
		}
		writeVariant(b, tag)
	}
	b.WriteString("]")
}

func writeVariant(b *strings.Builder, fields []Layout) {
	b.WriteString("(")
	writeList(b, fields)
	b.WriteString(")")
}

func writeList(b *strings.Builder, ls []Layout) {
	for i, l := range ls {
		if i > 0 {
			b.WriteString(", ")
		}
		writeLayout(b, l)
	}
}

func writeOpt(b *strings.Builder, l *Layout) {
	if l == nil {
		b.WriteString("?")
		return
	}
	writeLayout(b, *l)
}
