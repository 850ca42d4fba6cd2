package mir

import (
	"strconv"
	"strings"
)

type BlockID int32
type ValueID int32

const (
	NoBlockID BlockID = -1
	NoValueID ValueID = -1
)

// TypeKind enumerates machine types.
type TypeKind uint8

const (
	TypeVoid TypeKind = iota
	TypeInt
	TypeFloat
	TypePtr
	TypeStruct
	TypeArray
)

// Type is a machine-level type. Aggregates are laid out C-style.
type Type struct {
	Kind TypeKind

	Bits int // TypeInt, TypeFloat

	Fields []Type // TypeStruct

	Len  int   // TypeArray
	Elem *Type // TypeArray
}

func Void() Type { return Type{Kind: TypeVoid} }
func Int(bits int) Type { return Type{Kind: TypeInt, Bits: bits} }
func Float(bits int) Type { return Type{Kind: TypeFloat, Bits: bits} }
func Ptr() Type { return Type{Kind: TypePtr} }

func I1() Type { return Int(1) }
func I8() Type { return Int(8) }
func I32() Type { return Int(32) }
func I64() Type { return Int(64) }
func F64() Type { return Float(64) }

func Struct(fields ...Type) Type {
	return Type{Kind: TypeStruct, Fields: fields}
}

func Array(n int, elem Type) Type {
	return Type{Kind: TypeArray, Len: n, Elem: &elem}
}

func (t Type) IsVoid() bool { return t.Kind == TypeVoid }
func (t Type) IsInt() bool { return t.Kind == TypeInt }
func (t Type) IsPtr() bool { return t.Kind == TypePtr }
func (t Type) IsAggregate() bool {
	return t.Kind == TypeStruct || t.Kind == TypeArray
}

// Size returns the store size of t for a target with ptr-byte pointers.
func (t Type) Size(ptr int) int {
	switch t.Kind {
	case TypeInt:
		if t.Bits <= 8 {
			return 1
		}
		return t.Bits / 8
	case TypeFloat:
		return t.Bits / 8
	case TypePtr:
		return ptr
	case TypeStruct:
		size, _ := t.structLayout(ptr, nil)
		return size
	case TypeArray:
		return t.Len * t.Elem.Size(ptr)
	default:
		return 0
	}
}

// Align returns the ABI alignment of t.
func (t Type) Align(ptr int) int {
	switch t.Kind {
	case TypeInt, TypeFloat, TypePtr:
		return max(1, t.Size(ptr))
	case TypeStruct:
		_, align := t.structLayout(ptr, nil)
		return align
	case TypeArray:
		return t.Elem.Align(ptr)
	default:
		return 1
	}
}

// FieldOffset returns the byte offset of field i of a struct or element i of
// an array.
func (t Type) FieldOffset(i, ptr int) int {
	switch t.Kind {
	case TypeArray:
		return i * t.Elem.Size(ptr)
	case TypeStruct:
		var off int
		t.structLayout(ptr, func(idx, o int) {
			if idx == i {
				off = o
			}
		})
		return off
	default:
		return 0
	}
}

// Field returns the type of field i.
func (t Type) Field(i int) Type {
	if t.Kind == TypeArray {
		return *t.Elem
	}
	if t.Kind == TypeStruct && i >= 0 && i < len(t.Fields) {
		return t.Fields[i]
	}
	return Void()
}

// NumFields returns the number of direct members of an aggregate.
func (t Type) NumFields() int {
	switch t.Kind {
	case TypeStruct:
		return len(t.Fields)
	case TypeArray:
		return t.Len
	default:
		return 0
	}
}

func (t Type) structLayout(ptr int, visit func(i, off int)) (size, align int) {
	align = 1
	for i, f := range t.Fields {
		fa := f.Align(ptr)
		size = roundUp(size, fa)
		if visit != nil {
			visit(i, size)
		}
		size += f.Size(ptr)
		align = max(align, fa)
	}
	return roundUp(size, align), align
}

func roundUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// Equal reports structural equality.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TypeInt, TypeFloat:
		return t.Bits == o.Bits
	case TypeStruct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		return true
	case TypeArray:
		return t.Len == o.Len && t.Elem.Equal(*o.Elem)
	default:
		return true
	}
}

// String renders t in LLVM syntax.
func (t Type) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Type) write(b *strings.Builder) {
	switch t.Kind {
	case TypeVoid:
		b.WriteString("void")
	case TypeInt:
		b.WriteString("i")
		b.WriteString(strconv.Itoa(t.Bits))
	case TypeFloat:
		if t.Bits == 32 {
			b.WriteString("float")
		} else {
			b.WriteString("double")
		}
	case TypePtr:
		b.WriteString("ptr")
	case TypeStruct:
		b.WriteString("{")
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			f.write(b)
		}
		b.WriteString("}")
	case TypeArray:
		b.WriteString("[")
		b.WriteString(strconv.Itoa(t.Len))
		b.WriteString(" x ")
		t.Elem.write(b)
		b.WriteString("]")
	}
}
