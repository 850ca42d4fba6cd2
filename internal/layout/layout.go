package layout

// Kind discriminates the closed set of layout variants.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindInt is a fixed-width integer; width 1 is a boolean.
	KindInt
	// KindFloat is an IEEE float of width 32 or 64.
	KindFloat
	// KindStr is the built-in string: {ptr, len} or an inline small string.
	KindStr
	// KindList is the built-in list: {ptr, len} over a refcounted buffer.
	KindList
	// KindDict is the built-in dictionary: {ptr, len} over refcounted entries.
	KindDict
	// KindStruct is an ordered record of fields.
	KindStruct
	// KindUnion is a tagged union in one of five shapes.
	KindUnion
	// KindRecursivePointer stands for the enclosing union inside its own fields.
	KindRecursivePointer
	// KindFunctionPointer is a code pointer.
	KindFunctionPointer
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindRecursivePointer:
		return "rec"
	case KindFunctionPointer:
		return "fn"
	default:
		return "invalid"
	}
}

// Shape is the physical encoding of a union.
type Shape uint8

const (
	// ShapeNonRecursive stores tag + widest payload inline.
	ShapeNonRecursive Shape = iota + 1
	// ShapeRecursive stores tag + payload behind a refcounted pointer.
	ShapeRecursive
	// ShapeNonNullableUnwrapped has one variant, heap allocated, no tag.
	ShapeNonNullableUnwrapped
	// ShapeNullableWrapped uses null for one variant and a tag word for the rest.
	ShapeNullableWrapped
	// ShapeNullableUnwrapped has two variants: null, and an untagged block.
	ShapeNullableUnwrapped
)

func (s Shape) String() string {
	switch s {
	case ShapeNonRecursive:
		return "union"
	case ShapeRecursive:
		return "rec_union"
	case ShapeNonNullableUnwrapped:
		return "nnu"
	case ShapeNullableWrapped:
		return "nw"
	case ShapeNullableUnwrapped:
		return "nu"
	default:
		return "invalid"
	}
}

// Layout describes the memory shape of a value, independent of source types.
type Layout struct {
	Kind Kind

	Width int // KindInt, KindFloat: bits

	Elem  *Layout // KindList
	Key   *Layout // KindDict
	Value *Layout // KindDict

	Fields []Layout // KindStruct

	Union *UnionLayout // KindUnion

	Args   []Layout // KindFunctionPointer
	Result *Layout  // KindFunctionPointer
}

// UnionLayout holds the payload field layouts of each stored variant.
//
// Tags never include the discriminant. For ShapeNullableWrapped the nullable
// variant is absent from Tags; for the unwrapped shapes Tags has one entry.
type UnionLayout struct {
	Shape      Shape
	Tags       [][]Layout
	NullableID int
}

func Int(width int) Layout { return Layout{Kind: KindInt, Width: width} }
func Bool() Layout { return Int(1) }
func U8() Layout { return Int(8) }
func I64() Layout { return Int(64) }
func Float(width int) Layout {
	return Layout{Kind: KindFloat, Width: width}
}
func F64() Layout { return Float(64) }
func Str() Layout { return Layout{Kind: KindStr} }

func List(elem Layout) Layout {
	return Layout{Kind: KindList, Elem: &elem}
}

func Dict(key, value Layout) Layout {
	return Layout{Kind: KindDict, Key: &key, Value: &value}
}

func Struct(fields ...Layout) Layout {
	return Layout{Kind: KindStruct, Fields: fields}
}

// Unit is the empty struct; it is zero-sized.
func Unit() Layout { return Struct() }

func RecursivePointer() Layout { return Layout{Kind: KindRecursivePointer} }

func FunctionPointer(args []Layout, result Layout) Layout {
	return Layout{Kind: KindFunctionPointer, Args: args, Result: &result}
}

func unionOf(u UnionLayout) Layout {
	return Layout{Kind: KindUnion, Union: &u}
}

func NonRecursive(tags ...[]Layout) Layout {
	return unionOf(UnionLayout{Shape: ShapeNonRecursive, Tags: tags})
}

func Recursive(tags ...[]Layout) Layout {
	return unionOf(UnionLayout{Shape: ShapeRecursive, Tags: tags})
}

func NonNullableUnwrapped(fields ...Layout) Layout {
	return unionOf(UnionLayout{Shape: ShapeNonNullableUnwrapped, Tags: [][]Layout{fields}})
}

// NullableWrapped builds a union whose variant nullableID is the null pointer;
// otherTags lists the remaining variants in tag order.
func NullableWrapped(nullableID int, otherTags ...[]Layout) Layout {
	return unionOf(UnionLayout{Shape: ShapeNullableWrapped, Tags: otherTags, NullableID: nullableID})
}

// NullableUnwrapped builds a two-variant union: nullableID (0 or 1) is null,
// the other variant stores otherFields without a tag.
func NullableUnwrapped(nullableID int, otherFields ...Layout) Layout {
	return unionOf(UnionLayout{Shape: ShapeNullableUnwrapped, Tags: [][]Layout{otherFields}, NullableID: nullableID})
}

// Variant is shorthand for a variant field list.
func Variant(fields ...Layout) []Layout { return fields }

// IsUnion reports whether l is a union with the given shape.
func (l Layout) IsUnion(shape Shape) bool {
	return l.Kind == KindUnion && l.Union != nil && l.Union.Shape == shape
}

// IsBool reports whether l is the 1-bit integer.
func (l Layout) IsBool() bool { return l.Kind == KindInt && l.Width == 1 }

// NumTags returns the number of variants including a nullable one.
func (u *UnionLayout) NumTags() int {
	if u == nil {
		return 0
	}
	switch u.Shape {
	case ShapeNullableWrapped:
		return len(u.Tags) + 1
	case ShapeNullableUnwrapped:
		return 2
	default:
		return len(u.Tags)
	}
}

// IsNullable reports whether tagID is represented by the null pointer.
func (u *UnionLayout) IsNullable(tagID int) bool {
	if u == nil {
		return false
	}
	switch u.Shape {
	case ShapeNullableWrapped, ShapeNullableUnwrapped:
		return tagID == u.NullableID
	default:
		return false
	}
}

// FieldsOf returns the stored payload layouts of tagID. The nullable variant
// has no fields.
func (u *UnionLayout) FieldsOf(tagID int) []Layout {
	if u == nil {
		return nil
	}
	switch u.Shape {
	case ShapeNonRecursive, ShapeRecursive:
		if tagID < 0 || tagID >= len(u.Tags) {
			return nil
		}
		return u.Tags[tagID]
	case ShapeNonNullableUnwrapped:
		if tagID != 0 || len(u.Tags) == 0 {
			return nil
		}
		return u.Tags[0]
	case ShapeNullableWrapped:
		switch {
		case tagID == u.NullableID:
			return nil
		case tagID < u.NullableID:
			return u.Tags[tagID]
		default:
			if tagID-1 >= len(u.Tags) {
				return nil
			}
			return u.Tags[tagID-1]
		}
	case ShapeNullableUnwrapped:
		if tagID == u.NullableID || len(u.Tags) == 0 {
			return nil
		}
		return u.Tags[0]
	}
	return nil
}

// OtherID is the non-null tag id of a NullableUnwrapped union.
func (u *UnionLayout) OtherID() int {
	if u == nil {
		return 0
	}
	return 1 - u.NullableID
}

// StoresTag reports whether the discriminant is physically stored.
func (u *UnionLayout) StoresTag() bool {
	if u == nil {
		return false
	}
	switch u.Shape {
	case ShapeNonRecursive, ShapeRecursive, ShapeNullableWrapped:
		return true
	default:
		return false
	}
}

// OnHeap reports whether union values are refcounted pointers.
func (u *UnionLayout) OnHeap() bool {
	return u != nil && u.Shape != ShapeNonRecursive
}

// Equal compares two layouts structurally.
func Equal(a, b Layout) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt, KindFloat:
		return a.Width == b.Width
	case KindStr, KindRecursivePointer:
		return true
	case KindList:
		return ptrEqual(a.Elem, b.Elem)
	case KindDict:
		return ptrEqual(a.Key, b.Key) && ptrEqual(a.Value, b.Value)
	case KindStruct:
		return sliceEqual(a.Fields, b.Fields)
	case KindFunctionPointer:
		return sliceEqual(a.Args, b.Args) && ptrEqual(a.Result, b.Result)
	case KindUnion:
		if a.Union == nil || b.Union == nil {
			return a.Union == b.Union
		}
		ua, ub := a.Union, b.Union
		if ua.Shape != ub.Shape || len(ua.Tags) != len(ub.Tags) {
			return false
		}
		if (ua.Shape == ShapeNullableWrapped || ua.Shape == ShapeNullableUnwrapped) && ua.NullableID != ub.NullableID {
			return false
		}
		for i := range ua.Tags {
			if !sliceEqual(ua.Tags[i], ub.Tags[i]) {
				return false
			}
		}
		return true
	}
	return true
}

func ptrEqual(a, b *Layout) bool {
	if a == nil || b == nil {
		return a == b
	}
	return Equal(*a, *b)
}

func sliceEqual(a, b []Layout) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
