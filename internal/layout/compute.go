package layout

// TagBytes is the width of a stored union discriminant.
const TagBytes = 8

// StackSize returns the number of bytes a value of l occupies when stored
// inline, for a target with ptr-byte pointers.
func (l Layout) StackSize(ptr int) int {
	switch l.Kind {
	case KindInt:
		return scalarBytes(l.Width)
	case KindFloat:
		return l.Width / 8
	case KindStr, KindList, KindDict:
		return 2 * ptr
	case KindStruct:
		size, _ := structSizeAlign(l.Fields, ptr)
		return size
	case KindUnion:
		if l.Union.OnHeap() {
			return ptr
		}
		return TagBytes + PayloadWords(l.Union, ptr)*TagBytes
	case KindRecursivePointer, KindFunctionPointer:
		return ptr
	default:
		panic(malformed(l, "stack size of invalid layout"))
	}
}

// Alignment returns the required alignment of l in bytes.
func (l Layout) Alignment(ptr int) int {
	switch l.Kind {
	case KindInt:
		return scalarBytes(l.Width)
	case KindFloat:
		return l.Width / 8
	case KindStr, KindList, KindDict:
		return ptr
	case KindStruct:
		_, align := structSizeAlign(l.Fields, ptr)
		return align
	case KindUnion:
		if l.Union.OnHeap() {
			return ptr
		}
		return TagBytes
	case KindRecursivePointer, KindFunctionPointer:
		return ptr
	default:
		panic(malformed(l, "alignment of invalid layout"))
	}
}

// IsZeroSized reports whether l has no runtime representation. Such fields
// are dropped from structs and variant payloads.
func (l Layout) IsZeroSized() bool {
	switch l.Kind {
	case KindStruct:
		for _, f := range l.Fields {
			if !f.IsZeroSized() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// NonEmptyFields returns the fields that are physically stored.
func NonEmptyFields(fields []Layout) []Layout {
	out := make([]Layout, 0, len(fields))
	for _, f := range fields {
		if !f.IsZeroSized() {
			out = append(out, f)
		}
	}
	return out
}

// Unwrapped returns the single stored field of a struct when the struct is
// represented as that field.
func (l Layout) Unwrapped() (Layout, bool) {
	if l.Kind != KindStruct {
		return Layout{}, false
	}
	kept := NonEmptyFields(l.Fields)
	if len(kept) != 1 {
		return Layout{}, false
	}
	return kept[0], true
}

// ContainsRefcounted reports whether any part of a value of l is a
// refcounted heap allocation. Inert data skips all refcount work.
func (l Layout) ContainsRefcounted() bool {
	switch l.Kind {
	case KindStr, KindList, KindDict, KindRecursivePointer:
		return true
	case KindStruct:
		for _, f := range l.Fields {
			if f.ContainsRefcounted() {
				return true
			}
		}
		return false
	case KindUnion:
		if l.Union.OnHeap() {
			return true
		}
		for _, tag := range l.Union.Tags {
			for _, f := range tag {
				if f.ContainsRefcounted() {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// IsRefcounted reports whether the value itself owns a refcount header.
func (l Layout) IsRefcounted() bool {
	switch l.Kind {
	case KindStr, KindList, KindDict, KindRecursivePointer:
		return true
	case KindUnion:
		return l.Union.OnHeap()
	default:
		return false
	}
}

// StructOffsets returns the byte offset of every field of a payload made of
// fields, after zero-sized fields are dropped, plus total size and alignment.
func StructOffsets(fields []Layout, ptr int) (offsets []int, size, align int) {
	offsets = make([]int, 0, len(fields))
	align = 1
	for _, f := range fields {
		if f.IsZeroSized() {
			continue
		}
		fa := f.Alignment(ptr)
		size = roundUp(size, fa)
		offsets = append(offsets, size)
		size += f.StackSize(ptr)
		align = max(align, fa)
	}
	return offsets, roundUp(size, align), align
}

// PayloadWords is the number of 8-byte words reserved for the widest variant.
func PayloadWords(u *UnionLayout, ptr int) int {
	widest := 0
	for _, tag := range u.Tags {
		_, size, _ := StructOffsets(tag, ptr)
		widest = max(widest, size)
	}
	return (widest + TagBytes - 1) / TagBytes
}

// HeapBlockSize is the data size of one heap block of union u (excluding the
// refcount header) together with its alignment.
func HeapBlockSize(u *UnionLayout, ptr int) (size, align int) {
	if u.StoresTag() {
		return TagBytes + PayloadWords(u, ptr)*TagBytes, TagBytes
	}
	_, size, align = StructOffsets(u.Tags[0], ptr)
	return size, align
}

func structSizeAlign(fields []Layout, ptr int) (int, int) {
	_, size, align := StructOffsets(fields, ptr)
	return size, align
}

func scalarBytes(width int) int {
	if width <= 8 {
		return 1
	}
	return width / 8
}

func roundUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}
