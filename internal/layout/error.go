package layout

import (
	"errors"
	"fmt"
)

// LayoutErrorKind enumerates the ways a layout can be malformed.
type LayoutErrorKind uint8

const (
	// LayoutErrInvalidWidth indicates a scalar with an unsupported bit width.
	LayoutErrInvalidWidth LayoutErrorKind = iota + 1
	// LayoutErrMalformedUnion indicates a union whose tags disagree with its shape.
	LayoutErrMalformedUnion
	// LayoutErrStrayRecursivePointer indicates a RecursivePointer outside a heap union.
	LayoutErrStrayRecursivePointer
	// LayoutErrInvalid indicates a zero or unknown Kind.
	LayoutErrInvalid
)

// LayoutError reports a malformed layout. Malformed layouts are produced only
// by a faulty earlier stage, so code generation treats them as fatal.
type LayoutError struct {
	Kind   LayoutErrorKind
	Layout string
	Detail string
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrInvalidWidth:
		return fmt.Sprintf("invalid scalar width in %s: %s", e.Layout, e.Detail)
	case LayoutErrMalformedUnion:
		return fmt.Sprintf("malformed union %s: %s", e.Layout, e.Detail)
	case LayoutErrStrayRecursivePointer:
		return fmt.Sprintf("recursive pointer outside heap union in %s", e.Layout)
	default:
		return fmt.Sprintf("invalid layout %s: %s", e.Layout, e.Detail)
	}
}

func malformed(l Layout, detail string) *LayoutError {
	return &LayoutError{Kind: LayoutErrInvalid, Layout: safeString(l), Detail: detail}
}

func safeString(l Layout) (s string) {
	defer func() {
		if recover() != nil {
			s = "<invalid>"
		}
	}()
	return l.String()
}

// Validate checks the structural rules every layout must satisfy.
func Validate(l Layout) error {
	return validate(l, false)
}

func validate(l Layout, inHeapUnion bool) error {
	switch l.Kind {
	case KindInt:
		switch l.Width {
		case 1, 8, 16, 32, 64:
			return nil
		}
		return &LayoutError{Kind: LayoutErrInvalidWidth, Layout: l.String(), Detail: fmt.Sprintf("i%d", l.Width)}
	case KindFloat:
		if l.Width == 32 || l.Width == 64 {
			return nil
		}
		return &LayoutError{Kind: LayoutErrInvalidWidth, Layout: l.String(), Detail: fmt.Sprintf("f%d", l.Width)}
	case KindStr:
		return nil
	case KindList:
		if l.Elem == nil {
			return malformed(l, "list without element layout")
		}
		return validate(*l.Elem, inHeapUnion)
	case KindDict:
		if l.Key == nil || l.Value == nil {
			return malformed(l, "dict without key/value layout")
		}
		return errors.Join(validate(*l.Key, inHeapUnion), validate(*l.Value, inHeapUnion))
	case KindStruct:
		var errs []error
		for _, f := range l.Fields {
			errs = append(errs, validate(f, inHeapUnion))
		}
		return errors.Join(errs...)
	case KindFunctionPointer:
		if l.Result == nil {
			return malformed(l, "function pointer without result")
		}
		var errs []error
		for _, a := range l.Args {
			errs = append(errs, validate(a, false))
		}
		errs = append(errs, validate(*l.Result, false))
		return errors.Join(errs...)
	case KindRecursivePointer:
		if !inHeapUnion {
			return &LayoutError{Kind: LayoutErrStrayRecursivePointer, Layout: l.String()}
		}
		return nil
	case KindUnion:
		return validateUnion(l)
	default:
		return &LayoutError{Kind: LayoutErrInvalid, Layout: "<invalid>", Detail: fmt.Sprintf("kind %d", l.Kind)}
	}
}

func validateUnion(l Layout) error {
	u := l.Union
	if u == nil {
		return malformed(l, "union without shape")
	}
	bad := func(detail string) error {
		return &LayoutError{Kind: LayoutErrMalformedUnion, Layout: l.String(), Detail: detail}
	}
	switch u.Shape {
	case ShapeNonRecursive, ShapeRecursive:
		if len(u.Tags) == 0 {
			return bad("no variants")
		}
	case ShapeNonNullableUnwrapped:
		if len(u.Tags) != 1 {
			return bad("expected exactly one variant")
		}
	case ShapeNullableWrapped:
		if len(u.Tags) == 0 {
			return bad("no non-null variants")
		}
		if u.NullableID < 0 || u.NullableID > len(u.Tags) {
			return bad(fmt.Sprintf("nullable id %d out of range", u.NullableID))
		}
	case ShapeNullableUnwrapped:
		if len(u.Tags) != 1 {
			return bad("expected exactly one non-null variant")
		}
		if u.NullableID != 0 && u.NullableID != 1 {
			return bad(fmt.Sprintf("nullable id %d must be 0 or 1", u.NullableID))
		}
		if len(NonEmptyFields(u.Tags[0])) == 0 {
			return bad("non-null variant stores no fields")
		}
	default:
		return bad("unknown shape")
	}
	var errs []error
	for _, tag := range u.Tags {
		for _, f := range tag {
			errs = append(errs, validate(f, u.OnHeap()))
		}
	}
	return errors.Join(errs...)
}
