package mono

import "lgen/internal/layout"

// Expr is the right-hand side of a Let. The set of implementations is closed.
type Expr interface {
	isExpr()
}

type LitKind uint8

const (
	LitInt LitKind = iota + 1
	LitFloat
	LitBool
	LitByte
	LitStr
)

type Literal struct {
	Kind  LitKind
	Int   int64
	Float float64
	Str   string
}

func IntLit(v int64) *Literal { return &Literal{Kind: LitInt, Int: v} }
func FloatLit(v float64) *Literal { return &Literal{Kind: LitFloat, Float: v} }
func StrLit(s string) *Literal { return &Literal{Kind: LitStr, Str: s} }
func ByteLit(b byte) *Literal { return &Literal{Kind: LitByte, Int: int64(b)} }
func BoolLit(v bool) *Literal {
	if v {
		return &Literal{Kind: LitBool, Int: 1}
	}
	return &Literal{Kind: LitBool}
}

// Call applies a callee to argument symbols.
type Call struct {
	Type CallType
	Args []Symbol
}

// CallType selects how a Call reaches its target. The set is closed.
type CallType interface {
	isCallType()
}

// ByName calls a procedure specialization.
type ByName struct {
	Proc ProcRef
}

// LowLevel applies a built-in operation.
type LowLevel struct {
	Op Op
}

// HigherOrder applies a built-in that calls back into Proc. When Captured is
// not zero-sized the last argument is the captured closure data; Owned says
// whether that data is owned by the callee.
type HigherOrder struct {
	Op       Op
	Proc     ProcRef
	Captured layout.Layout
	Owned    bool
}

// Foreign calls a host symbol with the C convention.
type Foreign struct {
	Name   string
	Result layout.Layout
}

func (ByName) isCallType() {}
func (LowLevel) isCallType() {}
func (HigherOrder) isCallType() {}
func (Foreign) isCallType() {}

// StructExpr builds a struct from its field symbols.
type StructExpr struct {
	Fields []Symbol
}

// Tag constructs variant TagID of the union Layout.
type Tag struct {
	Layout layout.Layout
	TagID  int
	Args   []Symbol
}

// AccessAtIndex projects payload field Index. For struct values TagID is
// ignored; for unions it selects the variant whose payload is read.
type AccessAtIndex struct {
	Structure Symbol
	TagID     int
	Index     int
}

// GetTagID extracts the discriminant of a union value as i64.
type GetTagID struct {
	Structure Symbol
}

// Array builds a list literal.
type Array struct {
	Elem  layout.Layout
	Elems []Symbol
}

// EmptyArray is the empty list of any element layout.
type EmptyArray struct{}

func (*Literal) isExpr() {}
func (*Call) isExpr() {}
func (*StructExpr) isExpr() {}
func (*Tag) isExpr() {}
func (*AccessAtIndex) isExpr() {}
func (*GetTagID) isExpr() {}
func (*Array) isExpr() {}
func (*EmptyArray) isExpr() {}
