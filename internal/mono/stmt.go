package mono

import "lgen/internal/layout"

// Stmt is a statement tree node. The set of implementations is closed.
type Stmt interface {
	isStmt()
}

// Let binds Sym to the value of Expr (of Layout) within Cont.
type Let struct {
	Sym    Symbol
	Expr   Expr
	Layout layout.Layout
	Cont   Stmt
}

// Ret yields Sym as the value of the enclosing statement tree.
type Ret struct {
	Sym Symbol
}

// Branch is one case of a Switch.
type Branch struct {
	Value uint64
	Body  Stmt
}

// Switch dispatches on the discriminant of Cond. For unions the discriminant
// is the tag id; for integers it is the value itself.
type Switch struct {
	Cond       Symbol
	CondLayout layout.Layout
	Branches   []Branch
	Default    Stmt
	Result     layout.Layout
}

// Join declares a join point: Remainder may Jump to ID any number of times;
// Continuation runs with Params bound to the jump arguments.
type Join struct {
	ID           JoinID
	Params       []Param
	Remainder    Stmt
	Continuation Stmt
}

// Jump transfers control to a join point.
type Jump struct {
	ID   JoinID
	Args []Symbol
}

// Invoke calls Call; on success Sym is bound in Pass, on a raised exception
// Exception is bound in Fail.
type Invoke struct {
	Sym       Symbol
	Call      *Call
	Layout    layout.Layout
	Pass      Stmt
	Fail      Stmt
	Exception Symbol
}

// Resume re-raises the exception bound to Exception.
type Resume struct {
	Exception Symbol
}

// RcKind selects a reference count operation.
type RcKind uint8

const (
	// RcInc adds Amount to the count.
	RcInc RcKind = iota + 1
	// RcDec drops one reference, releasing children when the count hits zero.
	RcDec
	// RcDecRef drops one reference of a container without visiting elements.
	RcDecRef
)

func (k RcKind) String() string {
	switch k {
	case RcInc:
		return "inc"
	case RcDec:
		return "dec"
	case RcDecRef:
		return "decref"
	default:
		return "rc?"
	}
}

// Refcounting performs Op on Sym and continues with Cont.
type Refcounting struct {
	Kind   RcKind
	Sym    Symbol
	Amount int
	Cont   Stmt
}

// RuntimeError raises an exception carrying Message.
type RuntimeError struct {
	Message string
}

func (*Let) isStmt() {}
func (*Ret) isStmt() {}
func (*Switch) isStmt() {}
func (*Join) isStmt() {}
func (*Jump) isStmt() {}
func (*Invoke) isStmt() {}
func (*Resume) isStmt() {}
func (*Refcounting) isStmt() {}
func (*RuntimeError) isStmt() {}
