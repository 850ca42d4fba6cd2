package mir

import (
	"fmt"
	"strconv"
)

// OperandKind enumerates operand kinds.
type OperandKind uint8

const (
	OperandValue OperandKind = iota
	OperandConst
	OperandFloat
	OperandNull
	OperandUndef
	OperandZero
	OperandGlobal
	OperandFunc
)

// Operand is an instruction input: an SSA value or a constant.
type Operand struct {
	Kind  OperandKind
	Type  Type
	Value ValueID // OperandValue
	Int   int64   // OperandConst
	Float float64 // OperandFloat
	Name  string  // OperandGlobal, OperandFunc
}

func Val(id ValueID, t Type) Operand {
	return Operand{Kind: OperandValue, Type: t, Value: id}
}

func Const(t Type, v int64) Operand {
	return Operand{Kind: OperandConst, Type: t, Int: v}
}

func ConstFloat(t Type, v float64) Operand {
	return Operand{Kind: OperandFloat, Type: t, Float: v}
}

func Bool(v bool) Operand {
	if v {
		return Const(I1(), 1)
	}
	return Const(I1(), 0)
}

func Null() Operand { return Operand{Kind: OperandNull, Type: Ptr()} }

func Undef(t Type) Operand { return Operand{Kind: OperandUndef, Type: t} }

func Zero(t Type) Operand { return Operand{Kind: OperandZero, Type: t} }

// GlobalAddr is the address of a module global.
func GlobalAddr(name string) Operand {
	return Operand{Kind: OperandGlobal, Type: Ptr(), Name: name}
}

// FuncAddr is the address of a function or declared routine.
func FuncAddr(name string) Operand {
	return Operand{Kind: OperandFunc, Type: Ptr(), Name: name}
}

// IsConst reports whether o is an integer constant.
func (o Operand) IsConst() bool { return o.Kind == OperandConst }

func (o Operand) String() string {
	switch o.Kind {
	case OperandValue:
		return fmt.Sprintf("%%v%d", o.Value)
	case OperandConst:
		if o.Type.Bits == 1 {
			if o.Int != 0 {
				return "true"
			}
			return "false"
		}
		return strconv.FormatInt(o.Int, 10)
	case OperandFloat:
		return strconv.FormatFloat(o.Float, 'g', -1, 64)
	case OperandNull:
		return "null"
	case OperandUndef:
		return "undef"
	case OperandZero:
		return "zeroinitializer"
	case OperandGlobal, OperandFunc:
		return "@" + quoteName(o.Name)
	default:
		return "?"
	}
}

// quoteName quotes symbol names that are not plain identifiers.
func quoteName(name string) string {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '.' || c == '$' {
			continue
		}
		return strconv.Quote(name)
	}
	return name
}

// QuoteName renders a symbol name as LLVM accepts it after the sigil.
func QuoteName(name string) string { return quoteName(name) }
