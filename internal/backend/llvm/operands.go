package llvm

import (
	"fmt"
	"math"
	"strconv"

	"lgen/internal/mir"
)

// operand renders op without its type.
func (fe *funcEmitter) operand(op mir.Operand) string {
	switch op.Kind {
	case mir.OperandValue:
		return fmt.Sprintf("%%v%d", op.Value)
	case mir.OperandConst:
		if op.Type.Bits == 1 {
			if op.Int&1 != 0 {
				return "true"
			}
			return "false"
		}
		return strconv.FormatInt(op.Int, 10)
	case mir.OperandFloat:
		return floatLiteral(op.Float, op.Type.Bits)
	case mir.OperandNull:
		return "null"
	case mir.OperandUndef:
		return "undef"
	case mir.OperandZero:
		return zeroLiteral(op.Type)
	case mir.OperandGlobal, mir.OperandFunc:
		return "@" + mir.QuoteName(op.Name)
	default:
		return "undef"
	}
}

// typed renders "T op".
func (fe *funcEmitter) typed(op mir.Operand) string {
	return op.Type.String() + " " + fe.operand(op)
}

// zeroLiteral is the zero value of t in LLVM syntax.
func zeroLiteral(t mir.Type) string {
	switch t.Kind {
	case mir.TypeInt:
		if t.Bits == 1 {
			return "false"
		}
		return "0"
	case mir.TypeFloat:
		return floatLiteral(0, t.Bits)
	case mir.TypePtr:
		return "null"
	default:
		return "zeroinitializer"
	}
}

// floatLiteral renders v exactly. LLVM reads float constants as the hex bits
// of the equivalent double, so f32 values are rounded first.
func floatLiteral(v float64, bits int) string {
	if bits == 32 {
		v = float64(float32(v))
	}
	return fmt.Sprintf("0x%016X", math.Float64bits(v))
}
