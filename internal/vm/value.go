package vm

import (
	"fmt"
	"math"
	"strings"

	"lgen/internal/mir"
)

// Value is a machine value. Scalars keep their bits in Bits: integers are
// masked to their width, floats hold their IEEE bits and pointers hold an
// address. Aggregates keep one Value per member in Fields.
type Value struct {
	Bits   uint64
	Fields []Value
}

// I64 returns an i64 value.
func I64(v int64) Value { return Value{Bits: uint64(v)} }

// Int returns an integer value of the given width.
func Int(v int64, bits int) Value { return Value{Bits: mask(uint64(v), bits)} }

func Bool(v bool) Value {
	if v {
		return Value{Bits: 1}
	}
	return Value{}
}

// F64 returns a double value.
func F64(v float64) Value { return Value{Bits: math.Float64bits(v)} }

// F32 returns a float value.
func F32(v float32) Value { return Value{Bits: uint64(math.Float32bits(v))} }

// Ptr returns a pointer value.
func Ptr(addr uint64) Value { return Value{Bits: addr} }

// Agg returns an aggregate value.
func Agg(fields ...Value) Value { return Value{Fields: fields} }

// Signed interprets v as a signed integer of bits.
func (v Value) Signed(bits int) int64 {
	if bits >= 64 {
		return int64(v.Bits)
	}
	shift := 64 - bits
	return int64(v.Bits<<shift) >> shift
}

// Float interprets v as a float of bits.
func (v Value) Float(bits int) float64 {
	if bits == 32 {
		return float64(math.Float32frombits(uint32(v.Bits)))
	}
	return math.Float64frombits(v.Bits)
}

// Truth reports whether an i1 value is set.
func (v Value) Truth() bool { return v.Bits&1 == 1 }

// Field returns member i of an aggregate.
func (v Value) Field(i int) Value {
	if i < 0 || i >= len(v.Fields) {
		return Value{}
	}
	return v.Fields[i]
}

// Format renders v according to t, for diagnostics and the run command.
func (v Value) Format(t mir.Type) string {
	switch t.Kind {
	case mir.TypeVoid:
		return "void"
	case mir.TypeInt:
		if t.Bits == 1 {
			return fmt.Sprint(v.Truth())
		}
		return fmt.Sprint(v.Signed(t.Bits))
	case mir.TypeFloat:
		return fmt.Sprint(v.Float(t.Bits))
	case mir.TypePtr:
		if v.Bits == 0 {
			return "null"
		}
		return fmt.Sprintf("0x%x", v.Bits)
	default:
		parts := make([]string, t.NumFields())
		for i := range parts {
			parts[i] = v.Field(i).Format(t.Field(i))
		}
		if t.Kind == mir.TypeArray {
			return "[" + strings.Join(parts, ", ") + "]"
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
}

func mask(bits uint64, width int) uint64 {
	if width >= 64 {
		return bits
	}
	return bits & (1<<width - 1)
}

// zeroValue builds the zero value of t.
func zeroValue(t mir.Type) Value {
	if !t.IsAggregate() {
		return Value{}
	}
	fields := make([]Value, t.NumFields())
	for i := range fields {
		fields[i] = zeroValue(t.Field(i))
	}
	return Value{Fields: fields}
}

// clone copies the member slices of an aggregate so updates do not alias.
func (v Value) clone() Value {
	if v.Fields == nil {
		return v
	}
	fields := make([]Value, len(v.Fields))
	copy(fields, v.Fields)
	return Value{Bits: v.Bits, Fields: fields}
}
