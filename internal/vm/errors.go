package vm

import (
	"fmt"
	"strings"
)

// TrapCode identifies the kind of VM trap.
type TrapCode int

// Stable trap codes - do not change values.
const (
	TrapNullDeref     TrapCode = 1001 // VM1001: access below the null guard
	TrapOutOfBounds   TrapCode = 1002 // VM1002: access outside mapped memory
	TrapDoubleFree    TrapCode = 1003 // VM1003: dealloc of a freed block
	TrapBadFree       TrapCode = 1004 // VM1004: dealloc of an unknown address
	TrapOutOfMemory   TrapCode = 1005 // VM1005: heap limit reached
	TrapStackOverflow TrapCode = 1006 // VM1006: call depth or stack region exhausted
	TrapUnreachable   TrapCode = 1007 // VM1007: unreachable executed
	TrapDivideByZero  TrapCode = 1008 // VM1008: integer division by zero
	TrapBadCall       TrapCode = 1009 // VM1009: call of a non-function or unknown symbol
	TrapTypeMismatch  TrapCode = 1010 // VM1010: malformed MIR reached the interpreter
	TrapUnimplemented TrapCode = 1999 // VM1999: unsupported instruction
)

// String returns the code as "VM1001" format.
func (c TrapCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// Frame is one entry of a trap backtrace.
type Frame struct {
	Func  string
	Block int32
}

// Trap is a fault of the executing program that no handler can catch.
type Trap struct {
	Code      TrapCode
	Message   string
	Backtrace []Frame // innermost first
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap %s: %s", t.Code, t.Message)
}

// Format renders the trap with its backtrace.
func (t *Trap) Format() string {
	var sb strings.Builder
	sb.WriteString(t.Error())
	sb.WriteString("\n")
	if len(t.Backtrace) > 0 {
		sb.WriteString("backtrace:\n")
		for i, f := range t.Backtrace {
			fmt.Fprintf(&sb, "  %d: %s bb%d\n", i, f.Func, f.Block)
		}
	}
	return sb.String()
}

// Exception is a runtime failure raised by the program. It unwinds to the
// nearest invoke; when nothing catches it, Call returns it as an error.
type Exception struct {
	// Payload is the exception pointer handed to landing pads: the address
	// of the NUL-terminated message.
	Payload uint64
	Message string
}

func (e *Exception) Error() string {
	return "exception: " + e.Message
}

func (vm *VM) trap(code TrapCode, format string, args ...any) {
	t := &Trap{Code: code, Message: fmt.Sprintf(format, args...)}
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		t.Backtrace = append(t.Backtrace, Frame{Func: f.fn.Name, Block: int32(f.block)})
	}
	panic(t)
}
