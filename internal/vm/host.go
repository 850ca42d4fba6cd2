package vm

import (
	"fortio.org/safecast"

	"lgen/internal/mir"
)

// Helpers a host uses to pass values in and read results back.

// NewStr returns an owned string value holding s.
func (vm *VM) NewStr(s string) Value { return vm.fatValue(vm.newStr([]byte(s))) }

// ReadStr returns the contents of a string value.
func (vm *VM) ReadStr(v Value) string {
	return vm.str(fat{data: v.Field(0).Bits, n: v.Field(1).Bits})
}

// CString reads the NUL-terminated string at addr.
func (vm *VM) CString(addr uint64) string {
	if addr == 0 {
		return ""
	}
	var b []byte
	for a := addr; ; a++ {
		c := vm.Bytes(a, 1)[0]
		if c == 0 {
			return string(b)
		}
		b = append(b, c)
	}
}

// NewList returns an owned list of elems stored as t.
func (vm *VM) NewList(t mir.Type, elems ...Value) Value {
	p := vm.mem.ptr
	e := elemKind{width: uint64(t.Size(p)), align: t.Align(p)}
	out := vm.newList(uint64(len(elems)), e)
	for i, v := range elems {
		vm.Store(t, vm.elemAt(out, uint64(i), e), v)
	}
	return vm.fatValue(out)
}

// NewI64List returns an owned list of 64-bit integers.
func (vm *VM) NewI64List(xs ...int64) Value {
	vals := make([]Value, len(xs))
	for i, x := range xs {
		vals[i] = I64(x)
	}
	return vm.NewList(mir.I64(), vals...)
}

// ReadList returns the elements of a list value read as t.
func (vm *VM) ReadList(t mir.Type, v Value) []Value {
	n, err := safecast.Conv[int](v.Field(1).Bits)
	if err != nil {
		vm.trap(TrapOutOfBounds, "list length: %v", err)
	}
	width := uint64(t.Size(vm.mem.ptr))
	out := make([]Value, n)
	for i := range out {
		out[i] = vm.Load(t, v.Field(0).Bits+uint64(i)*width)
	}
	return out
}

// ReadI64List returns the elements of a list of 64-bit integers.
func (vm *VM) ReadI64List(v Value) []int64 {
	vals := vm.ReadList(mir.I64(), v)
	out := make([]int64, len(vals))
	for i, x := range vals {
		out[i] = x.Signed(64)
	}
	return out
}

// Malloc allocates host-owned memory without a refcount header, for output
// buffers of exposed wrappers.
func (vm *VM) Malloc(size int, align int) uint64 {
	n, err := safecast.Conv[uint64](size)
	if err != nil {
		vm.trap(TrapOutOfMemory, "malloc of %d bytes: %v", size, err)
	}
	return vm.alloc(n, align)
}

// Free releases memory from Malloc.
func (vm *VM) Free(addr uint64, align int) { vm.dealloc(addr, align) }
