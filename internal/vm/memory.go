package vm

import (
	"encoding/binary"
	"math"

	"fortio.org/safecast"

	"lgen/internal/mir"
)

// Address space:
//
//	[0, nullGuard)          unmapped; any access traps
//	[nullGuard, stackBase)  read-only globals
//	[stackBase, heapBase)   allocas, released on return
//	[heapBase, brk)         blocks from roc_alloc
//
// Function addresses live at codeBase and above, outside mapped memory.
const (
	nullGuard = 4096
	codeBase  = 0xF000_0000
	freedByte = 0xDD
)

// block is one allocation handed out by the host allocator.
type block struct {
	size  uint64
	align int
	freed bool
}

// Stats counts host allocator traffic.
type Stats struct {
	Allocs    int
	Frees     int
	Live      int
	LiveBytes uint64
	PeakBytes uint64
}

type memory struct {
	ptr   int
	data  []byte
	limit uint64

	stackBase, stackEnd, sp uint64
	heapBase, brk           uint64

	blocks map[uint64]*block
	stats  Stats
}

func roundUp(v uint64, align int) uint64 {
	if align <= 1 {
		return v
	}
	a := uint64(align)
	return (v + a - 1) / a * a
}

func (vm *VM) offset(addr uint64, n int) int {
	if addr < nullGuard {
		vm.trap(TrapNullDeref, "access of %d bytes at 0x%x", n, addr)
	}
	end := addr + uint64(n)
	if end < addr || end > uint64(len(vm.mem.data)) {
		vm.trap(TrapOutOfBounds, "access of %d bytes at 0x%x outside mapped memory", n, addr)
	}
	off, err := safecast.Conv[int](addr)
	if err != nil {
		vm.trap(TrapOutOfBounds, "address 0x%x: %v", addr, err)
	}
	return off
}

// Bytes returns n bytes of memory at addr. The slice aliases VM memory.
func (vm *VM) Bytes(addr uint64, n int) []byte {
	if n == 0 {
		return nil
	}
	off := vm.offset(addr, n)
	return vm.mem.data[off : off+n]
}

func (vm *VM) readUint(addr uint64, size int) uint64 {
	b := vm.Bytes(addr, size)
	switch size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func (vm *VM) writeUint(addr uint64, size int, v uint64) {
	b := vm.Bytes(addr, size)
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
}

// ReadWord reads a pointer-sized word.
func (vm *VM) ReadWord(addr uint64) uint64 { return vm.readUint(addr, vm.mem.ptr) }

// WriteWord writes a pointer-sized word.
func (vm *VM) WriteWord(addr, v uint64) { vm.writeUint(addr, vm.mem.ptr, v) }

// signedWord sign-extends a pointer-sized word.
func (vm *VM) signedWord(v uint64) int64 {
	return Value{Bits: v}.Signed(8 * vm.mem.ptr)
}

// Load reads a value of type t at addr.
func (vm *VM) Load(t mir.Type, addr uint64) Value {
	switch t.Kind {
	case mir.TypeInt:
		size := t.Size(vm.mem.ptr)
		return Value{Bits: mask(vm.readUint(addr, size), t.Bits)}
	case mir.TypeFloat:
		return Value{Bits: vm.readUint(addr, t.Bits/8)}
	case mir.TypePtr:
		return Value{Bits: vm.readUint(addr, vm.mem.ptr)}
	case mir.TypeStruct, mir.TypeArray:
		fields := make([]Value, t.NumFields())
		for i := range fields {
			fields[i] = vm.Load(t.Field(i), addr+uint64(t.FieldOffset(i, vm.mem.ptr)))
		}
		return Value{Fields: fields}
	default:
		return Value{}
	}
}

// Store writes v as type t at addr.
func (vm *VM) Store(t mir.Type, addr uint64, v Value) {
	switch t.Kind {
	case mir.TypeInt:
		vm.writeUint(addr, t.Size(vm.mem.ptr), mask(v.Bits, t.Bits))
	case mir.TypeFloat:
		vm.writeUint(addr, t.Bits/8, v.Bits)
	case mir.TypePtr:
		vm.writeUint(addr, vm.mem.ptr, v.Bits)
	case mir.TypeStruct, mir.TypeArray:
		for i := 0; i < t.NumFields(); i++ {
			vm.Store(t.Field(i), addr+uint64(t.FieldOffset(i, vm.mem.ptr)), v.Field(i))
		}
	}
}

// copyMem moves n bytes; the ranges may overlap.
func (vm *VM) copyMem(dst, src uint64, n int) {
	if n == 0 {
		return
	}
	copy(vm.Bytes(dst, n), vm.Bytes(src, n))
}

func (vm *VM) grow(end uint64) {
	if end > vm.mem.limit || end >= codeBase {
		vm.trap(TrapOutOfMemory, "memory limit of %d bytes reached", vm.mem.limit)
	}
	n, err := safecast.Conv[int](end)
	if err != nil {
		vm.trap(TrapOutOfMemory, "memory size %d: %v", end, err)
	}
	if n > len(vm.mem.data) {
		if n > cap(vm.mem.data) {
			next := make([]byte, n, max(n, 2*cap(vm.mem.data)))
			copy(next, vm.mem.data)
			vm.mem.data = next
		} else {
			vm.mem.data = vm.mem.data[:n]
		}
	}
}

// alloc is the host allocator behind roc_alloc. Blocks are never reused so
// stale pointers keep reading poisoned bytes instead of live data.
func (vm *VM) alloc(size uint64, align int) uint64 {
	start := roundUp(vm.mem.brk, max(align, 1))
	end := start + max(size, 1)
	vm.grow(end)
	vm.mem.brk = end
	clear(vm.mem.data[start:end])
	vm.mem.blocks[start] = &block{size: size, align: align}
	s := &vm.mem.stats
	s.Allocs++
	s.Live++
	s.LiveBytes += size
	s.PeakBytes = max(s.PeakBytes, s.LiveBytes)
	return start
}

// dealloc is the host allocator behind roc_dealloc.
func (vm *VM) dealloc(start uint64, align int) {
	b, ok := vm.mem.blocks[start]
	if !ok {
		vm.trap(TrapBadFree, "dealloc of 0x%x which was never allocated", start)
	}
	if b.freed {
		vm.trap(TrapDoubleFree, "double free of block at 0x%x", start)
	}
	if align != b.align {
		vm.trap(TrapBadFree, "dealloc of 0x%x with alignment %d, allocated with %d", start, align, b.align)
	}
	b.freed = true
	if b.size > 0 {
		poison := vm.Bytes(start, int(b.size))
		for i := range poison {
			poison[i] = freedByte
		}
	}
	s := &vm.mem.stats
	s.Frees++
	s.Live--
	s.LiveBytes -= b.size
}

// stackAlloc reserves size bytes on the VM stack.
func (vm *VM) stackAlloc(size, align int) uint64 {
	start := roundUp(vm.mem.sp, max(align, 1))
	end := start + uint64(size)
	if end > vm.mem.stackEnd {
		vm.trap(TrapStackOverflow, "stack region of %d bytes exhausted", vm.mem.stackEnd-vm.mem.stackBase)
	}
	vm.mem.sp = end
	if size > 0 {
		clear(vm.mem.data[start:end])
	}
	return start
}

// placeGlobals lays out the module globals and returns their addresses.
func (vm *VM) placeGlobals(globals []*mir.Global) map[string]uint64 {
	addrs := make(map[string]uint64, len(globals))
	at := uint64(nullGuard)
	for _, g := range globals {
		at = roundUp(at, g.Align)
		addrs[g.Name] = at
		at += uint64(len(g.Bytes))
	}
	vm.grow(at)
	for _, g := range globals {
		copy(vm.mem.data[addrs[g.Name]:], g.Bytes)
	}
	vm.mem.stackBase = roundUp(at, 16)
	return addrs
}

func floatBits(f float64, bits int) uint64 {
	if bits == 32 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}
