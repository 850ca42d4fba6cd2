package vm

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/rivo/uniseg"
)

// Strings shorter than two words live inline: the bytes fill the two words
// and the last byte holds the length with the high bit set, which makes the
// length word negative. Longer strings point at a refcounted byte buffer.
const smallStrFlag = 0x80

func (vm *VM) isSmall(s fat) bool { return vm.signedWord(s.n) < 0 }

// strBytes returns the contents of a string value. Heap strings alias VM
// memory; callers copy before the next allocation.
func (vm *VM) strBytes(s fat) []byte {
	if vm.isSmall(s) {
		p := vm.mem.ptr
		buf := make([]byte, 2*p)
		putWord(buf[:p], s.data, p)
		putWord(buf[p:], s.n, p)
		n := int(buf[2*p-1] &^ smallStrFlag)
		return buf[:n]
	}
	if s.n == 0 {
		return nil
	}
	n, ok := vm.length(s.n)
	if !ok {
		vm.trap(TrapOutOfBounds, "string length %d", s.n)
	}
	return vm.Bytes(s.data, n)
}

func putWord(buf []byte, v uint64, size int) {
	if size == 4 {
		binary.LittleEndian.PutUint32(buf, uint32(v))
		return
	}
	binary.LittleEndian.PutUint64(buf, v)
}

func getWord(buf []byte, size int) uint64 {
	if size == 4 {
		return uint64(binary.LittleEndian.Uint32(buf))
	}
	return binary.LittleEndian.Uint64(buf)
}

func (vm *VM) length(n uint64) (int, bool) {
	if n > uint64(len(vm.mem.data)) {
		return 0, false
	}
	return int(n), true
}

// newStr builds an owned string value holding b.
func (vm *VM) newStr(b []byte) fat {
	p := vm.mem.ptr
	switch {
	case len(b) == 0:
		return fat{}
	case len(b) < 2*p:
		buf := make([]byte, 2*p)
		copy(buf, b)
		buf[2*p-1] = byte(len(b)) | smallStrFlag
		return fat{data: getWord(buf[:p], p), n: getWord(buf[p:], p)}
	}
	data := vm.reserve(uint64(len(b)), 1)
	copy(vm.Bytes(data, len(b)), b)
	return fat{data: data, n: uint64(len(b))}
}

// decStr drops one reference to a string.
func (vm *VM) decStr(s fat) {
	if vm.isSmall(s) || s.n == 0 {
		return
	}
	if vm.rcDec(s.data) {
		vm.release(s.data, 1)
	}
}

func (vm *VM) str(s fat) string { return string(vm.strBytes(s)) }

func rtStrConcat(vm *VM, args []Value) Value {
	r := vm.reader(args)
	a, b := r.fat(), r.fat()
	out := vm.newStr([]byte(vm.str(a) + vm.str(b)))
	vm.decStr(a)
	vm.decStr(b)
	return vm.fatValue(out)
}

func rtStrCountGraphemes(vm *VM, args []Value) Value {
	s := vm.reader(args).fat()
	return vm.word(uint64(uniseg.GraphemeClusterCount(vm.str(s))))
}

func rtStrStartsWith(vm *VM, args []Value) Value {
	r := vm.reader(args)
	a, b := r.fat(), r.fat()
	return Bool(strings.HasPrefix(vm.str(a), vm.str(b)))
}

func rtStrEndsWith(vm *VM, args []Value) Value {
	r := vm.reader(args)
	a, b := r.fat(), r.fat()
	return Bool(strings.HasSuffix(vm.str(a), vm.str(b)))
}

func rtStrEqual(vm *VM, args []Value) Value {
	r := vm.reader(args)
	a, b := r.fat(), r.fat()
	return Bool(vm.str(a) == vm.str(b))
}

func rtStrFromInt(vm *VM, args []Value) Value {
	return vm.fatValue(vm.newStr([]byte(strconv.FormatInt(args[0].Signed(64), 10))))
}

// strElem describes strings stored in a list.
func (vm *VM) strElem() elemKind {
	p := vm.mem.ptr
	return elemKind{
		width: uint64(2 * p),
		align: p,
		inc: func(addr, n uint64) {
			s := vm.loadFat(addr)
			if !vm.isSmall(s) && s.n != 0 {
				vm.rcInc(s.data, n)
			}
		},
		dec: func(addr uint64) { vm.decStr(vm.loadFat(addr)) },
	}
}

func (vm *VM) loadFat(addr uint64) fat {
	p := uint64(vm.mem.ptr)
	return fat{data: vm.ReadWord(addr), n: vm.ReadWord(addr + p)}
}

func (vm *VM) storeFat(addr uint64, f fat) {
	p := uint64(vm.mem.ptr)
	vm.WriteWord(addr, f.data)
	vm.WriteWord(addr+p, f.n)
}

func (vm *VM) strList(list fat) []string {
	e := vm.strElem()
	out := make([]string, 0, list.n)
	for i := uint64(0); i < list.n; i++ {
		out = append(out, vm.str(vm.loadFat(list.data+i*e.width)))
	}
	return out
}

func rtStrJoinWith(vm *VM, args []Value) Value {
	r := vm.reader(args)
	list, sep := r.fat(), r.fat()
	out := vm.newStr([]byte(strings.Join(vm.strList(list), vm.str(sep))))
	vm.decList(list, vm.strElem())
	vm.decStr(sep)
	return vm.fatValue(out)
}

// rtStrSplit splits on every occurrence of sep. An empty separator yields
// the whole string.
func rtStrSplit(vm *VM, args []Value) Value {
	r := vm.reader(args)
	s, sep := r.fat(), r.fat()
	text, by := vm.str(s), vm.str(sep)
	parts := []string{text}
	if by != "" {
		parts = strings.Split(text, by)
	}
	e := vm.strElem()
	out := vm.newList(uint64(len(parts)), e)
	for i, part := range parts {
		vm.storeFat(out.data+uint64(i)*e.width, vm.newStr([]byte(part)))
	}
	vm.decStr(s)
	vm.decStr(sep)
	return vm.fatValue(out)
}
