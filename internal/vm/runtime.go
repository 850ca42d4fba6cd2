package vm

import (
	"math"

	"fortio.org/safecast"
)

// builtins implements the runtime routines generated modules declare.
var builtins = map[string]Builtin{
	"roc_alloc":            rtAlloc,
	"roc_dealloc":          rtDealloc,
	"rt_throw":             rtThrow,
	"rt_exception_message": rtExceptionMessage,

	"rt_str_concat":          rtStrConcat,
	"rt_str_count_graphemes": rtStrCountGraphemes,
	"rt_str_starts_with":     rtStrStartsWith,
	"rt_str_ends_with":       rtStrEndsWith,
	"rt_str_equal":           rtStrEqual,
	"rt_str_from_int":        rtStrFromInt,
	"rt_str_join_with":       rtStrJoinWith,
	"rt_str_split":           rtStrSplit,

	"rt_list_set":      rtListSet,
	"rt_list_append":   rtListAppend,
	"rt_list_prepend":  rtListPrepend,
	"rt_list_concat":   rtListConcat,
	"rt_list_single":   rtListSingle,
	"rt_list_repeat":   rtListRepeat,
	"rt_list_reverse":  rtListReverse,
	"rt_list_contains": rtListContains,
	"rt_list_equal":    rtListEqual,

	"rt_dict_insert":     rtDictInsert,
	"rt_dict_remove":     rtDictRemove,
	"rt_dict_contains":   rtDictContains,
	"rt_dict_get_unsafe": rtDictGetUnsafe,
	"rt_dict_keys":       rtDictKeys,
	"rt_dict_values":     rtDictValues,
	"rt_dict_union":      rtDictUnion,
	"rt_dict_equal":      rtDictEqual,

	"rt_list_map":            rtListMap,
	"rt_list_map2":           rtListMap2,
	"rt_list_map3":           rtListMap3,
	"rt_list_keep_if":        rtListKeepIf,
	"rt_list_keep_oks":       rtListKeepOks,
	"rt_list_keep_errs":      rtListKeepErrs,
	"rt_list_walk":           rtListWalk,
	"rt_list_walk_backwards": rtListWalkBackwards,
	"rt_list_walk_until":     rtListWalkUntil,
	"rt_list_sort_with":      rtListSortWith,
	"rt_dict_walk":           rtDictWalk,

	"rt_num_pow_int": rtNumPowInt,

	"llvm.sqrt.f64":  floatFn(64, math.Sqrt),
	"llvm.sqrt.f32":  floatFn(32, math.Sqrt),
	"llvm.floor.f64": floatFn(64, math.Floor),
	"llvm.floor.f32": floatFn(32, math.Floor),
	"llvm.ceil.f64":  floatFn(64, math.Ceil),
	"llvm.ceil.f32":  floatFn(32, math.Ceil),
	"llvm.round.f64": floatFn(64, math.Round),
	"llvm.round.f32": floatFn(32, math.Round),
}

// HasBuiltin reports whether name is implemented by the VM itself.
func HasBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// argReader walks the flattened argument list of a routine call.
type argReader struct {
	vm   *VM
	args []Value
	i    int
}

func (vm *VM) reader(args []Value) *argReader { return &argReader{vm: vm, args: args} }

func (r *argReader) next() Value {
	if r.i >= len(r.args) {
		r.vm.trap(TrapBadCall, "runtime routine called with %d arguments", len(r.args))
	}
	v := r.args[r.i]
	r.i++
	return v
}

func (r *argReader) ptr() uint64 { return r.next().Bits }

func (r *argReader) word() uint64 { return r.next().Bits }

func (r *argReader) fat() fat {
	v := r.next()
	return fat{data: v.Field(0).Bits, n: v.Field(1).Bits}
}

func (r *argReader) align() int {
	a, err := safecast.Conv[int](r.next().Bits)
	if err != nil {
		r.vm.trap(TrapTypeMismatch, "alignment: %v", err)
	}
	return a
}

// elem reads an element description: width, alignment, inc and dec shims.
func (r *argReader) elem() elemKind {
	width, align := r.word(), r.align()
	inc, dec := r.ptr(), r.ptr()
	return r.vm.shimElem(width, align, inc, dec)
}

// entry reads a dictionary entry description.
func (r *argReader) entry() entryKind {
	e := entryKind{}
	e.width, e.align = r.word(), r.align()
	e.keyWidth, e.valueOff, e.valueWidth = r.word(), r.word(), r.word()
	e.keyEq, e.keyInc, e.keyDec, e.valInc, e.valDec = r.ptr(), r.ptr(), r.ptr(), r.ptr(), r.ptr()
	e.vm = r.vm
	return e
}

// fat is a string, list or dictionary value: a data pointer and a length.
type fat struct {
	data, n uint64
}

func (vm *VM) fatValue(f fat) Value {
	return Agg(Ptr(f.data), Value{Bits: mask(f.n, 8*vm.mem.ptr)})
}

// word returns a pointer-sized integer value.
func (vm *VM) word(n uint64) Value { return Value{Bits: mask(n, 8*vm.mem.ptr)} }

// elemKind is what the runtime knows about one stored element.
type elemKind struct {
	width uint64
	align int
	inc   func(addr, n uint64)
	dec   func(addr uint64)
}

func (vm *VM) shimElem(width uint64, align int, inc, dec uint64) elemKind {
	e := elemKind{width: width, align: align}
	e.inc = func(addr, n uint64) {
		if inc != 0 && n > 0 {
			vm.CallAddr(inc, Ptr(addr), vm.word(n))
		}
	}
	e.dec = func(addr uint64) {
		if dec != 0 {
			vm.CallAddr(dec, Ptr(addr))
		}
	}
	return e
}

// entryKind describes dictionary entries {key, value}.
type entryKind struct {
	vm         *VM
	width      uint64
	align      int
	keyWidth   uint64
	valueOff   uint64
	valueWidth uint64
	keyEq      uint64
	keyInc     uint64
	keyDec     uint64
	valInc     uint64
	valDec     uint64
}

// asElem treats whole entries as list elements.
func (d entryKind) asElem() elemKind {
	vm := d.vm
	key := vm.shimElem(0, 1, d.keyInc, d.keyDec)
	val := vm.shimElem(0, 1, d.valInc, d.valDec)
	return elemKind{
		width: d.width,
		align: d.align,
		inc: func(addr, n uint64) {
			key.inc(addr, n)
			val.inc(addr+d.valueOff, n)
		},
		dec: func(addr uint64) {
			key.dec(addr)
			val.dec(addr + d.valueOff)
		},
	}
}

func (d entryKind) keyElem() elemKind {
	return d.vm.shimElem(d.keyWidth, 1, d.keyInc, d.keyDec)
}

func (d entryKind) valueElem() elemKind {
	return d.vm.shimElem(d.valueWidth, 1, d.valInc, d.valDec)
}

// Refcount headers mirror the generated code: a signed pointer-sized count
// directly before the data, 0 for static blocks.

func (vm *VM) headerBytes(align int) uint64 { return uint64(max(align, vm.mem.ptr)) }

// reserve allocates a refcounted block of size data bytes with count 1.
func (vm *VM) reserve(size uint64, align int) uint64 {
	h := vm.headerBytes(align)
	start := vm.alloc(size+h, max(align, vm.mem.ptr))
	data := start + h
	vm.WriteWord(data-uint64(vm.mem.ptr), 1)
	return data
}

func (vm *VM) release(data uint64, align int) {
	vm.dealloc(data-vm.headerBytes(align), max(align, vm.mem.ptr))
}

// Refcount reads the count of the block at data.
func (vm *VM) Refcount(data uint64) int64 {
	return vm.signedWord(vm.ReadWord(data - uint64(vm.mem.ptr)))
}

func (vm *VM) rcInc(data, n uint64) {
	at := data - uint64(vm.mem.ptr)
	c := vm.ReadWord(at)
	if c != 0 {
		vm.WriteWord(at, c+n)
	}
}

// rcDec drops one reference and reports whether the block must be freed.
func (vm *VM) rcDec(data uint64) bool {
	at := data - uint64(vm.mem.ptr)
	c := vm.signedWord(vm.ReadWord(at))
	if c == 0 {
		return false
	}
	vm.WriteWord(at, uint64(c-1))
	return c-1 <= 0
}

func (vm *VM) unique(data uint64) bool { return vm.Refcount(data) == 1 }

func rtAlloc(vm *VM, args []Value) Value {
	r := vm.reader(args)
	size := r.word()
	return Ptr(vm.alloc(size, r.align()))
}

func rtDealloc(vm *VM, args []Value) Value {
	r := vm.reader(args)
	p := r.ptr()
	vm.dealloc(p, r.align())
	return Value{}
}

func rtThrow(vm *VM, args []Value) Value {
	vm.throw(vm.reader(args).ptr())
	return Value{}
}

// The exception payload already is the message pointer.
func rtExceptionMessage(vm *VM, args []Value) Value {
	return Ptr(vm.reader(args).ptr())
}

// rtNumPowInt raises with wrapping multiplication. Negative exponents
// truncate toward zero.
func rtNumPowInt(vm *VM, args []Value) Value {
	base, exp := args[0].Signed(64), args[1].Signed(64)
	if exp < 0 {
		switch base {
		case 1:
			return I64(1)
		case -1:
			if exp%2 == 0 {
				return I64(1)
			}
			return I64(-1)
		}
		return I64(0)
	}
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return I64(result)
}

func floatFn(bits int, f func(float64) float64) Builtin {
	return func(vm *VM, args []Value) Value {
		return Value{Bits: floatBits(f(args[0].Float(bits)), bits)}
	}
}
