package vm

import (
	"sort"

	"fortio.org/safecast"

	"lgen/internal/mir"
)

// closure is the descriptor higher-order routines receive:
// {ptr caller, ptr data, ptr inc, ptr dec, i8 owned}.
type closure struct {
	vm     *VM
	caller uint64
	data   uint64
	inc    uint64
	dec    uint64
	owned  bool
}

func (vm *VM) closureAt(addr uint64) closure {
	t := mir.Struct(mir.Ptr(), mir.Ptr(), mir.Ptr(), mir.Ptr(), mir.I8())
	v := vm.Load(t, addr)
	return closure{
		vm:     vm,
		caller: v.Field(0).Bits,
		data:   v.Field(1).Bits,
		inc:    v.Field(2).Bits,
		dec:    v.Field(3).Bits,
		owned:  v.Field(4).Bits != 0,
	}
}

// call runs the closure on argument addresses, writing the result to out.
// The callee consumes its captured data, so the data gains a reference
// first.
func (c closure) call(out uint64, args ...uint64) {
	if c.data != 0 && c.inc != 0 {
		c.vm.CallAddr(c.inc, Ptr(c.data), c.vm.word(1))
	}
	vals := make([]Value, 0, len(args)+2)
	vals = append(vals, Ptr(c.data))
	for _, a := range args {
		vals = append(vals, Ptr(a))
	}
	vals = append(vals, Ptr(out))
	c.vm.CallAddr(c.caller, vals...)
}

// done drops the routine's own reference to owned captured data.
func (c closure) done() {
	if c.owned && c.data != 0 && c.dec != 0 {
		c.vm.CallAddr(c.dec, Ptr(c.data))
	}
}

// scratch reserves a zeroed stack buffer for one callback value. It lives
// until the routine's caller returns.
func (vm *VM) scratch(width uint64, align int) uint64 {
	return vm.stackAlloc(vm.size(max(width, 1), "scratch width"), max(align, 8))
}

// size converts a length or width read from memory to an int.
func (vm *VM) size(n uint64, what string) int {
	v, err := safecast.Conv[int](n)
	if err != nil {
		vm.trap(TrapOutOfBounds, "%s: %v", what, err)
	}
	return v
}

// mapN applies the closure elementwise over the shortest input list.
func (vm *VM) mapN(lists []fat, elems []elemKind, c closure, out elemKind) fat {
	n := lists[0].n
	for _, l := range lists[1:] {
		n = min(n, l.n)
	}
	result := vm.newList(n, out)
	args := make([]uint64, len(lists))
	for i := uint64(0); i < n; i++ {
		for k, l := range lists {
			args[k] = vm.elemAt(l, i, elems[k])
			elems[k].inc(args[k], 1)
		}
		c.call(vm.elemAt(result, i, out), args...)
	}
	for k, l := range lists {
		vm.decList(l, elems[k])
	}
	c.done()
	return result
}

func rtListMap(vm *VM, args []Value) Value {
	r := vm.reader(args)
	list, desc := r.fat(), r.ptr()
	in, out := r.elem(), r.elem()
	return vm.fatValue(vm.mapN([]fat{list}, []elemKind{in}, vm.closureAt(desc), out))
}

func rtListMap2(vm *VM, args []Value) Value {
	r := vm.reader(args)
	a, b, desc := r.fat(), r.fat(), r.ptr()
	ea, eb, out := r.elem(), r.elem(), r.elem()
	return vm.fatValue(vm.mapN([]fat{a, b}, []elemKind{ea, eb}, vm.closureAt(desc), out))
}

func rtListMap3(vm *VM, args []Value) Value {
	r := vm.reader(args)
	a, b, c, desc := r.fat(), r.fat(), r.fat(), r.ptr()
	ea, eb, ec, out := r.elem(), r.elem(), r.elem(), r.elem()
	return vm.fatValue(vm.mapN([]fat{a, b, c}, []elemKind{ea, eb, ec}, vm.closureAt(desc), out))
}

// filter builds a list from the elements keep selects. keep consumes one
// reference to each element; kept elements get their own.
func (vm *VM) filter(list fat, e elemKind, keep func(at uint64) bool) fat {
	var picked []uint64
	for i := uint64(0); i < list.n; i++ {
		at := vm.elemAt(list, i, e)
		if keep(at) {
			picked = append(picked, at)
		}
	}
	out := vm.newList(uint64(len(picked)), e)
	w := vm.size(e.width, "element width")
	dst := out.data
	for _, at := range picked {
		vm.copyMem(dst, at, w)
		e.inc(dst, 1)
		dst += e.width
	}
	vm.decList(list, e)
	return out
}

func rtListKeepIf(vm *VM, args []Value) Value {
	r := vm.reader(args)
	list, c := r.fat(), vm.closureAt(r.ptr())
	e := r.elem()
	flag := vm.scratch(1, 1)
	out := vm.filter(list, e, func(at uint64) bool {
		e.inc(at, 1)
		c.call(flag, at)
		return vm.readUint(flag, 1)&1 == 1
	})
	c.done()
	return vm.fatValue(out)
}

// Result unions carry tag 0 for Err and 1 for Ok, payload after the tag.
const (
	tagErr = 0
	tagOk  = 1
)

func keepResults(vm *VM, args []Value, want uint64) Value {
	r := vm.reader(args)
	list, c := r.fat(), vm.closureAt(r.ptr())
	in := r.elem()
	resWidth, resDec := r.word(), r.ptr()
	out := r.elem()
	res := vm.scratch(resWidth, 8)
	w := vm.size(out.width, "element width")
	var payloads [][]byte
	for i := uint64(0); i < list.n; i++ {
		at := vm.elemAt(list, i, in)
		in.inc(at, 1)
		c.call(res, at)
		if vm.readUint(res, 8) != want {
			if resDec != 0 {
				vm.CallAddr(resDec, Ptr(res))
			}
			continue
		}
		// The payload moves into the result list.
		payloads = append(payloads, append([]byte(nil), vm.Bytes(res+8, w)...))
	}
	result := vm.newList(uint64(len(payloads)), out)
	dst := result.data
	for _, p := range payloads {
		copy(vm.Bytes(dst, w), p)
		dst += out.width
	}
	vm.decList(list, in)
	c.done()
	return vm.fatValue(result)
}

func rtListKeepOks(vm *VM, args []Value) Value { return keepResults(vm, args, tagOk) }

func rtListKeepErrs(vm *VM, args []Value) Value { return keepResults(vm, args, tagErr) }

// walk folds the closure over the given element addresses. The state is
// owned by each callback in turn.
func (vm *VM) walk(state, out uint64, width uint64, c closure, steps uint64, step func(i uint64) []uint64) {
	w := vm.size(width, "state width")
	cur, next := vm.scratch(width, 8), vm.scratch(width, 8)
	vm.copyMem(cur, state, w)
	for i := uint64(0); i < steps; i++ {
		c.call(next, append([]uint64{cur}, step(i)...)...)
		cur, next = next, cur
	}
	vm.copyMem(out, cur, w)
}

func walkList(vm *VM, args []Value, backwards bool) Value {
	r := vm.reader(args)
	list, state, out, c := r.fat(), r.ptr(), r.ptr(), vm.closureAt(r.ptr())
	e := r.elem()
	width := r.word()
	n := list.n
	vm.walk(state, out, width, c, n, func(i uint64) []uint64 {
		if backwards {
			i = n - 1 - i
		}
		at := vm.elemAt(list, i, e)
		e.inc(at, 1)
		return []uint64{at}
	})
	vm.decList(list, e)
	c.done()
	return Value{}
}

func rtListWalk(vm *VM, args []Value) Value { return walkList(vm, args, false) }

func rtListWalkBackwards(vm *VM, args []Value) Value { return walkList(vm, args, true) }

// Walk steps carry tag 0 for Continue and 1 for Stop, the state after the
// tag.
const stepStop = 1

func rtListWalkUntil(vm *VM, args []Value) Value {
	r := vm.reader(args)
	list, state, out, c := r.fat(), r.ptr(), r.ptr(), vm.closureAt(r.ptr())
	e := r.elem()
	width, stepWidth := r.word(), r.word()
	w := vm.size(width, "state width")
	cur, step := vm.scratch(width, 8), vm.scratch(stepWidth, 8)
	vm.copyMem(cur, state, w)
	for i := uint64(0); i < list.n; i++ {
		at := vm.elemAt(list, i, e)
		e.inc(at, 1)
		c.call(step, cur, at)
		vm.copyMem(cur, step+8, w)
		if vm.readUint(step, 8) == stepStop {
			break
		}
	}
	vm.copyMem(out, cur, w)
	vm.decList(list, e)
	c.done()
	return Value{}
}

func rtDictWalk(vm *VM, args []Value) Value {
	r := vm.reader(args)
	dict, state, out, c := r.fat(), r.ptr(), r.ptr(), vm.closureAt(r.ptr())
	d := r.entry()
	width := r.word()
	key, val := d.keyElem(), d.valueElem()
	vm.walk(state, out, width, c, dict.n, func(i uint64) []uint64 {
		at := dict.data + i*d.width
		key.inc(at, 1)
		val.inc(at+d.valueOff, 1)
		return []uint64{at, at + d.valueOff}
	})
	vm.decList(dict, d.asElem())
	c.done()
	return Value{}
}

// Ordering values returned by comparators.
const (
	orderEQ = 0
	orderGT = 1
	orderLT = 2
)

func rtListSortWith(vm *VM, args []Value) Value {
	r := vm.reader(args)
	list, c := r.fat(), vm.closureAt(r.ptr())
	e := r.elem()
	list = vm.makeUnique(list, e)
	n := vm.size(list.n, "list length")
	order := make([]uint64, n)
	at := list.data
	for i := range order {
		order[i] = at
		at += e.width
	}
	res := vm.scratch(1, 1)
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		e.inc(a, 1)
		e.inc(b, 1)
		c.call(res, a, b)
		return vm.readUint(res, 1) == orderLT
	})
	if n > 1 {
		w := vm.size(e.width, "element width")
		sorted := make([]byte, 0, n*w)
		for _, at := range order {
			sorted = append(sorted, vm.Bytes(at, w)...)
		}
		copy(vm.Bytes(list.data, n*w), sorted)
	}
	c.done()
	return vm.fatValue(list)
}
