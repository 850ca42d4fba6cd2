package vm

// Lists are {data, len} over a refcounted buffer of fixed-width elements.
// Empty lists are {null, 0} and never own a buffer.

// newList allocates an owned, zeroed list of n elements.
func (vm *VM) newList(n uint64, e elemKind) fat {
	if n == 0 {
		return fat{}
	}
	return fat{data: vm.reserve(n*e.width, e.align), n: n}
}

func (vm *VM) elemAt(list fat, i uint64, e elemKind) uint64 { return list.data + i*e.width }

// decList drops one reference to list, releasing the elements when the
// buffer is freed.
func (vm *VM) decList(list fat, e elemKind) {
	if list.n == 0 {
		return
	}
	if !vm.rcDec(list.data) {
		return
	}
	for i := uint64(0); i < list.n; i++ {
		e.dec(vm.elemAt(list, i, e))
	}
	vm.release(list.data, e.align)
}

// moveElems copies the elements of list to dst and gives up list. dst owns
// the elements afterwards: a unique buffer hands them over and is freed,
// a shared one keeps its own and the copies are incremented.
func (vm *VM) moveElems(list fat, e elemKind, dst uint64) {
	if list.n == 0 {
		return
	}
	vm.copyMem(dst, list.data, int(list.n*e.width))
	if vm.unique(list.data) {
		vm.release(list.data, e.align)
		return
	}
	for i := uint64(0); i < list.n; i++ {
		e.inc(dst+i*e.width, 1)
	}
	vm.rcDec(list.data)
}

// makeUnique returns a list with the same elements whose buffer the caller
// may modify in place.
func (vm *VM) makeUnique(list fat, e elemKind) fat {
	if list.n == 0 || vm.unique(list.data) {
		return list
	}
	out := vm.newList(list.n, e)
	vm.moveElems(list, e, out.data)
	return out
}

// truncate shortens a unique list whose dropped elements were already
// released.
func (vm *VM) truncate(list fat, n uint64, e elemKind) fat {
	if n == 0 {
		vm.release(list.data, e.align)
		return fat{}
	}
	list.n = n
	return list
}

func rtListSet(vm *VM, args []Value) Value {
	r := vm.reader(args)
	list, idx, elem := r.fat(), r.word(), r.ptr()
	e := r.elem()
	if idx >= list.n {
		e.dec(elem)
		return vm.fatValue(list)
	}
	list = vm.makeUnique(list, e)
	at := vm.elemAt(list, idx, e)
	e.dec(at)
	vm.copyMem(at, elem, int(e.width))
	return vm.fatValue(list)
}

func rtListAppend(vm *VM, args []Value) Value {
	r := vm.reader(args)
	list, elem := r.fat(), r.ptr()
	e := r.elem()
	out := vm.newList(list.n+1, e)
	vm.moveElems(list, e, out.data)
	vm.copyMem(vm.elemAt(out, list.n, e), elem, int(e.width))
	return vm.fatValue(out)
}

func rtListPrepend(vm *VM, args []Value) Value {
	r := vm.reader(args)
	list, elem := r.fat(), r.ptr()
	e := r.elem()
	out := vm.newList(list.n+1, e)
	vm.copyMem(out.data, elem, int(e.width))
	vm.moveElems(list, e, vm.elemAt(out, 1, e))
	return vm.fatValue(out)
}

func rtListConcat(vm *VM, args []Value) Value {
	r := vm.reader(args)
	a, b := r.fat(), r.fat()
	e := r.elem()
	out := vm.newList(a.n+b.n, e)
	vm.moveElems(a, e, out.data)
	vm.moveElems(b, e, vm.elemAt(out, a.n, e))
	return vm.fatValue(out)
}

func rtListSingle(vm *VM, args []Value) Value {
	r := vm.reader(args)
	elem := r.ptr()
	e := r.elem()
	out := vm.newList(1, e)
	vm.copyMem(out.data, elem, int(e.width))
	return vm.fatValue(out)
}

func rtListRepeat(vm *VM, args []Value) Value {
	r := vm.reader(args)
	elem, n := r.ptr(), r.word()
	e := r.elem()
	if n == 0 {
		e.dec(elem)
		return vm.fatValue(fat{})
	}
	out := vm.newList(n, e)
	for i := uint64(0); i < n; i++ {
		vm.copyMem(vm.elemAt(out, i, e), elem, int(e.width))
	}
	e.inc(elem, n-1)
	return vm.fatValue(out)
}

func rtListReverse(vm *VM, args []Value) Value {
	r := vm.reader(args)
	list := r.fat()
	e := r.elem()
	list = vm.makeUnique(list, e)
	w := int(e.width)
	tmp := make([]byte, w)
	for i, j := uint64(0), list.n-1; list.n > 0 && i < j; i, j = i+1, j-1 {
		a, b := vm.elemAt(list, i, e), vm.elemAt(list, j, e)
		copy(tmp, vm.Bytes(a, w))
		vm.copyMem(a, b, w)
		copy(vm.Bytes(b, w), tmp)
	}
	return vm.fatValue(list)
}

// callEq calls a generated equality shim on two element addresses.
func (vm *VM) callEq(eq, a, b uint64) bool {
	return vm.CallAddr(eq, Ptr(a), Ptr(b)).Truth()
}

func rtListContains(vm *VM, args []Value) Value {
	r := vm.reader(args)
	list, x, width, eq := r.fat(), r.ptr(), r.word(), r.ptr()
	for i := uint64(0); i < list.n; i++ {
		if vm.callEq(eq, list.data+i*width, x) {
			return Bool(true)
		}
	}
	return Bool(false)
}

func rtListEqual(vm *VM, args []Value) Value {
	r := vm.reader(args)
	a, b, width, eq := r.fat(), r.fat(), r.word(), r.ptr()
	if a.n != b.n {
		return Bool(false)
	}
	if a.data == b.data {
		return Bool(true)
	}
	for i := uint64(0); i < a.n; i++ {
		if !vm.callEq(eq, a.data+i*width, b.data+i*width) {
			return Bool(false)
		}
	}
	return Bool(true)
}
