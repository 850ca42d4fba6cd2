package vm

// Dictionaries are lists of {key, value} entries kept in insertion order.
// Lookups scan linearly with the generated key equality.

func (vm *VM) find(dict fat, key uint64, d entryKind) (uint64, bool) {
	for i := uint64(0); i < dict.n; i++ {
		if vm.callEq(d.keyEq, dict.data+i*d.width, key) {
			return i, true
		}
	}
	return 0, false
}

// insert consumes dict and the key and value at the given addresses.
func (vm *VM) insert(dict fat, key, value uint64, d entryKind) fat {
	e := d.asElem()
	if i, ok := vm.find(dict, key, d); ok {
		dict = vm.makeUnique(dict, e)
		at := dict.data + i*d.width
		d.valueElem().dec(at + d.valueOff)
		vm.copyMem(at+d.valueOff, value, int(d.valueWidth))
		d.keyElem().dec(key)
		return dict
	}
	out := vm.newList(dict.n+1, e)
	vm.moveElems(dict, e, out.data)
	at := out.data + dict.n*d.width
	vm.copyMem(at, key, int(d.keyWidth))
	vm.copyMem(at+d.valueOff, value, int(d.valueWidth))
	return out
}

func rtDictInsert(vm *VM, args []Value) Value {
	r := vm.reader(args)
	dict, key, value := r.fat(), r.ptr(), r.ptr()
	return vm.fatValue(vm.insert(dict, key, value, r.entry()))
}

func rtDictRemove(vm *VM, args []Value) Value {
	r := vm.reader(args)
	dict, key := r.fat(), r.ptr()
	d := r.entry()
	i, ok := vm.find(dict, key, d)
	if !ok {
		return vm.fatValue(dict)
	}
	e := d.asElem()
	dict = vm.makeUnique(dict, e)
	at := dict.data + i*d.width
	e.dec(at)
	tail := (dict.n - i - 1) * d.width
	vm.copyMem(at, at+d.width, int(tail))
	return vm.fatValue(vm.truncate(dict, dict.n-1, e))
}

func rtDictContains(vm *VM, args []Value) Value {
	r := vm.reader(args)
	dict, key := r.fat(), r.ptr()
	_, ok := vm.find(dict, key, r.entry())
	return Bool(ok)
}

// rtDictGetUnsafe copies the value stored under key to out without taking
// a reference, like a list element read.
func rtDictGetUnsafe(vm *VM, args []Value) Value {
	r := vm.reader(args)
	dict, key, out := r.fat(), r.ptr(), r.ptr()
	d := r.entry()
	i, ok := vm.find(dict, key, d)
	if !ok {
		vm.trap(TrapOutOfBounds, "dictionary has no entry for the key")
	}
	vm.copyMem(out, dict.data+i*d.width+d.valueOff, int(d.valueWidth))
	return Value{}
}

// project builds a new list from the key or value of every entry.
func (vm *VM) project(dict fat, d entryKind, e elemKind, off uint64) fat {
	out := vm.newList(dict.n, e)
	for i := uint64(0); i < dict.n; i++ {
		at := vm.elemAt(out, i, e)
		vm.copyMem(at, dict.data+i*d.width+off, int(e.width))
		e.inc(at, 1)
	}
	return out
}

func rtDictKeys(vm *VM, args []Value) Value {
	r := vm.reader(args)
	dict := r.fat()
	d := r.entry()
	return vm.fatValue(vm.project(dict, d, r.elem(), 0))
}

func rtDictValues(vm *VM, args []Value) Value {
	r := vm.reader(args)
	dict := r.fat()
	d := r.entry()
	return vm.fatValue(vm.project(dict, d, r.elem(), d.valueOff))
}

// rtDictUnion inserts every entry of b into a; values of b win.
func rtDictUnion(vm *VM, args []Value) Value {
	r := vm.reader(args)
	a, b := r.fat(), r.fat()
	d := r.entry()
	e := d.asElem()
	out := a
	scratch := vm.stackAlloc(int(d.width), d.align)
	for i := uint64(0); i < b.n; i++ {
		vm.copyMem(scratch, b.data+i*d.width, int(d.width))
		e.inc(scratch, 1)
		out = vm.insert(out, scratch, scratch+d.valueOff, d)
	}
	vm.decList(b, e)
	return vm.fatValue(out)
}

func rtDictEqual(vm *VM, args []Value) Value {
	r := vm.reader(args)
	a, b := r.fat(), r.fat()
	d := r.entry()
	valueEq := r.ptr()
	if a.n != b.n {
		return Bool(false)
	}
	for i := uint64(0); i < a.n; i++ {
		at := a.data + i*d.width
		j, ok := vm.find(b, at, d)
		if !ok || !vm.callEq(valueEq, at+d.valueOff, b.data+j*d.width+d.valueOff) {
			return Bool(false)
		}
	}
	return Bool(true)
}
