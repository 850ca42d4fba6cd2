// Package vm interprets MIR modules.
//
// Memory is one flat little-endian byte space with a null guard, the module
// globals, a stack region for allocas and a bump heap behind roc_alloc.
// Runtime routines and float intrinsics are implemented in Go; foreign
// symbols come from Options.Host. Program exceptions unwind as Go panics to
// the nearest invoke. Faults of the program itself are traps.
package vm

import (
	"errors"
	"fmt"
	"strconv"

	"lgen/internal/mir"
	"lgen/internal/trace"
)

// Builtin implements a declared routine in Go. Arguments arrive in the
// declared parameter order; the result is ignored for void routines.
type Builtin func(vm *VM, args []Value) Value

// Options configures VM execution.
type Options struct {
	Tracer trace.Tracer
	// Parent is the span calls are traced under.
	Parent uint64
	// StackBytes sizes the alloca region.
	StackBytes int
	// MemoryLimit caps the end of the heap.
	MemoryLimit uint64
	// MaxDepth bounds nested calls.
	MaxDepth int
	// Host supplies foreign symbols the module calls by name.
	Host map[string]Builtin
}

// DefaultOptions returns a 1 MiB stack, a 256 MiB memory limit and a call
// depth of 10000.
func DefaultOptions() Options {
	return Options{
		StackBytes:  1 << 20,
		MemoryLimit: 256 << 20,
		MaxDepth:    10000,
	}
}

// callee is one entry of the code address table.
type callee struct {
	name    string
	fn      *mir.Func
	decl    *mir.Decl
	builtin Builtin
}

type frame struct {
	fn    *mir.Func
	block mir.BlockID
	regs  []Value
	exn   uint64
}

// VM interprets a MIR module over a flat little-endian memory.
type VM struct {
	mod    *mir.Module
	opts   Options
	tracer trace.Tracer

	mem     memory
	globals map[string]uint64
	code    []callee
	codeIdx map[string]int

	frames []*frame
}

// New prepares mod for execution. Declarations without an implementation
// are accepted; calling one traps.
func New(mod *mir.Module, opts Options) *VM {
	def := DefaultOptions()
	if opts.StackBytes <= 0 {
		opts.StackBytes = def.StackBytes
	}
	if opts.MemoryLimit == 0 {
		opts.MemoryLimit = def.MemoryLimit
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	vm := &VM{
		mod:     mod,
		opts:    opts,
		tracer:  tracer,
		codeIdx: make(map[string]int),
	}
	vm.mem = memory{
		ptr:    mod.PtrBytes,
		limit:  opts.MemoryLimit,
		blocks: make(map[uint64]*block),
	}
	if vm.mem.ptr == 0 {
		vm.mem.ptr = 8
	}
	vm.globals = vm.placeGlobals(mod.Globals)
	vm.mem.stackEnd = vm.mem.stackBase + uint64(opts.StackBytes)
	vm.mem.sp = vm.mem.stackBase
	vm.mem.heapBase = roundUp(vm.mem.stackEnd, 16)
	vm.mem.brk = vm.mem.heapBase
	vm.grow(vm.mem.heapBase)

	for _, f := range mod.Funcs {
		vm.addCode(callee{name: f.Name, fn: f})
	}
	for _, d := range mod.Decls {
		c := callee{name: d.Name, decl: d}
		if b, ok := opts.Host[d.Name]; ok {
			c.builtin = b
		} else if b, ok := builtins[d.Name]; ok {
			c.builtin = b
		}
		vm.addCode(c)
	}
	return vm
}

func (vm *VM) addCode(c callee) {
	if _, ok := vm.codeIdx[c.name]; ok {
		return
	}
	vm.codeIdx[c.name] = len(vm.code)
	vm.code = append(vm.code, c)
}

// PtrBytes is the pointer width of the loaded module.
func (vm *VM) PtrBytes() int { return vm.mem.ptr }

// Stats reports host allocator counters.
func (vm *VM) Stats() Stats { return vm.mem.stats }

// FuncAddr returns the code address of a function or declared routine.
func (vm *VM) FuncAddr(name string) (uint64, bool) {
	i, ok := vm.codeIdx[name]
	if !ok {
		return 0, false
	}
	return codeBase + 16*uint64(i), true
}

// GlobalAddr returns the address of a module global.
func (vm *VM) GlobalAddr(name string) (uint64, bool) {
	a, ok := vm.globals[name]
	return a, ok
}

func (vm *VM) resolve(addr uint64) *callee {
	if addr < codeBase || (addr-codeBase)%16 != 0 {
		vm.trap(TrapBadCall, "call of non-function address 0x%x", addr)
	}
	i := (addr - codeBase) / 16
	if i >= uint64(len(vm.code)) {
		vm.trap(TrapBadCall, "call of non-function address 0x%x", addr)
	}
	return &vm.code[i]
}

// Call runs the named function with args and returns its result. Traps and
// uncaught exceptions come back as *Trap and *Exception errors. Memory and
// allocator state persist across calls.
func (vm *VM) Call(name string, args ...Value) (result Value, err error) {
	i, ok := vm.codeIdx[name]
	if !ok {
		return Value{}, fmt.Errorf("vm: no function %q", name)
	}
	c := &vm.code[i]
	span := trace.Begin(vm.tracer, trace.ScopeUnit, "vm "+name, vm.opts.Parent)
	sp := vm.mem.sp
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case *Trap:
				err = v
			case *Exception:
				err = v
			default:
				panic(r)
			}
			vm.frames = vm.frames[:0]
			vm.mem.sp = sp
			result = Value{}
		}
		span.WithExtra("allocs", strconv.Itoa(vm.mem.stats.Allocs))
		span.WithExtra("live", strconv.Itoa(vm.mem.stats.Live))
		if err != nil {
			span.End(err.Error())
			return
		}
		span.End("")
	}()
	result = vm.invokeCallee(c, args)
	return result, nil
}

func (vm *VM) invokeCallee(c *callee, args []Value) Value {
	switch {
	case c.fn != nil:
		if len(args) != len(c.fn.Params) {
			vm.trap(TrapBadCall, "%s takes %d arguments, got %d", c.name, len(c.fn.Params), len(args))
		}
		return vm.run(c.fn, args)
	case c.builtin != nil:
		return c.builtin(vm, args)
	default:
		vm.trap(TrapBadCall, "no implementation for declared routine %s", c.name)
		return Value{}
	}
}

// IsTrap reports whether err is a VM trap and returns it.
func IsTrap(err error) (*Trap, bool) {
	var t *Trap
	ok := errors.As(err, &t)
	return t, ok
}

// IsException reports whether err is an uncaught program exception.
func IsException(err error) (*Exception, bool) {
	var x *Exception
	ok := errors.As(err, &x)
	return x, ok
}
