package vm

import (
	"errors"
	"math"
	"strings"
	"testing"

	"lgen/internal/mir"
)

func newModule() *mir.Module {
	return mir.NewModule("x86_64-unknown-linux-gnu", 8)
}

// declare registers runtime routines by name; the VM binds them itself.
func declare(mod *mir.Module, names ...string) {
	for _, n := range names {
		mod.AddDecl(&mir.Decl{Name: n})
	}
}

func mustCall(t *testing.T, vm *VM, name string, args ...Value) Value {
	t.Helper()
	v, err := vm.Call(name, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func wantTrap(t *testing.T, err error, code TrapCode) {
	t.Helper()
	tr, ok := IsTrap(err)
	if !ok {
		t.Fatalf("expected trap %s, got %v", code, err)
	}
	if tr.Code != code {
		t.Fatalf("expected trap %s, got %s (%s)", code, tr.Code, tr.Message)
	}
}

func TestLoopWithPhis(t *testing.T) {
	mod := newModule()
	f := mir.NewFunc("sum", []mir.Type{mir.I64()}, mir.I64(), mir.CallConvFast, mir.LinkageInternal)
	mod.AddFunc(f)
	b := mir.NewBuilder(f)
	entry, head, body, exit := b.NewBlock("entry"), b.NewBlock("head"), b.NewBlock("body"), b.NewBlock("exit")
	b.SetBlock(entry)
	b.Goto(head)
	b.SetBlock(head)
	i := b.Phi(mir.I64(), mir.PhiIncoming{Block: entry, Value: mir.Const(mir.I64(), 1)})
	acc := b.Phi(mir.I64(), mir.PhiIncoming{Block: entry, Value: mir.Const(mir.I64(), 0)})
	b.If(b.Cmp(mir.CmpSLe, i, f.Arg(0)), body, exit)
	b.SetBlock(body)
	acc2 := b.Binary(mir.BinAdd, acc, i)
	i2 := b.Binary(mir.BinAdd, i, mir.Const(mir.I64(), 1))
	b.Goto(head)
	phis := f.Block(head).Instrs
	phis[0].Phi.Incoming = append(phis[0].Phi.Incoming, mir.PhiIncoming{Block: body, Value: i2})
	phis[1].Phi.Incoming = append(phis[1].Phi.Incoming, mir.PhiIncoming{Block: body, Value: acc2})
	b.SetBlock(exit)
	b.Ret(acc)

	vm := New(mod, Options{})
	tests := []struct {
		n, want int64
	}{
		{0, 0},
		{1, 1},
		{10, 55},
		{100, 5050},
	}
	for _, tt := range tests {
		got := mustCall(t, vm, "sum", I64(tt.n))
		if got.Signed(64) != tt.want {
			t.Errorf("sum(%d) = %d, want %d", tt.n, got.Signed(64), tt.want)
		}
	}
}

// throwingModule defines boom, which raises "boom", and guarded, which
// invokes it and returns 1 when it raised.
func throwingModule() *mir.Module {
	mod := newModule()
	declare(mod, "rt_throw", "rt_exception_message")
	mod.AddGlobal(&mir.Global{Name: "msg.0", Bytes: []byte("boom\x00"), Align: 1})

	boom := mir.NewFunc("boom", nil, mir.I64(), mir.CallConvFast, mir.LinkageInternal)
	mod.AddFunc(boom)
	b := mir.NewBuilder(boom)
	b.SetBlock(b.NewBlock("entry"))
	b.Call(mir.Void(), mir.FuncAddr("rt_throw"), mir.CallConvC, mir.GlobalAddr("msg.0"))
	b.Unreachable()

	guarded := mir.NewFunc("guarded", nil, mir.I64(), mir.CallConvFast, mir.LinkageInternal)
	mod.AddFunc(guarded)
	b = mir.NewBuilder(guarded)
	entry, ok, caught := b.NewBlock("entry"), b.NewBlock("ok"), b.NewBlock("caught")
	b.SetBlock(entry)
	b.Alloca(mir.I64(), 8)
	v := b.Invoke(mir.I64(), mir.FuncAddr("boom"), mir.CallConvFast, nil, ok, caught)
	b.SetBlock(ok)
	b.Ret(v)
	b.SetBlock(caught)
	exn := b.LandingPad()
	b.Call(mir.Ptr(), mir.FuncAddr("rt_exception_message"), mir.CallConvC, exn)
	b.Ret(mir.Const(mir.I64(), 1))
	return mod
}

func TestInvokeCatchesExceptions(t *testing.T) {
	vm := New(throwingModule(), Options{})
	sp := vm.mem.sp
	got := mustCall(t, vm, "guarded")
	if got.Signed(64) != 1 {
		t.Fatalf("guarded() = %d, want 1", got.Signed(64))
	}
	if vm.mem.sp != sp {
		t.Fatalf("stack pointer not restored: %d != %d", vm.mem.sp, sp)
	}

	_, err := vm.Call("boom")
	x, ok := IsException(err)
	if !ok {
		t.Fatalf("expected exception, got %v", err)
	}
	if x.Message != "boom" {
		t.Fatalf("message = %q, want %q", x.Message, "boom")
	}
	var target *Exception
	if !errors.As(err, &target) || target.Payload == 0 {
		t.Fatalf("exception payload missing: %+v", target)
	}
}

func TestTraps(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *mir.Builder, f *mir.Func)
		code  TrapCode
	}{
		{
			name: "null load",
			build: func(b *mir.Builder, f *mir.Func) {
				b.Ret(b.Load(mir.I64(), mir.Null()))
			},
			code: TrapNullDeref,
		},
		{
			name: "divide by zero",
			build: func(b *mir.Builder, f *mir.Func) {
				b.Ret(b.Binary(mir.BinSDiv, mir.Const(mir.I64(), 7), mir.Const(mir.I64(), 0)))
			},
			code: TrapDivideByZero,
		},
		{
			name: "unreachable",
			build: func(b *mir.Builder, f *mir.Func) {
				b.Unreachable()
			},
			code: TrapUnreachable,
		},
		{
			name: "call of data",
			build: func(b *mir.Builder, f *mir.Func) {
				b.Ret(b.Call(mir.I64(), mir.Const(mir.Ptr(), 4096), mir.CallConvC))
			},
			code: TrapBadCall,
		},
		{
			name: "unbounded recursion",
			build: func(b *mir.Builder, f *mir.Func) {
				b.Ret(b.Call(mir.I64(), mir.FuncAddr("f"), mir.CallConvFast))
			},
			code: TrapStackOverflow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := newModule()
			f := mir.NewFunc("f", nil, mir.I64(), mir.CallConvFast, mir.LinkageInternal)
			mod.AddFunc(f)
			b := mir.NewBuilder(f)
			b.SetBlock(b.NewBlock("entry"))
			tt.build(b, f)
			vm := New(mod, Options{MaxDepth: 64})
			_, err := vm.Call("f")
			wantTrap(t, err, tt.code)
		})
	}
}

func TestTrapBacktrace(t *testing.T) {
	mod := newModule()
	inner := mir.NewFunc("inner", nil, mir.Void(), mir.CallConvFast, mir.LinkageInternal)
	mod.AddFunc(inner)
	b := mir.NewBuilder(inner)
	b.SetBlock(b.NewBlock("entry"))
	b.Unreachable()
	outer := mir.NewFunc("outer", nil, mir.Void(), mir.CallConvFast, mir.LinkageInternal)
	mod.AddFunc(outer)
	b = mir.NewBuilder(outer)
	b.SetBlock(b.NewBlock("entry"))
	b.Call(mir.Void(), mir.FuncAddr("inner"), mir.CallConvFast)
	b.RetVoid()

	_, err := New(mod, Options{}).Call("outer")
	tr, ok := IsTrap(err)
	if !ok {
		t.Fatalf("expected trap, got %v", err)
	}
	if len(tr.Backtrace) != 2 || tr.Backtrace[0].Func != "inner" || tr.Backtrace[1].Func != "outer" {
		t.Fatalf("backtrace = %+v", tr.Backtrace)
	}
}

func TestAllocator(t *testing.T) {
	mod := newModule()
	declare(mod, "roc_alloc", "roc_dealloc")
	vm := New(mod, Options{})
	p := mustCall(t, vm, "roc_alloc", I64(24), Int(8, 32))
	if p.Bits%8 != 0 || p.Bits == 0 {
		t.Fatalf("bad block address 0x%x", p.Bits)
	}
	if s := vm.Stats(); s.Allocs != 1 || s.Live != 1 || s.LiveBytes != 24 {
		t.Fatalf("stats after alloc = %+v", s)
	}
	mustCall(t, vm, "roc_dealloc", p, Int(8, 32))
	if s := vm.Stats(); s.Frees != 1 || s.Live != 0 || s.LiveBytes != 0 {
		t.Fatalf("stats after dealloc = %+v", s)
	}
	if b := vm.Bytes(p.Bits, 1)[0]; b != freedByte {
		t.Fatalf("freed memory not poisoned: 0x%x", b)
	}
	_, err := vm.Call("roc_dealloc", p, Int(8, 32))
	wantTrap(t, err, TrapDoubleFree)
	_, err = vm.Call("roc_dealloc", Ptr(p.Bits+8), Int(8, 32))
	wantTrap(t, err, TrapBadFree)
}

func TestMemoryLimit(t *testing.T) {
	mod := newModule()
	declare(mod, "roc_alloc")
	vm := New(mod, Options{StackBytes: 4096, MemoryLimit: 64 << 10})
	_, err := vm.Call("roc_alloc", I64(1<<20), Int(8, 32))
	wantTrap(t, err, TrapOutOfMemory)
}

func TestStrRoutines(t *testing.T) {
	mod := newModule()
	declare(mod, "rt_str_concat", "rt_str_count_graphemes", "rt_str_split", "rt_str_equal", "rt_str_from_int")
	vm := New(mod, Options{})

	a, b := vm.NewStr("a string too long to fit inline"), vm.NewStr(" and another one")
	if s := vm.Stats(); s.Live != 2 {
		t.Fatalf("live blocks = %d, want 2", s.Live)
	}
	joined := mustCall(t, vm, "rt_str_concat", a, b)
	if got := vm.ReadStr(joined); got != "a string too long to fit inline and another one" {
		t.Fatalf("concat = %q", got)
	}
	if s := vm.Stats(); s.Live != 1 {
		t.Fatalf("concat must consume its inputs: live = %d", s.Live)
	}

	small := vm.NewStr("tiny")
	if vm.signedWord(small.Field(1).Bits) >= 0 {
		t.Fatalf("short string not stored inline: %+v", small)
	}
	if got := vm.ReadStr(small); got != "tiny" {
		t.Fatalf("inline string = %q", got)
	}

	n := mustCall(t, vm, "rt_str_count_graphemes", vm.NewStr("é👍🏽!"))
	if n.Bits != 3 {
		t.Fatalf("graphemes = %d, want 3", n.Bits)
	}

	parts := mustCall(t, vm, "rt_str_split", vm.NewStr("a,b,,c"), vm.NewStr(","))
	fat := mir.Struct(mir.Ptr(), mir.I64())
	var got []string
	for _, v := range vm.ReadList(fat, parts) {
		got = append(got, vm.ReadStr(v))
	}
	if len(got) != 4 || got[0] != "a" || got[1] != "b" || got[2] != "" || got[3] != "c" {
		t.Fatalf("split = %q", got)
	}

	eq := mustCall(t, vm, "rt_str_equal", vm.NewStr("same text, long enough for heap"), vm.NewStr("same text, long enough for heap"))
	if !eq.Truth() {
		t.Fatalf("equal strings compare unequal")
	}
	if s := vm.ReadStr(mustCall(t, vm, "rt_str_from_int", I64(-1234))); s != "-1234" {
		t.Fatalf("from_int = %q", s)
	}
}

// elemArgs is the element description of a plain i64 element.
func elemArgs() []Value {
	return []Value{I64(8), Int(8, 32), Ptr(0), Ptr(0)}
}

func TestListRoutines(t *testing.T) {
	mod := newModule()
	declare(mod, "rt_list_append", "rt_list_reverse", "rt_list_concat", "rt_list_set")
	vm := New(mod, Options{})

	slot := vm.Malloc(8, 8)
	vm.Store(mir.I64(), slot, I64(3))
	list := vm.NewI64List(1, 2)
	list = mustCall(t, vm, "rt_list_append", append([]Value{list, Ptr(slot)}, elemArgs()...)...)
	if got := vm.ReadI64List(list); len(got) != 3 || got[2] != 3 {
		t.Fatalf("append = %v", got)
	}
	if s := vm.Stats(); s.Live != 2 {
		t.Fatalf("append must release the unique input: live = %d", s.Live)
	}

	data := list.Field(0).Bits
	list = mustCall(t, vm, "rt_list_reverse", append([]Value{list}, elemArgs()...)...)
	if list.Field(0).Bits != data {
		t.Fatalf("reverse of a unique list must work in place")
	}
	if got := vm.ReadI64List(list); got[0] != 3 || got[1] != 2 || got[2] != 1 {
		t.Fatalf("reverse = %v", got)
	}

	// A shared list is copied and keeps its contents.
	vm.rcInc(data, 1)
	vm.Store(mir.I64(), slot, I64(9))
	copied := mustCall(t, vm, "rt_list_set", append([]Value{list, I64(0), Ptr(slot)}, elemArgs()...)...)
	if copied.Field(0).Bits == data {
		t.Fatalf("set of a shared list must copy")
	}
	if got := vm.ReadI64List(copied); got[0] != 9 || got[1] != 2 {
		t.Fatalf("set = %v", got)
	}
	if vm.Refcount(data) != 1 {
		t.Fatalf("shared list count = %d, want 1", vm.Refcount(data))
	}
	if got := vm.ReadI64List(list); got[0] != 3 {
		t.Fatalf("original changed: %v", got)
	}

	both := mustCall(t, vm, "rt_list_concat", append([]Value{list, copied}, elemArgs()...)...)
	if got := vm.ReadI64List(both); len(got) != 6 {
		t.Fatalf("concat = %v", got)
	}
	empty := mustCall(t, vm, "rt_list_concat", append([]Value{vm.NewI64List(), vm.NewI64List()}, elemArgs()...)...)
	if empty.Field(0).Bits != 0 || empty.Field(1).Bits != 0 {
		t.Fatalf("empty concat = %+v", empty)
	}
}

func TestPowInt(t *testing.T) {
	tests := []struct {
		base, exp, want int64
	}{
		{2, 10, 1024},
		{-3, 3, -27},
		{7, 0, 1},
		{2, -1, 0},
		{1, -5, 1},
		{-1, -3, -1},
		{2, 64, 0},
	}
	for _, tt := range tests {
		got := rtNumPowInt(nil, []Value{I64(tt.base), I64(tt.exp)})
		if got.Signed(64) != tt.want {
			t.Errorf("pow(%d, %d) = %d, want %d", tt.base, tt.exp, got.Signed(64), tt.want)
		}
	}
}

func TestOverflow(t *testing.T) {
	tests := []struct {
		name string
		op   mir.OverflowOp
		bits int
		x, y int64
		want int64
		over bool
	}{
		{"sadd i8 wraps", mir.OverflowSAdd, 8, 127, 1, -128, true},
		{"sadd i64 fits", mir.OverflowSAdd, 64, 40, 2, 42, false},
		{"sadd i64 max", mir.OverflowSAdd, 64, math.MaxInt64, 1, math.MinInt64, true},
		{"ssub i32 min", mir.OverflowSSub, 32, math.MinInt32, 1, math.MaxInt32, true},
		{"smul i64", mir.OverflowSMul, 64, 1 << 32, 1 << 32, 0, true},
		{"smul i64 min", mir.OverflowSMul, 64, math.MinInt64, 1, math.MinInt64, false},
		{"smul i64 negative", mir.OverflowSMul, 64, -4, 5, -20, false},
		{"smul i16", mir.OverflowSMul, 16, 300, 300, 24464, true},
		{"usub below zero", mir.OverflowUSub, 8, 1, 2, -1, true},
		{"umul i8", mir.OverflowUMul, 8, 16, 16, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, over := overflow(tt.op, tt.bits, Int(tt.x, tt.bits), Int(tt.y, tt.bits))
			if over != tt.over {
				t.Fatalf("overflowed = %v, want %v", over, tt.over)
			}
			if r.Bits != mask(uint64(tt.want), tt.bits) {
				t.Fatalf("result = %d, want %d", r.Signed(tt.bits), tt.want)
			}
		})
	}
}

func TestCasts(t *testing.T) {
	vm := New(newModule(), Options{})
	tests := []struct {
		name     string
		op       mir.CastOp
		from, to mir.Type
		in       Value
		want     Value
	}{
		{"sext i8", mir.CastSExt, mir.I8(), mir.I64(), Int(-5, 8), I64(-5)},
		{"zext i8", mir.CastZExt, mir.I8(), mir.I64(), Int(-1, 8), I64(255)},
		{"trunc", mir.CastTrunc, mir.I64(), mir.I8(), I64(0x1ff), Int(-1, 8)},
		{"sitofp", mir.CastSIToFP, mir.I64(), mir.F64(), I64(-2), F64(-2)},
		{"fptosi", mir.CastFPToSI, mir.F64(), mir.I64(), F64(-2.75), I64(-2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vm.cast(tt.op, tt.from, tt.to, tt.in)
			if got.Bits != tt.want.Bits {
				t.Fatalf("got 0x%x, want 0x%x", got.Bits, tt.want.Bits)
			}
		})
	}
}

func TestSizeRejectsWidthsBeyondInt(t *testing.T) {
	v := New(newModule(), Options{})
	if got := v.size(24, "state width"); got != 24 {
		t.Fatalf("size(24) = %d", got)
	}
	caught := func() (r any) {
		defer func() { r = recover() }()
		v.size(math.MaxUint64, "state width")
		return nil
	}()
	tr, ok := caught.(*Trap)
	if !ok {
		t.Fatalf("size(max uint64) recovered %v, want a trap", caught)
	}
	if tr.Code != TrapOutOfBounds || !strings.Contains(tr.Message, "state width") {
		t.Fatalf("trap = %v", tr)
	}
}
