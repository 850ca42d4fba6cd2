package codegen

import (
	"fmt"

	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
)

// CallResultType is the {i64 flag, [W x i64] payload} record an exposed
// wrapper hands to the host. Flag 0 carries the result, flag 1 a pointer to
// the failure message.
func CallResultType(result layout.Layout, ptr int) mir.Type {
	words := (max(result.StackSize(ptr), ptr) + layout.TagBytes - 1) / layout.TagBytes
	return mir.Struct(mir.I64(), mir.Array(words, mir.I64()))
}

func (g *Generator) hostName(parts ...any) string {
	name := g.opts.HostPrefix + "__" + fmt.Sprint(parts...)
	if !g.hostNames.Insert(name) {
		panic(&InternalError{Detail: "duplicate host symbol " + name})
	}
	return name
}

func (g *Generator) generateHost() {
	for _, ex := range g.prog.Exposed {
		g.exposeProc(ex)
	}
	for _, c := range g.prog.Closures {
		g.exposeClosure(c)
	}
	if g.opts.Main != "" {
		g.generateMain()
	}
}

// constFunc defines an external C function returning a constant i64.
func (g *Generator) constFunc(name string, v int) {
	fn := mir.NewFunc(name, nil, mir.I64(), mir.CallConvC, mir.LinkageExternal)
	g.mod.AddFunc(fn)
	e := g.newEmitter(fn, name)
	e.b.SetBlock(e.block("entry"))
	e.b.Ret(mir.Const(mir.I64(), int64(v)))
}

func (g *Generator) exposeProc(ex mono.Exposed) {
	info := g.lookupProc(ex.Proc)
	result := info.proc.Result
	crType := CallResultType(result, g.ptr)
	catcher := g.catcher(ex.Ident, info, crType)

	name := g.hostName(ex.Ident, "_1_exposed")
	params := info.fn.ParamTypes()
	byValue := crType.Size(g.ptr) <= 2*g.ptr
	var fn *mir.Func
	if byValue {
		fn = mir.NewFunc(name, params, crType, mir.CallConvC, mir.LinkageExternal)
	} else {
		fn = mir.NewFunc(name, append(params, mir.Ptr()), mir.Void(), mir.CallConvC, mir.LinkageExternal)
	}
	g.mod.AddFunc(fn)
	e := g.newEmitter(fn, name)
	e.b.SetBlock(e.block("entry"))
	args := make([]mir.Operand, len(params))
	for i := range params {
		args[i] = fn.Arg(i)
	}
	cr := e.b.Call(crType, mir.FuncAddr(catcher), mir.CallConvFast, args...)
	if byValue {
		e.b.Ret(cr)
	} else {
		e.b.Store(cr, fn.Arg(len(params)))
		e.b.RetVoid()
	}

	g.constFunc(g.hostName(ex.Ident, "_size"), result.StackSize(g.ptr))
	g.constFunc(g.hostName(ex.Ident, "_result_size"), crType.Size(g.ptr))
}

// catcher invokes the procedure and packs its outcome into a CallResult.
func (g *Generator) catcher(ident string, info *procInfo, crType mir.Type) string {
	name := ident + "_catcher"
	fn := mir.NewFunc(name, info.fn.ParamTypes(), crType, mir.CallConvFast, mir.LinkageInternal)
	g.mod.AddFunc(fn)
	e := g.newEmitter(fn, name)
	e.b.SetBlock(e.block("entry"))
	args := make([]mir.Operand, len(fn.Params))
	for i := range fn.Params {
		args[i] = fn.Arg(i)
	}
	slot := e.entryAlloca(crType, layout.TagBytes)
	normal, unwind := e.block("ok"), e.block("caught")
	v := e.b.Invoke(info.fn.Result, mir.FuncAddr(info.name), mir.CallConvFast, args, normal, unwind)

	e.b.SetBlock(normal)
	e.b.Store(mir.Const(mir.I64(), 0), slot)
	if !info.proc.Result.IsZeroSized() {
		e.b.Store(v, e.b.PtrOffset(slot, layout.TagBytes))
	}
	e.b.Ret(e.b.Load(crType, slot))

	e.b.SetBlock(unwind)
	exn := e.b.LandingPad()
	msg := e.callRuntime(rtExceptionMessage, exn)
	e.b.Store(mir.Const(mir.I64(), 1), slot)
	e.b.Store(msg, e.b.PtrOffset(slot, layout.TagBytes))
	e.b.Ret(e.b.Load(crType, slot))
	return name
}

// exposeClosure emits the host caller of a closure together with its size
// functions. The caller reads captured data through its data pointer and
// writes the result through its out pointer.
func (g *Generator) exposeClosure(c mono.HostClosure) {
	info := g.lookupProc(c.Proc)
	p := info.proc
	captured := !c.Captured.IsZeroSized()
	n := len(p.Args)
	if captured {
		n--
	}
	if n < 0 {
		panic(&InternalError{Proc: info.name, Detail: "closure procedure does not take its captured data"})
	}
	params := append([]mir.Type(nil), info.fn.ParamTypes()[:n]...)
	params = append(params, mir.Ptr(), mir.Ptr())
	name := g.hostName(c.Def, "_", c.Alias, "_caller")
	fn := mir.NewFunc(name, params, mir.Void(), mir.CallConvC, mir.LinkageExternal)
	g.mod.AddFunc(fn)
	e := g.newEmitter(fn, name)
	e.b.SetBlock(e.block("entry"))
	args := make([]mir.Operand, 0, len(p.Args))
	for i := 0; i < n; i++ {
		args = append(args, fn.Arg(i))
	}
	if captured {
		args = append(args, e.b.Load(e.basic(c.Captured), fn.Arg(n)))
	}
	r := e.b.Call(info.fn.Result, mir.FuncAddr(info.name), mir.CallConvFast, args...)
	if !p.Result.IsZeroSized() {
		e.b.Store(r, fn.Arg(n+1))
	}
	e.b.RetVoid()

	g.constFunc(g.hostName(c.Def, "_", c.Alias, "_size"), c.Captured.StackSize(g.ptr))
	g.constFunc(g.hostName(c.Def, "_", c.Alias, "_result_size"), p.Result.StackSize(g.ptr))
}

// generateMain wraps a zero-argument procedure as the C entry point. The
// exit code is 0 on success and 1 when the procedure raised.
func (g *Generator) generateMain() {
	var info *procInfo
	for _, pi := range g.order {
		if string(pi.proc.Name) == g.opts.Main && pi.proc.IsThunk() {
			info = pi
			break
		}
	}
	if info == nil {
		panic(&InternalError{Symbol: mono.Symbol(g.opts.Main), Detail: "main procedure not found or takes arguments"})
	}
	if !g.hostNames.Insert("main") {
		panic(&InternalError{Detail: "duplicate host symbol main"})
	}
	fn := mir.NewFunc("main", nil, mir.I32(), mir.CallConvC, mir.LinkageExternal)
	g.mod.AddFunc(fn)
	e := g.newEmitter(fn, "main")
	e.b.SetBlock(e.block("entry"))
	normal, unwind := e.block("ok"), e.block("caught")
	v := e.b.Invoke(info.fn.Result, mir.FuncAddr(info.name), mir.CallConvFast, nil, normal, unwind)
	e.b.SetBlock(normal)
	e.decrement(v, info.proc.Result)
	e.b.Ret(mir.Const(mir.I32(), 0))
	e.b.SetBlock(unwind)
	e.b.LandingPad()
	e.b.Ret(mir.Const(mir.I32(), 1))
}

// hostCall is a prepared call of a host symbol with the C convention.
// Results wider than two words come back through the out slot.
type hostCall struct {
	callee mir.Operand
	ret    mir.Type
	args   []mir.Operand
	out    mir.Operand
	result mir.Type
}

func (e *emitter) prepareForeign(sym mono.Symbol, f mono.Foreign, args []Binding) hostCall {
	if f.Name == "" {
		e.fail(sym, "foreign call without a name")
	}
	params := make([]mir.Type, len(args))
	vals := make([]mir.Operand, len(args))
	for i, a := range args {
		params[i] = a.Value.Type
		vals[i] = a.Value
	}
	t := e.basic(f.Result)
	if f.Result.StackSize(e.ptr()) <= 2*e.ptr() {
		return hostCall{callee: e.g.intrinsic(f.Name, params, t), ret: t, args: vals, result: t}
	}
	out := e.entryAlloca(t, f.Result.Alignment(e.ptr()))
	return hostCall{
		callee: e.g.intrinsic(f.Name, append(params, mir.Ptr()), mir.Void()),
		ret:    mir.Void(),
		args:   append(vals, out),
		out:    out,
		result: t,
	}
}

// value returns the call result given what the call instruction produced.
func (c hostCall) value(e *emitter, v mir.Operand) mir.Operand {
	if c.ret.IsVoid() {
		return e.b.Load(c.result, c.out)
	}
	return v
}

// foreign calls a host symbol; exceptions raised by the host unwind through
// the enclosing procedure.
func (e *emitter) foreign(sym mono.Symbol, f mono.Foreign, args []Binding) mir.Operand {
	c := e.prepareForeign(sym, f, args)
	return c.value(e, e.b.Call(c.ret, c.callee, mir.CallConvC, c.args...))
}
