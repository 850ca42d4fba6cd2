package codegen

import (
	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
)

// exceptionLayout is the layout bound to caught exceptions: an opaque,
// non-refcounted pointer.
var exceptionLayout = layout.FunctionPointer(nil, layout.Unit())

// merge collects the values flowing into a join block.
type merge struct {
	incoming []mir.PhiIncoming
	from     []mir.BlockID
}

// add records the current block as a predecessor carrying v.
func (m *merge) add(e *emitter, v mir.Operand) {
	m.incoming = append(m.incoming, mir.PhiIncoming{Block: e.b.Cur, Value: v})
	m.from = append(m.from, e.b.Cur)
}

// finish branches every recorded predecessor to a fresh block and merges
// their values there. ok is false when no path reached the merge.
func (m *merge) finish(e *emitter, t mir.Type, name string) (mir.Operand, bool) {
	if len(m.from) == 0 {
		return mir.Operand{}, false
	}
	if len(m.from) == 1 {
		e.b.SetBlock(m.from[0])
		return m.incoming[0].Value, true
	}
	done := e.block(name)
	for _, blk := range m.from {
		e.b.SetBlock(blk)
		e.b.Goto(done)
	}
	e.b.SetBlock(done)
	if t.IsVoid() {
		return mir.Operand{}, true
	}
	return e.b.Phi(t, m.incoming...), true
}

// stmt lowers s, whose value has layout result. It returns the value and
// whether control reaches the end of the current block; false means the
// block was terminated by a jump, a raise or an unwind.
func (e *emitter) stmt(scope Scope, s mono.Stmt, result layout.Layout) (mir.Operand, bool) {
	for {
		switch st := s.(type) {
		case *mono.Let:
			v, l := e.expr(scope, st.Sym, st.Expr, st.Layout)
			scope = scope.Bind(st.Sym, l, v)
			s = st.Cont
			continue

		case *mono.Ret:
			return e.lookup(scope, st.Sym).Value, true

		case *mono.Refcounting:
			e.refcounting(scope, st)
			s = st.Cont
			continue

		case *mono.Switch:
			return e.switchStmt(scope, st, result)

		case *mono.Join:
			return e.join(scope, st, result)

		case *mono.Jump:
			jp, ok := scope.LookupJoin(st.ID)
			if !ok {
				e.fail("", "jump to unbound join point j%d", st.ID)
			}
			if len(st.Args) != len(jp.Slots) {
				e.fail("", "jump to j%d with %d args, want %d", st.ID, len(st.Args), len(jp.Slots))
			}
			for i, a := range st.Args {
				e.b.Store(e.lookup(scope, a).Value, jp.Slots[i])
			}
			e.b.Goto(jp.Block)
			return mir.Operand{}, false

		case *mono.Invoke:
			return e.invoke(scope, st, result)

		case *mono.Resume:
			e.b.Resume(e.lookup(scope, st.Exception).Value)
			return mir.Operand{}, false

		case *mono.RuntimeError:
			e.raise(st.Message)
			return mir.Operand{}, false

		case nil:
			e.fail("", "missing statement")
		default:
			e.fail("", "unsupported statement %T", s)
		}
	}
}

// lookup resolves a symbol. Unbound symbols naming a thunk call it.
func (e *emitter) lookup(scope Scope, sym mono.Symbol) Binding {
	if b, ok := scope.Lookup(sym); ok {
		return b
	}
	if info, ok := e.g.thunks[sym]; ok {
		v := e.b.Call(info.fn.Result, mir.FuncAddr(info.name), mir.CallConvFast)
		return Binding{Layout: info.proc.Result, Value: v}
	}
	e.fail(sym, "symbol %s is not bound", sym)
	return Binding{}
}

func (e *emitter) switchStmt(scope Scope, st *mono.Switch, result layout.Layout) (mir.Operand, bool) {
	cond := e.lookup(scope, st.Cond)
	condLayout := st.CondLayout
	if condLayout.Kind == layout.KindInvalid {
		condLayout = cond.Layout
	}
	var disc mir.Operand
	switch condLayout.Kind {
	case layout.KindUnion:
		disc = e.tagID(cond.Value, condLayout)
	case layout.KindInt:
		disc = cond.Value
	default:
		e.failLayout(st.Cond, condLayout, cond.Value, "switch on a value without a discriminant")
	}

	defBlock := e.block("switch_default")
	caseBlocks := make([]mir.BlockID, len(st.Branches))
	for i := range st.Branches {
		caseBlocks[i] = e.block("switch_case")
	}

	if len(st.Branches) == 1 && disc.Type.Bits == 1 {
		if st.Branches[0].Value != 0 {
			e.b.If(disc, caseBlocks[0], defBlock)
		} else {
			e.b.If(disc, defBlock, caseBlocks[0])
		}
	} else {
		cases := make([]mir.SwitchCase, len(st.Branches))
		for i, br := range st.Branches {
			cases[i] = mir.SwitchCase{Value: int64(br.Value), Target: caseBlocks[i]}
		}
		e.b.Switch(disc, cases, defBlock)
	}

	var m merge
	for i, br := range st.Branches {
		e.b.SetBlock(caseBlocks[i])
		if v, ok := e.stmt(scope.Clone(), br.Body, result); ok {
			m.add(e, v)
		}
	}
	e.b.SetBlock(defBlock)
	if st.Default == nil {
		e.b.Unreachable()
	} else if v, ok := e.stmt(scope.Clone(), st.Default, result); ok {
		m.add(e, v)
	}
	return m.finish(e, e.basic(result), "switch_merge")
}

func (e *emitter) join(scope Scope, st *mono.Join, result layout.Layout) (mir.Operand, bool) {
	jp := JoinPoint{Block: e.block("join")}
	for _, p := range st.Params {
		t := e.basic(p.Layout)
		jp.Types = append(jp.Types, t)
		jp.Slots = append(jp.Slots, e.entryAlloca(t, p.Layout.Alignment(e.ptr())))
	}
	inner := scope.BindJoin(st.ID, jp)

	var m merge
	if v, ok := e.stmt(inner, st.Remainder, result); ok {
		m.add(e, v)
	}

	e.b.SetBlock(jp.Block)
	body := inner
	for i, p := range st.Params {
		body = body.Bind(p.Sym, p.Layout, e.b.Load(jp.Types[i], jp.Slots[i]))
	}
	if v, ok := e.stmt(body, st.Continuation, result); ok {
		m.add(e, v)
	}
	return m.finish(e, e.basic(result), "join_merge")
}

// isRethrow reports whether fail just re-raises the exception it receives.
func isRethrow(fail mono.Stmt, exn mono.Symbol) bool {
	r, ok := fail.(*mono.Resume)
	return ok && r.Exception == exn
}

func (e *emitter) invoke(scope Scope, st *mono.Invoke, result layout.Layout) (mir.Operand, bool) {
	if isRethrow(st.Fail, st.Exception) {
		v, l := e.expr(scope, st.Sym, st.Call, st.Layout)
		return e.stmt(scope.Bind(st.Sym, l, v), st.Pass, result)
	}

	normal := e.block("invoke_pass")
	unwind := e.block("invoke_fail")
	var v mir.Operand
	switch ct := st.Call.Type.(type) {
	case mono.ByName:
		info := e.g.lookupProc(ct.Proc)
		v = e.b.Invoke(info.fn.Result, mir.FuncAddr(info.name), mir.CallConvFast, e.args(scope, st.Call.Args), normal, unwind)
		e.b.SetBlock(normal)
	case mono.Foreign:
		c := e.prepareForeign(st.Sym, ct, e.bindings(scope, st.Call.Args))
		raw := e.b.Invoke(c.ret, c.callee, mir.CallConvC, c.args, normal, unwind)
		e.b.SetBlock(normal)
		v = c.value(e, raw)
	default:
		// Built-ins never raise into a handler of their own.
		e.fail(st.Sym, "invoke of a %T call with an exception handler", st.Call.Type)
	}
	normalEnd := e.b.Cur

	var m merge
	e.b.SetBlock(unwind)
	exn := e.b.LandingPad()
	if fv, ok := e.stmt(scope.Bind(st.Exception, exceptionLayout, exn), st.Fail, result); ok {
		m.add(e, fv)
	}

	e.b.SetBlock(normalEnd)
	if pv, ok := e.stmt(scope.Bind(st.Sym, st.Layout, v), st.Pass, result); ok {
		m.add(e, pv)
	}
	return m.finish(e, e.basic(result), "invoke_merge")
}

func (e *emitter) args(scope Scope, syms []mono.Symbol) []mir.Operand {
	out := make([]mir.Operand, len(syms))
	for i, s := range syms {
		out[i] = e.lookup(scope, s).Value
	}
	return out
}

func (e *emitter) refcounting(scope Scope, st *mono.Refcounting) {
	b := e.lookup(scope, st.Sym)
	if !b.Layout.ContainsRefcounted() {
		return
	}
	switch st.Kind {
	case mono.RcInc:
		e.checkRefValue(st.Sym, b)
		e.increment(b.Value, b.Layout, e.word(st.Amount))
	case mono.RcDec:
		e.checkRefValue(st.Sym, b)
		e.decrement(b.Value, b.Layout)
	case mono.RcDecRef:
		if !b.Layout.IsRefcounted() {
			e.failLayout(st.Sym, b.Layout, b.Value, "decref of a value without its own refcount")
		}
		e.checkRefValue(st.Sym, b)
		e.b.Call(mir.Void(), mir.FuncAddr(e.g.decRefHelper(b.Layout)), mir.CallConvFast, b.Value)
	default:
		e.fail(st.Sym, "unknown refcount operation %d", st.Kind)
	}
}

// checkRefValue rejects a refcounted layout whose materialized value does
// not have the machine shape of that layout.
func (e *emitter) checkRefValue(sym mono.Symbol, b Binding) {
	if !b.Value.Type.Equal(e.basic(b.Layout)) {
		e.failLayout(sym, b.Layout, b.Value, "refcounted layout materialized as %s", b.Value.Type)
	}
}

// entryAlloca reserves a stack slot in the entry block so loops do not grow
// the stack.
func (e *emitter) entryAlloca(t mir.Type, align int) mir.Operand {
	entry := e.f.Blocks[0]
	id := e.f.NewValue(mir.Ptr())
	ins := mir.Instr{Kind: mir.InstrAlloca, Dst: id, Type: mir.Ptr(), Alloca: mir.AllocaInstr{Elem: t, Align: max(align, t.Align(e.ptr()))}}
	entry.Instrs = append([]mir.Instr{ins}, entry.Instrs...)
	return mir.Val(id, mir.Ptr())
}
