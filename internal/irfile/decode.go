package irfile

import (
	"fmt"

	"lgen/internal/layout"
	"lgen/internal/mono"
)

func (d *programDoc) program() (*mono.Program, error) {
	prog := &mono.Program{}
	for i := range d.Procs {
		proc, err := d.Procs[i].proc()
		if err != nil {
			return nil, fmt.Errorf("proc %s: %w", d.Procs[i].Name, err)
		}
		prog.Procs = append(prog.Procs, proc)
	}
	for _, e := range d.Exposed {
		ref, err := e.Proc.ref()
		if err != nil {
			return nil, fmt.Errorf("exposed %s: %w", e.Ident, err)
		}
		prog.Exposed = append(prog.Exposed, mono.Exposed{Ident: e.Ident, Proc: ref})
	}
	for _, c := range d.Closures {
		ref, err := c.Proc.ref()
		if err != nil {
			return nil, fmt.Errorf("closure %s.%s: %w", c.Def, c.Alias, err)
		}
		captured, err := optLayout(c.Captured)
		if err != nil {
			return nil, fmt.Errorf("closure %s.%s: captured: %w", c.Def, c.Alias, err)
		}
		prog.Closures = append(prog.Closures, mono.HostClosure{Def: c.Def, Alias: c.Alias, Proc: ref, Captured: captured})
	}
	return prog, nil
}

func (d *procDoc) proc() (*mono.Proc, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	args, err := params(d.Args)
	if err != nil {
		return nil, err
	}
	result, err := layout.Parse(d.Result)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	body, err := block(d.Body)
	if err != nil {
		return nil, err
	}
	return &mono.Proc{Name: mono.Symbol(d.Name), Args: args, Result: result, Body: body}, nil
}

func params(docs []paramDoc) ([]mono.Param, error) {
	out := make([]mono.Param, 0, len(docs))
	for _, p := range docs {
		l, err := layout.Parse(p.Layout)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", p.Sym, err)
		}
		out = append(out, mono.Param{Sym: mono.Symbol(p.Sym), Layout: l})
	}
	return out, nil
}

func (d *refDoc) ref() (mono.ProcRef, error) {
	ref := mono.ProcRef{Name: mono.Symbol(d.Name), Args: make([]layout.Layout, 0, len(d.Args))}
	for i, a := range d.Args {
		l, err := layout.Parse(a)
		if err != nil {
			return ref, fmt.Errorf("%s arg %d: %w", d.Name, i, err)
		}
		ref.Args = append(ref.Args, l)
	}
	res, err := layout.Parse(d.Result)
	if err != nil {
		return ref, fmt.Errorf("%s result: %w", d.Name, err)
	}
	ref.Result = res
	return ref, nil
}

// optLayout parses s, mapping the empty string to the invalid layout.
func optLayout(s string) (layout.Layout, error) {
	if s == "" {
		return layout.Layout{}, nil
	}
	return layout.Parse(s)
}

// block rebuilds the nested statement tree of a flattened sequence.
func block(docs []stmtDoc) (mono.Stmt, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("empty block")
	}
	last, err := docs[len(docs)-1].terminal()
	if err != nil {
		return nil, fmt.Errorf("statement %d: %w", len(docs)-1, err)
	}
	stmt := last
	for i := len(docs) - 2; i >= 0; i-- {
		stmt, err = docs[i].prefix(stmt)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return stmt, nil
}

func (d *stmtDoc) count() int {
	n := 0
	for _, set := range []bool{
		d.Let != nil, d.Rc != nil, d.Ret != "", d.Switch != nil, d.Join != nil,
		d.Jump != nil, d.Invoke != nil, d.Resume != "", d.Raise != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// prefix builds a statement that continues with cont.
func (d *stmtDoc) prefix(cont mono.Stmt) (mono.Stmt, error) {
	if d.count() != 1 {
		return nil, fmt.Errorf("statement must have exactly one kind")
	}
	switch {
	case d.Let != nil:
		l, err := layout.Parse(d.Let.Layout)
		if err != nil {
			return nil, fmt.Errorf("let %s: %w", d.Let.Sym, err)
		}
		expr, err := d.Let.expr()
		if err != nil {
			return nil, fmt.Errorf("let %s: %w", d.Let.Sym, err)
		}
		return &mono.Let{Sym: mono.Symbol(d.Let.Sym), Expr: expr, Layout: l, Cont: cont}, nil
	case d.Rc != nil:
		kind, err := rcKind(d.Rc.Op)
		if err != nil {
			return nil, err
		}
		amount := d.Rc.Amount
		if kind == mono.RcInc && amount == 0 {
			amount = 1
		}
		return &mono.Refcounting{Kind: kind, Sym: mono.Symbol(d.Rc.Sym), Amount: amount, Cont: cont}, nil
	default:
		return nil, fmt.Errorf("only let and rc may be followed by other statements")
	}
}

func rcKind(op string) (mono.RcKind, error) {
	for _, k := range []mono.RcKind{mono.RcInc, mono.RcDec, mono.RcDecRef} {
		if k.String() == op {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown refcount op %q", op)
}

// terminal builds a statement that ends a block.
func (d *stmtDoc) terminal() (mono.Stmt, error) {
	if d.count() != 1 {
		return nil, fmt.Errorf("statement must have exactly one kind")
	}
	switch {
	case d.Ret != "":
		return &mono.Ret{Sym: mono.Symbol(d.Ret)}, nil
	case d.Resume != "":
		return &mono.Resume{Exception: mono.Symbol(d.Resume)}, nil
	case d.Raise != nil:
		return &mono.RuntimeError{Message: *d.Raise}, nil
	case d.Jump != nil:
		return &mono.Jump{ID: mono.JoinID(d.Jump.ID), Args: symbols(d.Jump.Args)}, nil
	case d.Switch != nil:
		return d.Switch.stmt()
	case d.Join != nil:
		return d.Join.stmt()
	case d.Invoke != nil:
		return d.Invoke.stmt()
	default:
		return nil, fmt.Errorf("block must end with ret, switch, join, jump, invoke, resume or raise")
	}
}

func (d *switchDoc) stmt() (mono.Stmt, error) {
	cond, err := layout.Parse(d.Layout)
	if err != nil {
		return nil, fmt.Errorf("switch %s: %w", d.Cond, err)
	}
	result, err := layout.Parse(d.Result)
	if err != nil {
		return nil, fmt.Errorf("switch %s result: %w", d.Cond, err)
	}
	sw := &mono.Switch{Cond: mono.Symbol(d.Cond), CondLayout: cond, Result: result}
	for _, br := range d.Branches {
		body, err := block(br.Body)
		if err != nil {
			return nil, fmt.Errorf("switch %s branch %d: %w", d.Cond, br.Value, err)
		}
		sw.Branches = append(sw.Branches, mono.Branch{Value: br.Value, Body: body})
	}
	if sw.Default, err = block(d.Default); err != nil {
		return nil, fmt.Errorf("switch %s default: %w", d.Cond, err)
	}
	return sw, nil
}

func (d *joinDoc) stmt() (mono.Stmt, error) {
	ps, err := params(d.Params)
	if err != nil {
		return nil, fmt.Errorf("join %d: %w", d.ID, err)
	}
	cont, err := block(d.Continuation)
	if err != nil {
		return nil, fmt.Errorf("join %d continuation: %w", d.ID, err)
	}
	rem, err := block(d.Remainder)
	if err != nil {
		return nil, fmt.Errorf("join %d remainder: %w", d.ID, err)
	}
	return &mono.Join{ID: mono.JoinID(d.ID), Params: ps, Remainder: rem, Continuation: cont}, nil
}

func (d *invokeDoc) stmt() (mono.Stmt, error) {
	l, err := layout.Parse(d.Layout)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", d.Sym, err)
	}
	call, err := d.Call.call()
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", d.Sym, err)
	}
	pass, err := block(d.Pass)
	if err != nil {
		return nil, fmt.Errorf("invoke %s pass: %w", d.Sym, err)
	}
	fail, err := block(d.Fail)
	if err != nil {
		return nil, fmt.Errorf("invoke %s fail: %w", d.Sym, err)
	}
	return &mono.Invoke{
		Sym:       mono.Symbol(d.Sym),
		Call:      call,
		Layout:    l,
		Pass:      pass,
		Fail:      fail,
		Exception: mono.Symbol(d.Exception),
	}, nil
}

func (d *letDoc) expr() (mono.Expr, error) {
	var exprs []mono.Expr
	if d.Int != nil {
		exprs = append(exprs, mono.IntLit(*d.Int))
	}
	if d.Float != nil {
		exprs = append(exprs, mono.FloatLit(*d.Float))
	}
	if d.Bool != nil {
		exprs = append(exprs, mono.BoolLit(*d.Bool))
	}
	if d.Byte != nil {
		exprs = append(exprs, mono.ByteLit(*d.Byte))
	}
	if d.Str != nil {
		exprs = append(exprs, mono.StrLit(*d.Str))
	}
	if d.Call != nil {
		call, err := d.Call.call()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, call)
	}
	if d.Struct != nil || d.Unit {
		exprs = append(exprs, &mono.StructExpr{Fields: symbols(d.Struct)})
	}
	if d.Tag != nil {
		l, err := layout.Parse(d.Tag.Layout)
		if err != nil {
			return nil, fmt.Errorf("tag: %w", err)
		}
		exprs = append(exprs, &mono.Tag{Layout: l, TagID: d.Tag.ID, Args: symbols(d.Tag.Args)})
	}
	if d.Access != nil {
		exprs = append(exprs, &mono.AccessAtIndex{Structure: mono.Symbol(d.Access.Of), TagID: d.Access.Tag, Index: d.Access.Index})
	}
	if d.TagOf != "" {
		exprs = append(exprs, &mono.GetTagID{Structure: mono.Symbol(d.TagOf)})
	}
	if d.Array != nil {
		elem, err := layout.Parse(d.Array.Elem)
		if err != nil {
			return nil, fmt.Errorf("array: %w", err)
		}
		exprs = append(exprs, &mono.Array{Elem: elem, Elems: symbols(d.Array.Elems)})
	}
	if d.Empty {
		exprs = append(exprs, &mono.EmptyArray{})
	}
	if len(exprs) != 1 {
		return nil, fmt.Errorf("expected exactly one expression, found %d", len(exprs))
	}
	return exprs[0], nil
}

func (d *callDoc) call() (*mono.Call, error) {
	call := &mono.Call{Args: symbols(d.Args)}
	switch {
	case d.Foreign != "":
		res, err := layout.Parse(d.Result)
		if err != nil {
			return nil, fmt.Errorf("foreign %s result: %w", d.Foreign, err)
		}
		call.Type = mono.Foreign{Name: d.Foreign, Result: res}
	case d.Op != "":
		op, err := mono.ParseOp(d.Op)
		if err != nil {
			return nil, err
		}
		if !op.IsHigherOrder() {
			call.Type = mono.LowLevel{Op: op}
			break
		}
		if d.Proc == nil {
			return nil, fmt.Errorf("%s needs a proc", op)
		}
		ref, err := d.Proc.ref()
		if err != nil {
			return nil, err
		}
		captured, err := optLayout(d.Captured)
		if err != nil {
			return nil, fmt.Errorf("%s captured: %w", op, err)
		}
		call.Type = mono.HigherOrder{Op: op, Proc: ref, Captured: captured, Owned: d.Owned}
	case d.Proc != nil:
		ref, err := d.Proc.ref()
		if err != nil {
			return nil, err
		}
		call.Type = mono.ByName{Proc: ref}
	default:
		return nil, fmt.Errorf("call needs a proc, op or foreign symbol")
	}
	return call, nil
}

func symbols(names []string) []mono.Symbol {
	if names == nil {
		return nil
	}
	out := make([]mono.Symbol, len(names))
	for i, n := range names {
		out[i] = mono.Symbol(n)
	}
	return out
}
