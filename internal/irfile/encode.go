package irfile

import (
	"fmt"

	"lgen/internal/layout"
	"lgen/internal/mono"
)

func programToDoc(p *mono.Program) (*programDoc, error) {
	d := &programDoc{}
	for _, proc := range p.Procs {
		body, err := flatten(proc.Body)
		if err != nil {
			return nil, fmt.Errorf("proc %s: %w", proc.Name, err)
		}
		d.Procs = append(d.Procs, procDoc{
			Name:   string(proc.Name),
			Args:   paramDocs(proc.Args),
			Result: proc.Result.String(),
			Body:   body,
		})
	}
	for _, e := range p.Exposed {
		d.Exposed = append(d.Exposed, exposedDoc{Ident: e.Ident, Proc: refToDoc(e.Proc)})
	}
	for _, c := range p.Closures {
		d.Closures = append(d.Closures, closureDoc{
			Def:      c.Def,
			Alias:    c.Alias,
			Proc:     refToDoc(c.Proc),
			Captured: optString(c.Captured),
		})
	}
	return d, nil
}

func paramDocs(ps []mono.Param) []paramDoc {
	if len(ps) == 0 {
		return nil
	}
	out := make([]paramDoc, len(ps))
	for i, p := range ps {
		out[i] = paramDoc{Sym: string(p.Sym), Layout: p.Layout.String()}
	}
	return out
}

func refToDoc(r mono.ProcRef) refDoc {
	args := make([]string, len(r.Args))
	for i, a := range r.Args {
		args[i] = a.String()
	}
	return refDoc{Name: string(r.Name), Args: args, Result: r.Result.String()}
}

func optString(l layout.Layout) string {
	if l.Kind == layout.KindInvalid {
		return ""
	}
	return l.String()
}

// flatten unrolls the let and refcount chain of s into a block.
func flatten(s mono.Stmt) ([]stmtDoc, error) {
	var out []stmtDoc
	for {
		switch st := s.(type) {
		case *mono.Let:
			let, err := exprToDoc(st.Expr)
			if err != nil {
				return nil, fmt.Errorf("let %s: %w", st.Sym, err)
			}
			let.Sym = string(st.Sym)
			let.Layout = st.Layout.String()
			out = append(out, stmtDoc{Let: let})
			s = st.Cont
			continue
		case *mono.Refcounting:
			out = append(out, stmtDoc{Rc: &rcDoc{Op: st.Kind.String(), Sym: string(st.Sym), Amount: st.Amount}})
			s = st.Cont
			continue
		case *mono.Ret:
			out = append(out, stmtDoc{Ret: string(st.Sym)})
		case *mono.Resume:
			out = append(out, stmtDoc{Resume: string(st.Exception)})
		case *mono.RuntimeError:
			msg := st.Message
			out = append(out, stmtDoc{Raise: &msg})
		case *mono.Jump:
			out = append(out, stmtDoc{Jump: &jumpDoc{ID: uint32(st.ID), Args: names(st.Args)}})
		case *mono.Switch:
			sw := &switchDoc{Cond: string(st.Cond), Layout: st.CondLayout.String(), Result: st.Result.String()}
			for _, br := range st.Branches {
				body, err := flatten(br.Body)
				if err != nil {
					return nil, err
				}
				sw.Branches = append(sw.Branches, branchDoc{Value: br.Value, Body: body})
			}
			def, err := flatten(st.Default)
			if err != nil {
				return nil, err
			}
			sw.Default = def
			out = append(out, stmtDoc{Switch: sw})
		case *mono.Join:
			cont, err := flatten(st.Continuation)
			if err != nil {
				return nil, err
			}
			rem, err := flatten(st.Remainder)
			if err != nil {
				return nil, err
			}
			out = append(out, stmtDoc{Join: &joinDoc{
				ID:           uint32(st.ID),
				Params:       paramDocs(st.Params),
				Continuation: cont,
				Remainder:    rem,
			}})
		case *mono.Invoke:
			call, err := callToDoc(st.Call)
			if err != nil {
				return nil, fmt.Errorf("invoke %s: %w", st.Sym, err)
			}
			pass, err := flatten(st.Pass)
			if err != nil {
				return nil, err
			}
			fail, err := flatten(st.Fail)
			if err != nil {
				return nil, err
			}
			out = append(out, stmtDoc{Invoke: &invokeDoc{
				Sym:       string(st.Sym),
				Layout:    st.Layout.String(),
				Call:      *call,
				Exception: string(st.Exception),
				Pass:      pass,
				Fail:      fail,
			}})
		case nil:
			return nil, fmt.Errorf("missing statement")
		default:
			return nil, fmt.Errorf("unsupported statement %T", s)
		}
		return out, nil
	}
}

func exprToDoc(e mono.Expr) (*letDoc, error) {
	d := &letDoc{}
	switch ex := e.(type) {
	case *mono.Literal:
		switch ex.Kind {
		case mono.LitInt:
			v := ex.Int
			d.Int = &v
		case mono.LitFloat:
			v := ex.Float
			d.Float = &v
		case mono.LitBool:
			v := ex.Int != 0
			d.Bool = &v
		case mono.LitByte:
			v := uint8(ex.Int)
			d.Byte = &v
		case mono.LitStr:
			v := ex.Str
			d.Str = &v
		default:
			return nil, fmt.Errorf("unknown literal kind %d", ex.Kind)
		}
	case *mono.Call:
		call, err := callToDoc(ex)
		if err != nil {
			return nil, err
		}
		d.Call = call
	case *mono.StructExpr:
		if len(ex.Fields) == 0 {
			d.Unit = true
		} else {
			d.Struct = names(ex.Fields)
		}
	case *mono.Tag:
		d.Tag = &tagDoc{Layout: ex.Layout.String(), ID: ex.TagID, Args: names(ex.Args)}
	case *mono.AccessAtIndex:
		d.Access = &accessDoc{Of: string(ex.Structure), Tag: ex.TagID, Index: ex.Index}
	case *mono.GetTagID:
		d.TagOf = string(ex.Structure)
	case *mono.Array:
		d.Array = &arrayDoc{Elem: ex.Elem.String(), Elems: names(ex.Elems)}
		if d.Array.Elems == nil {
			d.Array.Elems = []string{}
		}
	case *mono.EmptyArray:
		d.Empty = true
	default:
		return nil, fmt.Errorf("unsupported expression %T", e)
	}
	return d, nil
}

func callToDoc(c *mono.Call) (*callDoc, error) {
	if c == nil {
		return nil, fmt.Errorf("missing call")
	}
	d := &callDoc{Args: names(c.Args)}
	switch ct := c.Type.(type) {
	case mono.ByName:
		ref := refToDoc(ct.Proc)
		d.Proc = &ref
	case mono.LowLevel:
		d.Op = ct.Op.String()
	case mono.HigherOrder:
		ref := refToDoc(ct.Proc)
		d.Op = ct.Op.String()
		d.Proc = &ref
		d.Captured = optString(ct.Captured)
		d.Owned = ct.Owned
	case mono.Foreign:
		d.Foreign = ct.Name
		d.Result = ct.Result.String()
	default:
		return nil, fmt.Errorf("unsupported call type %T", c.Type)
	}
	return d, nil
}

func names(syms []mono.Symbol) []string {
	if syms == nil {
		return nil
	}
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = string(s)
	}
	return out
}
