package mono

import (
	"errors"
	"fmt"
)

// Check validates structural well-formedness of a program: specializations
// are unique, called and exposed procedures exist, symbols are bound before
// use and every jump targets an enclosing join point with matching arity.
func Check(p *Program) error {
	if p == nil {
		return errors.New("nil program")
	}
	var errs []error
	seen := make(map[ProcKey]bool, len(p.Procs))
	thunks := make(map[Symbol]bool)
	for _, proc := range p.Procs {
		key := proc.Ref().Key()
		if seen[key] {
			errs = append(errs, fmt.Errorf("proc %s: duplicate specialization %s", proc.Name, key.Layouts))
		}
		seen[key] = true
		if proc.IsThunk() {
			thunks[proc.Name] = true
		}
	}
	for _, proc := range p.Procs {
		c := &checker{prog: p, procs: seen, thunks: thunks, bound: map[Symbol]int{}, joins: map[JoinID]int{}}
		for _, a := range proc.Args {
			c.bind(a.Sym)
		}
		if proc.Body == nil {
			c.errorf("empty body")
		} else {
			c.stmt(proc.Body)
		}
		for _, err := range c.errs {
			errs = append(errs, fmt.Errorf("proc %s: %w", proc.Name, err))
		}
	}
	for _, e := range p.Exposed {
		if !seen[e.Proc.Key()] {
			errs = append(errs, fmt.Errorf("exposed %s: unknown proc %s", e.Ident, formatRef(e.Proc)))
		}
	}
	for _, cl := range p.Closures {
		if !seen[cl.Proc.Key()] {
			errs = append(errs, fmt.Errorf("closure %s_%s: unknown proc %s", cl.Def, cl.Alias, formatRef(cl.Proc)))
		}
	}
	return errors.Join(errs...)
}

type checker struct {
	prog   *Program
	procs  map[ProcKey]bool
	thunks map[Symbol]bool
	bound  map[Symbol]int
	joins  map[JoinID]int // join id -> arity+1
	errs   []error
}

func (c *checker) errorf(format string, args ...any) {
	c.errs = append(c.errs, fmt.Errorf(format, args...))
}

func (c *checker) bind(s Symbol) { c.bound[s]++ }

func (c *checker) unbind(s Symbol) {
	if c.bound[s] <= 1 {
		delete(c.bound, s)
		return
	}
	c.bound[s]--
}

func (c *checker) use(s Symbol) {
	if c.bound[s] == 0 && !c.thunks[s] {
		c.errorf("symbol %s used before binding", s)
	}
}

func (c *checker) stmt(s Stmt) {
	switch st := s.(type) {
	case *Let:
		c.expr(st.Expr)
		c.bind(st.Sym)
		c.stmt(st.Cont)
		c.unbind(st.Sym)
	case *Ret:
		c.use(st.Sym)
	case *Switch:
		c.use(st.Cond)
		for _, br := range st.Branches {
			c.stmt(br.Body)
		}
		if st.Default == nil {
			c.errorf("switch on %s has no default", st.Cond)
		} else {
			c.stmt(st.Default)
		}
	case *Join:
		prev, had := c.joins[st.ID]
		c.joins[st.ID] = len(st.Params) + 1
		c.stmt(st.Remainder)
		if had {
			c.joins[st.ID] = prev
		} else {
			delete(c.joins, st.ID)
		}
		for _, p := range st.Params {
			c.bind(p.Sym)
		}
		c.stmt(st.Continuation)
		for _, p := range st.Params {
			c.unbind(p.Sym)
		}
	case *Jump:
		arity, ok := c.joins[st.ID]
		if !ok {
			c.errorf("jump to unbound join point j%d", st.ID)
		} else if arity-1 != len(st.Args) {
			c.errorf("jump to j%d passes %d args, want %d", st.ID, len(st.Args), arity-1)
		}
		for _, a := range st.Args {
			c.use(a)
		}
	case *Invoke:
		if st.Call == nil {
			c.errorf("invoke %s without call", st.Sym)
			return
		}
		c.expr(st.Call)
		c.bind(st.Exception)
		c.stmt(st.Fail)
		c.unbind(st.Exception)
		c.bind(st.Sym)
		c.stmt(st.Pass)
		c.unbind(st.Sym)
	case *Resume:
		c.use(st.Exception)
	case *Refcounting:
		c.use(st.Sym)
		if st.Kind == RcInc && st.Amount < 1 {
			c.errorf("inc %s by %d", st.Sym, st.Amount)
		}
		c.stmt(st.Cont)
	case *RuntimeError:
	case nil:
		c.errorf("missing statement")
	default:
		c.errorf("unknown statement %T", s)
	}
}

func (c *checker) expr(e Expr) {
	switch ex := e.(type) {
	case *Literal, *EmptyArray:
	case *Call:
		for _, a := range ex.Args {
			c.use(a)
		}
		switch ct := ex.Type.(type) {
		case ByName:
			if !c.procs[ct.Proc.Key()] {
				c.errorf("call to unknown proc %s", formatRef(ct.Proc))
			}
		case LowLevel:
			if ct.Op == OpInvalid || ct.Op.IsHigherOrder() {
				c.errorf("op %s is not a direct low-level op", ct.Op)
			}
		case HigherOrder:
			if !ct.Op.IsHigherOrder() {
				c.errorf("op %s is not higher-order", ct.Op)
			}
			if !c.procs[ct.Proc.Key()] {
				c.errorf("higher-order %s passes unknown proc %s", ct.Op, formatRef(ct.Proc))
			}
		case Foreign:
			if ct.Name == "" {
				c.errorf("foreign call without a name")
			}
		default:
			c.errorf("unknown call type %T", ex.Type)
		}
	case *StructExpr:
		for _, f := range ex.Fields {
			c.use(f)
		}
	case *Tag:
		for _, a := range ex.Args {
			c.use(a)
		}
	case *AccessAtIndex:
		c.use(ex.Structure)
	case *GetTagID:
		c.use(ex.Structure)
	case *Array:
		for _, el := range ex.Elems {
			c.use(el)
		}
	default:
		c.errorf("unknown expression %T", e)
	}
}
