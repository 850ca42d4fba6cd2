package mono

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dump writes a human-readable representation of a program.
func Dump(w io.Writer, p *Program) error {
	if w == nil || p == nil {
		return nil
	}
	for _, proc := range p.Procs {
		fmt.Fprintf(w, "proc %s(", proc.Name)
		for i, a := range proc.Args {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "%s: %s", a.Sym, a.Layout)
		}
		fmt.Fprintf(w, ") -> %s\n", proc.Result)
		dumpStmt(w, proc.Body, 1)
		fmt.Fprintln(w)
	}
	for _, e := range p.Exposed {
		fmt.Fprintf(w, "expose %s = %s\n", e.Ident, formatRef(e.Proc))
	}
	for _, c := range p.Closures {
		fmt.Fprintf(w, "closure %s.%s = %s captured %s\n", c.Def, c.Alias, formatRef(c.Proc), c.Captured)
	}
	return nil
}

func dumpStmt(w io.Writer, s Stmt, depth int) {
	ind := strings.Repeat("  ", depth)
	for s != nil {
		switch st := s.(type) {
		case *Let:
			fmt.Fprintf(w, "%slet %s: %s = %s\n", ind, st.Sym, st.Layout, formatExpr(st.Expr))
			s = st.Cont
			continue
		case *Ret:
			fmt.Fprintf(w, "%sret %s\n", ind, st.Sym)
		case *Switch:
			fmt.Fprintf(w, "%sswitch %s: %s -> %s\n", ind, st.Cond, st.CondLayout, st.Result)
			for _, br := range st.Branches {
				fmt.Fprintf(w, "%s  case %d:\n", ind, br.Value)
				dumpStmt(w, br.Body, depth+2)
			}
			fmt.Fprintf(w, "%s  default:\n", ind)
			dumpStmt(w, st.Default, depth+2)
		case *Join:
			params := make([]string, len(st.Params))
			for i, p := range st.Params {
				params[i] = fmt.Sprintf("%s: %s", p.Sym, p.Layout)
			}
			fmt.Fprintf(w, "%sjoin j%d(%s):\n", ind, st.ID, strings.Join(params, ", "))
			dumpStmt(w, st.Continuation, depth+1)
			fmt.Fprintf(w, "%sin:\n", ind)
			dumpStmt(w, st.Remainder, depth+1)
		case *Jump:
			fmt.Fprintf(w, "%sjump j%d(%s)\n", ind, st.ID, joinSyms(st.Args))
		case *Invoke:
			fmt.Fprintf(w, "%sinvoke %s: %s = %s\n", ind, st.Sym, st.Layout, formatExpr(st.Call))
			fmt.Fprintf(w, "%s  catch %s:\n", ind, st.Exception)
			dumpStmt(w, st.Fail, depth+2)
			s = st.Pass
			continue
		case *Resume:
			fmt.Fprintf(w, "%sresume %s\n", ind, st.Exception)
		case *Refcounting:
			if st.Kind == RcInc && st.Amount != 1 {
				fmt.Fprintf(w, "%s%s %s %d\n", ind, st.Kind, st.Sym, st.Amount)
			} else {
				fmt.Fprintf(w, "%s%s %s\n", ind, st.Kind, st.Sym)
			}
			s = st.Cont
			continue
		case *RuntimeError:
			fmt.Fprintf(w, "%scrash %s\n", ind, strconv.Quote(st.Message))
		default:
			fmt.Fprintf(w, "%s<%T>\n", ind, s)
		}
		return
	}
}

func formatExpr(e Expr) string {
	switch ex := e.(type) {
	case *Literal:
		switch ex.Kind {
		case LitInt, LitByte:
			return strconv.FormatInt(ex.Int, 10)
		case LitBool:
			return strconv.FormatBool(ex.Int != 0)
		case LitFloat:
			return strconv.FormatFloat(ex.Float, 'g', -1, 64)
		case LitStr:
			return strconv.Quote(ex.Str)
		}
		return "lit?"
	case *Call:
		args := joinSyms(ex.Args)
		switch ct := ex.Type.(type) {
		case ByName:
			return fmt.Sprintf("call %s(%s)", formatRef(ct.Proc), args)
		case LowLevel:
			return fmt.Sprintf("%s(%s)", ct.Op, args)
		case HigherOrder:
			owned := ""
			if ct.Owned {
				owned = " owned"
			}
			return fmt.Sprintf("%s[%s%s](%s)", ct.Op, ct.Proc.Name, owned, args)
		case Foreign:
			return fmt.Sprintf("foreign %s(%s)", ct.Name, args)
		}
		return "call?"
	case *StructExpr:
		return "{" + joinSyms(ex.Fields) + "}"
	case *Tag:
		return fmt.Sprintf("tag %d(%s)", ex.TagID, joinSyms(ex.Args))
	case *AccessAtIndex:
		return fmt.Sprintf("%s.%d#%d", ex.Structure, ex.TagID, ex.Index)
	case *GetTagID:
		return fmt.Sprintf("tagid %s", ex.Structure)
	case *Array:
		return "[" + joinSyms(ex.Elems) + "]"
	case *EmptyArray:
		return "[]"
	default:
		return fmt.Sprintf("<%T>", e)
	}
}

func formatRef(r ProcRef) string {
	args := make([]string, len(r.Args))
	for i, a := range r.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s) -> %s", r.Name, strings.Join(args, ", "), r.Result)
}

func joinSyms(syms []Symbol) string {
	parts := make([]string, len(syms))
	for i, s := range syms {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
