package mir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DumpOptions configures MIR module dumping.
type DumpOptions struct {
	// SkipHelpers omits generated helper functions (names starting with '#').
	SkipHelpers bool
}

// DumpModule writes a human-readable representation of a MIR module.
func DumpModule(w io.Writer, m *Module, opts DumpOptions) error {
	if w == nil || m == nil {
		return nil
	}
	fmt.Fprintf(w, "target=%s ptr=%d\n", m.Triple, m.PtrBytes)
	if len(m.Globals) > 0 {
		fmt.Fprintf(w, "globals=%d\n", len(m.Globals))
		for _, g := range m.Globals {
			fmt.Fprintf(w, "  @%s: %d bytes align %d %s\n", g.Name, len(g.Bytes), g.Align, strconv.Quote(string(g.Bytes)))
		}
	}
	if len(m.Decls) > 0 {
		fmt.Fprintf(w, "decls=%d\n", len(m.Decls))
		for _, d := range m.Decls {
			fmt.Fprintf(w, "  declare %s @%s(%s)\n", d.Result, d.Name, joinTypes(d.Params))
		}
	}
	fmt.Fprintf(w, "funcs=%d\n", len(m.Funcs))
	for _, f := range m.Funcs {
		if opts.SkipHelpers && strings.HasPrefix(f.Name, "#") {
			continue
		}
		if err := dumpFunc(w, f); err != nil {
			return err
		}
	}
	return nil
}

func dumpFunc(w io.Writer, f *Func) error {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s %%v%d", p.Type, p.ID)
	}
	link := ""
	if f.Linkage == LinkageExternal {
		link = " external"
	}
	_, err := fmt.Fprintf(w, "\nfn %s(%s) -> %s [%s%s]:\n", f.Name, strings.Join(params, ", "), f.Result, f.CallConv, link)
	if err != nil {
		return err
	}
	for _, bb := range f.Blocks {
		fmt.Fprintf(w, "  bb%d:", bb.ID)
		if bb.Name != "" {
			fmt.Fprintf(w, " ; %s", bb.Name)
		}
		fmt.Fprintln(w)
		for j := range bb.Instrs {
			fmt.Fprintf(w, "    %s\n", FormatInstr(&bb.Instrs[j]))
		}
		fmt.Fprintf(w, "    %s\n", FormatTerm(&bb.Term))
	}
	return nil
}

// FormatInstr renders one instruction.
func FormatInstr(ins *Instr) string {
	var b strings.Builder
	if ins.HasResult() {
		fmt.Fprintf(&b, "%%v%d = ", ins.Dst)
	}
	switch ins.Kind {
	case InstrBinary:
		fmt.Fprintf(&b, "%s %s %s, %s", ins.Binary.Op, ins.Type, ins.Binary.X, ins.Binary.Y)
	case InstrOverflow:
		fmt.Fprintf(&b, "%s.overflow %s %s, %s", ins.Overflow.Op, ins.Overflow.X.Type, ins.Overflow.X, ins.Overflow.Y)
	case InstrCmp:
		fmt.Fprintf(&b, "cmp %s %s %s, %s", ins.Cmp.Pred, ins.Cmp.X.Type, ins.Cmp.X, ins.Cmp.Y)
	case InstrCast:
		fmt.Fprintf(&b, "%s %s %s to %s", ins.Cast.Op, ins.Cast.X.Type, ins.Cast.X, ins.Type)
	case InstrAlloca:
		fmt.Fprintf(&b, "alloca %s align %d", ins.Alloca.Elem, ins.Alloca.Align)
	case InstrLoad:
		fmt.Fprintf(&b, "load %s, %s", ins.Type, ins.Load.Addr)
	case InstrStore:
		fmt.Fprintf(&b, "store %s %s, %s", ins.Store.Value.Type, ins.Store.Value, ins.Store.Addr)
	case InstrPtrAdd:
		fmt.Fprintf(&b, "ptradd %s, %s", ins.PtrAdd.Base, ins.PtrAdd.Offset)
	case InstrExtract:
		fmt.Fprintf(&b, "extract %s %s, %d", ins.Extract.Agg.Type, ins.Extract.Agg, ins.Extract.Index)
	case InstrInsert:
		fmt.Fprintf(&b, "insert %s %s, %s, %d", ins.Type, ins.Insert.Agg, ins.Insert.Value, ins.Insert.Index)
	case InstrSelect:
		fmt.Fprintf(&b, "select %s, %s %s, %s", ins.Select.Cond, ins.Type, ins.Select.Then, ins.Select.Else)
	case InstrPhi:
		fmt.Fprintf(&b, "phi %s", ins.Type)
		for i, in := range ins.Phi.Incoming {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, " [%s, bb%d]", in.Value, in.Block)
		}
	case InstrCall:
		fmt.Fprintf(&b, "call %s %s %s(%s)", ins.Call.Conv, ins.Type, ins.Call.Callee, joinOperands(ins.Call.Args))
	case InstrLandingPad:
		b.WriteString("landingpad")
	default:
		fmt.Fprintf(&b, "instr(%d)", ins.Kind)
	}
	return b.String()
}

// FormatTerm renders a terminator.
func FormatTerm(t *Terminator) string {
	switch t.Kind {
	case TermReturn:
		if t.Return.HasValue {
			return fmt.Sprintf("return %s %s", t.Return.Value.Type, t.Return.Value)
		}
		return "return"
	case TermGoto:
		return fmt.Sprintf("goto bb%d", t.Goto.Target)
	case TermIf:
		return fmt.Sprintf("if %s then bb%d else bb%d", t.If.Cond, t.If.Then, t.If.Else)
	case TermSwitch:
		cases := make([]string, len(t.Switch.Cases))
		for i, c := range t.Switch.Cases {
			cases[i] = fmt.Sprintf("%d: bb%d", c.Value, c.Target)
		}
		return fmt.Sprintf("switch %s [%s] default bb%d", t.Switch.Value, strings.Join(cases, ", "), t.Switch.Default)
	case TermInvoke:
		inv := t.Invoke
		dst := ""
		if inv.Dst != NoValueID {
			dst = fmt.Sprintf("%%v%d = ", inv.Dst)
		}
		return fmt.Sprintf("%sinvoke %s %s %s(%s) to bb%d unwind bb%d", dst, inv.Call.Conv, inv.Type, inv.Call.Callee, joinOperands(inv.Call.Args), inv.Normal, inv.Unwind)
	case TermResume:
		return fmt.Sprintf("resume %s", t.Resume.Exception)
	case TermUnreachable:
		return "unreachable"
	default:
		return "<unterminated>"
	}
}

func joinOperands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = fmt.Sprintf("%s %s", o.Type, o)
	}
	return strings.Join(parts, ", ")
}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
