package mir

type TermKind uint8

const (
	TermNone TermKind = iota
	TermReturn
	TermGoto
	TermIf
	TermSwitch
	TermInvoke
	TermResume
	TermUnreachable
)

type Terminator struct {
	Kind TermKind

	Return      ReturnTerm
	Goto        GotoTerm
	If          IfTerm
	Switch      SwitchTerm
	Invoke      InvokeTerm
	Resume      ResumeTerm
	Unreachable struct{}
}

type ReturnTerm struct {
	HasValue bool
	Value    Operand
}

type GotoTerm struct {
	Target BlockID
}

type IfTerm struct {
	Cond Operand
	Then BlockID
	Else BlockID
}

type SwitchCase struct {
	Value  int64
	Target BlockID
}

type SwitchTerm struct {
	Value   Operand
	Cases   []SwitchCase
	Default BlockID
}

// InvokeTerm calls a routine that may raise. Dst is defined on entry to
// Normal; Unwind must begin with a landing pad.
type InvokeTerm struct {
	Dst    ValueID
	Type   Type
	Call   CallInstr
	Normal BlockID
	Unwind BlockID
}

// ResumeTerm continues unwinding with the exception value.
type ResumeTerm struct {
	Exception Operand
}

// Successors lists every block the terminator may transfer to.
func (t *Terminator) Successors() []BlockID {
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.Goto.Target}
	case TermIf:
		return []BlockID{t.If.Then, t.If.Else}
	case TermSwitch:
		out := make([]BlockID, 0, len(t.Switch.Cases)+1)
		for _, c := range t.Switch.Cases {
			out = append(out, c.Target)
		}
		return append(out, t.Switch.Default)
	case TermInvoke:
		return []BlockID{t.Invoke.Normal, t.Invoke.Unwind}
	default:
		return nil
	}
}

// Operands returns every operand the terminator reads.
func (t *Terminator) Operands() []Operand {
	switch t.Kind {
	case TermReturn:
		if t.Return.HasValue {
			return []Operand{t.Return.Value}
		}
	case TermIf:
		return []Operand{t.If.Cond}
	case TermSwitch:
		return []Operand{t.Switch.Value}
	case TermInvoke:
		return append([]Operand{t.Invoke.Call.Callee}, t.Invoke.Call.Args...)
	case TermResume:
		return []Operand{t.Resume.Exception}
	}
	return nil
}
