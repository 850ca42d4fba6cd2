package mir

import (
	"errors"
	"fmt"
)

// Validate checks MIR module invariants.
// Returns error if any invariant is violated.
func Validate(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := validateFunc(f); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func validateFunc(f *Func) error {
	if len(f.Blocks) == 0 {
		return errors.New("no blocks")
	}

	// Structural problems make the dominance checks meaningless.
	if err := errors.Join(validateBlocksTerminated(f), validateBlockTargets(f)); err != nil {
		return err
	}

	return errors.Join(
		validateReturns(f),
		validateLandingPads(f),
		validatePhis(f),
		validateDefsDominateUses(f),
	)
}

// validateBlocksTerminated checks that every block ends with a terminator.
func validateBlocksTerminated(f *Func) error {
	var errs []error
	for i, bb := range f.Blocks {
		if bb.Term.Kind == TermNone {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
		}
	}
	return errors.Join(errs...)
}

// validateBlockTargets checks that all terminator targets exist.
func validateBlockTargets(f *Func) error {
	var errs []error
	for i, bb := range f.Blocks {
		for _, s := range bb.Term.Successors() {
			if f.Block(s) == nil {
				errs = append(errs, fmt.Errorf("bb%d: jump to missing bb%d", i, s))
			}
		}
	}
	return errors.Join(errs...)
}

func validateReturns(f *Func) error {
	var errs []error
	for i, bb := range f.Blocks {
		if bb.Term.Kind != TermReturn {
			continue
		}
		ret := bb.Term.Return
		switch {
		case f.Result.IsVoid() && ret.HasValue:
			errs = append(errs, fmt.Errorf("bb%d: value returned from void function", i))
		case !f.Result.IsVoid() && !ret.HasValue:
			errs = append(errs, fmt.Errorf("bb%d: missing return value", i))
		case ret.HasValue && !ret.Value.Type.Equal(f.Result):
			errs = append(errs, fmt.Errorf("bb%d: returns %s, want %s", i, ret.Value.Type, f.Result))
		}
	}
	return errors.Join(errs...)
}

// validateLandingPads checks that unwind targets start with a landing pad
// and landing pads appear nowhere else.
func validateLandingPads(f *Func) error {
	unwind := make(map[BlockID]bool)
	for _, bb := range f.Blocks {
		if bb.Term.Kind == TermInvoke {
			unwind[bb.Term.Invoke.Unwind] = true
		}
	}
	var errs []error
	for i, bb := range f.Blocks {
		for j := range bb.Instrs {
			if bb.Instrs[j].Kind != InstrLandingPad {
				continue
			}
			if j != 0 || !unwind[bb.ID] {
				errs = append(errs, fmt.Errorf("bb%d: landingpad outside an unwind target entry", i))
			}
		}
		if unwind[bb.ID] && (len(bb.Instrs) == 0 || bb.Instrs[0].Kind != InstrLandingPad) {
			errs = append(errs, fmt.Errorf("bb%d: unwind target does not start with landingpad", i))
		}
	}
	return errors.Join(errs...)
}

func predecessors(f *Func) [][]BlockID {
	preds := make([][]BlockID, len(f.Blocks))
	for _, bb := range f.Blocks {
		seen := map[BlockID]bool{}
		for _, s := range bb.Term.Successors() {
			if !seen[s] {
				preds[s] = append(preds[s], bb.ID)
				seen[s] = true
			}
		}
	}
	return preds
}

func validatePhis(f *Func) error {
	preds := predecessors(f)
	var errs []error
	for i, bb := range f.Blocks {
		inPhis := true
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			if ins.Kind != InstrPhi {
				if ins.Kind != InstrLandingPad {
					inPhis = false
				}
				continue
			}
			if !inPhis {
				errs = append(errs, fmt.Errorf("bb%d: phi after non-phi instruction", i))
			}
			for _, in := range ins.Phi.Incoming {
				if !containsBlock(preds[i], in.Block) {
					errs = append(errs, fmt.Errorf("bb%d: phi incoming from bb%d which is not a predecessor", i, in.Block))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func containsBlock(list []BlockID, id BlockID) bool {
	for _, b := range list {
		if b == id {
			return true
		}
	}
	return false
}

type defSite struct {
	block BlockID
	pos   int // -1: defined on block entry
}

func validateDefsDominateUses(f *Func) error {
	idom := dominators(f)
	defs := make(map[ValueID]defSite)
	for _, p := range f.Params {
		defs[p.ID] = defSite{block: NoBlockID}
	}
	for _, bb := range f.Blocks {
		for j := range bb.Instrs {
			if ins := &bb.Instrs[j]; ins.HasResult() {
				defs[ins.Dst] = defSite{block: bb.ID, pos: j}
			}
		}
		if bb.Term.Kind == TermInvoke && bb.Term.Invoke.Dst != NoValueID {
			defs[bb.Term.Invoke.Dst] = defSite{block: bb.Term.Invoke.Normal, pos: -1}
		}
	}

	var errs []error
	check := func(op Operand, block BlockID, pos int) {
		if op.Kind != OperandValue {
			return
		}
		d, ok := defs[op.Value]
		if !ok {
			errs = append(errs, fmt.Errorf("bb%d: use of undefined %%v%d", block, op.Value))
			return
		}
		if d.block == NoBlockID {
			return
		}
		if d.block == block {
			if d.pos >= pos {
				errs = append(errs, fmt.Errorf("bb%d: %%v%d used before its definition", block, op.Value))
			}
			return
		}
		if !dominates(idom, d.block, block) {
			errs = append(errs, fmt.Errorf("bb%d: %%v%d defined in bb%d does not dominate its use", block, op.Value, d.block))
		}
	}

	for _, bb := range f.Blocks {
		if idom[bb.ID] == NoBlockID && bb.ID != 0 {
			continue // unreachable
		}
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			if ins.Kind == InstrPhi {
				for _, in := range ins.Phi.Incoming {
					pred := f.Block(in.Block)
					if pred == nil || idom[in.Block] == NoBlockID {
						continue
					}
					// The value must be available at the end of the incoming block.
					check(in.Value, in.Block, len(pred.Instrs)+1)
				}
				continue
			}
			for _, op := range ins.Operands() {
				check(op, bb.ID, j)
			}
		}
		for _, op := range bb.Term.Operands() {
			check(op, bb.ID, len(bb.Instrs))
		}
	}
	return errors.Join(errs...)
}

// dominators computes immediate dominators with the iterative algorithm of
// Cooper, Harvey and Kennedy. Unreachable blocks get NoBlockID.
func dominators(f *Func) []BlockID {
	n := len(f.Blocks)
	preds := predecessors(f)

	order := make([]BlockID, 0, n) // reverse postorder
	rpo := make([]int, n)
	visited := make([]bool, n)
	var walk func(b BlockID)
	walk = func(b BlockID) {
		visited[b] = true
		for _, s := range f.Blocks[b].Term.Successors() {
			if !visited[s] {
				walk(s)
			}
		}
		order = append(order, b)
	}
	walk(0)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	for i, b := range order {
		rpo[b] = i
	}

	idom := make([]BlockID, n)
	for i := range idom {
		idom[i] = NoBlockID
	}
	idom[0] = 0
	intersect := func(a, b BlockID) BlockID {
		for a != b {
			for rpo[a] > rpo[b] {
				a = idom[a]
			}
			for rpo[b] > rpo[a] {
				b = idom[b]
			}
		}
		return a
	}
	for changed := true; changed; {
		changed = false
		for _, b := range order[1:] {
			newIdom := NoBlockID
			for _, p := range preds[b] {
				if idom[p] == NoBlockID {
					continue
				}
				if newIdom == NoBlockID {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if newIdom != idom[b] {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

func dominates(idom []BlockID, a, b BlockID) bool {
	for {
		if a == b {
			return true
		}
		if b == 0 || idom[b] == NoBlockID {
			return false
		}
		b = idom[b]
	}
}
