package mir

type Block struct {
	ID     BlockID
	Name   string
	Instrs []Instr
	Term   Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

type Linkage uint8

const (
	LinkageInternal Linkage = iota
	LinkageExternal
)

type Param struct {
	ID   ValueID
	Type Type
}

type Func struct {
	Name     string
	Params   []Param
	Result   Type
	Blocks   []*Block
	Linkage  Linkage
	CallConv CallConv

	// ValueTypes is indexed by ValueID.
	ValueTypes []Type
}

// NewFunc creates a function with one value per parameter and no blocks.
func NewFunc(name string, params []Type, result Type, conv CallConv, linkage Linkage) *Func {
	f := &Func{Name: name, Result: result, CallConv: conv, Linkage: linkage}
	for _, t := range params {
		f.Params = append(f.Params, Param{ID: f.NewValue(t), Type: t})
	}
	return f
}

// NewValue allocates a fresh SSA value id of type t.
func (f *Func) NewValue(t Type) ValueID {
	f.ValueTypes = append(f.ValueTypes, t)
	return ValueID(len(f.ValueTypes) - 1)
}

// NewBlock appends an empty block.
func (f *Func) NewBlock(name string) BlockID {
	id := BlockID(len(f.Blocks))
	f.Blocks = append(f.Blocks, &Block{ID: id, Name: name})
	return id
}

func (f *Func) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(f.Blocks) {
		return nil
	}
	return f.Blocks[id]
}

// Arg returns parameter i as an operand.
func (f *Func) Arg(i int) Operand {
	p := f.Params[i]
	return Val(p.ID, p.Type)
}

// ParamTypes lists the parameter types in order.
func (f *Func) ParamTypes() []Type {
	out := make([]Type, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Type
	}
	return out
}
