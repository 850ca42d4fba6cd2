package mir

// Builder appends instructions to the current block of a function.
type Builder struct {
	Func *Func
	Cur  BlockID
}

func NewBuilder(f *Func) *Builder {
	return &Builder{Func: f, Cur: NoBlockID}
}

// SetBlock moves the insertion point to the end of id.
func (b *Builder) SetBlock(id BlockID) { b.Cur = id }

func (b *Builder) block() *Block { return b.Func.Blocks[b.Cur] }

// Terminated reports whether the current block already has a terminator.
func (b *Builder) Terminated() bool {
	return b.Cur == NoBlockID || b.block().Terminated()
}

func (b *Builder) NewBlock(name string) BlockID { return b.Func.NewBlock(name) }

func (b *Builder) emit(ins Instr) Operand {
	if ins.Type.IsVoid() {
		ins.Dst = NoValueID
	} else {
		ins.Dst = b.Func.NewValue(ins.Type)
	}
	blk := b.block()
	blk.Instrs = append(blk.Instrs, ins)
	if ins.Dst == NoValueID {
		return Operand{}
	}
	return Val(ins.Dst, ins.Type)
}

func (b *Builder) Binary(op BinOp, x, y Operand) Operand {
	return b.emit(Instr{Kind: InstrBinary, Type: x.Type, Binary: BinaryInstr{Op: op, X: x, Y: y}})
}

// Overflow yields {T, i1}.
func (b *Builder) Overflow(op OverflowOp, x, y Operand) Operand {
	return b.emit(Instr{Kind: InstrOverflow, Type: Struct(x.Type, I1()), Overflow: OverflowInstr{Op: op, X: x, Y: y}})
}

func (b *Builder) Cmp(pred CmpPred, x, y Operand) Operand {
	return b.emit(Instr{Kind: InstrCmp, Type: I1(), Cmp: CmpInstr{Pred: pred, X: x, Y: y}})
}

func (b *Builder) Cast(op CastOp, x Operand, to Type) Operand {
	return b.emit(Instr{Kind: InstrCast, Type: to, Cast: CastInstr{Op: op, X: x}})
}

// IntResize truncates or extends x to an integer of bits, signed when signed.
func (b *Builder) IntResize(x Operand, bits int, signed bool) Operand {
	switch {
	case x.Type.Bits == bits:
		return x
	case x.Type.Bits > bits:
		return b.Cast(CastTrunc, x, Int(bits))
	case signed:
		return b.Cast(CastSExt, x, Int(bits))
	default:
		return b.Cast(CastZExt, x, Int(bits))
	}
}

func (b *Builder) Alloca(t Type, align int) Operand {
	return b.emit(Instr{Kind: InstrAlloca, Type: Ptr(), Alloca: AllocaInstr{Elem: t, Align: align}})
}

func (b *Builder) Load(t Type, addr Operand) Operand {
	return b.emit(Instr{Kind: InstrLoad, Type: t, Load: LoadInstr{Addr: addr}})
}

func (b *Builder) Store(v, addr Operand) {
	b.emit(Instr{Kind: InstrStore, Type: Void(), Store: StoreInstr{Value: v, Addr: addr}})
}

// PtrAdd offsets base by a byte count operand.
func (b *Builder) PtrAdd(base, offset Operand) Operand {
	return b.emit(Instr{Kind: InstrPtrAdd, Type: Ptr(), PtrAdd: PtrAddInstr{Base: base, Offset: offset}})
}

// PtrOffset offsets base by a constant; zero offsets fold away.
func (b *Builder) PtrOffset(base Operand, off int) Operand {
	if off == 0 {
		return base
	}
	return b.PtrAdd(base, Const(I64(), int64(off)))
}

func (b *Builder) Extract(agg Operand, idx int) Operand {
	return b.emit(Instr{Kind: InstrExtract, Type: agg.Type.Field(idx), Extract: ExtractInstr{Agg: agg, Index: idx}})
}

func (b *Builder) Insert(agg, v Operand, idx int) Operand {
	return b.emit(Instr{Kind: InstrInsert, Type: agg.Type, Insert: InsertInstr{Agg: agg, Value: v, Index: idx}})
}

// Aggregate builds a struct value of t from its members.
func (b *Builder) Aggregate(t Type, members ...Operand) Operand {
	agg := Undef(t)
	for i, m := range members {
		agg = b.Insert(agg, m, i)
	}
	return agg
}

func (b *Builder) Select(cond, then, els Operand) Operand {
	return b.emit(Instr{Kind: InstrSelect, Type: then.Type, Select: SelectInstr{Cond: cond, Then: then, Else: els}})
}

func (b *Builder) Phi(t Type, incoming ...PhiIncoming) Operand {
	return b.emit(Instr{Kind: InstrPhi, Type: t, Phi: PhiInstr{Incoming: incoming}})
}

// Call emits a direct or indirect call. The result operand is zero for
// void results.
func (b *Builder) Call(result Type, callee Operand, conv CallConv, args ...Operand) Operand {
	return b.emit(Instr{Kind: InstrCall, Type: result, Call: CallInstr{Callee: callee, Args: args, Conv: conv}})
}

func (b *Builder) LandingPad() Operand {
	return b.emit(Instr{Kind: InstrLandingPad, Type: Ptr()})
}

func (b *Builder) Ret(v Operand) {
	b.block().Term = Terminator{Kind: TermReturn, Return: ReturnTerm{HasValue: true, Value: v}}
}

func (b *Builder) RetVoid() {
	b.block().Term = Terminator{Kind: TermReturn}
}

func (b *Builder) Goto(target BlockID) {
	b.block().Term = Terminator{Kind: TermGoto, Goto: GotoTerm{Target: target}}
}

func (b *Builder) If(cond Operand, then, els BlockID) {
	b.block().Term = Terminator{Kind: TermIf, If: IfTerm{Cond: cond, Then: then, Else: els}}
}

func (b *Builder) Switch(v Operand, cases []SwitchCase, def BlockID) {
	b.block().Term = Terminator{Kind: TermSwitch, Switch: SwitchTerm{Value: v, Cases: cases, Default: def}}
}

// Invoke terminates the block with a raising call; the result operand is
// valid in normal.
func (b *Builder) Invoke(result Type, callee Operand, conv CallConv, args []Operand, normal, unwind BlockID) Operand {
	dst := NoValueID
	if !result.IsVoid() {
		dst = b.Func.NewValue(result)
	}
	b.block().Term = Terminator{Kind: TermInvoke, Invoke: InvokeTerm{
		Dst:    dst,
		Type:   result,
		Call:   CallInstr{Callee: callee, Args: args, Conv: conv},
		Normal: normal,
		Unwind: unwind,
	}}
	if dst == NoValueID {
		return Operand{}
	}
	return Val(dst, result)
}

func (b *Builder) Resume(exn Operand) {
	b.block().Term = Terminator{Kind: TermResume, Resume: ResumeTerm{Exception: exn}}
}

func (b *Builder) Unreachable() {
	b.block().Term = Terminator{Kind: TermUnreachable}
}
