package mir

// InstrKind enumerates instruction kinds in MIR.
type InstrKind uint8

const (
	// InstrBinary is integer or float arithmetic, bitwise logic or a shift.
	InstrBinary InstrKind = iota
	// InstrOverflow is arithmetic returning {result, i1 overflowed}.
	InstrOverflow
	// InstrCmp compares two integers, pointers or floats and yields i1.
	InstrCmp
	// InstrCast converts between scalar types.
	InstrCast
	// InstrAlloca reserves a stack slot and yields its address.
	InstrAlloca
	// InstrLoad reads a value of the instruction type from memory.
	InstrLoad
	// InstrStore writes a value to memory.
	InstrStore
	// InstrPtrAdd offsets a pointer by a byte count.
	InstrPtrAdd
	// InstrExtract reads one member of an aggregate.
	InstrExtract
	// InstrInsert replaces one member of an aggregate.
	InstrInsert
	// InstrSelect picks one of two values by an i1 condition.
	InstrSelect
	// InstrPhi merges values arriving from predecessor blocks.
	InstrPhi
	// InstrCall calls a function or declared routine.
	InstrCall
	// InstrLandingPad yields the in-flight exception at an unwind target.
	InstrLandingPad
)

// Instr represents a MIR instruction. Dst is NoValueID for instructions
// without a result.
type Instr struct {
	Kind InstrKind
	Dst  ValueID
	Type Type

	Binary   BinaryInstr
	Overflow OverflowInstr
	Cmp      CmpInstr
	Cast     CastInstr
	Alloca   AllocaInstr
	Load     LoadInstr
	Store    StoreInstr
	PtrAdd   PtrAddInstr
	Extract  ExtractInstr
	Insert   InsertInstr
	Select   SelectInstr
	Phi      PhiInstr
	Call     CallInstr
}

type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinSDiv
	BinUDiv
	BinSRem
	BinURem
	BinAnd
	BinOr
	BinXor
	BinShl
	BinLShr
	BinAShr
	BinFAdd
	BinFSub
	BinFMul
	BinFDiv
	BinFRem
)

var binOpNames = [...]string{
	BinAdd: "add", BinSub: "sub", BinMul: "mul",
	BinSDiv: "sdiv", BinUDiv: "udiv", BinSRem: "srem", BinURem: "urem",
	BinAnd: "and", BinOr: "or", BinXor: "xor",
	BinShl: "shl", BinLShr: "lshr", BinAShr: "ashr",
	BinFAdd: "fadd", BinFSub: "fsub", BinFMul: "fmul", BinFDiv: "fdiv", BinFRem: "frem",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return "binop?"
}

type BinaryInstr struct {
	Op   BinOp
	X, Y Operand
}

type OverflowOp uint8

const (
	OverflowSAdd OverflowOp = iota
	OverflowSSub
	OverflowSMul
	OverflowUAdd
	OverflowUSub
	OverflowUMul
)

var overflowNames = [...]string{
	OverflowSAdd: "sadd", OverflowSSub: "ssub", OverflowSMul: "smul",
	OverflowUAdd: "uadd", OverflowUSub: "usub", OverflowUMul: "umul",
}

func (op OverflowOp) String() string {
	if int(op) < len(overflowNames) {
		return overflowNames[op]
	}
	return "ovf?"
}

// OverflowInstr yields {T, i1}; Type holds that struct.
type OverflowInstr struct {
	Op   OverflowOp
	X, Y Operand
}

type CmpPred uint8

const (
	CmpEq CmpPred = iota
	CmpNe
	CmpSLt
	CmpSLe
	CmpSGt
	CmpSGe
	CmpULt
	CmpULe
	CmpUGt
	CmpUGe
	CmpFOEq
	CmpFUNe
	CmpFOLt
	CmpFOLe
	CmpFOGt
	CmpFOGe
)

var cmpNames = [...]string{
	CmpEq: "eq", CmpNe: "ne",
	CmpSLt: "slt", CmpSLe: "sle", CmpSGt: "sgt", CmpSGe: "sge",
	CmpULt: "ult", CmpULe: "ule", CmpUGt: "ugt", CmpUGe: "uge",
	CmpFOEq: "oeq", CmpFUNe: "une", CmpFOLt: "olt", CmpFOLe: "ole", CmpFOGt: "ogt", CmpFOGe: "oge",
}

func (p CmpPred) String() string {
	if int(p) < len(cmpNames) {
		return cmpNames[p]
	}
	return "cmp?"
}

// IsFloat reports whether p is an fcmp predicate.
func (p CmpPred) IsFloat() bool { return p >= CmpFOEq }

type CmpInstr struct {
	Pred CmpPred
	X, Y Operand
}

type CastOp uint8

const (
	CastTrunc CastOp = iota
	CastZExt
	CastSExt
	CastSIToFP
	CastUIToFP
	CastFPToSI
	CastFPExt
	CastFPTrunc
	CastPtrToInt
	CastIntToPtr
	CastBitcast
)

var castNames = [...]string{
	CastTrunc: "trunc", CastZExt: "zext", CastSExt: "sext",
	CastSIToFP: "sitofp", CastUIToFP: "uitofp", CastFPToSI: "fptosi",
	CastFPExt: "fpext", CastFPTrunc: "fptrunc",
	CastPtrToInt: "ptrtoint", CastIntToPtr: "inttoptr", CastBitcast: "bitcast",
}

func (op CastOp) String() string {
	if int(op) < len(castNames) {
		return castNames[op]
	}
	return "cast?"
}

// CastInstr converts X to the instruction type.
type CastInstr struct {
	Op CastOp
	X  Operand
}

// AllocaInstr reserves a slot of Elem; the result is a pointer.
type AllocaInstr struct {
	Elem  Type
	Align int
}

type LoadInstr struct {
	Addr Operand
}

type StoreInstr struct {
	Value Operand
	Addr  Operand
}

// PtrAddInstr computes Base + Offset bytes.
type PtrAddInstr struct {
	Base   Operand
	Offset Operand
}

type ExtractInstr struct {
	Agg   Operand
	Index int
}

type InsertInstr struct {
	Agg   Operand
	Value Operand
	Index int
}

type SelectInstr struct {
	Cond       Operand
	Then, Else Operand
}

type PhiIncoming struct {
	Block BlockID
	Value Operand
}

type PhiInstr struct {
	Incoming []PhiIncoming
}

// CallConv is a machine calling convention, numbered as LLVM numbers them.
type CallConv uint8

const (
	CallConvC    CallConv = 0
	CallConvFast CallConv = 8
	CallConvCold CallConv = 9
)

func (c CallConv) String() string {
	switch c {
	case CallConvC:
		return "ccc"
	case CallConvFast:
		return "fastcc"
	case CallConvCold:
		return "coldcc"
	default:
		return "cc?"
	}
}

// CallInstr calls Callee, either a function address or a pointer value.
type CallInstr struct {
	Callee Operand
	Args   []Operand
	Conv   CallConv
}

// HasResult reports whether the instruction defines a value.
func (ins *Instr) HasResult() bool {
	return ins.Dst != NoValueID
}

// Operands returns every operand the instruction reads.
func (ins *Instr) Operands() []Operand {
	switch ins.Kind {
	case InstrBinary:
		return []Operand{ins.Binary.X, ins.Binary.Y}
	case InstrOverflow:
		return []Operand{ins.Overflow.X, ins.Overflow.Y}
	case InstrCmp:
		return []Operand{ins.Cmp.X, ins.Cmp.Y}
	case InstrCast:
		return []Operand{ins.Cast.X}
	case InstrLoad:
		return []Operand{ins.Load.Addr}
	case InstrStore:
		return []Operand{ins.Store.Value, ins.Store.Addr}
	case InstrPtrAdd:
		return []Operand{ins.PtrAdd.Base, ins.PtrAdd.Offset}
	case InstrExtract:
		return []Operand{ins.Extract.Agg}
	case InstrInsert:
		return []Operand{ins.Insert.Agg, ins.Insert.Value}
	case InstrSelect:
		return []Operand{ins.Select.Cond, ins.Select.Then, ins.Select.Else}
	case InstrPhi:
		ops := make([]Operand, len(ins.Phi.Incoming))
		for i, in := range ins.Phi.Incoming {
			ops[i] = in.Value
		}
		return ops
	case InstrCall:
		return append([]Operand{ins.Call.Callee}, ins.Call.Args...)
	default:
		return nil
	}
}
