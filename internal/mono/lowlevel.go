package mono

import "fmt"

// Op is a built-in operation.
type Op uint16

const (
	OpInvalid Op = iota

	// Integer arithmetic. The plain forms raise on overflow, Wrap forms
	// truncate, Checked forms return {result, overflowed}.
	NumAdd
	NumAddWrap
	NumAddChecked
	NumSub
	NumSubWrap
	NumSubChecked
	NumMul
	NumMulWrap
	NumMulChecked
	NumDivUnchecked
	NumRemUnchecked
	NumNeg
	NumAbs
	NumPowInt

	// Comparison and logic.
	Eq
	NotEq
	NumLt
	NumLte
	NumGt
	NumGte
	NumCompare
	And
	Or
	Not
	NumBitwiseAnd
	NumBitwiseOr
	NumBitwiseXor
	NumShiftLeftBy
	NumShiftRightBy
	NumShiftRightZfBy

	// Conversions and float math.
	NumIntCast
	NumToFloat
	NumFloor
	NumCeiling
	NumRound
	NumSqrtUnchecked

	ExpectTrue

	// Strings.
	StrConcat
	StrIsEmpty
	StrCountGraphemes
	StrStartsWith
	StrEndsWith
	StrFromInt
	StrJoinWith
	StrSplit

	// Lists.
	ListLen
	ListGetUnsafe
	ListSet
	ListAppend
	ListPrepend
	ListConcat
	ListSingle
	ListRepeat
	ListReverse
	ListContains
	ListSum

	// Dictionaries.
	DictEmpty
	DictSize
	DictInsert
	DictRemove
	DictContains
	DictGetUnsafe
	DictKeys
	DictValues
	DictUnion

	// Higher-order operations; valid only in a HigherOrder call.
	ListMap
	ListMap2
	ListMap3
	ListKeepIf
	ListKeepOks
	ListKeepErrs
	ListWalk
	ListWalkBackwards
	ListWalkUntil
	ListSortWith
	DictWalk

	opCount
)

var opNames = [...]string{
	OpInvalid:         "invalid",
	NumAdd:            "NumAdd",
	NumAddWrap:        "NumAddWrap",
	NumAddChecked:     "NumAddChecked",
	NumSub:            "NumSub",
	NumSubWrap:        "NumSubWrap",
	NumSubChecked:     "NumSubChecked",
	NumMul:            "NumMul",
	NumMulWrap:        "NumMulWrap",
	NumMulChecked:     "NumMulChecked",
	NumDivUnchecked:   "NumDivUnchecked",
	NumRemUnchecked:   "NumRemUnchecked",
	NumNeg:            "NumNeg",
	NumAbs:            "NumAbs",
	NumPowInt:         "NumPowInt",
	Eq:                "Eq",
	NotEq:             "NotEq",
	NumLt:             "NumLt",
	NumLte:            "NumLte",
	NumGt:             "NumGt",
	NumGte:            "NumGte",
	NumCompare:        "NumCompare",
	And:               "And",
	Or:                "Or",
	Not:               "Not",
	NumBitwiseAnd:     "NumBitwiseAnd",
	NumBitwiseOr:      "NumBitwiseOr",
	NumBitwiseXor:     "NumBitwiseXor",
	NumShiftLeftBy:    "NumShiftLeftBy",
	NumShiftRightBy:   "NumShiftRightBy",
	NumShiftRightZfBy: "NumShiftRightZfBy",
	NumIntCast:        "NumIntCast",
	NumToFloat:        "NumToFloat",
	NumFloor:          "NumFloor",
	NumCeiling:        "NumCeiling",
	NumRound:          "NumRound",
	NumSqrtUnchecked:  "NumSqrtUnchecked",
	ExpectTrue:        "ExpectTrue",
	StrConcat:         "StrConcat",
	StrIsEmpty:        "StrIsEmpty",
	StrCountGraphemes: "StrCountGraphemes",
	StrStartsWith:     "StrStartsWith",
	StrEndsWith:       "StrEndsWith",
	StrFromInt:        "StrFromInt",
	StrJoinWith:       "StrJoinWith",
	StrSplit:          "StrSplit",
	ListLen:           "ListLen",
	ListGetUnsafe:     "ListGetUnsafe",
	ListSet:           "ListSet",
	ListAppend:        "ListAppend",
	ListPrepend:       "ListPrepend",
	ListConcat:        "ListConcat",
	ListSingle:        "ListSingle",
	ListRepeat:        "ListRepeat",
	ListReverse:       "ListReverse",
	ListContains:      "ListContains",
	ListSum:           "ListSum",
	DictEmpty:         "DictEmpty",
	DictSize:          "DictSize",
	DictInsert:        "DictInsert",
	DictRemove:        "DictRemove",
	DictContains:      "DictContains",
	DictGetUnsafe:     "DictGetUnsafe",
	DictKeys:          "DictKeys",
	DictValues:        "DictValues",
	DictUnion:         "DictUnion",
	ListMap:           "ListMap",
	ListMap2:          "ListMap2",
	ListMap3:          "ListMap3",
	ListKeepIf:        "ListKeepIf",
	ListKeepOks:       "ListKeepOks",
	ListKeepErrs:      "ListKeepErrs",
	ListWalk:          "ListWalk",
	ListWalkBackwards: "ListWalkBackwards",
	ListWalkUntil:     "ListWalkUntil",
	ListSortWith:      "ListSortWith",
	DictWalk:          "DictWalk",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// ParseOp resolves an operation by name.
func ParseOp(name string) (Op, error) {
	for i := Op(1); i < opCount; i++ {
		if opNames[i] == name {
			return i, nil
		}
	}
	return OpInvalid, fmt.Errorf("unknown low-level op %q", name)
}

// IsHigherOrder reports whether op calls back into a user procedure.
func (op Op) IsHigherOrder() bool {
	return op >= ListMap && op <= DictWalk
}

// ListArity is the number of list arguments of a higher-order list op.
func (op Op) ListArity() int {
	switch op {
	case ListMap2:
		return 2
	case ListMap3:
		return 3
	case DictWalk:
		return 0
	default:
		return 1
	}
}
