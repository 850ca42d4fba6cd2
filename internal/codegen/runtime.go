package codegen

import (
	"lgen/internal/mir"
)

// routine names an externally provided runtime routine.
type routine uint8

const (
	rtAlloc routine = iota
	rtDealloc
	rtThrow
	rtExceptionMessage

	rtStrConcat
	rtStrCountGraphemes
	rtStrStartsWith
	rtStrEndsWith
	rtStrEqual
	rtStrFromInt
	rtStrJoinWith
	rtStrSplit

	rtListSet
	rtListAppend
	rtListPrepend
	rtListConcat
	rtListSingle
	rtListRepeat
	rtListReverse
	rtListContains
	rtListEqual

	rtDictInsert
	rtDictRemove
	rtDictContains
	rtDictGetUnsafe
	rtDictKeys
	rtDictValues
	rtDictUnion
	rtDictEqual

	rtListMap
	rtListMap2
	rtListMap3
	rtListKeepIf
	rtListKeepOks
	rtListKeepErrs
	rtListWalk
	rtListWalkBackwards
	rtListWalkUntil
	rtListSortWith
	rtDictWalk

	rtNumPowInt

	routineCount
)

// Argument groups shared by several routines.
const (
	argFat   = 'F' // {ptr, usize}
	argPtr   = 'p'
	argWord  = 'w' // usize
	argI32   = 'a' // alignment
	argI64   = 'l'
	argElem  = 'E' // width, align, inc shim, dec shim
	argEntry = 'D' // entry width, align, key width, value offset, value width, key eq, key inc, key dec, value inc, value dec
)

type routineSig struct {
	name     string
	params   string
	result   byte // 0 for void
	noReturn bool
}

var routines = [routineCount]routineSig{
	rtAlloc:            {name: "roc_alloc", params: "wa", result: argPtr},
	rtDealloc:          {name: "roc_dealloc", params: "pa"},
	rtThrow:            {name: "rt_throw", params: "p", noReturn: true},
	rtExceptionMessage: {name: "rt_exception_message", params: "p", result: argPtr},

	rtStrConcat:         {name: "rt_str_concat", params: "FF", result: argFat},
	rtStrCountGraphemes: {name: "rt_str_count_graphemes", params: "F", result: argWord},
	rtStrStartsWith:     {name: "rt_str_starts_with", params: "FF", result: 'b'},
	rtStrEndsWith:       {name: "rt_str_ends_with", params: "FF", result: 'b'},
	rtStrEqual:          {name: "rt_str_equal", params: "FF", result: 'b'},
	rtStrFromInt:        {name: "rt_str_from_int", params: "l", result: argFat},
	rtStrJoinWith:       {name: "rt_str_join_with", params: "FF", result: argFat},
	rtStrSplit:          {name: "rt_str_split", params: "FF", result: argFat},

	rtListSet:      {name: "rt_list_set", params: "FwpE", result: argFat},
	rtListAppend:   {name: "rt_list_append", params: "FpE", result: argFat},
	rtListPrepend:  {name: "rt_list_prepend", params: "FpE", result: argFat},
	rtListConcat:   {name: "rt_list_concat", params: "FFE", result: argFat},
	rtListSingle:   {name: "rt_list_single", params: "pE", result: argFat},
	rtListRepeat:   {name: "rt_list_repeat", params: "pwE", result: argFat},
	rtListReverse:  {name: "rt_list_reverse", params: "FE", result: argFat},
	rtListContains: {name: "rt_list_contains", params: "Fpwp", result: 'b'},
	rtListEqual:    {name: "rt_list_equal", params: "FFwp", result: 'b'},

	rtDictInsert:    {name: "rt_dict_insert", params: "FppD", result: argFat},
	rtDictRemove:    {name: "rt_dict_remove", params: "FpD", result: argFat},
	rtDictContains:  {name: "rt_dict_contains", params: "FpD", result: 'b'},
	rtDictGetUnsafe: {name: "rt_dict_get_unsafe", params: "FppD"},
	rtDictKeys:      {name: "rt_dict_keys", params: "FDE", result: argFat},
	rtDictValues:    {name: "rt_dict_values", params: "FDE", result: argFat},
	rtDictUnion:     {name: "rt_dict_union", params: "FFD", result: argFat},
	rtDictEqual:     {name: "rt_dict_equal", params: "FFDp", result: 'b'},

	rtListMap:           {name: "rt_list_map", params: "FpEE", result: argFat},
	rtListMap2:          {name: "rt_list_map2", params: "FFpEEE", result: argFat},
	rtListMap3:          {name: "rt_list_map3", params: "FFFpEEEE", result: argFat},
	rtListKeepIf:        {name: "rt_list_keep_if", params: "FpE", result: argFat},
	rtListKeepOks:       {name: "rt_list_keep_oks", params: "FpEwpE", result: argFat},
	rtListKeepErrs:      {name: "rt_list_keep_errs", params: "FpEwpE", result: argFat},
	rtListWalk:          {name: "rt_list_walk", params: "FpppEw"},
	rtListWalkBackwards: {name: "rt_list_walk_backwards", params: "FpppEw"},
	rtListWalkUntil:     {name: "rt_list_walk_until", params: "FpppEww"},
	rtListSortWith:      {name: "rt_list_sort_with", params: "FpE", result: argFat},
	rtDictWalk:          {name: "rt_dict_walk", params: "FpppDw"},

	rtNumPowInt: {name: "rt_num_pow_int", params: "ll", result: argI64},
}

// RoutineNames lists every runtime routine a module may reference.
func RoutineNames() []string {
	out := make([]string, len(routines))
	for i, r := range routines {
		out[i] = r.name
	}
	return out
}

func (g *Generator) argType(c byte) []mir.Type {
	switch c {
	case argFat:
		return []mir.Type{fatType(g.ptr)}
	case argPtr:
		return []mir.Type{mir.Ptr()}
	case argWord:
		return []mir.Type{g.usize()}
	case argI32:
		return []mir.Type{mir.I32()}
	case argI64:
		return []mir.Type{mir.I64()}
	case 'b':
		return []mir.Type{mir.I1()}
	case argElem:
		return []mir.Type{g.usize(), mir.I32(), mir.Ptr(), mir.Ptr()}
	case argEntry:
		w := g.usize()
		return []mir.Type{w, mir.I32(), w, w, w, mir.Ptr(), mir.Ptr(), mir.Ptr(), mir.Ptr(), mir.Ptr()}
	default:
		panic(&InternalError{Detail: "unknown runtime argument class " + string(c)})
	}
}

// runtime declares r on first use and returns its address.
func (g *Generator) runtime(r routine) mir.Operand {
	sig := routines[r]
	if g.mod.Decl(sig.name) == nil {
		var params []mir.Type
		for i := 0; i < len(sig.params); i++ {
			params = append(params, g.argType(sig.params[i])...)
		}
		result := mir.Void()
		if sig.result != 0 {
			result = g.argType(sig.result)[0]
		}
		g.mod.AddDecl(&mir.Decl{Name: sig.name, Params: params, Result: result, Conv: mir.CallConvC, NoReturn: sig.noReturn})
	}
	return mir.FuncAddr(sig.name)
}

// callRuntime calls r with the C convention and returns its result.
func (e *emitter) callRuntime(r routine, args ...mir.Operand) mir.Operand {
	callee := e.g.runtime(r)
	return e.b.Call(e.g.mod.Decl(routines[r].name).Result, callee, mir.CallConvC, args...)
}

// intrinsic declares a target intrinsic such as llvm.sqrt.f64.
func (g *Generator) intrinsic(name string, params []mir.Type, result mir.Type) mir.Operand {
	if g.mod.Decl(name) == nil {
		g.mod.AddDecl(&mir.Decl{Name: name, Params: params, Result: result, Conv: mir.CallConvC})
	}
	return mir.FuncAddr(name)
}

// raiseHelper is the cold path of every runtime failure.
func (g *Generator) raiseHelper() string {
	return g.helper("#raise", []mir.Type{mir.Ptr()}, mir.Void(), mir.CallConvCold, func(e *emitter) {
		e.callRuntime(rtThrow, e.f.Arg(0))
		e.b.Unreachable()
	})
}

// raise throws msg and terminates the current block.
func (e *emitter) raise(msg string) {
	e.b.Call(mir.Void(), mir.FuncAddr(e.g.raiseHelper()), mir.CallConvCold, mir.GlobalAddr(e.g.messageGlobal(msg)))
	e.b.Unreachable()
}

// raiseIf throws msg when cond holds.
func (e *emitter) raiseIf(cond mir.Operand, msg string) {
	e.ifThen(cond, "raise", func() { e.raise(msg) })
}
