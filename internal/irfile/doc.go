package irfile

// The document types mirror mono.Program in a shape that is pleasant to write
// by hand. Statement sequences are flattened: every element of a block but the
// last is a let or a refcount operation, the last one ends the block.
// Layouts are stored in the syntax of layout.Parse.

type programDoc struct {
	Procs    []procDoc    `yaml:"procs" msgpack:"procs"`
	Exposed  []exposedDoc `yaml:"exposed,omitempty" msgpack:"exposed,omitempty"`
	Closures []closureDoc `yaml:"closures,omitempty" msgpack:"closures,omitempty"`
}

type paramDoc struct {
	Sym    string `yaml:"sym" msgpack:"sym"`
	Layout string `yaml:"layout" msgpack:"layout"`
}

type refDoc struct {
	Name   string   `yaml:"name" msgpack:"name"`
	Args   []string `yaml:"args,flow" msgpack:"args"`
	Result string   `yaml:"result" msgpack:"result"`
}

type procDoc struct {
	Name   string     `yaml:"name" msgpack:"name"`
	Args   []paramDoc `yaml:"args,omitempty" msgpack:"args,omitempty"`
	Result string     `yaml:"result" msgpack:"result"`
	Body   []stmtDoc  `yaml:"body" msgpack:"body"`
}

type exposedDoc struct {
	Ident string `yaml:"ident" msgpack:"ident"`
	Proc  refDoc `yaml:"proc" msgpack:"proc"`
}

type closureDoc struct {
	Def      string `yaml:"def" msgpack:"def"`
	Alias    string `yaml:"alias" msgpack:"alias"`
	Proc     refDoc `yaml:"proc" msgpack:"proc"`
	Captured string `yaml:"captured" msgpack:"captured"`
}

// stmtDoc holds exactly one statement.
type stmtDoc struct {
	Let    *letDoc    `yaml:"let,omitempty" msgpack:"let,omitempty"`
	Rc     *rcDoc     `yaml:"rc,omitempty" msgpack:"rc,omitempty"`
	Ret    string     `yaml:"ret,omitempty" msgpack:"ret,omitempty"`
	Switch *switchDoc `yaml:"switch,omitempty" msgpack:"switch,omitempty"`
	Join   *joinDoc   `yaml:"join,omitempty" msgpack:"join,omitempty"`
	Jump   *jumpDoc   `yaml:"jump,omitempty" msgpack:"jump,omitempty"`
	Invoke *invokeDoc `yaml:"invoke,omitempty" msgpack:"invoke,omitempty"`
	Resume string     `yaml:"resume,omitempty" msgpack:"resume,omitempty"`
	Raise  *string    `yaml:"raise,omitempty" msgpack:"raise,omitempty"`
}

type letDoc struct {
	Sym    string `yaml:"sym" msgpack:"sym"`
	Layout string `yaml:"layout" msgpack:"layout"`

	Int    *int64     `yaml:"int,omitempty" msgpack:"int,omitempty"`
	Float  *float64   `yaml:"float,omitempty" msgpack:"float,omitempty"`
	Bool   *bool      `yaml:"bool,omitempty" msgpack:"bool,omitempty"`
	Byte   *uint8     `yaml:"byte,omitempty" msgpack:"byte,omitempty"`
	Str    *string    `yaml:"str,omitempty" msgpack:"str,omitempty"`
	Call   *callDoc   `yaml:"call,omitempty" msgpack:"call,omitempty"`
	Struct []string   `yaml:"struct,flow,omitempty" msgpack:"struct,omitempty"`
	Unit   bool       `yaml:"unit,omitempty" msgpack:"unit,omitempty"`
	Tag    *tagDoc    `yaml:"tag,omitempty" msgpack:"tag,omitempty"`
	Access *accessDoc `yaml:"access,omitempty" msgpack:"access,omitempty"`
	TagOf  string     `yaml:"tag_of,omitempty" msgpack:"tag_of,omitempty"`
	Array  *arrayDoc  `yaml:"array,omitempty" msgpack:"array,omitempty"`
	Empty  bool       `yaml:"empty_array,omitempty" msgpack:"empty_array,omitempty"`
}

// callDoc selects the call type by its populated fields: foreign, then op
// (higher-order when proc is also set), then proc alone.
type callDoc struct {
	Proc     *refDoc  `yaml:"proc,omitempty" msgpack:"proc,omitempty"`
	Op       string   `yaml:"op,omitempty" msgpack:"op,omitempty"`
	Captured string   `yaml:"captured,omitempty" msgpack:"captured,omitempty"`
	Owned    bool     `yaml:"owned,omitempty" msgpack:"owned,omitempty"`
	Foreign  string   `yaml:"foreign,omitempty" msgpack:"foreign,omitempty"`
	Result   string   `yaml:"result,omitempty" msgpack:"result,omitempty"`
	Args     []string `yaml:"args,flow,omitempty" msgpack:"args,omitempty"`
}

type tagDoc struct {
	Layout string   `yaml:"layout" msgpack:"layout"`
	ID     int      `yaml:"id" msgpack:"id"`
	Args   []string `yaml:"args,flow,omitempty" msgpack:"args,omitempty"`
}

type accessDoc struct {
	Of    string `yaml:"of" msgpack:"of"`
	Tag   int    `yaml:"tag,omitempty" msgpack:"tag,omitempty"`
	Index int    `yaml:"index" msgpack:"index"`
}

type arrayDoc struct {
	Elem  string   `yaml:"elem" msgpack:"elem"`
	Elems []string `yaml:"elems,flow" msgpack:"elems"`
}

type rcDoc struct {
	Op     string `yaml:"op" msgpack:"op"`
	Sym    string `yaml:"sym" msgpack:"sym"`
	Amount int    `yaml:"amount,omitempty" msgpack:"amount,omitempty"`
}

type switchDoc struct {
	Cond     string      `yaml:"cond" msgpack:"cond"`
	Layout   string      `yaml:"layout" msgpack:"layout"`
	Result   string      `yaml:"result" msgpack:"result"`
	Branches []branchDoc `yaml:"branches" msgpack:"branches"`
	Default  []stmtDoc   `yaml:"default" msgpack:"default"`
}

type branchDoc struct {
	Value uint64    `yaml:"value" msgpack:"value"`
	Body  []stmtDoc `yaml:"body" msgpack:"body"`
}

type joinDoc struct {
	ID           uint32     `yaml:"id" msgpack:"id"`
	Params       []paramDoc `yaml:"params,omitempty" msgpack:"params,omitempty"`
	Continuation []stmtDoc  `yaml:"continuation" msgpack:"continuation"`
	Remainder    []stmtDoc  `yaml:"remainder" msgpack:"remainder"`
}

type jumpDoc struct {
	ID   uint32   `yaml:"id" msgpack:"id"`
	Args []string `yaml:"args,flow,omitempty" msgpack:"args,omitempty"`
}

type invokeDoc struct {
	Sym       string    `yaml:"sym" msgpack:"sym"`
	Layout    string    `yaml:"layout" msgpack:"layout"`
	Call      callDoc   `yaml:"call" msgpack:"call"`
	Exception string    `yaml:"exception" msgpack:"exception"`
	Pass      []stmtDoc `yaml:"pass" msgpack:"pass"`
	Fail      []stmtDoc `yaml:"fail" msgpack:"fail"`
}
