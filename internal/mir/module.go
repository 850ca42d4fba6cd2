package mir

// Global is a read-only data blob.
type Global struct {
	Name  string
	Bytes []byte
	Align int
}

// Decl is an externally provided routine.
type Decl struct {
	Name     string
	Params   []Type
	Result   Type
	Conv     CallConv
	NoReturn bool
}

// Module is one generated compilation unit.
type Module struct {
	Triple   string
	PtrBytes int

	Funcs   []*Func
	Globals []*Global
	Decls   []*Decl

	funcIndex   map[string]int
	globalIndex map[string]int
	declIndex   map[string]int
}

func NewModule(triple string, ptrBytes int) *Module {
	return &Module{
		Triple:      triple,
		PtrBytes:    ptrBytes,
		funcIndex:   make(map[string]int),
		globalIndex: make(map[string]int),
		declIndex:   make(map[string]int),
	}
}

func (m *Module) AddFunc(f *Func) {
	m.ensureIndex()
	m.funcIndex[f.Name] = len(m.Funcs)
	m.Funcs = append(m.Funcs, f)
}

func (m *Module) AddGlobal(g *Global) {
	m.ensureIndex()
	m.globalIndex[g.Name] = len(m.Globals)
	m.Globals = append(m.Globals, g)
}

// AddDecl registers d unless a declaration of the same name exists.
func (m *Module) AddDecl(d *Decl) {
	m.ensureIndex()
	if _, ok := m.declIndex[d.Name]; ok {
		return
	}
	m.declIndex[d.Name] = len(m.Decls)
	m.Decls = append(m.Decls, d)
}

func (m *Module) Func(name string) *Func {
	m.ensureIndex()
	if i, ok := m.funcIndex[name]; ok {
		return m.Funcs[i]
	}
	return nil
}

func (m *Module) Global(name string) *Global {
	m.ensureIndex()
	if i, ok := m.globalIndex[name]; ok {
		return m.Globals[i]
	}
	return nil
}

func (m *Module) Decl(name string) *Decl {
	m.ensureIndex()
	if i, ok := m.declIndex[name]; ok {
		return m.Decls[i]
	}
	return nil
}

// ensureIndex rebuilds lookup tables for modules assembled by hand.
func (m *Module) ensureIndex() {
	if m.funcIndex != nil && len(m.funcIndex) == len(m.Funcs) &&
		len(m.globalIndex) == len(m.Globals) && len(m.declIndex) == len(m.Decls) {
		return
	}
	m.funcIndex = make(map[string]int, len(m.Funcs))
	for i, f := range m.Funcs {
		m.funcIndex[f.Name] = i
	}
	m.globalIndex = make(map[string]int, len(m.Globals))
	for i, g := range m.Globals {
		m.globalIndex[g.Name] = i
	}
	m.declIndex = make(map[string]int, len(m.Decls))
	for i, d := range m.Decls {
		m.declIndex[d.Name] = i
	}
}
