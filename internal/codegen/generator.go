// Package codegen lowers monomorphized, layout-annotated programs to MIR.
//
// Every value carries one concrete layout; the generator decides the machine
// representation of each layout (see BasicType), inserts reference counting
// as the program's Refcounting statements direct, lowers built-in operations
// against concrete layouts and wraps exposed procedures for a foreign host.
package codegen

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hashicorp/go-set/v3"

	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
	"lgen/internal/trace"
)

// Options controls one generation run.
type Options struct {
	Target layout.Target
	// HostPrefix starts every host-visible symbol name.
	HostPrefix string
	// EmitNames keeps descriptive block names in the output.
	EmitNames bool
	// CheckMIR validates the generated module.
	CheckMIR bool
	// Main names a zero-argument procedure to wrap as the C entry point.
	Main string
}

// DefaultOptions targets x86_64 Linux with the "roc" host prefix.
func DefaultOptions() Options {
	return Options{
		Target:     layout.X86_64LinuxGNU(),
		HostPrefix: "roc",
		CheckMIR:   true,
	}
}

type procInfo struct {
	proc *mono.Proc
	name string
	fn   *mir.Func
}

// Generator holds the per-unit state of one generation run. It is not safe
// for concurrent use; independent units use independent generators.
type Generator struct {
	prog   *mono.Program
	opts   Options
	ptr    int
	mod    *mir.Module
	tracer trace.Tracer
	span   uint64

	procs  map[mono.ProcKey]*procInfo
	order  []*procInfo
	thunks map[mono.Symbol]*procInfo

	helpers   *set.Set[string]
	hostNames *set.Set[string]
	layoutIDs map[string]int
	strs      map[string]string
	msgs      map[string]string
}

// Generate lowers prog into a MIR module.
func Generate(ctx context.Context, prog *mono.Program, opts Options) (mod *mir.Module, err error) {
	if prog == nil {
		return nil, fmt.Errorf("codegen: nil program")
	}
	if opts.Target.PtrBytes == 0 {
		opts.Target = layout.X86_64LinuxGNU()
	}
	if opts.HostPrefix == "" {
		opts.HostPrefix = "roc"
	}
	g := newGenerator(prog, opts, trace.FromContext(ctx))

	span := trace.Begin(g.tracer, trace.ScopePass, "codegen", trace.CurrentSpan(ctx).SpanID)
	g.span = span.ID()
	defer func() {
		if err != nil {
			span.End(err.Error())
			return
		}
		span.WithExtra("funcs", strconv.Itoa(len(mod.Funcs)))
		span.End("")
	}()

	if err := g.phase("headers", g.declareProcs); err != nil {
		return nil, err
	}
	if err := g.phase("bodies", g.generateBodies); err != nil {
		return nil, err
	}
	if err := g.phase("host", g.generateHost); err != nil {
		return nil, err
	}
	if opts.CheckMIR {
		if verr := mir.Validate(g.mod); verr != nil {
			return nil, fmt.Errorf("codegen: generated invalid MIR: %w", verr)
		}
	}
	return g.mod, nil
}

func newGenerator(prog *mono.Program, opts Options, tracer trace.Tracer) *Generator {
	return &Generator{
		prog:      prog,
		opts:      opts,
		ptr:       opts.Target.PtrBytes,
		mod:       mir.NewModule(opts.Target.Triple, opts.Target.PtrBytes),
		tracer:    tracer,
		procs:     make(map[mono.ProcKey]*procInfo, len(prog.Procs)),
		thunks:    make(map[mono.Symbol]*procInfo),
		helpers:   set.New[string](64),
		hostNames: set.New[string](len(prog.Exposed) * 4),
		layoutIDs: make(map[string]int),
		strs:      make(map[string]string),
		msgs:      make(map[string]string),
	}
}

// phase runs one generation pass under a trace span, converting internal
// error panics into errors.
func (g *Generator) phase(name string, run func()) (err error) {
	span := trace.Begin(g.tracer, trace.ScopeUnit, name, g.span)
	defer func() {
		if r := recover(); r != nil {
			err = internalFromPanic(name, r)
		}
		if err != nil {
			span.End(err.Error())
			err = fmt.Errorf("codegen %s: %w", name, err)
			return
		}
		span.End("")
	}()
	run()
	return nil
}

// ProcName returns the MIR function name of a specialization: the procedure
// name followed by its 1-based index among same-named specializations.
func ProcName(prog *mono.Program, ref mono.ProcRef) (string, bool) {
	key := ref.Key()
	n := 0
	for _, p := range prog.Procs {
		if p.Name != ref.Name {
			continue
		}
		n++
		if p.Ref().Key() == key {
			return fmt.Sprintf("%s_%d", p.Name, n), true
		}
	}
	return "", false
}

// declareProcs creates headers for every procedure so bodies can reference
// any of them.
func (g *Generator) declareProcs() {
	counts := make(map[mono.Symbol]int)
	for _, p := range g.prog.Procs {
		key := p.Ref().Key()
		if _, dup := g.procs[key]; dup {
			panic(&InternalError{Proc: string(p.Name), Detail: "duplicate specialization " + key.Layouts})
		}
		counts[p.Name]++
		params := make([]mir.Type, 0, len(p.Args))
		for _, a := range p.Args {
			params = append(params, g.basic(a.Layout))
		}
		info := &procInfo{
			proc: p,
			name: fmt.Sprintf("%s_%d", p.Name, counts[p.Name]),
		}
		info.fn = mir.NewFunc(info.name, params, g.basic(p.Result), mir.CallConvFast, mir.LinkageInternal)
		g.procs[key] = info
		g.order = append(g.order, info)
		if p.IsThunk() {
			g.thunks[p.Name] = info
		}
		g.mod.AddFunc(info.fn)
	}
}

func (g *Generator) generateBodies() {
	for _, info := range g.order {
		g.generateProc(info)
	}
}

func (g *Generator) generateProc(info *procInfo) {
	span := trace.Begin(g.tracer, trace.ScopeProc, info.name, g.span)
	defer span.End("")

	e := g.newEmitter(info.fn, info.name)
	e.b.SetBlock(e.block("entry"))
	var scope Scope
	for i, a := range info.proc.Args {
		scope = scope.Bind(a.Sym, a.Layout, info.fn.Arg(i))
	}
	v, ok := e.stmt(scope, info.proc.Body, info.proc.Result)
	if ok {
		e.b.Ret(v)
	}
}

func (g *Generator) lookupProc(ref mono.ProcRef) *procInfo {
	info, ok := g.procs[ref.Key()]
	if !ok {
		panic(&InternalError{Symbol: ref.Name, Detail: "call to unknown specialization " + ref.Key().Layouts})
	}
	return info
}

// layoutID numbers layouts for helper names.
func (g *Generator) layoutID(l layout.Layout) int {
	key := layout.Key(l)
	if id, ok := g.layoutIDs[key]; ok {
		return id
	}
	id := len(g.layoutIDs)
	g.layoutIDs[key] = id
	return id
}

// emitter builds the body of one function.
type emitter struct {
	g    *Generator
	f    *mir.Func
	b    *mir.Builder
	name string
}

func (g *Generator) newEmitter(f *mir.Func, name string) *emitter {
	return &emitter{g: g, f: f, b: mir.NewBuilder(f), name: name}
}

// block creates a block, named only when names are requested.
func (e *emitter) block(name string) mir.BlockID {
	if !e.g.opts.EmitNames {
		name = ""
	}
	return e.b.NewBlock(name)
}

func (e *emitter) ptr() int { return e.g.ptr }

func (e *emitter) usize() mir.Type { return e.g.usize() }

func (e *emitter) word(v int) mir.Operand { return mir.Const(e.usize(), int64(v)) }

func (e *emitter) basic(l layout.Layout) mir.Type { return e.g.basic(l) }

// helper defines an internal function once per name. build runs with a
// fresh emitter positioned at the entry block; the name is registered
// before build runs so recursive helpers terminate.
func (g *Generator) helper(name string, params []mir.Type, result mir.Type, conv mir.CallConv, build func(e *emitter)) string {
	if !g.helpers.Insert(name) {
		return name
	}
	fn := mir.NewFunc(name, params, result, conv, mir.LinkageInternal)
	g.mod.AddFunc(fn)
	e := g.newEmitter(fn, name)
	e.b.SetBlock(e.block("entry"))
	build(e)
	return name
}
