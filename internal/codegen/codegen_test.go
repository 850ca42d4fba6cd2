package codegen_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"

	"lgen/internal/codegen"
	"lgen/internal/layout"
	"lgen/internal/mir"
	"lgen/internal/mono"
	"lgen/internal/trace"
	"lgen/internal/vm"
)

func let(sym mono.Symbol, ex mono.Expr, l layout.Layout, cont mono.Stmt) *mono.Let {
	return &mono.Let{Sym: sym, Expr: ex, Layout: l, Cont: cont}
}

func ret(sym mono.Symbol) *mono.Ret { return &mono.Ret{Sym: sym} }

func low(op mono.Op, args ...mono.Symbol) *mono.Call {
	return &mono.Call{Type: mono.LowLevel{Op: op}, Args: args}
}

func byName(p *mono.Proc, args ...mono.Symbol) *mono.Call {
	return &mono.Call{Type: mono.ByName{Proc: p.Ref()}, Args: args}
}

func hof(op mono.Op, p *mono.Proc, captured layout.Layout, args ...mono.Symbol) *mono.Call {
	return &mono.Call{Type: mono.HigherOrder{Op: op, Proc: p.Ref(), Captured: captured}, Args: args}
}

func params(pairs ...any) []mono.Param {
	var out []mono.Param
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, mono.Param{Sym: mono.Symbol(pairs[i].(string)), Layout: pairs[i+1].(layout.Layout)})
	}
	return out
}

func generate(t *testing.T, prog *mono.Program, opts codegen.Options) *mir.Module {
	t.Helper()
	mod, err := codegen.Generate(context.Background(), prog, opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return mod
}

func load(t *testing.T, prog *mono.Program) *vm.VM {
	t.Helper()
	return vm.New(generate(t, prog, codegen.DefaultOptions()), vm.Options{})
}

func mustCall(t *testing.T, m *vm.VM, name string, args ...vm.Value) vm.Value {
	t.Helper()
	v, err := m.Call(name, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func wantLive(t *testing.T, m *vm.VM, want int) {
	t.Helper()
	if got := m.Stats().Live; got != want {
		t.Fatalf("live blocks = %d, want %d", got, want)
	}
}

func addProc() *mono.Proc {
	return &mono.Proc{
		Name:   "add",
		Args:   params("a", layout.I64(), "b", layout.I64()),
		Result: layout.I64(),
		Body:   let("r", low(mono.NumAdd, "a", "b"), layout.I64(), ret("r")),
	}
}

func TestExposedArithmetic(t *testing.T) {
	add := addProc()
	m := load(t, &mono.Program{
		Procs:   []*mono.Proc{add},
		Exposed: []mono.Exposed{{Ident: "add", Proc: add.Ref()}},
	})

	res := mustCall(t, m, "roc__add_1_exposed", vm.I64(2), vm.I64(3))
	if flag := res.Field(0).Bits; flag != 0 {
		t.Fatalf("flag = %d, want 0", flag)
	}
	if got := res.Field(1).Field(0).Signed(64); got != 5 {
		t.Fatalf("add(2, 3) = %d, want 5", got)
	}

	res = mustCall(t, m, "roc__add_1_exposed", vm.I64(math.MaxInt64), vm.I64(1))
	if flag := res.Field(0).Bits; flag != 1 {
		t.Fatalf("flag = %d, want 1", flag)
	}
	if msg := m.CString(res.Field(1).Field(0).Bits); msg != "integer addition overflowed!" {
		t.Fatalf("message = %q", msg)
	}

	if got := mustCall(t, m, "roc__add_size").Signed(64); got != 8 {
		t.Errorf("size = %d, want 8", got)
	}
	if got := mustCall(t, m, "roc__add_result_size").Signed(64); got != 16 {
		t.Errorf("result size = %d, want 16", got)
	}
}

func TestUncaughtOverflowIsException(t *testing.T) {
	add := addProc()
	m := load(t, &mono.Program{Procs: []*mono.Proc{add}})
	_, err := m.Call("add_1", vm.I64(math.MinInt64), vm.I64(-1))
	x, ok := vm.IsException(err)
	if !ok {
		t.Fatalf("expected an exception, got %v", err)
	}
	if x.Message != "integer addition overflowed!" {
		t.Fatalf("message = %q", x.Message)
	}
}

func TestStringConcatReleasesInputs(t *testing.T) {
	greet := &mono.Proc{
		Name:   "greet",
		Args:   params("name", layout.Str()),
		Result: layout.Str(),
		Body: let("prefix", mono.StrLit("Good morning to you, "), layout.Str(),
			let("r", low(mono.StrConcat, "prefix", "name"), layout.Str(), ret("r"))),
	}
	m := load(t, &mono.Program{Procs: []*mono.Proc{greet}})
	arg := m.NewStr("everybody in the room")
	wantLive(t, m, 1)
	got := m.ReadStr(mustCall(t, m, "greet_1", arg))
	if got != "Good morning to you, everybody in the room" {
		t.Fatalf("greet = %q", got)
	}
	wantLive(t, m, 1)
}

func TestSmallStringLiteral(t *testing.T) {
	hi := &mono.Proc{
		Name:   "hi",
		Result: layout.I64(),
		Body: let("s", mono.StrLit("héllo"), layout.Str(),
			let("n", low(mono.StrCountGraphemes, "s"), layout.I64(), ret("n"))),
	}
	m := load(t, &mono.Program{Procs: []*mono.Proc{hi}})
	if got := mustCall(t, m, "hi_1").Signed(64); got != 5 {
		t.Fatalf("graphemes = %d, want 5", got)
	}
	wantLive(t, m, 0)
}

func TestSwitchAndJoin(t *testing.T) {
	classify := &mono.Proc{
		Name:   "classify",
		Args:   params("n", layout.I64()),
		Result: layout.I64(),
		Body: &mono.Join{
			ID:     1,
			Params: params("r", layout.I64()),
			Remainder: let("zero", mono.IntLit(0), layout.I64(),
				let("neg", low(mono.NumLt, "n", "zero"), layout.Bool(),
					&mono.Switch{
						Cond:       "neg",
						CondLayout: layout.Bool(),
						Branches: []mono.Branch{{
							Value: 1,
							Body:  let("m", mono.IntLit(-1), layout.I64(), &mono.Jump{ID: 1, Args: []mono.Symbol{"m"}}),
						}},
						Default: let("two", mono.IntLit(2), layout.I64(),
							let("d", low(mono.NumMul, "n", "two"), layout.I64(), &mono.Jump{ID: 1, Args: []mono.Symbol{"d"}})),
						Result: layout.I64(),
					})),
			Continuation: ret("r"),
		},
	}
	m := load(t, &mono.Program{Procs: []*mono.Proc{classify}})
	tests := []struct {
		in, want int64
	}{
		{-5, -1},
		{0, 0},
		{4, 8},
	}
	for _, tt := range tests {
		if got := mustCall(t, m, "classify_1", vm.I64(tt.in)).Signed(64); got != tt.want {
			t.Errorf("classify(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSwitchMergesBranchValues(t *testing.T) {
	pick := &mono.Proc{
		Name:   "pick",
		Args:   params("n", layout.I64()),
		Result: layout.I64(),
		Body: let("r", mono.IntLit(0), layout.I64(), &mono.Switch{
			Cond:       "n",
			CondLayout: layout.I64(),
			Branches: []mono.Branch{
				{Value: 1, Body: let("a", mono.IntLit(10), layout.I64(), ret("a"))},
				{Value: 2, Body: let("b", mono.IntLit(20), layout.I64(), ret("b"))},
			},
			Default: ret("r"),
			Result:  layout.I64(),
		}),
	}
	m := load(t, &mono.Program{Procs: []*mono.Proc{pick}})
	for in, want := range map[int64]int64{1: 10, 2: 20, 7: 0} {
		if got := mustCall(t, m, "pick_1", vm.I64(in)).Signed(64); got != want {
			t.Errorf("pick(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestListHigherOrder(t *testing.T) {
	list := layout.List(layout.I64())
	double := &mono.Proc{
		Name:   "double",
		Args:   params("x", layout.I64()),
		Result: layout.I64(),
		Body: let("two", mono.IntLit(2), layout.I64(),
			let("r", low(mono.NumMul, "x", "two"), layout.I64(), ret("r"))),
	}
	above := &mono.Proc{
		Name:   "above",
		Args:   params("x", layout.I64(), "t", layout.I64()),
		Result: layout.Bool(),
		Body:   let("r", low(mono.NumGt, "x", "t"), layout.Bool(), ret("r")),
	}
	add := addProc()
	desc := &mono.Proc{
		Name:   "desc",
		Args:   params("a", layout.I64(), "b", layout.I64()),
		Result: layout.U8(),
		Body:   let("r", low(mono.NumCompare, "b", "a"), layout.U8(), ret("r")),
	}
	mapProc := &mono.Proc{
		Name:   "doubled",
		Args:   params("xs", list),
		Result: list,
		Body:   let("ys", hof(mono.ListMap, double, layout.Unit(), "xs"), list, ret("ys")),
	}
	keepProc := &mono.Proc{
		Name:   "keep",
		Args:   params("xs", list, "t", layout.I64()),
		Result: list,
		Body:   let("ys", hof(mono.ListKeepIf, above, layout.I64(), "xs", "t"), list, ret("ys")),
	}
	sumProc := &mono.Proc{
		Name:   "total",
		Args:   params("xs", list),
		Result: layout.I64(),
		Body: let("zero", mono.IntLit(0), layout.I64(),
			let("s", hof(mono.ListWalk, add, layout.Unit(), "xs", "zero"), layout.I64(), ret("s"))),
	}
	sortProc := &mono.Proc{
		Name:   "sorted",
		Args:   params("xs", list),
		Result: list,
		Body:   let("ys", hof(mono.ListSortWith, desc, layout.Unit(), "xs"), list, ret("ys")),
	}
	m := load(t, &mono.Program{Procs: []*mono.Proc{double, above, add, desc, mapProc, keepProc, sumProc, sortProc}})

	tests := []struct {
		name string
		fn   string
		in   []int64
		args []vm.Value
		want []int64
	}{
		{name: "map", fn: "doubled_1", in: []int64{1, 2, 3}, want: []int64{2, 4, 6}},
		{name: "map empty", fn: "doubled_1", in: nil, want: []int64{}},
		{name: "keep_if", fn: "keep_1", in: []int64{1, 5, 9, 3}, args: []vm.Value{vm.I64(4)}, want: []int64{5, 9}},
		{name: "sort_with", fn: "sorted_1", in: []int64{3, 1, 2}, want: []int64{3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := m.Stats().Live
			args := append([]vm.Value{m.NewI64List(tt.in...)}, tt.args...)
			out := mustCall(t, m, tt.fn, args...)
			got := m.ReadI64List(out)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("%s(%v) = %v, want %v", tt.fn, tt.in, got, tt.want)
			}
			want := before
			if len(tt.want) > 0 {
				want++
			}
			wantLive(t, m, want)
		})
	}

	before := m.Stats().Live
	if got := mustCall(t, m, "total_1", m.NewI64List(4, 5, 6)).Signed(64); got != 15 {
		t.Fatalf("total = %d, want 15", got)
	}
	wantLive(t, m, before)
}

func TestDictionary(t *testing.T) {
	dict := layout.Dict(layout.I64(), layout.I64())
	i64 := layout.I64()
	build := &mono.Proc{
		Name:   "build",
		Result: i64,
		Body: let("d0", low(mono.DictEmpty), dict,
			let("k1", mono.IntLit(1), i64,
				let("v1", mono.IntLit(10), i64,
					let("d1", low(mono.DictInsert, "d0", "k1", "v1"), dict,
						let("k2", mono.IntLit(2), i64,
							let("v2", mono.IntLit(20), i64,
								let("d2", low(mono.DictInsert, "d1", "k2", "v2"), dict,
									let("v3", mono.IntLit(30), i64,
										let("d3", low(mono.DictInsert, "d2", "k1", "v3"), dict,
											let("g", low(mono.DictGetUnsafe, "d3", "k1"), i64,
												let("n", low(mono.DictSize, "d3"), i64,
													let("r", low(mono.NumAdd, "g", "n"), i64,
														&mono.Refcounting{Kind: mono.RcDec, Sym: "d3", Cont: ret("r")})))))))))))),
	}
	m := load(t, &mono.Program{Procs: []*mono.Proc{build}})
	if got := mustCall(t, m, "build_1").Signed(64); got != 32 {
		t.Fatalf("build = %d, want 32", got)
	}
	wantLive(t, m, 0)
}

// consList is a list of integers whose empty variant is the null pointer.
func consList() layout.Layout {
	return layout.NullableUnwrapped(0, layout.I64(), layout.RecursivePointer())
}

func TestRecursiveUnion(t *testing.T) {
	l := consList()
	i64 := layout.I64()
	sum := &mono.Proc{Name: "sum", Args: params("l", l), Result: i64}
	sum.Body = &mono.Switch{
		Cond:       "l",
		CondLayout: l,
		Branches: []mono.Branch{{
			Value: 0,
			Body:  let("z", mono.IntLit(0), i64, ret("z")),
		}},
		Default: let("h", &mono.AccessAtIndex{Structure: "l", TagID: 1, Index: 0}, i64,
			let("t", &mono.AccessAtIndex{Structure: "l", TagID: 1, Index: 1}, layout.RecursivePointer(),
				let("s", byName(sum, "t"), i64,
					let("r", low(mono.NumAdd, "h", "s"), i64, ret("r"))))),
		Result: i64,
	}
	mk := &mono.Proc{
		Name:   "mk",
		Result: i64,
		Body: let("nil", &mono.Tag{Layout: l, TagID: 0}, l,
			let("a", mono.IntLit(1), i64,
				let("c1", &mono.Tag{Layout: l, TagID: 1, Args: []mono.Symbol{"a", "nil"}}, l,
					let("b", mono.IntLit(2), i64,
						let("c2", &mono.Tag{Layout: l, TagID: 1, Args: []mono.Symbol{"b", "c1"}}, l,
							let("s", byName(sum, "c2"), i64,
								&mono.Refcounting{Kind: mono.RcDec, Sym: "c2", Cont: ret("s")})))))),
	}
	m := load(t, &mono.Program{Procs: []*mono.Proc{sum, mk}})
	if got := mustCall(t, m, "mk_1").Signed(64); got != 3 {
		t.Fatalf("mk = %d, want 3", got)
	}
	if st := m.Stats(); st.Allocs != 2 || st.Live != 0 {
		t.Fatalf("allocs = %d, live = %d; want 2 and 0", st.Allocs, st.Live)
	}
}

func TestInvokeRecovers(t *testing.T) {
	i64 := layout.I64()
	boom := &mono.Proc{
		Name:   "boom",
		Args:   params("x", i64),
		Result: i64,
		Body:   &mono.RuntimeError{Message: "kaboom"},
	}
	safe := &mono.Proc{
		Name:   "safe",
		Args:   params("x", i64),
		Result: i64,
		Body: &mono.Invoke{
			Sym:       "r",
			Call:      byName(boom, "x"),
			Layout:    i64,
			Pass:      ret("r"),
			Fail:      let("m", mono.IntLit(-1), i64, ret("m")),
			Exception: "e",
		},
	}
	rethrow := &mono.Proc{
		Name:   "rethrow",
		Args:   params("x", i64),
		Result: i64,
		Body: &mono.Invoke{
			Sym:       "r",
			Call:      byName(boom, "x"),
			Layout:    i64,
			Pass:      ret("r"),
			Fail:      &mono.Resume{Exception: "e"},
			Exception: "e",
		},
	}
	m := load(t, &mono.Program{
		Procs:   []*mono.Proc{boom, safe, rethrow},
		Exposed: []mono.Exposed{{Ident: "rethrow", Proc: rethrow.Ref()}},
	})
	if got := mustCall(t, m, "safe_1", vm.I64(7)).Signed(64); got != -1 {
		t.Fatalf("safe = %d, want -1", got)
	}
	res := mustCall(t, m, "roc__rethrow_1_exposed", vm.I64(7))
	if res.Field(0).Bits != 1 {
		t.Fatalf("flag = %d, want 1", res.Field(0).Bits)
	}
	if msg := m.CString(res.Field(1).Field(0).Bits); msg != "kaboom" {
		t.Fatalf("message = %q, want kaboom", msg)
	}
}

func TestMainExitCode(t *testing.T) {
	tests := []struct {
		name string
		body mono.Stmt
		want int64
	}{
		{
			name: "success",
			body: let("s", mono.StrLit("a string long enough to live in a global"), layout.Str(), ret("s")),
			want: 0,
		},
		{
			name: "raise",
			body: &mono.RuntimeError{Message: "unreachable branch"},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main := &mono.Proc{Name: "main", Result: layout.Str(), Body: tt.body}
			opts := codegen.DefaultOptions()
			opts.Main = "main"
			m := vm.New(generate(t, &mono.Program{Procs: []*mono.Proc{main}}, opts), vm.Options{})
			if got := mustCall(t, m, "main").Signed(32); got != tt.want {
				t.Fatalf("exit code = %d, want %d", got, tt.want)
			}
			wantLive(t, m, 0)
		})
	}
}

func TestHostClosure(t *testing.T) {
	i64 := layout.I64()
	addN := &mono.Proc{
		Name:   "addN",
		Args:   params("x", i64, "n", i64),
		Result: i64,
		Body:   let("r", low(mono.NumAdd, "x", "n"), i64, ret("r")),
	}
	m := load(t, &mono.Program{
		Procs:    []*mono.Proc{addN},
		Closures: []mono.HostClosure{{Def: "adder", Alias: "f", Proc: addN.Ref(), Captured: i64}},
	})
	data, out := m.Malloc(8, 8), m.Malloc(8, 8)
	m.Store(mir.I64(), data, vm.I64(37))
	mustCall(t, m, "roc__adder_f_caller", vm.I64(5), vm.Ptr(data), vm.Ptr(out))
	if got := m.Load(mir.I64(), out).Signed(64); got != 42 {
		t.Fatalf("closure result = %d, want 42", got)
	}
	if got := mustCall(t, m, "roc__adder_f_size").Signed(64); got != 8 {
		t.Errorf("captured size = %d, want 8", got)
	}
}

func TestRoutinesHaveBuiltins(t *testing.T) {
	for _, name := range codegen.RoutineNames() {
		if !vm.HasBuiltin(name) {
			t.Errorf("runtime routine %s has no VM implementation", name)
		}
	}
}

func TestBasicTypeMatchesLayoutSize(t *testing.T) {
	layouts := []string{
		"i64", "i8", "bool", "f64", "str", "list<i64>", "dict<str, i64>",
		"{i8, i64, bool}", "{}", "{{}, i32}", "{str}",
		"union[(i64) | (i8, f64)]", "nu<0>(i64, rec)",
	}
	for _, ptr := range []int{4, 8} {
		for _, s := range layouts {
			l := layout.MustParse(s)
			bt := codegen.BasicType(l, ptr)
			if got, want := bt.Size(ptr), l.StackSize(ptr); got != want {
				t.Errorf("ptr %d: %s is %s of size %d, layout says %d", ptr, s, bt, got, want)
			}
			if l.IsZeroSized() {
				continue
			}
			if got, want := bt.Align(ptr), l.Alignment(ptr); got != want {
				t.Errorf("ptr %d: %s aligns to %d, layout says %d", ptr, s, got, want)
			}
		}
	}
}

func TestGenerateRejectsBrokenPrograms(t *testing.T) {
	missing := &mono.Proc{Name: "ghost", Args: params("x", layout.I64()), Result: layout.I64()}
	tests := []struct {
		name string
		proc *mono.Proc
		want string
	}{
		{
			name: "unbound symbol",
			proc: &mono.Proc{Name: "f", Result: layout.I64(), Body: ret("nope")},
			want: "symbol nope is not bound",
		},
		{
			name: "unknown specialization",
			proc: &mono.Proc{
				Name:   "f",
				Args:   params("x", layout.I64()),
				Result: layout.I64(),
				Body:   let("r", byName(missing, "x"), layout.I64(), ret("r")),
			},
			want: "unknown specialization",
		},
		{
			name: "numeric op on string",
			proc: &mono.Proc{
				Name:   "f",
				Args:   params("s", layout.Str()),
				Result: layout.Str(),
				Body:   let("r", low(mono.NumAdd, "s", "s"), layout.Str(), ret("r")),
			},
			want: "non-numeric",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codegen.Generate(context.Background(), &mono.Program{Procs: []*mono.Proc{tt.proc}}, codegen.DefaultOptions())
			if err == nil {
				t.Fatalf("expected an error")
			}
			var ie *codegen.InternalError
			if !errors.As(err, &ie) {
				t.Fatalf("error %v is not an InternalError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestProcNameNumbersSpecializations(t *testing.T) {
	a := &mono.Proc{Name: "id", Args: params("x", layout.I64()), Result: layout.I64(), Body: ret("x")}
	b := &mono.Proc{Name: "id", Args: params("x", layout.Str()), Result: layout.Str(), Body: ret("x")}
	prog := &mono.Program{Procs: []*mono.Proc{a, b}}
	for want, p := range map[string]*mono.Proc{"id_1": a, "id_2": b} {
		got, ok := codegen.ProcName(prog, p.Ref())
		if !ok || got != want {
			t.Errorf("ProcName(%s) = %q, %v; want %q", p.Ref().Key().Layouts, got, ok, want)
		}
	}
	mod := generate(t, prog, codegen.DefaultOptions())
	if mod.Func("id_1") == nil || mod.Func("id_2") == nil {
		t.Fatalf("specializations missing from module")
	}
}

func TestGenerateTracesProcedures(t *testing.T) {
	rec := trace.NewRing(64, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), rec)
	prog := &mono.Program{Procs: []*mono.Proc{addProc()}}
	if _, err := codegen.Generate(ctx, prog, codegen.DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, ev := range rec.Snapshot() {
		if ev.Kind == trace.KindSpanEnd {
			names = append(names, ev.Scope.String()+" "+ev.Name)
		}
	}
	for _, want := range []string{"proc add_1", "unit bodies", "pass codegen"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing span %q in %v", want, names)
		}
	}
}

func TestWrappingAddTruncates(t *testing.T) {
	i64 := layout.I64()
	wrap := &mono.Proc{
		Name:   "wrap",
		Args:   params("a", i64, "b", i64),
		Result: i64,
		Body:   let("r", low(mono.NumAddWrap, "a", "b"), i64, ret("r")),
	}
	m := load(t, &mono.Program{Procs: []*mono.Proc{wrap}})
	if got := mustCall(t, m, "wrap_1", vm.I64(math.MaxInt64), vm.I64(1)).Signed(64); got != math.MinInt64 {
		t.Fatalf("wrap(max, 1) = %d, want %d", got, int64(math.MinInt64))
	}
}

func TestJoinLoopMatchesRecursion(t *testing.T) {
	i64 := layout.I64()
	loop := &mono.Proc{
		Name:   "loop",
		Args:   params("n", i64),
		Result: i64,
		Body: &mono.Join{
			ID:     1,
			Params: params("i", i64, "acc", i64),
			Remainder: let("zero", mono.IntLit(0), i64,
				&mono.Jump{ID: 1, Args: []mono.Symbol{"n", "zero"}}),
			Continuation: let("z", mono.IntLit(0), i64,
				let("done", low(mono.Eq, "i", "z"), layout.Bool(), &mono.Switch{
					Cond:       "done",
					CondLayout: layout.Bool(),
					Branches:   []mono.Branch{{Value: 1, Body: ret("acc")}},
					Default: let("one", mono.IntLit(1), i64,
						let("i2", low(mono.NumSub, "i", "one"), i64,
							let("a2", low(mono.NumAdd, "acc", "i"), i64,
								&mono.Jump{ID: 1, Args: []mono.Symbol{"i2", "a2"}}))),
					Result: i64,
				})),
		},
	}
	rec := &mono.Proc{Name: "rec", Args: params("n", i64), Result: i64}
	rec.Body = let("z", mono.IntLit(0), i64,
		let("done", low(mono.Eq, "n", "z"), layout.Bool(), &mono.Switch{
			Cond:       "done",
			CondLayout: layout.Bool(),
			Branches:   []mono.Branch{{Value: 1, Body: ret("z")}},
			Default: let("one", mono.IntLit(1), i64,
				let("m", low(mono.NumSub, "n", "one"), i64,
					let("s", byName(rec, "m"), i64,
						let("r", low(mono.NumAdd, "s", "n"), i64, ret("r"))))),
			Result: i64,
		}))
	m := load(t, &mono.Program{Procs: []*mono.Proc{loop, rec}})
	for _, n := range []int64{0, 1, 17, 500} {
		got := mustCall(t, m, "loop_1", vm.I64(n)).Signed(64)
		want := mustCall(t, m, "rec_1", vm.I64(n)).Signed(64)
		if got != want || got != n*(n+1)/2 {
			t.Errorf("n=%d: loop %d, recursion %d", n, got, want)
		}
	}
}

func TestNonRecursiveSwitchSelectsVariant(t *testing.T) {
	i64 := layout.I64()
	u := layout.NonRecursive(layout.Variant(i64), layout.Variant(i64), layout.Variant(i64))
	var procs []*mono.Proc
	for i := range 3 {
		var branches []mono.Branch
		for j := range 3 {
			branches = append(branches, mono.Branch{
				Value: uint64(j),
				Body: let("p", &mono.AccessAtIndex{Structure: "u", TagID: j, Index: 0}, i64,
					let("c", mono.IntLit(int64(j*100)), i64,
						let("r", low(mono.NumAdd, "p", "c"), i64, ret("r")))),
			})
		}
		procs = append(procs, &mono.Proc{
			Name:   mono.Symbol(fmt.Sprintf("pick%d", i)),
			Result: i64,
			Body: let("x", mono.IntLit(int64(i*10)), i64,
				let("u", &mono.Tag{Layout: u, TagID: i, Args: []mono.Symbol{"x"}}, u, &mono.Switch{
					Cond:       "u",
					CondLayout: u,
					Branches:   branches,
					Default:    &mono.RuntimeError{Message: "no variant"},
					Result:     i64,
				})),
		})
	}
	m := load(t, &mono.Program{Procs: procs})
	for i := range 3 {
		if got := mustCall(t, m, fmt.Sprintf("pick%d_1", i)).Signed(64); got != int64(i*110) {
			t.Errorf("pick%d = %d, want %d", i, got, i*110)
		}
	}
}

func TestNullableTagIDWithoutDereference(t *testing.T) {
	i64 := layout.I64()
	wrapped := layout.NullableWrapped(1, layout.Variant(i64), layout.Variant(i64, layout.RecursivePointer()))
	tests := []struct {
		name string
		l    layout.Layout
		id   int
	}{
		{name: "unwrapped", l: consList(), id: 0},
		{name: "wrapped", l: wrapped, id: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mono.Proc{
				Name:   "nt",
				Result: i64,
				Body: let("v", &mono.Tag{Layout: tt.l, TagID: tt.id}, tt.l,
					let("t", &mono.GetTagID{Structure: "v"}, i64, ret("t"))),
			}
			m := load(t, &mono.Program{Procs: []*mono.Proc{p}})
			if got := mustCall(t, m, "nt_1").Signed(64); got != int64(tt.id) {
				t.Fatalf("tag id = %d, want %d", got, tt.id)
			}
			if allocs := m.Stats().Allocs; allocs != 0 {
				t.Fatalf("allocs = %d, want 0", allocs)
			}
		})
	}
}

func TestRefcountRoundTrip(t *testing.T) {
	const n = 3
	body := mono.Stmt(let("u", &mono.StructExpr{}, layout.Unit(), ret("u")))
	for range n + 1 {
		body = &mono.Refcounting{Kind: mono.RcDec, Sym: "s", Cont: body}
	}
	p := &mono.Proc{
		Name:   "churn",
		Args:   params("s", layout.Str()),
		Result: layout.Unit(),
		Body:   &mono.Refcounting{Kind: mono.RcInc, Sym: "s", Amount: n, Cont: body},
	}
	m := load(t, &mono.Program{Procs: []*mono.Proc{p}})
	arg := m.NewStr("a string that does not fit in two words")
	mustCall(t, m, "churn_1", arg)
	if st := m.Stats(); st.Frees != 1 || st.Live != 0 {
		t.Fatalf("frees = %d, live = %d; want 1 and 0", st.Frees, st.Live)
	}
}

func TestExposedLargeResultUsesOutPointer(t *testing.T) {
	i64 := layout.I64()
	triple := layout.Struct(i64, i64, i64)
	p := &mono.Proc{
		Name:   "triple",
		Args:   params("x", i64),
		Result: triple,
		Body: let("one", mono.IntLit(1), i64,
			let("y", low(mono.NumAdd, "x", "one"), i64,
				let("z", low(mono.NumAdd, "y", "one"), i64,
					let("r", &mono.StructExpr{Fields: []mono.Symbol{"x", "y", "z"}}, triple, ret("r"))))),
	}
	m := load(t, &mono.Program{
		Procs:   []*mono.Proc{p},
		Exposed: []mono.Exposed{{Ident: "triple", Proc: p.Ref()}},
	})
	size := mustCall(t, m, "roc__triple_size").Signed(64)
	if size != int64(triple.StackSize(8)) {
		t.Fatalf("size = %d, want %d", size, triple.StackSize(8))
	}
	resultSize := mustCall(t, m, "roc__triple_result_size").Signed(64)
	out := m.Malloc(int(resultSize), 8)
	mustCall(t, m, "roc__triple_1_exposed", vm.I64(7), vm.Ptr(out))
	if flag := m.Load(mir.I64(), out).Signed(64); flag != 0 {
		t.Fatalf("flag = %d, want 0", flag)
	}
	for i, want := range []int64{7, 8, 9} {
		if got := m.Load(mir.I64(), out+uint64(8+8*i)).Signed(64); got != want {
			t.Errorf("field %d = %d, want %d", i, got, want)
		}
	}
}
