package buildpipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"lgen/internal/cache"
	"lgen/internal/codegen"
)

const addYAML = `procs:
  - name: add
    args:
      - {sym: a, layout: i64}
      - {sym: b, layout: i64}
    result: i64
    body:
      - let: {sym: r, layout: i64, call: {op: NumAdd, args: [a, b]}}
      - ret: r
exposed:
  - ident: add
    proc: {name: add, args: [i64, i64], result: i64}
`

const brokenYAML = `procs:
  - name: f
    result: i64
    body:
      - ret: nope
`

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) has(file string, stage Stage, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.File == file && ev.Stage == stage && ev.Status == status {
			return true
		}
	}
	return false
}

func writeInput(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildAllKeepsOrderAndReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeInput(t, dir, "add.yaml", addYAML)
	bad := writeInput(t, dir, "broken.yaml", brokenYAML)
	out := filepath.Join(dir, "out")
	sink := &recordingSink{}

	results, err := BuildAll(context.Background(), &BuildRequest{
		Inputs:   []string{good, bad},
		Options:  codegen.DefaultOptions(),
		Backend:  BackendLLVM,
		OutDir:   out,
		EmitMIR:  true,
		Jobs:     2,
		Progress: sink,
	})
	if err == nil || !strings.Contains(err.Error(), "broken.yaml") {
		t.Fatalf("BuildAll error = %v, want one naming broken.yaml", err)
	}
	if len(results) != 2 || results[0].Input != good || results[1].Input != bad {
		t.Fatalf("results out of order: %+v", results)
	}
	if !strings.Contains(results[0].LLVM, "@roc__add_1_exposed") {
		t.Errorf("LLVM output lacks the exposed wrapper")
	}
	data, err := os.ReadFile(filepath.Join(out, "add.ll"))
	if err != nil || string(data) != results[0].LLVM {
		t.Errorf("add.ll = %d bytes, %v", len(data), err)
	}
	if _, err := os.Stat(filepath.Join(out, "add.mir")); err != nil {
		t.Errorf("MIR dump missing: %v", err)
	}
	if !results[0].Timings.Has(StageCodegen) || !results[0].Timings.Has(StageEmit) {
		t.Errorf("timings missing stages")
	}
	var names []string
	for _, p := range results[0].Report.Phases {
		names = append(names, p.Name)
	}
	if got := strings.Join(names, ","); got != "load,codegen,emit" {
		t.Errorf("report phases = %s", got)
	}

	if !sink.has(good, StageLoad, StatusQueued) || !sink.has(good, StageEmit, StatusDone) {
		t.Errorf("missing progress for %s", good)
	}
	if !sink.has(bad, StageCodegen, StatusError) {
		t.Errorf("missing codegen error event for %s", bad)
	}
}

func TestBuildUsesCache(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "add.yaml", addYAML)
	c, err := cache.Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	req := &BuildRequest{Options: codegen.DefaultOptions(), Cache: c}

	first, err := Build(context.Background(), req, input)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if first.Cached || first.MIR == nil {
		t.Fatalf("first build should generate code")
	}
	second, err := Build(context.Background(), req, input)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !second.Cached || second.LLVM != first.LLVM {
		t.Fatalf("second build should come from the cache")
	}

	other := *req
	other.Options.HostPrefix = "app"
	third, err := Build(context.Background(), &other, input)
	if err != nil {
		t.Fatalf("third build: %v", err)
	}
	if third.Cached || !strings.Contains(third.LLVM, "@app__add_1_exposed") {
		t.Fatalf("changed options must miss the cache")
	}
}

func TestVMBackendKeepsModule(t *testing.T) {
	input := writeInput(t, t.TempDir(), "add.yaml", addYAML)
	res, err := Build(context.Background(), &BuildRequest{Options: codegen.DefaultOptions(), Backend: BackendVM}, input)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.MIR == nil || res.LLVM != "" {
		t.Fatalf("vm backend result = %+v", res)
	}
	if _, err := Build(context.Background(), &BuildRequest{Backend: "jvm"}, input); err == nil {
		t.Fatal("expected an unsupported backend error")
	}
}

func TestCompileReportsPhases(t *testing.T) {
	input := writeInput(t, t.TempDir(), "add.yaml", addYAML)
	res, err := Compile(context.Background(), &CompileRequest{Input: input, Options: codegen.DefaultOptions()})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(res.Report.Phases) != 2 || res.Report.Phases[0].Name != "load" || res.Report.Phases[1].Name != "codegen" {
		t.Fatalf("phases = %+v", res.Report.Phases)
	}
	if _, err := Compile(context.Background(), &CompileRequest{Input: "prog.txt"}); err == nil {
		t.Fatal("expected an extension error")
	}
}

func TestTimings(t *testing.T) {
	var tm Timings
	tm.Set(StageLoad, 2)
	tm.Set(StageEmit, 3)
	tm.Set("link", 100)
	if !tm.Has(StageLoad) || tm.Has(StageCodegen) || tm.Has("link") {
		t.Fatalf("Has is wrong: %+v", tm)
	}
	if tm.Sum() != 5 || tm.Sum(StageEmit, StageRun) != 3 {
		t.Fatalf("sums = %d, %d", tm.Sum(), tm.Sum(StageEmit, StageRun))
	}
	if StageLoad.Progress() >= StageEmit.Progress() || !StatusError.Finished() || StatusWorking.Finished() {
		t.Fatal("stage ordering helpers disagree")
	}
}
