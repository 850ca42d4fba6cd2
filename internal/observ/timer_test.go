package observ

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	stopLoad := tm.Start("load")
	time.Sleep(time.Millisecond)
	if d := stopLoad("yaml"); d <= 0 {
		t.Fatalf("load duration = %v", d)
	}
	stopLoad("again")
	tm.Start("codegen")("")
	tm.Start("emit")

	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Name != "load" || r.Phases[0].Note != "yaml" || r.Phases[1].Name != "codegen" {
		t.Fatalf("phases = %+v", r.Phases)
	}
	if r.Phases[0].DurationMS <= 0 || r.TotalMS < r.Phases[0].DurationMS {
		t.Fatalf("durations = %+v", r)
	}
	s := r.Summary()
	if !strings.Contains(s, "load") || !strings.Contains(s, "// yaml") || !strings.Contains(s, "total") || strings.Contains(s, "emit") {
		t.Fatalf("summary:\n%s", s)
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("report = %+v", r)
	}
}

func TestConcurrentPhases(t *testing.T) {
	tm := NewTimer()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tm.Start("unit")("")
		}()
	}
	wg.Wait()
	if got := len(tm.Report().Phases); got != 8 {
		t.Fatalf("phases = %d, want 8", got)
	}
}

func TestMerge(t *testing.T) {
	var total Report
	total.Merge("a.yaml", Report{TotalMS: 2, Phases: []PhaseReport{{Name: "load", DurationMS: 2}}})
	total.Merge("", Report{TotalMS: 3, Phases: []PhaseReport{{Name: "emit", DurationMS: 3}}})
	if total.TotalMS != 5 || total.Phases[0].Name != "a.yaml:load" || total.Phases[1].Name != "emit" {
		t.Fatalf("merged = %+v", total)
	}
	if s := total.Summary(); !strings.Contains(s, "a.yaml:load") || !strings.Contains(s, "5.00 ms") {
		t.Fatalf("summary:\n%s", s)
	}
}
