package ui

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"lgen/internal/buildpipeline"
)

func TestProgressFollowsEvents(t *testing.T) {
	events := make(chan buildpipeline.Event)
	m := NewProgressModel("building", []string{"a.yaml", "b.yaml"}, events).(*progressModel)

	m.Update(eventMsg{File: "a.yaml", Stage: buildpipeline.StageCodegen, Status: buildpipeline.StatusWorking})
	m.Update(eventMsg{File: "b.yaml", Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusDone})
	m.Update(eventMsg{File: "unknown.yaml", Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusError})

	if got := m.units[0].label(); got != "generating" {
		t.Errorf("a.yaml status = %q, want generating", got)
	}
	if got := m.units[1].label(); got != "done" {
		t.Errorf("b.yaml status = %q, want done", got)
	}
	if got := m.percent(); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("percent = %v, want 0.7", got)
	}

	m.Update(doneMsg{})
	view := m.View()
	for _, want := range []string{"done: building [1/2]", "a.yaml", "b.yaml", "generating"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestErrorStaysVisible(t *testing.T) {
	m := NewProgressModel("building", []string{"bad.yaml"}, nil).(*progressModel)
	m.Update(eventMsg{File: "bad.yaml", Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusError, Err: errors.New("unknown IR file extension")})
	m.Update(eventMsg{File: "bad.yaml", Stage: buildpipeline.StageEmit, Status: buildpipeline.StatusDone})
	if got := m.units[0].label(); got != "error" {
		t.Fatalf("status after error = %q", got)
	}
	if view := m.View(); !strings.Contains(view, "unknown IR file extension") {
		t.Fatalf("view lacks the error:\n%s", view)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short.yaml", 20); got != "short.yaml" {
		t.Errorf("short names must stay intact, got %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc" {
		t.Errorf("narrow truncate = %q, want abc", got)
	}
	long := "some/very/long/path/to/a/unit.yaml"
	got := truncate(long, 16)
	if !strings.HasSuffix(got, "...") || runewidth.StringWidth(got) > 16 {
		t.Errorf("truncate(%q, 16) = %q", long, got)
	}
}
