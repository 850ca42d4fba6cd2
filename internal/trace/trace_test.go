package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLevelScopes(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeUnit, true},
		{LevelError, ScopeProc, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeUnit, false},
		{LevelDetail, ScopeUnit, true},
		{LevelDetail, ScopeProc, false},
		{LevelDebug, ScopeProc, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestParseNames(t *testing.T) {
	if l, err := ParseLevel("DETAIL"); err != nil || l != LevelDetail {
		t.Errorf("ParseLevel(DETAIL) = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil || !strings.Contains(err.Error(), "off|error|phase|detail|debug") {
		t.Errorf("ParseLevel(loud) error = %v", err)
	}
	if m, err := ParseMode("Both"); err != nil || m != ModeBoth {
		t.Errorf("ParseMode(Both) = %v, %v", m, err)
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Error("ParseMode(disk) should fail")
	}
}

func TestStreamWritesNestedSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithTracer(context.Background(), NewStream(&buf, LevelDetail, FormatText))

	ctx, pass := Start(ctx, ScopePass, "codegen")
	unitCtx, unit := Start(ctx, ScopeUnit, "bodies")
	_, proc := Start(unitCtx, ScopeProc, "fib_1")
	if proc.ID() != 0 {
		t.Fatalf("proc span recorded at detail level")
	}
	if CurrentSpan(unitCtx).SpanID != unit.ID() {
		t.Fatalf("Start did not make the unit span current")
	}
	proc.End("")
	unit.WithExtra("funcs", "3").End("")
	pass.End("")
	pass.End("twice")

	out := buf.String()
	for _, want := range []string{"-> pass codegen", "<- unit bodies", "{funcs=3}"} {
		if !strings.Contains(out, want) {
			t.Errorf("trace output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "fib_1") || strings.Contains(out, "twice") {
		t.Errorf("unexpected events:\n%s", out)
	}
	if got := strings.Count(out, "\n"); got != 4 {
		t.Errorf("wrote %d events, want 4", got)
	}
}

func TestRingKeepsLastEvents(t *testing.T) {
	r := NewRing(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(r, ScopePass, name, 0, "")
	}
	events := r.Snapshot()
	if len(events) != 2 || events[0].Name != "b" || events[1].Name != "c" {
		t.Fatalf("snapshot = %+v, want b, c", events)
	}
	var buf bytes.Buffer
	if err := DumpRing(r, &buf); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Errorf("dump wrote %d lines, want 2", got)
	}
	if err := DumpRing(Nop, &buf); err != nil {
		t.Fatal(err)
	}
}

func TestErrorLevelOnlyRemembers(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelError, Mode: ModeStream, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	Begin(tr, ScopePass, "load", 0).End("")
	if buf.Len() != 0 {
		t.Fatalf("error level streamed:\n%s", buf.String())
	}
	var dump bytes.Buffer
	if err := DumpRing(tr, &dump); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dump.String(), "pass load") {
		t.Fatalf("ring dump:\n%s", dump.String())
	}
}

func TestNDJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewStream(&buf, LevelPhase, FormatNDJSON)
	Begin(r, ScopePass, "emit", 0).WithExtra("bytes", "120").End("ok")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	var ev jsonEvent
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != "end" || ev.Name != "emit" || ev.Detail != "ok" || ev.Extra["bytes"] != "120" {
		t.Errorf("event = %+v", ev)
	}
}

func TestHeartbeat(t *testing.T) {
	r := NewRing(16, LevelPhase)
	h := StartHeartbeat(r, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	h.Stop()
	h.Stop()
	events := r.Snapshot()
	if len(events) == 0 || events[0].Kind != KindHeartbeat || events[0].Extra["open_spans"] == "" {
		t.Fatalf("events = %+v", events)
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Error("heartbeat on a disabled tracer")
	}
}

func TestFromContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()).Enabled() {
		t.Fatal("tracer without configuration is enabled")
	}
	if s := Begin(Nop, ScopePass, "x", 0); s.ID() != 0 || s.End("") != 0 {
		t.Fatalf("nop span is live")
	}
}
