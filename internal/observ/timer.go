// Package observ times the phases of a build and renders the result.
package observ

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Timer records named phases in the order they start. It is safe for
// concurrent use.
type Timer struct {
	mu     sync.Mutex
	phases []phase
}

type phase struct {
	name  string
	start time.Time
	dur   time.Duration
	note  string
	open  bool
}

// NewTimer creates an empty Timer.
func NewTimer() *Timer { return &Timer{} }

// Start opens a phase. The returned stop closes it with note and returns its
// duration; only the first call counts.
func (t *Timer) Start(name string) (stop func(note string) time.Duration) {
	t.mu.Lock()
	idx := len(t.phases)
	t.phases = append(t.phases, phase{name: name, start: time.Now(), open: true})
	t.mu.Unlock()

	return func(note string) time.Duration {
		t.mu.Lock()
		defer t.mu.Unlock()
		p := &t.phases[idx]
		if p.open {
			p.dur = time.Since(p.start)
			p.note = note
			p.open = false
		}
		return p.dur
	}
}

// Report snapshots the closed phases. Open phases are left out.
func (t *Timer) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	var r Report
	for _, p := range t.phases {
		if p.open {
			continue
		}
		r.Phases = append(r.Phases, PhaseReport{Name: p.name, DurationMS: millis(p.dur), Note: p.note})
		r.TotalMS += millis(p.dur)
	}
	return r
}

// PhaseReport is one timed phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report lists phases with their durations in milliseconds.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Merge appends the phases of other as "prefix:name".
func (r *Report) Merge(prefix string, other Report) {
	for _, p := range other.Phases {
		if prefix != "" {
			p.Name = prefix + ":" + p.Name
		}
		r.Phases = append(r.Phases, p)
	}
	r.TotalMS += other.TotalMS
}

// Summary renders the report as an aligned table.
func (r Report) Summary() string {
	var b strings.Builder
	_ = r.Fprint(&b)
	return b.String()
}

// Fprint writes the Summary table to w.
func (r Report) Fprint(w io.Writer) error {
	width := len("total")
	for _, p := range r.Phases {
		width = max(width, len(p.Name))
	}
	if _, err := fmt.Fprintln(w, "timings:"); err != nil {
		return err
	}
	for _, p := range r.Phases {
		line := fmt.Sprintf("  %-*s %8.2f ms", width, p.Name, p.DurationMS)
		if p.Note != "" {
			line += "  // " + p.Note
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "  %-*s %8.2f ms\n", width, "total", r.TotalMS)
	return err
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
