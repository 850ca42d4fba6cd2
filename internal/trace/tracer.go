package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Tracer receives trace events. Implementations are safe for concurrent use.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

type nopTracer struct{}

func (nopTracer) Emit(*Event)   {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Close() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop discards everything.
var Nop Tracer = nopTracer{}

// StorageMode selects where a Recorder keeps events.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // write each event as it happens
	ModeRing                          // keep the most recent events in memory
	ModeBoth
)

var modeNames = map[StorageMode]string{ModeStream: "stream", ModeRing: "ring", ModeBoth: "both"}

func (m StorageMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseMode accepts stream, ring or both.
func ParseMode(s string) (StorageMode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return ModeRing, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
}

// Config describes a Recorder.
type Config struct {
	Level  Level
	Mode   StorageMode
	Format Format // FormatAuto picks NDJSON for .json/.ndjson paths
	// Output wins over OutputPath. "-" and "" both mean stderr.
	Output     io.Writer
	OutputPath string
	RingSize   int
	Heartbeat  time.Duration
}

const defaultRingSize = 4096

// New builds the tracer described by cfg; LevelOff yields Nop. LevelError
// never streams, so it implies a ring.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if cfg.Level == LevelError && cfg.Mode == ModeStream {
		cfg.Mode = ModeRing
	}
	r := &Recorder{level: cfg.Level, format: cfg.Format, start: time.Now()}
	if r.format == FormatAuto {
		r.format = FormatText
		if strings.HasSuffix(cfg.OutputPath, ".ndjson") || strings.HasSuffix(cfg.OutputPath, ".json") {
			r.format = FormatNDJSON
		}
	}
	switch cfg.Mode {
	case ModeStream, ModeBoth:
		w, closer, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		r.w, r.closer = w, closer
	case ModeRing:
	default:
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}
	if cfg.Mode == ModeRing || cfg.Mode == ModeBoth {
		size := cfg.RingSize
		if size <= 0 {
			size = defaultRingSize
		}
		r.ring = make([]Event, size)
	}
	return r, nil
}

func openOutput(cfg Config) (io.Writer, io.Closer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return os.Stderr, nil, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, f, nil
}

// Recorder streams events to a writer, keeps the latest ones in a ring, or
// both.
type Recorder struct {
	level  Level
	format Format
	start  time.Time

	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	ring   []Event
	head   int
	full   bool
}

// NewStream returns a Recorder writing to w.
func NewStream(w io.Writer, level Level, format Format) *Recorder {
	return &Recorder{level: level, format: format, start: time.Now(), w: w}
}

// NewRing returns a Recorder that keeps the last size events.
func NewRing(size int, level Level) *Recorder {
	if size <= 0 {
		size = defaultRingSize
	}
	return &Recorder{level: level, format: FormatText, start: time.Now(), ring: make([]Event, size)}
}

func (r *Recorder) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !r.level.ShouldEmit(ev.Scope) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Seq == 0 {
		ev.Seq = NextSeq()
	}
	if r.w != nil && r.level != LevelError {
		// Trace output never fails a build.
		_, _ = r.w.Write(r.encode(ev))
	}
	if r.ring != nil {
		r.ring[r.head] = *ev
		r.head = (r.head + 1) % len(r.ring)
		if r.head == 0 {
			r.full = true
		}
	}
}

func (r *Recorder) encode(ev *Event) []byte {
	return FormatEvent(ev, r.format, r.start)
}

// Snapshot returns the ring contents, oldest first.
func (r *Recorder) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Event(nil), r.ring[:r.head]...)
	}
	out := make([]Event, 0, len(r.ring))
	out = append(out, r.ring[r.head:]...)
	return append(out, r.ring[:r.head]...)
}

// Dump writes the ring contents to w.
func (r *Recorder) Dump(w io.Writer) error {
	for _, ev := range r.Snapshot() {
		if _, err := w.Write(r.encode(&ev)); err != nil {
			return err
		}
	}
	return nil
}

// HasRing reports whether r keeps events in memory.
func (r *Recorder) HasRing() bool { return r.ring != nil }

func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (r *Recorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer, r.w = nil, nil
	return err
}

func (r *Recorder) Level() Level  { return r.level }
func (r *Recorder) Enabled() bool { return r.level > LevelOff }

// DumpRing writes the in-memory events of t, if it keeps any, to w. It is
// meant for failure paths.
func DumpRing(t Tracer, w io.Writer) error {
	r, ok := t.(*Recorder)
	if !ok || !r.HasRing() {
		return nil
	}
	return r.Dump(w)
}
