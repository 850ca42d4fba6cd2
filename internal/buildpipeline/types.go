package buildpipeline

import "time"

// Stage is one step a unit goes through, in order.
type Stage string

const (
	StageLoad    Stage = "load"    // read and decode the IR file
	StageCodegen Stage = "codegen" // lower to MIR
	StageEmit    Stage = "emit"    // print LLVM IR
	StageObject  Stage = "object"  // compile LLVM IR with clang or llc
	StageRun     Stage = "run"     // execute on the VM
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageLoad, StageCodegen, StageEmit, StageObject, StageRun}

func (s Stage) index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Progress estimates how far along a unit working on s is, in [0, 1).
func (s Stage) Progress() float64 {
	switch s {
	case StageLoad:
		return 0.1
	case StageCodegen:
		return 0.4
	case StageEmit:
		return 0.8
	case StageObject:
		return 0.9
	case StageRun:
		return 0.95
	default:
		return 0
	}
}

// Status is the state of a unit within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Finished reports whether no further events follow for the unit.
func (s Status) Finished() bool { return s == StatusDone || s == StatusError }

// Event reports progress for one input file, or for the whole build when
// File is empty.
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// Backend selects what happens after codegen.
type Backend string

const (
	// BackendVM stops after codegen and keeps the MIR module for the VM.
	BackendVM Backend = "vm"
	// BackendLLVM prints the module as LLVM IR.
	BackendLLVM Backend = "llvm"
)

// Timings holds the duration of each stage a unit went through.
type Timings struct {
	d   [5]time.Duration
	set uint8
}

// Set records dur for stage; unknown stages are ignored.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	i := stage.index()
	if t == nil || i < 0 {
		return
	}
	t.d[i] = dur
	t.set |= 1 << i
}

func (t Timings) Has(stage Stage) bool {
	i := stage.index()
	return i >= 0 && t.set&(1<<i) != 0
}

func (t Timings) Duration(stage Stage) time.Duration {
	if !t.Has(stage) {
		return 0
	}
	return t.d[stage.index()]
}

// Sum adds the durations of stages; with no arguments it adds all of them.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if len(stages) == 0 {
		stages = Stages
	}
	var total time.Duration
	for _, s := range stages {
		total += t.Duration(s)
	}
	return total
}
