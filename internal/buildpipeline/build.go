// Package buildpipeline runs IR files through loading, code generation and
// emission, one unit at a time or many in parallel.
package buildpipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"lgen/internal/backend/llvm"
	"lgen/internal/cache"
	"lgen/internal/codegen"
	"lgen/internal/mir"
	"lgen/internal/observ"
	"lgen/internal/trace"
	"lgen/internal/version"
)

// BuildRequest configures output generation for one or more inputs.
type BuildRequest struct {
	Inputs  []string
	Options codegen.Options
	Backend Backend
	// OutDir receives <name>.ll (and <name>.o with Object); empty keeps the
	// output in memory only.
	OutDir        string
	EmitMIR       bool
	Object        bool
	PrintCommands bool
	Cache         *cache.Disk
	Jobs          int
	Progress      ProgressSink
}

// UnitResult captures the artefacts of one input.
type UnitResult struct {
	Input string
	// MIR is nil when the LLVM text came from the cache.
	MIR        *mir.Module
	LLVM       string
	OutputPath string
	ObjectPath string
	Cached     bool
	Timings    Timings
	Report     observ.Report
}

// Build compiles a single input.
func Build(ctx context.Context, req *BuildRequest, input string) (result UnitResult, err error) {
	result.Input = input
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	backend := req.Backend
	if backend == "" {
		backend = BackendLLVM
	}
	if backend != BackendVM && backend != BackendLLVM {
		err := fmt.Errorf("unsupported backend: %s (supported: vm, llvm)", backend)
		emitStage(req.Progress, input, StageCodegen, StatusError, err, 0)
		return result, err
	}

	ctx, span := trace.Start(ctx, trace.ScopeDriver, "build")
	span.WithExtra("file", input)
	defer span.End("")
	timer := observ.NewTimer()
	defer func() { result.Report = timer.Report() }()

	var key cache.Digest
	if req.Cache != nil && backend == BackendLLVM && !req.EmitMIR {
		src, err := os.ReadFile(input)
		if err == nil {
			key = cache.KeyOf(src, []byte(fingerprint(req.Options)))
			if e, ok, err := req.Cache.Get(key); err == nil && ok {
				result.LLVM = e.Output
				result.Cached = true
				trace.Point(trace.FromContext(ctx), trace.ScopePass, "cache hit", span.ID(), key.String())
				return finishUnit(req, result, timer)
			}
		}
	}

	compiled, err := Compile(ctx, &CompileRequest{Input: input, Options: req.Options, Progress: req.Progress, Timer: timer})
	result.Timings = compiled.Timings
	if err != nil {
		return result, err
	}
	result.MIR = compiled.MIR
	if req.EmitMIR && req.OutDir != "" {
		if err := writeMIRDump(mirPath(req.OutDir, input), compiled.MIR); err != nil {
			emitStage(req.Progress, input, StageEmit, StatusError, err, 0)
			return result, err
		}
	}
	if backend == BackendVM {
		emitStage(req.Progress, input, StageCodegen, StatusDone, nil, result.Timings.Duration(StageCodegen))
		return result, nil
	}

	stopEmit := timer.Start("emit")
	emitStage(req.Progress, input, StageEmit, StatusWorking, nil, 0)
	text, err := llvm.EmitModule(compiled.MIR)
	if err != nil {
		stopEmit("failed")
		err = fmt.Errorf("%s: LLVM emit failed: %w", input, err)
		emitStage(req.Progress, input, StageEmit, StatusError, err, 0)
		return result, err
	}
	result.LLVM = text
	result.Timings.Set(StageEmit, stopEmit(fmt.Sprintf("%d bytes", len(text))))
	if req.Cache != nil && !req.EmitMIR {
		entry := &cache.Entry{Source: input, Triple: req.Options.Target.Triple, Output: text, Funcs: len(compiled.MIR.Funcs)}
		if err := req.Cache.Put(key, entry); err != nil {
			span.WithExtra("cache_error", err.Error())
		}
	}
	return finishUnit(req, result, timer)
}

// finishUnit writes the LLVM text and the optional object file.
func finishUnit(req *BuildRequest, result UnitResult, timer *observ.Timer) (UnitResult, error) {
	input := result.Input
	if req.OutDir == "" {
		emitStage(req.Progress, input, StageEmit, StatusDone, nil, result.Timings.Duration(StageEmit))
		return result, nil
	}
	if err := os.MkdirAll(req.OutDir, 0o750); err != nil {
		err = fmt.Errorf("failed to create output dir: %w", err)
		emitStage(req.Progress, input, StageEmit, StatusError, err, 0)
		return result, err
	}
	result.OutputPath = filepath.Join(req.OutDir, unitName(input)+".ll")
	if err := os.WriteFile(result.OutputPath, []byte(result.LLVM), 0o600); err != nil {
		err = fmt.Errorf("failed to write LLVM IR: %w", err)
		emitStage(req.Progress, input, StageEmit, StatusError, err, 0)
		return result, err
	}
	if !req.Object {
		emitStage(req.Progress, input, StageEmit, StatusDone, nil, result.Timings.Duration(StageEmit))
		return result, nil
	}

	stopObject := timer.Start("object")
	emitStage(req.Progress, input, StageObject, StatusWorking, nil, 0)
	obj := strings.TrimSuffix(result.OutputPath, ".ll") + ".o"
	if err := compileObject(req.PrintCommands, result.OutputPath, obj); err != nil {
		stopObject("failed")
		emitStage(req.Progress, input, StageObject, StatusError, err, 0)
		return result, err
	}
	result.ObjectPath = obj
	result.Timings.Set(StageObject, stopObject(""))
	emitStage(req.Progress, input, StageObject, StatusDone, nil, result.Timings.Duration(StageObject))
	return result, nil
}

// BuildAll compiles every input of req with at most req.Jobs units in
// flight. Results keep the input order; failed units are reported together.
func BuildAll(ctx context.Context, req *BuildRequest) ([]UnitResult, error) {
	if req == nil {
		return nil, fmt.Errorf("missing build request")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	emitQueued(req.Progress, req.Inputs)
	results := make([]UnitResult, len(req.Inputs))
	errs := make([]error, len(req.Inputs))

	g, gctx := errgroup.WithContext(ctx)
	if req.Jobs > 0 {
		g.SetLimit(req.Jobs)
	}
	for i, input := range req.Inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = Build(gctx, req, input)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}

func unitName(input string) string {
	return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
}

func mirPath(outDir, input string) string {
	return filepath.Join(outDir, unitName(input)+".mir")
}

func writeMIRDump(path string, mod *mir.Module) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	var buf bytes.Buffer
	if err := mir.DumpModule(&buf, mod, mir.DumpOptions{}); err != nil {
		return fmt.Errorf("failed to dump MIR: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write MIR dump: %w", err)
	}
	return nil
}

// fingerprint covers every option that changes the emitted text.
func fingerprint(opts codegen.Options) string {
	return fmt.Sprintf("%s|%s|%d|%s|%t|%t|%s",
		version.Plain(), opts.Target.Triple, opts.Target.PtrBytes, opts.HostPrefix, opts.EmitNames, opts.CheckMIR, opts.Main)
}
