package buildpipeline

import (
	"context"
	"fmt"
	"os"

	"lgen/internal/codegen"
	"lgen/internal/irfile"
	"lgen/internal/mir"
	"lgen/internal/mono"
	"lgen/internal/observ"
	"lgen/internal/trace"
)

// CompileRequest configures loading and code generation of one IR file.
type CompileRequest struct {
	Input    string
	Options  codegen.Options
	Progress ProgressSink
	// Timer receives the load and codegen phases; nil uses a private one.
	Timer *observ.Timer
}

// CompileResult captures the loaded program, its MIR and stage timings.
type CompileResult struct {
	Source  []byte
	Program *mono.Program
	MIR     *mir.Module
	Timings Timings
	Report  observ.Report
}

// Compile loads req.Input and generates MIR for it.
func Compile(ctx context.Context, req *CompileRequest) (result CompileResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing compile request")
	}
	if req.Input == "" {
		return result, fmt.Errorf("missing input path")
	}
	timer := req.Timer
	if timer == nil {
		timer = observ.NewTimer()
	}
	defer func() { result.Report = timer.Report() }()

	src, prog, err := load(ctx, req, timer, &result.Timings)
	if err != nil {
		return result, err
	}
	result.Source = src
	result.Program = prog

	mod, err := generate(ctx, req, prog, timer, &result.Timings)
	if err != nil {
		return result, err
	}
	result.MIR = mod
	return result, nil
}

func load(ctx context.Context, req *CompileRequest, timer *observ.Timer, timings *Timings) ([]byte, *mono.Program, error) {
	_, span := trace.Start(ctx, trace.ScopePass, "load")
	span.WithExtra("file", req.Input)
	stop := timer.Start("load")
	emitStage(req.Progress, req.Input, StageLoad, StatusWorking, nil, 0)

	fail := func(err error) ([]byte, *mono.Program, error) {
		stop("failed")
		span.End(err.Error())
		emitStage(req.Progress, req.Input, StageLoad, StatusError, err, 0)
		return nil, nil, err
	}
	format, err := irfile.FormatOf(req.Input)
	if err != nil {
		return fail(err)
	}
	// #nosec G304 -- input path comes from the command line
	src, err := os.ReadFile(req.Input)
	if err != nil {
		return fail(fmt.Errorf("failed to read %s: %w", req.Input, err))
	}
	prog, err := irfile.Unmarshal(src, format)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", req.Input, err))
	}
	timings.Set(StageLoad, stop(format.String()))
	span.WithExtra("procs", fmt.Sprint(len(prog.Procs))).End("")
	return src, prog, nil
}

func generate(ctx context.Context, req *CompileRequest, prog *mono.Program, timer *observ.Timer, timings *Timings) (*mir.Module, error) {
	stop := timer.Start("codegen")
	emitStage(req.Progress, req.Input, StageCodegen, StatusWorking, nil, 0)

	if err := mono.Check(prog); err != nil {
		stop("invalid program")
		err = fmt.Errorf("%s: %w", req.Input, err)
		emitStage(req.Progress, req.Input, StageCodegen, StatusError, err, 0)
		return nil, err
	}
	mod, err := codegen.Generate(ctx, prog, req.Options)
	if err != nil {
		stop("failed")
		err = fmt.Errorf("%s: %w", req.Input, err)
		emitStage(req.Progress, req.Input, StageCodegen, StatusError, err, 0)
		return nil, err
	}
	timings.Set(StageCodegen, stop(fmt.Sprintf("%d funcs", len(mod.Funcs))))
	return mod, nil
}
