// Package trace records spans of lgen's work: loading, code generation, LLVM
// emission and VM execution, down to single procedures at debug level.
//
// A Recorder either streams events (text or NDJSON), keeps the most recent
// ones in a ring for dumping when a command fails, or both. Nop stands in
// when tracing is off.
//
//	lgen build --trace=- --trace-level=detail prog.yaml
//	lgen build --trace-level=error prog.yaml   # ring only, dumped on failure
//
// Spans nest through the context:
//
//	ctx, span := trace.Start(ctx, trace.ScopePass, "codegen")
//	defer span.End("")
package trace
