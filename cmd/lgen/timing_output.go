package main

import (
	"fmt"
	"io"
	"time"

	"lgen/internal/buildpipeline"
)

var timedStages = []struct {
	stage buildpipeline.Stage
	verb  string
}{
	{buildpipeline.StageLoad, "loaded"},
	{buildpipeline.StageCodegen, "generated"},
	{buildpipeline.StageEmit, "emitted"},
	{buildpipeline.StageObject, "compiled"},
	{buildpipeline.StageRun, "ran"},
}

func printStageTimings(out io.Writer, file string, timings buildpipeline.Timings) {
	if out == nil {
		return
	}
	for _, ts := range timedStages {
		if !timings.Has(ts.stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s: %s %.1f ms\n", file, ts.verb, toMillis(timings.Duration(ts.stage))); err != nil {
			panic(err)
		}
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
