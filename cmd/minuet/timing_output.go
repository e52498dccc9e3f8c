package main

import (
	"fmt"
	"io"
	"time"

	"github.com/andrewscwei/minuet/internal/buildpipeline"
)

var stageVerbs = map[buildpipeline.Stage]string{
	buildpipeline.StageResolve:   "resolved",
	buildpipeline.StageLoad:      "loaded",
	buildpipeline.StagePartition: "partitioned",
	buildpipeline.StageEmit:      "emitted",
	buildpipeline.StageAuxiliary: "rendered",
}

func printStageTimings(out io.Writer, timings buildpipeline.Timings) error {
	if out == nil {
		return nil
	}
	for _, stage := range buildpipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s %.1f ms\n", stageVerbs[stage], toMillis(timings.Duration(stage))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "total %.1f ms\n", toMillis(timings.Total()))
	return err
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
