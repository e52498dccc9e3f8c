package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"

	"github.com/andrewscwei/minuet/internal/auxemit"
	"github.com/andrewscwei/minuet/internal/chunk"
	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/diag"
	"github.com/andrewscwei/minuet/internal/emit"
	"github.com/andrewscwei/minuet/internal/graph"
	"github.com/andrewscwei/minuet/internal/loader"
	"github.com/andrewscwei/minuet/internal/resolve"
)

// Request describes a single build.
type Request struct {
	Config   *config.Config
	FS       billy.Filesystem
	Progress ProgressSink

	// WriteManifest writes Config.Output.Manifest when the config names one.
	WriteManifest  bool
	MaxDiagnostics int
}

// Result is whatever the build produced before it stopped. Graph, Chunks and
// Manifest are nil past the failing stage.
type Result struct {
	Graph        *graph.Graph
	Chunks       []chunk.Chunk
	Manifest     *emit.Manifest
	ManifestPath string
	Timings      Timings
}

// Build runs resolve, load, partition, emit and auxiliary in order. Every
// module is loaded before the first byte is written.
func Build(ctx context.Context, req *Request) (Result, error) {
	var result Result
	if req == nil || req.Config == nil {
		return result, errors.New("buildpipeline: missing config")
	}
	if req.FS == nil {
		return result, errors.New("buildpipeline: missing filesystem")
	}
	cfg := req.Config
	sink := req.Progress
	logger := zerolog.Ctx(ctx)

	// resolve
	start := time.Now()
	emitStage(sink, StageResolve, StatusWorking, nil, 0)
	res := resolve.New(req.FS, cfg.Resolve)
	rules, err := loader.NewRules(cfg.Rules, loader.Env{FS: req.FS})
	if err != nil {
		return result, stageFailed(&result, sink, StageResolve, start, single("resolve", diag.LdrBadOptions, "", err))
	}
	for _, e := range cfg.Entries {
		// failures are reported again by the graph builder together with
		// everything else that went wrong
		id, rerr := res.Resolve(e.Specifier, cfg.Context)
		if rerr != nil {
			emitFile(sink, Event{File: e.Specifier, Stage: StageResolve, Status: StatusError, Err: rerr})
			continue
		}
		emitFile(sink, Event{File: displayPath(cfg.Context, id), Stage: StageResolve, Status: StatusQueued})
	}
	stageDone(&result, sink, StageResolve, start)

	// load
	start = time.Now()
	emitStage(sink, StageLoad, StatusWorking, nil, 0)
	b := &graph.Builder{
		FS:             req.FS,
		Resolver:       res,
		Rules:          rules,
		Jobs:           cfg.Jobs,
		MaxDiagnostics: req.MaxDiagnostics,
		Observe: func(ev graph.Event) {
			status := StatusDone
			if ev.Failed {
				status = StatusError
			}
			emitFile(sink, Event{
				File:   displayPath(cfg.Context, ev.ID),
				Stage:  StageLoad,
				Status: status,
				Done:   ev.Done,
				Total:  ev.Queued,
			})
		},
	}
	g, err := b.Build(ctx, cfg.Entries, cfg.Context)
	if err != nil {
		return result, stageFailed(&result, sink, StageLoad, start, err)
	}
	result.Graph = g
	stageDone(&result, sink, StageLoad, start)
	logger.Debug().Int("modules", g.Len()).Dur("elapsed", result.Timings.Duration(StageLoad)).Msg("graph built")

	// partition
	start = time.Now()
	emitStage(sink, StagePartition, StatusWorking, nil, 0)
	result.Chunks = chunk.Partition(g)
	stageDone(&result, sink, StagePartition, start)

	// emit
	start = time.Now()
	emitStage(sink, StageEmit, StatusWorking, nil, 0)
	ectx := emit.NewContext(req.FS, cfg)
	ectx.MaxDiagnostics = req.MaxDiagnostics
	m, err := emit.Emit(ctx, ectx, g, result.Chunks)
	if err != nil {
		return result, stageFailed(&result, sink, StageEmit, start, err)
	}
	result.Manifest = m
	for _, rec := range m.Records {
		emitFile(sink, Event{File: rec.File, Stage: StageEmit, Status: StatusDone})
	}
	if req.WriteManifest && cfg.Output.Manifest != "" {
		path := filepath.Join(cfg.Output.Root, cfg.Output.Manifest)
		if err := emit.WriteManifest(req.FS, path, m, cfg.Output.ManifestFormat); err != nil {
			return result, stageFailed(&result, sink, StageEmit, start, single("emit", diag.EmitWriteFailed, path, err))
		}
		result.ManifestPath = path
	}
	stageDone(&result, sink, StageEmit, start)

	// auxiliary
	if aux := cfg.Auxiliary; aux != nil {
		start = time.Now()
		emitStage(sink, StageAuxiliary, StatusWorking, nil, 0)
		if err := auxemit.Emit(ctx, req.FS, m, aux); err != nil {
			code := diag.EmitAuxiliaryFail
			var terr *auxemit.TemplateError
			if errors.As(err, &terr) {
				code = diag.EmitBadTemplate
			}
			return result, stageFailed(&result, sink, StageAuxiliary, start, single("auxiliary", code, aux.OutputPath, err))
		}
		emitFile(sink, Event{File: displayPath(cfg.Output.Root, aux.OutputPath), Stage: StageAuxiliary, Status: StatusDone})
		stageDone(&result, sink, StageAuxiliary, start)
	}

	logger.Info().
		Int("modules", g.Len()).
		Int("chunks", len(result.Chunks)).
		Dur("elapsed", result.Timings.Total()).
		Msg("build finished")
	return result, nil
}

func single(phase string, code diag.Code, path string, err error) error {
	bag := diag.NewBag(1)
	bag.Add(diag.FromError(code, path, err))
	return diag.NewBuildError(phase, bag)
}

func stageDone(result *Result, sink ProgressSink, stage Stage, start time.Time) {
	elapsed := time.Since(start)
	result.Timings.Set(stage, elapsed)
	emitStage(sink, stage, StatusDone, nil, elapsed)
}

func stageFailed(result *Result, sink ProgressSink, stage Stage, start time.Time, err error) error {
	elapsed := time.Since(start)
	result.Timings.Set(stage, elapsed)
	emitStage(sink, stage, StatusError, err, elapsed)
	return fmt.Errorf("%s: %w", stage, err)
}

func emitStage(sink ProgressSink, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

func emitFile(sink ProgressSink, ev Event) {
	if sink == nil {
		return
	}
	sink.OnEvent(ev)
}

// displayPath shortens id for progress output. Paths outside base stay as is.
func displayPath(base, id string) string {
	rel, err := filepath.Rel(base, id)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return id
	}
	return filepath.ToSlash(rel)
}
