package graph

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"fortio.org/safecast"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/diag"
	"github.com/andrewscwei/minuet/internal/loader"
	"github.com/andrewscwei/minuet/internal/resolve"
)

// Resolver maps a specifier imported from fromDir to a module id.
type Resolver interface {
	Resolve(specifier, fromDir string) (string, error)
}

// Selector picks the loader chain for a module.
type Selector interface {
	Select(path string) ([]loader.Loader, error)
}

// Event reports one finished module to an observer.
type Event struct {
	ID     ModuleID
	Failed bool
	Done   int // modules finished so far
	Queued int // modules discovered so far
}

// Builder builds graphs. The zero Jobs value means GOMAXPROCS.
type Builder struct {
	FS             billy.Filesystem
	Resolver       Resolver
	Rules          Selector
	Jobs           int
	MaxDiagnostics int
	Observe        func(Event)
}

// Build resolves entries against fromDir and loads everything they reach.
// Resolution, read and loader failures are collected; if any occurred the
// error is a *diag.BuildError listing all of them.
func Build(ctx context.Context, cfg *config.Config, fsys billy.Filesystem, res Resolver, rules Selector) (*Graph, error) {
	b := &Builder{FS: fsys, Resolver: res, Rules: rules, Jobs: cfg.Jobs}
	return b.Build(ctx, cfg.Entries, cfg.Context)
}

// loaded is the outcome of one module task. Indices into a wave are unique
// per goroutine, so no lock guards the slice.
type loaded struct {
	module  *Module
	claimed []ModuleID // newly discovered ids this task owns the loading of
	diags   []diag.Diagnostic
}

func (b *Builder) Build(ctx context.Context, entries []config.Entry, fromDir string) (*Graph, error) {
	logger := zerolog.Ctx(ctx)
	bag := diag.NewBag(b.MaxDiagnostics)
	jobs := b.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	sorted := append([]config.Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var visited sync.Map
	entryIDs := make(map[string]ModuleID, len(sorted))
	var frontier []ModuleID
	for _, e := range sorted {
		id, err := b.Resolver.Resolve(e.Specifier, fromDir)
		if err != nil {
			bag.AddError(resolveCode(err, diag.ResEntryMissing), e.Name, err)
			continue
		}
		entryIDs[e.Name] = id
		if _, seen := visited.LoadOrStore(id, struct{}{}); !seen {
			frontier = append(frontier, id)
		}
	}

	modules := make(map[ModuleID]*Module)
	done, queued := 0, len(frontier)
	for wave := 0; len(frontier) > 0; wave++ {
		results := make([]loaded, len(frontier))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(jobs, len(frontier)))
		for i, id := range frontier {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = b.load(gctx, id, &visited)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("build graph: %w", err)
		}

		var next []ModuleID
		for i, r := range results {
			for _, d := range r.diags {
				bag.Add(d)
			}
			if r.module != nil {
				modules[r.module.ID] = r.module
			}
			next = append(next, r.claimed...)
			done++
			queued += len(r.claimed)
			if b.Observe != nil {
				b.Observe(Event{ID: frontier[i], Failed: r.module == nil, Done: done, Queued: queued})
			}
		}
		logger.Debug().Int("wave", wave).Int("modules", len(frontier)).Int("discovered", len(next)).Msg("graph wave done")
		frontier = next
	}

	if berr := diag.NewBuildError("graph", bag); berr != nil {
		return nil, berr
	}
	g := &Graph{Modules: modules, Entries: entryIDs}
	if err := g.finish(sorted); err != nil {
		return nil, err
	}
	return g, nil
}

// load reads, transforms and resolves the references of one module.
func (b *Builder) load(ctx context.Context, id ModuleID, visited *sync.Map) loaded {
	var out loaded
	raw, err := util.ReadFile(b.FS, id)
	if err != nil {
		out.diags = append(out.diags, diag.FromError(diag.ResReadFailed, id, fmt.Errorf("read %s: %w", id, err)))
		return out
	}
	chain, err := b.Rules.Select(id)
	if err != nil {
		out.diags = append(out.diags, diag.FromError(diag.LdrNoLoader, id, err))
		return out
	}
	res, err := loader.Run(ctx, chain, string(raw), id)
	if err != nil {
		code := diag.LdrFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			code = diag.LdrCancelled
		}
		out.diags = append(out.diags, diag.FromError(code, id, err))
		return out
	}

	m := &Module{ID: id, Raw: string(raw), Content: res.Content, Map: res.Map}
	fromDir := filepath.Dir(id)
	seenDep := make(map[ModuleID]struct{}, len(res.References))
	for _, ref := range res.References {
		dep, err := b.Resolver.Resolve(ref, fromDir)
		if err != nil {
			out.diags = append(out.diags, diag.FromError(resolveCode(err, diag.ResNotFound), id, err))
			continue
		}
		if _, dup := seenDep[dep]; dup {
			continue
		}
		seenDep[dep] = struct{}{}
		m.Deps = append(m.Deps, dep)
		// check-and-insert: only the first discoverer schedules the load
		if _, seen := visited.LoadOrStore(dep, struct{}{}); !seen {
			out.claimed = append(out.claimed, dep)
		}
	}
	out.module = m
	return out
}

func resolveCode(err error, notFound diag.Code) diag.Code {
	var rerr *resolve.ResolutionError
	if errors.As(err, &rerr) {
		return notFound
	}
	return diag.ResReadFailed
}

// finish computes first-discovery order and entry owners by walking the
// graph breadth-first from the sorted entries. The result depends only on
// module contents, not on how loading was scheduled.
func (g *Graph) finish(entries []config.Entry) error {
	seen := make(map[ModuleID]struct{}, len(g.Modules))
	var queue []ModuleID
	for _, e := range entries {
		id, ok := g.Entries[e.Name]
		if !ok {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		m := g.Modules[id]
		idx, err := safecast.Conv[uint32](len(g.Order))
		if err != nil {
			return fmt.Errorf("too many modules: %w", err)
		}
		m.Index = idx
		g.Order = append(g.Order, id)
		for _, dep := range m.Deps {
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}

	for _, e := range entries {
		root, ok := g.Entries[e.Name]
		if !ok {
			continue
		}
		reached := map[ModuleID]struct{}{root: {}}
		stack := []ModuleID{root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			m := g.Modules[id]
			m.Owners = append(m.Owners, e.Name)
			for _, dep := range m.Deps {
				if _, dup := reached[dep]; !dup {
					reached[dep] = struct{}{}
					stack = append(stack, dep)
				}
			}
		}
	}
	// owners were appended in sorted entry order already
	return nil
}
