package emit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andrewscwei/minuet/internal/chunk"
	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/diag"
	"github.com/andrewscwei/minuet/internal/graph"
	"github.com/andrewscwei/minuet/internal/naming"
	"github.com/andrewscwei/minuet/internal/sourcemap"
)

// Context is everything emission needs. Base anchors the module paths
// recorded in the manifest and in source maps.
type Context struct {
	FS                billy.Filesystem
	Root              string
	Base              string
	Filename          naming.Template // entry chunks
	ChunkFilename     naming.Template // the common chunk
	SourceMapFilename naming.Template
	PublicPath        string
	Jobs              int
	MaxDiagnostics    int
}

// NewContext builds a Context from a validated configuration.
func NewContext(fsys billy.Filesystem, cfg *config.Config) Context {
	return Context{
		FS:                fsys,
		Root:              cfg.Output.Root,
		Base:              cfg.Context,
		Filename:          cfg.Output.Filename,
		ChunkFilename:     cfg.Output.ChunkFilename,
		SourceMapFilename: cfg.Output.SourceMapFilename,
		PublicPath:        cfg.Output.PublicPath,
		Jobs:              cfg.Jobs,
	}
}

// rendered is one chunk ready to be written.
type rendered struct {
	record  ChunkRecord
	content []byte
	mapData []byte
}

// Emit writes every chunk under ectx.Root and returns the manifest. Naming
// problems and path conflicts fail the whole emission before anything is
// written. Write failures are per chunk: the remaining chunks are still
// written and the error lists every *IOError.
func Emit(ctx context.Context, ectx Context, g *graph.Graph, chunks []chunk.Chunk) (*Manifest, error) {
	logger := zerolog.Ctx(ctx)
	bag := diag.NewBag(ectx.MaxDiagnostics)

	out := make([]rendered, 0, len(chunks))
	for _, c := range chunks {
		r, err := ectx.render(g, c)
		if err != nil {
			bag.AddError(diag.EmitBadTemplate, c.Name, err)
			continue
		}
		out = append(out, r)
	}
	checkConflicts(bag, out)
	if berr := diag.NewBuildError("emit", bag); berr != nil {
		return nil, berr
	}

	jobs := ectx.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	// chunk paths are disjoint, so writers need no coordination
	failures := make([]error, len(out))
	var eg errgroup.Group
	eg.SetLimit(max(1, min(jobs, len(out))))
	for i := range out {
		eg.Go(func() error {
			failures[i] = ectx.write(&out[i])
			return nil
		})
	}
	_ = eg.Wait()

	m := &Manifest{
		PublicPath: ectx.PublicPath,
		Entries:    make(map[string]ChunkRecord),
		Chunks:     make(map[string]string, len(out)),
		Records:    make([]ChunkRecord, 0, len(out)),
	}
	for i, r := range out {
		if failures[i] != nil {
			bag.Add(diag.FromError(diag.EmitWriteFailed, r.record.File, failures[i]))
			continue
		}
		logger.Debug().Str("chunk", r.record.Name).Str("file", r.record.File).Int("size", r.record.Size).Msg("chunk written")
		m.Records = append(m.Records, r.record)
		m.Chunks[r.record.Name] = r.record.File
		if r.record.Entry != "" {
			m.Entries[r.record.Entry] = r.record
		}
	}
	if berr := diag.NewBuildError("emit", bag); berr != nil {
		return nil, berr
	}
	return m, nil
}

func (ectx Context) render(g *graph.Graph, c chunk.Chunk) (rendered, error) {
	var (
		sb    strings.Builder
		lines int
		parts []sourcemap.Part
		mods  = make([]string, 0, len(c.Modules))
	)
	for _, id := range c.Modules {
		m := g.Module(id)
		if m == nil {
			return rendered{}, fmt.Errorf("chunk %s references unknown module %s", c.Name, id)
		}
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
			lines++
		}
		if m.Map != nil {
			parts = append(parts, sourcemap.Part{Line: lines, Map: m.Map})
		}
		sb.WriteString(m.Content)
		lines += strings.Count(m.Content, "\n")
		mods = append(mods, ectx.rel(id))
	}
	content := sb.String()
	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])

	tmpl := ectx.Filename
	if c.Kind == chunk.KindCommon {
		tmpl = ectx.ChunkFilename
	}
	values := naming.Values{Name: c.Name, Hash: hash, ChunkHash: hash, ID: c.Index}
	file, err := tmpl.RenderPath(values)
	if err != nil {
		return rendered{}, err
	}
	r := rendered{record: ChunkRecord{
		Name:    c.Name,
		Index:   c.Index,
		Kind:    c.Kind.String(),
		Entry:   c.Entry,
		File:    file,
		Hash:    hash,
		Modules: mods,
	}}

	if len(parts) > 0 {
		mapFile, err := ectx.SourceMapFilename.RenderPath(values)
		if err != nil {
			return rendered{}, err
		}
		merged, err := sourcemap.Concat(filepath.Base(file), parts)
		if err != nil {
			return rendered{}, err
		}
		mapDir := filepath.Dir(filepath.Join(ectx.Root, filepath.FromSlash(mapFile)))
		for i, s := range merged.Sources {
			merged.Sources[i] = relSlash(mapDir, filepath.FromSlash(s))
		}
		if r.mapData, err = merged.Marshal(); err != nil {
			return rendered{}, err
		}
		url := relSlash(filepath.Dir(filepath.Join(ectx.Root, filepath.FromSlash(file))), filepath.Join(ectx.Root, filepath.FromSlash(mapFile)))
		if !strings.HasSuffix(content, "\n") && content != "" {
			content += "\n"
		}
		if strings.EqualFold(filepath.Ext(file), ".css") {
			content += "/*# sourceMappingURL=" + url + " */\n"
		} else {
			content += "//# sourceMappingURL=" + url + "\n"
		}
		r.record.MapFile = mapFile
	}
	r.content = []byte(content)
	r.record.Size = len(r.content)
	return r, nil
}

// write lands the map before the content so a chunk never points at a map
// that is missing. A failed content write takes the map back out.
func (ectx Context) write(r *rendered) error {
	path := filepath.Join(ectx.Root, filepath.FromSlash(r.record.File))
	var mapPath string
	if r.mapData != nil {
		mapPath = filepath.Join(ectx.Root, filepath.FromSlash(r.record.MapFile))
		if err := WriteFile(ectx.FS, mapPath, r.mapData); err != nil {
			return &IOError{Chunk: r.record.Name, Path: mapPath, Err: err}
		}
	}
	if err := WriteFile(ectx.FS, path, r.content); err != nil {
		if mapPath != "" {
			if rmErr := ectx.FS.Remove(mapPath); rmErr != nil && !os.IsNotExist(rmErr) {
				err = fmt.Errorf("%w (removing %s failed: %v)", err, mapPath, rmErr)
			}
		}
		return &IOError{Chunk: r.record.Name, Path: path, Err: err}
	}
	return nil
}

// checkConflicts reports output paths claimed by more than one file.
func checkConflicts(bag *diag.Bag, out []rendered) {
	owner := make(map[string]string, len(out)*2)
	claim := func(path, by string) {
		if prev, ok := owner[path]; ok {
			bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.EmitPathConflict,
				Path:     path,
				Message:  fmt.Sprintf("%s and %s render to the same output path", prev, by),
			})
			return
		}
		owner[path] = by
	}
	for _, r := range out {
		claim(r.record.File, "chunk "+r.record.Name)
		if r.mapData != nil {
			claim(r.record.MapFile, "source map of "+r.record.Name)
		}
	}
}

func (ectx Context) rel(id string) string {
	if ectx.Base == "" {
		return filepath.ToSlash(id)
	}
	return relSlash(ectx.Base, id)
}

func relSlash(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}
