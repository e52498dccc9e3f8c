package emit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/andrewscwei/minuet/internal/chunk"
	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/diag"
	"github.com/andrewscwei/minuet/internal/graph"
	"github.com/andrewscwei/minuet/internal/naming"
	"github.com/andrewscwei/minuet/internal/sourcemap"
)

func testContext(fs billy.Filesystem) Context {
	return Context{
		FS:                fs,
		Root:              "/public",
		Base:              "/app",
		Filename:          naming.MustParse(config.DefaultFilename),
		ChunkFilename:     naming.MustParse(config.DefaultChunkFilename),
		SourceMapFilename: naming.MustParse(config.DefaultSourceMapFilename),
		Jobs:              2,
	}
}

// buildGraph creates modules in the given order; owners maps id -> entries.
func buildGraph(entries map[string]string, mods []*graph.Module) *graph.Graph {
	g := &graph.Graph{Modules: make(map[string]*graph.Module), Entries: entries}
	for i, m := range mods {
		m.Index = uint32(i)
		g.Modules[m.ID] = m
		g.Order = append(g.Order, m.ID)
	}
	return g
}

func readFile(t *testing.T, fs billy.Filesystem, name string) string {
	t.Helper()
	data, err := util.ReadFile(fs, name)
	require.NoError(t, err)
	return string(data)
}

func listFiles(t *testing.T, fs billy.Filesystem, dir string) []string {
	t.Helper()
	infos, err := fs.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

func TestEmitSingleEntry(t *testing.T) {
	raw := "console.log('index');"
	g := buildGraph(map[string]string{"main": "/app/index.js"}, []*graph.Module{
		{ID: "/app/index.js", Raw: raw, Content: raw, Owners: []string{"main"}},
	})
	fs := memfs.New()
	m, err := Emit(context.Background(), testContext(fs), g, chunk.Partition(g))
	require.NoError(t, err)

	require.Equal(t, raw, readFile(t, fs, "/public/main.js"))
	file, ok := m.EntryFile("main")
	require.True(t, ok)
	require.Equal(t, "main.js", file)
	require.Equal(t, map[string]string{"main": "main.js"}, m.Chunks)
	require.Len(t, m.Records, 1)
	sum := sha256.Sum256([]byte(raw))
	require.Equal(t, hex.EncodeToString(sum[:]), m.Records[0].Hash)
	require.Equal(t, []string{"index.js"}, m.Records[0].Modules)
	require.Equal(t, []string{"main.js"}, listFiles(t, fs, "/public"))
}

func sharedGraph() *graph.Graph {
	return buildGraph(map[string]string{"about": "/app/about.js", "home": "/app/home.js"}, []*graph.Module{
		{ID: "/app/about.js", Content: "about();", Owners: []string{"about"}},
		{ID: "/app/home.js", Content: "home();\n", Owners: []string{"home"}},
		{ID: "/app/shared.js", Content: "shared();", Owners: []string{"about", "home"}},
		{ID: "/app/vendor.js", Content: "vendor();\n", Owners: []string{"about", "home"}},
	})
}

func TestEmitCommonChunk(t *testing.T) {
	g := sharedGraph()
	fs := memfs.New()
	m, err := Emit(context.Background(), testContext(fs), g, chunk.Partition(g))
	require.NoError(t, err)

	require.Len(t, m.Records, 3)
	common := m.Records[0]
	require.Equal(t, "common", common.Name)
	require.Equal(t, common.Hash+".js", common.File)

	content := readFile(t, fs, "/public/"+common.File)
	require.Equal(t, "shared();\nvendor();\n", content)
	require.Equal(t, 1, strings.Count(content, "shared();"))
	require.NotContains(t, readFile(t, fs, "/public/about.js"), "shared")
	require.NotContains(t, readFile(t, fs, "/public/home.js"), "shared")
	_, hasCommonEntry := m.Entries["common"]
	require.False(t, hasCommonEntry)
}

func TestEmitIsIdempotent(t *testing.T) {
	g := sharedGraph()
	snapshot := func(fs billy.Filesystem) map[string]string {
		out := make(map[string]string)
		for _, name := range listFiles(t, fs, "/public") {
			out[name] = readFile(t, fs, "/public/"+name)
		}
		return out
	}
	first, second := memfs.New(), memfs.New()
	m1, err := Emit(context.Background(), testContext(first), g, chunk.Partition(g))
	require.NoError(t, err)
	m2, err := Emit(context.Background(), testContext(second), g, chunk.Partition(g))
	require.NoError(t, err)
	require.Equal(t, m1, m2)
	require.Equal(t, snapshot(first), snapshot(second))

	// rebuilding into the same tree overwrites in place
	_, err = Emit(context.Background(), testContext(first), g, chunk.Partition(g))
	require.NoError(t, err)
	require.Equal(t, snapshot(second), snapshot(first))
}

func TestEmitSourceMaps(t *testing.T) {
	js := "a();\nb();\n"
	css := "a{}\n"
	g := buildGraph(map[string]string{"main": "/app/main.js", "style": "/app/style.css"}, []*graph.Module{
		{ID: "/app/main.js", Content: js, Map: sourcemap.Identity("/app/main.js", js), Owners: []string{"main"}},
		{ID: "/app/plain.js", Content: "plain();", Owners: []string{"main"}},
		{ID: "/app/style.css", Content: css, Map: sourcemap.Identity("/app/style.css", css), Owners: []string{"style"}},
	})
	fs := memfs.New()
	ectx := testContext(fs)
	ectx.Filename = naming.MustParse("[name].[chunkhash:8].js")
	ectx.SourceMapFilename = naming.MustParse("maps/[name].map")
	chunks := chunk.Partition(g)
	m, err := Emit(context.Background(), ectx, g, chunks)
	require.NoError(t, err)

	main := m.Entries["main"]
	require.Equal(t, "maps/main.map", main.MapFile)
	require.Equal(t, "main."+main.Hash[:8]+".js", main.File)
	content := readFile(t, fs, "/public/"+main.File)
	require.True(t, strings.HasPrefix(content, js+"plain();\n"))
	require.True(t, strings.HasSuffix(content, "//# sourceMappingURL=maps/main.map\n"))

	parsed, err := sourcemap.Parse([]byte(readFile(t, fs, "/public/maps/main.map")))
	require.NoError(t, err)
	require.Equal(t, []string{"../../app/main.js"}, parsed.Sources)
	require.Equal(t, "AAAA;AACA", parsed.Mappings)

	// hash covers the content without the trailing map comment
	sum := sha256.Sum256([]byte(js + "plain();"))
	require.Equal(t, hex.EncodeToString(sum[:]), main.Hash)
}

func TestEmitCSSMapComment(t *testing.T) {
	css := "a{}\n"
	g := buildGraph(map[string]string{"site": "/app/site.css"}, []*graph.Module{
		{ID: "/app/site.css", Content: css, Map: sourcemap.Identity("/app/site.css", css), Owners: []string{"site"}},
	})
	fs := memfs.New()
	ectx := testContext(fs)
	ectx.Filename = naming.MustParse("{name}.css")
	_, err := Emit(context.Background(), ectx, g, chunk.Partition(g))
	require.NoError(t, err)
	require.Equal(t, css+"/*# sourceMappingURL=site.map */\n", readFile(t, fs, "/public/site.css"))
}

func TestEmitPathConflictWritesNothing(t *testing.T) {
	g := sharedGraph()
	fs := memfs.New()
	ectx := testContext(fs)
	ectx.Filename = naming.MustParse("bundle.js")
	_, err := Emit(context.Background(), ectx, g, chunk.Partition(g))

	var berr *diag.BuildError
	require.True(t, errors.As(err, &berr))
	require.Equal(t, diag.EmitPathConflict, berr.Diagnostics[0].Code)
	require.Empty(t, listFiles(t, fs, "/public"))
}

// failingFS refuses renames onto paths containing bad.
type failingFS struct {
	billy.Filesystem
	bad string
}

func (f *failingFS) Rename(from, to string) error {
	if strings.Contains(to, f.bad) {
		return errors.New("disk full")
	}
	return f.Filesystem.Rename(from, to)
}

func TestEmitWriteFailureKeepsSiblings(t *testing.T) {
	g := sharedGraph()
	mem := memfs.New()
	fs := &failingFS{Filesystem: mem, bad: "about"}
	_, err := Emit(context.Background(), testContext(fs), g, chunk.Partition(g))

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	require.Equal(t, "about", ioErr.Chunk)

	names := listFiles(t, mem, "/public")
	require.Contains(t, names, "home.js")
	require.NotContains(t, names, "about.js")
	require.Len(t, names, 2, "common and home chunks are written, temp files are cleaned up")
}

func TestEmitChunkLandsWithItsMap(t *testing.T) {
	js := "a();\n"
	g := buildGraph(map[string]string{"main": "/app/main.js"}, []*graph.Module{
		{ID: "/app/main.js", Content: js, Map: sourcemap.Identity("/app/main.js", js), Owners: []string{"main"}},
	})

	// content fails: the map must not stay behind
	mem := memfs.New()
	_, err := Emit(context.Background(), testContext(&failingFS{Filesystem: mem, bad: "main.js"}), g, chunk.Partition(g))
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	require.Equal(t, "/public/main.js", filepath.ToSlash(ioErr.Path))
	require.Empty(t, listFiles(t, mem, "/public"))

	// map fails: the content is never written
	mem = memfs.New()
	_, err = Emit(context.Background(), testContext(&failingFS{Filesystem: mem, bad: "main.map"}), g, chunk.Partition(g))
	require.True(t, errors.As(err, &ioErr))
	require.Equal(t, "/public/main.map", filepath.ToSlash(ioErr.Path))
	require.Empty(t, listFiles(t, mem, "/public"))
}

func TestWriteManifestFormats(t *testing.T) {
	g := sharedGraph()
	fs := memfs.New()
	ectx := testContext(fs)
	ectx.PublicPath = "/assets/"
	m, err := Emit(context.Background(), ectx, g, chunk.Partition(g))
	require.NoError(t, err)
	require.Equal(t, "/assets/home.js", m.URL(m.Chunks["home"]))

	for _, format := range []config.ManifestFormat{config.ManifestJSON, config.ManifestMsgpack} {
		t.Run(string(format), func(t *testing.T) {
			path := "/public/manifest." + string(format)
			require.NoError(t, WriteManifest(fs, path, m, format))
			data, err := util.ReadFile(fs, path)
			require.NoError(t, err)
			decoded, err := DecodeManifest(data, format)
			require.NoError(t, err)
			require.Equal(t, m, decoded)
		})
	}
}
