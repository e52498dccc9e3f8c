package loader

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/sourcemap"
)

var (
	requireRe       = regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"\n]+)['"]\s*\)`)
	staticImportRe  = regexp.MustCompile(`(?m)^[ \t]*import\s+(?:(?:type\s+)?[\w\s{},*$]+\s+from\s+)?['"]([^'"\n]+)['"]`)
	dynamicImportRe = regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"\n]+)['"]\s*\)`)
	exportFromRe    = regexp.MustCompile(`(?m)^[ \t]*export\s+(?:\*(?:\s+as\s+[\w$]+)?|\{[^}]*\})\s+from\s+['"]([^'"\n]+)['"]`)
)

// scriptLoader stands in for a script compiler: the content is kept as is
// and module references are extracted from require/import/export forms.
type scriptLoader struct {
	base
	opts config.ScriptOptions
}

func (l *scriptLoader) Transform(_ context.Context, in *Input) (*Output, error) {
	out := &Output{
		Content:    in.Content,
		References: ScanScriptReferences(in.Content),
		Map:        in.Map,
	}
	if l.opts.SourceMap && out.Map == nil {
		out.Map = sourcemap.Identity(filepath.ToSlash(in.Path), in.Content)
	}
	return out, nil
}

// ScanScriptReferences returns the specifiers referenced by src in source
// order, without duplicates. Commented-out references are ignored.
func ScanScriptReferences(src string) []string {
	code := blankComments(src, true)
	type hit struct {
		at   int
		spec string
	}
	var hits []hit
	for _, re := range []*regexp.Regexp{requireRe, staticImportRe, dynamicImportRe, exportFromRe} {
		for _, m := range re.FindAllStringSubmatchIndex(code, -1) {
			hits = append(hits, hit{at: m[2], spec: code[m[2]:m[3]]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })
	var refs refSet
	for _, h := range hits {
		refs.add(h.spec)
	}
	return refs.list
}
