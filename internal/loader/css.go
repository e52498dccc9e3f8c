package loader

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/sourcemap"
)

var (
	cssImportRe = regexp.MustCompile(`@import\s+(?:url\(\s*)?['"]?([^'")\s;]+)['"]?\s*\)?[^;]*;`)
	cssURLRe    = regexp.MustCompile(`\burl\(\s*['"]?([^'")]+?)['"]?\s*\)`)
)

// cssLoader keeps the stylesheet as is and reports @import and local url()
// references in css-loader's convention: "~pkg" names a module, any other
// relative name is relative to the stylesheet.
type cssLoader struct {
	base
	opts config.CSSOptions
}

func (l *cssLoader) Transform(_ context.Context, in *Input) (*Output, error) {
	out := &Output{
		Content:    in.Content,
		References: ScanCSSReferences(in.Content),
		Map:        in.Map,
	}
	if l.opts.SourceMap && out.Map == nil {
		out.Map = sourcemap.Identity(filepath.ToSlash(in.Path), in.Content)
	}
	return out, nil
}

// ScanCSSReferences returns the local files referenced by src in source
// order, without duplicates.
func ScanCSSReferences(src string) []string {
	code := blankComments(src, false)
	type hit struct {
		at   int
		spec string
	}
	var hits []hit
	imports := cssImportRe.FindAllStringSubmatchIndex(code, -1)
	for _, m := range imports {
		hits = append(hits, hit{at: m[2], spec: code[m[2]:m[3]]})
	}
	for _, m := range cssURLRe.FindAllStringSubmatchIndex(code, -1) {
		inImport := false
		for _, im := range imports {
			if m[0] >= im[0] && m[1] <= im[1] {
				inImport = true
				break
			}
		}
		if !inImport {
			hits = append(hits, hit{at: m[2], spec: code[m[2]:m[3]]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })
	var refs refSet
	for _, h := range hits {
		if spec, ok := localCSSRef(h.spec); ok {
			refs.add(spec)
		}
	}
	return refs.list
}

func localCSSRef(spec string) (string, bool) {
	spec = strings.TrimSpace(spec)
	if i := strings.IndexAny(spec, "?#"); i >= 0 {
		spec = spec[:i]
	}
	switch {
	case spec == "",
		strings.HasPrefix(spec, "data:"),
		strings.HasPrefix(spec, "http:"),
		strings.HasPrefix(spec, "https:"),
		strings.HasPrefix(spec, "//"):
		return "", false
	case strings.HasPrefix(spec, "~"):
		return spec[1:], spec != "~"
	case strings.HasPrefix(spec, "/"), strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"):
		return spec, true
	default:
		return "./" + spec, true
	}
}
