package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/sourcemap"
)

var (
	sassVarDeclRe = regexp.MustCompile(`^\s*\$([A-Za-z_][\w-]*)\s*:\s*(.*?)\s*(!default)?\s*;\s*$`)
	sassVarUseRe  = regexp.MustCompile(`\$([A-Za-z_][\w-]*)`)
	sassImportRe  = regexp.MustCompile(`^\s*@import\s+(.+?)\s*;?\s*$`)
	quotedRe      = regexp.MustCompile(`['"]([^'"]+)['"]`)
	minifyRe      = regexp.MustCompile(`\s*([{}:;,>])\s*`)
	spacesRe      = regexp.MustCompile(`\s+`)
)

// sassLoader stands in for a stylesheet preprocessor. It understands
// comments, top-level $variables and @import; everything else is emitted
// as written in the configured output style.
type sassLoader struct {
	base
	opts config.SassOptions
	fs   billy.Filesystem
}

// styleLine is one output line and the 0-based raw line it came from.
type styleLine struct {
	text   string
	origin int
}

func (l *sassLoader) Transform(_ context.Context, in *Input) (*Output, error) {
	code := blankComments(in.Content, true)
	vars := make(map[string]string)
	var (
		lines []styleLine
		refs  refSet
	)
	for i, raw := range strings.Split(code, "\n") {
		if m := sassVarDeclRe.FindStringSubmatch(raw); m != nil {
			value, err := expandVars(m[2], vars, i+1)
			if err != nil {
				return nil, err
			}
			if _, exists := vars[m[1]]; exists && m[3] != "" {
				continue
			}
			vars[m[1]] = value
			continue
		}
		if m := sassImportRe.FindStringSubmatch(raw); m != nil && !strings.HasPrefix(strings.TrimSpace(m[1]), "url(") {
			specs := quotedRe.FindAllStringSubmatch(m[1], -1)
			if len(specs) == 0 {
				return nil, fmt.Errorf("line %d: malformed @import", i+1)
			}
			var plain []string
			for _, s := range specs {
				spec := s[1]
				if isPlainCSSImport(spec) {
					plain = append(plain, s[0])
					continue
				}
				ref, err := l.lookup(spec, filepath.Dir(in.Path))
				if err != nil {
					return nil, err
				}
				refs.add(ref)
			}
			if len(plain) > 0 {
				lines = append(lines, styleLine{text: "@import " + strings.Join(plain, ", ") + ";", origin: i})
			}
			continue
		}
		text, err := expandVars(raw, vars, i+1)
		if err != nil {
			return nil, err
		}
		text = strings.TrimRight(text, " \t\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		lines = append(lines, styleLine{text: text, origin: i})
	}
	if err := checkBraces(lines); err != nil {
		return nil, err
	}

	rendered := renderStyle(lines, l.opts.OutputStyle)
	var sb strings.Builder
	for _, ln := range rendered {
		sb.WriteString(ln.text)
		sb.WriteByte('\n')
	}
	out := &Output{Content: sb.String(), References: refs.list}
	if l.opts.SourceMap {
		out.Map = styleMap(filepath.ToSlash(in.Path), in.Content, rendered)
	}
	return out, nil
}

func expandVars(s string, vars map[string]string, line int) (string, error) {
	var missing string
	out := sassVarUseRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1:]
		if v, ok := vars[name]; ok {
			return v
		}
		if missing == "" {
			missing = name
		}
		return m
	})
	if missing != "" {
		return "", fmt.Errorf("line %d: undefined variable $%s", line, missing)
	}
	return out, nil
}

func isPlainCSSImport(spec string) bool {
	return strings.HasSuffix(spec, ".css") ||
		strings.HasPrefix(spec, "http://") ||
		strings.HasPrefix(spec, "https://") ||
		strings.HasPrefix(spec, "//")
}

// lookup finds the file an @import names, trying the importing directory
// and then every include path. Partials (_name.scss) are accepted. When
// nothing matches, the specifier is returned unchanged for the resolver to
// report.
func (l *sassLoader) lookup(spec, fromDir string) (string, error) {
	return lookupStyle(l.fs, spec, fromDir, l.opts.IncludePaths, sassCandidates)
}

func lookupStyle(fs billy.Filesystem, spec, fromDir string, includePaths []string, candidates func(string) []string) (string, error) {
	if fs == nil {
		return spec, nil
	}
	dirs := append([]string{fromDir}, includePaths...)
	rel := filepath.FromSlash(spec)
	for _, dir := range dirs {
		for _, candidate := range candidates(filepath.Join(dir, rel)) {
			info, err := fs.Stat(candidate)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return "", err
			}
			if info.Mode().IsRegular() {
				return candidate, nil
			}
		}
	}
	return spec, nil
}

func sassCandidates(p string) []string {
	dir, name := filepath.Split(p)
	switch filepath.Ext(name) {
	case ".scss", ".sass":
		return []string{p, filepath.Join(dir, "_"+name)}
	}
	var out []string
	for _, ext := range []string{".scss", ".sass"} {
		out = append(out, p+ext, filepath.Join(dir, "_"+name+ext))
	}
	return out
}

// eachBrace calls fn for every brace outside quoted strings, in order.
func eachBrace(s string, fn func(open bool) bool) bool {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '{' || c == '}':
			if !fn(c == '{') {
				return false
			}
		}
	}
	return true
}

func braceDelta(s string) int {
	delta := 0
	eachBrace(s, func(open bool) bool {
		if open {
			delta++
		} else {
			delta--
		}
		return true
	})
	return delta
}

func checkBraces(lines []styleLine) error {
	var open []int
	for _, ln := range lines {
		line := ln.origin + 1
		ok := eachBrace(ln.text, func(isOpen bool) bool {
			if isOpen {
				open = append(open, line)
				return true
			}
			if len(open) == 0 {
				return false
			}
			open = open[:len(open)-1]
			return true
		})
		if !ok {
			return fmt.Errorf("line %d: unexpected '}'", line)
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("line %d: unclosed '{'", open[len(open)-1])
	}
	return nil
}

func renderStyle(lines []styleLine, style string) []styleLine {
	switch style {
	case config.StyleCompact:
		var (
			out   []styleLine
			cur   []string
			start = -1
			depth int
		)
		for _, ln := range lines {
			t := strings.TrimSpace(ln.text)
			if start < 0 {
				start = ln.origin
			}
			cur = append(cur, t)
			depth += braceDelta(t)
			if depth == 0 && (strings.HasSuffix(t, "}") || strings.HasSuffix(t, ";")) {
				out = append(out, styleLine{text: strings.Join(cur, " "), origin: start})
				cur, start = nil, -1
			}
		}
		if len(cur) > 0 {
			out = append(out, styleLine{text: strings.Join(cur, " "), origin: start})
		}
		return out
	case config.StyleCompressed:
		if len(lines) == 0 {
			return nil
		}
		parts := make([]string, len(lines))
		for i, ln := range lines {
			parts[i] = strings.TrimSpace(ln.text)
		}
		joined := spacesRe.ReplaceAllString(strings.Join(parts, " "), " ")
		joined = minifyRe.ReplaceAllString(joined, "$1")
		joined = strings.ReplaceAll(joined, ";}", "}")
		return []styleLine{{text: joined, origin: lines[0].origin}}
	default:
		return lines
	}
}

func styleMap(source, content string, lines []styleLine) *sourcemap.Map {
	segs := make([][]sourcemap.Segment, len(lines))
	for i, ln := range lines {
		segs[i] = []sourcemap.Segment{{HasSource: true, SourceLine: ln.origin}}
	}
	return &sourcemap.Map{
		Version:        3,
		Sources:        []string{source},
		SourcesContent: []string{content},
		Mappings:       sourcemap.Encode(segs),
	}
}
