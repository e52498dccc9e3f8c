package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/andrewscwei/minuet/internal/config"
)

var (
	stylusImportRe = regexp.MustCompile(`^@(?:import|require)\s+(.+?)\s*;?$`)
	stylusVarRe    = regexp.MustCompile(`^(\$?[A-Za-z_][\w-]*)\s*(\?=|=)\s*(.+?)\s*;?$`)
	stylusPropRe   = regexp.MustCompile(`^([A-Za-z-][\w-]*)\s*(?::\s*|\s+)(.+?)\s*;?$`)
	stylusWordRe   = regexp.MustCompile(`\$?[A-Za-z_][\w-]*`)
)

// stylusLoader stands in for the stylus preprocessor. It understands
// comments, top-level variables (name = value, name ?= value), @import and
// @require, and indentation nesting with & parent references. Files written
// with braces are passed through with variables expanded.
type stylusLoader struct {
	base
	opts config.StylusOptions
	fs   billy.Filesystem
}

type stylusLine struct {
	indent int
	text   string
	origin int
}

type stylusRule struct {
	selector string
	origin   int
	props    []styleLine
}

func (l *stylusLoader) Transform(_ context.Context, in *Input) (*Output, error) {
	code := blankComments(in.Content, true)
	vars := make(map[string]string)
	var (
		head   []styleLine
		body   []stylusLine
		refs   refSet
		braces bool
	)
	for i, raw := range strings.Split(code, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
		if m := stylusImportRe.FindStringSubmatch(text); m != nil {
			specs := quotedRe.FindAllStringSubmatch(m[1], -1)
			if len(specs) == 0 {
				return nil, fmt.Errorf("line %d: malformed import", i+1)
			}
			for _, s := range specs {
				if isPlainCSSImport(s[1]) && !(l.opts.IncludeCSS && isLocalCSS(s[1])) {
					head = append(head, styleLine{text: "@import " + s[0] + ";", origin: i})
					continue
				}
				ref, err := lookupStyle(l.fs, s[1], filepath.Dir(in.Path), l.opts.Include, stylusCandidates)
				if err != nil {
					return nil, err
				}
				refs.add(ref)
			}
			continue
		}
		if m := stylusVarRe.FindStringSubmatch(text); m != nil && indent == 0 {
			name := strings.TrimPrefix(m[1], "$")
			if _, exists := vars[name]; exists && m[2] == "?=" {
				continue
			}
			vars[name] = expandStylusVars(m[3], vars)
			continue
		}
		if strings.ContainsAny(text, "{}") {
			braces = true
		}
		body = append(body, stylusLine{indent: indent, text: text, origin: i})
	}

	var lines []styleLine
	if braces {
		lines = make([]styleLine, 0, len(body))
		for _, ln := range body {
			text := ln.text
			if k := strings.IndexByte(text, ':'); k >= 0 && !strings.HasSuffix(text, "{") {
				text = text[:k+1] + expandStylusVars(text[k+1:], vars)
			}
			lines = append(lines, styleLine{text: strings.Repeat(" ", ln.indent) + text, origin: ln.origin})
		}
		if err := checkBraces(lines); err != nil {
			return nil, err
		}
	} else {
		var err error
		if lines, err = flattenStylus(body, vars); err != nil {
			return nil, err
		}
	}
	lines = append(head, lines...)

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

// flattenStylus turns indentation nesting into flat CSS rules, in the order
// the selectors appear.
func flattenStylus(body []stylusLine, vars map[string]string) ([]styleLine, error) {
	type frame struct {
		indent int
		rule   *stylusRule
	}
	var (
		stack []frame
		rules []*stylusRule
	)
	for i, ln := range body {
		for len(stack) > 0 && stack[len(stack)-1].indent >= ln.indent {
			stack = stack[:len(stack)-1]
		}
		if i+1 < len(body) && body[i+1].indent > ln.indent {
			sel := ln.text
			if len(stack) > 0 {
				sel = joinSelectors(stack[len(stack)-1].rule.selector, sel)
			}
			r := &stylusRule{selector: sel, origin: ln.origin}
			rules = append(rules, r)
			stack = append(stack, frame{indent: ln.indent, rule: r})
			continue
		}
		if len(stack) == 0 {
			return nil, fmt.Errorf("line %d: property outside of a rule", ln.origin+1)
		}
		m := stylusPropRe.FindStringSubmatch(ln.text)
		if m == nil {
			return nil, fmt.Errorf("line %d: cannot parse %q", ln.origin+1, ln.text)
		}
		r := stack[len(stack)-1].rule
		r.props = append(r.props, styleLine{
			text:   "  " + m[1] + ": " + expandStylusVars(m[2], vars) + ";",
			origin: ln.origin,
		})
	}

	var out []styleLine
	for _, r := range rules {
		if len(r.props) == 0 {
			continue
		}
		out = append(out, styleLine{text: r.selector + " {", origin: r.origin})
		out = append(out, r.props...)
		out = append(out, styleLine{text: "}", origin: r.props[len(r.props)-1].origin})
	}
	return out, nil
}

// joinSelectors nests child under parent. A child containing & replaces
// it with the parent; comma lists are expanded pairwise.
func joinSelectors(parent, child string) string {
	var out []string
	for _, p := range strings.Split(parent, ",") {
		p = strings.TrimSpace(p)
		for _, c := range strings.Split(child, ",") {
			c = strings.TrimSpace(c)
			if strings.Contains(c, "&") {
				out = append(out, strings.ReplaceAll(c, "&", p))
			} else {
				out = append(out, p+" "+c)
			}
		}
	}
	return strings.Join(out, ", ")
}

func expandStylusVars(s string, vars map[string]string) string {
	return stylusWordRe.ReplaceAllStringFunc(s, func(w string) string {
		if v, ok := vars[strings.TrimPrefix(w, "$")]; ok {
			return v
		}
		return w
	})
}

func isLocalCSS(spec string) bool {
	return strings.HasSuffix(spec, ".css") && !strings.Contains(spec, "//")
}

func stylusCandidates(p string) []string {
	switch filepath.Ext(p) {
	case ".styl", ".css":
		return []string{p}
	}
	return []string{p + ".styl", filepath.Join(p, "index.styl")}
}
