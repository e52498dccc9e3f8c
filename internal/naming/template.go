// Package naming parses and renders output filename templates such as
// "{name}.js", "[chunkhash].js" or "{name}-{hash:8}.map".
package naming

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Placeholder names recognised in templates.
const (
	Name      = "name"
	Hash      = "hash"
	ChunkHash = "chunkhash"
	ID        = "id"
)

var known = map[string]bool{
	Name:      true,
	Hash:      true,
	ChunkHash: true,
	ID:        true,
}

type segment struct {
	literal string
	key     string // empty for literal segments
	length  int    // 0 means full value
}

// Template is a parsed filename template.
type Template struct {
	raw  string
	segs []segment
}

// Values supplies placeholder substitutions.
type Values struct {
	Name      string
	Hash      string
	ChunkHash string
	ID        int
}

// Parse reads tmpl. Both {key} and [key] delimiters are accepted and a
// value may be truncated with a length suffix, e.g. {chunkhash:8}.
func Parse(tmpl string) (Template, error) {
	if strings.TrimSpace(tmpl) == "" {
		return Template{}, fmt.Errorf("empty filename template")
	}
	t := Template{raw: tmpl}
	var lit strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '{' && c != '[' {
			lit.WriteByte(c)
			continue
		}
		closer := byte('}')
		if c == '[' {
			closer = ']'
		}
		end := strings.IndexByte(tmpl[i+1:], closer)
		if end < 0 {
			return Template{}, fmt.Errorf("template %q: unterminated placeholder at offset %d", tmpl, i)
		}
		body := tmpl[i+1 : i+1+end]
		seg, err := parsePlaceholder(body)
		if err != nil {
			return Template{}, fmt.Errorf("template %q: %w", tmpl, err)
		}
		if lit.Len() > 0 {
			t.segs = append(t.segs, segment{literal: lit.String()})
			lit.Reset()
		}
		t.segs = append(t.segs, seg)
		i += end + 1
	}
	if lit.Len() > 0 {
		t.segs = append(t.segs, segment{literal: lit.String()})
	}
	return t, nil
}

// MustParse is Parse that panics on error. Intended for constants.
func MustParse(tmpl string) Template {
	t, err := Parse(tmpl)
	if err != nil {
		panic(err)
	}
	return t
}

func parsePlaceholder(body string) (segment, error) {
	key, lenStr, hasLen := strings.Cut(body, ":")
	key = strings.ToLower(strings.TrimSpace(key))
	if !known[key] {
		return segment{}, fmt.Errorf("unknown placeholder %q", body)
	}
	seg := segment{key: key}
	if hasLen {
		n, err := strconv.Atoi(strings.TrimSpace(lenStr))
		if err != nil || n <= 0 {
			return segment{}, fmt.Errorf("invalid length in placeholder %q", body)
		}
		if key == Name || key == ID {
			return segment{}, fmt.Errorf("placeholder %q does not take a length", key)
		}
		seg.length = n
	}
	return seg, nil
}

// String returns the template as written.
func (t Template) String() string { return t.raw }

// Uses reports whether the template references placeholder key.
func (t Template) Uses(key string) bool {
	for _, s := range t.segs {
		if s.key == key {
			return true
		}
	}
	return false
}

// Render substitutes v into the template.
func (t Template) Render(v Values) string {
	var b strings.Builder
	for _, s := range t.segs {
		if s.key == "" {
			b.WriteString(s.literal)
			continue
		}
		var val string
		switch s.key {
		case Name:
			val = v.Name
		case Hash:
			val = v.Hash
		case ChunkHash:
			val = v.ChunkHash
		case ID:
			val = strconv.Itoa(v.ID)
		}
		if s.length > 0 && s.length < len(val) {
			val = val[:s.length]
		}
		b.WriteString(val)
	}
	return b.String()
}

// RenderPath renders the template and checks that the result is a relative,
// slash-separated path that stays under the output root.
func (t Template) RenderPath(v Values) (string, error) {
	out := t.Render(v)
	if out == "" {
		return "", fmt.Errorf("template %q rendered an empty name", t.raw)
	}
	clean := path.Clean(strings.ReplaceAll(out, "\\", "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("template %q rendered %q outside the output root", t.raw, out)
	}
	return clean, nil
}
