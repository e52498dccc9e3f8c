// Package auxemit renders the auxiliary document of a build, typically an
// HTML page that references the emitted chunks.
package auxemit

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"path"
	"strings"
	"text/template"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"

	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/emit"
)

// TemplateError reports a template that failed to parse or execute.
type TemplateError struct {
	Path string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("auxiliary template %s: %v", e.Path, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// Emit renders aux.Template against m and writes the result to
// aux.OutputPath. It does nothing when aux is nil.
func Emit(ctx context.Context, fsys billy.Filesystem, m *emit.Manifest, aux *config.Auxiliary) error {
	if aux == nil {
		return nil
	}
	src, err := util.ReadFile(fsys, aux.Template)
	if err != nil {
		return &emit.IOError{Chunk: "auxiliary", Path: aux.Template, Err: err}
	}
	out, err := Render(path.Base(aux.Template), string(src), m)
	if err != nil {
		return &TemplateError{Path: aux.Template, Err: err}
	}
	if aux.Inject {
		out = Inject(out, m)
	}
	if err := emit.WriteFile(fsys, aux.OutputPath, []byte(out)); err != nil {
		return &emit.IOError{Chunk: "auxiliary", Path: aux.OutputPath, Err: err}
	}
	zerolog.Ctx(ctx).Debug().Str("path", aux.OutputPath).Int("size", len(out)).Msg("auxiliary written")
	return nil
}

// Render executes the template text src with the manifest helpers.
func Render(name, src string, m *emit.Manifest) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(funcs(m)).Parse(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, m); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func funcs(m *emit.Manifest) template.FuncMap {
	return template.FuncMap{
		"chunk": func(entry string) (string, error) {
			file, ok := m.EntryFile(entry)
			if !ok {
				return "", fmt.Errorf("unknown entry %q", entry)
			}
			return m.URL(file), nil
		},
		"url":     m.URL,
		"chunks":  func() []emit.ChunkRecord { return m.Records },
		"entries": func() []string { return entryNames(m) },
		"scripts": func() string { return scriptTags(m) },
		"styles":  func() string { return styleTags(m) },
	}
}

func entryNames(m *emit.Manifest) []string {
	var names []string
	for _, rec := range m.Records {
		if rec.Entry != "" {
			names = append(names, rec.Entry)
		}
	}
	return names
}

func scriptTags(m *emit.Manifest) string {
	var sb strings.Builder
	for _, rec := range m.Records {
		if strings.HasSuffix(rec.File, ".js") {
			fmt.Fprintf(&sb, "<script type=\"text/javascript\" src=\"%s\"></script>", html.EscapeString(m.URL(rec.File)))
		}
	}
	return sb.String()
}

func styleTags(m *emit.Manifest) string {
	var sb strings.Builder
	for _, rec := range m.Records {
		if strings.HasSuffix(rec.File, ".css") {
			fmt.Fprintf(&sb, "<link href=\"%s\" rel=\"stylesheet\">", html.EscapeString(m.URL(rec.File)))
		}
	}
	return sb.String()
}

// Inject places script tags before </body> and stylesheet links before
// </head>. Without those elements tags go to the end and the start of the
// document respectively.
func Inject(doc string, m *emit.Manifest) string {
	if styles := styleTags(m); styles != "" {
		doc = insertBefore(doc, "</head>", styles, false)
	}
	if scripts := scriptTags(m); scripts != "" {
		doc = insertBefore(doc, "</body>", scripts, true)
	}
	return doc
}

func insertBefore(doc, closing, tags string, fallbackEnd bool) string {
	i := strings.LastIndex(strings.ToLower(doc), closing)
	if i < 0 {
		if fallbackEnd {
			return doc + tags
		}
		return tags + doc
	}
	return doc[:i] + tags + doc[i:]
}
