package loader

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/sourcemap"
)

func transform(t *testing.T, spec config.LoaderSpec, env Env, path, content string) *Output {
	t.Helper()
	l, err := New(spec, env)
	if err != nil {
		t.Fatalf("New(%s): %v", spec.Kind, err)
	}
	out, err := l.Transform(context.Background(), &Input{Path: path, Content: content})
	if err != nil {
		t.Fatalf("Transform(%s): %v", spec.Kind, err)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScanScriptReferences(t *testing.T) {
	src := `import React from 'react';
import { a, b } from "./lib/ab";
import './side-effect';
export * from './reexport';
export { c } from "./c";
const d = require('./d');
// const skipped = require('./commented');
/* import x from './block'; */
const lazy = () => import('./lazy');
const again = require("./d");
`
	want := []string{"react", "./lib/ab", "./side-effect", "./reexport", "./c", "./d", "./lazy"}
	if got := ScanScriptReferences(src); !equalStrings(got, want) {
		t.Fatalf("references = %v, want %v", got, want)
	}
}

func TestScriptLoaderKeepsContent(t *testing.T) {
	out := transform(t, config.LoaderSpec{Kind: config.KindScript, Options: &config.ScriptOptions{SourceMap: true}}, Env{}, "/app/a.js", "require('./b');\n")
	if out.Content != "require('./b');\n" {
		t.Fatalf("Content = %q", out.Content)
	}
	if out.Map == nil || out.Map.Sources[0] != "/app/a.js" {
		t.Fatalf("Map = %+v", out.Map)
	}
}

func TestSassOutputStyles(t *testing.T) {
	src := `// colors
$primary: #336699;
$accent: $primary !default;
$accent: red !default;

.button {
  color: $primary;
  border: 1px solid $accent; /* note */
}

a:hover { color: $accent; }
`
	tests := []struct {
		style string
		want  string
	}{
		{config.StyleExpanded, ".button {\n  color: #336699;\n  border: 1px solid #336699;\n}\na:hover { color: #336699; }\n"},
		{config.StyleCompact, ".button { color: #336699; border: 1px solid #336699; }\na:hover { color: #336699; }\n"},
		{config.StyleCompressed, ".button{color:#336699;border:1px solid #336699}a:hover{color:#336699}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			out := transform(t, config.LoaderSpec{Kind: config.KindSass, Options: &config.SassOptions{OutputStyle: tt.style}}, Env{}, "/app/s.scss", src)
			if out.Content != tt.want {
				t.Fatalf("Content = %q, want %q", out.Content, tt.want)
			}
		})
	}
}

func TestSassSourceMapTracksLines(t *testing.T) {
	src := "$c: red;\n\na {\n  color: $c;\n}\n"
	out := transform(t, config.LoaderSpec{Kind: config.KindSass, Options: &config.SassOptions{SourceMap: true}}, Env{}, "/app/s.scss", src)
	lines, err := sourcemap.Decode(out.Map.Mappings)
	if err != nil {
		t.Fatal(err)
	}
	var origins []int
	for _, segs := range lines {
		origins = append(origins, segs[0].SourceLine)
	}
	if len(origins) != 3 || origins[0] != 2 || origins[1] != 3 || origins[2] != 4 {
		t.Fatalf("origins = %v", origins)
	}
}

func TestSassImportsUseIncludePaths(t *testing.T) {
	fs := memfs.New()
	for _, name := range []string{"/app/styles/_local.scss", "/lib/stylesheets/_vars.scss", "/lib/stylesheets/mixins.sass"} {
		if err := util.WriteFile(fs, name, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	spec := config.LoaderSpec{Kind: config.KindSass, Options: &config.SassOptions{IncludePaths: []string{"/lib/stylesheets"}}}
	src := "@import 'local', \"vars\";\n@import 'mixins';\n@import 'theme.css';\n@import 'nowhere';\nbody { margin: 0; }\n"
	out := transform(t, spec, Env{FS: fs}, "/app/styles/main.scss", src)
	want := []string{
		filepath.FromSlash("/app/styles/_local.scss"),
		filepath.FromSlash("/lib/stylesheets/_vars.scss"),
		filepath.FromSlash("/lib/stylesheets/mixins.sass"),
		"nowhere",
	}
	if !equalStrings(out.References, want) {
		t.Fatalf("references = %v, want %v", out.References, want)
	}
	if !strings.HasPrefix(out.Content, "@import 'theme.css';\n") {
		t.Fatalf("plain css import should be kept: %q", out.Content)
	}
}

func TestSassKeepsProtocolRelativeURLs(t *testing.T) {
	src := "a { background: url(//cdn.example.com/x.png); } // trailing\nb { src: URL(//cdn.example.com/f.woff); }\n"
	out := transform(t, config.LoaderSpec{Kind: config.KindSass}, Env{}, "/app/s.scss", src)
	want := "a { background: url(//cdn.example.com/x.png); }\nb { src: URL(//cdn.example.com/f.woff); }\n"
	if out.Content != want {
		t.Fatalf("Content = %q, want %q", out.Content, want)
	}
}

func TestBlankCommentsKeepsURLTokens(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"url(//cdn/x.png) // c", "url(//cdn/x.png)     "},
		{"myurl(x) // c", "myurl(x)     "},
		{"a(//b)", "a(    "},
	}
	for _, tt := range tests {
		if got := blankComments(tt.in, true); got != tt.want {
			t.Errorf("blankComments(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSassRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"unclosed":   "a {\n  color: red;\n",
		"unexpected": "a { color: red; }\n}\n",
		"undefined":  "a { color: $missing; }\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			l, err := New(config.LoaderSpec{Kind: config.KindSass}, Env{})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := l.Transform(context.Background(), &Input{Path: "/s.scss", Content: src}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestStylusFlattensIndentation(t *testing.T) {
	src := `// palette
primary = #336699
accent ?= red
accent ?= blue

.nav
  color primary
  a
    border: 1px solid accent
  &:hover, &.active
    color: red
`
	out := transform(t, config.LoaderSpec{Kind: config.KindStylus}, Env{}, "/app/s.styl", src)
	want := ".nav {\n  color: #336699;\n}\n.nav a {\n  border: 1px solid red;\n}\n.nav:hover, .nav.active {\n  color: red;\n}\n"
	if out.Content != want {
		t.Fatalf("Content = %q, want %q", out.Content, want)
	}
}

func TestStylusBraceSyntax(t *testing.T) {
	out := transform(t, config.LoaderSpec{Kind: config.KindStylus, Options: &config.StylusOptions{OutputStyle: config.StyleCompressed}}, Env{}, "/app/s.styl", "c = red\na { color: c; }\n")
	if out.Content != "a{color:red}\n" {
		t.Fatalf("Content = %q", out.Content)
	}
}

func TestStylusImports(t *testing.T) {
	fs := memfs.New()
	for _, name := range []string{"/app/styles/vars.styl", "/lib/mixins/index.styl", "/app/styles/reset.css"} {
		if err := util.WriteFile(fs, name, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	src := "@import 'vars'\n@require 'mixins'\n@import 'reset.css'\n@import 'http://x.test/y.css'\nbody\n  margin 0\n"
	tests := []struct {
		name       string
		includeCSS bool
		refs       []string
		content    string
	}{
		{
			name:    "keep css",
			refs:    []string{filepath.FromSlash("/app/styles/vars.styl"), filepath.FromSlash("/lib/mixins/index.styl")},
			content: "@import 'reset.css';\n@import 'http://x.test/y.css';\nbody {\n  margin: 0;\n}\n",
		},
		{
			name:       "include css",
			includeCSS: true,
			refs: []string{
				filepath.FromSlash("/app/styles/vars.styl"),
				filepath.FromSlash("/lib/mixins/index.styl"),
				filepath.FromSlash("/app/styles/reset.css"),
			},
			content: "@import 'http://x.test/y.css';\nbody {\n  margin: 0;\n}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := config.LoaderSpec{Kind: config.KindStylus, Options: &config.StylusOptions{Include: []string{"/lib"}, IncludeCSS: tt.includeCSS}}
			out := transform(t, spec, Env{FS: fs}, "/app/styles/main.styl", src)
			if !equalStrings(out.References, tt.refs) {
				t.Fatalf("references = %v, want %v", out.References, tt.refs)
			}
			if out.Content != tt.content {
				t.Fatalf("Content = %q, want %q", out.Content, tt.content)
			}
		})
	}
}

func TestStylusRejectsStrayProperty(t *testing.T) {
	l, err := New(config.LoaderSpec{Kind: config.KindStylus}, Env{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Transform(context.Background(), &Input{Path: "/s.styl", Content: "color red\n"}); err == nil {
		t.Fatal("expected error for a property outside of a rule")
	}
}

func TestScanCSSReferences(t *testing.T) {
	src := `@import url("reset.css");
@import '~normalize.css/normalize.css';
/* url(commented.png) */
.logo { background: url(images/logo.png?v=2); }
.remote { background: url("https://cdn.example.com/x.png"); }
.inline { background: url(data:image/png;base64,AAAA); }
.font { src: url('../fonts/a.woff2#iefix'); }
`
	want := []string{"./reset.css", "normalize.css/normalize.css", "./images/logo.png", "../fonts/a.woff2"}
	if got := ScanCSSReferences(src); !equalStrings(got, want) {
		t.Fatalf("references = %v, want %v", got, want)
	}
}

func TestStyleLoaderWrapsCSS(t *testing.T) {
	out := transform(t, config.LoaderSpec{Kind: config.KindStyle}, Env{}, "/app/s.css", "a { content: \"x\"; }\n")
	if !strings.Contains(out.Content, `document.createTextNode("a { content: \"x\"; }\n")`) {
		t.Fatalf("Content = %s", out.Content)
	}
	if !strings.Contains(out.Content, `"data-source", "s.css"`) {
		t.Fatalf("missing data-source: %s", out.Content)
	}
}

func TestTemplateReferences(t *testing.T) {
	src := "extends /layouts/base\n\nblock content\n  include partials/header.pug\n  include:markdown-it notes.md\n  p hello\n"
	spec := config.LoaderSpec{Kind: config.KindTemplate, Options: &config.TemplateOptions{RootDir: "/app/templates"}}
	out := transform(t, spec, Env{}, "/app/templates/pages/index.pug", src)
	want := []string{
		filepath.FromSlash("/app/templates/layouts/base.pug"),
		filepath.FromSlash("/app/templates/pages/partials/header.pug"),
		filepath.FromSlash("/app/templates/pages/notes.md"),
	}
	if !equalStrings(out.References, want) {
		t.Fatalf("references = %v, want %v", out.References, want)
	}
	if !strings.HasPrefix(out.Content, "module.exports = \"extends /layouts/base\\n") {
		t.Fatalf("Content = %q", out.Content)
	}
}

func TestExecLoader(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	spec := config.LoaderSpec{Kind: config.KindExec, ID: "upper", Options: &config.ExecOptions{
		Command: "sh",
		Args:    []string{"-c", "tr a-z A-Z"},
		Timeout: 5 * time.Second,
	}}
	out := transform(t, spec, Env{}, "/app/a.txt", "hello\n")
	if out.Content != "HELLO\n" {
		t.Fatalf("Content = %q", out.Content)
	}

	failing, err := New(config.LoaderSpec{Kind: config.KindExec, ID: "fail", Options: &config.ExecOptions{
		Command: "sh",
		Args:    []string{"-c", "echo bad input >&2; exit 3"},
	}}, Env{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = failing.Transform(context.Background(), &Input{Path: "/a", Content: ""})
	if err == nil || !strings.Contains(err.Error(), "bad input") {
		t.Fatalf("expected stderr in error, got %v", err)
	}

	slow, err := New(config.LoaderSpec{Kind: config.KindExec, ID: "slow", Options: &config.ExecOptions{
		Command: "sh",
		Args:    []string{"-c", "exec sleep 5"},
		Timeout: 50 * time.Millisecond,
	}}, Env{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = slow.Transform(context.Background(), &Input{Path: "/a", Content: ""})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout, got %v", err)
	}
}
