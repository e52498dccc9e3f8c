package naming

import "testing"

func TestParseAndRender(t *testing.T) {
	v := Values{Name: "main", Hash: "0123456789abcdef", ChunkHash: "fedcba9876543210", ID: 3}
	tests := []struct {
		tmpl string
		want string
	}{
		{"{name}.js", "main.js"},
		{"[name].js", "main.js"},
		{"[chunkhash].js", "fedcba9876543210.js"},
		{"{name}-{hash:8}.js", "main-01234567.js"},
		{"chunks/{id}.{chunkhash:4}.js", "chunks/3.fedc.js"},
		{"{NAME}.map", "main.map"},
		{"static.js", "static.js"},
		{"{hash:64}.js", "0123456789abcdef.js"},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			tmpl, err := Parse(tt.tmpl)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.tmpl, err)
			}
			if got := tmpl.Render(v); got != tt.want {
				t.Fatalf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	bad := []string{
		"",
		"{file}.js",
		"[ext]",
		"{name",
		"{hash:x}.js",
		"{hash:0}.js",
		"{name:3}.js",
	}
	for _, tmpl := range bad {
		if _, err := Parse(tmpl); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", tmpl)
		}
	}
}

func TestUses(t *testing.T) {
	tmpl := MustParse("{name}.{chunkhash}.js")
	if !tmpl.Uses(Name) || !tmpl.Uses(ChunkHash) || tmpl.Uses(Hash) {
		t.Fatalf("Uses mismatch for %q", tmpl)
	}
}

func TestRenderPathStaysUnderRoot(t *testing.T) {
	if _, err := MustParse("../{name}.js").RenderPath(Values{Name: "x"}); err == nil {
		t.Fatal("expected escape error")
	}
	if _, err := MustParse("/{name}.js").RenderPath(Values{Name: "x"}); err == nil {
		t.Fatal("expected absolute path error")
	}
	got, err := MustParse("js/./{name}.js").RenderPath(Values{Name: "x"})
	if err != nil || got != "js/x.js" {
		t.Fatalf("RenderPath = %q, %v", got, err)
	}
}
