package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleTOML = `
context = "app"
outputRoot = "../public"
filenameTemplate = "[name].js"
chunkFilenameTemplate = "[chunkhash].js"
sourceMapFilenameTemplate = "[name].map"
publicPath = "/javascripts/"

[entries]
main = "./main.js"

[resolve]
extensions = ["", ".js"]
searchRoots = ["scripts", "../node_modules"]

[[loaderRules]]
test = '/\.jsx?$/'
exclude = "node_modules"
chain = ["babel-loader"]

[[loaderRules]]
test = '/\.s?css$/'
chain = [
  { loader = "sass-loader", options = { includePaths = ["scripts/stylesheets"], outputStyle = "expanded", sourceMap = true } },
  { loader = "css-loader", options = { sourceMap = true } },
  "style-loader",
]

[auxiliary]
template = "templates/index.html"
outputPath = "index.html"
inject = true
`

const sampleYAML = `
entries:
  main: ./index.js
outputRoot: public
resolve:
  searchRoots: [app]
loaderRules:
  - test: '\.js$'
    chain:
      - loader: script
        options:
          sourceMap: true
`

const sampleJSON = `{
  "entry": "./index.js",
  "outputRoot": "public",
  "resolve": {"searchRoots": ["app"]},
  "loaderRules": [{"test": "\\.js$", "chain": ["identity"]}]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minuet.toml")
	writeFile(t, path, sampleTOML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	app := filepath.Join(dir, "app")
	if cfg.Context != app {
		t.Fatalf("Context = %q, want %q", cfg.Context, app)
	}
	if cfg.Output.Root != filepath.Join(dir, "public") {
		t.Fatalf("Output.Root = %q", cfg.Output.Root)
	}
	if got := cfg.Resolve.SearchRoots; len(got) != 2 || got[0] != filepath.Join(app, "scripts") || got[1] != filepath.Join(dir, "node_modules") {
		t.Fatalf("SearchRoots = %v", got)
	}
	if got := cfg.Resolve.Extensions; len(got) != 2 || got[0] != "" || got[1] != ".js" {
		t.Fatalf("Extensions = %v", got)
	}
	if len(cfg.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(cfg.Rules))
	}
	if cfg.Rules[0].Matches("/x/node_modules/lib.js") {
		t.Fatalf("exclude pattern not applied")
	}
	chain := cfg.Rules[1].Chain
	if len(chain) != 3 || chain[0].Kind != KindSass || chain[1].Kind != KindCSS || chain[2].Kind != KindStyle {
		t.Fatalf("chain = %+v", chain)
	}
	sass := chain[0].Options.(*SassOptions)
	if len(sass.IncludePaths) != 1 || sass.IncludePaths[0] != filepath.Join(app, "scripts", "stylesheets") {
		t.Fatalf("includePaths = %v", sass.IncludePaths)
	}
	if cfg.Output.PublicPath != "/javascripts/" {
		t.Fatalf("PublicPath = %q", cfg.Output.PublicPath)
	}
	if cfg.Auxiliary == nil || cfg.Auxiliary.OutputPath != filepath.Join(dir, "public", "index.html") {
		t.Fatalf("Auxiliary = %+v", cfg.Auxiliary)
	}
}

func TestLoadYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "minuet.yaml")
	writeFile(t, yamlPath, sampleYAML)
	cfg, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if opts := cfg.Rules[0].Chain[0].Options.(*ScriptOptions); !opts.SourceMap {
		t.Fatalf("yaml script options = %+v", opts)
	}

	jsonPath := filepath.Join(dir, "minuet.json")
	writeFile(t, jsonPath, sampleJSON)
	cfg, err = Load(jsonPath)
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	if cfg.Entries[0].Name != DefaultEntryName {
		t.Fatalf("json entries = %+v", cfg.Entries)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minuet.toml")
	writeFile(t, path, "outputRoot = \"public\"\ndevtool = \"eval\"\n")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "minuet.yaml"), sampleYAML)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	path, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find: ok=%v err=%v", ok, err)
	}
	if path != filepath.Join(root, "minuet.yaml") {
		t.Fatalf("Find = %q", path)
	}
}
