package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/andrewscwei/minuet/internal/buildpipeline"
	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/diag"
	"github.com/andrewscwei/minuet/internal/loader"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--color", "off"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStarterConfigLoads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minuet.toml")
	if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("starter config does not load: %v", err)
	}
	if len(cfg.Entries) != 1 || cfg.Entries[0].Name != "main" {
		t.Fatalf("entries = %+v", cfg.Entries)
	}
	if cfg.Output.Root != filepath.Join(dir, "public") {
		t.Fatalf("output root = %q", cfg.Output.Root)
	}
	if len(cfg.Rules) != 2 || len(cfg.Rules[1].Chain) != 3 {
		t.Fatalf("rules = %+v", cfg.Rules)
	}
}

func TestInitThenBuild(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "init", dir)
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "minuet.toml") {
		t.Fatalf("init output: %s", out)
	}
	if _, err := execute(t, "init", dir); err == nil {
		t.Fatal("second init should refuse to overwrite minuet.toml")
	}

	cfg, err := config.Load(filepath.Join(dir, "minuet.toml"))
	if err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "build", "--ui", "off", dir)
	if err != nil {
		t.Fatalf("build: %v\n%s", err, out)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Output.Root, "main.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello from minuet") {
		t.Fatalf("main.js = %q", data)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Root, "manifest.json")); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if !strings.Contains(out, "wrote main.js") {
		t.Fatalf("build output: %s", out)
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if payload["tool"] != "minuet" || payload["version"] == "" {
		t.Fatalf("payload = %v", payload)
	}
	versionFormat = "pretty"
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, "on": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Error("expected error for invalid mode")
	}
	if !shouldUseTUI(uiModeOn, true) || shouldUseTUI(uiModeOff, false) {
		t.Error("explicit modes must win")
	}
}

func TestReadManifestFormat(t *testing.T) {
	if f, err := readManifestFormat("MsgPack"); err != nil || f != config.ManifestMsgpack {
		t.Fatalf("got %q, %v", f, err)
	}
	if _, err := readManifestFormat("xml"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "info", false)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("log output = %q", buf.String())
	}
	if _, err := newLogger(&buf, "loud", false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestPrintStageTimings(t *testing.T) {
	var timings buildpipeline.Timings
	timings.Set(buildpipeline.StageLoad, 2*time.Millisecond)
	timings.Set(buildpipeline.StageEmit, time.Millisecond)
	var buf bytes.Buffer
	if err := printStageTimings(&buf, timings); err != nil {
		t.Fatal(err)
	}
	want := "loaded 2.0 ms\nemitted 1.0 ms\ntotal 3.0 ms\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestPrintError(t *testing.T) {
	defer func(orig bool) { color.NoColor = orig }(color.NoColor)
	color.NoColor = true

	bag := diag.NewBag(10)
	bag.Add(diag.FromError(diag.LdrFailed, "/app/style.scss", &loader.LoaderError{LoaderID: "sass-to-css", Path: "/app/style.scss", Cause: errors.New("unclosed '{'")}))
	var buf bytes.Buffer
	printError(&buf, diag.NewBuildError("graph", bag))
	got := buf.String()
	for _, want := range []string{"ERROR LDR3001 /app/style.scss:", "sass-to-css", "graph failed with 1 error(s)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}

	buf.Reset()
	printError(&buf, &config.ConfigError{Field: "entries.main", Msg: "duplicate entry name"})
	if buf.String() != "ERROR CFG1000 config: entries.main: duplicate entry name\n" {
		t.Fatalf("got %q", buf.String())
	}

	buf.Reset()
	printError(&buf, errors.New("plain"))
	if buf.String() != "error: plain\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	sink := logProgress(&logger)
	sink.OnEvent(buildpipeline.Event{Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusWorking})
	sink.OnEvent(buildpipeline.Event{File: "a.js", Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusDone})
	sink.OnEvent(buildpipeline.Event{Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusDone, Elapsed: time.Millisecond})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d:\n%s", len(lines), buf.String())
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first["file"] != "a.js" || first["stage"] != "load" || first["status"] != "done" {
		t.Fatalf("unexpected entry %v", first)
	}
	if !strings.Contains(lines[1], `"elapsed"`) {
		t.Fatalf("stage entry lacks elapsed: %s", lines[1])
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int]string{12: "12 B", 2048: "2.0 KiB", 3 << 20: "3.0 MiB"}
	for n, want := range tests {
		if got := formatSize(n); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", n, got, want)
		}
	}
}
