package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/andrewscwei/minuet/internal/buildpipeline"
	"github.com/andrewscwei/minuet/internal/config"
)

const noConfigMessage = `no minuet.toml found in the current directory or any parent.
Run "minuet init" to create one, or pass the configuration file explicitly.`

var buildCmd = &cobra.Command{
	Use:   "build [flags] [config]",
	Short: "Bundle assets",
	Long:  "Bundle assets as described by a minuet configuration file (minuet.toml, .yaml or .json).",
	Args:  cobra.MaximumNArgs(1),
	RunE:  buildExecution,
}

func buildExecution(cmd *cobra.Command, args []string) error {
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	formatValue, err := cmd.Flags().GetString("manifest-format")
	if err != nil {
		return err
	}
	root := cmd.Root().PersistentFlags()
	quiet, err := root.GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := root.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	maxDiagnostics, err := root.GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	if jobs < 0 {
		return fmt.Errorf("--jobs must not be negative, got %d", jobs)
	}

	cfgPath, err := locateConfig(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if jobs > 0 {
		cfg.Jobs = jobs
	}
	if formatValue != "" {
		format, ferr := readManifestFormat(formatValue)
		if ferr != nil {
			return ferr
		}
		cfg.Output.ManifestFormat = format
	}

	req := buildpipeline.Request{
		Config:         cfg,
		FS:             osfs.New("/"),
		WriteManifest:  true,
		MaxDiagnostics: maxDiagnostics,
	}

	var res buildpipeline.Result
	if shouldUseTUI(mode, quiet) {
		res, err = runBuildWithUI(cmd.Context(), "minuet build", &req)
	} else {
		if logger := zerolog.Ctx(cmd.Context()); logger.GetLevel() <= zerolog.DebugLevel {
			req.Progress = logProgress(logger)
		}
		res, err = buildpipeline.Build(cmd.Context(), &req)
	}
	out := cmd.OutOrStdout()
	if showTimings {
		if terr := printStageTimings(out, res.Timings); terr != nil {
			return terr
		}
	}
	if err != nil {
		return err
	}
	if quiet {
		return nil
	}
	return printBuildSummary(out, cfg, res)
}

// logProgress reports per-file progress and finished stages at debug level.
func logProgress(logger *zerolog.Logger) buildpipeline.ProgressSink {
	return buildpipeline.SinkFunc(func(ev buildpipeline.Event) {
		if ev.File == "" && ev.Status == buildpipeline.StatusWorking {
			return
		}
		e := logger.Debug().Str("stage", string(ev.Stage)).Str("status", string(ev.Status))
		if ev.File != "" {
			e = e.Str("file", ev.File)
		}
		if ev.Elapsed > 0 {
			e = e.Dur("elapsed", ev.Elapsed)
		}
		if ev.Err != nil {
			e = e.Err(ev.Err)
		}
		e.Msg("progress")
	})
}

func locateConfig(args []string) (string, error) {
	if len(args) == 1 {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return "", err
		}
		st, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		if !st.IsDir() {
			return path, nil
		}
		found, ok, err := config.Find(path)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errors.New(noConfigMessage)
		}
		return found, nil
	}
	found, ok, err := config.Find(".")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New(noConfigMessage)
	}
	return found, nil
}

func readManifestFormat(value string) (config.ManifestFormat, error) {
	switch config.ManifestFormat(strings.TrimSpace(strings.ToLower(value))) {
	case config.ManifestJSON:
		return config.ManifestJSON, nil
	case config.ManifestMsgpack:
		return config.ManifestMsgpack, nil
	default:
		return "", fmt.Errorf("invalid --manifest-format value %q (expected json|msgpack)", value)
	}
}

func printBuildSummary(out io.Writer, cfg *config.Config, res buildpipeline.Result) error {
	if res.Manifest == nil {
		return nil
	}
	for _, rec := range res.Manifest.Records {
		if _, err := fmt.Fprintf(out, "wrote %s (%s, %d modules)\n", rec.File, formatSize(rec.Size), len(rec.Modules)); err != nil {
			return err
		}
		if rec.MapFile != "" {
			if _, err := fmt.Fprintf(out, "wrote %s\n", rec.MapFile); err != nil {
				return err
			}
		}
	}
	if res.ManifestPath != "" {
		if _, err := fmt.Fprintf(out, "wrote %s\n", formatPathForOutput(cfg.Output.Root, res.ManifestPath)); err != nil {
			return err
		}
	}
	if aux := cfg.Auxiliary; aux != nil {
		if _, err := fmt.Fprintf(out, "wrote %s\n", formatPathForOutput(cfg.Output.Root, aux.OutputPath)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "built %d chunk(s) from %d module(s) into %s\n", len(res.Chunks), res.Graph.Len(), formatPathForOutput(cfg.Context, cfg.Output.Root))
	return err
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	if strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func init() {
	buildCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
	buildCmd.Flags().Int("jobs", 0, "parallel module loads (0 uses the config value)")
	buildCmd.Flags().String("manifest-format", "", "manifest encoding (json|msgpack), overrides the config")
}
