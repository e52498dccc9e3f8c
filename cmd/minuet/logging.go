package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// setupOutput applies --color and attaches a logger built from --log-level
// to the command context.
func setupOutput(cmd *cobra.Command, _ []string) error {
	root := cmd.Root()

	colorValue, err := root.PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	useColor, err := readColorMode(colorValue)
	if err != nil {
		return err
	}
	color.NoColor = !useColor

	levelStr, err := root.PersistentFlags().GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}
	logger, err := newLogger(cmd.ErrOrStderr(), levelStr, useColor)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithContext(ctx)
	cmd.SetContext(ctx)
	return nil
}

func readColorMode(value string) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return isTerminal(os.Stdout) && os.Getenv("NO_COLOR") == "", nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

func newLogger(out io.Writer, level string, useColor bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.TrimSpace(strings.ToLower(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	w := zerolog.ConsoleWriter{Out: out, NoColor: !useColor, TimeFormat: "15:04:05"}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
