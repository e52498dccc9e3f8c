package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/diag"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	codeColor    = color.New(color.Faint)
	pathColor    = color.New(color.Bold)
)

// printError renders err for humans. Build errors list every diagnostic,
// anything else is printed as one line.
func printError(out io.Writer, err error) {
	var berr *diag.BuildError
	if errors.As(err, &berr) {
		printDiagnostics(out, berr)
		return
	}
	var cerr *config.ConfigError
	if errors.As(err, &cerr) {
		fmt.Fprintln(out, formatDiagnostic(diag.Diagnostic{Severity: diag.SevError, Code: diag.CfgInvalid, Message: cerr.Error()}))
		return
	}
	fmt.Fprintf(out, "%s %v\n", errorColor.Sprint("error:"), err)
}

func printDiagnostics(out io.Writer, berr *diag.BuildError) {
	for _, d := range berr.Diagnostics {
		fmt.Fprintln(out, formatDiagnostic(d))
	}
	if berr.Dropped > 0 {
		fmt.Fprintf(out, "... %d more diagnostics not shown (raise --max-diagnostics)\n", berr.Dropped)
	}
	n := len(berr.Errors()) + berr.Dropped
	fmt.Fprintf(out, "%s %s failed with %d error(s)\n", errorColor.Sprint("error:"), berr.Phase, n)
}

func formatDiagnostic(d diag.Diagnostic) string {
	sev := infoColor
	switch d.Severity {
	case diag.SevError:
		sev = errorColor
	case diag.SevWarning:
		sev = warningColor
	}
	head := fmt.Sprintf("%s %s", sev.Sprint(d.Severity.String()), codeColor.Sprint(d.Code.ID()))
	if d.Path != "" {
		return fmt.Sprintf("%s %s: %s", head, pathColor.Sprint(d.Path), d.Message)
	}
	return fmt.Sprintf("%s %s", head, d.Message)
}
