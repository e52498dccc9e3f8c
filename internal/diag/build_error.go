package diag

import (
	"fmt"
	"strings"
)

// BuildError is the aggregate failure surfaced to callers of a build. It
// carries every diagnostic collected before the build gave up.
type BuildError struct {
	Phase       string
	Diagnostics []Diagnostic
	Dropped     int
}

// NewBuildError freezes bag into a BuildError. It returns nil when the bag
// holds no errors.
func NewBuildError(phase string, bag *Bag) *BuildError {
	if bag == nil || !bag.HasErrors() {
		return nil
	}
	bag.Sort()
	return &BuildError{
		Phase:       phase,
		Diagnostics: bag.Items(),
		Dropped:     bag.Dropped(),
	}
}

func (e *BuildError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	n := e.count()
	if n == 1 {
		fmt.Fprintf(&b, "%s failed with 1 error", e.Phase)
	} else {
		fmt.Fprintf(&b, "%s failed with %d errors", e.Phase, n)
	}
	for _, d := range e.Diagnostics {
		if d.Severity < SevError {
			continue
		}
		b.WriteString("\n  ")
		b.WriteString(d.String())
	}
	if e.Dropped > 0 {
		fmt.Fprintf(&b, "\n  ... %d more not shown", e.Dropped)
	}
	return b.String()
}

func (e *BuildError) count() int {
	n := e.Dropped
	for _, d := range e.Diagnostics {
		if d.Severity >= SevError {
			n++
		}
	}
	return n
}

// Unwrap exposes the typed cause of every diagnostic to errors.Is/As.
func (e *BuildError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		if d.Err != nil {
			out = append(out, d.Err)
		}
	}
	return out
}

// Errors returns the diagnostic causes that are errors.
func (e *BuildError) Errors() []error {
	return e.Unwrap()
}
