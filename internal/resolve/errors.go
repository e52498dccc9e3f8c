package resolve

import (
	"fmt"
	"strings"
)

// ResolutionError reports a specifier that matched no candidate file.
type ResolutionError struct {
	Specifier string
	From      string   // importing directory
	Tried     []string // candidate paths in probe order
}

func (e *ResolutionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cannot resolve %q from %s", e.Specifier, e.From)
	if len(e.Tried) > 0 {
		sb.WriteString(" (tried ")
		sb.WriteString(strings.Join(e.Tried, ", "))
		sb.WriteString(")")
	}
	return sb.String()
}
