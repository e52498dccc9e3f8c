package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// styleLoader wraps a stylesheet into a script that appends it to the
// document head when evaluated.
type styleLoader struct {
	base
}

func (l *styleLoader) Transform(_ context.Context, in *Input) (*Output, error) {
	css, err := json.Marshal(in.Content)
	if err != nil {
		return nil, fmt.Errorf("encode stylesheet: %w", err)
	}
	source, err := json.Marshal(filepath.ToSlash(filepath.Base(in.Path)))
	if err != nil {
		return nil, fmt.Errorf("encode stylesheet name: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("(function () {\n")
	sb.WriteString("  if (typeof document === \"undefined\") return;\n")
	sb.WriteString("  var style = document.createElement(\"style\");\n")
	fmt.Fprintf(&sb, "  style.setAttribute(\"data-source\", %s);\n", source)
	fmt.Fprintf(&sb, "  style.appendChild(document.createTextNode(%s));\n", css)
	sb.WriteString("  document.head.appendChild(style);\n")
	sb.WriteString("})();\n")
	return &Output{Content: sb.String()}, nil
}
