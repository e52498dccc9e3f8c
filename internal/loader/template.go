package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/andrewscwei/minuet/internal/config"
)

var templateRefRe = regexp.MustCompile(`(?m)^[ \t]*(?:include(?::[\w-]+)?|extends)[ \t]+(\S+)[ \t]*$`)

const templateExt = ".pug"

// templateLoader stands in for a template compiler: it reports include and
// extends references and exports the template source as a string module.
// Absolute references are anchored at RootDir, others at the template's
// directory.
type templateLoader struct {
	base
	opts config.TemplateOptions
}

func (l *templateLoader) Transform(_ context.Context, in *Input) (*Output, error) {
	var refs refSet
	for _, m := range templateRefRe.FindAllStringSubmatch(in.Content, -1) {
		ref, err := l.reference(m[1], filepath.Dir(in.Path))
		if err != nil {
			return nil, err
		}
		refs.add(ref)
	}
	body, err := json.Marshal(in.Content)
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	return &Output{
		Content:    "module.exports = " + string(body) + ";\n",
		References: refs.list,
	}, nil
}

func (l *templateLoader) reference(spec, fromDir string) (string, error) {
	spec = strings.Trim(spec, `'"`)
	if spec == "" {
		return "", fmt.Errorf("empty include path")
	}
	p := filepath.FromSlash(spec)
	var abs string
	if strings.HasPrefix(spec, "/") {
		if l.opts.RootDir == "" {
			return "", fmt.Errorf("absolute include %q requires rootDir", spec)
		}
		abs = filepath.Join(l.opts.RootDir, p)
	} else {
		abs = filepath.Join(fromDir, p)
	}
	if filepath.Ext(abs) == "" {
		abs += templateExt
	}
	return abs, nil
}
