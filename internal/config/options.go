package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Kind names a built-in loader implementation.
type Kind string

const (
	KindIdentity Kind = "identity"
	KindRaw      Kind = "raw"
	KindScript   Kind = "script"
	KindSass     Kind = "sass"
	KindStylus   Kind = "stylus"
	KindCSS      Kind = "css"
	KindStyle    Kind = "style"
	KindTemplate Kind = "template"
	KindExec     Kind = "exec"
)

// kindAliases maps conventional loader package names onto built-in kinds.
var kindAliases = map[string]Kind{
	"babel":         KindScript,
	"babel-loader":  KindScript,
	"sass-loader":   KindSass,
	"stylus":        KindStylus,
	"stylus-loader": KindStylus,
	"styl":          KindStylus,
	"scss":          KindSass,
	"css-loader":    KindCSS,
	"style-loader":  KindStyle,
	"pug":           KindTemplate,
	"pug-loader":    KindTemplate,
	"raw-loader":    KindRaw,
	"file":          KindRaw,
	"file-loader":   KindRaw,
	"exec-loader":   KindExec,
	"identity":      KindIdentity,
	"raw":           KindRaw,
	"script":        KindScript,
	"sass":          KindSass,
	"css":           KindCSS,
	"style":         KindStyle,
	"template":      KindTemplate,
	"exec":          KindExec,
	"passthrough":   KindIdentity,
	"pass-through":  KindIdentity,
}

// ParseKind maps a loader name to its kind.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// KnownKinds lists the accepted loader names, sorted.
func KnownKinds() []string {
	out := make([]string, 0, len(kindAliases))
	for name := range kindAliases {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Output styles accepted by the sass loader.
const (
	StyleExpanded   = "expanded"
	StyleCompact    = "compact"
	StyleCompressed = "compressed"
)

// LoaderSpec is one validated element of a loader chain.
type LoaderSpec struct {
	Kind Kind
	// ID labels the loader in diagnostics; defaults to the name written in
	// the configuration.
	ID      string
	Options any // one of the *Options structs below, matching Kind
}

type IdentityOptions struct{}

type ScriptOptions struct {
	SourceMap bool `mapstructure:"sourceMap"`
}

type SassOptions struct {
	IncludePaths []string `mapstructure:"includePaths"`
	OutputStyle  string   `mapstructure:"outputStyle"`
	SourceMap    bool     `mapstructure:"sourceMap"`
}

// StylusOptions follow stylus-loader: Include lists extra import
// directories and IncludeCSS bundles imported local .css files as modules
// instead of keeping the @import.
type StylusOptions struct {
	Include     []string `mapstructure:"include"`
	IncludeCSS  bool     `mapstructure:"includeCss"`
	OutputStyle string   `mapstructure:"outputStyle"`
	SourceMap   bool     `mapstructure:"sourceMap"`
}

type CSSOptions struct {
	SourceMap bool `mapstructure:"sourceMap"`
}

type StyleOptions struct{}

type TemplateOptions struct {
	RootDir string `mapstructure:"rootDir"`
}

type ExecOptions struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultExecTimeout bounds an exec loader when no timeout is configured.
const DefaultExecTimeout = 30 * time.Second

func newOptions(kind Kind) any {
	switch kind {
	case KindIdentity, KindRaw:
		return &IdentityOptions{}
	case KindScript:
		return &ScriptOptions{}
	case KindSass:
		return &SassOptions{}
	case KindStylus:
		return &StylusOptions{}
	case KindCSS:
		return &CSSOptions{}
	case KindStyle:
		return &StyleOptions{}
	case KindTemplate:
		return &TemplateOptions{}
	case KindExec:
		return &ExecOptions{}
	}
	return nil
}

// decodeOptions strictly decodes raw into the options struct for kind:
// unknown keys are rejected.
func decodeOptions(kind Kind, raw map[string]any) (any, error) {
	out := newOptions(kind)
	if out == nil {
		return nil, fmt.Errorf("unknown loader kind %q", kind)
	}
	if len(raw) == 0 {
		return out, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(";"),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return out, nil
}

// finishOptions applies defaults, validates values and absolutizes paths.
func finishOptions(field string, opts any, context string) *ConfigError {
	switch o := opts.(type) {
	case *SassOptions:
		if cerr := checkOutputStyle(field, &o.OutputStyle); cerr != nil {
			return cerr
		}
		for i, p := range o.IncludePaths {
			if strings.TrimSpace(p) == "" {
				return fieldErr(fmt.Sprintf("%s.includePaths[%d]", field, i), "empty path")
			}
			o.IncludePaths[i] = absPath(context, p)
		}
	case *StylusOptions:
		if cerr := checkOutputStyle(field, &o.OutputStyle); cerr != nil {
			return cerr
		}
		for i, p := range o.Include {
			if strings.TrimSpace(p) == "" {
				return fieldErr(fmt.Sprintf("%s.include[%d]", field, i), "empty path")
			}
			o.Include[i] = absPath(context, p)
		}
	case *TemplateOptions:
		if o.RootDir == "" {
			o.RootDir = context
		} else {
			o.RootDir = absPath(context, o.RootDir)
		}
	case *ExecOptions:
		if strings.TrimSpace(o.Command) == "" {
			return fieldErr(field+".command", "exec loader requires a command")
		}
		if o.Timeout < 0 {
			return fieldErr(field+".timeout", "negative timeout %s", o.Timeout)
		}
		if o.Timeout == 0 {
			o.Timeout = DefaultExecTimeout
		}
	}
	return nil
}

func checkOutputStyle(field string, style *string) *ConfigError {
	switch *style {
	case "":
		*style = StyleExpanded
	case StyleExpanded, StyleCompact, StyleCompressed:
	default:
		return fieldErr(field+".outputStyle", "unsupported output style %q (expected expanded|compact|compressed)", *style)
	}
	return nil
}

func absPath(base, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
