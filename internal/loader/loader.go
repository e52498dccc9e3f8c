package loader

import (
	"context"
	"fmt"

	billy "github.com/go-git/go-billy/v5"

	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/sourcemap"
)

// Input is what one stage of a chain receives.
type Input struct {
	Path    string // absolute path of the module
	Content string
	Map     *sourcemap.Map // map of Content back to the raw file, may be nil
}

// Output is what one stage produces. A nil Map with unchanged Content keeps
// the input map; a nil Map with changed Content drops it.
type Output struct {
	Content    string
	References []string
	Map        *sourcemap.Map
}

// Loader transforms a single file's content.
type Loader interface {
	ID() string
	Kind() config.Kind
	Transform(ctx context.Context, in *Input) (*Output, error)
}

// Env carries what loaders may need beyond the content itself.
type Env struct {
	// FS is probed by loaders that pre-resolve references (sass include
	// paths). May be nil, in which case references are reported unresolved.
	FS billy.Filesystem
}

type base struct {
	id   string
	kind config.Kind
}

func (b base) ID() string        { return b.id }
func (b base) Kind() config.Kind { return b.kind }

// New builds the loader described by spec.
func New(spec config.LoaderSpec, env Env) (Loader, error) {
	id := spec.ID
	if id == "" {
		id = string(spec.Kind)
	}
	b := base{id: id, kind: spec.Kind}
	switch spec.Kind {
	case config.KindIdentity, config.KindRaw:
		return &identityLoader{base: b}, nil
	case config.KindScript:
		opts, err := optionsAs[config.ScriptOptions](spec)
		if err != nil {
			return nil, err
		}
		return &scriptLoader{base: b, opts: opts}, nil
	case config.KindSass:
		opts, err := optionsAs[config.SassOptions](spec)
		if err != nil {
			return nil, err
		}
		if opts.OutputStyle == "" {
			opts.OutputStyle = config.StyleExpanded
		}
		return &sassLoader{base: b, opts: opts, fs: env.FS}, nil
	case config.KindStylus:
		opts, err := optionsAs[config.StylusOptions](spec)
		if err != nil {
			return nil, err
		}
		if opts.OutputStyle == "" {
			opts.OutputStyle = config.StyleExpanded
		}
		return &stylusLoader{base: b, opts: opts, fs: env.FS}, nil
	case config.KindCSS:
		opts, err := optionsAs[config.CSSOptions](spec)
		if err != nil {
			return nil, err
		}
		return &cssLoader{base: b, opts: opts}, nil
	case config.KindStyle:
		return &styleLoader{base: b}, nil
	case config.KindTemplate:
		opts, err := optionsAs[config.TemplateOptions](spec)
		if err != nil {
			return nil, err
		}
		return &templateLoader{base: b, opts: opts}, nil
	case config.KindExec:
		opts, err := optionsAs[config.ExecOptions](spec)
		if err != nil {
			return nil, err
		}
		if opts.Command == "" {
			return nil, fmt.Errorf("loader %s: exec loader requires a command", id)
		}
		if opts.Timeout <= 0 {
			opts.Timeout = config.DefaultExecTimeout
		}
		return &execLoader{base: b, opts: opts}, nil
	default:
		return nil, fmt.Errorf("loader %s: unknown kind %q", id, spec.Kind)
	}
}

// optionsAs returns a copy of spec.Options as T; a nil Options yields T's
// zero value.
func optionsAs[T any](spec config.LoaderSpec) (T, error) {
	var zero T
	switch o := spec.Options.(type) {
	case nil:
		return zero, nil
	case *T:
		if o == nil {
			return zero, nil
		}
		return *o, nil
	case T:
		return o, nil
	default:
		return zero, fmt.Errorf("loader %s: options of type %T do not match kind %q", spec.ID, spec.Options, spec.Kind)
	}
}

// NewChain builds loaders for specs in order.
func NewChain(specs []config.LoaderSpec, env Env) ([]Loader, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("empty loader chain")
	}
	chain := make([]Loader, 0, len(specs))
	for _, spec := range specs {
		l, err := New(spec, env)
		if err != nil {
			return nil, err
		}
		chain = append(chain, l)
	}
	return chain, nil
}

// refSet collects references preserving first-seen order.
type refSet struct {
	list []string
	seen map[string]struct{}
}

func (s *refSet) add(ref string) {
	if ref == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[ref]; ok {
		return
	}
	s.seen[ref] = struct{}{}
	s.list = append(s.list, ref)
}

func (s *refSet) addAll(refs []string) {
	for _, r := range refs {
		s.add(r)
	}
}
