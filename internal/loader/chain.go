package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/andrewscwei/minuet/internal/config"
)

// passThrough lists extensions of opaque assets that are copied verbatim when
// no rule claims them.
var passThrough = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {},
	".ico": {}, ".bmp": {}, ".avif": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	".mp3": {}, ".mp4": {}, ".ogg": {}, ".wav": {}, ".webm": {},
	".pdf": {}, ".txt": {}, ".json": {},
}

// IsPassThrough reports whether path is an opaque asset.
func IsPassThrough(path string) bool {
	_, ok := passThrough[strings.ToLower(filepath.Ext(path))]
	return ok
}

type compiledRule struct {
	rule  config.Rule
	chain []Loader
}

// Rules selects loader chains by file path. Chains are built once and shared
// by every module they apply to.
type Rules struct {
	rules    []compiledRule
	identity []Loader
}

// NewRules builds the chains of every rule.
func NewRules(rules []config.Rule, env Env) (*Rules, error) {
	out := &Rules{
		rules:    make([]compiledRule, 0, len(rules)),
		identity: []Loader{&identityLoader{base: base{id: string(config.KindIdentity), kind: config.KindIdentity}}},
	}
	for i, r := range rules {
		chain, err := NewChain(r.Chain, env)
		if err != nil {
			return nil, fmt.Errorf("loaderRules[%d]: %w", i, err)
		}
		out.rules = append(out.rules, compiledRule{rule: r, chain: chain})
	}
	return out, nil
}

// Select returns the chain of the first rule, in declared order, that claims
// path. Unclaimed pass-through assets get a one-stage identity chain; any
// other unclaimed path fails with *NoLoaderError.
func (r *Rules) Select(path string) ([]Loader, error) {
	slashed := filepath.ToSlash(path)
	for _, cr := range r.rules {
		if cr.rule.Matches(slashed) {
			return cr.chain, nil
		}
	}
	if IsPassThrough(path) {
		return r.identity, nil
	}
	return nil, &NoLoaderError{Path: path}
}

// Run threads raw through chain. The returned references are the union of
// every stage's references in first-seen order. The first failing stage
// aborts the chain with *LoaderError.
func Run(ctx context.Context, chain []Loader, raw, path string) (*Output, error) {
	logger := zerolog.Ctx(ctx)
	in := &Input{Path: path, Content: raw}
	var refs refSet
	for _, l := range chain {
		if err := ctx.Err(); err != nil {
			return nil, &LoaderError{LoaderID: l.ID(), Path: path, Cause: err}
		}
		out, err := l.Transform(ctx, in)
		if err != nil {
			logger.Debug().Str("loader", l.ID()).Str("path", path).Err(err).Msg("loader failed")
			return nil, &LoaderError{LoaderID: l.ID(), Path: path, Cause: err}
		}
		if out == nil {
			return nil, &LoaderError{LoaderID: l.ID(), Path: path, Cause: fmt.Errorf("loader returned no output")}
		}
		refs.addAll(out.References)
		next := &Input{Path: path, Content: out.Content, Map: out.Map}
		if out.Map == nil && out.Content == in.Content {
			next.Map = in.Map
		}
		logger.Trace().Str("loader", l.ID()).Str("path", path).Int("refs", len(out.References)).Msg("stage done")
		in = next
	}
	return &Output{Content: in.Content, References: refs.list, Map: in.Map}, nil
}
