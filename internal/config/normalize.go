package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/andrewscwei/minuet/internal/naming"
)

// Normalize validates raw and produces a Config. baseDir anchors a relative
// context (usually the directory holding the configuration file); an empty
// baseDir means the current directory. Relative paths other than context are
// resolved against the context directory; auxiliary.outputPath and manifest
// are resolved against outputRoot.
func Normalize(raw RawConfig, baseDir string) (*Config, error) {
	if baseDir == "" {
		baseDir = "."
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, wrapErr("context", fmt.Errorf("failed to resolve base directory: %w", err))
	}
	cfg := &Config{Context: base}
	if strings.TrimSpace(raw.Context) != "" {
		cfg.Context = absPath(base, raw.Context)
	}

	entries, cerr := normalizeEntries(raw)
	if cerr != nil {
		return nil, cerr
	}
	cfg.Entries = entries

	if cerr := normalizeOutput(raw, cfg); cerr != nil {
		return nil, cerr
	}

	if cerr := normalizeResolve(raw.Resolve, cfg); cerr != nil {
		return nil, cerr
	}

	rules := make([]Rule, 0, len(raw.LoaderRules))
	for i, rr := range raw.LoaderRules {
		rule, cerr := normalizeRule(fmt.Sprintf("loaderRules[%d]", i), rr, cfg.Context)
		if cerr != nil {
			return nil, cerr
		}
		rules = append(rules, rule)
	}
	cfg.Rules = rules

	if raw.Auxiliary != nil {
		aux := raw.Auxiliary
		if strings.TrimSpace(aux.Template) == "" {
			return nil, fieldErr("auxiliary.template", "missing template path")
		}
		if strings.TrimSpace(aux.OutputPath) == "" {
			return nil, fieldErr("auxiliary.outputPath", "missing output path")
		}
		cfg.Auxiliary = &Auxiliary{
			Template:   absPath(cfg.Context, aux.Template),
			OutputPath: absPath(cfg.Output.Root, aux.OutputPath),
			Inject:     aux.Inject,
		}
	}

	switch {
	case raw.Jobs < 0:
		return nil, fieldErr("jobs", "must not be negative, got %d", raw.Jobs)
	case raw.Jobs == 0:
		cfg.Jobs = runtime.GOMAXPROCS(0)
	default:
		cfg.Jobs = raw.Jobs
	}
	return cfg, nil
}

func normalizeEntries(raw RawConfig) ([]Entry, *ConfigError) {
	if raw.Entry != nil && raw.Entries != nil {
		return nil, fieldErr("entries", "both entry and entries are set")
	}
	field := "entries"
	val := raw.Entries
	if raw.Entry != nil {
		field = "entry"
		val = raw.Entry
	}
	var entries []Entry
	switch v := val.(type) {
	case nil:
		return nil, fieldErr("entries", "at least one entry is required")
	case string:
		entries = append(entries, Entry{Name: DefaultEntryName, Specifier: v})
	case map[string]any:
		for name, spec := range v {
			s, ok := spec.(string)
			if !ok {
				return nil, fieldErr(field+"."+name, "entry specifier must be a string, got %T", spec)
			}
			entries = append(entries, Entry{Name: name, Specifier: s})
		}
	case map[string]string:
		for name, spec := range v {
			entries = append(entries, Entry{Name: name, Specifier: spec})
		}
	default:
		return nil, fieldErr(field, "expected a string or a table of name = specifier, got %T", val)
	}
	if len(entries) == 0 {
		return nil, fieldErr(field, "at least one entry is required")
	}
	for i := range entries {
		entries[i].Name = strings.TrimSpace(entries[i].Name)
		entries[i].Specifier = strings.TrimSpace(entries[i].Specifier)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for i := range entries {
		e := &entries[i]
		if e.Name == "" {
			return nil, fieldErr(field, "entry name must not be empty")
		}
		if e.Name == commonChunkName {
			return nil, fieldErr(field+"."+e.Name, "entry name %q is reserved for the shared chunk", e.Name)
		}
		if e.Specifier == "" {
			return nil, fieldErr(field+"."+e.Name, "entry specifier must not be empty")
		}
		if i > 0 && entries[i-1].Name == e.Name {
			return nil, fieldErr(field+"."+e.Name, "duplicate entry name")
		}
	}
	return entries, nil
}

// commonChunkName is the name of the chunk holding modules shared by entries.
const commonChunkName = "common"

// CommonChunkName returns the reserved name of the shared chunk.
func CommonChunkName() string { return commonChunkName }

func normalizeOutput(raw RawConfig, cfg *Config) *ConfigError {
	if strings.TrimSpace(raw.OutputRoot) == "" {
		return fieldErr("outputRoot", "missing output root")
	}
	cfg.Output.Root = absPath(cfg.Context, raw.OutputRoot)
	cfg.Output.PublicPath = raw.PublicPath

	templates := []struct {
		field string
		value string
		def   string
		dst   *naming.Template
	}{
		{"filenameTemplate", raw.FilenameTemplate, DefaultFilename, &cfg.Output.Filename},
		{"chunkFilenameTemplate", raw.ChunkFilenameTemplate, DefaultChunkFilename, &cfg.Output.ChunkFilename},
		{"sourceMapFilenameTemplate", raw.SourceMapFilenameTemplate, DefaultSourceMapFilename, &cfg.Output.SourceMapFilename},
	}
	for _, t := range templates {
		value := t.value
		if strings.TrimSpace(value) == "" {
			value = t.def
		}
		tmpl, err := naming.Parse(value)
		if err != nil {
			return wrapErr(t.field, err)
		}
		*t.dst = tmpl
	}

	if m := strings.TrimSpace(raw.Manifest); m != "" {
		clean := filepath.ToSlash(filepath.Clean(m))
		if filepath.IsAbs(m) || clean == ".." || strings.HasPrefix(clean, "../") {
			return fieldErr("manifest", "manifest path %q must stay under outputRoot", m)
		}
		cfg.Output.Manifest = clean
	}
	switch ManifestFormat(strings.ToLower(strings.TrimSpace(raw.ManifestFormat))) {
	case "", ManifestJSON:
		cfg.Output.ManifestFormat = ManifestJSON
	case ManifestMsgpack:
		cfg.Output.ManifestFormat = ManifestMsgpack
	default:
		return fieldErr("manifestFormat", "unsupported manifest format %q (expected json|msgpack)", raw.ManifestFormat)
	}
	return nil
}

func normalizeResolve(raw RawResolve, cfg *Config) *ConfigError {
	if len(raw.SearchRoots) == 0 {
		return fieldErr("resolve.searchRoots", "at least one search root is required")
	}
	roots := make([]string, 0, len(raw.SearchRoots))
	for i, r := range raw.SearchRoots {
		if strings.TrimSpace(r) == "" {
			return fieldErr(fmt.Sprintf("resolve.searchRoots[%d]", i), "empty search root")
		}
		roots = append(roots, absPath(cfg.Context, r))
	}
	cfg.Resolve.SearchRoots = roots

	exts := raw.Extensions
	if exts == nil {
		exts = []string{".js"}
	}
	seen := make(map[string]struct{}, len(exts))
	cfg.Resolve.Extensions = make([]string, 0, len(exts))
	for i, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			return fieldErr(fmt.Sprintf("resolve.extensions[%d]", i), "extension %q must start with a dot", ext)
		}
		if _, dup := seen[ext]; dup {
			continue
		}
		seen[ext] = struct{}{}
		cfg.Resolve.Extensions = append(cfg.Resolve.Extensions, ext)
	}
	return nil
}

func normalizeRule(field string, rr RawRule, context string) (Rule, *ConfigError) {
	test, err := compilePattern(rr.Test)
	if err != nil {
		return Rule{}, wrapErr(field+".test", err)
	}
	if test == nil {
		return Rule{}, fieldErr(field+".test", "missing test pattern")
	}
	rule := Rule{Test: test}
	if strings.TrimSpace(rr.Exclude) != "" {
		if rule.Exclude, err = compilePattern(rr.Exclude); err != nil {
			return Rule{}, wrapErr(field+".exclude", err)
		}
	}
	if len(rr.Chain) == 0 {
		return Rule{}, fieldErr(field+".chain", "loader chain must not be empty")
	}
	for i, el := range rr.Chain {
		spec, cerr := normalizeLoader(fmt.Sprintf("%s.chain[%d]", field, i), el, context)
		if cerr != nil {
			return Rule{}, cerr
		}
		rule.Chain = append(rule.Chain, spec)
	}
	return rule, nil
}

// compilePattern accepts a bare Go regexp or the /pattern/flags notation.
// Only the "i" flag is meaningful; "g" and "m" are ignored.
func compilePattern(p string) (*regexp.Regexp, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return nil, nil
	}
	if len(p) >= 2 && p[0] == '/' {
		if end := strings.LastIndexByte(p, '/'); end > 0 {
			flags := p[end+1:]
			body := p[1:end]
			if strings.Trim(flags, "gimsuy") == "" {
				if strings.Contains(flags, "i") {
					body = "(?i)" + body
				}
				p = body
			}
		}
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}

func normalizeLoader(field string, el any, context string) (LoaderSpec, *ConfigError) {
	var (
		name    string
		id      string
		options map[string]any
	)
	switch v := el.(type) {
	case string:
		var cerr *ConfigError
		name, options, cerr = parseLoaderQuery(field, v)
		if cerr != nil {
			return LoaderSpec{}, cerr
		}
	case map[string]any:
		for key, val := range v {
			switch key {
			case "loader":
				s, ok := val.(string)
				if !ok {
					return LoaderSpec{}, fieldErr(field+".loader", "expected a string, got %T", val)
				}
				name = s
			case "id":
				s, ok := val.(string)
				if !ok {
					return LoaderSpec{}, fieldErr(field+".id", "expected a string, got %T", val)
				}
				id = strings.TrimSpace(s)
			case "options":
				m, ok := val.(map[string]any)
				if !ok {
					return LoaderSpec{}, fieldErr(field+".options", "expected a table, got %T", val)
				}
				options = m
			default:
				return LoaderSpec{}, fieldErr(field+"."+key, "unknown key")
			}
		}
	default:
		return LoaderSpec{}, fieldErr(field, "expected a loader name or table, got %T", el)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return LoaderSpec{}, fieldErr(field+".loader", "missing loader name")
	}
	kind, ok := ParseKind(name)
	if !ok {
		return LoaderSpec{}, fieldErr(field+".loader", "unknown loader %q (known: %s)", name, strings.Join(KnownKinds(), ", "))
	}
	opts, err := decodeOptions(kind, options)
	if err != nil {
		return LoaderSpec{}, wrapErr(field+".options", err)
	}
	if cerr := finishOptions(field+".options", opts, context); cerr != nil {
		return LoaderSpec{}, cerr
	}
	if id == "" {
		id = name
	}
	return LoaderSpec{Kind: kind, ID: id, Options: opts}, nil
}

// parseLoaderQuery splits "name?k=v,flag" into a name and an options map.
// Bare keys are set to true.
func parseLoaderQuery(field, s string) (string, map[string]any, *ConfigError) {
	name, query, ok := strings.Cut(s, "?")
	if !ok || strings.TrimSpace(query) == "" {
		return name, nil, nil
	}
	opts := make(map[string]any)
	for _, part := range strings.Split(query, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, hasValue := strings.Cut(part, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			return "", nil, fieldErr(field, "malformed loader query %q", s)
		}
		if !hasValue {
			opts[k] = true
			continue
		}
		opts[k] = strings.TrimSpace(v)
	}
	return name, opts, nil
}
