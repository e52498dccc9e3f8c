package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/text/unicode/norm"

	"github.com/andrewscwei/minuet/internal/config"
)

// Resolver resolves specifiers against a file system. It is safe for
// concurrent use; results are memoized for the lifetime of the Resolver.
type Resolver struct {
	fs    billy.Filesystem
	roots []string
	exts  []string

	mu   sync.RWMutex
	memo map[memoKey]memoEntry
}

type memoKey struct {
	from string
	spec string
}

type memoEntry struct {
	path string
	err  error
}

// New creates a Resolver over fsys using the search roots and extensions of
// opts. Roots and extensions are probed in the given order.
func New(fsys billy.Filesystem, opts config.Resolve) *Resolver {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = []string{".js"}
	}
	return &Resolver{
		fs:    fsys,
		roots: append([]string(nil), opts.SearchRoots...),
		exts:  append([]string(nil), exts...),
		memo:  make(map[memoKey]memoEntry),
	}
}

// Resolve returns the absolute path of the file named by specifier when it
// is imported from fromDir. On failure the error is a *ResolutionError.
func (r *Resolver) Resolve(specifier, fromDir string) (string, error) {
	spec := norm.NFC.String(strings.TrimSpace(specifier))
	key := memoKey{from: fromDir, spec: spec}

	r.mu.RLock()
	cached, ok := r.memo[key]
	r.mu.RUnlock()
	if ok {
		return cached.path, cached.err
	}

	path, err := r.resolve(spec, fromDir)
	r.mu.Lock()
	r.memo[key] = memoEntry{path: path, err: err}
	r.mu.Unlock()
	return path, err
}

func (r *Resolver) resolve(spec, fromDir string) (string, error) {
	if spec == "" {
		return "", &ResolutionError{Specifier: spec, From: fromDir}
	}
	p := &probe{r: r}
	var found string
	var err error
	if IsRelative(spec) || filepath.IsAbs(spec) {
		found, err = p.path(absJoin(fromDir, spec))
	} else {
		for _, root := range r.roots {
			found, err = p.path(filepath.Join(root, filepath.FromSlash(spec)))
			if found != "" || err != nil {
				break
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", spec, err)
	}
	if found == "" {
		return "", &ResolutionError{Specifier: spec, From: fromDir, Tried: p.tried}
	}
	return found, nil
}

// IsRelative reports whether spec is explicitly relative to the importing
// file.
func IsRelative(spec string) bool {
	return spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

func absJoin(dir, spec string) string {
	spec = filepath.FromSlash(spec)
	if filepath.IsAbs(spec) {
		return filepath.Clean(spec)
	}
	return filepath.Join(dir, spec)
}

// probe records every candidate it stats so failures can list them.
type probe struct {
	r     *Resolver
	tried []string
	seen  map[string]struct{}
}

// path probes base as a file and then as a directory.
func (p *probe) path(base string) (string, error) {
	if found, err := p.file(base); found != "" || err != nil {
		return found, err
	}
	return p.dir(base)
}

// file tries base as-is when it already has an extension, then base plus
// every configured extension.
func (p *probe) file(base string) (string, error) {
	if filepath.Ext(base) != "" {
		if ok, err := p.regular(base); ok || err != nil {
			return okPath(base, ok), err
		}
	}
	for _, ext := range p.r.exts {
		candidate := base + ext
		if ok, err := p.regular(candidate); ok || err != nil {
			return okPath(candidate, ok), err
		}
	}
	return "", nil
}

func (p *probe) dir(base string) (string, error) {
	info, err := p.r.fs.Stat(base)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	if !info.IsDir() {
		return "", nil
	}
	main, err := p.r.packageMain(base)
	if err != nil {
		return "", err
	}
	if main != "" {
		if found, err := p.file(absJoin(base, main)); found != "" || err != nil {
			return found, err
		}
	}
	return p.file(filepath.Join(base, "index"))
}

func (p *probe) regular(candidate string) (bool, error) {
	if p.seen == nil {
		p.seen = make(map[string]struct{})
	}
	if _, dup := p.seen[candidate]; dup {
		return false, nil
	}
	p.seen[candidate] = struct{}{}
	p.tried = append(p.tried, candidate)

	info, err := p.r.fs.Stat(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func okPath(p string, ok bool) string {
	if ok {
		return p
	}
	return ""
}

// packageMain reads the "main" field of dir/package.json, if present.
func (r *Resolver) packageMain(dir string) (string, error) {
	data, err := util.ReadFile(r.fs, filepath.Join(dir, "package.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", fmt.Errorf("invalid %s: %w", filepath.Join(dir, "package.json"), err)
	}
	return norm.NFC.String(strings.TrimSpace(pkg.Main)), nil
}
