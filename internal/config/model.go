package config

import (
	"regexp"

	"github.com/andrewscwei/minuet/internal/naming"
)

// Default templates follow the conventional [name].js / [chunkhash].js /
// [name].map layout.
const (
	DefaultFilename          = "{name}.js"
	DefaultChunkFilename     = "{chunkhash}.js"
	DefaultSourceMapFilename = "{name}.map"
	DefaultEntryName         = "main"
)

// ManifestFormat selects the encoding of the build manifest file.
type ManifestFormat string

const (
	ManifestJSON    ManifestFormat = "json"
	ManifestMsgpack ManifestFormat = "msgpack"
)

// Config is a validated build configuration. All paths are absolute.
type Config struct {
	Context   string
	Entries   []Entry // sorted by Name
	Output    Output
	Rules     []Rule
	Resolve   Resolve
	Auxiliary *Auxiliary
	Jobs      int
}

// Entry is a named starting point of the dependency graph.
type Entry struct {
	Name      string
	Specifier string
}

type Output struct {
	Root              string
	Filename          naming.Template
	ChunkFilename     naming.Template
	SourceMapFilename naming.Template
	PublicPath        string
	Manifest          string // relative to Root, empty disables the manifest file
	ManifestFormat    ManifestFormat
}

// Rule maps files whose path matches Test (and not Exclude) to a loader chain.
// Chain order is execution order: Chain[0] receives the raw file content.
type Rule struct {
	Test    *regexp.Regexp
	Exclude *regexp.Regexp
	Chain   []LoaderSpec
}

// Matches reports whether path is claimed by the rule.
func (r Rule) Matches(path string) bool {
	if r.Test == nil || !r.Test.MatchString(path) {
		return false
	}
	return r.Exclude == nil || !r.Exclude.MatchString(path)
}

type Resolve struct {
	Extensions  []string
	SearchRoots []string
}

type Auxiliary struct {
	Template   string
	OutputPath string
	Inject     bool
}

// EntryNames returns entry names in sorted order.
func (c *Config) EntryNames() []string {
	out := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		out[i] = e.Name
	}
	return out
}
