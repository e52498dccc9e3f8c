package config

// RawConfig mirrors a configuration document before validation.
type RawConfig struct {
	Context                   string        `toml:"context" yaml:"context" json:"context"`
	Entry                     any           `toml:"entry" yaml:"entry" json:"entry"`
	Entries                   any           `toml:"entries" yaml:"entries" json:"entries"`
	OutputRoot                string        `toml:"outputRoot" yaml:"outputRoot" json:"outputRoot"`
	FilenameTemplate          string        `toml:"filenameTemplate" yaml:"filenameTemplate" json:"filenameTemplate"`
	ChunkFilenameTemplate     string        `toml:"chunkFilenameTemplate" yaml:"chunkFilenameTemplate" json:"chunkFilenameTemplate"`
	SourceMapFilenameTemplate string        `toml:"sourceMapFilenameTemplate" yaml:"sourceMapFilenameTemplate" json:"sourceMapFilenameTemplate"`
	PublicPath                string        `toml:"publicPath" yaml:"publicPath" json:"publicPath"`
	Manifest                  string        `toml:"manifest" yaml:"manifest" json:"manifest"`
	ManifestFormat            string        `toml:"manifestFormat" yaml:"manifestFormat" json:"manifestFormat"`
	LoaderRules               []RawRule     `toml:"loaderRules" yaml:"loaderRules" json:"loaderRules"`
	Resolve                   RawResolve    `toml:"resolve" yaml:"resolve" json:"resolve"`
	Auxiliary                 *RawAuxiliary `toml:"auxiliary" yaml:"auxiliary" json:"auxiliary"`
	Jobs                      int           `toml:"jobs" yaml:"jobs" json:"jobs"`
}

// RawRule is one loaderRules element. Chain elements are either a loader
// name ("sass", "sass?outputStyle=expanded,sourceMap") or a table with
// "loader", optional "id" and optional "options".
type RawRule struct {
	Test    string `toml:"test" yaml:"test" json:"test"`
	Exclude string `toml:"exclude" yaml:"exclude" json:"exclude"`
	Chain   []any  `toml:"chain" yaml:"chain" json:"chain"`
}

type RawResolve struct {
	Extensions  []string `toml:"extensions" yaml:"extensions" json:"extensions"`
	SearchRoots []string `toml:"searchRoots" yaml:"searchRoots" json:"searchRoots"`
}

type RawAuxiliary struct {
	Template   string `toml:"template" yaml:"template" json:"template"`
	OutputPath string `toml:"outputPath" yaml:"outputPath" json:"outputPath"`
	Inject     bool   `toml:"inject" yaml:"inject" json:"inject"`
}
