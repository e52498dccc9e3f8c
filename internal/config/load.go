package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileNames are the configuration file names Find looks for, in order.
var FileNames = []string{"minuet.toml", "minuet.yaml", "minuet.yml", "minuet.json"}

// Find walks up from startDir to locate a configuration file.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads, decodes and normalizes the configuration file at path.
// Relative paths in the document are anchored at the file's directory.
func Load(path string) (*Config, error) {
	// #nosec G304 -- path is the configuration file chosen by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("failed to read %s", path), Err: err}
	}
	raw, err := Decode(data, formatFromPath(path))
	if err != nil {
		return nil, &ConfigError{Msg: path, Err: err}
	}
	return Normalize(raw, filepath.Dir(path))
}

// Format is a configuration document syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

func formatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatTOML
	}
}

// genericRoots are decoded into untyped values and validated by Normalize.
var genericRoots = map[string]bool{
	"entry":       true,
	"entries":     true,
	"loaderRules": true,
}

// Decode parses a configuration document without validating it.
func Decode(data []byte, format Format) (RawConfig, error) {
	var raw RawConfig
	switch format {
	case FormatTOML:
		meta, err := toml.Decode(string(data), &raw)
		if err != nil {
			return RawConfig{}, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			for _, key := range undecoded {
				if len(key) > 0 && genericRoots[key[0]] {
					continue
				}
				return RawConfig{}, fmt.Errorf("unknown key %q", key.String())
			}
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return RawConfig{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return RawConfig{}, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return RawConfig{}, fmt.Errorf("unsupported configuration format %q", format)
	}
	return raw, nil
}
