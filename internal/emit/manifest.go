package emit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/andrewscwei/minuet/internal/config"
)

// ChunkRecord describes one written chunk. File and MapFile are relative to
// the output root; Modules are relative to the build context.
type ChunkRecord struct {
	Name    string   `json:"name" msgpack:"name"`
	Index   int      `json:"index" msgpack:"index"`
	Kind    string   `json:"kind" msgpack:"kind"`
	Entry   string   `json:"entry,omitempty" msgpack:"entry,omitempty"`
	File    string   `json:"file" msgpack:"file"`
	MapFile string   `json:"map,omitempty" msgpack:"map,omitempty"`
	Hash    string   `json:"hash" msgpack:"hash"`
	Size    int      `json:"size" msgpack:"size"`
	Modules []string `json:"modules" msgpack:"modules"`
}

// Manifest maps entries and chunks to the files written for them.
type Manifest struct {
	PublicPath string                 `json:"publicPath,omitempty" msgpack:"publicPath,omitempty"`
	Entries    map[string]ChunkRecord `json:"entries" msgpack:"entries"`
	Chunks     map[string]string      `json:"chunks" msgpack:"chunks"`
	Records    []ChunkRecord          `json:"records" msgpack:"records"`
}

// EntryFile returns the output file of entry's chunk.
func (m *Manifest) EntryFile(entry string) (string, bool) {
	rec, ok := m.Entries[entry]
	return rec.File, ok
}

// URL prefixes file with the public path.
func (m *Manifest) URL(file string) string {
	if m.PublicPath == "" {
		return file
	}
	if strings.HasSuffix(m.PublicPath, "/") {
		return m.PublicPath + file
	}
	return m.PublicPath + "/" + file
}

// EncodeManifest serializes m in format.
func EncodeManifest(m *Manifest, format config.ManifestFormat) ([]byte, error) {
	switch format {
	case config.ManifestJSON, "":
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case config.ManifestMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(m); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
}

// DecodeManifest is the inverse of EncodeManifest.
func DecodeManifest(data []byte, format config.ManifestFormat) (*Manifest, error) {
	var m Manifest
	switch format {
	case config.ManifestJSON, "":
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	case config.ManifestMsgpack:
		if err := msgpack.Unmarshal(data, &m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
	return &m, nil
}

// WriteManifest encodes m and writes it atomically to path.
func WriteManifest(fsys billy.Filesystem, path string, m *Manifest, format config.ManifestFormat) error {
	data, err := EncodeManifest(m, format)
	if err != nil {
		return &IOError{Chunk: "manifest", Path: path, Err: err}
	}
	if err := WriteFile(fsys, path, data); err != nil {
		return &IOError{Chunk: "manifest", Path: path, Err: err}
	}
	return nil
}
