// Package sourcemap models revision 3 source maps: decoding and encoding of
// the base64 VLQ mappings, identity maps for untransformed content and
// concatenation of per-module maps into one chunk map.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Map is a revision 3 source map.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Segment is one decoded mapping. Source, SourceLine and SourceColumn are
// meaningful only when HasSource is set; Name only when HasName is set.
type Segment struct {
	GenColumn    int
	HasSource    bool
	Source       int
	SourceLine   int
	SourceColumn int
	HasName      bool
	Name         int
}

// Marshal returns the JSON form of m.
func (m *Map) Marshal() ([]byte, error) {
	out := *m
	if out.Version == 0 {
		out.Version = 3
	}
	if out.Sources == nil {
		out.Sources = []string{}
	}
	if out.Names == nil {
		out.Names = []string{}
	}
	return json.Marshal(&out)
}

// Parse decodes a JSON source map.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid source map: %w", err)
	}
	if m.Version != 3 {
		return nil, fmt.Errorf("unsupported source map version %d", m.Version)
	}
	return &m, nil
}

// Decode expands the mappings string into per generated line segments.
func Decode(mappings string) ([][]Segment, error) {
	var (
		lines   [][]Segment
		current []Segment
		src     int
		srcLine int
		srcCol  int
		name    int
	)
	i := 0
	for i <= len(mappings) {
		if i == len(mappings) {
			lines = append(lines, current)
			break
		}
		switch mappings[i] {
		case ';':
			lines = append(lines, current)
			current = nil
			i++
			continue
		case ',':
			i++
			continue
		}
		// genColumn resets at every line, the other fields are relative to
		// the previous segment across lines
		var fields [5]int
		n := 0
		for n < 5 && i < len(mappings) && mappings[i] != ',' && mappings[i] != ';' {
			v, next, err := readVLQ(mappings, i)
			if err != nil {
				return nil, err
			}
			fields[n] = v
			n++
			i = next
		}
		if n != 1 && n != 4 && n != 5 {
			return nil, fmt.Errorf("segment with %d fields on line %d", n, len(lines))
		}
		genCol := fields[0]
		if len(current) > 0 {
			genCol += current[len(current)-1].GenColumn
		}
		seg := Segment{GenColumn: genCol}
		if n >= 4 {
			src += fields[1]
			srcLine += fields[2]
			srcCol += fields[3]
			seg.HasSource = true
			seg.Source, seg.SourceLine, seg.SourceColumn = src, srcLine, srcCol
		}
		if n == 5 {
			name += fields[4]
			seg.HasName = true
			seg.Name = name
		}
		current = append(current, seg)
	}
	return lines, nil
}

// Encode is the inverse of Decode.
func Encode(lines [][]Segment) string {
	var (
		sb      strings.Builder
		src     int
		srcLine int
		srcCol  int
		name    int
	)
	for li, line := range lines {
		if li > 0 {
			sb.WriteByte(';')
		}
		prevCol := 0
		for si, seg := range line {
			if si > 0 {
				sb.WriteByte(',')
			}
			appendVLQ(&sb, seg.GenColumn-prevCol)
			prevCol = seg.GenColumn
			if !seg.HasSource {
				continue
			}
			appendVLQ(&sb, seg.Source-src)
			appendVLQ(&sb, seg.SourceLine-srcLine)
			appendVLQ(&sb, seg.SourceColumn-srcCol)
			src, srcLine, srcCol = seg.Source, seg.SourceLine, seg.SourceColumn
			if seg.HasName {
				appendVLQ(&sb, seg.Name-name)
				name = seg.Name
			}
		}
	}
	return sb.String()
}

// LineCount returns the number of lines in content as a generated file sees
// them. A trailing newline does not start a new line.
func LineCount(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// Identity maps every line of content onto the same line of source.
func Identity(source, content string) *Map {
	n := LineCount(content)
	lines := make([][]Segment, n)
	for i := range lines {
		lines[i] = []Segment{{HasSource: true, SourceLine: i}}
	}
	return &Map{
		Version:        3,
		Sources:        []string{source},
		SourcesContent: []string{content},
		Mappings:       Encode(lines),
	}
}
