package sourcemap

import "fmt"

// Part is one module's contribution to a concatenated file. Line is the
// generated line the module starts on; Map may be nil.
type Part struct {
	Line int
	Map  *Map
}

// Concat merges the maps of parts into one map for file. Sources and names
// are deduplicated in first-seen order. It returns nil when no part carries
// a map.
func Concat(file string, parts []Part) (*Map, error) {
	out := &Map{Version: 3, File: file}
	var (
		lines     [][]Segment
		srcIndex  = make(map[string]int)
		nameIndex = make(map[string]int)
		withMaps  int
		contents  bool
	)
	for _, p := range parts {
		if p.Map != nil && len(p.Map.SourcesContent) > 0 {
			contents = true
		}
	}
	for _, p := range parts {
		if p.Map == nil {
			continue
		}
		withMaps++
		decoded, err := Decode(p.Map.Mappings)
		if err != nil {
			return nil, fmt.Errorf("source map for %v: %w", p.Map.Sources, err)
		}
		srcRemap := make([]int, len(p.Map.Sources))
		for i, s := range p.Map.Sources {
			idx, ok := srcIndex[s]
			if !ok {
				idx = len(out.Sources)
				srcIndex[s] = idx
				out.Sources = append(out.Sources, s)
				if contents {
					content := ""
					if i < len(p.Map.SourcesContent) {
						content = p.Map.SourcesContent[i]
					}
					out.SourcesContent = append(out.SourcesContent, content)
				}
			}
			srcRemap[i] = idx
		}
		nameRemap := make([]int, len(p.Map.Names))
		for i, n := range p.Map.Names {
			idx, ok := nameIndex[n]
			if !ok {
				idx = len(out.Names)
				nameIndex[n] = idx
				out.Names = append(out.Names, n)
			}
			nameRemap[i] = idx
		}
		for li, segs := range decoded {
			target := p.Line + li
			for len(lines) <= target {
				lines = append(lines, nil)
			}
			for _, seg := range segs {
				if seg.HasSource {
					if seg.Source < 0 || seg.Source >= len(srcRemap) {
						return nil, fmt.Errorf("source index %d out of range", seg.Source)
					}
					seg.Source = srcRemap[seg.Source]
				}
				if seg.HasName {
					if seg.Name < 0 || seg.Name >= len(nameRemap) {
						return nil, fmt.Errorf("name index %d out of range", seg.Name)
					}
					seg.Name = nameRemap[seg.Name]
				}
				lines[target] = append(lines[target], seg)
			}
		}
	}
	if withMaps == 0 {
		return nil, nil
	}
	out.Mappings = Encode(lines)
	return out, nil
}
