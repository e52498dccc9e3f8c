// Package chunk partitions a module graph into output chunks.
//
// Modules reached from two or more entries go to a single shared chunk that
// is emitted first. Every other module goes to the chunk of the only entry
// that reaches it. Within a chunk modules keep first-discovery order.
package chunk

import (
	"github.com/andrewscwei/minuet/internal/config"
	"github.com/andrewscwei/minuet/internal/graph"
)

type Kind uint8

const (
	KindEntry Kind = iota
	KindCommon
)

func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindCommon:
		return "common"
	default:
		return "unknown"
	}
}

// Chunk is one output unit.
type Chunk struct {
	Name    string
	Index   int // emission position
	Kind    Kind
	Entry   string // owning entry, empty for the common chunk
	Modules []graph.ModuleID
}

// Partition assigns every module of g to exactly one chunk. The common chunk
// comes first when it has modules; entry chunks follow in entry name order.
func Partition(g *graph.Graph) []Chunk {
	names := g.EntryNames()
	byEntry := make(map[string]*Chunk, len(names))
	entryChunks := make([]Chunk, len(names))
	for i, name := range names {
		entryChunks[i] = Chunk{Name: name, Kind: KindEntry, Entry: name}
	}
	for i := range entryChunks {
		byEntry[entryChunks[i].Name] = &entryChunks[i]
	}
	common := Chunk{Name: config.CommonChunkName(), Kind: KindCommon}

	for _, m := range g.Ordered() {
		switch len(m.Owners) {
		case 0:
			// unreachable modules are never loaded; nothing to place
		case 1:
			if c, ok := byEntry[m.Owners[0]]; ok {
				c.Modules = append(c.Modules, m.ID)
			}
		default:
			common.Modules = append(common.Modules, m.ID)
		}
	}

	out := make([]Chunk, 0, len(entryChunks)+1)
	if len(common.Modules) > 0 {
		out = append(out, common)
	}
	out = append(out, entryChunks...)
	for i := range out {
		out[i].Index = i
	}
	return out
}
