// Package graph builds the module dependency graph of a build.
//
// Modules are kept in an arena keyed by resolved absolute path. Edges are
// lookup keys into the arena, so cycles and diamonds need no special
// handling beyond the visited set that gates loading.
package graph

import (
	"sort"

	"github.com/andrewscwei/minuet/internal/sourcemap"
)

// ModuleID is the resolved absolute path of a module.
type ModuleID = string

// Module is one loaded and transformed file.
type Module struct {
	ID      ModuleID
	Index   uint32 // position in first-discovery order
	Raw     string
	Content string
	Map     *sourcemap.Map
	Deps    []ModuleID // in reference order, resolved only
	Owners  []string   // entry names the module is reachable from, sorted
}

// Graph owns every module of a build.
type Graph struct {
	Modules map[ModuleID]*Module
	Order   []ModuleID          // first-discovery order
	Entries map[string]ModuleID // entry name -> module
}

// Module returns the module with id, or nil.
func (g *Graph) Module(id ModuleID) *Module {
	if g == nil {
		return nil
	}
	return g.Modules[id]
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Order)
}

// EntryNames returns entry names in sorted order.
func (g *Graph) EntryNames() []string {
	names := make([]string, 0, len(g.Entries))
	for name := range g.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ordered returns modules in first-discovery order.
func (g *Graph) Ordered() []*Module {
	out := make([]*Module, 0, len(g.Order))
	for _, id := range g.Order {
		out = append(out, g.Modules[id])
	}
	return out
}
