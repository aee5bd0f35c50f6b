// Package query provides composable operators over tile streams, a
// traversal DSL with component filtering, and Collage: a reified query
// plan that can itself be stored as tiles.
package query

import (
	"github.com/agentic-research/tessera/internal/graph"
)

// Stream is a materialized sequence of tiles bound to an engine. Every
// operator returns a new stream; order and duplicates are preserved, so
// the meaning of a chain depends on operator order.
type Stream struct {
	eng   *graph.Engine
	tiles []*graph.Tile
}

// Of starts a stream from explicit tiles.
func Of(eng *graph.Engine, tiles ...*graph.Tile) *Stream {
	return &Stream{eng: eng, tiles: tiles}
}

// FromIDs starts a stream from tile ids, dropping any id that does not
// name a live tile.
func FromIDs(eng *graph.Engine, ids ...graph.EntityId) *Stream {
	s := &Stream{eng: eng}
	for _, id := range ids {
		if t, ok := eng.Get(id); ok {
			s.tiles = append(s.tiles, t)
		}
	}
	return s
}

// All starts a stream over every live tile in ascending id order.
func All(eng *graph.Engine) *Stream {
	return &Stream{eng: eng, tiles: eng.All()}
}

// Tiles returns the underlying slice. Callers must not mutate it.
func (s *Stream) Tiles() []*graph.Tile { return s.tiles }

// Len returns the number of tiles in the stream.
func (s *Stream) Len() int { return len(s.tiles) }

// IDs projects the stream to its tile ids.
func (s *Stream) IDs() []graph.EntityId {
	out := make([]graph.EntityId, len(s.tiles))
	for i, t := range s.tiles {
		out[i] = t.ID
	}
	return out
}

func (s *Stream) derive(tiles []*graph.Tile) *Stream {
	return &Stream{eng: s.eng, tiles: tiles}
}

func (s *Stream) filter(keep func(*graph.Tile) bool) *Stream {
	var out []*graph.Tile
	for _, t := range s.tiles {
		if keep(t) {
			out = append(out, t)
		}
	}
	return s.derive(out)
}

// Objects keeps only object tiles.
func (s *Stream) Objects() *Stream { return s.filter((*graph.Tile).IsObject) }

// Arrows keeps only arrow tiles.
func (s *Stream) Arrows() *Stream { return s.filter((*graph.Tile).IsArrow) }

// Descriptors keeps only descriptor tiles.
func (s *Stream) Descriptors() *Stream { return s.filter((*graph.Tile).IsDescriptor) }

// Extensions keeps only extension tiles.
func (s *Stream) Extensions() *Stream { return s.filter((*graph.Tile).IsExtension) }

// Loops keeps only self-looping arrows.
func (s *Stream) Loops() *Stream { return s.filter((*graph.Tile).IsLoop) }

// ArrowsFrom expands each tile into the arrows leaving it, in adjacency
// order. The input tiles themselves are not part of the result.
func (s *Stream) ArrowsFrom() *Stream {
	var out []*graph.Tile
	for _, t := range s.tiles {
		for _, dep := range s.eng.Dependents(t.ID) {
			if dep.IsArrow() && dep.Source == t.ID {
				out = append(out, dep)
			}
		}
	}
	return s.derive(out)
}

// ArrowsInto expands each tile into the arrows entering it.
func (s *Stream) ArrowsInto() *Stream {
	var out []*graph.Tile
	for _, t := range s.tiles {
		for _, dep := range s.eng.Dependents(t.ID) {
			if dep.IsArrow() && dep.Target == t.ID {
				out = append(out, dep)
			}
		}
	}
	return s.derive(out)
}

// ArrowsOf expands each tile into every arrow touching it, either
// direction; a loop appears once.
func (s *Stream) ArrowsOf() *Stream {
	var out []*graph.Tile
	for _, t := range s.tiles {
		for _, dep := range s.eng.Dependents(t.ID) {
			if dep.IsArrow() {
				out = append(out, dep)
			}
		}
	}
	return s.derive(out)
}

// DescriptorsOf expands each tile into its attached descriptors.
func (s *Stream) DescriptorsOf() *Stream {
	var out []*graph.Tile
	for _, t := range s.tiles {
		for _, dep := range s.eng.Dependents(t.ID) {
			if dep.IsDescriptor() {
				out = append(out, dep)
			}
		}
	}
	return s.derive(out)
}

// ExtensionsOf expands each tile into its attached extensions.
func (s *Stream) ExtensionsOf() *Stream {
	var out []*graph.Tile
	for _, t := range s.tiles {
		for _, dep := range s.eng.Dependents(t.ID) {
			if dep.IsExtension() {
				out = append(out, dep)
			}
		}
	}
	return s.derive(out)
}

// DependentsOf expands each tile into every relation tile referencing
// it, in adjacency order.
func (s *Stream) DependentsOf() *Stream {
	var out []*graph.Tile
	for _, t := range s.tiles {
		out = append(out, s.eng.Dependents(t.ID)...)
	}
	return s.derive(out)
}

// Sources projects each tile to the tile at its source id.
func (s *Stream) Sources() *Stream {
	var out []*graph.Tile
	for _, t := range s.tiles {
		if src, ok := s.eng.Get(t.Source); ok {
			out = append(out, src)
		}
	}
	return s.derive(out)
}

// Targets projects each tile to the tile at its target id.
func (s *Stream) Targets() *Stream {
	var out []*graph.Tile
	for _, t := range s.tiles {
		if tgt, ok := s.eng.Get(t.Target); ok {
			out = append(out, tgt)
		}
	}
	return s.derive(out)
}

// IncludeComponents keeps tiles whose component is one of names.
func (s *Stream) IncludeComponents(names ...string) *Stream {
	set := nameSet(names)
	return s.filter(func(t *graph.Tile) bool { return set[t.Component] })
}

// ExcludeComponents drops tiles whose component is one of names.
func (s *Stream) ExcludeComponents(names ...string) *Stream {
	set := nameSet(names)
	return s.filter(func(t *graph.Tile) bool { return !set[t.Component] })
}

// Unique drops duplicate tiles, keeping first occurrences.
func (s *Stream) Unique() *Stream {
	seen := make(map[graph.EntityId]bool, len(s.tiles))
	var out []*graph.Tile
	for _, t := range s.tiles {
		if !seen[t.ID] {
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return s.derive(out)
}

// Delete removes every tile in the stream from the engine, cascading as
// usual. The stream itself is left as-is and should be discarded.
func (s *Stream) Delete() {
	for _, t := range s.tiles {
		s.eng.Delete(t.ID)
	}
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
