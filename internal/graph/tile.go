// Package graph implements the tile engine: an in-process store of typed
// graph facts. Every fact is a tile with an identity, a source, and a
// target; the relationship between those three ids alone determines
// whether the tile is an object, an arrow, a descriptor, or an
// extension.
package graph

import (
	"github.com/agentic-research/tessera/internal/schema"
)

// EntityId identifies a tile. Ids are allocated monotonically starting
// at 1; id 0 is never issued.
type EntityId = uint64

// Kind classifies a tile from its id geometry.
type Kind uint8

const (
	// KindObject: id == source == target. A standalone node.
	KindObject Kind = iota
	// KindArrow: id differs from both endpoints. A directed edge, including
	// self-loops where source == target != id.
	KindArrow
	// KindDescriptor: id == source != target. A property hanging off its
	// target.
	KindDescriptor
	// KindExtension: id == target != source. A property hanging off its
	// source.
	KindExtension
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArrow:
		return "arrow"
	case KindDescriptor:
		return "descriptor"
	case KindExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// KindOf derives the tile kind from the id triple. This is the only
// place the classification rule lives; everything else asks here.
func KindOf(id, source, target EntityId) Kind {
	switch {
	case id == source && id == target:
		return KindObject
	case id == source:
		return KindDescriptor
	case id == target:
		return KindExtension
	default:
		return KindArrow
	}
}

// Tile is one stored fact. Source and Target are endpoint ids; for
// objects all three ids coincide. Fields holds one value per flattened
// component field. Tiles returned by the engine are live references;
// mutate field values through the engine so datatype checks apply.
type Tile struct {
	ID        EntityId
	Source    EntityId
	Target    EntityId
	Component string
	Fields    map[string]schema.Value
}

// Kind returns the tile's classification.
func (t *Tile) Kind() Kind {
	return KindOf(t.ID, t.Source, t.Target)
}

func (t *Tile) IsObject() bool     { return t.Kind() == KindObject }
func (t *Tile) IsArrow() bool      { return t.Kind() == KindArrow }
func (t *Tile) IsDescriptor() bool { return t.Kind() == KindDescriptor }
func (t *Tile) IsExtension() bool  { return t.Kind() == KindExtension }

// IsLoop reports whether the tile is a self-looping arrow.
func (t *Tile) IsLoop() bool {
	return t.Source == t.Target && t.ID != t.Source
}

// Get returns the named field value, or the zero Value if absent.
func (t *Tile) Get(field string) schema.Value {
	return t.Fields[field]
}
