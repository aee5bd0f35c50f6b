package query

import (
	"errors"
	"fmt"

	"github.com/agentic-research/tessera/internal/graph"
	"github.com/agentic-research/tessera/internal/schema"
)

// Collage is a reified query plan: a tree of Tiles, Gather, Pick, and
// Cut nodes. A plan is pure data; Apply evaluates it against an engine,
// and ToTiles/FromTile round-trip it through the graph itself so plans
// can be stored, shipped, and re-loaded like any other facts.

var ErrBadCollage = errors.New("malformed collage")

// PickOp projects a tile set through a relation.
type PickOp uint8

const (
	PickArrows PickOp = iota
	PickDescriptors
	PickExtensions
	PickTargets
	PickSources
)

// CutOp filters a tile set in place.
type CutOp uint8

const (
	CutInclude CutOp = iota
	CutExclude
	CutObjects
	CutArrows
	CutDescriptors
	CutExtensions
)

type collageOp uint8

const (
	opTiles collageOp = iota
	opGather
	opPick
	opCut
)

// Collage component declarations used by ToTiles/FromTile.
const collageTypes = `Collage: void;
CollageTarget: id;
CollagePick: u32;
CollageCut: u32;
CollageGather: void;
CollageName: b32;`

type Collage struct {
	op     collageOp
	scope  []graph.EntityId // opTiles only; nil means "use the evaluation scope"
	scoped bool
	subs   []*Collage
	pick   PickOp
	cut    CutOp
	names  []string // CutInclude / CutExclude component lists
}

// Tiles is the leaf plan: the evaluation scope, or every live tile when
// evaluated without one.
func Tiles() *Collage { return &Collage{op: opTiles} }

// TilesIn is a leaf pinned to explicit tile ids.
func TilesIn(ids ...graph.EntityId) *Collage {
	return &Collage{op: opTiles, scope: ids, scoped: true}
}

// Gather unions the results of its sub-plans.
func Gather(subs ...*Collage) *Collage {
	return &Collage{op: opGather, subs: subs}
}

// Pick projects the sub-plan's result through a relation.
func Pick(op PickOp, sub *Collage) *Collage {
	return &Collage{op: opPick, pick: op, subs: []*Collage{sub}}
}

// Cut filters the sub-plan's result.
func Cut(op CutOp, sub *Collage, names ...string) *Collage {
	return &Collage{op: opCut, cut: op, names: names, subs: []*Collage{sub}}
}

// Convenience constructors mirroring the operator names.

func ArrowsOf(sub *Collage) *Collage      { return Pick(PickArrows, sub) }
func DescriptorsOf(sub *Collage) *Collage { return Pick(PickDescriptors, sub) }
func ExtensionsOf(sub *Collage) *Collage  { return Pick(PickExtensions, sub) }
func TargetsOf(sub *Collage) *Collage     { return Pick(PickTargets, sub) }
func SourcesOf(sub *Collage) *Collage     { return Pick(PickSources, sub) }

func TakeComponents(sub *Collage, names ...string) *Collage  { return Cut(CutInclude, sub, names...) }
func LeaveComponents(sub *Collage, names ...string) *Collage { return Cut(CutExclude, sub, names...) }
func TakeObjects(sub *Collage) *Collage                      { return Cut(CutObjects, sub) }
func TakeArrows(sub *Collage) *Collage                       { return Cut(CutArrows, sub) }
func TakeDescriptors(sub *Collage) *Collage                  { return Cut(CutDescriptors, sub) }
func TakeExtensions(sub *Collage) *Collage                   { return Cut(CutExtensions, sub) }

// Apply evaluates the plan. scope seeds unpinned Tiles leaves; pass nil
// to evaluate over the whole engine. The result is deduplicated,
// keeping first occurrences.
func (c *Collage) Apply(eng *graph.Engine, scope []*graph.Tile) []*graph.Tile {
	return c.eval(eng, scope).Unique().Tiles()
}

func (c *Collage) eval(eng *graph.Engine, scope []*graph.Tile) *Stream {
	switch c.op {
	case opTiles:
		if c.scoped {
			return FromIDs(eng, c.scope...)
		}
		if scope != nil {
			return Of(eng, scope...)
		}
		return All(eng)

	case opGather:
		var out []*graph.Tile
		for _, sub := range c.subs {
			out = append(out, sub.eval(eng, scope).Tiles()...)
		}
		return Of(eng, out...)

	case opPick:
		in := c.subs[0].eval(eng, scope)
		switch c.pick {
		case PickArrows:
			return in.ArrowsOf()
		case PickDescriptors:
			return in.DescriptorsOf()
		case PickExtensions:
			return in.ExtensionsOf()
		case PickTargets:
			return in.Targets()
		default:
			return in.Sources()
		}

	default: // opCut
		in := c.subs[0].eval(eng, scope)
		switch c.cut {
		case CutInclude:
			return in.IncludeComponents(c.names...)
		case CutExclude:
			return in.ExcludeComponents(c.names...)
		case CutObjects:
			return in.Objects()
		case CutArrows:
			return in.Arrows()
		case CutDescriptors:
			return in.Descriptors()
		default:
			return in.Extensions()
		}
	}
}

// ToTiles writes the plan into eng as tiles and returns the root tile.
// The collage component types are registered on first use.
func (c *Collage) ToTiles(eng *graph.Engine) (*graph.Tile, error) {
	if err := eng.RegisterTypes(collageTypes); err != nil {
		return nil, err
	}
	return c.toTiles(eng)
}

func (c *Collage) toTiles(eng *graph.Engine) (*graph.Tile, error) {
	switch c.op {
	case opTiles:
		root, err := eng.NewObject("Collage", nil)
		if err != nil {
			return nil, err
		}
		if c.scoped {
			for _, id := range c.scope {
				if _, err := eng.NewExtension(root.ID, "CollageTarget",
					map[string]schema.Value{schema.SelfField: schema.EID(id)}); err != nil {
					return nil, err
				}
			}
		}
		return root, nil

	case opGather:
		root, err := eng.NewObject("CollageGather", nil)
		if err != nil {
			return nil, err
		}
		for _, sub := range c.subs {
			subRoot, err := sub.toTiles(eng)
			if err != nil {
				return nil, err
			}
			if _, err := eng.NewArrow(root.ID, subRoot.ID, "CollageGather", nil); err != nil {
				return nil, err
			}
		}
		return root, nil

	case opPick:
		inner, err := c.subs[0].toTiles(eng)
		if err != nil {
			return nil, err
		}
		return eng.NewExtension(inner.ID, "CollagePick",
			map[string]schema.Value{schema.SelfField: schema.U32(uint32(c.pick))})

	default: // opCut
		inner, err := c.subs[0].toTiles(eng)
		if err != nil {
			return nil, err
		}
		root, err := eng.NewExtension(inner.ID, "CollageCut",
			map[string]schema.Value{schema.SelfField: schema.U32(uint32(c.cut))})
		if err != nil {
			return nil, err
		}
		for _, name := range c.names {
			if _, err := eng.NewDescriptor(root.ID, "CollageName",
				map[string]schema.Value{schema.SelfField: schema.Blob([]byte(name), 32)}); err != nil {
				return nil, err
			}
		}
		return root, nil
	}
}

// FromTile reconstructs a plan from its root tile.
func FromTile(eng *graph.Engine, root *graph.Tile) (*Collage, error) {
	switch root.Component {
	case "Collage":
		var ids []graph.EntityId
		scoped := false
		for _, dep := range eng.Dependents(root.ID) {
			if dep.IsExtension() && dep.Component == "CollageTarget" {
				scoped = true
				ids = append(ids, dep.Get(schema.SelfField).U64)
			}
		}
		if scoped {
			return TilesIn(ids...), nil
		}
		return Tiles(), nil

	case "CollageGather":
		var subs []*Collage
		for _, dep := range eng.Dependents(root.ID) {
			if dep.IsArrow() && dep.Component == "CollageGather" && dep.Source == root.ID {
				tgt, ok := eng.Get(dep.Target)
				if !ok {
					return nil, fmt.Errorf("%w: gather branch %d missing", ErrBadCollage, dep.Target)
				}
				sub, err := FromTile(eng, tgt)
				if err != nil {
					return nil, err
				}
				subs = append(subs, sub)
			}
		}
		return Gather(subs...), nil

	case "CollagePick":
		inner, ok := eng.Get(root.Source)
		if !ok {
			return nil, fmt.Errorf("%w: pick operand %d missing", ErrBadCollage, root.Source)
		}
		sub, err := FromTile(eng, inner)
		if err != nil {
			return nil, err
		}
		op := PickOp(root.Get(schema.SelfField).U32)
		if op > PickSources {
			return nil, fmt.Errorf("%w: unknown pick selector %d", ErrBadCollage, op)
		}
		return Pick(op, sub), nil

	case "CollageCut":
		inner, ok := eng.Get(root.Source)
		if !ok {
			return nil, fmt.Errorf("%w: cut operand %d missing", ErrBadCollage, root.Source)
		}
		sub, err := FromTile(eng, inner)
		if err != nil {
			return nil, err
		}
		op := CutOp(root.Get(schema.SelfField).U32)
		if op > CutExtensions {
			return nil, fmt.Errorf("%w: unknown cut selector %d", ErrBadCollage, op)
		}
		var names []string
		for _, dep := range eng.Dependents(root.ID) {
			if dep.IsDescriptor() && dep.Component == "CollageName" {
				names = append(names, trimBlobName(dep.Get(schema.SelfField).Blob))
			}
		}
		return Cut(op, sub, names...), nil

	default:
		return nil, fmt.Errorf("%w: %q is not a collage root", ErrBadCollage, root.Component)
	}
}

func trimBlobName(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}
