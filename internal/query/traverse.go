package query

import (
	"github.com/agentic-research/tessera/internal/graph"
)

// Policy selects how a traversal's component list is interpreted.
type Policy uint8

const (
	// Include traverses only arrows whose component is listed.
	Include Policy = iota
	// Exclude traverses every arrow except those listed.
	Exclude
)

// Traversal walks the graph along arrow tiles, filtered by arrow
// component. The zero component list with Exclude traverses everything.
type Traversal struct {
	eng        *graph.Engine
	policy     Policy
	components map[string]bool
}

// NewTraversal builds a traversal over eng with the given arrow
// component policy.
func NewTraversal(eng *graph.Engine, policy Policy, components ...string) *Traversal {
	return &Traversal{eng: eng, policy: policy, components: nameSet(components)}
}

// Admits reports whether the traversal follows arrows of this tile's
// component.
func (tr *Traversal) Admits(t *graph.Tile) bool {
	if tr.policy == Include {
		return tr.components[t.Component]
	}
	return !tr.components[t.Component]
}

// ArrowsFrom returns the admitted arrows leaving id, in adjacency order.
func (tr *Traversal) ArrowsFrom(id graph.EntityId) []*graph.Tile {
	var out []*graph.Tile
	for _, dep := range tr.eng.Dependents(id) {
		if dep.IsArrow() && dep.Source == id && tr.Admits(dep) {
			out = append(out, dep)
		}
	}
	return out
}

// ArrowsInto returns the admitted arrows entering id.
func (tr *Traversal) ArrowsInto(id graph.EntityId) []*graph.Tile {
	var out []*graph.Tile
	for _, dep := range tr.eng.Dependents(id) {
		if dep.IsArrow() && dep.Target == id && tr.Admits(dep) {
			out = append(out, dep)
		}
	}
	return out
}

// OutDegree counts admitted arrows leaving id. Parallel arrows count
// separately.
func (tr *Traversal) OutDegree(id graph.EntityId) int {
	return len(tr.ArrowsFrom(id))
}

// InDegree counts admitted arrows entering id.
func (tr *Traversal) InDegree(id graph.EntityId) int {
	return len(tr.ArrowsInto(id))
}

// ForwardNeighbors returns the target of each admitted arrow leaving id.
// One entry per arrow, so parallel edges yield repeated neighbors.
func (tr *Traversal) ForwardNeighbors(id graph.EntityId) []graph.EntityId {
	arrows := tr.ArrowsFrom(id)
	out := make([]graph.EntityId, len(arrows))
	for i, a := range arrows {
		out[i] = a.Target
	}
	return out
}

// BackwardNeighbors returns the source of each admitted arrow entering
// id.
func (tr *Traversal) BackwardNeighbors(id graph.EntityId) []graph.EntityId {
	arrows := tr.ArrowsInto(id)
	out := make([]graph.EntityId, len(arrows))
	for i, a := range arrows {
		out[i] = a.Source
	}
	return out
}

// Neighbors returns the forward neighbors of id followed by its
// backward neighbors.
func (tr *Traversal) Neighbors(id graph.EntityId) []graph.EntityId {
	return append(tr.ForwardNeighbors(id), tr.BackwardNeighbors(id)...)
}

// ForwardPaths runs a depth-first walk from src and returns the set of
// explored paths as id sequences, each starting at src. A path is
// emitted when the walk reaches a node with no admitted outgoing arrows,
// and also when it meets a node already on the active path, which keeps
// cycles from recursing forever while still recording the approach to
// the cycle.
func (tr *Traversal) ForwardPaths(src graph.EntityId) [][]graph.EntityId {
	var results [][]graph.EntityId
	freelist := []graph.EntityId{src}
	finished := make(map[graph.EntityId]bool)
	var history []graph.EntityId

	var walk func()
	walk = func() {
		for len(freelist) > 0 {
			current := freelist[len(freelist)-1]
			freelist = freelist[:len(freelist)-1]
			finished[current] = true
			history = append(history, current)

			neighbors := tr.ForwardNeighbors(current)
			if len(neighbors) == 0 {
				results = append(results, clonePath(history))
			} else {
				for _, n := range neighbors {
					if !finished[n] {
						freelist = append(freelist, n)
						walk()
						if len(freelist) > 0 {
							freelist = freelist[:len(freelist)-1]
						}
					} else {
						results = append(results, clonePath(history))
						if len(history) > 0 {
							history = history[:len(history)-1]
						}
					}
				}
			}

			if len(history) > 0 {
				popped := history[len(history)-1]
				history = history[:len(history)-1]
				delete(finished, popped)
			}
		}
	}
	walk()
	return results
}

// ForwardPathBetween reports whether any explored forward path from src
// passes through tgt, returning every path that does.
func (tr *Traversal) ForwardPathBetween(src, tgt graph.EntityId) ([][]graph.EntityId, bool) {
	var hits [][]graph.EntityId
	for _, path := range tr.ForwardPaths(src) {
		for _, id := range path {
			if id == tgt {
				hits = append(hits, path)
				break
			}
		}
	}
	return hits, len(hits) > 0
}

// AreReachable reports whether tgt is reachable from src along admitted
// arrows.
func (tr *Traversal) AreReachable(src, tgt graph.EntityId) bool {
	_, ok := tr.ForwardPathBetween(src, tgt)
	return ok
}

func clonePath(p []graph.EntityId) []graph.EntityId {
	out := make([]graph.EntityId, len(p))
	copy(out, p)
	return out
}
