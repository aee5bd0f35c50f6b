// Package match finds occurrences of a pattern subgraph inside a target
// subgraph. Candidate pruning and bindings are computed as transient
// tiles in the engine itself, so an interrupted or inspected match is
// ordinary graph data; only the result tiles survive the search.
package match

import (
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/agentic-research/tessera/internal/graph"
	"github.com/agentic-research/tessera/internal/query"
	"github.com/agentic-research/tessera/internal/schema"
)

// Component declarations for transient and result tiles.
const matchTypes = `MatchCandidate: { pattern: id, target: id };
MatchBinding: void;
MatchResult: void;
MatchEntry: { pattern: id, target: id };`

// side is one half of the problem: the node ids and the admitted arrows
// whose endpoints both belong to the node set.
type side struct {
	nodes []graph.EntityId
	edges []*graph.Tile
}

func buildSide(tr *query.Traversal, tiles []*graph.Tile) side {
	var s side
	members := make(map[graph.EntityId]bool)
	for _, t := range tiles {
		if !t.IsArrow() {
			s.nodes = append(s.nodes, t.ID)
			members[t.ID] = true
		}
	}
	for _, t := range tiles {
		if t.IsArrow() && tr.Admits(t) && members[t.Source] && members[t.Target] {
			s.edges = append(s.edges, t)
		}
	}
	return s
}

func (s side) outDegree(id graph.EntityId) int {
	n := 0
	for _, e := range s.edges {
		if e.Source == id {
			n++
		}
	}
	return n
}

func (s side) inDegree(id graph.EntityId) int {
	n := 0
	for _, e := range s.edges {
		if e.Target == id {
			n++
		}
	}
	return n
}

// closure returns, per node, the set of nodes reachable over one or more
// edges.
func (s side) closure() map[graph.EntityId]*roaring64.Bitmap {
	succ := make(map[graph.EntityId][]graph.EntityId)
	for _, e := range s.edges {
		succ[e.Source] = append(succ[e.Source], e.Target)
	}
	reach := make(map[graph.EntityId]*roaring64.Bitmap, len(s.nodes))
	for _, n := range s.nodes {
		bm := roaring64.New()
		work := append([]graph.EntityId(nil), succ[n]...)
		for len(work) > 0 {
			cur := work[0]
			work = work[1:]
			if bm.Contains(cur) {
				continue
			}
			bm.Add(cur)
			work = append(work, succ[cur]...)
		}
		reach[n] = bm
	}
	return reach
}

type pair struct{ pattern, target graph.EntityId }

// Match enumerates injective assignments of pattern nodes to target
// nodes. A target node is a candidate for a pattern node when its in and
// out degrees dominate the pattern node's; bindings between candidates
// follow the reachability closure of the target edges, and each complete
// assignment is rechecked against the subgraph restricted to its own
// target nodes before it is accepted.
//
// Each accepted assignment is materialized as a MatchResult object with
// one MatchEntry descriptor per pattern node; when owner is non-nil a
// MatchResult arrow links it to each result. The returned tiles are the
// result objects.
func Match(eng *graph.Engine, tr *query.Traversal, pattern, target []*graph.Tile, owner *graph.Tile) ([]*graph.Tile, error) {
	if err := eng.RegisterTypes(matchTypes); err != nil {
		return nil, err
	}

	pat := buildSide(tr, pattern)
	tgt := buildSide(tr, target)
	if len(pat.nodes) == 0 {
		return nil, nil
	}

	// Degree-dominance candidate sets.
	candidates := make(map[graph.EntityId]*roaring64.Bitmap, len(pat.nodes))
	for _, p := range pat.nodes {
		bm := roaring64.New()
		po, pi := pat.outDegree(p), pat.inDegree(p)
		for _, t := range tgt.nodes {
			if tgt.outDegree(t) >= po && tgt.inDegree(t) >= pi {
				bm.Add(t)
			}
		}
		if bm.IsEmpty() {
			return nil, nil
		}
		candidates[p] = bm
	}

	// Transient candidate tiles and binding arrows over the closure.
	reach := tgt.closure()
	candTiles := make(map[pair]*graph.Tile)
	var transients []graph.EntityId
	defer func() {
		for _, id := range transients {
			eng.Delete(id)
		}
	}()

	for _, p := range pat.nodes {
		it := candidates[p].Iterator()
		for it.HasNext() {
			t := it.Next()
			tile, err := eng.NewObject("MatchCandidate", map[string]schema.Value{
				"pattern": schema.EID(p),
				"target":  schema.EID(t),
			})
			if err != nil {
				return nil, err
			}
			candTiles[pair{p, t}] = tile
			transients = append(transients, tile.ID)
		}
	}

	support := make(map[pair]map[pair]bool)
	for _, e := range pat.edges {
		key := pair{e.Source, e.Target}
		if support[key] == nil {
			support[key] = make(map[pair]bool)
		}
		src := candidates[e.Source].Iterator()
		for src.HasNext() {
			ts := src.Next()
			dst := candidates[e.Target].Iterator()
			for dst.HasNext() {
				tt := dst.Next()
				if !reach[ts].Contains(tt) {
					continue
				}
				if _, err := eng.NewArrow(candTiles[pair{e.Source, ts}].ID,
					candTiles[pair{e.Target, tt}].ID, "MatchBinding", nil); err != nil {
					return nil, err
				}
				support[key][pair{ts, tt}] = true
			}
		}
	}

	// Fewest candidates first.
	order := append([]graph.EntityId(nil), pat.nodes...)
	sort.Slice(order, func(i, j int) bool {
		ci := candidates[order[i]].GetCardinality()
		cj := candidates[order[j]].GetCardinality()
		if ci != cj {
			return ci < cj
		}
		return order[i] < order[j]
	})

	assign := make(map[graph.EntityId]graph.EntityId, len(order))
	used := make(map[graph.EntityId]bool)
	var results []*graph.Tile

	var backtrack func(depth int) error
	backtrack = func(depth int) error {
		if depth == len(order) {
			if !consistent(pat, tgt, assign) {
				return nil
			}
			res, err := materialize(eng, pat.nodes, assign, owner)
			if err != nil {
				return err
			}
			results = append(results, res)
			return nil
		}
		p := order[depth]
		it := candidates[p].Iterator()
		for it.HasNext() {
			t := it.Next()
			if used[t] {
				continue
			}
			assign[p] = t
			if edgesHold(pat, support, assign, p) {
				used[t] = true
				if err := backtrack(depth + 1); err != nil {
					return err
				}
				delete(used, t)
			}
			delete(assign, p)
		}
		return nil
	}
	if err := backtrack(0); err != nil {
		return nil, err
	}
	return results, nil
}

// edgesHold checks every pattern edge touching the just-assigned node
// against the binding support built from the closure.
func edgesHold(pat side, support map[pair]map[pair]bool, assign map[graph.EntityId]graph.EntityId, justAssigned graph.EntityId) bool {
	for _, e := range pat.edges {
		if e.Source != justAssigned && e.Target != justAssigned {
			continue
		}
		ts, okS := assign[e.Source]
		tt, okT := assign[e.Target]
		if !okS || !okT {
			continue
		}
		if !support[pair{e.Source, e.Target}][pair{ts, tt}] {
			return false
		}
	}
	return true
}

// consistent rechecks a complete assignment against the target subgraph
// restricted to the assigned nodes: every pattern node's induced degrees
// must still be dominated.
func consistent(pat, tgt side, assign map[graph.EntityId]graph.EntityId) bool {
	chosen := make(map[graph.EntityId]bool, len(assign))
	for _, t := range assign {
		chosen[t] = true
	}
	var restricted side
	for _, e := range tgt.edges {
		if chosen[e.Source] && chosen[e.Target] {
			restricted.edges = append(restricted.edges, e)
		}
	}
	for p, t := range assign {
		if restricted.outDegree(t) < pat.outDegree(p) {
			return false
		}
		if restricted.inDegree(t) < pat.inDegree(p) {
			return false
		}
	}
	return true
}

func materialize(eng *graph.Engine, patNodes []graph.EntityId, assign map[graph.EntityId]graph.EntityId, owner *graph.Tile) (*graph.Tile, error) {
	res, err := eng.NewObject("MatchResult", nil)
	if err != nil {
		return nil, err
	}
	for _, p := range patNodes {
		if _, err := eng.NewDescriptor(res.ID, "MatchEntry", map[string]schema.Value{
			"pattern": schema.EID(p),
			"target":  schema.EID(assign[p]),
		}); err != nil {
			return nil, err
		}
	}
	if owner != nil {
		if _, err := eng.NewArrow(owner.ID, res.ID, "MatchResult", nil); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Bindings reads a result tile back into a pattern-to-target map.
func Bindings(eng *graph.Engine, result *graph.Tile) map[graph.EntityId]graph.EntityId {
	out := make(map[graph.EntityId]graph.EntityId)
	for _, dep := range eng.Dependents(result.ID) {
		if dep.IsDescriptor() && dep.Component == "MatchEntry" {
			out[dep.Get("pattern").U64] = dep.Get("target").U64
		}
	}
	return out
}
