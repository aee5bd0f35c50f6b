package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tessera/internal/graph"
)

func obj(t *testing.T, eng *graph.Engine) *graph.Tile {
	t.Helper()
	o, err := eng.NewObject("void", nil)
	require.NoError(t, err)
	return o
}

func arrow(t *testing.T, eng *graph.Engine, from, to graph.EntityId, comp string) *graph.Tile {
	t.Helper()
	a, err := eng.NewArrow(from, to, comp, nil)
	require.NoError(t, err)
	return a
}

func TestDegreesAndNeighbors(t *testing.T) {
	eng := graph.New()
	require.NoError(t, eng.RegisterTypes("Knows: void; Owns: void;"))
	a := obj(t, eng)
	b := obj(t, eng)
	c := obj(t, eng)
	arrow(t, eng, a.ID, b.ID, "Knows")
	arrow(t, eng, a.ID, c.ID, "Owns")
	arrow(t, eng, b.ID, c.ID, "Knows")

	all := NewTraversal(eng, Exclude)
	assert.Equal(t, 2, all.OutDegree(a.ID))
	assert.Equal(t, 0, all.InDegree(a.ID))
	assert.Equal(t, 2, all.InDegree(c.ID))
	assert.Equal(t, []graph.EntityId{b.ID, c.ID}, all.ForwardNeighbors(a.ID))
	assert.Equal(t, []graph.EntityId{a.ID, b.ID}, all.BackwardNeighbors(c.ID))

	knows := NewTraversal(eng, Include, "Knows")
	assert.Equal(t, 1, knows.OutDegree(a.ID))
	assert.Equal(t, []graph.EntityId{b.ID}, knows.ForwardNeighbors(a.ID))

	notKnows := NewTraversal(eng, Exclude, "Knows")
	assert.Equal(t, []graph.EntityId{c.ID}, notKnows.ForwardNeighbors(a.ID))

	assert.Equal(t, []graph.EntityId{c.ID, a.ID}, all.Neighbors(b.ID))
}

func TestForwardPathsLinear(t *testing.T) {
	eng := graph.New()
	a := obj(t, eng)
	b := obj(t, eng)
	c := obj(t, eng)
	arrow(t, eng, a.ID, b.ID, "void")
	arrow(t, eng, b.ID, c.ID, "void")

	tr := NewTraversal(eng, Exclude)
	paths := tr.ForwardPaths(a.ID)
	require.Len(t, paths, 1)
	assert.Equal(t, []graph.EntityId{a.ID, b.ID, c.ID}, paths[0])
}

func TestForwardPathsBranching(t *testing.T) {
	eng := graph.New()
	a := obj(t, eng)
	b := obj(t, eng)
	c := obj(t, eng)
	d := obj(t, eng)
	arrow(t, eng, a.ID, b.ID, "void")
	arrow(t, eng, a.ID, c.ID, "void")
	arrow(t, eng, b.ID, d.ID, "void")
	arrow(t, eng, c.ID, d.ID, "void")

	tr := NewTraversal(eng, Exclude)
	paths := tr.ForwardPaths(a.ID)
	assert.Contains(t, paths, []graph.EntityId{a.ID, b.ID, d.ID})
	assert.Contains(t, paths, []graph.EntityId{a.ID, c.ID, d.ID})
}

func TestForwardPathsCycleTerminates(t *testing.T) {
	eng := graph.New()
	a := obj(t, eng)
	b := obj(t, eng)
	arrow(t, eng, a.ID, b.ID, "void")
	arrow(t, eng, b.ID, a.ID, "void")

	tr := NewTraversal(eng, Exclude)
	paths := tr.ForwardPaths(a.ID)
	// The walk records the approach into the cycle instead of recursing.
	assert.NotEmpty(t, paths)
	for _, p := range paths {
		assert.Equal(t, a.ID, p[0])
		assert.LessOrEqual(t, len(p), 2)
	}
}

func TestReachabilitySurvivesParallelEdgeDeletion(t *testing.T) {
	eng := graph.New()
	a := obj(t, eng)
	b := obj(t, eng)
	d := obj(t, eng)
	e := obj(t, eng)
	arrow(t, eng, a.ID, b.ID, "void")
	p1 := arrow(t, eng, b.ID, d.ID, "void")
	p2 := arrow(t, eng, b.ID, d.ID, "void")
	arrow(t, eng, d.ID, e.ID, "void")

	tr := NewTraversal(eng, Exclude)
	require.True(t, tr.AreReachable(a.ID, e.ID))

	eng.Delete(p1.ID)
	assert.True(t, tr.AreReachable(a.ID, e.ID), "second parallel edge keeps the path alive")

	eng.Delete(p2.ID)
	assert.False(t, tr.AreReachable(a.ID, e.ID))
	assert.True(t, tr.AreReachable(a.ID, b.ID))
	assert.True(t, tr.AreReachable(d.ID, e.ID))
}

func TestForwardPathBetween(t *testing.T) {
	eng := graph.New()
	a := obj(t, eng)
	b := obj(t, eng)
	c := obj(t, eng)
	arrow(t, eng, a.ID, b.ID, "void")
	arrow(t, eng, b.ID, c.ID, "void")

	tr := NewTraversal(eng, Exclude)
	hits, ok := tr.ForwardPathBetween(a.ID, b.ID)
	require.True(t, ok)
	require.Len(t, hits, 1)
	assert.Equal(t, []graph.EntityId{a.ID, b.ID, c.ID}, hits[0])

	_, ok = tr.ForwardPathBetween(c.ID, a.ID)
	assert.False(t, ok)
}
