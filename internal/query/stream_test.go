package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tessera/internal/graph"
	"github.com/agentic-research/tessera/internal/schema"
)

// fixture: two labeled objects joined by arrows of different components,
// with a descriptor on the first object.
type fixture struct {
	eng         *graph.Engine
	a, b        *graph.Tile
	knows, owns *graph.Tile
	label       *graph.Tile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng := graph.New()
	require.NoError(t, eng.RegisterTypes("Knows: void; Owns: void; Label: s32;"))

	a, err := eng.NewObject("void", nil)
	require.NoError(t, err)
	b, err := eng.NewObject("void", nil)
	require.NoError(t, err)
	knows, err := eng.NewArrow(a.ID, b.ID, "Knows", nil)
	require.NoError(t, err)
	owns, err := eng.NewArrow(a.ID, b.ID, "Owns", nil)
	require.NoError(t, err)
	label, err := eng.NewDescriptor(a.ID, "Label", map[string]schema.Value{schema.SelfField: schema.S32("a")})
	require.NoError(t, err)

	return &fixture{eng: eng, a: a, b: b, knows: knows, owns: owns, label: label}
}

func TestAllAscending(t *testing.T) {
	f := newFixture(t)
	s := All(f.eng)
	assert.Equal(t, []graph.EntityId{1, 2, 3, 4, 5}, s.IDs())
}

func TestKindFilters(t *testing.T) {
	f := newFixture(t)
	s := All(f.eng)
	assert.Equal(t, []graph.EntityId{f.a.ID, f.b.ID}, s.Objects().IDs())
	assert.Equal(t, []graph.EntityId{f.knows.ID, f.owns.ID}, s.Arrows().IDs())
	assert.Equal(t, []graph.EntityId{f.label.ID}, s.Descriptors().IDs())
	assert.Empty(t, s.Extensions().IDs())
}

func TestArrowsFromAndTargets(t *testing.T) {
	f := newFixture(t)
	out := Of(f.eng, f.a).ArrowsFrom()
	assert.Equal(t, []graph.EntityId{f.knows.ID, f.owns.ID}, out.IDs())

	// Both arrows land on b; no dedup until asked for.
	tgts := out.Targets()
	assert.Equal(t, []graph.EntityId{f.b.ID, f.b.ID}, tgts.IDs())
	assert.Equal(t, []graph.EntityId{f.b.ID}, tgts.Unique().IDs())

	assert.Empty(t, Of(f.eng, f.b).ArrowsFrom().IDs())
	assert.Equal(t, []graph.EntityId{f.knows.ID, f.owns.ID}, Of(f.eng, f.b).ArrowsInto().IDs())
}

func TestComponentFilters(t *testing.T) {
	f := newFixture(t)
	arrows := Of(f.eng, f.a).ArrowsFrom()
	assert.Equal(t, []graph.EntityId{f.knows.ID}, arrows.IncludeComponents("Knows").IDs())
	assert.Equal(t, []graph.EntityId{f.owns.ID}, arrows.ExcludeComponents("Knows").IDs())
	assert.Empty(t, arrows.IncludeComponents("Label").IDs())
}

func TestOperatorOrderMatters(t *testing.T) {
	f := newFixture(t)

	// Filter then expand: only Knows arrows are followed.
	viaKnows := Of(f.eng, f.a).ArrowsFrom().IncludeComponents("Knows").Targets()
	assert.Equal(t, []graph.EntityId{f.b.ID}, viaKnows.IDs())

	// Expand then filter on the targets: objects carry "void", so the
	// component filter now matches nothing.
	wrong := Of(f.eng, f.a).ArrowsFrom().Targets().IncludeComponents("Knows")
	assert.Empty(t, wrong.IDs())
}

func TestDescriptorsOfAndSources(t *testing.T) {
	f := newFixture(t)
	descs := Of(f.eng, f.a).DescriptorsOf()
	assert.Equal(t, []graph.EntityId{f.label.ID}, descs.IDs())
	// A descriptor's target is its subject.
	assert.Equal(t, []graph.EntityId{f.a.ID}, descs.Targets().IDs())
}

func TestDependentsOf(t *testing.T) {
	f := newFixture(t)
	deps := Of(f.eng, f.a).DependentsOf()
	assert.Equal(t, []graph.EntityId{f.knows.ID, f.owns.ID, f.label.ID}, deps.IDs())
}

func TestLoops(t *testing.T) {
	f := newFixture(t)
	lp, err := f.eng.NewLoop(f.b.ID, "Knows", nil)
	require.NoError(t, err)

	assert.Equal(t, []graph.EntityId{lp.ID}, All(f.eng).Loops().IDs())
	// Loops are arrows too.
	assert.Contains(t, All(f.eng).Arrows().IDs(), lp.ID)
}

func TestStreamDelete(t *testing.T) {
	f := newFixture(t)
	Of(f.eng, f.a).ArrowsFrom().IncludeComponents("Owns").Delete()

	assert.False(t, f.eng.IsValid(f.owns.ID))
	assert.True(t, f.eng.IsValid(f.knows.ID))
	assert.True(t, f.eng.IsValid(f.a.ID))
}

func TestFromIDsDropsDead(t *testing.T) {
	f := newFixture(t)
	f.eng.Delete(f.owns.ID)
	s := FromIDs(f.eng, f.a.ID, f.owns.ID, f.b.ID)
	assert.Equal(t, []graph.EntityId{f.a.ID, f.b.ID}, s.IDs())
}
