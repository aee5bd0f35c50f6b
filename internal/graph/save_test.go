package graph

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tessera/internal/schema"
)

// threeChain builds: object a holding Foo{101}, void objects b and c,
// and void arrows a->b and b->c. Ids come out 1..5 on a fresh engine.
func threeChain(t *testing.T) *Engine {
	t.Helper()
	e := New()
	require.NoError(t, e.RegisterTypes("Foo: i32;"))
	a, err := e.NewObject("Foo", map[string]schema.Value{schema.SelfField: schema.I32(101)})
	require.NoError(t, err)
	b, err := e.NewObject("void", nil)
	require.NoError(t, err)
	c, err := e.NewObject("void", nil)
	require.NoError(t, err)
	_, err = e.NewArrow(a.ID, b.ID, "void", nil)
	require.NoError(t, err)
	_, err = e.NewArrow(b.ID, c.ID, "void", nil)
	require.NoError(t, err)
	return e
}

func TestSaveGoldenBytes(t *testing.T) {
	e := threeChain(t)

	want, err := hex.DecodeString(strings.Join([]string{
		// type definitions, lexicographically sorted, u16 length prefixed
		"0009", "466f6f3a206933323b", // "Foo: i32;"
		"000b", "766f69643a20766f69643b", // "void: void;"
		"0000", // end of type definitions
		// tile records in ascending id order
		"0000000000000001", "0000000000000001", "0000000000000001",
		"0000000000000003", "466f6f", "00000004", "00000065",
		"0000000000000002", "0000000000000002", "0000000000000002",
		"0000000000000004", "766f6964", "00000000",
		"0000000000000003", "0000000000000003", "0000000000000003",
		"0000000000000004", "766f6964", "00000000",
		"0000000000000004", "0000000000000001", "0000000000000002",
		"0000000000000004", "766f6964", "00000000",
		"0000000000000005", "0000000000000002", "0000000000000003",
		"0000000000000004", "766f6964", "00000000",
	}, ""))
	require.NoError(t, err)

	assert.Equal(t, want, e.Save())
}

func TestSaveDeterministic(t *testing.T) {
	e := threeChain(t)
	assert.Equal(t, e.Save(), e.Save())
}

func TestLoadIntoFreshEngine(t *testing.T) {
	snap := threeChain(t).Save()

	e := New()
	require.NoError(t, e.Load(snap))

	assert.Equal(t, 5, e.Len())
	assert.True(t, e.Types().Has("Foo"))

	a, ok := e.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Foo", a.Component)
	assert.Equal(t, schema.I32(101), a.Get(schema.SelfField))

	ar, ok := e.Get(4)
	require.True(t, ok)
	assert.True(t, ar.IsArrow())
	assert.Equal(t, EntityId(1), ar.Source)
	assert.Equal(t, EntityId(2), ar.Target)

	// Adjacency is rebuilt.
	assert.Equal(t, []EntityId{4}, e.DependentIDs(1))
	assert.Equal(t, []EntityId{4, 5}, e.DependentIDs(2))

	// Round trip is byte identical.
	assert.Equal(t, snap, e.Save())
}

func TestLoadShiftsIDs(t *testing.T) {
	snap := threeChain(t).Save()

	e := New()
	pre, err := e.NewObject("void", nil)
	require.NoError(t, err)
	require.Equal(t, EntityId(1), pre.ID)

	require.NoError(t, e.Load(snap))

	// The snapshot's ids 1..5 land at 2..6.
	assert.Equal(t, 6, e.Len())
	a, ok := e.Get(2)
	require.True(t, ok)
	assert.Equal(t, "Foo", a.Component)
	ar, ok := e.Get(5)
	require.True(t, ok)
	assert.Equal(t, EntityId(2), ar.Source)
	assert.Equal(t, EntityId(3), ar.Target)

	// The pre-existing tile is untouched and fresh allocations continue
	// past the grafted range.
	assert.True(t, e.IsValid(pre.ID))
	next, err := e.NewObject("void", nil)
	require.NoError(t, err)
	assert.Equal(t, EntityId(7), next.ID)
}

func TestLoadTwiceGraftsTwoCopies(t *testing.T) {
	snap := threeChain(t).Save()
	e := New()
	require.NoError(t, e.Load(snap))
	require.NoError(t, e.Load(snap))

	assert.Equal(t, 10, e.Len())
	// Second copy sits at ids 6..10.
	ar, ok := e.Get(9)
	require.True(t, ok)
	assert.Equal(t, EntityId(6), ar.Source)
	assert.Equal(t, EntityId(7), ar.Target)
}

func TestLoadTruncated(t *testing.T) {
	snap := threeChain(t).Save()
	e := New()
	err := e.Load(snap[:len(snap)-3])
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestLoadBadPayloadWidth(t *testing.T) {
	e := threeChain(t)
	snap := e.Save()

	// Corrupt the Foo tile's data length: 4 -> 3. The record sits right
	// after the typedef block.
	hdr := 2 + 9 + 2 + 11 + 2 // typedefs plus end marker
	off := hdr + 8*4 + 3      // ids, name_len, "Foo"
	bad := make([]byte, len(snap))
	copy(bad, snap)
	bad[off+3] = 3

	fresh := New()
	err := fresh.Load(bad)
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestLoadUnknownComponent(t *testing.T) {
	// A snapshot whose tile references a type with no definition block.
	e := threeChain(t)
	snap := e.Save()

	// Strip the typedef section down to just the end marker, keeping the
	// tile records.
	hdr := 2 + 9 + 2 + 11
	stripped := append([]byte{0, 0}, snap[hdr+2:]...)

	fresh := New()
	err := fresh.Load(stripped)
	assert.ErrorIs(t, err, ErrBadSnapshot)
}
