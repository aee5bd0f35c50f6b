package snapstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentic-research/tessera/internal/graph"
	"github.com/agentic-research/tessera/internal/schema"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snaps.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEngine(t *testing.T) *graph.Engine {
	t.Helper()
	eng := graph.New()
	require.NoError(t, eng.RegisterTypes("Label: s32;"))
	a, err := eng.NewObject("Label", map[string]schema.Value{schema.SelfField: schema.S32("a")})
	require.NoError(t, err)
	b, err := eng.NewObject("void", nil)
	require.NoError(t, err)
	_, err = eng.NewArrow(a.ID, b.ID, "void", nil)
	require.NoError(t, err)
	return eng
}

func TestPutAndRestore(t *testing.T) {
	s := openStore(t)
	eng := sampleEngine(t)

	id, err := s.Put("base", eng)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	fresh := graph.New()
	require.NoError(t, s.Restore("base", fresh))
	assert.Equal(t, eng.Len(), fresh.Len())
	assert.Equal(t, eng.Save(), fresh.Save())

	a, ok := fresh.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", a.Get(schema.SelfField).Str)
}

func TestPutReplacesByName(t *testing.T) {
	s := openStore(t)
	eng := sampleEngine(t)

	id1, err := s.Put("snap", eng)
	require.NoError(t, err)

	_, err = eng.NewObject("void", nil)
	require.NoError(t, err)
	id2, err := s.Put("snap", eng)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	snaps, err := s.List()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, id2, snaps[0].ID)

	fresh := graph.New()
	require.NoError(t, s.Restore("snap", fresh))
	assert.Equal(t, eng.Len(), fresh.Len())
}

func TestList(t *testing.T) {
	s := openStore(t)
	eng := sampleEngine(t)
	_, err := s.Put("one", eng)
	require.NoError(t, err)
	_, err = s.Put("two", eng)
	require.NoError(t, err)

	snaps, err := s.List()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	names := []string{snaps[0].Name, snaps[1].Name}
	assert.ElementsMatch(t, []string{"one", "two"}, names)
	for _, snap := range snaps {
		assert.NotZero(t, snap.Size)
		assert.False(t, snap.CreatedAt.IsZero())
	}
}

func TestRestoreMissing(t *testing.T) {
	s := openStore(t)
	err := s.Restore("nope", graph.New())
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestDelete(t *testing.T) {
	s := openStore(t)
	_, err := s.Put("gone", sampleEngine(t))
	require.NoError(t, err)

	require.NoError(t, s.Delete("gone"))
	assert.ErrorIs(t, s.Delete("gone"), ErrSnapshotNotFound)

	snaps, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestGetRawBytes(t *testing.T) {
	s := openStore(t)
	eng := sampleEngine(t)
	_, err := s.Put("raw", eng)
	require.NoError(t, err)

	data, err := s.Get("raw")
	require.NoError(t, err)
	assert.Equal(t, eng.Save(), data)
}
