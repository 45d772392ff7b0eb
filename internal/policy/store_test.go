package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore(10)
	p, err := s.Create("p1", "default", sampleRules())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)

	got, err := s.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, p.Hash, got.Hash)
}

func TestStore_CreateDuplicateIDErrors(t *testing.T) {
	s := NewStore(10)
	_, err := s.Create("p1", "default", sampleRules())
	require.NoError(t, err)

	_, err = s.Create("p1", "default", sampleRules())
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestStore_UpdateIncrementsVersionAndAppendsHistory(t *testing.T) {
	s := NewStore(10)
	_, err := s.Create("p1", "v1", sampleRules())
	require.NoError(t, err)

	updated, err := s.Update("p1", "v2", []Rule{sampleRules()[0]})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	history, err := s.GetVersionHistory("p1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestStore_UpdateUnknownIDErrors(t *testing.T) {
	s := NewStore(10)
	_, err := s.Update("missing", "x", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteRemovesCurrentAndHistory(t *testing.T) {
	s := NewStore(10)
	_, err := s.Create("p1", "v1", sampleRules())
	require.NoError(t, err)

	require.NoError(t, s.Delete("p1"))
	_, err = s.Get("p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CapacityEnforced(t *testing.T) {
	s := NewStore(1)
	_, err := s.Create("p1", "v1", sampleRules())
	require.NoError(t, err)

	_, err = s.Create("p2", "v1", sampleRules())
	assert.ErrorIs(t, err, ErrCapacity)
}

func TestStore_GetByVersionReturnsSpecificSnapshot(t *testing.T) {
	s := NewStore(10)
	_, err := s.Create("p1", "v1", sampleRules())
	require.NoError(t, err)
	_, err = s.Update("p1", "v2", []Rule{sampleRules()[0]})
	require.NoError(t, err)

	v1, err := s.GetByVersion("p1", 1)
	require.NoError(t, err)
	assert.Equal(t, "v1", v1.Name)
}

func TestStore_SnapshotIsolatesCallerMutation(t *testing.T) {
	s := NewStore(10)
	_, err := s.Create("p1", "v1", sampleRules())
	require.NoError(t, err)

	got, err := s.Get("p1")
	require.NoError(t, err)
	got.Rules[0].ID = "mutated"

	got2, err := s.Get("p1")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", got2.Rules[0].ID)
}
