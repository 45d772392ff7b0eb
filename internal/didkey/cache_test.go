package didkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidDID(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	encoded := append([]byte{multicodecEd25519Pub}, pub...)
	return "did:key:z" + base58.Encode(encoded)
}

func TestResolver_CachesSuccessfulResolution(t *testing.T) {
	r := NewResolver(time.Minute, 10)
	did := newValidDID(t)

	doc1, err := r.Resolve(did)
	require.NoError(t, err)
	doc2, err := r.Resolve(did)
	require.NoError(t, err)

	assert.Same(t, doc1, doc2, "second resolve should hit the cache and return the same pointer")
	assert.Equal(t, 1, r.Size())
}

func TestResolver_DoesNotCacheFailures(t *testing.T) {
	r := NewResolver(time.Minute, 10)

	_, err := r.Resolve("not-a-did")
	require.Error(t, err)
	assert.Equal(t, 0, r.Size())
}

func TestResolver_ExpiresEntriesByTTL(t *testing.T) {
	r := NewResolver(time.Millisecond, 10)
	r.now = func() time.Time { return time.Unix(0, 0) }
	did := newValidDID(t)

	_, err := r.Resolve(did)
	require.NoError(t, err)

	r.now = func() time.Time { return time.Unix(0, 0).Add(time.Second) }
	_, err = r.Resolve(did)
	require.NoError(t, err)
	// re-resolved after expiry: still succeeds, cache refreshed
	assert.Equal(t, 1, r.Size())
}

func TestResolver_EvictsOldestAtCapacity(t *testing.T) {
	r := NewResolver(time.Minute, 2)
	did1 := newValidDID(t)
	did2 := newValidDID(t)
	did3 := newValidDID(t)

	_, err := r.Resolve(did1)
	require.NoError(t, err)
	_, err = r.Resolve(did2)
	require.NoError(t, err)
	_, err = r.Resolve(did3)
	require.NoError(t, err)

	assert.LessOrEqual(t, r.Size(), 2)
}
