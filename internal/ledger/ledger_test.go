package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verichain-labs/verichain/internal/scoring"
)

const (
	owner    = "0xowner"
	verifier = "0xverifier"
	stranger = "0xstranger"
)

func fixedClock() func() time.Time {
	ts := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestStoreVerification_OwnerSucceeds(t *testing.T) {
	t.Parallel()

	l := New(owner, WithClock(fixedClock()))
	id, err := l.StoreVerification(owner, "hash1", 87, "QmCID")

	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, int64(1), l.GetVerificationCount())

	entry, err := l.GetVerification(id)
	require.NoError(t, err)
	assert.Equal(t, "hash1", entry.ContentHash)
	assert.Equal(t, 87, entry.TrustScore)
	assert.Equal(t, scoring.TierVerified, entry.Status)
	assert.Equal(t, owner, entry.Submitter)
	assert.Equal(t, fixedClock()(), entry.Timestamp)
}

func TestStoreVerification_UnauthorizedReverts(t *testing.T) {
	t.Parallel()

	l := New(owner)
	_, err := l.StoreVerification(stranger, "hash1", 50, "QmCID")

	require.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, int64(0), l.GetVerificationCount())
}

func TestStoreVerification_ScoreAbove100Reverts(t *testing.T) {
	t.Parallel()

	l := New(owner)
	_, err := l.StoreVerification(owner, "hash1", 101, "QmCID")

	require.ErrorIs(t, err, ErrInvalidScore)
}

func TestStoreVerification_SequentialIDs(t *testing.T) {
	t.Parallel()

	l := New(owner)
	for i := 1; i <= 5; i++ {
		id, err := l.StoreVerification(owner, fmt.Sprintf("hash%d", i), 60, "QmCID")
		require.NoError(t, err)
		assert.Equal(t, int64(i), id)
	}
}

func TestVerifierLifecycle(t *testing.T) {
	t.Parallel()

	l := New(owner)

	_, err := l.StoreVerification(verifier, "hash1", 60, "QmCID")
	require.ErrorIs(t, err, ErrNotAuthorized)

	require.NoError(t, l.AddVerifier(owner, verifier))
	assert.True(t, l.IsVerifier(verifier))

	// Idempotent.
	require.NoError(t, l.AddVerifier(owner, verifier))

	id, err := l.StoreVerification(verifier, "hash1", 60, "QmCID")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.NoError(t, l.RemoveVerifier(owner, verifier))
	assert.False(t, l.IsVerifier(verifier))

	_, err = l.StoreVerification(verifier, "hash2", 60, "QmCID")
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestVerifierAdmin_OwnerOnly(t *testing.T) {
	t.Parallel()

	l := New(owner)
	require.ErrorIs(t, l.AddVerifier(stranger, verifier), ErrNotAuthorized)
	require.ErrorIs(t, l.RemoveVerifier(stranger, verifier), ErrNotAuthorized)
}

func TestGetLatestVerification(t *testing.T) {
	t.Parallel()

	l := New(owner)
	_, err := l.GetLatestVerification("unknown")
	require.ErrorIs(t, err, ErrUnknownContent)

	_, err = l.StoreVerification(owner, "hash1", 40, "QmOld")
	require.NoError(t, err)
	_, err = l.StoreVerification(owner, "hash1", 90, "QmNew")
	require.NoError(t, err)

	latest, err := l.GetLatestVerification("hash1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest.ID)
	assert.Equal(t, "QmNew", latest.MetadataCID)
}

func TestGetContentHistory(t *testing.T) {
	t.Parallel()

	l := New(owner)
	assert.Empty(t, l.GetContentHistory("hash1"))

	l.StoreVerification(owner, "hash1", 40, "a")
	l.StoreVerification(owner, "hash2", 50, "b")
	l.StoreVerification(owner, "hash1", 60, "c")

	assert.Equal(t, []int64{1, 3}, l.GetContentHistory("hash1"))
	assert.Equal(t, []int64{2}, l.GetContentHistory("hash2"))
}

func TestGetVerification_UnknownID(t *testing.T) {
	t.Parallel()

	l := New(owner)
	_, err := l.GetVerification(1)
	require.ErrorIs(t, err, ErrNoRecord)
	_, err = l.GetVerification(0)
	require.ErrorIs(t, err, ErrNoRecord)
}

func TestEvents_Emitted(t *testing.T) {
	t.Parallel()

	l := New(owner)
	id, err := l.StoreVerification(owner, "hash1", 87, "QmCID")
	require.NoError(t, err)

	select {
	case ev := <-l.Events():
		assert.Equal(t, id, ev.ID)
		assert.Equal(t, "hash1", ev.ContentHash)
		assert.Equal(t, 87, ev.TrustScore)
		assert.Equal(t, owner, ev.Submitter)
	default:
		t.Fatal("expected a ledger event")
	}
}

func TestStoreVerification_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	const n = 50
	l := New(owner)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.StoreVerification(owner, fmt.Sprintf("hash%d", i), 60, "QmCID")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(n), l.GetVerificationCount())

	// Every id in 1..n is present exactly once.
	seen := make(map[int64]bool)
	for id := int64(1); id <= n; id++ {
		entry, err := l.GetVerification(id)
		require.NoError(t, err)
		assert.False(t, seen[entry.ID])
		seen[entry.ID] = true
	}
}
