package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verichain-labs/verichain/internal/model"
	"github.com/verichain-labs/verichain/internal/scoring"
)

func testRecord(hash string, score int) *model.VerificationRecord {
	return &model.VerificationRecord{
		ID:          uuid.New().String(),
		ContentHash: hash,
		Filename:    "photo.jpg",
		TrustScore:  score,
		Confidence:  75,
		Status:      scoring.TierForScore(score),
		Analysis: model.Analysis{
			AIProbability:   0.13,
			RealProbability: 0.87,
			ModelUsed:       "detector",
		},
		Pin:       model.PinResult{CID: "QmCID", Mock: true},
		Anchor:    model.AnchorProof{TransactionID: "0xabc", Mock: true},
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemory_AppendAndFind(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()

	rec := testRecord("hash1", 87)
	require.NoError(t, s.Append(ctx, rec))

	got, err := s.FindByHash(ctx, "hash1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 87, got.TrustScore)

	missing, err := s.FindByHash(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemory_FindByHashReturnsLatest(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()

	first := testRecord("hash1", 40)
	second := testRecord("hash1", 90)
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, second))

	got, err := s.FindByHash(ctx, "hash1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestMemory_RecentNewestFirst(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, testRecord(fmt.Sprintf("hash%d", i), 60)))
	}

	recent, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "hash4", recent[0].ContentHash)
	assert.Equal(t, "hash3", recent[1].ContentHash)
	assert.Equal(t, "hash2", recent[2].ContentHash)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	over, err := s.Recent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, over, 5)
}

func TestMemory_Stats(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testRecord("a", 90)))
	require.NoError(t, s.Append(ctx, testRecord("b", 60)))
	require.NoError(t, s.Append(ctx, testRecord("c", 30)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.Verified)
	assert.Equal(t, int64(1), stats.Suspicious)
	assert.Equal(t, int64(1), stats.Fake)
	assert.Equal(t, int64(3), stats.MockPins)
	assert.Equal(t, int64(3), stats.MockAnchors)
}

func TestMemory_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	const n = 100
	s := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, testRecord(fmt.Sprintf("hash%d", i), 60)))
		}(i)
	}
	wg.Wait()

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)
}

func TestMemory_ReadsAreSnapshots(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, testRecord("hash1", 87)))

	got, err := s.FindByHash(ctx, "hash1")
	require.NoError(t, err)
	got.TrustScore = 0

	again, err := s.FindByHash(ctx, "hash1")
	require.NoError(t, err)
	assert.Equal(t, 87, again.TrustScore)
}
