package store

import (
	"context"
	"sync"

	"github.com/verichain-labs/verichain/internal/model"
	"github.com/verichain-labs/verichain/internal/scoring"
)

// MemoryStore keeps the history in process memory. The default driver: the
// entire history is lost on restart. Reads return copies, so callers never
// observe later appends through a returned slice.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.VerificationRecord
	byHash  map[string]int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		byHash: make(map[string]int),
	}
}

func (s *MemoryStore) Append(_ context.Context, rec *model.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, *rec)
	// Latest record wins the hash index.
	s.byHash[rec.ContentHash] = len(s.records) - 1
	return nil
}

func (s *MemoryStore) FindByHash(_ context.Context, contentHash string) (*model.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byHash[contentHash]
	if !ok {
		return nil, nil
	}
	rec := s.records[idx]
	return &rec, nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]model.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]model.VerificationRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *MemoryStore) Stats(context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{Total: int64(len(s.records))}
	for _, rec := range s.records {
		switch rec.Status {
		case scoring.TierVerified:
			stats.Verified++
		case scoring.TierSuspicious:
			stats.Suspicious++
		case scoring.TierFake:
			stats.Fake++
		}
		if rec.Pin.Mock {
			stats.MockPins++
		}
		if rec.Anchor.Mock || rec.Anchor.Failed {
			stats.MockAnchors++
		}
	}
	return stats, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
