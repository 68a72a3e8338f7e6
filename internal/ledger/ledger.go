// Package ledger implements the append-only verification ledger as an
// in-process state machine: sequential entry ids, owner-managed verifier
// access control, and per-content history. It mirrors the behavior of the
// on-chain contract so deployments without a chain endpoint still anchor
// records with real semantics.
package ledger

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/verichain-labs/verichain/internal/scoring"
)

// Rejection reasons. These correspond to contract reverts.
var (
	ErrNotAuthorized  = eris.New("ledger: caller not authorized to verify")
	ErrInvalidScore   = eris.New("ledger: trust score exceeds 100")
	ErrNoRecord       = eris.New("ledger: no record with that id")
	ErrUnknownContent = eris.New("ledger: no records for that content hash")
)

// Entry is a single immutable ledger record.
type Entry struct {
	ID          int64        `json:"id"`
	ContentHash string       `json:"content_hash"`
	TrustScore  int          `json:"trust_score"`
	MetadataCID string       `json:"metadata_cid"`
	Status      scoring.Tier `json:"status"`
	Submitter   string       `json:"submitter"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Event notifies subscribers of a stored verification.
type Event struct {
	ID          int64
	ContentHash string
	TrustScore  int
	Submitter   string
}

// Ledger is safe for concurrent use. Entries are never mutated after append.
type Ledger struct {
	mu        sync.RWMutex
	owner     string
	verifiers map[string]bool
	entries   []Entry
	byHash    map[string][]int64
	now       func() time.Time
	events    chan Event
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a ledger owned by the given address. The owner is implicitly
// authorized to store verifications.
func New(owner string, opts ...Option) *Ledger {
	l := &Ledger{
		owner:     owner,
		verifiers: make(map[string]bool),
		byHash:    make(map[string][]int64),
		now:       time.Now,
		events:    make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Owner returns the owning address.
func (l *Ledger) Owner() string {
	return l.owner
}

// Events exposes the notification stream. Events are dropped, not blocked on,
// when no consumer keeps up.
func (l *Ledger) Events() <-chan Event {
	return l.events
}

// StoreVerification appends a new entry and returns its id. Ids are assigned
// sequentially starting at 1. The caller must be the owner or an authorized
// verifier, and the score must not exceed 100.
func (l *Ledger) StoreVerification(caller, contentHash string, trustScore int, metadataCID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner && !l.verifiers[caller] {
		return 0, ErrNotAuthorized
	}
	if trustScore > 100 {
		return 0, ErrInvalidScore
	}

	entry := Entry{
		ID:          int64(len(l.entries)) + 1,
		ContentHash: contentHash,
		TrustScore:  trustScore,
		MetadataCID: metadataCID,
		Status:      scoring.TierForScore(trustScore),
		Submitter:   caller,
		Timestamp:   l.now(),
	}
	l.entries = append(l.entries, entry)
	l.byHash[contentHash] = append(l.byHash[contentHash], entry.ID)

	select {
	case l.events <- Event{ID: entry.ID, ContentHash: contentHash, TrustScore: trustScore, Submitter: caller}:
	default:
	}

	return entry.ID, nil
}

// GetVerification returns the entry with the given id.
func (l *Ledger) GetVerification(id int64) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id < 1 || id > int64(len(l.entries)) {
		return Entry{}, ErrNoRecord
	}
	return l.entries[id-1], nil
}

// GetLatestVerification returns the most recent entry for a content hash.
func (l *Ledger) GetLatestVerification(contentHash string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.byHash[contentHash]
	if len(ids) == 0 {
		return Entry{}, ErrUnknownContent
	}
	return l.entries[ids[len(ids)-1]-1], nil
}

// GetContentHistory returns all entry ids for a content hash, oldest first.
func (l *Ledger) GetContentHistory(contentHash string) []int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.byHash[contentHash]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// GetVerificationCount returns the number of stored entries.
func (l *Ledger) GetVerificationCount() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.entries))
}

// AddVerifier authorizes an address. Owner-only; adding an already-authorized
// address is a no-op.
func (l *Ledger) AddVerifier(caller, addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotAuthorized
	}
	l.verifiers[addr] = true
	return nil
}

// RemoveVerifier revokes an address. Owner-only and idempotent.
func (l *Ledger) RemoveVerifier(caller, addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotAuthorized
	}
	delete(l.verifiers, addr)
	return nil
}

// IsVerifier reports whether an address may store verifications.
func (l *Ledger) IsVerifier(addr string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return addr == l.owner || l.verifiers[addr]
}
