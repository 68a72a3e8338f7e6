// Package anchor writes verification proofs to the append-only ledger. Three
// modes exist: a real chain write over JSON-RPC, the in-process embedded
// ledger, and a pure mock that fabricates proofs without any I/O.
package anchor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/verichain-labs/verichain/internal/model"
	"github.com/verichain-labs/verichain/internal/scoring"
)

// Record is a ledger entry as seen by callers, independent of where it lives.
type Record struct {
	ID          int64        `json:"id"`
	ContentHash string       `json:"content_hash"`
	TrustScore  int          `json:"trust_score"`
	MetadataCID string       `json:"metadata_cid"`
	Status      scoring.Tier `json:"status"`
	Submitter   string       `json:"submitter"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Anchorer writes and reads ledger proofs.
type Anchorer interface {
	// Anchor stores a verification on the ledger. A terminal error means
	// retries were exhausted; the caller decides how to degrade.
	Anchor(ctx context.Context, contentHash string, trustScore int, metadataCID string) (*model.AnchorProof, error)
	// GetByHash returns the latest ledger record for a content hash, or nil
	// when none exists.
	GetByHash(ctx context.Context, contentHash string) (*Record, error)
	// GetByID returns the ledger record with the given id, or nil.
	GetByID(ctx context.Context, id int64) (*Record, error)
	// Configured reports whether this anchorer performs real writes.
	Configured() bool
	// Healthy reports whether the backing ledger is reachable.
	Healthy(ctx context.Context) bool
}

// FailedProof marks an anchor attempt that exhausted retries. The
// verification still completes with a local record only.
func FailedProof() *model.AnchorProof {
	return &model.AnchorProof{Failed: true}
}

// syntheticTxID returns a random-looking 0x-prefixed 32-byte transaction id.
func syntheticTxID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "0x" + hex.EncodeToString(make([]byte, 32))
	}
	return "0x" + hex.EncodeToString(buf)
}
