// Package store persists verification records. The history is append-only:
// no driver exposes update or delete.
package store

import (
	"context"

	"github.com/verichain-labs/verichain/internal/model"
)

// Stats summarizes the stored history for the admin surface.
type Stats struct {
	Total       int64 `json:"total"`
	Verified    int64 `json:"verified"`
	Suspicious  int64 `json:"suspicious"`
	Fake        int64 `json:"fake"`
	MockPins    int64 `json:"mock_pins"`
	MockAnchors int64 `json:"mock_anchors"`
}

// Store is the verification history interface. Implementations must be safe
// for concurrent use; concurrent appends may interleave but never lose
// records.
type Store interface {
	// Append adds a completed verification record.
	Append(ctx context.Context, rec *model.VerificationRecord) error
	// FindByHash returns the most recent record for a content hash, or nil.
	FindByHash(ctx context.Context, contentHash string) (*model.VerificationRecord, error)
	// Recent returns up to limit records, newest first. limit <= 0 returns all.
	Recent(ctx context.Context, limit int) ([]model.VerificationRecord, error)
	// Count returns the total number of stored records.
	Count(ctx context.Context) (int64, error)
	// Stats aggregates counts by status tier and degradation flags.
	Stats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
