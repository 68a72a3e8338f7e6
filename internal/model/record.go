package model

import (
	"time"

	"github.com/verichain-labs/verichain/internal/scoring"
)

// Analysis holds the normalized classifier output for a verification.
// Probabilities are in [0,1] and sum to 1.
type Analysis struct {
	AIProbability   float64 `json:"ai_probability"`
	RealProbability float64 `json:"real_probability"`
	ModelUsed       string  `json:"model_used"`
	Synthetic       bool    `json:"synthetic,omitempty"`
}

// PinResult identifies pinned metadata on the content-addressed store.
type PinResult struct {
	CID  string `json:"cid"`
	URL  string `json:"url,omitempty"`
	Mock bool   `json:"mock"`
}

// AnchorProof is the ledger write receipt for a verification. When the
// anchoring adapter runs unconfigured or exhausts retries, Mock is true (or
// Failed for retry exhaustion) and the identifiers are synthetic or empty.
type AnchorProof struct {
	TransactionID string `json:"transaction_id,omitempty"`
	BlockNumber   uint64 `json:"block_number,omitempty"`
	LedgerEntryID *int64 `json:"ledger_entry_id,omitempty"`
	Mock          bool   `json:"mock"`
	Failed        bool   `json:"failed,omitempty"`
}

// VerificationRecord is the immutable outcome of one pipeline run. Records
// are appended to the history store and never updated or deleted.
type VerificationRecord struct {
	ID           string       `json:"id"`
	ContentHash  string       `json:"content_hash"`
	Filename     string       `json:"filename,omitempty"`
	DeclaredType string       `json:"declared_type,omitempty"`
	DetectedType string       `json:"detected_type,omitempty"`
	SizeBytes    int64        `json:"size_bytes"`
	TrustScore   int          `json:"trust_score"`
	Confidence   int          `json:"confidence"`
	AIGenerated  bool         `json:"ai_generated"`
	Status       scoring.Tier `json:"status"`
	Analysis     Analysis     `json:"analysis"`
	Pin          PinResult    `json:"pin"`
	Anchor       AnchorProof  `json:"anchor"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Upload is the raw input to the verification pipeline.
type Upload struct {
	Filename     string
	DeclaredType string
	Data         []byte
}

// HashSubmission is the pre-hashed verification path: the caller supplies a
// content hash and trust score, skipping validation and classification.
type HashSubmission struct {
	ContentHash string         `json:"content_hash"`
	TrustScore  int            `json:"trust_score"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
