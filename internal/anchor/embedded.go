package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/rotisserie/eris"

	"github.com/verichain-labs/verichain/internal/ledger"
	"github.com/verichain-labs/verichain/internal/model"
)

// embeddedAnchorer writes to the in-process ledger. Proofs carry a
// deterministic pseudo transaction id and use the ledger entry id as the
// block number.
type embeddedAnchorer struct {
	ledger    *ledger.Ledger
	submitter string
}

// NewEmbedded creates an anchorer backed by the in-process ledger. The
// submitter address must be authorized on the ledger.
func NewEmbedded(l *ledger.Ledger, submitter string) Anchorer {
	return &embeddedAnchorer{ledger: l, submitter: submitter}
}

func (e *embeddedAnchorer) Anchor(_ context.Context, contentHash string, trustScore int, metadataCID string) (*model.AnchorProof, error) {
	id, err := e.ledger.StoreVerification(e.submitter, contentHash, trustScore, metadataCID)
	if err != nil {
		return nil, eris.Wrap(err, "anchor: embedded ledger write")
	}
	return &model.AnchorProof{
		TransactionID: embeddedTxID(id, contentHash),
		BlockNumber:   uint64(id),
		LedgerEntryID: &id,
	}, nil
}

func (e *embeddedAnchorer) GetByHash(_ context.Context, contentHash string) (*Record, error) {
	entry, err := e.ledger.GetLatestVerification(contentHash)
	if err != nil {
		return nil, nil
	}
	return entryToRecord(entry), nil
}

func (e *embeddedAnchorer) GetByID(_ context.Context, id int64) (*Record, error) {
	entry, err := e.ledger.GetVerification(id)
	if err != nil {
		return nil, nil
	}
	return entryToRecord(entry), nil
}

func (e *embeddedAnchorer) Configured() bool { return true }

func (e *embeddedAnchorer) Healthy(context.Context) bool { return true }

func entryToRecord(entry ledger.Entry) *Record {
	return &Record{
		ID:          entry.ID,
		ContentHash: entry.ContentHash,
		TrustScore:  entry.TrustScore,
		MetadataCID: entry.MetadataCID,
		Status:      entry.Status,
		Submitter:   entry.Submitter,
		Timestamp:   entry.Timestamp,
	}
}

// embeddedTxID derives a stable identifier from the entry id and content
// hash so the same write always reports the same proof.
func embeddedTxID(id int64, contentHash string) string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	h.Write(buf[:])
	h.Write([]byte(contentHash))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
