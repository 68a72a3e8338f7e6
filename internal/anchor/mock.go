package anchor

import (
	"context"
	"math/rand"

	"go.uber.org/zap"

	"github.com/verichain-labs/verichain/internal/model"
)

// mockAnchorer fabricates proofs without touching any ledger. Used when
// neither a chain endpoint nor the embedded ledger is configured.
type mockAnchorer struct {
	blockNum func() uint64
}

// NewMock creates an anchorer that always returns synthetic proofs.
func NewMock() Anchorer {
	return &mockAnchorer{
		blockNum: func() uint64 {
			// A plausible-looking recent block number.
			return 19_000_000 + uint64(rand.Intn(1_000_000))
		},
	}
}

func (m *mockAnchorer) Anchor(_ context.Context, contentHash string, _ int, _ string) (*model.AnchorProof, error) {
	zap.L().Debug("anchor: no ledger configured, using synthetic proof",
		zap.String("content_hash", contentHash),
	)
	return &model.AnchorProof{
		TransactionID: syntheticTxID(),
		BlockNumber:   m.blockNum(),
		Mock:          true,
	}, nil
}

func (m *mockAnchorer) GetByHash(context.Context, string) (*Record, error) {
	return nil, nil
}

func (m *mockAnchorer) GetByID(context.Context, int64) (*Record, error) {
	return nil, nil
}

func (m *mockAnchorer) Configured() bool { return false }

func (m *mockAnchorer) Healthy(context.Context) bool { return false }
