package anchor

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verichain-labs/verichain/internal/ledger"
	"github.com/verichain-labs/verichain/internal/resilience"
	"github.com/verichain-labs/verichain/internal/scoring"
	"github.com/verichain-labs/verichain/pkg/chainrpc"
)

const testHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

type stubChain struct {
	sendErr    error
	sendCalls  int
	txHash     string
	receipt    *chainrpc.Receipt
	callOut    []byte
	callErr    error
	blockErr   error
	waitErr    error
	waitCalled bool
}

func (s *stubChain) Call(context.Context, any, string, ...any) error { return nil }

func (s *stubChain) BlockNumber(context.Context) (uint64, error) {
	if s.blockErr != nil {
		return 0, s.blockErr
	}
	return 100, nil
}

func (s *stubChain) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (s *stubChain) SendTransaction(context.Context, chainrpc.TxArgs) (string, error) {
	s.sendCalls++
	if s.sendErr != nil {
		return "", s.sendErr
	}
	return s.txHash, nil
}

func (s *stubChain) CallContract(context.Context, string, []byte) ([]byte, error) {
	if s.callErr != nil {
		return nil, s.callErr
	}
	return s.callOut, nil
}

func (s *stubChain) TransactionReceipt(context.Context, string) (*chainrpc.Receipt, error) {
	return s.receipt, nil
}

func (s *stubChain) WaitMined(context.Context, string, ...chainrpc.PollOption) (*chainrpc.Receipt, error) {
	s.waitCalled = true
	if s.waitErr != nil {
		return nil, s.waitErr
	}
	return s.receipt, nil
}

func fastRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.Sleep = func(context.Context, time.Duration) error { return nil }
	return cfg
}

func word(n uint64) []byte {
	out := make([]byte, 32)
	big.NewInt(int64(n)).FillBytes(out)
	return out
}

// recordReturnData encodes a contract entry the way readRecord expects it.
func recordReturnData(t *testing.T, id, score, ts uint64, cid string) []byte {
	t.Helper()

	hashRaw, err := hex.DecodeString(testHash)
	require.NoError(t, err)

	addr := make([]byte, 32)
	fill, _ := hex.DecodeString("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	copy(addr[12:], fill)

	var data []byte
	data = append(data, word(id)...)
	data = append(data, hashRaw...)
	data = append(data, word(score)...)
	data = append(data, word(ts)...)
	data = append(data, addr...)
	data = append(data, word(192)...) // string offset: 6 words
	data = append(data, word(uint64(len(cid)))...)
	padded := make([]byte, 32)
	copy(padded, cid)
	data = append(data, padded...)
	return data
}

func TestMockAnchor(t *testing.T) {
	t.Parallel()

	a := NewMock()
	proof, err := a.Anchor(context.Background(), testHash, 87, "QmCID")

	require.NoError(t, err)
	assert.True(t, proof.Mock)
	assert.Regexp(t, "^0x[0-9a-f]{64}$", proof.TransactionID)
	assert.NotZero(t, proof.BlockNumber)
	assert.Nil(t, proof.LedgerEntryID)
	assert.False(t, a.Configured())

	rec, err := a.GetByHash(context.Background(), testHash)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestEmbeddedAnchor(t *testing.T) {
	t.Parallel()

	l := ledger.New("0xowner")
	a := NewEmbedded(l, "0xowner")

	proof, err := a.Anchor(context.Background(), testHash, 87, "QmCID")
	require.NoError(t, err)
	assert.False(t, proof.Mock)
	require.NotNil(t, proof.LedgerEntryID)
	assert.Equal(t, int64(1), *proof.LedgerEntryID)
	assert.Equal(t, uint64(1), proof.BlockNumber)
	assert.True(t, strings.HasPrefix(proof.TransactionID, "0x"))
	assert.True(t, a.Configured())
	assert.True(t, a.Healthy(context.Background()))

	rec, err := a.GetByHash(context.Background(), testHash)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 87, rec.TrustScore)
	assert.Equal(t, scoring.TierVerified, rec.Status)

	byID, err := a.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, testHash, byID.ContentHash)
}

func TestEmbeddedAnchor_UnauthorizedSubmitter(t *testing.T) {
	t.Parallel()

	l := ledger.New("0xowner")
	a := NewEmbedded(l, "0xstranger")

	_, err := a.Anchor(context.Background(), testHash, 87, "QmCID")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrNotAuthorized)
}

func TestEmbeddedAnchor_TxIDStable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, embeddedTxID(1, testHash), embeddedTxID(1, testHash))
	assert.NotEqual(t, embeddedTxID(1, testHash), embeddedTxID(2, testHash))
}

func TestRPCAnchor_Success(t *testing.T) {
	t.Parallel()

	chain := &stubChain{
		txHash:  "0xtx",
		receipt: &chainrpc.Receipt{TransactionHash: "0xtx", BlockNumber: "0x10", Status: "0x1"},
		callOut: recordReturnData(t, 7, 87, 1767600000, "QmCID"),
	}
	a := NewRPC(chain, "0xcontract", "0xfrom", WithRetryConfig(fastRetry()))

	proof, err := a.Anchor(context.Background(), testHash, 87, "QmCID")
	require.NoError(t, err)
	assert.Equal(t, "0xtx", proof.TransactionID)
	assert.Equal(t, uint64(16), proof.BlockNumber)
	require.NotNil(t, proof.LedgerEntryID)
	assert.Equal(t, int64(7), *proof.LedgerEntryID)
	assert.False(t, proof.Mock)
	assert.True(t, a.Configured())
}

func TestRPCAnchor_RetriesThenTerminal(t *testing.T) {
	t.Parallel()

	chain := &stubChain{sendErr: eris.New("i/o timeout")}
	a := NewRPC(chain, "0xcontract", "0xfrom", WithRetryConfig(fastRetry()))

	_, err := a.Anchor(context.Background(), testHash, 87, "QmCID")
	require.Error(t, err)
	assert.True(t, resilience.IsTerminal(err))
	assert.Equal(t, 3, chain.sendCalls)
}

func TestRPCAnchor_NodeErrorRetried(t *testing.T) {
	t.Parallel()

	// A node-side RPC error is not a revert; the write gets all three
	// attempts.
	chain := &stubChain{sendErr: &chainrpc.RPCError{Code: -32005, Message: "limit exceeded"}}
	a := NewRPC(chain, "0xcontract", "0xfrom", WithRetryConfig(fastRetry()))

	_, err := a.Anchor(context.Background(), testHash, 87, "QmCID")
	require.Error(t, err)
	assert.True(t, resilience.IsTerminal(err))
	assert.Equal(t, 3, chain.sendCalls)
}

func TestRPCAnchor_RevertNotRetried(t *testing.T) {
	t.Parallel()

	chain := &stubChain{sendErr: &chainrpc.RPCError{Code: 3, Message: "execution reverted"}}
	a := NewRPC(chain, "0xcontract", "0xfrom", WithRetryConfig(fastRetry()))

	_, err := a.Anchor(context.Background(), testHash, 87, "QmCID")
	require.Error(t, err)
	assert.True(t, resilience.IsTerminal(err))
	assert.Equal(t, 1, chain.sendCalls)
}

func TestRPCAnchor_RevertedReceipt(t *testing.T) {
	t.Parallel()

	chain := &stubChain{
		txHash:  "0xtx",
		receipt: &chainrpc.Receipt{TransactionHash: "0xtx", BlockNumber: "0x10", Status: "0x0"},
	}
	a := NewRPC(chain, "0xcontract", "0xfrom", WithRetryConfig(fastRetry()))

	_, err := a.Anchor(context.Background(), testHash, 87, "QmCID")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")
}

func TestRPCAnchor_GetByHash_RevertMeansAbsent(t *testing.T) {
	t.Parallel()

	chain := &stubChain{callErr: &chainrpc.RPCError{Code: 3, Message: "execution reverted: no records"}}
	a := NewRPC(chain, "0xcontract", "0xfrom")

	rec, err := a.GetByHash(context.Background(), testHash)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRPCAnchor_GetByID_Decodes(t *testing.T) {
	t.Parallel()

	chain := &stubChain{callOut: recordReturnData(t, 3, 42, 1767600000, "QmMeta")}
	a := NewRPC(chain, "0xcontract", "0xfrom")

	rec, err := a.GetByID(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(3), rec.ID)
	assert.Equal(t, 42, rec.TrustScore)
	assert.Equal(t, scoring.TierFake, rec.Status)
	assert.Equal(t, testHash, rec.ContentHash)
	assert.Equal(t, "QmMeta", rec.MetadataCID)
	assert.Equal(t, "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef", rec.Submitter)
}

func TestRPCAnchor_Healthy(t *testing.T) {
	t.Parallel()

	assert.True(t, NewRPC(&stubChain{}, "0xc", "0xf").Healthy(context.Background()))
	assert.False(t, NewRPC(&stubChain{blockErr: eris.New("refused")}, "0xc", "0xf").Healthy(context.Background()))
}

func TestFailedProof(t *testing.T) {
	t.Parallel()

	proof := FailedProof()
	assert.True(t, proof.Failed)
	assert.Empty(t, proof.TransactionID)
}
