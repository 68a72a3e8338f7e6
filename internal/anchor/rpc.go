package anchor

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verichain-labs/verichain/internal/model"
	"github.com/verichain-labs/verichain/internal/resilience"
	"github.com/verichain-labs/verichain/internal/scoring"
	"github.com/verichain-labs/verichain/pkg/chainrpc"
)

// Contract call signatures.
const (
	sigStoreVerification     = "storeVerification(bytes32,uint256,string)"
	sigGetVerification       = "getVerification(uint256)"
	sigGetLatestVerification = "getLatestVerification(bytes32)"
	sigGetVerificationCount  = "getVerificationCount()"
)

// rpcAnchorer writes to a deployed contract through an Ethereum JSON-RPC
// node. The node manages the signing account.
type rpcAnchorer struct {
	client   chainrpc.Client
	contract string
	from     string
	retry    resilience.RetryConfig
	pollOpts []chainrpc.PollOption
}

// RPCOption configures the RPC anchorer.
type RPCOption func(*rpcAnchorer)

// WithRetryConfig overrides the write retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) RPCOption {
	return func(a *rpcAnchorer) {
		a.retry = cfg
	}
}

// WithPollOptions forwards receipt-polling options to the RPC client.
func WithPollOptions(opts ...chainrpc.PollOption) RPCOption {
	return func(a *rpcAnchorer) {
		a.pollOpts = opts
	}
}

// NewRPC creates an anchorer that writes to the contract at the given
// address, submitting from a node-managed account.
func NewRPC(client chainrpc.Client, contract, from string, opts ...RPCOption) Anchorer {
	a := &rpcAnchorer{
		client:   client,
		contract: contract,
		from:     from,
		retry:    resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Anchor submits storeVerification and waits for the transaction to mine.
// Three attempts with linearly increasing backoff; a contract revert is not
// retried. Exhaustion returns a terminal error.
func (a *rpcAnchorer) Anchor(ctx context.Context, contentHash string, trustScore int, metadataCID string) (*model.AnchorProof, error) {
	hash32, err := chainrpc.HashToBytes32(contentHash)
	if err != nil {
		return nil, resilience.NewTerminalError(err)
	}
	data, err := chainrpc.EncodeCall(sigStoreVerification, hash32, big.NewInt(int64(trustScore)), metadataCID)
	if err != nil {
		return nil, resilience.NewTerminalError(err)
	}

	cfg := a.retry
	cfg.OnRetry = resilience.RetryLogger("chain", "store_verification")
	cfg.ShouldRetry = func(err error) bool {
		// Reverts are deterministic; node-side RPC errors and infrastructure
		// failures are worth another attempt.
		var rpcErr *chainrpc.RPCError
		if errors.As(err, &rpcErr) {
			return !rpcErr.Reverted()
		}
		return true
	}

	start := time.Now()
	proof, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.AnchorProof, error) {
		return a.submit(ctx, contentHash, data)
	})
	if err != nil {
		return nil, resilience.NewTerminalError(eris.Wrap(err, "anchor: chain write"))
	}

	zap.L().Info("anchor: verification stored on chain",
		zap.String("content_hash", contentHash),
		zap.String("tx", proof.TransactionID),
		zap.Uint64("block", proof.BlockNumber),
		zap.Duration("duration", time.Since(start)),
	)
	return proof, nil
}

func (a *rpcAnchorer) submit(ctx context.Context, contentHash string, data []byte) (*model.AnchorProof, error) {
	txHash, err := a.client.SendTransaction(ctx, chainrpc.TxArgs{
		From: a.from,
		To:   a.contract,
		Data: chainrpc.EncodeHex(data),
	})
	if err != nil {
		return nil, err
	}

	receipt, err := a.client.WaitMined(ctx, txHash, a.pollOpts...)
	if err != nil {
		return nil, err
	}
	if !receipt.Succeeded() {
		return nil, eris.Errorf("anchor: transaction %s reverted", txHash)
	}

	block, err := receipt.BlockNumberUint()
	if err != nil {
		return nil, err
	}

	proof := &model.AnchorProof{
		TransactionID: receipt.TransactionHash,
		BlockNumber:   block,
	}

	// The entry id is not in the receipt; read it back from the contract.
	if rec, readErr := a.GetByHash(ctx, contentHash); readErr == nil && rec != nil {
		proof.LedgerEntryID = &rec.ID
	}
	return proof, nil
}

func (a *rpcAnchorer) GetByHash(ctx context.Context, contentHash string) (*Record, error) {
	hash32, err := chainrpc.HashToBytes32(contentHash)
	if err != nil {
		return nil, err
	}
	data, err := chainrpc.EncodeCall(sigGetLatestVerification, hash32)
	if err != nil {
		return nil, err
	}
	return a.readRecord(ctx, data)
}

func (a *rpcAnchorer) GetByID(ctx context.Context, id int64) (*Record, error) {
	data, err := chainrpc.EncodeCall(sigGetVerification, uint64(id))
	if err != nil {
		return nil, err
	}
	return a.readRecord(ctx, data)
}

// readRecord executes a read-only contract call and decodes the returned
// entry: (id, contentHash, trustScore, timestamp, submitter, metadataCID).
// A revert means no record exists.
func (a *rpcAnchorer) readRecord(ctx context.Context, data []byte) (*Record, error) {
	out, err := a.client.CallContract(ctx, a.contract, data)
	if err != nil {
		var rpcErr *chainrpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Reverted() {
			return nil, nil
		}
		return nil, eris.Wrap(err, "anchor: contract read")
	}

	id, err := chainrpc.DecodeUint64(out, 0)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, nil
	}
	hash32, err := chainrpc.DecodeBytes32(out, 1)
	if err != nil {
		return nil, err
	}
	score, err := chainrpc.DecodeUint64(out, 2)
	if err != nil {
		return nil, err
	}
	ts, err := chainrpc.DecodeUint64(out, 3)
	if err != nil {
		return nil, err
	}
	submitter, err := chainrpc.DecodeAddress(out, 4)
	if err != nil {
		return nil, err
	}
	cid, err := chainrpc.DecodeString(out, 5)
	if err != nil {
		return nil, err
	}

	return &Record{
		ID:          int64(id),
		ContentHash: chainrpc.EncodeHex(hash32[:])[2:],
		TrustScore:  int(score),
		MetadataCID: cid,
		Status:      scoring.TierForScore(int(score)),
		Submitter:   submitter,
		Timestamp:   time.Unix(int64(ts), 0).UTC(),
	}, nil
}

func (a *rpcAnchorer) Configured() bool { return true }

// Healthy checks node reachability with a block-number query.
func (a *rpcAnchorer) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := a.client.BlockNumber(ctx)
	return err == nil
}
