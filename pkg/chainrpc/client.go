// Package chainrpc provides a minimal Ethereum JSON-RPC client with the
// contract-call helpers the anchoring adapter needs.
package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
)

// Client talks JSON-RPC 2.0 to an Ethereum-compatible node.
type Client interface {
	// Call performs a raw JSON-RPC call, unmarshalling the result into out.
	Call(ctx context.Context, out any, method string, params ...any) error
	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (uint64, error)
	// ChainID returns the chain identifier.
	ChainID(ctx context.Context) (*big.Int, error)
	// SendTransaction submits a state-changing call from a node-managed
	// account and returns the transaction hash.
	SendTransaction(ctx context.Context, tx TxArgs) (string, error)
	// CallContract executes a read-only contract call.
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
	// TransactionReceipt returns the receipt for a mined transaction, or nil
	// if the transaction is still pending.
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
	// WaitMined polls for the receipt until the transaction is mined or the
	// context expires.
	WaitMined(ctx context.Context, txHash string, opts ...PollOption) (*Receipt, error)
}

// TxArgs describes an eth_sendTransaction request.
type TxArgs struct {
	From string `json:"from"`
	To   string `json:"to"`
	Data string `json:"data"`
}

// Receipt is the subset of an Ethereum transaction receipt the anchoring
// adapter consumes.
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	Status          string `json:"status"`
	Logs            []Log  `json:"logs"`
}

// Log is a contract event emitted during the transaction.
type Log struct {
	Topics []string `json:"topics"`
	Data   string   `json:"data"`
}

// BlockNumberUint parses the receipt's hex block number.
func (r *Receipt) BlockNumberUint() (uint64, error) {
	return parseHexUint(r.BlockNumber)
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r.Status == "0x1"
}

// RPCError is a JSON-RPC error object returned by the node. Contract reverts
// surface here with the node's revert reason in Message.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// revertErrorCode is the JSON-RPC error code for an execution revert.
const revertErrorCode = 3

// Reverted reports whether the error is a contract revert. Other RPC errors
// (rate limits, mempool pressure) are node-side conditions that may clear on
// a later attempt.
func (e *RPCError) Reverted() bool {
	return e.Code == revertErrorCode || strings.Contains(strings.ToLower(e.Message), "revert")
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64
}

// NewClient creates a JSON-RPC client for the given node endpoint.
func NewClient(endpoint string, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *httpClient) Call(ctx context.Context, out any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return eris.Wrap(err, "chainrpc: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return eris.Wrap(err, "chainrpc: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "chainrpc: %s", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "chainrpc: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("chainrpc: %s unexpected status %d: %s", method, resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return eris.Wrapf(err, "chainrpc: unmarshal %s response", method)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return eris.Wrapf(err, "chainrpc: unmarshal %s result", method)
	}
	return nil
}

func (c *httpClient) BlockNumber(ctx context.Context) (uint64, error) {
	var hexNum string
	if err := c.Call(ctx, &hexNum, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return parseHexUint(hexNum)
}

func (c *httpClient) ChainID(ctx context.Context) (*big.Int, error) {
	var hexNum string
	if err := c.Call(ctx, &hexNum, "eth_chainId"); err != nil {
		return nil, err
	}
	id, ok := new(big.Int).SetString(strings.TrimPrefix(hexNum, "0x"), 16)
	if !ok {
		return nil, eris.Errorf("chainrpc: malformed chain id %q", hexNum)
	}
	return id, nil
}

func (c *httpClient) SendTransaction(ctx context.Context, tx TxArgs) (string, error) {
	var txHash string
	if err := c.Call(ctx, &txHash, "eth_sendTransaction", tx); err != nil {
		return "", err
	}
	return txHash, nil
}

func (c *httpClient) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	var result string
	call := map[string]string{"to": to, "data": EncodeHex(data)}
	if err := c.Call(ctx, &result, "eth_call", call, "latest"); err != nil {
		return nil, err
	}
	return DecodeHex(result)
}

func (c *httpClient) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var receipt *Receipt
	if err := c.Call(ctx, &receipt, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, err
	}
	return receipt, nil
}

const (
	defaultPollInitial = 500 * time.Millisecond
	defaultPollCap     = 5 * time.Second
	defaultPollTimeout = time.Minute
)

// PollOption configures receipt polling.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial time.Duration
	cap     time.Duration
	timeout time.Duration
}

// WithPollInterval overrides the initial poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initial = d
	}
}

// WithPollCap overrides the maximum poll interval.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.cap = d
	}
}

// WithPollTimeout overrides the default timeout (applied only if the parent
// context has no deadline).
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// WaitMined polls eth_getTransactionReceipt until the transaction is mined,
// using exponential backoff on the poll interval (capped).
func (c *httpClient) WaitMined(ctx context.Context, txHash string, opts ...PollOption) (*Receipt, error) {
	cfg := pollConfig{
		initial: defaultPollInitial,
		cap:     defaultPollCap,
		timeout: defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	interval := cfg.initial
	for {
		receipt, err := c.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("chainrpc: poll receipt %s", txHash))
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), fmt.Sprintf("chainrpc: wait mined %s timed out", txHash))
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
	}
}

func parseHexUint(s string) (uint64, error) {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok || !n.IsUint64() {
		return 0, eris.Errorf("chainrpc: malformed quantity %q", s)
	}
	return n.Uint64(), nil
}
