// Package pinning wraps the metadata pinning service. Pinning is best-effort:
// a missing credential or a remote failure degrades to a deterministic mock
// identifier instead of surfacing an error.
package pinning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/verichain-labs/verichain/internal/model"
	"github.com/verichain-labs/verichain/pkg/pinata"
)

const defaultGatewayURL = "https://gateway.pinata.cloud/ipfs/"

// Pinner pins JSON metadata to content-addressed storage. A nil client means
// no credential is configured: every call returns a mock result.
type Pinner struct {
	client  pinata.Client
	gateway string
}

// Option configures a Pinner.
type Option func(*Pinner)

// WithGatewayURL overrides the retrieval gateway prefix.
func WithGatewayURL(url string) Option {
	return func(p *Pinner) {
		p.gateway = url
	}
}

// NewPinner creates a pinner. Pass a nil client to run in mock mode.
func NewPinner(client pinata.Client, opts ...Option) *Pinner {
	p := &Pinner{
		client:  client,
		gateway: defaultGatewayURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configured reports whether a real pinning client is wired in.
func (p *Pinner) Configured() bool {
	return p.client != nil
}

// Pin stores the metadata object under the given name and returns its content
// identifier. Pin never returns an error: on missing credentials or remote
// failure it falls back to a mock identifier derived from the payload.
func (p *Pinner) Pin(ctx context.Context, name string, payload any) *model.PinResult {
	if p.client == nil {
		zap.L().Debug("pinning: no credential configured, using mock identifier",
			zap.String("name", name),
		)
		return p.mockResult(payload)
	}

	resp, err := p.client.PinJSON(ctx, name, payload)
	if err != nil {
		zap.L().Warn("pinning: remote pin failed, using mock identifier",
			zap.String("name", name),
			zap.Error(err),
		)
		return p.mockResult(payload)
	}

	return &model.PinResult{
		CID: resp.IpfsHash,
		URL: p.gateway + resp.IpfsHash,
	}
}

// Healthy verifies the pinning credential against the remote service.
func (p *Pinner) Healthy(ctx context.Context) bool {
	if p.client == nil {
		return false
	}
	return p.client.TestAuthentication(ctx) == nil
}

// mockResult derives a stable identifier from the payload so repeated runs
// over the same metadata produce the same mock CID. The identifier is not
// retrievable.
func (p *Pinner) mockResult(payload any) *model.PinResult {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte{}
	}
	sum := sha256.Sum256(raw)
	cid := "Qm" + hex.EncodeToString(sum[:])[:44]
	return &model.PinResult{
		CID:  cid,
		URL:  p.gateway + cid,
		Mock: true,
	}
}
