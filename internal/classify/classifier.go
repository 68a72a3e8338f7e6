// Package classify turns raw image-classification labels into an
// (aiProbability, realProbability) pair, with model fallback and synthetic
// degradation when no inference credential is configured.
package classify

import (
	"context"
	"errors"
	"math/rand"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verichain-labs/verichain/internal/model"
	"github.com/verichain-labs/verichain/internal/resilience"
	"github.com/verichain-labs/verichain/pkg/hfinference"
)

// Default detector models, primary first.
const (
	DefaultPrimaryModel  = "umm-maybe/AI-image-detector"
	DefaultFallbackModel = "Organika/sdxl-detector"
)

// MockModelName marks a synthetic analysis produced without any remote call.
const MockModelName = "mock"

// Label vocabularies per polarity. Matching is case-insensitive
// substring-contains, checked in order.
var (
	aiKeywords   = []string{"artificial", "ai", "fake", "generated", "synthetic", "deepfake"}
	realKeywords = []string{"real", "human", "authentic", "natural", "photo"}
)

// InferenceClient is the slice of the inference API the classifier needs.
type InferenceClient interface {
	Classify(ctx context.Context, model string, image []byte) ([]hfinference.Classification, error)
}

// Classifier orchestrates primary/fallback model calls and label
// interpretation. A nil client means no credential is configured: every call
// degrades to a synthetic result without network I/O.
type Classifier struct {
	client    InferenceClient
	primary   string
	fallback  string
	retry     resilience.RetryConfig
	randFloat func() float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithModels overrides the default primary and fallback model identifiers.
func WithModels(primary, fallback string) Option {
	return func(c *Classifier) {
		c.primary = primary
		c.fallback = fallback
	}
}

// WithRetryConfig overrides the retry policy (used by tests to inject a fake
// sleep).
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Classifier) {
		c.retry = cfg
	}
}

// WithRandFloat overrides the random source for synthetic results.
func WithRandFloat(f func() float64) Option {
	return func(c *Classifier) {
		c.randFloat = f
	}
}

// NewClassifier creates a classifier. Pass a nil client to run in mock mode.
func NewClassifier(client InferenceClient, opts ...Option) *Classifier {
	c := &Classifier{
		client:    client,
		primary:   DefaultPrimaryModel,
		fallback:  DefaultFallbackModel,
		retry:     resilience.DefaultRetryConfig(),
		randFloat: rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a real inference client is wired in.
func (c *Classifier) Configured() bool {
	return c.client != nil
}

// Classify analyzes image bytes. The primary model gets three attempts with
// linearly increasing backoff; on exhaustion the fallback model gets the same
// budget; if both exhaust, the result degrades to a synthetic analysis biased
// toward "real". Only an uninterpretable model response is a terminal error.
func (c *Classifier) Classify(ctx context.Context, image []byte) (*model.Analysis, error) {
	if c.client == nil {
		zap.L().Info("classify: no inference credential configured, using synthetic analysis")
		return c.synthetic(), nil
	}

	analysis, err := c.classifyWith(ctx, c.primary, image)
	if err == nil {
		return analysis, nil
	}
	if resilience.IsTerminal(err) {
		return nil, err
	}

	zap.L().Warn("classify: primary model exhausted retries, trying fallback",
		zap.String("primary", c.primary),
		zap.String("fallback", c.fallback),
		zap.Error(err),
	)

	analysis, err = c.classifyWith(ctx, c.fallback, image)
	if err == nil {
		return analysis, nil
	}
	if resilience.IsTerminal(err) {
		return nil, err
	}

	zap.L().Warn("classify: fallback model exhausted retries, using synthetic analysis",
		zap.Error(err),
	)
	return c.synthetic(), nil
}

func (c *Classifier) classifyWith(ctx context.Context, modelID string, image []byte) (*model.Analysis, error) {
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("hfinference", "classify")
	}
	// This is the only retry loop on the inference path: the client makes one
	// request per attempt. Deterministic API rejections and terminal errors
	// stop the loop early.
	cfg.ShouldRetry = func(err error) bool {
		if resilience.IsTerminal(err) {
			return false
		}
		var statusErr *hfinference.StatusError
		if errors.As(err, &statusErr) {
			return statusErr.Retryable()
		}
		return true
	}

	results, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]hfinference.Classification, error) {
		res, err := c.client.Classify(ctx, modelID, image)
		if err != nil {
			return nil, err
		}
		if len(res) == 0 {
			return nil, resilience.NewTerminalError(eris.Errorf("classify: model %s returned no labels", modelID))
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	aiProb, realProb, err := interpretLabels(results)
	if err != nil {
		return nil, resilience.NewTerminalError(err)
	}

	return &model.Analysis{
		AIProbability:   aiProb,
		RealProbability: realProb,
		ModelUsed:       modelID,
	}, nil
}

// interpretLabels maps heterogeneous label vocabularies onto the two
// polarities. If no label matches either keyword set, the first two entries
// are taken as (ai, real) in that order. If only one polarity matches, the
// other is inferred as its complement. The pair is normalized to sum to 1.
func interpretLabels(results []hfinference.Classification) (aiProb, realProb float64, err error) {
	var foundAI, foundReal bool

	for _, r := range results {
		label := strings.ToLower(r.Label)
		switch {
		case !foundAI && containsAny(label, aiKeywords):
			aiProb = r.Score
			foundAI = true
		case !foundReal && containsAny(label, realKeywords):
			realProb = r.Score
			foundReal = true
		}
	}

	switch {
	case !foundAI && !foundReal:
		if len(results) < 2 {
			return 0, 0, eris.Errorf("classify: cannot interpret single label %q", results[0].Label)
		}
		aiProb = results[0].Score
		realProb = results[1].Score
	case foundAI && !foundReal:
		realProb = 1 - aiProb
	case !foundAI && foundReal:
		aiProb = 1 - realProb
	}

	if aiProb < 0 {
		aiProb = 0
	}
	if realProb < 0 {
		realProb = 0
	}
	total := aiProb + realProb
	if total <= 0 {
		return 0, 0, eris.New("classify: degenerate scores, cannot normalize")
	}
	return aiProb / total, realProb / total, nil
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// synthetic produces a mock analysis biased toward "real": aiProbability is
// uniform in [0, 0.4).
func (c *Classifier) synthetic() *model.Analysis {
	aiProb := c.randFloat() * 0.4
	return &model.Analysis{
		AIProbability:   aiProb,
		RealProbability: 1 - aiProb,
		ModelUsed:       MockModelName,
		Synthetic:       true,
	}
}
