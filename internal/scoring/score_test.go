package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierForScore_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score int
		want  Tier
	}{
		{100, TierVerified},
		{80, TierVerified},
		{79, TierSuspicious},
		{50, TierSuspicious},
		{49, TierFake},
		{0, TierFake},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierForScore(tt.score), "score %d", tt.score)
	}
}

func TestTrustScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, TrustScore(1.0))
	assert.Equal(t, 0, TrustScore(0.0))
	assert.Equal(t, 50, TrustScore(0.5))
	assert.Equal(t, 87, TrustScore(0.873))
	assert.Equal(t, 88, TrustScore(0.875))

	// Out-of-range inputs are clamped rather than propagated.
	assert.Equal(t, 100, TrustScore(1.2))
	assert.Equal(t, 0, TrustScore(-0.1))
}

func TestConfidence_Symmetric(t *testing.T) {
	t.Parallel()

	for _, p := range []float64{0.0, 0.1, 0.25, 0.5, 0.7, 0.99, 1.0} {
		assert.Equal(t, Confidence(p, 1-p), Confidence(1-p, p), "p=%f", p)
	}
}

func TestConfidence_Range(t *testing.T) {
	t.Parallel()

	// Minimal when probabilities are equal, maximal when unambiguous.
	assert.Equal(t, 50, Confidence(0.5, 0.5))
	assert.Equal(t, 100, Confidence(1.0, 0.0))
	assert.Equal(t, 100, Confidence(0.0, 1.0))
	assert.Equal(t, 75, Confidence(0.25, 0.75))
}
