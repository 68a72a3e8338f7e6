// Package scoring holds the trust score policy shared by the classification
// adapter, the verification pipeline, and the embedded ledger.
package scoring

import "math"

// Tier is the coarse authenticity bucket derived from a trust score.
type Tier string

const (
	TierVerified   Tier = "verified"
	TierSuspicious Tier = "suspicious"
	TierFake       Tier = "fake"
)

// Tier thresholds. A score at or above VerifiedThreshold is verified,
// at or above SuspiciousThreshold is suspicious, anything lower is fake.
const (
	VerifiedThreshold   = 80
	SuspiciousThreshold = 50
)

// TrustScore converts the real-probability of a classification into a
// 0-100 integer score. Higher means more likely authentic.
func TrustScore(realProbability float64) int {
	return clampScore(int(math.Round(realProbability * 100)))
}

// Confidence measures how unambiguous a classification is: 50 when the AI
// and real probabilities are equal, approaching 100 as they diverge.
func Confidence(aiProbability, realProbability float64) int {
	c := math.Round(50 + math.Abs(aiProbability-realProbability)*50)
	return clampScore(int(c))
}

// TierForScore maps a trust score onto its status tier.
func TierForScore(score int) Tier {
	switch {
	case score >= VerifiedThreshold:
		return TierVerified
	case score >= SuspiciousThreshold:
		return TierSuspicious
	default:
		return TierFake
	}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
