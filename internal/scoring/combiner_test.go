package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinePassthroughWithoutRating(t *testing.T) {
	for _, automated := range []float64{0, 0.25, 0.5, 0.75, 1} {
		assert.Equal(t, automated, Combine(automated, nil, 1.6))
		assert.Equal(t, automated, Combine(automated, nil, 0))
	}
}

func TestCombineKnownTrace(t *testing.T) {
	trace := CombineDetail(0.7, Rating(4), 1.6)

	assert.InDelta(t, 0.8, trace.NormalizedRating, 1e-9)
	assert.InDelta(t, 0.84, trace.AutomaticConfidence, 1e-9)
	assert.InDelta(t, 0.2593, trace.AutomaticWeight, 0.001)
	assert.InDelta(t, 0.7407, trace.UserWeight, 0.001)
	assert.InDelta(t, 1.0, trace.AdjustedUserRating, 1e-9)
	assert.InDelta(t, 0.922, trace.CombinedScore, 0.01)
	assert.InDelta(t, 0.9, trace.Agreement, 1e-9)
	assert.InDelta(t, 0.09, trace.AgreementBonus, 1e-9)
	assert.InDelta(t, 1.0, trace.FinalScore, 0.01)
}

func TestCombineUnclampedTrace(t *testing.T) {
	trace := CombineDetail(0.5, Rating(2), 1.0)

	assert.InDelta(t, 0.4, trace.NormalizedRating, 1e-9)
	assert.InDelta(t, 1.0, trace.AutomaticConfidence, 1e-9)
	assert.InDelta(t, 0.4, trace.AutomaticWeight, 1e-9)
	assert.InDelta(t, 0.6, trace.UserWeight, 1e-9)
	assert.InDelta(t, 0.44, trace.CombinedScore, 1e-9)
	assert.InDelta(t, 0.4796, trace.FinalScore, 1e-6)
}

func TestCombineBounds(t *testing.T) {
	ratings := []*float64{nil, Rating(1), Rating(2.5), Rating(4), Rating(5)}
	for a := 0.0; a <= 1.0; a += 0.05 {
		for _, rating := range ratings {
			for _, mult := range []float64{0, 0.2, 1, 1.6, 2, 10} {
				score := Combine(a, rating, mult)
				require.GreaterOrEqual(t, score, 0.0, "automated=%v mult=%v", a, mult)
				require.LessOrEqual(t, score, 1.0, "automated=%v mult=%v", a, mult)
			}
		}
	}
}

func TestCombineConfidenceCurve(t *testing.T) {
	tests := []struct {
		name       string
		automated  float64
		confidence float64
	}{
		{name: "midpoint is fully trusted", automated: 0.5, confidence: 1.0},
		{name: "zero extreme is untrusted", automated: 0.0, confidence: 0.0},
		{name: "one extreme is untrusted", automated: 1.0, confidence: 0.0},
		{name: "quarter point", automated: 0.25, confidence: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trace := CombineDetail(tt.automated, Rating(3), 1)
			assert.InDelta(t, tt.confidence, trace.AutomaticConfidence, 1e-9)
		})
	}
}

func TestCombineAgreementBonusBound(t *testing.T) {
	for a := 0.0; a <= 1.0; a += 0.1 {
		for r := 1.0; r <= 5.0; r += 0.5 {
			trace := CombineDetail(a, Rating(r), 1.3)
			assert.LessOrEqual(t, trace.FinalScore, trace.CombinedScore*1.1+1e-12)
			assert.LessOrEqual(t, trace.FinalScore, 1.0)
		}
	}
}

func TestCombineSanitizesInvalidInput(t *testing.T) {
	assert.Equal(t, 0.0, Combine(math.NaN(), nil, 1))
	assert.Equal(t, 1.0, Combine(4.2, nil, 1))
	assert.Equal(t, 0.0, Combine(-3, nil, 1))

	// negative and non-finite multipliers are treated as zero
	score := Combine(0.6, Rating(5), -2)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	assert.False(t, math.IsNaN(Combine(0.6, Rating(math.NaN()), math.Inf(1))))
}

func TestNormalizeRating(t *testing.T) {
	assert.InDelta(t, 0.2, NormalizeRating(1), 1e-9)
	assert.InDelta(t, 0.8, NormalizeRating(4), 1e-9)
	assert.InDelta(t, 1.0, NormalizeRating(5), 1e-9)
	assert.InDelta(t, 1.0, NormalizeRating(9), 1e-9)

	assert.InDelta(t, 0.0, NormalizeRatingZeroBased(1), 1e-9)
	assert.InDelta(t, 0.75, NormalizeRatingZeroBased(4), 1e-9)
	assert.InDelta(t, 1.0, NormalizeRatingZeroBased(5), 1e-9)
}

func TestExpertiseMultiplier(t *testing.T) {
	assert.InDelta(t, 0.2, ExpertiseMultiplier(1), 1e-9)
	assert.InDelta(t, 1.0, ExpertiseMultiplier(5), 1e-9)
	assert.InDelta(t, 2.0, ExpertiseMultiplier(10), 1e-9)
	assert.InDelta(t, 1.0, ExpertiseMultiplier(0), 1e-9)
	assert.InDelta(t, 1.0, ExpertiseMultiplier(math.NaN()), 1e-9)
}
