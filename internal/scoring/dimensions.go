package scoring

// DimensionScore holds one evaluation dimension: the automated score, the
// evaluator's star rating if any, and the blended final. FinalScore is always
// recomputed from the other three fields, never stored independently.
type DimensionScore struct {
	Automated           float64  `json:"automated"`
	UserRating          *float64 `json:"user_rating"`
	ExpertiseMultiplier float64  `json:"expertise_multiplier"`
	FinalScore          float64  `json:"final_score"`
}

// NewDimensionScore builds a DimensionScore with the final already combined.
func NewDimensionScore(automated float64, userRating *float64, expertiseMultiplier float64) DimensionScore {
	return DimensionScore{
		Automated:           clamp01(sanitize(automated)),
		UserRating:          userRating,
		ExpertiseMultiplier: expertiseMultiplier,
		FinalScore:          Combine(automated, userRating, expertiseMultiplier),
	}
}

// ComponentScoreBundle groups the named dimension scores of one component
// (for example title/description/coverage/alignment for metadata) together
// with their declared weights and the weighted overall scores.
type ComponentScoreBundle struct {
	Dimensions       map[string]DimensionScore `json:"dimensions"`
	Weights          map[string]float64        `json:"weights"`
	OverallAutomated float64                   `json:"overall_automated"`
	OverallFinal     float64                   `json:"overall_final"`
}

// AggregateDimensions computes the weighted overall scores for a set of
// dimensions. Weights need not sum to one; they are normalized over the
// dimensions actually present, so a missing dimension is excluded rather than
// counted as zero. Per-dimension finals are combined first and then averaged,
// which preserves each dimension's individual agreement bonus.
func AggregateDimensions(dimensions map[string]DimensionScore, weights map[string]float64) ComponentScoreBundle {
	bundle := ComponentScoreBundle{
		Dimensions: dimensions,
		Weights:    weights,
	}

	var automatedSum, finalSum, weightSum float64
	for name, dim := range dimensions {
		w, ok := weights[name]
		if !ok || w < 0 {
			continue
		}
		automatedSum += dim.Automated * w
		finalSum += dim.FinalScore * w
		weightSum += w
	}

	if weightSum == 0 {
		return bundle
	}

	bundle.OverallAutomated = automatedSum / weightSum
	bundle.OverallFinal = finalSum / weightSum
	return bundle
}
