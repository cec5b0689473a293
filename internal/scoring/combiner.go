package scoring

import "math"

var (
	// automated weight is scaled by confidence but never drops below this floor
	minAutomaticWeight  = 0.1
	automaticWeightBase = 0.4
	userWeightBase      = 0.6
	maxAgreementBonus   = 0.1
)

// CombineTrace exposes the intermediate values of a score combination so the
// dashboard can show evaluators why a final score came out the way it did.
type CombineTrace struct {
	AutomatedScore      float64 `json:"automated_score"`
	NormalizedRating    float64 `json:"normalized_rating"`
	ExpertiseMultiplier float64 `json:"expertise_multiplier"`
	AutomaticConfidence float64 `json:"automatic_confidence"`
	AutomaticWeight     float64 `json:"automatic_weight"`
	UserWeight          float64 `json:"user_weight"`
	AdjustedUserRating  float64 `json:"adjusted_user_rating"`
	CombinedScore       float64 `json:"combined_score"`
	Agreement           float64 `json:"agreement"`
	AgreementBonus      float64 `json:"agreement_bonus"`
	FinalScore          float64 `json:"final_score"`
}

// Combine blends an automated score in [0,1] with a 1-5 star user rating,
// weighted by a U-shaped confidence curve over the automated score and the
// evaluator's expertise multiplier. A nil rating means no human input and the
// automated score passes through unchanged. The result is always in [0,1].
func Combine(automatedScore float64, userRating *float64, expertiseMultiplier float64) float64 {
	return CombineDetail(automatedScore, userRating, expertiseMultiplier).FinalScore
}

// CombineDetail is Combine plus the full intermediate trace.
func CombineDetail(automatedScore float64, userRating *float64, expertiseMultiplier float64) CombineTrace {
	automated := clamp01(sanitize(automatedScore))
	if expertiseMultiplier < 0 || math.IsNaN(expertiseMultiplier) || math.IsInf(expertiseMultiplier, 0) {
		expertiseMultiplier = 0
	}

	trace := CombineTrace{
		AutomatedScore:      automated,
		ExpertiseMultiplier: expertiseMultiplier,
		FinalScore:          automated,
	}

	if userRating == nil {
		return trace
	}

	rating := clamp(sanitize(*userRating), 1, 5)
	trace.NormalizedRating = NormalizeRating(rating)

	// confidence peaks at 0.5 and falls to zero at either extreme: a middling
	// automated verdict is treated as strong signal, an extreme one is not
	deviation := (automated - 0.5) * 2
	trace.AutomaticConfidence = 1 - deviation*deviation

	rawAutomaticWeight := math.Max(minAutomaticWeight, automaticWeightBase*trace.AutomaticConfidence)
	rawUserWeight := userWeightBase * expertiseMultiplier

	totalWeight := rawAutomaticWeight + rawUserWeight
	trace.AutomaticWeight = rawAutomaticWeight / totalWeight
	trace.UserWeight = 1 - trace.AutomaticWeight

	trace.AdjustedUserRating = math.Min(1, trace.NormalizedRating*expertiseMultiplier)
	trace.CombinedScore = automated*trace.AutomaticWeight + trace.AdjustedUserRating*trace.UserWeight

	trace.Agreement = 1 - math.Abs(automated-trace.NormalizedRating)
	trace.AgreementBonus = trace.Agreement * maxAgreementBonus

	trace.FinalScore = math.Min(1, trace.CombinedScore*(1+trace.AgreementBonus))
	return trace
}

// NormalizeRating maps a 1-5 star rating onto [0,1] as rating/5. The upstream
// dashboard also shipped a (rating-1)/4 variant in some views; that mapping is
// kept as NormalizeRatingZeroBased until product settles on one.
func NormalizeRating(rating float64) float64 {
	return clamp01(clamp(rating, 1, 5) / 5)
}

// NormalizeRatingZeroBased maps 1 star to 0.0 and 5 stars to 1.0.
func NormalizeRatingZeroBased(rating float64) float64 {
	return clamp01((clamp(rating, 1, 5) - 1) / 4)
}

// ExpertiseMultiplier derives the rating multiplier from a self-reported
// expertise weight on the 1-10 scale. Weight 5 is neutral (1.0).
func ExpertiseMultiplier(expertiseWeight float64) float64 {
	if math.IsNaN(expertiseWeight) || math.IsInf(expertiseWeight, 0) || expertiseWeight <= 0 {
		return 1
	}
	return clamp(expertiseWeight, 1, 10) / 5
}

// Rating converts a raw star value into the nullable form Combine expects.
func Rating(value float64) *float64 {
	v := value
	return &v
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
