// Package aggregation rolls per-evaluation scores up into per-paper and
// corpus-wide statistics.
package aggregation

import (
	"github.com/smartpaperhq/evalmeter/internal/evalrecord"
	"github.com/smartpaperhq/evalmeter/internal/scoring"
)

// PaperScores is the per-component view of one paper, either averaged across
// all of its evaluators or pinned to a single evaluation.
type PaperScores struct {
	DOI             string                                                 `json:"doi"`
	View            evalrecord.ViewType                                    `json:"view"`
	EvaluationIndex *int                                                   `json:"evaluation_index,omitempty"`
	EvaluationCount int                                                    `json:"evaluation_count"`
	Components      map[evalrecord.ComponentID]*scoring.ComponentScoreBundle `json:"components"`
	OverallScore    float64                                                `json:"overall_score"`
}

// ScoresForPaper computes the component bundles for one paper. A nil
// evaluationIndex averages each component across the evaluations that
// produced a usable non-zero score for it; an explicit index returns that
// single evaluation's bundles. The overall score is the mean of the non-zero
// component scores so one missing component does not drag the paper down.
func ScoresForPaper(paper evalrecord.PaperRecord, evaluationIndex *int, view evalrecord.ViewType) PaperScores {
	result := PaperScores{
		DOI:             paper.DOI,
		View:            view,
		EvaluationIndex: evaluationIndex,
		EvaluationCount: len(paper.Evaluations),
		Components:      make(map[evalrecord.ComponentID]*scoring.ComponentScoreBundle, len(evalrecord.Components)),
	}

	for _, component := range evalrecord.Components {
		result.Components[component] = componentScore(paper, evaluationIndex, component, view)
	}

	var sum float64
	var n int
	for _, bundle := range result.Components {
		if bundle != nil && bundle.OverallFinal != 0 {
			sum += bundle.OverallFinal
			n++
		}
	}
	if n > 0 {
		result.OverallScore = sum / float64(n)
	}

	return result
}

// OverallScore is the paper-level overall for one view: the mean of all
// non-zero component scores.
func OverallScore(paper evalrecord.PaperRecord, evaluationIndex *int, view evalrecord.ViewType) float64 {
	return ScoresForPaper(paper, evaluationIndex, view).OverallScore
}

func componentScore(paper evalrecord.PaperRecord, evaluationIndex *int, component evalrecord.ComponentID, view evalrecord.ViewType) *scoring.ComponentScoreBundle {
	if evaluationIndex != nil {
		i := *evaluationIndex
		if i < 0 || i >= len(paper.Evaluations) {
			return nil
		}
		return evalrecord.ExtractComponent(paper.Evaluations[i], component, view)
	}

	bundles := make([]*scoring.ComponentScoreBundle, 0, len(paper.Evaluations))
	for _, rec := range paper.Evaluations {
		bundle := evalrecord.ExtractComponent(rec, component, view)
		if bundle != nil && bundle.OverallFinal != 0 {
			bundles = append(bundles, bundle)
		}
	}
	return averageBundles(bundles)
}

// averageBundles merges per-evaluation bundles of the same component into one
// averaged view. Dimensions are averaged over the evaluations that have them;
// the overall scores are the means of the per-evaluation overalls, so each
// evaluation's per-dimension agreement bonuses survive the merge.
func averageBundles(bundles []*scoring.ComponentScoreBundle) *scoring.ComponentScoreBundle {
	if len(bundles) == 0 {
		return nil
	}
	if len(bundles) == 1 {
		return bundles[0]
	}

	merged := &scoring.ComponentScoreBundle{
		Dimensions: make(map[string]scoring.DimensionScore),
		Weights:    bundles[0].Weights,
	}

	type dimAccum struct {
		automated, final, multiplier float64
		ratingSum                    float64
		ratingCount                  int
		count                        int
	}
	accums := make(map[string]*dimAccum)

	for _, bundle := range bundles {
		merged.OverallAutomated += bundle.OverallAutomated
		merged.OverallFinal += bundle.OverallFinal

		for name, dim := range bundle.Dimensions {
			acc, ok := accums[name]
			if !ok {
				acc = &dimAccum{}
				accums[name] = acc
			}
			acc.automated += dim.Automated
			acc.final += dim.FinalScore
			acc.multiplier += dim.ExpertiseMultiplier
			acc.count++
			if dim.UserRating != nil {
				acc.ratingSum += *dim.UserRating
				acc.ratingCount++
			}
		}
	}

	n := float64(len(bundles))
	merged.OverallAutomated /= n
	merged.OverallFinal /= n

	for name, acc := range accums {
		dim := scoring.DimensionScore{
			Automated:           acc.automated / float64(acc.count),
			ExpertiseMultiplier: acc.multiplier / float64(acc.count),
			FinalScore:          acc.final / float64(acc.count),
		}
		if acc.ratingCount > 0 {
			dim.UserRating = scoring.Rating(acc.ratingSum / float64(acc.ratingCount))
		}
		merged.Dimensions[name] = dim
	}

	return merged
}
