package aggregation

import (
	"github.com/smartpaperhq/evalmeter/internal/classify"
	"github.com/smartpaperhq/evalmeter/internal/evalrecord"
	"github.com/smartpaperhq/evalmeter/internal/stats"
)

// Change-magnitude buckets for the edit histogram.
const (
	EditBucketNone     = "none"
	EditBucketLight    = "light"
	EditBucketModerate = "moderate"
	EditBucketHeavy    = "heavy"
)

// EditStats tracks how much evaluators changed a component's output. Fewer
// edits are read as higher perceived initial quality.
type EditStats struct {
	TotalChanges             int                         `json:"total_changes"`
	EvaluationsWithChanges   int                         `json:"evaluations_with_changes"`
	MeanChangesPerEvaluation float64                     `json:"mean_changes_per_evaluation"`
	MagnitudeHistogram       map[string]int              `json:"magnitude_histogram"`
	MeanEditsBySource        map[classify.Source]float64 `json:"mean_edits_by_source"`
}

// CorpusReport is the whole-corpus rollup for one component and view.
type CorpusReport struct {
	Component          evalrecord.ComponentID           `json:"component"`
	View               evalrecord.ViewType              `json:"view"`
	UniquePapers       int                              `json:"unique_papers"`
	TotalEvaluations   int                              `json:"total_evaluations"`
	SourceDistribution map[classify.Source]int          `json:"source_distribution"`
	QualityScores      stats.AggregateStats             `json:"quality_scores"`
	AutomatedScores    stats.AggregateStats             `json:"automated_scores"`
	UserRatings        stats.AggregateStats             `json:"user_ratings"`
	ScoreHistogram     map[string]int                   `json:"score_histogram"`
	RatingCorrelation  float64                          `json:"rating_correlation"`
	ByDimension        map[string]stats.AggregateStats  `json:"by_dimension"`
	BySource           map[classify.Source]stats.AggregateStats `json:"by_source"`
	Edits              *EditStats                       `json:"edits,omitempty"`
}

// Aggregate rolls every paper's evaluations up into corpus statistics for
// one component. Papers are deduplicated by DOI for the unique-paper count
// while every evaluation's system snapshot is classified independently for
// the source distribution.
func Aggregate(papers []evalrecord.PaperRecord, component evalrecord.ComponentID, view evalrecord.ViewType) CorpusReport {
	report := CorpusReport{
		Component:          component,
		View:               view,
		SourceDistribution: map[classify.Source]int{},
		ByDimension:        map[string]stats.AggregateStats{},
		BySource:           map[classify.Source]stats.AggregateStats{},
	}

	seenDOIs := make(map[string]bool)
	var finals, automated, ratings []float64
	var pairedAutomated, pairedRatings []float64
	dimensionFinals := make(map[string][]float64)
	sourceFinals := make(map[classify.Source][]float64)

	trackEdits := evalrecord.SupportsEdits(component)
	var edits editAccumulator

	for _, paper := range papers {
		if paper.DOI != "" {
			if seenDOIs[paper.DOI] {
				continue
			}
			seenDOIs[paper.DOI] = true
		}
		report.UniquePapers++
		report.TotalEvaluations += len(paper.Evaluations)

		for _, rec := range paper.Evaluations {
			source := evaluationSource(rec, component, report.SourceDistribution)

			bundle := evalrecord.ExtractComponent(rec, component, view)
			if bundle != nil {
				finals = append(finals, bundle.OverallFinal)
				automated = append(automated, bundle.OverallAutomated)
				sourceFinals[source] = append(sourceFinals[source], bundle.OverallFinal)
				for name, dim := range bundle.Dimensions {
					dimensionFinals[name] = append(dimensionFinals[name], dim.FinalScore)
				}
			}

			if rating := evalrecord.ComponentRating(rec, component, view); rating != nil {
				ratings = append(ratings, *rating)
				if bundle != nil {
					pairedAutomated = append(pairedAutomated, bundle.OverallAutomated)
					pairedRatings = append(pairedRatings, *rating)
				}
			}

			if trackEdits {
				if n, ok := evalrecord.EditCount(rec, component); ok {
					edits.add(source, n)
				}
			}
		}
	}

	report.QualityScores = stats.Describe(finals)
	report.AutomatedScores = stats.Describe(automated)
	report.UserRatings = stats.Describe(ratings)
	report.ScoreHistogram = stats.Histogram(finals, stats.DefaultScoreBins)
	report.RatingCorrelation = stats.Pearson(pairedAutomated, pairedRatings)

	for name, values := range dimensionFinals {
		report.ByDimension[name] = stats.Describe(values)
	}
	for _, source := range []classify.Source{classify.SourceORKG, classify.SourceLLM} {
		report.BySource[source] = stats.Describe(sourceFinals[source])
	}

	if trackEdits {
		report.Edits = edits.stats()
	}

	return report
}

// evaluationSource classifies every item in the evaluation's snapshot for
// the distribution counts and returns the evaluation's dominant tag.
func evaluationSource(rec *evalrecord.EvaluationRecord, component evalrecord.ComponentID, distribution map[classify.Source]int) classify.Source {
	counts := map[classify.Source]int{}
	for _, item := range evalrecord.SourceItems(rec, component) {
		tag := classify.Classify(item)
		distribution[tag]++
		counts[tag]++
	}

	// dominant known tag wins; ties and all-unknown stay unknown
	switch {
	case counts[classify.SourceORKG] > counts[classify.SourceLLM]:
		return classify.SourceORKG
	case counts[classify.SourceLLM] > counts[classify.SourceORKG]:
		return classify.SourceLLM
	default:
		return classify.SourceUnknown
	}
}

type editAccumulator struct {
	total       int
	withChanges int
	evaluations int
	histogram   map[string]int
	bySource    map[classify.Source][]float64
}

func (e *editAccumulator) add(source classify.Source, changes int) {
	if e.histogram == nil {
		e.histogram = map[string]int{
			EditBucketNone:     0,
			EditBucketLight:    0,
			EditBucketModerate: 0,
			EditBucketHeavy:    0,
		}
		e.bySource = map[classify.Source][]float64{}
	}

	e.evaluations++
	e.total += changes
	if changes > 0 {
		e.withChanges++
	}
	e.histogram[editBucket(changes)]++
	e.bySource[source] = append(e.bySource[source], float64(changes))
}

func (e *editAccumulator) stats() *EditStats {
	result := &EditStats{
		TotalChanges:           e.total,
		EvaluationsWithChanges: e.withChanges,
		MagnitudeHistogram:     e.histogram,
		MeanEditsBySource:      map[classify.Source]float64{},
	}
	if e.histogram == nil {
		result.MagnitudeHistogram = map[string]int{
			EditBucketNone:     0,
			EditBucketLight:    0,
			EditBucketModerate: 0,
			EditBucketHeavy:    0,
		}
	}
	if e.evaluations > 0 {
		result.MeanChangesPerEvaluation = float64(e.total) / float64(e.evaluations)
	}
	for source, values := range e.bySource {
		result.MeanEditsBySource[source] = stats.Describe(values).Mean
	}
	return result
}

func editBucket(changes int) string {
	switch {
	case changes == 0:
		return EditBucketNone
	case changes <= 3:
		return EditBucketLight
	case changes <= 7:
		return EditBucketModerate
	default:
		return EditBucketHeavy
	}
}
