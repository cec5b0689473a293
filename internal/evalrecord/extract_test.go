package evalrecord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpaperhq/evalmeter/internal/scoring"
)

func recordWithMetrics(metrics map[string]any) *EvaluationRecord {
	return &EvaluationRecord{
		Token:             "tok",
		UserInfo:          UserInfo{ExpertiseWeight: 5},
		EvaluationMetrics: metrics,
	}
}

func TestExtractComponentPrimaryPaths(t *testing.T) {
	rec := recordWithMetrics(map[string]any{
		"quality": map[string]any{
			"metadata": map[string]any{
				"titleQuality":       map[string]any{"score": 0.8, "userRating": 4},
				"descriptionQuality": 0.6,
				"propertyCoverage":   map[string]any{"value": 0.5},
			},
		},
	})

	bundle := ExtractComponent(rec, ComponentMetadata, ViewQuality)
	require.NotNil(t, bundle)

	assert.Len(t, bundle.Dimensions, 3)
	assert.InDelta(t, 0.8, bundle.Dimensions["titleQuality"].Automated, 1e-9)
	require.NotNil(t, bundle.Dimensions["titleQuality"].UserRating)
	assert.InDelta(t, 4, *bundle.Dimensions["titleQuality"].UserRating, 1e-9)
	assert.Nil(t, bundle.Dimensions["descriptionQuality"].UserRating)

	// researchAlignment is absent: normalized over present weights only
	want := (0.8*0.3 + 0.6*0.3 + 0.5*0.2) / 0.8
	assert.InDelta(t, want, bundle.OverallAutomated, 1e-9)
}

func TestExtractComponentLegacyFallbackPaths(t *testing.T) {
	rec := recordWithMetrics(map[string]any{
		"quality": map[string]any{
			"metadataQuality": map[string]any{
				"title": 0.9,
			},
		},
		"metadata": map[string]any{
			"quality": map[string]any{"description": 0.3},
		},
	})

	bundle := ExtractComponent(rec, ComponentMetadata, ViewQuality)
	require.NotNil(t, bundle)
	assert.InDelta(t, 0.9, bundle.Dimensions["titleQuality"].Automated, 1e-9)
	assert.InDelta(t, 0.3, bundle.Dimensions["descriptionQuality"].Automated, 1e-9)
}

func TestExtractComponentNoDataReturnsNil(t *testing.T) {
	assert.Nil(t, ExtractComponent(recordWithMetrics(map[string]any{}), ComponentMetadata, ViewQuality))
	assert.Nil(t, ExtractComponent(recordWithMetrics(nil), ComponentTemplate, ViewAccuracy))
	assert.Nil(t, ExtractComponent(nil, ComponentMetadata, ViewQuality))
}

func TestExtractComponentZeroScoreIsData(t *testing.T) {
	rec := recordWithMetrics(map[string]any{
		"accuracy": map[string]any{
			"template": map[string]any{"propertyAccuracy": 0.0},
		},
	})

	bundle := ExtractComponent(rec, ComponentTemplate, ViewAccuracy)
	require.NotNil(t, bundle)
	assert.Zero(t, bundle.OverallAutomated)
}

func TestExtractComponentSkipsMalformedAndFallsBack(t *testing.T) {
	rec := recordWithMetrics(map[string]any{
		"quality": map[string]any{
			"template": map[string]any{"templateFit": "excellent"},
			"templateQuality": map[string]any{
				"fit": 0.75,
			},
		},
	})

	bundle := ExtractComponent(rec, ComponentTemplate, ViewQuality)
	require.NotNil(t, bundle)
	assert.InDelta(t, 0.75, bundle.Dimensions["templateFit"].Automated, 1e-9)
}

func TestExtractComponentAppliesExpertiseMultiplier(t *testing.T) {
	rec := recordWithMetrics(map[string]any{
		"quality": map[string]any{
			"metadata": map[string]any{
				"titleQuality": map[string]any{"score": 0.7, "userRating": 4},
			},
		},
	})
	rec.UserInfo.ExpertiseWeight = 8 // multiplier 1.6

	bundle := ExtractComponent(rec, ComponentMetadata, ViewQuality)
	require.NotNil(t, bundle)

	want := scoring.Combine(0.7, scoring.Rating(4), 1.6)
	assert.InDelta(t, want, bundle.Dimensions["titleQuality"].FinalScore, 1e-9)
}

func TestExtractDimension(t *testing.T) {
	rec := recordWithMetrics(map[string]any{
		"accuracy": map[string]any{
			"researchField": map[string]any{"classificationAccuracy": 0.65},
		},
	})

	dim := ExtractDimension(rec, ComponentResearchField, ViewAccuracy, "classificationAccuracy")
	require.NotNil(t, dim)
	assert.InDelta(t, 0.65, dim.Automated, 1e-9)

	assert.Nil(t, ExtractDimension(rec, ComponentResearchField, ViewAccuracy, "rankingAccuracy"))
	assert.Nil(t, ExtractDimension(rec, ComponentResearchField, ViewAccuracy, "noSuchDimension"))
}

func TestComponentRatingOverall(t *testing.T) {
	rec := recordWithMetrics(map[string]any{
		"overall": map[string]any{
			"template": map[string]any{"userRating": 5},
		},
	})

	rating := ComponentRating(rec, ComponentTemplate, ViewQuality)
	require.NotNil(t, rating)
	assert.InDelta(t, 5, *rating, 1e-9)
}

func TestComponentRatingFallsBackToDimensionMean(t *testing.T) {
	rec := recordWithMetrics(map[string]any{
		"quality": map[string]any{
			"metadata": map[string]any{
				"titleQuality":       map[string]any{"score": 0.8, "userRating": 4},
				"descriptionQuality": map[string]any{"score": 0.6, "userRating": 2},
			},
		},
	})

	rating := ComponentRating(rec, ComponentMetadata, ViewQuality)
	require.NotNil(t, rating)
	assert.InDelta(t, 3, *rating, 1e-9)

	assert.Nil(t, ComponentRating(recordWithMetrics(map[string]any{}), ComponentMetadata, ViewQuality))
}

func TestEditCount(t *testing.T) {
	rec := &EvaluationRecord{
		Templates: map[string]any{
			"userChanges": []any{"p1", "p2", "p3"},
		},
		PaperContent: map[string]any{
			"changes": 6.0,
		},
	}

	n, ok := EditCount(rec, ComponentTemplate)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = EditCount(rec, ComponentContent)
	assert.True(t, ok)
	assert.Equal(t, 6, n)

	// metadata does not support edits
	_, ok = EditCount(rec, ComponentMetadata)
	assert.False(t, ok)

	// no change info anywhere
	_, ok = EditCount(&EvaluationRecord{Templates: map[string]any{}}, ComponentTemplate)
	assert.False(t, ok)
}

func TestEditCountMetricTreeFallback(t *testing.T) {
	rec := recordWithMetrics(map[string]any{
		"overall": map[string]any{
			"template": map[string]any{"editCount": 4.0},
		},
	})

	n, ok := EditCount(rec, ComponentTemplate)
	assert.True(t, ok)
	assert.Equal(t, 4, n)
}

func TestSourceItems(t *testing.T) {
	rec := &EvaluationRecord{
		ResearchProblems: map[string]any{
			"problems": []any{
				map[string]any{"isLLMGenerated": true},
				map[string]any{"source": "orkg"},
			},
		},
		Templates: map[string]any{"templateSource": "orkg store"},
	}

	items := SourceItems(rec, ComponentResearchProblem)
	assert.Len(t, items, 2)

	// no list: the tree itself is the single item
	items = SourceItems(rec, ComponentTemplate)
	require.Len(t, items, 1)
	assert.Equal(t, "orkg store", items[0]["templateSource"])

	assert.Nil(t, SourceItems(rec, ComponentMetadata))
	assert.Nil(t, SourceItems(nil, ComponentTemplate))
}

func TestParseComponentAndView(t *testing.T) {
	c, ok := ParseComponent("research-problem")
	assert.True(t, ok)
	assert.Equal(t, ComponentResearchProblem, c)

	_, ok = ParseComponent("bogus")
	assert.False(t, ok)

	v, ok := ParseView("")
	assert.True(t, ok)
	assert.Equal(t, ViewQuality, v)

	v, ok = ParseView("accuracy")
	assert.True(t, ok)
	assert.Equal(t, ViewAccuracy, v)

	_, ok = ParseView("bogus")
	assert.False(t, ok)
}
