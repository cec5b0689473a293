package evalrecord

import (
	"log/slog"

	"github.com/smartpaperhq/evalmeter/internal/scoring"
)

// ComponentID names one extraction component of the paper analysis system.
type ComponentID string

const (
	ComponentMetadata        ComponentID = "metadata"
	ComponentResearchField   ComponentID = "research-field"
	ComponentResearchProblem ComponentID = "research-problem"
	ComponentTemplate        ComponentID = "template"
	ComponentContent         ComponentID = "content"
)

// Components lists every supported component in display order.
var Components = []ComponentID{
	ComponentMetadata,
	ComponentResearchField,
	ComponentResearchProblem,
	ComponentTemplate,
	ComponentContent,
}

// ViewType selects which metric family to extract.
type ViewType string

const (
	ViewAccuracy ViewType = "accuracy"
	ViewQuality  ViewType = "quality"
)

// ParseComponent maps a URL/config string onto a ComponentID.
func ParseComponent(s string) (ComponentID, bool) {
	for _, c := range Components {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ParseView maps a URL/config string onto a ViewType, defaulting to quality.
func ParseView(s string) (ViewType, bool) {
	switch s {
	case string(ViewAccuracy):
		return ViewAccuracy, true
	case string(ViewQuality), "":
		return ViewQuality, true
	}
	return "", false
}

// dimensionSpec declares one dimension of a component view: its weight and
// the ordered lookup paths into the evaluationMetrics tree. The first path is
// the current format, the rest are legacy shapes still present in the corpus.
type dimensionSpec struct {
	name   string
	weight float64
	paths  []string
}

var componentSpecs = map[ComponentID]map[ViewType][]dimensionSpec{
	ComponentMetadata: {
		ViewQuality: {
			{name: "titleQuality", weight: 0.3, paths: []string{
				"quality.metadata.titleQuality",
				"quality.metadataQuality.title",
				"metadata.quality.title",
			}},
			{name: "descriptionQuality", weight: 0.3, paths: []string{
				"quality.metadata.descriptionQuality",
				"quality.metadataQuality.description",
				"metadata.quality.description",
			}},
			{name: "propertyCoverage", weight: 0.2, paths: []string{
				"quality.metadata.propertyCoverage",
				"quality.metadataQuality.coverage",
				"metadata.quality.coverage",
			}},
			{name: "researchAlignment", weight: 0.2, paths: []string{
				"quality.metadata.researchAlignment",
				"quality.metadataQuality.alignment",
				"metadata.quality.alignment",
			}},
		},
		ViewAccuracy: {
			{name: "fieldAccuracy", weight: 0.6, paths: []string{
				"accuracy.metadata.fieldAccuracy",
				"accuracy.metadataAccuracy.fields",
				"metadata.accuracy.fields",
			}},
			{name: "valueAccuracy", weight: 0.4, paths: []string{
				"accuracy.metadata.valueAccuracy",
				"accuracy.metadataAccuracy.values",
				"metadata.accuracy.values",
			}},
		},
	},
	ComponentResearchField: {
		ViewQuality: {
			{name: "fieldRelevance", weight: 0.5, paths: []string{
				"quality.researchField.fieldRelevance",
				"quality.researchFieldQuality.relevance",
				"researchFields.quality.relevance",
			}},
			{name: "hierarchyPlacement", weight: 0.3, paths: []string{
				"quality.researchField.hierarchyPlacement",
				"quality.researchFieldQuality.hierarchy",
				"researchFields.quality.hierarchy",
			}},
			{name: "fieldCoverage", weight: 0.2, paths: []string{
				"quality.researchField.fieldCoverage",
				"quality.researchFieldQuality.coverage",
				"researchFields.quality.coverage",
			}},
		},
		ViewAccuracy: {
			{name: "classificationAccuracy", weight: 0.7, paths: []string{
				"accuracy.researchField.classificationAccuracy",
				"accuracy.researchFieldAccuracy.classification",
				"researchFields.accuracy.classification",
			}},
			{name: "rankingAccuracy", weight: 0.3, paths: []string{
				"accuracy.researchField.rankingAccuracy",
				"accuracy.researchFieldAccuracy.ranking",
				"researchFields.accuracy.ranking",
			}},
		},
	},
	ComponentResearchProblem: {
		ViewQuality: {
			{name: "problemClarity", weight: 0.4, paths: []string{
				"quality.researchProblem.problemClarity",
				"quality.researchProblemQuality.clarity",
				"researchProblems.quality.clarity",
			}},
			{name: "problemRelevance", weight: 0.4, paths: []string{
				"quality.researchProblem.problemRelevance",
				"quality.researchProblemQuality.relevance",
				"researchProblems.quality.relevance",
			}},
			{name: "noveltyAlignment", weight: 0.2, paths: []string{
				"quality.researchProblem.noveltyAlignment",
				"quality.researchProblemQuality.novelty",
				"researchProblems.quality.novelty",
			}},
		},
		ViewAccuracy: {
			{name: "extractionAccuracy", weight: 0.6, paths: []string{
				"accuracy.researchProblem.extractionAccuracy",
				"accuracy.researchProblemAccuracy.extraction",
				"researchProblems.accuracy.extraction",
			}},
			{name: "groundingAccuracy", weight: 0.4, paths: []string{
				"accuracy.researchProblem.groundingAccuracy",
				"accuracy.researchProblemAccuracy.grounding",
				"researchProblems.accuracy.grounding",
			}},
		},
	},
	ComponentTemplate: {
		ViewQuality: {
			{name: "templateFit", weight: 0.4, paths: []string{
				"quality.template.templateFit",
				"quality.templateQuality.fit",
				"templates.quality.fit",
			}},
			{name: "propertyCoverage", weight: 0.35, paths: []string{
				"quality.template.propertyCoverage",
				"quality.templateQuality.coverage",
				"templates.quality.coverage",
			}},
			{name: "structureQuality", weight: 0.25, paths: []string{
				"quality.template.structureQuality",
				"quality.templateQuality.structure",
				"templates.quality.structure",
			}},
		},
		ViewAccuracy: {
			{name: "propertyAccuracy", weight: 0.6, paths: []string{
				"accuracy.template.propertyAccuracy",
				"accuracy.templateAccuracy.properties",
				"templates.accuracy.properties",
			}},
			{name: "typeAccuracy", weight: 0.4, paths: []string{
				"accuracy.template.typeAccuracy",
				"accuracy.templateAccuracy.types",
				"templates.accuracy.types",
			}},
		},
	},
	ComponentContent: {
		ViewQuality: {
			{name: "contentCompleteness", weight: 0.4, paths: []string{
				"quality.content.contentCompleteness",
				"quality.contentQuality.completeness",
				"paperContent.quality.completeness",
			}},
			{name: "contentCoherence", weight: 0.35, paths: []string{
				"quality.content.contentCoherence",
				"quality.contentQuality.coherence",
				"paperContent.quality.coherence",
			}},
			{name: "citationQuality", weight: 0.25, paths: []string{
				"quality.content.citationQuality",
				"quality.contentQuality.citations",
				"paperContent.quality.citations",
			}},
		},
		ViewAccuracy: {
			{name: "propertyAccuracy", weight: 0.5, paths: []string{
				"accuracy.content.propertyAccuracy",
				"accuracy.contentAccuracy.properties",
				"paperContent.accuracy.properties",
			}},
			{name: "valueAccuracy", weight: 0.5, paths: []string{
				"accuracy.content.valueAccuracy",
				"accuracy.contentAccuracy.values",
				"paperContent.accuracy.values",
			}},
		},
	},
}

var ratingKeys = []string{"userRating", "rating", "stars"}

// ExtractComponent builds the full dimension bundle for one component view.
// Returns nil (not a zero-filled bundle) when no dimension has usable data at
// any fallback path, so callers can tell "no data" from "score of zero".
func ExtractComponent(rec *EvaluationRecord, component ComponentID, view ViewType) *scoring.ComponentScoreBundle {
	specs := componentSpecs[component][view]
	if rec == nil || len(specs) == 0 {
		return nil
	}

	dimensions := make(map[string]scoring.DimensionScore, len(specs))
	weights := make(map[string]float64, len(specs))
	multiplier := rec.ExpertiseMultiplier()

	for _, spec := range specs {
		weights[spec.name] = spec.weight
		dim := resolveDimension(rec, spec, multiplier)
		if dim != nil {
			dimensions[spec.name] = *dim
		}
	}

	if len(dimensions) == 0 {
		return nil
	}

	bundle := scoring.AggregateDimensions(dimensions, weights)
	return &bundle
}

// ExtractDimension resolves a single named dimension of a component view.
func ExtractDimension(rec *EvaluationRecord, component ComponentID, view ViewType, name string) *scoring.DimensionScore {
	if rec == nil {
		return nil
	}
	for _, spec := range componentSpecs[component][view] {
		if spec.name == name {
			return resolveDimension(rec, spec, rec.ExpertiseMultiplier())
		}
	}
	return nil
}

func resolveDimension(rec *EvaluationRecord, spec dimensionSpec, multiplier float64) *scoring.DimensionScore {
	for _, path := range spec.paths {
		node, ok := lookupPath(rec.EvaluationMetrics, path)
		if !ok {
			continue
		}

		automated, ok := CoerceMetricValue(node)
		if !ok {
			slog.Warn("Metric value is malformed, skipping",
				"token", rec.Token,
				"dimension", spec.name,
				"path", path,
			)
			continue
		}

		dim := scoring.NewDimensionScore(automated, ratingFrom(node), multiplier)
		return &dim
	}
	return nil
}

// ratingFrom pulls the evaluator's star rating off a metric node if the node
// carries one. Ratings outside [1,5] are treated as absent.
func ratingFrom(node any) *float64 {
	m, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range ratingKeys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		if v, ok := CoerceMetricValue(raw); ok && v >= 1 && v <= 5 {
			return scoring.Rating(v)
		}
	}
	return nil
}

// ComponentRating returns the evaluator's star rating for a whole component:
// the overall rating when present, otherwise the mean of the per-dimension
// ratings, otherwise nil.
func ComponentRating(rec *EvaluationRecord, component ComponentID, view ViewType) *float64 {
	if rec == nil {
		return nil
	}

	for _, key := range metricTreeKeys(component) {
		if node, ok := lookupPath(rec.EvaluationMetrics, "overall."+key); ok {
			if rating := ratingFrom(node); rating != nil {
				return rating
			}
		}
	}

	var sum float64
	var n int
	for _, spec := range componentSpecs[component][view] {
		for _, path := range spec.paths {
			node, ok := lookupPath(rec.EvaluationMetrics, path)
			if !ok {
				continue
			}
			if rating := ratingFrom(node); rating != nil {
				sum += *rating
				n++
			}
			break
		}
	}
	if n == 0 {
		return nil
	}
	return scoring.Rating(sum / float64(n))
}

func metricTreeKeys(component ComponentID) []string {
	switch component {
	case ComponentMetadata:
		return []string{"metadata"}
	case ComponentResearchField:
		return []string{"researchField", "researchFields"}
	case ComponentResearchProblem:
		return []string{"researchProblem", "researchProblems"}
	case ComponentTemplate:
		return []string{"template", "templates"}
	case ComponentContent:
		return []string{"content", "paperContent"}
	}
	return nil
}

// SupportsEdits reports whether evaluators can edit a component's output.
func SupportsEdits(component ComponentID) bool {
	return component == ComponentTemplate || component == ComponentContent
}

// EditCount counts the user edits recorded for a component in one
// evaluation. The second result is false when the component does not support
// edits or no change information exists anywhere.
func EditCount(rec *EvaluationRecord, component ComponentID) (int, bool) {
	if rec == nil || !SupportsEdits(component) {
		return 0, false
	}

	tree := rec.componentTree(component)
	for _, key := range []string{"userChanges", "changes", "edits"} {
		if raw, ok := tree[key]; ok {
			if n, ok := countChanges(raw); ok {
				return n, true
			}
		}
	}

	for _, key := range metricTreeKeys(component) {
		for _, suffix := range []string{".editCount", ".changes"} {
			if raw, ok := lookupPath(rec.EvaluationMetrics, "overall."+key+suffix); ok {
				if n, ok := countChanges(raw); ok {
					return n, true
				}
			}
		}
	}

	return 0, false
}

func countChanges(raw any) (int, bool) {
	switch v := raw.(type) {
	case []any:
		return len(v), true
	default:
		if f, ok := CoerceMetricValue(raw); ok && f >= 0 {
			return int(f), true
		}
	}
	return 0, false
}

// SourceItems returns the classifiable items of a component tree: the item
// list when the tree has one, otherwise the tree itself as a single item.
func SourceItems(rec *EvaluationRecord, component ComponentID) []map[string]any {
	if rec == nil {
		return nil
	}
	tree := rec.componentTree(component)
	if len(tree) == 0 {
		return nil
	}

	for _, key := range []string{"items", "candidates", "problems", "templates", "properties"} {
		raw, ok := tree[key]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		items := make([]map[string]any, 0, len(list))
		for _, entry := range list {
			if m, ok := entry.(map[string]any); ok {
				items = append(items, m)
			}
		}
		if len(items) > 0 {
			return items
		}
	}

	return []map[string]any{tree}
}
