// Package evalrecord models one human evaluator's submission for one paper
// and extracts normalized per-component metric bundles out of its nested
// JSON. The upstream data format evolved over time, so several shapes coexist
// in the corpus; everything here degrades to nil/absent instead of failing.
package evalrecord

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smartpaperhq/evalmeter/internal/scoring"
)

// RequiredRootKeys are the keys every evaluation record file must carry.
var RequiredRootKeys = []string{
	"metadata",
	"paperContent",
	"researchFields",
	"researchProblems",
	"templates",
	"timestamp",
	"token",
}

// UserInfo describes the evaluator who produced a record.
type UserInfo struct {
	Name            string  `json:"name"`
	Role            string  `json:"role"`
	ExpertiseWeight float64 `json:"expertiseWeight"`
}

// EvaluationRecord is one evaluator's full submission for one paper.
// Immutable after parsing; enrichment derives values but never writes back.
type EvaluationRecord struct {
	Token             string         `json:"token"`
	Timestamp         string         `json:"timestamp"`
	UserInfo          UserInfo       `json:"userInfo"`
	Metadata          map[string]any `json:"metadata"`
	PaperContent      map[string]any `json:"paperContent"`
	ResearchFields    map[string]any `json:"researchFields"`
	ResearchProblems  map[string]any `json:"researchProblems"`
	Templates         map[string]any `json:"templates"`
	SystemData        map[string]any `json:"systemData"`
	EvaluationMetrics map[string]any `json:"evaluationMetrics"`
}

// Parse decodes a raw record file and validates its required root keys.
// A missing DOI is logged, not rejected: aggregation skips DOI-less records
// where grouping matters but their scores still count.
func Parse(data []byte) (*EvaluationRecord, error) {
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation record: %w", err)
	}

	var missing []string
	for _, key := range RequiredRootKeys {
		if _, ok := root[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("evaluation record is missing required keys: %s", strings.Join(missing, ", "))
	}

	var record EvaluationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode evaluation record: %w", err)
	}

	if record.DOI() == "" {
		slog.Warn("Evaluation record has no DOI", "token", record.Token)
	}

	return &record, nil
}

// DOI returns the paper's DOI, looked up through the shapes the corpus uses.
func (r *EvaluationRecord) DOI() string {
	for _, path := range []string{"doi", "paper.doi", "paperMetadata.doi"} {
		if v, ok := lookupPath(r.Metadata, path); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if v, ok := lookupPath(r.SystemData, "metadata.doi"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ExpertiseMultiplier derives the rating multiplier for this evaluator.
func (r *EvaluationRecord) ExpertiseMultiplier() float64 {
	return scoring.ExpertiseMultiplier(r.UserInfo.ExpertiseWeight)
}

// componentTree returns the record's root tree for a component, used for
// source classification and edit tracking.
func (r *EvaluationRecord) componentTree(component ComponentID) map[string]any {
	switch component {
	case ComponentMetadata:
		return r.Metadata
	case ComponentResearchField:
		return r.ResearchFields
	case ComponentResearchProblem:
		return r.ResearchProblems
	case ComponentTemplate:
		return r.Templates
	case ComponentContent:
		return r.PaperContent
	}
	return nil
}

// PaperRecord groups every evaluation of one paper together with the
// reference values and the automated system's output. All evaluations in
// the list share the same DOI.
type PaperRecord struct {
	DOI          string              `json:"doi"`
	GroundTruth  map[string]any      `json:"ground_truth,omitempty"`
	SystemOutput map[string]any      `json:"system_output,omitempty"`
	Evaluations  []*EvaluationRecord `json:"evaluations"`
}

// GroupByDOI buckets evaluation records into papers. Records without a DOI
// are grouped under their token so they are never silently dropped, just
// never merged with anything else. Order of first appearance is preserved.
func GroupByDOI(records []*EvaluationRecord) []PaperRecord {
	index := make(map[string]int)
	papers := make([]PaperRecord, 0, len(records))

	for _, rec := range records {
		if rec == nil {
			continue
		}
		key := rec.DOI()
		if key == "" {
			key = "token:" + rec.Token
		}

		i, ok := index[key]
		if !ok {
			i = len(papers)
			index[key] = i
			papers = append(papers, PaperRecord{
				DOI:          rec.DOI(),
				SystemOutput: rec.SystemData,
			})
		}
		papers[i].Evaluations = append(papers[i].Evaluations, rec)
	}

	return papers
}
