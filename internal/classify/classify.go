// Package classify tags extraction items with their origin: the curated ORKG
// knowledge graph or an LLM generator. Upstream records are inconsistent
// about how they carry this information, so classification runs an ordered
// chain of heuristics and falls back to unknown.
package classify

import "strings"

// Source identifies where a problem/template/content item came from.
type Source string

const (
	SourceORKG    Source = "orkg"
	SourceLLM     Source = "llm"
	SourceUnknown Source = "unknown"
)

var llmMarkers = []string{"llm", "ai", "generated"}

// Classify determines the origin of one item. The heuristic order matters:
// explicit flags win over free-text source fields, which win over structural
// inference. Never panics, always returns one of the three tags, and is
// deterministic for a given input.
func Classify(item map[string]any) Source {
	if item == nil {
		return SourceUnknown
	}

	// 1. explicit flags
	if v, ok := boolField(item, "isOrkgScenario"); ok && v {
		return SourceORKG
	}
	if v, ok := boolField(item, "isLLMGenerated"); ok && v {
		return SourceLLM
	}

	// 2. free-text source hints
	for _, key := range []string{"source", "templateSource"} {
		if s, ok := stringField(item, key); ok {
			lowered := strings.ToLower(s)
			if strings.Contains(lowered, "orkg") {
				return SourceORKG
			}
			for _, marker := range llmMarkers {
				if strings.Contains(lowered, marker) {
					return SourceLLM
				}
			}
		}
	}

	// 3. structural inference from field shape
	hasLLM := hasPrefixedField(item, "llm_")
	hasORKG := hasNonEmptyPrefixedList(item, "orkg_")
	if hasLLM && !hasORKG {
		return SourceLLM
	}
	if hasORKG && !hasLLM {
		return SourceORKG
	}

	return SourceUnknown
}

func boolField(item map[string]any, key string) (bool, bool) {
	v, ok := item[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func stringField(item map[string]any, key string) (string, bool) {
	v, ok := item[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func hasPrefixedField(item map[string]any, prefix string) bool {
	for key, v := range item {
		if strings.HasPrefix(key, prefix) && v != nil {
			return true
		}
	}
	return false
}

func hasNonEmptyPrefixedList(item map[string]any, prefix string) bool {
	for key, v := range item {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if list, ok := v.([]any); ok && len(list) > 0 {
			return true
		}
	}
	return false
}
