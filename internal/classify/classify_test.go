package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		item     map[string]any
		expected Source
	}{
		{
			name:     "nil item",
			item:     nil,
			expected: SourceUnknown,
		},
		{
			name:     "empty item",
			item:     map[string]any{},
			expected: SourceUnknown,
		},
		{
			name:     "explicit orkg flag",
			item:     map[string]any{"isOrkgScenario": true},
			expected: SourceORKG,
		},
		{
			name:     "explicit llm flag",
			item:     map[string]any{"isLLMGenerated": true},
			expected: SourceLLM,
		},
		{
			name:     "orkg flag beats llm flag",
			item:     map[string]any{"isOrkgScenario": true, "isLLMGenerated": true},
			expected: SourceORKG,
		},
		{
			name:     "false flags fall through to source string",
			item:     map[string]any{"isOrkgScenario": false, "source": "llm-generated"},
			expected: SourceLLM,
		},
		{
			name:     "source string orkg",
			item:     map[string]any{"source": "ORKG template store"},
			expected: SourceORKG,
		},
		{
			name:     "templateSource string",
			item:     map[string]any{"templateSource": "AI generated"},
			expected: SourceLLM,
		},
		{
			name:     "flags beat source string",
			item:     map[string]any{"isLLMGenerated": true, "source": "orkg"},
			expected: SourceLLM,
		},
		{
			name:     "structural llm field",
			item:     map[string]any{"llm_extracted_problem": "something"},
			expected: SourceLLM,
		},
		{
			name:     "structural orkg candidate list",
			item:     map[string]any{"orkg_candidates": []any{"t1", "t2"}},
			expected: SourceORKG,
		},
		{
			name:     "empty orkg list is not evidence",
			item:     map[string]any{"orkg_candidates": []any{}},
			expected: SourceUnknown,
		},
		{
			name: "competing structural fields stay unknown",
			item: map[string]any{
				"llm_extracted_problem": "x",
				"orkg_candidates":       []any{"t1"},
			},
			expected: SourceUnknown,
		},
		{
			name:     "non-string source is ignored",
			item:     map[string]any{"source": 42},
			expected: SourceUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.item))
		})
	}
}

func TestClassifyIsStable(t *testing.T) {
	item := map[string]any{
		"source":          "hybrid pipeline",
		"llm_problem":     "p",
		"orkg_candidates": []any{"a"},
	}
	first := Classify(item)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Classify(item))
	}
}
