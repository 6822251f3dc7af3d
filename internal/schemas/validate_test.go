package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `{
	"activity_score": 7.5,
	"reproducibility_score": 8,
	"license_score": 10,
	"novelty_score": 6,
	"relevance_score": 9,
	"score_reasoning": "Strong coding benchmark with a public harness.",
	"activity_reasoning": "2k stars and weekly commits.",
	"task_domain": "Coding,ToolUse",
	"metrics": ["Pass@1"],
	"baselines": null,
	"institution": null,
	"authors": ["Alice Zhang"],
	"dataset_size": 2294,
	"dataset_size_description": "2294 task instances"
}`

func TestValidateScoringResponse_Valid(t *testing.T) {
	assert.NoError(t, ValidateScoringResponse(validResponse))
}

func TestValidateScoringResponse_MinimalValid(t *testing.T) {
	doc := `{"activity_score": 0, "reproducibility_score": 0, "license_score": 0,
		"novelty_score": 0, "relevance_score": 10, "score_reasoning": "minimal but valid"}`
	assert.NoError(t, ValidateScoringResponse(doc))
}

func TestValidateScoringResponse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name: "missing score",
			doc: `{"activity_score": 5, "reproducibility_score": 5, "license_score": 5,
				"novelty_score": 5, "score_reasoning": "missing relevance score"}`,
			field: "(root)",
		},
		{
			name: "score out of range",
			doc: `{"activity_score": 11, "reproducibility_score": 5, "license_score": 5,
				"novelty_score": 5, "relevance_score": 5, "score_reasoning": "activity too high"}`,
			field: "activity_score",
		},
		{
			name: "negative score",
			doc: `{"activity_score": 5, "reproducibility_score": -1, "license_score": 5,
				"novelty_score": 5, "relevance_score": 5, "score_reasoning": "negative repro"}`,
			field: "reproducibility_score",
		},
		{
			name: "reasoning too short",
			doc: `{"activity_score": 5, "reproducibility_score": 5, "license_score": 5,
				"novelty_score": 5, "relevance_score": 5, "score_reasoning": "ok"}`,
			field: "score_reasoning",
		},
		{
			name: "unknown key",
			doc: `{"activity_score": 5, "reproducibility_score": 5, "license_score": 5,
				"novelty_score": 5, "relevance_score": 5, "score_reasoning": "has extra key",
				"is_benchmark": true}`,
			field: "(root)",
		},
		{
			name: "task domain outside vocabulary",
			doc: `{"activity_score": 5, "reproducibility_score": 5, "license_score": 5,
				"novelty_score": 5, "relevance_score": 5, "score_reasoning": "bad domain value",
				"task_domain": "Robotics"}`,
			field: "task_domain",
		},
		{
			name: "string score",
			doc: `{"activity_score": "high", "reproducibility_score": 5, "license_score": 5,
				"novelty_score": 5, "relevance_score": 5, "score_reasoning": "typed wrong"}`,
			field: "activity_score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScoringResponse(tt.doc)
			require.Error(t, err)

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "got %T: %v", err, err)
			assert.Contains(t, validationErr.Fields(), tt.field)
		})
	}
}

func TestValidateScoringResponse_MalformedJSON(t *testing.T) {
	err := ValidateScoringResponse(`{ invalid json }`)
	require.Error(t, err)

	var docErr *DocumentError
	assert.True(t, errors.As(err, &docErr))
}

func TestScoringResponse_Compiles(t *testing.T) {
	v, err := ScoringResponse()
	require.NoError(t, err)
	require.NotNil(t, v)

	again, err := ScoringResponse()
	require.NoError(t, err)
	assert.Same(t, v, again)
}

func TestValidateJSONString_Valid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`

	assert.NoError(t, ValidateJSONString(schemaContent, `{"name": "test"}`))
}

func TestValidateJSONString_Invalid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`

	err := ValidateJSONString(schemaContent, `{"age": 30}`)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Greater(t, len(validationErr.Errors), 0)
}

func TestValidateJSONString_BadSchema(t *testing.T) {
	err := ValidateJSONString(`{"type": 12}`, `{}`)
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "activity_score", Message: "must be less than or equal to 10"},
			{Field: "score_reasoning", Message: "is required"},
		},
	}

	errorMsg := err.Error()
	assert.Contains(t, errorMsg, "validation failed")
	assert.Contains(t, errorMsg, "activity_score")
	assert.Contains(t, errorMsg, "score_reasoning")
}
