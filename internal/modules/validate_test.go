package modules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var minIssueNumber = 1.0

// closeSchema mirrors the close_issue contract.
var closeSchema = InputSchema{
	Type: "object",
	Properties: map[string]Property{
		"repo":         {Type: "string", Description: "owner/name"},
		"issue_number": {Type: "integer", Minimum: &minIssueNumber},
	},
	Required: []string{"repo", "issue_number"},
}

func TestValidateParams_Contract(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		wantErr string
	}{
		{"complete", map[string]any{"repo": "octocat/hello-world", "issue_number": float64(7)}, ""},
		{"missing number", map[string]any{"repo": "octocat/hello-world"}, "missing required parameter(s): issue_number"},
		{"nil params", nil, "missing required parameter(s): repo, issue_number"},
		{"empty repo", map[string]any{"repo": "", "issue_number": float64(1)}, "missing required parameter(s): repo"},
		{"null repo", map[string]any{"repo": nil, "issue_number": float64(1)}, "missing required parameter(s): repo"},
		{
			"unknown fields listed sorted",
			map[string]any{"repo": "o/r", "issue_number": float64(1), "zeta": 1, "alpha": "x"},
			"unknown parameter(s): alpha, zeta",
		},
		{
			"string number",
			map[string]any{"repo": "o/r", "issue_number": "7"},
			`parameter "issue_number": expected integer, got string`,
		},
		{
			"zero number",
			map[string]any{"repo": "o/r", "issue_number": float64(0)},
			`parameter "issue_number": must be >= 1`,
		},
		{
			"negative number",
			map[string]any{"repo": "o/r", "issue_number": -5},
			`parameter "issue_number": must be >= 1`,
		},
		{
			"numeric repo",
			map[string]any{"repo": float64(42), "issue_number": float64(7)},
			`parameter "repo": expected string, got number`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateParams(closeSchema, tt.params)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidateParams_Kinds(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"weight":  {Type: "number"},
			"draft":   {Type: "boolean"},
			"labels":  {Type: "array"},
			"extra":   {Type: "object"},
			"untyped": {},
		},
	}

	tests := []struct {
		name    string
		params  map[string]any
		wantErr string
	}{
		{
			"all valid",
			map[string]any{"weight": 1.5, "draft": true, "labels": []any{"bug"}, "extra": map[string]any{"k": "v"}, "untyped": "x"},
			"",
		},
		{"string weight", map[string]any{"weight": "heavy"}, `parameter "weight": expected number, got string`},
		{"string draft", map[string]any{"draft": "true"}, `parameter "draft": expected boolean, got string`},
		{"string labels", map[string]any{"labels": "bug"}, `parameter "labels": expected array, got string`},
		{"array extra", map[string]any{"extra": []any{}}, `parameter "extra": expected object, got array`},
		{"nil skips type check", map[string]any{"weight": nil}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateParams(schema, tt.params)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidateParams_Integers(t *testing.T) {
	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"whole float", float64(3), true},
		{"trailing zero", 7.0, true},
		{"native int", 7, true},
		{"json number", json.Number("12"), true},
		{"fraction", 7.5, false},
		{"numeric string", "7", false},
		{"bool", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateParams(closeSchema, map[string]any{"repo": "o/r", "issue_number": tt.value})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateParams_Defaults(t *testing.T) {
	schema := InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"repo":  {Type: "string"},
			"title": {Type: "string"},
			"body":  {Type: "string", Default: ""},
		},
		Required: []string{"repo", "title"},
	}

	params := map[string]any{"repo": "o/r", "title": "Bug"}
	got, err := ValidateParams(schema, params)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"repo": "o/r", "title": "Bug", "body": ""}, got)
	assert.NotContains(t, params, "body", "caller's map must stay untouched")

	got, err = ValidateParams(schema, map[string]any{"repo": "o/r", "title": "Bug", "body": "steps"})
	require.NoError(t, err)
	assert.Equal(t, "steps", got["body"])
}

func TestValidateParams_EmptySchema(t *testing.T) {
	got, err := ValidateParams(InputSchema{Type: "object", Properties: map[string]Property{}}, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDecodeParams(t *testing.T) {
	var in struct {
		Repo        string `json:"repo"`
		IssueNumber int    `json:"issue_number"`
	}
	require.NoError(t, DecodeParams(map[string]any{"repo": "octocat/hello-world", "issue_number": float64(42)}, &in))
	assert.Equal(t, "octocat/hello-world", in.Repo)
	assert.Equal(t, 42, in.IssueNumber)

	assert.Error(t, DecodeParams(map[string]any{"issue_number": "x"}, &in))
}
