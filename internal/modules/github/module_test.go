package github

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuebridge/internal/modules"
	"issuebridge/pkg/githubapi"
)

func newTestRegistry(t *testing.T, handler http.Handler) *modules.Registry {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := githubapi.NewClient(githubapi.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	mod, err := New(client, zerolog.Nop())
	require.NoError(t, err)
	reg, err := modules.NewRegistry([]modules.Module{mod})
	require.NoError(t, err)
	return reg
}

func TestToolDefinitions(t *testing.T) {
	tools, err := toolDefinitions()
	require.NoError(t, err)
	require.Len(t, tools, 3)

	byName := map[string]modules.Tool{}
	for _, tool := range tools {
		byName[tool.Name] = tool
		assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
		assert.Equal(t, "string", tool.InputSchema.Properties["repo"].Type, tool.Name)
		assert.Contains(t, tool.InputSchema.Required, "repo", tool.Name)
	}

	create := byName[ToolCreateIssue]
	assert.ElementsMatch(t, []string{"repo", "title"}, create.InputSchema.Required)
	assert.Equal(t, "", create.InputSchema.Properties["body"].Default)

	assert.Equal(t, []string{"repo"}, byName[ToolListIssues].InputSchema.Required)

	closeTool := byName[ToolCloseIssue]
	assert.ElementsMatch(t, []string{"repo", "issue_number"}, closeTool.InputSchema.Required)
	assert.Equal(t, "integer", closeTool.InputSchema.Properties["issue_number"].Type)
	require.NotNil(t, closeTool.InputSchema.Properties["issue_number"].Minimum)
	assert.Equal(t, 1.0, *closeTool.InputSchema.Properties["issue_number"].Minimum)
}

func TestModuleThroughRegistry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octocat/hello-world/issues", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"number":1,"title":"a <b>","body":null}]`)
	})
	mux.HandleFunc("POST /repos/octocat/hello-world/issues", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"number":2}`)
	})
	mux.HandleFunc("PATCH /repos/octocat/hello-world/issues/{number}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"number":`+r.PathValue("number")+`}`)
	})
	reg := newTestRegistry(t, mux)

	tests := []struct {
		name      string
		tool      string
		params    map[string]any
		wantText  string
		wantError bool
	}{
		{
			name:     "list renders JSON array",
			tool:     ToolListIssues,
			params:   map[string]any{"repo": "octocat/hello-world"},
			wantText: `[{"number":1,"title":"a <b>","body":""}]`,
		},
		{
			name:     "create with default body",
			tool:     ToolCreateIssue,
			params:   map[string]any{"repo": "octocat/hello-world", "title": "New"},
			wantText: "Issue 'New' created with number 2.",
		},
		{
			name:     "close with JSON number",
			tool:     ToolCloseIssue,
			params:   map[string]any{"repo": "octocat/hello-world", "issue_number": float64(5)},
			wantText: "Issue 5 closed.",
		},
		{
			name:      "close with fractional number",
			tool:      ToolCloseIssue,
			params:    map[string]any{"repo": "octocat/hello-world", "issue_number": 5.5},
			wantError: true,
			wantText:  `Invalid arguments for close_issue: parameter "issue_number": expected integer, got number`,
		},
		{
			name:      "close with negative number",
			tool:      ToolCloseIssue,
			params:    map[string]any{"repo": "octocat/hello-world", "issue_number": float64(-5)},
			wantError: true,
			wantText:  `Invalid arguments for close_issue: parameter "issue_number": must be >= 1`,
		},
		{
			name:      "create without title",
			tool:      ToolCreateIssue,
			params:    map[string]any{"repo": "octocat/hello-world"},
			wantError: true,
			wantText:  "Invalid arguments for create_issue: missing required parameter(s): title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := reg.Run(context.Background(), tt.tool, tt.params)
			assert.Equal(t, tt.wantError, res.IsError)
			assert.Equal(t, tt.wantText, res.Text())
		})
	}
}

func TestExecuteToolUnknown(t *testing.T) {
	client, err := githubapi.NewClient(githubapi.Options{})
	require.NoError(t, err)
	mod, err := New(client, zerolog.Nop())
	require.NoError(t, err)

	_, err = mod.ExecuteTool(context.Background(), "delete_issue", nil)
	assert.Error(t, err)
}
