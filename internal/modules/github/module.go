package github

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	gh "github.com/google/go-github/v62/github"
	"github.com/rs/zerolog"

	"issuebridge/internal/modules"
	"issuebridge/pkg/githubapi"
)

// Tool names published by this module.
const (
	ToolCreateIssue = "create_issue"
	ToolListIssues  = "list_issues"
	ToolCloseIssue  = "close_issue"
)

// GitHubModule implements the Module interface for GitHub issue management.
type GitHubModule struct {
	issues   *IssueExecutor
	tools    []modules.Tool
	handlers map[string]toolHandler
}

type toolHandler func(ctx context.Context, params map[string]any) (string, error)

// New creates a GitHubModule on top of a configured GitHub client.
// It fails only if a tool input schema cannot be derived.
func New(client *gh.Client, logger zerolog.Logger) (*GitHubModule, error) {
	tools, err := toolDefinitions()
	if err != nil {
		return nil, err
	}
	m := &GitHubModule{
		issues: NewIssueExecutor(client, logger),
		tools:  tools,
	}
	m.handlers = map[string]toolHandler{
		ToolCreateIssue: m.createIssue,
		ToolListIssues:  m.listIssues,
		ToolCloseIssue:  m.closeIssue,
	}
	return m, nil
}

// Name returns the module name
func (m *GitHubModule) Name() string {
	return "github"
}

// Description returns the module description
func (m *GitHubModule) Description() string {
	return "GitHub API - create, list and close repository issues"
}

// APIVersion returns the GitHub API version
func (m *GitHubModule) APIVersion() string {
	return githubapi.APIVersion
}

// Tools returns all available tools
func (m *GitHubModule) Tools() []modules.Tool {
	return m.tools
}

// ExecuteTool executes a tool by name. params must already be validated
// against the tool's input schema.
func (m *GitHubModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	handler, ok := m.handlers[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return handler(ctx, params)
}

// =============================================================================
// Tool Definitions
// =============================================================================

func toolDefinitions() ([]modules.Tool, error) {
	defs := []struct {
		name        string
		description string
		input       any
		annotations *modules.ToolAnnotations
	}{
		{
			ToolCreateIssue,
			"Create a new issue in the specified GitHub repository (format: owner/repo).",
			&CreateIssueInput{},
			modules.AnnotateCreate,
		},
		{
			ToolListIssues,
			"List all open issues in the specified GitHub repository (format: owner/repo).",
			&ListIssuesInput{},
			modules.AnnotateReadOnly,
		},
		{
			ToolCloseIssue,
			"Close an issue by its number in the specified GitHub repository (format: owner/repo).",
			&CloseIssueInput{},
			modules.AnnotateUpdate,
		},
	}

	tools := make([]modules.Tool, 0, len(defs))
	for _, d := range defs {
		schema, err := modules.SchemaFor(d.input)
		if err != nil {
			return nil, errors.Wrapf(err, "schema for %s", d.name)
		}
		tools = append(tools, modules.Tool{
			Name:        d.name,
			Description: d.description,
			InputSchema: schema,
			Annotations: d.annotations,
		})
	}
	return tools, nil
}

// =============================================================================
// Handlers
// =============================================================================

func (m *GitHubModule) createIssue(ctx context.Context, params map[string]any) (string, error) {
	var in CreateIssueInput
	if err := modules.DecodeParams(params, &in); err != nil {
		return "", err
	}
	return m.issues.CreateIssue(ctx, in.Repo, in.Title, in.Body), nil
}

func (m *GitHubModule) listIssues(ctx context.Context, params map[string]any) (string, error) {
	var in ListIssuesInput
	if err := modules.DecodeParams(params, &in); err != nil {
		return "", err
	}
	res := m.issues.ListIssues(ctx, in.Repo)
	return modules.ToJSON(res.Issues)
}

func (m *GitHubModule) closeIssue(ctx context.Context, params map[string]any) (string, error) {
	var in CloseIssueInput
	if err := modules.DecodeParams(params, &in); err != nil {
		return "", err
	}
	return m.issues.CloseIssue(ctx, in.Repo, in.IssueNumber), nil
}
