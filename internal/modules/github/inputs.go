package github

// Tool inputs. These structs are the field contract for the issue tools: the
// published input schema is reflected from their tags, and validated
// arguments are decoded into them before an executor runs.

// CreateIssueInput is the input of create_issue.
type CreateIssueInput struct {
	Repo  string `json:"repo" jsonschema:"required,description=GitHub repository in owner/repo format"`
	Title string `json:"title" jsonschema:"required,description=Title of the issue"`
	Body  string `json:"body,omitempty" jsonschema:"description=Body of the issue"`
}

// FieldDefaults implements modules.FieldDefaulter.
func (CreateIssueInput) FieldDefaults() map[string]any {
	return map[string]any{"body": ""}
}

// ListIssuesInput is the input of list_issues.
type ListIssuesInput struct {
	Repo string `json:"repo" jsonschema:"required,description=GitHub repository in owner/repo format"`
}

// CloseIssueInput is the input of close_issue.
type CloseIssueInput struct {
	Repo        string `json:"repo" jsonschema:"required,description=GitHub repository in owner/repo format"`
	IssueNumber int    `json:"issue_number" jsonschema:"required,minimum=1,description=Issue number to close"`
}
