package github

import (
	"context"
	"io"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v62/github"
	"github.com/rs/zerolog"
)

// IssueSummary is one element of a list_issues result.
type IssueSummary struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// ListFallback tags why ListIssues returned no issues. ListOK means the
// upstream answered 200 and Issues is authoritative, possibly empty.
type ListFallback int

const (
	ListOK ListFallback = iota
	ListInvalidRepo
	ListTransportFailed
	ListUpstreamFailed
)

func (f ListFallback) String() string {
	switch f {
	case ListOK:
		return "ok"
	case ListInvalidRepo:
		return "invalid_repo"
	case ListTransportFailed:
		return "transport_failed"
	case ListUpstreamFailed:
		return "upstream_failed"
	}
	return "unknown"
}

// ListResult is the outcome of ListIssues. On any fallback Issues is empty
// and Status/Detail describe the failure.
type ListResult struct {
	Issues   []IssueSummary
	Fallback ListFallback
	Status   int
	Detail   string
}

// IssueExecutor performs the three issue operations against the GitHub API.
// Each method makes at most one outbound request and never returns an error:
// failures are rendered into the returned value.
type IssueExecutor struct {
	client *gh.Client
	logger zerolog.Logger
}

// NewIssueExecutor creates an executor on top of a configured client.
func NewIssueExecutor(client *gh.Client, logger zerolog.Logger) *IssueExecutor {
	return &IssueExecutor{
		client: client,
		logger: logger.With().Str("component", "github_issues").Logger(),
	}
}

// CreateIssue opens a new issue. Repeated calls open duplicate issues.
func (x *IssueExecutor) CreateIssue(ctx context.Context, repo, title, body string) string {
	owner, name, ok := SplitRepo(repo)
	if !ok {
		return invalidRepoMessage("create", repo)
	}

	issue, resp, err := x.client.Issues.Create(ctx, owner, name, &gh.IssueRequest{
		Title: gh.String(title),
		Body:  gh.String(body),
	})
	if status, detail, failed := checkUpstream(resp, err, http.StatusCreated); failed {
		x.logger.Warn().Str("repo", repo).Int("status", status).Msg("create issue failed")
		return failureMessage("create", status, detail)
	}
	return createdMessage(title, issue.GetNumber())
}

// ListIssues returns the repository's open issues in upstream order.
// A null upstream body is normalized to "".
func (x *IssueExecutor) ListIssues(ctx context.Context, repo string) ListResult {
	owner, name, ok := SplitRepo(repo)
	if !ok {
		return x.listFallback(repo, ListResult{Fallback: ListInvalidRepo, Detail: "invalid repository " + repo})
	}

	issues, resp, err := x.client.Issues.ListByRepo(ctx, owner, name, &gh.IssueListByRepoOptions{State: "open"})
	if status, detail, failed := checkUpstream(resp, err, http.StatusOK); failed {
		fallback := ListUpstreamFailed
		if status == 0 {
			fallback = ListTransportFailed
		}
		return x.listFallback(repo, ListResult{Fallback: fallback, Status: status, Detail: detail})
	}

	out := make([]IssueSummary, 0, len(issues))
	for _, issue := range issues {
		out = append(out, IssueSummary{
			Number: issue.GetNumber(),
			Title:  issue.GetTitle(),
			Body:   issue.GetBody(),
		})
	}
	return ListResult{Issues: out, Fallback: ListOK, Status: http.StatusOK}
}

func (x *IssueExecutor) listFallback(repo string, res ListResult) ListResult {
	res.Issues = []IssueSummary{}
	x.logger.Warn().
		Str("repo", repo).
		Str("fallback", res.Fallback.String()).
		Int("status", res.Status).
		Str("detail", res.Detail).
		Msg("list issues degraded to empty result")
	return res
}

// CloseIssue transitions an issue to the closed state.
func (x *IssueExecutor) CloseIssue(ctx context.Context, repo string, number int) string {
	owner, name, ok := SplitRepo(repo)
	if !ok {
		return invalidRepoMessage("close", repo)
	}

	_, resp, err := x.client.Issues.Edit(ctx, owner, name, number, &gh.IssueRequest{
		State: gh.String("closed"),
	})
	if status, detail, failed := checkUpstream(resp, err, http.StatusOK); failed {
		x.logger.Warn().Str("repo", repo).Int("issue", number).Int("status", status).Msg("close issue failed")
		return failureMessage("close", status, detail)
	}
	return closedMessage(number)
}

// SplitRepo splits an "owner/name" identifier. Both parts must be non-empty
// and free of whitespace.
func SplitRepo(repo string) (owner, name string, ok bool) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 {
		return "", "", false
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\r\n") {
			return "", "", false
		}
	}
	return parts[0], parts[1], true
}

// checkUpstream classifies a go-github call. status is 0 when no response was
// received. detail carries the raw upstream body when there is one.
func checkUpstream(resp *gh.Response, err error, want int) (status int, detail string, failed bool) {
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	if err == nil && status == want {
		return status, "", false
	}
	if status == 0 {
		if err == nil {
			return 0, "no response", true
		}
		return 0, err.Error(), true
	}

	// go-github re-populates the body of error responses after decoding them.
	detail = readBody(resp)
	if detail == "" {
		if err != nil {
			detail = err.Error()
		} else {
			detail = "unexpected status " + http.StatusText(status)
		}
	}
	return status, detail, true
}

func readBody(resp *gh.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
