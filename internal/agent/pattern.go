package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

// PatternReasoner handles a fixed set of instruction shapes without a model:
//
//	Create an issue: <title>[\n<body>]
//	List (all|open) issues
//	Close issue #<n> / close issue number <n>
//
// It calls at most one tool per run.
type PatternReasoner struct{}

var (
	createPattern = regexp.MustCompile(`(?is)^\s*(?:please\s+)?(?:create|open|file)\s+(?:an?\s+)?(?:new\s+)?issue\s*[:\-]\s*(.+)$`)
	closePattern  = regexp.MustCompile(`(?i)\bclose\s+(?:the\s+)?(?:issue\s*(?:number\s*|no\.?\s*)?#?|#)\s*(\d+)\b`)
	listPattern   = regexp.MustCompile(`(?i)\b(?:list|show)\b.*\bissues?\b`)
)

type step struct {
	tool string
	args map[string]any
}

// Invoke implements Reasoner.
func (PatternReasoner) Invoke(ctx context.Context, prompt string, tools []Tool) ([]Message, error) {
	transcript := []Message{{Role: RoleUser, Content: prompt}}

	repo, instruction, ok := splitPrompt(prompt)
	if !ok {
		return transcript, errors.New("prompt has no repository line")
	}

	next, ok := plan(repo, instruction)
	if !ok {
		return append(transcript, Message{
			Role: RoleAssistant,
			Content: fmt.Sprintf("I can create, list or close issues in %s. Try %q, %q or %q.",
				repo, "Create an issue: <title>", "List all issues", "Close issue #<number>"),
		}), nil
	}

	tool := findTool(tools, next.tool)
	if tool == nil {
		return append(transcript, Message{
			Role:    RoleAssistant,
			Content: fmt.Sprintf("The %s tool is not available right now.", next.tool),
		}), nil
	}

	args, err := json.Marshal(next.args)
	if err != nil {
		return transcript, errors.Wrap(err, "encode tool arguments")
	}
	out := tool.Call(ctx, string(args))
	transcript = append(transcript,
		Message{Role: RoleTool, ToolName: next.tool, Content: out},
		Message{Role: RoleAssistant, Content: summarize(next.tool, repo, out)},
	)
	return transcript, nil
}

func splitPrompt(prompt string) (repo, instruction string, ok bool) {
	first, rest, _ := strings.Cut(prompt, "\n")
	repo, ok = strings.CutPrefix(strings.TrimSpace(first), "Repository:")
	repo = strings.TrimSpace(repo)
	return repo, strings.TrimSpace(rest), ok && repo != ""
}

func plan(repo, instruction string) (step, bool) {
	if m := createPattern.FindStringSubmatch(instruction); m != nil {
		title, body, _ := strings.Cut(strings.TrimSpace(m[1]), "\n")
		title = strings.TrimSpace(title)
		if title == "" {
			return step{}, false
		}
		return step{tool: "create_issue", args: map[string]any{
			"repo":  repo,
			"title": title,
			"body":  strings.TrimSpace(body),
		}}, true
	}
	if m := closePattern.FindStringSubmatch(instruction); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return step{}, false
		}
		return step{tool: "close_issue", args: map[string]any{
			"repo":         repo,
			"issue_number": n,
		}}, true
	}
	if listPattern.MatchString(instruction) {
		return step{tool: "list_issues", args: map[string]any{"repo": repo}}, true
	}
	return step{}, false
}

func findTool(tools []Tool, name string) Tool {
	for _, t := range tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func summarize(tool, repo, out string) string {
	if tool != "list_issues" {
		return out
	}
	var issues []struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal([]byte(out), &issues); err != nil {
		return out
	}
	if len(issues) == 0 {
		return fmt.Sprintf("There are no open issues in %s.", repo)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Open issues in %s:", repo)
	for _, is := range issues {
		fmt.Fprintf(&b, "\n#%d %s", is.Number, is.Title)
	}
	return b.String()
}
