// Package agent turns a natural-language instruction about a repository into
// tool calls through a reasoning loop.
package agent

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"issuebridge/internal/middleware"
	"issuebridge/internal/modules"
	"issuebridge/internal/toolclient"
)

// Fixed responses of Shell.Run.
const (
	MsgInvalidRepo  = "Invalid GitHub repository URL."
	MsgNoResponse   = "No response generated."
	MsgBusy         = "Agent is busy."
	msgFailedPrefix = "Agent failed: "
)

// Role of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a reasoning transcript.
type Message struct {
	Role    Role
	Content string
	// ToolName is set on RoleTool messages.
	ToolName string
}

// Tool is a capability the reasoner may invoke.
type Tool interface {
	Name() string
	Description() string
	Schema() modules.InputSchema
	// Call runs the tool with JSON-encoded arguments. It never fails; errors
	// are reported in the returned text.
	Call(ctx context.Context, argsJSON string) string
}

// Reasoner runs a reasoning loop over prompt with tools and returns the
// transcript. The final answer is the last assistant message with content.
type Reasoner interface {
	Invoke(ctx context.Context, prompt string, tools []Tool) ([]Message, error)
}

// Fetcher supplies the bound tools for a run.
type Fetcher interface {
	Fetch(ctx context.Context) toolclient.FetchResult
}

// Shell executes one instruction at a time against a repository.
type Shell struct {
	fetcher  Fetcher
	reasoner Reasoner
	repoHost string
	logger   zerolog.Logger
	busy     atomic.Bool
}

// ShellOption configures a Shell.
type ShellOption func(*Shell)

// WithRepoHost restricts repository URLs to host.
func WithRepoHost(host string) ShellOption {
	return func(s *Shell) {
		if host != "" {
			s.repoHost = host
		}
	}
}

// WithShellLogger sets the shell logger.
func WithShellLogger(l zerolog.Logger) ShellOption {
	return func(s *Shell) { s.logger = l.With().Str("component", "agent").Logger() }
}

// NewShell creates an idle Shell.
func NewShell(fetcher Fetcher, reasoner Reasoner, opts ...ShellOption) *Shell {
	s := &Shell{
		fetcher:  fetcher,
		reasoner: reasoner,
		repoHost: DefaultRepoHost,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run resolves repoURL, binds the published tools and lets the reasoner act
// on instruction. It always returns displayable text. A call made while
// another run is in flight returns MsgBusy.
func (s *Shell) Run(ctx context.Context, instruction, repoURL string) string {
	if !s.busy.CompareAndSwap(false, true) {
		return MsgBusy
	}
	defer s.busy.Store(false)

	runID := uuid.NewString()
	ctx = middleware.WithRequestID(ctx, runID)
	logger := s.logger.With().Str("run_id", runID).Logger()

	repo, ok := ParseRepoURL(repoURL, s.repoHost)
	if !ok {
		logger.Info().Str("url", repoURL).Msg("rejected repository URL")
		return MsgInvalidRepo
	}

	fetched := s.fetcher.Fetch(ctx)
	tools := make([]Tool, 0, len(fetched.Tools))
	for _, t := range fetched.Tools {
		tools = append(tools, t)
	}
	logger.Info().
		Str("repo", repo).
		Str("fetch", fetched.Fallback.String()).
		Int("tools", len(tools)).
		Msg("starting run")

	transcript, err := s.reasoner.Invoke(ctx, BuildPrompt(repo, instruction), tools)
	if err != nil {
		logger.Error().Err(err).Msg("reasoning loop failed")
		return msgFailedPrefix + err.Error()
	}
	return FinalResponse(transcript)
}

// BuildPrompt formats the reasoner prompt.
func BuildPrompt(repo, instruction string) string {
	return "Repository: " + repo + "\n" + instruction
}

// FinalResponse returns the content of the last assistant message that has
// any, or MsgNoResponse.
func FinalResponse(transcript []Message) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		m := transcript[i]
		if m.Role == RoleAssistant && strings.TrimSpace(m.Content) != "" {
			return m.Content
		}
	}
	return MsgNoResponse
}
