package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuebridge/internal/auth"
	"issuebridge/internal/middleware"
	"issuebridge/internal/modules"
	"issuebridge/internal/modules/github"
	"issuebridge/internal/toolclient"
	"issuebridge/internal/toolserver"
	"issuebridge/pkg/githubapi"
)

type staticFetcher struct {
	result toolclient.FetchResult
	calls  int
}

func (f *staticFetcher) Fetch(context.Context) toolclient.FetchResult {
	f.calls++
	return f.result
}

type reasonerFunc func(ctx context.Context, prompt string, tools []Tool) ([]Message, error)

func (f reasonerFunc) Invoke(ctx context.Context, prompt string, tools []Tool) ([]Message, error) {
	return f(ctx, prompt, tools)
}

func TestShellRun(t *testing.T) {
	const repoURL = "https://github.com/octocat/hello-world"

	tests := []struct {
		name       string
		url        string
		reasoner   reasonerFunc
		want       string
		wantFetch  int
		wantPrompt string
	}{
		{
			name: "invalid url short-circuits",
			url:  "https://example.com/x",
			reasoner: func(context.Context, string, []Tool) ([]Message, error) {
				t.Error("reasoner must not run")
				return nil, nil
			},
			want: MsgInvalidRepo,
		},
		{
			name: "last assistant message with content wins",
			url:  repoURL,
			reasoner: func(_ context.Context, prompt string, _ []Tool) ([]Message, error) {
				return []Message{
					{Role: RoleUser, Content: prompt},
					{Role: RoleAssistant, Content: "thinking"},
					{Role: RoleTool, Content: "tool output"},
					{Role: RoleAssistant, Content: "done"},
					{Role: RoleAssistant, Content: "  "},
				}, nil
			},
			want:       "done",
			wantFetch:  1,
			wantPrompt: "Repository: octocat/hello-world\nList all issues",
		},
		{
			name: "no assistant content",
			url:  repoURL,
			reasoner: func(context.Context, string, []Tool) ([]Message, error) {
				return []Message{{Role: RoleTool, Content: "x"}}, nil
			},
			want:      MsgNoResponse,
			wantFetch: 1,
		},
		{
			name: "reasoner error",
			url:  repoURL,
			reasoner: func(context.Context, string, []Tool) ([]Message, error) {
				return nil, errors.New("model unreachable")
			},
			want:      "Agent failed: model unreachable",
			wantFetch: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &staticFetcher{result: toolclient.FetchResult{Tools: []*toolclient.Tool{}}}
			var gotPrompt string
			reasoner := reasonerFunc(func(ctx context.Context, prompt string, tools []Tool) ([]Message, error) {
				gotPrompt = prompt
				assert.NotEmpty(t, middleware.GetRequestID(ctx))
				return tt.reasoner(ctx, prompt, tools)
			})

			shell := NewShell(fetcher, reasoner, WithShellLogger(zerolog.Nop()))
			got := shell.Run(context.Background(), "List all issues", tt.url)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFetch, fetcher.calls)
			if tt.wantPrompt != "" {
				assert.Equal(t, tt.wantPrompt, gotPrompt)
			}
		})
	}
}

func TestShellRejectsOverlappingRuns(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	reasoner := reasonerFunc(func(context.Context, string, []Tool) ([]Message, error) {
		close(entered)
		<-release
		return []Message{{Role: RoleAssistant, Content: "first"}}, nil
	})
	shell := NewShell(&staticFetcher{}, reasoner)

	var wg sync.WaitGroup
	var first string
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = shell.Run(context.Background(), "list issues", "https://github.com/o/r")
	}()

	<-entered
	assert.Equal(t, MsgBusy, shell.Run(context.Background(), "list issues", "https://github.com/o/r"))
	close(release)
	wg.Wait()
	assert.Equal(t, "first", first)

	// Idle again after the first run returns
	assert.Equal(t, MsgInvalidRepo, shell.Run(context.Background(), "x", "nope"))
}

func TestShellCustomHost(t *testing.T) {
	shell := NewShell(&staticFetcher{}, reasonerFunc(func(context.Context, string, []Tool) ([]Message, error) {
		return []Message{{Role: RoleAssistant, Content: "ok"}}, nil
	}), WithRepoHost("ghe.example.com"))

	assert.Equal(t, "ok", shell.Run(context.Background(), "x", "https://ghe.example.com/team/app"))
	assert.Equal(t, MsgInvalidRepo, shell.Run(context.Background(), "x", "https://github.com/team/app"))
}

// TestEndToEndCreate drives the whole chain: GitHub stub, executors, tool
// server, fetch-and-bind client, shell and the offline reasoner.
func TestEndToEndCreate(t *testing.T) {
	var created map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/octocat/hello-world/issues" {
			http.NotFound(w, r)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"number":1347,"title":"Fix login bug"}`)
	}))
	defer upstream.Close()

	client, err := githubapi.NewClient(githubapi.Options{Token: "t", BaseURL: upstream.URL})
	require.NoError(t, err)
	mod, err := github.New(client, zerolog.Nop())
	require.NoError(t, err)
	reg, err := modules.NewRegistry([]modules.Module{mod})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server := httptest.NewServer(toolserver.New(ctx, reg, toolserver.Options{
		Verifier: auth.NewVerifier(""),
		Logger:   zerolog.Nop(),
	}).Handler())
	defer server.Close()

	fetcher := toolclient.New(reg, toolclient.Options{URL: server.URL + "/tools", Logger: zerolog.Nop()})
	shell := NewShell(fetcher, PatternReasoner{})

	got := shell.Run(context.Background(), "Create an issue: Fix login bug", "https://github.com/octocat/hello-world")

	assert.Contains(t, got, "created")
	assert.Contains(t, got, "1347")
	assert.Equal(t, "Fix login bug", created["title"])
	assert.Equal(t, "", created["body"])
}
