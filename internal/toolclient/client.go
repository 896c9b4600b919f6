// Package toolclient fetches published tool descriptors and binds them to
// local executors.
package toolclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"issuebridge/internal/modules"
	"issuebridge/internal/observability"
)

// DefaultFetchTimeout bounds one descriptor fetch.
const DefaultFetchTimeout = 10 * time.Second

// maxDescriptorBody bounds the descriptor list read from the server.
const maxDescriptorBody = 4 << 20

// FetchFallback tags why a fetch produced no descriptors. FetchOK means the
// list was retrieved and parsed, although it may still bind zero tools.
type FetchFallback int

const (
	FetchOK FetchFallback = iota
	FetchUnreachable
	FetchBadStatus
	FetchMalformed
)

func (f FetchFallback) String() string {
	switch f {
	case FetchOK:
		return "ok"
	case FetchUnreachable:
		return "unreachable"
	case FetchBadStatus:
		return "bad_status"
	case FetchMalformed:
		return "malformed"
	}
	return "unknown"
}

// FetchResult is the outcome of Fetch. Tools is never nil.
type FetchResult struct {
	Tools    []*Tool
	Dropped  []Dropped
	Fallback FetchFallback
	Status   int
	Detail   string
}

// Executors is the local side of a binding: descriptor lookup and execution.
// *modules.Registry implements it.
type Executors interface {
	Lookup(name string) (modules.Tool, bool)
	Run(ctx context.Context, name string, params map[string]any) *modules.ToolCallResult
}

// Options configures a Client.
type Options struct {
	// URL of the descriptor list, e.g. http://localhost:8000/tools.
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client retrieves descriptors from a tool server.
type Client struct {
	url       string
	timeout   time.Duration
	http      *http.Client
	executors Executors
	logger    zerolog.Logger
}

// New creates a Client that binds fetched descriptors to executors.
func New(executors Executors, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{
		url:       opts.URL,
		timeout:   opts.Timeout,
		http:      opts.HTTPClient,
		executors: executors,
		logger:    opts.Logger.With().Str("component", "toolclient").Logger(),
	}
}

// Fetch retrieves the descriptor list once and binds it. It never fails:
// an unreachable server, a non-200 status or a malformed body yield an empty
// tool set tagged with the matching fallback.
func (c *Client) Fetch(ctx context.Context) FetchResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return c.fallback(FetchUnreachable, 0, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fallback(FetchUnreachable, 0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptorBody))
	if err != nil {
		return c.fallback(FetchUnreachable, resp.StatusCode, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return c.fallback(FetchBadStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	descriptors, err := modules.DecodeDescriptors(body)
	if err != nil {
		return c.fallback(FetchMalformed, resp.StatusCode, err.Error())
	}

	tools, dropped := Bind(descriptors, c.executors)
	for _, d := range dropped {
		c.logger.Warn().
			Str("tool", d.Name).
			Str("reason", d.Reason.String()).
			Str("detail", d.Detail).
			Msg("descriptor not bound")
	}
	c.logger.Debug().Int("descriptors", len(descriptors)).Int("bound", len(tools)).Msg("tools fetched")
	observability.RecordDescriptorFetch(FetchOK.String())

	return FetchResult{
		Tools:    tools,
		Dropped:  dropped,
		Fallback: FetchOK,
		Status:   resp.StatusCode,
	}
}

func (c *Client) fallback(f FetchFallback, status int, detail string) FetchResult {
	c.logger.Warn().
		Str("url", c.url).
		Str("fallback", f.String()).
		Int("status", status).
		Str("detail", detail).
		Msg("tool fetch degraded to empty tool set")
	observability.RecordDescriptorFetch(f.String())
	return FetchResult{Tools: []*Tool{}, Fallback: f, Status: status, Detail: detail}
}
