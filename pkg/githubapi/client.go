// Package githubapi builds the go-github client used by the issue tools.
package githubapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/go-github/v62/github"
)

const (
	// DefaultBaseURL is the public GitHub REST API root.
	DefaultBaseURL = "https://api.github.com/"
	// APIVersion is sent as X-GitHub-Api-Version on every request.
	APIVersion = "2022-11-28"
	// MediaType is sent as Accept on every request.
	MediaType = "application/vnd.github+json"
)

// Options configures NewClient.
type Options struct {
	// Token is the bearer token. Empty means unauthenticated; upstream will
	// then reject writes with 401 at call time.
	Token string
	// BaseURL overrides DefaultBaseURL (GitHub Enterprise, test stubs).
	BaseURL string
	// Timeout bounds each HTTP round trip. Zero means no client timeout.
	Timeout time.Duration
	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

// headerTransport pins the API version and media type headers.
type headerTransport struct {
	base http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", MediaType)
	req.Header.Set("X-GitHub-Api-Version", APIVersion)
	return t.base.RoundTrip(req)
}

// NewClient creates a GitHub API client from opts.
func NewClient(opts Options) (*github.Client, error) {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{
		Timeout:   opts.Timeout,
		Transport: &headerTransport{base: base},
	}

	client := github.NewClient(httpClient)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}

	if opts.BaseURL != "" {
		raw := opts.BaseURL
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parse GitHub base URL %q", opts.BaseURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, errors.Errorf("GitHub base URL %q: unsupported scheme %q", opts.BaseURL, u.Scheme)
		}
		client.BaseURL = u
	}
	return client, nil
}
