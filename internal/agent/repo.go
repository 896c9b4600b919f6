package agent

import (
	"net/url"
	"strings"
)

// DefaultRepoHost is the host accepted by ParseRepoURL unless overridden.
const DefaultRepoHost = "github.com"

// ParseRepoURL resolves a repository URL such as
// https://github.com/octocat/hello-world to "octocat/hello-world".
// Extra path segments, a ".git" suffix, a query and a fragment are ignored.
// Any other shape, or a host other than host, is rejected with no partial
// result.
func ParseRepoURL(raw, host string) (string, bool) {
	if host == "" {
		host = DefaultRepoHost
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.User != nil || !strings.EqualFold(u.Host, host) {
		return "", false
	}

	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", false
	}
	owner, name := parts[0], strings.TrimSuffix(parts[1], ".git")
	if !validSegment(owner) || !validSegment(name) {
		return "", false
	}
	return owner + "/" + name, true
}

// validSegment accepts the characters GitHub allows in owner and repository
// names.
func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
