package httpclient

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultTimeout bounds a whole artifact request, body included
const DefaultTimeout = 120 * time.Second

// UserAgent is sent with every request made by yvm
var UserAgent = "yvm/dev"

// New creates an HTTP client for release downloads. The timeout covers the
// whole exchange; a zero timeout uses DefaultTimeout. Requests to GitHub
// hosts carry the GITHUB_TOKEN environment variable as a bearer token when
// it is set, which lifts anonymous rate limits on release downloads.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &gitHubTransport{
			Base: http.DefaultTransport,
		},
	}
}

// gitHubTransport is a custom RoundTripper that adds the user agent and GitHub authentication
type gitHubTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements the http.RoundTripper interface
func (t *gitHubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	req2 := req.Clone(req.Context())

	if req2.Header.Get("User-Agent") == "" {
		req2.Header.Set("User-Agent", UserAgent)
	}

	// An explicit Authorization header wins over the environment token
	if req2.Header.Get("Authorization") == "" && isGitHubURL(req2.URL) {
		if token := os.Getenv("GITHUB_TOKEN"); token != "" {
			req2.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return t.Base.RoundTrip(req2)
}

// isGitHubURL checks if a URL points at a GitHub host
func isGitHubURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "github.com" ||
		strings.HasSuffix(host, ".github.com") ||
		strings.HasSuffix(host, ".githubusercontent.com")
}
