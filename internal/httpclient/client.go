// Package httpclient builds the outbound HTTP clients used for upstream
// probing and EPG fetching.
package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/plexbridge/plexbridge/internal/version"
)

// DefaultMaxRedirects caps redirect chains on outbound requests.
const DefaultMaxRedirects = 5

// Options configures a client.
type Options struct {
	// Timeout bounds the whole request including body read. Zero means no
	// client-level timeout.
	Timeout time.Duration

	// MaxRedirects caps the redirect chain. Zero means DefaultMaxRedirects.
	MaxRedirects int

	// UserAgent overrides the default plexbridge User-Agent.
	UserAgent string
}

// New creates an *http.Client with a redirect cap and a User-Agent applied
// to every request that does not set one explicitly.
func New(opts Options) *http.Client {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &userAgentTransport{
			userAgent: userAgent,
			next:      http.DefaultTransport,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

type userAgentTransport struct {
	userAgent string
	next      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.next.RoundTrip(req)
}
