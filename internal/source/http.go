package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 30 * time.Second

// maxBody caps response bodies read into memory.
const maxBody = 64 << 20

// httpGetter performs single-attempt GET requests.
type httpGetter struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// Option configures the HTTP-backed sources.
type Option func(*httpGetter)

// WithTimeout sets the per-request timeout. It applies to a copy of the
// client, so a shared client passed with WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(g *httpGetter) {
		g.timeout = d
	}
}

// WithHTTPClient sets a custom http.Client. Without WithTimeout its own
// timeout is kept.
func WithHTTPClient(client *http.Client) Option {
	return func(g *httpGetter) {
		g.client = client
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(g *httpGetter) {
		g.userAgent = ua
	}
}

func newGetter(opts []Option) httpGetter {
	g := httpGetter{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: "market-feature-lab/1.0",
	}
	for _, opt := range opts {
		opt(&g)
	}
	if g.timeout > 0 {
		c := *g.client
		c.Timeout = g.timeout
		g.client = &c
	}
	return g
}

// statusError carries a non-200 response.
type statusError struct {
	Code int
	Body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, truncate(e.Body, 256))
}

// get returns the body of a 200 response. Other statuses return a
// *statusError with the body so callers can extract upstream messages.
func (g httpGetter) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, &statusError{Code: resp.StatusCode, Body: body}
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
