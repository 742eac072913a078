// Package provider is a client for the external vehicle ownership and owner
// profile lookup service.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-resolver/internal/model"
	"github.com/sells-group/lead-resolver/internal/resilience"
)

// ErrNotFound is returned when the provider has no record for the key.
var ErrNotFound = eris.New("provider: not found")

// Client defines the provider operations.
type Client interface {
	// Ping checks that the provider is reachable and accepting requests.
	Ping(ctx context.Context) error
	// LookupOwnership fetches the ownership history for a plate or chassis number.
	LookupOwnership(ctx context.Context, key string) (*OwnershipResult, error)
	// LookupOwnershipFallback queries the search endpoint, whose response
	// sometimes carries ownership history the primary endpoint lacks.
	LookupOwnershipFallback(ctx context.Context, key string) (*OwnershipResult, error)
	// LookupProfile dereferences an owner profile reference.
	LookupProfile(ctx context.Context, ref string) (*model.Profile, error)
}

// OwnershipResult is one logical ownership lookup.
type OwnershipResult struct {
	Assertion *model.ListingAssertion
	Chain     model.OwnershipChain
}

// Empty reports whether the result carries no ownership data.
func (r *OwnershipResult) Empty() bool {
	return r == nil || len(r.Chain) == 0
}

// Merge combines a primary and a fallback result. The primary chain wins when
// present; a missing assertion is taken from whichever side has one.
func Merge(primary, fallback *OwnershipResult) *OwnershipResult {
	out := &OwnershipResult{}
	if primary != nil {
		out.Assertion = primary.Assertion
		out.Chain = primary.Chain
	}
	if fallback != nil {
		if len(out.Chain) == 0 {
			out.Chain = fallback.Chain
		}
		if out.Assertion == nil {
			out.Assertion = fallback.Assertion
		}
	}
	return out
}

// Option configures the provider client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds each request. Zero leaves the network-layer defaults.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithRequestsPerMinute sets the hard request ceiling.
func WithRequestsPerMinute(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithLimiter replaces the rate limiter (for testing).
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a provider client for baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get issues one rate-limited GET and classifies the response. Block and
// throttle responses become *resilience.RateLimitError, 5xx responses
// *resilience.TransientError, 404 ErrNotFound.
func (c *httpClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "provider: rate limiter")
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "provider: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: GET %s", path)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, eris.Wrap(readErr, "provider: read response body")
	}

	if blocked, signal := resilience.DetectBlock(resp.StatusCode, body); blocked {
		return nil, resilience.NewRateLimitError(
			eris.Errorf("provider: blocked on %s (%s)", path, signal), resp.StatusCode, signal)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("provider: status %d on %s", resp.StatusCode, path), resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, eris.Errorf("provider: unexpected status %d on %s: %s", resp.StatusCode, path, truncate(body, 200))
	}
	return body, nil
}

func (c *httpClient) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/health", nil)
	return eris.Wrap(err, "provider: ping")
}

func (c *httpClient) LookupOwnership(ctx context.Context, key string) (*OwnershipResult, error) {
	body, err := c.get(ctx, fmt.Sprintf("/vehicles/%s/ownership", url.PathEscape(key)), nil)
	if err != nil {
		return nil, err
	}
	return parseOwnership(body)
}

func (c *httpClient) LookupOwnershipFallback(ctx context.Context, key string) (*OwnershipResult, error) {
	body, err := c.get(ctx, "/search", url.Values{"q": {key}})
	if err != nil {
		return nil, err
	}
	return parseOwnership(body)
}

func (c *httpClient) LookupProfile(ctx context.Context, ref string) (*model.Profile, error) {
	body, err := c.get(ctx, fmt.Sprintf("/profiles/%s", url.PathEscape(ref)), nil)
	if err != nil {
		return nil, err
	}
	return parseProfile(ref, body)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
