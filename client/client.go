// Package client provides a retrying HTTP JSON client for package
// index APIs, with per-host circuit breaking and DNS caching.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

// ErrUpstreamDown is returned when the index's circuit breaker is open
// or the index keeps failing with server errors.
var ErrUpstreamDown = errors.New("index unavailable")

// HTTPError represents a non-2xx response from the index.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Client is an HTTP client with retry and circuit-breaker logic for
// index APIs. All methods are safe for concurrent use.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration

	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithMaxRetries sets the maximum retry attempts for transient failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// DefaultClient returns a shared Client with default settings.
func DefaultClient() *Client {
	defaultOnce.Do(func() {
		defaultClient = NewClient()
	})
	return defaultClient
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...Option) *Client {
	// DNS cache with 5 minute refresh interval.
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	c := &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP")
				},
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		userAgent:  "pipgrade/1.0",
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		breakers:   make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches rawURL and decodes the response body into v. 404 and
// other client errors surface as *HTTPError without retrying; server
// errors and transport failures are retried with exponential backoff
// before being returned.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	breaker := c.getBreaker(hostOf(rawURL))
	if !breaker.Ready() {
		return fmt.Errorf("circuit breaker open for %s: %w", hostOf(rawURL), ErrUpstreamDown)
	}

	return breaker.Call(func() error {
		return c.getJSONWithRetry(ctx, rawURL, v)
	}, 0)
}

func (c *Client) getJSONWithRetry(ctx context.Context, rawURL string, v any) error {
	op := func() error {
		return c.doGetJSON(ctx, rawURL, v)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.baseDelay
	expBackoff.MaxElapsedTime = 0 // bounded by retry count, not wall clock

	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(c.maxRetries)), ctx))
}

func (c *Client) doGetJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding %s: %w", rawURL, err))
		}
		return nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return &HTTPError{StatusCode: resp.StatusCode, URL: rawURL}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return backoff.Permanent(&HTTPError{
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Body:       string(body),
		})
	}
}

// getBreaker returns or creates a circuit breaker for the given host.
func (c *Client) getBreaker(host string) *circuit.Breaker {
	c.mu.RLock()
	breaker, exists := c.breakers[host]
	c.mu.RUnlock()

	if exists {
		return breaker
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if breaker, exists := c.breakers[host]; exists {
		return breaker
	}

	// Trips after 5 consecutive failures; resets on an exponential
	// schedule starting at 30s.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	c.breakers[host] = breaker
	return breaker
}

// BreakerStates returns the current state of the per-host circuit
// breakers, for health reporting.
func (c *Client) BreakerStates() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	states := make(map[string]string, len(c.breakers))
	for host, breaker := range c.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
