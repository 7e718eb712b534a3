// Package client is the single throttled, retrying gateway every source
// extractor goes through.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/metrics"
	"github.com/JakeFAU/player-dossier/internal/policy/retry"
)

// DefaultUserAgent identifies the tool to upstream sites.
const DefaultUserAgent = "CricketRAG-IPLBuilder/1.0 (local project; public data usage)"

// Throttle spaces outbound requests.
type Throttle interface {
	Wait(ctx context.Context, rawURL string) (time.Duration, error)
}

// RetryPolicy classifies attempts and computes backoff.
type RetryPolicy interface {
	Classify(status int, err error) retry.Class
	ShouldRetry(class retry.Class, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock provides time and interruptible sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Cache stores successful response bodies by URL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, body []byte) error
}

// Attempt describes one outbound try. It is only logged.
type Attempt struct {
	URL       string
	Number    int
	Status    int
	LastErr   error
	SinceLast time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithCache enables the response cache.
func WithCache(c Cache) Option {
	return func(cl *Client) {
		cl.cache = c
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(h http.Header) Option {
	return func(cl *Client) {
		for k, values := range h {
			for _, v := range values {
				cl.headers.Add(k, v)
			}
		}
	}
}

// WithLogger sets the logger used for attempt records.
func WithLogger(logger *zap.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// Client serializes every request through one throttle and retries
// transient failures.
type Client struct {
	transport dossier.Transport
	throttle  Throttle
	policy    RetryPolicy
	clock     Clock
	cache     Cache
	headers   http.Header
	logger    *zap.Logger

	mu   sync.Mutex
	last time.Time
}

// New builds a Client. The throttle is owned by the caller and may be
// shared with other clients that must respect the same spacing.
func New(transport dossier.Transport, throttle Throttle, policy RetryPolicy, clock Clock, opts ...Option) *Client {
	metrics.Init()
	c := &Client{
		transport: transport,
		throttle:  throttle,
		policy:    policy,
		clock:     clock,
		headers:   http.Header{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch GETs rawURL with params merged into its query and returns the body
// of the first 2xx response. Failures are reported as *RetrievalError.
func (c *Client) Fetch(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target, err := BuildURL(rawURL, params)
	if err != nil {
		return nil, &RetrievalError{URL: rawURL, Cause: err}
	}
	if c.cache != nil {
		body, ok := c.cache.Get(ctx, target)
		metrics.ObserveCacheLookup(ok)
		if ok {
			return body, nil
		}
	}

	attempt := Attempt{URL: target}
	for n := 1; ; n++ {
		if _, err := c.throttle.Wait(ctx, target); err != nil {
			return nil, &RetrievalError{URL: target, Attempts: n - 1, StatusCode: attempt.Status, Cause: err}
		}
		attempt.Number = n
		attempt.SinceLast = c.mark()

		resp, err := c.transport.Get(ctx, dossier.FetchRequest{URL: target, Headers: c.headers.Clone()})
		attempt.Status = resp.StatusCode
		attempt.LastErr = err
		metrics.ObserveFetch(target, resp.StatusCode, len(resp.Body), resp.Duration)

		class := c.policy.Classify(resp.StatusCode, err)
		c.logAttempt(attempt, class)
		if class == retry.Success {
			c.store(ctx, target, resp.Body)
			return resp.Body, nil
		}
		if err == nil {
			err = &StatusError{Code: resp.StatusCode}
		}
		if !c.policy.ShouldRetry(class, n) {
			return nil, &RetrievalError{URL: target, Attempts: n, StatusCode: resp.StatusCode, Cause: err}
		}
		metrics.ObserveRetry(target)
		if serr := c.clock.Sleep(ctx, c.policy.Backoff(n)); serr != nil {
			return nil, &RetrievalError{URL: target, Attempts: n, StatusCode: resp.StatusCode, Cause: serr}
		}
	}
}

// mark records the start of a request and returns the time since the
// previous one.
func (c *Client) mark() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	var since time.Duration
	if !c.last.IsZero() {
		since = now.Sub(c.last)
	}
	c.last = now
	return since
}

func (c *Client) store(ctx context.Context, key string, body []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Put(ctx, key, body); err != nil {
		c.logger.Warn("cache put failed", zap.String("url", key), zap.Error(err))
	}
}

func (c *Client) logAttempt(a Attempt, class retry.Class) {
	fields := []zap.Field{
		zap.String("url", a.URL),
		zap.Int("attempt", a.Number),
		zap.Int("status", a.Status),
		zap.Duration("since_last", a.SinceLast),
	}
	if a.LastErr != nil {
		fields = append(fields, zap.Error(a.LastErr))
	}
	switch class {
	case retry.Success:
		c.logger.Debug("fetch ok", fields...)
	case retry.Retryable:
		c.logger.Debug("fetch transient failure", fields...)
	default:
		c.logger.Debug("fetch failed", fields...)
	}
}

// BuildURL merges params into the query of rawURL. Existing query values
// are kept unless params overrides the same key.
func BuildURL(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", rawURL)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, values := range params {
		q[k] = append([]string(nil), values...)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
