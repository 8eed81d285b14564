package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
	DefaultRate       = 5.0

	maxBodySize = 32 << 20
	maxErrBody  = 512
)

// Fetcher retrieves the raw body of a market data endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, remoteURL string, params url.Values) ([]byte, error)
}

// HTTPClient implements Fetcher with a bounded timeout, a request rate limit
// and exponential-backoff retries on transient failures.
type HTTPClient struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	logger     *zap.Logger
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial and maximum retry delays.
func WithRetryDelay(initial, maxDelay time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = initial
		c.maxDelay = maxDelay
	}
}

// WithRateLimit limits outbound requests to perSecond with a burst of one.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *HTTPClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// NewHTTPClient creates a market data HTTP client.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		client:     &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRate), 1),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch GETs remoteURL with params and returns the body of a 2xx response.
// Any failure is returned as *RemoteFetchError.
func (c *HTTPClient) Fetch(ctx context.Context, remoteURL string, params url.Values) ([]byte, error) {
	full := remoteURL
	if len(params) > 0 {
		full += "?" + params.Encode()
	}

	op := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(&RemoteFetchError{URL: full, Err: err})
		}
		body, err := c.get(ctx, full)
		if err != nil {
			var fe *RemoteFetchError
			if errors.As(err, &fe) && !fe.Temporary() {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return body, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxInterval = c.maxDelay

	notify := func(err error, next time.Duration) {
		c.logger.Warn("market data fetch failed, retrying",
			zap.String("url", full),
			zap.Duration("backoff", next),
			zap.Error(err))
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var fe *RemoteFetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &RemoteFetchError{URL: full, Err: err}
	}
	return body, nil
}

func (c *HTTPClient) get(ctx context.Context, full string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, backoff.Permanent(&RemoteFetchError{URL: full, Err: fmt.Errorf("create request: %w", err)})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RemoteFetchError{URL: full, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &RemoteFetchError{URL: full, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrBody {
			body = body[:maxErrBody]
		}
		return nil, &RemoteFetchError{URL: full, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
