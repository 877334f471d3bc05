package robusthttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var requestCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_http_client_requests",
	Help: "Number of outbound HTTP requests (including retries), by status code",
}, []string{"status"})

type LeveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l LeveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l LeveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

type Option func(*retryablehttp.Client, *http.Client)

func WithMaxRetries(maxRetries int) Option {
	return func(rc *retryablehttp.Client, _ *http.Client) {
		rc.RetryMax = maxRetries
	}
}

func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(rc *retryablehttp.Client, _ *http.Client) {
		rc.RetryWaitMin = waitMin
		rc.RetryWaitMax = waitMax
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(rc *retryablehttp.Client, _ *http.Client) {
		rc.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: logger})
	}
}

// Overall timeout for one logical request, across all retries.
func WithTimeout(timeout time.Duration) Option {
	return func(_ *retryablehttp.Client, c *http.Client) {
		c.Timeout = timeout
	}
}

func WithTransport(transport http.RoundTripper) Option {
	return func(rc *retryablehttp.Client, _ *http.Client) {
		rc.HTTPClient.Transport = transport
	}
}

// Builds an HTTP client for chat platform REST calls. The returned client has the stdlib http.Client interface, with retryablehttp logic inside.
//
// Connection errors and 5xx responses (except 501) are retried with backoff. 429 responses are passed through untouched: the platform SDK has its own bucketed rate limiter which reads the response headers.
func NewClient(options ...Option) *http.Client {
	logger := LeveledSlog{inner: slog.Default().With("subsystem", "RobustHTTPClient")}
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = retryablehttp.LeveledLogger(logger)
	rc.CheckRetry = RetryPolicy
	rc.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
		if resp == nil {
			return
		}
		requestCount.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	}

	client := rc.StandardClient()
	client.Timeout = 30 * time.Second
	for _, option := range options {
		option(rc, client)
	}
	return client
}

// Wraps retryablehttp.DefaultRetryPolicy, treating 429 Too Many Requests as non-retryable.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
