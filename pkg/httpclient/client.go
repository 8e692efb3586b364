package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/promarket/pkg/logger"
	"github.com/utafrali/promarket/pkg/tracing"
)

// Config holds HTTP client configuration
type Config struct {
	// Timeout bounds one attempt including reading the body. Zero leaves the
	// transport's dial and TLS timeouts as the only bound.
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns the settings used for idempotent upstream reads.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    time.Second,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// SingleAttemptConfig returns DefaultConfig without retries, for calls that
// must not be repeated behind the caller's back (order placement).
func SingleAttemptConfig(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.Timeout = timeout
	cfg.MaxRetries = 0
	return cfg
}

// backoff returns the wait before the given retry (1-based), doubling from
// RetryWaitMin and capped at RetryWaitMax.
func (c Config) backoff(retry int) time.Duration {
	wait := c.RetryWaitMin << uint(retry-1)
	if wait <= 0 || wait > c.RetryWaitMax {
		return c.RetryWaitMax
	}
	return wait
}

// Doer executes HTTP requests. Client and CircuitBreakerClient satisfy it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client is an http.Client with pooled connections, bounded retries and
// outbound trace and correlation propagation.
type Client struct {
	httpClient *http.Client
	config     Config
	propagator propagation.TextMapPropagator
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		config:     cfg,
	}
}

// Do sends req under a client span. Transport errors and 5xx responses
// other than 501 are retried up to MaxRetries times, rewinding the body
// between attempts. The final response is returned as is; status handling
// is left to the caller.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	ctx, span := tracing.Tracer("httpclient").Start(ctx, "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPMethod(req.Method),
			attribute.String("server.address", req.URL.Host),
		),
	)
	defer span.End()

	req = req.Clone(ctx)
	c.inject(ctx, req.Header)

	resp, attempts, err := c.send(ctx, req)
	span.SetAttributes(attribute.Int("http.attempts", attempts))
	if err != nil {
		tracing.End(span, err)
		return nil, err
	}
	span.SetAttributes(semconv.HTTPStatusCode(resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		tracing.End(span, fmt.Errorf("upstream returned %d", resp.StatusCode))
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, int, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.config.backoff(attempt)):
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			}
			if err := rewind(req); err != nil {
				return nil, attempt, err
			}
		}

		last := attempt >= c.config.MaxRetries
		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			if !last && isRetryableError(err) {
				continue
			}
			return nil, attempt + 1, fmt.Errorf("http request failed after %d attempts: %w", attempt+1, err)
		case !last && retryableStatus(resp.StatusCode):
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			_ = resp.Body.Close()
			continue
		}
		return resp, attempt + 1, nil
	}
}

// inject writes the W3C trace context and the correlation id of ctx onto h.
func (c *Client) inject(ctx context.Context, h http.Header) {
	p := c.propagator
	if p == nil {
		p = otel.GetTextMapPropagator()
	}
	p.Inject(ctx, propagation.HeaderCarrier(h))
	if id := logger.CorrelationIDFromContext(ctx); id != "" && h.Get(logger.CorrelationHeader) == "" {
		h.Set(logger.CorrelationHeader, id)
	}
}

func rewind(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

// NewJSONRequest builds a request whose body is v encoded as JSON.
func NewJSONRequest(ctx context.Context, method, url string, v any) (*http.Request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

func retryableStatus(status int) bool {
	return status >= http.StatusInternalServerError && status != http.StatusNotImplemented
}

// isRetryableError reports whether err is a network failure worth another
// attempt. Cancellation and deadline errors never are.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
