// Package directory holds the HTTP plumbing shared by the remote event and
// user directory clients: per-client timeouts, throttling, tracing, metrics
// and failure classification.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
	"github.com/Togather-Foundation/favorites/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every remote call.
	DefaultTimeout = 5 * time.Second
	// DefaultUserAgent identifies this service to the directories.
	DefaultUserAgent = "favorites-service/1.0"

	tracerName      = "github.com/Togather-Foundation/favorites/internal/directory"
	maxResponseBody = 1 << 20
)

// Transport performs requests against one remote directory.
type Transport struct {
	service    string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	tracer     trace.Tracer
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient sets a custom HTTP client. Its Timeout is used as is.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		if timeout > 0 {
			t.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit throttles outgoing requests. A non-positive rps disables
// throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(t *Transport) {
		if rps <= 0 {
			t.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(userAgent string) Option {
	return func(t *Transport) {
		if userAgent != "" {
			t.userAgent = userAgent
		}
	}
}

// NewTransport creates a transport for service (a metrics and span label)
// rooted at baseURL.
func NewTransport(service, baseURL string, opts ...Option) *Transport {
	t := &Transport{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  DefaultUserAgent,
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Request describes one call.
type Request struct {
	Operation string
	Method    string
	Path      string
	Accept    string
	Body      any
	Header    http.Header
}

// Response is a completed call that reached the remote service.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do sends req. Transport failures and 5xx responses are returned as errors
// wrapping favorites.ErrRemoteUnavailable; every other status is returned to
// the caller to interpret. Call Observe with the final outcome.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := t.tracer.Start(ctx, t.service+"."+req.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("directory.service", t.service),
			semconv.HTTPMethod(req.Method),
		),
	)
	defer span.End()

	resp, err := t.do(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(semconv.HTTPStatusCode(resp.StatusCode))
	return resp, nil
}

func (t *Transport) do(ctx context.Context, req Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, t.unavailable(req, fmt.Errorf("rate limiter: %w", err))
		}
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", req.Operation, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", req.Operation, err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("User-Agent", t.userAgent)
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, t.unavailable(req, fmt.Errorf("http request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, t.unavailable(req, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, t.unavailable(req, fmt.Errorf("server error (%d)", resp.StatusCode))
	}
	return &Response{StatusCode: resp.StatusCode, Body: payload}, nil
}

func (t *Transport) unavailable(req Request, err error) error {
	return fmt.Errorf("%w: %s %s: %w", favorites.ErrRemoteUnavailable, t.service, req.Operation, err)
}

// Unexpected wraps a status the caller has no mapping for.
func (t *Transport) Unexpected(operation string, resp *Response) error {
	snippet := string(resp.Body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Errorf("%w: %s %s: unexpected status %d: %s",
		favorites.ErrRemoteUnavailable, t.service, operation, resp.StatusCode, snippet)
}

// Observe records the metrics for one finished call.
func (t *Transport) Observe(operation string, start time.Time, err error) {
	metrics.RecordDirectoryCall(t.service, operation, start, Outcome(err))
}

// Outcome classifies err for metrics labels.
func Outcome(err error) string {
	var timeout interface{ Timeout() bool }
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, favorites.ErrEventNotFound), errors.Is(err, favorites.ErrUserNotFound):
		return "not_found"
	case errors.As(err, &timeout) && timeout.Timeout():
		return "timeout"
	default:
		return "error"
	}
}
