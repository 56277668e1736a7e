// Package gateway is the typed HTTP client for the business backend. Every
// remote call the console makes goes through a Client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ashureev/ops-console/internal/config"
	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/tracing"
)

const (
	// RequestIDHeader carries a per-call correlation ID.
	RequestIDHeader = "X-Request-ID"
	// OperatorHeader names the console operator a call is made for.
	OperatorHeader = "X-Operator-ID"

	maxErrorBody = 64 << 10
)

// ErrCircuitOpen is returned without contacting the backend while the
// circuit breaker is open.
var ErrCircuitOpen = errors.New("backend unavailable: circuit open")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

// ListParams selects a page of clients or orders. An empty Status means no
// filter.
type ListParams struct {
	Skip   int
	Limit  int
	Status string
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	v.Set("skip", fmt.Sprint(p.Skip))
	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	v.Set("limit", fmt.Sprint(limit))
	if p.Status != "" {
		v.Set("status", p.Status)
	}
	return v
}

// Client talks to the backend REST API.
type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
	logger   *slog.Logger
	operator string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled, instrumented HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client for the backend described by cfg.
func New(cfg config.BackendConfig, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(newTransport()),
		},
		logger: logger.With("component", "gateway"),
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: isSuccessful,
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// isSuccessful keeps caller mistakes and caller cancellation from tripping
// the breaker. Only transport failures and 5xx responses count.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode < http.StatusInternalServerError
	}
	return false
}

// For returns a Client that tags every call with the operator session.
// Both clients share the connection pool and circuit breaker.
func (c *Client) For(sess *domain.OperatorSession) *Client {
	cp := *c
	if sess != nil {
		cp.operator = sess.ID
		cp.logger = c.logger.With("operator", sess.ID)
	}
	return &cp
}

// BreakerState reports the circuit breaker state ("closed", "open" or
// "half-open").
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) (err error) {
	ctx, span := tracing.StartSpan(ctx, "gateway."+op,
		attribute.String("http.method", method),
		attribute.String("backend.path", path),
	)
	defer func() { tracing.End(span, err) }()

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	requestID := uuid.NewString()

	start := time.Now()
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, target, requestID, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = ErrCircuitOpen
		}
		c.logger.Debug("backend call failed",
			"op", op,
			"request_id", requestID,
			"duration", time.Since(start),
			"error", err,
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, target, requestID string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if c.operator != "" {
		req.Header.Set(OperatorHeader, c.operator)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Detail: parseDetail(raw)}
	}
	return io.ReadAll(resp.Body)
}

// parseDetail extracts FastAPI's {"detail": ...}. Validation errors carry a
// list, which is kept as compact JSON.
func parseDetail(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return string(raw)
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, body.Detail); err != nil {
		return string(body.Detail)
	}
	return compact.String()
}
