// Package functions invokes the hosted serverless functions (OTP delivery,
// payment initiation and payment verification) over HTTPS.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/inlane-funnel/internal/observability/metrics"
	"github.com/wolfman30/inlane-funnel/pkg/logging"
)

var functionsTracer = otel.Tracer("inlane.internal.functions")

// ErrNotConfigured is returned when no base URL was provided.
var ErrNotConfigured = errors.New("functions: base url not configured")

// StatusError is a non-2xx reply from a function.
type StatusError struct {
	Function string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("functions: %s returned status %d", e.Function, e.Status)
	}
	return fmt.Sprintf("functions: %s returned status %d: %s", e.Function, e.Status, e.Message)
}

// Invoker calls a named function with a JSON body and decodes the JSON reply.
type Invoker interface {
	Invoke(ctx context.Context, name string, payload any, out any) error
}

// Client posts to {baseURL}/{name}.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.FunnelMetrics
	logger     *logging.Logger
}

// NewClient builds a client with a bounded HTTP timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithMetrics records per-function latency.
func (c *Client) WithMetrics(m *metrics.FunnelMetrics) *Client {
	c.metrics = m
	return c
}

// WithHTTPClient overrides the transport (tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

func (c *Client) Invoke(ctx context.Context, name string, payload any, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	ctx, span := functionsTracer.Start(ctx, "functions.invoke")
	defer span.End()
	span.SetAttributes(attribute.String("inlane.function", name))

	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.ObserveUpstream(name, status, time.Since(start).Seconds())
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("functions: %s payload: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+name, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("functions: %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return fmt.Errorf("functions: %s http: %w", name, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("functions: %s read: %w", name, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &StatusError{Function: name, Status: resp.StatusCode, Message: errorMessage(raw)}
		span.RecordError(statusErr)
		span.SetStatus(codes.Error, "status")
		c.logger.Warn("function call failed", "function", name, "status", resp.StatusCode)
		return statusErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("functions: %s decode: %w", name, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	if len(body) > 256 {
		body = body[:256]
	}
	return string(body)
}
