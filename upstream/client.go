// Package upstream is the HTTP client every database server uses to reach its
// remote API. It retries transient failures with exponential backoff, turns
// error statuses into StatusError values with readable messages, and records
// a client span per request.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mhpenta/biochem-mcp/config"
)

const (
	tracerName = "github.com/mhpenta/biochem-mcp/upstream"

	// MaxBodySize caps every response body.
	MaxBodySize = 50 << 20

	// maxRetryAfter is the longest Retry-After the client is willing to wait.
	maxRetryAfter = 30 * time.Second
)

// Client talks to a single remote API rooted at a base URL.
type Client struct {
	service   string
	baseURL   string
	http      *http.Client
	userAgent string
	headers   http.Header
	maxTries  uint
	initial   time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

func WithBearerToken(token string) Option {
	return WithHeader("Authorization", "Bearer "+token)
}

// WithMaxTries limits attempts per request, the first one included.
func WithMaxTries(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithInitialBackoff sets the delay before the first retry.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) { c.initial = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithSettings applies the shared environment settings.
func WithSettings(s config.Upstream) Option {
	return func(c *Client) {
		if s.Timeout > 0 {
			c.http.Timeout = s.Timeout
		}
		if s.MaxTries > 0 {
			c.maxTries = s.MaxTries
		}
		if s.UserAgent != "" {
			c.userAgent = s.UserAgent
		}
	}
}

// New returns a client for the API at baseURL. service names the API in
// error messages and spans, e.g. "PubChem".
func New(service, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse %s base URL: %w", service, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s base URL %q must be http or https", service, baseURL)
	}

	c := &Client{
		service:   service,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: "biochem-mcp/1.0",
		headers:   make(http.Header),
		maxTries:  3,
		initial:   500 * time.Millisecond,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Service returns the API name given to New.
func (c *Client) Service() string {
	return c.service
}

// Request describes one call relative to the base URL. Path must already be
// escaped; see Path.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	Accept      string
	Header      http.Header
}

// Response is a fully read response with a 2xx status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// MediaType returns the response content type without parameters.
func (r *Response) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// JSON parses the body. Empty bodies yield a Result that does not exist.
func (r *Response) JSON() gjson.Result {
	return gjson.ParseBytes(r.Body)
}

// URL returns the absolute URL for path and query.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL
	if path != "" {
		u += "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do sends the request, retrying transient failures.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	target := c.URL(req.Path, req.Query)

	ctx, span := c.tracer.Start(ctx, c.service+" "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", target),
			attribute.String("peer.service", c.service),
		))
	defer span.End()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	b.MaxInterval = 10 * time.Second

	attempt := 0
	start := time.Now()

	resp, err := backoff.Retry(ctx, func() (*Response, error) {
		attempt++
		return c.once(ctx, req, target)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("retrying upstream request",
				"service", c.service,
				"url", target,
				"attempt", attempt,
				"wait", wait,
				"error", err)
		}),
	)

	span.SetAttributes(attribute.Int("http.request.resend_count", attempt-1))

	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			span.SetAttributes(attribute.Int("http.response.status_code", statusErr.StatusCode))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("upstream request failed",
			"service", c.service,
			"method", req.Method,
			"url", target,
			"attempts", attempt,
			"duration", time.Since(start),
			"error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("upstream request",
		"service", c.service,
		"method", req.Method,
		"url", target,
		"status", resp.StatusCode,
		"bytes", len(resp.Body),
		"attempts", attempt,
		"duration", time.Since(start))

	return resp, nil
}

// once performs a single attempt. Errors that must not be retried are
// wrapped with backoff.Permanent.
func (c *Client) once(ctx context.Context, req Request, target string) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build %s request: %w", c.service, err))
	}

	for k, vs := range c.headers {
		httpReq.Header[k] = vs
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = vs
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(fmt.Errorf("%s request cancelled: %w", c.service, ctx.Err()))
		}
		return nil, fmt.Errorf("%s request failed: %w", c.service, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.service, err)
	}
	if len(data) > MaxBodySize {
		return nil, backoff.Permanent(fmt.Errorf("%s response exceeds %d bytes", c.service, MaxBodySize))
	}

	if httpResp.StatusCode >= 400 {
		statusErr := newStatusError(c.service, req.Method, target, httpResp.StatusCode, data)
		if !retryable(httpResp.StatusCode) {
			return nil, backoff.Permanent(statusErr)
		}
		if wait, ok := retryAfter(httpResp.Header); ok {
			if wait > maxRetryAfter {
				return nil, backoff.Permanent(statusErr)
			}
			return nil, &throttled{StatusError: statusErr, after: &backoff.RetryAfterError{Duration: wait}}
		}
		return nil, statusErr
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryAfter(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(time.Until(at), 0), true
	}
	return 0, false
}

// throttled carries both the StatusError for callers and the delay for backoff.
type throttled struct {
	*StatusError
	after *backoff.RetryAfterError
}

func (t *throttled) Unwrap() []error {
	return []error{t.StatusError, t.after}
}

// GetJSON fetches path and parses the body as JSON.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return gjson.Result{}, err
	}
	return c.parse(resp)
}

// GetRaw fetches path, accepting any content type.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values, accept string) (*Response, error) {
	if accept == "" {
		accept = "*/*"
	}
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Accept: accept})
}

// PostJSON encodes body as JSON, posts it, and returns the raw reply.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", c.service, err)
	}
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        data,
		ContentType: "application/json",
	})
}

// PostForm posts URL-encoded form values and parses the JSON reply.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (gjson.Result, error) {
	resp, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return gjson.Result{}, err
	}
	return c.parse(resp)
}

// PostText posts a plain text body and returns the raw reply.
func (c *Client) PostText(ctx context.Context, path, text, accept string) (*Response, error) {
	if accept == "" {
		accept = "*/*"
	}
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        []byte(text),
		ContentType: "text/plain",
		Accept:      accept,
	})
}

func (c *Client) parse(resp *Response) (gjson.Result, error) {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(resp.Body) {
		return gjson.Result{}, fmt.Errorf("%s returned invalid JSON", c.service)
	}
	return resp.JSON(), nil
}

// Path formats an escaped URL path. Every argument is escaped as a single
// path segment.
func Path(format string, args ...any) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(fmt.Sprint(a))
	}
	return fmt.Sprintf(format, escaped...)
}
