// ABOUTME: NetService implementation over net/http with proxy, rate limit and tracing
// ABOUTME: Sends JSON bodies and returns JSON bodies; non-2xx becomes *toolkit.HTTPError

package transport

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/aduitools/adui/internal/toolkit"
)

// DefaultTimeout applies when neither the client nor the request sets one
const DefaultTimeout = 30 * time.Second

// DefaultMaxBodySize caps how much of a response body is read
const DefaultMaxBodySize = 10 << 20

const tracerName = "github.com/aduitools/adui/internal/transport"

// Proxy modes
const (
	ProxyDisable = "disable"
	ProxySystem  = "system"
	ProxyManual  = "manual"
)

var (
	// ErrInvalidProxy is returned for an unknown mode or a bad manual URL
	ErrInvalidProxy = errors.New("invalid proxy configuration")

	// ErrInvalidRequest is returned when a request cannot be built
	ErrInvalidRequest = errors.New("invalid request")

	// ErrResponseTooLarge is returned when a response body exceeds the size cap
	ErrResponseTooLarge = errors.New("response body too large")
)

// ProxyConfig selects how outgoing requests are proxied.
type ProxyConfig struct {
	Mode string
	URL  string
}

// Options configures a Client. Zero values give a 30s timeout, no rate
// limit, proxy from the environment and the global tracer provider.
type Options struct {
	Timeout     time.Duration
	RateLimit   float64 // requests per second, 0 disables limiting
	Burst       int
	MaxBodySize int64 // 0 means DefaultMaxBodySize
	Proxy       ProxyConfig
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// Client performs outbound HTTP requests on behalf of tools.
type Client struct {
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	maxBody int64
	tracer  trace.Tracer
	logger  *slog.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	proxy, err := proxyFunc(opts.Proxy)
	if err != nil {
		return nil, err
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = proxy

	c := &Client{
		http:    &http.Client{Transport: base},
		timeout: opts.Timeout,
		maxBody: opts.MaxBodySize,
		tracer:  opts.Tracer,
		logger:  opts.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxBody <= 0 {
		c.maxBody = DefaultMaxBodySize
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "transport")

	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c, nil
}

func proxyFunc(cfg ProxyConfig) (func(*http.Request) (*url.URL, error), error) {
	switch cfg.Mode {
	case "", ProxySystem:
		return http.ProxyFromEnvironment, nil
	case ProxyDisable:
		return nil, nil
	case ProxyManual:
		if cfg.URL == "" {
			return nil, fmt.Errorf("%w: manual mode requires a url", ErrInvalidProxy)
		}
		u, err := url.Parse(cfg.URL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: bad url %q", ErrInvalidProxy, cfg.URL)
		}
		switch u.Scheme {
		case "http", "https", "socks5":
		default:
			return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
		}
		return http.ProxyURL(u), nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidProxy, cfg.Mode)
	}
}

// Request sends req and decodes the response. A status of 400 or above is
// returned as *toolkit.HTTPError carrying the decoded body.
func (c *Client) Request(ctx context.Context, req toolkit.Request) (resp *toolkit.Response, err error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := c.tracer.Start(ctx, "net.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", safeURLString(req.URL)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	httpReq, err := buildRequest(ctx, method, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		// *url.Error prints the full URL, query credentials included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("%s %s: %w", method, safeURL(httpReq.URL), err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(raw)) > c.maxBody {
		return nil, fmt.Errorf("%w: %s %s exceeds %d bytes", ErrResponseTooLarge, method, safeURL(httpReq.URL), c.maxBody)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", httpResp.StatusCode))
	c.logger.Debug("request finished",
		"method", method,
		"url", safeURL(httpReq.URL),
		"status", httpResp.StatusCode,
		"duration", time.Since(start),
	)

	body, err := jsonBody(raw)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, &toolkit.HTTPError{Status: httpResp.StatusCode, Body: body}
	}

	return &toolkit.Response{
		Status:  httpResp.StatusCode,
		Headers: flattenHeaders(httpResp.Header),
		Body:    body,
	}, nil
}

func buildRequest(ctx context.Context, method string, req toolkit.Request) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: bad url %q", ErrInvalidRequest, safeURLString(req.URL))
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	hasBody := len(req.Body) > 0 && string(req.Body) != "null"
	if hasBody && req.Form != nil {
		return nil, fmt.Errorf("%w: body and form are mutually exclusive", ErrInvalidRequest)
	}
	if hasBody {
		if !json.Valid(req.Body) {
			return nil, fmt.Errorf("%w: body is not valid JSON", ErrInvalidRequest)
		}
		body = bytes.NewReader(req.Body)
	}
	var formType string
	if req.Form != nil {
		buf, ct, err := encodeForm(req.Form)
		if err != nil {
			return nil, err
		}
		body, formType = buf, ct
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if hasBody {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	// The boundary lives in the content type, so callers cannot override it.
	if formType != "" {
		httpReq.Header.Set("Content-Type", formType)
	}
	return httpReq, nil
}

// encodeForm writes f as multipart/form-data. Fields are written in key
// order, then files in the given order.
func encodeForm(f *toolkit.Form) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, k := range slices.Sorted(maps.Keys(f.Fields)) {
		if err := w.WriteField(k, f.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("%w: form field %q: %v", ErrInvalidRequest, k, err)
		}
	}
	for _, file := range f.Files {
		if file.Field == "" {
			return nil, "", fmt.Errorf("%w: form file without field name", ErrInvalidRequest)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
			"name":     file.Field,
			"filename": cmp.Or(file.Name, file.Field),
		}))
		h.Set("Content-Type", cmp.Or(file.ContentType, "application/octet-stream"))
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("%w: form file %q: %v", ErrInvalidRequest, file.Field, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("%w: form file %q: %v", ErrInvalidRequest, file.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: closing form: %v", ErrInvalidRequest, err)
	}
	return &buf, w.FormDataContentType(), nil
}

// jsonBody passes JSON through unchanged, maps an empty body to null and
// wraps anything else as a JSON string.
func jsonBody(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage("null"), nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed), nil
	}
	b, err := json.Marshal(string(raw))
	if err != nil {
		return nil, fmt.Errorf("encoding response body: %w", err)
	}
	return b, nil
}

// safeURL renders u for logs, spans and errors. Query strings and userinfo
// often carry credentials (OAuth client_secret), so both are dropped.
func safeURL(u *url.URL) string {
	c := *u
	c.User = nil
	c.RawQuery = ""
	c.ForceQuery = false
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

func safeURLString(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	return safeURL(u)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}
