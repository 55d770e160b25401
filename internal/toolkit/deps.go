// ABOUTME: Backend service interfaces injected into the runtime context factory.
// ABOUTME: Hosts implement these; plugins never see them directly.

package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SettingsService reads and writes JSON setting values by key.
// Get returns a nil value and a nil error when the key is unset.
type SettingsService interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
}

// ConversationsRepository stores conversations as caller-defined JSON payloads.
type ConversationsRepository interface {
	List(ctx context.Context) ([]json.RawMessage, error)
	Create(ctx context.Context, payload json.RawMessage) (string, error)
}

// StorageService aggregates the repositories exposed to tools.
type StorageService struct {
	Conversations ConversationsRepository
}

// NetService performs outbound network requests.
// Proxying, certificates and timeouts are the implementation's concern.
type NetService interface {
	Request(ctx context.Context, req Request) (*Response, error)
}

// Logger is the logging capability. Arguments are slog-style key/value pairs,
// so *slog.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps is the full set of raw backends a Context is built from.
type Deps struct {
	Settings SettingsService
	Storage  StorageService
	Net      NetService
	Log      Logger
}

// Request describes an outbound HTTP request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    json.RawMessage

	// Form sends a multipart/form-data body instead of Body.
	Form *Form

	// Timeout overrides the transport default when positive.
	Timeout time.Duration
}

// Form is a multipart/form-data request body.
type Form struct {
	Fields map[string]string
	Files  []FormFile
}

// FormFile is a single file part of a Form.
type FormFile struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Response is the result of a completed request.
type Response struct {
	Status  int
	Headers map[string]string
	Body    json.RawMessage
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// HTTPError is returned by a NetService when the remote answered with a
// non-success status.
type HTTPError struct {
	Status int
	Body   json.RawMessage
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d (%s)", e.Status, http.StatusText(e.Status))
}
