// ABOUTME: JSON endpoints: adapts (ctx, input) -> (output, error) handlers to http.Handler.
// ABOUTME: Inputs are checked against an optional JSON Schema before the handler runs.

package toolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// DefaultMaxInputSize caps request bodies accepted by an Endpoint.
const DefaultMaxInputSize = 1 << 20

// ErrInvalidInput marks caller mistakes. Handlers wrap it to get a 400.
var ErrInvalidInput = errors.New("invalid input")

// HandlerFunc is the signature of a tool operation.
type HandlerFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// Endpoint serves one tool operation over HTTP.
//
// POST bodies are passed through as the input. For GET, query parameters
// become a flat JSON object of strings. The handler output is written as the
// response body with status 200.
type Endpoint struct {
	method   string
	schema   *jsonschema.Schema
	handler  HandlerFunc
	maxInput int64
}

// EndpointOption configures an Endpoint.
type EndpointOption func(*Endpoint)

// WithMaxInputSize raises or lowers the POST body cap for endpoints that take
// file content.
func WithMaxInputSize(n int64) EndpointOption {
	return func(e *Endpoint) {
		if n > 0 {
			e.maxInput = n
		}
	}
}

// NewEndpoint builds an Endpoint. method is http.MethodGet or
// http.MethodPost; inputSchema may be empty to accept any JSON.
func NewEndpoint(method, inputSchema string, fn HandlerFunc, opts ...EndpointOption) (*Endpoint, error) {
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("endpoint method must be GET or POST, got %q", method)
	}
	e := &Endpoint{method: method, handler: fn, maxInput: DefaultMaxInputSize}
	for _, opt := range opts {
		opt(e)
	}
	if inputSchema == "" {
		return e, nil
	}

	sch, err := CompileSchema(inputSchema)
	if err != nil {
		return nil, err
	}
	e.schema = sch
	return e, nil
}

// MustEndpoint is like NewEndpoint but panics on error. It is meant for
// endpoints declared with constant schemas.
func MustEndpoint(method, inputSchema string, fn HandlerFunc, opts ...EndpointOption) *Endpoint {
	e, err := NewEndpoint(method, inputSchema, fn, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// CompileSchema compiles a JSON Schema document.
func CompileSchema(schema string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(schema)))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
}

// Call validates input and runs the handler without HTTP.
func (e *Endpoint) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(input)) == 0 {
		input = json.RawMessage(`{}`)
	}
	if e.schema != nil {
		inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(input))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if err := e.schema.Validate(inst); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	} else if !json.Valid(input) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrInvalidInput)
	}
	return e.handler(ctx, input)
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != e.method {
		w.Header().Set("Allow", e.method)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var input json.RawMessage
	if e.method == http.MethodGet {
		q := make(map[string]string)
		for k, v := range r.URL.Query() {
			if len(v) > 0 {
				q[k] = v[0]
			}
		}
		input, _ = json.Marshal(q)
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, e.maxInput+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("reading body: %w", err))
			return
		}
		if int64(len(body)) > e.maxInput {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("body too large"))
			return
		}
		input = body
	}

	out, err := e.Call(r.Context(), input)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func statusFor(err error) int {
	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &httpErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
