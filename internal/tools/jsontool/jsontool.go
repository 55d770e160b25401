// ABOUTME: JSON tool: format/minify, gjson path queries and JSON Schema validation.
// ABOUTME: Reads its default indent from the json.indent setting.

package jsontool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/gjson"

	"github.com/aduitools/adui/internal/cache"
	"github.com/aduitools/adui/internal/toolkit"
)

// ID is the tool identifier.
const ID = "json"

// IndentSetting holds the default indent width for formatting.
const IndentSetting = "json.indent"

const defaultIndent = 2

// Compiled user schemas are reused across validate calls.
const (
	schemaCacheTTL  = 10 * time.Minute
	schemaCacheSize = 64
)

const formatSchema = `{
	"type": "object",
	"properties": {
		"text": {"type": "string"},
		"minify": {"type": "boolean"},
		"indent": {"type": "integer", "minimum": 0, "maximum": 8}
	},
	"required": ["text"]
}`

const querySchema = `{
	"type": "object",
	"properties": {
		"text": {"type": "string"},
		"path": {"type": "string", "minLength": 1}
	},
	"required": ["text", "path"]
}`

const validateSchema = `{
	"type": "object",
	"properties": {
		"text": {"type": "string"},
		"schema": {"type": "string", "minLength": 1}
	},
	"required": ["text", "schema"]
}`

// Tool is the JSON tool plugin.
type Tool struct {
	rc atomic.Pointer[toolkit.Context]

	format   *toolkit.Endpoint
	query    *toolkit.Endpoint
	validate *toolkit.Endpoint

	schemas *cache.Cache[*jsonschema.Schema]
}

// New creates the JSON tool.
func New() *Tool {
	t := &Tool{
		schemas: cache.New[*jsonschema.Schema](schemaCacheTTL, schemaCacheSize),
	}
	t.format = toolkit.MustEndpoint(http.MethodPost, formatSchema, t.Format)
	t.query = toolkit.MustEndpoint(http.MethodPost, querySchema, t.Query)
	t.validate = toolkit.MustEndpoint(http.MethodPost, validateSchema, t.Validate)
	return t
}

// Meta returns the tool metadata.
func (t *Tool) Meta() toolkit.ToolMeta {
	return toolkit.ToolMeta{
		ID:       ID,
		Name:     "JSON",
		Icon:     "json",
		Order:    1,
		Keywords: []string{"json", "format", "minify", "query", "schema"},
	}
}

// Routes returns json, json/query and json/validate.
func (t *Tool) Routes() []toolkit.Route {
	return []toolkit.Route{{
		Path:    "json",
		Name:    "tool.json",
		Handler: t.format,
		Children: []toolkit.Route{
			{Path: "query", Name: "tool.json-query", Handler: t.query},
			{Path: "validate", Name: "tool.json-validate", Handler: t.validate},
		},
	}}
}

// Setup keeps the tool context for the handlers.
func (t *Tool) Setup(ctx context.Context, rc *toolkit.Context) error {
	t.rc.Store(rc)
	return nil
}

type formatInput struct {
	Text   string `json:"text"`
	Minify bool   `json:"minify"`
	Indent *int   `json:"indent"`
}

// Format pretty-prints or minifies a JSON document.
func (t *Tool) Format(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in formatInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
	}
	if err := checkJSON(in.Text); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if in.Minify {
		if err := json.Compact(&buf, []byte(in.Text)); err != nil {
			return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
		}
	} else {
		indent := t.indent(ctx)
		if in.Indent != nil {
			indent = *in.Indent
		}
		if err := json.Indent(&buf, []byte(in.Text), "", strings.Repeat(" ", indent)); err != nil {
			return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
		}
	}

	return json.Marshal(map[string]string{"result": buf.String()})
}

type queryInput struct {
	Text string `json:"text"`
	Path string `json:"path"`
}

// Query evaluates a gjson path against a document.
func (t *Tool) Query(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in queryInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
	}
	if err := checkJSON(in.Text); err != nil {
		return nil, err
	}

	res := gjson.Get(in.Text, in.Path)
	out := map[string]any{
		"exists": res.Exists(),
		"type":   res.Type.String(),
		"value":  nil,
	}
	if res.Exists() {
		out["value"] = json.RawMessage(res.Raw)
	}
	return json.Marshal(out)
}

type validateInput struct {
	Text   string `json:"text"`
	Schema string `json:"schema"`
}

// Validate checks a document against a JSON Schema.
func (t *Tool) Validate(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in validateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
	}
	if err := checkJSON(in.Text); err != nil {
		return nil, err
	}

	sch, err := t.schemas.GetOrSet(in.Schema, func() (*jsonschema.Schema, error) {
		return toolkit.CompileSchema(in.Schema)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: schema: %v", toolkit.ErrInvalidInput, err)
	}

	problems := []string{}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(in.Text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
	}
	if err := sch.Validate(doc); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				problems = append(problems, line)
			}
		}
	}

	return json.Marshal(map[string]any{
		"valid":  len(problems) == 0,
		"errors": problems,
	})
}

func (t *Tool) indent(ctx context.Context) int {
	rc := t.rc.Load()
	if rc == nil {
		return defaultIndent
	}
	n, ok := toolkit.GetSetting[int](ctx, rc.Settings(), IndentSetting)
	if !ok || n < 0 || n > 8 {
		return defaultIndent
	}
	return n
}

// checkJSON reports a syntax error with its position.
func checkJSON(text string) error {
	if gjson.Valid(text) {
		return nil
	}
	var v any
	err := json.Unmarshal([]byte(text), &v)
	if se, ok := err.(*json.SyntaxError); ok {
		return fmt.Errorf("%w: syntax error at offset %d: %v", toolkit.ErrInvalidInput, se.Offset, se)
	}
	if err == nil {
		err = errors.New("not a JSON document")
	}
	return fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
}
