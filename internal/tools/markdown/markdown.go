// ABOUTME: Markdown tool: renders Markdown to HTML with goldmark.
// ABOUTME: GitHub flavored extensions are on unless the markdown.gfm setting is false.

package markdown

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/aduitools/adui/internal/toolkit"
)

// ID is the tool identifier.
const ID = "markdown"

// GFMSetting toggles GitHub flavored Markdown.
const GFMSetting = "markdown.gfm"

const renderSchema = `{
	"type": "object",
	"properties": {
		"text": {"type": "string"},
		"gfm": {"type": "boolean"}
	},
	"required": ["text"]
}`

// Tool is the markdown plugin.
type Tool struct {
	rc     atomic.Pointer[toolkit.Context]
	plain  goldmark.Markdown
	gfm    goldmark.Markdown
	render *toolkit.Endpoint
}

// New creates the markdown tool.
func New() *Tool {
	t := &Tool{
		plain: goldmark.New(),
		gfm:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	t.render = toolkit.MustEndpoint(http.MethodPost, renderSchema, t.Render)
	return t
}

// Meta returns the markdown tool metadata.
func (t *Tool) Meta() toolkit.ToolMeta {
	return toolkit.ToolMeta{
		ID:       ID,
		Name:     "Markdown",
		Icon:     "markdown",
		Order:    2,
		Keywords: []string{"markdown", "md", "html", "preview"},
	}
}

// Routes exposes the render endpoint at "markdown".
func (t *Tool) Routes() []toolkit.Route {
	return []toolkit.Route{{Path: "markdown", Name: "tool.markdown", Handler: t.render}}
}

// Setup keeps rc so rendering can read the GFM default from settings.
func (t *Tool) Setup(ctx context.Context, rc *toolkit.Context) error {
	t.rc.Store(rc)
	return nil
}

type renderInput struct {
	Text string `json:"text"`
	GFM  *bool  `json:"gfm"`
}

// Render converts Markdown to HTML. Raw HTML in the input is omitted.
func (t *Tool) Render(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in renderInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
	}

	useGFM := t.gfmDefault(ctx)
	if in.GFM != nil {
		useGFM = *in.GFM
	}
	md := t.plain
	if useGFM {
		md = t.gfm
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(in.Text), &buf); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}
	return json.Marshal(map[string]string{"html": buf.String()})
}

func (t *Tool) gfmDefault(ctx context.Context) bool {
	rc := t.rc.Load()
	if rc == nil {
		return true
	}
	on, ok := toolkit.GetSetting[bool](ctx, rc.Settings(), GFMSetting)
	if !ok {
		return true
	}
	return on
}
