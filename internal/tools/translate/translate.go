// ABOUTME: Translate tool: Baidu text, picture and document translation through the net capability.
// ABOUTME: Enabled only when Baidu keys are configured; each translation is recorded as a conversation.

package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/aduitools/adui/internal/toolkit"
)

// ID is the tool identifier.
const ID = "translate"

// KeysSetting is the settings key holding the Baidu credentials.
const KeysSetting = "api_keys.translation.baidu"

// Provider is recorded on conversations created by this tool.
const Provider = "baidu"

// Baidu endpoints
const (
	DefaultOAuthURL     = "https://aip.baidubce.com/oauth/2.0/token"
	DefaultTextTransURL = "https://aip.baidubce.com/rpc/2.0/mt/texttrans/v1"
	DefaultPicTransURL  = "https://aip.baidubce.com/file/2.0/mt/pictrans/v1"
	DefaultDocCreateURL = "https://aip.baidubce.com/rpc/2.0/mt/v2/doc-translation/create"
	DefaultDocQueryURL  = "https://aip.baidubce.com/rpc/2.0/mt/v2/doc-translation/query"
)

const (
	// defaultTokenTTL applies when the OAuth response has no expires_in
	defaultTokenTTL = 30 * 24 * time.Hour

	// refreshWindow renews the token this long before it expires
	refreshWindow = 24 * time.Hour

	titleLimit = 40
)

var (
	// ErrMissingKeys is returned when the Baidu credentials are not configured
	ErrMissingKeys = errors.New("baidu apiKey/appSecret are not configured")

	// ErrProvider is returned when Baidu answers with an error payload
	ErrProvider = errors.New("baidu translation failed")

	errNotSetUp = errors.New("translate tool is not set up")
)

const translateSchema = `{
	"type": "object",
	"properties": {
		"q": {"type": "string", "minLength": 1},
		"from": {"type": "string"},
		"to": {"type": "string", "minLength": 1},
		"term_ids": {"type": "string"}
	},
	"required": ["q", "to"]
}`

// Keys are the Baidu console credentials.
type Keys struct {
	AppID     string `json:"appId"`
	APIKey    string `json:"apiKey"`
	AppSecret string `json:"appSecret"`
}

// Option configures the tool.
type Option func(*Tool)

// WithEndpoints overrides the Baidu OAuth and text translation URLs.
func WithEndpoints(oauthURL, textTransURL string) Option {
	return func(t *Tool) {
		t.oauthURL = oauthURL
		t.textURL = textTransURL
	}
}

// WithDocumentEndpoints overrides the Baidu picture translation and document
// translation create and query URLs.
func WithDocumentEndpoints(picTransURL, docCreateURL, docQueryURL string) Option {
	return func(t *Tool) {
		t.picURL = picTransURL
		t.docCreateURL = docCreateURL
		t.docQueryURL = docQueryURL
	}
}

// WithClock sets the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(t *Tool) {
		t.now = now
	}
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// Tool is the translate plugin.
type Tool struct {
	rc           atomic.Pointer[toolkit.Context]
	oauthURL     string
	textURL      string
	picURL       string
	docCreateURL string
	docQueryURL  string
	now          func() time.Time

	mu    sync.Mutex
	token cachedToken

	translate *toolkit.Endpoint
	history   *toolkit.Endpoint
	picture   *toolkit.Endpoint
	docCreate *toolkit.Endpoint
	docQuery  *toolkit.Endpoint
}

// New creates the translate tool.
func New(opts ...Option) *Tool {
	t := &Tool{
		oauthURL:     DefaultOAuthURL,
		textURL:      DefaultTextTransURL,
		picURL:       DefaultPicTransURL,
		docCreateURL: DefaultDocCreateURL,
		docQueryURL:  DefaultDocQueryURL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.translate = toolkit.MustEndpoint(http.MethodPost, translateSchema, t.Translate)
	t.history = toolkit.MustEndpoint(http.MethodGet, "", t.History)
	t.picture = toolkit.MustEndpoint(http.MethodPost, pictureSchema, t.TranslatePicture,
		toolkit.WithMaxInputSize(maxPictureInput))
	t.docCreate = toolkit.MustEndpoint(http.MethodPost, docCreateSchema, t.CreateDocument,
		toolkit.WithMaxInputSize(maxDocumentInput))
	t.docQuery = toolkit.MustEndpoint(http.MethodPost, docQuerySchema, t.QueryDocument)
	return t
}

// Meta returns the tool metadata.
func (t *Tool) Meta() toolkit.ToolMeta {
	return toolkit.ToolMeta{
		ID:       ID,
		Name:     "Translate",
		Icon:     "translate",
		Order:    1,
		Keywords: []string{"translate", "baidu", "language"},
	}
}

// Routes returns translate with its history, picture and doc children.
func (t *Tool) Routes() []toolkit.Route {
	return []toolkit.Route{{
		Path:    "translate",
		Name:    "tool.translate",
		Handler: t.translate,
		Children: []toolkit.Route{
			{Path: "history", Name: "tool.translate-history", Handler: t.history},
			{Path: "picture", Name: "tool.translate-picture", Handler: t.picture},
			{
				Path:    "doc",
				Name:    "tool.translate-doc",
				Handler: t.docCreate,
				Children: []toolkit.Route{
					{Path: "query", Name: "tool.translate-doc-query", Handler: t.docQuery},
				},
			},
		},
	}}
}

// Enabled reports whether Baidu credentials are configured.
func (t *Tool) Enabled(ctx context.Context, rc *toolkit.Context) (bool, error) {
	keys, ok := toolkit.GetSetting[Keys](ctx, rc.Settings(), KeysSetting)
	return ok && keys.APIKey != "" && keys.AppSecret != "", nil
}

// Setup keeps the tool context and reports the stored history size.
func (t *Tool) Setup(ctx context.Context, rc *toolkit.Context) error {
	t.rc.Store(rc)
	rc.Log().Info("translation history loaded", "conversations", len(t.historyOf(ctx, rc)))
	return nil
}

type translateInput struct {
	Q       string `json:"q"`
	From    string `json:"from"`
	To      string `json:"to"`
	TermIDs string `json:"term_ids,omitempty"`
}

type translateOutput struct {
	From           string          `json:"from"`
	To             string          `json:"to"`
	Dst            string          `json:"dst"`
	Raw            json.RawMessage `json:"raw"`
	ConversationID string          `json:"conversation_id,omitempty"`
}

// Translate translates q and records the exchange as a conversation.
func (t *Tool) Translate(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	rc := t.rc.Load()
	if rc == nil {
		return nil, errNotSetUp
	}

	var in translateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
	}
	if in.From == "" {
		in.From = "auto"
	}

	body := map[string]string{"q": in.Q, "from": in.From, "to": in.To}
	if in.TermIDs != "" {
		body["termIds"] = in.TermIDs
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	respBody, err := t.call(ctx, rc, toolkit.Request{URL: t.textURL, Body: payload})
	if err != nil {
		return nil, err
	}
	raw := gjson.ParseBytes(respBody)

	var lines []string
	for _, dst := range raw.Get("result.trans_result.#.dst").Array() {
		lines = append(lines, dst.String())
	}
	out := translateOutput{
		From: raw.Get("result.from").String(),
		To:   raw.Get("result.to").String(),
		Dst:  strings.Join(lines, "\n"),
		Raw:  respBody,
	}

	// Recording history is best effort; the context already logged a failure
	id, err := rc.Storage().Conversations().Create(ctx, map[string]string{
		"title":    "Translate: " + truncate(in.Q, titleLimit),
		"provider": Provider,
		"model":    "texttrans",
	})
	if err == nil {
		out.ConversationID = id
	}

	return json.Marshal(out)
}

// History lists conversations recorded by this tool, newest first.
func (t *Tool) History(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	rc := t.rc.Load()
	if rc == nil {
		return nil, errNotSetUp
	}
	return json.Marshal(map[string]any{"conversations": t.historyOf(ctx, rc)})
}

func (t *Tool) historyOf(ctx context.Context, rc *toolkit.Context) []json.RawMessage {
	out := []json.RawMessage{}
	for _, c := range rc.Storage().Conversations().List(ctx) {
		if gjson.GetBytes(c, "provider").String() == Provider {
			out = append(out, c)
		}
	}
	return out
}

// call sends an authenticated POST to a Baidu endpoint and returns the body
// once it is known not to carry an error_code. JSON bodies get Baidu's
// charset content type; forms keep their multipart one.
func (t *Tool) call(ctx context.Context, rc *toolkit.Context, req toolkit.Request) (json.RawMessage, error) {
	token, err := t.accessToken(ctx, rc)
	if err != nil {
		return nil, err
	}

	req.Method = http.MethodPost
	req.Query = map[string]string{"access_token": token}
	if req.Form == nil {
		req.Headers = map[string]string{"Content-Type": "application/json;charset=utf-8"}
	}
	resp, err := rc.Net().Request(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := providerError(gjson.ParseBytes(resp.Body)); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// accessToken returns a cached OAuth token or fetches a new one.
func (t *Tool) accessToken(ctx context.Context, rc *toolkit.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.token.value != "" && now.Before(t.token.expiresAt.Add(-refreshWindow)) {
		return t.token.value, nil
	}

	keys, ok := toolkit.GetSetting[Keys](ctx, rc.Settings(), KeysSetting)
	if !ok || keys.APIKey == "" || keys.AppSecret == "" {
		return "", ErrMissingKeys
	}

	resp, err := rc.Net().Request(ctx, toolkit.Request{
		Method: http.MethodGet,
		URL:    t.oauthURL,
		Query: map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     keys.APIKey,
			"client_secret": keys.AppSecret,
		},
	})
	if err != nil {
		return "", err
	}

	body := gjson.ParseBytes(resp.Body)
	token := body.Get("access_token").String()
	if token == "" {
		return "", fmt.Errorf("%w: oauth: %s", ErrProvider, string(resp.Body))
	}
	ttl := defaultTokenTTL
	if secs := body.Get("expires_in").Int(); secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	t.token = cachedToken{value: token, expiresAt: now.Add(ttl)}
	return token, nil
}

// providerError reports a non-zero Baidu error_code.
func providerError(raw gjson.Result) error {
	if code := raw.Get("error_code"); code.Exists() && code.Int() != 0 {
		return fmt.Errorf("%w: error_code %d: %s", ErrProvider, code.Int(), raw.Get("error_msg").String())
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}
