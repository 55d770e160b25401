// ABOUTME: GitHub tool: weekly commit activity of a repository for a heatmap view.
// ABOUTME: A 202 from the stats API means the numbers are still being computed and yields a retry hint.

package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aduitools/adui/internal/cache"
	"github.com/aduitools/adui/internal/toolkit"
)

// ID is the tool identifier.
const ID = "github"

// DefaultAPIURL is the GitHub REST API root.
const DefaultAPIURL = "https://api.github.com"

// PendingHint is returned while GitHub is still computing statistics.
const PendingHint = "GitHub is generating statistics for this repository (202 Accepted); refresh in a moment."

const (
	userAgent    = "ADuiTools"
	acceptHeader = "application/vnd.github+json"

	// GitHub recomputes stats lazily, so short reuse saves API quota
	activityCacheTTL  = 5 * time.Minute
	activityCacheSize = 32
)

var errNotSetUp = errors.New("github tool is not set up")

const activitySchema = `{
	"type": "object",
	"properties": {
		"owner": {"type": "string", "pattern": "^[A-Za-z0-9_.-]+$"},
		"repo": {"type": "string", "pattern": "^[A-Za-z0-9_.-]+$"}
	},
	"required": ["owner", "repo"]
}`

// Week is one column of the heatmap. Days run Sunday to Saturday and Week
// is the unix time of the Sunday.
type Week struct {
	Total int64    `json:"total"`
	Week  int64    `json:"week"`
	Days  [7]int64 `json:"days"`
}

// Activity is the commit heatmap of a repository, oldest week first.
type Activity struct {
	Weeks []Week `json:"weeks"`
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Hint  string `json:"hint,omitempty"`
}

// Option configures the tool.
type Option func(*Tool)

// WithAPIURL points the tool at another GitHub API root.
func WithAPIURL(u string) Option {
	return func(t *Tool) {
		t.apiURL = strings.TrimRight(u, "/")
	}
}

// Tool is the github plugin.
type Tool struct {
	rc       atomic.Pointer[toolkit.Context]
	apiURL   string
	activity *cache.Cache[Activity]
	endpoint *toolkit.Endpoint
}

// New creates the github tool.
func New(opts ...Option) *Tool {
	t := &Tool{
		apiURL:   DefaultAPIURL,
		activity: cache.New[Activity](activityCacheTTL, activityCacheSize),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.endpoint = toolkit.MustEndpoint(http.MethodGet, activitySchema, t.CommitActivity)
	return t
}

// Meta returns the github tool metadata.
func (t *Tool) Meta() toolkit.ToolMeta {
	return toolkit.ToolMeta{
		ID:       ID,
		Name:     "GitHub Activity",
		Icon:     "github",
		Order:    3,
		Keywords: []string{"github", "commits", "heatmap", "activity"},
	}
}

// Routes exposes commit activity at "github".
func (t *Tool) Routes() []toolkit.Route {
	return []toolkit.Route{{Path: "github", Name: "tool.github", Handler: t.endpoint}}
}

// Setup keeps rc for outbound requests.
func (t *Tool) Setup(ctx context.Context, rc *toolkit.Context) error {
	t.rc.Store(rc)
	return nil
}

// CommitActivity returns the last year of weekly commit counts for
// owner/repo. Completed results are cached; pending ones are not.
func (t *Tool) CommitActivity(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	rc := t.rc.Load()
	if rc == nil {
		return nil, errNotSetUp
	}

	var in struct {
		Owner string `json:"owner"`
		Repo  string `json:"repo"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", toolkit.ErrInvalidInput, err)
	}
	if !validName(in.Owner) || !validName(in.Repo) {
		return nil, fmt.Errorf("%w: owner and repo must be plain names", toolkit.ErrInvalidInput)
	}

	key := strings.ToLower(in.Owner + "/" + in.Repo)
	if a, ok := t.activity.Get(key); ok {
		return json.Marshal(a)
	}

	resp, err := rc.Net().Request(ctx, toolkit.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/repos/%s/%s/stats/commit_activity", t.apiURL, url.PathEscape(in.Owner), url.PathEscape(in.Repo)),
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     acceptHeader,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("github api: %w", err)
	}

	a := Activity{Weeks: []Week{}, Owner: in.Owner, Repo: in.Repo}
	if resp.Status == http.StatusAccepted {
		a.Hint = PendingHint
		return json.Marshal(a)
	}
	// An empty repository answers 204 with no body.
	if resp.Status != http.StatusNoContent && string(resp.Body) != "null" {
		if err := resp.Decode(&a.Weeks); err != nil {
			return nil, fmt.Errorf("github api: decoding commit activity: %w", err)
		}
	}
	t.activity.Set(key, a)
	return json.Marshal(a)
}

// validName rejects empty names, dot segments and anything with a slash.
func validName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\")
}
