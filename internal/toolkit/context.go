// ABOUTME: Capability context factory: wraps raw backends into the surface handed to each tool.
// ABOUTME: Reads degrade to empty values, writes log and propagate, logging passes through.

package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingDependency indicates a Deps value without one of its backends.
var ErrMissingDependency = errors.New("missing runtime dependency")

// Context is the only channel through which a tool reaches backend state.
// It is immutable after construction and safe to share between goroutines.
type Context struct {
	settings *Settings
	storage  *Storage
	net      *Net
	log      Logger
}

// NewContext builds a Context from deps. Every backend must be present.
func NewContext(deps Deps) (*Context, error) {
	if err := checkDeps(deps); err != nil {
		return nil, err
	}

	log := passthroughLogger{next: deps.Log}
	return &Context{
		settings: &Settings{svc: deps.Settings, log: log},
		storage: &Storage{
			conversations: &Conversations{repo: deps.Storage.Conversations, log: log},
		},
		net: &Net{svc: deps.Net, log: log},
		log: log,
	}, nil
}

// NewContextForTool is NewContext with every log message prefixed by
// "[toolID] ". Error handling is identical.
func NewContextForTool(toolID string, deps Deps) (*Context, error) {
	if deps.Log != nil {
		deps.Log = prefixedLogger{prefix: "[" + toolID + "] ", next: deps.Log}
	}
	return NewContext(deps)
}

func checkDeps(deps Deps) error {
	var missing []string
	if deps.Settings == nil {
		missing = append(missing, "settings")
	}
	if deps.Storage.Conversations == nil {
		missing = append(missing, "storage.conversations")
	}
	if deps.Net == nil {
		missing = append(missing, "net")
	}
	if deps.Log == nil {
		missing = append(missing, "log")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}

// Settings returns the settings capability.
func (c *Context) Settings() *Settings { return c.settings }

// Storage returns the storage capability.
func (c *Context) Storage() *Storage { return c.storage }

// Net returns the network capability.
func (c *Context) Net() *Net { return c.net }

// Log returns the logging capability.
func (c *Context) Log() Logger { return c.log }

// Settings is the key/value settings capability.
type Settings struct {
	svc SettingsService
	log Logger
}

// Get returns the JSON value stored under key, or nil when the key is unset
// or the backend failed. Failures are logged, never returned.
func (s *Settings) Get(ctx context.Context, key string) json.RawMessage {
	value, err := s.svc.Get(ctx, key)
	if err != nil {
		s.log.Error("[settings.get] read failed", "key", key, "error", err)
		return nil
	}
	return value
}

// Set stores value (encoded as JSON) under key. Failures are logged and returned.
func (s *Settings) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		err = fmt.Errorf("encoding setting %q: %w", key, err)
		s.log.Error("[settings.set] write failed", "key", key, "error", err)
		return err
	}
	if err := s.svc.Set(ctx, key, data); err != nil {
		s.log.Error("[settings.set] write failed", "key", key, "error", err)
		return err
	}
	return nil
}

// GetSetting decodes the setting stored under key into T.
// The boolean is false when the key is unset, unreadable or not decodable into T.
func GetSetting[T any](ctx context.Context, s *Settings, key string) (T, bool) {
	var out T
	raw := s.Get(ctx, key)
	if raw == nil || string(raw) == "null" {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.Error("[settings.get] decode failed", "key", key, "error", err)
		var zero T
		return zero, false
	}
	return out, true
}

// Storage groups the repositories available to tools.
type Storage struct {
	conversations *Conversations
}

// Conversations returns the conversations repository.
func (s *Storage) Conversations() *Conversations { return s.conversations }

// Conversations is the conversation storage capability.
type Conversations struct {
	repo ConversationsRepository
	log  Logger
}

// List returns every conversation. On failure it logs and returns an empty,
// non-nil slice so callers can render an empty state.
func (c *Conversations) List(ctx context.Context) []json.RawMessage {
	items, err := c.repo.List(ctx)
	if err != nil {
		c.log.Error("[storage.conversations.list] read failed", "error", err)
		return []json.RawMessage{}
	}
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}

// Create stores a new conversation built from payload and returns its ID.
// Failures are logged and returned.
func (c *Conversations) Create(ctx context.Context, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		err = fmt.Errorf("encoding conversation: %w", err)
		c.log.Error("[storage.conversations.create] create failed", "error", err)
		return "", err
	}
	id, err := c.repo.Create(ctx, data)
	if err != nil {
		c.log.Error("[storage.conversations.create] create failed", "error", err)
		return "", err
	}
	return id, nil
}

// ListConversations decodes every conversation into T. Entries that cannot be
// decoded are logged and skipped.
func ListConversations[T any](ctx context.Context, c *Conversations) []T {
	items := c.List(ctx)
	out := make([]T, 0, len(items))
	for _, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			c.log.Error("[storage.conversations.list] decode failed", "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// Net is the outbound network capability.
type Net struct {
	svc NetService
	log Logger
}

// Request performs req. Failures, including non-success statuses reported by
// the backend, are logged and returned.
func (n *Net) Request(ctx context.Context, req Request) (*Response, error) {
	resp, err := n.svc.Request(ctx, req)
	if err != nil {
		n.log.Error("[net.request] request failed", "method", req.Method, "url", stripQuery(req.URL), "error", err)
		return nil, err
	}
	return resp, nil
}

// stripQuery drops the query and fragment of a URL before it is logged.
func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// passthroughLogger hides the concrete logger from tools.
type passthroughLogger struct {
	next Logger
}

func (l passthroughLogger) Info(msg string, args ...any)  { l.next.Info(msg, args...) }
func (l passthroughLogger) Error(msg string, args ...any) { l.next.Error(msg, args...) }

// prefixedLogger decorates every message with a fixed prefix.
type prefixedLogger struct {
	prefix string
	next   Logger
}

func (l prefixedLogger) Info(msg string, args ...any)  { l.next.Info(l.prefix+msg, args...) }
func (l prefixedLogger) Error(msg string, args ...any) { l.next.Error(l.prefix+msg, args...) }
