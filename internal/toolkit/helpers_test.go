// ABOUTME: Test doubles for the runtime backends: settings, conversations, net and a recording logger.
// ABOUTME: Each double can be told to fail so containment behavior can be asserted.

package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

type logLine struct {
	level string
	msg   string
	args  []any
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *recordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, args: args})
}

func (l *recordingLogger) byLevel(level string) []logLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logLine
	for _, line := range l.lines {
		if line.level == level {
			out = append(out, line)
		}
	}
	return out
}

// attr returns the value logged under key.
func (line logLine) attr(key string) any {
	for i := 0; i+1 < len(line.args); i += 2 {
		if k, ok := line.args[i].(string); ok && k == key {
			return line.args[i+1]
		}
	}
	return nil
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]json.RawMessage
	getErr error
	setErr error
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]json.RawMessage)}
}

func (s *fakeSettings) Get(ctx context.Context, key string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.values[key], nil
}

func (s *fakeSettings) Set(ctx context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

type fakeConversations struct {
	mu        sync.Mutex
	items     []json.RawMessage
	listErr   error
	createErr error
}

func (c *fakeConversations) List(ctx context.Context) ([]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	return append([]json.RawMessage(nil), c.items...), nil
}

func (c *fakeConversations) Create(ctx context.Context, payload json.RawMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return "", c.createErr
	}
	c.items = append(c.items, payload)
	return fmt.Sprintf("conv-%d", len(c.items)), nil
}

type fakeNet struct {
	resp *Response
	err  error
	reqs []Request
}

func (n *fakeNet) Request(ctx context.Context, req Request) (*Response, error) {
	n.reqs = append(n.reqs, req)
	if n.err != nil {
		return nil, n.err
	}
	return n.resp, nil
}

type testDeps struct {
	settings      *fakeSettings
	conversations *fakeConversations
	net           *fakeNet
	log           *recordingLogger
}

func newTestDeps() *testDeps {
	return &testDeps{
		settings:      newFakeSettings(),
		conversations: &fakeConversations{},
		net:           &fakeNet{resp: &Response{Status: http.StatusOK, Body: json.RawMessage(`{}`)}},
		log:           &recordingLogger{},
	}
}

func (d *testDeps) deps() Deps {
	return Deps{
		Settings: d.settings,
		Storage:  StorageService{Conversations: d.conversations},
		Net:      d.net,
		Log:      d.log,
	}
}

// testTool builds a Tool with a single route named after its ID.
func testTool(id string, order int) *Tool {
	return &Tool{
		Info: ToolMeta{ID: id, Name: id, Order: order},
		RoutesFunc: func() []Route {
			return []Route{{
				Path: id,
				Name: "tool." + id,
				Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(id))
				}),
			}}
		},
	}
}

func ids(plugins []Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.Meta().ID
	}
	return out
}
