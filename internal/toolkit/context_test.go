// ABOUTME: Tests for the capability context factory and its error containment policy.
// ABOUTME: Reads fail soft, writes fail loud, and per-tool contexts prefix log lines.

package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func TestNewContextRequiresAllDeps(t *testing.T) {
	full := newTestDeps().deps()

	cases := map[string]func(d *Deps){
		"settings":              func(d *Deps) { d.Settings = nil },
		"storage.conversations": func(d *Deps) { d.Storage.Conversations = nil },
		"net":                   func(d *Deps) { d.Net = nil },
		"log":                   func(d *Deps) { d.Log = nil },
	}
	for name, strip := range cases {
		t.Run(name, func(t *testing.T) {
			d := full
			strip(&d)

			rc, err := NewContext(d)
			require.ErrorIs(t, err, ErrMissingDependency)
			assert.Contains(t, err.Error(), name)
			assert.Nil(t, rc)

			rc, err = NewContextForTool("t1", d)
			require.ErrorIs(t, err, ErrMissingDependency)
			assert.Nil(t, rc)
		})
	}
}

func TestSettingsContainment(t *testing.T) {
	ctx := context.Background()

	t.Run("get returns stored value", func(t *testing.T) {
		td := newTestDeps()
		td.settings.values["ui.theme"] = json.RawMessage(`"dark"`)
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		assert.JSONEq(t, `"dark"`, string(rc.Settings().Get(ctx, "ui.theme")))
		assert.Nil(t, rc.Settings().Get(ctx, "missing"))
		assert.Empty(t, td.log.lines)
	})

	t.Run("get failure resolves to nil and logs once with key", func(t *testing.T) {
		td := newTestDeps()
		td.settings.getErr = errBackend
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		assert.Nil(t, rc.Settings().Get(ctx, "ai.openai.apiKey"))

		errs := td.log.byLevel("error")
		require.Len(t, errs, 1)
		assert.Equal(t, "ai.openai.apiKey", errs[0].attr("key"))
		assert.Equal(t, errBackend, errs[0].attr("error"))
	})

	t.Run("set failure propagates the same error and logs once", func(t *testing.T) {
		td := newTestDeps()
		td.settings.setErr = errBackend
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		err = rc.Settings().Set(ctx, "json.indent", 4)
		assert.Same(t, errBackend, err)

		errs := td.log.byLevel("error")
		require.Len(t, errs, 1)
		assert.Equal(t, "json.indent", errs[0].attr("key"))
	})

	t.Run("set encodes value as json", func(t *testing.T) {
		td := newTestDeps()
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		require.NoError(t, rc.Settings().Set(ctx, "json.indent", map[string]int{"spaces": 2}))
		assert.JSONEq(t, `{"spaces":2}`, string(td.settings.values["json.indent"]))
	})

	t.Run("set with unencodable value is a write failure", func(t *testing.T) {
		td := newTestDeps()
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		err = rc.Settings().Set(ctx, "bad", make(chan int))
		require.Error(t, err)
		assert.Len(t, td.log.byLevel("error"), 1)
		assert.NotContains(t, td.settings.values, "bad")
	})
}

func TestGetSetting(t *testing.T) {
	ctx := context.Background()

	type keys struct {
		AppID     string `json:"appId"`
		AppSecret string `json:"appSecret"`
	}

	td := newTestDeps()
	td.settings.values["baidu"] = json.RawMessage(`{"appId":"id","appSecret":"secret"}`)
	td.settings.values["broken"] = json.RawMessage(`[1,2]`)
	td.settings.values["null"] = json.RawMessage(`null`)
	rc, err := NewContext(td.deps())
	require.NoError(t, err)

	got, ok := GetSetting[keys](ctx, rc.Settings(), "baidu")
	require.True(t, ok)
	assert.Equal(t, keys{AppID: "id", AppSecret: "secret"}, got)

	_, ok = GetSetting[keys](ctx, rc.Settings(), "missing")
	assert.False(t, ok)

	_, ok = GetSetting[keys](ctx, rc.Settings(), "null")
	assert.False(t, ok)
	assert.Empty(t, td.log.lines)

	got, ok = GetSetting[keys](ctx, rc.Settings(), "broken")
	assert.False(t, ok)
	assert.Equal(t, keys{}, got)
	assert.Len(t, td.log.byLevel("error"), 1)
}

func TestConversationsContainment(t *testing.T) {
	ctx := context.Background()

	t.Run("list failure resolves to empty sequence", func(t *testing.T) {
		td := newTestDeps()
		td.conversations.listErr = errBackend
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		list := rc.Storage().Conversations().List(ctx)
		assert.NotNil(t, list)
		assert.Empty(t, list)
		assert.Len(t, td.log.byLevel("error"), 1)
	})

	t.Run("create failure propagates", func(t *testing.T) {
		td := newTestDeps()
		td.conversations.createErr = errBackend
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		id, err := rc.Storage().Conversations().Create(ctx, map[string]string{"title": "hello"})
		assert.ErrorIs(t, err, errBackend)
		assert.Empty(t, id)
		assert.Len(t, td.log.byLevel("error"), 1)
	})

	t.Run("create then list round trip", func(t *testing.T) {
		td := newTestDeps()
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		type conv struct {
			Title string `json:"title"`
		}
		convs := rc.Storage().Conversations()
		id, err := convs.Create(ctx, conv{Title: "first"})
		require.NoError(t, err)
		assert.Equal(t, "conv-1", id)

		_, err = convs.Create(ctx, conv{Title: "second"})
		require.NoError(t, err)

		got := ListConversations[conv](ctx, convs)
		assert.Equal(t, []conv{{Title: "first"}, {Title: "second"}}, got)
	})

	t.Run("typed list skips undecodable entries", func(t *testing.T) {
		td := newTestDeps()
		td.conversations.items = []json.RawMessage{
			json.RawMessage(`{"title":"ok"}`),
			json.RawMessage(`"not an object"`),
		}
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		type conv struct {
			Title string `json:"title"`
		}
		got := ListConversations[conv](ctx, rc.Storage().Conversations())
		assert.Equal(t, []conv{{Title: "ok"}}, got)
		assert.Len(t, td.log.byLevel("error"), 1)
	})
}

func TestNetContainment(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns response", func(t *testing.T) {
		td := newTestDeps()
		td.net.resp = &Response{Status: http.StatusOK, Body: json.RawMessage(`{"ok":true}`)}
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		resp, err := rc.Net().Request(ctx, Request{Method: http.MethodGet, URL: "https://example.test"})
		require.NoError(t, err)

		var body struct{ OK bool }
		require.NoError(t, resp.Decode(&body))
		assert.True(t, body.OK)
		assert.Empty(t, td.log.lines)
	})

	t.Run("failure propagates and logs once", func(t *testing.T) {
		td := newTestDeps()
		td.net.err = &HTTPError{Status: http.StatusBadGateway}
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		resp, err := rc.Net().Request(ctx, Request{Method: http.MethodPost, URL: "https://example.test"})
		assert.Nil(t, resp)

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadGateway, httpErr.Status)

		errs := td.log.byLevel("error")
		require.Len(t, errs, 1)
		assert.Equal(t, "https://example.test", errs[0].attr("url"))
	})

	t.Run("failure log omits the query", func(t *testing.T) {
		td := newTestDeps()
		td.net.err = errors.New("dial failed")
		rc, err := NewContext(td.deps())
		require.NoError(t, err)

		_, err = rc.Net().Request(ctx, Request{URL: "https://example.test/token?client_secret=TOPSECRET#x"})
		require.Error(t, err)

		errs := td.log.byLevel("error")
		require.Len(t, errs, 1)
		assert.Equal(t, "https://example.test/token", errs[0].attr("url"))
	})
}

func TestLogPassThrough(t *testing.T) {
	td := newTestDeps()
	rc, err := NewContext(td.deps())
	require.NoError(t, err)

	rc.Log().Info("hello", "n", 1)
	rc.Log().Error("boom", "error", errBackend)

	require.Len(t, td.log.lines, 2)
	assert.Equal(t, logLine{level: "info", msg: "hello", args: []any{"n", 1}}, td.log.lines[0])
	assert.Equal(t, logLine{level: "error", msg: "boom", args: []any{"error", errBackend}}, td.log.lines[1])

	_, isRecorder := rc.Log().(*recordingLogger)
	assert.False(t, isRecorder, "raw logger must not be reachable from the context")
}

func TestNewContextForToolPrefixesLogs(t *testing.T) {
	ctx := context.Background()

	run := func(rc *Context) {
		rc.Log().Info("started")
		_ = rc.Settings().Get(ctx, "k")
		_ = rc.Settings().Set(ctx, "k", 1)
		_ = rc.Storage().Conversations().List(ctx)
		_, _ = rc.Storage().Conversations().Create(ctx, "x")
		_, _ = rc.Net().Request(ctx, Request{URL: "u"})
	}

	failing := func() *testDeps {
		td := newTestDeps()
		td.settings.getErr = errBackend
		td.settings.setErr = errBackend
		td.conversations.listErr = errBackend
		td.conversations.createErr = errBackend
		td.net.err = errBackend
		return td
	}

	plainDeps := failing()
	plain, err := NewContext(plainDeps.deps())
	require.NoError(t, err)
	run(plain)

	toolDeps := failing()
	prefixed, err := NewContextForTool("t1", toolDeps.deps())
	require.NoError(t, err)
	run(prefixed)

	require.Len(t, toolDeps.log.lines, len(plainDeps.log.lines))
	for i, line := range toolDeps.log.lines {
		want := plainDeps.log.lines[i]
		assert.Equal(t, want.level, line.level)
		assert.Equal(t, "[t1] "+want.msg, line.msg)
		assert.Equal(t, want.args, line.args)
	}
}
