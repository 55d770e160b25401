// ABOUTME: Host drives registered tools through their lifecycle using per-tool contexts.
// ABOUTME: Hook failures and panics disable the tool instead of failing the host.

package toolkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrHookPanic wraps a panic recovered from an enabled or setup hook.
var ErrHookPanic = errors.New("tool hook panicked")

// PluginStatus is a point-in-time view of a tool's lifecycle.
type PluginStatus struct {
	Meta  ToolMeta
	State State
	Err   error
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithConcurrentActivation lets Activate run up to limit tools' hooks at the
// same time. Without it tools are activated one after another in list order.
func WithConcurrentActivation(limit int) HostOption {
	return func(h *Host) {
		h.concurrency = limit
	}
}

// WithLogger sets the host's own logger. Tool-facing log lines always go
// through the per-tool context instead.
func WithLogger(logger *slog.Logger) HostOption {
	return func(h *Host) {
		h.logger = logger
	}
}

type toolState struct {
	state State
	err   error
	rc    *Context
}

// Host activates the tools of a Registry against a set of backends.
type Host struct {
	registry    *Registry
	deps        Deps
	logger      *slog.Logger
	concurrency int

	mu     sync.Mutex
	states map[int]*toolState // keyed by registration index
}

// NewHost creates a Host. It fails when deps is incomplete so the problem
// surfaces at startup rather than on first activation.
func NewHost(registry *Registry, deps Deps, opts ...HostOption) (*Host, error) {
	if err := checkDeps(deps); err != nil {
		return nil, err
	}
	h := &Host{
		registry:    registry,
		deps:        deps,
		logger:      slog.Default(),
		concurrency: 1,
		states:      make(map[int]*toolState),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "host")
	return h, nil
}

// Activate runs every tool that has not been activated yet through its
// enabled and setup hooks. Setup runs at most once per tool for the lifetime
// of the Host. It returns only the context's error if ctx is canceled; a tool
// whose hook fails because of that cancellation goes back to Registered and
// is retried by the next Activate call.
func (h *Host) Activate(ctx context.Context) error {
	var pending []entry
	h.mu.Lock()
	for _, e := range h.registry.sortedEntries() {
		if _, seen := h.states[e.seq]; seen {
			continue
		}
		h.states[e.seq] = &toolState{state: StateRegistered}
		pending = append(pending, e)
	}
	h.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	if h.concurrency <= 1 {
		for i, e := range pending {
			if err := ctx.Err(); err != nil {
				h.release(pending[i:])
				return err
			}
			if err := h.activate(ctx, e); err != nil {
				h.release(pending[i+1:])
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for _, e := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				h.release([]entry{e})
				return err
			}
			return h.activate(gctx, e)
		})
	}
	return g.Wait()
}

// activate drives a single tool to Active or Disabled. When a hook fails
// after ctx was canceled the tool is released instead and ctx's error is
// returned.
func (h *Host) activate(ctx context.Context, e entry) error {
	meta := e.plugin.Meta()

	rc, err := NewContextForTool(meta.ID, h.deps)
	if err != nil {
		// deps were checked in NewHost; this only fires if they were mutated.
		h.finish(e.seq, StateDisabled, err)
		h.logger.Error("building tool context", "tool_id", meta.ID, "error", err)
		return nil
	}
	h.setState(e.seq, StateRegistered, rc)

	enabled := true
	if en, ok := e.plugin.(Enabler); ok {
		err := callHook(func() error {
			var hookErr error
			enabled, hookErr = en.Enabled(ctx, rc)
			return hookErr
		})
		if err != nil {
			if cerr := h.interrupted(ctx, e, "enabled"); cerr != nil {
				return cerr
			}
			rc.Log().Error("[lifecycle.enabled] enabled check failed", "error", err)
			h.finish(e.seq, StateDisabled, err)
			return nil
		}
	}
	if !enabled {
		h.logger.Info("tool disabled", "tool_id", meta.ID)
		h.finish(e.seq, StateDisabled, nil)
		return nil
	}
	h.setState(e.seq, StateEvaluated, rc)

	if init, ok := e.plugin.(Initializer); ok {
		h.setState(e.seq, StateInitialized, rc)
		if err := callHook(func() error { return init.Setup(ctx, rc) }); err != nil {
			if cerr := h.interrupted(ctx, e, "setup"); cerr != nil {
				return cerr
			}
			rc.Log().Error("[lifecycle.setup] setup failed", "error", err)
			h.finish(e.seq, StateDisabled, err)
			return nil
		}
	}

	h.finish(e.seq, StateActive, nil)
	h.logger.Info("tool active", "tool_id", meta.ID)
	return nil
}

// interrupted releases e and returns ctx's error if ctx is done. A hook that
// fails only because activation was canceled says nothing about the tool.
func (h *Host) interrupted(ctx context.Context, e entry, hook string) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	h.release([]entry{e})
	h.logger.Info("tool activation interrupted", "tool_id", e.plugin.Meta().ID, "hook", hook, "error", err)
	return err
}

// release forgets entries that were claimed but never started so a later
// Activate call picks them up again.
func (h *Host) release(entries []entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range entries {
		delete(h.states, e.seq)
	}
}

func (h *Host) setState(seq int, state State, rc *Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ts := h.states[seq]
	ts.state = state
	ts.rc = rc
}

func (h *Host) finish(seq int, state State, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ts := h.states[seq]
	ts.state = state
	ts.err = err
}

// callHook runs fn and converts a panic into an error.
func callHook(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanic, r)
		}
	}()
	return fn()
}

// States returns the status of every registered tool in list order.
// Tools registered after the last Activate call report StateRegistered.
func (h *Host) States() []PluginStatus {
	entries := h.registry.sortedEntries()

	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]PluginStatus, 0, len(entries))
	for _, e := range entries {
		st := PluginStatus{Meta: e.plugin.Meta(), State: StateRegistered}
		if ts, ok := h.states[e.seq]; ok {
			st.State = ts.state
			st.Err = ts.err
		}
		out = append(out, st)
	}
	return out
}

// Active returns the active tools in list order.
func (h *Host) Active() []Plugin {
	entries := h.registry.sortedEntries()

	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Plugin
	for _, e := range entries {
		if ts, ok := h.states[e.seq]; ok && ts.state == StateActive {
			out = append(out, e.plugin)
		}
	}
	return out
}

// Context returns the context built for the active tool with the given ID.
func (h *Host) Context(toolID string) (*Context, bool) {
	entries := h.registry.sortedEntries()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range entries {
		ts, ok := h.states[e.seq]
		if ok && ts.state == StateActive && e.plugin.Meta().ID == toolID {
			return ts.rc, true
		}
	}
	return nil, false
}

// Routes aggregates the routes of active tools under the mount path.
func (h *Host) Routes() Route {
	return CollectRoutes(h.Active())
}
