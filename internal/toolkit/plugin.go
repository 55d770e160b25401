// ABOUTME: Plugin contract for tools: metadata, route contribution and optional lifecycle hooks.
// ABOUTME: Tool is a value type that satisfies the contract through function fields.

package toolkit

import (
	"context"
	"net/http"
)

// ToolMeta is the identity and presentation record of a tool.
type ToolMeta struct {
	// ID is globally unique and stable across releases. Other subsystems use
	// it as a namespace key (settings keys, log prefixes), so it must not change
	// once released. Prefer kebab-case, e.g. "ai-chat".
	ID string

	// Name is the display name.
	Name string

	// Icon is an optional icon key resolved by the shell.
	Icon string

	// Order is the sort weight in listings; lower sorts first.
	// The zero value means "unset" and sorts as 0.
	Order int

	// Keywords are used for search only.
	Keywords []string
}

// Route is one node of the route tree a tool contributes.
// Paths are relative to the mount path and are never rewritten by the aggregator.
type Route struct {
	Path     string
	Name     string
	Handler  http.Handler
	Redirect string
	Children []Route
}

// Plugin is the contract every tool implements.
// Routes must be pure: it returns this tool's routes only and has no side effects.
type Plugin interface {
	Meta() ToolMeta
	Routes() []Route
}

// Enabler is implemented by plugins that can be switched off at activation,
// e.g. when an API key has not been configured. A plugin that does not
// implement it is always enabled.
type Enabler interface {
	Enabled(ctx context.Context, rc *Context) (bool, error)
}

// Initializer is implemented by plugins that need a one-time setup before
// their routes are exposed.
type Initializer interface {
	Setup(ctx context.Context, rc *Context) error
}

// Tool is a Plugin assembled from plain values. Nil hook fields mean the
// hook is absent: EnabledFunc nil is "always enabled", SetupFunc nil goes
// straight to active.
type Tool struct {
	Info        ToolMeta
	RoutesFunc  func() []Route
	EnabledFunc func(ctx context.Context, rc *Context) (bool, error)
	SetupFunc   func(ctx context.Context, rc *Context) error
}

// Meta returns the tool metadata.
func (t *Tool) Meta() ToolMeta { return t.Info }

// Routes returns the tool's route contribution.
func (t *Tool) Routes() []Route {
	if t.RoutesFunc == nil {
		return nil
	}
	return t.RoutesFunc()
}

// Enabled reports whether the tool should be activated.
func (t *Tool) Enabled(ctx context.Context, rc *Context) (bool, error) {
	if t.EnabledFunc == nil {
		return true, nil
	}
	return t.EnabledFunc(ctx, rc)
}

// Setup runs the tool's initialization hook, if any.
func (t *Tool) Setup(ctx context.Context, rc *Context) error {
	if t.SetupFunc == nil {
		return nil
	}
	return t.SetupFunc(ctx, rc)
}
