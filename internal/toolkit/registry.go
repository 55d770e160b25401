// ABOUTME: Append-only, thread-safe registry of tool plugins with deterministic ordering.
// ABOUTME: Also provides startup validation for duplicate IDs and colliding route paths.

package toolkit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"sync"
)

// ErrDuplicateID indicates two registered plugins share the same meta ID.
var ErrDuplicateID = errors.New("duplicate tool id")

// ErrRouteCollision indicates two routes resolve to the same path under the mount point.
var ErrRouteCollision = errors.New("route path collision")

// entry is a registered plugin together with its registration index.
type entry struct {
	seq    int
	plugin Plugin
}

// Registry holds the registered plugins for the lifetime of the process.
// Plugins are never removed or replaced.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	logger  *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger.With("component", "registry"),
	}
}

// Register appends a plugin. It never fails and is not idempotent:
// registering the same plugin twice yields two entries.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry{seq: len(r.entries), plugin: p})

	meta := p.Meta()
	r.logger.Debug("tool registered",
		"tool_id", meta.ID,
		"order", meta.Order,
		"total_tools", len(r.entries),
	)
}

// List returns the registered plugins sorted by Order ascending, ties broken
// by registration order. The returned slice is a fresh copy.
func (r *Registry) List() []Plugin {
	sorted := r.sortedEntries()
	plugins := make([]Plugin, len(sorted))
	for i, e := range sorted {
		plugins[i] = e.plugin
	}
	return plugins
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// sortedEntries snapshots the entries under the read lock and sorts the copy.
func (r *Registry) sortedEntries() []entry {
	r.mu.RLock()
	snapshot := make([]entry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.RUnlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].plugin.Meta().Order < snapshot[j].plugin.Meta().Order
	})
	return snapshot
}

// Validate checks the integration obligations registration does not enforce:
// unique tool IDs and non-colliding route paths. All violations are joined
// into a single error.
func (r *Registry) Validate() error {
	var errs []error

	seenIDs := make(map[string]int)
	owners := make(map[string]string)
	// scratch catches patterns that differ textually but overlap on the mux
	scratch := http.NewServeMux()

	for _, p := range r.List() {
		meta := p.Meta()
		seenIDs[meta.ID]++
		if seenIDs[meta.ID] == 2 {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateID, meta.ID))
		}

		for _, full := range flattenPaths("", p.Routes()) {
			if owner, exists := owners[full]; exists {
				errs = append(errs, fmt.Errorf("%w: %q contributed by %q and %q",
					ErrRouteCollision, full, owner, meta.ID))
				continue
			}
			owners[full] = meta.ID
			if err := handle(scratch, path.Join("/", MountPath, full), http.NotFoundHandler()); err != nil {
				errs = append(errs, fmt.Errorf("tool %q: %w", meta.ID, err))
			}
		}
	}

	return errors.Join(errs...)
}

// flattenPaths returns the joined path of every route in the tree.
func flattenPaths(prefix string, routes []Route) []string {
	var out []string
	for _, rt := range routes {
		full := path.Join(prefix, rt.Path)
		out = append(out, full)
		out = append(out, flattenPaths(full, rt.Children)...)
	}
	return out
}
