// ABOUTME: Route aggregation: composes tool route contributions under one mount path.
// ABOUTME: Mount registers the aggregated tree on an http.ServeMux.

package toolkit

import (
	"fmt"
	"net/http"
	"path"
)

// MountPath is the fixed path every tool route is mounted under.
const MountPath = "tools"

// CollectRoutes flattens the routes of plugins, in the given order, as
// children of the mount path. The first child redirects to the first
// contributed route. Paths are not rewritten or namespaced.
func CollectRoutes(plugins []Plugin) Route {
	var children []Route
	for _, p := range plugins {
		children = append(children, p.Routes()...)
	}

	root := Route{Path: MountPath}
	if len(children) == 0 {
		return root
	}

	root.Children = make([]Route, 0, len(children)+1)
	root.Children = append(root.Children, Route{Path: "", Redirect: children[0].Path})
	root.Children = append(root.Children, children...)
	return root
}

// Mount registers every handler and redirect of root on mux. A path that is
// registered twice, or a pattern the mux rejects as conflicting (such as
// "items/{id}" next to "items/{name}"), is reported as ErrRouteCollision
// instead of letting the mux panic.
func Mount(mux *http.ServeMux, root Route) error {
	seen := make(map[string]bool)
	return mount(mux, "/", root, seen)
}

func mount(mux *http.ServeMux, prefix string, rt Route, seen map[string]bool) error {
	full := path.Join(prefix, rt.Path)

	switch {
	case rt.Redirect != "":
		target := path.Join(full, rt.Redirect)
		for _, pattern := range []string{full, full + "/{$}"} {
			if err := register(mux, pattern, http.RedirectHandler(target, http.StatusFound), seen); err != nil {
				return err
			}
		}
	case rt.Handler != nil:
		if err := register(mux, full, rt.Handler, seen); err != nil {
			return err
		}
	}

	for _, child := range rt.Children {
		if err := mount(mux, full, child, seen); err != nil {
			return err
		}
	}
	return nil
}

func register(mux *http.ServeMux, pattern string, h http.Handler, seen map[string]bool) error {
	if seen[pattern] {
		return fmt.Errorf("%w: %q", ErrRouteCollision, pattern)
	}
	seen[pattern] = true
	return handle(mux, pattern, h)
}

// handle calls mux.Handle and turns its registration panic into an error.
func handle(mux *http.ServeMux, pattern string, h http.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRouteCollision, r)
		}
	}()
	mux.Handle(pattern, h)
	return nil
}
