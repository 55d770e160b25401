// Package toolkit is the in-process plugin runtime for tools.
//
// # Overview
//
// Tools are independently authored features. Instead of importing the
// database, HTTP client or settings store directly, a tool receives a
// *Context that exposes a narrow set of capabilities:
//
//	rc.Settings().Get / Set
//	rc.Storage().Conversations().List / Create
//	rc.Net().Request
//	rc.Log().Info / Error
//
// # Components
//
//   - Plugin: the contract (Meta, Routes, optional Enabler and Initializer)
//   - Registry: append-only collection with deterministic ordering
//   - NewContext / NewContextForTool: the capability context factory
//   - Host: drives the enabled/setup lifecycle for registered tools
//   - CollectRoutes / Mount: aggregate tool routes under /tools
//   - Endpoint: a JSON operation with a JSON Schema for its input, served
//     over HTTP and callable directly from Go
//
// # Ordering
//
// Registry.List sorts by ToolMeta.Order ascending (zero when unset) and
// breaks ties by registration order. It never sorts by ID or name.
//
// # Error Containment
//
// The context applies one policy to every capability:
//
//	read   (settings get, conversations list)   log, return nil / empty
//	write  (settings set, conversations create,  log, return the error
//	        net request)
//	log    (info, error)                        pass through
//
// A failed read lets a view render its empty state; a failed write reaches
// the caller so it can tell the user the change did not happen.
//
// # Lifecycle
//
//	Registered -> Evaluated -> Initialized -> Active
//	                   \             \
//	                    +-> Disabled  +-> Disabled
//
// An enabled check that returns false, returns an error or panics disables
// the tool. A setup hook that fails or panics disables the tool. Only
// active tools contribute routes through Host.Routes.
//
// # Validation
//
// Registration never fails. Duplicate IDs and colliding route paths are
// integration bugs; hosts call Registry.Validate at startup and refuse to
// start when it returns an error.
//
// # Usage
//
//	reg := toolkit.NewRegistry(logger)
//	reg.Register(jsontool.New())
//	if err := reg.Validate(); err != nil {
//		return err
//	}
//	host, err := toolkit.NewHost(reg, deps)
//	if err != nil {
//		return err
//	}
//	if err := host.Activate(ctx); err != nil {
//		return err
//	}
//	err = toolkit.Mount(mux, host.Routes())
package toolkit
