// ABOUTME: Lifecycle states a tool moves through while the host activates it.
// ABOUTME: Registered -> Evaluated -> Initialized -> Active, or Disabled.

package toolkit

// State represents the lifecycle state of a registered tool.
type State int

// Tool states.
const (
	// StateRegistered - tool is in the registry; no context built yet.
	StateRegistered State = iota

	// StateEvaluated - a context was built and the enabled check passed.
	StateEvaluated

	// StateInitialized - setup is running or has completed.
	StateInitialized

	// StateActive - routes are exposed and the context may be used freely.
	StateActive

	// StateDisabled - the tool was switched off or failed to initialize.
	StateDisabled
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateEvaluated:
		return "evaluated"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether activation has finished for the tool.
func (s State) IsTerminal() bool {
	return s == StateActive || s == StateDisabled
}
