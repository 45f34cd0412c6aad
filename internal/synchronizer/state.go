package synchronizer

import "fmt"

// State is the lifecycle state of a Synchronizer.
type State int

const (
	// Uninitialized is the state before Initialize is called.
	Uninitialized State = iota
	// Initializing means Initialize is fetching and caching the ruleset.
	Initializing
	// Syncing means a Synchronize pass is running.
	Syncing
	// Idle means the last pass completed successfully.
	Idle
	// Failed means the last Initialize step or pass reported an error.
	Failed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Syncing:
		return "syncing"
	case Idle:
		return "idle"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
