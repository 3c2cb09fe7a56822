package dashboard

import (
	"errors"
)

// State is the controller's lifecycle state.
type State int

// Controller states.
//
//	Uninitialized -> Loading -> Ready | LoadFailed
//	Ready -> Refreshing -> Ready | RefreshFailed
//	LoadFailed -> Loading, RefreshFailed -> Refreshing (via refresh)
const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateLoadFailed
	StateRefreshing
	StateRefreshFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateLoadFailed:
		return "load_failed"
	case StateRefreshing:
		return "refreshing"
	case StateRefreshFailed:
		return "refresh_failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// InProgress reports whether a cycle is running in this state.
func (s State) InProgress() bool {
	return s == StateLoading || s == StateRefreshing
}

// HasSnapshot reports whether a built snapshot is on display in this state.
func (s State) HasSnapshot() bool {
	return s == StateReady || s == StateRefreshing || s == StateRefreshFailed
}

// ErrCycleInProgress is returned when a load or refresh is requested while
// another one is still running. The request is dropped, not queued.
var ErrCycleInProgress = errors.New("dashboard cycle already in progress")
