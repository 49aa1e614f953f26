package poller

import (
	"slices"

	"github.com/joseph-ayodele/extract-tracker/internal/entity"
)

// State is the lifecycle state of a poll session.
type State int

const (
	Idle State = iota
	Polling
	Completed
	Failed
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == Completed || s == Failed || s == Errored
}

var transitions = map[State][]State{
	Idle:    {Polling, Errored},
	Polling: {Completed, Failed, Errored},
}

func isValidTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// View is what an observer sees of a session at one instant.
type View struct {
	JobID    string
	State    State
	Snapshot *entity.JobSnapshot // nil until the first successful query
	Err      error               // set in Errored
}
