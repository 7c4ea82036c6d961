package planning

import (
	"errors"
	"fmt"
)

// ErrNoTasksSelected is returned when an approval carries no tasks. It is a
// local validation failure and never reaches the backend.
var ErrNoTasksSelected = errors.New("no tasks selected for approval")

// ErrNotOwner is returned when a user acts on a planning tracked for
// another user.
var ErrNotOwner = errors.New("planning belongs to another user")

// ErrorKind distinguishes failures so the UI can offer the right affordance.
type ErrorKind string

const (
	// KindFetch means the retry budget was exhausted on fetch failures.
	KindFetch ErrorKind = "fetch"

	// KindTimeout means no terminal condition was seen before the ceiling.
	KindTimeout ErrorKind = "timeout"

	// KindRejected means the backend refused the approval.
	KindRejected ErrorKind = "rejected"
)

// PollError is a terminal failure surfaced through the tab state.
type PollError struct {
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *PollError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}

	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("planning generation timed out: %v", e.Err)
	case KindFetch:
		return fmt.Sprintf("planning status unavailable after %d attempts: %v",
			e.Attempts, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// errTimeout is the context cause used when the ceiling elapses.
var errTimeout = errors.New("polling timeout ceiling reached")

// errStopped is the context cause used for an explicit stop.
var errStopped = errors.New("polling stopped")
