package planning

// TabState is the client-facing summary of a planning's refinement progress.
// The set of implementations is closed: Hidden, Waiting, Generating, Ready,
// New and Errored.
type TabState interface {
	// Name is the wire name of the state.
	Name() string

	tabState()
}

// Hidden means there is nothing to show for the refined tab.
type Hidden struct{}

// Waiting means approvable tasks exist and the user has not approved yet.
type Waiting struct{}

// Generating means an approval was submitted and results are pending.
type Generating struct{}

// Ready means refined tasks are available and have been seen.
type Ready struct{}

// New means refined tasks are available but the user has not viewed them.
type New struct{}

// Errored wraps a failure together with the state to restore on dismissal.
type Errored struct {
	Err   *PollError
	Prior TabState
}

func (Hidden) Name() string     { return "hidden" }
func (Waiting) Name() string    { return "waiting" }
func (Generating) Name() string { return "generating" }
func (Ready) Name() string      { return "ready" }
func (New) Name() string        { return "new" }
func (Errored) Name() string    { return "error" }

func (Hidden) tabState()     {}
func (Waiting) tabState()    {}
func (Generating) tabState() {}
func (Ready) tabState()      {}
func (New) tabState()        {}
func (Errored) tabState()    {}

// Action is an input to Reduce.
type Action interface {
	action()
}

// TasksAvailable signals that the planning has tasks awaiting approval.
type TasksAvailable struct{}

// ApprovalSubmitted signals that the user approved a task selection.
type ApprovalSubmitted struct{}

// ProgressObserved signals a poll saw an in-progress status.
type ProgressObserved struct{}

// PayloadObserved signals a poll saw a non-empty result payload.
type PayloadObserved struct{}

// ResultUnseen marks a ready result as not yet viewed.
type ResultUnseen struct{}

// TabViewed signals the user opened the refined tab.
type TabViewed struct{}

// Failed signals a terminal polling or approval failure.
type Failed struct {
	Err *PollError
}

// ErrorDismissed signals the user dismissed the current error.
type ErrorDismissed struct{}

// Reset returns the tab to its initial state.
type Reset struct{}

func (TasksAvailable) action()    {}
func (ApprovalSubmitted) action() {}
func (ProgressObserved) action()  {}
func (PayloadObserved) action()   {}
func (ResultUnseen) action()      {}
func (TabViewed) action()         {}
func (Failed) action()            {}
func (ErrorDismissed) action()    {}
func (Reset) action()             {}

// Reduce computes the next tab state. It is pure: transitions that do not
// apply to the current state return the state unchanged.
func Reduce(s TabState, a Action) TabState {
	if s == nil {
		s = Hidden{}
	}

	switch act := a.(type) {
	case Reset:
		return Hidden{}

	case TasksAvailable:
		if _, ok := s.(Hidden); ok {
			return Waiting{}
		}
		return s

	case ApprovalSubmitted:
		return Generating{}

	case ProgressObserved:
		switch s.(type) {
		case Hidden, Waiting:
			return Generating{}
		}
		return s

	case PayloadObserved:
		// Payload presence is authoritative regardless of what the status
		// enum said before.
		return Ready{}

	case ResultUnseen:
		if _, ok := s.(Ready); ok {
			return New{}
		}
		return s

	case TabViewed:
		if _, ok := s.(New); ok {
			return Ready{}
		}
		return s

	case Failed:
		prior := s
		if e, ok := s.(Errored); ok {
			prior = e.Prior
		}
		return Errored{Err: act.Err, Prior: prior}

	case ErrorDismissed:
		if e, ok := s.(Errored); ok {
			if e.Prior == nil {
				return Hidden{}
			}
			return e.Prior
		}
		return s
	}

	return s
}

// IsTerminal reports whether no further polling is expected in state s.
func IsTerminal(s TabState) bool {
	switch s.(type) {
	case Ready, New, Errored:
		return true
	}
	return false
}
