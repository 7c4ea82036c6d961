package planning

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stratplan/companion/internal/model"
)

// View is the derived state of one planning.
type View struct {
	PlanningID string
	Owner      string
	State      TabState
	Tasks      []model.Task
	Polling    bool
	UpdatedAt  time.Time
}

// Response converts the view to its wire representation.
func (v View) Response() model.PlanningViewResponse {
	resp := model.PlanningViewResponse{
		PlanningID: v.PlanningID,
		TabState:   v.State.Name(),
		Tasks:      v.Tasks,
		Polling:    v.Polling,
		UpdatedAt:  v.UpdatedAt,
	}
	if e, ok := v.State.(Errored); ok && e.Err != nil {
		resp.Error = &model.PlanningError{
			Kind:    string(e.Err.Kind),
			Message: e.Err.Error(),
		}
	}
	return resp
}

// Listener is notified after every view change.
type Listener func(v View)

// entry is the tracker's mutable record for one planning.
type entry struct {
	owner   string
	state   TabState
	tasks   []model.Task
	viewing bool
	updated time.Time
}

// Tracker owns the tab state of every tracked planning. It receives poll
// outcomes as the poller's Sink and folds them through Reduce.
type Tracker struct {
	log *slog.Logger

	mu       sync.Mutex
	entries  map[string]*entry
	poller   *Poller
	listener Listener
}

// NewTracker creates an empty tracker. Attach a poller with SetPoller before
// calling Start.
func NewTracker(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		log:     log,
		entries: make(map[string]*entry),
	}
}

// SetPoller attaches the poller that feeds this tracker.
func (t *Tracker) SetPoller(p *Poller) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.poller = p
}

// SetListener installs the change listener.
func (t *Tracker) SetListener(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.listener = l
}

// Track registers a planning. When the planning has approvable tasks the tab
// moves from hidden to waiting.
func (t *Tracker) Track(planningID string, hasApprovableTasks bool) View {
	t.ensure(planningID)
	if hasApprovableTasks {
		return t.dispatch(planningID, TasksAvailable{})
	}
	return t.View(planningID)
}

// Claim records userID as the owner of a planning, registering it when
// untracked. It fails with ErrNotOwner when another user owns it.
func (t *Tracker) Claim(planningID, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[planningID]
	if !ok {
		t.entries[planningID] = newEntry(userID)
		return nil
	}
	if e.owner == "" {
		e.owner = userID
		return nil
	}
	if e.owner != userID {
		return ErrNotOwner
	}
	return nil
}

// Authorize reports whether userID may act on a planning. Untracked
// plannings hold no state and are allowed.
func (t *Tracker) Authorize(planningID, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[planningID]
	if !ok || e.owner == "" || e.owner == userID {
		return nil
	}
	return ErrNotOwner
}

// Start flips the tab to generating and starts polling. It is idempotent:
// an already running poll is reused. Values carried by ctx, such as the
// caller's bearer token, reach every fetch; its cancellation does not.
func (t *Tracker) Start(ctx context.Context, planningID string) View {
	t.ensure(planningID)
	v := t.dispatch(planningID, ApprovalSubmitted{})

	if p := t.currentPoller(); p != nil {
		p.Start(ctx, planningID)
		v.Polling = true
	}
	return v
}

// Stop cancels polling without changing the tab state.
func (t *Tracker) Stop(planningID string) View {
	if p := t.currentPoller(); p != nil {
		p.Stop(planningID)
	}
	return t.View(planningID)
}

// Reset clears cached tasks and returns the tab to hidden.
func (t *Tracker) Reset(planningID string) View {
	t.mu.Lock()
	e := t.ensureLocked(planningID)
	e.tasks = nil
	t.mu.Unlock()

	return t.dispatch(planningID, Reset{})
}

// Dismiss clears an error back to the state it replaced.
func (t *Tracker) Dismiss(planningID string) View {
	return t.dispatch(planningID, ErrorDismissed{})
}

// MarkViewed collapses new into ready.
func (t *Tracker) MarkViewed(planningID string) View {
	t.SetViewing(planningID, true)
	return t.dispatch(planningID, TabViewed{})
}

// SetViewing records whether the refined tab is currently on screen. Results
// that arrive while it is not are flagged as new.
func (t *Tracker) SetViewing(planningID string, viewing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ensureLocked(planningID).viewing = viewing
}

// Fail records a terminal failure that did not come from the poller.
func (t *Tracker) Fail(planningID string, err *PollError) View {
	t.ensure(planningID)
	return t.dispatch(planningID, Failed{Err: err})
}

// Forget stops polling and drops all state for the planning.
func (t *Tracker) Forget(planningID string) {
	if p := t.currentPoller(); p != nil {
		p.Stop(planningID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, planningID)
}

// View returns the current view of a planning. Untracked plannings report
// hidden.
func (t *Tracker) View(planningID string) View {
	t.mu.Lock()
	e, ok := t.entries[planningID]
	var v View
	if ok {
		v = t.viewLocked(planningID, e)
	} else {
		v = View{PlanningID: planningID, State: Hidden{}}
	}
	p := t.poller
	t.mu.Unlock()

	if p != nil {
		v.Polling = p.Running(planningID)
	}
	return v
}

// Tracked reports whether the planning has state in the tracker.
func (t *Tracker) Tracked(planningID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[planningID]
	return ok
}

// OnProgress implements Sink.
func (t *Tracker) OnProgress(planningID string) {
	if !t.Tracked(planningID) {
		return
	}
	t.dispatch(planningID, ProgressObserved{})
}

// OnResult implements Sink.
func (t *Tracker) OnResult(planningID string, tasks []model.Task) {
	t.mu.Lock()
	e, ok := t.entries[planningID]
	if !ok {
		t.mu.Unlock()
		return
	}
	e.tasks = tasks
	viewing := e.viewing
	t.mu.Unlock()

	t.dispatch(planningID, PayloadObserved{})
	if !viewing {
		t.dispatch(planningID, ResultUnseen{})
	}
}

// OnFailure implements Sink.
func (t *Tracker) OnFailure(planningID string, err *PollError) {
	if !t.Tracked(planningID) {
		return
	}
	t.dispatch(planningID, Failed{Err: err})
}

func newEntry(owner string) *entry {
	return &entry{
		owner:   owner,
		state:   Hidden{},
		viewing: true,
		updated: time.Now(),
	}
}

func (t *Tracker) ensure(planningID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ensureLocked(planningID)
}

func (t *Tracker) ensureLocked(planningID string) *entry {
	e, ok := t.entries[planningID]
	if !ok {
		e = newEntry("")
		t.entries[planningID] = e
	}
	return e
}

// dispatch applies an action and notifies the listener when the state
// changed.
func (t *Tracker) dispatch(planningID string, a Action) View {
	t.mu.Lock()
	e, ok := t.entries[planningID]
	if !ok {
		t.mu.Unlock()
		return t.View(planningID)
	}

	prev := e.state
	e.state = Reduce(e.state, a)
	changed := e.state != prev
	if changed {
		e.updated = time.Now()
	}
	v := t.viewLocked(planningID, e)
	listener := t.listener
	p := t.poller
	t.mu.Unlock()

	if p != nil {
		v.Polling = p.Running(planningID)
	}

	if changed {
		t.log.Debug("Tab state changed", "planning_id", planningID,
			"from", prev.Name(), "to", v.State.Name())
		if listener != nil {
			listener(v)
		}
	}
	return v
}

func (t *Tracker) viewLocked(planningID string, e *entry) View {
	tasks := make([]model.Task, len(e.tasks))
	copy(tasks, e.tasks)

	return View{
		PlanningID: planningID,
		Owner:      e.owner,
		State:      e.state,
		Tasks:      tasks,
		UpdatedAt:  e.updated,
	}
}

func (t *Tracker) currentPoller() *Poller {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.poller
}
