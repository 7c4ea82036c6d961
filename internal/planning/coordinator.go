package planning

import (
	"context"
	"log/slog"

	"github.com/stratplan/companion/internal/eventlog"
	"github.com/stratplan/companion/internal/model"
)

// Approver submits an approved task selection to the backend.
type Approver interface {
	ApproveTasks(ctx context.Context, planningID string,
		tasks []model.Task) error
}

// ApprovalCoordinator submits approvals while the tab is already showing
// generating, so the user waits on the polling UI rather than the request.
type ApprovalCoordinator struct {
	approver Approver
	tracker  *Tracker
	events   eventlog.Recorder
	log      *slog.Logger
}

// NewApprovalCoordinator creates a coordinator. The tracker must have a
// poller attached.
func NewApprovalCoordinator(approver Approver, tracker *Tracker,
	events eventlog.Recorder, log *slog.Logger) *ApprovalCoordinator {

	if events == nil {
		events = eventlog.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &ApprovalCoordinator{
		approver: approver,
		tracker:  tracker,
		events:   events,
		log:      log,
	}
}

// Approve validates the selection, resets the tab, starts polling and then
// submits the approval. On rejection polling is stopped and the tab shows
// the backend's error with waiting as the state to restore. The returned
// view reflects the state after the submission resolved.
func (c *ApprovalCoordinator) Approve(ctx context.Context, planningID string,
	tasks []model.Task) (View, error) {

	if len(tasks) == 0 {
		return c.tracker.View(planningID), ErrNoTasksSelected
	}

	// Stale tasks from a previous run must not flash on screen.
	c.tracker.Reset(planningID)
	c.tracker.Start(ctx, planningID)

	c.record(eventlog.KindStart, planningID, "approval submitted")
	c.log.Info("Submitting approval", "planning_id", planningID,
		"tasks", len(tasks))

	if err := c.approver.ApproveTasks(ctx, planningID, tasks); err != nil {
		c.tracker.Stop(planningID)

		// Restore the actionable state underneath the error.
		c.tracker.Reset(planningID)
		c.tracker.Track(planningID, true)
		perr := &PollError{Kind: KindRejected, Err: err}
		v := c.tracker.Fail(planningID, perr)

		c.record(eventlog.KindError, planningID, err.Error())
		c.log.Warn("Approval rejected", "planning_id", planningID,
			"error", err)
		return v, perr
	}

	c.record(eventlog.KindSuccess, planningID, "approval accepted")
	return c.tracker.View(planningID), nil
}

func (c *ApprovalCoordinator) record(kind eventlog.Kind, planningID,
	msg string) {

	c.events.Record(eventlog.Entry{
		Source:  "approval",
		Kind:    kind,
		Subject: planningID,
		Message: msg,
	})
}
