package planning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stratplan/companion/internal/eventlog"
	"github.com/stratplan/companion/internal/model"
)

// blockUntilCancelled keeps a poll session alive until it is stopped.
func blockUntilCancelled(ctx context.Context, _ string) (*model.Planning, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newCoordinatorFixture(t *testing.T) (*ApprovalCoordinator, *MockApprover,
	*Tracker, *Poller, *eventlog.Ring) {

	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	approver := NewMockApprover(ctrl)

	fetcher.EXPECT().FetchPlanning(gomock.Any(), gomock.Any()).
		DoAndReturn(blockUntilCancelled).AnyTimes()

	ring := eventlog.NewRing(0)
	tr := NewTracker(nil)
	p := newTestPoller(t, fetcher, tr, fastConfig(), ring)
	tr.SetPoller(p)

	return NewApprovalCoordinator(approver, tr, ring, nil), approver, tr, p, ring
}

func TestApproveRejectsEmptySelection(t *testing.T) {
	c, _, tr, p, _ := newCoordinatorFixture(t)
	tr.Track("p1", true)

	v, err := c.Approve(context.Background(), "p1", nil)
	require.ErrorIs(t, err, ErrNoTasksSelected)
	require.Equal(t, Waiting{}, v.State)
	require.False(t, p.Running("p1"))
}

func TestApproveAcceptedKeepsPolling(t *testing.T) {
	c, approver, tr, p, ring := newCoordinatorFixture(t)
	tr.Track("p1", true)
	tr.OnResult("p1", sampleTasks())

	tasks := sampleTasks()
	approver.EXPECT().ApproveTasks(gomock.Any(), "p1", tasks).
		DoAndReturn(func(context.Context, string, []model.Task) error {
			// The tab flips before the backend answers.
			require.Equal(t, Generating{}, tr.View("p1").State)
			require.Empty(t, tr.View("p1").Tasks)
			require.True(t, p.Running("p1"))
			return nil
		})

	v, err := c.Approve(context.Background(), "p1", tasks)
	require.NoError(t, err)
	require.Equal(t, Generating{}, v.State)
	require.True(t, v.Polling)

	// A second start while running reuses the session.
	require.False(t, p.Start(context.Background(), "p1"))

	var sources []string
	for _, e := range ring.Snapshot() {
		sources = append(sources, e.Source)
	}
	require.Contains(t, sources, "approval")
}

func TestApproveRejectedStopsPolling(t *testing.T) {
	c, approver, _, p, _ := newCoordinatorFixture(t)

	backendErr := errors.New("planning is locked by another reviewer")
	approver.EXPECT().ApproveTasks(gomock.Any(), "p1", gomock.Any()).
		Return(backendErr)

	v, err := c.Approve(context.Background(), "p1", sampleTasks())

	var perr *PollError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, KindRejected, perr.Kind)
	require.ErrorIs(t, err, backendErr)
	require.False(t, p.Running("p1"))

	errored, ok := v.State.(Errored)
	require.True(t, ok)
	require.Equal(t, Waiting{}, errored.Prior)
	require.Equal(t, backendErr.Error(), v.Response().Error.Message)
}
