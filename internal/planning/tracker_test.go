package planning

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stratplan/companion/internal/model"
)

// viewLog collects listener notifications.
type viewLog struct {
	mu    sync.Mutex
	views []View
}

func (l *viewLog) listen(v View) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.views = append(l.views, v)
}

func (l *viewLog) states() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, len(l.views))
	for i, v := range l.views {
		names[i] = v.State.Name()
	}
	return names
}

func sampleTasks() []model.Task {
	return []model.Task{json.RawMessage(`{"id":"t1"}`)}
}

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker(nil)
	log := &viewLog{}
	tr.SetListener(log.listen)

	require.Equal(t, "hidden", tr.View("p1").State.Name())

	v := tr.Track("p1", true)
	require.Equal(t, Waiting{}, v.State)

	v = tr.Start(context.Background(), "p1")
	require.Equal(t, Generating{}, v.State)
	require.False(t, v.Polling)

	tr.OnProgress("p1")
	tr.OnResult("p1", sampleTasks())

	v = tr.View("p1")
	require.Equal(t, Ready{}, v.State)
	require.Len(t, v.Tasks, 1)

	require.Equal(t, []string{"waiting", "generating", "ready"}, log.states())
}

func TestTrackerTrackWithoutTasksStaysHidden(t *testing.T) {
	tr := NewTracker(nil)

	v := tr.Track("p1", false)
	require.Equal(t, Hidden{}, v.State)
	require.True(t, tr.Tracked("p1"))
}

func TestTrackerUnseenResultIsNew(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("p1", true)
	tr.Start(context.Background(), "p1")
	tr.SetViewing("p1", false)

	tr.OnResult("p1", sampleTasks())
	require.Equal(t, New{}, tr.View("p1").State)

	v := tr.MarkViewed("p1")
	require.Equal(t, Ready{}, v.State)
}

func TestTrackerFailureAndDismiss(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("p1", true)
	tr.Start(context.Background(), "p1")

	perr := &PollError{Kind: KindTimeout, Attempts: 4, Err: errTimeout}
	tr.OnFailure("p1", perr)

	v := tr.View("p1")
	require.Equal(t, "error", v.State.Name())

	resp := v.Response()
	require.Equal(t, "error", resp.TabState)
	require.NotNil(t, resp.Error)
	require.Equal(t, "timeout", resp.Error.Kind)
	require.Contains(t, resp.Error.Message, "timed out")

	v = tr.Dismiss("p1")
	require.Equal(t, Generating{}, v.State)
	require.Nil(t, v.Response().Error)
}

func TestTrackerResetClearsTasks(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("p1", true)
	tr.Start(context.Background(), "p1")
	tr.OnResult("p1", sampleTasks())

	v := tr.Reset("p1")
	require.Equal(t, Hidden{}, v.State)
	require.Empty(t, v.Tasks)
}

func TestTrackerIgnoresUntrackedOutcomes(t *testing.T) {
	tr := NewTracker(nil)
	log := &viewLog{}
	tr.SetListener(log.listen)

	tr.OnProgress("ghost")
	tr.OnResult("ghost", sampleTasks())
	tr.OnFailure("ghost", &PollError{Kind: KindFetch})

	require.False(t, tr.Tracked("ghost"))
	require.Empty(t, log.states())
}

func TestTrackerForgetDropsState(t *testing.T) {
	tr := NewTracker(nil)
	tr.Track("p1", true)

	tr.Forget("p1")
	require.False(t, tr.Tracked("p1"))
	require.Equal(t, Hidden{}, tr.View("p1").State)
}

func TestTrackerWithPoller(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)

	rec := completedRecord("p1")
	rec.Status = model.PlanningStatusGenerating
	fetcher.EXPECT().FetchPlanning(gomock.Any(), "p1").Return(rec, nil).Times(1)

	tr := NewTracker(nil)
	p := newTestPoller(t, fetcher, tr, fastConfig(), nil)
	tr.SetPoller(p)

	tr.Track("p1", true)
	v := tr.Start(context.Background(), "p1")
	require.True(t, v.Polling)

	// A generating status must never override a present payload.
	require.Eventually(t, func() bool {
		return tr.View("p1").State == Ready{}
	}, waitFor, time.Millisecond)

	v = tr.View("p1")
	require.False(t, v.Polling)
	require.Len(t, v.Tasks, 1)
}

func TestTrackerStopKeepsState(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	fetcher.EXPECT().FetchPlanning(gomock.Any(), "p1").
		Return(nil, errors.New("offline")).AnyTimes()

	tr := NewTracker(nil)
	cfg := fastConfig()
	cfg.RetryDelay = time.Hour
	p := newTestPoller(t, fetcher, tr, cfg, nil)
	tr.SetPoller(p)

	tr.Start(context.Background(), "p1")
	v := tr.Stop("p1")
	require.Equal(t, Generating{}, v.State)
	require.False(t, v.Polling)
}

func TestTrackerClaimOwnership(t *testing.T) {
	tr := NewTracker(nil)

	require.NoError(t, tr.Authorize("p1", "user_2"))
	require.NoError(t, tr.Claim("p1", "user_1"))
	require.NoError(t, tr.Claim("p1", "user_1"))
	require.ErrorIs(t, tr.Claim("p1", "user_2"), ErrNotOwner)
	require.ErrorIs(t, tr.Authorize("p1", "user_2"), ErrNotOwner)
	require.NoError(t, tr.Authorize("p1", "user_1"))

	tr.Track("p1", true)
	require.Equal(t, "user_1", tr.View("p1").Owner)

	tr.Forget("p1")
	require.NoError(t, tr.Claim("p1", "user_2"))
}

func TestTrackerOwnerSurvivesReset(t *testing.T) {
	tr := NewTracker(nil)
	require.NoError(t, tr.Claim("p1", "user_1"))

	tr.Reset("p1")
	tr.SetViewing("p1", false)
	require.ErrorIs(t, tr.Authorize("p1", "user_2"), ErrNotOwner)
}

func TestTrackerForgetDuringUpdates(t *testing.T) {
	tr := NewTracker(nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 2000; j++ {
				tr.Track("p1", true)
				tr.OnResult("p1", sampleTasks())
				tr.Reset("p1")
				tr.SetViewing("p1", j%2 == 0)
			}
		}()
	}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 2000; j++ {
				tr.Forget("p1")
			}
		}()
	}
	wg.Wait()
}
