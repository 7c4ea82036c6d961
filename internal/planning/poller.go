package planning

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/stratplan/companion/internal/eventlog"
	"github.com/stratplan/companion/internal/model"
)

//go:generate mockgen -destination mocks_test.go -package planning github.com/stratplan/companion/internal/planning Fetcher,Approver

const logSource = "planning"

// Fetcher loads the current backend record for a planning.
type Fetcher interface {
	FetchPlanning(ctx context.Context, planningID string) (*model.Planning, error)
}

// Sink receives poll outcomes. Calls for one planning are sequential.
type Sink interface {
	// OnProgress is called when the backend reports an in-progress status.
	OnProgress(planningID string)

	// OnResult is called once with the refined tasks; polling then stops.
	OnResult(planningID string, tasks []model.Task)

	// OnFailure is called once with a terminal error; polling then stops.
	OnFailure(planningID string, err *PollError)
}

// Config controls the polling cadence.
type Config struct {
	// Interval is the delay between successful ticks.
	Interval time.Duration

	// RetryDelay is the fixed delay after a failed fetch.
	RetryDelay time.Duration

	// MaxRetries is the number of consecutive failed fetches tolerated
	// before the session fails.
	MaxRetries int

	// Timeout is the ceiling for the whole session.
	Timeout time.Duration
}

// DefaultConfig returns the production polling cadence.
func DefaultConfig() Config {
	return Config{
		Interval:   3 * time.Second,
		RetryDelay: 2 * time.Second,
		MaxRetries: 3,
		Timeout:    5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// pollSession is the state of one active polling loop.
type pollSession struct {
	planningID string
	cancel     context.CancelCauseFunc
	done       chan struct{}

	// Only the loop goroutine touches the counters.
	retries  int
	attempts int
}

// Poller runs at most one polling loop per planning id.
type Poller struct {
	fetcher Fetcher
	sink    Sink
	cfg     Config
	events  eventlog.Recorder
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*pollSession
}

// NewPoller creates a poller. A nil recorder or logger is replaced by a no-op
// recorder and slog.Default respectively.
func NewPoller(fetcher Fetcher, sink Sink, cfg Config,
	events eventlog.Recorder, log *slog.Logger) *Poller {

	if events == nil {
		events = eventlog.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Poller{
		fetcher:  fetcher,
		sink:     sink,
		cfg:      cfg.withDefaults(),
		events:   events,
		log:      log,
		sessions: make(map[string]*pollSession),
	}
}

// Start begins polling a planning. The first fetch fires immediately. If a
// session for the same planning is already running the call is a no-op and
// Start returns false. Fetches see the values of ctx but outlive it; only
// Stop or the timeout ends the session.
func (p *Poller) Start(ctx context.Context, planningID string) bool {
	p.mu.Lock()
	if _, ok := p.sessions[planningID]; ok {
		p.mu.Unlock()
		p.log.Debug("Polling already active", "planning_id", planningID)
		return false
	}

	ctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	ctx, cancelTimeout := context.WithTimeoutCause(ctx, p.cfg.Timeout, errTimeout)

	s := &pollSession{
		planningID: planningID,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	p.sessions[planningID] = s
	p.mu.Unlock()

	p.record(eventlog.KindStart, planningID, "polling started", 0)
	p.log.Info("Polling started", "planning_id", planningID,
		"interval", p.cfg.Interval, "timeout", p.cfg.Timeout)

	go func() {
		defer cancelTimeout()
		p.run(ctx, s)
	}()

	return true
}

// Stop cancels the polling loop for a planning. It does not touch tab state;
// a fetch already in flight resolves but its result is discarded. Stop
// returns false when nothing was running.
func (p *Poller) Stop(planningID string) bool {
	p.mu.Lock()
	s, ok := p.sessions[planningID]
	if ok {
		delete(p.sessions, planningID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}

	s.cancel(errStopped)
	p.record(eventlog.KindStop, planningID, "polling stopped", 0)
	p.log.Info("Polling stopped", "planning_id", planningID)
	return true
}

// Running reports whether a polling loop is active for the planning.
func (p *Poller) Running(planningID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.sessions[planningID]
	return ok
}

// StopAll cancels every active loop and waits for them to exit.
func (p *Poller) StopAll() {
	p.mu.Lock()
	sessions := make([]*pollSession, 0, len(p.sessions))
	for id, s := range p.sessions {
		sessions = append(sessions, s)
		delete(p.sessions, id)
	}
	p.mu.Unlock()

	for _, s := range sessions {
		s.cancel(errStopped)
	}
	for _, s := range sessions {
		<-s.done
	}
}

// run is the poll loop. Ticks are strictly sequential: the next fetch is not
// issued before the previous one resolves.
func (p *Poller) run(ctx context.Context, s *pollSession) {
	defer close(s.done)
	defer p.release(s)

	for {
		s.attempts++
		attempt := s.attempts

		record, err := p.fetcher.FetchPlanning(ctx, s.planningID)

		// A cancelled session discards whatever the fetch produced.
		if ctx.Err() != nil {
			p.finish(ctx, s)
			return
		}

		delay := p.cfg.Interval
		if err != nil {
			s.retries++
			retries := s.retries

			p.record(eventlog.KindRetry, s.planningID, err.Error(), attempt)
			p.log.Warn("Planning fetch failed", "planning_id", s.planningID,
				"attempt", attempt, "retries", retries, "error", err)

			if retries >= p.cfg.MaxRetries {
				p.fail(s, &PollError{
					Kind:     KindFetch,
					Attempts: attempt,
					Err:      err,
				})
				return
			}
			delay = p.cfg.RetryDelay
		} else {
			s.retries = 0

			if p.reconcile(s, record) {
				return
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.finish(ctx, s)
			return
		case <-timer.C:
		}
	}
}

// reconcile applies the precedence rules to one fetched record and reports
// whether polling is finished.
func (p *Poller) reconcile(s *pollSession, record *model.Planning) bool {
	if tasks := ExtractTasks(record); len(tasks) > 0 {
		if !p.detach(s) {
			return true
		}
		p.record(eventlog.KindSuccess, s.planningID, "refined tasks observed",
			s.attempts)
		p.log.Info("Planning result observed", "planning_id", s.planningID,
			"tasks", len(tasks))
		p.sink.OnResult(s.planningID, tasks)
		return true
	}

	if record != nil && record.Status.InProgress() {
		if !p.registered(s) {
			return true
		}
		p.record(eventlog.KindProgress, s.planningID, string(record.Status),
			s.attempts)
		p.sink.OnProgress(s.planningID)
	}
	return false
}

// finish handles a cancelled context. Only the timeout ceiling is surfaced;
// an explicit stop is silent.
func (p *Poller) finish(ctx context.Context, s *pollSession) {
	if !errors.Is(context.Cause(ctx), errTimeout) {
		return
	}

	p.record(eventlog.KindTimeout, s.planningID, "timeout ceiling reached",
		s.attempts)
	p.fail(s, &PollError{
		Kind:     KindTimeout,
		Attempts: s.attempts,
		Err:      errTimeout,
	})
}

func (p *Poller) fail(s *pollSession, perr *PollError) {
	if !p.detach(s) {
		return
	}

	if perr.Kind != KindTimeout {
		p.record(eventlog.KindError, s.planningID, perr.Error(), perr.Attempts)
	}
	p.log.Error("Polling failed", "planning_id", s.planningID,
		"kind", perr.Kind, "error", perr)
	p.sink.OnFailure(s.planningID, perr)
}

// detach removes s from the session table. It returns false when s was
// already removed by Stop, in which case its outcome must be discarded.
func (p *Poller) detach(s *pollSession) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sessions[s.planningID] != s {
		return false
	}
	delete(p.sessions, s.planningID)
	return true
}

// registered reports whether s is still the live session for its planning.
func (p *Poller) registered(s *pollSession) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sessions[s.planningID] == s
}

// release drops s from the table if it is still registered.
func (p *Poller) release(s *pollSession) {
	p.detach(s)
	s.cancel(errStopped)
}

func (p *Poller) record(kind eventlog.Kind, planningID, msg string,
	attempt int) {

	p.events.Record(eventlog.Entry{
		Source:  logSource,
		Kind:    kind,
		Subject: planningID,
		Message: msg,
		Attempt: attempt,
	})
}
