package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/stratplan/companion/internal/eventlog"
	"github.com/stratplan/companion/internal/model"
)

//go:generate mockgen -destination mocks_test.go -package transcription github.com/stratplan/companion/internal/transcription Controller,AnalysisSink

const logSource = "transcription"

// DefaultTrackFallback is the delay before re-requesting screen audio when
// screen video started without it.
const DefaultTrackFallback = time.Second

// ErrNoController is returned when a session has no bridge attached.
var ErrNoController = errors.New("no conferencing bridge attached")

// Controller issues commands to the conferencing SDK through the browser
// bridge.
type Controller interface {
	StartTranscription(ctx context.Context, cfg StartConfig) error
	StopTranscription(ctx context.Context) error
	RequestScreenAudio(ctx context.Context) error
}

// Transcript is the content handed to analysis when a session stops.
type Transcript struct {
	SessionID  string
	UserID     string
	PlanningID string
	Blocks     []model.TranscriptBlock
	Stats      model.TranscriptionStats
	EndedAt    time.Time
}

// AnalysisSink receives finished transcripts and returns a job id.
type AnalysisSink interface {
	TrackSessionAnalysis(ctx context.Context, t Transcript) (string, error)
}

// StartConfig is the transcription configuration sent to the SDK.
type StartConfig struct {
	Language           string
	Model              string
	Punctuate          bool
	IncludeRawResponse bool
	EndpointingMs      int
}

// DefaultStartConfig returns the full configuration for a language.
func DefaultStartConfig(language string) StartConfig {
	if language == "" {
		language = "pt"
	}
	return StartConfig{
		Language:           language,
		Model:              "nova-2-general",
		Punctuate:          true,
		IncludeRawResponse: true,
		EndpointingMs:      300,
	}
}

// Simplified keeps only the language. It is used for the single reconnect
// after a 403.
func (c StartConfig) Simplified() StartConfig {
	return StartConfig{Language: c.Language}
}

// Map renders the configuration as SDK command options.
func (c StartConfig) Map() map[string]string {
	m := map[string]string{"language": c.Language}
	if c.Model != "" {
		m["model"] = c.Model
	}
	if c.Punctuate {
		m["punctuate"] = "true"
	}
	if c.IncludeRawResponse {
		m["includeRawResponse"] = "true"
	}
	if c.EndpointingMs > 0 {
		m["endpointing"] = strconv.Itoa(c.EndpointingMs)
	}
	return m
}

// Options configures a Session.
type Options struct {
	ID            string
	UserID        string
	PlanningID    string
	DedupWindow   time.Duration
	TrackFallback time.Duration
	Analysis      AnalysisSink
	Events        eventlog.Recorder
	Log           *slog.Logger
	Listener      func(model.TranscriptionView)
}

// Session reconciles the SDK events of one capture session into a view.
type Session struct {
	id         string
	userID     string
	planningID string
	fallback   time.Duration
	analysis   AnalysisSink
	events     eventlog.Recorder
	log        *slog.Logger
	listener   func(model.TranscriptionView)
	now        func() time.Time

	mu             sync.Mutex
	ctrl           Controller
	cfg            StartConfig
	status         model.SessionStatus
	dedup          *Deduplicator
	asm            *Assembler
	tracks         TrackSnapshot
	screenCaptured bool
	screenVideo    bool
	firstSpeaker   fn.Option[string]
	stats          model.TranscriptionStats
	quality        string
	errMsg         string
	reconnected    bool
	fallbackTimer  *time.Timer
	fallbackGen    int
	analysisJobID  string
}

// NewSession creates an idle session.
func NewSession(opts Options) *Session {
	if opts.Events == nil {
		opts.Events = eventlog.Nop{}
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.TrackFallback <= 0 {
		opts.TrackFallback = DefaultTrackFallback
	}

	return &Session{
		id:         opts.ID,
		userID:     opts.UserID,
		planningID: opts.PlanningID,
		fallback:   opts.TrackFallback,
		analysis:   opts.Analysis,
		events:     opts.Events,
		log:        opts.Log.With("session_id", opts.ID),
		listener:   opts.Listener,
		now:        time.Now,
		status:     model.SessionStatusIdle,
		dedup:      NewDeduplicator(opts.DedupWindow),
		asm:        NewAssembler(),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// UserID returns the owner of the session.
func (s *Session) UserID() string {
	return s.userID
}

// Attach binds the bridge that forwards SDK commands.
func (s *Session) Attach(ctrl Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctrl = ctrl
}

// Detach unbinds the bridge and clears pending timers.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctrl = nil
	s.cancelFallbackLocked()
}

// Start asks the SDK to begin transcribing.
func (s *Session) Start(ctx context.Context, cfg StartConfig) error {
	s.mu.Lock()
	ctrl := s.ctrl
	s.cfg = cfg
	s.reconnected = false
	s.errMsg = ""
	s.status = model.SessionStatusStarting
	s.mu.Unlock()

	s.record(eventlog.KindStart, "transcription requested")

	var err error
	if ctrl == nil {
		err = ErrNoController
	} else {
		err = ctrl.StartTranscription(ctx, cfg)
	}
	if err != nil {
		s.setFatal(fmt.Sprintf("failed to start transcription: %v", err))
		s.notify()
		return err
	}

	s.notify()
	return nil
}

// Handle ingests one SDK event from either delivery channel.
func (s *Session) Handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventTranscriptionMessage, EventAppMessage:
		msg, ok := Normalize(ev)
		if !ok {
			return
		}
		s.ingest(msg)

	case EventTranscriptionStarted:
		s.mu.Lock()
		s.status = model.SessionStatusListening
		s.errMsg = ""
		s.mu.Unlock()
		s.log.Info("Transcription started")

	case EventTranscriptionStopped:
		s.mu.Lock()
		if s.status != model.SessionStatusError {
			s.status = model.SessionStatusStopped
		}
		s.mu.Unlock()

	case EventTranscriptionError:
		s.handleError(ctx, ev.ErrorMsg)

	case EventTrackStarted, EventTrackStopped:
		if ev.Track == nil || !ev.Track.Local {
			return
		}
		s.handleTrack(ev.Type == EventTrackStarted, *ev.Track)

	case EventNetworkQuality:
		s.mu.Lock()
		s.quality = ev.Quality
		s.mu.Unlock()

	default:
		s.log.Debug("Ignoring SDK event", "type", ev.Type)
		return
	}

	s.notify()
}

func (s *Session) ingest(msg Message) {
	s.mu.Lock()
	s.stats.Received++

	if msg.Text == "" {
		s.mu.Unlock()
		return
	}

	if !s.dedup.Accept(msg) {
		s.stats.Duplicates++
		s.mu.Unlock()
		s.record(eventlog.KindDuplicate, string(msg.Channel))
		return
	}

	if s.firstSpeaker.IsNone() && msg.SpeakerID.IsSome() {
		s.firstSpeaker = msg.SpeakerID
	}

	at := msg.Timestamp.UnwrapOrFunc(s.now)
	c := Classify(Signals{
		TrackType:      msg.TrackType,
		SpeakerID:      msg.SpeakerID,
		FirstSpeaker:   s.firstSpeaker,
		ScreenCaptured: s.screenCaptured,
		Tracks:         s.tracks,
		Text:           msg.Text,
		At:             at,
	})

	s.asm.Add(Segment{
		Text:           msg.Text,
		Final:          msg.Final,
		Source:         c.Source,
		Color:          c.Color,
		Confidence:     msg.Confidence.UnwrapOr(c.Confidence),
		At:             at,
		Classification: c,
	})

	if msg.Final {
		s.stats.Finals++
	} else {
		s.stats.Interims++
	}
	s.mu.Unlock()
}

// handleError reconnects once with a simplified configuration when the SDK
// reports a 403. Any other error, or a second 403, is fatal.
func (s *Session) handleError(ctx context.Context, msg string) {
	s.mu.Lock()
	retry := strings.Contains(msg, "403") && !s.reconnected && s.ctrl != nil
	ctrl := s.ctrl
	cfg := s.cfg.Simplified()
	if retry {
		s.reconnected = true
		s.status = model.SessionStatusReconnecting
	}
	s.mu.Unlock()

	if !retry {
		s.setFatal(msg)
		return
	}

	s.record(eventlog.KindReconnect, msg)
	s.log.Warn("Transcription rejected, reconnecting with simplified config",
		"error", msg)

	s.notify()
	if err := ctrl.StartTranscription(ctx, cfg); err != nil {
		s.setFatal(fmt.Sprintf("reconnect failed: %v", err))
	}
}

func (s *Session) setFatal(msg string) {
	s.mu.Lock()
	s.status = model.SessionStatusError
	s.errMsg = msg
	s.mu.Unlock()

	s.record(eventlog.KindError, msg)
	s.log.Error("Transcription failed", "error", msg)
}

func (s *Session) handleTrack(started bool, t Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sendable := started && t.Sendable()

	switch t.Type {
	case TrackCamAudio:
		s.tracks.Microphone = fn.Some(sendable)

	case TrackScreenAudio:
		s.tracks.ScreenAudio = fn.Some(sendable)
		s.screenCaptured = sendable
		if sendable {
			s.cancelFallbackLocked()
		}

	case TrackScreenVideo:
		s.screenVideo = started
		if !started {
			s.cancelFallbackLocked()
			return
		}
		if !s.screenCaptured && s.fallbackTimer == nil {
			s.scheduleFallbackLocked()
		}
	}
}

// scheduleFallbackLocked arms the screen-audio fallback timer.
func (s *Session) scheduleFallbackLocked() {
	s.fallbackGen++
	gen := s.fallbackGen
	s.fallbackTimer = time.AfterFunc(s.fallback, func() { s.runFallback(gen) })
}

func (s *Session) cancelFallbackLocked() {
	if s.fallbackTimer != nil {
		s.fallbackTimer.Stop()
		s.fallbackTimer = nil
	}
	s.fallbackGen++
}

func (s *Session) runFallback(gen int) {
	s.mu.Lock()
	if gen != s.fallbackGen {
		s.mu.Unlock()
		return
	}
	s.fallbackTimer = nil
	ctrl := s.ctrl
	stale := s.screenCaptured || !s.screenVideo ||
		s.status == model.SessionStatusStopped
	s.mu.Unlock()

	if stale || ctrl == nil {
		return
	}

	s.log.Debug("Screen shared without audio, requesting screen audio")
	if err := ctrl.RequestScreenAudio(context.Background()); err != nil {
		s.log.Warn("Screen audio request failed", "error", err)
	}
}

// ClearHistory empties the block list. Interim text, the segment log and
// counters are kept.
func (s *Session) ClearHistory() model.TranscriptionView {
	s.mu.Lock()
	s.asm.ClearHistory()
	s.mu.Unlock()

	return s.notify()
}

// Stop ends the session, clears pending timers and hands the transcript to
// analysis. Stopping twice is a no-op.
func (s *Session) Stop(ctx context.Context) model.TranscriptionView {
	s.mu.Lock()
	if s.status == model.SessionStatusStopped {
		s.mu.Unlock()
		return s.View()
	}
	s.status = model.SessionStatusStopped
	s.cancelFallbackLocked()
	ctrl := s.ctrl
	transcript := s.transcriptLocked()
	s.mu.Unlock()

	s.record(eventlog.KindStop, "session stopped")

	if ctrl != nil {
		if err := ctrl.StopTranscription(ctx); err != nil {
			s.log.Warn("Failed to stop transcription", "error", err)
		}
	}

	if s.analysis != nil && len(transcript.Blocks) > 0 {
		jobID, err := s.analysis.TrackSessionAnalysis(ctx, transcript)
		if err != nil {
			s.log.Error("Failed to queue session analysis", "error", err)
		} else {
			s.mu.Lock()
			s.analysisJobID = jobID
			s.mu.Unlock()
		}
	}

	return s.notify()
}

// transcriptLocked rebuilds the full transcript from the segment log so a
// cleared history is still analyzed.
func (s *Session) transcriptLocked() Transcript {
	full := NewAssembler()
	for _, seg := range s.asm.Segments() {
		if seg.Final {
			full.Add(seg)
		}
	}

	return Transcript{
		SessionID:  s.id,
		UserID:     s.userID,
		PlanningID: s.planningID,
		Blocks:     full.Blocks(),
		Stats:      s.stats,
		EndedAt:    s.now(),
	}
}

// View returns the current reconciled view.
func (s *Session) View() model.TranscriptionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.viewLocked()
}

func (s *Session) viewLocked() model.TranscriptionView {
	interim, interimSource := s.asm.Interim()

	return model.TranscriptionView{
		SessionID:      s.id,
		Status:         s.status,
		Blocks:         s.asm.Blocks(),
		Interim:        interim,
		InterimSource:  interimSource,
		ScreenCaptured: s.screenCaptured,
		NetworkQuality: s.quality,
		Stats:          s.stats,
		Error:          s.errMsg,
		AnalysisJobID:  s.analysisJobID,
	}
}

func (s *Session) notify() model.TranscriptionView {
	v := s.View()
	if s.listener != nil {
		s.listener(v)
	}
	return v
}

func (s *Session) record(kind eventlog.Kind, msg string) {
	s.events.Record(eventlog.Entry{
		Source:  logSource,
		Kind:    kind,
		Subject: s.id,
		Message: msg,
	})
}
