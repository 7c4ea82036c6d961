package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hibiken/asynq"

	"github.com/stratplan/companion/internal/client"
	"github.com/stratplan/companion/internal/model"
	"github.com/stratplan/companion/internal/service"
)

// Analyzer summarizes a transcript.
type Analyzer interface {
	AnalyzeTranscript(ctx context.Context, transcript string) (*client.TranscriptAnalysis, error)
	IsConfigured() bool
}

// JobStore records job progress and outcome.
type JobStore interface {
	UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error
	CompleteJob(ctx context.Context, jobID string, result *model.AnalysisResultResponse) error
	FailJob(ctx context.Context, jobID string, errMsg string) error
}

// Notifier pushes job outcomes to websocket subscribers.
type Notifier interface {
	BroadcastComplete(jobID, sessionID string, result interface{})
	BroadcastError(jobID string, code, message string)
}

const mockInsightLimit = 3

// AnalysisWorker processes transcript analysis jobs
type AnalysisWorker struct {
	jobs     JobStore
	analyzer Analyzer
	archive  client.ArchiveStore
	notifier Notifier
	log      *slog.Logger
}

// NewAnalysisWorker creates a new analysis worker. A nil archive skips the
// transcript upload.
func NewAnalysisWorker(jobs JobStore, analyzer Analyzer, archive client.ArchiveStore,
	notifier Notifier, log *slog.Logger) *AnalysisWorker {

	if log == nil {
		log = slog.Default()
	}
	return &AnalysisWorker{
		jobs:     jobs,
		analyzer: analyzer,
		archive:  archive,
		notifier: notifier,
		log:      log.With("component", "analysis_worker"),
	}
}

// ProcessTask handles analysis task processing
func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var task service.AnalysisTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}

	jobID := task.JobID
	log := w.log.With("job_id", jobID)
	log.Info("Starting analysis job")

	var payload model.AnalysisJobPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal analysis payload: %w: %w", err, asynq.SkipRetry)
	}

	w.updateProgress(ctx, jobID, 10, "Preparing transcript")
	text := renderTranscript(payload.Blocks)

	w.updateProgress(ctx, jobID, 30, "Summarizing")
	var analysis *client.TranscriptAnalysis
	if w.analyzer == nil || !w.analyzer.IsConfigured() {
		analysis = mockAnalysis(payload.Blocks)
	} else {
		var err error
		analysis, err = w.analyzer.AnalyzeTranscript(ctx, text)
		if err != nil {
			w.failJob(ctx, jobID, fmt.Sprintf("Analysis failed: %v", err))
			return err
		}
	}

	result := &model.AnalysisResultResponse{
		SessionID: payload.SessionID,
		Summary:   analysis.Summary,
		Insights:  analysis.Insights,
		WordCount: len(strings.Fields(text)),
		CreatedAt: time.Now(),
	}
	if result.Insights == nil {
		result.Insights = []string{}
	}

	if w.archive != nil {
		w.updateProgress(ctx, jobID, 80, "Archiving transcript")
		url, err := w.archiveTranscript(ctx, &payload, result)
		if err != nil {
			// The summary is still useful without the archive.
			log.Warn("Transcript archive failed", "error", err)
		} else {
			result.ArchiveURL = url
		}
	}

	if err := w.jobs.CompleteJob(ctx, jobID, result); err != nil {
		w.failJob(ctx, jobID, "Failed to save result")
		return err
	}

	w.notifier.BroadcastComplete(jobID, payload.SessionID, result)
	log.Info("Analysis job completed", "session_id", payload.SessionID,
		"words", result.WordCount)
	return nil
}

func (w *AnalysisWorker) archiveTranscript(ctx context.Context, payload *model.AnalysisJobPayload,
	result *model.AnalysisResultResponse) (string, error) {

	doc, err := json.Marshal(struct {
		*model.AnalysisJobPayload
		Summary  string   `json:"summary"`
		Insights []string `json:"insights"`
	}{payload, result.Summary, result.Insights})
	if err != nil {
		return "", err
	}

	key := client.TranscriptKey(payload.UserID, payload.SessionID)
	return w.archive.Upload(ctx, key, bytes.NewReader(doc), "application/json")
}

func (w *AnalysisWorker) updateProgress(ctx context.Context, jobID string, progress int, step string) {
	if err := w.jobs.UpdateJobProgress(ctx, jobID, progress, step); err != nil {
		w.log.Warn("Failed to update progress", "job_id", jobID, "error", err)
	}
}

func (w *AnalysisWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if err := w.jobs.FailJob(ctx, jobID, errMsg); err != nil {
		w.log.Error("Failed to mark job as failed", "job_id", jobID, "error", err)
	}
	w.notifier.BroadcastError(jobID, "ANALYSIS_FAILED", errMsg)
}

// renderTranscript formats blocks as "[source] text" lines.
func renderTranscript(blocks []model.TranscriptBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		fmt.Fprintf(&b, "[%s] %s\n", block.Source, block.Text)
	}
	return b.String()
}

// mockAnalysis builds a deterministic analysis for development, when no
// model is configured.
func mockAnalysis(blocks []model.TranscriptBlock) *client.TranscriptAnalysis {
	counts := map[model.AudioSource]int{}
	insights := []string{}
	for _, block := range blocks {
		counts[block.Source]++
		if len(insights) < mockInsightLimit {
			insights = append(insights, firstSentence(block.Text))
		}
	}

	summary := fmt.Sprintf("Sessão com %d blocos: %d do microfone, %d da tela, %d remotos.",
		len(blocks), counts[model.AudioSourceMicrophone],
		counts[model.AudioSourceScreen], counts[model.AudioSourceRemote])

	return &client.TranscriptAnalysis{Summary: summary, Insights: insights}
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		text = text[:i+1]
	}
	if utf8.RuneCountInString(text) > 160 {
		text = string([]rune(text)[:160]) + "…"
	}
	return text
}
