package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stratplan/companion/internal/model"
	"github.com/stratplan/companion/internal/transcription"
)

const (
	TaskTypeAnalysis = "transcription:analyze"
	QueueAnalysis    = "analysis"

	jobTTL = 24 * time.Hour
)

var (
	// ErrJobNotFound is returned for an unknown or expired job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotCompleted is returned when a result is requested early.
	ErrJobNotCompleted = errors.New("job not completed")

	// ErrJobForbidden is returned when a user reads another user's job.
	ErrJobForbidden = errors.New("job belongs to another user")
)

// Enqueuer is the subset of *asynq.Client used to queue work.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AnalysisTask is the asynq payload of a transcript analysis.
type AnalysisTask struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// AnalysisService stores analysis jobs in Redis and queues them for the
// worker. It receives transcripts from stopped sessions.
type AnalysisService struct {
	redis    *redis.Client
	enqueuer Enqueuer
	log      *slog.Logger
}

func NewAnalysisService(redisClient *redis.Client, enqueuer Enqueuer, log *slog.Logger) *AnalysisService {
	if log == nil {
		log = slog.Default()
	}
	return &AnalysisService{
		redis:    redisClient,
		enqueuer: enqueuer,
		log:      log.With("component", "analysis"),
	}
}

// TrackSessionAnalysis queues an analysis of a finished transcript and
// returns the job id.
func (s *AnalysisService) TrackSessionAnalysis(ctx context.Context, t transcription.Transcript) (string, error) {
	jobID := uuid.New().String()

	payload := &model.AnalysisJobPayload{
		SessionID: t.SessionID,
		UserID:    t.UserID,
		Blocks:    t.Blocks,
		Stats:     t.Stats,
		EndedAt:   t.EndedAt,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeAnalysis,
		Status:    model.JobStatusQueued,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}
	if err := s.saveJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to save job: %w", err)
	}

	task, err := NewAnalysisTask(jobID, payloadBytes)
	if err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(QueueAnalysis),
		asynq.MaxRetry(3),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.log.Info("Analysis queued", "job_id", jobID, "session_id", t.SessionID,
		"blocks", len(t.Blocks))
	return jobID, nil
}

// GetStatus returns the current status of a user's analysis job
func (s *AnalysisService) GetStatus(ctx context.Context, userID, jobID string) (*model.AnalysisStatusResponse, error) {
	job, payload, err := s.ownedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	return &model.AnalysisStatusResponse{
		JobID:       job.ID,
		SessionID:   payload.SessionID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetResult returns the result of a user's completed analysis job
func (s *AnalysisService) GetResult(ctx context.Context, userID, jobID string) (*model.AnalysisResultResponse, error) {
	job, _, err := s.ownedJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusSucceeded {
		return nil, ErrJobNotCompleted
	}

	var result model.AnalysisResultResponse
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

// UpdateJobProgress updates job progress (called by worker)
func (s *AnalysisService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Progress = progress
	job.CurrentStep = step

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	return s.saveJob(ctx, job)
}

// CompleteJob marks job as completed (called by worker)
func (s *AnalysisService) CompleteJob(ctx context.Context, jobID string, result *model.AnalysisResultResponse) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.CurrentStep = ""
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// FailJob marks job as failed (called by worker)
func (s *AnalysisService) FailJob(ctx context.Context, jobID string, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// ownedJob loads a job and checks it was queued for userID. Jobs of
// anonymous sessions are readable by anyone.
func (s *AnalysisService) ownedJob(ctx context.Context, userID, jobID string) (*model.Job, *model.AnalysisJobPayload, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	var payload model.AnalysisJobPayload
	_ = json.Unmarshal(job.Payload, &payload)
	if payload.UserID != "" && payload.UserID != userID {
		return nil, nil, ErrJobForbidden
	}
	return job, &payload, nil
}

func (s *AnalysisService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func (s *AnalysisService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// NewAnalysisTask builds the asynq task for a job.
func NewAnalysisTask(jobID string, payload []byte) (*asynq.Task, error) {
	data, err := json.Marshal(AnalysisTask{JobID: jobID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAnalysis, data), nil
}
