package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stratplan/companion/internal/middleware"
	"github.com/stratplan/companion/internal/model"
	"github.com/stratplan/companion/internal/service"
	"github.com/stratplan/companion/internal/transcription"
	"github.com/stratplan/companion/pkg/response"
)

type TranscriptionHandler struct {
	sessions  *service.SessionService
	analysis  *service.AnalysisService
	validator *validator.Validate
}

func NewTranscriptionHandler(sessions *service.SessionService, analysis *service.AnalysisService,
	v *validator.Validate) *TranscriptionHandler {

	return &TranscriptionHandler{
		sessions:  sessions,
		analysis:  analysis,
		validator: v,
	}
}

// CreateSession handles POST /api/transcription/sessions
// @Summary      Create transcription session
// @Description  Provisions a conferencing room and a live session for the browser bridge
// @Tags         Transcription
// @Accept       json
// @Produce      json
// @Param        request body model.CreateSessionRequest true "Session request"
// @Success      201 {object} model.CreateSessionResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/transcription/sessions [post]
func (h *TranscriptionHandler) CreateSession(c *fiber.Ctx) error {
	var req model.CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.sessions.Create(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// GetSession handles GET /api/transcription/sessions/:id
// @Summary      Get transcription view
// @Tags         Transcription
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} model.TranscriptionView
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/transcription/sessions/{id} [get]
func (h *TranscriptionHandler) GetSession(c *fiber.Ctx) error {
	v, err := h.sessions.Get(middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return response.OK(c, v)
}

// ClearSession handles POST /api/transcription/sessions/:id/clear
// @Summary      Clear visible transcript
// @Description  Empties the blocks on screen; the session keeps its interim text and counters
// @Tags         Transcription
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} model.TranscriptionView
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/transcription/sessions/{id}/clear [post]
func (h *TranscriptionHandler) ClearSession(c *fiber.Ctx) error {
	v, err := h.sessions.Clear(middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return response.OK(c, v)
}

// DeleteSession handles DELETE /api/transcription/sessions/:id
// @Summary      End transcription session
// @Description  Stops the session and queues the transcript analysis
// @Tags         Transcription
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} model.TranscriptionView
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/transcription/sessions/{id} [delete]
func (h *TranscriptionHandler) DeleteSession(c *fiber.Ctx) error {
	v, err := h.sessions.Delete(c.UserContext(), middleware.GetUserID(c), c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return response.OK(c, v)
}

// AnalysisStatus handles GET /api/transcription/analysis/:jobId
// @Summary      Get analysis job status
// @Tags         Transcription
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.AnalysisStatusResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/transcription/analysis/{jobId} [get]
func (h *TranscriptionHandler) AnalysisStatus(c *fiber.Ctx) error {
	result, err := h.analysis.GetStatus(c.UserContext(), middleware.GetUserID(c), c.Params("jobId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobForbidden):
			return response.Forbidden(c, "Job belongs to another user")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// AnalysisResult handles GET /api/transcription/analysis/:jobId/result
// @Summary      Get analysis result
// @Tags         Transcription
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.AnalysisResultResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      422 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/transcription/analysis/{jobId}/result [get]
func (h *TranscriptionHandler) AnalysisResult(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	userID := middleware.GetUserID(c)

	result, err := h.analysis.GetResult(c.UserContext(), userID, jobID)
	if err == nil {
		return response.OK(c, result)
	}

	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrJobForbidden):
		return response.Forbidden(c, "Job belongs to another user")
	case errors.Is(err, service.ErrJobNotCompleted):
		status, serr := h.analysis.GetStatus(c.UserContext(), userID, jobID)
		if serr == nil && status.Status == model.JobStatusFailed && status.Error != nil {
			return response.JobFailed(c, *status.Error)
		}
		return response.ValidationError(c, "Job not completed yet", nil)
	default:
		return response.ServiceError(c, err.Error())
	}
}

func sessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, transcription.ErrSessionNotFound):
		return response.NotFound(c, "Session not found")
	case errors.Is(err, service.ErrSessionForbidden):
		return response.Forbidden(c, "Session belongs to another user")
	default:
		return response.ServiceError(c, err.Error())
	}
}
