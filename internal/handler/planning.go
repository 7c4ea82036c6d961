package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/stratplan/companion/internal/client"
	"github.com/stratplan/companion/internal/middleware"
	"github.com/stratplan/companion/internal/model"
	"github.com/stratplan/companion/internal/planning"
	"github.com/stratplan/companion/pkg/response"
)

type PlanningHandler struct {
	tracker     *planning.Tracker
	coordinator *planning.ApprovalCoordinator
}

func NewPlanningHandler(tracker *planning.Tracker, coordinator *planning.ApprovalCoordinator) *PlanningHandler {
	return &PlanningHandler{
		tracker:     tracker,
		coordinator: coordinator,
	}
}

// View handles GET /api/plannings/:id
// @Summary      Get refined-tab state
// @Description  Current tab state, cached tasks and polling flag of a planning
// @Tags         Planning
// @Produce      json
// @Param        id path string true "Planning ID"
// @Success      200 {object} model.PlanningViewResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/plannings/{id} [get]
func (h *PlanningHandler) View(c *fiber.Ctx) error {
	planningID := c.Params("id")
	if err := h.tracker.Authorize(planningID, middleware.GetUserID(c)); err != nil {
		return planningForbidden(c)
	}
	return response.OK(c, h.tracker.View(planningID).Response())
}

// Track handles POST /api/plannings/:id/track
// @Summary      Register a planning
// @Description  Registers a planning; with approvable tasks the tab moves to waiting
// @Tags         Planning
// @Accept       json
// @Produce      json
// @Param        id path string true "Planning ID"
// @Param        request body model.TrackPlanningRequest true "Track request"
// @Success      200 {object} model.PlanningViewResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/plannings/{id}/track [post]
func (h *PlanningHandler) Track(c *fiber.Ctx) error {
	var req model.TrackPlanningRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	planningID := c.Params("id")
	if err := h.tracker.Claim(planningID, middleware.GetUserID(c)); err != nil {
		return planningForbidden(c)
	}
	return response.OK(c, h.tracker.Track(planningID, req.HasApprovableTasks).Response())
}

// Approve handles POST /api/plannings/:id/approve
// @Summary      Approve tasks
// @Description  Submits the selected tasks upstream and starts polling for the refined result
// @Tags         Planning
// @Accept       json
// @Produce      json
// @Param        id path string true "Planning ID"
// @Param        request body model.ApproveTasksRequest true "Approved tasks"
// @Success      202 {object} model.ApproveTasksResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/plannings/{id}/approve [post]
func (h *PlanningHandler) Approve(c *fiber.Ctx) error {
	var req model.ApproveTasksRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	planningID := c.Params("id")
	if err := h.tracker.Claim(planningID, middleware.GetUserID(c)); err != nil {
		return planningForbidden(c)
	}
	ctx := client.WithBearer(c.UserContext(), middleware.GetToken(c))

	v, err := h.coordinator.Approve(ctx, planningID, req.ApprovedTasks)
	if err != nil {
		if errors.Is(err, planning.ErrNoTasksSelected) {
			return response.ValidationError(c, "Select at least one task", nil)
		}
		return upstreamError(c, err)
	}

	return response.Accepted(c, model.ApproveTasksResponse{
		PlanningID: planningID,
		TabState:   v.State.Name(),
		Polling:    v.Polling,
	})
}

// StartPolling handles POST /api/plannings/:id/poll
// @Summary      Start or retry polling
// @Tags         Planning
// @Produce      json
// @Param        id path string true "Planning ID"
// @Success      202 {object} model.PlanningViewResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/plannings/{id}/poll [post]
func (h *PlanningHandler) StartPolling(c *fiber.Ctx) error {
	planningID := c.Params("id")
	if err := h.tracker.Claim(planningID, middleware.GetUserID(c)); err != nil {
		return planningForbidden(c)
	}
	ctx := client.WithBearer(c.UserContext(), middleware.GetToken(c))
	return response.Accepted(c, h.tracker.Start(ctx, planningID).Response())
}

// StopPolling handles DELETE /api/plannings/:id/poll
// @Summary      Stop polling
// @Tags         Planning
// @Produce      json
// @Param        id path string true "Planning ID"
// @Success      200 {object} model.PlanningViewResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/plannings/{id}/poll [delete]
func (h *PlanningHandler) StopPolling(c *fiber.Ctx) error {
	planningID := c.Params("id")
	if err := h.tracker.Authorize(planningID, middleware.GetUserID(c)); err != nil {
		return planningForbidden(c)
	}
	return response.OK(c, h.tracker.Stop(planningID).Response())
}

// Viewing handles PUT /api/plannings/:id/viewing
// @Summary      Report refined-tab visibility
// @Tags         Planning
// @Accept       json
// @Produce      json
// @Param        id path string true "Planning ID"
// @Param        request body model.SetViewingRequest true "Visibility"
// @Success      200 {object} model.PlanningViewResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/plannings/{id}/viewing [put]
func (h *PlanningHandler) Viewing(c *fiber.Ctx) error {
	var req model.SetViewingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	planningID := c.Params("id")
	if err := h.tracker.Authorize(planningID, middleware.GetUserID(c)); err != nil {
		return planningForbidden(c)
	}
	if req.Viewing {
		return response.OK(c, h.tracker.MarkViewed(planningID).Response())
	}
	h.tracker.SetViewing(planningID, false)
	return response.OK(c, h.tracker.View(planningID).Response())
}

// Viewed handles POST /api/plannings/:id/viewed
// @Summary      Mark the refined result as seen
// @Tags         Planning
// @Produce      json
// @Param        id path string true "Planning ID"
// @Success      200 {object} model.PlanningViewResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/plannings/{id}/viewed [post]
func (h *PlanningHandler) Viewed(c *fiber.Ctx) error {
	planningID := c.Params("id")
	if err := h.tracker.Authorize(planningID, middleware.GetUserID(c)); err != nil {
		return planningForbidden(c)
	}
	return response.OK(c, h.tracker.MarkViewed(planningID).Response())
}

// Dismiss handles POST /api/plannings/:id/dismiss
// @Summary      Dismiss the current error
// @Tags         Planning
// @Produce      json
// @Param        id path string true "Planning ID"
// @Success      200 {object} model.PlanningViewResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/plannings/{id}/dismiss [post]
func (h *PlanningHandler) Dismiss(c *fiber.Ctx) error {
	planningID := c.Params("id")
	if err := h.tracker.Authorize(planningID, middleware.GetUserID(c)); err != nil {
		return planningForbidden(c)
	}
	return response.OK(c, h.tracker.Dismiss(planningID).Response())
}

// Forget handles DELETE /api/plannings/:id
// @Summary      Drop planning state
// @Description  Stops polling and forgets the planning, as when the page unmounts
// @Tags         Planning
// @Param        id path string true "Planning ID"
// @Success      204
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/plannings/{id} [delete]
func (h *PlanningHandler) Forget(c *fiber.Ctx) error {
	planningID := c.Params("id")
	if err := h.tracker.Authorize(planningID, middleware.GetUserID(c)); err != nil {
		return planningForbidden(c)
	}
	h.tracker.Forget(planningID)
	return response.NoContent(c)
}

// Subscribe guards GET /ws/plannings/:id before the websocket upgrade.
func (h *PlanningHandler) Subscribe(c *fiber.Ctx) error {
	if err := h.tracker.Authorize(c.Params("id"), middleware.GetUserID(c)); err != nil {
		return planningForbidden(c)
	}
	return c.Next()
}

func planningForbidden(c *fiber.Ctx) error {
	return response.Forbidden(c, "Planning belongs to another user")
}

// upstreamError relays a backend failure with its status and message
// verbatim.
func upstreamError(c *fiber.Ctx, err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return response.UpstreamError(c, apiErr.StatusCode, apiErr.Message)
	}
	return response.ServiceError(c, err.Error())
}
