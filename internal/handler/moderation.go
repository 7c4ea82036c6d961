package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stratplan/companion/internal/client"
	"github.com/stratplan/companion/internal/middleware"
	"github.com/stratplan/companion/internal/model"
	"github.com/stratplan/companion/pkg/response"
)

// Moderator applies moderation actions upstream.
type Moderator interface {
	Moderate(ctx context.Context, clerkID string, req *model.ModerateRequest) (*model.ModerateResponse, error)
}

type ModerationHandler struct {
	moderator Moderator
	validator *validator.Validate
}

func NewModerationHandler(m Moderator, v *validator.Validate) *ModerationHandler {
	return &ModerationHandler{
		moderator: m,
		validator: v,
	}
}

// Moderate handles POST /api/admin/users/:clerkId/moderate
// @Summary      Moderate a user
// @Description  Applies a moderation action with optimistic concurrency on the user record version
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        clerkId path string true "Clerk user ID"
// @Param        request body model.ModerateRequest true "Moderation request"
// @Success      200 {object} model.ModerateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/users/{clerkId}/moderate [post]
func (h *ModerationHandler) Moderate(c *fiber.Ctx) error {
	var req model.ModerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	req.Reason = strings.TrimSpace(req.Reason)
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if req.Action.RequiresReason() && req.Reason == "" {
		return response.ValidationError(c, "A reason is required for this action",
			map[string]string{"Reason": "required"})
	}

	ctx := client.WithBearer(c.UserContext(), middleware.GetToken(c))
	result, err := h.moderator.Moderate(ctx, c.Params("clerkId"), &req)
	if err != nil {
		if errors.Is(err, client.ErrVersionConflict) {
			return response.VersionConflict(c, "The user was modified by someone else. Reload and try again.")
		}
		return upstreamError(c, err)
	}

	return response.OK(c, result)
}
