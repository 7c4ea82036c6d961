package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stratplan/companion/internal/middleware"
	"github.com/stratplan/companion/internal/model"
	"github.com/stratplan/companion/internal/service"
	"github.com/stratplan/companion/pkg/response"
)

const tutorialKeyRule = "required,max=64,printascii,excludesall= /:"

type TutorialHandler struct {
	service   *service.TutorialService
	validator *validator.Validate
}

func NewTutorialHandler(svc *service.TutorialService, v *validator.Validate) *TutorialHandler {
	return &TutorialHandler{
		service:   svc,
		validator: v,
	}
}

// Get handles GET /api/tutorials/:key
// @Summary      Get tutorial flag
// @Tags         Tutorials
// @Produce      json
// @Param        key path string true "Tutorial key"
// @Success      200 {object} model.TutorialFlagResponse
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/tutorials/{key} [get]
func (h *TutorialHandler) Get(c *fiber.Ctx) error {
	key := c.Params("key")
	if err := h.validator.Var(key, tutorialKeyRule); err != nil {
		return response.ValidationError(c, "Invalid tutorial key", nil)
	}

	result, err := h.service.Get(c.UserContext(), middleware.GetUserID(c), key)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}

// Set handles PUT /api/tutorials/:key
// @Summary      Set tutorial flag
// @Tags         Tutorials
// @Accept       json
// @Produce      json
// @Param        key path string true "Tutorial key"
// @Param        request body model.SetTutorialRequest true "Flag"
// @Success      200 {object} model.TutorialFlagResponse
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/tutorials/{key} [put]
func (h *TutorialHandler) Set(c *fiber.Ctx) error {
	key := c.Params("key")
	if err := h.validator.Var(key, tutorialKeyRule); err != nil {
		return response.ValidationError(c, "Invalid tutorial key", nil)
	}

	var req model.SetTutorialRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	result, err := h.service.Set(c.UserContext(), middleware.GetUserID(c), key, req.Seen)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}
