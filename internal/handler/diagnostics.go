package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stratplan/companion/internal/eventlog"
	"github.com/stratplan/companion/pkg/response"
)

type DiagnosticsHandler struct {
	events *eventlog.Ring
}

func NewDiagnosticsHandler(events *eventlog.Ring) *DiagnosticsHandler {
	return &DiagnosticsHandler{events: events}
}

// EventsResponse is the diagnostic event log.
type EventsResponse struct {
	Capacity int              `json:"capacity"`
	Entries  []eventlog.Entry `json:"entries"`
}

// Events handles GET /api/diagnostics/events
// @Summary      Recent polling and transcription events
// @Description  Oldest first; filter with ?source=planning|transcription|approval and ?subject=
// @Tags         Admin
// @Produce      json
// @Param        source query string false "Entry source"
// @Param        subject query string false "Planning or session ID"
// @Success      200 {object} EventsResponse
// @Failure      403 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/diagnostics/events [get]
func (h *DiagnosticsHandler) Events(c *fiber.Ctx) error {
	source := c.Query("source")
	subject := c.Query("subject")

	entries := h.events.Snapshot()
	filtered := entries[:0]
	for _, e := range entries {
		if source != "" && e.Source != source {
			continue
		}
		if subject != "" && e.Subject != subject {
			continue
		}
		filtered = append(filtered, e)
	}

	return response.OK(c, EventsResponse{
		Capacity: h.events.Cap(),
		Entries:  filtered,
	})
}
