package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenwallet/internal/activation"
	"github.com/congo-pay/tokenwallet/internal/enrollment"
)

// RegisterEnrollmentRoutes wires the enrollment state machine endpoints.
// idempotency guards session creation when set.
func RegisterEnrollmentRoutes(r fiber.Router, h *enrollment.Handler, resume *activation.Handler, idempotency fiber.Handler) {
	group := r.Group("/enrollments")
	if idempotency != nil {
		group.Post("", idempotency, h.Start)
	} else {
		group.Post("", h.Start)
	}
	group.Post("/resume", resume.Resume)

	current := group.Group("/current")
	current.Get("", h.Current)
	current.Get("/events", h.Events)
	current.Post("/terms/accept", h.AcceptTerms)
	current.Post("/terms/decline", h.DeclineTerms)
	current.Post("/idv", h.SelectIdv)
	current.Post("/activation-code", h.SubmitCode)
	current.Post("/cancel", h.Cancel)
}
