package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenwallet/internal/notification"
	"github.com/congo-pay/tokenwallet/internal/pushtoken"
)

// RegisterPushRoutes wires the platform push entry points and the signal stream.
func RegisterPushRoutes(r fiber.Router, tokens *pushtoken.Handler, pushes *notification.Handler) {
	group := r.Group("/push")
	group.Put("/token", tokens.Update)
	group.Post("/messages", pushes.Messages)
	group.Post("/initialized", tokens.Initialized)

	r.Get("/signals", pushes.Signals)
}
