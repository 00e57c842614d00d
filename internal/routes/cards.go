package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenwallet/internal/cards"
)

// RegisterCardRoutes wires card list endpoints.
func RegisterCardRoutes(r fiber.Router, h *cards.Handler) {
	r.Get("/cards", h.List)
	r.Get("/cards/:cardId/art", h.Art)
}
