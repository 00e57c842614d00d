package notification

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	subscriberBuffer = 16
	keepAlive        = 15 * time.Second
)

// Handler exposes the push entry point and the signal stream.
type Handler struct {
	router *Router
	hub    *Hub
}

// NewHandler builds a notification handler.
func NewHandler(router *Router, hub *Hub) *Handler {
	return &Handler{router: router, hub: hub}
}

// Messages routes a push payload posted by the platform delivery bridge.
func (h *Handler) Messages(c *fiber.Ctx) error {
	var payload Payload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	outcome := h.router.Route(c.UserContext(), payload)
	return c.Status(http.StatusOK).JSON(fiber.Map{"outcome": string(outcome)})
}

// Signals streams hub signals as server-sent events.
func (h *Handler) Signals(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	signals, unsubscribe := h.hub.Subscribe(subscriberBuffer)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		for {
			select {
			case s, ok := <-signals:
				if !ok {
					return
				}
				payload, err := json.Marshal(s)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", s.Kind, payload)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
