package pushtoken

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// InitMarker records that the SDK finished its configuration.
type InitMarker interface {
	MarkInitialized()
}

// Handler exposes push token endpoints.
type Handler struct {
	bridge *Bridge
	ready  InitMarker
}

// NewHandler builds a push token handler. ready may be nil when the SDK
// reports initialisation on its own.
func NewHandler(bridge *Bridge, ready InitMarker) *Handler {
	return &Handler{bridge: bridge, ready: ready}
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// Update stores a token refreshed by the platform and registers it.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.bridge.UpdateToken(c.UserContext(), req.Token); err != nil {
		switch {
		case errors.Is(err, ErrEmptyToken):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrClosed):
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.SendStatus(http.StatusAccepted)
}

// Initialized marks the SDK ready and resyncs the token with the backend.
func (h *Handler) Initialized(c *fiber.Ctx) error {
	if h.ready != nil {
		h.ready.MarkInitialized()
	}
	if err := h.bridge.Resync(c.UserContext()); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
