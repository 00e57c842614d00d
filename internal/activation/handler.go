package activation

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenwallet/internal/enrollment"
)

var validate = validator.New()

// Handler exposes pending activation resume over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds an activation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type resumeRequest struct {
	DigitalCardID string `json:"digital_card_id" validate:"required"`
}

// Resume resumes the pending activation of the posted card.
func (h *Handler) Resume(c *fiber.Ctx) error {
	var req resumeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	sess, err := h.service.Resume(c.UserContext(), req.DigitalCardID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoPendingActivation):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrUnsupportedActivationMethod), errors.Is(err, ErrActivationAborted):
			// Soft condition: the client shows a warning toast.
			return c.Status(http.StatusOK).JSON(fiber.Map{
				"resumed": false,
				"toast": fiber.Map{
					"type":        string(enrollment.ToastWarning),
					"caption":     "Activation unavailable",
					"description": err.Error(),
				},
			})
		case errors.Is(err, enrollment.ErrAlreadyInProgress):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"resumed":         true,
		"session_id":      sess.ID(),
		"digital_card_id": req.DigitalCardID,
	})
}
