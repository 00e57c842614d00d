package cards

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes card list HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a card HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type cardResponse struct {
	DigitalCardID      string `json:"digital_card_id"`
	PanSuffix          string `json:"pan_suffix"`
	Expiry             string `json:"expiry,omitempty"`
	State              string `json:"state"`
	Default            bool   `json:"default"`
	NeedsReplenishment bool   `json:"needs_replenishment"`
	PendingActivation  bool   `json:"pending_activation"`
	HasArt             bool   `json:"has_art"`
}

// List refreshes and returns the card list.
func (h *Handler) List(c *fiber.Ctx) error {
	cards, err := h.service.Refresh(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	out := make([]cardResponse, 0, len(cards))
	for _, card := range cards {
		out = append(out, cardResponse{
			DigitalCardID:      card.DigitalCardID,
			PanSuffix:          card.PanSuffix,
			Expiry:             card.Expiry,
			State:              string(card.State),
			Default:            card.Default,
			NeedsReplenishment: card.NeedsReplenishment,
			PendingActivation:  card.PendingActivation,
			HasArt:             card.HasArt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"cards": out})
}

// Art returns the card background image.
func (h *Handler) Art(c *fiber.Ctx) error {
	art, err := h.service.Art(c.UserContext(), c.Params("cardId"))
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}
	c.Set(fiber.HeaderContentType, http.DetectContentType(art))
	return c.Status(http.StatusOK).Send(art)
}
