// Package replenish requests fresh key material for active cards that run low.
package replenish

import (
	"context"
	"log/slog"

	"github.com/congo-pay/tokenwallet/internal/sdk"
)

// Trigger issues replenishment requests during card list refreshes. Failures
// are logged and retried on the next refresh.
type Trigger struct {
	replenisher sdk.Replenisher
	logger      *slog.Logger
}

// NewTrigger builds a trigger.
func NewTrigger(r sdk.Replenisher, logger *slog.Logger) *Trigger {
	return &Trigger{replenisher: r, logger: logger}
}

// Check requests replenishment for card when it is active and low on keys.
// It reports whether a request was accepted.
func (t *Trigger) Check(ctx context.Context, card sdk.CardStatus) bool {
	if card.State != sdk.CardActive || !card.NeedsReplenishment {
		return false
	}
	if err := t.replenisher.RequestReplenishment(ctx, card.DigitalCardID); err != nil {
		t.logger.Warn("replenishment request failed", "card_id", card.DigitalCardID, "error", err)
		return false
	}
	t.logger.Info("replenishment requested", "card_id", card.DigitalCardID)
	return true
}

// OnRefresh checks every card and returns the number of accepted requests.
func (t *Trigger) OnRefresh(ctx context.Context, cards []sdk.CardStatus) int {
	n := 0
	for _, card := range cards {
		if ctx.Err() != nil {
			break
		}
		if t.Check(ctx, card) {
			n++
		}
	}
	return n
}
