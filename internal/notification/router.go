// Package notification routes platform push payloads to the provisioning
// processor or to refresh signals.
package notification

import (
	"context"
	"log/slog"
	"strings"

	"github.com/congo-pay/tokenwallet/internal/sdk"
)

const (
	senderKey = "sender"
	cardIDKey = "digitalCardId"
	senderCPS = "cps"
	senderTNS = "tns"
)

// Payload is the flat key/value body of a push.
type Payload map[string]string

// Outcome reports what Route did with a payload.
type Outcome string

const (
	OutcomeDropped               Outcome = "dropped"
	OutcomeDroppedNotInitialized Outcome = "dropped_not_initialized"
	OutcomeProvisioning          Outcome = "provisioning"
	OutcomeTransactionHistory    Outcome = "transaction_history"
)

// Router dispatches pushes by sender.
type Router struct {
	ready     sdk.Initializer
	processor sdk.MessageProcessor
	notifier  Notifier
	logger    *slog.Logger
}

// NewRouter builds a router.
func NewRouter(ready sdk.Initializer, processor sdk.MessageProcessor, notifier Notifier, logger *slog.Logger) *Router {
	return &Router{ready: ready, processor: processor, notifier: notifier, logger: logger}
}

// Route handles one push. It never fails; problems are logged.
func (r *Router) Route(ctx context.Context, p Payload) Outcome {
	sender := strings.ToLower(strings.TrimSpace(p.get(senderKey)))
	if sender != senderCPS && sender != senderTNS {
		r.logger.Debug("push dropped: unknown sender", "sender", sender)
		return OutcomeDropped
	}
	if !r.ready.Initialized() {
		r.logger.Warn("push dropped: sdk not initialized", "sender", sender)
		return OutcomeDroppedNotInitialized
	}

	if sender == senderCPS {
		r.provisioning(ctx, p)
		return OutcomeProvisioning
	}

	cardID := p.get(cardIDKey)
	if cardID == "" {
		r.logger.Debug("push dropped: transaction notification without card id")
		return OutcomeDropped
	}
	r.signal(ctx, Signal{Kind: KindTransactionHistory, DigitalCardID: cardID})
	return OutcomeTransactionHistory
}

func (r *Router) provisioning(ctx context.Context, p Payload) {
	res, err := r.processor.ProcessIncomingMessage(ctx, p)
	if err != nil {
		r.logger.Warn("process provisioning message", "error", err)
		return
	}
	r.logger.Info("provisioning message processed", "message", string(res.Message), "card_id", res.DigitalCardID)
	if res.Message == sdk.ServerMessageReplenishKeys || res.DigitalCardID == "" {
		return
	}
	r.signal(ctx, Signal{Kind: KindCardList, DigitalCardID: res.DigitalCardID, Message: string(res.Message)})
}

func (r *Router) signal(ctx context.Context, s Signal) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Send(ctx, s); err != nil {
		r.logger.Warn("send signal", "kind", s.Kind, "error", err)
	}
}

// get looks key up case-insensitively.
func (p Payload) get(key string) string {
	if v, ok := p[key]; ok {
		return v
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
