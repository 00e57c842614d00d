package notification

import (
	"context"
	"log/slog"
	"sync"
)

const (
	// KindTransactionHistory asks observers to refresh a card's transactions.
	KindTransactionHistory = "transaction_history"
	// KindCardList asks observers to refresh the card list.
	KindCardList = "card_list"
)

// Signal describes a refresh request raised by a push.
type Signal struct {
	Kind          string `json:"kind"`
	DigitalCardID string `json:"digital_card_id,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Notifier delivers signals to downstream observers.
type Notifier interface {
	Send(ctx context.Context, signal Signal) error
}

// LoggerNotifier writes signals to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the signal to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, signal Signal) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("signal", "kind", signal.Kind, "card_id", signal.DigitalCardID, "message", signal.Message)
	return nil
}

// Hub fans signals out to in-process subscribers. Slow subscribers miss
// signals rather than block the sender.
type Hub struct {
	mu     sync.Mutex
	next   int
	subs   map[int]chan Signal
	logger *slog.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{subs: make(map[int]chan Signal), logger: logger}
}

// Subscribe registers a subscriber with the given buffer. The returned
// function unsubscribes and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Signal, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Signal, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Send delivers signal to every subscriber.
func (h *Hub) Send(_ context.Context, signal Signal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- signal:
		default:
			h.logger.Warn("signal subscriber lagging", "subscriber", id, "kind", signal.Kind)
		}
	}
	return nil
}

// Multi sends each signal to every notifier and returns the first error.
type Multi []Notifier

// Send implements Notifier.
func (m Multi) Send(ctx context.Context, signal Signal) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, signal); err != nil && first == nil {
			first = err
		}
	}
	return first
}
