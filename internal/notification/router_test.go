package notification

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenwallet/internal/logging"
	"github.com/congo-pay/tokenwallet/internal/sdk"
)

type initFlag bool

func (f initFlag) Initialized() bool { return bool(f) }

type fakeProcessor struct {
	mu       sync.Mutex
	result   sdk.ProcessResult
	err      error
	payloads []map[string]string
}

func (p *fakeProcessor) ProcessIncomingMessage(_ context.Context, payload map[string]string) (sdk.ProcessResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return p.result, p.err
}

func (p *fakeProcessor) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

type recorder struct {
	mu      sync.Mutex
	signals []Signal
}

func (r *recorder) Send(_ context.Context, s Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
	return nil
}

func (r *recorder) sent() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Signal(nil), r.signals...)
}

func TestRouteDropsUnknownSender(t *testing.T) {
	proc := &fakeProcessor{}
	rec := &recorder{}
	r := NewRouter(initFlag(true), proc, rec, logging.Discard())

	for _, p := range []Payload{{}, {"sender": "fcm"}, {"digitalCardId": "CARD-1"}} {
		if got := r.Route(context.Background(), p); got != OutcomeDropped {
			t.Fatalf("payload %v: expected dropped, got %s", p, got)
		}
	}
	if proc.calls() != 0 || len(rec.sent()) != 0 {
		t.Fatalf("dropped payloads must not reach processor or notifier")
	}
}

func TestRouteDropsBeforeInitialization(t *testing.T) {
	proc := &fakeProcessor{}
	rec := &recorder{}
	r := NewRouter(initFlag(false), proc, rec, logging.Discard())

	if got := r.Route(context.Background(), Payload{"sender": "cps"}); got != OutcomeDroppedNotInitialized {
		t.Fatalf("expected dropped_not_initialized, got %s", got)
	}
	if got := r.Route(context.Background(), Payload{"sender": "tns", "digitalCardId": "CARD-1"}); got != OutcomeDroppedNotInitialized {
		t.Fatalf("expected dropped_not_initialized, got %s", got)
	}
	if proc.calls() != 0 || len(rec.sent()) != 0 {
		t.Fatalf("pushes before initialization must not be queued")
	}
}

func TestRouteProvisioning(t *testing.T) {
	proc := &fakeProcessor{result: sdk.ProcessResult{Message: sdk.ServerMessageSuspendCard, DigitalCardID: "CARD-1"}}
	rec := &recorder{}
	r := NewRouter(initFlag(true), proc, rec, logging.Discard())

	if got := r.Route(context.Background(), Payload{"Sender": "CPS", "message": "REQUEST_SUSPEND_CARD"}); got != OutcomeProvisioning {
		t.Fatalf("expected provisioning, got %s", got)
	}
	if proc.calls() != 1 {
		t.Fatalf("expected processor call")
	}
	sent := rec.sent()
	if len(sent) != 1 || sent[0].Kind != KindCardList || sent[0].DigitalCardID != "CARD-1" {
		t.Fatalf("expected card list signal, got %+v", sent)
	}
}

func TestRouteReplenishKeysDoesNotRefreshList(t *testing.T) {
	proc := &fakeProcessor{result: sdk.ProcessResult{Message: sdk.ServerMessageReplenishKeys, DigitalCardID: "CARD-1"}}
	rec := &recorder{}
	r := NewRouter(initFlag(true), proc, rec, logging.Discard())

	r.Route(context.Background(), Payload{"sender": "cps"})
	if len(rec.sent()) != 0 {
		t.Fatalf("replenish keys must not raise a card list signal")
	}

	proc.err = errors.New("malformed")
	if got := r.Route(context.Background(), Payload{"sender": "cps"}); got != OutcomeProvisioning {
		t.Fatalf("processor errors are logged, got %s", got)
	}
}

func TestRouteTransactionHistory(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(initFlag(true), &fakeProcessor{}, rec, logging.Discard())

	if got := r.Route(context.Background(), Payload{"sender": "tns", "digitalCardId": "CARD-9"}); got != OutcomeTransactionHistory {
		t.Fatalf("expected transaction_history, got %s", got)
	}
	if got := r.Route(context.Background(), Payload{"sender": "tns"}); got != OutcomeDropped {
		t.Fatalf("expected dropped without card id, got %s", got)
	}
	sent := rec.sent()
	if len(sent) != 1 || sent[0].Kind != KindTransactionHistory || sent[0].DigitalCardID != "CARD-9" {
		t.Fatalf("unexpected signals %+v", sent)
	}
}

func TestRouteRepeatedTransactionPushes(t *testing.T) {
	proc := &fakeProcessor{}
	rec := &recorder{}
	r := NewRouter(initFlag(true), proc, rec, logging.Discard())

	for i := 0; i < 2; i++ {
		if got := r.Route(context.Background(), Payload{"sender": "tns", "digitalCardId": "X"}); got != OutcomeTransactionHistory {
			t.Fatalf("push %d: expected transaction_history, got %s", i+1, got)
		}
	}
	if got := r.Route(context.Background(), Payload{"digitalCardId": "X"}); got != OutcomeDropped {
		t.Fatalf("expected dropped without sender, got %s", got)
	}

	sent := rec.sent()
	if len(sent) != 2 {
		t.Fatalf("expected two signals, got %+v", sent)
	}
	for _, s := range sent {
		if s.Kind != KindTransactionHistory || s.DigitalCardID != "X" {
			t.Fatalf("unexpected signal %+v", s)
		}
	}
	if proc.calls() != 0 {
		t.Fatalf("transaction pushes must not reach the processor")
	}
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub(logging.Discard())
	a, unsubA := hub.Subscribe(1)
	b, unsubB := hub.Subscribe(1)
	defer unsubB()

	_ = hub.Send(context.Background(), Signal{Kind: KindCardList})
	if s := <-a; s.Kind != KindCardList {
		t.Fatalf("subscriber a got %+v", s)
	}
	if s := <-b; s.Kind != KindCardList {
		t.Fatalf("subscriber b got %+v", s)
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatalf("expected closed channel after unsubscribe")
	}

	// A full subscriber is skipped rather than blocking the sender.
	_ = hub.Send(context.Background(), Signal{Kind: KindTransactionHistory})
	_ = hub.Send(context.Background(), Signal{Kind: KindCardList})
	if s := <-b; s.Kind != KindTransactionHistory {
		t.Fatalf("expected first signal kept, got %+v", s)
	}
}

func TestHandlerMessages(t *testing.T) {
	rec := &recorder{}
	h := NewHandler(NewRouter(initFlag(true), &fakeProcessor{}, Multi{rec, NewLoggerNotifier(logging.Discard())}, logging.Discard()), NewHub(logging.Discard()))
	app := fiber.New()
	app.Post("/push/messages", h.Messages)

	req := httptest.NewRequest(fiber.MethodPost, "/push/messages", strings.NewReader(`{"sender":"tns","digitalCardId":"CARD-1"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	if len(rec.sent()) != 1 {
		t.Fatalf("expected one signal, got %+v", rec.sent())
	}
}
