package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/tokenwallet/internal/app"
	"github.com/congo-pay/tokenwallet/internal/config"
	"github.com/congo-pay/tokenwallet/internal/logging"
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppEnv:            "test",
		WSEPollInterval:   time.Millisecond,
		PushRetryDelay:    10 * time.Millisecond,
		PushSendTimeout:   time.Second,
		ReplenishSchedule: "@every 1h",
		SimulatorFlow:     "green",
		SimulatorDelay:    time.Millisecond,
	}
	components, err := app.New(context.Background(), cfg, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	if err := components.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(components.Close)

	fa := fiber.New()
	if err := Setup(fa, Deps{Cfg: cfg, Logger: logging.Discard(), App: components}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return fa
}

func call(t *testing.T, fa *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := fa.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	decoded := map[string]any{}
	_ = json.Unmarshal(payload, &decoded)
	return resp.StatusCode, decoded
}

func waitState(t *testing.T, fa *fiber.App, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, body := call(t, fa, fiber.MethodGet, "/api/v1/enrollments/current", "")
		if body["state"] == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state %s not reached", want)
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	err := Setup(fiber.New(), Deps{Cfg: config.Config{AppEnv: "production"}, Logger: logging.Discard()})
	if err == nil {
		t.Fatalf("expected error without database")
	}
}

func TestHealth(t *testing.T) {
	fa := setupApp(t)
	status, body := call(t, fa, fiber.MethodGet, "/healthz", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", status)
	}
	if body["sdk_initialized"] != true {
		t.Fatalf("expected initialized sdk, got %v", body)
	}
}

func TestEnrollmentOverHTTP(t *testing.T) {
	fa := setupApp(t)

	status, _ := call(t, fa, fiber.MethodPost, "/api/v1/enrollments", `{"pan":"4111111111111111","expiry":"1227","cvv":"123"}`)
	if status != fiber.StatusPreconditionFailed {
		t.Fatalf("expected 412 without push token, got %d", status)
	}

	status, _ = call(t, fa, fiber.MethodPut, "/api/v1/push/token", `{"token":"push-token-1"}`)
	if status != fiber.StatusAccepted {
		t.Fatalf("expected 202 from token update, got %d", status)
	}

	status, body := call(t, fa, fiber.MethodPost, "/api/v1/enrollments", `{"pan":"4111111111111111","expiry":"1227","cvv":"123"}`)
	if status != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d %v", status, body)
	}
	waitState(t, fa, "terms_and_conditions_pending")

	status, _ = call(t, fa, fiber.MethodPost, "/api/v1/enrollments/current/terms/accept", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 from accept, got %d", status)
	}
	waitState(t, fa, "completed")

	status, body = call(t, fa, fiber.MethodGet, "/api/v1/cards", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 from cards, got %d", status)
	}
	list, _ := body["cards"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected one card, got %v", body)
	}

	status, body = call(t, fa, fiber.MethodPost, "/api/v1/push/messages", `{"sender":"unknown"}`)
	if status != fiber.StatusOK || body["outcome"] != "dropped" {
		t.Fatalf("unexpected push routing %d %v", status, body)
	}
}
