package pushtoken

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/tokenwallet/internal/logging"
)

type flag struct{ set atomic.Bool }

func (f *flag) MarkInitialized() { f.set.Store(true) }

func TestHandlerUpdateAndInitialized(t *testing.T) {
	store := NewMemoryStore()
	reg := newFakeRegistrar()
	bridge := NewBridge(store, reg, 10*time.Millisecond, time.Second, logging.Discard())
	defer bridge.Close()
	marker := &flag{}

	h := NewHandler(bridge, marker)
	app := fiber.New()
	app.Put("/push/token", h.Update)
	app.Post("/push/initialized", h.Initialized)

	req := httptest.NewRequest(fiber.MethodPut, "/push/token", strings.NewReader(`{"token":""}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodPut, "/push/token", strings.NewReader(`{"token":"tok-1"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	local, err := bridge.LocalToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", local)
	require.Eventually(t, func() bool {
		rec, err := store.Load(context.Background())
		return err == nil && rec.Remote == "tok-1"
	}, time.Second, 5*time.Millisecond)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/push/initialized", nil))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.True(t, marker.set.Load())
}
