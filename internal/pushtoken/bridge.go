// Package pushtoken keeps the provisioning backend in sync with the device
// push notification token.
package pushtoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/congo-pay/tokenwallet/internal/sdk"
)

var (
	// ErrEmptyToken is returned when the platform hands over a blank token.
	ErrEmptyToken = errors.New("push token is empty")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("push token bridge closed")
)

const (
	defaultRetryDelay  = 2 * time.Second
	defaultSendTimeout = 10 * time.Second
)

// Bridge forwards token refreshes to the registrar. At most one update is in
// flight and at most one retry is armed at any time.
type Bridge struct {
	store       Store
	registrar   sdk.PushTokenRegistrar
	logger      *slog.Logger
	retryDelay  time.Duration
	sendTimeout time.Duration

	mu       sync.Mutex
	inflight string
	gen      uint64
	retry    *time.Timer
	closed   bool
	wg       sync.WaitGroup
}

// NewBridge builds a bridge. Non-positive durations use the defaults.
func NewBridge(store Store, registrar sdk.PushTokenRegistrar, retryDelay, sendTimeout time.Duration, logger *slog.Logger) *Bridge {
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Bridge{
		store:       store,
		registrar:   registrar,
		logger:      logger,
		retryDelay:  retryDelay,
		sendTimeout: sendTimeout,
	}
}

// UpdateToken records a platform token refresh and registers it remotely
// when the backend does not already hold it. It returns once the update is
// submitted; the result is handled in the background.
func (b *Bridge) UpdateToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.inflight != "" && strings.EqualFold(b.inflight, token) {
		b.logger.Debug("push token update already in flight")
		return nil
	}

	if err := b.store.SetLocal(ctx, token); err != nil {
		return fmt.Errorf("persist local push token: %w", err)
	}
	b.stopRetry()

	rec, err := b.store.Load(ctx)
	if err != nil {
		return err
	}
	if strings.EqualFold(rec.Remote, token) {
		b.gen++
		b.inflight = ""
		b.logger.Debug("push token already registered")
		return nil
	}

	b.send(token)
	return nil
}

// LocalToken returns the latest token issued by the platform.
func (b *Bridge) LocalToken(ctx context.Context) (string, error) {
	rec, err := b.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return rec.Local, nil
}

// ConfirmRemote marks token as registered after the backend received it
// through another channel, such as the first card digitization.
func (b *Bridge) ConfirmRemote(ctx context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.store.Load(ctx)
	if err != nil {
		return err
	}
	if !strings.EqualFold(rec.Local, token) {
		return nil
	}
	if err := b.store.SetRemote(ctx, token); err != nil {
		return fmt.Errorf("persist remote push token: %w", err)
	}
	if strings.EqualFold(b.inflight, token) {
		b.stopRetry()
		b.gen++
		b.inflight = ""
	}
	return nil
}

// Resync re-registers the local token if the backend never confirmed it.
// It runs once the SDK reports it is initialised.
func (b *Bridge) Resync(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	rec, err := b.store.Load(ctx)
	if err != nil {
		return err
	}
	if rec.Local == "" || strings.EqualFold(rec.Local, rec.Remote) {
		return nil
	}
	if strings.EqualFold(b.inflight, rec.Local) {
		return nil
	}
	b.stopRetry()
	b.send(rec.Local)
	return nil
}

// Close disarms the retry timer and waits for in-flight updates.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.stopRetry()
	b.mu.Unlock()
	b.wg.Wait()
}

// send must be called with b.mu held.
func (b *Bridge) send(token string) {
	b.gen++
	gen := b.gen
	b.inflight = token
	b.wg.Add(1)
	go b.deliver(gen, token)
}

func (b *Bridge) deliver(gen uint64, token string) {
	defer b.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), b.sendTimeout)
	defer cancel()
	err := b.registrar.UpdatePushToken(ctx, token)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if serr := b.store.SetRemote(ctx, token); serr != nil {
			b.logger.Error("persist remote push token", "error", serr)
		}
		if gen == b.gen {
			b.inflight = ""
		}
		b.logger.Info("push token registered")
		return
	}

	if gen != b.gen || b.closed {
		b.logger.Debug("push token update superseded", "error", err)
		return
	}
	b.logger.Warn("push token update failed, retry scheduled", "error", err, "delay", b.retryDelay)
	b.retry = time.AfterFunc(b.retryDelay, func() { b.retryUpdate(gen, token) })
}

func (b *Bridge) retryUpdate(gen uint64, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.closed {
		return
	}
	b.retry = nil
	b.send(token)
}

func (b *Bridge) stopRetry() {
	if b.retry != nil {
		b.retry.Stop()
		b.retry = nil
	}
}
