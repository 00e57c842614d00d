// Package wse guards wallet secure enrollment so that at most one run is
// active per process and every waiter observes the same result.
package wse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/congo-pay/tokenwallet/internal/sdk"
)

// ErrWse marks every wallet secure enrollment failure.
var ErrWse = errors.New("wallet secure enrollment failed")

const (
	flightKey           = "wse"
	defaultPollInterval = 500 * time.Millisecond
)

// Gate runs wallet secure enrollment on demand.
type Gate struct {
	svc          sdk.WalletSecureEnrollment
	logger       *slog.Logger
	pollInterval time.Duration
	group        singleflight.Group
}

// NewGate builds a gate. A non-positive poll interval uses the default.
func NewGate(svc sdk.WalletSecureEnrollment, pollInterval time.Duration, logger *slog.Logger) *Gate {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Gate{svc: svc, logger: logger, pollInterval: pollInterval}
}

// Ensure returns once wallet secure enrollment is completed or not required.
// Concurrent callers share one run. Cancelling ctx abandons the wait for this
// caller only; the shared run keeps going for the others.
func (g *Gate) Ensure(ctx context.Context) error {
	ch := g.group.DoChan(flightKey, func() (any, error) {
		return nil, g.run(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Shared {
			g.logger.Debug("wse result shared with concurrent waiter")
		}
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrWse, ctx.Err())
	}
}

// Prewarm starts a run in the background and logs its result.
func (g *Gate) Prewarm(ctx context.Context) {
	go func() {
		if err := g.Ensure(ctx); err != nil {
			g.logger.Warn("wse prewarm", "error", err)
			return
		}
		g.logger.Info("wse ready")
	}()
}

func (g *Gate) run(ctx context.Context) error {
	state, err := g.svc.State(ctx)
	if err != nil {
		return fmt.Errorf("%w: read state: %w", ErrWse, err)
	}
	g.logger.Debug("wse state", "state", state.String())

	switch state {
	case sdk.WseCompleted, sdk.WseNotRequired:
		return nil
	case sdk.WseInProgress:
		return g.waitExternal(ctx)
	case sdk.WseRequired:
		return g.start(ctx)
	default:
		return fmt.Errorf("%w: unexpected state %s", ErrWse, state)
	}
}

func (g *Gate) start(ctx context.Context) error {
	done := make(chan error, 1)
	g.logger.Info("wse started")
	g.svc.Start(ctx, func(err error) {
		select {
		case done <- err:
		default:
		}
	})
	if err := <-done; err != nil {
		return fmt.Errorf("%w: %w", ErrWse, err)
	}
	return nil
}

// waitExternal follows a run started outside this process until the SDK
// reports a settled state.
func (g *Gate) waitExternal(ctx context.Context) error {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		state, err := g.svc.State(ctx)
		if err != nil {
			return fmt.Errorf("%w: read state: %w", ErrWse, err)
		}
		switch state {
		case sdk.WseCompleted, sdk.WseNotRequired:
			return nil
		case sdk.WseRequired:
			return g.start(ctx)
		}
	}
	return nil
}
