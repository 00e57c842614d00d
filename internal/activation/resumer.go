// Package activation resumes enrollments the SDK left waiting for identity
// verification or an activation code.
package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/congo-pay/tokenwallet/internal/enrollment"
	"github.com/congo-pay/tokenwallet/internal/sdk"
)

var (
	// ErrNoPendingActivation is returned when nothing is waiting.
	ErrNoPendingActivation = errors.New("no pending activation")
	// ErrUnsupportedActivationMethod flags activation paths this flow does not handle, such as web 3DS.
	ErrUnsupportedActivationMethod = errors.New("activation method not supported in this flow")
	// ErrActivationAborted is returned when the SDK reports the activation as cancelled.
	ErrActivationAborted = errors.New("activation is cancelled")
)

// Resumer is the orchestrator entry point the resumer needs.
type Resumer interface {
	Resume(ctx context.Context, r enrollment.Resumption) (*enrollment.Session, error)
}

// Service feeds pending activations back into the orchestrator.
type Service struct {
	store  sdk.PendingActivationStore
	orch   Resumer
	logger *slog.Logger
}

// NewService builds a resumer service.
func NewService(store sdk.PendingActivationStore, orch Resumer, logger *slog.Logger) *Service {
	return &Service{store: store, orch: orch, logger: logger}
}

// Resume resumes the pending activation of one digital card.
func (s *Service) Resume(ctx context.Context, digitalCardID string) (*enrollment.Session, error) {
	pa, err := s.store.PendingActivation(ctx, digitalCardID)
	if errors.Is(err, sdk.ErrNotFound) {
		return nil, ErrNoPendingActivation
	}
	if err != nil {
		return nil, fmt.Errorf("lookup pending activation: %w", err)
	}
	return s.resume(ctx, pa)
}

// ResumeAny resumes the first pending activation, if any. It runs on launch.
func (s *Service) ResumeAny(ctx context.Context) (*enrollment.Session, error) {
	list, err := s.store.PendingActivations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending activations: %w", err)
	}
	for _, pa := range list {
		sess, err := s.resume(ctx, pa)
		if errors.Is(err, ErrUnsupportedActivationMethod) || errors.Is(err, ErrActivationAborted) {
			continue
		}
		return sess, err
	}
	return nil, ErrNoPendingActivation
}

// Pending reports whether digitalCardID has an activation waiting.
func (s *Service) Pending(ctx context.Context, digitalCardID string) bool {
	_, err := s.store.PendingActivation(ctx, digitalCardID)
	return err == nil
}

func (s *Service) resume(ctx context.Context, pa sdk.PendingActivation) (*enrollment.Session, error) {
	id := pa.DigitalCardID()
	state := pa.State()
	s.logger.Info("pending activation found", "card_id", id, "activation_state", state.String())

	switch state {
	case sdk.ActivationIdvMethodNotSelected:
		sel, err := pa.IdvSelector(ctx)
		if err != nil {
			return nil, fmt.Errorf("load idv selector: %w", err)
		}
		return s.orch.Resume(ctx, enrollment.Resumption{Activation: pa, Selector: sel})
	case sdk.ActivationOtpNeeded:
		return s.orch.Resume(ctx, enrollment.Resumption{Activation: pa})
	case sdk.ActivationAborted:
		s.logger.Warn("pending activation cancelled", "card_id", id)
		return nil, ErrActivationAborted
	default:
		s.logger.Warn("pending activation not supported", "card_id", id, "activation_state", state.String())
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedActivationMethod, state)
	}
}
