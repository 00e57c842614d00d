// Package cards builds the card list shown to the user from the SDK and the
// local display cache.
package cards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/congo-pay/tokenwallet/internal/sdk"
)

// PendingChecker reports whether a card still waits for activation.
type PendingChecker interface {
	Pending(ctx context.Context, digitalCardID string) bool
}

// RefreshHook runs on the SDK card statuses after each list refresh.
type RefreshHook interface {
	OnRefresh(ctx context.Context, cards []sdk.CardStatus) int
}

// Service lists digitized cards.
type Service struct {
	lister  sdk.CardLister
	art     sdk.CardArtSource
	repo    Repository
	pending PendingChecker
	hook    RefreshHook
	logger  *slog.Logger
}

// NewService builds a card service. pending and hook may be nil.
func NewService(lister sdk.CardLister, art sdk.CardArtSource, repo Repository, pending PendingChecker, hook RefreshHook, logger *slog.Logger) *Service {
	return &Service{lister: lister, art: art, repo: repo, pending: pending, hook: hook, logger: logger}
}

// SavePanExpiry records the expiry typed during enrollment for display.
func (s *Service) SavePanExpiry(ctx context.Context, panSuffix, expiry string) error {
	return s.repo.SavePanExpiry(ctx, panSuffix, expiry)
}

// Refresh lists cards, resolves display data and runs the refresh hook.
func (s *Service) Refresh(ctx context.Context) ([]Card, error) {
	statuses, err := s.lister.Cards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	out := make([]Card, 0, len(statuses))
	for _, st := range statuses {
		if st.State == sdk.CardDeleted {
			continue
		}
		card := Card{
			DigitalCardID:      st.DigitalCardID,
			PanSuffix:          st.PanSuffix,
			Expiry:             displayExpiry(s.expiry(ctx, st)),
			State:              st.State,
			Default:            st.Default,
			NeedsReplenishment: st.NeedsReplenishment,
		}
		if s.pending != nil {
			card.PendingActivation = s.pending.Pending(ctx, st.DigitalCardID)
		}
		if _, err := s.Art(ctx, st.DigitalCardID); err == nil {
			card.HasArt = true
		}
		out = append(out, card)
	}

	if s.hook != nil {
		if n := s.hook.OnRefresh(ctx, statuses); n > 0 {
			s.logger.Info("card refresh requested replenishment", "cards", n)
		}
	}
	return out, nil
}

// Art returns the card background, fetching and caching it on a miss.
func (s *Service) Art(ctx context.Context, digitalCardID string) ([]byte, error) {
	art, err := s.repo.CardArt(ctx, digitalCardID)
	if err == nil {
		return art, nil
	}
	if !errors.Is(err, ErrNotFound) {
		s.logger.Warn("read cached card art", "card_id", digitalCardID, "error", err)
	}
	if s.art == nil {
		return nil, ErrNotFound
	}

	art, err = s.art.CardArt(ctx, digitalCardID)
	if err != nil {
		return nil, fmt.Errorf("fetch card art: %w", err)
	}
	if len(art) == 0 {
		return nil, ErrNotFound
	}
	if err := s.repo.SaveCardArt(ctx, digitalCardID, art); err != nil {
		s.logger.Warn("cache card art", "card_id", digitalCardID, "error", err)
	}
	return art, nil
}

func (s *Service) expiry(ctx context.Context, st sdk.CardStatus) string {
	if st.Expiry != "" {
		return st.Expiry
	}
	if st.PanSuffix == "" {
		return ""
	}
	v, err := s.repo.PanExpiry(ctx, st.PanSuffix)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("read cached pan expiry", "pan_suffix", st.PanSuffix, "error", err)
		}
		return ""
	}
	return v
}
