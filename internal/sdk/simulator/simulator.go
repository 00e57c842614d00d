// Package simulator is an in-process stand-in for the vendor tokenization SDK.
// It approves every request with synthetic references so the daemon can run
// end to end in development.
package simulator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/tokenwallet/internal/sdk"
)

// Flow selects which digitization path the simulator takes.
type Flow string

const (
	FlowGreen   Flow = "green"
	FlowOTP     Flow = "otp"
	FlowIDV     Flow = "idv"
	FlowDecline Flow = "decline"
)

// ParseFlow maps a configuration value onto a Flow, defaulting to green.
func ParseFlow(v string) Flow {
	switch Flow(strings.ToLower(v)) {
	case FlowOTP:
		return FlowOTP
	case FlowIDV:
		return FlowIDV
	case FlowDecline:
		return FlowDecline
	default:
		return FlowGreen
	}
}

const defaultTerms = "By adding this card you accept the issuer terms of use."

// SDK implements every interface of package sdk.
type SDK struct {
	mu          sync.Mutex
	flow        Flow
	delay       time.Duration
	initialized bool
	wse         sdk.WseState
	tokens      []string
	cards       map[string]*sdk.CardStatus
	pending     map[string]*pendingActivation
}

// New builds a simulator that answers asynchronous calls after delay.
func New(flow Flow, delay time.Duration) *SDK {
	return &SDK{
		flow:    flow,
		delay:   delay,
		wse:     sdk.WseRequired,
		cards:   make(map[string]*sdk.CardStatus),
		pending: make(map[string]*pendingActivation),
	}
}

// MarkInitialized flips the SDK into the configured state.
func (s *SDK) MarkInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
}

// Initialized reports whether MarkInitialized was called.
func (s *SDK) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// State returns the wallet secure enrollment state.
func (s *SDK) State(_ context.Context) (sdk.WseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wse, nil
}

// Start completes wallet secure enrollment after the configured delay.
func (s *SDK) Start(ctx context.Context, done func(error)) {
	s.mu.Lock()
	s.wse = sdk.WseInProgress
	s.mu.Unlock()
	go func() {
		if err := s.wait(ctx); err != nil {
			s.mu.Lock()
			s.wse = sdk.WseRequired
			s.mu.Unlock()
			done(err)
			return
		}
		s.mu.Lock()
		s.wse = sdk.WseCompleted
		s.mu.Unlock()
		done(nil)
	}()
}

// CheckEligibility approves any non-empty encrypted payload.
func (s *SDK) CheckEligibility(_ context.Context, encryptedCard string) (sdk.Terms, error) {
	if encryptedCard == "" {
		return sdk.Terms{}, fmt.Errorf("card data is empty")
	}
	return sdk.Terms{Token: uuid.NewString(), Text: defaultTerms}, nil
}

// Digitize emits a single outcome matching the configured flow.
func (s *SDK) Digitize(ctx context.Context, terms sdk.Terms, pushToken, _ string) (<-chan sdk.Outcome, error) {
	if terms.Token == "" {
		return nil, fmt.Errorf("terms token is required")
	}
	if pushToken == "" {
		return nil, fmt.Errorf("push token is required")
	}
	out := make(chan sdk.Outcome, 1)
	go func() {
		defer close(out)
		if err := s.wait(ctx); err != nil {
			out <- sdk.Outcome{Kind: sdk.OutcomeError, Message: err.Error()}
			return
		}
		out <- s.digitize()
	}()
	return out, nil
}

func (s *SDK) digitize() sdk.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "CARD-" + strings.ToUpper(uuid.NewString()[:8])
	card := &sdk.CardStatus{
		DigitalCardID:      id,
		PanSuffix:          fmt.Sprintf("%04d", len(s.cards)+1),
		State:              sdk.CardInactive,
		NeedsReplenishment: true,
		Default:            len(s.cards) == 0,
	}

	switch s.flow {
	case FlowDecline:
		return sdk.Outcome{Kind: sdk.OutcomeDeclined}
	case FlowOTP:
		s.cards[id] = card
		pa := &pendingActivation{owner: s, id: id, state: sdk.ActivationOtpNeeded}
		s.pending[id] = pa
		return sdk.Outcome{Kind: sdk.OutcomeActivationRequired, DigitalCardID: id, Activation: pa}
	case FlowIDV:
		s.cards[id] = card
		pa := &pendingActivation{owner: s, id: id, state: sdk.ActivationIdvMethodNotSelected}
		s.pending[id] = pa
		return sdk.Outcome{Kind: sdk.OutcomeCompletedWithIdv, DigitalCardID: id, Selector: &selector{pa: pa}}
	default:
		card.State = sdk.CardActive
		s.cards[id] = card
		return sdk.Outcome{Kind: sdk.OutcomeCompleted, DigitalCardID: id}
	}
}

// PendingActivation looks up a pending activation by digital card id.
func (s *SDK) PendingActivation(_ context.Context, digitalCardID string) (sdk.PendingActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pa, ok := s.pending[digitalCardID]
	if !ok {
		return nil, sdk.ErrNotFound
	}
	return pa, nil
}

// PendingActivations lists every pending activation ordered by card id.
func (s *SDK) PendingActivations(_ context.Context) ([]sdk.PendingActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	list := make([]sdk.PendingActivation, 0, len(ids))
	for _, id := range ids {
		list = append(list, s.pending[id])
	}
	return list, nil
}

// UpdatePushToken records the registered token.
func (s *SDK) UpdatePushToken(_ context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("push token is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
	return nil
}

// RegisteredTokens returns every token passed to UpdatePushToken.
func (s *SDK) RegisteredTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// ProcessIncomingMessage applies a provisioning server message to the card list.
func (s *SDK) ProcessIncomingMessage(_ context.Context, payload map[string]string) (sdk.ProcessResult, error) {
	result := sdk.ProcessResult{
		Message:       sdk.ServerMessage(strings.ToUpper(payload["message"])),
		DigitalCardID: payload["digitalCardId"],
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[result.DigitalCardID]
	if !ok {
		return result, nil
	}
	switch result.Message {
	case sdk.ServerMessageReplenishKeys:
		card.NeedsReplenishment = false
	case sdk.ServerMessageSuspendCard:
		card.State = sdk.CardSuspended
	case sdk.ServerMessageResumeCard, sdk.ServerMessageInstallCard:
		card.State = sdk.CardActive
	case sdk.ServerMessageDeleteCard:
		delete(s.cards, result.DigitalCardID)
		delete(s.pending, result.DigitalCardID)
	}
	return result, nil
}

// Cards lists digitized cards ordered by id.
func (s *SDK) Cards(_ context.Context) ([]sdk.CardStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cards := make([]sdk.CardStatus, 0, len(s.cards))
	for _, c := range s.cards {
		cards = append(cards, *c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].DigitalCardID < cards[j].DigitalCardID })
	return cards, nil
}

// RequestReplenishment clears the replenishment flag of a card.
func (s *SDK) RequestReplenishment(_ context.Context, digitalCardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[digitalCardID]
	if !ok {
		return sdk.ErrNotFound
	}
	card.NeedsReplenishment = false
	return nil
}

// CardArt returns a synthetic background image.
func (s *SDK) CardArt(_ context.Context, digitalCardID string) ([]byte, error) {
	return []byte("card-art:" + digitalCardID), nil
}

func (s *SDK) activate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	if card, ok := s.cards[id]; ok {
		card.State = sdk.CardActive
	}
}

func (s *SDK) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type pendingActivation struct {
	owner *SDK
	id    string
	mu    sync.Mutex
	state sdk.ActivationState
}

func (p *pendingActivation) DigitalCardID() string { return p.id }

func (p *pendingActivation) State() sdk.ActivationState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *pendingActivation) IdvSelector(_ context.Context) (sdk.IdvSelector, error) {
	if p.State() != sdk.ActivationIdvMethodNotSelected {
		return nil, fmt.Errorf("idv method already selected for %s", p.id)
	}
	return &selector{pa: p}, nil
}

func (p *pendingActivation) Activate(ctx context.Context, code []byte) (<-chan sdk.Outcome, error) {
	if p.State() != sdk.ActivationOtpNeeded {
		return nil, fmt.Errorf("activation code not expected for %s", p.id)
	}
	valid := len(code) > 0
	out := make(chan sdk.Outcome, 1)
	go func() {
		defer close(out)
		if err := p.owner.wait(ctx); err != nil {
			out <- sdk.Outcome{Kind: sdk.OutcomeError, Message: err.Error()}
			return
		}
		if !valid {
			out <- sdk.Outcome{Kind: sdk.OutcomeError, Message: "activation code rejected"}
			return
		}
		p.owner.activate(p.id)
		out <- sdk.Outcome{Kind: sdk.OutcomeCompleted, DigitalCardID: p.id}
	}()
	return out, nil
}

type selector struct {
	pa *pendingActivation
}

func (s *selector) Methods() []sdk.IdvMethod {
	return []sdk.IdvMethod{
		{ID: "sms-1", Channel: sdk.IdvSMS, Value: "+242 06 *** ** 12"},
		{ID: "email-1", Channel: sdk.IdvEmail, Value: "j***@example.com"},
	}
}

func (s *selector) Select(ctx context.Context, methodID string) (<-chan sdk.Outcome, error) {
	found := false
	for _, m := range s.Methods() {
		if m.ID == methodID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown idv method %q", methodID)
	}
	out := make(chan sdk.Outcome, 1)
	go func() {
		defer close(out)
		if err := s.pa.owner.wait(ctx); err != nil {
			out <- sdk.Outcome{Kind: sdk.OutcomeError, Message: err.Error()}
			return
		}
		s.pa.mu.Lock()
		s.pa.state = sdk.ActivationOtpNeeded
		s.pa.mu.Unlock()
		out <- sdk.Outcome{Kind: sdk.OutcomeActivationRequired, DigitalCardID: s.pa.id, Activation: s.pa}
	}()
	return out, nil
}
