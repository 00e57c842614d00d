// Package sdktest provides scriptable SDK collaborators for tests.
package sdktest

import (
	"context"
	"sync"

	"github.com/congo-pay/tokenwallet/internal/sdk"
)

const outcomeBuffer = 8

// DigitizeCall records the arguments of one Digitize call.
type DigitizeCall struct {
	Terms     sdk.Terms
	PushToken string
	Language  string
}

// Digitizer returns Outcomes to every caller; tests push into it.
type Digitizer struct {
	Outcomes chan sdk.Outcome
	Err      error

	mu    sync.Mutex
	calls []DigitizeCall
}

// NewDigitizer builds a digitizer with a buffered outcome channel.
func NewDigitizer() *Digitizer {
	return &Digitizer{Outcomes: make(chan sdk.Outcome, outcomeBuffer)}
}

func (d *Digitizer) Digitize(_ context.Context, terms sdk.Terms, pushToken, language string) (<-chan sdk.Outcome, error) {
	d.mu.Lock()
	d.calls = append(d.calls, DigitizeCall{Terms: terms, PushToken: pushToken, Language: language})
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Outcomes, nil
}

// Calls returns the recorded Digitize calls.
func (d *Digitizer) Calls() []DigitizeCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DigitizeCall(nil), d.calls...)
}

// Selector is a scriptable IDV selector.
type Selector struct {
	List     []sdk.IdvMethod
	Outcomes chan sdk.Outcome

	mu       sync.Mutex
	selected []string
}

// NewSelector builds a selector offering methods.
func NewSelector(methods ...sdk.IdvMethod) *Selector {
	return &Selector{List: methods, Outcomes: make(chan sdk.Outcome, outcomeBuffer)}
}

func (s *Selector) Methods() []sdk.IdvMethod { return s.List }

func (s *Selector) Select(_ context.Context, methodID string) (<-chan sdk.Outcome, error) {
	s.mu.Lock()
	s.selected = append(s.selected, methodID)
	s.mu.Unlock()
	return s.Outcomes, nil
}

// Selected returns every method id passed to Select.
func (s *Selector) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selected...)
}

// PendingActivation is a scriptable pending activation.
type PendingActivation struct {
	ID          string
	Sub         sdk.ActivationState
	Selector    sdk.IdvSelector
	SelectorErr error
	Outcomes    chan sdk.Outcome

	mu    sync.Mutex
	codes []string
}

// NewPendingActivation builds a pending activation in sub-state st.
func NewPendingActivation(id string, st sdk.ActivationState) *PendingActivation {
	return &PendingActivation{ID: id, Sub: st, Outcomes: make(chan sdk.Outcome, outcomeBuffer)}
}

func (p *PendingActivation) DigitalCardID() string { return p.ID }

func (p *PendingActivation) State() sdk.ActivationState { return p.Sub }

func (p *PendingActivation) IdvSelector(_ context.Context) (sdk.IdvSelector, error) {
	if p.SelectorErr != nil {
		return nil, p.SelectorErr
	}
	return p.Selector, nil
}

func (p *PendingActivation) Activate(_ context.Context, code []byte) (<-chan sdk.Outcome, error) {
	p.mu.Lock()
	p.codes = append(p.codes, string(code))
	p.mu.Unlock()
	return p.Outcomes, nil
}

// Codes returns the submitted activation codes.
func (p *PendingActivation) Codes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.codes...)
}

// Store is an in-memory PendingActivationStore.
type Store struct {
	mu    sync.Mutex
	items []sdk.PendingActivation
	Err   error
}

// Add registers a pending activation.
func (s *Store) Add(pa sdk.PendingActivation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, pa)
}

func (s *Store) PendingActivation(_ context.Context, digitalCardID string) (sdk.PendingActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, pa := range s.items {
		if pa.DigitalCardID() == digitalCardID {
			return pa, nil
		}
	}
	return nil, sdk.ErrNotFound
}

func (s *Store) PendingActivations(_ context.Context) ([]sdk.PendingActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]sdk.PendingActivation(nil), s.items...), nil
}
