// Package enrollment drives a card from entry through eligibility, terms,
// digitization and activation. All asynchronous SDK results are funnelled
// through one ordered queue and applied by Run.
package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/congo-pay/tokenwallet/internal/cardcrypto"
	"github.com/congo-pay/tokenwallet/internal/sdk"
)

const (
	defaultLanguage = "en"
	callbackBuffer  = 32
)

// PushTokens exposes the push token the backend will notify.
type PushTokens interface {
	LocalToken(ctx context.Context) (string, error)
	ConfirmRemote(ctx context.Context, token string) error
}

// WseGate blocks until wallet secure enrollment is settled.
type WseGate interface {
	Ensure(ctx context.Context) error
}

// Encryptor seals the raw card payload for the eligibility request.
type Encryptor interface {
	Encrypt(ctx context.Context, raw []byte) (string, error)
}

// ExpiryCache keeps the PAN expiry for the card list display.
type ExpiryCache interface {
	SavePanExpiry(ctx context.Context, panSuffix, expiry string) error
}

// Deps aggregates the collaborators of an Orchestrator.
type Deps struct {
	Wse          WseGate
	Encryptor    Encryptor
	Eligibility  sdk.EligibilityService
	Digitizer    sdk.Digitizer
	PushTokens   PushTokens
	Expiry       ExpiryCache
	Language     string
	ReferenceKey []byte
	Logger       *slog.Logger
}

// CardInput is the card the user typed. The orchestrator copies what it
// needs; the caller wipes its own buffers.
type CardInput struct {
	PAN    []byte
	Expiry []byte
	CVV    []byte
}

// Resumption feeds a pending activation back into the orchestrator. With a
// selector the session starts at IDV selection, otherwise at code entry.
type Resumption struct {
	Activation sdk.PendingActivation
	Selector   sdk.IdvSelector
}

// Orchestrator is the enrollment state machine. Mutating operations are
// serialized internally; State and Current may be called concurrently.
type Orchestrator struct {
	deps      Deps
	logger    *slog.Logger
	callbacks chan callback
	root      context.Context
	stop      context.CancelFunc

	mu      sync.RWMutex
	state   State
	session *Session
}

// NewOrchestrator validates deps and builds an idle orchestrator.
func NewOrchestrator(d Deps) (*Orchestrator, error) {
	switch {
	case d.Wse == nil:
		return nil, fmt.Errorf("wse gate is required")
	case d.Encryptor == nil:
		return nil, fmt.Errorf("encryptor is required")
	case d.Eligibility == nil:
		return nil, fmt.Errorf("eligibility service is required")
	case d.Digitizer == nil:
		return nil, fmt.Errorf("digitizer is required")
	case d.PushTokens == nil:
		return nil, fmt.Errorf("push token source is required")
	case d.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	}
	if d.Language == "" {
		d.Language = defaultLanguage
	}
	root, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		deps:      d,
		logger:    d.Logger,
		callbacks: make(chan callback, callbackBuffer),
		root:      root,
		stop:      stop,
		state:     stateOf(NotStarted),
	}, nil
}

// Run applies queued SDK results in arrival order until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.root.Done():
			return nil
		case cb := <-o.callbacks:
			o.apply(cb)
		}
	}
}

// Close stops background work and every open stream.
func (o *Orchestrator) Close() {
	o.stop()
	o.mu.Lock()
	if o.session != nil {
		o.session.events.release()
	}
	o.mu.Unlock()
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Current returns the latest session, nil before the first start.
func (o *Orchestrator) Current() *Session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.session
}

// Start opens a session for the card and begins the eligibility check in the
// background. Only local preconditions are reported here; everything else
// arrives on the session stream.
func (o *Orchestrator) Start(ctx context.Context, in CardInput) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busy() {
		return nil, ErrAlreadyInProgress
	}
	token, err := o.deps.PushTokens.LocalToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("read push token: %w", err)
	}
	if token == "" {
		return nil, ErrPushTokenMissing
	}
	raw, err := cardcrypto.CardJSON(in.PAN, in.Expiry, in.CVV)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCard, err)
	}

	fp := Fingerprint{
		PanSuffix: lastDigits(in.PAN, 4),
		Expiry:    string(in.Expiry),
		Ref:       cardcrypto.Reference(o.deps.ReferenceKey, in.PAN),
	}
	sess := o.open(fp, stateOf(WseCheckInProgress))
	go o.enroll(sess, raw)
	return sess, nil
}

// AcceptTerms moves from terms to digitization.
func (o *Orchestrator) AcceptTerms(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.kind != TermsAndConditionsPending {
		return o.invalid("accept terms")
	}
	token, err := o.deps.PushTokens.LocalToken(ctx)
	if err != nil {
		return fmt.Errorf("read push token: %w", err)
	}
	if token == "" {
		o.transition(failed(FailurePushTokenMissing, ErrPushTokenMissing.Error()))
		return ErrPushTokenMissing
	}

	terms := o.state.terms
	sess := o.session
	sess.pushToken = token
	o.transition(stateOf(DigitizationInProgress))
	go o.follow(sess, func(ctx context.Context) (<-chan sdk.Outcome, error) {
		return o.deps.Digitizer.Digitize(ctx, terms, token, o.deps.Language)
	})
	return nil
}

// DeclineTerms ends the session as declined.
func (o *Orchestrator) DeclineTerms(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.kind != TermsAndConditionsPending {
		return o.invalid("decline terms")
	}
	o.transition(State{kind: Declined, byUser: true})
	return nil
}

// SelectIdvMethod forwards the chosen identity verification method.
func (o *Orchestrator) SelectIdvMethod(_ context.Context, methodID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.kind != IdvSelectionInProgress || o.state.submitted || o.state.selector == nil {
		return o.invalid("select idv method")
	}
	sel := o.state.selector
	if !offers(sel, methodID) {
		return fmt.Errorf("%w: %q", ErrUnknownIdvMethod, methodID)
	}

	o.state.submitted = true
	sess := o.session
	o.logger.Info("idv method selected", "session", sess.id, "method", methodID)
	go o.follow(sess, func(ctx context.Context) (<-chan sdk.Outcome, error) {
		return sel.Select(ctx, methodID)
	})
	return nil
}

// SubmitActivationCode hands the code to the pending activation. From
// ActivationRequired it opens a new session at code submission. The
// orchestrator wipes its own copy; the caller still wipes code.
func (o *Orchestrator) SubmitActivationCode(_ context.Context, code []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(code) == 0 {
		return ErrInvalidActivationCode
	}
	switch o.state.kind {
	case ActivationCodeSubmissionInProgress:
		if o.state.submitted {
			return o.invalid("submit activation code")
		}
	case ActivationRequired:
		if o.state.activation == nil {
			return o.invalid("submit activation code")
		}
		prev := o.session
		o.open(prev.fingerprint, State{
			kind:       ActivationCodeSubmissionInProgress,
			cardID:     o.state.cardID,
			activation: o.state.activation,
		})
	default:
		return o.invalid("submit activation code")
	}
	if o.state.activation == nil {
		return o.invalid("submit activation code")
	}

	pa := o.state.activation
	own := append([]byte(nil), code...)
	o.state.submitted = true
	sess := o.session
	go o.follow(sess, func(ctx context.Context) (<-chan sdk.Outcome, error) {
		defer cardcrypto.Wipe(own)
		return pa.Activate(ctx, own)
	})
	return nil
}

// Cancel ends a running session. It is a no-op when nothing is running.
func (o *Orchestrator) Cancel(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.busy() {
		return nil
	}
	o.transition(stateOf(Cancelled))
	return nil
}

// Resume opens a session for an activation left pending by an earlier run.
func (o *Orchestrator) Resume(_ context.Context, r Resumption) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busy() {
		return nil, ErrAlreadyInProgress
	}
	if r.Activation == nil {
		return nil, fmt.Errorf("pending activation is required")
	}

	first := State{
		kind:       ActivationCodeSubmissionInProgress,
		cardID:     r.Activation.DigitalCardID(),
		activation: r.Activation,
	}
	if r.Selector != nil {
		first.kind = IdvSelectionInProgress
		first.selector = r.Selector
	}
	return o.open(Fingerprint{}, first), nil
}

func (o *Orchestrator) busy() bool {
	return o.session != nil && o.state.kind != NotStarted && !o.state.Terminal()
}

func (o *Orchestrator) invalid(op string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidStateTransition, op, o.state.kind)
}

// open must be called with o.mu held.
func (o *Orchestrator) open(fp Fingerprint, first State) *Session {
	if o.session != nil {
		o.session.events.release()
	}
	sess := newSession(o.root, fp)
	o.session = sess
	o.logger.Info("enrollment session opened", "session", sess.id, "card_ref", fp.Ref, "pan_suffix", fp.PanSuffix)
	o.transition(first)
	return sess
}

// transition must be called with o.mu held.
func (o *Orchestrator) transition(next State) {
	sess := o.session
	o.state = next
	ev := sess.emit(next)

	attrs := []any{"session", sess.id, "seq", ev.Seq, "state", next.kind.String()}
	if f, ok := next.Failure(); ok {
		attrs = append(attrs, "failure", string(f.Kind), "reason", f.Message)
	}
	o.logger.Info("enrollment state changed", attrs...)

	if next.Terminal() {
		sess.finish()
		if next.kind == Completed {
			go o.completed(sess, next.cardID)
		}
	}
}

func (o *Orchestrator) completed(sess *Session, cardID string) {
	ctx := context.WithoutCancel(sess.ctx)
	if o.deps.Expiry != nil && sess.fingerprint.PanSuffix != "" {
		if err := o.deps.Expiry.SavePanExpiry(ctx, sess.fingerprint.PanSuffix, sess.fingerprint.Expiry); err != nil {
			o.logger.Warn("save pan expiry", "card_id", cardID, "error", err)
		}
	}
	if sess.pushToken != "" {
		if err := o.deps.PushTokens.ConfirmRemote(ctx, sess.pushToken); err != nil {
			o.logger.Warn("confirm push token", "error", err)
		}
	}
}

func (o *Orchestrator) active(sess *Session) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.session == sess && !o.state.Terminal()
}

// enroll runs the pre-terms pipeline for sess.
func (o *Orchestrator) enroll(sess *Session, raw []byte) {
	encrypted, ok := o.seal(sess, raw)
	if !ok {
		return
	}
	terms, err := o.deps.Eligibility.CheckEligibility(sess.ctx, encrypted)
	o.post(sess, eligibilityResult{terms: terms, err: err})
}

// seal waits for the WSE gate and encrypts raw. raw is wiped before seal
// returns on every path.
func (o *Orchestrator) seal(sess *Session, raw []byte) (string, bool) {
	defer cardcrypto.Wipe(raw)

	if err := o.deps.Wse.Ensure(sess.ctx); err != nil {
		o.post(sess, wseResult{err: err})
		return "", false
	}
	o.post(sess, wseResult{})
	if !o.active(sess) {
		return "", false
	}

	encrypted, err := o.deps.Encryptor.Encrypt(sess.ctx, raw)
	if err != nil {
		o.post(sess, workFailed{failure: Failure{Kind: FailureEncryption, Message: err.Error()}})
		return "", false
	}
	return encrypted, true
}

// follow forwards every outcome of an SDK stream to the queue.
func (o *Orchestrator) follow(sess *Session, call func(context.Context) (<-chan sdk.Outcome, error)) {
	outcomes, err := call(sess.ctx)
	if err != nil {
		o.post(sess, outcomeReceived{outcome: sdk.Outcome{Kind: sdk.OutcomeError, Message: err.Error()}})
		return
	}

	received := false
	for {
		select {
		case oc, ok := <-outcomes:
			if !ok {
				if !received {
					o.post(sess, workFailed{failure: Failure{Kind: FailureService, Message: "outcome stream ended without a result"}})
				}
				return
			}
			received = true
			o.post(sess, outcomeReceived{outcome: oc})
		case <-sess.ctx.Done():
			return
		}
	}
}

type callback struct {
	session *Session
	event   any
}

type wseResult struct{ err error }

type eligibilityResult struct {
	terms sdk.Terms
	err   error
}

type outcomeReceived struct{ outcome sdk.Outcome }

type workFailed struct{ failure Failure }

func (o *Orchestrator) post(sess *Session, event any) {
	select {
	case o.callbacks <- callback{session: sess, event: event}:
	case <-o.root.Done():
	}
}

func (o *Orchestrator) apply(cb callback) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if cb.session != o.session || o.state.Terminal() {
		o.logger.Debug("late callback ignored", "session", cb.session.id, "event", fmt.Sprintf("%T", cb.event))
		return
	}

	switch ev := cb.event.(type) {
	case wseResult:
		if o.state.kind != WseCheckInProgress {
			break
		}
		if ev.err != nil {
			o.transition(failed(FailureWse, ev.err.Error()))
			return
		}
		o.transition(stateOf(EligibilityCheckInProgress))
		return
	case eligibilityResult:
		if o.state.kind != EligibilityCheckInProgress {
			break
		}
		if ev.err != nil {
			o.transition(failed(FailureService, ev.err.Error()))
			return
		}
		o.transition(State{kind: TermsAndConditionsPending, terms: ev.terms})
		return
	case outcomeReceived:
		switch o.state.kind {
		case DigitizationInProgress, IdvSelectionInProgress, ActivationCodeSubmissionInProgress:
			next := fromOutcome(ev.outcome)
			if next.cardID == "" {
				next.cardID = o.state.cardID
			}
			o.transition(next)
			return
		}
	case workFailed:
		o.transition(failed(ev.failure.Kind, ev.failure.Message))
		return
	}
	o.logger.Warn("callback does not apply to state", "session", cb.session.id, "state", o.state.kind.String(), "event", fmt.Sprintf("%T", cb.event))
}

func offers(sel sdk.IdvSelector, methodID string) bool {
	for _, m := range sel.Methods() {
		if m.ID == methodID {
			return true
		}
	}
	return false
}

func lastDigits(pan []byte, n int) string {
	if len(pan) <= n {
		return string(pan)
	}
	return string(pan[len(pan)-n:])
}
