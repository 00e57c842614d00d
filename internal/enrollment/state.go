package enrollment

import "github.com/congo-pay/tokenwallet/internal/sdk"

// Kind is the variant tag of a State.
type Kind int

const (
	NotStarted Kind = iota
	WseCheckInProgress
	EligibilityCheckInProgress
	TermsAndConditionsPending
	DigitizationInProgress
	IdvSelectionInProgress
	ActivationCodeSubmissionInProgress
	Completed
	CompletedPendingIDV
	ActivationRequired
	Declined
	Cancelled
	Failed
)

var kindNames = map[Kind]string{
	NotStarted:                         "not_started",
	WseCheckInProgress:                 "wse_check_in_progress",
	EligibilityCheckInProgress:         "eligibility_check_in_progress",
	TermsAndConditionsPending:          "terms_and_conditions_pending",
	DigitizationInProgress:             "digitization_in_progress",
	IdvSelectionInProgress:             "idv_selection_in_progress",
	ActivationCodeSubmissionInProgress: "activation_code_submission_in_progress",
	Completed:                          "completed",
	CompletedPendingIDV:                "completed_pending_idv",
	ActivationRequired:                 "activation_required",
	Declined:                           "declined",
	Cancelled:                          "cancelled",
	Failed:                             "failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether a session ends in this variant.
func (k Kind) Terminal() bool {
	switch k {
	case Completed, CompletedPendingIDV, ActivationRequired, Declined, Cancelled, Failed:
		return true
	default:
		return false
	}
}

// FailureKind classifies a Failed state.
type FailureKind string

const (
	FailureWse              FailureKind = "wse_error"
	FailureService          FailureKind = "service_error"
	FailureInvalidInput     FailureKind = "invalid_input"
	FailureEncryption       FailureKind = "encryption_error"
	FailurePushTokenMissing FailureKind = "push_token_missing"
)

// Failure is the payload of a Failed state. Message comes from the
// underlying error whenever one exists.
type Failure struct {
	Kind    FailureKind
	Message string
}

// State is the orchestrator state. Two states are the same variant when
// their tags match; payloads are only reachable through accessors and never
// take part in comparisons.
type State struct {
	kind       Kind
	terms      sdk.Terms
	cardID     string
	selector   sdk.IdvSelector
	activation sdk.PendingActivation
	failure    Failure
	submitted  bool
	byUser     bool
}

func stateOf(k Kind) State { return State{kind: k} }

func failed(kind FailureKind, message string) State {
	return State{kind: Failed, failure: Failure{Kind: kind, Message: message}}
}

// Kind returns the variant tag.
func (s State) Kind() Kind { return s.kind }

// SameVariant compares variant tags only.
func (s State) SameVariant(other State) bool { return s.kind == other.kind }

// Terminal reports whether the state ends its session.
func (s State) Terminal() bool { return s.kind.Terminal() }

func (s State) String() string { return s.kind.String() }

// Terms returns the terms token held while terms are pending.
func (s State) Terms() (sdk.Terms, bool) {
	return s.terms, s.kind == TermsAndConditionsPending
}

// DigitalCardID returns the card id once digitization produced one.
func (s State) DigitalCardID() (string, bool) {
	return s.cardID, s.cardID != ""
}

// IdvSelector returns the identity verification selector, if any.
func (s State) IdvSelector() (sdk.IdvSelector, bool) {
	return s.selector, s.selector != nil
}

// Activation returns the pending activation handle, if any.
func (s State) Activation() (sdk.PendingActivation, bool) {
	return s.activation, s.activation != nil
}

// Failure returns the failure payload of a Failed state.
func (s State) Failure() (Failure, bool) {
	return s.failure, s.kind == Failed
}

// CodeSubmitted reports whether the user already submitted the IDV method or
// activation code for the current step.
func (s State) CodeSubmitted() bool { return s.submitted }

// DeclinedByUser reports a Declined state reached by refusing the terms
// rather than by the issuer.
func (s State) DeclinedByUser() bool { return s.kind == Declined && s.byUser }

func fromOutcome(o sdk.Outcome) State {
	switch o.Kind {
	case sdk.OutcomeCompleted:
		return State{kind: Completed, cardID: o.DigitalCardID}
	case sdk.OutcomeCompletedWithIdv:
		return State{kind: CompletedPendingIDV, cardID: o.DigitalCardID, selector: o.Selector}
	case sdk.OutcomeActivationRequired:
		return State{kind: ActivationRequired, cardID: o.DigitalCardID, activation: o.Activation}
	case sdk.OutcomeDeclined:
		return stateOf(Declined)
	case sdk.OutcomeCancelled:
		return stateOf(Cancelled)
	case sdk.OutcomeInvalidInput:
		return failed(FailureInvalidInput, messageOr(o.Message, "invalid input"))
	default:
		return failed(FailureService, messageOr(o.Message, "service error"))
	}
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
