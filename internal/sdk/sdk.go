// Package sdk declares the vendor tokenization SDK surface the wallet consumes.
// Everything behind these interfaces is owned by the vendor: wallet secure
// enrollment, eligibility, digitization, identity verification, activation,
// push registration and provisioning message processing.
package sdk

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups that have no matching record.
var ErrNotFound = errors.New("sdk: not found")

// WseState is the wallet secure enrollment status reported by the SDK.
type WseState int

const (
	WseCompleted WseState = iota
	WseNotRequired
	WseInProgress
	WseRequired
)

func (s WseState) String() string {
	switch s {
	case WseCompleted:
		return "completed"
	case WseNotRequired:
		return "not_required"
	case WseInProgress:
		return "in_progress"
	case WseRequired:
		return "required"
	default:
		return "unknown"
	}
}

// WalletSecureEnrollment performs device-level cryptographic provisioning.
type WalletSecureEnrollment interface {
	State(ctx context.Context) (WseState, error)
	// Start begins provisioning and invokes done exactly once with the result.
	Start(ctx context.Context, done func(error))
}

// Terms is the opaque terms-and-conditions token returned by eligibility.
type Terms struct {
	Token string
	Text  string
}

// EligibilityService checks whether an encrypted card can be digitized.
type EligibilityService interface {
	CheckEligibility(ctx context.Context, encryptedCard string) (Terms, error)
}

// OutcomeKind tags the asynchronous results of digitization, IDV selection and activation.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota + 1
	OutcomeCompletedWithIdv
	OutcomeActivationRequired
	OutcomeDeclined
	OutcomeCancelled
	OutcomeInvalidInput
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCompletedWithIdv:
		return "completed_with_idv"
	case OutcomeActivationRequired:
		return "activation_required"
	case OutcomeDeclined:
		return "declined"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeInvalidInput:
		return "invalid_input"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is a single result raised by the SDK on an outcome stream.
type Outcome struct {
	Kind          OutcomeKind
	DigitalCardID string
	Selector      IdvSelector
	Activation    PendingActivation
	Message       string
}

// Digitizer converts an eligible card into a digital card. The returned
// channel delivers outcomes in the order the SDK raised them.
type Digitizer interface {
	Digitize(ctx context.Context, terms Terms, pushToken, language string) (<-chan Outcome, error)
}

// IdvChannel is the contact channel of an identity verification method.
type IdvChannel string

const (
	IdvSMS             IdvChannel = "sms"
	IdvEmail           IdvChannel = "email"
	IdvCustomerService IdvChannel = "customer_service"
	IdvWeb             IdvChannel = "web"
	IdvAppToApp        IdvChannel = "app_to_app"
)

// IdvMethod is one selectable identity verification method.
type IdvMethod struct {
	ID      string
	Channel IdvChannel
	Value   string
}

// IdvSelector lets the user choose how the issuer verifies them.
type IdvSelector interface {
	Methods() []IdvMethod
	Select(ctx context.Context, methodID string) (<-chan Outcome, error)
}

// ActivationState is the sub-state of a pending activation.
type ActivationState int

const (
	ActivationIdvMethodNotSelected ActivationState = iota + 1
	ActivationOtpNeeded
	ActivationWeb3DSNeeded
	ActivationAborted
)

func (s ActivationState) String() string {
	switch s {
	case ActivationIdvMethodNotSelected:
		return "IDV_METHOD_NOT_SELECTED"
	case ActivationOtpNeeded:
		return "OTP_NEEDED"
	case ActivationWeb3DSNeeded:
		return "WEB_3DS_NEEDED"
	case ActivationAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// PendingActivation is an incomplete enrollment persisted by the SDK.
type PendingActivation interface {
	DigitalCardID() string
	State() ActivationState
	IdvSelector(ctx context.Context) (IdvSelector, error)
	Activate(ctx context.Context, code []byte) (<-chan Outcome, error)
}

// PendingActivationStore is the SDK's persisted store of pending activations.
type PendingActivationStore interface {
	PendingActivation(ctx context.Context, digitalCardID string) (PendingActivation, error)
	PendingActivations(ctx context.Context) ([]PendingActivation, error)
}

// PushTokenRegistrar registers the device push token with the provisioning backend.
type PushTokenRegistrar interface {
	UpdatePushToken(ctx context.Context, token string) error
}

// ServerMessage is the provisioning server message code carried by a cps push.
type ServerMessage string

const (
	ServerMessageReplenishKeys ServerMessage = "REQUEST_REPLENISH_KEYS"
	ServerMessageInstallCard   ServerMessage = "REQUEST_INSTALL_CARD"
	ServerMessageResumeCard    ServerMessage = "REQUEST_RESUME_CARD"
	ServerMessageSuspendCard   ServerMessage = "REQUEST_SUSPEND_CARD"
	ServerMessageDeleteCard    ServerMessage = "REQUEST_DELETE_CARD"
)

// ProcessResult describes what a processed provisioning message did.
type ProcessResult struct {
	Message       ServerMessage
	DigitalCardID string
}

// MessageProcessor consumes provisioning (cps) push payloads.
type MessageProcessor interface {
	ProcessIncomingMessage(ctx context.Context, payload map[string]string) (ProcessResult, error)
}

// Initializer reports whether the SDK finished its configuration.
type Initializer interface {
	Initialized() bool
}

// CardState is the lifecycle state of a digital card.
type CardState string

const (
	CardActive    CardState = "active"
	CardInactive  CardState = "inactive"
	CardSuspended CardState = "suspended"
	CardDeleted   CardState = "deleted"
)

// CardStatus is the SDK view of one digital card.
type CardStatus struct {
	DigitalCardID      string
	PanSuffix          string
	Expiry             string
	State              CardState
	NeedsReplenishment bool
	Default            bool
}

// CardLister enumerates digitized cards.
type CardLister interface {
	Cards(ctx context.Context) ([]CardStatus, error)
}

// Replenisher requests fresh single-use key material for a card.
type Replenisher interface {
	RequestReplenishment(ctx context.Context, digitalCardID string) error
}

// CardArtSource fetches the issuer's card background image.
type CardArtSource interface {
	CardArt(ctx context.Context, digitalCardID string) ([]byte, error)
}
