package enrollment

import "errors"

var (
	// ErrAlreadyInProgress is returned when a session is still running.
	ErrAlreadyInProgress = errors.New("enrollment already in progress")
	// ErrPushTokenMissing is returned when no push token is available.
	ErrPushTokenMissing = errors.New("push token missing")
	// ErrInvalidStateTransition flags an operation called from the wrong state.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrInvalidCard is returned for malformed card input.
	ErrInvalidCard = errors.New("invalid card data")
	// ErrUnknownIdvMethod is returned for a method id the selector does not offer.
	ErrUnknownIdvMethod = errors.New("unknown idv method")
	// ErrInvalidActivationCode is returned for an empty activation code.
	ErrInvalidActivationCode = errors.New("invalid activation code")
)
