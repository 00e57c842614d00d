package enrollment

import (
	"fmt"

	"github.com/congo-pay/tokenwallet/internal/sdk"
)

// ToastType is the severity of a toast shown to the user.
type ToastType string

const (
	ToastInfo    ToastType = "info"
	ToastWarning ToastType = "warning"
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
)

const (
	WaitingEligibility  = "Enrollment started.\n Waiting for server to check card eligibility."
	WaitingDigitization = "Card digitization in progress."
	WaitingActivation   = "Card activation in progress."
)

// Toast is a transient message for the user.
type Toast struct {
	Type        ToastType
	Caption     string
	Description string
}

// View is what the enrollment screen renders for a State.
type View struct {
	State        string
	Waiting      bool
	WaitingText  string
	ShowTerms    bool
	TermsText    string
	IdvMethods   []sdk.IdvMethod
	AwaitingCode bool
	LeaveScreen  bool
	Toast        *Toast
}

// Project maps an orchestrator state onto the enrollment screen.
func Project(s State) View {
	v := View{State: s.kind.String()}

	switch s.kind {
	case WseCheckInProgress, EligibilityCheckInProgress:
		v.Waiting, v.WaitingText = true, WaitingEligibility
	case TermsAndConditionsPending:
		v.ShowTerms, v.TermsText = true, s.terms.Text
	case DigitizationInProgress:
		v.Waiting, v.WaitingText = true, WaitingDigitization
	case IdvSelectionInProgress:
		if s.submitted {
			v.Waiting, v.WaitingText = true, WaitingActivation
		} else if s.selector != nil {
			v.IdvMethods = s.selector.Methods()
		}
	case ActivationCodeSubmissionInProgress:
		if s.submitted {
			v.Waiting, v.WaitingText = true, WaitingActivation
		} else {
			v.AwaitingCode = true
		}
	case ActivationRequired:
		v.AwaitingCode = true
		v.Toast = &Toast{Type: ToastInfo, Caption: "Activation required", Description: "Enter the activation code sent by your bank."}
	case Completed:
		v.LeaveScreen = true
		v.Toast = &Toast{Type: ToastSuccess, Caption: "Card added", Description: fmt.Sprintf("Digital card %s is ready.", s.cardID)}
	case CompletedPendingIDV:
		// The follow-up verification is offered from the card list.
		v.LeaveScreen = true
		v.Toast = &Toast{Type: ToastInfo, Caption: "Verification required", Description: "Finish identity verification from your card list."}
	case Declined:
		v.LeaveScreen = true
		if s.byUser {
			v.Toast = &Toast{Type: ToastInfo, Caption: "Enrollment stopped", Description: "The terms and conditions were not accepted."}
		} else {
			v.Toast = &Toast{Type: ToastWarning, Caption: "Enrollment declined", Description: "The issuer declined this card."}
		}
	case Cancelled:
		v.LeaveScreen = true
		v.Toast = &Toast{Type: ToastWarning, Caption: "Enrollment cancelled"}
	case Failed:
		v.LeaveScreen = true
		caption, typ := "Enrollment failed", ToastError
		switch s.failure.Kind {
		case FailureInvalidInput:
			caption, typ = "Invalid input", ToastWarning
		case FailurePushTokenMissing:
			caption = "Missing push token"
		case FailureWse:
			caption = "Wallet setup failed"
		}
		v.Toast = &Toast{Type: typ, Caption: caption, Description: s.failure.Message}
	}
	return v
}
