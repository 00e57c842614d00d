package enrollment

import (
	"testing"

	"github.com/congo-pay/tokenwallet/internal/sdk"
	"github.com/congo-pay/tokenwallet/internal/sdk/sdktest"
)

func TestProjectWaitingStates(t *testing.T) {
	cases := map[Kind]string{
		WseCheckInProgress:         WaitingEligibility,
		EligibilityCheckInProgress: WaitingEligibility,
		DigitizationInProgress:     WaitingDigitization,
	}
	for kind, text := range cases {
		v := Project(stateOf(kind))
		if !v.Waiting || v.WaitingText != text {
			t.Fatalf("%s: expected waiting %q, got %+v", kind, text, v)
		}
		if v.LeaveScreen || v.Toast != nil {
			t.Fatalf("%s: waiting state must not leave the screen", kind)
		}
	}
}

func TestProjectTerminalStatesLeaveScreen(t *testing.T) {
	cases := []struct {
		state State
		toast ToastType
	}{
		{State{kind: Completed, cardID: "CARD-1"}, ToastSuccess},
		{State{kind: CompletedPendingIDV, cardID: "CARD-1"}, ToastInfo},
		{stateOf(Declined), ToastWarning},
		{stateOf(Cancelled), ToastWarning},
		{failed(FailureService, "issuer down"), ToastError},
		{failed(FailureInvalidInput, "bad expiry"), ToastWarning},
	}
	for _, tc := range cases {
		v := Project(tc.state)
		if !v.LeaveScreen {
			t.Fatalf("%s: expected leave screen", tc.state)
		}
		if v.Toast == nil || v.Toast.Type != tc.toast {
			t.Fatalf("%s: expected %s toast, got %+v", tc.state, tc.toast, v.Toast)
		}
	}
}

func TestProjectDeclinedNamesTheCause(t *testing.T) {
	issuer := Project(stateOf(Declined))
	if issuer.Toast.Description != "The issuer declined this card." {
		t.Fatalf("unexpected issuer decline toast %+v", issuer.Toast)
	}

	user := Project(State{kind: Declined, byUser: true})
	if user.Toast.Type != ToastInfo || user.Toast.Caption != "Enrollment stopped" {
		t.Fatalf("unexpected terms decline toast %+v", user.Toast)
	}
	if user.Toast.Description == issuer.Toast.Description {
		t.Fatal("terms decline must not blame the issuer")
	}
}

func TestProjectFailureUsesUnderlyingMessage(t *testing.T) {
	v := Project(failed(FailureService, "card not eligible"))
	if v.Toast.Description != "card not eligible" {
		t.Fatalf("expected failure message, got %q", v.Toast.Description)
	}
}

func TestProjectTermsAndIdv(t *testing.T) {
	v := Project(State{kind: TermsAndConditionsPending, terms: sdk.Terms{Token: "t", Text: "Terms body"}})
	if !v.ShowTerms || v.TermsText != "Terms body" {
		t.Fatalf("expected terms view, got %+v", v)
	}

	sel := sdktest.NewSelector(sdk.IdvMethod{ID: "sms-1", Channel: sdk.IdvSMS}, sdk.IdvMethod{ID: "email-1", Channel: sdk.IdvEmail})
	v = Project(State{kind: IdvSelectionInProgress, selector: sel})
	if len(v.IdvMethods) != 2 || v.Waiting {
		t.Fatalf("expected idv choices, got %+v", v)
	}

	v = Project(State{kind: IdvSelectionInProgress, selector: sel, submitted: true})
	if !v.Waiting || v.WaitingText != WaitingActivation {
		t.Fatalf("expected activation waiting text, got %+v", v)
	}
}
