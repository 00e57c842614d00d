package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/tokenwallet/internal/config"
	"github.com/congo-pay/tokenwallet/internal/enrollment"
	"github.com/congo-pay/tokenwallet/internal/logging"
	"github.com/congo-pay/tokenwallet/internal/notification"
	"github.com/congo-pay/tokenwallet/internal/sdk"
)

func newTestApp(t *testing.T, flow string) *Context {
	t.Helper()
	cfg := config.Config{
		AppEnv:            "test",
		Language:          "en",
		WSEPollInterval:   time.Millisecond,
		PushRetryDelay:    10 * time.Millisecond,
		PushSendTimeout:   time.Second,
		ReplenishSchedule: "@every 1h",
		SimulatorFlow:     flow,
		SimulatorDelay:    time.Millisecond,
	}
	a, err := New(context.Background(), cfg, nil, nil, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(a.Close)
	require.NoError(t, a.Bridge.UpdateToken(context.Background(), "push-token-1"))
	return a
}

func waitKind(t *testing.T, orch *enrollment.Orchestrator, kind enrollment.Kind) {
	t.Helper()
	require.Eventually(t, func() bool { return orch.State().Kind() == kind }, 2*time.Second, time.Millisecond,
		"waiting for %s, state is %s", kind, orch.State())
}

func enrollCard(t *testing.T, a *Context) {
	t.Helper()
	ctx := context.Background()
	_, err := a.Orchestrator.Start(ctx, enrollment.CardInput{
		PAN:    []byte("4111111111111111"),
		Expiry: []byte("1227"),
		CVV:    []byte("123"),
	})
	require.NoError(t, err)
	waitKind(t, a.Orchestrator, enrollment.TermsAndConditionsPending)
	require.NoError(t, a.Orchestrator.AcceptTerms(ctx))
}

func TestGreenEnrollmentEndToEnd(t *testing.T) {
	a := newTestApp(t, "green")
	enrollCard(t, a)
	waitKind(t, a.Orchestrator, enrollment.Completed)

	require.Eventually(t, func() bool {
		for _, tok := range a.SDK.RegisteredTokens() {
			if tok == "push-token-1" {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	list, err := a.Cards.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, sdk.CardActive, list[0].State)
	require.True(t, list[0].HasArt)

	// The refresh asked for keys, so the next listing is replenished.
	list, err = a.Cards.Refresh(context.Background())
	require.NoError(t, err)
	require.False(t, list[0].NeedsReplenishment)
}

func TestOtpEnrollmentEndToEnd(t *testing.T) {
	a := newTestApp(t, "otp")
	enrollCard(t, a)
	waitKind(t, a.Orchestrator, enrollment.ActivationRequired)

	require.NoError(t, a.Orchestrator.SubmitActivationCode(context.Background(), []byte("123456")))
	waitKind(t, a.Orchestrator, enrollment.Completed)

	list, err := a.Cards.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.False(t, list[0].PendingActivation)
}

func TestResumeIdvActivation(t *testing.T) {
	a := newTestApp(t, "idv")
	enrollCard(t, a)
	waitKind(t, a.Orchestrator, enrollment.CompletedPendingIDV)

	cardID, ok := a.Orchestrator.State().DigitalCardID()
	require.True(t, ok)
	_, err := a.Activations.Resume(context.Background(), cardID)
	require.NoError(t, err)
	waitKind(t, a.Orchestrator, enrollment.IdvSelectionInProgress)

	require.NoError(t, a.Orchestrator.SelectIdvMethod(context.Background(), "sms-1"))
	waitKind(t, a.Orchestrator, enrollment.ActivationRequired)
	require.NoError(t, a.Orchestrator.SubmitActivationCode(context.Background(), []byte("000000")))
	waitKind(t, a.Orchestrator, enrollment.Completed)
}

func TestPushRoutingReachesHub(t *testing.T) {
	a := newTestApp(t, "green")
	signals, unsubscribe := a.Hub.Subscribe(4)
	defer unsubscribe()

	out := a.Router.Route(context.Background(), notification.Payload{"sender": "tns", "digitalCardId": "CARD-1"})
	require.Equal(t, notification.OutcomeTransactionHistory, out)

	select {
	case s := <-signals:
		require.Equal(t, notification.KindTransactionHistory, s.Kind)
		require.Equal(t, "CARD-1", s.DigitalCardID)
	case <-time.After(time.Second):
		t.Fatal("no signal delivered")
	}
}

func TestTransactionPushesLeaveEnrollmentAlone(t *testing.T) {
	a := newTestApp(t, "green")
	ctx := context.Background()
	signals, unsubscribe := a.Hub.Subscribe(8)
	defer unsubscribe()

	sess, err := a.Orchestrator.Start(ctx, enrollment.CardInput{
		PAN:    []byte("4111111111111111"),
		Expiry: []byte("1227"),
		CVV:    []byte("123"),
	})
	require.NoError(t, err)
	waitKind(t, a.Orchestrator, enrollment.TermsAndConditionsPending)

	for i := 0; i < 2; i++ {
		out := a.Router.Route(ctx, notification.Payload{"sender": "tns", "digitalCardId": "X"})
		require.Equal(t, notification.OutcomeTransactionHistory, out)
		select {
		case s := <-signals:
			require.Equal(t, notification.KindTransactionHistory, s.Kind)
			require.Equal(t, "X", s.DigitalCardID)
		case <-time.After(time.Second):
			t.Fatalf("signal %d not delivered", i+1)
		}
	}

	require.Equal(t, notification.OutcomeDropped, a.Router.Route(ctx, notification.Payload{"digitalCardId": "X"}))
	require.Equal(t, enrollment.TermsAndConditionsPending, a.Orchestrator.State().Kind())
	require.Same(t, sess, a.Orchestrator.Current())
	select {
	case s := <-signals:
		t.Fatalf("unexpected signal %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}
