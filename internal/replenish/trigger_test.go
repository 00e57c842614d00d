package replenish

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/tokenwallet/internal/logging"
	"github.com/congo-pay/tokenwallet/internal/sdk"
)

type fakeReplenisher struct {
	requested []string
	fail      map[string]bool
}

func (f *fakeReplenisher) RequestReplenishment(_ context.Context, id string) error {
	f.requested = append(f.requested, id)
	if f.fail[id] {
		return errors.New("network unavailable")
	}
	return nil
}

func TestOnRefreshRequestsOnlyActiveLowCards(t *testing.T) {
	r := &fakeReplenisher{}
	trig := NewTrigger(r, logging.Discard())

	n := trig.OnRefresh(context.Background(), []sdk.CardStatus{
		{DigitalCardID: "A", State: sdk.CardActive, NeedsReplenishment: true},
		{DigitalCardID: "B", State: sdk.CardActive},
		{DigitalCardID: "C", State: sdk.CardSuspended, NeedsReplenishment: true},
		{DigitalCardID: "D", State: sdk.CardInactive, NeedsReplenishment: true},
		{DigitalCardID: "E", State: sdk.CardActive, NeedsReplenishment: true},
	})

	require.Equal(t, 2, n)
	require.Equal(t, []string{"A", "E"}, r.requested)
}

func TestFailureIsSwallowedAndRetriedNextRefresh(t *testing.T) {
	r := &fakeReplenisher{fail: map[string]bool{"A": true}}
	trig := NewTrigger(r, logging.Discard())
	cards := []sdk.CardStatus{{DigitalCardID: "A", State: sdk.CardActive, NeedsReplenishment: true}}

	require.Zero(t, trig.OnRefresh(context.Background(), cards))

	delete(r.fail, "A")
	require.Equal(t, 1, trig.OnRefresh(context.Background(), cards))
	require.Equal(t, []string{"A", "A"}, r.requested)
}

func TestOnRefreshStopsWhenCancelled(t *testing.T) {
	r := &fakeReplenisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewTrigger(r, logging.Discard()).OnRefresh(ctx, []sdk.CardStatus{{DigitalCardID: "A", State: sdk.CardActive, NeedsReplenishment: true}})
	require.Zero(t, n)
	require.Empty(t, r.requested)
}
