package payengine

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"

	"github.com/mit-dci/hodl/hodl"
)

func subscribe(t *testing.T, l *Loopback) <-chan hodl.HTLCArrival {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := l.SubscribeHTLCs(ctx)
	require.NoError(t, err)
	return ch
}

func TestPayWithoutSubscriber(t *testing.T) {
	l := NewLoopback(7)
	_, err := l.Pay(context.Background(), lntypes.Hash{}, 1000, 1, nil)
	require.ErrorIs(t, err, ErrNoSubscriber)
}

func TestPaySplitsAmount(t *testing.T) {
	l := NewLoopback(7)
	ch := subscribe(t, l)

	refs, err := l.Pay(context.Background(), lntypes.Hash{1}, 1000, 3, nil)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	var sum uint64
	for i := 0; i < 3; i++ {
		a := <-ch
		require.Equal(t, refs[i], a.Ref)
		require.Equal(t, uint64(7), a.Ref.ChanID)
		require.EqualValues(t, 1000, a.TotalAmount)
		require.WithinDuration(t, time.Now().Add(DefaultHTLCLifetime), a.Deadline, time.Minute)
		sum += uint64(a.Amount)
	}
	require.Equal(t, uint64(1000), sum)

	_, err = l.Pay(context.Background(), lntypes.Hash{1}, 2, 3, nil)
	require.Error(t, err)
}

func TestClaimAndFail(t *testing.T) {
	l := NewLoopback(1)
	subscribe(t, l)
	ctx := context.Background()

	pre := lntypes.Preimage{9}
	refs, err := l.Pay(ctx, pre.Hash(), 1000, 2, nil)
	require.NoError(t, err)

	require.ErrorIs(t, l.ClaimHTLC(ctx, refs[0], lntypes.Preimage{8}), ErrWrongPreimage)
	require.NoError(t, l.ClaimHTLC(ctx, refs[0], pre))
	require.ErrorIs(t, l.ClaimHTLC(ctx, refs[0], pre), ErrHTLCResolved)
	require.ErrorIs(t, l.FailHTLC(ctx, refs[0]), ErrHTLCResolved)
	require.Equal(t, pre, *l.RevealedPreimage(refs[0]))

	require.NoError(t, l.FailHTLC(ctx, refs[1]))
	require.Nil(t, l.RevealedPreimage(refs[1]))

	s, err := l.Status(refs[1])
	require.NoError(t, err)
	require.Equal(t, HTLCFailed, s)

	claims, fails := l.Counts()
	require.Equal(t, 1, claims)
	require.Equal(t, 1, fails)
	require.ErrorIs(t, l.FailHTLC(ctx, refs[1]), ErrHTLCResolved)
}

func TestUnsubscribeOnCancel(t *testing.T) {
	l := NewLoopback(1)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := l.SubscribeHTLCs(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, l.Subscribers())

	cancel()
	require.Eventually(t, func() bool { return l.Subscribers() == 0 },
		time.Second, 5*time.Millisecond)
}
