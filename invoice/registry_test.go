package invoice

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/stretchr/testify/require"

	"github.com/mit-dci/hodl/eventbus"
	"github.com/mit-dci/hodl/lncore"
)

func newTestRegistry(t *testing.T, ebus *eventbus.EventBus) *Registry {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "invoices.db"), ebus)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func newTestInvoice(t *testing.T, hold bool) (*Invoice, lntypes.Preimage) {
	pre, err := NewPreimage()
	require.NoError(t, err)
	secret, err := NewPaymentSecret()
	require.NoError(t, err)
	return &Invoice{
		PaymentHash:   pre.Hash(),
		PaymentSecret: secret,
		Preimage:      &pre,
		Amount:        100000,
		Hold:          hold,
		CreatedAt:     time.Now(),
		Expiry:        time.Now().Add(time.Hour),
		State:         StatePending,
	}, pre
}

func TestRegistryAddLookup(t *testing.T) {
	r := newTestRegistry(t, nil)
	inv, pre := newTestInvoice(t, true)

	require.NoError(t, r.Add(inv))

	got, err := r.Lookup(inv.PaymentHash)
	require.NoError(t, err)
	require.Equal(t, StatePending, got.State)
	require.Equal(t, inv.PaymentHash, got.PaymentHash)
	require.Equal(t, pre, *got.Preimage)
	require.True(t, got.Hold)

	// Snapshots are independent of the stored record.
	got.State = StateSucceeded
	again, err := r.Lookup(inv.PaymentHash)
	require.NoError(t, err)
	require.Equal(t, StatePending, again.State)
}

func TestRegistryDuplicateHash(t *testing.T) {
	r := newTestRegistry(t, nil)
	inv, _ := newTestInvoice(t, true)

	require.NoError(t, r.Add(inv))
	err := r.Add(inv)
	require.ErrorIs(t, err, lncore.ErrInvoiceAlreadyExists)
}

func TestRegistryNotFound(t *testing.T) {
	r := newTestRegistry(t, nil)
	_, err := r.Lookup(lntypes.Hash{1})
	require.ErrorIs(t, err, lncore.ErrInvoiceNotFound)

	_, err = r.CompareAndSwap(lntypes.Hash{1}, []State{StatePending}, StateFailed, nil)
	require.ErrorIs(t, err, lncore.ErrInvoiceNotFound)
}

func TestCompareAndSwapHold(t *testing.T) {
	r := newTestRegistry(t, nil)
	inv, _ := newTestInvoice(t, true)
	require.NoError(t, r.Add(inv))

	// A hold invoice can't skip Held.
	_, err := r.CompareAndSwap(inv.PaymentHash, []State{StatePending}, StateSucceeded, nil)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, StatePending, te.Current)
	require.ErrorIs(t, err, lncore.ErrInvalidInvoiceState)

	held, err := r.CompareAndSwap(inv.PaymentHash, []State{StatePending}, StateHeld, func(i *Invoice) error {
		i.HTLCs = append(i.HTLCs, HeldHTLC{Ref: HTLCRef{1, 2}, Amount: 100000})
		i.AmountPaid = 100000
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, StateHeld, held.State)
	require.Len(t, held.HTLCs, 1)
	require.True(t, held.ResolvedAt.IsZero())

	var claimed []HeldHTLC
	done, err := r.CompareAndSwap(inv.PaymentHash, []State{StateHeld}, StateSucceeded, func(i *Invoice) error {
		claimed = i.HTLCs
		return nil
	})
	require.NoError(t, err)
	require.False(t, done.ResolvedAt.IsZero())

	// apply still sees the held set, the stored record doesn't.
	require.Len(t, claimed, 1)
	require.Empty(t, done.HTLCs)
	require.Equal(t, 1, done.ResolvedParts)
	stored, err := r.Lookup(inv.PaymentHash)
	require.NoError(t, err)
	require.Empty(t, stored.HTLCs)
	require.Equal(t, 1, stored.ResolvedParts)
	require.Equal(t, lnwire.MilliSatoshi(100000), stored.AmountPaid)

	// Nothing leaves a final state.
	_, err = r.CompareAndSwap(inv.PaymentHash, []State{StateSucceeded}, StateFailed, nil)
	require.ErrorIs(t, err, lncore.ErrInvalidInvoiceState)
}

func TestCompareAndSwapStandard(t *testing.T) {
	r := newTestRegistry(t, nil)
	inv, _ := newTestInvoice(t, false)
	require.NoError(t, r.Add(inv))

	_, err := r.CompareAndSwap(inv.PaymentHash, []State{StatePending}, StateHeld, nil)
	require.ErrorIs(t, err, lncore.ErrInvalidInvoiceState)

	got, err := r.CompareAndSwap(inv.PaymentHash, []State{StatePending}, StateSucceeded, nil)
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, got.State)
}

func TestCompareAndSwapApplyAborts(t *testing.T) {
	r := newTestRegistry(t, nil)
	inv, _ := newTestInvoice(t, true)
	require.NoError(t, r.Add(inv))

	boom := errors.New("nope")
	_, err := r.CompareAndSwap(inv.PaymentHash, []State{StatePending}, StateHeld, func(i *Invoice) error {
		i.Memo = "changed"
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := r.Lookup(inv.PaymentHash)
	require.NoError(t, err)
	require.Equal(t, StatePending, got.State)
	require.Empty(t, got.Memo)
}

func TestCompareAndSwapRace(t *testing.T) {
	r := newTestRegistry(t, nil)
	inv, _ := newTestInvoice(t, true)
	require.NoError(t, r.Add(inv))
	_, err := r.CompareAndSwap(inv.PaymentHash, []State{StatePending}, StateHeld, nil)
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := StateSucceeded
			if i%2 == 1 {
				next = StateFailed
			}
			_, errs[i] = r.CompareAndSwap(inv.PaymentHash, []State{StateHeld}, next, nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var te *TransitionError
		require.True(t, errors.As(err, &te))
		require.True(t, te.Current.IsTerminal())
	}
	require.Equal(t, 1, wins)
}

func TestRegistryEvents(t *testing.T) {
	ebus := eventbus.NewEventBus()
	var (
		seen    []string
		carried []*Invoice
	)
	ebus.RegisterHandler("invoice.added", func(e eventbus.Event) eventbus.EventHandleResult {
		seen = append(seen, "added")
		carried = append(carried, e.(InvoiceAddedEvent).Invoice)
		return eventbus.EHANDLE_OK
	})
	ebus.RegisterHandler("invoice.state", func(e eventbus.Event) eventbus.EventHandleResult {
		se := e.(InvoiceStateEvent)
		seen = append(seen, se.From.String()+">"+se.To.String())
		carried = append(carried, se.Invoice)
		return eventbus.EHANDLE_OK
	})

	r := newTestRegistry(t, ebus)
	inv, _ := newTestInvoice(t, true)
	require.NoError(t, r.Add(inv))
	failed, err := r.CompareAndSwap(inv.PaymentHash, []State{StatePending}, StateFailed, nil)
	require.NoError(t, err)

	// Subscribers get their own copies, so callers editing theirs don't
	// show through.
	require.Len(t, carried, 2)
	require.NotSame(t, inv, carried[0])
	require.NotSame(t, failed, carried[1])
	inv.Memo = "edited"
	failed.FailReason = "edited"
	require.Empty(t, carried[0].Memo)
	require.Equal(t, inv.PaymentHash, carried[0].PaymentHash)
	require.Equal(t, StateFailed, carried[1].State)
	require.Empty(t, carried[1].FailReason)

	// Refused swaps don't fire anything.
	_, err = r.CompareAndSwap(inv.PaymentHash, []State{StatePending}, StateFailed, nil)
	require.Error(t, err)

	require.Equal(t, []string{"added", "Pending>Failed"}, seen)
}

func TestUnresolved(t *testing.T) {
	r := newTestRegistry(t, nil)
	a, _ := newTestInvoice(t, true)
	b, _ := newTestInvoice(t, false)
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))
	_, err := r.CompareAndSwap(b.PaymentHash, []State{StatePending}, StateSucceeded, nil)
	require.NoError(t, err)

	open, err := r.Unresolved()
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, a.PaymentHash, open[0].PaymentHash)

	all, err := r.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
}
