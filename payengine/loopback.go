// Package payengine has an in-process payment engine.  HTLCs are made up
// locally by Pay instead of arriving over channels, which is enough to drive
// the invoice logic end to end on regtest and in tests.
package payengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/mit-dci/hodl/hodl"
	"github.com/mit-dci/hodl/invoice"
	"github.com/mit-dci/hodl/logging"
)

// DefaultHTLCLifetime is the deadline given to made up HTLCs.
const DefaultHTLCLifetime = 24 * time.Hour

// HTLCStatus is what happened to an HTLC.
type HTLCStatus uint8

const (
	HTLCInFlight HTLCStatus = iota
	HTLCClaimed
	HTLCFailed
)

func (s HTLCStatus) String() string {
	switch s {
	case HTLCInFlight:
		return "in-flight"
	case HTLCClaimed:
		return "claimed"
	case HTLCFailed:
		return "failed"
	}
	return "unknown"
}

var (
	ErrUnknownHTLC   = errors.New("unknown htlc")
	ErrHTLCResolved  = errors.New("htlc already resolved")
	ErrWrongPreimage = errors.New("preimage doesn't match htlc")
	ErrNoSubscriber  = errors.New("nobody is listening for htlcs")
)

type htlc struct {
	hash     lntypes.Hash
	amount   lnwire.MilliSatoshi
	status   HTLCStatus
	preimage *lntypes.Preimage
}

// Loopback is a PaymentEngine with no channels behind it.
type Loopback struct {
	// ChanID is put on every HTLC ref it makes.
	ChanID uint64

	HTLCLifetime time.Duration

	mtx     sync.Mutex
	subs    map[int]chan hodl.HTLCArrival
	nextSub int
	nextID  uint64
	htlcs   map[invoice.HTLCRef]*htlc
	claims  int
	fails   int
}

var _ hodl.PaymentEngine = (*Loopback)(nil)

// NewLoopback .
func NewLoopback(chanID uint64) *Loopback {
	return &Loopback{
		ChanID:       chanID,
		HTLCLifetime: DefaultHTLCLifetime,
		subs:         map[int]chan hodl.HTLCArrival{},
		htlcs:        map[invoice.HTLCRef]*htlc{},
	}
}

// SubscribeHTLCs .
func (l *Loopback) SubscribeHTLCs(ctx context.Context) (<-chan hodl.HTLCArrival, error) {
	ch := make(chan hodl.HTLCArrival, 64)

	l.mtx.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mtx.Unlock()

	// ch is left open, a Pay racing with this could still send on it.
	go func() {
		<-ctx.Done()
		l.mtx.Lock()
		delete(l.subs, id)
		l.mtx.Unlock()
	}()

	return ch, nil
}

// Pay sends amount to hash split into parts HTLCs.
func (l *Loopback) Pay(ctx context.Context, hash lntypes.Hash, amount lnwire.MilliSatoshi,
	parts int, secret *[32]byte) ([]invoice.HTLCRef, error) {

	if parts < 1 {
		parts = 1
	}
	if uint64(amount) < uint64(parts) {
		return nil, fmt.Errorf("can't split %s into %d parts", amount, parts)
	}

	each := amount / lnwire.MilliSatoshi(parts)
	refs := make([]invoice.HTLCRef, 0, parts)
	for i := 0; i < parts; i++ {
		amt := each
		if i == parts-1 {
			amt = amount - each*lnwire.MilliSatoshi(parts-1)
		}
		ref, err := l.PayPart(ctx, hash, amt, amount, secret)
		if err != nil {
			return refs, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// PayPart sends a single HTLC.  total is the multi-part total to declare.
func (l *Loopback) PayPart(ctx context.Context, hash lntypes.Hash, amount, total lnwire.MilliSatoshi,
	secret *[32]byte) (invoice.HTLCRef, error) {

	l.mtx.Lock()
	if len(l.subs) == 0 {
		l.mtx.Unlock()
		return invoice.HTLCRef{}, ErrNoSubscriber
	}
	l.nextID++
	ref := invoice.HTLCRef{ChanID: l.ChanID, HtlcID: l.nextID}
	l.htlcs[ref] = &htlc{hash: hash, amount: amount}
	subs := make([]chan hodl.HTLCArrival, 0, len(l.subs))
	for _, ch := range l.subs {
		subs = append(subs, ch)
	}
	l.mtx.Unlock()

	a := hodl.HTLCArrival{
		PaymentHash:   hash,
		Ref:           ref,
		Amount:        amount,
		TotalAmount:   total,
		PaymentSecret: secret,
		Deadline:      time.Now().Add(l.HTLCLifetime),
	}

	logging.Debugf("payengine: htlc %s for %s, %s\n", ref, hash, amount)
	for _, ch := range subs {
		select {
		case ch <- a:
		case <-ctx.Done():
			return ref, ctx.Err()
		}
	}
	return ref, nil
}

// ClaimHTLC .
func (l *Loopback) ClaimHTLC(ctx context.Context, ref invoice.HTLCRef, preimage lntypes.Preimage) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	h, ok := l.htlcs[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHTLC, ref)
	}
	if h.status != HTLCInFlight {
		return fmt.Errorf("%w: %s is %s", ErrHTLCResolved, ref, h.status)
	}
	if !preimage.Matches(h.hash) {
		return fmt.Errorf("%w: %s", ErrWrongPreimage, ref)
	}

	h.status = HTLCClaimed
	h.preimage = &preimage
	l.claims++
	logging.Debugf("payengine: claimed %s\n", ref)
	return nil
}

// FailHTLC .
func (l *Loopback) FailHTLC(ctx context.Context, ref invoice.HTLCRef) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	h, ok := l.htlcs[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHTLC, ref)
	}
	if h.status != HTLCInFlight {
		return fmt.Errorf("%w: %s is %s", ErrHTLCResolved, ref, h.status)
	}

	h.status = HTLCFailed
	l.fails++
	logging.Debugf("payengine: failed %s\n", ref)
	return nil
}

// Status of one HTLC.
func (l *Loopback) Status(ref invoice.HTLCRef) (HTLCStatus, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	h, ok := l.htlcs[ref]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownHTLC, ref)
	}
	return h.status, nil
}

// Subscribers is how many arrival streams are open.
func (l *Loopback) Subscribers() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return len(l.subs)
}

// Counts returns the number of claim and fail calls that went through.
func (l *Loopback) Counts() (claims, fails int) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.claims, l.fails
}

// RevealedPreimage is the preimage the HTLC was claimed with, if any.
func (l *Loopback) RevealedPreimage(ref invoice.HTLCRef) *lntypes.Preimage {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if h, ok := l.htlcs[ref]; ok {
		return h.preimage
	}
	return nil
}
