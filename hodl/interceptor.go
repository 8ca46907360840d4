package hodl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/mit-dci/hodl/invoice"
	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/logging"
)

// DefaultMPPTimeout is how long an incomplete multi-part payment waits for
// the rest of its parts.
const DefaultMPPTimeout = 2 * time.Minute

// partialSet is parts of a payment that don't add up yet.  Nothing about it
// is stored.
type partialSet struct {
	htlcs []invoice.HeldHTLC
	sum   lnwire.MilliSatoshi
	first time.Time
}

func (p *partialSet) has(ref invoice.HTLCRef) bool {
	for _, h := range p.htlcs {
		if h.Ref == ref {
			return true
		}
	}
	return false
}

// Interceptor handles HTLC arrivals.  Hold invoices get their parts
// collected and held once they cover the amount.  Standard invoices get
// claimed straight away.  Anything else is failed back.
type Interceptor struct {
	reg    *invoice.Registry
	engine PaymentEngine

	MPPTimeout time.Duration

	mtx      sync.Mutex
	partials map[lntypes.Hash]*partialSet
}

// NewInterceptor .
func NewInterceptor(reg *invoice.Registry, engine PaymentEngine) *Interceptor {
	return &Interceptor{
		reg:        reg,
		engine:     engine,
		MPPTimeout: DefaultMPPTimeout,
		partials:   map[lntypes.Hash]*partialSet{},
	}
}

// Run handles arrivals until ctx is done or the engine closes the stream.
func (i *Interceptor) Run(ctx context.Context) error {
	arrivals, err := i.engine.SubscribeHTLCs(ctx)
	if err != nil {
		return fmt.Errorf("subscribe htlcs: %w", err)
	}

	logging.Infof("hodl: interceptor running\n")
	for {
		select {
		case a, ok := <-arrivals:
			if !ok {
				logging.Infof("hodl: htlc stream closed\n")
				return nil
			}
			err := i.HandleArrival(ctx, a)
			if err != nil {
				logging.Errorf("hodl: htlc %s for %s: %s\n", a.Ref, a.PaymentHash, err.Error())
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HandleArrival decides what to do with one HTLC.
func (i *Interceptor) HandleArrival(ctx context.Context, a HTLCArrival) error {

	log := logging.WithField("hash", a.PaymentHash.String())
	log.Debugf("htlc %s arrived, %s", a.Ref, a.Amount)

	inv, err := i.reg.Lookup(a.PaymentHash)
	if errors.Is(err, lncore.ErrInvoiceNotFound) {
		log.Infof("no invoice, failing htlc %s", a.Ref)
		return i.engine.FailHTLC(ctx, a.Ref)
	}
	if err != nil {
		return errors.Join(err, i.engine.FailHTLC(ctx, a.Ref))
	}

	now := i.reg.Now()
	switch {
	case inv.State != invoice.StatePending:
		// Late or extra part.  The set that counts is already decided.
		log.Infof("invoice is %s, failing htlc %s", inv.State, a.Ref)
		return i.engine.FailHTLC(ctx, a.Ref)

	case inv.Expired(now):
		log.Infof("invoice expired, failing htlc %s", a.Ref)
		return i.engine.FailHTLC(ctx, a.Ref)

	case a.PaymentSecret != nil && *a.PaymentSecret != inv.PaymentSecret:
		log.Warnf("payment secret mismatch, failing htlc %s", a.Ref)
		return i.engine.FailHTLC(ctx, a.Ref)
	}

	set := i.accumulate(inv, a, now)
	if set == nil {
		return nil
	}

	if inv.Hold {
		return i.hold(ctx, inv.PaymentHash, set)
	}
	return i.autoSettle(ctx, inv.PaymentHash, set)
}

// accumulate adds a to the hash's partial set.  If that completes it, the set
// is taken out and returned.
func (i *Interceptor) accumulate(inv *invoice.Invoice, a HTLCArrival, now time.Time) *partialSet {
	i.mtx.Lock()
	defer i.mtx.Unlock()

	ps, ok := i.partials[a.PaymentHash]
	if !ok {
		ps = &partialSet{first: now}
		i.partials[a.PaymentHash] = ps
	}
	if ps.has(a.Ref) {
		return nil
	}

	ps.htlcs = append(ps.htlcs, invoice.HeldHTLC{
		Ref:       a.Ref,
		Amount:    a.Amount,
		Deadline:  a.Deadline,
		ArrivedAt: now,
	})
	ps.sum += a.Amount

	required := inv.Amount
	if required == 0 {
		required = a.TotalAmount
	}
	if ps.sum < required {
		logging.Debugf("hodl: %s has %s of %s in %d parts\n",
			a.PaymentHash, ps.sum, required, len(ps.htlcs))
		return nil
	}

	delete(i.partials, a.PaymentHash)
	return ps
}

func (i *Interceptor) hold(ctx context.Context, hash lntypes.Hash, set *partialSet) error {
	_, err := i.reg.CompareAndSwap(hash, []invoice.State{invoice.StatePending}, invoice.StateHeld,
		func(inv *invoice.Invoice) error {
			inv.HTLCs = set.htlcs
			inv.AmountPaid = set.sum
			return nil
		})
	if err != nil {
		// Cancelled or expired while the parts were coming in.
		return errors.Join(err, i.failAll(ctx, set.htlcs))
	}

	logging.Infof("hodl: holding %s, %d htlcs for %s\n", hash, len(set.htlcs), set.sum)
	return nil
}

func (i *Interceptor) autoSettle(ctx context.Context, hash lntypes.Hash, set *partialSet) error {
	inv, err := i.reg.CompareAndSwap(hash, []invoice.State{invoice.StatePending}, invoice.StateSucceeded,
		func(inv *invoice.Invoice) error {
			if inv.Preimage == nil {
				return fmt.Errorf("invoice %s has no preimage to claim with", hash)
			}
			inv.AmountPaid = set.sum
			inv.ResolvedParts = len(set.htlcs)
			return nil
		})
	if err != nil {
		return errors.Join(err, i.failAll(ctx, set.htlcs))
	}

	logging.Infof("hodl: claiming %s, %d htlcs for %s\n", hash, len(set.htlcs), set.sum)
	return claimAll(ctx, i.engine, set.htlcs, *inv.Preimage)
}

func (i *Interceptor) failAll(ctx context.Context, htlcs []invoice.HeldHTLC) error {
	return failAll(ctx, i.engine, htlcs)
}

// FailPartials fails back any uncommitted parts for hash.
func (i *Interceptor) FailPartials(ctx context.Context, hash lntypes.Hash) error {
	i.mtx.Lock()
	ps, ok := i.partials[hash]
	delete(i.partials, hash)
	i.mtx.Unlock()

	if !ok {
		return nil
	}
	logging.Infof("hodl: failing %d uncommitted parts for %s\n", len(ps.htlcs), hash)
	return i.failAll(ctx, ps.htlcs)
}

// ExpirePartials fails sets that have waited longer than MPPTimeout, and
// sets whose invoice stopped being Pending.  Returns how many sets went.
func (i *Interceptor) ExpirePartials(ctx context.Context, now time.Time) int {
	i.mtx.Lock()
	var hashes []lntypes.Hash
	for h, ps := range i.partials {
		if now.Sub(ps.first) > i.MPPTimeout {
			hashes = append(hashes, h)
			continue
		}
		inv, err := i.reg.Lookup(h)
		if err != nil || inv.State != invoice.StatePending || inv.Expired(now) {
			hashes = append(hashes, h)
		}
	}
	i.mtx.Unlock()

	for _, h := range hashes {
		err := i.FailPartials(ctx, h)
		if err != nil {
			logging.Errorf("hodl: failing partial set %s: %s\n", h, err.Error())
		}
	}
	return len(hashes)
}

// PendingParts is how many uncommitted parts are waiting for hash.
func (i *Interceptor) PendingParts(hash lntypes.Hash) int {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	if ps, ok := i.partials[hash]; ok {
		return len(ps.htlcs)
	}
	return 0
}

func claimAll(ctx context.Context, engine PaymentEngine, htlcs []invoice.HeldHTLC, pre lntypes.Preimage) error {
	var errs []error
	for _, h := range htlcs {
		err := engine.ClaimHTLC(ctx, h.Ref, pre)
		if err != nil {
			errs = append(errs, fmt.Errorf("claim %s: %w", h.Ref, err))
		}
	}
	return errors.Join(errs...)
}

func failAll(ctx context.Context, engine PaymentEngine, htlcs []invoice.HeldHTLC) error {
	var errs []error
	for _, h := range htlcs {
		err := engine.FailHTLC(ctx, h.Ref)
		if err != nil {
			errs = append(errs, fmt.Errorf("fail %s: %w", h.Ref, err))
		}
	}
	return errors.Join(errs...)
}
