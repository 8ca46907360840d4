package hodl

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/lntypes"

	"github.com/mit-dci/hodl/invoice"
	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/logging"
)

// Coordinator settles and cancels hold invoices.  Every call is safe to race
// with any other for the same hash: the registry's compare-and-swap picks
// one winner, and only the winner talks to the engine.
type Coordinator struct {
	reg    *invoice.Registry
	engine PaymentEngine

	// interceptor, if set, gets its uncommitted parts for a hash failed on
	// cancel.
	interceptor *Interceptor
}

// NewCoordinator .  interceptor may be nil.
func NewCoordinator(reg *invoice.Registry, engine PaymentEngine, interceptor *Interceptor) *Coordinator {
	return &Coordinator{
		reg:         reg,
		engine:      engine,
		interceptor: interceptor,
	}
}

// Settle claims every held HTLC for hash with preimage.  The preimage is
// checked before anything else and a wrong one changes nothing.  If someone
// else already settled a hold invoice this returns nil without claiming
// again.  Standard invoices settle themselves and are refused here.
func (c *Coordinator) Settle(ctx context.Context, hash lntypes.Hash, preimage lntypes.Preimage) error {

	cur, err := c.reg.Lookup(hash)
	if err != nil {
		return err
	}

	if !preimage.Matches(hash) {
		return fmt.Errorf("%w: preimage hashes to %s, not %s",
			lncore.ErrInvalidPreimage, preimage.Hash(), hash)
	}

	var held []invoice.HeldHTLC
	_, err = c.reg.CompareAndSwap(hash, []invoice.State{invoice.StateHeld}, invoice.StateSucceeded,
		func(inv *invoice.Invoice) error {
			held = inv.HTLCs
			inv.Preimage = &preimage
			return nil
		})

	var te *invoice.TransitionError
	if errors.As(err, &te) && te.Current == invoice.StateSucceeded && cur.Hold {
		logging.Infof("hodl: %s already settled\n", hash)
		return nil
	}
	if err != nil {
		return err
	}

	logging.Infof("hodl: settled %s, claiming %d htlcs\n", hash, len(held))
	err = claimAll(ctx, c.engine, held, preimage)
	if err != nil {
		return fmt.Errorf("invoice %s settled but claims failed: %w", hash, err)
	}
	return nil
}

// Cancel fails every HTLC for hash without revealing anything.  Cancelling
// an already failed invoice returns nil.
func (c *Coordinator) Cancel(ctx context.Context, hash lntypes.Hash) error {
	return c.fail(ctx, hash, "cancelled")
}

// fail moves the invoice to Failed and fails what it was holding.
func (c *Coordinator) fail(ctx context.Context, hash lntypes.Hash, reason string) error {

	var held []invoice.HeldHTLC
	_, err := c.reg.CompareAndSwap(hash,
		[]invoice.State{invoice.StatePending, invoice.StateHeld}, invoice.StateFailed,
		func(inv *invoice.Invoice) error {
			held = inv.HTLCs
			inv.FailReason = reason
			return nil
		})

	var te *invoice.TransitionError
	if errors.As(err, &te) && te.Current == invoice.StateFailed {
		logging.Infof("hodl: %s already failed\n", hash)
		return nil
	}
	if err != nil {
		return err
	}

	var errs []error
	if len(held) > 0 {
		logging.Infof("hodl: %s %s, failing %d htlcs\n", hash, reason, len(held))
		errs = append(errs, failAll(ctx, c.engine, held))
	}
	if c.interceptor != nil {
		errs = append(errs, c.interceptor.FailPartials(ctx, hash))
	}

	err = errors.Join(errs...)
	if err != nil {
		return fmt.Errorf("invoice %s failed but htlcs weren't all released: %w", hash, err)
	}
	return nil
}
