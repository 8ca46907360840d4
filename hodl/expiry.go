package hodl

import (
	"context"
	"errors"
	"time"

	"github.com/mit-dci/hodl/invoice"
	"github.com/mit-dci/hodl/logging"
)

const (
	// DefaultScanInterval is how often the expiry scan runs.
	DefaultScanInterval = 10 * time.Second

	// DefaultDeadlineSafety is how close to an HTLC's deadline we let a
	// held invoice get before failing it.
	DefaultDeadlineSafety = 30 * time.Minute
)

// Expirer periodically fails invoices that ran out of time.  One scan
// covers every open invoice.
type Expirer struct {
	reg         *invoice.Registry
	coordinator *Coordinator
	interceptor *Interceptor

	Interval       time.Duration
	DeadlineSafety time.Duration
}

// NewExpirer .  interceptor may be nil, then partial sets aren't looked at.
func NewExpirer(reg *invoice.Registry, c *Coordinator, i *Interceptor) *Expirer {
	return &Expirer{
		reg:            reg,
		coordinator:    c,
		interceptor:    i,
		Interval:       DefaultScanInterval,
		DeadlineSafety: DefaultDeadlineSafety,
	}
}

// Run scans every Interval until ctx is done.
func (e *Expirer) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, err := e.Scan(ctx)
			if err != nil {
				logging.Errorf("hodl: expiry scan: %s\n", err.Error())
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Scan fails every open invoice past its expiry, and every held invoice
// whose earliest HTLC deadline is within DeadlineSafety.  Returns how many
// invoices it failed.
func (e *Expirer) Scan(ctx context.Context) (int, error) {
	now := e.reg.Now()

	open, err := e.reg.Unresolved()
	if err != nil {
		return 0, err
	}

	n := 0
	var errs []error
	for _, inv := range open {
		reason := e.expiryReason(inv, now)
		if reason == "" {
			continue
		}

		err := e.coordinator.fail(ctx, inv.PaymentHash, reason)
		var te *invoice.TransitionError
		if errors.As(err, &te) {
			// Settled under us, nothing to do.
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}

	if e.interceptor != nil {
		if p := e.interceptor.ExpirePartials(ctx, now); p > 0 {
			logging.Infof("hodl: failed %d stale partial payments\n", p)
		}
	}

	return n, errors.Join(errs...)
}

func (e *Expirer) expiryReason(inv *invoice.Invoice, now time.Time) string {
	if inv.Expired(now) {
		return "expired"
	}
	if inv.State == invoice.StateHeld {
		d := inv.EarliestDeadline()
		if !d.IsZero() && now.Add(e.DeadlineSafety).After(d) {
			return "htlc deadline"
		}
	}
	return ""
}
