package invoice

import (
	"github.com/mit-dci/hodl/eventbus"
	"github.com/mit-dci/hodl/logging"
)

// InvoiceAddedEvent is fired after a new invoice is stored.
type InvoiceAddedEvent struct {
	Invoice *Invoice
}

// Name .
func (e InvoiceAddedEvent) Name() string {
	return "invoice.added"
}

// Flags .
func (e InvoiceAddedEvent) Flags() uint8 {
	return eventbus.EFLAG_UNCANCELLABLE
}

// InvoiceStateEvent is fired after a state change has been committed.
type InvoiceStateEvent struct {
	Invoice *Invoice
	From    State
	To      State
}

// Name .
func (e InvoiceStateEvent) Name() string {
	return "invoice.state"
}

// Flags .
func (e InvoiceStateEvent) Flags() uint8 {
	return eventbus.EFLAG_UNCANCELLABLE
}

// eventCopy hands subscribers their own invoice, apart from the one the
// caller got back.
func eventCopy(inv *Invoice) *Invoice {
	c, err := inv.Copy()
	if err != nil {
		logging.Warnf("invoice: copying %s for event: %s\n", inv.PaymentHash, err.Error())
		return inv
	}
	return c
}

func (r *Registry) publish(e eventbus.Event) {
	if r.ebus == nil {
		return
	}
	_, err := r.ebus.Publish(e)
	if err != nil {
		logging.Warnf("invoice: publishing %s: %s\n", e.Name(), err.Error())
	}
}
