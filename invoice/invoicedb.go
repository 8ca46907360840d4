package invoice

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"github.com/lightningnetwork/lnd/lntypes"

	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/logging"
)

// const strings for db usage
var (
	// BKTInvoices maps payment hash to the JSON invoice record.
	BKTInvoices = []byte("Invoices")
)

// InitDB opens the database and makes sure the buckets are there.
func (r *Registry) InitDB(dbPath string) error {
	var err error

	r.InvoiceDB, err = bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return err
	}

	err = r.InvoiceDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(BKTInvoices)
		return err
	})
	if err != nil {
		r.InvoiceDB.Close()
		return err
	}

	return nil
}

func getInvoice(b *bolt.Bucket, hash lntypes.Hash) (*Invoice, error) {
	raw := b.Get(hash[:])
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", lncore.ErrInvoiceNotFound, hash)
	}

	var inv Invoice
	err := json.Unmarshal(raw, &inv)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: corrupt record: %w", hash, err)
	}
	return &inv, nil
}

func putInvoice(b *bolt.Bucket, inv *Invoice) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return b.Put(inv.PaymentHash[:], raw)
}

// Add stores a new invoice.  It has to be Pending and its hash unused.
func (r *Registry) Add(inv *Invoice) error {

	if inv.State != StatePending {
		return fmt.Errorf("%w: new invoice must be %s, not %s",
			lncore.ErrInvalidInvoiceState, StatePending, inv.State)
	}

	err := r.InvoiceDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BKTInvoices)

		if b.Get(inv.PaymentHash[:]) != nil {
			return fmt.Errorf("%w: %s", lncore.ErrInvoiceAlreadyExists, inv.PaymentHash)
		}

		return putInvoice(b, inv)
	})
	if err != nil {
		return err
	}

	logging.Infof("invoice: added %s (hold %v, %s)\n", inv.PaymentHash, inv.Hold, inv.Amount)
	getMetrics().transitions.WithLabelValues("", StatePending.String()).Inc()

	r.publish(InvoiceAddedEvent{Invoice: eventCopy(inv)})
	return nil
}

// Lookup gets a copy of the invoice for hash.
func (r *Registry) Lookup(hash lntypes.Hash) (*Invoice, error) {
	var inv *Invoice
	err := r.InvoiceDB.View(func(tx *bolt.Tx) error {
		var err2 error
		inv, err2 = getInvoice(tx.Bucket(BKTInvoices), hash)
		return err2
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// CompareAndSwap moves the invoice for hash to next, as long as it's
// currently in one of from and the move is in the table for its kind.  apply,
// if not nil, can edit the record on the way and abort by returning an error.
// Check and write happen in one transaction, so of two racing callers only
// one wins; the loser gets a *TransitionError with the state it lost to.
//
// Leaving Held drops the held set, keeping only its size in ResolvedParts.
//
// Returns the invoice as stored.
func (r *Registry) CompareAndSwap(hash lntypes.Hash, from []State, next State,
	apply func(*Invoice) error) (*Invoice, error) {

	var (
		inv  *Invoice
		prev State
	)

	err := r.InvoiceDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(BKTInvoices)

		var err2 error
		inv, err2 = getInvoice(b, hash)
		if err2 != nil {
			return err2
		}
		prev = inv.State

		if !stateIn(prev, from) || !CanTransition(inv.Hold, prev, next) {
			return &TransitionError{Hash: hash, Current: prev, Wanted: next}
		}

		if apply != nil {
			err2 = apply(inv)
			if err2 != nil {
				return err2
			}
		}

		// Only Held invoices keep a held set.  apply has to take what it needs
		// from inv.HTLCs before it's dropped here.
		if next != StateHeld && len(inv.HTLCs) > 0 {
			inv.ResolvedParts = len(inv.HTLCs)
			inv.HTLCs = nil
		}

		inv.State = next
		if next.IsTerminal() {
			inv.ResolvedAt = r.Now()
		}

		return putInvoice(b, inv)
	})
	if err != nil {
		return nil, err
	}

	logging.Infof("invoice: %s %s -> %s\n", hash, prev, next)
	getMetrics().transitions.WithLabelValues(prev.String(), next.String()).Inc()

	r.publish(InvoiceStateEvent{Invoice: eventCopy(inv), From: prev, To: next})
	return inv, nil
}

func stateIn(s State, set []State) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

// ForEach calls f on a copy of every invoice.  Returning an error from f stops
// the walk.
func (r *Registry) ForEach(f func(*Invoice) error) error {
	return r.InvoiceDB.View(func(tx *bolt.Tx) error {
		return tx.Bucket(BKTInvoices).ForEach(func(k, v []byte) error {
			var inv Invoice
			err := json.Unmarshal(v, &inv)
			if err != nil {
				logging.Warnf("invoice: skipping corrupt record %x: %s\n", k, err.Error())
				return nil
			}
			return f(&inv)
		})
	})
}

// Unresolved lists every invoice that is still Pending or Held.
func (r *Registry) Unresolved() ([]*Invoice, error) {
	var out []*Invoice
	err := r.ForEach(func(inv *Invoice) error {
		if !inv.State.IsTerminal() {
			out = append(out, inv)
		}
		return nil
	})
	return out, err
}

// List returns all invoices.
func (r *Registry) List() ([]*Invoice, error) {
	var out []*Invoice
	err := r.ForEach(func(inv *Invoice) error {
		out = append(out, inv)
		return nil
	})
	return out, err
}
