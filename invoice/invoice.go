package invoice

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/getlantern/deepcopy"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
)

// HTLCRef identifies one incoming HTLC at the payment engine.
type HTLCRef struct {
	ChanID uint64 `json:"chan_id"`
	HtlcID uint64 `json:"htlc_id"`
}

func (r HTLCRef) String() string {
	return fmt.Sprintf("%d:%d", r.ChanID, r.HtlcID)
}

// HeldHTLC is one part of a payment that we're sitting on.
type HeldHTLC struct {
	Ref    HTLCRef             `json:"ref"`
	Amount lnwire.MilliSatoshi `json:"amount_msat"`

	// Deadline is when the HTLC times out on chain.  It has to be settled
	// or failed before then.
	Deadline time.Time `json:"deadline"`

	ArrivedAt time.Time `json:"arrived_at"`
}

// Invoice is everything stored for one payment hash.
type Invoice struct {
	PaymentHash   lntypes.Hash `json:"payment_hash"`
	PaymentSecret [32]byte     `json:"payment_secret"`

	// Preimage is nil if the invoice was created from a hash and nobody
	// has settled it yet.
	Preimage *lntypes.Preimage `json:"preimage,omitempty"`

	// Amount of zero means any amount is accepted.
	Amount lnwire.MilliSatoshi `json:"amount_msat"`

	// Hold invoices wait in Held for a settle or cancel.  The rest are
	// claimed as soon as they're paid.
	Hold bool `json:"hold"`

	Memo           string `json:"memo,omitempty"`
	PaymentRequest string `json:"payment_request"`

	CreatedAt time.Time `json:"created_at"`
	Expiry    time.Time `json:"expiry"`

	State State `json:"state"`

	// HTLCs is the held set, empty in every state but Held.
	HTLCs      []HeldHTLC          `json:"htlcs,omitempty"`
	AmountPaid lnwire.MilliSatoshi `json:"amount_paid_msat"`

	// ResolvedParts is how many HTLCs were claimed or failed when the
	// invoice was resolved.
	ResolvedParts int `json:"resolved_parts,omitempty"`

	ResolvedAt time.Time `json:"resolved_at,omitempty"`
	FailReason string    `json:"fail_reason,omitempty"`
}

// Copy gives back a deep copy.  Event subscribers get one so they can't
// scribble on what the caller holds.
func (inv *Invoice) Copy() (*Invoice, error) {
	c := new(Invoice)
	if err := deepcopy.Copy(c, inv); err != nil {
		return nil, err
	}
	return c, nil
}

// Expired says if now is past the invoice's expiry.
func (inv *Invoice) Expired(now time.Time) bool {
	return now.After(inv.Expiry)
}

// EarliestDeadline is the soonest HTLC timeout, or zero if nothing's held.
func (inv *Invoice) EarliestDeadline() time.Time {
	var d time.Time
	for _, h := range inv.HTLCs {
		if d.IsZero() || h.Deadline.Before(d) {
			d = h.Deadline
		}
	}
	return d
}

// NewPreimage makes a fresh random preimage.
func NewPreimage() (lntypes.Preimage, error) {
	var p lntypes.Preimage
	if _, err := rand.Read(p[:]); err != nil {
		return p, err
	}
	return p, nil
}

// NewPaymentSecret makes a fresh random payment secret.
func NewPaymentSecret() ([32]byte, error) {
	var s [32]byte
	_, err := rand.Read(s[:])
	return s, err
}
