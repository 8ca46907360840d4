// Package hodl sits between the payment engine and the invoice registry.  It
// decides what happens to incoming HTLCs, and settles or cancels held ones
// when told to.
package hodl

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/mit-dci/hodl/invoice"
)

// HTLCArrival is an incoming HTLC paying to one of our hashes.
type HTLCArrival struct {
	PaymentHash lntypes.Hash
	Ref         invoice.HTLCRef
	Amount      lnwire.MilliSatoshi

	// TotalAmount is the multi-part total the sender claims to be paying,
	// zero if it didn't say.
	TotalAmount lnwire.MilliSatoshi

	// PaymentSecret is checked against the invoice when present.
	PaymentSecret *[32]byte

	// Deadline is when the HTLC times out.
	Deadline time.Time
}

// PaymentEngine is the channel side.  It tells us about HTLCs and does
// whatever we decide with them.
type PaymentEngine interface {
	// SubscribeHTLCs streams arrivals until ctx is done.
	SubscribeHTLCs(ctx context.Context) (<-chan HTLCArrival, error)

	ClaimHTLC(ctx context.Context, ref invoice.HTLCRef, preimage lntypes.Preimage) error
	FailHTLC(ctx context.Context, ref invoice.HTLCRef) error
}
