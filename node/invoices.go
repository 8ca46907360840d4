package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/mit-dci/hodl/invoice"
	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/logging"
	"github.com/mit-dci/hodl/payreq"
)

// NewInvoice is what creating an invoice hands back.
type NewInvoice struct {
	PayReq        string
	PaymentHash   lntypes.Hash
	PaymentSecret [32]byte
}

// CreateHodlInvoice makes an invoice that waits in Held once paid.  With
// hash nil we make the preimage and keep it; with a hash given the preimage
// is whatever the caller settles with later.
func (n *Node) CreateHodlInvoice(ctx context.Context, amount *lnwire.MilliSatoshi, expiry time.Duration,
	hash *lntypes.Hash, memo string) (*NewInvoice, error) {

	return n.createInvoice(amount, expiry, hash, memo, true)
}

// CreateInvoice makes a standard invoice, claimed as soon as it's paid.
func (n *Node) CreateInvoice(ctx context.Context, amount *lnwire.MilliSatoshi, expiry time.Duration,
	memo string) (*NewInvoice, error) {

	return n.createInvoice(amount, expiry, nil, memo, false)
}

func (n *Node) createInvoice(amount *lnwire.MilliSatoshi, expiry time.Duration, hash *lntypes.Hash,
	memo string, hold bool) (*NewInvoice, error) {

	if expiry < 0 {
		return nil, fmt.Errorf("%w: negative expiry %s", lncore.ErrInvalidInput, expiry)
	}
	if expiry == 0 {
		expiry = n.cfg.DefaultExpiry
	}

	inv := &invoice.Invoice{
		Hold:      hold,
		Memo:      memo,
		CreatedAt: n.Registry.Now().Truncate(time.Second),
		State:     invoice.StatePending,
	}
	inv.Expiry = inv.CreatedAt.Add(expiry)
	if amount != nil {
		inv.Amount = *amount
	}

	if hash != nil {
		inv.PaymentHash = *hash
	} else {
		pre, err := invoice.NewPreimage()
		if err != nil {
			return nil, err
		}
		inv.Preimage = &pre
		inv.PaymentHash = pre.Hash()
	}

	secret, err := invoice.NewPaymentSecret()
	if err != nil {
		return nil, err
	}
	inv.PaymentSecret = secret

	inv.PaymentRequest, err = payreq.Encode(&payreq.PayReq{
		Net:           n.cfg.Network,
		Amount:        inv.Amount,
		Timestamp:     inv.CreatedAt,
		PaymentHash:   inv.PaymentHash,
		PaymentSecret: &secret,
		Description:   memo,
		Expiry:        expiry,
		MinFinalCLTV:  n.cfg.MinFinalCLTV,
	}, n.key)
	if err != nil {
		return nil, err
	}

	err = n.Registry.Add(inv)
	if err != nil {
		return nil, err
	}

	return &NewInvoice{
		PayReq:        inv.PaymentRequest,
		PaymentHash:   inv.PaymentHash,
		PaymentSecret: secret,
	}, nil
}

// ParseInvoiceRef takes a hex payment hash or a payment request and gives
// the hash.
func ParseInvoiceRef(s string) (lntypes.Hash, error) {
	s = strings.TrimSpace(s)

	if len(s) == 2*lntypes.HashSize {
		h, err := lntypes.MakeHashFromStr(s)
		if err == nil {
			return h, nil
		}
	}

	pr, err := payreq.Decode(s)
	if err != nil {
		return lntypes.Hash{}, fmt.Errorf("%w: not a payment hash or request: %w", lncore.ErrInvalidInput, err)
	}
	return pr.PaymentHash, nil
}

// LookupInvoice gets the whole record for a hash or payment request.
func (n *Node) LookupInvoice(ctx context.Context, invoiceOrHash string) (*invoice.Invoice, error) {
	h, err := ParseInvoiceRef(invoiceOrHash)
	if err != nil {
		return nil, err
	}
	return n.Registry.Lookup(h)
}

// InvoiceStatus is just the state of LookupInvoice.
func (n *Node) InvoiceStatus(ctx context.Context, invoiceOrHash string) (invoice.State, error) {
	inv, err := n.LookupInvoice(ctx, invoiceOrHash)
	if err != nil {
		return 0, err
	}
	return inv.State, nil
}

// ListInvoices returns every invoice.
func (n *Node) ListInvoices(ctx context.Context) ([]*invoice.Invoice, error) {
	return n.Registry.List()
}

// SettleInvoice releases the preimage to claim a held invoice.
func (n *Node) SettleInvoice(ctx context.Context, hash lntypes.Hash, preimage lntypes.Preimage) error {
	return n.Coordinator.Settle(ctx, hash, preimage)
}

// CancelInvoice fails a pending or held invoice back.
func (n *Node) CancelInvoice(ctx context.Context, hash lntypes.Hash) error {
	return n.Coordinator.Cancel(ctx, hash)
}

// ErrNoLoopback is PayInvoice on a node with a real engine.
var ErrNoLoopback = errors.New("paying needs the loopback engine")

// PayInvoice pays one of our own payment requests through the loopback
// engine, split into parts HTLCs.  amount is only needed for requests
// without one.
func (n *Node) PayInvoice(ctx context.Context, req string, amount *lnwire.MilliSatoshi,
	parts int) ([]invoice.HTLCRef, error) {

	if n.loopback == nil {
		return nil, ErrNoLoopback
	}

	pr, err := payreq.Decode(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lncore.ErrInvalidInput, err)
	}
	if !pr.NodePubkey.IsEqual(n.key.PubKey()) {
		return nil, fmt.Errorf("%w: request is for node %x, the loopback engine only reaches us",
			lncore.ErrInvalidInput, pr.NodePubkey.SerializeCompressed())
	}

	amt := pr.Amount
	if amt == 0 {
		if amount == nil || *amount == 0 {
			return nil, fmt.Errorf("%w: request has no amount, give one", lncore.ErrInvalidInput)
		}
		amt = *amount
	}

	logging.Infof("node: paying %s for %s in %d parts\n", pr.PaymentHash, amt, parts)
	return n.loopback.Pay(ctx, pr.PaymentHash, amt, parts, pr.PaymentSecret)
}
