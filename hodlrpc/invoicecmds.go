package hodlrpc

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/mit-dci/hodl/invoice"
	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/node"
)

type NoArgs struct{}

type StatusReply struct {
	Status string
}

// ------------------------- add invoice

type AddHoldInvoiceArgs struct {
	// AmountMsat nil means any amount.
	AmountMsat *uint64
	ExpirySecs int64

	// Hash, if given, is hex.  Without one the node makes the preimage.
	Hash string
	Memo string
}

type AddInvoiceArgs struct {
	AmountMsat *uint64
	ExpirySecs int64
	Memo       string
}

type AddInvoiceReply struct {
	PaymentRequest string
	PaymentHash    string
	PaymentSecret  string
}

func msat(a *uint64) *lnwire.MilliSatoshi {
	if a == nil {
		return nil
	}
	m := lnwire.MilliSatoshi(*a)
	return &m
}

func fillAddReply(ni *node.NewInvoice, reply *AddInvoiceReply) {
	reply.PaymentRequest = ni.PayReq
	reply.PaymentHash = ni.PaymentHash.String()
	reply.PaymentSecret = hex.EncodeToString(ni.PaymentSecret[:])
}

func parseHash(s string) (lntypes.Hash, error) {
	h, err := lntypes.MakeHashFromStr(s)
	if err != nil {
		return h, fmt.Errorf("%w: payment hash: %w", lncore.ErrInvalidInput, err)
	}
	return h, nil
}

// AddHoldInvoice makes an invoice that waits in Held once paid.
func (r *HodlRPC) AddHoldInvoice(args AddHoldInvoiceArgs, reply *AddInvoiceReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	var hash *lntypes.Hash
	if args.Hash != "" {
		h, err := parseHash(args.Hash)
		if err != nil {
			return rpcErr(err)
		}
		hash = &h
	}

	ni, err := r.Node.CreateHodlInvoice(ctx, msat(args.AmountMsat),
		time.Duration(args.ExpirySecs)*time.Second, hash, args.Memo)
	if err != nil {
		return rpcErr(err)
	}
	fillAddReply(ni, reply)
	return nil
}

// AddInvoice makes a standard invoice.
func (r *HodlRPC) AddInvoice(args AddInvoiceArgs, reply *AddInvoiceReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	ni, err := r.Node.CreateInvoice(ctx, msat(args.AmountMsat),
		time.Duration(args.ExpirySecs)*time.Second, args.Memo)
	if err != nil {
		return rpcErr(err)
	}
	fillAddReply(ni, reply)
	return nil
}

// ------------------------- lookup

type InvoiceRefArgs struct {
	// Invoice is a hex payment hash or a payment request.
	Invoice string
}

type InvoiceStatusReply struct {
	State string
}

func (r *HodlRPC) InvoiceStatus(args InvoiceRefArgs, reply *InvoiceStatusReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	st, err := r.Node.InvoiceStatus(ctx, args.Invoice)
	if err != nil {
		return rpcErr(err)
	}
	reply.State = st.String()
	return nil
}

type LookupInvoiceReply struct {
	Invoice *invoice.Invoice
}

func (r *HodlRPC) LookupInvoice(args InvoiceRefArgs, reply *LookupInvoiceReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	inv, err := r.Node.LookupInvoice(ctx, args.Invoice)
	if err != nil {
		return rpcErr(err)
	}
	reply.Invoice = inv
	return nil
}

type ListInvoicesReply struct {
	Invoices []*invoice.Invoice
}

func (r *HodlRPC) ListInvoices(args NoArgs, reply *ListInvoicesReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	invs, err := r.Node.ListInvoices(ctx)
	if err != nil {
		return rpcErr(err)
	}
	reply.Invoices = invs
	return nil
}

// ------------------------- settle / cancel

type SettleInvoiceArgs struct {
	Hash     string
	Preimage string
}

func (r *HodlRPC) SettleInvoice(args SettleInvoiceArgs, reply *StatusReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	h, err := parseHash(args.Hash)
	if err != nil {
		return rpcErr(err)
	}
	pre, err := lntypes.MakePreimageFromStr(args.Preimage)
	if err != nil {
		return rpcErr(fmt.Errorf("%w: preimage: %w", lncore.ErrInvalidInput, err))
	}

	err = r.Node.SettleInvoice(ctx, h, pre)
	if err != nil {
		return rpcErr(err)
	}
	reply.Status = fmt.Sprintf("settled %s", h)
	return nil
}

type CancelInvoiceArgs struct {
	Hash string
}

func (r *HodlRPC) CancelInvoice(args CancelInvoiceArgs, reply *StatusReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	h, err := parseHash(args.Hash)
	if err != nil {
		return rpcErr(err)
	}
	err = r.Node.CancelInvoice(ctx, h)
	if err != nil {
		return rpcErr(err)
	}
	reply.Status = fmt.Sprintf("cancelled %s", h)
	return nil
}

// ------------------------- pay

type PayInvoiceArgs struct {
	PaymentRequest string
	AmountMsat     *uint64
	Parts          int
}

type PayInvoiceReply struct {
	HTLCs []string
}

// PayInvoice pays one of our own requests through the loopback engine.
func (r *HodlRPC) PayInvoice(args PayInvoiceArgs, reply *PayInvoiceReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	if args.Parts < 1 {
		args.Parts = 1
	}
	refs, err := r.Node.PayInvoice(ctx, args.PaymentRequest, msat(args.AmountMsat), args.Parts)
	if err != nil {
		return rpcErr(err)
	}
	for _, ref := range refs {
		reply.HTLCs = append(reply.HTLCs, ref.String())
	}
	return nil
}

// ------------------------- graph

type StateGraphReply struct {
	Dot string
}

// StateGraph gives the invoice state machine in DOT.
func (r *HodlRPC) StateGraph(args NoArgs, reply *StateGraphReply) error {
	dot, err := invoice.TransitionGraph()
	if err != nil {
		return rpcErr(err)
	}
	reply.Dot = dot
	return nil
}
