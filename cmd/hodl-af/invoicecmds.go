package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/fatih/color"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/mit-dci/hodl/hodlrpc"
	"github.com/mit-dci/hodl/invoice"
	"github.com/mit-dci/hodl/lnutil"
)

var addHodlCommand = &Command{
	Format: fmt.Sprintf("%s%s\n", lnutil.White("addhodl"),
		lnutil.OptColor("amount_msat", "expiry_secs", "hash", "memo")),
	Description: fmt.Sprintf("%s\n%s\n%s\n",
		"Create a hold invoice.  Once paid it waits until you settle or cancel it.",
		"An amount of 0 takes any amount, expiry 0 uses the node default.  Amounts ending in btc are in bitcoin.",
		"Without a hash the node makes the preimage and keeps it."),
	ShortDescription: "Create a hold invoice.\n",
}

var addInvCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("addinv"), lnutil.OptColor("amount_msat", "expiry_secs", "memo")),
	Description:      "Create a standard invoice, settled as soon as it's paid.\n",
	ShortDescription: "Create a standard invoice.\n",
}

var statusCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("status"), lnutil.ReqColor("hash|payreq")),
	Description:      "Show the state of an invoice, by payment hash or payment request.\n",
	ShortDescription: "Show the state of an invoice.\n",
}

var invCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("inv"), lnutil.ReqColor("hash|payreq")),
	Description:      "Show everything stored about an invoice, including held HTLCs.\n",
	ShortDescription: "Show an invoice in detail.\n",
}

var lsInvCommand = &Command{
	Format:           lnutil.White("lsinv\n"),
	Description:      "List all invoices.\n",
	ShortDescription: "List all invoices.\n",
}

var settleCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("settle"), lnutil.ReqColor("hash", "preimage")),
	Description:      "Claim the HTLCs of a held invoice with its preimage.\n",
	ShortDescription: "Settle a held invoice.\n",
}

var cancelCommand = &Command{
	Format:           fmt.Sprintf("%s%s%s\n", lnutil.White("cancel"), lnutil.ReqColor("hash"), lnutil.OptColor("y/n")),
	Description:      "Fail back the HTLCs of an invoice and close it.  Asks first unless the answer is given.\n",
	ShortDescription: "Cancel an invoice.\n",
}

var payCommand = &Command{
	Format: fmt.Sprintf("%s%s%s\n", lnutil.White("pay"), lnutil.ReqColor("payreq"),
		lnutil.OptColor("parts", "amount_msat")),
	Description:      "Pay one of this node's own payment requests through the loopback engine, split in parts.\n",
	ShortDescription: "Pay our own invoice.\n",
}

var graphCommand = &Command{
	Format:           lnutil.White("graph\n"),
	Description:      "Print the invoice state machine as a graphviz digraph.\n",
	ShortDescription: "Print the invoice state machine.\n",
}

// optAmount reads an msat amount, 0 meaning none.  A "btc" suffix reads
// the number as bitcoin instead.
func optAmount(s string) (*uint64, error) {
	var a uint64

	lower := strings.ToLower(s)
	if strings.HasSuffix(lower, "btc") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(lower, "btc"), 64)
		if err != nil {
			return nil, fmt.Errorf("bad amount %q", s)
		}
		amt, err := btcutil.NewAmount(f)
		if err != nil || amt < 0 {
			return nil, fmt.Errorf("bad amount %q", s)
		}
		a = uint64(lnwire.NewMSatFromSatoshis(amt))
	} else {
		var err error
		a, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad amount %q", s)
		}
	}

	if a == 0 {
		return nil, nil
	}
	return &a, nil
}

func printAdded(reply *hodlrpc.AddInvoiceReply) {
	fmt.Fprintf(color.Output, "%s %s\n", lnutil.Header("hash:"), lnutil.Hash(reply.PaymentHash))
	fmt.Fprintf(color.Output, "%s %s\n", lnutil.Header("secret:"), reply.PaymentSecret)
	fmt.Fprintf(color.Output, "%s %s\n", lnutil.Header("payreq:"), lnutil.Address(reply.PaymentRequest))
}

func (lc *hodlAfClient) AddHodl(textArgs []string) error {
	args := new(hodlrpc.AddHoldInvoiceArgs)
	reply := new(hodlrpc.AddInvoiceReply)

	var err error
	if len(textArgs) > 0 {
		args.AmountMsat, err = optAmount(textArgs[0])
		if err != nil {
			return err
		}
	}
	if len(textArgs) > 1 {
		args.ExpirySecs, err = strconv.ParseInt(textArgs[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad expiry %q", textArgs[1])
		}
	}
	if len(textArgs) > 2 && textArgs[2] != "-" {
		args.Hash = textArgs[2]
	}
	if len(textArgs) > 3 {
		args.Memo = strings.Join(textArgs[3:], " ")
	}

	err = lc.Call("AddHoldInvoice", args, reply)
	if err != nil {
		return err
	}
	printAdded(reply)
	return nil
}

func (lc *hodlAfClient) AddInv(textArgs []string) error {
	args := new(hodlrpc.AddInvoiceArgs)
	reply := new(hodlrpc.AddInvoiceReply)

	var err error
	if len(textArgs) > 0 {
		args.AmountMsat, err = optAmount(textArgs[0])
		if err != nil {
			return err
		}
	}
	if len(textArgs) > 1 {
		args.ExpirySecs, err = strconv.ParseInt(textArgs[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad expiry %q", textArgs[1])
		}
	}
	if len(textArgs) > 2 {
		args.Memo = strings.Join(textArgs[2:], " ")
	}

	err = lc.Call("AddInvoice", args, reply)
	if err != nil {
		return err
	}
	printAdded(reply)
	return nil
}

func (lc *hodlAfClient) Status(textArgs []string) error {
	if len(textArgs) < 1 {
		return fmt.Errorf("usage: %s", statusCommand.Format)
	}
	reply := new(hodlrpc.InvoiceStatusReply)
	err := lc.Call("InvoiceStatus", hodlrpc.InvoiceRefArgs{Invoice: textArgs[0]}, reply)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s\n", lnutil.StateColor(reply.State))
	return nil
}

func printInvoice(inv *invoice.Invoice, long bool) {
	kind := "standard"
	if inv.Hold {
		kind = "hold"
	}
	amt := "any"
	if inv.Amount != 0 {
		amt = lnutil.MsatColor(inv.Amount)
	}
	fmt.Fprintf(color.Output, "%s %s %s amt %s paid %s",
		lnutil.Hash(inv.PaymentHash.String()), kind, lnutil.StateColor(inv.State.String()),
		amt, lnutil.MsatColor(inv.AmountPaid))
	if inv.Memo != "" {
		fmt.Fprintf(color.Output, " %q", inv.Memo)
	}
	fmt.Fprintf(color.Output, "\n")
	if !long {
		return
	}

	fmt.Fprintf(color.Output, "\tcreated %s expires %s\n",
		inv.CreatedAt.Format(time.RFC3339), inv.Expiry.Format(time.RFC3339))
	if inv.Preimage != nil {
		fmt.Fprintf(color.Output, "\tpreimage %s\n", inv.Preimage)
	}
	for _, h := range inv.HTLCs {
		fmt.Fprintf(color.Output, "\thtlc %s %s deadline %s\n",
			h.Ref, lnutil.MsatColor(h.Amount), h.Deadline.Format(time.RFC3339))
	}
	if inv.FailReason != "" {
		fmt.Fprintf(color.Output, "\t%s %s\n", lnutil.Red("failed:"), inv.FailReason)
	}
	fmt.Fprintf(color.Output, "\t%s\n", lnutil.Address(inv.PaymentRequest))
}

func (lc *hodlAfClient) Inv(textArgs []string) error {
	if len(textArgs) < 1 {
		return fmt.Errorf("usage: %s", invCommand.Format)
	}
	reply := new(hodlrpc.LookupInvoiceReply)
	err := lc.Call("LookupInvoice", hodlrpc.InvoiceRefArgs{Invoice: textArgs[0]}, reply)
	if err != nil {
		return err
	}
	printInvoice(reply.Invoice, true)
	return nil
}

func (lc *hodlAfClient) LsInv(textArgs []string) error {
	reply := new(hodlrpc.ListInvoicesReply)
	err := lc.Call("ListInvoices", hodlrpc.NoArgs{}, reply)
	if err != nil {
		return err
	}
	if len(reply.Invoices) == 0 {
		fmt.Fprintf(color.Output, "no invoices\n")
		return nil
	}
	fmt.Fprintf(color.Output, "\t%s\n", lnutil.Header("Invoices:"))
	for _, inv := range reply.Invoices {
		printInvoice(inv, false)
	}
	return nil
}

func (lc *hodlAfClient) Settle(textArgs []string) error {
	if len(textArgs) < 2 {
		return fmt.Errorf("usage: %s", settleCommand.Format)
	}
	reply := new(hodlrpc.StatusReply)
	err := lc.Call("SettleInvoice", hodlrpc.SettleInvoiceArgs{Hash: textArgs[0], Preimage: textArgs[1]}, reply)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s\n", lnutil.Green(reply.Status))
	return nil
}

func (lc *hodlAfClient) Cancel(textArgs []string) error {
	if len(textArgs) < 1 {
		return fmt.Errorf("usage: %s", cancelCommand.Format)
	}
	ok, err := lc.confirm(fmt.Sprintf("cancel %s?", textArgs[0]), textArgs[1:])
	if err != nil || !ok {
		return err
	}

	reply := new(hodlrpc.StatusReply)
	err = lc.Call("CancelInvoice", hodlrpc.CancelInvoiceArgs{Hash: textArgs[0]}, reply)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s\n", reply.Status)
	return nil
}

func (lc *hodlAfClient) Pay(textArgs []string) error {
	if len(textArgs) < 1 {
		return fmt.Errorf("usage: %s", payCommand.Format)
	}
	args := hodlrpc.PayInvoiceArgs{PaymentRequest: textArgs[0], Parts: 1}
	reply := new(hodlrpc.PayInvoiceReply)

	var err error
	if len(textArgs) > 1 {
		args.Parts, err = strconv.Atoi(textArgs[1])
		if err != nil || args.Parts < 1 {
			return fmt.Errorf("bad part count %q", textArgs[1])
		}
	}
	if len(textArgs) > 2 {
		args.AmountMsat, err = optAmount(textArgs[2])
		if err != nil {
			return err
		}
	}

	err = lc.Call("PayInvoice", args, reply)
	if err != nil {
		return err
	}
	for _, h := range reply.HTLCs {
		fmt.Fprintf(color.Output, "sent htlc %s\n", h)
	}
	return nil
}

func (lc *hodlAfClient) Graph(textArgs []string) error {
	reply := new(hodlrpc.StateGraphReply)
	err := lc.Call("StateGraph", hodlrpc.NoArgs{}, reply)
	if err != nil {
		return err
	}
	fmt.Println(reply.Dot)
	return nil
}
