// Package payreq is the node's view of BOLT11 payment requests.  The wire
// format is lnd's zpay32; PayReq carries just the fields the node fills in
// and reads back.
package payreq

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
)

// Network prefixes that go after "ln".
const (
	NetMainnet = "bc"
	NetTestnet = "tb"
	NetRegtest = "bcrt"
)

const (
	// DefaultExpiry applies when no x field is present.
	DefaultExpiry = zpay32.DefaultInvoiceExpiry

	// DefaultMinFinalCLTV applies when no c field is present.
	DefaultMinFinalCLTV = zpay32.DefaultAssumedFinalCLTVDelta
)

var (
	ErrBadPrefix    = errors.New("payreq: bad human readable part")
	ErrBadSignature = errors.New("payreq: bad signature")
)

// PayReq is the decoded content of a payment request.
type PayReq struct {
	Net string

	// Amount of zero is written without an amount.
	Amount lnwire.MilliSatoshi

	Timestamp     time.Time
	PaymentHash   lntypes.Hash
	PaymentSecret *[32]byte
	Description   string
	Expiry        time.Duration
	MinFinalCLTV  uint64

	// NodePubkey is recovered from the signature on decode.
	NodePubkey *btcec.PublicKey
}

// ExpiresAt is Timestamp plus Expiry.
func (p *PayReq) ExpiresAt() time.Time {
	return p.Timestamp.Add(p.Expiry)
}

// NetParams maps a network prefix to its chain parameters.
func NetParams(network string) (*chaincfg.Params, error) {
	switch network {
	case NetMainnet:
		return &chaincfg.MainNetParams, nil
	case NetTestnet:
		return &chaincfg.TestNet3Params, nil
	case NetRegtest:
		return &chaincfg.RegressionNetParams, nil
	}
	return nil, fmt.Errorf("%w: unknown network %q", ErrBadPrefix, network)
}

// netOf picks the network from the request's prefix.  bcrt is checked
// before bc since one is a prefix of the other.
func netOf(s string) (string, error) {
	s = strings.ToLower(s)
	for _, n := range []string{NetRegtest, NetMainnet, NetTestnet} {
		if strings.HasPrefix(s, "ln"+n) {
			return n, nil
		}
	}
	return "", ErrBadPrefix
}

// Encode serializes p and signs it with key.  A description is always
// written, empty or not.
func Encode(p *PayReq, key *btcec.PrivateKey) (string, error) {
	params, err := NetParams(p.Net)
	if err != nil {
		return "", err
	}

	opts := []func(*zpay32.Invoice){
		zpay32.Description(p.Description),
	}
	if p.Amount != 0 {
		opts = append(opts, zpay32.Amount(p.Amount))
	}
	if p.PaymentSecret != nil {
		opts = append(opts, zpay32.PaymentAddr(*p.PaymentSecret))
	}
	if p.Expiry != 0 && p.Expiry != DefaultExpiry {
		opts = append(opts, zpay32.Expiry(p.Expiry))
	}
	if p.MinFinalCLTV != 0 && p.MinFinalCLTV != DefaultMinFinalCLTV {
		opts = append(opts, zpay32.CLTVExpiry(p.MinFinalCLTV))
	}

	inv, err := zpay32.NewInvoice(params, p.PaymentHash, p.Timestamp, opts...)
	if err != nil {
		return "", fmt.Errorf("payreq: %w", err)
	}

	return inv.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			return ecdsa.SignCompact(key, chainhash.HashB(msg), true)
		},
	})
}

// Decode parses and checks a payment request on whichever network its
// prefix names.
func Decode(s string) (*PayReq, error) {
	network, err := netOf(s)
	if err != nil {
		return nil, err
	}
	params, err := NetParams(network)
	if err != nil {
		return nil, err
	}

	inv, err := zpay32.Decode(strings.ToLower(s), params)
	if err != nil {
		return nil, fmt.Errorf("payreq: %w", err)
	}
	if inv.PaymentHash == nil {
		return nil, fmt.Errorf("payreq: no payment hash")
	}
	if inv.Destination == nil {
		return nil, ErrBadSignature
	}

	p := &PayReq{
		Net:           network,
		Timestamp:     inv.Timestamp,
		PaymentHash:   lntypes.Hash(*inv.PaymentHash),
		PaymentSecret: inv.PaymentAddr,
		Expiry:        inv.Expiry(),
		MinFinalCLTV:  inv.MinFinalCLTVExpiry(),
		NodePubkey:    inv.Destination,
	}
	if inv.MilliSat != nil {
		p.Amount = *inv.MilliSat
	}
	if inv.Description != nil {
		p.Description = *inv.Description
	}
	return p, nil
}
