package node

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/stretchr/testify/require"

	"github.com/mit-dci/hodl/invoice"
	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/payreq"
	"github.com/mit-dci/hodl/tor"
)

func newTestNode(t *testing.T, cfg Config) *Node {
	if cfg.Home == "" {
		cfg.Home = t.TempDir()
	}
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	lc, err := LoadLifecycle(cfg.Home)
	require.NoError(t, err)
	ctx := WithLifecycle(context.Background(), lc)

	n, err := New(ctx, cfg, key)
	require.NoError(t, err)
	require.NoError(t, n.Start(ctx))
	t.Cleanup(func() { n.Stop() })

	require.Eventually(t, func() bool {
		return n.loopback.Subscribers() == 1
	}, 5*time.Second, 5*time.Millisecond)
	return n
}

func msat(m lnwire.MilliSatoshi) *lnwire.MilliSatoshi {
	return &m
}

func waitStatus(t *testing.T, n *Node, ref string, want invoice.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := n.InvoiceStatus(context.Background(), ref)
		return err == nil && s == want
	}, 5*time.Second, 5*time.Millisecond, "waiting for %s", want)
}

func TestLifecycle(t *testing.T) {
	home := t.TempDir()
	lc, err := LoadLifecycle(home)
	require.NoError(t, err)
	require.Equal(t, LifecycleUninitialized, lc)

	require.NoError(t, os.WriteFile(filepath.Join(home, KeyFileName), []byte("x"), 0600))
	lc, err = LoadLifecycle(home)
	require.NoError(t, err)
	require.Equal(t, LifecycleInitialized, lc)

	_, ok := LifecycleFromContext(context.Background())
	require.False(t, ok)
	got, ok := LifecycleFromContext(WithLifecycle(context.Background(), lc))
	require.True(t, ok)
	require.Equal(t, LifecycleInitialized, got)

	key, _ := btcec.NewPrivateKey()
	_, err = New(context.Background(), Config{Home: home}, key)
	require.Error(t, err)
}

func TestHodlInvoiceSettle(t *testing.T) {
	n := newTestNode(t, Config{})
	ctx := context.Background()

	// Scenario 1
	ni, err := n.CreateHodlInvoice(ctx, msat(100000), 15*time.Minute, nil, "coffee")
	require.NoError(t, err)
	s, err := n.InvoiceStatus(ctx, ni.PayReq)
	require.NoError(t, err)
	require.Equal(t, invoice.StatePending, s)

	pr, err := payreq.Decode(ni.PayReq)
	require.NoError(t, err)
	require.Equal(t, ni.PaymentHash, pr.PaymentHash)
	require.Equal(t, ni.PaymentSecret, *pr.PaymentSecret)
	require.Equal(t, lnwire.MilliSatoshi(100000), pr.Amount)
	require.Equal(t, n.Pubkey(), hexKey(pr.NodePubkey))

	// Scenario 2
	refs, err := n.PayInvoice(ctx, ni.PayReq, nil, 1)
	require.NoError(t, err)
	waitStatus(t, n, ni.PayReq, invoice.StateHeld)

	// Scenario 6
	wrong, _ := invoice.NewPreimage()
	err = n.SettleInvoice(ctx, ni.PaymentHash, wrong)
	require.ErrorIs(t, err, lncore.ErrInvalidPreimage)
	require.Equal(t, lncore.ClientError, lncore.ClassifyError(err))
	s, _ = n.InvoiceStatus(ctx, ni.PaymentHash.String())
	require.Equal(t, invoice.StateHeld, s)

	// Scenario 3
	inv, err := n.LookupInvoice(ctx, ni.PaymentHash.String())
	require.NoError(t, err)
	require.NoError(t, n.SettleInvoice(ctx, ni.PaymentHash, *inv.Preimage))
	waitStatus(t, n, ni.PaymentHash.String(), invoice.StateSucceeded)
	require.Equal(t, *inv.Preimage, *n.loopback.RevealedPreimage(refs[0]))

	// A second settle is a no-op.
	require.NoError(t, n.SettleInvoice(ctx, ni.PaymentHash, *inv.Preimage))
	claims, _ := n.loopback.Counts()
	require.Equal(t, 1, claims)
}

func TestHodlInvoiceCancel(t *testing.T) {
	n := newTestNode(t, Config{})
	ctx := context.Background()

	ni, err := n.CreateHodlInvoice(ctx, msat(100000), 0, nil, "")
	require.NoError(t, err)
	refs, err := n.PayInvoice(ctx, ni.PayReq, nil, 2)
	require.NoError(t, err)
	waitStatus(t, n, ni.PayReq, invoice.StateHeld)

	// Scenario 4
	require.NoError(t, n.CancelInvoice(ctx, ni.PaymentHash))
	waitStatus(t, n, ni.PayReq, invoice.StateFailed)
	for _, r := range refs {
		require.Nil(t, n.loopback.RevealedPreimage(r))
	}
	claims, fails := n.loopback.Counts()
	require.Zero(t, claims)
	require.Equal(t, 2, fails)
}

func TestSettlePendingInvoice(t *testing.T) {
	n := newTestNode(t, Config{})
	ctx := context.Background()

	// Scenario 5
	ni, err := n.CreateHodlInvoice(ctx, msat(100000), 0, nil, "")
	require.NoError(t, err)
	inv, err := n.LookupInvoice(ctx, ni.PayReq)
	require.NoError(t, err)
	err = n.SettleInvoice(ctx, ni.PaymentHash, *inv.Preimage)
	require.ErrorIs(t, err, lncore.ErrInvalidInvoiceState)
	require.Equal(t, 400, lncore.ClassifyError(err).StatusCode())
}

func TestHodlInvoiceExplicitHash(t *testing.T) {
	n := newTestNode(t, Config{})
	ctx := context.Background()

	// Scenario 7
	var pre lntypes.Preimage
	for i := range pre {
		pre[i] = 0x01
	}
	h := pre.Hash()
	ni, err := n.CreateHodlInvoice(ctx, msat(100000), 15*time.Minute, &h, "")
	require.NoError(t, err)
	require.Equal(t, h, ni.PaymentHash)

	inv, err := n.LookupInvoice(ctx, h.String())
	require.NoError(t, err)
	require.Nil(t, inv.Preimage)

	_, err = n.CreateHodlInvoice(ctx, msat(100000), 0, &h, "")
	require.ErrorIs(t, err, lncore.ErrInvoiceAlreadyExists)

	_, err = n.PayInvoice(ctx, ni.PayReq, nil, 1)
	require.NoError(t, err)
	waitStatus(t, n, h.String(), invoice.StateHeld)

	require.NoError(t, n.SettleInvoice(ctx, h, pre))
	inv, err = n.LookupInvoice(ctx, h.String())
	require.NoError(t, err)
	require.Equal(t, invoice.StateSucceeded, inv.State)
	require.Equal(t, pre, *inv.Preimage)
}

func TestStandardInvoice(t *testing.T) {
	n := newTestNode(t, Config{})
	ctx := context.Background()

	// Scenario 8
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	seen := n.Ebus.Subscribe(sctx, 4, "invoice.state")

	ni, err := n.CreateInvoice(ctx, msat(100000), 0, "")
	require.NoError(t, err)
	_, err = n.PayInvoice(ctx, ni.PayReq, nil, 1)
	require.NoError(t, err)
	waitStatus(t, n, ni.PayReq, invoice.StateSucceeded)

	// Straight to Succeeded, never Held.
	select {
	case e := <-seen:
		require.Equal(t, invoice.StateSucceeded, e.(invoice.InvoiceStateEvent).To)
	case <-time.After(5 * time.Second):
		t.Fatal("no state event")
	}
	require.Empty(t, seen)
}

func TestOpenAmountInvoice(t *testing.T) {
	n := newTestNode(t, Config{})
	ctx := context.Background()

	ni, err := n.CreateHodlInvoice(ctx, nil, 0, nil, "tip")
	require.NoError(t, err)

	_, err = n.PayInvoice(ctx, ni.PayReq, nil, 1)
	require.ErrorIs(t, err, lncore.ErrInvalidInput)

	_, err = n.PayInvoice(ctx, ni.PayReq, msat(5000), 1)
	require.NoError(t, err)
	waitStatus(t, n, ni.PayReq, invoice.StateHeld)
}

func TestInvoiceRefs(t *testing.T) {
	n := newTestNode(t, Config{})
	ctx := context.Background()

	_, err := n.InvoiceStatus(ctx, "not an invoice")
	require.ErrorIs(t, err, lncore.ErrInvalidInput)

	_, err = n.InvoiceStatus(ctx, lntypes.Hash{1}.String())
	require.ErrorIs(t, err, lncore.ErrInvoiceNotFound)

	_, err = n.CreateHodlInvoice(ctx, nil, -time.Second, nil, "")
	require.ErrorIs(t, err, lncore.ErrInvalidInput)

	// Someone else's request.
	other := newTestNode(t, Config{})
	ni, err := other.CreateHodlInvoice(ctx, msat(1000), 0, nil, "")
	require.NoError(t, err)
	_, err = n.PayInvoice(ctx, ni.PayReq, nil, 1)
	require.ErrorIs(t, err, lncore.ErrInvalidInput)

	list, err := other.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestSignVerify(t *testing.T) {
	n := newTestNode(t, Config{})
	ctx := context.Background()
	msg := []byte("hello world")

	sig, err := n.SignMessage(ctx, msg)
	require.NoError(t, err)

	pub, valid, err := n.VerifyMessage(ctx, msg, sig)
	require.NoError(t, err)
	require.True(t, valid)
	require.Equal(t, n.Pubkey(), pub)

	other := newTestNode(t, Config{})
	osig, err := other.SignMessage(ctx, msg)
	require.NoError(t, err)
	pub, valid, err = n.VerifyMessage(ctx, msg, osig)
	require.NoError(t, err)
	require.False(t, valid)
	require.Equal(t, other.Pubkey(), pub)

	_, _, err = n.VerifyMessage(ctx, msg, "!!!")
	require.ErrorIs(t, err, lncore.ErrInvalidInput)
}

func TestConnectPeerBootstrapFailure(t *testing.T) {
	n := newTestNode(t, Config{
		TorActive: true,
		Bootstrapper: func(ctx context.Context, cfg *tor.Config) (tor.Client, error) {
			return nil, errors.New("no tor here")
		},
	})
	ctx := context.Background()

	other, _ := btcec.NewPrivateKey()
	err := n.ConnectPeer(ctx, hexKey(other.PubKey()), "example.com", 9735)
	require.ErrorIs(t, err, lncore.ErrFailedPeerConnection)
	require.ErrorIs(t, err, lncore.ErrBootstrapFailed)
	require.Equal(t, lncore.ServerError, lncore.ClassifyError(err))
	require.Equal(t, tor.StateFailed, n.TorState())

	err = n.ConnectPeer(ctx, "nope", "example.com", 9735)
	require.ErrorIs(t, err, lncore.ErrInvalidPeerInfo)
}

func TestConnectPeers(t *testing.T) {
	alice := newTestNode(t, Config{PeerPort: freePort(t)})
	bob := newTestNode(t, Config{})
	ctx := context.Background()

	require.NoError(t, bob.ConnectPeer(ctx, alice.Pubkey(), "127.0.0.1", uint16(alice.cfg.PeerPort)))
	require.Len(t, bob.ListPeers(ctx), 1)

	// Alice now knows bob, so his signature checks out.
	sig, err := bob.SignMessage(ctx, []byte("hi"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, valid, err := alice.VerifyMessage(ctx, []byte("hi"), sig)
		return err == nil && valid
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.DisconnectPeer(ctx, alice.Pubkey()))
	require.Eventually(t, func() bool {
		return len(bob.ListPeers(ctx)) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
