// Package node puts the invoice machinery, the payment engine and the peer
// manager together behind the operations the RPC layer exposes.
package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/time/rate"

	"github.com/mit-dci/hodl/db/lnbolt"
	"github.com/mit-dci/hodl/eventbus"
	"github.com/mit-dci/hodl/hodl"
	"github.com/mit-dci/hodl/invoice"
	"github.com/mit-dci/hodl/lnp2p"
	"github.com/mit-dci/hodl/logging"
	"github.com/mit-dci/hodl/nat"
	"github.com/mit-dci/hodl/payengine"
	"github.com/mit-dci/hodl/payreq"
	"github.com/mit-dci/hodl/tor"
)

// Config is everything New needs besides the key.
type Config struct {
	Home    string
	Network string

	// DefaultExpiry is used when an invoice is created with expiry 0.
	DefaultExpiry time.Duration
	MinFinalCLTV  uint64

	ScanInterval   time.Duration
	DeadlineSafety time.Duration
	MPPTimeout     time.Duration

	// Engine is the channel side.  Nil gets a loopback engine, which is
	// also what PayInvoice needs.
	Engine hodl.PaymentEngine

	TorActive bool
	Tor       tor.Config

	// Bootstrapper starts tor, nil means tor.BineBootstrap.
	Bootstrapper tor.Bootstrapper

	// Proxy, if set, is the SOCKS proxy for non-onion peers.
	Proxy *tor.SOCKSNet

	DialRate rate.Limit
	PeerPort int
	NatMode  nat.Mode

	// ReconnectPeers dials stored peers on Start.
	ReconnectPeers bool
}

// Node .
type Node struct {
	cfg       Config
	key       *btcec.PrivateKey
	lifecycle Lifecycle

	Ebus        *eventbus.EventBus
	Registry    *invoice.Registry
	Interceptor *hodl.Interceptor
	Coordinator *hodl.Coordinator
	Expirer     *hodl.Expirer
	Peers       *lnp2p.PeerManager

	engine   hodl.PaymentEngine
	loopback *payengine.Loopback
	peerdb   *lnbolt.PeerDB
	session  *tor.Session

	mtx     sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func (c *Config) applyDefaults() {
	if c.Network == "" {
		c.Network = payreq.NetRegtest
	}
	if c.DefaultExpiry == 0 {
		c.DefaultExpiry = payreq.DefaultExpiry
	}
	if c.MinFinalCLTV == 0 {
		c.MinFinalCLTV = payreq.DefaultMinFinalCLTV
	}
	if c.DialRate == 0 {
		c.DialRate = rate.Inf
	}
}

// New opens the databases and wires everything up.  ctx has to carry the
// lifecycle from LoadLifecycle.  Nothing runs until Start.
func New(ctx context.Context, cfg Config, key *btcec.PrivateKey) (*Node, error) {

	lc, ok := LifecycleFromContext(ctx)
	if !ok {
		return nil, errors.New("node: no lifecycle in context")
	}
	cfg.applyDefaults()

	n := &Node{
		cfg:       cfg,
		key:       key,
		lifecycle: lc,
		Ebus:      eventbus.NewEventBus(),
	}

	var err error
	n.Registry, err = invoice.NewRegistry(filepath.Join(cfg.Home, "invoices.db"), n.Ebus)
	if err != nil {
		return nil, fmt.Errorf("node: opening invoice db: %w", err)
	}
	n.peerdb, err = lnbolt.OpenPeerDB(filepath.Join(cfg.Home, "peers.db"))
	if err != nil {
		n.Registry.Close()
		return nil, fmt.Errorf("node: opening peer db: %w", err)
	}

	n.engine = cfg.Engine
	if n.engine == nil {
		n.loopback = payengine.NewLoopback(1)
		n.engine = n.loopback
	}

	n.Interceptor = hodl.NewInterceptor(n.Registry, n.engine)
	if cfg.MPPTimeout != 0 {
		n.Interceptor.MPPTimeout = cfg.MPPTimeout
	}
	n.Coordinator = hodl.NewCoordinator(n.Registry, n.engine, n.Interceptor)
	n.Expirer = hodl.NewExpirer(n.Registry, n.Coordinator, n.Interceptor)
	if cfg.ScanInterval != 0 {
		n.Expirer.Interval = cfg.ScanInterval
	}
	if cfg.DeadlineSafety != 0 {
		n.Expirer.DeadlineSafety = cfg.DeadlineSafety
	}

	n.Peers = lnp2p.NewPeerManager(key, n.peerdb, n.Ebus, n.peerNet(), cfg.DialRate)

	logging.Infof("node: %s node %s on %s\n", lc, n.Pubkey(), cfg.Network)
	return n, nil
}

// peerNet picks how peers get dialed.
func (n *Node) peerNet() tor.Net {
	switch {
	case n.cfg.TorActive:
		boot := n.cfg.Bootstrapper
		if boot == nil {
			boot = tor.BineBootstrap
		}
		n.session = tor.NewSession(n.cfg.Tor, boot)
		return &tor.SessionNet{Session: n.session, SOCKS: n.cfg.Proxy}
	case n.cfg.Proxy != nil:
		return n.cfg.Proxy
	}
	return &tor.ClearNet{Timeout: lnp2p.DefaultDialTimeout}
}

// Lifecycle is what the node found at startup.
func (n *Node) Lifecycle() Lifecycle {
	return n.lifecycle
}

// Pubkey is our identity key in hex.
func (n *Node) Pubkey() string {
	return hex.EncodeToString(n.key.PubKey().SerializeCompressed())
}

// TorState reports the tor session, uninitialized if tor is off.
func (n *Node) TorState() tor.SessionState {
	if n.session == nil {
		return tor.StateUninitialized
	}
	return n.session.State()
}

// Start runs the interceptor and the expiry scan, and brings up the peer
// side.
func (n *Node) Start(ctx context.Context) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if n.started {
		return errors.New("node: already started")
	}

	rctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	n.run(func() error { return n.Interceptor.Run(rctx) })
	n.run(func() error { return n.Expirer.Run(rctx) })

	if n.session != nil {
		n.session.Start()
	}

	if n.cfg.PeerPort != 0 {
		err := n.Peers.ListenOnPort(ctx, n.cfg.PeerPort, n.cfg.NatMode)
		if err != nil {
			cancel()
			n.wg.Wait()
			return fmt.Errorf("node: listening for peers: %w", err)
		}
	}

	if n.cfg.ReconnectPeers {
		n.run(func() error {
			c, err := n.Peers.ReconnectStoredPeers(rctx)
			logging.Infof("node: reconnected %d stored peers\n", c)
			return err
		})
	}

	n.started = true
	return nil
}

func (n *Node) run(f func() error) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		err := f()
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Errorf("node: %s\n", err.Error())
		}
	}()
}

// Stop shuts everything down and closes the databases.
func (n *Node) Stop() error {
	n.mtx.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.mtx.Unlock()
	n.wg.Wait()

	n.Peers.Close()

	var errs []error
	if n.session != nil {
		errs = append(errs, n.session.Close())
	}
	errs = append(errs, n.peerdb.Close(), n.Registry.Close())
	return errors.Join(errs...)
}
