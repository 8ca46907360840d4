// Package lnp2p keeps track of the peers we're connected to.  Connections are
// brontide sessions, dialed over whatever tor.Net the node is configured
// with.
package lnp2p

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/brontide"
	"github.com/lightningnetwork/lnd/keychain"
	"github.com/lightningnetwork/lnd/lnwire"
	"golang.org/x/time/rate"

	"github.com/mit-dci/hodl/eventbus"
	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/logging"
	"github.com/mit-dci/hodl/tor"
)

// DefaultDialTimeout bounds the dial plus the handshake.
const DefaultDialTimeout = 30 * time.Second

// PeerManager .
type PeerManager struct {

	// Biographical.
	idkey  *btcec.PrivateKey
	peerdb lncore.PeerStorage
	ebus   *eventbus.EventBus

	// Dialing.
	net         tor.Net
	limiter     *rate.Limiter
	DialTimeout time.Duration

	// Peer tracking, by hex pubkey.
	peerMap map[string]*Peer

	// Accepting connections.
	listeningPorts map[int]*listeningthread

	// Sync.
	mtx sync.Mutex
}

// NewPeerManager makes a peer manager for the identity key.  Outbound dials
// go through n at no more than dialRate per second; rate.Inf turns the
// throttle off.
func NewPeerManager(idkey *btcec.PrivateKey, pdb lncore.PeerStorage, bus *eventbus.EventBus,
	n tor.Net, dialRate rate.Limit) *PeerManager {

	return &PeerManager{
		idkey:          idkey,
		peerdb:         pdb,
		ebus:           bus,
		net:            n,
		limiter:        rate.NewLimiter(dialRate, 1),
		DialTimeout:    DefaultDialTimeout,
		peerMap:        map[string]*Peer{},
		listeningPorts: map[int]*listeningthread{},
	}
}

// GetExternalAddress returns our identity pubkey in hex, what other nodes
// put in front of the @.
func (pm *PeerManager) GetExternalAddress() string {
	return hex.EncodeToString(pm.idkey.PubKey().SerializeCompressed())
}

// GetPeer returns the connected peer with the pubkey, or nil.
func (pm *PeerManager) GetPeer(pubkey string) *Peer {
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	return pm.peerMap[pubkey]
}

// ListPeers returns every connected peer.
func (pm *PeerManager) ListPeers() []*Peer {
	pm.mtx.Lock()
	defer pm.mtx.Unlock()

	out := make([]*Peer, 0, len(pm.peerMap))
	for _, p := range pm.peerMap {
		out = append(out, p)
	}
	return out
}

// TryConnectAddress connects to a pubkey@host:port string.
func (pm *PeerManager) TryConnectAddress(ctx context.Context, addr string) (*Peer, error) {
	pa, err := lncore.ParsePeerAddress(addr)
	if err != nil {
		return nil, err
	}
	return pm.ConnectPeer(ctx, pa.Pubkey, pa.Host, pa.Port)
}

// ConnectPeer connects to the node with the hex pubkey at host:port.  If
// we're already connected to it, that peer is returned.
func (pm *PeerManager) ConnectPeer(ctx context.Context, pubkey, host string, port uint16) (*Peer, error) {

	remote, addr, err := validatePeer(pubkey, host, port)
	if err != nil {
		return nil, err
	}

	if p := pm.GetPeer(pubkey); p != nil {
		logging.Infof("peermgr: already connected to %s\n", pubkey)
		return p, nil
	}

	err = pm.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: dial throttled: %w", lncore.ErrFailedPeerConnection, err)
	}

	dialer := func(network, address string, timeout time.Duration) (net.Conn, error) {
		dctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		c, err := pm.net.Dial(dctx, host, port)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	na := &lnwire.NetAddress{
		IdentityKey: remote,
		Address:     addr,
	}

	logging.Infof("peermgr: connecting to %s@%s\n", pubkey, addr)
	conn, err := brontide.Dial(&keychain.PrivKeyECDH{PrivKey: pm.idkey}, na, pm.DialTimeout, dialer)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", lncore.ErrFailedPeerConnection, addr, err)
	}

	p := newPeer(conn, remote, addr.String(), false)
	pm.registerPeer(p)
	return p, nil
}

// validatePeer checks the pubkey and host before anything touches the
// network.
func validatePeer(pubkey, host string, port uint16) (*btcec.PublicKey, net.Addr, error) {

	raw, err := hex.DecodeString(pubkey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pubkey %q isn't hex", lncore.ErrInvalidPeerInfo, pubkey)
	}
	remote, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pubkey %q: %w", lncore.ErrInvalidPeerInfo, pubkey, err)
	}

	if host == "" || port == 0 {
		return nil, nil, fmt.Errorf("%w: need a host and port", lncore.ErrInvalidPeerInfo)
	}

	if lncore.IsOnionHost(host) {
		oa, err := tor.ParseOnionAddr(host, port)
		if err != nil {
			return nil, nil, err
		}
		return remote, oa, nil
	}

	return remote, hostAddr(net.JoinHostPort(host, strconv.Itoa(int(port)))), nil
}

// hostAddr is a host:port that may not be resolvable here.
type hostAddr string

func (a hostAddr) Network() string { return "tcp" }
func (a hostAddr) String() string  { return string(a) }

func (pm *PeerManager) registerPeer(p *Peer) {

	key := p.PubkeyHex()

	pm.mtx.Lock()
	if old, ok := pm.peerMap[key]; ok {
		// Newest connection wins.
		logging.Infof("peermgr: replacing connection to %s\n", key)
		old.conn.Close()
	}
	pm.peerMap[key] = p
	p.pmgr = pm
	pm.mtx.Unlock()

	pm.rememberPeer(p)
	logging.Infof("peermgr: New peer %s (%s, inbound %v)\n", key, p.NetAddr, p.Inbound)

	// Announce the peer has been added.
	pm.publish(NewPeerEvent{
		Peer:            p,
		RemoteInitiated: p.Inbound,
	})

	go pm.processConnectionFeed(p)
}

// rememberPeer writes the peer to the db, giving it an index if it's new.
// Inbound connections come from ephemeral ports, so their address isn't
// kept.
func (pm *PeerManager) rememberPeer(p *Peer) {
	key := p.PubkeyHex()

	pi, err := pm.peerdb.GetPeerInfo(key)
	if err != nil {
		logging.Errorf("peermgr: loading peer %s: %s\n", key, err.Error())
		return
	}

	if pi == nil {
		idx, err := pm.peerdb.GetUniquePeerIdx()
		if err != nil {
			logging.Errorf("peermgr: peer idx for %s: %s\n", key, err.Error())
			return
		}
		pi = &lncore.PeerInfo{Pubkey: key, PeerIdx: idx}
	}
	if !p.Inbound {
		addr := p.NetAddr
		pi.NetAddr = &addr
	}
	pi.LastSeen = time.Now().Unix()

	p.Idx = pi.PeerIdx
	if pi.Nickname != nil {
		p.Nickname = *pi.Nickname
	}

	err = pm.peerdb.UpdatePeer(key, pi)
	if err != nil {
		logging.Errorf("peermgr: saving peer %s: %s\n", key, err.Error())
	}
}

func (pm *PeerManager) unregisterPeer(p *Peer) {

	pm.mtx.Lock()
	defer pm.mtx.Unlock()

	key := p.PubkeyHex()
	if pm.peerMap[key] == p {
		logging.Infof("peermgr: Unregistering peer: %s\n", key)
		delete(pm.peerMap, key)
	}
}

// DisconnectPeer closes the connection.  The read loop notices, unregisters
// the peer and publishes the disconnect.
func (pm *PeerManager) DisconnectPeer(pubkey string) error {
	p := pm.GetPeer(pubkey)
	if p == nil {
		return fmt.Errorf("not connected to %s", pubkey)
	}
	p.disconnectReason("disconnected")
	return p.conn.Close()
}

// Close disconnects everyone and stops every listener.
func (pm *PeerManager) Close() {
	pm.mtx.Lock()
	ports := make([]int, 0, len(pm.listeningPorts))
	for port := range pm.listeningPorts {
		ports = append(ports, port)
	}
	peers := make([]*Peer, 0, len(pm.peerMap))
	for _, p := range pm.peerMap {
		peers = append(peers, p)
	}
	pm.mtx.Unlock()

	for _, port := range ports {
		pm.StopListening(port)
	}
	for _, p := range peers {
		p.disconnectReason("shutdown")
		p.conn.Close()
	}
}

func (pm *PeerManager) publish(e eventbus.Event) {
	if pm.ebus == nil {
		return
	}
	var err error
	if e.Flags()&eventbus.EFLAG_ASYNC_UNSAFE != 0 {
		err = pm.ebus.PublishNonblocking(e)
	} else {
		_, err = pm.ebus.Publish(e)
	}
	if err != nil {
		logging.Warnf("peermgr: publishing %s: %s\n", e.Name(), err.Error())
	}
}
