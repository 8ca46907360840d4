package lnp2p

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/brontide"

	"github.com/mit-dci/hodl/lncore"
)

// A Peer is a remote node that's somehow connected to us.
type Peer struct {
	Pubkey   *btcec.PublicKey
	NetAddr  string
	Idx      uint32
	Nickname string
	Inbound  bool

	// ConnID tags this connection's log lines.
	ConnID      string
	ConnectedAt time.Time

	conn *brontide.Conn
	pmgr *PeerManager

	wmtx sync.Mutex

	rmtx   sync.Mutex
	reason string
}

func newPeer(conn *brontide.Conn, remote *btcec.PublicKey, netAddr string, inbound bool) *Peer {
	return &Peer{
		Pubkey:      remote,
		NetAddr:     netAddr,
		Inbound:     inbound,
		ConnID:      uuid.NewString(),
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// PubkeyHex is the peer's identity key, compressed, in hex.
func (p *Peer) PubkeyHex() string {
	return hex.EncodeToString(p.Pubkey.SerializeCompressed())
}

// SendMessage writes one message to the peer.
func (p *Peer) SendMessage(msg []byte) error {
	p.wmtx.Lock()
	defer p.wmtx.Unlock()

	err := p.conn.WriteMessage(msg)
	if err != nil {
		return err
	}
	_, err = p.conn.Flush()
	return err
}

// IntoPeerInfo generates the PeerInfo DB struct for the Peer.
func (p *Peer) IntoPeerInfo() lncore.PeerInfo {
	pi := lncore.PeerInfo{
		Pubkey:   p.PubkeyHex(),
		LastSeen: p.ConnectedAt.Unix(),
		PeerIdx:  p.Idx,
	}
	if p.Nickname != "" {
		nick := p.Nickname
		pi.Nickname = &nick
	}
	if p.NetAddr != "" {
		addr := p.NetAddr
		pi.NetAddr = &addr
	}
	return pi
}

// disconnectReason sets what the disconnect event will say, if nothing
// else set it first.
func (p *Peer) disconnectReason(r string) {
	p.rmtx.Lock()
	defer p.rmtx.Unlock()
	if p.reason == "" {
		p.reason = r
	}
}

func (p *Peer) getReason(fallback string) string {
	p.rmtx.Lock()
	defer p.rmtx.Unlock()
	if p.reason == "" {
		return fallback
	}
	return p.reason
}
