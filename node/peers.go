package node

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/lnp2p"
	"github.com/mit-dci/hodl/lnutil"
)

// ConnectPeer connects to pubkey at host:port over whatever route the node
// is configured for.
func (n *Node) ConnectPeer(ctx context.Context, pubkey, host string, port uint16) error {
	_, err := n.Peers.ConnectPeer(ctx, pubkey, host, port)
	return err
}

// ListPeers returns the connected peers.
func (n *Node) ListPeers(ctx context.Context) []*lnp2p.Peer {
	return n.Peers.ListPeers()
}

// DisconnectPeer .
func (n *Node) DisconnectPeer(ctx context.Context, pubkey string) error {
	return n.Peers.DisconnectPeer(pubkey)
}

// SignMessage signs msg with the node key, lnd style.
func (n *Node) SignMessage(ctx context.Context, msg []byte) (string, error) {
	return lnutil.SignMessage(n.key, msg)
}

// VerifyMessage recovers who signed msg.  valid is whether that's a key we
// know: ours or one of our stored peers.
func (n *Node) VerifyMessage(ctx context.Context, msg []byte, sig string) (pubkey string, valid bool, err error) {
	pub, err := lnutil.RecoverMessageSigner(msg, sig)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", lncore.ErrInvalidInput, err)
	}
	pubkey = hex.EncodeToString(pub.SerializeCompressed())

	if pubkey == n.Pubkey() {
		return pubkey, true, nil
	}
	pi, err := n.peerdb.GetPeerInfo(pubkey)
	if err != nil {
		return pubkey, false, err
	}
	return pubkey, pi != nil, nil
}
