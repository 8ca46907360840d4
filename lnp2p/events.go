package lnp2p

import (
	"github.com/mit-dci/hodl/eventbus"
)

// NewPeerEvent is fired when a new peer is registered.
type NewPeerEvent struct {
	Peer            *Peer
	RemoteInitiated bool
}

// Name .
func (e NewPeerEvent) Name() string {
	return "lnp2p.peer.new"
}

// Flags .
func (e NewPeerEvent) Flags() uint8 {
	return eventbus.EFLAG_UNCANCELLABLE
}

// PeerDisconnectEvent is fired when a peer is disconnected.
type PeerDisconnectEvent struct {
	Peer   *Peer
	Reason string
}

// Name .
func (e PeerDisconnectEvent) Name() string {
	return "lnp2p.peer.disconnect"
}

// Flags .
func (e PeerDisconnectEvent) Flags() uint8 {
	return eventbus.EFLAG_UNCANCELLABLE
}

// NetMessageRecvEvent carries one message read off a peer's connection.
// Decoding it is the wire layer's business.
type NetMessageRecvEvent struct {
	Peer *Peer
	Raw  []byte
}

// Name .
func (e NetMessageRecvEvent) Name() string {
	return "lnp2p.msg.recv"
}

// Flags .
func (e NetMessageRecvEvent) Flags() uint8 {
	return eventbus.EFLAG_UNCANCELLABLE
}

// NewListeningPortEvent fires before we start listening.  Cancelling it
// stops the listen.
type NewListeningPortEvent struct {
	Port int
}

// Name .
func (e NewListeningPortEvent) Name() string {
	return "lnp2p.listen.start"
}

// Flags .
func (e NewListeningPortEvent) Flags() uint8 {
	return eventbus.EFLAG_NORMAL
}

// StopListeningPortEvent .
type StopListeningPortEvent struct {
	Port   int
	Reason string
}

// Name .
func (e StopListeningPortEvent) Name() string {
	return "lnp2p.listen.stop"
}

// Flags .
func (e StopListeningPortEvent) Flags() uint8 {
	return eventbus.EFLAG_ASYNC
}
