package lncore

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// LnDefaultPort is from BOLT1.
const LnDefaultPort = 9735

// OnionSuffix marks hosts that only resolve inside the onion overlay.
const OnionSuffix = ".onion"

// PeerAddress is a peer's identity pubkey plus where to reach it.
type PeerAddress struct {
	// Pubkey is the hex identity key, as it appeared in the address string.
	Pubkey string

	// Host may be an IP, a DNS name or an onion address.  It's not checked
	// beyond the split, so it can even be empty.
	Host string

	Port uint16
}

// ParsePeerAddress splits a pubkey@host:port string.  Anything that doesn't
// come apart into exactly those pieces is ErrInvalidPeerInfo.
func ParsePeerAddress(s string) (*PeerAddress, error) {

	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: expected pubkey@host:port, got %q", ErrInvalidPeerInfo, s)
	}

	hostport := strings.Split(parts[1], ":")
	if len(hostport) != 2 {
		return nil, fmt.Errorf("%w: expected host:port, got %q", ErrInvalidPeerInfo, parts[1])
	}

	port, err := strconv.ParseUint(hostport[1], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: bad port %q", ErrInvalidPeerInfo, hostport[1])
	}

	return &PeerAddress{
		Pubkey: parts[0],
		Host:   hostport[0],
		Port:   uint16(port),
	}, nil
}

// IsOnion says if the host has to be reached through the onion overlay.
func (a *PeerAddress) IsOnion() bool {
	return IsOnionHost(a.Host)
}

// HostPort gives host:port in the form the dialers want.
func (a *PeerAddress) HostPort() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// String gives back the pubkey@host:port form.
func (a *PeerAddress) String() string {
	return fmt.Sprintf("%s@%s:%d", a.Pubkey, a.Host, a.Port)
}

// IsOnionHost is a plain suffix check, nothing else about the host is
// validated.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(host, OnionSuffix)
}
