package tor

import (
	"encoding/base32"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mit-dci/hodl/lncore"
)

const (
	// base32Alphabet is the alphabet used for encoding and decoding v2 and
	// v3 onion addresses.
	base32Alphabet = "abcdefghijklmnopqrstuvwxyz234567"

	// OnionSuffixLen is the length of the ".onion" suffix.
	OnionSuffixLen = len(lncore.OnionSuffix)

	// V2DecodedLen is the length of a decoded v2 onion service.
	V2DecodedLen = 10

	// V2Len is the length of a v2 onion service including the ".onion"
	// suffix.
	V2Len = 22

	// V3DecodedLen is the length of a decoded v3 onion service.
	V3DecodedLen = 35

	// V3Len is the length of a v3 onion service including the ".onion"
	// suffix.
	V3Len = 62
)

var (
	// Base32Encoding represents the Tor's base32-encoding scheme for v2 and
	// v3 onion addresses.
	Base32Encoding = base32.NewEncoding(base32Alphabet)
)

// OnionAddr represents a Tor network end point onion address.
type OnionAddr struct {
	// OnionService is the host of the onion address.
	OnionService string

	// Port is the port of the onion address.
	Port int
}

// A compile-time check to ensure that OnionAddr implements the net.Addr
// interface.
var _ net.Addr = (*OnionAddr)(nil)

// String returns the string representation of an onion address.
func (o *OnionAddr) String() string {
	return net.JoinHostPort(o.OnionService, strconv.Itoa(o.Port))
}

// Network returns the network that this implementation of net.Addr will use.
// In this case, because Tor only allows TCP connections, the network is "tcp".
func (o *OnionAddr) Network() string {
	return "tcp"
}

// Version is 2 or 3 depending on the length of the service name.
func (o *OnionAddr) Version() int {
	if len(o.OnionService) == V2Len {
		return 2
	}
	return 3
}

// ParseOnionAddr checks that host really is a v2 or v3 onion service name,
// which the plain suffix check in lncore doesn't.
func ParseOnionAddr(host string, port uint16) (*OnionAddr, error) {
	if !lncore.IsOnionHost(host) {
		return nil, fmt.Errorf("%w: %q is not an onion host", lncore.ErrInvalidPeerInfo, host)
	}

	var decodedLen int
	switch len(host) {
	case V2Len:
		decodedLen = V2DecodedLen
	case V3Len:
		decodedLen = V3DecodedLen
	default:
		return nil, fmt.Errorf("%w: onion host %q has unknown length %d",
			lncore.ErrInvalidPeerInfo, host, len(host))
	}

	name := strings.ToLower(host[:len(host)-OnionSuffixLen])
	raw, err := Base32Encoding.DecodeString(name)
	if err != nil {
		return nil, fmt.Errorf("%w: onion host %q: %s", lncore.ErrInvalidPeerInfo, host, err.Error())
	}
	if len(raw) != decodedLen {
		return nil, fmt.Errorf("%w: onion host %q decodes to %d bytes",
			lncore.ErrInvalidPeerInfo, host, len(raw))
	}

	return &OnionAddr{
		OnionService: name + lncore.OnionSuffix,
		Port:         int(port),
	}, nil
}
