// Package nat opens the peer port on the local router.
package nat

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Mode picks the port mapping protocol.
type Mode string

const (
	ModeNone Mode = ""
	ModeUpnp Mode = "upnp"
	ModePmp  Mode = "pmp"
)

// DefaultPmpTimeout bounds each NAT-PMP request.
const DefaultPmpTimeout = 10 * time.Second

// Mapping is an open port on the router.  Close removes it.
type Mapping interface {
	ExternalIP() net.IP
	Close() error
}

// ParseMode checks a --nat setting.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNone, ModeUpnp, ModePmp:
		return Mode(s), nil
	}
	return ModeNone, fmt.Errorf("invalid NAT type: %s", s)
}

// Map opens port with the given mode.  ModeNone gives a nil mapping.
func Map(ctx context.Context, mode Mode, port uint16) (Mapping, error) {
	switch mode {
	case ModeNone:
		return nil, nil
	case ModeUpnp:
		return SetupUpnp(ctx, port)
	case ModePmp:
		return SetupPmp(DefaultPmpTimeout, port)
	}
	return nil, fmt.Errorf("invalid NAT type: %s", mode)
}
