package nat

import (
	"context"
	"fmt"
	"net"

	UpnP "github.com/NebulousLabs/go-UpnP"

	"github.com/mit-dci/hodl/logging"
)

type upnpMapping struct {
	igd  *UpnP.IGD
	port uint16
	ip   net.IP
}

func (m *upnpMapping) ExternalIP() net.IP { return m.ip }

func (m *upnpMapping) Close() error {
	return m.igd.Clear(m.port)
}

// SetupUpnp forwards port on the router found by UPnP discovery.
func SetupUpnp(ctx context.Context, port uint16) (Mapping, error) {
	// Connect to router
	igd, err := UpnP.DiscoverCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("upnp: unable to discover router: %w", err)
	}

	// Get external IP
	ipstr, err := igd.ExternalIP()
	if err != nil {
		return nil, fmt.Errorf("upnp: unable to get external ip: %w", err)
	}
	logging.Infof("nat: external IP is %s\n", ipstr)

	// Forward peer port
	err = igd.Forward(port, "hodl peer port")
	if err != nil {
		return nil, fmt.Errorf("upnp: unable to forward peer port %d: %w", port, err)
	}

	return &upnpMapping{igd: igd, port: port, ip: net.ParseIP(ipstr)}, nil
}
