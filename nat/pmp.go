package nat

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/mit-dci/hodl/logging"
)

// pmpLifetime is how long we ask the gateway to keep a mapping, in seconds.
const pmpLifetime = 7200

// ErrMultipleNAT means the gateway's "external" address is itself private,
// so there's another NAT above it that we can't map through.
var ErrMultipleNAT = errors.New("multiple NATs detected")

// ExternalIP returns the external IP address of the NAT-PMP enabled device.
func ExternalIP(p *natpmp.Client) (net.IP, error) {
	res, err := p.GetExternalAddress()
	if err != nil {
		return nil, err
	}

	ip := net.IP(res.ExternalIPAddress[:])
	if isPrivateIP(ip) {
		return nil, fmt.Errorf("%w: gateway reports %s", ErrMultipleNAT, ip)
	}

	return ip, nil
}

// isPrivateIP is RFC 1918 space, plus carrier grade NAT.
func isPrivateIP(ip net.IP) bool {
	return ip.IsPrivate() || cgnatBlock.Contains(ip)
}

var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

type pmpMapping struct {
	client *natpmp.Client
	port   uint16
	ip     net.IP
}

func (m *pmpMapping) ExternalIP() net.IP { return m.ip }

// Close asks the gateway to drop the mapping, a zero lifetime deletes it.
func (m *pmpMapping) Close() error {
	_, err := m.client.AddPortMapping("tcp", int(m.port), 0, 0)
	return err
}

// SetupPmp maps port on the gateway with NAT-PMP, giving up on each request
// after timeout.
func SetupPmp(timeout time.Duration, port uint16) (Mapping, error) {
	// Retrieve the gateway IP address of the local network.
	gatewayIP, err := gateway.DiscoverGateway()
	if err != nil {
		return nil, fmt.Errorf("pmp: finding gateway: %w", err)
	}

	pmp := natpmp.NewClientWithTimeout(gatewayIP, timeout)

	// We'll then attempt to retrieve the external IP address of this
	// device to ensure it is not behind multiple NATs.
	ip, err := ExternalIP(pmp)
	if err != nil {
		return nil, fmt.Errorf("pmp: %w", err)
	}
	logging.Infof("nat: external IP is %s\n", ip)

	_, err = pmp.AddPortMapping("tcp", int(port), int(port), pmpLifetime)
	if err != nil {
		return nil, fmt.Errorf("pmp: mapping port %d: %w", port, err)
	}

	return &pmpMapping{client: pmp, port: port, ip: ip}, nil
}
