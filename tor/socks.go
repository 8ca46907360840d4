package tor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/proxy"

	"github.com/mit-dci/hodl/lncore"
)

// tcpCapture is the forward dialer under the SOCKS client.  It keeps the raw
// TCP connection so we can hand that back once the handshake is done, since
// the proxy package only returns its own wrapper.
type tcpCapture struct {
	d    net.Dialer
	conn *net.TCPConn
}

func (c *tcpCapture) Dial(network, addr string) (net.Conn, error) {
	return c.DialContext(context.Background(), network, addr)
}

func (c *tcpCapture) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := c.d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("proxy connection is %T, not tcp", conn)
	}
	c.conn = tc
	return conn, nil
}

// SOCKSNet dials everything through a SOCKS5 proxy.
type SOCKSNet struct {
	// Addr is the proxy's host:port.
	Addr string

	// Auth is optional username/password auth.
	Auth *proxy.Auth

	Timeout time.Duration
}

// LocalSOCKS is a SOCKSNet for a proxy on this machine.
func LocalSOCKS(port uint16) *SOCKSNet {
	return &SOCKSNet{Addr: net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port)))}
}

// Dial does the SOCKS5 connect for host:port.  Hostnames are passed to the
// proxy unresolved.
func (s *SOCKSNet) Dial(ctx context.Context, host string, port uint16) (*net.TCPConn, error) {

	if s.Timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	fwd := &tcpCapture{}
	d, err := proxy.SOCKS5("tcp", s.Addr, s.Auth, fwd)
	if err != nil {
		return nil, fmt.Errorf("%w: socks5 %s: %w", lncore.ErrFailedPeerConnection, s.Addr, err)
	}

	target := net.JoinHostPort(host, strconv.Itoa(int(port)))
	conn, err := d.(proxy.ContextDialer).DialContext(ctx, "tcp", target)
	if err != nil {
		// The proxy package closes its own connection on a failed handshake.
		return nil, fmt.Errorf("%w: socks5 %s via %s: %w",
			lncore.ErrFailedPeerConnection, target, s.Addr, err)
	}

	if fwd.conn == nil {
		conn.Close()
		return nil, fmt.Errorf("%w: socks5 %s: no tcp connection underneath",
			lncore.ErrFailedPeerConnection, target)
	}

	return fwd.conn, nil
}
