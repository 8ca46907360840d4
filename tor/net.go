package tor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/lnio"
	"github.com/mit-dci/hodl/logging"
)

// Net is a way of reaching peers.  Whatever the route, the caller gets a
// plain TCP socket.
type Net interface {
	Dial(ctx context.Context, host string, port uint16) (*net.TCPConn, error)
}

// ClearNet dials directly.  It's what gets used with tor off.
type ClearNet struct {
	Timeout time.Duration
}

func (c *ClearNet) Dial(ctx context.Context, host string, port uint16) (*net.TCPConn, error) {

	if lncore.IsOnionHost(host) {
		return nil, fmt.Errorf("%w: can't reach %s without tor", lncore.ErrFailedPeerConnection, host)
	}

	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lncore.ErrFailedPeerConnection, err)
	}
	return conn.(*net.TCPConn), nil
}

// ProxyNet routes everything away from the clear net:
//
//	.onion hosts go straight through the tor client, never the SOCKS proxy
//	other hosts use the SOCKS proxy if a port is configured
//	otherwise they also go through the tor client
//
// Streams from the tor client are bridged into local sockets.
type ProxyNet struct {
	tor   *Manager
	socks *SOCKSNet
}

// NewProxyNet builds the selector around a bootstrapped manager.  With socks
// nil the manager's own SOCKS port is used, if it has one.
func NewProxyNet(m *Manager, socks *SOCKSNet) *ProxyNet {
	if socks == nil && m.SOCKSPort() != 0 {
		socks = LocalSOCKS(m.SOCKSPort())
	}
	return &ProxyNet{
		tor:   m,
		socks: socks,
	}
}

func (p *ProxyNet) Dial(ctx context.Context, host string, port uint16) (*net.TCPConn, error) {

	if lncore.IsOnionHost(host) {
		logging.Debugf("tor: dialing onion %s:%d through the tor client\n", host, port)
		return p.viaTor(ctx, host, port)
	}

	if p.socks != nil {
		logging.Debugf("tor: dialing %s:%d through socks proxy %s\n", host, port, p.socks.Addr)
		return p.socks.Dial(ctx, host, port)
	}

	logging.Debugf("tor: dialing %s:%d through a tor circuit\n", host, port)
	return p.viaTor(ctx, host, port)
}

func (p *ProxyNet) viaTor(ctx context.Context, host string, port uint16) (*net.TCPConn, error) {

	stream, err := p.tor.Connect(ctx, host, port)
	if err != nil {
		return nil, fmt.Errorf("%w: tor connect %s:%d: %w", lncore.ErrFailedPeerConnection, host, port, err)
	}

	// Bridge closes stream itself if it fails.
	conn, err := lnio.Bridge(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lncore.ErrFailedPeerConnection, err)
	}
	return conn, nil
}

// SessionNet is a ProxyNet that waits for the session's bootstrap on first
// use.  A failed bootstrap fails every dial after it.
type SessionNet struct {
	Session *Session

	// SOCKS overrides the manager's own SOCKS port when set.
	SOCKS *SOCKSNet
}

func (s *SessionNet) Dial(ctx context.Context, host string, port uint16) (*net.TCPConn, error) {
	m, err := s.Session.Manager(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lncore.ErrFailedPeerConnection, err)
	}
	return NewProxyNet(m, s.SOCKS).Dial(ctx, host, port)
}
