package tor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/logging"
)

// DefaultBootstrapTimeout bounds how long we wait for the first circuit.
const DefaultBootstrapTimeout = 3 * time.Minute

// Client is a running onion routing client.
type Client interface {
	// Connect opens a stream to host:port through the overlay.  Onion hosts
	// get resolved inside the overlay, never through DNS.
	Connect(ctx context.Context, host string, port uint16) (io.ReadWriteCloser, error)

	Close() error
}

// Config is what the tor client gets started with.
type Config struct {
	// DataDir keeps tor's state between runs.  Empty means a temp dir.
	DataDir string

	// SOCKSPort, if nonzero, is a local SOCKS5 port that plain peers get
	// dialed through instead of the client's own connect.
	SOCKSPort uint16

	// ExePath is the tor binary.  Empty means look in PATH.
	ExePath string

	BootstrapTimeout time.Duration
}

// A Bootstrapper starts a client and returns once it can build circuits.
type Bootstrapper func(ctx context.Context, cfg *Config) (Client, error)

// Manager is a bootstrapped client and the settings it was started with.  It
// doesn't change after NewManager returns, so any number of dials can share
// one.
type Manager struct {
	client Client
	cfg    Config
}

// NewManager bootstraps a client.  Any failure is ErrBootstrapFailed and no
// manager comes back.
func NewManager(ctx context.Context, cfg Config, boot Bootstrapper) (*Manager, error) {

	if cfg.BootstrapTimeout == 0 {
		cfg.BootstrapTimeout = DefaultBootstrapTimeout
	}

	bctx, cancel := context.WithTimeout(ctx, cfg.BootstrapTimeout)
	defer cancel()

	start := time.Now()
	logging.Infof("tor: bootstrapping (datadir %q, socks port %d)\n", cfg.DataDir, cfg.SOCKSPort)

	client, err := boot(bctx, &cfg)
	if err != nil {
		logging.Errorf("tor: bootstrap failed after %s: %s\n", time.Since(start), err.Error())
		return nil, fmt.Errorf("%w: %w", lncore.ErrBootstrapFailed, err)
	}

	logging.Infof("tor: ready after %s\n", time.Since(start))
	return &Manager{
		client: client,
		cfg:    cfg,
	}, nil
}

// Connect opens a stream through the client.
func (m *Manager) Connect(ctx context.Context, host string, port uint16) (io.ReadWriteCloser, error) {
	return m.client.Connect(ctx, host, port)
}

// SOCKSPort is zero when no SOCKS proxy was configured.
func (m *Manager) SOCKSPort() uint16 {
	return m.cfg.SOCKSPort
}

// Close shuts the client down.
func (m *Manager) Close() error {
	return m.client.Close()
}
