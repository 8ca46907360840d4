package tor

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	bine "github.com/cretz/bine/tor"

	"github.com/mit-dci/hodl/logging"
)

// bineClient runs tor as a child process and dials through its SOCKS
// listener.
type bineClient struct {
	t      *bine.Tor
	dialer *bine.Dialer
	debug  io.WriteCloser
}

// BineBootstrap starts a tor process and waits for it to be usable.  It's
// the Bootstrapper the daemon uses.
func BineBootstrap(ctx context.Context, cfg *Config) (Client, error) {

	debug := logging.Writer(logging.LogLevelDebug)

	conf := &bine.StartConf{
		ExePath:     cfg.ExePath,
		DataDir:     cfg.DataDir,
		DebugWriter: debug,
	}
	if cfg.SOCKSPort != 0 {
		conf.NoAutoSocksPort = true
		conf.ExtraArgs = []string{"--SocksPort", strconv.Itoa(int(cfg.SOCKSPort))}
	}

	// The process lives past ctx, only the waiting below is bounded by it.
	t, err := bine.Start(context.Background(), conf)
	if err != nil {
		debug.Close()
		return nil, fmt.Errorf("start tor: %w", err)
	}

	if err := t.EnableNetwork(ctx, true); err != nil {
		t.Close()
		debug.Close()
		return nil, fmt.Errorf("enable network: %w", err)
	}

	d, err := t.Dialer(ctx, nil)
	if err != nil {
		t.Close()
		debug.Close()
		return nil, fmt.Errorf("tor dialer: %w", err)
	}

	return &bineClient{t: t, dialer: d, debug: debug}, nil
}

func (b *bineClient) Connect(ctx context.Context, host string, port uint16) (io.ReadWriteCloser, error) {
	return b.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
}

func (b *bineClient) Close() error {
	err := b.t.Close()
	b.debug.Close()
	return err
}
