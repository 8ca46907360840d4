package lnio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mit-dci/hodl/logging"
)

type acceptResult struct {
	conn net.Conn
	err  error
}

// closeWriter is implemented by streams that can half-close.
type closeWriter interface {
	CloseWrite() error
}

// Bridge turns an arbitrary byte stream into a local TCP socket.  It listens
// on an ephemeral loopback port, dials it, and copies between the accepted
// side and stream in the background until either end goes away.  The caller
// gets the dialing side.
//
// If setup fails stream is closed along with anything opened so far.  Once
// the socket is handed back, copy errors only show up as errors or EOF on
// that socket.
func Bridge(ctx context.Context, stream io.ReadWriteCloser) (*net.TCPConn, error) {

	m := getMetrics()
	log := logging.WithField("bridge", uuid.New().String())

	client, server, err := loopbackPair(ctx)
	if err != nil {
		stream.Close()
		m.setups.WithLabelValues("failed").Inc()
		return nil, err
	}

	m.setups.WithLabelValues("ok").Inc()
	log.Debugf("bridging stream via %s <-> %s", client.LocalAddr(), server.LocalAddr())

	go pipe(log, stream, server)

	return client, nil
}

// loopbackPair gives back two ends of a fresh loopback TCP connection.
func loopbackPair(ctx context.Context) (*net.TCPConn, *net.TCPConn, error) {

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, fmt.Errorf("bridge listen: %w", err)
	}
	defer l.Close()

	accepted := make(chan acceptResult, 1)
	go func() {
		c, err := l.Accept()
		accepted <- acceptResult{c, err}
	}()

	// Whatever the accept goroutine ends up with gets closed unless we
	// take it.
	taken := false
	defer func() {
		if !taken {
			go func() {
				if r := <-accepted; r.conn != nil {
					r.conn.Close()
				}
			}()
		}
	}()

	var d net.Dialer
	cc, err := d.DialContext(ctx, "tcp", l.Addr().String())
	if err != nil {
		return nil, nil, fmt.Errorf("bridge dial: %w", err)
	}
	client := cc.(*net.TCPConn)

	var r acceptResult
	select {
	case r = <-accepted:
		taken = true
	case <-ctx.Done():
		client.Close()
		return nil, nil, fmt.Errorf("bridge accept: %w", ctx.Err())
	}
	if r.err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("bridge accept: %w", r.err)
	}
	server := r.conn.(*net.TCPConn)

	// Someone else could have raced us to the port.
	if server.RemoteAddr().String() != client.LocalAddr().String() {
		client.Close()
		server.Close()
		return nil, nil, fmt.Errorf("bridge accept: unexpected peer %s, wanted %s",
			server.RemoteAddr(), client.LocalAddr())
	}

	return client, server, nil
}

// pipe runs until both directions are done, then closes everything.
func pipe(log *logrus.Entry, stream io.ReadWriteCloser, local *net.TCPConn) {

	m := getMetrics()
	m.active.Inc()
	defer m.active.Dec()

	var wg sync.WaitGroup
	wg.Add(2)

	// Remote to local.
	go func() {
		defer wg.Done()
		n, err := io.Copy(local, stream)
		m.copied.WithLabelValues("in").Add(float64(n))
		if err != nil {
			logCopyErr(log, "stream->local", err)
			local.Close()
			stream.Close()
			return
		}
		local.CloseWrite()
	}()

	// Local to remote.
	go func() {
		defer wg.Done()
		n, err := io.Copy(stream, local)
		m.copied.WithLabelValues("out").Add(float64(n))
		if err != nil {
			logCopyErr(log, "local->stream", err)
			local.Close()
			stream.Close()
			return
		}
		if cw, ok := stream.(closeWriter); ok {
			cw.CloseWrite()
		} else {
			stream.Close()
		}
	}()

	wg.Wait()
	local.Close()
	stream.Close()
	log.Debugf("bridge closed")
}

func logCopyErr(log *logrus.Entry, dir string, err error) {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		log.Debugf("%s: %s", dir, err.Error())
		return
	}
	log.Warnf("%s: %s", dir, err.Error())
}
