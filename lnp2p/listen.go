package lnp2p

import (
	"context"
	"fmt"
	"net"

	"github.com/lightningnetwork/lnd/brontide"
	"github.com/lightningnetwork/lnd/keychain"

	"github.com/mit-dci/hodl/logging"
	"github.com/mit-dci/hodl/nat"
)

type listeningthread struct {
	listener *brontide.Listener
	mapping  nat.Mapping

	// quit is closed by StopListening before the listener is.
	quit chan struct{}
}

// ListenOnPort starts accepting peers on port, mapping it on the router
// first if mode says so.  Port 0 picks a free one, see GetListeningAddrs.
func (pm *PeerManager) ListenOnPort(ctx context.Context, port int, mode nat.Mode) error {

	pm.mtx.Lock()
	_, already := pm.listeningPorts[port]
	pm.mtx.Unlock()
	if already && port != 0 {
		return fmt.Errorf("already listening on %d", port)
	}

	if pm.ebus != nil {
		res, err := pm.ebus.Publish(NewListeningPortEvent{Port: port})
		if err != nil {
			return err
		}
		if !res {
			return fmt.Errorf("listen cancelled by event handler")
		}
	}

	listener, err := brontide.NewListener(&keychain.PrivKeyECDH{PrivKey: pm.idkey}, fmt.Sprintf(":%d", port))
	if err != nil {
		logging.Errorf("peermgr: listening on %d failed: %s\n", port, err.Error())
		pm.publish(StopListeningPortEvent{
			Port:   port,
			Reason: "initfail",
		})
		return err
	}

	// The real port, if we were given 0.
	port = listener.Addr().(*net.TCPAddr).Port

	mapping, err := nat.Map(ctx, mode, uint16(port))
	if err != nil {
		listener.Close()
		return err
	}

	lt := &listeningthread{
		listener: listener,
		mapping:  mapping,
		quit:     make(chan struct{}),
	}
	pm.mtx.Lock()
	pm.listeningPorts[port] = lt
	pm.mtx.Unlock()

	logging.Infof("peermgr: listening on %s\n", listener.Addr())
	go pm.acceptConnections(lt, port)

	return nil
}

// GetListeningAddrs returns the listening addresses.
func (pm *PeerManager) GetListeningAddrs() []string {
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	addrs := make([]string, 0, len(pm.listeningPorts))
	for _, t := range pm.listeningPorts {
		addrs = append(addrs, t.listener.Addr().String())
	}
	return addrs
}

// StopListening closes the listener on port.  The accept loop cleans up.
func (pm *PeerManager) StopListening(port int) error {

	pm.mtx.Lock()
	lt, ok := pm.listeningPorts[port]
	if ok {
		select {
		case <-lt.quit:
			ok = false
		default:
			close(lt.quit)
		}
	}
	pm.mtx.Unlock()
	if !ok {
		return fmt.Errorf("not listening on %d", port)
	}

	if lt.mapping != nil {
		err := lt.mapping.Close()
		if err != nil {
			logging.Warnf("peermgr: removing port mapping for %d: %s\n", port, err.Error())
		}
	}

	// This will interrupt the Accept call in the other goroutine.
	return lt.listener.Close()
}

func (pm *PeerManager) acceptConnections(lt *listeningthread, port int) {

	stopEvent := StopListeningPortEvent{
		Port:   port,
		Reason: "closed",
	}

accept:
	for {
		netConn, err := lt.listener.Accept()
		if err != nil {
			select {
			case <-lt.quit:
				break accept
			default:
			}
			// A failed handshake only costs that one connection.
			logging.Warnf("peermgr: inbound handshake failed: %s\n", err.Error())
			continue
		}

		conn, ok := netConn.(*brontide.Conn)
		if !ok {
			netConn.Close()
			continue
		}

		p := newPeer(conn, conn.RemotePub(), conn.RemoteAddr().String(), true)
		pm.registerPeer(p)
	}

	pm.mtx.Lock()
	delete(pm.listeningPorts, port)
	pm.mtx.Unlock()

	pm.publish(stopEvent)
}

// processConnectionFeed reads messages until the connection drops, then
// unregisters the peer.
func (pm *PeerManager) processConnectionFeed(p *Peer) {

	log := logging.WithField("conn", p.ConnID)
	log.Debugf("reading from %s", p.PubkeyHex())

	for {
		msg, err := p.conn.ReadNextMessage()
		if err != nil {
			log.Infof("connection to %s ended: %s", p.PubkeyHex(), err.Error())
			break
		}

		// The buffer gets reused by the next read.
		raw := append([]byte(nil), msg...)
		pm.publish(NetMessageRecvEvent{Peer: p, Raw: raw})
	}

	p.conn.Close()
	pm.unregisterPeer(p)
	pm.publish(PeerDisconnectEvent{
		Peer:   p,
		Reason: p.getReason("remote"),
	})
}
