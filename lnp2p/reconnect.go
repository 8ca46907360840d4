package lnp2p

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/mit-dci/hodl/logging"
)

// ReconnectStoredPeers dials every stored peer we have an address for.
// Failures are logged and joined, one bad peer doesn't stop the rest.
func (pm *PeerManager) ReconnectStoredPeers(ctx context.Context) (int, error) {

	infos, err := pm.peerdb.GetPeerInfos()
	if err != nil {
		return 0, err
	}

	n := 0
	var errs []error
	for key, pi := range infos {
		if pi.NetAddr == nil || pm.GetPeer(key) != nil {
			continue
		}

		host, portstr, err := net.SplitHostPort(*pi.NetAddr)
		if err != nil {
			errs = append(errs, fmt.Errorf("peer %s: %w", key, err))
			continue
		}
		port, err := strconv.ParseUint(portstr, 10, 16)
		if err != nil {
			errs = append(errs, fmt.Errorf("peer %s: %w", key, err))
			continue
		}

		_, err = pm.ConnectPeer(ctx, key, host, uint16(port))
		if err != nil {
			logging.Warnf("peermgr: reconnecting %s: %s\n", key, err.Error())
			errs = append(errs, err)
			continue
		}
		n++
	}

	return n, errors.Join(errs...)
}
