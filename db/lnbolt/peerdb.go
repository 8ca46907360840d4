// Package lnbolt keeps peer records in bolt.
package lnbolt

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/lnutil"
)

var (
	peersLabel    = []byte(`peers`)
	peerMetaLabel = []byte(`peersmeta`)
	pdbbuckets    = [][]byte{
		peersLabel,
		peerMetaLabel,
	}

	peerIdxLast = []byte(`lastpeeridx`)
)

// PeerDB is a lncore.PeerStorage on top of a bolt file.
type PeerDB struct {
	db *bolt.DB
}

var _ lncore.PeerStorage = (*PeerDB)(nil)

// OpenPeerDB opens or creates the peer database at path.
func OpenPeerDB(path string) (*PeerDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}

	pdb := &PeerDB{db: db}
	err = pdb.init()
	if err != nil {
		db.Close()
		return nil, err
	}
	return pdb, nil
}

func (pdb *PeerDB) init() error {
	return pdb.db.Update(func(tx *bolt.Tx) error {
		for _, n := range pdbbuckets {
			_, err := tx.CreateBucketIfNotExists(n)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying file.
func (pdb *PeerDB) Close() error {
	return pdb.db.Close()
}

// GetPeerKeys lists the pubkeys of every stored peer.
func (pdb *PeerDB) GetPeerKeys() ([]string, error) {

	keys := make([]string, 0)

	err := pdb.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(peersLabel).Cursor()
		for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// GetPeerInfo returns nil without an error if we don't know the peer.
func (pdb *PeerDB) GetPeerInfo(pubkey string) (*lncore.PeerInfo, error) {

	var raw []byte

	// Copy it out, the slice is only valid inside the tx.
	err := pdb.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(peersLabel).Get([]byte(pubkey))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, nil
	}

	var pi lncore.PeerInfo
	err = json.Unmarshal(raw, &pi)
	if err != nil {
		return nil, fmt.Errorf("peer %s: %w", pubkey, err)
	}

	return &pi, nil
}

// GetPeerInfos returns everything, keyed by pubkey.
func (pdb *PeerDB) GetPeerInfos() (map[string]lncore.PeerInfo, error) {

	raws := map[string][]byte{}

	err := pdb.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(peersLabel).ForEach(func(k, v []byte) error {
			raws[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]lncore.PeerInfo, len(raws))
	for k, v := range raws {
		var pi lncore.PeerInfo
		err := json.Unmarshal(v, &pi)
		if err != nil {
			return nil, fmt.Errorf("peer %s: %w", k, err)
		}
		out[k] = pi
	}

	return out, nil
}

// AddPeer stores pi, overwriting anything already there.
func (pdb *PeerDB) AddPeer(pubkey string, pi lncore.PeerInfo) error {
	return pdb.UpdatePeer(pubkey, &pi)
}

// UpdatePeer .
func (pdb *PeerDB) UpdatePeer(pubkey string, pi *lncore.PeerInfo) error {

	piraw, err := json.Marshal(pi)
	if err != nil {
		return err
	}

	return pdb.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(peersLabel).Put([]byte(pubkey), piraw)
	})
}

// DeletePeer .
func (pdb *PeerDB) DeletePeer(pubkey string) error {
	return pdb.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(peersLabel).Delete([]byte(pubkey))
	})
}

// GetUniquePeerIdx hands out peer indexes starting at 1, never the same one
// twice.
func (pdb *PeerDB) GetUniquePeerIdx() (uint32, error) {

	var pidx uint32

	err := pdb.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(peerMetaLabel)

		// Get the last unique peer idx, or create it.
		pidx = 1
		if v := b.Get(peerIdxLast); v != nil {
			pidx = lnutil.BtU32(v)
		}

		// Increment it.
		return b.Put(peerIdxLast, lnutil.U32tB(pidx+1))
	})

	if err != nil {
		return 0, err
	}
	return pidx, nil
}
