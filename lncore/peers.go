package lncore

// PeerStorage is storage for peer data, keyed by the hex identity pubkey.
type PeerStorage interface {
	GetPeerKeys() ([]string, error)
	GetPeerInfo(pubkey string) (*PeerInfo, error)
	GetPeerInfos() (map[string]PeerInfo, error)
	AddPeer(pubkey string, pi PeerInfo) error
	UpdatePeer(pubkey string, pi *PeerInfo) error
	DeletePeer(pubkey string) error

	GetUniquePeerIdx() (uint32, error)
}

// PeerInfo is what we remember about a peer between runs.
type PeerInfo struct {
	Pubkey   string  `json:"pubkey"`
	Nickname *string `json:"name"`
	NetAddr  *string `json:"netaddr"` // host:port, possibly an onion

	// LastSeen is unix seconds of the last successful connection.
	LastSeen int64 `json:"last_seen"`

	PeerIdx uint32 `json:"peeridx"`
}
