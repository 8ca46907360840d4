package hodlrpc

import (
	"fmt"
	"time"

	"github.com/mit-dci/hodl/lncore"
	"github.com/mit-dci/hodl/logging"
)

// ------------------------- connect

type ConnectArgs struct {
	// LNAddr is pubkey@host[:port].
	LNAddr string
}

func (r *HodlRPC) Connect(args ConnectArgs, reply *StatusReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	pa, err := lncore.ParsePeerAddress(args.LNAddr)
	if err != nil {
		return rpcErr(err)
	}
	err = r.Node.ConnectPeer(ctx, pa.Pubkey, pa.Host, pa.Port)
	if err != nil {
		return rpcErr(err)
	}
	reply.Status = fmt.Sprintf("connected to %s", pa)
	return nil
}

// ------------------------- list connections

type PeerDesc struct {
	Pubkey      string
	NetAddr     string
	PeerIdx     uint32
	Nickname    string
	Inbound     bool
	ConnectedAt time.Time
}

type ListConnectionsReply struct {
	Connections []PeerDesc
	MyPubkey    string
}

func (r *HodlRPC) ListConnections(args NoArgs, reply *ListConnectionsReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	for _, p := range r.Node.ListPeers(ctx) {
		reply.Connections = append(reply.Connections, PeerDesc{
			Pubkey:      p.PubkeyHex(),
			NetAddr:     p.NetAddr,
			PeerIdx:     p.Idx,
			Nickname:    p.Nickname,
			Inbound:     p.Inbound,
			ConnectedAt: p.ConnectedAt,
		})
	}
	reply.MyPubkey = r.Node.Pubkey()
	return nil
}

// ------------------------- disconnect

type DisconnectArgs struct {
	Pubkey string
}

func (r *HodlRPC) Disconnect(args DisconnectArgs, reply *StatusReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	err := r.Node.DisconnectPeer(ctx, args.Pubkey)
	if err != nil {
		return rpcErr(err)
	}
	reply.Status = fmt.Sprintf("disconnected %s", args.Pubkey)
	return nil
}

// ------------------------- sign / verify

type SignMessageArgs struct {
	Message string
}

type SignMessageReply struct {
	Signature string
}

func (r *HodlRPC) SignMessage(args SignMessageArgs, reply *SignMessageReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	sig, err := r.Node.SignMessage(ctx, []byte(args.Message))
	if err != nil {
		return rpcErr(err)
	}
	reply.Signature = sig
	return nil
}

type VerifyMessageArgs struct {
	Message   string
	Signature string
}

type VerifyMessageReply struct {
	Pubkey string
	Valid  bool
}

func (r *HodlRPC) VerifyMessage(args VerifyMessageArgs, reply *VerifyMessageReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	pub, valid, err := r.Node.VerifyMessage(ctx, []byte(args.Message), args.Signature)
	if err != nil {
		return rpcErr(err)
	}
	reply.Pubkey = pub
	reply.Valid = valid
	return nil
}

// ------------------------- info / stop

type GetInfoReply struct {
	Pubkey     string
	Lifecycle  string
	TorState   string
	ListenAddr []string
	Peers      int
}

func (r *HodlRPC) GetInfo(args NoArgs, reply *GetInfoReply) error {
	ctx, cancel := r.ctx()
	defer cancel()

	reply.Pubkey = r.Node.Pubkey()
	reply.Lifecycle = r.Node.Lifecycle().String()
	reply.TorState = r.Node.TorState().String()
	reply.ListenAddr = r.Node.Peers.GetListeningAddrs()
	reply.Peers = len(r.Node.ListPeers(ctx))
	return nil
}

func (r *HodlRPC) Stop(args NoArgs, reply *StatusReply) error {
	logging.Infof("rpc: stop requested\n")
	select {
	case r.OffButton <- true:
	default:
	}
	reply.Status = "stopping hodld"
	return nil
}
