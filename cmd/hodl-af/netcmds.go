package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/mit-dci/hodl/hodlrpc"
	"github.com/mit-dci/hodl/lnutil"
)

var conCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("con"), lnutil.ReqColor("pubkey@host:port")),
	Description:      "Connect to a peer.  Onion hosts go through tor.\n",
	ShortDescription: "Connect to a peer.\n",
}

var lsConCommand = &Command{
	Format:           lnutil.White("lscon\n"),
	Description:      "List connected peers.\n",
	ShortDescription: "List connected peers.\n",
}

var disCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("dis"), lnutil.ReqColor("pubkey")),
	Description:      "Drop the connection to a peer.\n",
	ShortDescription: "Disconnect a peer.\n",
}

var signCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("sign"), lnutil.ReqColor("message")),
	Description:      "Sign a message with the node key.\n",
	ShortDescription: "Sign a message.\n",
}

var verifyCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("verify"), lnutil.ReqColor("signature", "message")),
	Description:      "Check a signed message, and whether the signer is us or a known peer.\n",
	ShortDescription: "Verify a signed message.\n",
}

var infoCommand = &Command{
	Format:           lnutil.White("info\n"),
	Description:      "Show the node key, tor state and listening addresses.\n",
	ShortDescription: "Show node info.\n",
}

func (lc *hodlAfClient) Connect(textArgs []string) error {
	if len(textArgs) < 1 {
		return fmt.Errorf("usage: %s", conCommand.Format)
	}
	reply := new(hodlrpc.StatusReply)
	err := lc.Call("Connect", hodlrpc.ConnectArgs{LNAddr: textArgs[0]}, reply)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s\n", reply.Status)
	return nil
}

func (lc *hodlAfClient) LsCon(textArgs []string) error {
	reply := new(hodlrpc.ListConnectionsReply)
	err := lc.Call("ListConnections", hodlrpc.NoArgs{}, reply)
	if err != nil {
		return err
	}

	if len(reply.Connections) == 0 {
		fmt.Fprintf(color.Output, "no peers\n")
		return nil
	}
	fmt.Fprintf(color.Output, "\t%s\n", lnutil.Header("Peers:"))
	for _, p := range reply.Connections {
		dir := "out"
		if p.Inbound {
			dir = "in"
		}
		fmt.Fprintf(color.Output, "%d %s %s %s", p.PeerIdx, lnutil.Address(p.Pubkey), dir, p.NetAddr)
		if p.Nickname != "" {
			fmt.Fprintf(color.Output, " %q", p.Nickname)
		}
		fmt.Fprintf(color.Output, "\n")
	}
	return nil
}

func (lc *hodlAfClient) Disconnect(textArgs []string) error {
	if len(textArgs) < 1 {
		return fmt.Errorf("usage: %s", disCommand.Format)
	}
	reply := new(hodlrpc.StatusReply)
	err := lc.Call("Disconnect", hodlrpc.DisconnectArgs{Pubkey: textArgs[0]}, reply)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s\n", reply.Status)
	return nil
}

func (lc *hodlAfClient) Sign(textArgs []string) error {
	if len(textArgs) < 1 {
		return fmt.Errorf("usage: %s", signCommand.Format)
	}
	reply := new(hodlrpc.SignMessageReply)
	err := lc.Call("SignMessage", hodlrpc.SignMessageArgs{Message: strings.Join(textArgs, " ")}, reply)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s\n", reply.Signature)
	return nil
}

func (lc *hodlAfClient) Verify(textArgs []string) error {
	if len(textArgs) < 2 {
		return fmt.Errorf("usage: %s", verifyCommand.Format)
	}
	args := hodlrpc.VerifyMessageArgs{
		Signature: textArgs[0],
		Message:   strings.Join(textArgs[1:], " "),
	}
	reply := new(hodlrpc.VerifyMessageReply)
	err := lc.Call("VerifyMessage", args, reply)
	if err != nil {
		return err
	}
	valid := lnutil.Red("unknown signer")
	if reply.Valid {
		valid = lnutil.Green("valid")
	}
	fmt.Fprintf(color.Output, "%s %s\n", lnutil.Address(reply.Pubkey), valid)
	return nil
}

func (lc *hodlAfClient) Info(textArgs []string) error {
	reply := new(hodlrpc.GetInfoReply)
	err := lc.Call("GetInfo", hodlrpc.NoArgs{}, reply)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s %s (%s)\n", lnutil.Header("node:"), lnutil.Address(reply.Pubkey), reply.Lifecycle)
	fmt.Fprintf(color.Output, "%s %s\n", lnutil.Header("tor:"), reply.TorState)
	fmt.Fprintf(color.Output, "%s %d\n", lnutil.Header("peers:"), reply.Peers)
	for _, a := range reply.ListenAddr {
		fmt.Fprintf(color.Output, "%s %s\n", lnutil.Header("listening:"), a)
	}
	return nil
}
