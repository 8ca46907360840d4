package main

import (
	"sort"

	"github.com/chzyer/readline"

	"github.com/mit-dci/hodl/hodlrpc"
)

func (lc *hodlAfClient) completePeers(line string) []string {
	names := make([]string, 0)
	reply := new(hodlrpc.ListConnectionsReply)
	err := lc.Call("ListConnections", hodlrpc.NoArgs{}, reply)
	if err != nil {
		return names
	}
	for _, p := range reply.Connections {
		names = append(names, p.Pubkey)
	}
	return names
}

// completeInvoices offers the hashes of invoices that can still move.
func (lc *hodlAfClient) completeInvoices(line string) []string {
	hashes := make([]string, 0)
	reply := new(hodlrpc.ListInvoicesReply)
	err := lc.Call("ListInvoices", hodlrpc.NoArgs{}, reply)
	if err != nil {
		return hashes
	}
	for _, inv := range reply.Invoices {
		if !inv.State.IsTerminal() {
			hashes = append(hashes, inv.PaymentHash.String())
		}
	}
	return hashes
}

func (lc *hodlAfClient) completeCommands(line string) []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewAutoCompleter .
func (lc *hodlAfClient) NewAutoCompleter() readline.AutoCompleter {
	var pcItems []readline.PrefixCompleterInterface
	for name := range commands {
		switch name {
		case "settle", "cancel", "status", "inv":
			pcItems = append(pcItems, readline.PcItem(name, readline.PcItemDynamic(lc.completeInvoices)))
		case "dis":
			pcItems = append(pcItems, readline.PcItem(name, readline.PcItemDynamic(lc.completePeers)))
		case "help":
			pcItems = append(pcItems, readline.PcItem(name, readline.PcItemDynamic(lc.completeCommands)))
		default:
			pcItems = append(pcItems, readline.PcItem(name))
		}
	}
	pcItems = append(pcItems, readline.PcItem("exit"), readline.PcItem("quit"))
	return readline.NewPrefixCompleter(pcItems...)
}
