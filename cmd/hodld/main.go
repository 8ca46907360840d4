package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/btcec/v2"
	flags "github.com/jessevdk/go-flags"

	"github.com/mit-dci/hodl/config"
	"github.com/mit-dci/hodl/hodlrpc"
	"github.com/mit-dci/hodl/lnutil"
	"github.com/mit-dci/hodl/logging"
	"github.com/mit-dci/hodl/node"
)

func main() {
	conf, err := config.Load(os.Args[1:])
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, err := conf.Level()
	if err != nil {
		logging.Fatal(err)
	}
	logging.SetLogLevel(int(level))
	logging.SetLogFile(conf.LogFilePath())

	// whether there's a key yet decides if this is a first run
	lc, err := node.LoadLifecycle(conf.HomeDir)
	if err != nil {
		logging.Fatal(err)
	}
	ctx := node.WithLifecycle(context.Background(), lc)

	keyBytes, err := lnutil.ReadKeyFile(conf.KeyFilePath())
	if err != nil {
		logging.Fatal(err)
	}
	key, _ := btcec.PrivKeyFromBytes(keyBytes[:])

	nc, err := conf.NodeConfig()
	if err != nil {
		logging.Fatal(err)
	}

	n, err := node.New(ctx, nc, key)
	if err != nil {
		logging.Fatal(err)
	}
	err = n.Start(ctx)
	if err != nil {
		n.Stop()
		logging.Fatal(err)
	}

	rpcl := hodlrpc.NewHodlRPC(n)
	sctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		select {
		case <-rpcl.OffButton:
			cancel()
		case <-sctx.Done():
		}
	}()

	fmt.Printf("hodld %s node %s, rpc on %s\n", lc, n.Pubkey(), conf.RPCListenAddr())
	err = hodlrpc.RPCListen(sctx, rpcl, conf.RPCListenAddr())
	if err != nil {
		logging.Errorf("rpc: %s\n", err.Error())
	}

	err = n.Stop()
	if err != nil {
		logging.Errorf("stopping: %s\n", err.Error())
		os.Exit(1)
	}
	logging.Infof("hodld stopped\n")
}
