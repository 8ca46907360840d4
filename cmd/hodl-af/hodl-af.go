package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	flags "github.com/jessevdk/go-flags"

	"github.com/mit-dci/hodl/config"
	"github.com/mit-dci/hodl/hodlrpc"
	"github.com/mit-dci/hodl/lnutil"
	"github.com/mit-dci/hodl/logging"
)

/*
Hodl-AF

A text mode interface to hodld.  It connects over jsonrpc to a hodld and
tells it what to do with invoices and peers.
*/

const historyFilename = "hodl-af.history"

type afConfig struct {
	Con       string `long:"con" description:"hodld RPC to connect to, host:port"`
	HomeDir   string `long:"dir" description:"directory to save shell history"`
	Verbosity int    `short:"v" long:"verbosity" description:"log level 0-3"`
}

type hodlAfClient struct {
	conf   afConfig
	client *hodlrpc.HodlClient

	// ask puts a question to the user and gives back the reply line.
	ask func(question string) (string, error)
}

type Command struct {
	Format           string
	Description      string
	ShortDescription string
}

var errExit = errors.New("exit")

func main() {
	lc := &hodlAfClient{conf: afConfig{
		Con:       fmt.Sprintf("%s:%d", config.DefaultRpchost, config.DefaultRpcport),
		HomeDir:   config.DefaultHomeDirName,
		Verbosity: 1,
	}}
	_, err := flags.Parse(&lc.conf)
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	logging.SetLogLevel(lc.conf.Verbosity)

	err = os.MkdirAll(lc.conf.HomeDir, 0700)
	if err != nil {
		logging.Fatal(err)
	}

	lc.client, err = hodlrpc.Dial(lc.conf.Con)
	if err != nil {
		logging.Fatalf("can't reach hodld at %s: %s\n", lc.conf.Con, err)
	}
	defer lc.client.Close()

	prompt := lnutil.Prompt("hodl-af") + lnutil.White("# ")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       prompt,
		HistoryFile:  filepath.Join(lc.conf.HomeDir, historyFilename),
		AutoComplete: lc.NewAutoCompleter(),
	})
	if err != nil {
		logging.Fatal(err)
	}
	defer rl.Close()

	lc.ask = func(question string) (string, error) {
		rl.SetPrompt(question)
		defer rl.SetPrompt(prompt)
		return rl.Readline()
	}

	// main shell loop
	for {
		msg, err := rl.Readline()
		if err != nil {
			break
		}
		msg = strings.TrimSpace(msg)
		if len(msg) == 0 {
			continue
		}
		rl.SaveHistory(msg)

		err = lc.Shellparse(strings.Fields(msg))
		if errors.Is(err, errExit) {
			break
		}
		if err != nil {
			fmt.Fprintf(color.Output, "%s %s\n", lnutil.Red("error:"), err)
		}
	}
}

func (lc *hodlAfClient) Call(method string, args interface{}, reply interface{}) error {
	return lc.client.Call(method, args, reply)
}
