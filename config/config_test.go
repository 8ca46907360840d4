package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/mit-dci/hodl/nat"
	"github.com/mit-dci/hodl/payreq"
)

func TestLoadCreatesConfigFile(t *testing.T) {
	home := filepath.Join(t.TempDir(), "hodl")

	conf, err := Load([]string{"--dir", home})
	require.NoError(t, err)
	require.Equal(t, home, conf.HomeDir)
	require.FileExists(t, filepath.Join(home, DefaultConfigFilename))

	require.Equal(t, "regtest", conf.Network)
	require.Equal(t, DefaultRpcport, conf.Rpcport)
	require.Equal(t, 30*time.Minute, conf.Invoice.CltvSafety)
	require.Equal(t, filepath.Join(home, "privkey.hex"), conf.KeyFilePath())
}

func TestCommandLineBeatsFile(t *testing.T) {
	home := t.TempDir()
	ini := "network=testnet\nrpcport=9000\ntor.active=true\ntor.socks=9150\ninvoice.expiry=30m\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, DefaultConfigFilename), []byte(ini), 0600))

	conf, err := Load([]string{"--dir", home, "--rpcport", "9001", "--invoice.scan", "5s"})
	require.NoError(t, err)
	require.Equal(t, "testnet", conf.Network)
	require.Equal(t, uint16(9001), conf.Rpcport)
	require.True(t, conf.Tor.Active)
	require.Equal(t, uint16(9150), conf.Tor.SOCKS)
	require.Equal(t, 30*time.Minute, conf.Invoice.Expiry)
	require.Equal(t, 5*time.Second, conf.Invoice.Scan)
}

func TestLoadBadFlags(t *testing.T) {
	home := t.TempDir()
	_, err := Load([]string{"--dir", home, "--network", "fakenet"})
	require.Error(t, err)

	_, err = Load([]string{"--dir", home, "--nosuchflag"})
	require.Error(t, err)

	_, err = Load([]string{"--dir", home, "--help"})
	var ferr *flags.Error
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, flags.ErrHelp, ferr.Type)
}

func TestNodeConfig(t *testing.T) {
	conf := Default()
	conf.HomeDir = "/tmp/hodltest"
	conf.Network = "mainnet"
	conf.Nat = "pmp"
	conf.DialRate = 2
	conf.ProxyURL = "socks5://127.0.0.1:9150"
	conf.ProxyAuth = "alice:secret"

	nc, err := conf.NodeConfig()
	require.NoError(t, err)
	require.Equal(t, payreq.NetMainnet, nc.Network)
	require.Equal(t, nat.ModePmp, nc.NatMode)
	require.Equal(t, rate.Limit(2), nc.DialRate)
	require.Equal(t, "127.0.0.1:9150", nc.Proxy.Addr)
	require.Equal(t, "alice", nc.Proxy.Auth.User)
	require.Equal(t, "/tmp/hodltest/tor", nc.Tor.DataDir)

	conf.DialRate = 0
	conf.ProxyURL = ""
	nc, err = conf.NodeConfig()
	require.NoError(t, err)
	require.Equal(t, rate.Inf, nc.DialRate)
	require.Nil(t, nc.Proxy)

	conf.Network = "litecoin"
	_, err = conf.NodeConfig()
	require.Error(t, err)
}

func TestProxyForms(t *testing.T) {
	for in, want := range map[string]string{
		"9050":                 "localhost:9050",
		"tor.local":            "tor.local:9050",
		"10.0.0.1:1080":        "10.0.0.1:1080",
		"socks5h://proxy:1080": "proxy:1080",
	} {
		c := Config{ProxyURL: in}
		s, err := c.Proxy()
		require.NoError(t, err, in)
		require.Equal(t, want, s.Addr, in)
	}

	c := Config{ProxyURL: "http://proxy:8080"}
	_, err := c.Proxy()
	require.Error(t, err)

	c = Config{ProxyURL: "proxy:1080", ProxyAuth: "nocolon"}
	_, err = c.Proxy()
	require.Error(t, err)
}

func TestLevel(t *testing.T) {
	c := Config{LogLevel: "warn"}
	l, err := c.Level()
	require.NoError(t, err)
	require.EqualValues(t, 1, l)

	c.Verbose = true
	l, err = c.Level()
	require.NoError(t, err)
	require.EqualValues(t, 3, l)
}
