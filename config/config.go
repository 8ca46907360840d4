// Package config reads the daemon's settings from hodl.conf and the command
// line, the command line winning.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/mit-dci/hodl/hodl"
	"github.com/mit-dci/hodl/logging"
	"github.com/mit-dci/hodl/nat"
	"github.com/mit-dci/hodl/node"
	"github.com/mit-dci/hodl/payreq"
	"github.com/mit-dci/hodl/tor"
)

type Config struct { // define a struct for usage with go-flags
	HomeDir    string `long:"dir" description:"Home directory of hodl, as an absolute path."`
	ConfigFile string

	Verbose  bool   `short:"v" long:"verbose" description:"Log to the console as well as the log file."`
	LogLevel string `long:"loglevel" description:"error, warn, info or debug (or 0-3)."`
	Network  string `long:"network" choice:"mainnet" choice:"testnet" choice:"regtest" description:"Network the payment requests are for."`

	PeerPort  int     `long:"peerport" description:"Listen for peers on this port, 0 to not listen."`
	Nat       string  `long:"nat" choice:"upnp" choice:"pmp" description:"Map the peer port on the router."`
	DialRate  float64 `long:"dialrate" description:"Most outbound peer dials per second, 0 for no limit."`
	Reconnect bool    `long:"reconnect" description:"Dial stored peers on startup."`

	Rpcport uint16 `short:"p" long:"rpcport" description:"Set RPC port to listen on"`
	Rpchost string `long:"rpchost" description:"Set RPC host to listen on"`

	ProxyURL  string `long:"proxy" description:"SOCKS5 proxy to use for non-onion peers, host:port"`
	ProxyAuth string `long:"proxyauth" description:"user:password for the SOCKS5 proxy"`

	Tor     TorConfig     `group:"Tor" namespace:"tor"`
	Invoice InvoiceConfig `group:"Invoices" namespace:"invoice"`
}

// TorConfig is the --tor.* group.
type TorConfig struct {
	Active  bool          `long:"active" description:"Reach peers over tor."`
	SOCKS   uint16        `long:"socks" description:"Local SOCKS port for tor to open."`
	DataDir string        `long:"datadir" description:"Tor state directory."`
	Exe     string        `long:"exe" description:"Path to the tor binary."`
	Timeout time.Duration `long:"timeout" description:"Give up on bootstrap after this long."`
}

// InvoiceConfig is the --invoice.* group.
type InvoiceConfig struct {
	Expiry     time.Duration `long:"expiry" description:"Default invoice expiry."`
	Scan       time.Duration `long:"scan" description:"How often to look for expired invoices."`
	CltvSafety time.Duration `long:"cltvsafety" description:"Cancel held invoices this close to an HTLC timing out."`
	MppTimeout time.Duration `long:"mpptimeout" description:"Fail incomplete multi-part payments after this long."`
	MinCltv    uint64        `long:"mincltv" description:"min_final_cltv_expiry to put in payment requests."`
}

var (
	DefaultHomeDirName    = filepath.Join(os.Getenv("HOME"), ".hodl")
	DefaultConfigFilename = "hodl.conf"
	DefaultLogFilename    = "hodl.log"
	DefaultRpcport        = uint16(8001)
	DefaultRpchost        = "localhost"
	DefaultPeerPort       = 9735
	DefaultNetwork        = "regtest"
)

// Default is the config before the file and flags are applied.
func Default() Config {
	return Config{
		HomeDir:  DefaultHomeDirName,
		LogLevel: "info",
		Network:  DefaultNetwork,
		PeerPort: DefaultPeerPort,
		Rpcport:  DefaultRpcport,
		Rpchost:  DefaultRpchost,
		Tor: TorConfig{
			Timeout: tor.DefaultBootstrapTimeout,
		},
		Invoice: InvoiceConfig{
			Expiry:     payreq.DefaultExpiry,
			Scan:       hodl.DefaultScanInterval,
			CltvSafety: hodl.DefaultDeadlineSafety,
			MppTimeout: hodl.DefaultMPPTimeout,
			MinCltv:    payreq.DefaultMinFinalCLTV,
		},
	}
}

// NewConfigParser returns a new command line flags parser.
func NewConfigParser(conf *Config, options flags.Options) *flags.Parser {
	return flags.NewParser(conf, options)
}

// defaultConfigFile is what a fresh hodl.conf says.
const defaultConfigFile = `; hodl configuration, same names as the command line flags
network=regtest
`

// createDefaultConfigFile creates a config file, only call this if the
// config file isn't already there.
func createDefaultConfigFile(path string) error {
	return os.WriteFile(path, []byte(defaultConfigFile), 0600)
}

// Load reads args (without the program name) on top of the config file in
// the home dir, making the dir and file if they're missing.  A help request
// comes back as a *flags.Error with type flags.ErrHelp.
func Load(args []string) (*Config, error) {

	// Pre-parse the command line options to see if an alternative home dir
	// was given.  Other errors get caught by the final parse below.
	preconf := Default()
	preParser := NewConfigParser(&preconf, flags.HelpFlag|flags.IgnoreUnknown)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(preconf.HomeDir, 0700)
	if err != nil {
		return nil, fmt.Errorf("creating home dir: %w", err)
	}

	conf := Default()
	conf.HomeDir = preconf.HomeDir
	conf.ConfigFile = filepath.Join(preconf.HomeDir, DefaultConfigFilename)

	if _, err := os.Stat(conf.ConfigFile); os.IsNotExist(err) {
		logging.Infof("config: creating %s\n", conf.ConfigFile)
		err = createDefaultConfigFile(conf.ConfigFile)
		if err != nil {
			return nil, err
		}
	}

	// Load config from file and parse
	parser := NewConfigParser(&conf, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(conf.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", conf.ConfigFile, err)
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	return &conf, nil
}

// KeyFilePath is where the identity key lives.
func (c *Config) KeyFilePath() string {
	return filepath.Join(c.HomeDir, node.KeyFileName)
}

// LogFilePath is where the log file hook writes.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.HomeDir, DefaultLogFilename)
}

// RPCListenAddr is host:port for the RPC server.
func (c *Config) RPCListenAddr() string {
	return net.JoinHostPort(c.Rpchost, strconv.Itoa(int(c.Rpcport)))
}

// Level is the parsed --loglevel, bumped to debug by --verbose.
func (c *Config) Level() (logging.LogLevel, error) {
	if c.Verbose {
		return logging.LogLevelDebug, nil
	}
	return logging.ParseLevel(c.LogLevel)
}

// payreqNet maps --network onto the payment request prefix.
func payreqNet(network string) (string, error) {
	switch network {
	case "mainnet":
		return payreq.NetMainnet, nil
	case "testnet":
		return payreq.NetTestnet, nil
	case "regtest", "":
		return payreq.NetRegtest, nil
	}
	return "", fmt.Errorf("unknown network %q", network)
}

// Proxy builds the SOCKS dialer from --proxy and --proxyauth, nil if no
// proxy is set.
func (c *Config) Proxy() (*tor.SOCKSNet, error) {
	if c.ProxyURL == "" {
		return nil, nil
	}

	addr := c.ProxyURL
	if strings.Contains(addr, "://") {
		u, err := url.Parse(addr)
		if err != nil {
			return nil, fmt.Errorf("bad proxy %q: %w", c.ProxyURL, err)
		}
		if u.Scheme != "socks5" && u.Scheme != "socks5h" {
			return nil, fmt.Errorf("proxy %q: only socks5 is supported", c.ProxyURL)
		}
		addr = u.Host
	}
	addr = normalizeAddress(addr, "9050")

	s := &tor.SOCKSNet{Addr: addr}
	if c.ProxyAuth != "" {
		user, pass, ok := strings.Cut(c.ProxyAuth, ":")
		if !ok {
			return nil, fmt.Errorf("proxyauth should be user:password")
		}
		s.Auth = &proxy.Auth{User: user, Password: pass}
	}
	return s, nil
}

// NodeConfig turns the settings into what node.New wants.
func (c *Config) NodeConfig() (node.Config, error) {

	network, err := payreqNet(c.Network)
	if err != nil {
		return node.Config{}, err
	}
	natMode, err := nat.ParseMode(c.Nat)
	if err != nil {
		return node.Config{}, err
	}
	socks, err := c.Proxy()
	if err != nil {
		return node.Config{}, err
	}

	dialRate := rate.Inf
	if c.DialRate > 0 {
		dialRate = rate.Limit(c.DialRate)
	}

	torDir := c.Tor.DataDir
	if torDir == "" {
		torDir = filepath.Join(c.HomeDir, "tor")
	}

	return node.Config{
		Home:           c.HomeDir,
		Network:        network,
		DefaultExpiry:  c.Invoice.Expiry,
		MinFinalCLTV:   c.Invoice.MinCltv,
		ScanInterval:   c.Invoice.Scan,
		DeadlineSafety: c.Invoice.CltvSafety,
		MPPTimeout:     c.Invoice.MppTimeout,
		TorActive:      c.Tor.Active,
		Tor: tor.Config{
			DataDir:          torDir,
			SOCKSPort:        c.Tor.SOCKS,
			ExePath:          c.Tor.Exe,
			BootstrapTimeout: c.Tor.Timeout,
		},
		Proxy:          socks,
		DialRate:       dialRate,
		PeerPort:       c.PeerPort,
		NatMode:        natMode,
		ReconnectPeers: c.Reconnect,
	}, nil
}

// normalizeAddress normalizes an address by either setting a missing host to
// localhost or missing port to the default port.
func normalizeAddress(addr, defaultPort string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		// If the address is an integer, then we assume it is *only* a
		// port and default to binding to that port on localhost.
		if _, err := strconv.Atoi(addr); err == nil {
			return net.JoinHostPort("localhost", addr)
		}

		// Otherwise, the address only contains the host so we'll use
		// the default port.
		return net.JoinHostPort(addr, defaultPort)
	}

	return addr
}
