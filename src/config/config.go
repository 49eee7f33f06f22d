package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/warden/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// secp256k1 private key
	DefaultKeyfile = "node_key"

	// DefaultP2PKeyfile is the default name of the file containing the node's
	// peer-to-peer key
	DefaultP2PKeyfile = "p2p_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "db"

	// DefaultBootstrapFile is the default name of the genesis bundle
	DefaultBootstrapFile = "bootstrap.bin"

	// DefaultMonitorFile is the default name of the monitor report file
	DefaultMonitorFile = "blackbox.info"
)

// Default configuration values.
const (
	DefaultLogLevel           = "info"
	DefaultNetwork            = "bootstrap"
	DefaultBlockThreshold     = 42
	DefaultBlockTimeout       = 3
	DefaultRestAddr           = "127.0.0.1:8000"
	DefaultBridgeAddr         = "127.0.0.1:8001"
	DefaultP2PAddr            = "127.0.0.1"
	DefaultP2PPort            = 0
	DefaultWmCacheMax         = 10
	DefaultMonitorInterval    = 5 * time.Minute
	DefaultLivenessInterval   = 1 * time.Second
	DefaultBootstrapMaxBlocks = 10
	DefaultRequestTimeout     = 10 * time.Second
)

// Config contains all the configuration properties of a node.
type Config struct {
	// DataDir is the top-level directory containing the node configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log line at info level and
	// above.
	LogFile string `mapstructure:"log-file"`

	// Keyfile is the path of the node's secp256k1 key. A random key is used
	// when the file does not exist.
	Keyfile string `mapstructure:"keypair-path"`

	// P2PKeyfile is the path of the node's Ed25519 peer-to-peer key. A random
	// key is used when the file does not exist.
	P2PKeyfile string `mapstructure:"p2p-keypair-path"`

	// BootstrapPath is the genesis bundle read when the node has to originate
	// a new network.
	BootstrapPath string `mapstructure:"bootstrap-path"`

	// BootstrapFrom is the REST address of a running node. When set, the
	// genesis bundle is downloaded from it before boot.
	BootstrapFrom string `mapstructure:"bootstrap-from"`

	// BootstrapMaxBlocks bounds the number of blocks observed while waiting for
	// the service account to appear during genesis.
	BootstrapMaxBlocks int `mapstructure:"bootstrap-max-blocks"`

	// Network is the placeholder network name used until the real one is known.
	Network string `mapstructure:"network"`

	// BlockThreshold is the number of pooled transactions that triggers a
	// block, before the network settings are known.
	BlockThreshold int `mapstructure:"block-threshold"`

	// BlockTimeout is the number of seconds after which a non-empty pool is
	// cut into a block, before the network settings are known.
	BlockTimeout uint16 `mapstructure:"block-timeout"`

	// RestAddr is the listen IP:Port of the REST service.
	RestAddr string `mapstructure:"rest-listen"`

	// BridgeAddr is the listen IP:Port of the bridge service.
	BridgeAddr string `mapstructure:"bridge-listen"`

	// P2PAddr is the IP the peer-to-peer service listens on.
	P2PAddr string `mapstructure:"p2p-addr"`

	// P2PPort is the port the peer-to-peer service listens on. Zero picks a
	// random free port.
	P2PPort int `mapstructure:"p2p-port"`

	// P2PBootstrapAddr is the multiaddress of a peer dialed at startup.
	P2PBootstrapAddr string `mapstructure:"p2p-bootstrap-addr"`

	// NoP2P keeps the peer-to-peer service offline.
	NoP2P bool `mapstructure:"no-p2p"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// WmCacheMax is the max number of contracts kept loaded by the virtual
	// machine.
	WmCacheMax int `mapstructure:"wm-cache-max"`

	// MonitorFile is the path of the report file rewritten by the monitor.
	MonitorFile string `mapstructure:"monitor-file"`

	// MonitorAddr is the collector URL the monitor pushes its reports to.
	// Nothing is pushed when it is empty.
	MonitorAddr string `mapstructure:"monitor-addr"`

	// MonitorInterval is the time between two monitor cycles.
	MonitorInterval time.Duration `mapstructure:"monitor-interval"`

	// LivenessInterval is the time between two liveness checks of the
	// services.
	LivenessInterval time.Duration `mapstructure:"liveness-interval"`

	// RequestTimeout bounds the HTTP requests issued by the node.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	// LocalIP is the IP endpoint reported by the monitor.
	LocalIP string `mapstructure:"local-ip"`

	// PublicIP is the public IP reported by the monitor.
	PublicIP string `mapstructure:"public-ip"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		LogLevel:           DefaultLogLevel,
		BootstrapMaxBlocks: DefaultBootstrapMaxBlocks,
		Network:            DefaultNetwork,
		BlockThreshold:     DefaultBlockThreshold,
		BlockTimeout:       DefaultBlockTimeout,
		RestAddr:           DefaultRestAddr,
		BridgeAddr:         DefaultBridgeAddr,
		P2PAddr:            DefaultP2PAddr,
		P2PPort:            DefaultP2PPort,
		WmCacheMax:         DefaultWmCacheMax,
		MonitorInterval:    DefaultMonitorInterval,
		LivenessInterval:   DefaultLivenessInterval,
		RequestTimeout:     DefaultRequestTimeout,
	}

	config.SetDataDir(DefaultDataDir())

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests. Everything lives in a temporary directory and
// the network-facing services bind random local ports.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.SetDataDir(t.TempDir())
	config.RestAddr = "127.0.0.1:0"
	config.BridgeAddr = "127.0.0.1:0"
	config.NoP2P = true
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and moves every path that still has
// its default value inside it. Paths that differ from their defaults were set
// explicitly and are left alone.
func (c *Config) SetDataDir(dataDir string) {
	old := c.DataDir
	c.DataDir = dataDir

	move := func(current *string, name string) {
		if *current == "" || *current == filepath.Join(old, name) {
			*current = filepath.Join(dataDir, name)
		}
	}

	move(&c.Keyfile, DefaultKeyfile)
	move(&c.P2PKeyfile, DefaultP2PKeyfile)
	move(&c.DatabaseDir, DefaultBadgerFile)
	move(&c.BootstrapPath, DefaultBootstrapFile)
	move(&c.MonitorFile, DefaultMonitorFile)
}

// Logger returns a formatted logrus Entry, with prefix set to "warden".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.InfoLevel:  c.LogFile,
					logrus.WarnLevel:  c.LogFile,
					logrus.ErrorLevel: c.LogFile,
					logrus.FatalLevel: c.LogFile,
					logrus.PanicLevel: c.LogFile,
				},
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "warden")
}

// DefaultDataDir return the default directory name for top-level node config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Warden")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Warden")
		} else {
			return filepath.Join(home, ".warden")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}
