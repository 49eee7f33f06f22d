package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/warden/src/app"
	"github.com/mosaicnetworks/warden/src/bootstrap"
	"github.com/mosaicnetworks/warden/src/tracer"
	"github.com/mosaicnetworks/warden/src/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runWarden,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runWarden(cmd *cobra.Command, args []string) error {
	logger := _config.Node.Logger()

	if _config.Node.BootstrapFrom != "" {
		if err := fetchBootstrap(logger); err != nil {
			logger.WithError(err).Error("Cannot fetch genesis bundle")
			return err
		}
	}

	identity, err := app.LoadIdentity(&_config.Node, logger)
	if err != nil {
		logger.WithError(err).Error("Cannot load node identity")
		return err
	}

	node, err := app.New(&_config.Node, identity)
	if err != nil {
		logger.WithError(err).Error("Cannot initialize node")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Info("Received signal, stopping services")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := node.Start(); err != nil {
		return err
	}

	if _config.Trace {
		t := tracer.New(logger.WithField("prefix", "tracer"))
		go func() {
			if err := t.Run(ctx, node.RequestChannel()); err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("Tracer stopped")
			}
		}()
	}

	if err := node.Park(ctx); err != nil {
		logger.WithError(err).Error("Node stopped")
		return err
	}

	return nil
}

// fetchBootstrap downloads the genesis bundle of the node named by
// --bootstrap-from and points the configuration at it.
func fetchBootstrap(logger *logrus.Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), _config.Node.RequestTimeout)
	defer cancel()

	client := &http.Client{Timeout: _config.Node.RequestTimeout}
	addr := _config.Node.BootstrapFrom

	visa, err := bootstrap.FetchVisa(ctx, client, addr)
	if err != nil {
		return err
	}

	bootstrap.CheckVersion(version.Number, visa.NodeVersion, logger)

	path, name, err := bootstrap.FetchBootstrap(ctx, client, addr, _config.Node.DataDir)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"from":    addr,
		"network": name,
		"remote":  visa.NetworkName,
		"path":    path,
	}).Info("Genesis bundle downloaded")

	_config.Node.BootstrapPath = path

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.String("datadir", _config.Node.DataDir, "Top-level directory for configuration and data")
	flags.String("log", _config.Node.LogLevel, "debug, info, warn, error, fatal, panic")
	flags.String("log-file", _config.Node.LogFile, "Copy info and above to this file")
	flags.Bool("trace", _config.Trace, "Log every committed block")

	// Identity
	flags.String("keypair-path", _config.Node.Keyfile, "Node key file")
	flags.String("p2p-keypair-path", _config.Node.P2PKeyfile, "Peer-to-peer key file")

	addBootstrapFlags(flags)
	addEngineFlags(flags)
	addServiceFlags(flags)
	addMonitorFlags(flags)
}

func addBootstrapFlags(flags *pflag.FlagSet) {
	flags.String("bootstrap-path", _config.Node.BootstrapPath, "Genesis bundle")
	flags.String("bootstrap-from", _config.Node.BootstrapFrom, "Download the genesis bundle from this REST address")
	flags.Int("bootstrap-max-blocks", _config.Node.BootstrapMaxBlocks, "Blocks to wait for the service account during genesis")
}

func addEngineFlags(flags *pflag.FlagSet) {
	flags.String("network", _config.Node.Network, "Placeholder network name")
	flags.Int("block-threshold", _config.Node.BlockThreshold, "Pooled transactions that trigger a block")
	flags.Uint16("block-timeout", _config.Node.BlockTimeout, "Seconds after which a non-empty pool is cut into a block")
	flags.String("db", _config.Node.DatabaseDir, "Database directory")
	flags.Int("wm-cache-max", _config.Node.WmCacheMax, "Contracts kept loaded by the virtual machine")
}

func addServiceFlags(flags *pflag.FlagSet) {
	flags.StringP("rest-listen", "s", _config.Node.RestAddr, "Listen IP:Port for the REST service")
	flags.StringP("bridge-listen", "b", _config.Node.BridgeAddr, "Listen IP:Port for the bridge service")
	flags.Duration("request-timeout", _config.Node.RequestTimeout, "Timeout of internal and HTTP requests")
	flags.Duration("liveness-interval", _config.Node.LivenessInterval, "Time between two liveness checks")

	// Peer-to-peer
	flags.String("p2p-addr", _config.Node.P2PAddr, "Listen IP for the peer-to-peer service")
	flags.Int("p2p-port", _config.Node.P2PPort, "Listen port for the peer-to-peer service")
	flags.String("p2p-bootstrap-addr", _config.Node.P2PBootstrapAddr, "Multiaddress of a peer to dial at startup")
	flags.Bool("no-p2p", _config.Node.NoP2P, "Keep the peer-to-peer service offline")
}

func addMonitorFlags(flags *pflag.FlagSet) {
	flags.String("monitor-file", _config.Node.MonitorFile, "Report file rewritten by the monitor")
	flags.String("monitor-addr", _config.Node.MonitorAddr, "Collector URL the monitor pushes reports to")
	flags.Duration("monitor-interval", _config.Node.MonitorInterval, "Time between two monitor cycles")
	flags.String("local-ip", _config.Node.LocalIP, "IP endpoint reported by the monitor")
	flags.String("public-ip", _config.Node.PublicIP, "Public IP reported by the monitor")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not the other paths, this will
	// move them inside the new datadir
	_config.Node.SetDataDir(_config.Node.DataDir)

	_config.Node.Logger().WithFields(logrus.Fields{
		"DataDir":            _config.Node.DataDir,
		"LogLevel":           _config.Node.LogLevel,
		"Keyfile":            _config.Node.Keyfile,
		"P2PKeyfile":         _config.Node.P2PKeyfile,
		"BootstrapPath":      _config.Node.BootstrapPath,
		"BootstrapFrom":      _config.Node.BootstrapFrom,
		"BootstrapMaxBlocks": _config.Node.BootstrapMaxBlocks,
		"DatabaseDir":        _config.Node.DatabaseDir,
		"RestAddr":           _config.Node.RestAddr,
		"BridgeAddr":         _config.Node.BridgeAddr,
		"P2PAddr":            _config.Node.P2PAddr,
		"P2PPort":            _config.Node.P2PPort,
		"NoP2P":              _config.Node.NoP2P,
		"MonitorFile":        _config.Node.MonitorFile,
		"MonitorAddr":        _config.Node.MonitorAddr,
		"MonitorInterval":    _config.Node.MonitorInterval,
		"Trace":              _config.Trace,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/warden.toml (.json, .yaml also work)
	viper.SetConfigName("warden")             // name of config file (without extension)
	viper.AddConfigPath(_config.Node.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Node.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Node.Logger().Debugf("No config file found in: %s", _config.Node.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
