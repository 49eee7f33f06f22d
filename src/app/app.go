package app

import (
	"context"
	"sync"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/bridge"
	"github.com/mosaicnetworks/warden/src/config"
	"github.com/mosaicnetworks/warden/src/crypto/keys"
	"github.com/mosaicnetworks/warden/src/genesis"
	"github.com/mosaicnetworks/warden/src/monitor"
	"github.com/mosaicnetworks/warden/src/p2p"
	"github.com/mosaicnetworks/warden/src/service"
	"github.com/mosaicnetworks/warden/src/store"
	"github.com/mosaicnetworks/warden/src/version"
	"github.com/mosaicnetworks/warden/src/wm"
	"github.com/sirupsen/logrus"
)

// App is a node. It owns the block engine and the services built around its
// request channel.
type App struct {
	conf     *config.Config
	identity *Identity

	state stateManager

	engine BlockEngine
	owner  *engineOwner
	sender *blockchain.RequestSender

	rest    Service
	p2p     PeerService
	bridge  Service
	monitor Service

	loadGenesis GenesisLoader

	// startP2P is false when the peer-to-peer service is started by the
	// background genesis routine.
	startP2P bool

	ctx    context.Context
	cancel context.CancelFunc

	fatalCh chan error

	closeOnce sync.Once
	closers   []func() error

	logger *logrus.Entry
}

// New builds a node and all its services from the configuration. Nothing is
// started.
func New(conf *config.Config, identity *Identity) (*App, error) {
	logger := conf.Logger()

	db, err := store.Open(conf.DatabaseDir, logger.WithField("prefix", "store"))
	if err != nil {
		return nil, err
	}

	vm, err := wm.NewNativeMachine(blockchain.ServiceAccountID,
		conf.WmCacheMax,
		logger.WithField("prefix", "wm"))
	if err != nil {
		db.Close()
		return nil, err
	}
	vm.Register(wm.ServiceContractName, wm.ServiceContract{})

	engine, err := blockchain.NewBlockService(identity.Key,
		blockchain.Config{
			Network:   conf.Network,
			Threshold: conf.BlockThreshold,
			Timeout:   conf.BlockTimeout,
		},
		db,
		vm,
		blockchain.NewSeedSource(conf.Network, nil),
		logger.WithField("prefix", "block"))
	if err != nil {
		db.Close()
		return nil, err
	}

	sender := engine.RequestChannel()

	registry, registerer := monitor.NewRegistry("node")
	metrics := monitor.NewMetrics(registerer)

	peers := p2p.NewService(p2p.Config{
		Active:         !conf.NoP2P,
		Addr:           conf.P2PAddr,
		Port:           conf.P2PPort,
		BootstrapAddr:  conf.P2PBootstrapAddr,
		RequestTimeout: conf.RequestTimeout,
	}, identity.P2PKey, conf.Network, sender, logger.WithField("prefix", "p2p"))

	rest := service.NewService(conf.RestAddr,
		sender,
		service.NodeInfo{
			NodeVersion:  version.Version,
			CoreVersion:  version.Number,
			AccountID:    identity.AccountID(),
			P2PAccountID: identity.P2PAccountID(),
			P2PAddrs:     peers.Addrs,
		},
		conf.BootstrapPath,
		registry,
		conf.RequestTimeout,
		logger.WithField("prefix", "rest"))

	bridgeService, err := bridge.NewService(conf.BridgeAddr,
		sender,
		conf.RequestTimeout,
		logger.WithField("prefix", "bridge"))
	if err != nil {
		engine.Close()
		db.Close()
		return nil, err
	}

	services := Services{
		Engine: engine,
		REST:   rest,
		P2P:    peers,
		Bridge: bridgeService,
	}

	if conf.MonitorFile != "" || conf.MonitorAddr != "" {
		worker := monitor.NewWorker(monitor.Config{
			NodeID:         identity.AccountID(),
			Interval:       conf.MonitorInterval,
			Addr:           conf.MonitorAddr,
			File:           conf.MonitorFile,
			RequestTimeout: conf.RequestTimeout,
		}, initialStatus(conf, identity), sender, metrics, logger.WithField("prefix", "monitor"))
		worker.Validator = engine

		services.Monitor = monitor.NewService(worker, logger.WithField("prefix", "monitor"))
	}

	a := NewWithServices(conf, identity, services, logger)
	a.closers = append(a.closers, db.Close)

	return a, nil
}

func initialStatus(conf *config.Config, identity *Identity) monitor.Status {
	return monitor.Status{
		PublicKey:   keys.PublicKeyHex(&identity.Key.PublicKey),
		NwPublicKey: keys.P2PPublicKeyHex(identity.P2PKey),
		IPEndpoint:  conf.LocalIP,
		PubIP:       conf.PublicIP,
		Role:        monitor.RoleOrdinary,
		NwConfig: monitor.NetworkConfig{
			Name:           conf.Network,
			BlockThreshold: conf.BlockThreshold,
			BlockTimeout:   conf.BlockTimeout,
		},
		CoreVersion: version.Number,
		P2PInfo: monitor.P2PInfo{
			Addr:          conf.P2PAddr,
			Port:          conf.P2PPort,
			BootstrapAddr: conf.P2PBootstrapAddr,
		},
	}
}

// NewWithServices builds a node around existing services.
func NewWithServices(conf *config.Config, identity *Identity, services Services, logger *logrus.Entry) *App {
	ctx, cancel := context.WithCancel(context.Background())

	loadGenesis := services.LoadGenesis
	if loadGenesis == nil {
		loadGenesis = genesis.Load
	}

	a := &App{
		conf:        conf,
		identity:    identity,
		engine:      services.Engine,
		owner:       newEngineOwner(services.Engine),
		sender:      services.Engine.RequestChannel(),
		rest:        services.REST,
		p2p:         services.P2P,
		bridge:      services.Bridge,
		monitor:     services.Monitor,
		loadGenesis: loadGenesis,
		startP2P:    true,
		ctx:         ctx,
		cancel:      cancel,
		fatalCh:     make(chan error, 1),
		logger:      logger,
	}

	a.state.SetState(Booting)

	return a
}

// State returns the current boot stage.
func (a *App) State() State {
	return a.state.GetState()
}

// Identity ...
func (a *App) Identity() *Identity {
	return a.identity
}

// BlockEngine ...
func (a *App) BlockEngine() BlockEngine {
	return a.engine
}

// RequestChannel returns a sender to the block engine.
func (a *App) RequestChannel() *blockchain.RequestSender {
	return a.sender
}

// fatal reports a failure of a background routine to Park.
func (a *App) fatal(err error) {
	select {
	case a.fatalCh <- err:
	default:
	}
}

func (a *App) requestContext() (context.Context, context.CancelFunc) {
	if a.conf.RequestTimeout > 0 {
		return context.WithTimeout(a.ctx, a.conf.RequestTimeout)
	}
	return context.WithCancel(a.ctx)
}
