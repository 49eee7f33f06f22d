package app

import (
	"context"
	"fmt"

	"github.com/coreos/go-semver/semver"
	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/bootstrap"
	"github.com/mosaicnetworks/warden/src/validator"
	"github.com/mosaicnetworks/warden/src/version"
	"github.com/sirupsen/logrus"
)

// Engine configuration while a new network is being originated.
const (
	// BootstrapNetwork is the provisional network name.
	BootstrapNetwork = "bootstrap"

	// GenesisThreshold is the block threshold used when the genesis bundle
	// carries no transaction.
	GenesisThreshold = 42

	// GenesisTimeout is the block timeout, in seconds.
	GenesisTimeout = 2
)

// genesisSettings are the settings the engine runs with until the genesis
// blocks are produced.
func genesisSettings(txs int) blockchain.Settings {
	name := BootstrapNetwork

	threshold := txs
	if threshold == 0 {
		threshold = GenesisThreshold
	}

	return blockchain.Settings{
		AcceptBroadcast: false,
		BlockThreshold:  threshold,
		BlockTimeout:    GenesisTimeout,
		NetworkName:     &name,
		IsProduction:    true,
		MinNodeVersion:  version.Number,
	}
}

// Start resolves whether the node joins an existing network or originates a
// new one, configures the block engine accordingly and starts the services.
//
// When a new network is originated from a bundle without transactions, the
// wait for the service account runs in the background and Start returns
// before the peer-to-peer service is started. Otherwise Start returns once
// the node is Operational.
//
// On failure every service is stopped and a *BootError is returned.
func (a *App) Start() error {
	if err := a.owner.Start(); err != nil {
		return a.abort(Booting, err)
	}

	ctx, cancel := a.requestContext()
	outcome, err := bootstrap.Resolve(ctx, a.sender)
	cancel()
	if err != nil {
		return a.abort(Booting, err)
	}

	a.logger.WithField("outcome", outcome.String()).Info("Service account resolved")

	background := false

	switch outcome {
	case bootstrap.Established:
		a.state.SetState(Joining)
		if err := a.join(); err != nil {
			return a.abort(Joining, err)
		}
	default:
		a.state.SetState(GenesisOriginating)
		background, err = a.originate()
		if err != nil {
			return a.abort(a.state.GetState(), err)
		}
	}

	if err := a.startServices(); err != nil {
		return a.abort(a.state.GetState(), err)
	}

	if !background {
		a.state.SetState(Operational)
	}

	a.logger.WithField("state", a.state.GetState().String()).Info("Node started")

	return nil
}

func (a *App) abort(stage State, err error) error {
	a.logger.WithError(err).WithField("stage", stage.String()).Error("Boot failed")
	if shutdownErr := a.Shutdown(); shutdownErr != nil {
		a.logger.WithError(shutdownErr).Warn("Shutdown after boot failure")
	}
	return &BootError{Stage: stage, Err: err}
}

// join configures the node from the settings stored by a previous run.
func (a *App) join() error {
	settings, err := a.engine.LoadConfigFromDB()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	return a.applySettings(settings)
}

// originate stores the service account and seeds the engine with the genesis
// transactions. It returns true when the wait for the service account was
// left to a background routine.
func (a *App) originate() (bool, error) {
	bundle, name, err := a.loadGenesis(a.conf.BootstrapPath)
	if err != nil {
		return false, err
	}

	provisional := genesisSettings(len(bundle.Txs))

	a.logger.WithFields(logrus.Fields{
		"network":   name,
		"txs":       len(bundle.Txs),
		"threshold": provisional.BlockThreshold,
	}).Info("Originating network")

	err = a.owner.Reconfigure(func(e BlockEngine) error {
		if err := e.StoreServiceAccount(bundle.Bin); err != nil {
			return fmt.Errorf("storing service account: %w", err)
		}
		err := e.SetBlockConfig(provisional.Name(), provisional.BlockThreshold, provisional.BlockTimeout)
		if err != nil {
			return err
		}
		if err := e.SetBurnFuelMethod(provisional.BurningFuelMethod); err != nil {
			return err
		}
		if err := e.SetValidator(validator.Stub{Value: true}); err != nil {
			return err
		}
		if len(bundle.Txs) > 0 {
			return e.PutTxs(bundle.Txs)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if len(bundle.Txs) > 0 {
		return false, a.configureFromService(a.ctx, name)
	}

	a.startP2P = false
	a.state.GoFunc(func() {
		if err := a.configureFromService(a.ctx, name); err != nil {
			a.logger.WithError(err).Error("Genesis failed")
			a.fatal(&BootError{Stage: a.state.GetState(), Err: err})
			return
		}

		if err := a.p2p.Start(); err != nil {
			a.logger.WithError(err).Error("Starting peer-to-peer service")
			a.fatal(&BootError{Stage: ConfiguringFromService, Err: err})
			return
		}

		a.state.SetState(Operational)
		a.logger.Info("Node operational")
	})

	return true, nil
}

// configureFromService waits for the genesis blocks to create the service
// account, then applies the settings written by the service contract under
// the content-derived network name.
func (a *App) configureFromService(ctx context.Context, name string) error {
	err := bootstrap.WaitForServiceAccount(ctx,
		a.sender,
		a.conf.BootstrapMaxBlocks,
		a.logger.WithField("prefix", "bootstrap"))
	if err != nil {
		return err
	}

	a.state.SetState(ConfiguringFromService)

	reqCtx := ctx
	if a.conf.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, a.conf.RequestTimeout)
		defer cancel()
	}

	settings, err := bootstrap.LoadSettingsFromService(reqCtx, a.sender)
	if err != nil {
		return err
	}

	settings.NetworkName = &name
	if settings.MinNodeVersion == "" {
		settings.MinNodeVersion = version.Number
	}

	if err := a.engine.StoreConfigIntoDB(settings); err != nil {
		return fmt.Errorf("storing settings: %w", err)
	}

	stored, err := a.engine.LoadConfigFromDB()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	return a.applySettings(stored)
}

// applySettings checks that this node may run on the network, then restarts
// the engine with the settings and the live validator predicate.
func (a *App) applySettings(settings blockchain.Settings) error {
	if settings.NetworkName == nil {
		return ErrNetworkNameMissing
	}

	if err := checkMinVersion(version.Number, settings.MinNodeVersion); err != nil {
		return err
	}

	name := *settings.NetworkName

	err := a.owner.Reconfigure(func(e BlockEngine) error {
		if err := e.SetBlockConfig(name, settings.BlockThreshold, settings.BlockTimeout); err != nil {
			return err
		}
		if err := e.SetBurnFuelMethod(settings.BurningFuelMethod); err != nil {
			return err
		}
		return e.SetValidator(e.LiveValidator(name))
	})
	if err != nil {
		return err
	}

	a.p2p.SetNetworkName(name)
	a.p2p.SetAcceptBroadcast(settings.AcceptBroadcast)

	a.logger.WithFields(logrus.Fields{
		"network":   name,
		"threshold": settings.BlockThreshold,
		"timeout":   settings.BlockTimeout,
	}).Info("Network settings applied")

	return nil
}

// checkMinVersion fails when current is older than min. An empty min accepts
// every version.
func checkMinVersion(current string, min string) error {
	if min == "" {
		return nil
	}

	minVersion, err := semver.NewVersion(min)
	if err != nil {
		return fmt.Errorf("parsing minimum node version %q: %w", min, err)
	}

	currentVersion, err := semver.NewVersion(current)
	if err != nil {
		return fmt.Errorf("parsing node version %q: %w", current, err)
	}

	if currentVersion.LessThan(*minVersion) {
		return fmt.Errorf("%w: node %s, network minimum %s", ErrIncompatibleVersion, current, min)
	}

	return nil
}

func (a *App) startServices() error {
	if err := a.rest.Start(); err != nil {
		return fmt.Errorf("starting REST service: %w", err)
	}

	if a.startP2P {
		if err := a.p2p.Start(); err != nil {
			return fmt.Errorf("starting peer-to-peer service: %w", err)
		}
	}

	if err := a.bridge.Start(); err != nil {
		return fmt.Errorf("starting bridge service: %w", err)
	}

	if a.monitor != nil {
		if err := a.monitor.Start(); err != nil {
			return fmt.Errorf("starting monitor: %w", err)
		}
	}

	return nil
}
