package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mosaicnetworks/warden/src/config"
)

type namedService struct {
	name string
	svc  Service
}

type supervised struct {
	name      string
	isRunning func() bool
}

// Park supervises the services until one of them stops, a background boot
// routine fails or ctx is done. Every service is then shut down. Park returns
// nil only when ctx is done and the shutdown went fine.
func (a *App) Park(ctx context.Context) error {
	interval := a.conf.LivenessInterval
	if interval <= 0 {
		interval = config.DefaultLivenessInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Shutdown requested")
			return a.Shutdown()
		case err := <-a.fatalCh:
			return multierror.Append(err, a.Shutdown()).ErrorOrNil()
		case <-ticker.C:
			if name := a.firstDown(); name != "" {
				a.logger.WithField("service", name).Error("Service not running, shutting down")
				return multierror.Append(&ServiceDownError{Service: name}, a.Shutdown()).ErrorOrNil()
			}
		}
	}
}

// firstDown returns the name of the first supervised service that is not
// running. The peer-to-peer service is not supervised.
func (a *App) firstDown() string {
	services := []supervised{
		{"block", a.owner.IsRunning},
		{"rest", a.rest.IsRunning},
		{"bridge", a.bridge.IsRunning},
	}
	if a.monitor != nil {
		services = append(services, supervised{"monitor", a.monitor.IsRunning})
	}

	for _, s := range services {
		if !s.isRunning() {
			return s.name
		}
	}

	return ""
}

// Shutdown stops every service once, in order: block engine, REST,
// peer-to-peer, bridge and monitor. Then the engine and its storage are
// closed. Later calls do nothing.
func (a *App) Shutdown() error {
	var result error

	a.closeOnce.Do(func() {
		a.state.SetState(ShuttingDown)
		a.cancel()
		a.state.WaitRoutines()

		if err := a.owner.Stop(); err != nil {
			result = multierror.Append(result, fmt.Errorf("stopping block engine: %w", err))
		}

		services := []namedService{
			{"rest", a.rest},
			{"p2p", a.p2p},
			{"bridge", a.bridge},
		}
		if a.monitor != nil {
			services = append(services, namedService{"monitor", a.monitor})
		}

		for _, s := range services {
			if err := s.svc.Stop(); err != nil {
				result = multierror.Append(result, fmt.Errorf("stopping %s: %w", s.name, err))
			}
		}

		a.owner.Close()

		for _, closer := range a.closers {
			if err := closer(); err != nil {
				result = multierror.Append(result, err)
			}
		}

		a.logger.Info("Node shut down")
	})

	return result
}
