package app

import (
	"sync"

	"go.uber.org/atomic"
)

// engineOwner is the only goroutine driving the lifecycle of the block
// engine. Every transition is a closure run by the owner, so a stop, a change
// of configuration and the following start are never interleaved with another
// transition.
type engineOwner struct {
	engine BlockEngine

	ops  chan func()
	quit chan struct{}
	done chan struct{}
	once sync.Once

	// transitioning is set while a reconfiguration is queued or running. The
	// engine is stopped on purpose during that window.
	transitioning *atomic.Int32
}

func newEngineOwner(engine BlockEngine) *engineOwner {
	o := &engineOwner{
		engine:        engine,
		ops:           make(chan func()),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		transitioning: atomic.NewInt32(0),
	}

	go o.run()

	return o
}

func (o *engineOwner) run() {
	defer close(o.done)

	for {
		select {
		case op := <-o.ops:
			op()
		case <-o.quit:
			return
		}
	}
}

func (o *engineOwner) do(fn func() error) error {
	errCh := make(chan error, 1)

	select {
	case o.ops <- func() { errCh <- fn() }:
		return <-errCh
	case <-o.done:
		return ErrEngineClosed
	}
}

// Start starts the engine.
func (o *engineOwner) Start() error {
	return o.do(func() error {
		o.engine.Start()
		return nil
	})
}

// Stop stops the engine.
func (o *engineOwner) Stop() error {
	return o.do(func() error {
		o.engine.Stop()
		return nil
	})
}

// Reconfigure stops the engine, applies mutate and starts the engine again.
// The engine is left stopped when mutate fails.
func (o *engineOwner) Reconfigure(mutate func(BlockEngine) error) error {
	o.transitioning.Inc()
	defer o.transitioning.Dec()

	return o.do(func() error {
		o.engine.Stop()

		if err := mutate(o.engine); err != nil {
			return err
		}

		o.engine.Start()

		return nil
	})
}

// IsRunning is true when the engine runs or is being reconfigured.
func (o *engineOwner) IsRunning() bool {
	return o.transitioning.Load() > 0 || o.engine.IsRunning()
}

// Close closes the engine and ends the owner goroutine. Later transitions fail
// with ErrEngineClosed.
func (o *engineOwner) Close() {
	o.once.Do(func() {
		o.do(func() error {
			o.engine.Close()
			return nil
		})
		close(o.quit)
		<-o.done
	})
}
