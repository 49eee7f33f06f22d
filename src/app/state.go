package app

import (
	"sync"
	"sync/atomic"
)

// State captures the boot stage of a node: Booting, GenesisOriginating,
// Joining, ConfiguringFromService, Operational or ShuttingDown.
type State uint32

const (
	// Booting is the state in which the block engine runs with a placeholder
	// configuration, only to find out whether the service account exists.
	Booting State = iota

	// GenesisOriginating is the state in which the node originates a new
	// network from a genesis bundle.
	GenesisOriginating

	// Joining is the state in which the node configures itself from the
	// settings stored in its database.
	Joining

	// ConfiguringFromService is the state in which the node reads the settings
	// written by the genesis transactions and applies them.
	ConfiguringFromService

	// Operational is the state in which every service runs with the final
	// network settings.
	Operational

	// ShuttingDown is the state in which every service is being stopped.
	ShuttingDown
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Booting:
		return "Booting"
	case GenesisOriginating:
		return "GenesisOriginating"
	case Joining:
		return "Joining"
	case ConfiguringFromService:
		return "ConfiguringFromService"
	case Operational:
		return "Operational"
	case ShuttingDown:
		return "ShuttingDown"
	default:
		return "Unknown"
	}
}

// stateManager wraps a State with get and set methods. It also tracks the
// goroutines launched by the node, to wait for them on shutdown.
type stateManager struct {
	state State
	wg    sync.WaitGroup
}

// GetState returns the current state.
func (m *stateManager) GetState() State {
	stateAddr := (*uint32)(&m.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState sets the state.
func (m *stateManager) SetState(s State) {
	stateAddr := (*uint32)(&m.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// GoFunc launches a goroutine for a given function and adds it to the
// waitgroup.
func (m *stateManager) GoFunc(f func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		f()
	}()
}

// WaitRoutines waits for all the goroutines in the waitgroup.
func (m *stateManager) WaitRoutines() {
	m.wg.Wait()
}
