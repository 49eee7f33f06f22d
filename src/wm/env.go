package wm

import (
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/store"
)

// Env is the execution environment of a single contract call. Writes are
// buffered until the outermost call succeeds.
type Env struct {
	Ctx  CallContext
	Seed uint64

	fork      *store.Fork
	fuelLimit uint64
	burned    uint64
	writes    map[string][]byte
	order     []string
}

func newEnv(fork *store.Fork, ctx CallContext, seed uint64, fuelLimit uint64) *Env {
	return &Env{
		Ctx:       ctx,
		Seed:      seed,
		fork:      fork,
		fuelLimit: fuelLimit,
		writes:    make(map[string][]byte),
	}
}

// Burn consumes fuel. It fails once the call exceeds its limit.
func (e *Env) Burn(amount uint64) error {
	e.burned += amount
	if e.burned > e.fuelLimit {
		e.burned = e.fuelLimit
		return common.NewChainErr(common.MachineFault, "out of fuel")
	}
	return nil
}

// Burned ...
func (e *Env) Burned() uint64 {
	return e.burned
}

// Load reads a data entry of the owner account.
func (e *Env) Load(key string) ([]byte, error) {
	if v, ok := e.writes[key]; ok {
		return v, nil
	}
	return e.fork.LoadAccountData(e.Ctx.Owner, key)
}

// Store stages a data entry of the owner account.
func (e *Env) Store(key string, value []byte) error {
	if err := e.Burn(uint64(len(value))); err != nil {
		return err
	}
	if _, ok := e.writes[key]; !ok {
		e.order = append(e.order, key)
	}
	e.writes[key] = value
	return nil
}

func (e *Env) flush() error {
	for _, k := range e.order {
		if err := e.fork.StoreAccountData(e.Ctx.Owner, k, e.writes[k]); err != nil {
			return err
		}
	}
	return nil
}
