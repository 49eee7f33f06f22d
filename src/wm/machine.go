package wm

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/store"
	"github.com/sirupsen/logrus"
)

const (
	// MaxFuel bounds the fuel a single call can burn.
	MaxFuel uint64 = 1000000

	// NativePrefix marks contract code that refers to a registered Go contract.
	NativePrefix = "native:"

	// CodeKeyPrefix prefixes the service account data keys holding contract
	// code.
	CodeKeyPrefix = "contracts:code:"

	baseCallCost = 100
)

// CodeKey returns the service account data key of the code with the given
// hash.
func CodeKey(hash crypto.Hash) string {
	return CodeKeyPrefix + hash.Hex()
}

// CallContext describes who calls what.
type CallContext struct {
	Network string
	Depth   uint16
	// Owner is the account the contract runs on.
	Owner string
	// Caller is the account that issued the call.
	Caller string
	// Origin is the account that signed the transaction.
	Origin string
}

// Machine executes contract methods.
type Machine interface {
	Call(fork *store.Fork,
		ctx CallContext,
		contract crypto.Hash,
		method string,
		args []byte,
		seed uint64,
		fuelLimit uint64) (burned uint64, result []byte, err error)
}

// Contract is a smart contract implemented in Go.
type Contract interface {
	Call(env *Env, method string, args []byte) ([]byte, error)
}

// ContractFunc adapts a function to the Contract interface.
type ContractFunc func(env *Env, method string, args []byte) ([]byte, error)

// Call implements Contract.
func (f ContractFunc) Call(env *Env, method string, args []byte) ([]byte, error) {
	return f(env, method, args)
}

// NativeMachine is a Machine running registered Go contracts.
type NativeMachine struct {
	sync.RWMutex

	serviceAccount string
	contracts      map[string]Contract
	cache          *lru.Cache[string, Contract]
	logger         *logrus.Entry
}

// NewNativeMachine returns a machine resolving contract code from the given
// service account. cacheSize bounds the number of resolved contracts kept in
// memory.
func NewNativeMachine(serviceAccount string, cacheSize int, logger *logrus.Entry) (*NativeMachine, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}

	cache, err := lru.New[string, Contract](cacheSize)
	if err != nil {
		return nil, err
	}

	return &NativeMachine{
		serviceAccount: serviceAccount,
		contracts:      make(map[string]Contract),
		cache:          cache,
		logger:         logger,
	}, nil
}

// Register makes a contract available under the given name.
func (m *NativeMachine) Register(name string, c Contract) {
	m.Lock()
	defer m.Unlock()
	m.contracts[name] = c
}

// Call implements Machine. The writes of a successful call are applied to the
// fork, those of a failed call are dropped.
func (m *NativeMachine) Call(fork *store.Fork,
	ctx CallContext,
	contract crypto.Hash,
	method string,
	args []byte,
	seed uint64,
	fuelLimit uint64) (uint64, []byte, error) {

	if fuelLimit > MaxFuel {
		fuelLimit = MaxFuel
	}

	env := newEnv(fork, ctx, seed, fuelLimit)

	result, err := m.call(env, contract, method, args)
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"owner":  ctx.Owner,
			"method": method,
			"err":    err,
		}).Debug("Contract call failed")
		return env.burned, nil, err
	}

	if err := env.flush(); err != nil {
		return env.burned, nil, err
	}

	return env.burned, result, nil
}

func (m *NativeMachine) call(env *Env, contract crypto.Hash, method string, args []byte) ([]byte, error) {
	if err := env.Burn(baseCallCost + uint64(len(args))); err != nil {
		return nil, err
	}

	c, err := m.resolve(env, contract)
	if err != nil {
		return nil, err
	}

	return c.Call(env, method, args)
}

func (m *NativeMachine) resolve(env *Env, contract crypto.Hash) (Contract, error) {
	if contract.IsZero() {
		return nil, common.NewChainErr(common.MachineFault, "no contract")
	}

	key := contract.Hex()

	if c, ok := m.cache.Get(key); ok {
		return c, nil
	}

	code, err := env.fork.LoadAccountData(m.serviceAccount, CodeKey(contract))
	if err != nil {
		return nil, common.NewChainErr(common.MachineFault, "loading contract %s: %v", key, err)
	}

	if !crypto.HashBytes(code).Equal(contract) {
		return nil, common.NewChainErr(common.MachineFault, "contract %s: code hash mismatch", key)
	}

	name := string(code)
	if !strings.HasPrefix(name, NativePrefix) {
		return nil, common.NewChainErr(common.MachineFault, "contract %s: unsupported code format", key)
	}
	name = strings.TrimPrefix(name, NativePrefix)

	m.RLock()
	c, ok := m.contracts[name]
	m.RUnlock()

	if !ok {
		return nil, common.NewChainErr(common.MachineFault, "contract %s: native %q not registered", key, name)
	}

	m.cache.Add(key, c)

	return c, nil
}

// NativeCode returns the contract code selecting a registered native contract.
func NativeCode(name string) []byte {
	return []byte(fmt.Sprintf("%s%s", NativePrefix, name))
}
