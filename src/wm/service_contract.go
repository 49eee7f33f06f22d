package wm

import (
	"encoding/binary"

	"github.com/mosaicnetworks/warden/src/common"
)

// ServiceContractName is the name the service contract is registered under.
const ServiceContractName = "service"

// Data keys of the service account written by the service contract.
const (
	SettingsKey   = "blockchain:settings"
	ValidatorsKey = "blockchain:validators"
	fuelKeyPrefix = "fuel:"
)

// ServiceInitArgs are the arguments of the service contract "init" method.
// Settings is an encoded blockchain settings record. It is stored as is.
type ServiceInitArgs struct {
	Settings   []byte   `codec:"settings"`
	Validators []string `codec:"validators"`
}

// BurnFuelArgs are the arguments of the fuel burning method.
type BurnFuelArgs struct {
	Account string `codec:"account"`
	Amount  uint64 `codec:"amount"`
}

// ServiceContract is the contract bound to the service account. It owns the
// network settings and the validator set.
//
//  init          stores the settings and the initial validators, once
//  get_settings  returns the encoded settings
//  is_validator  returns whether an account is a validator
//  add_validator adds a validator, callable by validators only
//  burn_fuel     accumulates the fuel burned by an account
type ServiceContract struct{}

// Call implements Contract.
func (ServiceContract) Call(env *Env, method string, args []byte) ([]byte, error) {
	switch method {
	case "init":
		return serviceInit(env, args)
	case "get_settings":
		return env.Load(SettingsKey)
	case "is_validator":
		return serviceIsValidator(env, args)
	case "add_validator":
		return serviceAddValidator(env, args)
	case "burn_fuel":
		return serviceBurnFuel(env, args)
	default:
		return nil, common.NewChainErr(common.MachineFault, "method %q not found", method)
	}
}

func serviceInit(env *Env, args []byte) ([]byte, error) {
	if _, err := env.Load(SettingsKey); err == nil {
		return nil, common.NewChainErr(common.Unauthorized, "service already initialized")
	}

	var init ServiceInitArgs
	if err := common.Unmarshal(args, &init); err != nil {
		return nil, err
	}

	if len(init.Settings) == 0 {
		return nil, common.NewChainErr(common.MalformedData, "empty settings")
	}

	if err := env.Store(SettingsKey, init.Settings); err != nil {
		return nil, err
	}

	if err := storeValidators(env, init.Validators); err != nil {
		return nil, err
	}

	return common.Marshal(true)
}

func serviceIsValidator(env *Env, args []byte) ([]byte, error) {
	var id string
	if err := common.Unmarshal(args, &id); err != nil {
		return nil, err
	}

	validators, err := loadValidators(env)
	if err != nil {
		return nil, err
	}

	// An empty set means every node is a validator.
	res := len(validators) == 0
	for _, v := range validators {
		if v == id {
			res = true
			break
		}
	}

	return common.Marshal(res)
}

func serviceAddValidator(env *Env, args []byte) ([]byte, error) {
	var id string
	if err := common.Unmarshal(args, &id); err != nil {
		return nil, err
	}

	validators, err := loadValidators(env)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, v := range validators {
		if v == id {
			return common.Marshal(true)
		}
		if v == env.Ctx.Caller {
			allowed = true
		}
	}

	if !allowed {
		return nil, common.NewChainErr(common.Unauthorized, "%s is not a validator", env.Ctx.Caller)
	}

	if err := storeValidators(env, append(validators, id)); err != nil {
		return nil, err
	}

	return common.Marshal(true)
}

func serviceBurnFuel(env *Env, args []byte) ([]byte, error) {
	var burn BurnFuelArgs
	if err := common.Unmarshal(args, &burn); err != nil {
		return nil, err
	}

	key := fuelKeyPrefix + burn.Account

	total := uint64(0)
	if raw, err := env.Load(key); err == nil && len(raw) == 8 {
		total = binary.BigEndian.Uint64(raw)
	}
	total += burn.Amount

	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, total)

	if err := env.Store(key, raw); err != nil {
		return nil, err
	}

	return common.Marshal(total)
}

func loadValidators(env *Env) ([]string, error) {
	raw, err := env.Load(ValidatorsKey)
	if common.IsChainErr(err, common.ResourceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var validators []string
	if err := common.Unmarshal(raw, &validators); err != nil {
		return nil, err
	}

	return validators, nil
}

func storeValidators(env *Env, validators []string) error {
	raw, err := common.Marshal(validators)
	if err != nil {
		return err
	}
	return env.Store(ValidatorsKey, raw)
}
