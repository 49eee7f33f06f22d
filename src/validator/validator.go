// Package validator decides whether an account is allowed to produce blocks.
package validator

import (
	"fmt"

	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/store"
	"github.com/mosaicnetworks/warden/src/wm"
)

// Predicate answers whether an account is a validator.
type Predicate interface {
	IsValidator(accountID string) (bool, error)
}

// Stub is a Predicate returning a fixed answer. It is used while the network
// settings are not known yet.
type Stub struct {
	Value bool
}

// IsValidator implements Predicate.
func (s Stub) IsValidator(string) (bool, error) {
	return s.Value, nil
}

// SeedSource provides the current randomness seed.
type SeedSource interface {
	Value() uint64
}

// Live is a Predicate asking the contract bound to the service account. Every
// query runs on a fresh fork that is always discarded.
type Live struct {
	DB             *store.DB
	VM             wm.Machine
	Seed           SeedSource
	ServiceAccount string
	Network        string
	Method         string
}

// NewLive ...
func NewLive(db *store.DB, vm wm.Machine, seed SeedSource, serviceAccount string, network string) *Live {
	return &Live{
		DB:             db,
		VM:             vm,
		Seed:           seed,
		ServiceAccount: serviceAccount,
		Network:        network,
		Method:         "is_validator",
	}
}

// IsValidator implements Predicate.
func (l *Live) IsValidator(accountID string) (bool, error) {
	args, err := common.Marshal(accountID)
	if err != nil {
		return false, err
	}

	fork := l.DB.Fork()
	defer fork.Discard()

	account, err := fork.LoadAccount(l.ServiceAccount)
	if err != nil {
		return false, fmt.Errorf("loading service account: %w", err)
	}

	if account.Contract.IsZero() {
		return false, common.NewChainErr(common.ResourceNotFound, "service account has no contract")
	}

	ctx := wm.CallContext{
		Network: l.Network,
		Owner:   l.ServiceAccount,
		Caller:  l.ServiceAccount,
		Origin:  l.ServiceAccount,
	}

	_, res, err := l.VM.Call(fork, ctx, account.Contract, l.Method, args, l.Seed.Value(), wm.MaxFuel)
	if err != nil {
		return false, fmt.Errorf("calling %s: %w", l.Method, err)
	}

	var ok bool
	if err := common.Unmarshal(res, &ok); err != nil {
		return false, err
	}

	return ok, nil
}
