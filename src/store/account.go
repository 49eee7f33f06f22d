package store

import (
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
)

// Account is the persistent state of an account. Contract is the hash of the
// code bound to the account, nil when there is none.
type Account struct {
	ID       string
	Assets   map[string][]byte
	Contract crypto.Hash
}

// NewAccount ...
func NewAccount(id string, contract crypto.Hash) *Account {
	return &Account{
		ID:       id,
		Assets:   make(map[string][]byte),
		Contract: contract,
	}
}

// Marshal ...
func (a *Account) Marshal() ([]byte, error) {
	return common.Marshal(a)
}

// Unmarshal ...
func (a *Account) Unmarshal(data []byte) error {
	return common.Unmarshal(data, a)
}
