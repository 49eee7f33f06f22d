package genesis

import (
	"crypto/ecdsa"
	"crypto/rand"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/wm"
)

// ServiceInitTx returns the signed transaction binding the service account to
// the contract bin and running its "init" method with the settings and the
// initial validators. An empty validator list makes every node a validator.
func ServiceInitTx(key *ecdsa.PrivateKey,
	bin []byte,
	settings blockchain.Settings,
	validators []string) (*blockchain.Transaction, error) {

	rawSettings, err := settings.Marshal()
	if err != nil {
		return nil, err
	}

	args, err := common.Marshal(wm.ServiceInitArgs{
		Settings:   rawSettings,
		Validators: validators,
	})
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	tx := blockchain.NewTransaction(blockchain.TransactionData{
		Account:   blockchain.ServiceAccountID,
		FuelLimit: wm.MaxFuel,
		Nonce:     nonce,
		Contract:  crypto.HashBytes(bin),
		Method:    "init",
		Args:      args,
	})

	if err := tx.Sign(key); err != nil {
		return nil, err
	}

	return tx, nil
}

// NewServiceBundle returns a bundle for the native contract registered under
// name. The bundle initializes the service account in its first block, unless
// settings is nil.
func NewServiceBundle(key *ecdsa.PrivateKey,
	name string,
	settings *blockchain.Settings,
	validators []string) (*Bundle, error) {

	bin := wm.NativeCode(name)

	var txs []blockchain.Transaction
	if settings != nil {
		tx, err := ServiceInitTx(key, bin, *settings, validators)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}

	return NewBundle(bin, txs)
}
