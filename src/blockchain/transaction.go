package blockchain

import (
	"crypto/ecdsa"

	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/crypto/keys"
)

// TransactionData is the signed part of a Transaction.
type TransactionData struct {
	// Account is the target account.
	Account   string      `codec:"account"`
	FuelLimit uint64      `codec:"fuel_limit"`
	Nonce     []byte      `codec:"nonce"`
	Network   string      `codec:"network"`
	// Contract, when set, binds the target account to this contract if it has
	// none yet, and must match its contract otherwise.
	Contract crypto.Hash `codec:"contract"`
	Method   string      `codec:"method"`
	// Caller is the uncompressed public key of the signer.
	Caller []byte `codec:"caller"`
	Args   []byte `codec:"args"`
}

// Transaction ...
type Transaction struct {
	Data      TransactionData `codec:"data"`
	Signature string          `codec:"signature"`
}

// NewTransaction ...
func NewTransaction(data TransactionData) *Transaction {
	return &Transaction{Data: data}
}

// Sign sets the caller to the public key of priv and signs the transaction
// data.
func (t *Transaction) Sign(priv *ecdsa.PrivateKey) error {
	t.Data.Caller = keys.FromPublicKey(&priv.PublicKey)

	raw, err := common.Marshal(t.Data)
	if err != nil {
		return err
	}

	sig, err := keys.SignData(priv, raw)
	if err != nil {
		return err
	}

	t.Signature = sig

	return nil
}

// Verify checks the signature against the caller public key.
func (t *Transaction) Verify() error {
	pub := keys.ToPublicKey(t.Data.Caller)
	if pub == nil {
		return common.NewChainErr(common.InvalidSignature, "malformed caller key")
	}

	raw, err := common.Marshal(t.Data)
	if err != nil {
		return err
	}

	if !keys.VerifyData(pub, raw, t.Signature) {
		return common.NewChainErr(common.InvalidSignature, "")
	}

	return nil
}

// Hash returns the hash of the signed data.
func (t *Transaction) Hash() crypto.Hash {
	raw, _ := common.Marshal(t.Data)
	return crypto.HashBytes(raw)
}

// CallerID returns the account identifier of the signer.
func (t *Transaction) CallerID() string {
	pub := keys.ToPublicKey(t.Data.Caller)
	if pub == nil {
		return ""
	}
	return keys.AccountID(pub)
}

// Marshal ...
func (t *Transaction) Marshal() ([]byte, error) {
	return common.Marshal(t)
}

// Unmarshal ...
func (t *Transaction) Unmarshal(data []byte) error {
	return common.Unmarshal(data, t)
}
