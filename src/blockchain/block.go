package blockchain

import (
	"crypto/ecdsa"

	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
	"github.com/mosaicnetworks/warden/src/crypto/keys"
)

// BlockData is the signed part of a Block.
type BlockData struct {
	// Validator is the public key of the node that produced the block.
	Validator []byte      `codec:"validator"`
	Height    uint64      `codec:"height"`
	Size      uint32      `codec:"size"`
	PrevHash  crypto.Hash `codec:"prev_hash"`
	TxsHash   crypto.Hash `codec:"txs_hash"`
	RxsHash   crypto.Hash `codec:"rxs_hash"`
	StateHash crypto.Hash `codec:"state_hash"`
	Timestamp int64       `codec:"timestamp"`
}

// Block ...
type Block struct {
	Data      BlockData `codec:"data"`
	Signature string    `codec:"signature"`
}

// Sign ...
func (b *Block) Sign(priv *ecdsa.PrivateKey) error {
	b.Data.Validator = keys.FromPublicKey(&priv.PublicKey)

	raw, err := common.Marshal(b.Data)
	if err != nil {
		return err
	}

	b.Signature, err = keys.SignData(priv, raw)

	return err
}

// Hash ...
func (b *Block) Hash() crypto.Hash {
	raw, _ := common.Marshal(b.Data)
	return crypto.HashBytes(raw)
}

// Marshal ...
func (b *Block) Marshal() ([]byte, error) {
	return common.Marshal(b)
}

// Unmarshal ...
func (b *Block) Unmarshal(data []byte) error {
	return common.Unmarshal(data, b)
}

// Receipt is the outcome of the execution of a transaction.
type Receipt struct {
	Height     uint64 `codec:"height"`
	Index      uint32 `codec:"index"`
	BurnedFuel uint64 `codec:"burned_fuel"`
	Success    bool   `codec:"success"`
	Returns    []byte `codec:"returns"`
}

// Marshal ...
func (r *Receipt) Marshal() ([]byte, error) {
	return common.Marshal(r)
}

// Unmarshal ...
func (r *Receipt) Unmarshal(data []byte) error {
	return common.Unmarshal(data, r)
}

// merkleHash hashes a list of hashes. It is the hash of the empty input for an
// empty list.
func merkleHash(hashes []crypto.Hash) crypto.Hash {
	var buf []byte
	for _, h := range hashes {
		buf = append(buf, h...)
	}
	return crypto.HashBytes(buf)
}
