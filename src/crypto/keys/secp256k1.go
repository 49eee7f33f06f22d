package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// PrivateKeySize is the length of a raw secp256k1 private key.
const PrivateKeySize = 32

var (
	// order of the secp256k1 group, and its half for low-s signatures
	secp256k1N     = btcec.S256().N
	secp256k1halfN = new(big.Int).Rsh(secp256k1N, 1)
)

// Curve returns the secp256k1 curve of btcsuite.
func Curve() elliptic.Curve {
	return btcec.S256()
}

// GenerateECDSAKey creates a new node key.
func GenerateECDSAKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(Curve(), rand.Reader)
}

// DumpPrivateKey returns the scalar of a key as PrivateKeySize big-endian
// bytes.
func DumpPrivateKey(priv *ecdsa.PrivateKey) []byte {
	if priv == nil {
		return nil
	}
	return priv.D.FillBytes(make([]byte, PrivateKeySize))
}

// ParsePrivateKey is the inverse of DumpPrivateKey. The scalar must lie in
// [1, N-1].
func ParsePrivateKey(d []byte) (*ecdsa.PrivateKey, error) {
	if len(d) != PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length %d, need %d", len(d), PrivateKeySize)
	}

	scalar := new(big.Int).SetBytes(d)
	if scalar.Sign() == 0 || scalar.Cmp(secp256k1N) >= 0 {
		return nil, fmt.Errorf("private key out of range")
	}

	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), d)

	return priv.ToECDSA(), nil
}

// PrivateKeyHex is the keyfile form of a private key.
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(DumpPrivateKey(key))
}
