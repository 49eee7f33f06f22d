package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/mosaicnetworks/warden/src/crypto"
)

// Sign signs the data with the private key and the built-in pseudo-random
// generator rand.Reader. The s value is normalized to the lower half of the
// curve order.
func Sign(priv *ecdsa.PrivateKey, data []byte) (r, s *big.Int, err error) {
	r, s, err = ecdsa.Sign(rand.Reader, priv, data)
	if err != nil {
		return nil, nil, err
	}
	if s.Cmp(secp256k1halfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	return r, s, nil
}

// Verify verifies that a signature represented by r and s values, is a valid
// signature of the data by an owner of the private key associated with the
// provided public key. High s values are rejected.
func Verify(pub *ecdsa.PublicKey, data []byte, r, s *big.Int) bool {
	if pub == nil || r == nil || s == nil || s.Cmp(secp256k1halfN) > 0 {
		return false
	}
	return ecdsa.Verify(pub, data, r, s)
}

// EncodeSignature returns a string representation of a signature.
func EncodeSignature(r, s *big.Int) string {
	return fmt.Sprintf("%s|%s", r.Text(36), s.Text(36))
}

// DecodeSignature parses a string representation of a signature as produced by
// EncodeSignature.
func DecodeSignature(sig string) (r, s *big.Int, err error) {
	values := strings.Split(sig, "|")
	if len(values) != 2 {
		return r, s, fmt.Errorf("wrong number of values in signature: got %d, want 2", len(values))
	}
	r, okR := new(big.Int).SetString(values[0], 36)
	s, okS := new(big.Int).SetString(values[1], 36)
	if !okR || !okS {
		return nil, nil, fmt.Errorf("malformed signature values")
	}
	return r, s, nil
}

// SignData hashes data with SHA256 and returns the encoded signature of the
// digest.
func SignData(priv *ecdsa.PrivateKey, data []byte) (string, error) {
	r, s, err := Sign(priv, crypto.SHA256(data))
	if err != nil {
		return "", err
	}
	return EncodeSignature(r, s), nil
}

// VerifyData checks an encoded signature produced by SignData.
func VerifyData(pub *ecdsa.PublicKey, data []byte, sig string) bool {
	r, s, err := DecodeSignature(sig)
	if err != nil {
		return false
	}
	return Verify(pub, crypto.SHA256(data), r, s)
}
