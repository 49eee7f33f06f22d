package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/multiformats/go-multihash"
)

// Hash is a self-describing sha2-256 digest in multihash form: a one byte
// algorithm code (0x12), a one byte length (0x20) and the 32 byte digest.
type Hash []byte

// HashBytes returns the multihash of data.
func HashBytes(data []byte) Hash {
	// sha2-256 is always registered, Sum cannot fail for it.
	mh, _ := multihash.Sum(data, multihash.SHA2_256, -1)
	return Hash(mh)
}

// HashFromB58 parses the base58 form of a hash, as produced by B58.
func HashFromB58(s string) (Hash, error) {
	mh, err := multihash.FromB58String(s)
	if err != nil {
		return nil, err
	}
	return Hash(mh), nil
}

// HashFromHex parses the hexadecimal form of a hash, as produced by Hex.
func HashFromHex(s string) (Hash, error) {
	mh, err := multihash.FromHexString(s)
	if err != nil {
		return nil, err
	}
	return Hash(mh), nil
}

// B58 returns the base58 representation of the hash.
func (h Hash) B58() string {
	return multihash.Multihash(h).B58String()
}

// Hex returns the lowercase hexadecimal representation of the hash.
func (h Hash) Hex() string {
	return hex.EncodeToString(h)
}

// Equal ...
func (h Hash) Equal(o Hash) bool {
	return bytes.Equal(h, o)
}

// IsZero returns true for an empty hash.
func (h Hash) IsZero() bool {
	return len(h) == 0
}

// String ...
func (h Hash) String() string {
	if h.IsZero() {
		return "None"
	}
	return h.Hex()
}

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// MarshalJSON encodes the hash as a hexadecimal string.
func (h Hash) MarshalJSON() ([]byte, error) {
	if h.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + h.Hex() + `"`), nil
}

// UnmarshalJSON decodes the hexadecimal form produced by MarshalJSON.
func (h *Hash) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*h = nil
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("hash: expected a JSON string")
	}
	raw, err := hex.DecodeString(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*h = Hash(raw)
	return nil
}
