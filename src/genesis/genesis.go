// Package genesis reads and writes the genesis bundle, the file a node needs to
// originate a new network.
//
// The name of a network is derived from the raw bytes of its bundle: it is the
// base58 form of their sha2-256 multihash. Two nodes holding byte-identical
// bundles therefore agree on the name without any coordination.
package genesis

import (
	"crypto/rand"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/common"
	"github.com/mosaicnetworks/warden/src/crypto"
)

// Bundle is the content of a genesis file.
type Bundle struct {
	// Bin is the code of the service contract.
	Bin []byte `codec:"bin"`
	// Txs are executed in order in the first block.
	Txs []blockchain.Transaction `codec:"txs"`
	// Nonce makes the network name unique.
	Nonce string `codec:"nonce"`
}

// NewBundle returns a bundle with a random nonce.
func NewBundle(bin []byte, txs []blockchain.Transaction) (*Bundle, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return &Bundle{
		Bin:   bin,
		Txs:   txs,
		Nonce: fmt.Sprintf("%x", nonce),
	}, nil
}

// Encode returns the file content of the bundle.
func (b *Bundle) Encode() ([]byte, error) {
	return common.Marshal(b)
}

// Decode parses the content of a genesis file. The content must be exactly one
// bundle carrying a service contract.
func Decode(data []byte) (*Bundle, error) {
	b := new(Bundle)
	if err := common.UnmarshalExact(data, b); err != nil {
		return nil, fmt.Errorf("decoding genesis bundle: %w", err)
	}

	if len(b.Bin) == 0 {
		return nil, fmt.Errorf("decoding genesis bundle: %w",
			common.NewChainErr(common.MalformedData, "no service contract"))
	}

	return b, nil
}

// NetworkName returns the name of the network originated from these bundle
// bytes.
func NetworkName(data []byte) string {
	return crypto.HashBytes(data).B58()
}

// Load reads a bundle file and returns the decoded bundle and the network name.
func Load(path string) (*Bundle, string, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading genesis bundle: %w", err)
	}

	if len(data) == 0 {
		return nil, "", fmt.Errorf("genesis bundle %s is empty", path)
	}

	b, err := Decode(data)
	if err != nil {
		return nil, "", err
	}

	return b, NetworkName(data), nil
}

// Save writes a bundle file and returns the network name it defines.
func Save(path string, b *Bundle) (string, error) {
	data, err := b.Encode()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}

	if err := ioutil.WriteFile(path, data, 0600); err != nil {
		return "", err
	}

	return NetworkName(data), nil
}
