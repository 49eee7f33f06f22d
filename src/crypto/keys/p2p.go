package keys

import (
	"crypto/rand"
	"fmt"
	"io/ioutil"

	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// GenerateP2PKey creates a new Ed25519 key for the peer-to-peer network.
func GenerateP2PKey() (p2pcrypto.PrivKey, error) {
	priv, _, err := p2pcrypto.GenerateEd25519Key(rand.Reader)
	return priv, err
}

// P2PKeyfile reads and writes a peer-to-peer key in the libp2p protobuf
// encoding. Like SimpleKeyfile, the file must only be accessible to its owner.
type P2PKeyfile struct {
	keyfile string
}

// NewP2PKeyfile ...
func NewP2PKeyfile(keyfile string) *P2PKeyfile {
	return &P2PKeyfile{keyfile: keyfile}
}

// ReadKey ...
func (k *P2PKeyfile) ReadKey() (p2pcrypto.PrivKey, error) {
	if err := ownerOnly(k.keyfile); err != nil {
		return nil, err
	}

	buf, err := ioutil.ReadFile(k.keyfile)
	if err != nil {
		return nil, err
	}

	priv, err := p2pcrypto.UnmarshalPrivateKey(buf)
	if err != nil {
		return nil, fmt.Errorf("parsing p2p key %s: %w", k.keyfile, err)
	}

	if priv.Type() != p2pcrypto.Ed25519 {
		return nil, fmt.Errorf("p2p key %s is not an Ed25519 key", k.keyfile)
	}

	return priv, nil
}

// WriteKey ...
func (k *P2PKeyfile) WriteKey(priv p2pcrypto.PrivKey) error {
	raw, err := p2pcrypto.MarshalPrivateKey(priv)
	if err != nil {
		return err
	}

	return writeKeyfile(k.keyfile, raw)
}

// P2PAccountID returns the peer identifier of a peer-to-peer key.
func P2PAccountID(priv p2pcrypto.PrivKey) (string, error) {
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// P2PPublicKeyHex returns the hexadecimal form of the raw Ed25519 public key.
func P2PPublicKeyHex(priv p2pcrypto.PrivKey) string {
	raw, err := priv.GetPublic().Raw()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", raw)
}
