package app

import (
	"crypto/ecdsa"
	"os"

	p2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/mosaicnetworks/warden/src/config"
	"github.com/mosaicnetworks/warden/src/crypto/keys"
	"github.com/sirupsen/logrus"
)

// Identity holds the keys of the node. It does not change after boot.
type Identity struct {
	// Key signs blocks and identifies the node account.
	Key *ecdsa.PrivateKey

	// P2PKey identifies the node on the peer-to-peer network.
	P2PKey p2pcrypto.PrivKey
}

// AccountID ...
func (i *Identity) AccountID() string {
	return keys.AccountID(&i.Key.PublicKey)
}

// P2PAccountID ...
func (i *Identity) P2PAccountID() string {
	id, err := keys.P2PAccountID(i.P2PKey)
	if err != nil {
		return ""
	}
	return id
}

// LoadIdentity reads the node keys from the files named in the
// configuration. A missing file yields a random key. Any other failure, an
// unreadable file or a file accessible to others, is an error.
func LoadIdentity(conf *config.Config, logger *logrus.Entry) (*Identity, error) {
	key, err := keys.NewSimpleKeyfile(conf.Keyfile).ReadKey()
	if os.IsNotExist(err) {
		logger.WithField("path", conf.Keyfile).Warn("Node key not found, using a random one")
		key, err = keys.GenerateECDSAKey()
	}
	if err != nil {
		return nil, err
	}

	p2pKey, err := keys.NewP2PKeyfile(conf.P2PKeyfile).ReadKey()
	if os.IsNotExist(err) {
		logger.WithField("path", conf.P2PKeyfile).Warn("P2P key not found, using a random one")
		p2pKey, err = keys.GenerateP2PKey()
	}
	if err != nil {
		return nil, err
	}

	return &Identity{Key: key, P2PKey: p2pKey}, nil
}
