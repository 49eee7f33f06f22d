package commands

import (
	"fmt"
	"os"

	"github.com/mosaicnetworks/warden/src/crypto/keys"
	"github.com/spf13/cobra"
)

var (
	privKeyFile string
	p2pKeyFile  string
)

// NewKeygenCmd produces a KeygenCmd which creates the node and peer-to-peer
// keys
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new node and peer-to-peer keys",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&privKeyFile, "priv", _config.Node.Keyfile, "File where the node key will be written")
	cmd.Flags().StringVar(&p2pKeyFile, "p2p", _config.Node.P2PKeyfile, "File where the peer-to-peer key will be written")
}

func keygen(cmd *cobra.Command, args []string) error {
	for _, f := range []string{privKeyFile, p2pKeyFile} {
		if _, err := os.Stat(f); err == nil {
			return fmt.Errorf("A key already lives under: %s", f)
		}
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return fmt.Errorf("Error generating ECDSA key: %s", err)
	}

	if err := keys.NewSimpleKeyfile(privKeyFile).WriteKey(key); err != nil {
		return fmt.Errorf("Writing node key: %s", err)
	}

	fmt.Printf("Your node key has been saved to: %s\n", privKeyFile)
	fmt.Printf("Account: %s\n", keys.AccountID(&key.PublicKey))

	p2pKey, err := keys.GenerateP2PKey()
	if err != nil {
		return fmt.Errorf("Error generating peer-to-peer key: %s", err)
	}

	if err := keys.NewP2PKeyfile(p2pKeyFile).WriteKey(p2pKey); err != nil {
		return fmt.Errorf("Writing peer-to-peer key: %s", err)
	}

	id, err := keys.P2PAccountID(p2pKey)
	if err != nil {
		return err
	}

	fmt.Printf("Your peer-to-peer key has been saved to: %s\n", p2pKeyFile)
	fmt.Printf("Peer: %s\n", id)

	return nil
}
