package commands

import (
	"fmt"

	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/crypto/keys"
	"github.com/mosaicnetworks/warden/src/genesis"
	"github.com/mosaicnetworks/warden/src/version"
	"github.com/mosaicnetworks/warden/src/wm"
	"github.com/spf13/cobra"
)

var (
	genesisOut        string
	genesisKeyFile    string
	genesisContract   string
	genesisValidators []string
	genesisEmpty      bool
	genesisSettings   = blockchain.Settings{
		AcceptBroadcast:   true,
		BlockThreshold:    _config.Node.BlockThreshold,
		BlockTimeout:      _config.Node.BlockTimeout,
		BurningFuelMethod: "burn_fuel",
		IsProduction:      true,
		MinNodeVersion:    version.Number,
	}
)

// NewGenesisCmd produces a GenesisCmd which writes a genesis bundle
func NewGenesisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Create a genesis bundle",
		RunE:  writeGenesis,
	}

	AddGenesisFlags(cmd)

	return cmd
}

//AddGenesisFlags adds flags to the genesis command
func AddGenesisFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&genesisOut, "out", _config.Node.BootstrapPath, "File where the bundle will be written")
	cmd.Flags().StringVar(&genesisKeyFile, "priv", _config.Node.Keyfile, "Node key signing the init transaction")
	cmd.Flags().StringVar(&genesisContract, "contract", wm.ServiceContractName, "Native service contract")
	cmd.Flags().StringSliceVar(&genesisValidators, "validators", nil, "Initial validators, every node when empty")
	cmd.Flags().BoolVar(&genesisEmpty, "empty", false, "Write a bundle without transactions")

	cmd.Flags().IntVar(&genesisSettings.BlockThreshold, "block-threshold", genesisSettings.BlockThreshold, "Pooled transactions that trigger a block")
	cmd.Flags().Uint16Var(&genesisSettings.BlockTimeout, "block-timeout", genesisSettings.BlockTimeout, "Seconds after which a non-empty pool is cut into a block")
	cmd.Flags().BoolVar(&genesisSettings.AcceptBroadcast, "accept-broadcast", genesisSettings.AcceptBroadcast, "Accept transactions gossiped by peers")
	cmd.Flags().StringVar(&genesisSettings.BurningFuelMethod, "burn-method", genesisSettings.BurningFuelMethod, "Service method charging fuel")
	cmd.Flags().StringVar(&genesisSettings.MinNodeVersion, "min-node-version", genesisSettings.MinNodeVersion, "Oldest node version allowed on the network")
	cmd.Flags().BoolVar(&genesisSettings.IsProduction, "production", genesisSettings.IsProduction, "Production network")
}

func writeGenesis(cmd *cobra.Command, args []string) error {
	key, err := keys.NewSimpleKeyfile(genesisKeyFile).ReadKey()
	if err != nil {
		return fmt.Errorf("Reading node key: %s", err)
	}

	settings := &genesisSettings
	if genesisEmpty {
		settings = nil
	}

	bundle, err := genesis.NewServiceBundle(key, genesisContract, settings, genesisValidators)
	if err != nil {
		return err
	}

	name, err := genesis.Save(genesisOut, bundle)
	if err != nil {
		return fmt.Errorf("Writing genesis bundle: %s", err)
	}

	fmt.Printf("Genesis bundle saved to: %s\n", genesisOut)
	fmt.Printf("Network: %s\n", name)

	return nil
}
