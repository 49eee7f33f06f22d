package app

import (
	"github.com/mosaicnetworks/warden/src/blockchain"
	"github.com/mosaicnetworks/warden/src/genesis"
	"github.com/mosaicnetworks/warden/src/validator"
)

// BlockEngine is the block engine as driven by the node. Its setters fail
// while it runs.
type BlockEngine interface {
	Start()
	Stop()
	IsRunning() bool
	Close()

	RequestChannel() *blockchain.RequestSender

	SetBlockConfig(network string, threshold int, timeout uint16) error
	SetBurnFuelMethod(method string) error
	SetValidator(p validator.Predicate) error
	PutTxs(txs []blockchain.Transaction) error

	StoreConfigIntoDB(settings blockchain.Settings) error
	LoadConfigFromDB() (blockchain.Settings, error)
	StoreServiceAccount(bin []byte) error
	LiveValidator(network string) validator.Predicate
}

// Service is the lifecycle of every other service of the node.
type Service interface {
	Start() error
	Stop() error
	IsRunning() bool
}

// PeerService is the peer-to-peer service. It learns the network name and the
// broadcast policy before it starts.
type PeerService interface {
	Service
	SetNetworkName(name string)
	SetAcceptBroadcast(accept bool)
}

// GenesisLoader reads a genesis bundle and returns it with its network name.
type GenesisLoader func(path string) (*genesis.Bundle, string, error)

// Services are the components an App drives.
type Services struct {
	Engine BlockEngine
	REST   Service
	P2P    PeerService
	Bridge Service

	// Monitor is optional.
	Monitor Service

	// LoadGenesis defaults to genesis.Load.
	LoadGenesis GenesisLoader
}
