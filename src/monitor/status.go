package monitor

import (
	"github.com/mosaicnetworks/warden/src/blockchain"
)

// Role of the node in its network.
type Role string

// Roles.
const (
	RoleOrdinary  Role = "ordinary"
	RoleValidator Role = "validator"
)

// NetworkConfig ...
type NetworkConfig struct {
	Name           string `json:"name"`
	BlockThreshold int    `json:"block_threshold"`
	BlockTimeout   uint16 `json:"block_timeout"`
}

// LastBlock is the last block seen by the monitor with its hash.
type LastBlock struct {
	Block blockchain.Block `json:"block"`
	Hash  string           `json:"hash"`
}

// UnconfirmedPool ...
type UnconfirmedPool struct {
	Hash string `json:"hash"`
	Size int    `json:"size"`
}

// P2PInfo ...
type P2PInfo struct {
	Addr          string `json:"addr"`
	Port          int    `json:"port"`
	BootstrapAddr string `json:"bootstrap_addr"`
}

// Status is the snapshot of the node the monitor reports.
type Status struct {
	PublicKey       string           `json:"public_key"`
	NwPublicKey     string           `json:"nw_public_key"`
	IPEndpoint      string           `json:"ip_endpoint"`
	PubIP           string           `json:"pub_ip"`
	Role            Role             `json:"role"`
	NwConfig        NetworkConfig    `json:"nw_config"`
	CoreVersion     string           `json:"core_version"`
	LastBlock       *LastBlock       `json:"last_block"`
	UnconfirmedPool *UnconfirmedPool `json:"unconfirmed_pool"`
	P2PInfo         P2PInfo          `json:"p2p_info"`
	Seed            uint64           `json:"seed"`
}

// Report is the payload pushed to the collector.
type Report struct {
	NodeID string `json:"nodeID"`
	Data   Status `json:"data"`
}

// applyStats replaces the pool and the last block with the ones of stats. The
// last block is only replaced when stats carry one.
func (s *Status) applyStats(stats blockchain.GetCoreStatsResponse) {
	if stats.PoolSize > 0 {
		s.UnconfirmedPool = &UnconfirmedPool{
			Hash: stats.PoolHash.Hex(),
			Size: stats.PoolSize,
		}
	} else {
		s.UnconfirmedPool = nil
	}

	if stats.LastBlock != nil {
		s.LastBlock = &LastBlock{
			Block: *stats.LastBlock,
			Hash:  stats.LastBlock.Hash().Hex(),
		}
	}
}
