package blockchain

import (
	"github.com/mosaicnetworks/warden/src/common"
)

const (
	// ServiceAccountID is the account holding the service contract.
	ServiceAccountID = "TRINCI"

	// SettingsKey is the key of the network settings, both in the service
	// account data and in the node configuration area.
	SettingsKey = "blockchain:settings"
)

// Settings are the network-wide parameters chosen at genesis.
type Settings struct {
	AcceptBroadcast   bool    `codec:"accept_broadcast"`
	BlockThreshold    int     `codec:"block_threshold"`
	BlockTimeout      uint16  `codec:"block_timeout"`
	BurningFuelMethod string  `codec:"burning_fuel_method"`
	NetworkName       *string `codec:"network_name"`
	IsProduction      bool    `codec:"is_production"`
	MinNodeVersion    string  `codec:"min_node_version"`
}

// Name returns the network name, or the empty string if it is unset.
func (s *Settings) Name() string {
	if s.NetworkName == nil {
		return ""
	}
	return *s.NetworkName
}

// Marshal ...
func (s *Settings) Marshal() ([]byte, error) {
	return common.Marshal(s)
}

// Unmarshal ...
func (s *Settings) Unmarshal(data []byte) error {
	return common.Unmarshal(data, s)
}

// Config is the part of the settings the engine runs with.
type Config struct {
	Network   string
	Threshold int
	Timeout   uint16
}
