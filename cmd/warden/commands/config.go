package commands

import (
	"github.com/mosaicnetworks/warden/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Node config.Config `mapstructure:",squash"`

	// Trace logs every committed block.
	Trace bool `mapstructure:"trace"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Node:  *config.NewDefaultConfig(),
		Trace: true,
	}
}
