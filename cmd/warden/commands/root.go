package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for Warden
var RootCmd = &cobra.Command{
	Use:              "warden",
	Short:            "warden blockchain node",
	TraverseChildren: true,
}
