package commands

import (
	"github.com/meshworks/tattle/src/config"
	"github.com/spf13/cobra"
)

var _config = config.NewDefaultConfig()

// RootCmd is the root command for tattle
var RootCmd = &cobra.Command{
	Use:              "tattle",
	Short:            "tattle mention relay",
	TraverseChildren: true,
}
