package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set via -ldflags "-X ...commands.version=..." at build time.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print kernelctl's version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("kernelctl", version)
		return nil
	},
}
