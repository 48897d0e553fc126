package commands

import (
	"github.com/spf13/cobra"
)

var (
	// auditDBPath is the path to the supervisor restart-audit sqlite
	// database, shared by every audit subcommand.
	auditDBPath string

	// stateRoot is the root directory of the state-persistence store,
	// shared by every state subcommand.
	stateRoot string

	// outputFormat controls output format (text, json).
	outputFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "kernelctl",
	Short: "Admin CLI for a microkernel node",
	Long: `kernelctl inspects and administers a microkernel node: restart
audit history, state-store contents, and one-shot message delivery over a
Unix-domain transport.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&auditDBPath, "audit-db", "",
		"Path to the restart-audit sqlite database",
	)
	rootCmd.PersistentFlags().StringVar(
		&stateRoot, "state-root", "",
		"Root directory of the state-persistence store",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(versionCmd)
}
