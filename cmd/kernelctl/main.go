// Command kernelctl is an admin CLI for inspecting and poking at a running
// (or stopped) microkernel node: restart-audit history, state-store
// contents, and one-shot message sends over a Unix-domain transport.
package main

import (
	"fmt"
	"os"

	"github.com/foundation42/microkernel/cmd/kernelctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
