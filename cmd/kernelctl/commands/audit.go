package commands

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/foundation42/microkernel/internal/kernel"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect supervisor restart-audit history",
}

var auditHistoryCmd = &cobra.Command{
	Use:   "history <supervisor-id>",
	Short: "List recorded restarts for a supervisor",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditHistory,
}

func init() {
	auditCmd.AddCommand(auditHistoryCmd)
}

func runAuditHistory(cmd *cobra.Command, args []string) error {
	raw, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid supervisor id %q: %w", args[0], err)
	}
	supervisorID := kernel.ID(raw)

	sink, err := requireAuditDB()
	if err != nil {
		return err
	}
	defer sink.Close()

	events, err := sink.History(supervisorID)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(events)
	}

	if len(events) == 0 {
		fmt.Printf("No restart events recorded for supervisor %s\n", supervisorID)
		return nil
	}

	warn := color.New(color.FgYellow).SprintFunc()
	for _, ev := range events {
		fmt.Printf("%s  child=%d  reason=%s\n",
			ev.OccurredAt.Format("2006-01-02T15:04:05"), ev.ChildIndex,
			warn(ev.Reason))
	}

	return nil
}
