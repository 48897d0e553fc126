package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or edit the state-persistence store",
}

var stateListCmd = &cobra.Command{
	Use:   "list <actor-name>",
	Short: "List keys stored for an actor",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateList,
}

var stateGetCmd = &cobra.Command{
	Use:   "get <actor-name> <key>",
	Short: "Print the value stored at a key",
	Args:  cobra.ExactArgs(2),
	RunE:  runStateGet,
}

var stateSetCmd = &cobra.Command{
	Use:   "set <actor-name> <key> <file>",
	Short: "Write a key's value from a file (- for stdin)",
	Args:  cobra.ExactArgs(3),
	RunE:  runStateSet,
}

var stateDeleteCmd = &cobra.Command{
	Use:   "delete <actor-name> <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(2),
	RunE:  runStateDelete,
}

func init() {
	stateCmd.AddCommand(stateListCmd, stateGetCmd, stateSetCmd, stateDeleteCmd)
}

func runStateList(cmd *cobra.Command, args []string) error {
	store, err := requireStateStore()
	if err != nil {
		return err
	}

	keys, err := store.List(args[0])
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(keys)
	}

	for _, k := range keys {
		fmt.Println(k)
	}

	return nil
}

func runStateGet(cmd *cobra.Command, args []string) error {
	store, err := requireStateStore()
	if err != nil {
		return err
	}

	value, ok, err := store.Read(args[0], args[1])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no such key: %s/%s", args[0], args[1])
	}

	os.Stdout.Write(value)

	return nil
}

func runStateSet(cmd *cobra.Command, args []string) error {
	store, err := requireStateStore()
	if err != nil {
		return err
	}

	var value []byte
	if args[2] == "-" {
		value, err = os.ReadFile("/dev/stdin")
	} else {
		value, err = os.ReadFile(args[2])
	}
	if err != nil {
		return fmt.Errorf("reading value: %w", err)
	}

	return store.Write(args[0], args[1], value)
}

func runStateDelete(cmd *cobra.Command, args []string) error {
	store, err := requireStateStore()
	if err != nil {
		return err
	}

	return store.Delete(args[0], args[1])
}
