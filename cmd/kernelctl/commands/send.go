package commands

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/foundation42/microkernel/internal/kernel"
	"github.com/foundation42/microkernel/internal/kernel/transport"
)

var sendUnixPath string

var sendCmd = &cobra.Command{
	Use:   "send <dest-id> <msg-type> <hex-payload>",
	Short: "Send one message to a node over a Unix-domain transport",
	Long: `Connects to a running node's Unix-domain listener, sends exactly one
message, and disconnects. dest-id and msg-type are decimal; hex-payload is
the message body hex-encoded (use "" for an empty payload).`,
	Args: cobra.ExactArgs(3),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendUnixPath, "unix", "",
		"Unix-domain socket path of the target node (required)")
	sendCmd.MarkFlagRequired("unix")
}

func runSend(cmd *cobra.Command, args []string) error {
	destRaw, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid dest id %q: %w", args[0], err)
	}
	dest := kernel.ID(destRaw)

	msgType, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid msg-type %q: %w", args[1], err)
	}

	payload, err := hex.DecodeString(args[2])
	if err != nil {
		return fmt.Errorf("invalid hex payload: %w", err)
	}

	t, err := transport.DialUnix(0, sendUnixPath)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", sendUnixPath, err)
	}
	defer t.Destroy()

	msg := kernel.NewMessage(kernel.InvalidID, dest, uint32(msgType), payload)
	if !t.Send(msg) {
		return fmt.Errorf("send rejected (transport not connected or circuit open)")
	}

	fmt.Printf("Sent %d bytes to %s (type %d)\n", len(payload), dest, msgType)

	return nil
}
