package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"verona-backend/internal/conversation"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a saved conversation can be imported",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return validateSnapshot(cmd.OutOrStdout(), args[0], data)
		},
	}
}

func validateSnapshot(out io.Writer, name string, data []byte) error {
	msgs, err := conversation.Decode(data)
	if err != nil {
		return err
	}

	counts := map[conversation.Role]int{}
	for _, m := range msgs {
		counts[m.Role]++
	}
	fmt.Fprintf(out, "%s: %d messages (system %d, user %d, assistant %d)\n",
		name, len(msgs),
		counts[conversation.RoleSystem], counts[conversation.RoleUser], counts[conversation.RoleAssistant])
	return nil
}
