package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// newUpdateCmd wraps POST, which only exists at the message level: there is
// no account/queue update in the wire protocol (accounts and queues are
// purely derived from message existence), so --account and --queue-name are
// both required here.
func newUpdateCmd(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update message attributes (ttl/hide), queue-wide or by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.markPresence(cmd)
			if f.account == "" || f.queue == "" {
				return fmt.Errorf("--account and --queue-name are required (there is no account/queue update)")
			}
			ctx := context.Background()
			c := newClient(f)
			opts := f.options()

			if f.id == "" {
				out, err := c.UpdateMessages(ctx, f.account, f.queue, opts)
				return printResult(out, err)
			}
			out, err := c.UpdateMessage(ctx, f.account, f.queue, f.id, opts)
			return printResult(out, err)
		},
	}
}
