package main

import (
	"context"

	"github.com/spf13/cobra"
)

// newDeleteCmd wraps DELETE at whichever scope --account/--queue-name/--id
// narrows it to.
func newDeleteCmd(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove accounts, queues or messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.markPresence(cmd)
			ctx := context.Background()
			c := newClient(f)
			opts := f.options()

			switch {
			case f.account == "":
				out, err := c.DeleteAccounts(ctx, opts)
				return printResult(out, err)
			case f.queue == "":
				out, err := c.DeleteQueues(ctx, f.account, opts)
				return printResult(out, err)
			case f.id == "":
				out, err := c.DeleteMessages(ctx, f.account, f.queue, opts)
				return printResult(out, err)
			default:
				out, err := c.DeleteMessage(ctx, f.account, f.queue, f.id, opts)
				return printResult(out, err)
			}
		},
	}
}
