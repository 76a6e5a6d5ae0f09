package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newGetCmd wraps GET at whichever scope --account/--queue-name/--id
// narrows it to: account collection, queue collection, message collection,
// or a single message.
func newGetCmd(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Read accounts, queues or messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.markPresence(cmd)
			ctx := context.Background()
			c := newClient(f)
			opts := f.options()

			switch {
			case f.account == "":
				out, err := c.GetAccounts(ctx, opts)
				return printResult(out, err)
			case f.queue == "":
				out, err := c.GetQueues(ctx, f.account, opts)
				return printResult(out, err)
			case f.id == "":
				out, err := c.GetMessages(ctx, f.account, f.queue, opts)
				return printResult(out, err)
			default:
				out, err := c.GetMessage(ctx, f.account, f.queue, f.id, opts)
				return printResult(out, err)
			}
		},
	}
}

func printResult(v any, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
