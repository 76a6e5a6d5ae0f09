package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newCreateCmd wraps PUT, the only create operation in the wire protocol:
// it only ever applies at message scope (--account/--queue-name/--id). When
// --id is omitted a random id is generated, mirroring how many queue client
// libraries let the server assign an opaque id.
func newCreateCmd(f *globalFlags) *cobra.Command {
	var bodyFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or overwrite a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.markPresence(cmd)
			if f.account == "" || f.queue == "" {
				return fmt.Errorf("--account and --queue-name are required")
			}
			id := f.id
			if id == "" {
				id = uuid.NewString()
			}

			var body []byte
			var err error
			if bodyFile == "-" || bodyFile == "" {
				body, err = io.ReadAll(os.Stdin)
			} else {
				body, err = os.ReadFile(bodyFile)
			}
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}

			created, err := newClient(f).CreateMessage(context.Background(), f.account, f.queue, id, body, f.options())
			if err != nil {
				return err
			}
			if created {
				fmt.Println(id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bodyFile, "body-file", "-", "file to read the message body from, - for stdin")
	return cmd
}
