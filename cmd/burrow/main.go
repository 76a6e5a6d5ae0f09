// Command burrow is a cobra-based CLI client for burrowd, operating at
// account, queue or message scope depending on how many path segments
// follow --account/--queue-name/--id.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/emonty/burrow/internal/client"
)

func secondsToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}

type globalFlags struct {
	server  string
	account string
	queue   string
	id      string

	ttl         int64
	hasTTL      bool
	hide        int64
	hasHide     bool
	limit       int
	hasLimit    bool
	marker      string
	hasMarker   bool
	detail      string
	all         bool
	wait        int
	matchHidden bool
}

func main() {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "burrow",
		Short: "Command-line client for the Burrow message queue",
	}
	root.PersistentFlags().StringVar(&flags.server, "server", "http://localhost:8080", "burrowd base URL")
	root.PersistentFlags().StringVar(&flags.account, "account", "", "account name")
	root.PersistentFlags().StringVar(&flags.queue, "queue-name", "", "queue name")
	root.PersistentFlags().StringVar(&flags.id, "id", "", "message id (create/get/delete/update at message scope)")
	root.PersistentFlags().Int64Var(&flags.ttl, "ttl", 0, "ttl in seconds from now")
	root.PersistentFlags().Int64Var(&flags.hide, "hide", 0, "hide in seconds from now")
	root.PersistentFlags().IntVar(&flags.limit, "limit", 0, "maximum number of items to return")
	root.PersistentFlags().StringVar(&flags.marker, "marker", "", "resume listing after this id")
	root.PersistentFlags().StringVar(&flags.detail, "detail", "", "none|id|attributes|body|all")
	root.PersistentFlags().BoolVar(&flags.all, "all", false, "match hidden messages too")
	root.PersistentFlags().IntVar(&flags.wait, "wait", 0, "seconds to block waiting for a visible message")

	root.AddCommand(
		newCreateCmd(&flags),
		newGetCmd(&flags),
		newDeleteCmd(&flags),
		newUpdateCmd(&flags),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "burrow:", err)
		os.Exit(1)
	}
}

func newClient(f *globalFlags) *client.Client {
	return client.New(f.server, nil)
}

func (f *globalFlags) markPresence(cmd *cobra.Command) {
	f.hasTTL = cmd.Flags().Changed("ttl")
	f.hasHide = cmd.Flags().Changed("hide")
	f.hasLimit = cmd.Flags().Changed("limit")
	f.hasMarker = cmd.Flags().Changed("marker")
}

func (f *globalFlags) options() client.Options {
	opts := client.Options{
		Detail:      f.detail,
		MatchHidden: f.all,
	}
	if f.hasLimit {
		opts.Limit = f.limit
		opts.HasLimit = true
	}
	if f.hasMarker {
		opts.Marker = f.marker
		opts.HasMarker = true
	}
	if f.hasTTL {
		ttl := f.ttl
		opts.TTL = &ttl
	}
	if f.hasHide {
		hide := f.hide
		opts.Hide = &hide
	}
	if f.wait > 0 {
		opts.Wait = secondsToDuration(f.wait)
	}
	return opts
}
