package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultDaemonURL = "http://127.0.0.1:9031"
	defaultTimeout   = 2 * time.Minute
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	url     string
	timeout time.Duration
	json    bool
}

func (o *options) client() *daemonClient {
	return newDaemonClient(o.url, o.timeout)
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "focuser",
		Short:         "Control a focuserd daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	defaultURL := defaultDaemonURL
	if env := os.Getenv("FOCUSERD_URL"); env != "" {
		defaultURL = env
	}

	rootCmd.PersistentFlags().StringVar(&opts.url, "url", defaultURL, "Base URL of the focuserd API (env FOCUSERD_URL)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "Request timeout; homing can take a while")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print raw JSON responses")

	rootCmd.AddCommand(newStatusCommand(opts))
	rootCmd.AddCommand(newHistoryCommand(opts))
	for _, cmd := range newControlCommands(opts) {
		rootCmd.AddCommand(cmd)
	}

	return rootCmd
}
