package main

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/focuserd/internal/api"
)

func newControlCommands(opts *options) []*cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Connect the daemon to the controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := opts.client().command(cmd.Context(), "/initialize", nil)
			return printResult(cmd, opts, resp, err)
		},
	}

	homeCmd := &cobra.Command{
		Use:   "home",
		Short: "Home every channel and restore saved positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := opts.client().command(cmd.Context(), "/home", nil)
			return printResult(cmd, opts, resp, err)
		},
	}

	var offset bool
	setCmd := &cobra.Command{
		Use:   "set <channel> <position>",
		Short: "Move a channel to a position",
		Example: "  focuser set tube 12.5\n" +
			"  focuser set camera --offset -- -0.25",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid position %q: %w", args[1], err)
			}
			body := map[string]any{"position": position}
			if offset {
				body["offset"] = true
			}
			path := "/channels/" + url.PathEscape(args[0]) + "/position"
			resp, err := opts.client().command(cmd.Context(), path, body)
			return printResult(cmd, opts, resp, err)
		},
	}
	setCmd.Flags().BoolVar(&offset, "offset", false, "Treat position as relative to the current set position")

	stopCmd := &cobra.Command{
		Use:   "stop [channel]",
		Short: "Stop one channel, or all channels",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if len(args) == 1 {
				body = map[string]string{"channel": args[0]}
			}
			resp, err := opts.client().command(cmd.Context(), "/stop", body)
			return printResult(cmd, opts, resp, err)
		},
	}

	shutdownCmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Stop all motion and disconnect from the controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := opts.client().command(cmd.Context(), "/shutdown", nil)
			return printResult(cmd, opts, resp, err)
		},
	}

	lightCmd := &cobra.Command{
		Use:       "light on|off",
		Short:     "Switch the light output",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch strings.ToLower(args[0]) {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("light state must be on or off, got %q", args[0])
			}
			resp, err := opts.client().command(cmd.Context(), "/light", map[string]bool{"on": on})
			return printResult(cmd, opts, resp, err)
		},
	}

	return []*cobra.Command{initCmd, homeCmd, setCmd, stopCmd, shutdownCmd, lightCmd}
}

// printResult writes the command outcome. Failures are returned so the
// process exits non-zero; main prints their label.
func printResult(cmd *cobra.Command, opts *options, resp api.CommandResponse, err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return err
	}
	if opts.json {
		if encErr := writeJSON(cmd, resp); encErr != nil {
			return encErr
		}
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Label)
	return nil
}
