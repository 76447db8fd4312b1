package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/focuserd/internal/focuser"
	"github.com/nerrad567/focuserd/internal/history"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show channel positions and temperatures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := opts.client()
			status, err := client.status(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd, status)
			}

			labels, err := client.temperatureLabels(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatStatus(status, labels))
			return nil
		},
	}
}

func formatStatus(status *focuser.Status, labels map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Focuser: %s\n", status.StatusLabel)
	if status.Status != focuser.StatusConnected {
		return b.String()
	}

	if len(status.Channels) > 0 {
		rows := make([][]string, 0, len(status.Channels))
		for _, key := range slices.Sorted(maps.Keys(status.Channels)) {
			ch := status.Channels[key]
			setPosition := "-"
			if ch.SetPosition != nil {
				setPosition = formatFloat(*ch.SetPosition)
			}
			rows = append(rows, []string{key, ch.Label, ch.StatusLabel, formatFloat(ch.Position), setPosition})
		}
		b.WriteString(renderTable(
			[]string{"Channel", "Label", "Status", "Position", "Set Position"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		))
		b.WriteString("\n")
	}

	if len(status.Temperature) > 0 {
		rows := make([][]string, 0, len(status.Temperature))
		for _, key := range slices.Sorted(maps.Keys(status.Temperature)) {
			reading := "n/a"
			if v := status.Temperature[key]; v != nil {
				reading = fmt.Sprintf("%.1f °C", *v)
			}
			rows = append(rows, []string{key, labels[key], reading})
		}
		b.WriteString(renderTable(
			[]string{"Probe", "Label", "Reading"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight},
		))
		b.WriteString("\n")
	}

	if status.FanActive != nil {
		fmt.Fprintf(&b, "Fan: %s\n", onOff(*status.FanActive))
	}
	if status.LightOn != nil {
		fmt.Fprintf(&b, "Light: %s\n", onOff(*status.LightOn))
	}
	return b.String()
}

func newHistoryCommand(opts *options) *cobra.Command {
	var (
		limit   int
		offset  int
		command string
		channel string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent commands, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				query.Set("offset", strconv.Itoa(offset))
			}
			if command != "" {
				query.Set("command", command)
			}
			if channel != "" {
				query.Set("channel", channel)
			}

			var page history.ListResult
			if err := opts.client().get(cmd.Context(), "/history", query, &page); err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd, page)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatHistory(&page))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show (max 200)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	cmd.Flags().StringVar(&command, "command", "", "Only show this command (e.g. home, set_channel)")
	cmd.Flags().StringVar(&channel, "channel", "", "Only show commands for this channel")
	return cmd
}

func formatHistory(page *history.ListResult) string {
	if len(page.Entries) == 0 {
		return "No commands recorded\n"
	}

	rows := make([][]string, 0, len(page.Entries))
	for _, e := range page.Entries {
		position := ""
		if e.Position != nil {
			position = formatFloat(*e.Position)
			if e.Offset {
				position = "+" + position
			}
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format(historyTimeLayout),
			e.Command,
			e.Channel,
			position,
			e.Caller,
			e.ResultLabel,
			strconv.FormatInt(e.DurationMS, 10) + "ms",
		})
	}

	var b strings.Builder
	b.WriteString(renderTable(
		[]string{"Time", "Command", "Channel", "Position", "Caller", "Result", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	))
	fmt.Fprintf(&b, "\nShowing %d-%d of %d\n", page.Offset+1, page.Offset+len(page.Entries), page.Total)
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
