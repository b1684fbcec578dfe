package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"quenc/internal/ipc"
)

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and queue occupancy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				renderStatus(out, resp)
				return nil
			})
			if err != nil {
				fmt.Fprintf(out, "Daemon: %s\n", colorize(out, "not running", ansiRed))
				fmt.Fprintf(out, "  %v\n", err)
				return nil
			}
			return nil
		},
	}
}

func renderStatus(out io.Writer, resp *ipc.StatusResponse) {
	state := "not running"
	color := ansiRed
	if resp.Running {
		state = "running"
		color = ansiGreen
	}
	fmt.Fprintf(out, "Daemon: %s\n", colorize(out, state, color))
	if resp.PID > 0 {
		fmt.Fprintf(out, "  PID:    %d\n", resp.PID)
	}
	if resp.SocketPath != "" {
		fmt.Fprintf(out, "  Socket: %s\n", resp.SocketPath)
	}
	if len(resp.QueueStats) == 0 {
		return
	}
	fmt.Fprintln(out, "Queue:")
	statuses := make([]string, 0, len(resp.QueueStats))
	for status := range resp.QueueStats {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(out, "  %-10s %d\n", status, resp.QueueStats[status])
	}
}

func colorize(out io.Writer, text, color string) string {
	if !shouldColorize(out) {
		return text
	}
	return color + text + ansiReset
}

func shouldColorize(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
