package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"quenc/internal/ipc"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <directory>",
		Short: "Queue every media file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve scan root: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Scan(root)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d file(s)\n", len(resp.IDs))
				if len(resp.Skipped) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d already-queued file(s):\n", len(resp.Skipped))
					for _, path := range resp.Skipped {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "progress",
		Short: "Show how many files a running scan has found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScanProgress()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Files found so far: %d\n", resp.Total)
				return nil
			})
		},
	})

	return cmd
}
