package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quenc/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and bootstrap configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = config.ExpandPath(args[0])
			} else {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolved, err := config.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration file: %s\n\n", resolved)
			fmt.Fprintf(out, "Staging directory:  %s\n", cfg.Paths.StagingDir)
			fmt.Fprintf(out, "Output directory:   %s\n", cfg.Paths.OutputDir)
			fmt.Fprintf(out, "Log directory:      %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Encoder:            %s\n", cfg.Encoding.Encoder)
			fmt.Fprintf(out, "Mode:               %s\n", cfg.Encoding.Mode)
			fmt.Fprintf(out, "Target VMAF:        %.1f\n", cfg.Encoding.TargetVMAF)
			fmt.Fprintf(out, "Max CRF:            %d\n", cfg.Encoding.MaxCRF)
			fmt.Fprintf(out, "VMAF pool:          %s\n", cfg.Encoding.PoolMethod)
			fmt.Fprintf(out, "Concurrent tasks:   %d\n", cfg.Scheduler.MaxConcurrentTasks)
			fmt.Fprintf(out, "Chunk workers:      %d\n", cfg.Scheduler.ChunkWorkers)
			fmt.Fprintf(out, "Socket:             %s\n", cfg.SocketPath())
			return nil
		},
	})

	return cmd
}
