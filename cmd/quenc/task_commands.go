package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"quenc/internal/ipc"
	"quenc/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		output      string
		encoder     string
		mode        string
		target      float64
		maxCRF      int
		preset      string
		params      string
		pixelFormat string
		pool        string
		vmafThreads int
		subsample   int
		sceneSplit  float64
		sampleEvery string
	)

	cmd := &cobra.Command{
		Use:   "add <input>",
		Short: "Queue a file for encoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			input, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}

			task := queue.NewTaskFromConfig(cfg, input, output)
			flags := cmd.Flags()
			if flags.Changed("encoder") {
				task.Encoder = encoder
				task.Preset = cfg.PresetFor(encoder)
				task.ExtraParams = cfg.ParamsFor(encoder)
			}
			if flags.Changed("mode") {
				task.Mode = queue.Mode(mode)
			}
			if flags.Changed("target") {
				task.TargetScore = target
			}
			if flags.Changed("max-crf") {
				task.MaxCRF = maxCRF
			}
			if flags.Changed("preset") {
				task.Preset = preset
			}
			if flags.Changed("params") {
				task.ExtraParams = params
			}
			if flags.Changed("pix-fmt") {
				task.PixelFormat = pixelFormat
			}
			if flags.Changed("pool") {
				task.Pool = pool
			}
			if flags.Changed("vmaf-threads") {
				task.VMAFThreads = vmafThreads
			}
			if flags.Changed("vmaf-subsample") {
				task.VMAFSubsample = subsample
			}
			if flags.Changed("scene-split-min") {
				task.SceneSplitMin = sceneSplit
			}
			if flags.Changed("sample-every") {
				task.SampleEvery = sampleEvery
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(*task)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as task %s\n", filepath.Base(input), resp.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (defaults to the output directory)")
	cmd.Flags().StringVar(&encoder, "encoder", "", "Video encoder")
	cmd.Flags().StringVar(&mode, "mode", "", "Encode mode (default or chunked)")
	cmd.Flags().Float64Var(&target, "target", 0, "Target VMAF score")
	cmd.Flags().IntVar(&maxCRF, "max-crf", 0, "Upper bound of the CRF search range")
	cmd.Flags().StringVar(&preset, "preset", "", "Encoder preset")
	cmd.Flags().StringVar(&params, "params", "", "Extra encoder parameters")
	cmd.Flags().StringVar(&pixelFormat, "pix-fmt", "", "Output pixel format")
	cmd.Flags().StringVar(&pool, "pool", "", "VMAF pooling method (mean, harmonic_mean, min)")
	cmd.Flags().IntVar(&vmafThreads, "vmaf-threads", 0, "Threads for VMAF computation")
	cmd.Flags().IntVar(&subsample, "vmaf-subsample", 0, "Score every Nth frame")
	cmd.Flags().Float64Var(&sceneSplit, "scene-split-min", 0, "Minimum chunk length in seconds")
	cmd.Flags().StringVar(&sampleEvery, "sample-every", "", "Sampling interval for whole-file searches")

	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show queued and finished tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List()
				if err != nil {
					return err
				}
				if len(resp.Tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}
				rows := make([][]string, 0, len(resp.Tasks))
				for _, task := range resp.Tasks {
					rows = append(rows, []string{
						shortID(task.ID),
						filepath.Base(task.Input),
						task.Encoder,
						task.Mode,
						task.Status,
						formatCRF(task),
						formatScore(task),
					})
				}
				headers := headerRow("id", "file", "encoder", "mode", "status", "crf", "score")
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress [task-id]",
		Short: "Show live progress for running tasks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				var snapshots []queue.Snapshot
				if len(args) == 1 {
					resp, err := client.Progress(args[0])
					if err != nil {
						return err
					}
					if !resp.Found {
						return fmt.Errorf("task %s is not running", args[0])
					}
					snapshots = append(snapshots, resp.Snapshot)
				} else {
					resp, err := client.AllProgress()
					if err != nil {
						return err
					}
					snapshots = resp.Snapshots
				}
				if len(snapshots) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks are running.")
					return nil
				}
				rows := make([][]string, 0, len(snapshots))
				for _, snap := range snapshots {
					rows = append(rows, []string{
						shortID(snap.TaskID),
						snap.FileName,
						fmt.Sprintf("%.1f%%", snap.Percent),
						formatFrames(snap),
						fmt.Sprintf("%.1f", snap.FPS),
						formatBytes(snap.Bytes),
					})
				}
				headers := headerRow("id", "file", "percent", "frames", "fps", "size")
				aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Stop a queued or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(args[0])
				if err != nil {
					return err
				}
				if !resp.Cancelled {
					return fmt.Errorf("task %s was not cancelled", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled task %s\n", args[0])
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <task-id>",
		Short: "Delete a task that is not running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Remove(args[0])
				if err != nil {
					return err
				}
				if !resp.Removed {
					return fmt.Errorf("task %s was not removed", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed task %s\n", args[0])
				return nil
			})
		},
	}
}

func formatCRF(task ipc.TaskSummary) string {
	if task.Status != string(queue.StatusCompleted) {
		return "-"
	}
	return strconv.Itoa(task.ResultCRF)
}

func formatScore(task ipc.TaskSummary) string {
	if task.Status != string(queue.StatusCompleted) {
		return "-"
	}
	score := fmt.Sprintf("%.2f", task.ResultScore)
	if !task.TargetMet {
		score += " (below target)"
	}
	return score
}

func formatFrames(snap queue.Snapshot) string {
	if snap.TotalFrames > 0 {
		return fmt.Sprintf("%d/%d", snap.Frame, snap.TotalFrames)
	}
	return strconv.FormatInt(snap.Frame, 10)
}
