package config

import (
	"errors"
	"fmt"
	"time"
)

var knownEncoders = map[string]struct{}{
	"libx265":    {},
	"av1":        {},
	"libsvtav1":  {},
	"hevc_nvenc": {},
	"hevc_qsv":   {},
	"av1_qsv":    {},
}

var knownPoolMethods = map[string]struct{}{
	"mean":          {},
	"harmonic_mean": {},
	"min":           {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if _, ok := knownEncoders[c.Encoding.Encoder]; !ok {
		return fmt.Errorf("encoding.encoder: unknown encoder %q", c.Encoding.Encoder)
	}
	if c.Encoding.Mode != "default" && c.Encoding.Mode != "chunked" {
		return fmt.Errorf("encoding.mode must be %q or %q", "default", "chunked")
	}
	if c.Encoding.TargetVMAF <= 0 || c.Encoding.TargetVMAF > 100 {
		return errors.New("encoding.target_vmaf must be in (0, 100]")
	}
	if c.Encoding.MaxCRF < 0 {
		return errors.New("encoding.max_crf must not be negative")
	}
	if _, ok := knownPoolMethods[c.Encoding.PoolMethod]; !ok {
		return fmt.Errorf("encoding.vmaf_pool: unknown pool method %q", c.Encoding.PoolMethod)
	}
	if c.Encoding.VMAFThreads < 1 {
		return errors.New("encoding.vmaf_threads must be at least 1")
	}
	if c.Encoding.VMAFSubsample < 1 {
		return errors.New("encoding.vmaf_subsample must be at least 1")
	}
	if c.Encoding.SceneSplitMin <= 0 {
		return errors.New("encoding.scene_split_min must be positive")
	}
	if c.Encoding.SampleEvery != "" {
		if _, err := time.ParseDuration(c.Encoding.SampleEvery); err != nil {
			return fmt.Errorf("encoding.sample_every: %w", err)
		}
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.MaxConcurrentTasks < 1 {
		return errors.New("scheduler.max_concurrent_tasks must be at least 1")
	}
	if c.Scheduler.ChunkWorkers < 1 {
		return errors.New("scheduler.chunk_workers must be at least 1")
	}
	if c.Scheduler.QueuePollInterval < 1 {
		return errors.New("scheduler.queue_poll_interval must be at least 1 second")
	}
	return nil
}
