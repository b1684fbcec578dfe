package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"quenc/internal/chunks"
	"quenc/internal/config"
	"quenc/internal/encode"
	"quenc/internal/ipc"
	"quenc/internal/logging"
	"quenc/internal/media/ffprobe"
	"quenc/internal/preflight"
	"quenc/internal/queue"
	"quenc/internal/scheduler"
	"quenc/internal/vmaf"
)

func run(args []string) error {
	flags := flag.NewFlagSet("quencd", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to config file")
	logLevel := flags.String("log-level", "", "override configured log level")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, resolvedConfig, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another quencd instance holds %s", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "quencd.log")
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Info("quencd starting",
		logging.String("config", resolvedConfig),
		logging.String("encoder", cfg.Encoding.Encoder),
		logging.String("mode", cfg.Encoding.Mode))

	for _, result := range preflight.RunAll(cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pidPath := filepath.Join(cfg.Paths.LogDir, "quencd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if swept, sweepErr := store.MarkInterrupted(ctx, "daemon restarted"); sweepErr != nil {
		logger.Warn("sweep interrupted tasks", logging.Error(sweepErr))
	} else if swept > 0 {
		logger.Info("failed tasks left running by a previous daemon",
			logging.Int64("count", swept))
	}

	env := scheduler.Env{
		Runner:       encode.NewFFmpeg(),
		Prober:       vmaf.NewFFmpeg(),
		Inspector:    ffprobe.NewCLI(),
		Assembler:    chunks.NewFFmpegAssembler(),
		StagingDir:   cfg.Paths.StagingDir,
		ChunkWorkers: cfg.Scheduler.ChunkWorkers,
		Logger:       logger,
	}
	sched := scheduler.New(store,
		map[queue.Mode]scheduler.Dispatcher{
			queue.ModeDefault: scheduler.NewSearchDispatcher(env),
			queue.ModeChunked: scheduler.NewChunkDispatcher(env),
		},
		scheduler.Options{
			MaxConcurrent: cfg.Scheduler.MaxConcurrentTasks,
			PollInterval:  time.Duration(cfg.Scheduler.QueuePollInterval) * time.Second,
		},
		logger)

	factory := func(input string) *queue.Task {
		return queue.NewTaskFromConfig(cfg, input, "")
	}
	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), sched, factory, logger)
	if err != nil {
		return fmt.Errorf("start ipc server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()

	logger.Info("quencd ready", logging.String("socket", cfg.SocketPath()))
	<-ctx.Done()
	logger.Info("quencd shutting down")
	<-schedDone
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
