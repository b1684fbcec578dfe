package config

import "time"

const (
	defaultStagingDir         = "~/.local/share/quenc/staging"
	defaultOutputDir          = "~/.local/share/quenc/output"
	defaultLogDir             = "~/.local/share/quenc/logs"
	defaultEncoder            = "libx265"
	defaultMode               = "default"
	defaultTargetVMAF         = 97
	defaultMaxCRF             = 28
	defaultPoolMethod         = "mean"
	defaultVMAFThreads        = 2
	defaultVMAFSubsample      = 1
	defaultPixelFormat        = "yuv420p10le"
	defaultSceneSplitMin      = 2.0
	defaultSampleEvery        = "3m"
	defaultSampleInterval     = 3 * time.Minute
	defaultMaxConcurrentTasks = 1
	defaultChunkWorkers       = 2
	defaultQueuePollInterval  = 2
	defaultMinFreeDiskGiB     = 5
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

var defaultPresets = map[string]string{
	"libx265":    "slow",
	"av1":        "4",
	"libsvtav1":  "5",
	"hevc_nvenc": "p7",
	"hevc_qsv":   "veryslow",
	"av1_qsv":    "1",
}

var defaultParams = map[string]string{
	"libx265":    "-x265-params limit-sao:bframes=8:psy-rd=1:aq-mode=3",
	"av1":        "",
	"libsvtav1":  "",
	"hevc_nvenc": "-rc-lookahead 100 -b_ref_mode each -tune hq",
	"hevc_qsv":   "-init_hw_device qsv=intel,child_device=0 -b_strategy 1 -look_ahead 1 -async_depth 100",
	"av1_qsv":    "-init_hw_device qsv=intel,child_device=0 -b_strategy 1 -look_ahead 1 -async_depth 100",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Encoding: Encoding{
			Encoder:       defaultEncoder,
			Mode:          defaultMode,
			TargetVMAF:    defaultTargetVMAF,
			MaxCRF:        defaultMaxCRF,
			PoolMethod:    defaultPoolMethod,
			VMAFThreads:   defaultVMAFThreads,
			VMAFSubsample: defaultVMAFSubsample,
			PixelFormat:   defaultPixelFormat,
			SceneSplitMin: defaultSceneSplitMin,
			SampleEvery:   defaultSampleEvery,
		},
		Scheduler: Scheduler{
			MaxConcurrentTasks: defaultMaxConcurrentTasks,
			ChunkWorkers:       defaultChunkWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			MinFreeDiskGiB:     defaultMinFreeDiskGiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
