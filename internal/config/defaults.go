package config

const (
	defaultVideoDir        = "~/datasets/chalearn"
	defaultFrameDir        = "~/.local/share/gestrec/frames"
	defaultFeatureDir      = "~/.local/share/gestrec/features"
	defaultModelDir        = "~/.local/share/gestrec/models"
	defaultLogDir          = "~/.local/share/gestrec/logs"
	defaultClassFile       = "~/datasets/chalearn/class.csv"
	defaultFramesPerVideo  = 20
	defaultFrameHeight     = 224
	defaultFrameWidth      = 224
	defaultFeatureLength   = 1024
	defaultBackboneModel   = "mobilenet"
	defaultBatchSize       = 256
	defaultEpochs          = 100
	defaultLearningRate    = 1e-3
	defaultTrainSplit      = "train"
	defaultValSplit        = "val"
	defaultExtractTimeout  = 300
	defaultFeatureTimeout  = 900
	defaultTrainTimeout    = 86400
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultLogRetention    = 60
	defaultHeartbeatTick   = 15
	defaultHeartbeatExpiry = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			VideoDir:   defaultVideoDir,
			FrameDir:   defaultFrameDir,
			FeatureDir: defaultFeatureDir,
			ModelDir:   defaultModelDir,
			LogDir:     defaultLogDir,
			ClassFile:  defaultClassFile,
		},
		Pipeline: Pipeline{
			FramesPerVideo:  defaultFramesPerVideo,
			FrameHeight:     defaultFrameHeight,
			FrameWidth:      defaultFrameWidth,
			VideoExtensions: []string{".avi", ".mp4", ".mkv"},
		},
		Tools: Tools{
			FFmpegBinary:    "ffmpeg",
			FFprobeBinary:   "ffprobe",
			MediainfoBinary: "mediainfo",
			BackboneBinary:  "gestrec-backbone",
			TrainerBinary:   "gestrec-trainer",
			ExtractTimeout:  defaultExtractTimeout,
			FeatureTimeout:  defaultFeatureTimeout,
			TrainTimeout:    defaultTrainTimeout,
		},
		Backbone: Backbone{
			Model:         defaultBackboneModel,
			FeatureLength: defaultFeatureLength,
		},
		Training: Training{
			BatchSize:    defaultBatchSize,
			Epochs:       defaultEpochs,
			LearningRate: defaultLearningRate,
			TrainSplit:   defaultTrainSplit,
			ValSplit:     defaultValSplit,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Scan:           true,
			Queue:          true,
			Training:       true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultHeartbeatTick,
			HeartbeatTimeout:   defaultHeartbeatExpiry,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
