package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for pipeline artifacts.
type Paths struct {
	VideoDir   string `toml:"video_dir"`
	FrameDir   string `toml:"frame_dir"`
	FeatureDir string `toml:"feature_dir"`
	ModelDir   string `toml:"model_dir"`
	LogDir     string `toml:"log_dir"`
	ClassFile  string `toml:"class_file"`
}

// Pipeline contains frame sampling and dataset parameters.
type Pipeline struct {
	FramesPerVideo  int      `toml:"frames_per_video"`
	FrameHeight     int      `toml:"frame_height"`
	FrameWidth      int      `toml:"frame_width"`
	MaxClasses      int      `toml:"max_classes"`
	VideoExtensions []string `toml:"video_extensions"`
}

// Tools contains external binary names and timeouts.
type Tools struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	MediainfoBinary string `toml:"mediainfo_binary"`
	BackboneBinary  string `toml:"backbone_binary"`
	TrainerBinary   string `toml:"trainer_binary"`
	ExtractTimeout  int    `toml:"extract_timeout"`
	FeatureTimeout  int    `toml:"feature_timeout"`
	TrainTimeout    int    `toml:"train_timeout"`
}

// Backbone contains configuration for the pretrained image backbone.
type Backbone struct {
	Model         string `toml:"model"`
	FeatureLength int    `toml:"feature_length"`
}

// Training contains sequence-model training parameters.
type Training struct {
	BatchSize    int     `toml:"batch_size"`
	Epochs       int     `toml:"epochs"`
	LearningRate float64 `toml:"learning_rate"`
	TrainSplit   string  `toml:"train_split"`
	ValSplit     string  `toml:"val_split"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Scan           bool   `toml:"scan"`
	Queue          bool   `toml:"queue"`
	Training       bool   `toml:"training"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains configuration for run-loop timing and intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for gestrec.
//
// Configuration sections by subsystem:
//   - Paths: dataset, artifact, and log directories plus the class catalog
//   - Pipeline: frame sampling counts and dataset layout parameters
//   - Tools: external binaries (ffmpeg, mediainfo, backbone, trainer)
//   - Backbone: pretrained image backbone model and output width
//   - Training: sequence-model hyperparameters and split names
//   - Notifications: ntfy push notification settings
//   - Workflow: run-loop polling intervals and heartbeat timing
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Tools         Tools         `toml:"tools"`
	Backbone      Backbone      `toml:"backbone"`
	Training      Training      `toml:"training"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/gestrec/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("gestrec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
// VideoDir is the caller's dataset and is never created here.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.FrameDir, c.Paths.FeatureDir, c.Paths.ModelDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
