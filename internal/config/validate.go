package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateBackbone(); err != nil {
		return err
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.VideoDir) == "" {
		return errors.New("paths.video_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ClassFile) == "" {
		return errors.New("paths.class_file must be set")
	}
	if c.Paths.FrameDir == c.Paths.FeatureDir {
		return errors.New("paths.frame_dir and paths.feature_dir must differ")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.FramesPerVideo < 1 || c.Pipeline.FramesPerVideo > 1000 {
		return fmt.Errorf("pipeline.frames_per_video must be between 1 and 1000, got %d", c.Pipeline.FramesPerVideo)
	}
	if c.Pipeline.MaxClasses < 0 {
		return errors.New("pipeline.max_classes must not be negative")
	}
	return nil
}

func (c *Config) validateBackbone() error {
	if strings.TrimSpace(c.Backbone.Model) == "" {
		return errors.New("backbone.model must be set")
	}
	if c.Backbone.FeatureLength < 1 {
		return fmt.Errorf("backbone.feature_length must be positive, got %d", c.Backbone.FeatureLength)
	}
	if strings.TrimSpace(c.Tools.BackboneBinary) == "" {
		return errors.New("tools.backbone_binary must be set")
	}
	return nil
}

func (c *Config) validateTraining() error {
	if strings.TrimSpace(c.Tools.TrainerBinary) == "" {
		return errors.New("tools.trainer_binary must be set")
	}
	if c.Training.TrainSplit == c.Training.ValSplit {
		return errors.New("training.train_split and training.val_split must differ")
	}
	if c.Training.LearningRate >= 1 {
		return fmt.Errorf("training.learning_rate %g is implausibly large", c.Training.LearningRate)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval < 1 {
		return errors.New("workflow.queue_poll_interval must be at least 1 second")
	}
	if c.Workflow.ErrorRetryInterval < 1 {
		return errors.New("workflow.error_retry_interval must be at least 1 second")
	}
	if c.Workflow.HeartbeatInterval < 1 {
		return errors.New("workflow.heartbeat_interval must be at least 1 second")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
