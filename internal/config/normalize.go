package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizePipeline()
	c.normalizeTraining()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.VideoDir, err = expandPath(c.Paths.VideoDir); err != nil {
		return fmt.Errorf("paths.video_dir: %w", err)
	}
	if c.Paths.FrameDir, err = expandPath(c.Paths.FrameDir); err != nil {
		return fmt.Errorf("paths.frame_dir: %w", err)
	}
	if c.Paths.FeatureDir, err = expandPath(c.Paths.FeatureDir); err != nil {
		return fmt.Errorf("paths.feature_dir: %w", err)
	}
	if c.Paths.ModelDir, err = expandPath(c.Paths.ModelDir); err != nil {
		return fmt.Errorf("paths.model_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ClassFile, err = expandPath(c.Paths.ClassFile); err != nil {
		return fmt.Errorf("paths.class_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpegBinary = strings.TrimSpace(c.Tools.FFmpegBinary)
	c.Tools.FFprobeBinary = strings.TrimSpace(c.Tools.FFprobeBinary)
	c.Tools.MediainfoBinary = strings.TrimSpace(c.Tools.MediainfoBinary)
	c.Tools.BackboneBinary = strings.TrimSpace(c.Tools.BackboneBinary)
	c.Tools.TrainerBinary = strings.TrimSpace(c.Tools.TrainerBinary)
	if c.Tools.FFmpegBinary == "" {
		c.Tools.FFmpegBinary = "ffmpeg"
	}
	if c.Tools.FFprobeBinary == "" {
		c.Tools.FFprobeBinary = "ffprobe"
	}
	if c.Tools.MediainfoBinary == "" {
		c.Tools.MediainfoBinary = "mediainfo"
	}
	if c.Tools.ExtractTimeout <= 0 {
		c.Tools.ExtractTimeout = defaultExtractTimeout
	}
	if c.Tools.FeatureTimeout <= 0 {
		c.Tools.FeatureTimeout = defaultFeatureTimeout
	}
	if c.Tools.TrainTimeout <= 0 {
		c.Tools.TrainTimeout = defaultTrainTimeout
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.FramesPerVideo <= 0 {
		c.Pipeline.FramesPerVideo = defaultFramesPerVideo
	}
	if c.Pipeline.FrameHeight <= 0 {
		c.Pipeline.FrameHeight = defaultFrameHeight
	}
	if c.Pipeline.FrameWidth <= 0 {
		c.Pipeline.FrameWidth = defaultFrameWidth
	}
	if len(c.Pipeline.VideoExtensions) == 0 {
		c.Pipeline.VideoExtensions = []string{".avi", ".mp4", ".mkv"}
	}
	normalized := make([]string, 0, len(c.Pipeline.VideoExtensions))
	for _, ext := range c.Pipeline.VideoExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	c.Pipeline.VideoExtensions = normalized
}

func (c *Config) normalizeTraining() {
	if c.Training.BatchSize <= 0 {
		c.Training.BatchSize = defaultBatchSize
	}
	if c.Training.Epochs <= 0 {
		c.Training.Epochs = defaultEpochs
	}
	if c.Training.LearningRate <= 0 {
		c.Training.LearningRate = defaultLearningRate
	}
	c.Training.TrainSplit = strings.TrimSpace(c.Training.TrainSplit)
	c.Training.ValSplit = strings.TrimSpace(c.Training.ValSplit)
	if c.Training.TrainSplit == "" {
		c.Training.TrainSplit = defaultTrainSplit
	}
	if c.Training.ValSplit == "" {
		c.Training.ValSplit = defaultValSplit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetention
	}
}
