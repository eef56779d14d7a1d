// Package features turns extracted frame sequences into cached feature
// arrays by driving the gestrec-backbone runner.
package features

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gestrec/internal/config"
	"gestrec/internal/logging"
	"gestrec/internal/npy"
	"gestrec/internal/queue"
	"gestrec/internal/services"
	"gestrec/internal/services/backbone"
	"gestrec/internal/stage"
	"gestrec/internal/textutil"
)

// Extractor runs the backbone feature extraction stage for one clip.
type Extractor struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client backbone.Client
}

// NewExtractor builds the stage with a CLI-backed backbone client.
func NewExtractor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Extractor {
	var client backbone.Client
	if cfg != nil {
		client = backbone.NewCLI(
			backbone.WithBinary(cfg.Tools.BackboneBinary),
			backbone.WithTimeout(time.Duration(cfg.Tools.FeatureTimeout)*time.Second),
		)
	}
	return NewExtractorWithDependencies(cfg, store, logger, client)
}

// NewExtractorWithDependencies allows injecting the backbone client.
func NewExtractorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client backbone.Client) *Extractor {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "feature-extractor"))
	}
	return &Extractor{store: store, cfg: cfg, logger: stageLogger, client: client}
}

// Prepare resets progress before feature extraction starts.
func (e *Extractor) Prepare(ctx context.Context, item *queue.Item) error {
	item.ErrorMessage = ""
	item.SetProgress("Extracting features", "Checking feature cache", 0)
	if e.logger != nil {
		e.logger.Info("preparing feature extraction",
			logging.Int64("item_id", item.ID),
			logging.String("title", item.Title))
	}
	return nil
}

// Execute produces the cached feature array for the clip, reusing an
// existing file when its shape already matches the pipeline settings.
func (e *Extractor) Execute(ctx context.Context, item *queue.Item) error {
	if e.cfg == nil {
		return services.Wrap(
			services.ErrConfiguration, "features", "extract features",
			"Configuration unavailable for feature extraction", nil)
	}
	if e.client == nil {
		return services.Wrap(
			services.ErrConfiguration, "features", "extract features",
			"Backbone runner is not configured; check backbone_binary in the config file", nil)
	}

	featureLength := e.cfg.Backbone.FeatureLength
	featurePath := e.featurePath(item)

	if rows, cols, err := npy.ReadShape(featurePath); err == nil {
		if rows == item.FrameCount && cols == featureLength {
			item.FeatureFile = featurePath
			item.SetProgressComplete("Extracting features", "Reused cached feature file")
			if e.logger != nil {
				e.logger.Info("feature cache hit",
					logging.Int64("item_id", item.ID),
					logging.String("feature_file", featurePath))
			}
			return nil
		}
		if e.logger != nil {
			e.logger.Warn("feature cache shape mismatch, recomputing",
				logging.Int64("item_id", item.ID),
				logging.Int("cached_rows", rows),
				logging.Int("cached_cols", cols))
		}
	}

	if strings.TrimSpace(item.FrameDir) == "" || item.FrameCount <= 0 {
		return services.Wrap(
			services.ErrValidation, "features", "extract features",
			fmt.Sprintf("Clip %s has no extracted frames; run frame extraction first", item.Title), nil)
	}
	if _, err := os.Stat(item.FrameDir); err != nil {
		return services.Wrap(
			services.ErrValidation, "features", "extract features",
			fmt.Sprintf("Frame directory %s is missing; re-run frame extraction", item.FrameDir), err)
	}

	if err := os.MkdirAll(filepath.Dir(featurePath), 0o755); err != nil {
		return services.Wrap(
			services.ErrTransient, "features", "extract features",
			"Unable to create feature cache directory", err)
	}

	tempPath := featurePath + ".partial"
	defer os.Remove(tempPath)

	item.SetProgress("Extracting features", "Running backbone model", 5)
	if e.store != nil {
		if err := e.store.UpdateProgress(ctx, item); err != nil && e.logger != nil {
			e.logger.Warn("failed to persist progress", logging.Error(err))
		}
	}

	req := backbone.ExtractRequest{
		FrameDir:      item.FrameDir,
		OutputPath:    tempPath,
		Model:         e.cfg.Backbone.Model,
		FeatureLength: featureLength,
		Width:         e.cfg.Pipeline.FrameWidth,
		Height:        e.cfg.Pipeline.FrameHeight,
	}
	if _, err := e.client.Extract(ctx, req, func(update backbone.ProgressUpdate) {
		e.applyProgress(ctx, item, update)
	}); err != nil {
		return services.Wrap(
			services.ErrExternalTool, "features", "extract features",
			"Backbone feature extraction failed; check the gestrec-backbone installation", err)
	}

	rows, cols, err := npy.ReadShape(tempPath)
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool, "features", "extract features",
			"Backbone runner produced an unreadable feature file", err)
	}
	if rows != item.FrameCount || cols != featureLength {
		return services.Wrap(
			services.ErrExternalTool, "features", "extract features",
			fmt.Sprintf("Expected feature shape %dx%d but backbone produced %dx%d",
				item.FrameCount, featureLength, rows, cols), nil)
	}

	if err := os.Rename(tempPath, featurePath); err != nil {
		return services.Wrap(
			services.ErrTransient, "features", "extract features",
			"Unable to move feature file into the cache", err)
	}

	item.FeatureFile = featurePath
	item.SetProgressComplete("Extracting features", "Feature extraction complete")
	if e.logger != nil {
		e.logger.Info("feature extraction complete",
			logging.Int64("item_id", item.ID),
			logging.String("feature_file", featurePath),
			logging.Int("rows", rows),
			logging.Int("cols", cols))
	}
	return nil
}

// HealthCheck reports whether the backbone runner can operate.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	const name = "feature-extractor"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(e.cfg.Paths.FeatureDir) == "" {
		return stage.Unhealthy(name, "feature directory not configured")
	}
	if e.client == nil {
		return stage.Unhealthy(name, "backbone client not initialized")
	}
	binary := strings.TrimSpace(e.cfg.Tools.BackboneBinary)
	if binary == "" {
		return stage.Unhealthy(name, "backbone binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("backbone binary %q not found", binary))
	}
	return stage.Healthy(name)
}

func (e *Extractor) applyProgress(ctx context.Context, item *queue.Item, update backbone.ProgressUpdate) {
	stageName := update.Stage
	if stageName == "" {
		stageName = "Extracting features"
	}
	item.SetProgress(stageName, update.Message, update.Percent)
	if e.store == nil {
		return
	}
	if err := e.store.UpdateProgress(ctx, item); err != nil && e.logger != nil {
		e.logger.Warn("failed to persist progress", logging.Error(err))
	}
}

func (e *Extractor) featurePath(item *queue.Item) string {
	name := textutil.SanitizeFileName(item.Title)
	if name == "" {
		name = fmt.Sprintf("clip-%d", item.ID)
	}
	return filepath.Join(e.cfg.Paths.FeatureDir, item.Split, item.Label, name+".npy")
}

var _ stage.Handler = (*Extractor)(nil)
