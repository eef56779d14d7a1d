// Package training assembles feature sets from the queue and drives the
// gestrec-trainer runner for training, evaluation, and prediction.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gestrec/internal/config"
	"gestrec/internal/dataset"
	"gestrec/internal/fileutil"
	"gestrec/internal/logging"
	"gestrec/internal/queue"
	"gestrec/internal/services"
	"gestrec/internal/services/trainer"
)

// TrainSummary reports the outcome of one training run.
type TrainSummary struct {
	RunID           string
	RunDir          string
	ManifestPath    string
	MetricsPath     string
	BestCheckpoint  string
	LastCheckpoint  string
	// ExportedCheckpoint is the stable copy of the best checkpoint under
	// the model directory, empty when the export was skipped.
	ExportedCheckpoint string
	BestValAccuracy    float64
	EpochsRun          int
	TrainSamples       int
	ValSamples         int
	Classes            int
}

// EvaluateSummary reports aggregate metrics for one evaluation pass.
type EvaluateSummary struct {
	ModelPath string
	Split     string
	Loss      float64
	Accuracy  float64
	Samples   int
}

// PredictionRow is one classified clip joined back to its ground truth.
type PredictionRow struct {
	SourcePath string
	Title      string
	Actual     string
	Predicted  string
	Confidence float64
	Correct    bool
}

// PredictSummary reports per-clip predictions plus aggregate accuracy.
type PredictSummary struct {
	ModelPath string
	Split     string
	Rows      []PredictionRow
	Correct   int
	Accuracy  float64
}

// Service owns dataset assembly and trainer runner invocations.
type Service struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	runner trainer.Runner
}

// NewService builds the training service with a CLI-backed runner.
func NewService(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Service {
	var runner trainer.Runner
	if cfg != nil {
		runner = trainer.NewCLI(
			trainer.WithBinary(cfg.Tools.TrainerBinary),
			trainer.WithTimeout(time.Duration(cfg.Tools.TrainTimeout)*time.Second),
		)
	}
	return NewServiceWithDependencies(cfg, store, logger, runner)
}

// NewServiceWithDependencies allows injecting the trainer runner.
func NewServiceWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, runner trainer.Runner) *Service {
	serviceLogger := logger
	if serviceLogger != nil {
		serviceLogger = serviceLogger.With(logging.String("component", "training"))
	}
	return &Service{store: store, cfg: cfg, logger: serviceLogger, runner: runner}
}

// Train assembles the train and validation splits, writes the run manifest,
// and drives a full training run. Per-epoch metrics land in a CSV under the
// log directory named after the run.
func (s *Service) Train(ctx context.Context) (*TrainSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	catalog, err := s.loadCatalog()
	if err != nil {
		return nil, err
	}

	trainSet, err := s.assembleSplit(ctx, s.cfg.Training.TrainSplit, catalog)
	if err != nil {
		return nil, err
	}
	valSet, err := s.assembleSplit(ctx, s.cfg.Training.ValSplit, catalog)
	if err != nil {
		return nil, err
	}

	runID := fmt.Sprintf("%s-lstm-%din%d",
		time.Now().Format("20060102-1504"),
		len(trainSet.Samples)+len(valSet.Samples), catalog.Len())
	runDir := filepath.Join(s.cfg.Paths.ModelDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, services.Wrap(
			services.ErrTransient, "training", "train",
			"Unable to create the training run directory", err)
	}

	manifestPath := filepath.Join(runDir, "manifest.json")
	manifest := dataset.BuildTrainManifest(trainSet, valSet)
	if err := dataset.WriteManifest(manifestPath, manifest); err != nil {
		return nil, services.Wrap(
			services.ErrTransient, "training", "train",
			"Unable to write the training manifest", err)
	}

	if s.logger != nil {
		s.logger.Info("starting training run",
			logging.String("run_id", runID),
			logging.Int("train_samples", len(trainSet.Samples)),
			logging.Int("val_samples", len(valSet.Samples)),
			logging.Int("classes", catalog.Len()))
	}

	metrics := newMetricsRecorder()
	result, err := s.runner.Train(ctx, trainer.TrainRequest{
		ManifestPath: manifestPath,
		OutputDir:    runDir,
		Epochs:       s.cfg.Training.Epochs,
		BatchSize:    s.cfg.Training.BatchSize,
		LearningRate: s.cfg.Training.LearningRate,
	}, func(epoch trainer.EpochMetrics) {
		metrics.record(epoch)
		if s.logger != nil {
			s.logger.Info("training epoch",
				logging.Int("epoch", epoch.Epoch),
				logging.Float64("loss", epoch.Loss),
				logging.Float64("accuracy", epoch.Accuracy),
				logging.Float64("val_accuracy", epoch.ValAccuracy))
		}
	})
	if err != nil {
		return nil, services.Wrap(
			services.ErrExternalTool, "training", "train",
			"Sequence model training failed; check the gestrec-trainer installation and logs", err)
	}

	metricsPath := filepath.Join(s.cfg.Paths.LogDir, runID+"-acc.csv")
	if err := metrics.writeCSV(metricsPath); err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to write metrics CSV", logging.Error(err))
		}
		metricsPath = ""
	}

	summary := &TrainSummary{
		RunID:           runID,
		RunDir:          runDir,
		ManifestPath:    manifestPath,
		MetricsPath:     metricsPath,
		BestCheckpoint:  result.BestCheckpoint,
		LastCheckpoint:  result.LastCheckpoint,
		BestValAccuracy: result.BestValAccuracy,
		EpochsRun:       len(result.Epochs),
		TrainSamples:    len(trainSet.Samples),
		ValSamples:      len(valSet.Samples),
		Classes:         catalog.Len(),
	}
	s.exportBestCheckpoint(summary)
	if s.logger != nil {
		s.logger.Info("training run complete",
			logging.String("run_id", runID),
			logging.String("best_checkpoint", summary.BestCheckpoint),
			logging.Float64("best_val_accuracy", summary.BestValAccuracy))
	}
	return summary, nil
}

// exportBestCheckpoint copies the best checkpoint of a run to a stable
// location under the model directory so later evaluate and predict calls
// do not need the run ID. The copy is verified and failures only warn;
// the run itself already succeeded.
func (s *Service) exportBestCheckpoint(summary *TrainSummary) {
	if summary == nil || summary.BestCheckpoint == "" {
		return
	}
	if _, err := os.Stat(summary.BestCheckpoint); err != nil {
		return
	}
	target := filepath.Join(s.cfg.Paths.ModelDir, "best-latest"+filepath.Ext(summary.BestCheckpoint))
	if err := fileutil.CopyFileVerified(summary.BestCheckpoint, target); err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to export best checkpoint",
				logging.String("target", target), logging.Error(err))
		}
		return
	}
	summary.ExportedCheckpoint = target
}

// Evaluate runs the trained model against one split and returns aggregate
// loss and accuracy.
func (s *Service) Evaluate(ctx context.Context, modelPath, split string) (*EvaluateSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	modelPath, err := s.checkModel(modelPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(split) == "" {
		split = s.cfg.Training.ValSplit
	}

	catalog, err := s.loadCatalog()
	if err != nil {
		return nil, err
	}
	set, err := s.assembleSplit(ctx, split, catalog)
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(s.cfg.Paths.LogDir, fmt.Sprintf("%s-evaluate-manifest.json", split))
	if err := dataset.WriteManifest(manifestPath, dataset.BuildManifest(set)); err != nil {
		return nil, services.Wrap(
			services.ErrTransient, "training", "evaluate",
			"Unable to write the evaluation manifest", err)
	}

	result, err := s.runner.Evaluate(ctx, trainer.EvaluateRequest{
		ManifestPath: manifestPath,
		ModelPath:    modelPath,
		BatchSize:    s.cfg.Training.BatchSize,
	})
	if err != nil {
		return nil, services.Wrap(
			services.ErrExternalTool, "training", "evaluate",
			"Model evaluation failed; check the gestrec-trainer installation", err)
	}

	summary := &EvaluateSummary{
		ModelPath: modelPath,
		Split:     split,
		Loss:      result.Loss,
		Accuracy:  result.Accuracy,
		Samples:   result.Samples,
	}
	if s.logger != nil {
		s.logger.Info("evaluation complete",
			logging.String("split", split),
			logging.Float64("loss", summary.Loss),
			logging.Float64("accuracy", summary.Accuracy),
			logging.Int("samples", summary.Samples))
	}
	return summary, nil
}

// Predict classifies every clip in one split and joins predictions back to
// the directory-derived ground-truth labels.
func (s *Service) Predict(ctx context.Context, modelPath, split string) (*PredictSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	modelPath, err := s.checkModel(modelPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(split) == "" {
		split = s.cfg.Training.ValSplit
	}

	catalog, err := s.loadCatalog()
	if err != nil {
		return nil, err
	}
	set, err := s.assembleSplit(ctx, split, catalog)
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(s.cfg.Paths.LogDir, fmt.Sprintf("%s-predict-manifest.json", split))
	if err := dataset.WriteManifest(manifestPath, dataset.BuildManifest(set)); err != nil {
		return nil, services.Wrap(
			services.ErrTransient, "training", "predict",
			"Unable to write the prediction manifest", err)
	}

	predictions, err := s.runner.Predict(ctx, trainer.PredictRequest{
		ManifestPath: manifestPath,
		ModelPath:    modelPath,
	})
	if err != nil {
		return nil, services.Wrap(
			services.ErrExternalTool, "training", "predict",
			"Model prediction failed; check the gestrec-trainer installation", err)
	}

	summary := &PredictSummary{ModelPath: modelPath, Split: split}
	for _, prediction := range predictions {
		if prediction.Index < 0 || prediction.Index >= len(set.Samples) {
			return nil, services.Wrap(
				services.ErrExternalTool, "training", "predict",
				fmt.Sprintf("Trainer reported prediction for unknown sample index %d", prediction.Index), nil)
		}
		sample := set.Samples[prediction.Index]
		row := PredictionRow{
			SourcePath: sample.SourcePath,
			Title:      sample.Title,
			Actual:     sample.Label,
			Predicted:  prediction.Label,
			Confidence: prediction.Confidence,
			Correct:    sample.Label == prediction.Label,
		}
		if row.Correct {
			summary.Correct++
		}
		summary.Rows = append(summary.Rows, row)
	}
	if len(summary.Rows) > 0 {
		summary.Accuracy = float64(summary.Correct) / float64(len(summary.Rows))
	}
	if s.logger != nil {
		s.logger.Info("prediction complete",
			logging.String("split", split),
			logging.Int("samples", len(summary.Rows)),
			logging.Float64("accuracy", summary.Accuracy))
	}
	return summary, nil
}

func (s *Service) ready() error {
	if s.cfg == nil {
		return services.Wrap(
			services.ErrConfiguration, "training", "prepare",
			"Configuration unavailable for training operations", nil)
	}
	if s.store == nil {
		return services.Wrap(
			services.ErrConfiguration, "training", "prepare",
			"Queue store unavailable for training operations", nil)
	}
	if s.runner == nil {
		return services.Wrap(
			services.ErrConfiguration, "training", "prepare",
			"Trainer runner is not configured; check trainer_binary in the config file", nil)
	}
	return nil
}

func (s *Service) checkModel(modelPath string) (string, error) {
	modelPath = strings.TrimSpace(modelPath)
	if modelPath == "" {
		return "", services.Wrap(
			services.ErrValidation, "training", "load model",
			"A trained model checkpoint path is required", nil)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return "", services.Wrap(
			services.ErrValidation, "training", "load model",
			fmt.Sprintf("Model checkpoint %s is not readable", modelPath), err)
	}
	return modelPath, nil
}

func (s *Service) loadCatalog() (*dataset.Catalog, error) {
	catalog, err := dataset.LoadCatalog(s.cfg.Paths.ClassFile, s.cfg.Pipeline.MaxClasses)
	if err != nil {
		return nil, services.Wrap(
			services.ErrConfiguration, "training", "load classes",
			fmt.Sprintf("Unable to load the class catalog from %s", s.cfg.Paths.ClassFile), err)
	}
	return catalog, nil
}

// assembleSplit collects completed clips with cached features for one split
// and validates them against the catalog and the configured array shape.
func (s *Service) assembleSplit(ctx context.Context, split string, catalog *dataset.Catalog) (*dataset.FeatureSet, error) {
	items, err := s.store.ItemsBySplit(ctx, split)
	if err != nil {
		return nil, services.Wrap(
			services.ErrTransient, "training", "assemble dataset",
			fmt.Sprintf("Unable to list queue items for split %q", split), err)
	}

	samples := make([]dataset.Sample, 0, len(items))
	truncated := 0
	for _, item := range items {
		if item.Status != queue.StatusCompleted || strings.TrimSpace(item.FeatureFile) == "" {
			continue
		}
		if catalog.Truncated(item.Label) {
			truncated++
			continue
		}
		samples = append(samples, dataset.Sample{
			SourcePath:  item.SourcePath,
			Title:       item.Title,
			Label:       item.Label,
			FeaturePath: item.FeatureFile,
		})
	}
	if truncated > 0 && s.logger != nil {
		s.logger.Info("excluding clips from truncated classes",
			logging.String("split", split),
			logging.Int("count", truncated))
	}
	if len(samples) == 0 {
		return nil, services.Wrap(
			services.ErrValidation, "training", "assemble dataset",
			fmt.Sprintf("Split %q has no completed clips with cached features; run the pipeline first", split), nil)
	}

	set, err := dataset.Assemble(samples, catalog, s.cfg.Pipeline.FramesPerVideo, s.cfg.Backbone.FeatureLength)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "training", "assemble dataset",
			fmt.Sprintf("Feature set for split %q failed validation", split), err)
	}
	return set, nil
}
