package trainer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// EpochMetrics captures one training epoch reported by the runner.
type EpochMetrics struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
	Checkpoint  string
}

// TrainRequest describes a full training run.
type TrainRequest struct {
	ManifestPath string
	OutputDir    string
	Epochs       int
	BatchSize    int
	LearningRate float64
}

// TrainResult carries the final artifacts of a training run.
type TrainResult struct {
	BestCheckpoint  string
	LastCheckpoint  string
	BestValAccuracy float64
	Epochs          []EpochMetrics
}

// EvaluateRequest describes an evaluation pass over a feature manifest.
type EvaluateRequest struct {
	ManifestPath string
	ModelPath    string
	BatchSize    int
}

// EvaluateResult carries evaluation metrics.
type EvaluateResult struct {
	Loss     float64
	Accuracy float64
	Samples  int
}

// PredictRequest describes a prediction pass over a feature manifest.
type PredictRequest struct {
	ManifestPath string
	ModelPath    string
}

// Prediction is one per-sample classification, ordered by manifest index.
type Prediction struct {
	Index      int
	Label      string
	Confidence float64
}

// Runner defines the sequence-model runner behaviour.
type Runner interface {
	Train(ctx context.Context, req TrainRequest, onEpoch func(EpochMetrics)) (TrainResult, error)
	Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResult, error)
	Predict(ctx context.Context, req PredictRequest) ([]Prediction, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds a single runner invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		c.timeout = timeout
	}
}

// CLI wraps the gestrec-trainer command-line runner.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "gestrec-trainer"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

type runnerEvent struct {
	Type string `json:"type"`

	Epoch       int     `json:"epoch"`
	Loss        float64 `json:"loss"`
	Accuracy    float64 `json:"accuracy"`
	ValLoss     float64 `json:"val_loss"`
	ValAccuracy float64 `json:"val_accuracy"`
	Checkpoint  string  `json:"checkpoint"`

	BestCheckpoint  string  `json:"best_checkpoint"`
	LastCheckpoint  string  `json:"last_checkpoint"`
	BestValAccuracy float64 `json:"best_val_accuracy"`
	Samples         int     `json:"samples"`

	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`

	Error string `json:"error"`
}

// Train launches a training run and streams per-epoch metrics to onEpoch.
func (c *CLI) Train(ctx context.Context, req TrainRequest, onEpoch func(EpochMetrics)) (TrainResult, error) {
	if req.ManifestPath == "" {
		return TrainResult{}, errors.New("manifest path required")
	}
	if req.OutputDir == "" {
		return TrainResult{}, errors.New("output directory required")
	}
	if req.Epochs <= 0 {
		return TrainResult{}, fmt.Errorf("invalid epoch count %d", req.Epochs)
	}

	args := []string{
		"train",
		"--manifest", req.ManifestPath,
		"--output", req.OutputDir,
		"--epochs", strconv.Itoa(req.Epochs),
	}
	if req.BatchSize > 0 {
		args = append(args, "--batch-size", strconv.Itoa(req.BatchSize))
	}
	if req.LearningRate > 0 {
		args = append(args, "--learning-rate", strconv.FormatFloat(req.LearningRate, 'g', -1, 64))
	}
	args = append(args, "--progress-json")

	var result TrainResult
	err := c.run(ctx, args, func(event runnerEvent) {
		switch event.Type {
		case "epoch":
			metrics := EpochMetrics{
				Epoch:       event.Epoch,
				Loss:        event.Loss,
				Accuracy:    event.Accuracy,
				ValLoss:     event.ValLoss,
				ValAccuracy: event.ValAccuracy,
				Checkpoint:  event.Checkpoint,
			}
			result.Epochs = append(result.Epochs, metrics)
			if onEpoch != nil {
				onEpoch(metrics)
			}
		case "result":
			result.BestCheckpoint = event.BestCheckpoint
			result.LastCheckpoint = event.LastCheckpoint
			result.BestValAccuracy = event.BestValAccuracy
		}
	})
	if err != nil {
		return TrainResult{}, fmt.Errorf("trainer train: %w", err)
	}
	if result.BestCheckpoint == "" && result.LastCheckpoint == "" {
		return TrainResult{}, errors.New("trainer produced no checkpoints")
	}
	return result, nil
}

// Evaluate runs the model against a manifest and returns aggregate metrics.
func (c *CLI) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResult, error) {
	if req.ManifestPath == "" {
		return EvaluateResult{}, errors.New("manifest path required")
	}
	if req.ModelPath == "" {
		return EvaluateResult{}, errors.New("model path required")
	}

	args := []string{
		"evaluate",
		"--manifest", req.ManifestPath,
		"--model", req.ModelPath,
	}
	if req.BatchSize > 0 {
		args = append(args, "--batch-size", strconv.Itoa(req.BatchSize))
	}
	args = append(args, "--progress-json")

	var result EvaluateResult
	var seen bool
	err := c.run(ctx, args, func(event runnerEvent) {
		if event.Type != "result" {
			return
		}
		seen = true
		result = EvaluateResult{Loss: event.Loss, Accuracy: event.Accuracy, Samples: event.Samples}
	})
	if err != nil {
		return EvaluateResult{}, fmt.Errorf("trainer evaluate: %w", err)
	}
	if !seen {
		return EvaluateResult{}, errors.New("trainer produced no evaluation result")
	}
	return result, nil
}

// Predict classifies every sample in the manifest. Predictions come back
// ordered by manifest index so callers can line them up with their clips.
func (c *CLI) Predict(ctx context.Context, req PredictRequest) ([]Prediction, error) {
	if req.ManifestPath == "" {
		return nil, errors.New("manifest path required")
	}
	if req.ModelPath == "" {
		return nil, errors.New("model path required")
	}

	args := []string{
		"predict",
		"--manifest", req.ManifestPath,
		"--model", req.ModelPath,
		"--progress-json",
	}

	var predictions []Prediction
	err := c.run(ctx, args, func(event runnerEvent) {
		if event.Type != "prediction" {
			return
		}
		predictions = append(predictions, Prediction{
			Index:      event.Index,
			Label:      event.Label,
			Confidence: event.Confidence,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("trainer predict: %w", err)
	}
	sort.Slice(predictions, func(i, j int) bool { return predictions[i].Index < predictions[j].Index })
	return predictions, nil
}

func (c *CLI) run(ctx context.Context, args []string, onEvent func(runnerEvent)) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start trainer runner: %w", err)
	}

	var runnerErr string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event runnerEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		if event.Type == "error" || event.Error != "" {
			runnerErr = event.Error
			continue
		}
		onEvent(event)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read trainer output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if runnerErr != "" {
			return fmt.Errorf("%s: %w", strings.TrimSpace(runnerErr), err)
		}
		return err
	}
	if runnerErr != "" {
		return errors.New(strings.TrimSpace(runnerErr))
	}
	return nil
}

var _ Runner = (*CLI)(nil)
