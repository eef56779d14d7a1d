package backbone

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// ProgressUpdate captures backbone runner progress events.
type ProgressUpdate struct {
	Percent float64
	Stage   string
	Message string
}

// ExtractRequest describes one feature extraction invocation.
type ExtractRequest struct {
	FrameDir      string
	OutputPath    string
	Model         string
	FeatureLength int
	Width         int
	Height        int
}

// Client defines backbone feature extraction behaviour.
type Client interface {
	Extract(ctx context.Context, req ExtractRequest, progress func(ProgressUpdate)) (string, error)
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

// WithTimeout bounds a single extraction run.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		c.timeout = timeout
	}
}

// CLI wraps the gestrec-backbone command-line runner.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "gestrec-backbone"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Extract launches the backbone runner and returns the feature file path.
// The runner writes the array itself; callers verify the resulting shape
// before trusting the file.
func (c *CLI) Extract(ctx context.Context, req ExtractRequest, progress func(ProgressUpdate)) (string, error) {
	if req.FrameDir == "" {
		return "", errors.New("frame directory required")
	}
	if req.OutputPath == "" {
		return "", errors.New("output path required")
	}
	if req.Model == "" {
		return "", errors.New("backbone model required")
	}
	if req.FeatureLength <= 0 {
		return "", fmt.Errorf("invalid feature length %d", req.FeatureLength)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"extract",
		"--model", req.Model,
		"--frames", req.FrameDir,
		"--output", req.OutputPath,
		"--feature-length", strconv.Itoa(req.FeatureLength),
	}
	if req.Width > 0 && req.Height > 0 {
		args = append(args, "--width", strconv.Itoa(req.Width), "--height", strconv.Itoa(req.Height))
	}
	args = append(args, "--progress-json")

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start backbone runner: %w", err)
	}

	var runnerErr string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		var payload struct {
			Type    string  `json:"type"`
			Percent float64 `json:"percent"`
			Stage   string  `json:"stage"`
			Message string  `json:"message"`
			Error   string  `json:"error"`
		}
		if err := json.Unmarshal(line, &payload); err != nil {
			continue
		}
		if payload.Type == "error" || payload.Error != "" {
			runnerErr = payload.Error
			if runnerErr == "" {
				runnerErr = payload.Message
			}
			continue
		}
		if progress != nil {
			progress(ProgressUpdate{Percent: payload.Percent, Stage: payload.Stage, Message: payload.Message})
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read backbone output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		if runnerErr != "" {
			return "", fmt.Errorf("backbone extract failed: %s: %w", runnerErr, err)
		}
		return "", fmt.Errorf("backbone extract failed: %w", err)
	}
	if runnerErr != "" {
		return "", fmt.Errorf("backbone extract failed: %s", strings.TrimSpace(runnerErr))
	}

	return req.OutputPath, nil
}

var _ Client = (*CLI)(nil)
