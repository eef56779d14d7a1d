package mediainfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Result carries the probe output for a clip.
type Result struct {
	DurationSeconds float64
}

// Prober defines duration probing behaviour.
type Prober interface {
	Probe(ctx context.Context, path string) (Result, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Output(ctx context.Context, binary string, args []string) (string, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client probes clip durations with mediainfo and falls back to ffprobe
// when mediainfo is unavailable or returns nothing useful.
type Client struct {
	mediainfoBinary string
	ffprobeBinary   string
	timeout         time.Duration
	exec            Executor
}

// New constructs a probe client.
func New(mediainfoBinary, ffprobeBinary string, timeout time.Duration, opts ...Option) (*Client, error) {
	mediainfoBinary = strings.TrimSpace(mediainfoBinary)
	ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	if mediainfoBinary == "" && ffprobeBinary == "" {
		return nil, errors.New("at least one probe binary required")
	}
	client := &Client{
		mediainfoBinary: mediainfoBinary,
		ffprobeBinary:   ffprobeBinary,
		timeout:         timeout,
		exec:            commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Probe returns the duration of the clip at path.
func (c *Client) Probe(ctx context.Context, path string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("clip path required")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var probeErr error
	if c.mediainfoBinary != "" {
		result, err := c.probeMediainfo(ctx, path)
		if err == nil {
			return result, nil
		}
		probeErr = err
	}

	if c.ffprobeBinary != "" {
		result, err := c.probeFFprobe(ctx, path)
		if err == nil {
			return result, nil
		}
		if probeErr != nil {
			return Result{}, fmt.Errorf("mediainfo: %v; ffprobe: %w", probeErr, err)
		}
		probeErr = err
	}

	return Result{}, fmt.Errorf("probe duration: %w", probeErr)
}

func (c *Client) probeMediainfo(ctx context.Context, path string) (Result, error) {
	out, err := c.exec.Output(ctx, c.mediainfoBinary, []string{"--Inform=Video;%Duration%", path})
	if err != nil {
		return Result{}, fmt.Errorf("run mediainfo: %w", err)
	}
	// mediainfo reports the video stream duration in milliseconds.
	millis, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse mediainfo duration %q: %w", strings.TrimSpace(out), err)
	}
	if millis <= 0 {
		return Result{}, fmt.Errorf("mediainfo reported non-positive duration %.0fms", millis)
	}
	return Result{DurationSeconds: millis / 1000}, nil
}

func (c *Client) probeFFprobe(ctx context.Context, path string) (Result, error) {
	out, err := c.exec.Output(ctx, c.ffprobeBinary, []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	})
	if err != nil {
		return Result{}, fmt.Errorf("run ffprobe: %w", err)
	}
	var payload struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		return Result{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(payload.Format.Duration), 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse ffprobe duration %q: %w", payload.Format.Duration, err)
	}
	if seconds <= 0 {
		return Result{}, fmt.Errorf("ffprobe reported non-positive duration %.3fs", seconds)
	}
	return Result{DurationSeconds: seconds}, nil
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, binary string, args []string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, args...).Output() //nolint:gosec
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

var _ Prober = (*Client)(nil)
