package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ExtractRequest describes a single-clip frame extraction.
type ExtractRequest struct {
	InputPath  string
	OutputDir  string
	SampleRate float64
	FrameCount int
	Width      int
	Height     int
}

// Extractor defines frame extraction behaviour.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
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

// Client wraps ffmpeg frame extraction.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs an ffmpeg client.
func New(binary string, timeout time.Duration, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: timeout,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// FramePattern is the output filename pattern frames are written with.
// Lexical order of the resulting names matches extraction order.
const FramePattern = "frame-%03d.jpg"

// Extract samples req.FrameCount frames from the clip into req.OutputDir.
// The output directory is recreated from scratch so a previous partial
// extraction can never leak stale frames into the result.
func (c *Client) Extract(ctx context.Context, req ExtractRequest) error {
	if req.InputPath == "" {
		return errors.New("input path required")
	}
	if req.OutputDir == "" {
		return errors.New("output directory required")
	}
	if req.FrameCount <= 0 {
		return fmt.Errorf("invalid frame count %d", req.FrameCount)
	}
	if req.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %f", req.SampleRate)
	}

	if err := os.RemoveAll(req.OutputDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("prepare frame directory: %w", err)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create frame directory: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"-loglevel", "error",
		"-y",
		"-i", req.InputPath,
		"-r", strconv.FormatFloat(req.SampleRate, 'f', -1, 64),
		"-frames:v", strconv.Itoa(req.FrameCount),
	}
	if req.Width > 0 && req.Height > 0 {
		args = append(args, "-s", fmt.Sprintf("%dx%d", req.Width, req.Height))
	}
	args = append(args, filepath.Join(req.OutputDir, FramePattern))

	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		return fmt.Errorf("ffmpeg extract: %w", err)
	}
	return nil
}

// CountFrames returns how many frame files exist in dir, in lexical order.
func CountFrames(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasPrefix(name, "frame-") && strings.HasSuffix(name, ".jpg") {
			count++
		}
	}
	return count, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

var _ Extractor = (*Client)(nil)
