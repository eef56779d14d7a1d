package frames_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gestrec/internal/frames"
	"gestrec/internal/logging"
	"gestrec/internal/queue"
	"gestrec/internal/services"
	"gestrec/internal/services/ffmpeg"
	"gestrec/internal/services/mediainfo"
	"gestrec/internal/testsupport"
)

type fakeProber struct {
	duration float64
	err      error
}

func (f *fakeProber) Probe(context.Context, string) (mediainfo.Result, error) {
	if f.err != nil {
		return mediainfo.Result{}, f.err
	}
	return mediainfo.Result{DurationSeconds: f.duration}, nil
}

type fakeFFmpeg struct {
	req ffmpeg.ExtractRequest
	err error
}

func (f *fakeFFmpeg) Extract(_ context.Context, req ffmpeg.ExtractRequest) error {
	f.req = req
	if f.err != nil {
		return f.err
	}
	return nil
}

func TestExecuteExtractsExpectedFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFramesPerVideo(4))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteClassFile(t, cfg.Paths.ClassFile, "c001")

	ctx := context.Background()
	item, err := store.NewClip(ctx, queue.NewClipParams{
		SourcePath:  "/videos/train/c001/clip-001.avi",
		Title:       "clip-001",
		Label:       "c001",
		Split:       "train",
		Fingerprint: "fp-1",
	})
	if err != nil {
		t.Fatalf("NewClip: %v", err)
	}

	client := &fakeFFmpeg{}
	extractor := frames.NewExtractorWithDependencies(
		cfg, store, logging.NewNop(),
		&fakeProber{duration: 2.0},
		&extractingClient{inner: client, t: t, frames: 4},
	)

	if err := extractor.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := extractor.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.DurationSeconds != 2.0 {
		t.Fatalf("expected duration persisted, got %f", item.DurationSeconds)
	}
	if item.SampleRate != 2.0 {
		t.Fatalf("expected sample rate 4 frames / 2s = 2.0, got %f", item.SampleRate)
	}
	wantDir := filepath.Join(cfg.Paths.FrameDir, "train", "c001", "clip-001")
	if item.FrameDir != wantDir {
		t.Fatalf("expected frame dir %q, got %q", wantDir, item.FrameDir)
	}
	if item.FrameCount != 4 {
		t.Fatalf("expected 4 frames recorded, got %d", item.FrameCount)
	}
	if client.req.Width != cfg.Pipeline.FrameWidth || client.req.Height != cfg.Pipeline.FrameHeight {
		t.Fatalf("expected frame size forwarded, got %dx%d", client.req.Width, client.req.Height)
	}
}

// extractingClient wraps a fakeFFmpeg and also materializes frame files so
// the post-extraction count check sees real output.
type extractingClient struct {
	inner  *fakeFFmpeg
	t      *testing.T
	frames int
}

func (e *extractingClient) Extract(ctx context.Context, req ffmpeg.ExtractRequest) error {
	if err := e.inner.Extract(ctx, req); err != nil {
		return err
	}
	testsupport.WriteFrames(e.t, req.OutputDir, e.frames)
	return nil
}

func TestExecuteFailsOnShortExtraction(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFramesPerVideo(20))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteClassFile(t, cfg.Paths.ClassFile, "c001")

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip-short", "fp-short")
	item.Split = "train"
	item.Label = "c001"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	extractor := frames.NewExtractorWithDependencies(
		cfg, store, logging.NewNop(),
		&fakeProber{duration: 3.0},
		&extractingClient{inner: &fakeFFmpeg{}, t: t, frames: 12},
	)

	err := extractor.Execute(ctx, item)
	if err == nil {
		t.Fatal("expected error for short extraction")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestExecuteZeroDurationGoesToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteClassFile(t, cfg.Paths.ClassFile, "c001")

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip-bad", "fp-bad")
	item.Label = "c001"

	extractor := frames.NewExtractorWithDependencies(
		cfg, store, logging.NewNop(),
		&fakeProber{duration: 0},
		&fakeFFmpeg{},
	)

	err := extractor.Execute(ctx, item)
	if err == nil {
		t.Fatal("expected error for zero duration")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Fatalf("expected review classification, got %s", services.FailureStatus(err))
	}
}

func TestExecuteUnknownLabelGoesToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteClassFile(t, cfg.Paths.ClassFile, "c001")

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip-mislabeled", "fp-mislabeled")
	item.Label = "c999"

	prober := &fakeProber{duration: 2.0}
	extractor := frames.NewExtractorWithDependencies(
		cfg, store, logging.NewNop(),
		prober,
		&fakeFFmpeg{},
	)

	err := extractor.Execute(ctx, item)
	if err == nil {
		t.Fatal("expected error for unknown label")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Fatalf("expected review classification, got %s", services.FailureStatus(err))
	}
}

func TestExecuteAcceptsTruncatedClassLabel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFramesPerVideo(4), testsupport.WithMaxClasses(1))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteClassFile(t, cfg.Paths.ClassFile, "c001", "c002")

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip-capped", "fp-capped")
	item.Split = "train"
	item.Label = "c002"

	extractor := frames.NewExtractorWithDependencies(
		cfg, store, logging.NewNop(),
		&fakeProber{duration: 2.0},
		&extractingClient{inner: &fakeFFmpeg{}, t: t, frames: 4},
	)

	if err := extractor.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.FrameCount != 4 {
		t.Fatalf("expected extraction to proceed for capped class, got %d frames", item.FrameCount)
	}
}

func TestExecuteProbeFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.WriteClassFile(t, cfg.Paths.ClassFile, "c001")

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip-probe", "fp-probe")
	item.Label = "c001"

	extractor := frames.NewExtractorWithDependencies(
		cfg, store, logging.NewNop(),
		&fakeProber{err: errors.New("mediainfo crashed")},
		&fakeFFmpeg{},
	)

	err := extractor.Execute(ctx, item)
	if err == nil {
		t.Fatal("expected probe error")
	}
	if services.FailureStatus(err) != queue.StatusFailed {
		t.Fatalf("expected failed classification, got %s", services.FailureStatus(err))
	}
}

func TestHealthCheckReportsMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpegBinary = "definitely-not-ffmpeg-binary"
	store := testsupport.MustOpenStore(t, cfg)

	extractor := frames.NewExtractorWithDependencies(
		cfg, store, logging.NewNop(),
		&fakeProber{duration: 1},
		&fakeFFmpeg{},
	)
	health := extractor.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy when ffmpeg binary missing")
	}
}

func TestHealthCheckHealthyWithStubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)

	extractor := frames.NewExtractorWithDependencies(
		cfg, store, logging.NewNop(),
		&fakeProber{duration: 1},
		&fakeFFmpeg{},
	)
	health := extractor.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected healthy stage, got %q", health.Detail)
	}
}
