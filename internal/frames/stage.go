package frames

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"gestrec/internal/config"
	"gestrec/internal/dataset"
	"gestrec/internal/logging"
	"gestrec/internal/queue"
	"gestrec/internal/services"
	"gestrec/internal/services/ffmpeg"
	"gestrec/internal/services/mediainfo"
	"gestrec/internal/stage"
	"gestrec/internal/textutil"
)

// Extractor samples a fixed number of frames from each queued clip.
type Extractor struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	prober mediainfo.Prober
	client ffmpeg.Extractor

	catalogOnce sync.Once
	catalog     *dataset.Catalog
	catalogErr  error
}

// NewExtractor constructs the frame extraction handler using default dependencies.
func NewExtractor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Extractor {
	prober, err := mediainfo.New(
		cfg.Tools.MediainfoBinary,
		cfg.Tools.FFprobeBinary,
		time.Duration(cfg.Tools.ExtractTimeout)*time.Second,
	)
	if err != nil {
		logger.Warn("duration prober unavailable", logging.Error(err))
	}
	client, err := ffmpeg.New(cfg.Tools.FFmpegBinary, time.Duration(cfg.Tools.ExtractTimeout)*time.Second)
	if err != nil {
		logger.Warn("ffmpeg client unavailable", logging.Error(err))
	}
	return NewExtractorWithDependencies(cfg, store, logger, prober, client)
}

// NewExtractorWithDependencies allows injecting all collaborators (used in tests).
func NewExtractorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, prober mediainfo.Prober, client ffmpeg.Extractor) *Extractor {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "frame-extractor"))
	}
	return &Extractor{store: store, cfg: cfg, logger: stageLogger, prober: prober, client: client}
}

func (e *Extractor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	item.ProgressStage = "Extracting frames"
	item.ProgressMessage = "Probing clip duration"
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	logger.Info(
		"starting frame extraction",
		logging.String("title", strings.TrimSpace(item.Title)),
		logging.String("source_path", strings.TrimSpace(item.SourcePath)),
	)
	return nil
}

func (e *Extractor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)

	if e.prober == nil {
		return services.Wrap(
			services.ErrConfiguration, "frames", "probe duration",
			"No duration prober configured; install mediainfo or ffprobe", nil)
	}
	if e.client == nil {
		return services.Wrap(
			services.ErrConfiguration, "frames", "extract frames",
			"ffmpeg client unavailable; set ffmpeg_binary to a valid executable", nil)
	}

	if err := e.validateLabel(item); err != nil {
		return err
	}

	probe, err := e.prober.Probe(ctx, item.SourcePath)
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool, "frames", "probe duration",
			"Failed to read clip duration; check the clip is a readable video file", err)
	}
	if probe.DurationSeconds <= 0 {
		return services.Wrap(
			services.ErrValidation, "frames", "probe duration",
			fmt.Sprintf("Clip %s reports no duration and cannot be sampled", item.SourcePath), nil)
	}

	frameCount := e.cfg.Pipeline.FramesPerVideo
	sampleRate := float64(frameCount) / probe.DurationSeconds
	frameDir := e.frameDir(item)

	item.DurationSeconds = probe.DurationSeconds
	item.SampleRate = sampleRate
	item.SetProgress("Extracting frames", fmt.Sprintf("Sampling %d frames at %.2f fps", frameCount, sampleRate), 10)
	if err := e.store.UpdateProgress(ctx, item); err != nil {
		logger.Warn("failed to persist progress", logging.Error(err))
	}

	logger.Info(
		"sampling frames",
		logging.String("frame_dir", frameDir),
		logging.Float64("duration_seconds", probe.DurationSeconds),
		logging.Float64("sample_rate", sampleRate),
		logging.Int("frame_count", frameCount),
	)

	req := ffmpeg.ExtractRequest{
		InputPath:  item.SourcePath,
		OutputDir:  frameDir,
		SampleRate: sampleRate,
		FrameCount: frameCount,
		Width:      e.cfg.Pipeline.FrameWidth,
		Height:     e.cfg.Pipeline.FrameHeight,
	}
	if err := e.client.Extract(ctx, req); err != nil {
		return services.Wrap(
			services.ErrExternalTool, "frames", "extract frames",
			"ffmpeg frame extraction failed; check ffmpeg installation and clip integrity", err)
	}

	extracted, err := ffmpeg.CountFrames(frameDir)
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool, "frames", "count frames",
			"Failed to inspect extracted frames", err)
	}
	if extracted != frameCount {
		return services.Wrap(
			services.ErrExternalTool, "frames", "verify frame count",
			fmt.Sprintf("Expected %d frames but ffmpeg produced %d for %s", frameCount, extracted, item.SourcePath), nil)
	}

	item.FrameDir = frameDir
	item.FrameCount = extracted
	item.SetProgressComplete("Extracting frames", fmt.Sprintf("Extracted %d frames", extracted))
	logger.Info("frame extraction finished", logging.String("frame_dir", frameDir), logging.Int("frames", extracted))
	return nil
}

func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	const name = "frame-extractor"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(e.cfg.Paths.FrameDir) == "" {
		return stage.Unhealthy(name, "frame directory not configured")
	}
	if e.client == nil {
		return stage.Unhealthy(name, "ffmpeg client unavailable")
	}
	binary := strings.TrimSpace(e.cfg.Tools.FFmpegBinary)
	if binary == "" {
		return stage.Unhealthy(name, "ffmpeg binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("ffmpeg binary %q not found", binary))
	}
	return stage.Healthy(name)
}

// validateLabel checks the clip label against the full class file. Classes
// dropped by the max_classes cap still count as valid here; only labels the
// class file never lists send the item to review.
func (e *Extractor) validateLabel(item *queue.Item) error {
	e.catalogOnce.Do(func() {
		e.catalog, e.catalogErr = dataset.LoadCatalog(e.cfg.Paths.ClassFile, 0)
	})
	if e.catalogErr != nil {
		return services.Wrap(
			services.ErrConfiguration, "frames", "load classes",
			fmt.Sprintf("Unable to load the class catalog from %s", e.cfg.Paths.ClassFile), e.catalogErr)
	}
	if !e.catalog.Known(item.Label) {
		return services.Wrap(
			services.ErrValidation, "frames", "validate label",
			fmt.Sprintf("Clip %s has label %q which is not listed in %s", item.SourcePath, item.Label, e.cfg.Paths.ClassFile), nil)
	}
	return nil
}

// frameDir places frames under <frame_dir>/<split>/<label>/<title> so the
// frame tree mirrors the video tree.
func (e *Extractor) frameDir(item *queue.Item) string {
	title := textutil.SanitizeFileName(item.Title)
	if title == "" {
		title = fmt.Sprintf("clip-%d", item.ID)
	}
	return filepath.Join(e.cfg.Paths.FrameDir, item.Split, item.Label, title)
}

var _ stage.Handler = (*Extractor)(nil)
