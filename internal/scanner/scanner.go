// Package scanner discovers labeled video clips on disk and enqueues them
// for pipeline processing. Clips already known by fingerprint are left alone
// so repeated scans are idempotent.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gestrec/internal/config"
	"gestrec/internal/dataset"
	"gestrec/internal/logging"
	"gestrec/internal/notifications"
	"gestrec/internal/queue"
	"gestrec/internal/services"
)

// Result summarizes one scan pass.
type Result struct {
	Added int
	Known int
}

// Scanner walks the video tree and enqueues newly discovered clips.
type Scanner struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
}

// New builds a scanner with the config-derived notifier.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Scanner {
	return NewWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewWithNotifier allows injecting the notifier (used in tests).
func NewWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Scanner {
	scanLogger := logger
	if scanLogger != nil {
		scanLogger = scanLogger.With(logging.String(logging.FieldComponent, "scanner"))
	}
	return &Scanner{store: store, cfg: cfg, logger: scanLogger, notifier: notifier}
}

// Scan discovers clips under the configured video directory and enqueues one
// pending item per clip not yet known by fingerprint.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	if s.cfg == nil || s.store == nil {
		return nil, services.Wrap(
			services.ErrConfiguration, "scanner", "scan",
			"Scanner requires configuration and an open queue store", nil)
	}

	clips, err := dataset.Discover(s.cfg.Paths.VideoDir, s.cfg.Pipeline.VideoExtensions)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "scanner", "scan",
			fmt.Sprintf("Unable to walk the video directory %s", s.cfg.Paths.VideoDir), err)
	}

	result := &Result{}
	for _, clip := range clips {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		existing, err := s.store.FindByFingerprint(ctx, clip.Fingerprint)
		if err != nil {
			return nil, services.Wrap(
				services.ErrTransient, "scanner", "scan",
				fmt.Sprintf("Fingerprint lookup failed for %s", clip.SourcePath), err)
		}
		if existing != nil {
			result.Known++
			continue
		}
		item, err := s.store.NewClip(ctx, queue.NewClipParams{
			SourcePath:  clip.SourcePath,
			Title:       clip.Title,
			Label:       clip.Label,
			Split:       clip.Split,
			Fingerprint: clip.Fingerprint,
		})
		if err != nil {
			return nil, services.Wrap(
				services.ErrTransient, "scanner", "scan",
				fmt.Sprintf("Unable to enqueue clip %s", clip.SourcePath), err)
		}
		result.Added++
		if s.logger != nil {
			s.logger.Info("clip queued",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String(logging.FieldSplit, clip.Split),
				logging.String(logging.FieldLabel, clip.Label),
				logging.String("source_file", clip.SourcePath))
		}
	}

	if s.logger != nil {
		s.logger.Info("scan complete",
			logging.Int("added", result.Added),
			logging.Int("known", result.Known),
			logging.String(logging.FieldEventType, "scan_complete"))
	}
	s.notifyScanCompleted(ctx, result)
	return result, nil
}

func (s *Scanner) notifyScanCompleted(ctx context.Context, result *Result) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, notifications.EventScanCompleted, notifications.Payload{
		"added": fmt.Sprintf("%d", result.Added),
		"known": fmt.Sprintf("%d", result.Known),
	}); err != nil && !errors.Is(err, context.Canceled) && s.logger != nil {
		s.logger.Debug("scan notification failed", logging.Error(err))
	}
}
