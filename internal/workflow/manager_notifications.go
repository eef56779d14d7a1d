package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gestrec/internal/logging"
	"gestrec/internal/notifications"
	"gestrec/internal/queue"
)

func (m *Manager) notifyStageError(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	contextLabel := fmt.Sprintf("%s (clip #%d)", stageName, item.ID)
	if err := m.notifier.Publish(ctx, notifications.EventError, notifications.Payload{
		"error":   stageErr.Error(),
		"context": contextLabel,
	}); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("stage error notification failed", logging.Error(err))
	}
}

func (m *Manager) notifyReviewRequired(ctx context.Context, item *queue.Item, reason string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, notifications.EventReviewRequired, notifications.Payload{
		"title":  item.Title,
		"reason": reason,
	}); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("review notification failed", logging.Error(err))
	}
}

func (m *Manager) onItemStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("queue stats unavailable for start notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.mu.Unlock()

	count := countWorkItems(stats)
	if err := m.notifier.Publish(ctx, notifications.EventQueueStarted, notifications.Payload{
		"count": strconv.Itoa(count),
	}); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("queue start notification failed", logging.Error(err))
	}
}

func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("queue stats unavailable for completion notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	if active := countActiveItems(stats); active > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start).Round(time.Second)
	}
	if err := m.notifier.Publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"processed": strconv.Itoa(stats[queue.StatusCompleted]),
		"failed":    strconv.Itoa(stats[queue.StatusFailed]),
		"duration":  duration.String(),
	}); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("queue completion notification failed", logging.Error(err))
	}
}

func countWorkItems(stats map[queue.Status]int) int {
	total := 0
	for status, count := range stats {
		if queue.IsTerminal(status) {
			continue
		}
		total += count
	}
	return total
}

func countActiveItems(stats map[queue.Status]int) int {
	total := 0
	for _, status := range []queue.Status{
		queue.StatusPending,
		queue.StatusExtractingFrames,
		queue.StatusFramesExtracted,
		queue.StatusExtractingFeatures,
	} {
		total += stats[status]
	}
	return total
}
