package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gestrec/internal/logging"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.statusOrder) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger
	if logger == nil {
		logger = logging.NewNop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStaleItems(ctx, logger, m.processingStatuses); err != nil {
			logger.Warn("reclaim stale processing failed; stuck items may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}

		item, err := m.store.NextForStatuses(ctx, m.statusOrder...)
		if err != nil {
			m.handleNextItemError(ctx, logger, err)
			continue
		}
		if item == nil {
			if m.drain {
				logger.Info("queue drained, stopping workflow",
					logging.String(logging.FieldEventType, "queue_drained"))
				m.markIdle()
				return
			}
			m.waitForItemOrShutdown(ctx)
			continue
		}

		if err := m.processItem(ctx, logger, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) handleNextItemError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to fetch next queue item",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.pollInterval):
	}
}

// ResetStuckItems rolls interrupted processing items back to their stage
// start status. Called once on daemon startup before the run loop begins.
func (m *Manager) ResetStuckItems(ctx context.Context) error {
	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return err
	}
	if reset > 0 && m.logger != nil {
		m.logger.Info("reset stuck processing items", logging.Int64("count", reset))
	}
	return nil
}
