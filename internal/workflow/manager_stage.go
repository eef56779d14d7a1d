package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gestrec/internal/logging"
	"gestrec/internal/queue"
	"gestrec/internal/services"
)

func (m *Manager) processItem(ctx context.Context, logger *slog.Logger, item *queue.Item) error {
	stg, ok := m.stageForStatus(item.Status)
	if !ok {
		logger.Warn("no stage configured for status", logging.String("status", string(item.Status)))
		m.waitForItemOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(services.WithStage(services.WithItemID(ctx, item.ID), stg.name), requestID)
	stageLogger := logging.WithContext(stageCtx, logger)

	if err := m.transitionToProcessing(stageCtx, stg.processingStatus, item); err != nil {
		stageLogger.Error("failed to transition item to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, item)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, item *queue.Item) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("title", strings.TrimSpace(item.Title)),
		logging.String("source_file", strings.TrimSpace(item.SourcePath)),
	)

	if err := stg.handler.Prepare(ctx, item); err != nil {
		m.handleStageFailure(ctx, stg.name, item, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, stg, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, item, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	item.LastHeartbeat = nil
	if item.Status == queue.StatusCompleted {
		if item.ProgressPercent < 100 {
			item.ProgressPercent = 100
		}
		if strings.TrimSpace(item.ProgressMessage) == "" {
			item.ProgressMessage = deriveStageLabel(queue.StatusCompleted)
		}
	}
	if err := m.store.Update(ctx, item); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(item.Status)),
		logging.String("progress_stage", strings.TrimSpace(item.ProgressStage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastItem(item)
	m.checkQueueCompletion(ctx)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, stg pipelineStage, item *queue.Item) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)

	execErr := stg.handler.Execute(ctx, item)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) transitionToProcessing(ctx context.Context, processing queue.Status, item *queue.Item) error {
	if processing == "" {
		return errors.New("processing status must not be empty")
	}

	now := time.Now().UTC()
	item.Status = processing
	if item.ProgressStage == "" {
		item.ProgressStage = deriveStageLabel(processing)
	}
	if item.ProgressMessage == "" {
		item.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(processing))
	}
	item.ProgressPercent = 0
	item.ErrorMessage = ""
	item.LastHeartbeat = &now

	if err := m.store.Update(ctx, item); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastItem(item)
	m.onItemStarted(ctx)
	return nil
}
