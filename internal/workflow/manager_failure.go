package workflow

import (
	"context"
	"errors"
	"strings"

	"gestrec/internal/logging"
	"gestrec/internal/queue"
	"gestrec/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithContext(ctx, base.With(logging.String(logging.FieldComponent, "workflow-manager")))

	message := classifyStageFailure(stageName, stageErr)
	resolved := services.FailureStatus(stageErr)
	if resolved == queue.StatusReview {
		item.SetReview(message)
	} else {
		item.SetFailed(message)
	}

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(resolved)),
		logging.String("error_message", strings.TrimSpace(message)),
	)

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastItem(item)
	if resolved == queue.StatusReview {
		m.notifyReviewRequired(ctx, item, message)
	} else {
		m.notifyStageError(ctx, stageName, item, stageErr)
	}
	m.checkQueueCompletion(ctx)
}

func classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		if stageName != "" {
			return stageName + " failed without error detail"
		}
		return "workflow failed without error detail"
	}
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		if stageName != "" {
			return stageName + " failed"
		}
		return "workflow failed"
	}
	return message
}
