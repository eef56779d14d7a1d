package workflow

import (
	"gestrec/internal/queue"
	"gestrec/internal/stage"
)

// StageSet bundles the concrete pipeline handlers the manager orchestrates.
type StageSet struct {
	FrameExtractor   stage.Handler
	FeatureExtractor stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage
	if set.FrameExtractor != nil {
		stages = append(stages, pipelineStage{
			name:             "frame-extractor",
			handler:          set.FrameExtractor,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusExtractingFrames,
			doneStatus:       queue.StatusFramesExtracted,
		})
	}
	if set.FeatureExtractor != nil {
		stages = append(stages, pipelineStage{
			name:             "feature-extractor",
			handler:          set.FeatureExtractor,
			startStatus:      queue.StatusFramesExtracted,
			processingStatus: queue.StatusExtractingFeatures,
			doneStatus:       queue.StatusCompleted,
		})
	}

	byStart := make(map[queue.Status]pipelineStage, len(stages))
	order := make([]queue.Status, 0, len(stages))
	var processing []queue.Status
	for _, stg := range stages {
		byStart[stg.startStatus] = stg
		order = append(order, stg.startStatus)
		processing = append(processing, stg.processingStatus)
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = byStart
	m.statusOrder = order
	m.processingStatuses = processing
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}

func deriveStageLabel(status queue.Status) string {
	switch status {
	case queue.StatusExtractingFrames:
		return "Extracting frames"
	case queue.StatusExtractingFeatures:
		return "Extracting features"
	case queue.StatusCompleted:
		return "Completed"
	default:
		return string(status)
	}
}
