package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending            Status = "pending"
	StatusExtractingFrames   Status = "extracting_frames"
	StatusFramesExtracted    Status = "frames_extracted"
	StatusExtractingFeatures Status = "extracting_features"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusReview             Status = "review"
)

var allStatuses = []Status{
	StatusPending,
	StatusExtractingFrames,
	StatusFramesExtracted,
	StatusExtractingFeatures,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusExtractingFrames:   {},
	StatusExtractingFeatures: {},
}

// stageRollback maps a processing status to the stage start status an
// interrupted item falls back to.
var stageRollback = map[Status]Status{
	StatusExtractingFrames:   StatusPending,
	StatusExtractingFeatures: StatusFramesExtracted,
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Item represents one video clip persisted in SQLite.
type Item struct {
	ID              int64
	SourcePath      string
	Title           string
	Label           string
	Split           string
	Fingerprint     string
	Status          Status
	DurationSeconds float64
	SampleRate      float64
	FrameDir        string
	FrameCount      int
	FeatureFile     string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
	NeedsReview     bool
	ReviewReason    string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends an item's workflow.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// SetProgress updates all three progress fields atomically.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the item as failed with the given error message.
// Clears heartbeat and sets progress fields appropriately.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}

// SetReview parks the item for manual intervention with the given reason.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
	i.ErrorMessage = reason
	i.ProgressMessage = reason
	i.LastHeartbeat = nil
	i.ProgressStage = "Review"
}
