package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gestrec/internal/config"
	"gestrec/internal/notifications"
	"gestrec/internal/queue"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service
	drain        bool

	heartbeat *HeartbeatMonitor

	stages             []pipelineStage
	stageByStart       map[queue.Status]pipelineStage
	statusOrder        []queue.Status
	processingStatuses []queue.Status

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastItem *queue.Item

	idleOnce sync.Once
	idle     chan struct{}

	queueActive bool
	queueStart  time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithDrainMode makes the manager stop once the queue has no runnable items
// instead of polling forever. Callers observe the stop via Idle.
func WithDrainMode(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.drain = enabled
	}
}

// NewManager constructs a workflow manager with the config-derived notifier.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg), opts...)
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		idle: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Idle is closed once a drain-mode manager runs out of work. It never closes
// for a continuously polling manager.
func (m *Manager) Idle() <-chan struct{} {
	return m.idle
}

func (m *Manager) markIdle() {
	m.idleOnce.Do(func() { close(m.idle) })
}
