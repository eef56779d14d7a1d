package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"gestrec/internal/config"
	"gestrec/internal/logging"
	"gestrec/internal/notifications"
	"gestrec/internal/queue"
	"gestrec/internal/services"
	"gestrec/internal/stage"
	"gestrec/internal/testsupport"
	"gestrec/internal/workflow"
)

type stubHandler struct {
	name    string
	execute func(ctx context.Context, item *queue.Item) error
}

func (s *stubHandler) Prepare(context.Context, *queue.Item) error { return nil }

func (s *stubHandler) Execute(ctx context.Context, item *queue.Item) error {
	if s.execute != nil {
		return s.execute(ctx, item)
	}
	return nil
}

func (s *stubHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) seen(event notifications.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func newDrainManager(t *testing.T, cfg *config.Config, store *queue.Store, notifier notifications.Service, set workflow.StageSet) *workflow.Manager {
	t.Helper()

	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier, workflow.WithDrainMode(true))
	manager.ConfigureStages(set)
	return manager
}

func runUntilIdle(t *testing.T, manager *workflow.Manager) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	select {
	case <-manager.Idle():
	case <-time.After(10 * time.Second):
		t.Fatal("manager did not drain the queue in time")
	}
}

func TestManagerProcessesItemThroughPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewClip(t, store, "clip-001", "fp-001")

	notifier := &recordingNotifier{}
	manager := newDrainManager(t, cfg, store, notifier, workflow.StageSet{
		FrameExtractor: &stubHandler{name: "frame-extractor", execute: func(_ context.Context, item *queue.Item) error {
			item.FrameDir = "/frames/clip-001"
			item.FrameCount = 20
			item.SetProgressComplete("Extracting frames", "done")
			return nil
		}},
		FeatureExtractor: &stubHandler{name: "feature-extractor", execute: func(_ context.Context, item *queue.Item) error {
			item.FeatureFile = "/features/clip-001.npy"
			item.SetProgressComplete("Extracting features", "done")
			return nil
		}},
	})

	runUntilIdle(t, manager)

	updated, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (error %q)", updated.Status, updated.ErrorMessage)
	}
	if updated.FrameCount != 20 || updated.FeatureFile == "" {
		t.Fatalf("stage outputs not persisted: %+v", updated)
	}
	if updated.ProgressPercent != 100 {
		t.Fatalf("expected 100%% progress, got %f", updated.ProgressPercent)
	}
	if !notifier.seen(notifications.EventQueueStarted) {
		t.Fatal("expected queue started notification")
	}
	if !notifier.seen(notifications.EventQueueCompleted) {
		t.Fatal("expected queue completed notification")
	}
}

func TestManagerRoutesValidationFailuresToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewClip(t, store, "clip-bad", "fp-bad")

	notifier := &recordingNotifier{}
	manager := newDrainManager(t, cfg, store, notifier, workflow.StageSet{
		FrameExtractor: &stubHandler{name: "frame-extractor", execute: func(context.Context, *queue.Item) error {
			return services.Wrap(services.ErrValidation, "frames", "probe clip", "clip has no duration", nil)
		}},
		FeatureExtractor: &stubHandler{name: "feature-extractor"},
	})

	runUntilIdle(t, manager)

	updated, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusReview {
		t.Fatalf("expected review, got %s", updated.Status)
	}
	if !updated.NeedsReview || updated.ReviewReason == "" {
		t.Fatalf("review fields not set: %+v", updated)
	}
	if !notifier.seen(notifications.EventReviewRequired) {
		t.Fatal("expected review notification")
	}
}

func TestManagerMarksToolFailuresFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewClip(t, store, "clip-tool", "fp-tool")

	notifier := &recordingNotifier{}
	manager := newDrainManager(t, cfg, store, notifier, workflow.StageSet{
		FrameExtractor: &stubHandler{name: "frame-extractor", execute: func(context.Context, *queue.Item) error {
			return services.Wrap(services.ErrExternalTool, "frames", "extract frames", "ffmpeg exploded", nil)
		}},
		FeatureExtractor: &stubHandler{name: "feature-extractor"},
	})

	runUntilIdle(t, manager)

	updated, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", updated.Status)
	}
	if updated.ErrorMessage == "" {
		t.Fatal("expected error message recorded")
	}
	if !notifier.seen(notifications.EventError) {
		t.Fatal("expected error notification")
	}
}

func TestManagerStartRequiresStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	if err := manager.Start(context.Background()); err == nil {
		manager.Stop()
		t.Fatal("expected error starting manager without stages")
	}
}

func TestResetStuckItemsRollsBackProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip-stuck", "fp-stuck")
	item.Status = queue.StatusExtractingFeatures
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	if err := manager.ResetStuckItems(ctx); err != nil {
		t.Fatalf("ResetStuckItems: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusFramesExtracted {
		t.Fatalf("expected rollback to frames_extracted, got %s", updated.Status)
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	manager := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), &recordingNotifier{})
	manager.ConfigureStages(workflow.StageSet{
		FrameExtractor:   &stubHandler{name: "frame-extractor"},
		FeatureExtractor: &stubHandler{name: "feature-extractor"},
	})

	summary := manager.Status(context.Background())
	if summary.Running {
		t.Fatal("expected stopped manager")
	}
	if len(summary.StageHealth) != 2 {
		t.Fatalf("expected two stage health entries, got %d", len(summary.StageHealth))
	}
	for name, health := range summary.StageHealth {
		if !health.Ready {
			t.Fatalf("expected %s healthy", name)
		}
	}
}
