package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gestrec/internal/queue"
	"gestrec/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewClip(ctx, queue.NewClipParams{
		SourcePath:  "/videos/train/swiping/clip-001.avi",
		Title:       "clip-001",
		Label:       "swiping",
		Split:       "train",
		Fingerprint: "fingerprint-1",
	})
	if err != nil {
		t.Fatalf("NewClip failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Title != "clip-001" || fetched.Label != "swiping" || fetched.Split != "train" {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}

	found, err := store.FindByFingerprint(ctx, "fingerprint-1")
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found == nil || found.ID != item.ID {
		t.Fatalf("expected to find inserted item, got %#v", found)
	}
}

func TestNewClipRequiresFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewClip(ctx, queue.NewClipParams{SourcePath: "/videos/a.avi"}); err == nil {
		t.Fatal("expected error when fingerprint missing")
	}
	if _, err := store.NewClip(ctx, queue.NewClipParams{Fingerprint: "fp"}); err == nil {
		t.Fatal("expected error when source path missing")
	}
}

func TestNewClipRejectsDuplicateFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.NewClip(ctx, queue.NewClipParams{SourcePath: "/videos/a.avi", Fingerprint: "fp-dup"}); err != nil {
		t.Fatalf("NewClip failed: %v", err)
	}
	if _, err := store.NewClip(ctx, queue.NewClipParams{SourcePath: "/videos/b.avi", Fingerprint: "fp-dup"}); err == nil {
		t.Fatal("expected duplicate fingerprint to be rejected")
	}
}

func TestUpdatePersistsPipelineFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip-a", "fp-a")
	item.Status = queue.StatusFramesExtracted
	item.DurationSeconds = 2.4
	item.SampleRate = 8.33
	item.FrameDir = "/frames/clip-a"
	item.FrameCount = 20
	item.FeatureFile = "/features/clip-a.npy"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.DurationSeconds != 2.4 || updated.SampleRate != 8.33 {
		t.Fatalf("probe fields not persisted: %#v", updated)
	}
	if updated.FrameDir != "/frames/clip-a" || updated.FrameCount != 20 {
		t.Fatalf("frame fields not persisted: %#v", updated)
	}
	if updated.FeatureFile != "/features/clip-a.npy" {
		t.Fatalf("feature file not persisted: %q", updated.FeatureFile)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"extracting_frames", queue.StatusExtractingFrames, queue.StatusPending},
		{"extracting_features", queue.StatusExtractingFeatures, queue.StatusFramesExtracted},
	}
	var ids []int64
	for i, tc := range cases {
		item := testsupport.NewClip(t, store, fmt.Sprintf("clip-%s", tc.name), fmt.Sprintf("fingerprint-reset-%d", i))
		item.Status = tc.initialStatus
		item.ProgressStage = tc.name
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, item.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d items reset, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, updated.Status)
		}
		if updated.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared", tc.name)
		}
	}
}

func TestItemsByStatusOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewClip(t, store, "clip-a", "fp-a")
	b := testsupport.NewClip(t, store, "clip-b", "fp-b")
	b.Status = queue.StatusFramesExtracted
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	items, err := store.ItemsByStatus(ctx, queue.StatusFramesExtracted)
	if err != nil {
		t.Fatalf("ItemsByStatus failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one frames_extracted item, got %d", len(items))
	}
	if items[0].Title != "clip-b" {
		t.Fatalf("expected clip-b, got %s", items[0].Title)
	}
}

func TestItemsBySplitOrdersBySourcePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	insert := func(path, fingerprint string) {
		t.Helper()
		if _, err := store.NewClip(ctx, queue.NewClipParams{
			SourcePath:  path,
			Split:       "train",
			Fingerprint: fingerprint,
		}); err != nil {
			t.Fatalf("NewClip: %v", err)
		}
	}
	insert("/videos/train/zz.avi", "fp-zz")
	insert("/videos/train/aa.avi", "fp-aa")
	insert("/videos/train/mm.avi", "fp-mm")

	items, err := store.ItemsBySplit(ctx, "train")
	if err != nil {
		t.Fatalf("ItemsBySplit failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].SourcePath != "/videos/train/aa.avi" || items[2].SourcePath != "/videos/train/zz.avi" {
		t.Fatalf("expected lexical source-path order, got %s .. %s", items[0].SourcePath, items[2].SourcePath)
	}
}

func TestListSupportsStatusFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewClip(t, store, "clip-a", "fp-a")
	b := testsupport.NewClip(t, store, "clip-b", "fp-b")
	b.Status = queue.StatusFramesExtracted
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	c := testsupport.NewClip(t, store, "clip-c", "fp-c")
	c.Status = queue.StatusFailed
	c.ErrorMessage = "boom"
	if err := store.Update(ctx, c); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != a.ID || items[1].ID != b.ID || items[2].ID != c.ID {
		t.Fatalf("expected order A,B,C, got IDs %d,%d,%d", items[0].ID, items[1].ID, items[2].ID)
	}

	filtered, err := store.List(ctx, queue.StatusFramesExtracted, queue.StatusFailed)
	if err != nil {
		t.Fatalf("Filtered list failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 items, got %d", len(filtered))
	}
	if filtered[0].ID != b.ID || filtered[1].ID != c.ID {
		t.Fatalf("unexpected filtered order: got %d,%d", filtered[0].ID, filtered[1].ID)
	}
}

func TestNextForStatusesReturnsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewClip(t, store, "clip-a", "fp-a")
	testsupport.NewClip(t, store, "clip-b", "fp-b")

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != a.ID {
		t.Fatalf("expected oldest pending item %d, got %#v", a.ID, next)
	}

	none, err := store.NextForStatuses(ctx, queue.StatusCompleted)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil for empty status, got %#v", none)
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewClip(t, store, "clip-a", "fp-a")
	b := testsupport.NewClip(t, store, "clip-b", "fp-b")
	for _, item := range []*queue.Item{a, b} {
		item.Status = queue.StatusFailed
		item.ErrorMessage = "boom"
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	updated, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed all: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 items retried, got %d", updated)
	}

	item, err := store.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected item A pending, got %s", item.Status)
	}
	if item.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", item.ErrorMessage)
	}

	// Mark B failed again and retry targeted selection.
	b.Status = queue.StatusFailed
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated, err = store.RetryFailed(ctx, b.ID)
	if err != nil {
		t.Fatalf("RetryFailed targeted: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 item retried, got %d", updated)
	}
}

func TestRetryFailedClearsReviewItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip-review", "fp-review")
	item.SetReview("unreadable clip")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	updated, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected review item retried, got %d", updated)
	}

	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
	if got.NeedsReview || got.ReviewReason != "" {
		t.Fatalf("expected review flags cleared, got %+v", got)
	}
}

func TestUpdateHeartbeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip-hb", "hb")
	item.Status = queue.StatusExtractingFrames
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := store.UpdateHeartbeat(ctx, item.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.LastHeartbeat == nil {
		t.Fatal("expected last heartbeat to be set")
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	past := time.Now().Add(-2 * time.Hour).UTC()
	cases := []struct {
		name       string
		processing queue.Status
		expected   queue.Status
	}{
		{"extracting_frames", queue.StatusExtractingFrames, queue.StatusPending},
		{"extracting_features", queue.StatusExtractingFeatures, queue.StatusFramesExtracted},
	}
	var ids []int64
	for i, tc := range cases {
		item := testsupport.NewClip(t, store, fmt.Sprintf("stale-%s", tc.name), fmt.Sprintf("stale-%d", i))
		item.Status = tc.processing
		item.LastHeartbeat = &past
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
		ids = append(ids, item.ID)
	}

	fresh := testsupport.NewClip(t, store, "fresh", "stale-fresh")
	fresh.Status = queue.StatusExtractingFrames
	now := time.Now().UTC()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update fresh: %v", err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-1*time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d items reclaimed, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s after reclaim, got %s", tc.name, tc.expected, updated.Status)
		}
		if updated.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared, got %v", tc.name, updated.LastHeartbeat)
		}
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID fresh: %v", err)
	}
	if untouched.Status != queue.StatusExtractingFrames {
		t.Fatalf("expected fresh item untouched, got %s", untouched.Status)
	}
}

func TestUpdateProgressPreservesHeartbeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip-progress", "hb-progress")
	item.Status = queue.StatusExtractingFrames
	past := time.Now().Add(-5 * time.Minute).UTC()
	item.LastHeartbeat = &past
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := store.UpdateHeartbeat(ctx, item.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	before, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID before progress: %v", err)
	}
	if before.LastHeartbeat == nil {
		t.Fatal("expected heartbeat set before progress update")
	}
	origHeartbeat := *before.LastHeartbeat

	before.ProgressStage = "Extracting frames"
	before.ProgressPercent = 42.5
	before.ProgressMessage = "frame 9 of 20"
	if err := store.UpdateProgress(ctx, before); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	after, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID after progress: %v", err)
	}
	if after.LastHeartbeat == nil {
		t.Fatal("expected heartbeat preserved after progress update")
	}
	if !after.LastHeartbeat.Equal(origHeartbeat) {
		t.Fatalf("expected heartbeat unchanged, before %v after %v", origHeartbeat, after.LastHeartbeat)
	}
	if after.ProgressStage != "Extracting frames" || after.ProgressMessage != "frame 9 of 20" {
		t.Fatalf("expected progress fields persisted, got stage=%q message=%q", after.ProgressStage, after.ProgressMessage)
	}
	if after.ProgressPercent != 42.5 {
		t.Fatalf("expected progress percent 42.5, got %f", after.ProgressPercent)
	}
}

func TestHealthBucketsStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusPending,
		queue.StatusExtractingFrames,
		queue.StatusExtractingFeatures,
		queue.StatusCompleted,
		queue.StatusFailed,
		queue.StatusReview,
	}
	for i, status := range statuses {
		item := testsupport.NewClip(t, store, fmt.Sprintf("clip-%d", i), fmt.Sprintf("fp-health-%d", i))
		item.Status = status
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 6 {
		t.Fatalf("expected total 6, got %d", health.Total)
	}
	if health.Pending != 1 || health.Processing != 2 || health.Completed != 1 || health.Failed != 1 || health.Review != 1 {
		t.Fatalf("unexpected health buckets: %#v", health)
	}
}

func TestClearVariants(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	done := testsupport.NewClip(t, store, "done", "fp-done")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}
	failed := testsupport.NewClip(t, store, "failed", "fp-failed")
	failed.Status = queue.StatusFailed
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}
	testsupport.NewClip(t, store, "pending", "fp-pending")

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 completed cleared, got %d", removed)
	}

	removed, err = store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 failed cleared, got %d", removed)
	}

	removed, err = store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 remaining item cleared, got %d", removed)
	}
}

func TestRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewClip(t, store, "clip", "fp-remove")

	ok, err := store.Remove(ctx, item.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !ok {
		t.Fatal("expected removal to report success")
	}

	ok, err = store.Remove(ctx, item.ID)
	if err != nil {
		t.Fatalf("Remove (missing): %v", err)
	}
	if ok {
		t.Fatal("expected removal of missing item to report false")
	}
}
