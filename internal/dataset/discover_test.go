package dataset_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gestrec/internal/dataset"
	"gestrec/internal/testsupport"
)

func TestDiscoverFindsClipsInSortedOrder(t *testing.T) {
	videoDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(videoDir, "train", "c002", "clip-b.avi"), 128)
	testsupport.WriteFile(t, filepath.Join(videoDir, "train", "c001", "clip-a.avi"), 128)
	testsupport.WriteFile(t, filepath.Join(videoDir, "val", "c001", "clip-c.avi"), 128)
	// skipped: wrong extension and wrong depth
	testsupport.WriteFile(t, filepath.Join(videoDir, "train", "c001", "notes.txt"), 16)
	testsupport.WriteFile(t, filepath.Join(videoDir, "stray.avi"), 16)

	clips, err := dataset.Discover(videoDir, []string{".avi"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(clips) != 3 {
		t.Fatalf("expected 3 clips, got %d", len(clips))
	}
	if clips[0].Title != "clip-a" || clips[1].Title != "clip-b" || clips[2].Title != "clip-c" {
		t.Fatalf("expected sorted order, got %v", clips)
	}
	first := clips[0]
	if first.Split != "train" || first.Label != "c001" {
		t.Fatalf("expected split/label from path, got %#v", first)
	}
	if first.Fingerprint == "" {
		t.Fatal("expected fingerprint assigned")
	}
}

func TestDiscoverNormalizesExtensions(t *testing.T) {
	videoDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(videoDir, "train", "c001", "clip.AVI"), 64)
	testsupport.WriteFile(t, filepath.Join(videoDir, "train", "c001", "clip.mp4"), 64)

	clips, err := dataset.Discover(videoDir, []string{"avi"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(clips) != 1 {
		t.Fatalf("expected only the avi clip, got %d", len(clips))
	}
}

func TestDiscoverFingerprintChangesWithContent(t *testing.T) {
	videoDir := t.TempDir()
	clipPath := filepath.Join(videoDir, "train", "c001", "clip.avi")
	testsupport.WriteFile(t, clipPath, 64)

	before, err := dataset.Discover(videoDir, []string{".avi"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	testsupport.WriteFile(t, clipPath, 256)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(clipPath, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	after, err := dataset.Discover(videoDir, []string{".avi"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if before[0].Fingerprint == after[0].Fingerprint {
		t.Fatal("expected fingerprint to change when clip is replaced")
	}
}

func TestDiscoverMissingDirectory(t *testing.T) {
	if _, err := dataset.Discover(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
