package preflight_test

import (
	"context"
	"path/filepath"
	"testing"

	"gestrec/internal/preflight"
	"gestrec/internal/testsupport"
)

func TestRunAllPassesOnPreparedTree(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	testsupport.WriteClassFile(t, cfg.Paths.ClassFile, "c001")

	for _, result := range preflight.RunAll(context.Background(), cfg) {
		if !result.Passed {
			t.Fatalf("expected %s to pass, got %q", result.Name, result.Detail)
		}
	}
}

func TestRunAllFlagsMissingPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// Frame/feature/model/log dirs do not exist yet and the class file is
	// missing, so most checks should fail.
	results := preflight.RunAll(context.Background(), cfg)

	failures := 0
	for _, result := range results {
		if !result.Passed {
			failures++
		}
	}
	if failures < 4 {
		t.Fatalf("expected several failing checks on an empty tree, got %d of %d", failures, len(results))
	}
}

func TestCheckDirectoryAccessRejectsFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	filePath := filepath.Join(testsupport.BaseDir(cfg), "not-a-dir")
	testsupport.WriteFile(t, filePath, 8)

	result := preflight.CheckDirectoryAccess("Frame directory", filePath)
	if result.Passed {
		t.Fatal("expected failure for a plain file")
	}
}

func TestCheckFreeSpaceReportsAvailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	result := preflight.CheckFreeSpace("Feature directory space", testsupport.BaseDir(cfg), 1)
	if !result.Passed {
		t.Fatalf("expected at least one free byte: %q", result.Detail)
	}
}

func TestCheckSystemDepsWithStubs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	for _, status := range preflight.CheckSystemDeps(cfg) {
		if !status.Available {
			t.Fatalf("expected %s available: %s", status.Name, status.Detail)
		}
	}
}
