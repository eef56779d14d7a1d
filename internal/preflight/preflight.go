package preflight

import (
	"context"

	"gestrec/internal/config"
	"gestrec/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all filesystem preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	_ = ctx

	results := []Result{
		CheckReadableDirectory("Video directory", cfg.Paths.VideoDir),
		CheckDirectoryAccess("Frame directory", cfg.Paths.FrameDir),
		CheckDirectoryAccess("Feature directory", cfg.Paths.FeatureDir),
		CheckDirectoryAccess("Model directory", cfg.Paths.ModelDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckReadableFile("Class catalog", cfg.Paths.ClassFile),
		CheckFreeSpace("Feature directory space", cfg.Paths.FeatureDir, MinimumFreeBytes),
	}
	return results
}

// CheckSystemDeps evaluates all external binary dependencies for the given
// config. Both the daemon and the CLI status command use this to avoid
// duplicating the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}
