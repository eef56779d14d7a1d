// Package deps reports the availability of the external binaries the
// pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"gestrec/internal/config"
)

// Requirement defines an external dependency gestrec relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the external binaries for the configured pipeline.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpegBinary,
			Description: "Required for frame extraction",
		},
		{
			Name:        "MediaInfo",
			Command:     cfg.Tools.MediainfoBinary,
			Description: "Required for clip duration probing",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobeBinary,
			Description: "Fallback duration probe when MediaInfo fails",
			Optional:    true,
		},
		{
			Name:        "Backbone runner",
			Command:     cfg.Tools.BackboneBinary,
			Description: "Required for image feature extraction",
		},
		{
			Name:        "Trainer runner",
			Command:     cfg.Tools.TrainerBinary,
			Description: "Required for sequence-model train/evaluate/predict",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
