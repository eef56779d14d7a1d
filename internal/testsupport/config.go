package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"gestrec/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.VideoDir = filepath.Join(base, "videos")
	cfgVal.Paths.FrameDir = filepath.Join(base, "frames")
	cfgVal.Paths.FeatureDir = filepath.Join(base, "features")
	cfgVal.Paths.ModelDir = filepath.Join(base, "models")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ClassFile = filepath.Join(base, "classes.csv")

	if err := os.MkdirAll(cfgVal.Paths.VideoDir, 0o755); err != nil {
		t.Fatalf("mkdir video dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFramesPerVideo overrides the per-clip frame count on the test config.
func WithFramesPerVideo(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.FramesPerVideo = n
	}
}

// WithFeatureLength overrides the backbone feature vector length on the test config.
func WithFeatureLength(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backbone.FeatureLength = n
	}
}

// WithMaxClasses caps the class catalog on the test config.
func WithMaxClasses(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MaxClasses = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default gestrec external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "mediainfo", "gestrec-backbone", "gestrec-trainer"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.FrameDir)
}
