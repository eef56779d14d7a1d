package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest is the JSON contract handed to the trainer runner: the ordered
// sample list plus the class vocabulary and expected array shape.
type Manifest struct {
	Classes       []string         `json:"classes"`
	FrameCount    int              `json:"frame_count"`
	FeatureLength int              `json:"feature_length"`
	Samples       []ManifestSample `json:"samples"`
	Validation    []ManifestSample `json:"validation,omitempty"`
}

// ManifestSample is one manifest entry. Index mirrors the sample's position
// so prediction output can be joined back to clips.
type ManifestSample struct {
	Index      int    `json:"index"`
	Feature    string `json:"feature"`
	Label      string `json:"label,omitempty"`
	SourcePath string `json:"source_path"`
}

// BuildManifest converts a feature set into the trainer manifest.
func BuildManifest(fs *FeatureSet) Manifest {
	manifest := Manifest{
		Classes:       fs.Catalog.IDs(),
		FrameCount:    fs.FrameCount,
		FeatureLength: fs.FeatureLength,
		Samples:       make([]ManifestSample, len(fs.Samples)),
	}
	for i, sample := range fs.Samples {
		manifest.Samples[i] = ManifestSample{
			Index:      i,
			Feature:    sample.FeaturePath,
			Label:      sample.Label,
			SourcePath: sample.SourcePath,
		}
	}
	return manifest
}

// BuildTrainManifest combines a training set with its validation set. Both
// sets must share the same catalog and array shape.
func BuildTrainManifest(train, val *FeatureSet) Manifest {
	manifest := BuildManifest(train)
	manifest.Validation = make([]ManifestSample, len(val.Samples))
	for i, sample := range val.Samples {
		manifest.Validation[i] = ManifestSample{
			Index:      i,
			Feature:    sample.FeaturePath,
			Label:      sample.Label,
			SourcePath: sample.SourcePath,
		}
	}
	return manifest
}

// WriteManifest writes the manifest as indented JSON at path.
func WriteManifest(path string, manifest Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
