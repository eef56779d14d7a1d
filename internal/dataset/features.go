package dataset

import (
	"fmt"
	"sort"

	"gestrec/internal/npy"
)

// Sample pairs a clip with its cached feature file.
type Sample struct {
	SourcePath  string
	Title       string
	Label       string
	FeaturePath string
}

// FeatureSet is an ordered, shape-checked collection of feature samples for
// one split, ready to hand to the trainer runner.
type FeatureSet struct {
	Samples       []Sample
	Catalog       *Catalog
	FrameCount    int
	FeatureLength int
}

// Assemble validates and orders samples into a FeatureSet. Every label must
// resolve to a catalog class and every feature file must carry exactly
// frameCount x featureLength values; a single bad entry fails the whole
// assembly rather than silently shrinking the set.
func Assemble(samples []Sample, catalog *Catalog, frameCount, featureLength int) (*FeatureSet, error) {
	if catalog == nil || catalog.Len() == 0 {
		return nil, fmt.Errorf("class catalog required")
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no feature samples to assemble")
	}
	if frameCount <= 0 || featureLength <= 0 {
		return nil, fmt.Errorf("invalid expected shape (%d, %d)", frameCount, featureLength)
	}

	ordered := make([]Sample, len(samples))
	copy(ordered, samples)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SourcePath < ordered[j].SourcePath })

	for _, sample := range ordered {
		if !catalog.Contains(sample.Label) {
			return nil, fmt.Errorf("clip %s has unknown label %q", sample.SourcePath, sample.Label)
		}
		rows, cols, err := npy.ReadShape(sample.FeaturePath)
		if err != nil {
			return nil, fmt.Errorf("feature file for %s: %w", sample.SourcePath, err)
		}
		if rows != frameCount || cols != featureLength {
			return nil, fmt.Errorf("feature file %s has shape (%d, %d), expected (%d, %d)",
				sample.FeaturePath, rows, cols, frameCount, featureLength)
		}
	}

	return &FeatureSet{
		Samples:       ordered,
		Catalog:       catalog,
		FrameCount:    frameCount,
		FeatureLength: featureLength,
	}, nil
}

// Labels returns the sample labels in set order.
func (fs *FeatureSet) Labels() []string {
	labels := make([]string, len(fs.Samples))
	for i, sample := range fs.Samples {
		labels[i] = sample.Label
	}
	return labels
}

// ClassIndexes returns each sample's catalog ordinal in set order.
func (fs *FeatureSet) ClassIndexes() []int {
	indexes := make([]int, len(fs.Samples))
	for i, sample := range fs.Samples {
		idx, _ := fs.Catalog.IndexOf(sample.Label)
		indexes[i] = idx
	}
	return indexes
}
