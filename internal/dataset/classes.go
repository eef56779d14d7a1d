package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Class is one catalog entry. ID matches the label directory name in the
// video tree; Name is an optional human-readable description.
type Class struct {
	ID   string
	Name string
}

// Catalog holds the ordered class list the model trains against. Classes
// dropped by the max_classes cap stay known as truncated so callers can
// exclude their clips instead of treating the labels as unknown.
type Catalog struct {
	classes   []Class
	index     map[string]int
	truncated map[string]struct{}
}

// LoadCatalog reads the class catalog CSV at path. The file carries a
// header row followed by one class per line (id, optional display name).
// When maxClasses is positive the catalog keeps only the first maxClasses
// entries in sorted ID order, mirroring how the corpus is truncated for
// smaller experiments.
func LoadCatalog(path string, maxClasses int) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("class file %s is empty", path)
		}
		return nil, fmt.Errorf("read class file header: %w", err)
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) == "" {
		return nil, fmt.Errorf("class file %s has no columns", path)
	}

	var classes []Class
	seen := make(map[string]struct{})
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read class file: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		id := strings.TrimSpace(record[0])
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate class %q in %s", id, path)
		}
		seen[id] = struct{}{}
		class := Class{ID: id}
		if len(record) > 1 {
			class.Name = strings.TrimSpace(record[1])
		}
		classes = append(classes, class)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("class file %s lists no classes", path)
	}

	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	truncated := make(map[string]struct{})
	if maxClasses > 0 && maxClasses < len(classes) {
		for _, class := range classes[maxClasses:] {
			truncated[class.ID] = struct{}{}
		}
		classes = classes[:maxClasses]
	}

	index := make(map[string]int, len(classes))
	for i, class := range classes {
		index[class.ID] = i
	}
	return &Catalog{classes: classes, index: index, truncated: truncated}, nil
}

// Len returns the number of classes in the catalog.
func (c *Catalog) Len() int {
	return len(c.classes)
}

// Classes returns the ordered class list.
func (c *Catalog) Classes() []Class {
	out := make([]Class, len(c.classes))
	copy(out, c.classes)
	return out
}

// IDs returns the ordered class identifiers.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.classes))
	for i, class := range c.classes {
		ids[i] = class.ID
	}
	return ids
}

// Contains reports whether label is a catalog class.
func (c *Catalog) Contains(label string) bool {
	_, ok := c.index[label]
	return ok
}

// Truncated reports whether label was listed in the class file but dropped
// by the max_classes cap.
func (c *Catalog) Truncated(label string) bool {
	_, ok := c.truncated[label]
	return ok
}

// Known reports whether label appears anywhere in the class file, kept or
// truncated.
func (c *Catalog) Known(label string) bool {
	return c.Contains(label) || c.Truncated(label)
}

// IndexOf returns the ordinal of label in the catalog.
func (c *Catalog) IndexOf(label string) (int, bool) {
	idx, ok := c.index[label]
	return idx, ok
}
