package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Clip is one discovered video file in the corpus tree.
type Clip struct {
	SourcePath  string
	Title       string
	Label       string
	Split       string
	Fingerprint string
}

// Discover walks videoDir expecting <split>/<label>/<clip>.<ext> and
// returns clips in sorted source-path order. Files with other extensions
// and anything not nested exactly two levels deep are skipped.
func Discover(videoDir string, extensions []string) ([]Clip, error) {
	root, err := filepath.Abs(videoDir)
	if err != nil {
		return nil, fmt.Errorf("resolve video directory: %w", err)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("video directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("video directory %s is not a directory", root)
	}

	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extSet[ext] = struct{}{}
	}

	var clips []Clip
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if len(extSet) > 0 {
			if _, ok := extSet[strings.ToLower(filepath.Ext(path))]; !ok {
				return nil
			}
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) != 3 {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		base := filepath.Base(path)
		clips = append(clips, Clip{
			SourcePath:  path,
			Title:       strings.TrimSuffix(base, filepath.Ext(base)),
			Label:       parts[1],
			Split:       parts[0],
			Fingerprint: fingerprint(path, info),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk video directory: %w", err)
	}

	sort.Slice(clips, func(i, j int) bool { return clips[i].SourcePath < clips[j].SourcePath })
	return clips, nil
}

// fingerprint derives a stable identity for a clip from its path, size and
// modification time. Re-encoding or replacing a clip changes the
// fingerprint so it is picked up as new work.
func fingerprint(path string, info fs.FileInfo) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}
