package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteClassFile writes a class catalog CSV with a header row and one line
// per class identifier.
func WriteClassFile(t testing.TB, path string, classes ...string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	content := "class,name\n"
	for _, class := range classes {
		content += fmt.Sprintf("%s,%s\n", class, class)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write class file: %v", err)
	}
}

// WriteFrames populates dir with count sequentially numbered frame images
// matching the extractor's frame-%03d.jpg naming.
func WriteFrames(t testing.TB, dir string, count int) {
	t.Helper()

	for i := 1; i <= count; i++ {
		WriteFile(t, filepath.Join(dir, fmt.Sprintf("frame-%03d.jpg", i)), 64)
	}
}
