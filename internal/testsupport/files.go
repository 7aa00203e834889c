package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile places content at the target path, creating parent directories.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if len(content) == 0 {
		content = []byte{0x42}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ImageBytes returns deterministic fake image content distinguishable per
// label, so tests can assert which upload a stored file came from.
func ImageBytes(label string) []byte {
	return []byte(fmt.Sprintf("fake-image:%s", label))
}
