package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wallp/internal/logging"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	result := CleanStale(context.Background(), []string{"", "   ", "/nonexistent/path/12345"}, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestCleanStaleRemovesOldPartialFiles(t *testing.T) {
	tmpDir := t.TempDir()
	picturesDir := t.TempDir()

	oldPartial := filepath.Join(tmpDir, ".wallp-123.part")
	writeAged(t, oldPartial, 2*time.Hour)
	recentPartial := filepath.Join(tmpDir, ".wallp-456.part")
	writeAged(t, recentPartial, time.Minute)
	oldMove := filepath.Join(picturesDir, ".wallp-789.part")
	writeAged(t, oldMove, 3*time.Hour)
	staged := filepath.Join(picturesDir, "wallp.png")
	writeAged(t, staged, 48*time.Hour)
	if err := os.Mkdir(filepath.Join(tmpDir, ".wallp-dir.part"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	result := CleanStale(context.Background(), []string{tmpDir, picturesDir, tmpDir}, time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removals, got %v", result.Removed)
	}
	for _, gone := range []string{oldPartial, oldMove} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be removed", gone)
		}
	}
	for _, kept := range []string{recentPartial, staged, filepath.Join(tmpDir, ".wallp-dir.part")} {
		if _, err := os.Stat(kept); err != nil {
			t.Fatalf("expected %s to remain: %v", kept, err)
		}
	}
}

func TestListPartial(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, filepath.Join(dir, ".wallp-a.part"), 0)
	writeAged(t, filepath.Join(dir, "wallp.jpg"), 0)

	files, err := ListPartial(dir)
	if err != nil {
		t.Fatalf("ListPartial: %v", err)
	}
	if len(files) != 1 || files[0].Name != ".wallp-a.part" || files[0].Size != int64(len("partial")) {
		t.Fatalf("unexpected partial files %+v", files)
	}

	missing, err := ListPartial(filepath.Join(dir, "missing"))
	if err != nil || missing != nil {
		t.Fatalf("expected nil result for missing dir, got %v %v", missing, err)
	}
}
