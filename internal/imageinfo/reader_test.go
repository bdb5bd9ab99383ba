package imageinfo_test

import (
	"errors"
	"path/filepath"
	"testing"

	"wallp/internal/imageinfo"
	"wallp/internal/testsupport"
)

func TestReadPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallp.png")
	testsupport.WritePNG(t, path, 32, 18)

	format, width, height, err := imageinfo.NewReader().Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if format != "png" || width != 32 || height != 18 {
		t.Fatalf("unexpected info %s %dx%d", format, width, height)
	}
}

func TestReadRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.jpg")
	testsupport.WriteFile(t, path, 64)

	_, _, _, err := imageinfo.NewReader().Read(path)
	if !errors.Is(err, imageinfo.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := imageinfo.ReadFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
