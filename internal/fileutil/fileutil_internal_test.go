package fileutil

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyToSiblingVerifiesContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "download.part")
	if err := os.WriteFile(src, []byte("image bytes"), 0o600); err != nil {
		t.Fatalf("write src: %v", err)
	}

	tmp, err := copyToSibling(src, filepath.Join(dir, "wallp.png"))
	if err != nil {
		t.Fatalf("copyToSibling failed: %v", err)
	}
	if filepath.Dir(tmp) != dir {
		t.Fatalf("expected temp file beside destination, got %q", tmp)
	}
	data, err := os.ReadFile(tmp)
	if err != nil || string(data) != "image bytes" {
		t.Fatalf("unexpected copy %q (%v)", data, err)
	}
	info, err := os.Stat(tmp)
	if err != nil || info.Mode().Perm() != 0o644 {
		t.Fatalf("expected 0644 temp file, got %v (%v)", info.Mode(), err)
	}
}

func TestVerifyContentDetectsMismatch(t *testing.T) {
	file, err := os.CreateTemp(t.TempDir(), TempPattern)
	if err != nil {
		t.Fatalf("create temp: %v", err)
	}
	defer file.Close()
	if _, err := file.WriteString("written"); err != nil {
		t.Fatalf("write: %v", err)
	}

	good := sha256.Sum256([]byte("written"))
	if err := verifyContent(file, good[:]); err != nil {
		t.Fatalf("expected matching content to verify, got %v", err)
	}
	bad := sha256.Sum256([]byte("source"))
	err = verifyContent(file, bad[:])
	if err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
}
