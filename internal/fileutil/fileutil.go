package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// TempPattern is the name pattern used for partially written files. Staging
// cleanup removes stale files that match it.
const TempPattern = ".wallp-*.part"

// MoveFile moves src to dst so that dst is either the previous file or the
// complete new one, never a partial write. A plain rename is tried first; when
// src and dst live on different filesystems the data is copied into a sibling
// temp file of dst, verified, and renamed into place. src is removed on
// success. On failure no partial file is left next to dst.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("rename %s: %w", filepath.Base(src), err)
	}

	tmp, err := copyToSibling(src, dst)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", dst, err)
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove source %s: %w", src, err)
	}
	return nil
}

func copyToSibling(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	out, err := os.CreateTemp(filepath.Dir(dst), TempPattern)
	if err != nil {
		return "", fmt.Errorf("create temp beside %s: %w", dst, err)
	}
	tmp := out.Name()
	fail := func(err error) (string, error) {
		_ = out.Close()
		_ = os.Remove(tmp)
		return "", err
	}

	srcHasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err != nil {
		return fail(fmt.Errorf("copy %s: %w", filepath.Base(src), err))
	}
	if written != info.Size() {
		return fail(fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written))
	}
	if err := out.Sync(); err != nil {
		return fail(fmt.Errorf("sync %s: %w", tmp, err))
	}
	if err := verifyContent(out, srcHasher.Sum(nil)); err != nil {
		return fail(err)
	}
	if err := out.Chmod(0o644); err != nil {
		return fail(fmt.Errorf("chmod %s: %w", tmp, err))
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

// verifyContent re-reads f from the start and compares its SHA-256 with want.
func verifyContent(f *os.File, want []byte) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", f.Name(), err)
	}
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return fmt.Errorf("read back %s: %w", f.Name(), err)
	}
	if !bytes.Equal(hasher.Sum(nil), want) {
		return fmt.Errorf("copy hash mismatch: %s differs from source", f.Name())
	}
	return nil
}
