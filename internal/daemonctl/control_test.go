package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"wallp/internal/daemonctl"
	"wallp/internal/store"
	"wallp/internal/testsupport"
)

func TestForceKillProcessRejectsUnknownAndSelf(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "wallpd.pid")
	if _, err := daemonctl.ForceKillProcess(missing, 0); err == nil {
		t.Fatal("expected error without pid file or fallback")
	}

	pidPath := filepath.Join(t.TempDir(), "wallpd.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	_, err := daemonctl.ForceKillProcess(pidPath, 0)
	if err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal to kill self, got %v", err)
	}
}

func TestIsDaemonUnavailable(t *testing.T) {
	if !daemonctl.IsDaemonUnavailable(syscall.ECONNREFUSED) {
		t.Fatal("expected ECONNREFUSED to mean unavailable")
	}
	if !daemonctl.IsDaemonUnavailable(os.ErrNotExist) {
		t.Fatal("expected ErrNotExist to mean unavailable")
	}
	if daemonctl.IsDaemonUnavailable(errors.New("boom")) {
		t.Fatal("expected unrelated error to be available")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(filepath.Join(cfg.Paths.DataDir, "none.sock"), cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStatusSnapshotFallsBackToStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	changed := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	if err := st.RecordLastChangeTime(ctx, changed); err != nil {
		t.Fatalf("RecordLastChangeTime: %v", err)
	}
	if err := st.RecordLastSource(ctx, "bing"); err != nil {
		t.Fatalf("RecordLastSource: %v", err)
	}
	if err := st.SaveJob(ctx, store.JobRecord{ID: "wallpaper", Frequency: "1h", Target: "change", Args: "{}", CreatedAt: changed}); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	resp, err := daemonctl.BuildStatusSnapshot(ctx, filepath.Join(cfg.Paths.DataDir, "none.sock"), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if resp.Running {
		t.Fatal("expected offline snapshot")
	}
	if !resp.LastChangeTime.Equal(changed) || resp.LastSource != "bing" {
		t.Fatalf("unexpected last change %v from %q", resp.LastChangeTime, resp.LastSource)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].Frequency != "1h" {
		t.Fatalf("unexpected jobs %+v", resp.Jobs)
	}
	if resp.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected database path %q", resp.DatabasePath)
	}
}
