package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"wallp/internal/acquire"
	"wallp/internal/changer"
	"wallp/internal/config"
	"wallp/internal/daemon"
	"wallp/internal/imageinfo"
	"wallp/internal/ipc"
	"wallp/internal/logging"
	"wallp/internal/notifications"
	"wallp/internal/scheduler"
	"wallp/internal/sources"
	"wallp/internal/store"
	"wallp/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

// setupCLITestEnv runs a daemon in-process with only the color source so
// changes complete without network access.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	isolateHome(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSources("color"), testsupport.WithSchedulerDisabled())
	cfg.Sources.ColorWidth = 64
	cfg.Sources.ColorHeight = 48

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	registry := sources.NewRegistry(cfg.Sources.Enabled, sources.NewColor(cfg.Sources.ColorWidth, cfg.Sources.ColorHeight))
	pipeline := acquire.New(cfg, registry, &testsupport.FakeDownloader{}, imageinfo.NewReader(), st, logger)
	ch := changer.New(pipeline, nil, st, notifications.NewService(cfg), cfg.Desktop.Style, logger)

	d, err := daemon.New(cfg, st, scheduler.New(st, logger), ch, registry, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.DataDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, cfg, d, logger, nil)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})

	return &cliTestEnv{cfg: cfg, store: st, daemon: d, socketPath: socketPath, configPath: configPath}
}

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_PICTURES_DIR", "")
	t.Setenv("WALLP_PICTURES_DIR", "")
	t.Setenv("WALLP_NTFY_TOPIC", "")
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
