package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"wallp/internal/acquire"
	"wallp/internal/changer"
	"wallp/internal/config"
	"wallp/internal/daemon"
	"wallp/internal/desktop"
	"wallp/internal/fetch"
	"wallp/internal/imageinfo"
	"wallp/internal/ipc"
	"wallp/internal/logging"
	"wallp/internal/notifications"
	"wallp/internal/preflight"
	"wallp/internal/scheduler"
	"wallp/internal/sources"
	"wallp/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SocketPath overrides the config's IPC socket location.
	SocketPath  string
}

// Run starts the wallp daemon and blocks until it is signalled or stopped
// over IPC.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", cfg.LogPath()},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	client := fetch.New(cfg)
	registry := sources.NewBuiltinRegistry(cfg, client, st, logger)
	pipeline := acquire.New(cfg, registry, client, imageinfo.NewReader(), st, logger)

	dt, err := desktop.New(cfg.Desktop)
	if err != nil {
		logging.WarnWithContext(logger, "desktop backend unavailable", "desktop_backend_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check desktop.backend and desktop.command"),
			logging.String(logging.FieldImpact, "wallpapers are staged but not applied"),
		)
	}

	notifier := notifications.NewService(cfg)
	ch := changer.New(pipeline, dt, st, notifier, cfg.Desktop.Style, logger)
	sched := scheduler.New(st, logger)

	d, err := daemon.New(cfg, st, sched, ch, registry, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, cfg, d, logger, cancel)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "another wallp daemon may hold the lock"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("wallp daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("desktop_backend", cfg.Desktop.Backend),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
		logging.Any("sources", cfg.Sources.Enabled),
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs, logging.Bool(dep.Command+"_available", dep.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
