package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"wallp/internal/acquire"
	"wallp/internal/config"
	"wallp/internal/logging"
	"wallp/internal/notifications"
	"wallp/internal/preflight"
	"wallp/internal/progress"
	"wallp/internal/scheduler"
	"wallp/internal/sources"
	"wallp/internal/staging"
	"wallp/internal/store"
)

const (
	// WallpaperJob is the scheduler id shared by timed and manual changes.
	WallpaperJob = "wallpaper"
	// ChangeTarget is the registered scheduler target that changes the wallpaper.
	ChangeTarget = "change"

	staleDownloadAge = 24 * time.Hour
	shutdownTimeout  = 30 * time.Second
)

// Changer runs one wallpaper change.
type Changer interface {
	Change(ctx context.Context, spec acquire.Spec, reporter progress.Reporter) (string, error)
}

// SourceLister describes the registered image sources.
type SourceLister interface {
	List() []sources.Info
}

// Daemon coordinates the scheduler and change flow and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	scheduler *scheduler.Scheduler
	changer   Changer
	sources   SourceLister
	notifier  notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	mu   sync.Mutex
	last LastChange
}

// LastChange describes the most recent change attempt run by this process.
type LastChange struct {
	Path  string    `json:"path,omitempty"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at,omitzero"`
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	LockFilePath   string
	DatabasePath   string
	LogPath        string
	Jobs           []scheduler.Job
	Stats          scheduler.Stats
	Last           LastChange
	LastChangeTime time.Time
	LastSource     string
}

// New constructs a daemon with initialized dependencies and registers the
// change target on the scheduler.
func New(cfg *config.Config, st *store.Store, sched *scheduler.Scheduler, changer Changer, lister SourceLister, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || sched == nil || changer == nil {
		return nil, errors.New("daemon requires config, store, scheduler, and changer")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		scheduler: sched,
		changer:   changer,
		sources:   lister,
		notifier:  notifications.NewService(cfg),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	sched.RegisterTarget(ChangeTarget, d.changeTarget)
	return d, nil
}

// Start acquires the daemon lock, starts the scheduler and installs the
// configured schedule when none is persisted.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.stopped.Load() {
		return errors.New("daemon was stopped; restart the process")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another wallp daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.sweep()
	d.preflight()

	if err := d.scheduler.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if d.cfg.Scheduler.Enabled && !d.scheduler.JobExists(WallpaperJob) {
		if err := d.scheduler.AddJob(d.ctx, WallpaperJob, d.cfg.Scheduler.Frequency, ChangeTarget, "{}"); err != nil {
			logging.WarnWithContext(d.logger, "default schedule not installed", "schedule_install_failed",
				logging.Error(err),
				logging.String("frequency", d.cfg.Scheduler.Frequency),
				logging.String(logging.FieldImpact, "wallpaper only changes on request"),
			)
		}
	}

	d.running.Store(true)
	d.logger.Info("wallp daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("jobs", len(d.scheduler.Jobs())),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) sweep() {
	result := staging.CleanStale(d.ctx, []string{d.cfg.Paths.TempDir, d.cfg.StagingDir()}, staleDownloadAge, d.logger)
	if len(result.Removed) > 0 {
		d.logger.Info("removed stale partial downloads",
			logging.Int("removed", len(result.Removed)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
}

func (d *Daemon) preflight() {
	for _, result := range preflight.Failed(preflight.RunAll(d.ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "changes using this resource may fail"),
		)
	}
}

// Stop shuts down the scheduler, waiting for a running change, and releases
// the lock. A stopped daemon cannot be started again.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.scheduler.Shutdown(ctx); err != nil {
		d.logger.Warn("scheduler shutdown interrupted", logging.Error(err))
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.stopped.Store(true)
	d.logger.Info("wallp daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ChangeNow queues a manual change on the wallpaper job. When progressPath is
// set the run reports its states to the listener at that path. A request
// arriving while a change is running and another is pending returns
// scheduler.ErrCoalesced.
func (d *Daemon) ChangeNow(spec acquire.Spec, progressPath string) error {
	if !d.running.Load() {
		return errors.New("daemon not running")
	}
	progressPath = strings.TrimSpace(progressPath)
	err := d.scheduler.Submit(WallpaperJob, func(ctx context.Context) error {
		return d.runChange(ctx, spec, progressPath)
	})
	if err != nil {
		return err
	}
	d.logger.Info("manual change queued",
		logging.String(logging.FieldSource, spec.Source),
		logging.Bool("progress", progressPath != ""),
		logging.String(logging.FieldEventType, "change_queued"),
	)
	return nil
}

func (d *Daemon) changeTarget(ctx context.Context, args string) error {
	var spec acquire.Spec
	if trimmed := strings.TrimSpace(args); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &spec); err != nil {
			return fmt.Errorf("decode change arguments: %w", err)
		}
	}
	return d.runChange(ctx, spec, "")
}

func (d *Daemon) runChange(ctx context.Context, spec acquire.Spec, progressPath string) error {
	reporter := progress.Discard
	if progressPath != "" {
		timeout := time.Duration(d.cfg.Progress.WriteTimeoutSeconds) * time.Second
		conn, err := progress.Dial(ctx, progressPath, timeout, d.logger)
		if err != nil {
			logging.WarnWithContext(d.logger, "progress listener unreachable", "progress_dial_failed",
				logging.String("socket", progressPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "change runs without progress reports"),
			)
		} else {
			defer conn.Close()
			reporter = conn
		}
	}

	path, err := d.changer.Change(ctx, spec, reporter)

	d.mu.Lock()
	d.last = LastChange{Path: path, At: time.Now().UTC()}
	if err != nil {
		d.last.Error = err.Error()
	}
	d.mu.Unlock()
	return err
}

// SetSchedule installs or replaces the timed wallpaper job.
func (d *Daemon) SetSchedule(ctx context.Context, frequency string, spec acquire.Spec) error {
	args, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encode change arguments: %w", err)
	}
	if err := d.scheduler.AddJob(ctx, WallpaperJob, strings.TrimSpace(frequency), ChangeTarget, string(args)); err != nil {
		return err
	}
	if err := d.notifier.Publish(ctx, notifications.EventScheduleUpdated, notifications.Payload{"frequency": frequency}); err != nil {
		d.logger.Debug("schedule notification failed", logging.Error(err))
	}
	return nil
}

// RemoveSchedule deletes the timed wallpaper job.
func (d *Daemon) RemoveSchedule(ctx context.Context) error {
	return d.scheduler.RemoveJob(ctx, WallpaperJob)
}

// Schedule lists scheduled jobs.
func (d *Daemon) Schedule() []scheduler.Job {
	return d.scheduler.Jobs()
}

// History returns the most recently staged images, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]store.ImageRecord, error) {
	return d.store.RecentImages(ctx, limit)
}

// Sources describes the registered image sources.
func (d *Daemon) Sources() []sources.Info {
	if d.sources == nil {
		return nil
	}
	return d.sources.List()
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	last := d.last
	d.mu.Unlock()

	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		DatabasePath: d.store.Path(),
		LogPath:      d.LogPath(),
		Jobs:         d.scheduler.Jobs(),
		Stats:        d.scheduler.Stats(),
		Last:         last,
	}
	if at, err := d.store.LastChangeTime(ctx); err == nil {
		status.LastChangeTime = at
	} else {
		d.logger.Debug("last change time unavailable", logging.Error(err))
	}
	if source, err := d.store.LastSource(ctx); err == nil {
		status.LastSource = source
	}
	return status
}
