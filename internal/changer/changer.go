package changer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wallp/internal/acquire"
	"wallp/internal/desktop"
	"wallp/internal/logging"
	"wallp/internal/notifications"
	"wallp/internal/progress"
	"wallp/internal/services"
)

// ErrChangeWP is returned when no image could be acquired.
var ErrChangeWP = errors.New("change wallpaper failed")

// Acquirer stages an image for a change request.
type Acquirer interface {
	GetImage(ctx context.Context, spec acquire.Spec) (*acquire.Result, error)
}

// ChangeRecorder stores the time and source of the last successful change.
type ChangeRecorder interface {
	RecordLastChangeTime(ctx context.Context, at time.Time) error
	RecordLastSource(ctx context.Context, source string) error
}

// Changer orchestrates wallpaper changes.
type Changer struct {
	acquirer Acquirer
	desktop  desktop.Desktop
	recorder ChangeRecorder
	notifier notifications.Service
	style    string
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Changer. style is the configured desktop style; "auto"
// derives it from the image dimensions.
func New(acquirer Acquirer, dt desktop.Desktop, recorder ChangeRecorder, notifier notifications.Service, style string, logger *slog.Logger) *Changer {
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Changer{
		acquirer: acquirer,
		desktop:  dt,
		recorder: recorder,
		notifier: notifier,
		style:    style,
		logger:   logging.NewComponentLogger(logger, "changer"),
		now:      time.Now,
	}
}

// Change runs one change and returns the staged path. reporter may be nil.
func (c *Changer) Change(ctx context.Context, spec acquire.Spec, reporter progress.Reporter) (string, error) {
	if reporter == nil {
		reporter = progress.Discard
	}
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, c.logger)
	started := c.now()

	c.report(ctx, logger, reporter, progress.Changing, "")

	res, err := c.acquirer.GetImage(ctx, spec)
	if err != nil {
		c.report(ctx, logger, reporter, progress.Error, "")
		c.notify(ctx, logger, notifications.EventChangeFailed, notifications.Payload{
			"source": spec.Source,
			"error":  err,
		})
		return "", fmt.Errorf("%w: %w", ErrChangeWP, err)
	}

	style := desktop.ComputeStyle(c.style, res.Width, res.Height)
	if c.desktop != nil {
		if err := c.desktop.Apply(ctx, res.Path, style); err != nil {
			logger.Error("desktop apply failed",
				logging.String("path", res.Path),
				logging.String("style", style),
				logging.String("backend", c.desktop.Name()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "desktop_apply_failed"),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "image staged but desktop background unchanged"),
			)
		}
	}

	var title, source string
	if res.Record != nil {
		title, source = res.Record.Title, res.Record.Source
	}
	c.record(ctx, logger, source)

	c.report(ctx, logger, reporter, progress.Ready, res.Path)

	c.notify(ctx, logger, notifications.EventWallpaperChanged, notifications.Payload{
		"source": source,
		"title":  title,
		"path":   res.Path,
	})

	logger.Info("wallpaper changed",
		logging.String("path", res.Path),
		logging.String("style", style),
		logging.String(logging.FieldSource, source),
		logging.Duration("elapsed", c.now().Sub(started)),
		logging.String(logging.FieldEventType, "wallpaper_changed"),
	)
	return res.Path, nil
}

func (c *Changer) record(ctx context.Context, logger *slog.Logger, source string) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordLastChangeTime(ctx, c.now().UTC()); err != nil {
		logging.WarnWithContext(logger, "failed to record last change time", "change_time_not_recorded",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status shows a stale last change time"),
		)
	}
	if source == "" {
		return
	}
	if err := c.recorder.RecordLastSource(ctx, source); err != nil {
		logging.WarnWithContext(logger, "failed to record last source", "change_source_not_recorded",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status shows a stale last source"),
		)
	}
}

func (c *Changer) report(ctx context.Context, logger *slog.Logger, reporter progress.Reporter, state progress.State, path string) {
	err := reporter.Send(ctx, state, path)
	switch {
	case err == nil:
	case errors.Is(err, progress.ErrDetached):
		logger.Debug("progress report dropped", logging.String("state", string(state)), logging.Error(err))
	default:
		logger.Warn("progress report failed",
			logging.String("state", string(state)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "progress_report_failed"),
		)
	}
}

func (c *Changer) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		logger.Warn("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}
