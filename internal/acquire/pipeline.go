package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wallp/internal/config"
	"wallp/internal/fetch"
	"wallp/internal/fileutil"
	"wallp/internal/logging"
	"wallp/internal/preflight"
	"wallp/internal/retry"
	"wallp/internal/services"
	"wallp/internal/sources"
	"wallp/internal/store"
)

// Spec describes one acquisition request. An empty Source picks a random
// enabled source on every attempt.
type Spec struct {
	Source string `json:"source,omitempty"`
	Query  string `json:"query,omitempty"`
	Color  string `json:"color,omitempty"`
	Latest bool   `json:"latest,omitempty"`
}

// Params converts the request into source hints.
func (s Spec) Params() sources.Params {
	return sources.Params{Query: strings.TrimSpace(s.Query), Color: strings.TrimSpace(s.Color), Latest: s.Latest}
}

// Result describes a staged image.
type Result struct {
	Path   string
	Width  int
	Height int
	Record *store.ImageRecord
}

// Registry resolves sources for the pipeline.
type Registry interface {
	Get(name string) sources.Source
	Random() sources.Source
}

// Downloader transfers a URL into a temp file.
type Downloader interface {
	DownloadToTemp(ctx context.Context, url, dir string) (path string, size int64, err error)
}

// ImageReader reports the format and dimensions of an image file.
type ImageReader interface {
	Read(path string) (format string, width, height int, err error)
}

// Persistence is the history store the pipeline and the change flow share.
// Settings supply the minimum image size.
type Persistence interface {
	store.SettingGetter
	HasSeen(ctx context.Context, contextURL string) (bool, error)
	RecordLastChangeTime(ctx context.Context, at time.Time) error
	InsertImage(ctx context.Context, rec *store.ImageRecord) (int64, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTransferBackoff sets the wait between download attempts.
func WithTransferBackoff(d time.Duration) Option {
	return func(p *Pipeline) {
		p.transferBackoff = d
	}
}

// WithAttemptBackoff sets the wait between outer attempts.
func WithAttemptBackoff(d time.Duration) Option {
	return func(p *Pipeline) {
		p.attemptBackoff = d
	}
}

// Pipeline acquires and stages images.
type Pipeline struct {
	registry   Registry
	downloader Downloader
	reader     ImageReader
	store      Persistence
	logger     *slog.Logger

	stagingDir       string
	tempDir          string
	basename         string
	minFreeBytes     uint64
	attempts         int
	transferAttempts int
	attemptBackoff   time.Duration
	transferBackoff  time.Duration
}

// New constructs a pipeline from the acquire, fetch and path settings of cfg.
func New(cfg *config.Config, registry Registry, downloader Downloader, reader ImageReader, st Persistence, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:         registry,
		downloader:       downloader,
		reader:           reader,
		store:            st,
		logger:           logging.NewComponentLogger(logger, "acquire"),
		stagingDir:       cfg.StagingDir(),
		tempDir:          cfg.Paths.TempDir,
		basename:         cfg.Acquire.Basename,
		minFreeBytes:     uint64(max(cfg.Acquire.MinFreeMiB, 0)) << 20,
		attempts:         cfg.Acquire.Attempts,
		transferAttempts: cfg.Fetch.Attempts,
		transferBackoff:  time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetImage acquires, stages and records one image.
func (p *Pipeline) GetImage(ctx context.Context, spec Spec) (*Result, error) {
	pinned := strings.TrimSpace(spec.Source)
	logger := logging.WithContext(ctx, p.logger)

	if pinned != "" && p.registry.Get(pinned) == nil {
		err := services.Wrap(services.ErrNotFound, "acquire", "lookup source", fmt.Sprintf("source %q is unknown or disabled", pinned), nil)
		logger.Error("pinned source unavailable",
			logging.String(logging.FieldSource, pinned),
			logging.String(logging.FieldEventType, "source_lookup_failed"),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		return nil, fmt.Errorf("%w: %w", ErrGetImage, err)
	}

	policy := retry.New(p.attempts, ErrGetImage).WithBackoff(p.attemptBackoff)
	policy.OnRetry = func(attempt int, err error) {
		logger.Warn("acquisition attempt failed; retrying",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(err),
			logging.String(logging.FieldEventType, "acquire_retry"),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
	}

	var result *Result
	err := policy.Run(ctx, func(ctx context.Context, attempt int) (retry.Outcome, error) {
		src := p.pick(pinned)
		if src == nil {
			return retry.FailFast, services.Wrap(services.ErrConfiguration, "acquire", "pick source", "no source is enabled", nil)
		}
		ctx = services.WithSource(ctx, src.Name())
		res, err := p.attempt(ctx, src, spec, attempt)
		switch {
		case err == nil:
			result = res
			return retry.Succeeded, nil
		case errors.Is(err, ErrStaging), errors.Is(err, errPersist):
			return retry.FailFast, err
		case ctx.Err() != nil:
			return retry.FailFast, err
		case pinned != "":
			return retry.FailFast, err
		default:
			return retry.Retry, err
		}
	})
	if err != nil {
		logger.Error("image acquisition failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "acquire_failed"),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "wallpaper not changed"),
		)
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) pick(pinned string) sources.Source {
	if pinned != "" {
		return p.registry.Get(pinned)
	}
	return p.registry.Random()
}

func (p *Pipeline) attempt(ctx context.Context, src sources.Source, spec Spec, attempt int) (*Result, error) {
	name := src.Name()
	logger := logging.WithContext(ctx, p.logger).With(logging.Int(logging.FieldAttempt, attempt))
	logger.Info("acquiring image", logging.String("capability", src.Capability().String()))

	sel, err := src.Acquire(ctx, spec.Params())
	if err != nil {
		return nil, serviceError(name, "select", err)
	}
	if sel == nil {
		return nil, serviceError(name, "select", errors.New("source returned no selection"))
	}
	trace := append(sources.Trace(nil), sel.Trace...)

	var tmpPath, ext string
	switch src.Capability() {
	case sources.Generative:
		if sel.Render == nil {
			return nil, serviceError(name, "generate", errors.New("generative source returned no renderer"))
		}
		tmpPath, ext, err = sel.Render(ctx, p.tempDir)
		if err != nil {
			return nil, serviceError(name, "generate", err)
		}
		trace.Add("generate", "%s image", ext)
	case sources.Resolvable:
		tmpPath, err = p.download(ctx, sel.Candidate.URL, logger)
		if err != nil {
			return nil, serviceError(name, "download", err)
		}
		ext = Extension(sel.Candidate)
		trace.Add("download", sel.Candidate.URL)
	default:
		return nil, serviceError(name, "dispatch", fmt.Errorf("unsupported capability %s", src.Capability()))
	}
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	info, err := os.Stat(tmpPath)
	if err != nil {
		return nil, serviceError(name, "inspect", err)
	}
	format, width, height, err := p.reader.Read(tmpPath)
	if err != nil {
		return nil, serviceError(name, "inspect", err)
	}
	if err := p.checkMinimumSize(ctx, width, height); err != nil {
		logger.Info("image below minimum size",
			logging.Int("width", width),
			logging.Int("height", height),
			logging.String(logging.FieldEventType, "image_undersized"),
		)
		return nil, serviceError(name, "inspect", err)
	}

	dst, err := p.stage(tmpPath, ext)
	if err != nil {
		logger.Error("staging failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "stage_failed"),
			logging.String(logging.FieldErrorHint, "check pictures_dir permissions and free space"),
		)
		return nil, err
	}
	tmpPath = ""
	trace.Add("stage", dst)

	record := &store.ImageRecord{
		Path:        dst,
		URL:         sel.Candidate.URL,
		ContextURL:  sel.Candidate.ContextURL,
		Source:      name,
		Size:        info.Size(),
		Width:       width,
		Height:      height,
		Format:      format,
		Title:       sel.Candidate.Title,
		Description: sel.Candidate.Description,
		Artist:      sel.Candidate.Artist,
		Trace:       traceSteps(trace),
	}
	if _, err := p.store.InsertImage(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %w", errPersist, err)
	}

	logger.Info("image staged",
		logging.String("path", dst),
		logging.Int("width", width),
		logging.Int("height", height),
		logging.Int64("size_bytes", record.Size),
		logging.String(logging.FieldEventType, "image_staged"),
	)
	return &Result{Path: dst, Width: width, Height: height, Record: record}, nil
}

// download fetches url into the temp directory, retrying transient failures
// against the same URL.
func (p *Pipeline) download(ctx context.Context, url string, logger *slog.Logger) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", services.Wrap(services.ErrValidation, "acquire", "download", "selected candidate has no URL", nil)
	}
	policy := retry.New(p.transferAttempts, ErrDownload).WithBackoff(p.transferBackoff)
	policy.OnRetry = func(attempt int, err error) {
		logger.Warn("download failed; retrying",
			logging.String("url", url),
			logging.Int("transfer_attempt", attempt),
			logging.Error(err),
			logging.String(logging.FieldEventType, "download_retry"),
		)
	}

	var path string
	err := policy.Run(ctx, func(ctx context.Context, _ int) (retry.Outcome, error) {
		tmp, _, err := p.downloader.DownloadToTemp(ctx, url, p.tempDir)
		switch {
		case err == nil:
			path = tmp
			return retry.Succeeded, nil
		case ctx.Err() == nil && fetch.IsTransient(err):
			return retry.Retry, err
		default:
			return retry.FailFast, err
		}
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// checkMinimumSize enforces the image.min_width and image.min_height settings.
func (p *Pipeline) checkMinimumSize(ctx context.Context, width, height int) error {
	minWidth := store.SettingOr(ctx, p.store, store.MinWidthSetting, int64(0))
	minHeight := store.SettingOr(ctx, p.store, store.MinHeightSetting, int64(0))
	if int64(width) >= minWidth && int64(height) >= minHeight {
		return nil
	}
	return services.Wrap(services.ErrValidation, "acquire", "check size",
		fmt.Sprintf("%dx%d is below the %dx%d minimum", width, height, minWidth, minHeight), nil)
}

// stage moves src into the staging directory as <basename>.<ext>.
func (p *Pipeline) stage(src, ext string) (string, error) {
	if err := preflight.EnsureFreeSpace(p.stagingDir, p.minFreeBytes); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStaging, err)
	}
	dst := filepath.Join(p.stagingDir, p.basename+"."+ext)
	if abs, err := filepath.Abs(dst); err == nil {
		dst = abs
	}
	if err := fileutil.MoveFile(src, dst); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStaging, err)
	}
	_ = os.Chmod(dst, 0o644)
	return dst, nil
}

func traceSteps(trace sources.Trace) []store.TraceStep {
	steps := make([]store.TraceStep, 0, len(trace))
	for i, step := range trace {
		steps = append(steps, store.TraceStep{Step: i + 1, Name: step.Name, Detail: step.Detail})
	}
	return steps
}
