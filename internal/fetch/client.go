package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"wallp/internal/config"
	"wallp/internal/fileutil"
	"wallp/internal/services"
)

var (
	// ErrTimeout marks requests that exceeded the deadline.
	ErrTimeout = fmt.Errorf("fetch: %w", services.ErrTimeout)
	// ErrTransfer marks connection failures, bad statuses and truncated bodies.
	ErrTransfer = fmt.Errorf("fetch: transfer failed: %w", services.ErrTransient)
	// ErrTooLarge marks downloads over the image size cap. It is not transient.
	ErrTooLarge = fmt.Errorf("fetch: %w", services.ErrValidation)
)

const (
	// maxPageBytes bounds pages and JSON documents read into memory.
	maxPageBytes = 8 << 20
	// DefaultMaxImageBytes bounds a single image download.
	DefaultMaxImageBytes = 64 << 20
)

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs rate-limited, time-bounded HTTP requests.
type Client struct {
	doer      HTTPDoer
	limiter   *rate.Limiter
	userAgent string
	timeout   time.Duration
	maxImage  int64
}

// New builds a client from the fetch section of cfg.
func New(cfg *config.Config) *Client {
	if cfg == nil {
		return NewClient(http.DefaultClient, "", 0, 0)
	}
	return NewClient(
		&http.Client{},
		cfg.Fetch.UserAgent,
		cfg.Fetch.RequestsPerSecond,
		time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second,
	)
}

// NewClient constructs a client. rps <= 0 disables rate limiting; timeout <= 0
// leaves requests bounded only by the caller's context.
func NewClient(doer HTTPDoer, userAgent string, rps float64, timeout time.Duration) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Client{
		doer:      doer,
		limiter:   limiter,
		userAgent: strings.TrimSpace(userAgent),
		timeout:   timeout,
		maxImage:  DefaultMaxImageBytes,
	}
}

// WithMaxImageBytes overrides the download size cap. n <= 0 restores the
// default.
func (c *Client) WithMaxImageBytes(n int64) *Client {
	if n <= 0 {
		n = DefaultMaxImageBytes
	}
	c.maxImage = n
	return c
}

// Get returns the body of url. Bodies larger than 8 MiB are rejected.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes+1))
	if err != nil {
		return nil, classify(ctx, url, "read body", err)
	}
	if len(data) > maxPageBytes {
		return nil, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrTransfer, url, maxPageBytes)
	}
	return data, nil
}

// GetJSON decodes the JSON body of url into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	data, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return services.Wrap(services.ErrValidation, "fetch", "decode json", url, err)
	}
	return nil
}

// Download streams url into w and returns the number of bytes written. A
// response shorter than its declared Content-Length is a transfer error; one
// larger than the image cap fails with ErrTooLarge.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > c.maxImage {
		return 0, fmt.Errorf("%w: %s: declared %d bytes exceeds %d", ErrTooLarge, url, resp.ContentLength, c.maxImage)
	}
	written, err := io.Copy(w, io.LimitReader(resp.Body, c.maxImage+1))
	if err != nil {
		return written, classify(ctx, url, "download", err)
	}
	if written > c.maxImage {
		return written, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrTooLarge, url, c.maxImage)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return written, fmt.Errorf("%w: %s: got %d of %d bytes", ErrTransfer, url, written, resp.ContentLength)
	}
	return written, nil
}

// DownloadToTemp downloads url into a new temp file in dir and returns its
// path. The temp file is removed when the download fails.
func (c *Client) DownloadToTemp(ctx context.Context, url, dir string) (string, int64, error) {
	file, err := os.CreateTemp(dir, fileutil.TempPattern)
	if err != nil {
		return "", 0, services.Wrap(services.ErrConfiguration, "fetch", "create temp file", dir, err)
	}
	path := file.Name()

	written, err := c.Download(ctx, url, file)
	closeErr := file.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("%w: close %s: %w", ErrTransfer, path, closeErr)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return path, written, nil
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(ctx, url, "rate limit", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "fetch", "build request", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, classify(ctx, url, "request", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrTransfer, url, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func classify(ctx context.Context, url, op string, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		return fmt.Errorf("fetch %s %s: %w", op, url, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s %s: %w", ErrTimeout, op, url, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrTransfer, op, url, err)
}

// IsTransient reports whether err is a timeout or transfer failure worth
// retrying against the same URL.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransfer)
}
