package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"wallp/internal/fetch"
	"wallp/internal/fileutil"
	"wallp/internal/sources"
)

// StaticSource is a resolvable source backed by a fixed candidate list. It
// runs the real history and in-batch filters, so deduplication behaves as it
// does for the built-in sources.
type StaticSource struct {
	SourceName string
	Candidates []sources.Candidate
	Seen       sources.SeenChecker
	// Err, when set, is returned by every Acquire call.
	Err error

	mu    sync.Mutex
	calls int
}

func (s *StaticSource) Name() string { return s.SourceName }

func (s *StaticSource) Capability() sources.Capability { return sources.Resolvable }

func (s *StaticSource) Acquire(ctx context.Context, params sources.Params) (*sources.Selection, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var trace sources.Trace
	trace.Add("list", "%d candidates", len(s.Candidates))
	set := sources.NewImageSet(s.SourceName).AddDBFilter(s.Seen).AddListFilter()
	set.Add(s.Candidates...)
	picked, err := set.Select(ctx, &trace)
	if err != nil {
		return nil, err
	}
	return &sources.Selection{Candidate: *picked, Trace: trace}, nil
}

// Calls returns how many times Acquire ran.
func (s *StaticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Candidates builds n candidates named <prefix>-1..n with PNG URLs.
func Candidates(prefix string, n int) []sources.Candidate {
	out := make([]sources.Candidate, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, sources.Candidate{
			ContextURL: fmt.Sprintf("https://example.test/%s/%d/", prefix, i),
			URL:        fmt.Sprintf("https://img.example.test/%s-%d.png?size=large", prefix, i),
			Title:      fmt.Sprintf("%s %d", prefix, i),
		})
	}
	return out
}

// FakeDownloader writes Body into a temp file for every request. The first
// Failures calls fail with fetch.ErrTransfer.
type FakeDownloader struct {
	Body     []byte
	Failures int
	// Err, when set, is returned by every call after the scripted failures.
	Err error

	mu   sync.Mutex
	urls []string
}

func (d *FakeDownloader) DownloadToTemp(_ context.Context, url, dir string) (string, int64, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	call := len(d.urls)
	d.mu.Unlock()

	if call <= d.Failures {
		return "", 0, fmt.Errorf("%w: %s: connection reset", fetch.ErrTransfer, url)
	}
	if d.Err != nil {
		return "", 0, d.Err
	}
	file, err := os.CreateTemp(dir, fileutil.TempPattern)
	if err != nil {
		return "", 0, err
	}
	n, err := file.Write(d.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(file.Name())
		return "", 0, errors.Join(fetch.ErrTransfer, err)
	}
	return file.Name(), int64(n), nil
}

// URLs returns the requested URLs in call order.
func (d *FakeDownloader) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}
