package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"wallp/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Network endpoints point at unroutable defaults so tests must override them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.PicturesDir = filepath.Join(base, "pictures")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")
	cfgVal.Desktop.Backend = "none"
	cfgVal.Fetch.RequestsPerSecond = 0
	cfgVal.Fetch.TimeoutSeconds = 5
	cfgVal.Acquire.MinFreeMiB = 0
	cfgVal.Progress.WriteTimeoutSeconds = 2
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithSources restricts the enabled sources.
func WithSources(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources.Enabled = append([]string(nil), names...)
	}
}

// WithSchedulerDisabled keeps the daemon from installing the default schedule.
func WithSchedulerDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.Enabled = false
	}
}

// WithBaseURLs points the xkcd and bing sources at a test server.
func WithBaseURLs(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources.XKCDBaseURL = baseURL
		b.cfg.Sources.BingBaseURL = baseURL
		b.cfg.Sources.BingArchiveURL = baseURL + "/HPImageArchive.aspx?format=js&idx=0&n=8"
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. Each stub appends its arguments to <name>.args in
// the bin directory.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			target := filepath.Join(binDir, name)
			script := []byte("#!/bin/sh\necho \"$@\" >> \"" + target + ".args\"\nexit 0\n")
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
