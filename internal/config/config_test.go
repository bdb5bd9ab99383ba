package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"wallp/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_PICTURES_DIR", "")
	t.Setenv("WALLP_PICTURES_DIR", "")
	t.Setenv("WALLP_NTFY_TOPIC", "")
	return home
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	home := isolateEnv(t)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(home, "Pictures"); cfg.Paths.PicturesDir != want {
		t.Fatalf("unexpected pictures dir: got %q want %q", cfg.Paths.PicturesDir, want)
	}
	if want := filepath.Join(home, ".local", "share", "wallp"); cfg.Paths.DataDir != want {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, want)
	}
	if cfg.Scheduler.Frequency != "1h" {
		t.Fatalf("unexpected default frequency %q", cfg.Scheduler.Frequency)
	}
	if len(cfg.Sources.Enabled) != len(config.DefaultSources) {
		t.Fatalf("expected all sources enabled by default, got %v", cfg.Sources.Enabled)
	}
	if cfg.Acquire.Attempts != 3 || cfg.Fetch.Attempts != 3 {
		t.Fatalf("expected 3 outer and 3 inner attempts, got %d/%d", cfg.Acquire.Attempts, cfg.Fetch.Attempts)
	}
	if cfg.StagingDir() != cfg.Paths.PicturesDir {
		t.Fatalf("expected staging dir to be pictures dir outside debug mode, got %q", cfg.StagingDir())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.TempDir, cfg.Paths.PicturesDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	isolateEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "wallp.toml")

	type payload struct {
		Debug     bool `toml:"debug"`
		Scheduler struct {
			Frequency string `toml:"frequency"`
		} `toml:"scheduler"`
		Sources struct {
			Enabled []string `toml:"enabled"`
		} `toml:"sources"`
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
	}
	custom := payload{Debug: true}
	custom.Scheduler.Frequency = "30m"
	custom.Sources.Enabled = []string{" XKCD ", "color", "xkcd", ""}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Scheduler.Frequency != "30m" {
		t.Fatalf("unexpected frequency %q", cfg.Scheduler.Frequency)
	}
	if strings.Join(cfg.Sources.Enabled, ",") != "xkcd,color" {
		t.Fatalf("expected sources to be normalized and deduplicated, got %v", cfg.Sources.Enabled)
	}
	if cfg.StagingDir() != "." {
		t.Fatalf("expected debug staging dir '.', got %q", cfg.StagingDir())
	}
	if cfg.DatabasePath() != filepath.Join(tempDir, "data", "wallp.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"frequency", func(c *config.Config) { c.Scheduler.Frequency = "1000s" }, "scheduler.frequency"},
		{"unit", func(c *config.Config) { c.Scheduler.Frequency = "5y" }, "scheduler.frequency"},
		{"zero", func(c *config.Config) { c.Scheduler.Frequency = "0m" }, "positive count"},
		{"zero padded", func(c *config.Config) { c.Scheduler.Frequency = "000h" }, "positive count"},
		{"source", func(c *config.Config) { c.Sources.Enabled = []string{"flickr"} }, "unknown source"},
		{"backend", func(c *config.Config) { c.Desktop.Backend = "kde" }, "desktop.backend"},
		{"command", func(c *config.Config) { c.Desktop.Backend = "command" }, "desktop.command"},
		{"style", func(c *config.Config) { c.Desktop.Style = "tiled-ish" }, "desktop.style"},
		{"basename", func(c *config.Config) { c.Acquire.Basename = "a/b" }, "acquire.basename"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	isolateEnv(t)
	pictures := t.TempDir()
	t.Setenv("WALLP_PICTURES_DIR", pictures)
	t.Setenv("WALLP_NTFY_TOPIC", " https://ntfy.sh/wallp ")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.PicturesDir != pictures {
		t.Fatalf("expected pictures dir from env, got %q", cfg.Paths.PicturesDir)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/wallp" {
		t.Fatalf("expected trimmed ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Desktop.Backend != "auto" {
		t.Fatalf("unexpected backend %q", cfg.Desktop.Backend)
	}
}
