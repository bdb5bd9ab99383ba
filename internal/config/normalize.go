package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScheduler()
	c.normalizeSources()
	c.normalizeFetch()
	c.normalizeAcquire()
	c.normalizeDesktop()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("WALLP_PICTURES_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.PicturesDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.PicturesDir) == "" {
		c.Paths.PicturesDir = defaultPicturesDir()
	}
	if c.Paths.PicturesDir, err = expandPath(c.Paths.PicturesDir); err != nil {
		return fmt.Errorf("paths.pictures_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScheduler() {
	c.Scheduler.Frequency = strings.TrimSpace(c.Scheduler.Frequency)
	if c.Scheduler.Frequency == "" {
		c.Scheduler.Frequency = defaultFrequency
	}
}

func (c *Config) normalizeSources() {
	if len(c.Sources.Enabled) == 0 {
		c.Sources.Enabled = append([]string(nil), DefaultSources...)
	} else {
		names := make([]string, 0, len(c.Sources.Enabled))
		seen := make(map[string]struct{}, len(c.Sources.Enabled))
		for _, name := range c.Sources.Enabled {
			normalized := strings.ToLower(strings.TrimSpace(name))
			if normalized == "" {
				continue
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			names = append(names, normalized)
		}
		c.Sources.Enabled = names
	}
	c.Sources.XKCDBaseURL = strings.TrimRight(strings.TrimSpace(c.Sources.XKCDBaseURL), "/")
	if c.Sources.XKCDBaseURL == "" {
		c.Sources.XKCDBaseURL = defaultXKCDBaseURL
	}
	c.Sources.BingBaseURL = strings.TrimRight(strings.TrimSpace(c.Sources.BingBaseURL), "/")
	if c.Sources.BingBaseURL == "" {
		c.Sources.BingBaseURL = defaultBingBaseURL
	}
	c.Sources.BingArchiveURL = strings.TrimSpace(c.Sources.BingArchiveURL)
	if c.Sources.BingArchiveURL == "" {
		c.Sources.BingArchiveURL = defaultBingArchiveURL
	}
	if c.Sources.ColorWidth <= 0 {
		c.Sources.ColorWidth = defaultColorWidth
	}
	if c.Sources.ColorHeight <= 0 {
		c.Sources.ColorHeight = defaultColorHeight
	}
}

func (c *Config) normalizeFetch() {
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.Fetch.Attempts <= 0 {
		c.Fetch.Attempts = defaultFetchAttempts
	}
	if c.Fetch.RequestsPerSecond < 0 {
		c.Fetch.RequestsPerSecond = 0
	}
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeAcquire() {
	if c.Acquire.Attempts <= 0 {
		c.Acquire.Attempts = defaultAcquireAttempts
	}
	c.Acquire.Basename = strings.TrimSpace(c.Acquire.Basename)
	if c.Acquire.Basename == "" {
		c.Acquire.Basename = defaultBasename
	}
	if c.Acquire.MinFreeMiB < 0 {
		c.Acquire.MinFreeMiB = 0
	}
	if c.Progress.WriteTimeoutSeconds <= 0 {
		c.Progress.WriteTimeoutSeconds = defaultProgressWriteTimeout
	}
}

func (c *Config) normalizeDesktop() {
	c.Desktop.Backend = strings.ToLower(strings.TrimSpace(c.Desktop.Backend))
	if c.Desktop.Backend == "" {
		c.Desktop.Backend = defaultDesktopBackend
	}
	c.Desktop.Style = strings.ToLower(strings.TrimSpace(c.Desktop.Style))
	if c.Desktop.Style == "" {
		c.Desktop.Style = defaultDesktopStyle
	}
	c.Desktop.Command = strings.TrimSpace(c.Desktop.Command)
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("WALLP_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
