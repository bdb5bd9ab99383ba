package config

const (
	defaultConfigPath           = "~/.config/wallp/config.toml"
	defaultDataDir              = "~/.local/share/wallp"
	defaultTempDir              = "~/.cache/wallp/tmp"
	defaultFrequency            = "1h"
	defaultXKCDBaseURL          = "https://xkcd.com"
	defaultBingBaseURL          = "https://www.bing.com"
	defaultBingArchiveURL       = "https://www.bing.com/HPImageArchive.aspx?format=js&idx=0&n=8"
	defaultColorWidth           = 1920
	defaultColorHeight          = 1080
	defaultFetchTimeoutSeconds  = 30
	defaultFetchAttempts        = 3
	defaultRequestsPerSecond    = 2
	defaultUserAgent            = "wallp/0.1"
	defaultAcquireAttempts      = 3
	defaultBasename             = "wallp"
	defaultMinFreeMiB           = 16
	defaultProgressWriteTimeout = 30
	defaultDesktopBackend       = "auto"
	defaultDesktopStyle         = "auto"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// DefaultSources lists every built-in source name in registration order.
var DefaultSources = []string{"xkcd", "bing", "color"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PicturesDir: defaultPicturesDir(),
			DataDir:     defaultDataDir,
			TempDir:     defaultTempDir,
		},
		Scheduler: Scheduler{
			Enabled:   true,
			Frequency: defaultFrequency,
		},
		Sources: Sources{
			Enabled:        append([]string(nil), DefaultSources...),
			XKCDBaseURL:    defaultXKCDBaseURL,
			BingBaseURL:    defaultBingBaseURL,
			BingArchiveURL: defaultBingArchiveURL,
			ColorWidth:     defaultColorWidth,
			ColorHeight:    defaultColorHeight,
		},
		Fetch: Fetch{
			TimeoutSeconds:    defaultFetchTimeoutSeconds,
			Attempts:          defaultFetchAttempts,
			RequestsPerSecond: defaultRequestsPerSecond,
			UserAgent:         defaultUserAgent,
		},
		Acquire: Acquire{
			Attempts:   defaultAcquireAttempts,
			Basename:   defaultBasename,
			MinFreeMiB: defaultMinFreeMiB,
		},
		Progress: Progress{
			WriteTimeoutSeconds: defaultProgressWriteTimeout,
		},
		Desktop: Desktop{
			Backend: defaultDesktopBackend,
			Style:   defaultDesktopStyle,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Changes:        false,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
