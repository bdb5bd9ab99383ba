package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	PicturesDir string `toml:"pictures_dir"`
	DataDir     string `toml:"data_dir"`
	TempDir     string `toml:"temp_dir"`
}

// Scheduler contains configuration for the periodic change job.
type Scheduler struct {
	Enabled   bool   `toml:"enabled"`
	Frequency string `toml:"frequency"`
}

// Sources contains configuration for the image sources.
type Sources struct {
	Enabled        []string `toml:"enabled"`
	XKCDBaseURL    string   `toml:"xkcd_base_url"`
	BingArchiveURL string   `toml:"bing_archive_url"`
	BingBaseURL    string   `toml:"bing_base_url"`
	ColorWidth     int      `toml:"color_width"`
	ColorHeight    int      `toml:"color_height"`
}

// Fetch contains HTTP client settings shared by sources and downloads.
type Fetch struct {
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	Attempts          int     `toml:"attempts"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	UserAgent         string  `toml:"user_agent"`
}

// Acquire contains settings for the acquisition pipeline.
type Acquire struct {
	Attempts   int    `toml:"attempts"`
	Basename   string `toml:"basename"`
	MinFreeMiB int    `toml:"min_free_mib"`
}

// Progress contains settings for the progress channel.
type Progress struct {
	WriteTimeoutSeconds int `toml:"write_timeout_seconds"`
}

// Desktop contains configuration for applying wallpapers.
type Desktop struct {
	Backend string `toml:"backend"`
	Command string `toml:"command"`
	Style   string `toml:"style"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Changes        bool   `toml:"changes"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for wallp.
//
// Configuration sections by subsystem:
//   - Paths: pictures, data (database, socket, logs) and temp directories
//   - Scheduler: periodic change frequency
//   - Sources: enabled image sources and their endpoints
//   - Fetch: HTTP timeouts, transfer attempts, rate limiting
//   - Acquire: outer attempts, staged file basename, free space floor
//   - Progress: progress channel write timeout
//   - Desktop: wallpaper backend and style
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Debug         bool          `toml:"debug"`
	Paths         Paths         `toml:"paths"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Sources       Sources       `toml:"sources"`
	Fetch         Fetch         `toml:"fetch"`
	Acquire       Acquire       `toml:"acquire"`
	Progress      Progress      `toml:"progress"`
	Desktop       Desktop       `toml:"desktop"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("wallp.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.TempDir, c.StagingDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StagingDir returns the directory that receives the staged wallpaper. Debug
// mode stages into the working directory.
func (c *Config) StagingDir() string {
	if c.Debug {
		return "."
	}
	return c.Paths.PicturesDir
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "wallp.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "wallp.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "wallpd.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "wallpd.pid")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.DataDir, "wallp.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// defaultPicturesDir follows the XDG user-dirs convention before falling back
// to ~/Pictures.
func defaultPicturesDir() string {
	if dir, ok := os.LookupEnv("XDG_PICTURES_DIR"); ok && strings.TrimSpace(dir) != "" {
		return dir
	}
	return "~/Pictures"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
