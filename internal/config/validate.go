package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var frequencyPattern = regexp.MustCompile(`^(\d{1,3})[smhdwM]$`)

var knownSources = map[string]struct{}{
	"xkcd":  {},
	"bing":  {},
	"color": {},
}

var knownBackends = map[string]struct{}{
	"auto":      {},
	"gsettings": {},
	"feh":       {},
	"command":   {},
	"none":      {},
}

var knownStyles = map[string]struct{}{
	"auto":      {},
	"centered":  {},
	"scaled":    {},
	"stretched": {},
	"zoom":      {},
	"spanned":   {},
	"wallpaper": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateDesktop(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScheduler() error {
	match := frequencyPattern.FindStringSubmatch(c.Scheduler.Frequency)
	if match == nil {
		return fmt.Errorf("scheduler.frequency %q must match <1-3 digits><s|m|h|d|w|M>, e.g. 30m or 1d", c.Scheduler.Frequency)
	}
	if count, _ := strconv.Atoi(match[1]); count == 0 {
		return fmt.Errorf("scheduler.frequency %q must have a positive count", c.Scheduler.Frequency)
	}
	return nil
}

func (c *Config) validateSources() error {
	if len(c.Sources.Enabled) == 0 {
		return errors.New("sources.enabled must include at least one source")
	}
	for _, name := range c.Sources.Enabled {
		if _, ok := knownSources[name]; !ok {
			return fmt.Errorf("sources.enabled: unknown source %q", name)
		}
	}
	return nil
}

func (c *Config) validateFetch() error {
	if err := ensurePositiveMap(map[string]int{
		"fetch.timeout_seconds":          c.Fetch.TimeoutSeconds,
		"fetch.attempts":                 c.Fetch.Attempts,
		"acquire.attempts":               c.Acquire.Attempts,
		"progress.write_timeout_seconds": c.Progress.WriteTimeoutSeconds,
	}); err != nil {
		return err
	}
	if strings.ContainsAny(c.Acquire.Basename, `/\`) {
		return errors.New("acquire.basename must not contain path separators")
	}
	return nil
}

func (c *Config) validateDesktop() error {
	if _, ok := knownBackends[c.Desktop.Backend]; !ok {
		return fmt.Errorf("desktop.backend: unsupported value %q", c.Desktop.Backend)
	}
	if c.Desktop.Backend == "command" && c.Desktop.Command == "" {
		return errors.New("desktop.command must be set when desktop.backend is \"command\"")
	}
	if _, ok := knownStyles[c.Desktop.Style]; !ok {
		return fmt.Errorf("desktop.style: unsupported value %q", c.Desktop.Style)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
