package sources

import (
	"log/slog"

	"wallp/internal/config"
	"wallp/internal/store"
)

// HTTPClient is the fetch surface the built-in sources need.
type HTTPClient interface {
	Getter
	JSONGetter
}

// Store is the persistence the built-in sources read: delivered history and
// per-source settings.
type Store interface {
	SeenChecker
	store.SettingGetter
}

// NewBuiltinRegistry registers xkcd, bing and color and enables the sources
// listed in the config.
func NewBuiltinRegistry(cfg *config.Config, http HTTPClient, st Store, logger *slog.Logger) *Registry {
	return NewRegistry(cfg.Sources.Enabled,
		NewXKCD(cfg.Sources.XKCDBaseURL, http, st, logger),
		NewBing(cfg.Sources.BingArchiveURL, cfg.Sources.BingBaseURL, http, st).WithSettings(st),
		NewColor(cfg.Sources.ColorWidth, cfg.Sources.ColorHeight).WithSettings(st),
	)
}
