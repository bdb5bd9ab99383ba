package preflight

import (
	"context"

	"wallp/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.StagingDir()),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir),
		CheckFreeSpace("Staging free space", cfg.StagingDir(), uint64(cfg.Acquire.MinFreeMiB)<<20),
	}

	for _, name := range cfg.Sources.Enabled {
		switch name {
		case "xkcd":
			results = append(results, CheckEndpoint(ctx, "xkcd", cfg.Sources.XKCDBaseURL+"/archive/", cfg.Fetch.UserAgent))
		case "bing":
			results = append(results, CheckEndpoint(ctx, "Bing", cfg.Sources.BingArchiveURL, cfg.Fetch.UserAgent))
		}
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
