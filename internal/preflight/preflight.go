package preflight

import (
	"context"

	"frcvideos/internal/config"
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

	results := []Result{CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)}

	if cfg.Paths.VideoDir != "" {
		results = append(results, CheckDirectoryAccess("Video directory", cfg.Paths.VideoDir))
	} else {
		results = append(results, Result{Name: "Video directory", Detail: "not configured"})
	}

	if cfg.Event.Key == "" {
		results = append(results, Result{Name: "Event", Detail: "event.key not configured"})
	} else {
		results = append(results, Result{Name: "Event", Passed: true, Detail: cfg.Event.Key})
	}

	results = append(results, CheckTBA(ctx, cfg.TBA.BaseURL, cfg.TBA.APIKey))
	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
		}
		results = append(results, result)
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
