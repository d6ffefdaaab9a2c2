package preflight

import (
	"context"

	"screensolve/internal/config"
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
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	for _, dep := range CheckSystemDeps(cfg) {
		result := Result{Name: dep.Name, Passed: dep.Available, Detail: dep.Detail}
		if dep.Available {
			result.Detail = dep.Path
		}
		if !dep.Available && dep.Optional {
			result.Passed = true
			result.Detail += " (optional)"
		}
		results = append(results, result)
	}
	results = append(results, CheckSolver(ctx, cfg.Solver.URL))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
