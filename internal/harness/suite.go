package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"
)

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	// Result is nil when the scenario failed to load or execute.
	Result *Result `json:"-"`
}

// SuiteResult summarizes a set of scenario files.
type SuiteResult struct {
	Total   int              `json:"total"`
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Results []ScenarioResult `json:"results"`
}

// DiscoverScenarios returns the scenario files at path: path itself when it
// is a file, else every .yaml and .yml file directly inside it, sorted.
func DiscoverScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return paths, nil
}

// RunAll loads and runs every scenario in paths, at most parallel at a time
// (unbounded when parallel <= 0). Each scenario gets its own host, clock and
// scope, so runs never observe each other even on a shared store.
//
// Results keep the order of paths. A scenario that fails to load or execute
// counts as failed; RunAll itself only fails when ctx is cancelled.
func RunAll(ctx context.Context, paths []string, parallel int, opts ...Option) (*SuiteResult, error) {
	results := make([]ScenarioResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runFile(gctx, path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	suite := &SuiteResult{Total: len(paths), Results: results}
	for _, r := range results {
		if r.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
	}
	return suite, nil
}

func runFile(ctx context.Context, path string, opts []Option) ScenarioResult {
	scenario, err := LoadScenario(path)
	if err != nil {
		return ScenarioResult{
			Path:   path,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := RunContext(ctx, scenario, opts...)
	if err != nil {
		return ScenarioResult{
			Path:   path,
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("scenario execution failed: %v", err)},
		}
	}
	return ScenarioResult{
		Path:   path,
		Name:   scenario.Name,
		Pass:   result.Pass,
		Errors: result.Errors,
		Result: result,
	}
}
