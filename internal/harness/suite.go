package harness

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
)

// SuiteResult pairs a scenario file with its result. Err is set when the
// scenario could not be loaded or executed.
type SuiteResult struct {
	Path   string
	Name   string // scenario name, empty when the file did not load
	Result *Result
	Err    error
}

// Passed reports whether the scenario ran and passed.
func (r SuiteResult) Passed() bool {
	return r.Err == nil && r.Result != nil && r.Result.Pass
}

// DiscoverScenarios returns every .yaml and .yml file under dir, sorted.
func DiscoverScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover scenarios in %s: %w", dir, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// RunDir runs every scenario under dir.
func RunDir(ctx context.Context, dir string, opts ...Option) ([]SuiteResult, error) {
	paths, err := DiscoverScenarios(dir)
	if err != nil {
		return nil, err
	}
	return RunFiles(ctx, paths, opts...)
}

// RunFiles runs the scenario files in order. A scenario that fails to load
// or execute is reported in its SuiteResult and does not stop the suite.
func RunFiles(ctx context.Context, paths []string, opts ...Option) ([]SuiteResult, error) {
	results := make([]SuiteResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		sr := SuiteResult{Path: path}
		scenario, err := LoadScenario(path)
		if err == nil {
			sr.Name = scenario.Name
			sr.Result, err = Run(ctx, scenario, opts...)
		}
		sr.Err = err
		results = append(results, sr)
	}
	return results, nil
}
