package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/usepat/SW-soniccontrol/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern on the file name)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Protocol string   `json:"protocol,omitempty"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML conformance scenarios against their protocol descriptors.

Each scenario sends command lines, answers them, and checks the expected
rejections and trace assertions in a fresh in-memory journal. With --tables,
scenarios resolve their protocol in those tables unless they name their own.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  sonicproto test ./testdata/scenarios
  sonicproto test ./testdata/scenarios --filter "worker_*"
  sonicproto test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	if _, err := os.Stat(scenariosDir); err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", scenariosDir), err)
	}

	paths, err := harness.DiscoverScenarios(scenariosDir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to find scenarios", err)
	}
	if paths, err = filterScenarios(paths, opts.Filter); err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid filter pattern", err)
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.Tables != "" {
		reg, err := withRegistry(opts.RootOptions, f, logger)
		if err != nil {
			return err
		}
		runOpts = append(runOpts, harness.WithRegistry(reg))
	}

	suite, err := harness.RunFiles(cmd.Context(), paths, runOpts...)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "scenario run interrupted", err)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(suite)), Total: len(suite)}
	for _, sr := range suite {
		r := ScenarioResult{Name: sr.Name, Path: sr.Path, Pass: sr.Passed()}
		if r.Name == "" {
			r.Name = filepath.Base(sr.Path)
		}
		switch {
		case sr.Err != nil:
			r.Errors = []string{sr.Err.Error()}
		case sr.Result != nil:
			r.Protocol = sr.Result.Protocol
			r.Errors = sr.Result.Errors
		}
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, r)
	}

	if f.IsJSON() {
		if result.Failed > 0 {
			if err := f.Failure(ErrCodeGeneric, fmt.Sprintf("%d scenario(s) failed", result.Failed), result); err != nil {
				return err
			}
		} else if err := f.Success(result); err != nil {
			return err
		}
	} else {
		outputTestText(f, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// filterScenarios keeps the paths whose file name without extension matches
// the glob pattern. An empty pattern keeps everything.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, path := range paths {
		base := filepath.Base(path)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, path)
		}
	}
	return out, nil
}

func outputTestText(f *OutputFormatter, result TestResult) {
	w := f.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
