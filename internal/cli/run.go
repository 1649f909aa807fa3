package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docsync/internal/harness"
	"github.com/roach88/docsync/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Parallel int    // scenarios run at once; ignored with --db
	Filter   string // scenario filter (glob pattern on the file name)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario|dir>...",
		Short: "Run reconciliation scenarios",
		Long: `Run scenario files through the reconciliation pipeline.

Each scenario seeds an in-memory host, drives it through its steps and checks
its assertions. A directory argument runs every .yaml and .yml file in it.
With --db the ledgers are written to the database, one scope per scenario,
and scenarios run one at a time.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  docsync run ./testdata/scenarios
  docsync run ./testdata/scenarios --filter "delete_*"
  docsync run ./testdata/scenarios/delete_middle.yaml --db ./docsync.db
  docsync run ./testdata/scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 4, "scenarios to run at once")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *RunOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var paths []string
	for _, arg := range args {
		found, err := harness.DiscoverScenarios(arg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		filtered, err := filterScenarios(found, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid filter pattern", err)
		}
		paths = append(paths, filtered...)
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	runOpts := []harness.Option{
		harness.WithLogger(opts.Logger()),
		harness.WithConfig(cfg.Scheduler),
	}
	parallel := opts.Parallel
	if opts.DB != "" {
		st, err := store.Open(opts.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		runOpts = append(runOpts, harness.WithStore(st))
		parallel = 1
	}

	suite, err := harness.RunAll(ctx, paths, parallel, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run interrupted", err)
	}

	if opts.Format == "json" {
		return outputSuiteJSON(cmd, suite)
	}
	return outputSuiteText(cmd, suite)
}

// filterScenarios keeps the paths whose file name, without extension,
// matches pattern.
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

// outputSuiteJSON outputs the suite result as JSON.
func outputSuiteJSON(cmd *cobra.Command, suite *harness.SuiteResult) error {
	f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	if suite.Failed == 0 {
		return f.Success(suite)
	}

	msg := fmt.Sprintf("%d scenario(s) failed", suite.Failed)
	if err := f.encode(CLIResponse{
		Status: "error",
		Data:   suite,
		Error:  &CLIError{Code: "E_TEST_FAILED", Message: msg},
	}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

// outputSuiteText outputs one line per scenario and a summary.
func outputSuiteText(cmd *cobra.Command, suite *harness.SuiteResult) error {
	w := cmd.OutOrStdout()

	if suite.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, r := range suite.Results {
		name := r.Name
		if name == "" {
			name = filepath.Base(r.Path)
		}
		if r.Pass {
			events := 0
			if r.Result != nil {
				events = len(r.Result.Trace)
			}
			fmt.Fprintf(w, "%s %s %s\n", passMark(), name, dim(fmt.Sprintf("(%d events)", events)))
			continue
		}
		fmt.Fprintf(w, "%s %s\n", failMark(), name)
		for _, e := range r.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)

	if suite.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}

	fmt.Fprintf(w, "%s All scenarios passed\n", passMark())
	return nil
}
