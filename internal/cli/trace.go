package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/docsync/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Limit int
}

// TraceResult holds the recorded completions of one scope.
type TraceResult struct {
	Scope       string             `json:"scope"`
	Completions []store.Completion `json:"completions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List recorded completions",
		Long: `List the completions recorded for a scope, oldest first.

Every job that finishes records which phases it ran, the last commit it
reached and the position sequence it left behind.

Examples:
  docsync trace --db ./docsync.db
  docsync trace --db ./docsync.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show only the newest n completions")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	completions, err := s.host.Completions(commandContext(cmd), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read completions", err)
	}
	if completions == nil {
		completions = []store.Completion{}
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(TraceResult{Scope: s.cfg.Scope, Completions: completions})
	}

	w := cmd.OutOrStdout()
	if len(completions) == 0 {
		fmt.Fprintf(w, "No completions recorded for scope: %s\n", s.cfg.Scope)
		return nil
	}
	for _, c := range completions {
		fmt.Fprintf(w, "[%d] %s last=%s@%d positions=%d\n",
			c.Seq, phaseList(c.Phases), c.LastID, c.LastPosition, len(c.Positions))
	}
	return nil
}
