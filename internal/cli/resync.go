package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/resync"
)

// ResyncOptions holds flags for the resync command.
type ResyncOptions struct {
	*RootOptions
	From     int // directed resync from this position; -1 for full
	Targeted bool
}

// NewResyncCommand creates the resync command.
func NewResyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Realign the ledger with the hosted commits",
		Long: `Realign the ledger with the hosted commits.

By default the whole history is compared against the recorded positions,
rolled back to the first divergence and replayed. --from forces the
divergence no later than a position; with --targeted the commit at that
position is left unprocessed, as when it is about to be regenerated.

Examples:
  docsync resync --db ./docsync.db
  docsync resync --db ./docsync.db --from 3
  docsync resync --db ./docsync.db --from 3 --targeted --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResync(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.From, "from", -1, "reprocess from this position")
	cmd.Flags().BoolVar(&opts.Targeted, "targeted", false, "stop before the --from commit")

	return cmd
}

func resyncOptions(opts *ResyncOptions) (resync.Options, error) {
	switch {
	case opts.From < 0 && opts.Targeted:
		return resync.Options{}, NewExitError(ExitCommandError, "--targeted needs --from")
	case opts.From < 0:
		return resync.Full(), nil
	case opts.Targeted:
		return resync.Targeted(opts.From), nil
	}
	return resync.Directed(opts.From), nil
}

func runResync(opts *ResyncOptions, cmd *cobra.Command) error {
	ro, err := resyncOptions(opts)
	if err != nil {
		return err
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	// Runs on the engine directly: an explicit resync is not debounced.
	ctx := commandContext(cmd)
	out, err := s.engine.Resync(ctx, ro)
	if err != nil {
		return WrapExitError(ExitFailure, "resync failed", err)
	}
	c := host.Completion{
		Scope:        s.cfg.Scope,
		LastID:       out.LastID,
		LastPosition: out.LastPosition,
		Phases:       out.Phases,
	}
	if out.State != nil {
		c.Positions = out.State.Positions
		c.Logs = out.State.Logs
		c.Document = out.State.Document
		c.Stripped = stripped(out.State.Document)
	}
	s.notify(ctx, c)
	return outputJob(opts.RootOptions, cmd, max(opts.From, 0), []host.Completion{c})
}
