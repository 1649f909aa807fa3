package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/docsync/internal/editlog"
	"github.com/roach88/docsync/internal/ir"
	"github.com/roach88/docsync/internal/snapshot"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	ID       string
	Position int
	Meta     bool // keep $meta control keys
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the document as of a commit",
		Long: `Print the document, or the document as it stood right after one commit.

Snapshots are rebuilt from the edit logs; they do not touch the hosted
commits.

Examples:
  docsync snapshot --db ./docsync.db
  docsync snapshot --db ./docsync.db --id 0190f2c4-...
  docsync snapshot --db ./docsync.db --position 2 --meta`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "commit id")
	cmd.Flags().IntVar(&opts.Position, "position", -1, "commit position")
	cmd.Flags().BoolVar(&opts.Meta, "meta", false, "keep $meta control keys")
	cmd.MarkFlagsMutuallyExclusive("id", "position")

	return cmd
}

func runSnapshot(opts *SnapshotOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	var snap snapshot.Snapshot
	switch {
	case opts.ID != "":
		snap, err = s.api.SnapshotByID(ctx, opts.ID)
	case opts.Position >= 0:
		snap, err = s.api.SnapshotAt(ctx, opts.Position)
	default:
		st, lerr := s.state(ctx)
		if lerr != nil {
			return lerr
		}
		snap = snapshot.Snapshot{Position: len(st.Positions) - 1, Document: st.Document}
		if n := len(st.Positions); n > 0 {
			snap.ID = st.Positions[n-1]
		}
	}
	if err != nil {
		return snapshotError(err)
	}

	var doc ir.IRValue = snap.Document
	if !opts.Meta {
		doc = stripped(snap.Document)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(map[string]any{
			"id":       snap.ID,
			"position": snap.Position,
			"document": doc,
		})
	}
	text, err := prettyJSON(doc)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Positions bool // arguments are positions, not ids
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Diff the document between two commits",
		Long: `Print a line diff of the document as of two commits.

Examples:
  docsync diff --db ./docsync.db 0190f2c4-... 0190f2c9-...
  docsync diff --db ./docsync.db --positions 0 3`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Positions, "positions", false, "arguments are positions")

	return cmd
}

func runDiff(opts *DiffOptions, from, to string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	load := func(arg string) (snapshot.Snapshot, error) {
		if !opts.Positions {
			return s.api.SnapshotByID(ctx, arg)
		}
		pos, err := strconv.Atoi(arg)
		if err != nil {
			return snapshot.Snapshot{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid position %q", arg))
		}
		return s.api.SnapshotAt(ctx, pos)
	}

	a, err := load(from)
	if err != nil {
		return snapshotError(err)
	}
	b, err := load(to)
	if err != nil {
		return snapshotError(err)
	}

	diff, err := snapshot.Diff(stripped(a.Document), stripped(b.Document))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to diff snapshots", err)
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(map[string]any{
			"from":    a.ID,
			"to":      b.ID,
			"changed": snapshot.Changed(diff),
			"diff":    diff,
		})
	}

	w := cmd.OutOrStdout()
	if !snapshot.Changed(diff) {
		fmt.Fprintf(w, "%s\n", dim("no changes"))
		return nil
	}
	fmt.Fprint(w, colorDiff(diff))
	return nil
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Verify bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a commit's edit log as a JSON Patch",
		Long: `Print the edit log of one commit as an RFC 6902 JSON Patch that takes the
document from before the commit to after it.

With --verify the patch is applied to the snapshot before the commit and
the result compared with the snapshot after it.

Exit codes:
  0 - Exported (and verified)
  1 - Verification mismatch
  2 - Command error (unknown id, etc.)

Examples:
  docsync export --db ./docsync.db 0190f2c4-...
  docsync export --db ./docsync.db 0190f2c4-... --verify`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "apply the patch and check it reproduces the snapshot")

	return cmd
}

func runExport(opts *ExportOptions, id string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.state(commandContext(cmd))
	if err != nil {
		return err
	}
	if st.PositionOf(id) < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown commit id %q", id))
	}
	log := st.Log(id)

	raw, err := editlog.ToJSONPatch(log)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to render patch", err)
	}

	if opts.Verify {
		if err := verifyExport(st.Positions, st.Logs, id, log); err != nil {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			if ferr := f.Error("E_EXPORT_MISMATCH", err.Error(), nil); ferr != nil {
				return ferr
			}
			return WrapExitError(ExitFailure, "export verification failed", err)
		}
		opts.Logger().Debug("export verified", "commit_id", id, "entries", len(log))
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(map[string]any{
			"id":    id,
			"patch": json.RawMessage(raw),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return nil
}

// verifyExport checks that the JSON Patch of log takes the snapshot
// before id to the snapshot at id.
func verifyExport(positions []string, logs map[string]editlog.Log, id string, log editlog.Log) error {
	before, err := snapshot.StateBefore(positions, logs, id)
	if err != nil {
		return err
	}
	after, err := snapshot.StateAt(positions, logs, id)
	if err != nil {
		return err
	}
	got, err := editlog.ApplyJSONPatch(before, log)
	if err != nil {
		return err
	}
	if !ir.Equal(got, after) {
		return fmt.Errorf("patch yields %s, snapshot is %s", ir.CanonicalString(got), ir.CanonicalString(after))
	}
	return nil
}

func snapshotError(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if errors.Is(err, snapshot.ErrUnknownID) {
		return WrapExitError(ExitCommandError, "no such commit", err)
	}
	return WrapExitError(ExitFailure, "failed to build snapshot", err)
}

func stripped(doc ir.IRObject) ir.IRValue {
	return ir.StripMeta(doc)
}

// prettyJSON renders v as indented JSON with sorted keys.
func prettyJSON(v ir.IRValue) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}
