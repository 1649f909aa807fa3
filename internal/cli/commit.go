package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docsync/internal/anchor"
	"github.com/roach88/docsync/internal/host"
	"github.com/roach88/docsync/internal/ir"
	"github.com/roach88/docsync/internal/scheduler"
)

// CommitOptions holds flags for the commit subcommands.
type CommitOptions struct {
	*RootOptions
	Role string
	File string // read content from a file; "-" reads stdin
}

// CommitInfo is one commit as the CLI reports it.
type CommitInfo struct {
	Position int    `json:"position"`
	Role     string `json:"role"`
	ID       string `json:"id,omitempty"`
	Variants int    `json:"variants"`
	Active   int    `json:"active"`
	Content  string `json:"content"`
}

// JobResult is the outcome of the job a command submitted.
type JobResult struct {
	Position     int          `json:"position"`
	ID           string       `json:"id,omitempty"`
	Phases       []host.Phase `json:"phases"`
	LastID       string       `json:"last_id,omitempty"`
	LastPosition int          `json:"last_position"`
	Positions    []string     `json:"positions"`
	Document     ir.IRValue   `json:"document,omitempty"`
}

// NewCommitCommand creates the commit command and its subcommands.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Change the hosted commit list",
		Long: `Add, delete, swipe and list the commits docsync hosts in its database.

Every change is followed by the job a host would trigger for it, so the
ledger is reconciled before the command returns.`,
	}

	add := &cobra.Command{
		Use:   "add [content]",
		Short: "Append a commit",
		Long: `Append a commit and reconcile it.

Examples:
  docsync commit add --db ./docsync.db $'<insert>\nhp: 10\n</insert>'
  docsync commit add --db ./docsync.db --role user "drink the potion"
  docsync commit add --db ./docsync.db --file reply.txt`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommitAdd(opts, args, cmd)
		},
	}
	add.Flags().StringVar(&opts.Role, "role", string(host.RoleAssistant), "commit role (user|assistant|system)")
	add.Flags().StringVarP(&opts.File, "file", "f", "", "read content from file (- for stdin)")

	del := &cobra.Command{
		Use:           "delete <position>",
		Short:         "Delete a commit and roll back its writes",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommitDelete(opts, args[0], cmd)
		},
	}

	swipe := &cobra.Command{
		Use:           "swipe <position> [content]",
		Short:         "Add and select a new variant of a commit",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommitSwipe(opts, args, cmd)
		},
	}
	swipe.Flags().StringVarP(&opts.File, "file", "f", "", "read content from file (- for stdin)")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List the hosted commits",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommitList(opts, cmd)
		},
	}

	cmd.AddCommand(add, del, swipe, list)
	return cmd
}

// readContent returns the content argument, or the --file contents.
func readContent(opts *CommitOptions, args []string, cmd *cobra.Command) (string, error) {
	switch {
	case opts.File != "" && len(args) > 0:
		return "", NewExitError(ExitCommandError, "pass content or --file, not both")
	case opts.File == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		return string(data), nil
	case opts.File != "":
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read content file", err)
		}
		return string(data), nil
	case len(args) > 0:
		return args[0], nil
	}
	return "", NewExitError(ExitCommandError, "content is required")
}

func parsePosition(arg string) (int, error) {
	pos, err := strconv.Atoi(arg)
	if err != nil || pos < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid position %q", arg))
	}
	return pos, nil
}

func runCommitAdd(opts *CommitOptions, args []string, cmd *cobra.Command) error {
	role := host.Role(opts.Role)
	switch role {
	case host.RoleUser, host.RoleAssistant, host.RoleSystem:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown role %q", opts.Role))
	}
	content, err := readContent(opts, args, cmd)
	if err != nil {
		return err
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	pos, err := s.host.Append(ctx, role, content)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to append commit", err)
	}

	trigger := scheduler.TriggerMessageReceived
	if role == host.RoleUser {
		trigger = scheduler.TriggerMessageSent
	}
	return outputJob(opts.RootOptions, cmd, pos, s.submit(ctx, scheduler.NewJob(trigger, pos)))
}

func runCommitDelete(opts *CommitOptions, arg string, cmd *cobra.Command) error {
	pos, err := parsePosition(arg)
	if err != nil {
		return err
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	if err := s.host.Delete(ctx, pos); err != nil {
		return WrapExitError(ExitCommandError, "failed to delete commit", err)
	}
	return outputJob(opts.RootOptions, cmd, pos,
		s.submit(ctx, scheduler.NewJob(scheduler.TriggerMessageDeleted, pos)))
}

func runCommitSwipe(opts *CommitOptions, args []string, cmd *cobra.Command) error {
	pos, err := parsePosition(args[0])
	if err != nil {
		return err
	}
	content, err := readContent(opts, args[1:], cmd)
	if err != nil {
		return err
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	if err := s.host.Swipe(ctx, pos, content); err != nil {
		return WrapExitError(ExitCommandError, "failed to swipe commit", err)
	}
	return outputJob(opts.RootOptions, cmd, pos,
		s.submit(ctx, scheduler.NewJob(scheduler.TriggerMessageSwiped, pos)))
}

func runCommitList(opts *CommitOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	commits, err := host.All(commandContext(cmd), s.host)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read commits", err)
	}

	infos := make([]CommitInfo, len(commits))
	for i, c := range commits {
		id, _ := anchor.Parse(c.Content)
		infos[i] = CommitInfo{
			Position: c.Position,
			Role:     string(c.Role),
			ID:       id,
			Variants: len(c.Variants),
			Active:   c.Active,
			Content:  anchor.Strip(c.Content),
		}
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(infos)
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No commits.")
		return nil
	}
	for _, c := range infos {
		id := c.ID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "%3d %-9s %s %s\n", c.Position, c.Role, dim(id), firstLine(c.Content))
	}
	return nil
}

// outputJob reports the completion of a submitted job. A job that
// failed leaves no completion; its error is in the log.
func outputJob(opts *RootOptions, cmd *cobra.Command, pos int, completions []host.Completion) error {
	if len(completions) == 0 {
		return NewExitError(ExitFailure, "job produced no completion (see log)")
	}
	c := completions[len(completions)-1]
	res := JobResult{
		Position:     pos,
		Phases:       c.Phases,
		LastID:       c.LastID,
		LastPosition: c.LastPosition,
		Positions:    c.Positions,
		Document:     c.Stripped,
	}
	if pos < len(c.Positions) {
		res.ID = c.Positions[pos]
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(res)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s position %d", passMark(), pos)
	if res.ID != "" {
		fmt.Fprintf(w, " id %s", res.ID)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  phases: %s\n", phaseList(res.Phases))
	fmt.Fprintf(w, "  last:   %s@%d\n", res.LastID, res.LastPosition)
	if res.Document != nil {
		text, err := prettyJSON(res.Document)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", text)
	}
	return nil
}

func phaseList(phases []host.Phase) string {
	if len(phases) == 0 {
		return "-"
	}
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
