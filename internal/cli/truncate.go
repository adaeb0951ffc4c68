package cli

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/synclog"
)

// TruncateResult is the output of truncate and discard.
type TruncateResult struct {
	BaseAddress     string  `json:"base_address"`
	Removed         []int64 `json:"removed"`
	CurrentRevision int64   `json:"current_revision"`
}

// NewTruncateCommand creates the truncate command.
func NewTruncateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "truncate <revision>",
		Short: "Remove every entry above a revision",
		Long: `Remove every entry of the log at --base above the given revision.
The revision must lie between the synchronized and the current revision;
confirmed history is never removed.

Examples:
  treesync truncate --base acme/people 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid revision %q", args[0]), err)
			}
			return runTruncate(rootOpts, rev, cmd)
		},
	}
}

func runTruncate(opts *RootOptions, rev int64, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	st, log, err := openLog(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer st.Close()

	var removed []int64
	for entry := range log.Entries() {
		if entry.Revision() > rev {
			removed = append(removed, entry.Revision())
		}
	}
	if !log.TruncateToRevision(rev) {
		return f.Fail(ExitFailure, ErrCodeRefused,
			fmt.Sprintf("cannot truncate to %d: outside [%d, %d]", rev, log.SynchronizedRevision(), log.CurrentRevision()), nil)
	}
	if _, err := st.DeleteEntriesAbove(cmd.Context(), log.BaseAddress(), rev); err != nil {
		return WrapExitError(ExitCommandError, "failed to store truncation", err)
	}
	return printRemoved(f, log, removed, "Truncated")
}

// NewDiscardCommand creates the discard command.
func NewDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Drop every pending local change, keeping playback entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			st, log, err := openLog(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			var removed []int64
			for entry := range log.LocalChanges() {
				removed = append(removed, entry.Revision())
			}
			log.ClearLocalChanges()
			if _, err := st.DeleteEntries(cmd.Context(), log.BaseAddress(), removed); err != nil {
				return WrapExitError(ExitCommandError, "failed to store discard", err)
			}
			return printRemoved(f, log, removed, "Discarded")
		},
	}
}

func printRemoved(f *OutputFormatter, log *synclog.Log, removed []int64, verb string) error {
	if removed == nil {
		removed = []int64{}
	}
	slices.Sort(removed)
	result := TruncateResult{
		BaseAddress:     log.BaseAddress().String(),
		Removed:         removed,
		CurrentRevision: log.CurrentRevision(),
	}
	if f.IsJSON() {
		return f.JSON(result)
	}
	fmt.Fprintf(f.Writer, "%s %d entries of %s, current revision %d\n", verb, len(removed), result.BaseAddress, result.CurrentRevision)
	return nil
}
