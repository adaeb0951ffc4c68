package cli

import (
	"fmt"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// LogSummary is one row of the log listing.
type LogSummary struct {
	BaseAddress          string `json:"base_address"`
	SynchronizedRevision int64  `json:"synchronized_revision"`
	CurrentRevision      int64  `json:"current_revision"`
	Entries              int    `json:"entries"`
	Pending              int    `json:"pending"`
}

// LogResult is the output of log for one base.
type LogResult struct {
	BaseAddress          string      `json:"base_address"`
	SynchronizedRevision int64       `json:"synchronized_revision"`
	CurrentRevision      int64       `json:"current_revision"`
	Entries              []EntryView `json:"entries"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	var since int64

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the sync log",
		Long: `Show the entries of the sync log at --base, confirmed history
included. With --since, only unconfirmed entries from that revision on
are shown. Without --base, list every stored log.

Examples:
  treesync log
  treesync log --base acme/people
  treesync log --base acme/people --since 12 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Base == "" {
				return runListLogs(rootOpts, cmd)
			}
			return runLog(rootOpts, since, cmd.Flags().Changed("since"), cmd)
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "show unconfirmed entries from this revision on")
	return cmd
}

func runListLogs(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListLogs(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list logs", err)
	}
	summaries := make([]LogSummary, len(infos))
	for i, info := range infos {
		summaries[i] = LogSummary{
			BaseAddress:          info.BaseAddress.String(),
			SynchronizedRevision: info.SynchronizedRevision,
			CurrentRevision:      info.CurrentRevision,
			Entries:              info.Entries,
			Pending:              info.Pending,
		}
	}

	if f.IsJSON() {
		return f.JSON(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(f.Writer, "No logs found.")
		return nil
	}
	rows := make([]table.Row, len(summaries))
	for i, s := range summaries {
		rows[i] = table.Row{s.BaseAddress, s.SynchronizedRevision, s.CurrentRevision, s.Entries, s.Pending}
	}
	f.Table(table.Row{"Base", "Synchronized", "Current", "Entries", "Pending"}, rows)
	return nil
}

func runLog(opts *RootOptions, since int64, sinceSet bool, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	st, log, err := openLog(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer st.Close()

	entries := slices.Collect(log.Entries())
	if sinceSet {
		window, err := log.EntriesSince(since)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --since", err)
		}
		entries = slices.Collect(window)
	}

	result := LogResult{
		BaseAddress:          log.BaseAddress().String(),
		SynchronizedRevision: log.SynchronizedRevision(),
		CurrentRevision:      log.CurrentRevision(),
		Entries:              viewEntries(entries),
	}
	if f.IsJSON() {
		return f.JSON(result)
	}
	fmt.Fprintf(f.Writer, "%s: synchronized %d, current %d\n", result.BaseAddress, result.SynchronizedRevision, result.CurrentRevision)
	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "No entries.")
		return nil
	}
	f.Table(entryHeader, entryRows(result.Entries))
	return nil
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show local changes not yet confirmed by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			st, log, err := openLog(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			views := viewEntries(slices.Collect(log.LocalChanges()))
			if f.IsJSON() {
				return f.JSON(views)
			}
			if len(views) == 0 {
				fmt.Fprintln(f.Writer, "No pending local changes.")
				return nil
			}
			f.Table(entryHeader, entryRows(views))
			fmt.Fprintf(f.Writer, "%d pending local changes since revision %d\n", len(views), log.SynchronizedRevision())
			return nil
		},
	}
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <hash>",
		Short: "Find entries by structural event hash across all logs",
		Long: `Find the entries, in any stored log, holding an atomic event with
the given structural hash. A local change and the server event that
confirms it share a hash. The hash column of log shows the first 12
characters; find needs the full hash (use --format json to see it).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			found, err := st.FindByHash(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to search", err)
			}
			views := make([]EntryView, len(found))
			for i, loc := range found {
				views[i] = viewEntry(loc.Entry)
				views[i].Base = loc.BaseAddress.String()
			}
			if f.IsJSON() {
				return f.JSON(views)
			}
			if len(views) == 0 {
				fmt.Fprintln(f.Writer, "No entries found.")
				return nil
			}
			rows := make([]table.Row, len(views))
			for i, v := range views {
				rows[i] = append(table.Row{v.Base}, entryRow(v)...)
			}
			f.Table(append(table.Row{"Base"}, entryHeader...), rows)
			return nil
		},
	}
}
