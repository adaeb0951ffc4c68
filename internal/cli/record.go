package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/root"
)

// RecordResult is the output of record.
type RecordResult struct {
	Recorded        []EntryView `json:"recorded"`
	CurrentRevision int64       `json:"current_revision"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "record <batch.cue>",
		Short: "Append the entries of a CUE batch to the log",
		Long: `Append the entries of a CUE batch file to the sync log at --base.

Entries must continue the log: the first one carries revision
current+1, the next current+2, and so on. Entries with a command are
local changes; the command gets a fresh ID and the --actor when it names
none. Each entry is stored as soon as it is logged, so a failing entry
leaves the ones before it recorded.

Examples:
  treesync record --base acme/people changes.cue`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(rootOpts, args[0], cmd)
		},
	}
}

func runRecord(opts *RootOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	doc, err := compileBatch(path)
	if err != nil {
		return err
	}
	st, log, err := openLog(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	if !doc.Base.IsZero() && doc.Base != log.BaseAddress() {
		return f.Fail(ExitCommandError, ErrCodeInvalidEntry,
			fmt.Sprintf("batch base %s does not match --base %s", doc.Base, log.BaseAddress()), nil)
	}

	actor := ir.Actor{ID: opts.Actor}
	r := root.New(log, root.WithActor(actor), root.WithLogger(opts.Logger(f.GetErrWriter())))
	ids := ir.UUIDv7Generator{}

	result := RecordResult{Recorded: []EntryView{}}
	for _, entry := range doc.Entries {
		ev := entry.Event
		if ev.Actor == "" {
			ev.Actor = actor.ID
		}
		cmdPtr := entry.Command
		if cmdPtr != nil {
			c := *cmdPtr
			if c.ID == "" {
				c.ID = ids.Generate()
			}
			if c.Actor == "" {
				c.Actor = actor.ID
			}
			cmdPtr = &c
		}

		if err := r.Record(cmdPtr, ev); err != nil {
			return f.Fail(ExitFailure, ErrCodeInvalidEntry,
				fmt.Sprintf("entry %d not recorded (%d recorded before it)", ev.Revision, len(result.Recorded)), err)
		}
		stored, _, _ := log.EntryAt(ev.Revision)
		if err := st.AppendEntry(ctx, log.BaseAddress(), stored); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to store entry %d", ev.Revision), err)
		}
		f.VerboseLog("recorded revision %d (%s %s)", ev.Revision, ev.Kind, ev.Changed)
		result.Recorded = append(result.Recorded, viewEntry(stored))
	}
	result.CurrentRevision = log.CurrentRevision()

	if f.IsJSON() {
		return f.JSON(result)
	}
	if len(result.Recorded) == 0 {
		fmt.Fprintln(f.Writer, "No entries to record.")
		return nil
	}
	f.Table(entryHeader, entryRows(result.Recorded))
	fmt.Fprintf(f.Writer, "Recorded %d entries, current revision %d\n", len(result.Recorded), result.CurrentRevision)
	return nil
}
