package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/reconcile"
)

// PairView is the printable form of a mapped pair.
type PairView struct {
	RemoteRevision int64  `json:"remote_revision"`
	RemoteIndex    int    `json:"remote_index"`
	Kind           string `json:"kind"`
	Changed        string `json:"changed"`
	LocalRevision  int64  `json:"local_revision"`
}

// RemoteView is the printable form of an unmapped server event.
type RemoteView struct {
	Revision int64  `json:"revision"`
	Kind     string `json:"kind"`
	Changed  string `json:"changed"`
}

// ReconcileResult is the output of reconcile.
type ReconcileResult struct {
	BaseAddress    string            `json:"base_address"`
	Summary        reconcile.Summary `json:"summary"`
	Mapped         []PairView        `json:"mapped"`
	UnmappedRemote []RemoteView      `json:"unmapped_remote"`
	UnmappedLocal  []EntryView       `json:"unmapped_local"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <events.cue>",
		Short: "Show how server events map onto pending local changes",
		Long: `Map the events of a CUE batch, read as a server batch, onto the
pending local changes of the log at --base. Nothing is changed: the
command only reports which local changes the server would confirm.

Examples:
  treesync reconcile --base acme/people server.cue
  treesync reconcile --base acme/people server.cue --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(rootOpts, args[0], cmd)
		},
	}
}

func runReconcile(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	doc, err := compileBatch(path)
	if err != nil {
		return err
	}
	st, log, err := openLog(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer st.Close()

	result := reconcile.Map(log, doc.Events)
	out := ReconcileResult{
		BaseAddress:    log.BaseAddress().String(),
		Summary:        result.Summary(),
		Mapped:         make([]PairView, len(result.Mapped)),
		UnmappedRemote: make([]RemoteView, len(result.UnmappedRemote)),
		UnmappedLocal:  viewEntries(result.UnmappedLocal),
	}
	for i, p := range result.Mapped {
		out.Mapped[i] = PairView{
			RemoteRevision: p.Remote.Revision,
			RemoteIndex:    p.RemoteIndex,
			Kind:           p.Remote.Kind.String(),
			Changed:        p.Remote.Changed.String(),
			LocalRevision:  p.Local.Revision(),
		}
	}
	for i, ev := range result.UnmappedRemote {
		out.UnmappedRemote[i] = viewRemote(ev)
	}

	if f.IsJSON() {
		return f.JSON(out)
	}
	fmt.Fprintf(f.Writer, "%s: %d mapped, %d unmapped remote, %d unmapped local\n",
		out.BaseAddress, out.Summary.Mapped, out.Summary.UnmappedRemote, out.Summary.UnmappedLocal)
	if len(out.Mapped) > 0 {
		rows := make([]table.Row, len(out.Mapped))
		for i, p := range out.Mapped {
			rows[i] = table.Row{p.RemoteRevision, p.Kind, p.Changed, p.LocalRevision}
		}
		fmt.Fprintln(f.Writer, "\nMapped:")
		f.Table(table.Row{"Server Rev", "Kind", "Changed", "Local Rev"}, rows)
	}
	if len(out.UnmappedRemote) > 0 {
		rows := make([]table.Row, len(out.UnmappedRemote))
		for i, r := range out.UnmappedRemote {
			rows[i] = table.Row{r.Revision, r.Kind, r.Changed}
		}
		fmt.Fprintln(f.Writer, "\nUnmapped remote:")
		f.Table(table.Row{"Server Rev", "Kind", "Changed"}, rows)
	}
	if len(out.UnmappedLocal) > 0 {
		fmt.Fprintln(f.Writer, "\nUnmapped local:")
		f.Table(entryHeader, entryRows(out.UnmappedLocal))
	}
	return nil
}

func viewRemote(ev ir.Event) RemoteView {
	return RemoteView{Revision: ev.Revision, Kind: ev.Kind.String(), Changed: ev.Changed.String()}
}
