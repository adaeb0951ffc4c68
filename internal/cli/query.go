package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/logquery"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	Kind        string
	Under       string
	Origin      string // "local" | "playback" | ""
	From        int64
	To          int64
	Unconfirmed bool
	Limit       int
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search stored entries by kind, address, origin and revision",
		Long: `Search the entries of every stored log, or of the log at --base, and
print them in log order. All given conditions must hold.

Examples:
  treesync query --kind change --under acme/people/alice
  treesync query --base acme/people --origin local --unconfirmed
  treesync query --from 10 --to 20 --limit 5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "change kind (add|remove|change|transaction)")
	cmd.Flags().StringVar(&opts.Under, "under", "", "changed address or one of its ancestors")
	cmd.Flags().StringVar(&opts.Origin, "origin", "", "entry origin (local|playback)")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "lowest revision")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "highest revision")
	cmd.Flags().BoolVar(&opts.Unconfirmed, "unconfirmed", false, "only entries above the synchronized revision")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries")
	return cmd
}

// build turns the flags into a query.
func (o *QueryOptions) build(base ir.Address) (logquery.Query, error) {
	var filters []logquery.Filter
	if o.Kind != "" {
		kind, err := ir.ParseChangeKind(o.Kind)
		if err != nil {
			return logquery.Query{}, WrapExitError(ExitCommandError, "invalid --kind", err)
		}
		filters = append(filters, logquery.KindIs{Kind: kind})
	}
	if o.Under != "" {
		addr, err := ir.ParseAddress(o.Under)
		if err != nil {
			return logquery.Query{}, WrapExitError(ExitCommandError, "invalid --under", err)
		}
		filters = append(filters, logquery.Under{Address: addr})
	}
	switch o.Origin {
	case "":
	case "local":
		filters = append(filters, logquery.Origin{Local: true})
	case "playback":
		filters = append(filters, logquery.Origin{Local: false})
	default:
		return logquery.Query{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid --origin %q: must be local or playback", o.Origin))
	}
	if o.From != 0 || o.To != 0 {
		filters = append(filters, logquery.Revisions{From: o.From, To: o.To})
	}
	if o.Unconfirmed {
		filters = append(filters, logquery.Unconfirmed{})
	}

	q := logquery.Query{Base: base, Limit: o.Limit, Filter: logquery.And{Filters: filters}}
	if err := logquery.Validate(q); err != nil {
		return logquery.Query{}, WrapExitError(ExitCommandError, "invalid query", err)
	}
	return q, nil
}

func runQuery(rootOpts *RootOptions, opts *QueryOptions, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var base ir.Address
	if rootOpts.Base != "" {
		var err error
		if base, err = rootOpts.BaseAddress(); err != nil {
			return err
		}
	}
	q, err := opts.build(base)
	if err != nil {
		return err
	}

	st, err := openStore(rootOpts)
	if err != nil {
		return err
	}
	defer st.Close()

	found, err := st.QueryEntries(cmd.Context(), q)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query entries", err)
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
}
