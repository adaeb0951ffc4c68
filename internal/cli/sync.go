package cli

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/engine"
	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/root"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <server.cue>",
		Short: "Run one synchronization round against a file of server events",
		Long: `Run one synchronization round for the log at --base. The events of the
CUE file stand in for the server: those above the synchronized revision
and inside --base are fetched, mapped onto pending local changes, and
replayed. The resulting log is stored.

Exit codes:
  0 - Round complete
  1 - Round failed (gap in server revisions, invalid server event, etc.)
  2 - Command error

Examples:
  treesync sync --base acme/people server.cue
  treesync sync --base acme/people server.cue --format json -v`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, args[0], cmd)
		},
	}
}

func runSync(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	st, log, err := openLog(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := opts.Logger(f.GetErrWriter())
	reg := prometheus.NewRegistry()
	r := root.New(log, root.WithActor(ir.Actor{ID: opts.Actor}), root.WithLogger(logger))
	eng := engine.New(r, engine.NewFileTransport(path),
		engine.WithStore(st),
		engine.WithLogger(logger),
		engine.WithMetrics(engine.NewMetrics(reg)),
	)

	report, err := eng.Synchronize(cmd.Context())
	logMetrics(f, reg)
	if err != nil {
		var rtErr *engine.RuntimeError
		if errors.As(err, &rtErr) {
			return f.Fail(ExitFailure, ErrCodeRound, fmt.Sprintf("round failed with %s", rtErr.Code), err)
		}
		return WrapExitError(ExitCommandError, "round failed", err)
	}

	if f.IsJSON() {
		return f.JSON(report)
	}
	fmt.Fprintf(f.Writer, "Synchronized %s: %d -> %d\n", report.BaseAddress, report.PreviousRevision, report.SynchronizedRevision)
	fmt.Fprintf(f.Writer, "  mapped %d, unmapped remote %d, unmapped local %d\n",
		report.Summary.Mapped, report.Summary.UnmappedRemote, report.Summary.UnmappedLocal)
	fmt.Fprintf(f.Writer, "  rolled back %d, replayed %d\n", report.RolledBack, report.Replayed)
	if len(report.Confirmed) > 0 {
		fmt.Fprintf(f.Writer, "  confirmed %v\n", report.Confirmed)
	}
	if len(report.Rejected) > 0 {
		fmt.Fprintf(f.Writer, "  rejected %v\n", report.Rejected)
	}
	return nil
}

// logMetrics writes the round counters to the diagnostic stream in
// verbose mode.
func logMetrics(f *OutputFormatter, g prometheus.Gatherer) {
	if !f.Verbose {
		return
	}
	families, err := g.Gather()
	if err != nil {
		f.VerboseLog("gather metrics: %v", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				f.VerboseLog("metric %s%s %g", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				f.VerboseLog("metric %s%s count=%d", mf.GetName(), labels, m.GetHistogram().GetSampleCount())
			}
		}
	}
}
