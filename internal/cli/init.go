package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/store"
	"github.com/roach88/treesync/internal/synclog"
)

// InitResult is the output of init.
type InitResult struct {
	BaseAddress          string `json:"base_address"`
	SynchronizedRevision int64  `json:"synchronized_revision"`
	Reanchored           bool   `json:"reanchored,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		synchronized int64
		reanchor     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty sync log for --base",
		Long: `Create an empty sync log for the subtree at --base, anchored at the
revision the subtree had at checkout time.

With --reanchor, move the synchronized revision of an existing log
instead. Only an empty log can be re-anchored.

Examples:
  treesync init --base acme/people
  treesync init --base acme/people --synchronized 41
  treesync init --base acme/people --synchronized 57 --reanchor`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reanchor {
				return runReanchor(cmd.Context(), rootOpts, synchronized, cmd)
			}
			return runInit(cmd.Context(), rootOpts, synchronized, cmd)
		},
	}
	cmd.Flags().Int64Var(&synchronized, "synchronized", 0, "synchronized revision to anchor the log at (-1 for a new subtree)")
	cmd.Flags().BoolVar(&reanchor, "reanchor", false, "move the synchronized revision of an existing empty log")
	return cmd
}

func runInit(ctx context.Context, opts *RootOptions, synchronized int64, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	base, err := opts.BaseAddress()
	if err != nil {
		return err
	}
	if synchronized < -1 {
		return NewExitError(ExitCommandError, "--synchronized must be at least -1")
	}

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.CreateLog(ctx, base, synchronized); err != nil {
		if errors.Is(err, store.ErrLogExists) {
			return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("log for %s already exists", base), nil)
		}
		return WrapExitError(ExitCommandError, "failed to create log", err)
	}

	if f.IsJSON() {
		return f.JSON(InitResult{BaseAddress: base.String(), SynchronizedRevision: synchronized})
	}
	fmt.Fprintf(f.Writer, "Initialized log %s at revision %d\n", base, synchronized)
	return nil
}

func runReanchor(ctx context.Context, opts *RootOptions, synchronized int64, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	st, log, err := openLog(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := log.SetSynchronizedRevision(synchronized); err != nil {
		if synclog.IsIllegalState(err) {
			return f.Fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("log for %s holds entries", log.BaseAddress()), err)
		}
		return NewExitError(ExitCommandError, "--synchronized must be at least -1")
	}
	if err := st.SetSynchronizedRevision(ctx, log.BaseAddress(), synchronized); err != nil {
		return WrapExitError(ExitCommandError, "failed to re-anchor log", err)
	}

	result := InitResult{BaseAddress: log.BaseAddress().String(), SynchronizedRevision: synchronized, Reanchored: true}
	if f.IsJSON() {
		return f.JSON(result)
	}
	fmt.Fprintf(f.Writer, "Re-anchored log %s at revision %d\n", result.BaseAddress, synchronized)
	return nil
}

// NewDropCommand creates the drop command.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Delete the sync log for --base and all of its entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			base, err := rootOpts.BaseAddress()
			if err != nil {
				return err
			}
			st, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteLog(cmd.Context(), base); err != nil {
				if errors.Is(err, store.ErrLogNotFound) {
					return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no log for %s", base), nil)
				}
				return WrapExitError(ExitCommandError, "failed to delete log", err)
			}
			if f.IsJSON() {
				return f.JSON(map[string]string{"dropped": base.String()})
			}
			fmt.Fprintf(f.Writer, "Dropped log %s\n", base)
			return nil
		},
	}
}
