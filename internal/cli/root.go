package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/treesync/internal/ir"
)

// Configuration keys. Each is also a persistent flag and can be set
// through a TREESYNC_* environment variable or the config file.
const (
	KeyDatabase = "db"
	KeyBase     = "base"
	KeyFormat   = "format"
	KeyVerbose  = "verbose"
	KeyActor    = "actor"
)

// RootOptions holds global settings for all commands, resolved from flags,
// environment and config file in that order of precedence.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string
	Base     string
	Actor    string
	Config   string

	v *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the treesync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:     "treesync",
		Version: ir.Version,
		Short:   "treesync - local change log and server reconciliation",
		Long: `Record local changes to a repository tree, reconcile them against
server history and advance the synchronized revision.

Settings come from flags, TREESYNC_* environment variables and an
optional YAML config file, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve()
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolP(KeyVerbose, "v", false, "verbose output")
	flags.String(KeyFormat, "text", "output format (json|text)")
	flags.String(KeyDatabase, "treesync.db", "path to SQLite database")
	flags.String(KeyBase, "", "base address of the log (repository or repository/collection)")
	flags.String(KeyActor, "cli", "actor ID recorded on commands")
	flags.StringVar(&opts.Config, "config", "", "config file (YAML)")
	for _, key := range []string{KeyVerbose, KeyFormat, KeyDatabase, KeyBase, KeyActor} {
		_ = opts.v.BindPFlag(key, flags.Lookup(key))
	}

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewPendingCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewTruncateCommand(opts))
	cmd.AddCommand(NewDiscardCommand(opts))
	cmd.AddCommand(NewDropCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve reads the config file and environment and fills opts.
func (o *RootOptions) resolve() error {
	v := o.v
	if v == nil {
		v = viper.New()
		o.v = v
	}
	v.SetEnvPrefix("TREESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if o.Config != "" {
		if _, err := os.Stat(o.Config); errors.Is(err, fs.ErrNotExist) {
			return NewExitError(ExitCommandError, fmt.Sprintf("config file not found: %s", o.Config))
		}
		v.SetConfigFile(o.Config)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return WrapExitError(ExitCommandError, "failed to read config", err)
		}
	}

	o.Verbose = v.GetBool(KeyVerbose)
	o.Format = v.GetString(KeyFormat)
	o.Database = v.GetString(KeyDatabase)
	o.Base = v.GetString(KeyBase)
	o.Actor = v.GetString(KeyActor)

	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	return nil
}

// BaseAddress parses the configured base address.
func (o *RootOptions) BaseAddress() (ir.Address, error) {
	if o.Base == "" {
		return ir.Address{}, NewExitError(ExitCommandError, "--base is required")
	}
	base, err := ir.ParseAddress(o.Base)
	if err != nil {
		return ir.Address{}, WrapExitError(ExitCommandError, "invalid --base", err)
	}
	return base, nil
}

// Logger returns a text logger on w at debug level when verbose, and a
// discarding logger otherwise.
func (o *RootOptions) Logger(w io.Writer) *slog.Logger {
	if !o.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
