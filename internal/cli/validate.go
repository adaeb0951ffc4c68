package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/compiler"
)

// ValidationError is one problem found in a batch.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Events  int               `json:"events"`
	Entries int               `json:"entries"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <batch.cue>",
		Short: "Check a CUE batch without touching any log",
		Long: `Compile a CUE batch and report every problem found in it. When the
batch names a base, its entries must also form a valid log anchored at
its synchronized_revision.

Exit codes:
  0 - Batch valid
  1 - Batch has errors
  2 - Command error (file not found, etc.)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("batch not found: %s", path), nil)
	}

	result := ValidationResult{}
	doc, err := compiler.CompileFile(path)
	if err == nil {
		result.Events = len(doc.Events)
		result.Entries = len(doc.Entries)
		f.VerboseLog("compiled %d events and %d entries from %s", result.Events, result.Entries, path)
		if !doc.Base.IsZero() && len(doc.Entries) > 0 {
			_, err = doc.Log()
		}
	}
	result.Errors = validationErrors(err)
	result.Valid = len(result.Errors) == 0

	if result.Valid {
		if f.IsJSON() {
			return f.JSON(result)
		}
		fmt.Fprintf(f.Writer, "✓ %s valid (%d events, %d entries)\n", path, result.Events, result.Entries)
		return nil
	}

	if f.IsJSON() {
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeCompile, Message: result.Errors[0].Message},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ %s invalid\n\n", path)
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(f.Writer, "line %d\n", e.Line)
			}
			if e.Field != "" {
				fmt.Fprintf(f.Writer, "  %s: %s\n", e.Field, e.Message)
			} else {
				fmt.Fprintf(f.Writer, "  %s\n", e.Message)
			}
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}

// validationErrors flattens a compile error into one entry per problem.
func validationErrors(err error) []ValidationError {
	if err == nil {
		return nil
	}
	errs := []error{err}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		errs = merr.Errors
	}
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		var cErr *compiler.CompileError
		if errors.As(e, &cErr) {
			v := ValidationError{Field: cErr.Field, Message: cErr.Message}
			if cErr.Pos.IsValid() {
				v.Line = cErr.Pos.Line()
			}
			out = append(out, v)
			continue
		}
		out = append(out, ValidationError{Message: e.Error()})
	}
	return out
}
