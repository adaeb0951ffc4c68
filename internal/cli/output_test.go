package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"result": "success"}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error(ErrCodeInvalidEntry, "entry does not continue the log", "revision 4"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E101", resp.Error.Code)
	assert.Equal(t, "entry does not continue the log", resp.Error.Message)
	assert.Equal(t, "revision 4", resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, f.Error(ErrCodeRound, "round failed", "REMOTE_GAP"))
			assert.Contains(t, buf.String(), "Error [E301]: round failed")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: REMOTE_GAP")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	cause := errors.New("revision 7 above current 5")

	err := f.Fail(ExitFailure, ErrCodeRefused, "cannot truncate", cause)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, cause)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRefused, resp.Error.Code)
	assert.Equal(t, cause.Error(), resp.Error.Details)
}

func TestOutputFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	f.Table(table.Row{"Rev", "Kind"}, []table.Row{{3, "add"}, {4, "remove"}})

	out := buf.String()
	assert.Contains(t, out, "REV")
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "remove")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
	}{
		{"enabled", true},
		{"disabled", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			f.VerboseLog("fetched %d events", 3)

			assert.Empty(t, out.String(), "diagnostics never go to stdout")
			if tt.verbose {
				assert.Equal(t, "fetched 3 events\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exit error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "round", errors.New("gap"))), ExitFailure},
		{"plain error", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())
	assert.Equal(t, "load: missing", WrapExitError(ExitCommandError, "load", errors.New("missing")).Error())
}
