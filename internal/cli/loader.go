package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/roach88/treesync/internal/compiler"
	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/store"
	"github.com/roach88/treesync/internal/synclog"
)

// openStore opens the configured database.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openLog opens the database and loads the log at the configured base.
// The caller closes the returned store.
func openLog(ctx context.Context, opts *RootOptions) (*store.Store, *synclog.Log, error) {
	base, err := opts.BaseAddress()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(opts)
	if err != nil {
		return nil, nil, err
	}
	log, err := st.LoadLog(ctx, base)
	if err != nil {
		st.Close()
		if errors.Is(err, store.ErrLogNotFound) {
			return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("no log for %s (run init first)", base))
		}
		return nil, nil, WrapExitError(ExitCommandError, "failed to load log", err)
	}
	return st, log, nil
}

// compileBatch compiles a CUE batch file, mapping failures to a command
// error.
func compileBatch(path string) (*compiler.Document, error) {
	doc, err := compiler.CompileFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to compile %s", path), err)
	}
	return doc, nil
}

// EntryView is the printable form of a log entry.
type EntryView struct {
	Base     string   `json:"base,omitempty"`
	Revision int64    `json:"revision"`
	Kind     string   `json:"kind"`
	Target   string   `json:"target"`
	Changed  string   `json:"changed"`
	Actor    string   `json:"actor,omitempty"`
	Local    bool     `json:"local"`
	Intent   string   `json:"intent,omitempty"`
	Hashes   []string `json:"hashes"`
}

func viewEntry(entry synclog.Entry) EntryView {
	ev := entry.Event
	view := EntryView{
		Revision: ev.Revision,
		Kind:     ev.Kind.String(),
		Target:   ev.Target.String(),
		Changed:  ev.Changed.String(),
		Actor:    ev.Actor,
		Local:    entry.IsLocal(),
		Hashes:   []string{},
	}
	if entry.Command != nil {
		view.Intent = entry.Command.Intent.String()
		if entry.Command.Kind == ir.KindTransaction && len(entry.Command.Commands) > 0 {
			view.Intent = entry.Command.Commands[0].Intent.String()
		}
	}
	for _, atom := range ev.Atomic() {
		if h, err := ir.StructuralHash(atom); err == nil {
			view.Hashes = append(view.Hashes, h)
		}
	}
	return view
}

func viewEntries(entries []synclog.Entry) []EntryView {
	views := make([]EntryView, len(entries))
	for i, e := range entries {
		views[i] = viewEntry(e)
	}
	return views
}

var entryHeader = table.Row{"Rev", "Kind", "Changed", "Origin", "Actor", "Hash"}

func entryRow(v EntryView) table.Row {
	origin := "playback"
	if v.Local {
		origin = "local/" + v.Intent
	}
	hash := ""
	switch len(v.Hashes) {
	case 0:
	case 1:
		hash = shortHash(v.Hashes[0])
	default:
		hash = shortHash(v.Hashes[0]) + " +" + strconv.Itoa(len(v.Hashes)-1)
	}
	return table.Row{v.Revision, v.Kind, v.Changed, origin, v.Actor, hash}
}

func entryRows(views []EntryView) []table.Row {
	rows := make([]table.Row, len(views))
	for i, v := range views {
		rows[i] = entryRow(v)
	}
	return rows
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
