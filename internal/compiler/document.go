package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/synclog"
)

// Document is a compiled batch file.
type Document struct {
	// Base is the log base address, zero if the document has none.
	Base                 ir.Address
	SynchronizedRevision int64
	Events               []ir.Event
	Entries              []synclog.Entry
}

// CompileDocument compiles a top-level CUE value:
//
//	base?:                  "repo/collection"
//	synchronized_revision?: int
//	events?:                [...event]
//	entries?:               [...entry]
//
// Errors from events and entries are collected together.
func CompileDocument(v cue.Value) (*Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	doc := &Document{Events: []ir.Event{}, Entries: []synclog.Entry{}}
	var errs *multierror.Error

	if f, ok := lookup(v, "base"); ok {
		base, err := addressValue("base", f)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		doc.Base = base
	}
	rev, err := optionalInt(v, "synchronized_revision", 0)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	doc.SynchronizedRevision = rev

	if f, ok := lookup(v, "events"); ok {
		events, err := CompileEvents(f)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			doc.Events = events
		}
	}
	if f, ok := lookup(v, "entries"); ok {
		entries, err := CompileEntries(f)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			doc.Entries = entries
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return doc, nil
}

// CompileString compiles CUE source. filename is used in error positions.
func CompileString(filename, src string) (*Document, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return CompileDocument(v)
}

// CompileFile compiles the CUE file at path.
func CompileFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return CompileDocument(v)
}

// Log builds a sync log from the document's base, synchronized revision
// and entries. Entries at or below the synchronized revision are kept as
// confirmed history.
func (d *Document) Log() (*synclog.Log, error) {
	if d.Base.IsZero() {
		return nil, &CompileError{Field: "base", Message: "base is required to build a log"}
	}
	anchor := d.SynchronizedRevision
	if len(d.Entries) > 0 {
		anchor = min(anchor, d.Entries[0].Revision()-1)
	}
	log, err := synclog.New(d.Base, anchor)
	if err != nil {
		return nil, err
	}
	for _, entry := range d.Entries {
		if err := log.Append(entry); err != nil {
			return nil, fmt.Errorf("entry %d: %w", entry.Revision(), err)
		}
	}
	if !log.MarkSynchronized(d.SynchronizedRevision) {
		return nil, &CompileError{
			Field:   "synchronized_revision",
			Message: fmt.Sprintf("%d is past the last entry %d", d.SynchronizedRevision, log.CurrentRevision()),
		}
	}
	return log, nil
}
