package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/roach88/treesync/internal/compiler"
	"github.com/roach88/treesync/internal/ir"
)

// FileTransport serves server history from a CUE batch document's events
// list. The file is recompiled on every fetch. Events whose changed entity
// lies outside the requested base are skipped.
type FileTransport struct {
	Path string
}

// NewFileTransport creates a transport reading path.
func NewFileTransport(path string) *FileTransport {
	return &FileTransport{Path: path}
}

// FetchEvents implements Transport.
func (t *FileTransport) FetchEvents(ctx context.Context, base ir.Address, since int64) ([]ir.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := compiler.CompileFile(t.Path)
	if err != nil {
		return nil, fmt.Errorf("file transport: %w", err)
	}

	events := []ir.Event{}
	for _, ev := range doc.Events {
		if ev.Revision > since && base.Contains(ev.Changed) {
			events = append(events, ev)
		}
	}
	slices.SortStableFunc(events, func(a, b ir.Event) int {
		return cmp.Compare(a.Revision, b.Revision)
	})
	return events, nil
}
