package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/synclog"
)

func TestCompileEventChange(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{
		kind: "change"
		target: "acme/people/alice/name"
		revision: 7
		actor: "server"
		new_value: "Alice"
		old_value: null
	}`)
	require.NoError(t, v.Err())

	ev, err := CompileEvent(v)
	require.NoError(t, err)

	attr := ir.AttributeAddress("acme", "people", "alice", "name")
	assert.Equal(t, ir.KindChange, ev.Kind)
	assert.Equal(t, attr, ev.Target)
	assert.Equal(t, attr, ev.Changed)
	assert.Equal(t, int64(7), ev.Revision)
	assert.Equal(t, int64(6), ev.OldRevision)
	assert.Equal(t, "server", ev.Actor)
	assert.False(t, ev.Forced)
	assert.Equal(t, ir.IRString("Alice"), ev.NewValue)
	assert.Nil(t, ev.OldValue, "null is absent")
}

func TestCompileEventAddEntry(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{
		kind: "add"
		target: "acme/people"
		changed: "acme/people/bob"
		revision: 3
		old_revision: 1
		forced: true
	}`)

	ev, err := CompileEvent(v)
	require.NoError(t, err)

	assert.Equal(t, ir.KindAdd, ev.Kind)
	assert.Equal(t, ir.CollectionAddress("acme", "people"), ev.Target)
	assert.Equal(t, ir.EntryAddress("acme", "people", "bob"), ev.Changed)
	assert.Equal(t, int64(1), ev.OldRevision)
	assert.True(t, ev.Forced)
}

func TestCompileEventValues(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{
		kind: "change"
		target: "acme/people/alice/profile"
		revision: 2
		new_value: {
			age: 42
			tags: ["a", "b"]
			active: true
			"odd key": null
		}
	}`)

	ev, err := CompileEvent(v)
	require.NoError(t, err)

	want := ir.IRObject{
		"age":     ir.IRInt(42),
		"tags":    ir.IRArray{ir.IRString("a"), ir.IRString("b")},
		"active":  ir.IRBool(true),
		"odd key": ir.IRNull{},
	}
	assert.True(t, ir.ValuesEqual(want, ev.NewValue), "got %#v", ev.NewValue)
}

func TestCompileEventRejectsFloat(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{
		kind: "change"
		target: "acme/people/alice/score"
		revision: 2
		new_value: {nested: [1, 2.5]}
	}`)

	_, err := CompileEvent(v)
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "new_value.nested[1]", cerr.Field)
	assert.Contains(t, cerr.Message, "float")
}

func TestCompileEventErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing kind",
			src:  `{target: "acme/people/alice/name", revision: 1}`,
			want: "kind is required",
		},
		{
			name: "unknown kind",
			src:  `{kind: "rename", target: "acme/people/alice/name", revision: 1}`,
			want: "unknown change kind",
		},
		{
			name: "missing target",
			src:  `{kind: "change", revision: 1}`,
			want: "target is required",
		},
		{
			name: "bad address",
			src:  `{kind: "change", target: "acme//alice", revision: 1}`,
			want: "target",
		},
		{
			name: "missing revision",
			src:  `{kind: "change", target: "acme/people/alice/name"}`,
			want: "revision is required",
		},
		{
			name: "revision not int",
			src:  `{kind: "change", target: "acme/people/alice/name", revision: "7"}`,
			want: "expected int",
		},
		{
			name: "sub-events on atomic event",
			src: `{kind: "change", target: "acme/people/alice/name", revision: 1, events: [
				{kind: "change", target: "acme/people/alice/name"},
			]}`,
			want: "only transaction events have sub-events",
		},
		{
			name: "empty transaction",
			src:  `{kind: "transaction", target: "acme/people", revision: 1}`,
			want: "transaction needs sub-events",
		},
		{
			name: "nested transaction",
			src: `{kind: "transaction", target: "acme/people", revision: 1, events: [
				{kind: "transaction", target: "acme/people", events: []},
			]}`,
			want: "transactions do not nest",
		},
		{
			name: "invalid event",
			src:  `{kind: "change", target: "acme/people", revision: 1}`,
			want: "change event must target the changed attribute",
		},
		{
			name: "incomplete value",
			src:  `{kind: "change", target: "acme/people/alice/name", revision: 1, new_value: string}`,
			want: "must be concrete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileEvent(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompileEventTransaction(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{
		kind: "transaction"
		target: "acme/people"
		revision: 9
		actor: "server"
		events: [
			{kind: "add", target: "acme/people", changed: "acme/people/bob"},
			{kind: "add", target: "acme/people/bob", changed: "acme/people/bob/name"},
			{kind: "change", target: "acme/people/bob/name", new_value: "Bob", actor: "other"},
		]
	}`)

	ev, err := CompileEvent(v)
	require.NoError(t, err)

	require.True(t, ev.IsTransaction())
	require.Len(t, ev.Events, 3)
	assert.Equal(t, ir.CollectionAddress("acme", "people"), ev.Changed)
	for i, sub := range ev.Events {
		assert.True(t, sub.InTransaction, "sub-event %d", i)
		assert.Equal(t, int64(9), sub.Revision, "sub-event %d", i)
		assert.Equal(t, int64(8), sub.OldRevision, "sub-event %d", i)
	}
	assert.Equal(t, "server", ev.Events[0].Actor)
	assert.Equal(t, "other", ev.Events[2].Actor)
	assert.Equal(t, ir.IRString("Bob"), ev.Events[2].NewValue)
}

func TestCompileEventsCollectsAllErrors(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`[
		{kind: "change", target: "acme/people/alice/name", revision: 1},
		{kind: "change", target: "acme/people/alice/name"},
		{kind: "change", target: "acme/people/alice/name", revision: 3},
		{kind: "bogus", target: "acme/people/alice/name", revision: 4},
	]`)

	_, err := CompileEvents(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events[1]")
	assert.Contains(t, err.Error(), "events[3]")
	assert.NotContains(t, err.Error(), "events[0]")
	assert.NotContains(t, err.Error(), "events[2]")
}

func TestCompileEventsNotAList(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{kind: "change"}`)

	_, err := CompileEvents(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected list")
}

func TestCompileEntryDefaults(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{
		event: {kind: "change", target: "acme/people/alice/name", revision: 4, actor: "carol", new_value: "Al"}
		command: {}
	}`)

	entry, err := CompileEntry(v)
	require.NoError(t, err)
	require.True(t, entry.IsLocal())

	cmd := entry.Command
	assert.Equal(t, ir.KindChange, cmd.Kind)
	assert.Equal(t, ir.AttributeAddress("acme", "people", "alice", "name"), cmd.Target)
	assert.Equal(t, ir.IntentSafe, cmd.Intent)
	assert.Equal(t, int64(3), cmd.Revision)
	assert.Equal(t, "carol", cmd.Actor)
	assert.Equal(t, ir.IRString("Al"), cmd.Value)
	assert.Empty(t, cmd.ID)
}

func TestCompileEntryExplicitCommand(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{
		event: {kind: "change", target: "acme/people/alice/name", revision: 4, new_value: "Al"}
		command: {id: "cmd-1", actor: "dave", intent: "forced", value: "Alice"}
	}`)

	entry, err := CompileEntry(v)
	require.NoError(t, err)

	cmd := entry.Command
	assert.Equal(t, "cmd-1", cmd.ID)
	assert.Equal(t, "dave", cmd.Actor)
	assert.Equal(t, ir.IntentForced, cmd.Intent)
	assert.Equal(t, ir.IRString("Alice"), cmd.Value)
}

func TestCompileEntryPlayback(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{
		event: {kind: "add", target: "acme/people", changed: "acme/people/alice", revision: 1}
	}`)

	entry, err := CompileEntry(v)
	require.NoError(t, err)
	assert.False(t, entry.IsLocal())
	assert.Equal(t, int64(1), entry.Revision())
}

func TestCompileEntryTransactionCommand(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`{
		event: {
			kind: "transaction"
			target: "acme/people"
			revision: 5
			events: [
				{kind: "add", target: "acme/people", changed: "acme/people/bob"},
				{kind: "change", target: "acme/people/bob/name", new_value: "Bob"},
			]
		}
		command: {actor: "erin"}
	}`)

	entry, err := CompileEntry(v)
	require.NoError(t, err)

	cmd := entry.Command
	assert.Equal(t, ir.KindTransaction, cmd.Kind)
	assert.Equal(t, "erin", cmd.Actor)
	require.Len(t, cmd.Commands, 2)
	assert.Equal(t, ir.EntryAddress("acme", "people", "bob"), cmd.Commands[0].Target)
	assert.Equal(t, ir.IntentSafe, cmd.Commands[0].Intent)
	assert.Equal(t, int64(4), cmd.Commands[0].Revision)
	assert.Equal(t, ir.IRString("Bob"), cmd.Commands[1].Value)
}

func TestCompileEntryErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing event",
			src:  `{command: {}}`,
			want: "event is required",
		},
		{
			name: "bad intent",
			src: `{
				event: {kind: "change", target: "acme/people/alice/name", revision: 1}
				command: {intent: "maybe"}
			}`,
			want: `unknown intent "maybe"`,
		},
		{
			name: "bad event",
			src:  `{event: {kind: "change", target: "acme/people/alice/name"}}`,
			want: "revision is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			_, err := CompileEntry(ctx.CompileString(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

const sampleDocument = `
base: "acme/people"
synchronized_revision: 1

entries: [
	{event: {kind: "add", target: "acme/people", changed: "acme/people/alice", revision: 1}},
	{
		event: {kind: "add", target: "acme/people/alice", changed: "acme/people/alice/name", revision: 2}
		command: {}
	},
	{
		event: {kind: "change", target: "acme/people/alice/name", revision: 3, new_value: "Alice"}
		command: {}
	},
]

events: [
	{kind: "add", target: "acme/people/alice", changed: "acme/people/alice/name", revision: 2, actor: "server"},
]
`

func TestCompileString(t *testing.T) {
	doc, err := CompileString("sample.cue", sampleDocument)
	require.NoError(t, err)

	assert.Equal(t, ir.CollectionAddress("acme", "people"), doc.Base)
	assert.Equal(t, int64(1), doc.SynchronizedRevision)
	assert.Len(t, doc.Entries, 3)
	require.Len(t, doc.Events, 1)
	assert.Equal(t, "server", doc.Events[0].Actor)
}

func TestDocumentLog(t *testing.T) {
	doc, err := CompileString("sample.cue", sampleDocument)
	require.NoError(t, err)

	log, err := doc.Log()
	require.NoError(t, err)

	assert.Equal(t, int64(1), log.SynchronizedRevision())
	assert.Equal(t, int64(3), log.CurrentRevision())
	assert.Equal(t, 3, log.Len())
	assert.Equal(t, 2, log.CountLocalChanges())
}

func TestDocumentLogErrors(t *testing.T) {
	t.Run("no base", func(t *testing.T) {
		doc := &Document{}
		_, err := doc.Log()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base is required")
	})

	t.Run("gap", func(t *testing.T) {
		doc, err := CompileString("gap.cue", `
			base: "acme/people"
			entries: [
				{event: {kind: "add", target: "acme/people", changed: "acme/people/a", revision: 1}},
				{event: {kind: "add", target: "acme/people", changed: "acme/people/b", revision: 3}},
			]
		`)
		require.NoError(t, err)

		_, err = doc.Log()
		require.Error(t, err)
		assert.True(t, synclog.IsInvalidEntry(err))
	})

	t.Run("synchronized past entries", func(t *testing.T) {
		doc, err := CompileString("past.cue", `
			base: "acme/people"
			synchronized_revision: 5
			entries: [
				{event: {kind: "add", target: "acme/people", changed: "acme/people/a", revision: 1}},
			]
		`)
		require.NoError(t, err)

		_, err = doc.Log()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "synchronized_revision")
	})
}

func TestCompileStringReportsPositions(t *testing.T) {
	_, err := CompileString("broken.cue", `
events: [
	{kind: "change", target: "acme/people/alice/name", revision: "x"},
]
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cue:")
	assert.Contains(t, err.Error(), "expected int")
}

func TestCompileStringSyntaxError(t *testing.T) {
	doc, err := CompileString("syntax.cue", `events: [`)
	require.Error(t, err)
	assert.Nil(t, doc)
}

func TestCompileDocumentCollectsErrors(t *testing.T) {
	_, err := CompileString("multi.cue", `
base: "not an address//"
events: [{kind: "nope", target: "acme/people/a/b", revision: 1}]
entries: [{command: {}}]
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base")
	assert.Contains(t, err.Error(), "events[0]")
	assert.Contains(t, err.Error(), "entries[0]")
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.cue")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0o644))

	doc, err := CompileFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Entries, 3)

	_, err = CompileFile(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.cue")
}
