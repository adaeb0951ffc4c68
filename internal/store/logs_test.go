package store

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/ir"
	"github.com/roach88/treesync/internal/logquery"
	"github.com/roach88/treesync/internal/synclog"
	"github.com/roach88/treesync/internal/testutil"
)

var (
	people    = ir.CollectionAddress("repo", "people")
	pets      = ir.CollectionAddress("repo", "pets")
	alice     = ir.EntryAddress("repo", "people", "alice")
	aliceName = ir.AttributeAddress("repo", "people", "alice", "name")
)

// sampleLog builds a log with confirmed history, a playback entry, a local
// value change and a local transaction.
func sampleLog(t *testing.T) *synclog.Log {
	t.Helper()
	l, err := synclog.New(people, 0)
	require.NoError(t, err)

	add := testutil.AddEntry(people, "alice", 1)
	require.NoError(t, l.Append(synclog.Entry{Command: testutil.CommandFor(add), Event: add}))
	require.True(t, l.MarkSynchronized(1))

	playback := testutil.AddAttribute(alice, "name", 2)
	require.NoError(t, l.Append(synclog.Entry{Event: playback}))

	set := testutil.SetValue(aliceName, 3, ir.NewIRObject(ir.O("first", ir.IRString("Alice")), ir.O("age", ir.IRInt(30))))
	require.NoError(t, l.Append(synclog.Entry{Command: testutil.CommandFor(set), Event: set}))

	tx := testutil.Transaction(people, 4,
		testutil.AddEntry(people, "bob", 4),
		testutil.AddAttribute(ir.EntryAddress("repo", "people", "bob"), "name", 4),
	)
	require.NoError(t, l.Append(synclog.Entry{Command: testutil.CommandFor(tx), Event: tx}))
	return l
}

func collect(seq func(func(synclog.Entry) bool)) []synclog.Entry {
	var out []synclog.Entry
	for e := range seq {
		out = append(out, e)
	}
	return out
}

func TestCreateLog(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateLog(ctx, people, 7))

	l, err := s.LoadLog(ctx, people)
	require.NoError(t, err)
	assert.Equal(t, people, l.BaseAddress())
	assert.Equal(t, int64(7), l.SynchronizedRevision())
	assert.Equal(t, int64(7), l.CurrentRevision())
	assert.Equal(t, 0, l.Len())

	err = s.CreateLog(ctx, people, 0)
	assert.ErrorIs(t, err, ErrLogExists)

	assert.Error(t, s.CreateLog(ctx, ir.Address{}, 0))
}

func TestLoadLog_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadLog(context.Background(), pets)
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestSaveLog_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	original := sampleLog(t)

	require.NoError(t, s.SaveLog(ctx, original))
	loaded, err := s.LoadLog(ctx, people)
	require.NoError(t, err)

	assert.Equal(t, original.SynchronizedRevision(), loaded.SynchronizedRevision())
	assert.Equal(t, original.CurrentRevision(), loaded.CurrentRevision())
	assert.Equal(t, collect(original.Entries()), collect(loaded.Entries()))
	assert.Equal(t, 2, loaded.CountLocalChanges(), "playback entry stays playback")
}

func TestSaveLog_Replaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	l := sampleLog(t)
	require.NoError(t, s.SaveLog(ctx, l))

	require.True(t, l.TruncateToRevision(2))
	require.NoError(t, s.SaveLog(ctx, l))

	loaded, err := s.LoadLog(ctx, people)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.CurrentRevision())
	assert.Equal(t, 2, loaded.Len())
}

func TestAppendEntry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLog(ctx, people, 0))

	ev := testutil.SetValue(aliceName, 1, ir.IRString("Alice"))
	entry := synclog.Entry{Command: testutil.CommandFor(ev), Event: ev}
	require.NoError(t, s.AppendEntry(ctx, people, entry))

	assert.Error(t, s.AppendEntry(ctx, people, entry), "revision already taken")
	assert.Error(t, s.AppendEntry(ctx, pets, entry), "log does not exist")

	loaded, err := s.LoadLog(ctx, people)
	require.NoError(t, err)
	got, found, err := loaded.EntryAt(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entry, got)
}

func TestSetSynchronizedRevision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveLog(ctx, sampleLog(t)))

	require.NoError(t, s.SetSynchronizedRevision(ctx, people, 3))
	loaded, err := s.LoadLog(ctx, people)
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded.SynchronizedRevision())
	assert.Equal(t, 1, loaded.CountLocalChanges())

	assert.ErrorIs(t, s.SetSynchronizedRevision(ctx, pets, 1), ErrLogNotFound)
}

func TestDeleteEntriesAbove(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveLog(ctx, sampleLog(t)))

	n, err := s.DeleteEntriesAbove(ctx, people, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var hashes int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM sync_event_hashes WHERE revision > 2`).Scan(&hashes))
	assert.Zero(t, hashes, "hashes cascade with their entries")
}

func TestDeleteEntries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveLog(ctx, sampleLog(t)))

	n, err := s.DeleteEntries(ctx, people, []int64{3, 4, 99})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	loaded, err := s.LoadLog(ctx, people)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.CountLocalChanges())
}

func TestDeleteLog(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveLog(ctx, sampleLog(t)))

	require.NoError(t, s.DeleteLog(ctx, people))
	_, err := s.LoadLog(ctx, people)
	assert.ErrorIs(t, err, ErrLogNotFound)
	assert.ErrorIs(t, s.DeleteLog(ctx, people), ErrLogNotFound)

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM sync_log_entries`).Scan(&rows))
	assert.Zero(t, rows)
}

func TestListLogs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	infos, err := s.ListLogs(ctx)
	require.NoError(t, err)
	assert.NotNil(t, infos)
	assert.Empty(t, infos)

	require.NoError(t, s.SaveLog(ctx, sampleLog(t)))
	require.NoError(t, s.CreateLog(ctx, pets, 5))

	infos, err = s.ListLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LogInfo{
		{BaseAddress: people, SynchronizedRevision: 1, CurrentRevision: 4, Entries: 4, Pending: 2},
		{BaseAddress: pets, SynchronizedRevision: 5, CurrentRevision: 5, Entries: 0, Pending: 0},
	}, infos)
}

func TestFindByHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveLog(ctx, sampleLog(t)))

	// Adding bob is a member of the transaction at revision 4.
	hash := ir.MustStructuralHash(testutil.AddEntry(people, "bob", 99))
	found, err := s.FindByHash(ctx, hash)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, people, found[0].BaseAddress)
	assert.Equal(t, int64(4), found[0].Entry.Revision())

	found, err = s.FindByHash(ctx, "no-such-hash")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMigration_BackfillsHashes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveLog(ctx, sampleLog(t)))
	// Simulate a database written before hashes were kept.
	_, err = s.db.Exec(`DELETE FROM sync_event_hashes`)
	require.NoError(t, err)
	_, err = s.db.Exec(`PRAGMA user_version = 0`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var positions []int
	rows, err := s.db.Query(`SELECT position FROM sync_event_hashes WHERE revision = 4 ORDER BY position`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var p int
		require.NoError(t, rows.Scan(&p))
		positions = append(positions, p)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{0, 1}, positions)

	var total int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM sync_event_hashes`).Scan(&total))
	assert.Equal(t, 5, total, "one hash per atomic event")
	assert.True(t, slices.Contains(getTableIndexes(t, s.db, "sync_event_hashes"), "idx_sync_event_hashes_hash"))
}

func TestQueryEntries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveLog(ctx, sampleLog(t)))

	petLog, err := synclog.New(pets, 0)
	require.NoError(t, err)
	require.NoError(t, petLog.Append(synclog.Entry{Event: testutil.AddEntry(pets, "rex", 1)}))
	require.NoError(t, s.SaveLog(ctx, petLog))

	revisions := func(found []LocatedEntry) []string {
		out := make([]string, len(found))
		for i, f := range found {
			out[i] = fmt.Sprintf("%s@%d", f.BaseAddress, f.Entry.Revision())
		}
		return out
	}

	tests := []struct {
		name  string
		query logquery.Query
		want  []string
	}{
		{
			name:  "everything",
			query: logquery.Query{},
			want:  []string{"repo/people@1", "repo/people@2", "repo/people@3", "repo/people@4", "repo/pets@1"},
		},
		{
			name:  "one log",
			query: logquery.Query{Base: pets},
			want:  []string{"repo/pets@1"},
		},
		{
			name:  "kind",
			query: logquery.Query{Filter: logquery.KindIs{Kind: ir.KindAdd}},
			want:  []string{"repo/people@1", "repo/people@2", "repo/pets@1"},
		},
		{
			name:  "under entry",
			query: logquery.Query{Filter: logquery.Under{Address: alice}},
			want:  []string{"repo/people@1", "repo/people@2", "repo/people@3"},
		},
		{
			name:  "local and unconfirmed",
			query: logquery.Query{Filter: logquery.And{Filters: []logquery.Filter{logquery.Origin{Local: true}, logquery.Unconfirmed{}}}},
			want:  []string{"repo/people@3", "repo/people@4"},
		},
		{
			name:  "playback",
			query: logquery.Query{Base: people, Filter: logquery.Origin{Local: false}},
			want:  []string{"repo/people@2"},
		},
		{
			name:  "revision window with limit",
			query: logquery.Query{Base: people, Filter: logquery.Revisions{From: 2}, Limit: 2},
			want:  []string{"repo/people@2", "repo/people@3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := s.QueryEntries(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, revisions(found))
		})
	}

	t.Run("invalid", func(t *testing.T) {
		_, err := s.QueryEntries(ctx, logquery.Query{Limit: -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid query")
	})

	t.Run("decodes entries", func(t *testing.T) {
		found, err := s.QueryEntries(ctx, logquery.Query{Base: people, Filter: logquery.KindIs{Kind: ir.KindTransaction}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.True(t, found[0].Entry.IsLocal())
		assert.Len(t, found[0].Entry.Event.Events, 2)
	})
}
