package cqdata

import (
	"context"
	"strings"
	"testing"

	"github.com/colloquyhq/colloquy/src/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A ConnOrTx that hands back canned rows and records every statement, so the
// read-state helpers can be exercised without a database.
type fakeReadStateDB struct {
	readEntryIDs []int // what Query returns, as single-int rows

	queries  []string
	execs    []execCall
	execTags []pgconn.CommandTag // popped per Exec; empty means "INSERT 0 1"
}

type execCall struct {
	sql  string
	args []any
}

func (f *fakeReadStateDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)
	return &fakeIntRows{vals: f.readEntryIDs}, nil
}

func (f *fakeReadStateDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not used by read-state helpers")
}

func (f *fakeReadStateDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	tag := pgconn.NewCommandTag("INSERT 0 1")
	if len(f.execTags) > 0 {
		tag = f.execTags[0]
		f.execTags = f.execTags[1:]
	}
	return tag, nil
}

func (f *fakeReadStateDB) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not used by read-state helpers")
}

func (f *fakeReadStateDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeReadStateTx{db: f}, nil
}

// The pgx.Tx surface the bulk mark exercises; everything else panics.
type fakeReadStateTx struct {
	db         *fakeReadStateDB
	committed  bool
	rolledBack bool
}

func (t *fakeReadStateTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeReadStateTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeReadStateTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *fakeReadStateTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeReadStateTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeReadStateTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not used by read-state helpers")
}

func (t *fakeReadStateTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not used by read-state helpers")
}

func (t *fakeReadStateTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not used by read-state helpers")
}

func (t *fakeReadStateTx) LargeObjects() pgx.LargeObjects {
	panic("not used by read-state helpers")
}

func (t *fakeReadStateTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not used by read-state helpers")
}

func (t *fakeReadStateTx) Conn() *pgx.Conn { return nil }

// Single-int-column rows, enough for QueryScalar[int].
type fakeIntRows struct {
	vals []int
	idx  int
}

func (r *fakeIntRows) Close()                                       {}
func (r *fakeIntRows) Err() error                                   { return nil }
func (r *fakeIntRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeIntRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeIntRows) RawValues() [][]byte                          { return nil }
func (r *fakeIntRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeIntRows) Scan(dest ...any) error                       { panic("not used") }

func (r *fakeIntRows) Next() bool {
	r.idx++
	return r.idx <= len(r.vals)
}

func (r *fakeIntRows) Values() ([]any, error) {
	return []any{int64(r.vals[r.idx-1])}, nil
}

func TestUnreadEntryIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("absence of a record means unread", func(t *testing.T) {
		fake := &fakeReadStateDB{readEntryIDs: []int{3}}
		unread, err := UnreadEntryIDs(ctx, fake, 42, []int{1, 2, 3, 4})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 4}, unread)
	})

	t.Run("read and unread partition the entry set", func(t *testing.T) {
		entryIDs := []int{10, 20, 30, 40, 50}
		fake := &fakeReadStateDB{readEntryIDs: []int{20, 50}}
		unread, err := UnreadEntryIDs(ctx, fake, 42, entryIDs)
		require.NoError(t, err)

		unreadSet := make(map[int]bool)
		for _, id := range unread {
			unreadSet[id] = true
		}
		for _, id := range fake.readEntryIDs {
			assert.False(t, unreadSet[id], "entry %d is both read and unread", id)
		}
		assert.Len(t, unread, len(entryIDs)-len(fake.readEntryIDs))
	})

	t.Run("entries created after a bulk mark come back unread", func(t *testing.T) {
		// Everything that existed at mark time was swept read; entry 4
		// arrived afterward and has no record at all.
		fake := &fakeReadStateDB{readEntryIDs: []int{1, 2, 3}}
		unread, err := UnreadEntryIDs(ctx, fake, 42, []int{1, 2, 3, 4})
		require.NoError(t, err)
		assert.Equal(t, []int{4}, unread)
	})

	t.Run("no entries means no query", func(t *testing.T) {
		fake := &fakeReadStateDB{}
		unread, err := UnreadEntryIDs(ctx, fake, 42, nil)
		require.NoError(t, err)
		assert.Empty(t, unread)
		assert.Empty(t, fake.queries)
	})
}

func TestMarkEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert sets the forced flag both ways", func(t *testing.T) {
		fake := &fakeReadStateDB{}
		err := MarkEntry(ctx, fake, 17, 42, true)
		require.NoError(t, err)
		require.Len(t, fake.execs, 1)

		sql := fake.execs[0].sql
		insert, update, found := strings.Cut(sql, "ON CONFLICT")
		require.True(t, found)
		assert.Contains(t, insert, "entry_read_state")
		assert.Contains(t, insert, "TRUE", "a fresh per-entry mark must be forced")
		assert.Contains(t, update, "forced = TRUE", "re-marking must keep the record forced")

		assert.Equal(t, 17, fake.execs[0].args[0])
		assert.Equal(t, 42, fake.execs[0].args[1])
		assert.Equal(t, true, fake.execs[0].args[2])
	})

	t.Run("missing entry is NotFound", func(t *testing.T) {
		fake := &fakeReadStateDB{execTags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 0")}}
		err := MarkEntry(ctx, fake, 999, 42, true)
		assert.ErrorIs(t, err, db.NotFound)
	})
}

func TestMarkAllEntries(t *testing.T) {
	ctx := context.Background()

	t.Run("bulk mark overwrites state but not forcedness", func(t *testing.T) {
		fake := &fakeReadStateDB{}
		err := MarkAllEntries(ctx, fake, 5, []int{5, 6, 7}, 42, true)
		require.NoError(t, err)
		require.Len(t, fake.execs, 2)

		// The entry sweep inserts unforced records, and its conflict clause
		// must leave a previously forced row's flag alone.
		entrySQL := fake.execs[0].sql
		insert, update, found := strings.Cut(entrySQL, "ON CONFLICT")
		require.True(t, found)
		assert.Contains(t, insert, "entry_read_state")
		assert.Contains(t, insert, "FALSE")
		assert.NotContains(t, update, "forced")
		assert.Equal(t, []int{5, 6, 7}, fake.execs[0].args[0])
		assert.Equal(t, 42, fake.execs[0].args[1])
		assert.Equal(t, true, fake.execs[0].args[2])

		// The topic's own initial-post marker moves with the sweep, for the
		// root topic only.
		topicSQL := fake.execs[1].sql
		assert.Contains(t, topicSQL, "topic_read_state")
		assert.Equal(t, 5, fake.execs[1].args[0])
	})

	t.Run("both statements share one timestamp", func(t *testing.T) {
		// The sweep is point-in-time; the entry rows and the topic marker
		// must agree on when it happened.
		fake := &fakeReadStateDB{}
		err := MarkAllEntries(ctx, fake, 5, []int{5}, 42, false)
		require.NoError(t, err)
		require.Len(t, fake.execs, 2)
		assert.Equal(t, fake.execs[0].args[3], fake.execs[1].args[3])
	})

	t.Run("missing topic is NotFound", func(t *testing.T) {
		fake := &fakeReadStateDB{execTags: []pgconn.CommandTag{
			pgconn.NewCommandTag("INSERT 0 1"),
			pgconn.NewCommandTag("INSERT 0 0"),
		}}
		err := MarkAllEntries(ctx, fake, 999, []int{999}, 42, true)
		assert.ErrorIs(t, err, db.NotFound)
	})
}

func TestMarkTopicInitialPost(t *testing.T) {
	ctx := context.Background()

	t.Run("touches only the topic marker", func(t *testing.T) {
		fake := &fakeReadStateDB{}
		err := MarkTopicInitialPost(ctx, fake, 5, 42, true)
		require.NoError(t, err)
		require.Len(t, fake.execs, 1)
		assert.Contains(t, fake.execs[0].sql, "topic_read_state")
		assert.NotContains(t, fake.execs[0].sql, "entry_read_state")
	})

	t.Run("missing topic is NotFound", func(t *testing.T) {
		fake := &fakeReadStateDB{execTags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 0")}}
		err := MarkTopicInitialPost(ctx, fake, 999, 42, true)
		assert.ErrorIs(t, err, db.NotFound)
	})
}
