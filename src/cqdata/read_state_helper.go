package cqdata

import (
	"context"
	"time"

	"github.com/colloquyhq/colloquy/src/db"
	"github.com/colloquyhq/colloquy/src/oops"
	"github.com/colloquyhq/colloquy/src/perf"
)

/*
Returns the subset of the supplied entry ids that have no explicit "read"
record for the user, preserving the supplied order. Absence of a record means
unread, so entries created after a bulk mark-read come back unread with no
extra bookkeeping.
*/
func UnreadEntryIDs(
	ctx context.Context,
	dbConn db.ConnOrTx,
	userID int,
	entryIDs []int,
) ([]int, error) {
	b := perf.ExtractPerf(ctx).StartBlock("SQL", "Fetch unread entries")
	defer b.End()

	if len(entryIDs) == 0 {
		return nil, nil
	}

	readIDs, err := db.QueryScalar[int](ctx, dbConn,
		`
		---- Fetch read entry ids
		SELECT entry_id
		FROM entry_read_state
		WHERE
			user_id = $1
			AND entry_id = ANY ($2)
			AND read
		`,
		userID,
		entryIDs,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch read entry ids")
	}

	read := make(map[int]bool, len(readIDs))
	for _, id := range readIDs {
		read[id] = true
	}

	unread := make([]int, 0, len(entryIDs)-len(readIDs))
	for _, id := range entryIDs {
		if !read[id] {
			unread = append(unread, id)
		}
	}

	return unread, nil
}

/*
Upserts a forced read/unread mark for one entry. Forced marks survive later
bulk actions: a bulk mark updates their state but the flag stays set.
Returns db.NotFound if the entry does not exist.
*/
func MarkEntry(
	ctx context.Context,
	dbConn db.ConnOrTx,
	entryID int,
	userID int,
	read bool,
) error {
	b := perf.ExtractPerf(ctx).StartBlock("SQL", "Mark entry")
	defer b.End()

	tag, err := dbConn.Exec(ctx,
		`
		INSERT INTO entry_read_state (entry_id, user_id, read, forced, marked_at)
		SELECT id, $2, $3, TRUE, $4
		FROM entry
		WHERE id = $1
		ON CONFLICT (entry_id, user_id) DO UPDATE
			SET read = EXCLUDED.read, forced = TRUE, marked_at = EXCLUDED.marked_at
		`,
		entryID,
		userID,
		read,
		time.Now(),
	)
	if err != nil {
		return oops.New(err, "failed to mark entry")
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound
	}

	return nil
}

/*
Marks every entry that currently exists in the given topics, plus the root
topic's own initial-post marker, in one transaction. This is a point-in-time
sweep: entries created afterward are unread until marked themselves.

Each bulk statement is a single INSERT ... SELECT upsert rather than a loop
of per-entry writes, so the sweep is atomic with respect to concurrent entry
creation and its latency does not scale with round trips.
*/
func MarkAllEntries(
	ctx context.Context,
	dbConn db.ConnOrTx,
	rootTopicID int,
	topicIDs []int,
	userID int,
	read bool,
) error {
	b := perf.ExtractPerf(ctx).StartBlock("SQL", "Mark all entries")
	defer b.End()

	tx, err := dbConn.Begin(ctx)
	if err != nil {
		return oops.New(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	_, err = tx.Exec(ctx,
		`
		INSERT INTO entry_read_state (entry_id, user_id, read, forced, marked_at)
		SELECT id, $2, $3, FALSE, $4
		FROM entry
		WHERE topic_id = ANY ($1)
		ON CONFLICT (entry_id, user_id) DO UPDATE
			SET read = EXCLUDED.read, marked_at = EXCLUDED.marked_at
		`,
		topicIDs,
		userID,
		read,
		now,
	)
	if err != nil {
		return oops.New(err, "failed to bulk-mark entries")
	}

	tag, err := tx.Exec(ctx,
		`
		INSERT INTO topic_read_state (topic_id, user_id, read, marked_at)
		SELECT id, $2, $3, $4
		FROM topic
		WHERE id = $1 AND NOT deleted
		ON CONFLICT (topic_id, user_id) DO UPDATE
			SET read = EXCLUDED.read, marked_at = EXCLUDED.marked_at
		`,
		rootTopicID,
		userID,
		read,
		now,
	)
	if err != nil {
		return oops.New(err, "failed to mark topic read state")
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound
	}

	err = tx.Commit(ctx)
	if err != nil {
		return oops.New(err, "failed to commit bulk mark")
	}

	return nil
}

/*
Toggles only the topic-level marker for the topic's own initial post,
independent of entry-level state. Returns db.NotFound for a missing topic.
*/
func MarkTopicInitialPost(
	ctx context.Context,
	dbConn db.ConnOrTx,
	topicID int,
	userID int,
	read bool,
) error {
	b := perf.ExtractPerf(ctx).StartBlock("SQL", "Mark topic initial post")
	defer b.End()

	tag, err := dbConn.Exec(ctx,
		`
		INSERT INTO topic_read_state (topic_id, user_id, read, marked_at)
		SELECT id, $2, $3, $4
		FROM topic
		WHERE id = $1 AND NOT deleted
		ON CONFLICT (topic_id, user_id) DO UPDATE
			SET read = EXCLUDED.read, marked_at = EXCLUDED.marked_at
		`,
		topicID,
		userID,
		read,
		time.Now(),
	)
	if err != nil {
		return oops.New(err, "failed to mark topic initial post")
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound
	}

	return nil
}
