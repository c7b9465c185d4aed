package cqdata

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/colloquyhq/colloquy/src/db"
	"github.com/colloquyhq/colloquy/src/logging"
	"github.com/colloquyhq/colloquy/src/models"
	"github.com/colloquyhq/colloquy/src/oops"
	"github.com/colloquyhq/colloquy/src/parsing"
	"github.com/colloquyhq/colloquy/src/perf"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type EntriesQuery struct {
	// Available on all entry queries.
	TopicIDs  []int
	AuthorIDs []int

	// Ignored when using FetchEntry.
	EntryIDs  []int
	ParentIDs []int
	RootsOnly bool

	// Deleted entries are excluded unless this is set. The view builder sets
	// it so deleted entries keep their place in the thread shape.
	IncludeDeleted bool

	// Keyset position: only entries strictly older than this are returned.
	// Used by the pagination endpoints; see cursor.go.
	Before *Cursor

	// Ignored when using FetchEntry.
	Limit, Offset int
	OrderByIDAsc  bool // defaults to newest-first by (created_at, id)
	OldestFirst   bool
}

type EntryAndStuff struct {
	Topic  models.Topic  `db:"topic"`
	Entry  models.Entry  `db:"entry"`
	Author *models.User  `db:"author"` // Can be nil in case of a deleted user
	Editor *models.User  `db:"editor"`
	Asset  *models.Asset `db:"asset"`
	Unread bool
}

/*
Fetches entries and related models from the database according to all the
given query params. Read state is resolved for currentUser; with a nil user
everything comes back unread.
*/
func FetchEntries(
	ctx context.Context,
	dbConn db.ConnOrTx,
	currentUser *models.User,
	q EntriesQuery,
) ([]EntryAndStuff, error) {
	b := perf.ExtractPerf(ctx).StartBlock("SQL", "Fetch entries")
	defer b.End()

	var currentUserID *int
	if currentUser != nil {
		currentUserID = &currentUser.ID
	}

	type resultRow struct {
		EntryAndStuff
		ReadState *bool `db:"ers.read"`
	}

	var qb db.QueryBuilder
	qb.Add(
		`
		---- Fetch entries
		SELECT $columns
		FROM
			entry
			JOIN topic ON entry.topic_id = topic.id
			LEFT JOIN cq_user AS author ON author.id = entry.author_id
			LEFT JOIN cq_user AS editor ON editor.id = entry.editor_id
			LEFT JOIN asset ON asset.id = entry.asset_id
			LEFT JOIN entry_read_state AS ers ON (
				ers.entry_id = entry.id
				AND ers.user_id = $?
			)
		WHERE
			NOT topic.deleted
		`,
		currentUserID,
	)
	if !q.IncludeDeleted {
		qb.Add(`AND NOT entry.deleted`)
	}
	if len(q.TopicIDs) > 0 {
		qb.Add(`AND entry.topic_id = ANY ($?)`, q.TopicIDs)
	}
	if len(q.AuthorIDs) > 0 {
		qb.Add(`AND entry.author_id = ANY ($?)`, q.AuthorIDs)
	}
	if len(q.EntryIDs) > 0 {
		qb.Add(`AND entry.id = ANY ($?)`, q.EntryIDs)
	}
	if len(q.ParentIDs) > 0 {
		qb.Add(`AND entry.parent_id = ANY ($?)`, q.ParentIDs)
	}
	if q.RootsOnly {
		qb.Add(`AND entry.parent_id IS NULL`)
	}
	if q.Before != nil {
		qb.Add(`AND (entry.created_at, entry.id) < ($?, $?)`, q.Before.CreatedAt, q.Before.ID)
	}
	if q.OrderByIDAsc {
		qb.Add(`ORDER BY entry.id ASC`)
	} else if q.OldestFirst {
		qb.Add(`ORDER BY entry.created_at ASC, entry.id ASC`)
	} else {
		qb.Add(`ORDER BY entry.created_at DESC, entry.id DESC`)
	}
	if q.Limit > 0 {
		qb.Add(`LIMIT $? OFFSET $?`, q.Limit, q.Offset)
	}

	rows, err := db.Query[resultRow](ctx, dbConn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch entries")
	}

	result := make([]EntryAndStuff, len(rows))
	for i, row := range rows {
		row.Unread = row.ReadState == nil || !*row.ReadState
		result[i] = row.EntryAndStuff
	}

	return result, nil
}

/*
Fetches a single entry and its related data. A wrapper around FetchEntries.

Returns db.NotFound if no result is found.
*/
func FetchEntry(
	ctx context.Context,
	dbConn db.ConnOrTx,
	currentUser *models.User,
	entryID int,
	q EntriesQuery,
) (EntryAndStuff, error) {
	q.EntryIDs = []int{entryID}
	q.Limit = 1
	q.Offset = 0

	res, err := FetchEntries(ctx, dbConn, currentUser, q)
	if err != nil {
		return EntryAndStuff{}, oops.New(err, "failed to fetch entry")
	}

	if len(res) == 0 {
		return EntryAndStuff{}, db.NotFound
	}

	return res[0], nil
}

func CountEntries(
	ctx context.Context,
	dbConn db.ConnOrTx,
	q EntriesQuery,
) (int, error) {
	b := perf.ExtractPerf(ctx).StartBlock("SQL", "Count entries")
	defer b.End()

	var qb db.QueryBuilder
	qb.Add(
		`
		---- Count entries
		SELECT COUNT(*)
		FROM
			entry
			JOIN topic ON entry.topic_id = topic.id
		WHERE
			NOT topic.deleted
		`,
	)
	if !q.IncludeDeleted {
		qb.Add(`AND NOT entry.deleted`)
	}
	if len(q.TopicIDs) > 0 {
		qb.Add(`AND entry.topic_id = ANY ($?)`, q.TopicIDs)
	}
	if len(q.AuthorIDs) > 0 {
		qb.Add(`AND entry.author_id = ANY ($?)`, q.AuthorIDs)
	}
	if len(q.ParentIDs) > 0 {
		qb.Add(`AND entry.parent_id = ANY ($?)`, q.ParentIDs)
	}
	if q.RootsOnly {
		qb.Add(`AND entry.parent_id IS NULL`)
	}

	count, err := db.QueryOneScalar[int](ctx, dbConn, qb.String(), qb.Args()...)
	if err != nil {
		return 0, oops.New(err, "failed to count entries")
	}

	return count, nil
}

/*
Fetches every entry of the given topics for the view builder: deleted entries
included, ordered by (created_at, id) ascending. No per-user joins; the view
is user-independent.
*/
func FetchEntriesForView(
	ctx context.Context,
	dbConn db.ConnOrTx,
	topicID int,
) ([]*models.Entry, error) {
	b := perf.ExtractPerf(ctx).StartBlock("SQL", "Fetch entries for view")
	defer b.End()

	entries, err := db.Query[models.Entry](ctx, dbConn,
		`
		---- Fetch entries for view
		SELECT $columns
		FROM entry
		WHERE entry.topic_id = $1
		ORDER BY entry.created_at ASC, entry.id ASC
		`,
		topicID,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch entries for view")
	}

	return entries, nil
}

const maxEntryContentLength = 200000
const previewMaxLength = 100

// Cuts s to at most max bytes without splitting a multibyte rune, so
// truncated text stays valid UTF-8.
func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

type CreateEntryInput struct {
	TopicID  int
	ParentID *int
	AuthorID int
	Message  string
	AssetID  *uuid.UUID
}

/*
Creates an entry and bumps the topic's updated_at, all in the given
transaction. Message markup is parsed at write time so readers never pay for
parsing.

The message must already be validated; this panics on database failure like
the other low-level write helpers, and the request machinery turns that into
a 500.
*/
func CreateEntry(
	ctx context.Context,
	tx pgx.Tx,
	in CreateEntryInput,
) (entryID int) {
	raw := in.Message
	if len(raw) > maxEntryContentLength {
		logging.ExtractLogger(ctx).Warn().
			Str("preview", truncateString(raw, 400)).
			Msg("Somebody attempted to create an extremely long entry. Content was truncated.")
		raw = truncateString(raw, maxEntryContentLength-1)
	}

	html := parsing.ParseMarkdown(raw, parsing.EntryMarkdown)
	preview := parsing.ParseMarkdown(raw, parsing.PlaintextMarkdown)
	if len(preview) > previewMaxLength-1 {
		preview = truncateString(preview, previewMaxLength-1) + "…"
	}

	now := time.Now()
	err := tx.QueryRow(ctx,
		`
		INSERT INTO entry (topic_id, parent_id, author_id, message_raw, message_html, preview, asset_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
		`,
		in.TopicID,
		in.ParentID,
		in.AuthorID,
		raw,
		html,
		preview,
		in.AssetID,
		now,
	).Scan(&entryID)
	if err != nil {
		panic(oops.New(err, "failed to create entry"))
	}

	_, err = tx.Exec(ctx,
		`
		UPDATE topic
		SET updated_at = $2
		WHERE id = $1
		`,
		in.TopicID,
		now,
	)
	if err != nil {
		panic(oops.New(err, "failed to bump topic updated_at"))
	}

	return
}

/*
Rewrites an entry's message. editorID is recorded only when it differs from
the entry's author. Returns db.NotFound for a missing or deleted entry.
*/
func EditEntry(
	ctx context.Context,
	tx pgx.Tx,
	entryID int,
	editorID int,
	message string,
) error {
	authorID, err := db.QueryOneScalar[*int](ctx, tx,
		`
		---- Fetch entry author
		SELECT author_id
		FROM entry
		WHERE id = $1 AND NOT deleted
		`,
		entryID,
	)
	if err != nil {
		return err
	}

	if len(message) > maxEntryContentLength {
		message = truncateString(message, maxEntryContentLength-1)
	}
	html := parsing.ParseMarkdown(message, parsing.EntryMarkdown)
	preview := parsing.ParseMarkdown(message, parsing.PlaintextMarkdown)
	if len(preview) > previewMaxLength-1 {
		preview = truncateString(preview, previewMaxLength-1) + "…"
	}

	var recordedEditor *int
	if authorID == nil || *authorID != editorID {
		recordedEditor = &editorID
	}

	_, err = tx.Exec(ctx,
		`
		UPDATE entry
		SET message_raw = $2, message_html = $3, preview = $4, editor_id = $5, updated_at = $6
		WHERE id = $1
		`,
		entryID,
		message,
		html,
		preview,
		recordedEditor,
		time.Now(),
	)
	if err != nil {
		return oops.New(err, "failed to edit entry")
	}

	return nil
}

/*
Soft-deletes an entry. The row stays put so replies keep their place; the
serialized view shows a placeholder. Returns db.NotFound if the entry does
not exist or is already deleted.
*/
func DeleteEntry(
	ctx context.Context,
	tx pgx.Tx,
	entryID int,
) error {
	tag, err := tx.Exec(ctx,
		`
		UPDATE entry
		SET deleted = TRUE, updated_at = $2
		WHERE id = $1 AND NOT deleted
		`,
		entryID,
		time.Now(),
	)
	if err != nil {
		return oops.New(err, "failed to delete entry")
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound
	}

	return nil
}

func UserCanEditEntry(ctx context.Context, connOrTx db.ConnOrTx, user models.User, entryID int) bool {
	if user.IsStaff {
		return true
	}

	authorID, err := db.QueryOneScalar[*int](ctx, connOrTx,
		`
		---- Fetch entry author for permission check
		SELECT entry.author_id
		FROM entry
		WHERE
			entry.id = $1
			AND NOT entry.deleted
		`,
		entryID,
	)
	if err != nil {
		return false
	}

	return authorID != nil && *authorID == user.ID
}
