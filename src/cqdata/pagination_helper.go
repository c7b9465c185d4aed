package cqdata

import (
	"context"

	"github.com/colloquyhq/colloquy/src/db"
	"github.com/colloquyhq/colloquy/src/models"
	"github.com/colloquyhq/colloquy/src/oops"
)

// How many of a root entry's most recent replies get embedded in a listing.
const RecentRepliesLimit = 10

type EntryPage struct {
	Entries []EntryAndStuff

	// Most recent replies per entry id, newest-first, capped at
	// RecentRepliesLimit. Only populated by FetchRootEntriesPage.
	RecentReplies  map[int][]EntryAndStuff
	HasMoreReplies map[int]bool

	// Position of the next page, nil when this is the last one. Stable under
	// concurrent insertion of newer entries.
	NextCursor *Cursor
}

/*
Fetches one page of a topic family's root entries, newest-first, with each
root's bounded window of recent replies. Reply activity does not reorder
roots.
*/
func FetchRootEntriesPage(
	ctx context.Context,
	dbConn db.ConnOrTx,
	currentUser *models.User,
	topicIDs []int,
	before *Cursor,
	pageSize int,
) (EntryPage, error) {
	roots, err := FetchEntries(ctx, dbConn, currentUser, EntriesQuery{
		TopicIDs:  topicIDs,
		RootsOnly: true,
		Before:    before,
		Limit:     pageSize + 1, // one extra to probe for a next page
	})
	if err != nil {
		return EntryPage{}, oops.New(err, "failed to fetch root entries")
	}

	page := EntryPage{
		RecentReplies:  make(map[int][]EntryAndStuff),
		HasMoreReplies: make(map[int]bool),
	}

	if len(roots) > pageSize {
		roots = roots[:pageSize]
		last := roots[len(roots)-1]
		page.NextCursor = &Cursor{CreatedAt: last.Entry.CreatedAt, ID: last.Entry.ID}
	}
	page.Entries = roots

	if len(roots) == 0 {
		return page, nil
	}

	rootIDs := make([]int, len(roots))
	for i, root := range roots {
		rootIDs[i] = root.Entry.ID
	}

	replies, err := FetchEntries(ctx, dbConn, currentUser, EntriesQuery{
		ParentIDs: rootIDs,
	})
	if err != nil {
		return EntryPage{}, oops.New(err, "failed to fetch recent replies")
	}

	// Replies come back newest-first already; keep the first few per parent.
	for _, reply := range replies {
		parentID := *reply.Entry.ParentID
		if len(page.RecentReplies[parentID]) < RecentRepliesLimit {
			page.RecentReplies[parentID] = append(page.RecentReplies[parentID], reply)
		} else {
			page.HasMoreReplies[parentID] = true
		}
	}

	return page, nil
}

/*
Fetches one page of an entry's replies as a standalone resource,
newest-first. Returns db.NotFound if the parent entry does not exist.
*/
func FetchRepliesPage(
	ctx context.Context,
	dbConn db.ConnOrTx,
	currentUser *models.User,
	parentEntryID int,
	before *Cursor,
	pageSize int,
) (EntryPage, error) {
	// The parent must exist even if it has no replies.
	_, err := FetchEntry(ctx, dbConn, currentUser, parentEntryID, EntriesQuery{
		IncludeDeleted: true,
	})
	if err != nil {
		return EntryPage{}, err
	}

	replies, err := FetchEntries(ctx, dbConn, currentUser, EntriesQuery{
		ParentIDs: []int{parentEntryID},
		Before:    before,
		Limit:     pageSize + 1,
	})
	if err != nil {
		return EntryPage{}, oops.New(err, "failed to fetch replies")
	}

	var page EntryPage
	if len(replies) > pageSize {
		replies = replies[:pageSize]
		last := replies[len(replies)-1]
		page.NextCursor = &Cursor{CreatedAt: last.Entry.CreatedAt, ID: last.Entry.ID}
	}
	page.Entries = replies

	return page, nil
}
