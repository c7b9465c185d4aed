package website

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/colloquyhq/colloquy/src/assets"
	"github.com/colloquyhq/colloquy/src/cqdata"
	"github.com/colloquyhq/colloquy/src/models"
	"github.com/colloquyhq/colloquy/src/oops"
	"github.com/colloquyhq/colloquy/src/utils"
	"github.com/colloquyhq/colloquy/src/views"
)

const defaultPageSize = 25
const maxPageSize = 100

/*
The composed read of a whole discussion: the cached threaded view of every
topic the viewer can see, the viewer's unread entries within it, and the
participants referenced by it. Comes back 503 not_ready while any fragment
is still rebuilding.
*/
func GetView(c *RequestContext) ResponseData {
	topic, err := cqdata.FetchTopic(c, c.Conn, c.IntPathParam("topicid"))
	if err != nil {
		return dataErrorResponse(c, err)
	}

	if res, ok := requireInitialPostPolicy(c, topic); !ok {
		return res
	}

	visible, err := cqdata.FetchVisibleTopics(c, c.Conn, topic, c.CurrentUser, cqdata.DBGroupChecker{Conn: c.Conn})
	if err != nil {
		return dataErrorResponse(c, err)
	}

	var fragments [][]byte
	var entryIDs []int
	var participantIDs []int
	seenParticipants := make(map[int]bool)
	for _, t := range visible {
		result := c.Views.Get(t.ID)
		if !result.Ready {
			return notReady(c)
		}
		fragments = append(fragments, result.View.Serialized)
		entryIDs = append(entryIDs, result.View.EntryIDs...)
		for _, id := range result.View.ParticipantIDs {
			if !seenParticipants[id] {
				seenParticipants[id] = true
				participantIDs = append(participantIDs, id)
			}
		}
	}

	// With nobody logged in, everything is unread.
	unread := entryIDs
	if c.CurrentUser != nil {
		unread, err = cqdata.UnreadEntryIDs(c, c.Conn, c.CurrentUser.ID, entryIDs)
		if err != nil {
			return dataErrorResponse(c, err)
		}
	}
	if unread == nil {
		unread = []int{}
	}

	users, err := cqdata.FetchUsers(c, c.Conn, participantIDs)
	if err != nil {
		return dataErrorResponse(c, err)
	}

	var res ResponseData
	res.WriteJson(struct {
		UnreadEntries []int           `json:"unread_entries"`
		Participants  []Participant   `json:"participants"`
		View          json.RawMessage `json:"view"`
	}{
		UnreadEntries: unread,
		Participants:  makeParticipants(users),
		View:          json.RawMessage(views.MergeSerialized(fragments)),
	}, http.StatusOK)
	return res
}

func ListRootEntries(c *RequestContext) ResponseData {
	topic, err := cqdata.FetchTopic(c, c.Conn, c.IntPathParam("topicid"))
	if err != nil {
		return dataErrorResponse(c, err)
	}

	if res, ok := requireInitialPostPolicy(c, topic); !ok {
		return res
	}

	before, pageSize, err := pageArgs(c)
	if err != nil {
		return dataErrorResponse(c, err)
	}

	visible, err := cqdata.FetchVisibleTopics(c, c.Conn, topic, c.CurrentUser, cqdata.DBGroupChecker{Conn: c.Conn})
	if err != nil {
		return dataErrorResponse(c, err)
	}

	page, err := cqdata.FetchRootEntriesPage(c, c.Conn, c.CurrentUser, cqdata.TopicIDs(visible), before, pageSize)
	if err != nil {
		return dataErrorResponse(c, err)
	}

	return pageResponse(c, page, makePageSummaries(page))
}

func ListReplies(c *RequestContext) ResponseData {
	parent, err := cqdata.FetchEntry(c, c.Conn, c.CurrentUser, c.IntPathParam("entryid"), cqdata.EntriesQuery{
		IncludeDeleted: true,
	})
	if err != nil {
		return dataErrorResponse(c, err)
	}

	if res, ok := requireInitialPostPolicy(c, &parent.Topic); !ok {
		return res
	}

	before, pageSize, err := pageArgs(c)
	if err != nil {
		return dataErrorResponse(c, err)
	}

	page, err := cqdata.FetchRepliesPage(c, c.Conn, c.CurrentUser, parent.Entry.ID, before, pageSize)
	if err != nil {
		return dataErrorResponse(c, err)
	}

	return pageResponse(c, page, makeEntrySummaries(page.Entries))
}

/*
Creates a root entry in a topic. A topic that requires an initial post
accepts this even from users who have not posted yet; the new root entry is
what satisfies the policy.
*/
func AddEntry(c *RequestContext) ResponseData {
	topic, err := cqdata.FetchTopic(c, c.Conn, c.IntPathParam("topicid"))
	if err != nil {
		return dataErrorResponse(c, err)
	}

	return createEntry(c, topic.ID, nil)
}

// Creates a reply beneath an existing entry, in that entry's topic.
func AddReply(c *RequestContext) ResponseData {
	parent, err := cqdata.FetchEntry(c, c.Conn, c.CurrentUser, c.IntPathParam("entryid"), cqdata.EntriesQuery{})
	if err != nil {
		return dataErrorResponse(c, err)
	}

	if res, ok := requireInitialPostPolicy(c, &parent.Topic); !ok {
		return res
	}

	return createEntry(c, parent.Entry.TopicID, &parent.Entry.ID)
}

func createEntry(c *RequestContext, topicID int, parentID *int) ResponseData {
	message := strings.TrimSpace(c.Req.FormValue("message"))
	if message == "" {
		return dataErrorResponse(c, cqdata.NewValidationError("message", "must not be empty"))
	}

	tx, err := c.Conn.Begin(c)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to start transaction"))
	}
	defer tx.Rollback(c)

	entryID := cqdata.CreateEntry(c, tx, cqdata.CreateEntryInput{
		TopicID:  topicID,
		ParentID: parentID,
		AuthorID: c.CurrentUser.ID,
		Message:  message,
	})

	err = tx.Commit(c)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to commit entry"))
	}
	c.Views.Invalidate(topicID)

	// The entry is durable at this point. A failed attachment upload is
	// reported alongside the created entry, never rolled back.
	attachmentProblem := attachUploadedAsset(c, entryID, topicID)

	row, err := cqdata.FetchEntry(c, c.Conn, c.CurrentUser, entryID, cqdata.EntriesQuery{})
	if err != nil {
		return dataErrorResponse(c, err)
	}

	var res ResponseData
	res.WriteJson(struct {
		EntrySummary
		AttachmentError string `json:"attachment_error,omitempty"`
	}{
		EntrySummary:    makeEntrySummary(row),
		AttachmentError: attachmentProblem,
	}, http.StatusCreated)
	return res
}

/*
Stores the request's uploaded attachment, if any, and points the entry at
it. Returns a description of what went wrong, or empty when there was no
attachment or it went through fine.
*/
func attachUploadedAsset(c *RequestContext, entryID int, topicID int) string {
	file, header, err := c.Req.FormFile("attachment")
	if err != nil {
		// Also lands here for non-multipart requests, which simply have no
		// attachment.
		return ""
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.Logger.Error().Err(err).Int("entry", entryID).Msg("failed to read attachment upload")
		return "attachment could not be read; the entry was saved without it"
	}

	asset, err := assets.Create(c, c.Conn, assets.CreateInput{
		Content:     content,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		UploaderID:  &c.CurrentUser.ID,
	})
	if err != nil {
		c.Logger.Error().Err(err).Int("entry", entryID).Msg("failed to store attachment")
		return "attachment could not be stored; the entry was saved without it"
	}

	_, err = c.Conn.Exec(c,
		`
		UPDATE entry
		SET asset_id = $2
		WHERE id = $1
		`,
		entryID,
		asset.ID,
	)
	if err != nil {
		c.Logger.Error().Err(err).Int("entry", entryID).Msg("failed to link attachment to entry")
		return "attachment could not be linked; the entry was saved without it"
	}

	c.Views.Invalidate(topicID)
	return ""
}

// Entries by explicit id, ascending, without the recent-replies window.
func EntryList(c *RequestContext) ResponseData {
	topic, err := cqdata.FetchTopic(c, c.Conn, c.IntPathParam("topicid"))
	if err != nil {
		return dataErrorResponse(c, err)
	}

	if res, ok := requireInitialPostPolicy(c, topic); !ok {
		return res
	}

	var entryIDs []int
	for _, part := range strings.Split(c.URL().Query().Get("ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return dataErrorResponse(c, cqdata.NewValidationError("ids", "must be a comma-separated list of entry ids"))
		}
		entryIDs = append(entryIDs, id)
	}
	if len(entryIDs) == 0 {
		return dataErrorResponse(c, cqdata.NewValidationError("ids", "must not be empty"))
	}

	visible, err := cqdata.FetchVisibleTopics(c, c.Conn, topic, c.CurrentUser, cqdata.DBGroupChecker{Conn: c.Conn})
	if err != nil {
		return dataErrorResponse(c, err)
	}

	rows, err := cqdata.FetchEntries(c, c.Conn, c.CurrentUser, cqdata.EntriesQuery{
		TopicIDs:     cqdata.TopicIDs(visible),
		EntryIDs:     entryIDs,
		OrderByIDAsc: true,
	})
	if err != nil {
		return dataErrorResponse(c, err)
	}

	var res ResponseData
	res.WriteJson(struct {
		Entries []EntrySummary `json:"entries"`
	}{
		Entries: makeEntrySummaries(rows),
	}, http.StatusOK)
	return res
}

func MarkTopicRead(c *RequestContext) ResponseData   { return markTopic(c, true) }
func MarkTopicUnread(c *RequestContext) ResponseData { return markTopic(c, false) }

// Only the topic's own initial-post marker; entry-level state is untouched.
func markTopic(c *RequestContext, read bool) ResponseData {
	err := cqdata.MarkTopicInitialPost(c, c.Conn, c.IntPathParam("topicid"), c.CurrentUser.ID, read)
	if err != nil {
		return dataErrorResponse(c, err)
	}
	return ResponseData{StatusCode: http.StatusNoContent}
}

func MarkAllRead(c *RequestContext) ResponseData   { return markAll(c, true) }
func MarkAllUnread(c *RequestContext) ResponseData { return markAll(c, false) }

// Point-in-time sweep over every entry the viewer can currently see in the
// topic family. Entries created afterward come back unread.
func markAll(c *RequestContext, read bool) ResponseData {
	topic, err := cqdata.FetchTopic(c, c.Conn, c.IntPathParam("topicid"))
	if err != nil {
		return dataErrorResponse(c, err)
	}

	visible, err := cqdata.FetchVisibleTopics(c, c.Conn, topic, c.CurrentUser, cqdata.DBGroupChecker{Conn: c.Conn})
	if err != nil {
		return dataErrorResponse(c, err)
	}

	err = cqdata.MarkAllEntries(c, c.Conn, topic.ID, cqdata.TopicIDs(visible), c.CurrentUser.ID, read)
	if err != nil {
		return dataErrorResponse(c, err)
	}
	return ResponseData{StatusCode: http.StatusNoContent}
}

func MarkEntryRead(c *RequestContext) ResponseData   { return markEntry(c, true) }
func MarkEntryUnread(c *RequestContext) ResponseData { return markEntry(c, false) }

func markEntry(c *RequestContext, read bool) ResponseData {
	err := cqdata.MarkEntry(c, c.Conn, c.IntPathParam("entryid"), c.CurrentUser.ID, read)
	if err != nil {
		return dataErrorResponse(c, err)
	}
	return ResponseData{StatusCode: http.StatusNoContent}
}

func EditEntry(c *RequestContext) ResponseData {
	entryID := c.IntPathParam("entryid")

	row, err := cqdata.FetchEntry(c, c.Conn, c.CurrentUser, entryID, cqdata.EntriesQuery{})
	if err != nil {
		return dataErrorResponse(c, err)
	}
	if !cqdata.UserCanEditEntry(c, c.Conn, *c.CurrentUser, entryID) {
		return forbidden(c, "you cannot edit this entry")
	}

	message := strings.TrimSpace(c.Req.FormValue("message"))
	if message == "" {
		return dataErrorResponse(c, cqdata.NewValidationError("message", "must not be empty"))
	}

	tx, err := c.Conn.Begin(c)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to start transaction"))
	}
	defer tx.Rollback(c)

	err = cqdata.EditEntry(c, tx, entryID, c.CurrentUser.ID, message)
	if err != nil {
		return dataErrorResponse(c, err)
	}
	err = tx.Commit(c)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to commit edit"))
	}
	c.Views.Invalidate(row.Entry.TopicID)

	updated, err := cqdata.FetchEntry(c, c.Conn, c.CurrentUser, entryID, cqdata.EntriesQuery{})
	if err != nil {
		return dataErrorResponse(c, err)
	}

	var res ResponseData
	res.WriteJson(makeEntrySummary(updated), http.StatusOK)
	return res
}

func DeleteEntry(c *RequestContext) ResponseData {
	entryID := c.IntPathParam("entryid")

	row, err := cqdata.FetchEntry(c, c.Conn, c.CurrentUser, entryID, cqdata.EntriesQuery{})
	if err != nil {
		return dataErrorResponse(c, err)
	}
	if !cqdata.UserCanEditEntry(c, c.Conn, *c.CurrentUser, entryID) {
		return forbidden(c, "you cannot delete this entry")
	}

	tx, err := c.Conn.Begin(c)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to start transaction"))
	}
	defer tx.Rollback(c)

	err = cqdata.DeleteEntry(c, tx, entryID)
	if err != nil {
		return dataErrorResponse(c, err)
	}
	err = tx.Commit(c)
	if err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to commit delete"))
	}
	c.Views.Invalidate(row.Entry.TopicID)

	return ResponseData{StatusCode: http.StatusNoContent}
}

/*
Enforces a topic's initial-post policy for reads: when the topic requires an
initial post, the viewer must have authored an entry in the topic family
before reading anyone else's. The policy lives on the root topic, so
group-split children defer to their parent's flag.
*/
func requireInitialPostPolicy(c *RequestContext, topic *models.Topic) (ResponseData, bool) {
	policyTopic := topic
	if topic.ParentID != nil {
		parent, err := cqdata.FetchTopic(c, c.Conn, *topic.ParentID)
		if err != nil {
			return dataErrorResponse(c, err), false
		}
		policyTopic = parent
	}

	satisfied, err := cqdata.UserSatisfiesInitialPostPolicy(c, c.Conn, policyTopic, c.CurrentUser)
	if err != nil {
		return dataErrorResponse(c, err), false
	}
	if !satisfied {
		return forbidden(c, "you must post in this discussion before you can read it"), false
	}
	return ResponseData{}, true
}

func pageArgs(c *RequestContext) (*cqdata.Cursor, int, error) {
	pageSize := defaultPageSize
	if countStr := c.URL().Query().Get("count"); countStr != "" {
		count, err := strconv.Atoi(countStr)
		if err != nil {
			return nil, 0, cqdata.NewValidationError("count", "must be a number")
		}
		pageSize = utils.IntClamp(1, count, maxPageSize)
	}

	var before *cqdata.Cursor
	if cursorStr := c.URL().Query().Get("cursor"); cursorStr != "" {
		cursor, err := cqdata.DecodeCursor(cursorStr)
		if err != nil {
			return nil, 0, cqdata.NewValidationError("cursor", "malformed cursor")
		}
		before = &cursor
	}

	return before, pageSize, nil
}

func pageResponse(c *RequestContext, page cqdata.EntryPage, summaries []EntrySummary) ResponseData {
	payload := struct {
		Entries    []EntrySummary `json:"entries"`
		NextCursor string         `json:"next_cursor,omitempty"`
	}{
		Entries: summaries,
	}
	if page.NextCursor != nil {
		payload.NextCursor = page.NextCursor.Encode()
	}

	var res ResponseData
	res.WriteJson(payload, http.StatusOK)
	return res
}
