package cqdata

import (
	"context"

	"github.com/colloquyhq/colloquy/src/db"
	"github.com/colloquyhq/colloquy/src/logging"
	"github.com/colloquyhq/colloquy/src/models"
	"github.com/colloquyhq/colloquy/src/oops"
	"github.com/colloquyhq/colloquy/src/perf"
)

type TopicsQuery struct {
	TopicIDs  []int // if empty, all topics
	ParentIDs []int // if empty, any parent (or none)
	RootsOnly bool

	Limit, Offset int // if empty, no pagination
}

/*
Fetches topics according to all the given query params. Deleted topics are
never returned.
*/
func FetchTopics(
	ctx context.Context,
	dbConn db.ConnOrTx,
	q TopicsQuery,
) ([]*models.Topic, error) {
	b := perf.ExtractPerf(ctx).StartBlock("SQL", "Fetch topics")
	defer b.End()

	var qb db.QueryBuilder
	qb.Add(
		`
		---- Fetch topics
		SELECT $columns
		FROM topic
		WHERE
			NOT topic.deleted
		`,
	)
	if len(q.TopicIDs) > 0 {
		qb.Add(`AND topic.id = ANY ($?)`, q.TopicIDs)
	}
	if len(q.ParentIDs) > 0 {
		qb.Add(`AND topic.parent_id = ANY ($?)`, q.ParentIDs)
	}
	if q.RootsOnly {
		qb.Add(`AND topic.parent_id IS NULL`)
	}
	qb.Add(`ORDER BY topic.id ASC`)
	if q.Limit > 0 {
		qb.Add(`LIMIT $? OFFSET $?`, q.Limit, q.Offset)
	}

	topics, err := db.Query[models.Topic](ctx, dbConn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch topics")
	}

	return topics, nil
}

/*
Fetches a single topic. Returns db.NotFound if the topic does not exist or is
deleted.
*/
func FetchTopic(
	ctx context.Context,
	dbConn db.ConnOrTx,
	topicID int,
) (*models.Topic, error) {
	topics, err := FetchTopics(ctx, dbConn, TopicsQuery{
		TopicIDs: []int{topicID},
		Limit:    1,
	})
	if err != nil {
		return nil, oops.New(err, "failed to fetch topic")
	}
	if len(topics) == 0 {
		return nil, db.NotFound
	}
	return topics[0], nil
}

// Answers whether a user may read entries belonging to a group's subtopic.
// The actual authorization system is not ours; this is the seam it plugs
// into.
type GroupChecker interface {
	UserInGroup(ctx context.Context, userID, groupID int) (bool, error)
}

// GroupChecker backed by the group_member table.
type DBGroupChecker struct {
	Conn db.ConnOrTx
}

var _ GroupChecker = DBGroupChecker{}

func (c DBGroupChecker) UserInGroup(ctx context.Context, userID, groupID int) (bool, error) {
	return db.QueryOneScalar[bool](ctx, c.Conn,
		`
		---- Check group membership
		SELECT EXISTS (
			SELECT 1
			FROM group_member
			WHERE user_id = $1 AND group_id = $2
		)
		`,
		userID,
		groupID,
	)
}

/*
Determines which topics' entries the viewer may see when reading the given
topic: the topic itself, plus any group-split child topics whose group the
viewer belongs to. Resolution of a child never fails the whole request; a
child that cannot be resolved is simply left out.

Staff see every child. A nil viewer sees only the root topic.
*/
func ResolveVisibleTopics(
	ctx context.Context,
	topic *models.Topic,
	children []*models.Topic,
	viewer *models.User,
	checker GroupChecker,
) []*models.Topic {
	visible := []*models.Topic{topic}
	if viewer == nil {
		return visible
	}

	for _, child := range children {
		if child.GroupID == nil {
			continue
		}
		if viewer.IsStaff {
			visible = append(visible, child)
			continue
		}
		member, err := checker.UserInGroup(ctx, viewer.ID, *child.GroupID)
		if err != nil {
			logging.ExtractLogger(ctx).Warn().
				Err(err).
				Int("topic", topic.ID).
				Int("child", child.ID).
				Msg("could not resolve group membership for subtopic; leaving it out")
			continue
		}
		if member {
			visible = append(visible, child)
		}
	}

	return visible
}

/*
Convenience wrapper around ResolveVisibleTopics that fetches the topic's
children itself. Returns the visible topics, root first.
*/
func FetchVisibleTopics(
	ctx context.Context,
	dbConn db.ConnOrTx,
	topic *models.Topic,
	viewer *models.User,
	checker GroupChecker,
) ([]*models.Topic, error) {
	children, err := FetchTopics(ctx, dbConn, TopicsQuery{
		ParentIDs: []int{topic.ID},
	})
	if err != nil {
		return nil, oops.New(err, "failed to fetch subtopics")
	}

	return ResolveVisibleTopics(ctx, topic, children, viewer, checker), nil
}

func TopicIDs(topics []*models.Topic) []int {
	ids := make([]int, len(topics))
	for i, t := range topics {
		ids[i] = t.ID
	}
	return ids
}

/*
Whether the user satisfies the topic's initial-post policy: either the topic
does not require an initial post, or the user has already authored an entry
somewhere in the topic family. Staff are always satisfied.
*/
func UserSatisfiesInitialPostPolicy(
	ctx context.Context,
	dbConn db.ConnOrTx,
	topic *models.Topic,
	user *models.User,
) (bool, error) {
	if !topic.RequireInitialPost {
		return true, nil
	}
	if user == nil {
		return false, nil
	}
	if user.IsStaff {
		return true, nil
	}

	hasPosted, err := db.QueryOneScalar[bool](ctx, dbConn,
		`
		---- Check initial post
		SELECT EXISTS (
			SELECT 1
			FROM
				entry
				JOIN topic ON entry.topic_id = topic.id
			WHERE
				(topic.id = $1 OR topic.parent_id = $1)
				AND entry.author_id = $2
				AND NOT entry.deleted
		)
		`,
		topic.ID,
		user.ID,
	)
	if err != nil {
		return false, oops.New(err, "failed to check initial post policy")
	}

	return hasPosted, nil
}
