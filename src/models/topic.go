package models

import "time"

type Topic struct {
	ID int `db:"id"`

	// Group-split topics have one child topic per group; everyone else
	// posts in the root topic. ParentID and GroupID are set only on the
	// children.
	ParentID *int `db:"parent_id"`
	GroupID  *int `db:"group_id"`

	Title   string `db:"title"`
	Deleted bool   `db:"deleted"`

	// When set, a user must author a root entry before they may read
	// anyone else's entries.
	RequireInitialPost bool `db:"require_initial_post"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (t *Topic) IsGroupChild() bool {
	return t.ParentID != nil
}

// Per (user, topic): the read marker for the topic's own initial post,
// independent of any entry-level state.
type TopicReadState struct {
	TopicID int `db:"topic_id"`
	UserID  int `db:"user_id"`

	Read     bool      `db:"read"`
	MarkedAt time.Time `db:"marked_at"`
}
