package models

import (
	"time"

	"github.com/google/uuid"
)

type Entry struct {
	ID int `db:"id"`

	TopicID int `db:"topic_id"`
	// Root entries have no parent. An entry's parent always belongs to the
	// same topic.
	ParentID *int `db:"parent_id"`

	AuthorID *int `db:"author_id"` // nil for deleted users
	EditorID *int `db:"editor_id"` // set only when someone other than the author last edited

	MessageRaw  string `db:"message_raw"`
	MessageHtml string `db:"message_html"`
	Preview     string `db:"preview"`

	AssetID *uuid.UUID `db:"asset_id"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	// Deleted entries stay addressable so reply counts and thread shape
	// survive; their content is suppressed on the way out.
	Deleted bool `db:"deleted"`
}

func (e *Entry) IsRoot() bool {
	return e.ParentID == nil
}

// Per (user, entry). Absence of a record means unread.
type EntryReadState struct {
	EntryID int `db:"entry_id"`
	UserID  int `db:"user_id"`

	Read bool `db:"read"`
	// An explicit per-entry mark. Bulk topic-level actions update the state
	// of forced rows but never clear the flag.
	Forced bool `db:"forced"`

	MarkedAt time.Time `db:"marked_at"`
}
