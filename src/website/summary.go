package website

import (
	"time"

	"github.com/colloquyhq/colloquy/src/assets"
	"github.com/colloquyhq/colloquy/src/cqdata"
	"github.com/colloquyhq/colloquy/src/models"
	"github.com/google/uuid"
)

type Attachment struct {
	ID       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	MimeType string    `json:"mime_type"`
	Size     int       `json:"size"`
	Url      string    `json:"url"`
}

type EntrySummary struct {
	ID        int    `json:"id"`
	UserID    *int   `json:"user_id,omitempty"`
	EditorID  *int   `json:"editor_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	Message   string `json:"message"`
	ReadState string `json:"read_state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Attachment *Attachment `json:"attachment,omitempty"`

	// Only on root entries in a listing, and only when there are any.
	RecentReplies  []EntrySummary `json:"recent_replies,omitempty"`
	HasMoreReplies *bool          `json:"has_more_replies,omitempty"`
}

type Participant struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarUrl   string `json:"avatar_url,omitempty"`
}

func makeEntrySummary(row cqdata.EntryAndStuff) EntrySummary {
	summary := EntrySummary{
		ID:        row.Entry.ID,
		UserID:    row.Entry.AuthorID,
		EditorID:  row.Entry.EditorID, // only ever set when someone other than the author edited
		Message:   row.Entry.MessageHtml,
		ReadState: "read",
		CreatedAt: row.Entry.CreatedAt,
		UpdatedAt: row.Entry.UpdatedAt,
	}
	if row.Unread {
		summary.ReadState = "unread"
	}
	if row.Author != nil {
		summary.UserName = row.Author.BestName()
	}
	if row.Asset != nil {
		summary.Attachment = &Attachment{
			ID:       row.Asset.ID,
			Filename: row.Asset.Filename,
			MimeType: row.Asset.MimeType,
			Size:     row.Asset.Size,
			Url:      assets.AssetURL(row.Asset),
		}
	}
	return summary
}

func makeEntrySummaries(rows []cqdata.EntryAndStuff) []EntrySummary {
	summaries := make([]EntrySummary, len(rows))
	for i, row := range rows {
		summaries[i] = makeEntrySummary(row)
	}
	return summaries
}

// Summaries for a page of root entries, each with its bounded window of
// recent replies attached.
func makePageSummaries(page cqdata.EntryPage) []EntrySummary {
	summaries := make([]EntrySummary, len(page.Entries))
	for i, row := range page.Entries {
		summary := makeEntrySummary(row)
		if replies := page.RecentReplies[row.Entry.ID]; len(replies) > 0 {
			summary.RecentReplies = makeEntrySummaries(replies)
			hasMore := page.HasMoreReplies[row.Entry.ID]
			summary.HasMoreReplies = &hasMore
		}
		summaries[i] = summary
	}
	return summaries
}

func makeParticipants(users []*models.User) []Participant {
	participants := make([]Participant, len(users))
	for i, user := range users {
		participants[i] = Participant{
			ID:          user.ID,
			DisplayName: user.BestName(),
		}
		if user.AvatarAsset != nil {
			participants[i].AvatarUrl = assets.AssetURL(user.AvatarAsset)
		}
	}
	return participants
}
