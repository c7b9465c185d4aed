package website

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/colloquyhq/colloquy/src/cqdata"
	"github.com/colloquyhq/colloquy/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryTestRow(entryID int, unread bool) cqdata.EntryAndStuff {
	authorID := 10
	return cqdata.EntryAndStuff{
		Entry: models.Entry{
			ID:          entryID,
			TopicID:     1,
			AuthorID:    &authorID,
			MessageHtml: "<p>hello</p>",
			CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Author: &models.User{ID: authorID, Username: "ida"},
		Unread: unread,
	}
}

func TestMakeEntrySummary(t *testing.T) {
	t.Run("read state strings", func(t *testing.T) {
		assert.Equal(t, "unread", makeEntrySummary(summaryTestRow(1, true)).ReadState)
		assert.Equal(t, "read", makeEntrySummary(summaryTestRow(1, false)).ReadState)
	})

	t.Run("optional fields are omitted from the payload", func(t *testing.T) {
		raw, err := json.Marshal(makeEntrySummary(summaryTestRow(1, true)))
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(raw, &fields))
		assert.NotContains(t, fields, "editor_id")
		assert.NotContains(t, fields, "attachment")
		assert.NotContains(t, fields, "recent_replies")
		assert.NotContains(t, fields, "has_more_replies")
	})
}

func TestMakePageSummaries(t *testing.T) {
	page := cqdata.EntryPage{
		Entries: []cqdata.EntryAndStuff{
			summaryTestRow(1, true),
			summaryTestRow(2, true),
		},
		RecentReplies: map[int][]cqdata.EntryAndStuff{
			1: {summaryTestRow(3, true)},
		},
		HasMoreReplies: map[int]bool{},
	}

	summaries := makePageSummaries(page)
	require.Len(t, summaries, 2)

	// Entry 1 has a reply window, entry 2 has none and omits both fields.
	require.Len(t, summaries[0].RecentReplies, 1)
	require.NotNil(t, summaries[0].HasMoreReplies)
	assert.False(t, *summaries[0].HasMoreReplies)

	raw, err := json.Marshal(summaries[1])
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "recent_replies")
	assert.NotContains(t, fields, "has_more_replies")
}
