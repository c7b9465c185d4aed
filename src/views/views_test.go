package views

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/colloquyhq/colloquy/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var buildTestEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testEntry(id int, parentID *int, authorID int, createdOffset time.Duration) *models.Entry {
	author := authorID
	return &models.Entry{
		ID:          id,
		TopicID:     1,
		ParentID:    parentID,
		AuthorID:    &author,
		MessageRaw:  "message",
		MessageHtml: "<p>message</p>",
		CreatedAt:   buildTestEpoch.Add(createdOffset),
		UpdatedAt:   buildTestEpoch.Add(createdOffset),
	}
}

func decode(t *testing.T, view *MaterializedView) []*ViewNode {
	t.Helper()
	var roots []*ViewNode
	require.NoError(t, json.Unmarshal(view.Serialized, &roots))
	return roots
}

func TestBuild(t *testing.T) {
	t.Run("roots newest-first, replies oldest-first", func(t *testing.T) {
		a := testEntry(1, nil, 10, 1*time.Minute)
		b := testEntry(2, nil, 11, 2*time.Minute)
		c := testEntry(3, &a.ID, 12, 3*time.Minute)

		view, err := Build(1, []*models.Entry{a, b, c})
		require.NoError(t, err)

		roots := decode(t, view)
		require.Len(t, roots, 2)
		assert.Equal(t, 2, roots[0].ID) // B first, newest root
		assert.Equal(t, 1, roots[1].ID)
		assert.Empty(t, roots[0].Replies)
		require.Len(t, roots[1].Replies, 1)
		assert.Equal(t, 3, roots[1].Replies[0].ID)

		assert.Equal(t, []int{2, 1, 3}, view.EntryIDs)
		assert.Equal(t, []int{11, 10, 12}, view.ParticipantIDs)
	})

	t.Run("deep nesting keeps conversation order", func(t *testing.T) {
		root := testEntry(1, nil, 10, 0)
		r1 := testEntry(2, &root.ID, 11, 1*time.Minute)
		r2 := testEntry(3, &root.ID, 12, 2*time.Minute)
		nested := testEntry(4, &r1.ID, 10, 3*time.Minute)

		view, err := Build(1, []*models.Entry{root, r1, r2, nested})
		require.NoError(t, err)

		roots := decode(t, view)
		require.Len(t, roots, 1)
		require.Len(t, roots[0].Replies, 2)
		assert.Equal(t, 2, roots[0].Replies[0].ID) // oldest reply first
		assert.Equal(t, 3, roots[0].Replies[1].ID)
		require.Len(t, roots[0].Replies[0].Replies, 1)
		assert.Equal(t, 4, roots[0].Replies[0].Replies[0].ID)
	})

	t.Run("deleted entries become placeholders", func(t *testing.T) {
		a := testEntry(1, nil, 10, 1*time.Minute)
		a.Deleted = true
		c := testEntry(2, &a.ID, 12, 2*time.Minute)

		view, err := Build(1, []*models.Entry{a, c})
		require.NoError(t, err)

		roots := decode(t, view)
		require.Len(t, roots, 1)
		placeholder := roots[0]
		assert.Equal(t, 1, placeholder.ID)
		assert.True(t, placeholder.Deleted)
		assert.Empty(t, placeholder.Message)
		assert.Nil(t, placeholder.UserID)
		require.Len(t, placeholder.Replies, 1)
		assert.Equal(t, 2, placeholder.Replies[0].ID)

		// The deleted entry's author is not a participant; its reply's is.
		assert.Equal(t, []int{12}, view.ParticipantIDs)
	})

	t.Run("orphans are promoted to roots", func(t *testing.T) {
		missing := 999
		orphan := testEntry(1, &missing, 10, 1*time.Minute)
		root := testEntry(2, nil, 11, 2*time.Minute)

		view, err := Build(1, []*models.Entry{orphan, root})
		require.NoError(t, err)

		roots := decode(t, view)
		require.Len(t, roots, 2)
		assert.Equal(t, 2, roots[0].ID)
		assert.Equal(t, 1, roots[1].ID)
	})

	t.Run("parent cycles fail fast", func(t *testing.T) {
		idA, idB := 1, 2
		a := testEntry(idA, &idB, 10, 1*time.Minute)
		b := testEntry(idB, &idA, 11, 2*time.Minute)
		root := testEntry(3, nil, 12, 3*time.Minute)

		_, err := Build(1, []*models.Entry{a, b, root})
		var corruption *DataCorruptionError
		require.ErrorAs(t, err, &corruption)
		assert.Equal(t, 1, corruption.TopicID)
	})

	t.Run("deterministic regardless of input order", func(t *testing.T) {
		a := testEntry(1, nil, 10, 1*time.Minute)
		b := testEntry(2, nil, 11, 2*time.Minute)
		c := testEntry(3, &a.ID, 12, 3*time.Minute)

		first, err := Build(1, []*models.Entry{a, b, c})
		require.NoError(t, err)
		second, err := Build(1, []*models.Entry{c, b, a})
		require.NoError(t, err)

		assert.Equal(t, first.Serialized, second.Serialized)
		assert.Equal(t, first.EntryIDs, second.EntryIDs)
		assert.Equal(t, first.ParticipantIDs, second.ParticipantIDs)
	})

	t.Run("timestamp ties break by id", func(t *testing.T) {
		a := testEntry(5, nil, 10, 0)
		b := testEntry(4, nil, 11, 0)

		view, err := Build(1, []*models.Entry{a, b})
		require.NoError(t, err)

		roots := decode(t, view)
		require.Len(t, roots, 2)
		assert.Equal(t, 5, roots[0].ID)
		assert.Equal(t, 4, roots[1].ID)
	})

	t.Run("empty topic serializes to an empty array", func(t *testing.T) {
		view, err := Build(1, nil)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(view.Serialized))
		assert.Empty(t, view.EntryIDs)
	})
}

func TestMergeSerialized(t *testing.T) {
	a := testEntry(1, nil, 10, 1*time.Minute)
	b := testEntry(2, nil, 11, 2*time.Minute)

	viewA, err := Build(1, []*models.Entry{a})
	require.NoError(t, err)
	viewB, err := Build(2, []*models.Entry{b})
	require.NoError(t, err)
	empty, err := Build(3, nil)
	require.NoError(t, err)

	merged := MergeSerialized([][]byte{viewA.Serialized, empty.Serialized, viewB.Serialized})

	var roots []*ViewNode
	require.NoError(t, json.Unmarshal(merged, &roots))
	require.Len(t, roots, 2)
	assert.Equal(t, 1, roots[0].ID)
	assert.Equal(t, 2, roots[1].ID)

	assert.Equal(t, "[]", string(MergeSerialized(nil)))
	assert.Equal(t, "[]", string(MergeSerialized([][]byte{empty.Serialized})))
}
