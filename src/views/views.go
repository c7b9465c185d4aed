/*
Package views builds and caches the materialized, threaded representation of
a topic's entries. Reads of hot topics are O(1) lookups against a cached
serialization instead of repeated tree reconstruction; writes only mark the
cached view stale and the next reader pays for (exactly one) rebuild.
*/
package views

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/colloquyhq/colloquy/src/models"
	"github.com/colloquyhq/colloquy/src/oops"
	"github.com/google/uuid"
)

// One node of the serialized thread tree. Deleted entries keep their id and
// position but have their message and author suppressed.
type ViewNode struct {
	ID         int         `json:"id"`
	ParentID   *int        `json:"parent_id,omitempty"`
	UserID     *int        `json:"user_id,omitempty"`
	EditorID   *int        `json:"editor_id,omitempty"`
	Message    string      `json:"message,omitempty"`
	Deleted    bool        `json:"deleted,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Attachment *uuid.UUID  `json:"attachment,omitempty"`
	Replies    []*ViewNode `json:"replies,omitempty"`
}

/*
The cached product of one build: the serialized tree plus the entry and
participant ids the response decorators need. Replaced wholesale on every
rebuild; never mutated in place.

Serialized is a JSON array of root nodes and can be spliced verbatim into a
larger payload; see MergeSerialized.
*/
type MaterializedView struct {
	TopicID    int
	Generation uint64

	Serialized     []byte
	EntryIDs       []int
	ParticipantIDs []int

	BuiltAt time.Time
}

// A structural invariant of the entry set was violated, e.g. a cycle in
// parent links. The rebuild that hit it is abandoned; any previously cached
// generation stays live.
type DataCorruptionError struct {
	TopicID int
	Detail  string
}

func (e *DataCorruptionError) Error() string {
	return fmt.Sprintf("corrupt entry data in topic %d: %s", e.TopicID, e.Detail)
}

/*
Builds the complete threaded view of a topic from its flat entry list
(deleted entries included). Root entries come out newest-first; replies
within a parent come out in conversation order, oldest first. The full tree
is carried here; the bounded ten-reply window is a pagination concern and
does not apply.

An entry whose parent id resolves to nothing in the set is promoted to a
root rather than dropped. A parent-link cycle cannot be assembled and fails
the build with DataCorruptionError; construction never loops.
*/
func Build(topicID int, entries []*models.Entry) (*MaterializedView, error) {
	sorted := make([]*models.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	// Arena of nodes keyed by id, plus a children-by-parent index. Links are
	// ids, not live references, until assembly walks down from the roots.
	nodes := make(map[int]*ViewNode, len(sorted))
	childIDs := make(map[int][]int)
	var rootIDs []int

	for _, entry := range sorted {
		node := &ViewNode{
			ID:        entry.ID,
			ParentID:  entry.ParentID,
			CreatedAt: entry.CreatedAt,
			UpdatedAt: entry.UpdatedAt,
			Deleted:   entry.Deleted,
		}
		if !entry.Deleted {
			node.UserID = entry.AuthorID
			node.EditorID = entry.EditorID
			node.Message = entry.MessageHtml
			node.Attachment = entry.AssetID
		}
		nodes[entry.ID] = node
	}
	for _, entry := range sorted {
		if entry.ParentID == nil {
			rootIDs = append(rootIDs, entry.ID)
			continue
		}
		if _, ok := nodes[*entry.ParentID]; !ok {
			// Orphan. Keep it visible at the top level.
			rootIDs = append(rootIDs, entry.ID)
			continue
		}
		childIDs[*entry.ParentID] = append(childIDs[*entry.ParentID], entry.ID)
	}

	var roots []*ViewNode
	var entryIDs []int
	var participantIDs []int
	seenParticipants := make(map[int]bool)

	visit := func(node *ViewNode) {
		entryIDs = append(entryIDs, node.ID)
		if node.UserID != nil && !seenParticipants[*node.UserID] {
			seenParticipants[*node.UserID] = true
			participantIDs = append(participantIDs, *node.UserID)
		}
	}

	// Attach children iteratively from the roots down. Entries are a forest
	// by id linkage; anything a cycle makes unreachable from the roots shows
	// up as a count mismatch afterward.
	for i := len(rootIDs) - 1; i >= 0; i-- { // newest root first
		root := nodes[rootIDs[i]]
		roots = append(roots, root)

		stack := []*ViewNode{root}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			visit(node)
			children := childIDs[node.ID]
			for _, childID := range children {
				node.Replies = append(node.Replies, nodes[childID])
			}
			for j := len(children) - 1; j >= 0; j-- {
				stack = append(stack, nodes[children[j]])
			}
		}
	}

	if len(entryIDs) != len(sorted) {
		return nil, &DataCorruptionError{
			TopicID: topicID,
			Detail: fmt.Sprintf(
				"%d of %d entries are unreachable from any root; parent links form a cycle",
				len(sorted)-len(entryIDs), len(sorted),
			),
		}
	}

	if roots == nil {
		roots = []*ViewNode{}
	}
	serialized, err := json.Marshal(roots)
	if err != nil {
		return nil, oops.New(err, "failed to serialize view")
	}

	return &MaterializedView{
		TopicID:        topicID,
		Serialized:     serialized,
		EntryIDs:       entryIDs,
		ParticipantIDs: participantIDs,
		BuiltAt:        time.Now(),
	}, nil
}
