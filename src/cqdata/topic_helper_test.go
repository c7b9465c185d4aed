package cqdata

import (
	"context"
	"errors"
	"testing"

	"github.com/colloquyhq/colloquy/src/models"
	"github.com/stretchr/testify/assert"
)

type fakeGroupChecker struct {
	memberships map[[2]int]bool // (userID, groupID)
	err         error
}

func (c fakeGroupChecker) UserInGroup(ctx context.Context, userID, groupID int) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.memberships[[2]int{userID, groupID}], nil
}

func intp(v int) *int { return &v }

func TestResolveVisibleTopics(t *testing.T) {
	ctx := context.Background()

	root := &models.Topic{ID: 1, Title: "Split discussion"}
	groupA := &models.Topic{ID: 2, ParentID: intp(1), GroupID: intp(100)}
	groupB := &models.Topic{ID: 3, ParentID: intp(1), GroupID: intp(200)}
	children := []*models.Topic{groupA, groupB}

	t.Run("member sees root plus own group", func(t *testing.T) {
		viewer := &models.User{ID: 10}
		checker := fakeGroupChecker{memberships: map[[2]int]bool{
			{10, 100}: true,
		}}
		visible := ResolveVisibleTopics(ctx, root, children, viewer, checker)
		assert.Equal(t, []int{1, 2}, TopicIDs(visible))
	})

	t.Run("non-member sees only root", func(t *testing.T) {
		viewer := &models.User{ID: 11}
		checker := fakeGroupChecker{}
		visible := ResolveVisibleTopics(ctx, root, children, viewer, checker)
		assert.Equal(t, []int{1}, TopicIDs(visible))
	})

	t.Run("staff sees everything", func(t *testing.T) {
		viewer := &models.User{ID: 12, IsStaff: true}
		checker := fakeGroupChecker{}
		visible := ResolveVisibleTopics(ctx, root, children, viewer, checker)
		assert.Equal(t, []int{1, 2, 3}, TopicIDs(visible))
	})

	t.Run("membership errors degrade to root only", func(t *testing.T) {
		viewer := &models.User{ID: 13}
		checker := fakeGroupChecker{err: errors.New("authz service is down")}
		visible := ResolveVisibleTopics(ctx, root, children, viewer, checker)
		assert.Equal(t, []int{1}, TopicIDs(visible))
	})

	t.Run("nil viewer sees only root", func(t *testing.T) {
		visible := ResolveVisibleTopics(ctx, root, children, nil, fakeGroupChecker{})
		assert.Equal(t, []int{1}, TopicIDs(visible))
	})

	t.Run("children without groups are ignored", func(t *testing.T) {
		weird := []*models.Topic{{ID: 4, ParentID: intp(1)}}
		viewer := &models.User{ID: 14}
		visible := ResolveVisibleTopics(ctx, root, weird, viewer, fakeGroupChecker{})
		assert.Equal(t, []int{1}, TopicIDs(visible))
	})
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("message", "must not be empty")
	assert.Contains(t, err.Error(), "message: must not be empty")

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}
