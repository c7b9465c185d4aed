package cqdata

import (
	"context"

	"github.com/colloquyhq/colloquy/src/db"
	"github.com/colloquyhq/colloquy/src/models"
	"github.com/colloquyhq/colloquy/src/oops"
	"github.com/colloquyhq/colloquy/src/perf"
)

/*
Fetches users by id, avatar assets attached. Result order follows the
supplied ids; unknown ids are skipped.
*/
func FetchUsers(
	ctx context.Context,
	dbConn db.ConnOrTx,
	userIDs []int,
) ([]*models.User, error) {
	b := perf.ExtractPerf(ctx).StartBlock("SQL", "Fetch users")
	defer b.End()

	if len(userIDs) == 0 {
		return nil, nil
	}

	type resultRow struct {
		User   models.User   `db:"cq_user"`
		Avatar *models.Asset `db:"avatar"`
	}

	rows, err := db.Query[resultRow](ctx, dbConn,
		`
		---- Fetch users
		SELECT $columns
		FROM
			cq_user
			LEFT JOIN asset AS avatar ON avatar.id = cq_user.avatar_asset_id
		WHERE
			cq_user.id = ANY ($1)
		`,
		userIDs,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch users")
	}

	byID := make(map[int]*models.User, len(rows))
	for _, row := range rows {
		user := row.User
		user.AvatarAsset = row.Avatar
		byID[user.ID] = &user
	}

	result := make([]*models.User, 0, len(byID))
	for _, id := range userIDs {
		if user, ok := byID[id]; ok {
			result = append(result, user)
			delete(byID, id) // supplied ids may repeat
		}
	}

	return result, nil
}

/*
Fetches a single user. Returns db.NotFound if they do not exist.
*/
func FetchUser(ctx context.Context, dbConn db.ConnOrTx, userID int) (*models.User, error) {
	users, err := FetchUsers(ctx, dbConn, []int{userID})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, db.NotFound
	}
	return users[0], nil
}
