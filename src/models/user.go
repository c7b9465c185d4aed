package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID int `db:"id"`

	Username string `db:"username"`
	Name     string `db:"name"`

	AvatarAssetID *uuid.UUID `db:"avatar_asset_id"`

	IsStaff bool `db:"is_staff"`

	DateJoined time.Time `db:"date_joined"`

	// Non-db fields, to be filled in by fetch helpers
	AvatarAsset *Asset
}

func (u *User) BestName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
