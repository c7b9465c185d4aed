package models

type Group struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
}
