/*
This package contains lowish-level APIs for making queries to our Postgres
database. It streamlines the process of mapping query results to Go types,
while still allowing you to write arbitrary SQL.

The primary functions are Query and QueryOne. Arguments are provided using
placeholders like $1, $2, etc., and are safely escaped and mapped from their
Go type to the correct Postgres type (a direct proxy to pgx):

	topicIDs, err := db.QueryScalar[int](ctx, conn,
		`
		---- Fetch open topic ids
		SELECT id
		FROM topic
		WHERE
			course_id = ANY($1)
			AND NOT locked
		`,
		courseIDs,
	)

(A useful tip demonstrated above: if you want to use a slice in your query,
use Postgres arrays instead of IN.)

To query multiple columns at once, use a struct type with `db:"column_name"`
tags and the special $columns placeholder:

	type Topic struct {
		ID        int       `db:"id"`
		Title     string    `db:"title"`
		CreatedAt time.Time `db:"created_at"`
	}
	topics, err := db.Query[Topic](ctx, conn, `SELECT $columns FROM topic`)
	// Resulting query:
	// SELECT id, title, created_at FROM topic

Sometimes a table name prefix is required on each column to disambiguate
between column names, especially when performing a JOIN. In those situations,
include the prefix in the placeholder like $columns{prefix}. Nested structs
with a `db` tag compose their prefixes, which is how the fetch helpers in
cqdata select several joined tables into one result struct.

A leading `---- name` comment names the query for the tracer; see GetQueryName.
*/
package db
