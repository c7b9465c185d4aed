package migrations

import (
	"context"
	"time"

	"github.com/colloquyhq/colloquy/src/migration/types"
	"github.com/jackc/pgx/v5"
)

func init() {
	registerMigration(InitialSchema{})
}

type InitialSchema struct{}

func (m InitialSchema) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2024, 2, 12, 9, 0, 0, 0, time.UTC))
}

func (m InitialSchema) Name() string {
	return "InitialSchema"
}

func (m InitialSchema) Description() string {
	return "Creates the discussion tables: users, groups, topics, entries, read state, assets"
}

func (m InitialSchema) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		CREATE TABLE cq_user (
			id SERIAL NOT NULL PRIMARY KEY,
			username VARCHAR(150) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL DEFAULT '',
			is_staff BOOLEAN NOT NULL DEFAULT FALSE,
			date_joined TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE asset (
			id UUID NOT NULL PRIMARY KEY,
			uploader_id INT REFERENCES cq_user (id) ON DELETE SET NULL,
			s3_key VARCHAR(2000) NOT NULL,
			filename VARCHAR(2000) NOT NULL,
			size INT NOT NULL,
			mime_type VARCHAR(255) NOT NULL,
			sha1sum CHAR(40) NOT NULL
		);

		ALTER TABLE cq_user
			ADD COLUMN avatar_asset_id UUID REFERENCES asset (id) ON DELETE SET NULL;

		CREATE TABLE cq_group (
			id SERIAL NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL
		);

		CREATE TABLE group_member (
			group_id INT NOT NULL REFERENCES cq_group (id) ON DELETE CASCADE,
			user_id INT NOT NULL REFERENCES cq_user (id) ON DELETE CASCADE,
			PRIMARY KEY (group_id, user_id)
		);

		CREATE TABLE topic (
			id SERIAL NOT NULL PRIMARY KEY,
			parent_id INT REFERENCES topic (id) ON DELETE CASCADE,
			group_id INT REFERENCES cq_group (id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			require_initial_post BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
		CREATE INDEX topic_parent ON topic (parent_id);

		CREATE TABLE entry (
			id SERIAL NOT NULL PRIMARY KEY,
			topic_id INT NOT NULL REFERENCES topic (id) ON DELETE CASCADE,
			parent_id INT REFERENCES entry (id),
			author_id INT REFERENCES cq_user (id) ON DELETE SET NULL,
			editor_id INT REFERENCES cq_user (id) ON DELETE SET NULL,
			message_raw TEXT NOT NULL,
			message_html TEXT NOT NULL,
			preview VARCHAR(255) NOT NULL DEFAULT '',
			asset_id UUID REFERENCES asset (id) ON DELETE SET NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			deleted BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX entry_topic_newest_first ON entry (topic_id, created_at DESC, id DESC);
		CREATE INDEX entry_parent ON entry (parent_id);

		CREATE TABLE entry_read_state (
			entry_id INT NOT NULL REFERENCES entry (id) ON DELETE CASCADE,
			user_id INT NOT NULL REFERENCES cq_user (id) ON DELETE CASCADE,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			forced BOOLEAN NOT NULL DEFAULT FALSE,
			marked_at TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (entry_id, user_id)
		);

		CREATE TABLE topic_read_state (
			topic_id INT NOT NULL REFERENCES topic (id) ON DELETE CASCADE,
			user_id INT NOT NULL REFERENCES cq_user (id) ON DELETE CASCADE,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			marked_at TIMESTAMP WITH TIME ZONE NOT NULL,
			PRIMARY KEY (topic_id, user_id)
		);
	`)
	return err
}

func (m InitialSchema) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		DROP TABLE topic_read_state;
		DROP TABLE entry_read_state;
		DROP TABLE entry;
		DROP TABLE topic;
		DROP TABLE group_member;
		DROP TABLE cq_group;
		ALTER TABLE cq_user DROP COLUMN avatar_asset_id;
		DROP TABLE asset;
		DROP TABLE cq_user;
	`)
	return err
}
