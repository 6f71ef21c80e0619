package migrations

import (
	"context"
	"database/sql"

	"github.com/plately/plately/pkg/storage/migrate"
)

func up001(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE user_profile (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			avatar_path TEXT
		);`,
		`CREATE TABLE connection (
			id TEXT PRIMARY KEY,
			requester_id TEXT NOT NULL,
			addressee_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX idx_connection_requester ON connection (requester_id, status);`,
		`CREATE INDEX idx_connection_addressee ON connection (addressee_id, status);`,
		`CREATE TABLE entry (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			caption TEXT NOT NULL DEFAULT '',
			rating INTEGER NOT NULL DEFAULT 0,
			media_paths TEXT,
			tagged_user_ids TEXT,
			post_visibility TEXT NOT NULL DEFAULT 'public',
			reaction_visibility TEXT,
			comment_visibility TEXT,
			friends_only_comments BOOLEAN,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX idx_entry_owner_created ON entry (owner_id, created_at DESC);`,
		`CREATE INDEX idx_entry_visibility_created ON entry (post_visibility, created_at DESC);`,
		`CREATE TABLE reaction (
			entry_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			emoji TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (entry_id, user_id, emoji)
		);`,
		`CREATE TABLE comment (
			id TEXT PRIMARY KEY,
			entry_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			body TEXT NOT NULL,
			parent_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX idx_comment_entry ON comment (entry_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func down001(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`DROP TABLE IF EXISTS comment;`,
		`DROP TABLE IF EXISTS reaction;`,
		`DROP TABLE IF EXISTS entry;`,
		`DROP TABLE IF EXISTS connection;`,
		`DROP TABLE IF EXISTS user_profile;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	Migrations.MustRegister(&migrate.Migration{
		Version:  1,
		Forward:  up001,
		Backward: down001,
	})
}
