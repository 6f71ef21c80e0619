package migrations

import (
	"context"
	"database/sql"

	"github.com/plately/plately/pkg/storage/migrate"
)

func up001(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE user_profile (
			user_id VARCHAR(64) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL,
			avatar_path VARCHAR(512)
		);`,
		`CREATE TABLE connection (
			id VARCHAR(64) PRIMARY KEY,
			requester_id VARCHAR(64) NOT NULL,
			addressee_id VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			INDEX idx_connection_requester (requester_id, status),
			INDEX idx_connection_addressee (addressee_id, status)
		);`,
		`CREATE TABLE entry (
			id VARCHAR(64) PRIMARY KEY,
			owner_id VARCHAR(64) NOT NULL,
			caption TEXT NOT NULL,
			rating INT NOT NULL DEFAULT 0,
			media_paths TEXT,
			tagged_user_ids TEXT,
			post_visibility VARCHAR(32) NOT NULL DEFAULT 'public',
			reaction_visibility VARCHAR(32),
			comment_visibility VARCHAR(32),
			friends_only_comments BOOLEAN,
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			INDEX idx_entry_owner_created (owner_id, created_at DESC),
			INDEX idx_entry_visibility_created (post_visibility, created_at DESC)
		);`,
		`CREATE TABLE reaction (
			entry_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			emoji VARCHAR(32) NOT NULL,
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			PRIMARY KEY (entry_id, user_id, emoji)
		);`,
		`CREATE TABLE comment (
			id VARCHAR(64) PRIMARY KEY,
			entry_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			body TEXT NOT NULL,
			parent_id VARCHAR(64),
			created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			INDEX idx_comment_entry (entry_id)
		);`,
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
