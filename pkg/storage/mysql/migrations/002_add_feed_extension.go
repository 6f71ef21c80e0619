package migrations

import (
	"context"
	"database/sql"

	"github.com/plately/plately/pkg/storage/migrate"
)

func up002(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`ALTER TABLE entry ADD COLUMN visible_in_feed BOOLEAN NOT NULL DEFAULT TRUE;`,
		`ALTER TABLE entry ADD COLUMN canonical_of VARCHAR(64);`,
		`CREATE INDEX idx_entry_canonical ON entry (canonical_of);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func down002(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`DROP INDEX idx_entry_canonical ON entry;`,
		`ALTER TABLE entry DROP COLUMN canonical_of;`,
		`ALTER TABLE entry DROP COLUMN visible_in_feed;`,
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
		Version:  2,
		Forward:  up002,
		Backward: down002,
	})
}
