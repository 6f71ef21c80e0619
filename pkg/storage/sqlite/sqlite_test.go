package sqlite

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plately/plately/pkg/storage"
)

func TestPrepareDSN(t *testing.T) {
	t.Run("adds_default_pragmas", func(t *testing.T) {
		uri, err := PrepareDSN("file:plately.db")
		require.NoError(t, err)
		require.Contains(t, uri, "journal_mode%28WAL%29")
		require.Contains(t, uri, "busy_timeout%28100%29")
	})

	t.Run("keeps_existing_pragmas", func(t *testing.T) {
		uri, err := PrepareDSN("file:plately.db?_pragma=journal_mode%28DELETE%29")
		require.NoError(t, err)
		require.Contains(t, uri, "journal_mode%28DELETE%29")
		require.NotContains(t, uri, "journal_mode%28WAL%29")
		require.Contains(t, uri, "busy_timeout%28100%29")
	})
}

func TestHandleSQLError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "no_rows_maps_to_not_found",
			err:      sql.ErrNoRows,
			expected: storage.ErrNotFound,
		},
		{
			name:     "missing_column_maps_to_schema_unsupported",
			err:      errors.New("SQL logic error: no such column: canonical_of (1)"),
			expected: storage.ErrSchemaUnsupported,
		},
		{
			name:     "unique_violation_maps_to_collision",
			err:      errors.New("constraint failed: UNIQUE constraint failed: reaction.entry_id (1555)"),
			expected: storage.ErrCollision,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.ErrorIs(t, HandleSQLError(test.err), test.expected)
		})
	}

	t.Run("other_errors_are_wrapped", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := HandleSQLError(cause)
		require.ErrorIs(t, err, cause)
		require.NotErrorIs(t, err, storage.ErrSchemaUnsupported)
	})
}
