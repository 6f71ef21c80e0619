package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plately/plately/pkg/storage"
)

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
			err:      errors.New(`ERROR: column "canonical_of" does not exist (SQLSTATE 42703)`),
			expected: storage.ErrSchemaUnsupported,
		},
		{
			name:     "duplicate_key_maps_to_collision",
			err:      errors.New(`ERROR: duplicate key value violates unique constraint "reaction_pkey" (SQLSTATE 23505)`),
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
