package mysql

import (
	"database/sql"
	"errors"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
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
			name:     "unknown_column_maps_to_schema_unsupported",
			err:      &mysqldriver.MySQLError{Number: 1054, Message: "Unknown column 'canonical_of' in 'field list'"},
			expected: storage.ErrSchemaUnsupported,
		},
		{
			name:     "duplicate_entry_maps_to_collision",
			err:      &mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry for key 'PRIMARY'"},
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
