package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plately/plately/pkg/storage/migrate"
	mysqlmigrations "github.com/plately/plately/pkg/storage/mysql/migrations"
	postgresmigrations "github.com/plately/plately/pkg/storage/postgres/migrations"
	sqlitemigrations "github.com/plately/plately/pkg/storage/sqlite/migrations"
)

func TestMustRegister(t *testing.T) {
	registry := migrate.NewRegistry("postgres")

	registry.MustRegister(&migrate.Migration{Version: 1})
	require.Len(t, registry.Migrations, 1)

	require.Panics(t, func() {
		registry.MustRegister(&migrate.Migration{Version: 1})
	})
}

func TestNewRegistryRejectsUnknownEngine(t *testing.T) {
	require.Panics(t, func() {
		migrate.NewRegistry("cockroach")
	})
}

func TestDriverRegistriesCarryAllMigrations(t *testing.T) {
	for name, registry := range map[string]*migrate.Registry{
		"postgres": postgresmigrations.Migrations,
		"mysql":    mysqlmigrations.Migrations,
		"sqlite":   sqlitemigrations.Migrations,
	} {
		require.Len(t, registry.Migrations, 2, "%s registry", name)
		require.Contains(t, registry.Migrations, int64(1), "%s base schema", name)
		require.Contains(t, registry.Migrations, int64(2), "%s feed extension", name)
	}
}
