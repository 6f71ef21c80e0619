// Package migrations registers the postgres schema migrations.
package migrations

import (
	"github.com/plately/plately/pkg/storage/migrate"
)

var Migrations = migrate.NewRegistry("postgres")
