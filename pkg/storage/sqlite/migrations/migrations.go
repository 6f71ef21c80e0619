// Package migrations registers the sqlite schema migrations.
package migrations

import (
	"github.com/plately/plately/pkg/storage/migrate"
)

var Migrations = migrate.NewRegistry("sqlite")
