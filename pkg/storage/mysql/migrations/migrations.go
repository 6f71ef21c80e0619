// Package migrations registers the mysql schema migrations.
package migrations

import (
	"github.com/plately/plately/pkg/storage/migrate"
)

var Migrations = migrate.NewRegistry("mysql")
