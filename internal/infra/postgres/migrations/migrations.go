package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema for the postgres catalog and snapshot backends.
var Migrations = migrate.NewMigrations()
