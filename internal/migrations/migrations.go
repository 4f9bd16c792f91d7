// Package migrations contains migrations for leetsync database.
package migrations

import (
	"github.com/leetsync/leetsync/internal/db"
)

// Schema contains migrations of database schema.
var Schema = db.NewMigrationGroup()

// Data contains migrations of database data.
var Data = db.NewMigrationGroup()
