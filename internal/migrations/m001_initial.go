package migrations

import (
	"github.com/leetsync/leetsync/internal/db/schema"
)

func init() {
	Schema.AddMigration("001_initial", schema.NewMigration([]schema.Operation{
		schema.CreateTable{
			Name: "leetsync_commit",
			Columns: []schema.Column{
				{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
				{Name: "kind", Type: schema.Int64},
				{Name: "status", Type: schema.Int64},
				{Name: "submission", Type: schema.JSON, Nullable: true},
				{Name: "enqueue_time", Type: schema.Int64},
				{Name: "retry_count", Type: schema.Int64},
				{Name: "last_error", Type: schema.String, Nullable: true},
			},
		},
		schema.CreateIndex{
			Table:   "leetsync_commit",
			Columns: []string{"status"},
		},
		schema.CreateTable{
			Name: "leetsync_processed_submission",
			Columns: []schema.Column{
				{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
				{Name: "fingerprint", Type: schema.String},
				{Name: "create_time", Type: schema.Int64},
			},
		},
		schema.CreateIndex{
			Table:   "leetsync_processed_submission",
			Columns: []string{"fingerprint"},
			Unique:  true,
		},
		schema.CreateTable{
			Name: "leetsync_setting",
			Columns: []schema.Column{
				{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
				{Name: "key", Type: schema.String},
				{Name: "value", Type: schema.String},
			},
		},
		schema.CreateIndex{
			Table:   "leetsync_setting",
			Columns: []string{"key"},
			Unique:  true,
		},
	}))
}
