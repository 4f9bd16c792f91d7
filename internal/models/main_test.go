package models

import (
	"testing"

	"github.com/leetsync/leetsync/internal/config"
	"github.com/leetsync/leetsync/internal/db"
)

var testDB *db.DB

var testTables = []string{
	`CREATE TABLE "leetsync_commit" (` +
		`"id" integer PRIMARY KEY AUTOINCREMENT,` +
		`"kind" bigint NOT NULL,` +
		`"status" bigint NOT NULL,` +
		`"submission" blob,` +
		`"enqueue_time" bigint NOT NULL,` +
		`"retry_count" bigint NOT NULL,` +
		`"last_error" text)`,
	`CREATE TABLE "leetsync_processed_submission" (` +
		`"id" integer PRIMARY KEY AUTOINCREMENT,` +
		`"fingerprint" text NOT NULL,` +
		`"create_time" bigint NOT NULL)`,
	`CREATE TABLE "leetsync_setting" (` +
		`"id" integer PRIMARY KEY AUTOINCREMENT,` +
		`"key" text NOT NULL,` +
		`"value" text NOT NULL)`,
}

func testSetup(tb testing.TB) {
	cfg := config.DB{
		Driver:  config.SQLiteDriver,
		Options: config.SQLiteOptions{Path: "?mode=memory"},
	}
	var err error
	testDB, err = cfg.Create()
	if err != nil {
		tb.Fatal("Error:", err)
	}
	for _, query := range testTables {
		if _, err := testDB.Exec(query); err != nil {
			tb.Fatal("Error:", err)
		}
	}
}

func testTeardown(tb testing.TB) {
	_ = testDB.Close()
}
