package managers

import (
	"context"
	"testing"

	"github.com/leetsync/leetsync/internal/config"
	"github.com/leetsync/leetsync/internal/core"
	"github.com/leetsync/leetsync/internal/db"
	"github.com/leetsync/leetsync/internal/migrations"
)

func testSetup(tb testing.TB) *core.Core {
	cfg := config.Config{
		DB: config.DB{
			Driver:  config.SQLiteDriver,
			Options: config.SQLiteOptions{Path: ":memory:"},
		},
	}
	c, err := core.NewCore(cfg)
	if err != nil {
		tb.Fatal("Error:", err)
	}
	c.SetupAllStores()
	if err := db.ApplyMigrations(
		context.Background(), c.DB, "leetsync", migrations.Schema,
	); err != nil {
		tb.Fatal("Error:", err)
	}
	if err := c.Start(); err != nil {
		tb.Fatal("Error:", err)
	}
	return c
}

func testTeardown(c *core.Core) {
	c.Stop()
}
