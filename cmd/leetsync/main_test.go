package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/leetsync/leetsync/internal/config"
	"github.com/leetsync/leetsync/internal/core"
	"github.com/leetsync/leetsync/internal/db"
	"github.com/leetsync/leetsync/internal/migrations"
)

var (
	testConfigFile *os.File
	testConfig     = config.Config{
		Server: &config.Server{},
		Security: &config.Security{
			Passphrase: config.Secret{
				Type: config.DataSecret,
				Data: "qwerty123",
			},
		},
	}
)

func testSetup(tb testing.TB) {
	testConfig.DB = config.DB{
		Driver: config.SQLiteDriver,
		Options: config.SQLiteOptions{
			Path: filepath.Join(tb.TempDir(), "leetsync.db"),
		},
	}
	testConfig.SocketFile = filepath.Join(
		tb.TempDir(), "leetsync-server.sock",
	)
	var err error
	func() {
		testConfigFile, err = os.CreateTemp(tb.TempDir(), "test-")
		if err != nil {
			tb.Fatal("Error:", err)
		}
		defer testConfigFile.Close()
		err := json.NewEncoder(testConfigFile).Encode(testConfig)
		if err != nil {
			tb.Fatal("Error:", err)
		}
	}()
	c, err := core.NewCore(testConfig)
	if err != nil {
		tb.Fatal("Error:", err)
	}
	c.SetupAllStores()
	if err := db.ApplyMigrations(
		context.Background(), c.DB, "leetsync", migrations.Schema,
	); err != nil {
		tb.Fatal("Error:", err)
	}
}

func testTeardown(tb testing.TB) {
	c, err := core.NewCore(testConfig)
	if err != nil {
		tb.Fatal("Error:", err)
	}
	c.SetupAllStores()
	if err := db.ApplyMigrations(
		context.Background(), c.DB, "leetsync", migrations.Schema,
		db.WithZeroMigration,
	); err != nil {
		tb.Fatal("Error:", err)
	}
}

func TestServerMain(t *testing.T) {
	testSetup(t)
	defer testTeardown(t)
	cmd := cobra.Command{}
	cmd.Flags().String("config", "", "")
	cmd.Flags().Set("config", testConfigFile.Name())
	go testCancel()
	serverMain(&cmd, nil)
}

func TestMigrateMain(t *testing.T) {
	testSetup(t)
	defer testTeardown(t)
	cmd := cobra.Command{}
	cmd.Flags().String("config", "", "")
	cmd.Flags().Bool("with-data", true, "")
	cmd.Flags().Bool("force", false, "")
	cmd.Flags().Set("config", testConfigFile.Name())
	migrateMain(&cmd, nil)
}

func TestVersionMain(t *testing.T) {
	cmd := cobra.Command{}
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Unexpected panic: %v", r)
		}
	}()
	versionMain(&cmd, nil)
}

func TestGetConfigUnknown(t *testing.T) {
	cmd := cobra.Command{}
	if _, err := getConfig(&cmd); err == nil {
		t.Fatal("Expected error")
	}
}

func TestCommand(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Expected panic")
		}
	}()
	args := os.Args
	os.Args = []string{"leetsync", "--config", "not-found", "server"}
	main()
	os.Args = args
}
