package config

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	// Register SQL drivers.
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/leetsync/leetsync/internal/db"
)

type DatabaseDriver string

const (
	SQLiteDriver   DatabaseDriver = "sqlite"
	PostgresDriver DatabaseDriver = "postgres"
)

// DB stores configuration for database connection.
type DB struct {
	Driver  DatabaseDriver `json:"driver"`
	Options any            `json:"options"`
}

// SQLiteOptions stores SQLite connection options.
type SQLiteOptions struct {
	Path string `json:"path"`
}

// PostgresOptions stores Postgres connection options.
type PostgresOptions struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password Secret `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"sslmode"`
}

type genericOptions []byte

func (g *genericOptions) UnmarshalJSON(bytes []byte) error {
	*g = bytes
	return nil
}

// UnmarshalJSON parses JSON to create appropriate connection config.
func (c *DB) UnmarshalJSON(bytes []byte) error {
	var g struct {
		Driver  DatabaseDriver `json:"driver"`
		Options genericOptions `json:"options"`
	}
	if err := json.Unmarshal(bytes, &g); err != nil {
		return err
	}
	switch g.Driver {
	case SQLiteDriver:
		var options SQLiteOptions
		if err := json.Unmarshal(g.Options, &options); err != nil {
			return err
		}
		c.Options = options
	case PostgresDriver:
		var options PostgresOptions
		if err := json.Unmarshal(g.Options, &options); err != nil {
			return err
		}
		c.Options = options
	default:
		return fmt.Errorf("driver %q is not supported", g.Driver)
	}
	c.Driver = g.Driver
	return nil
}

func createSQLiteDB(opts SQLiteOptions) (*db.DB, error) {
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", opts.Path))
	if err != nil {
		return nil, err
	}
	// This can increase writes performance.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return db.NewDB(conn, db.SQLiteDialect), nil
}

func createPostgresDB(opts PostgresOptions) (*db.DB, error) {
	password, err := opts.Password.Secret()
	if err != nil {
		return nil, err
	}
	sslMode := opts.SSLMode
	if len(sslMode) == 0 {
		sslMode = "require"
	}
	conn, err := sql.Open("pgx", fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host, opts.Port, opts.User, password, opts.Name, sslMode,
	))
	if err != nil {
		return nil, err
	}
	return db.NewDB(conn, db.PostgresDialect), nil
}

// Create creates database connection using current configuration.
func (c *DB) Create() (*db.DB, error) {
	switch t := c.Options.(type) {
	case SQLiteOptions:
		return createSQLiteDB(t)
	case PostgresOptions:
		return createPostgresDB(t)
	default:
		return nil, errors.New("unsupported database config type")
	}
}
