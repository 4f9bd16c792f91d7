// Package db provides implementation of generic object stores.
package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect represents SQL dialect of database connection.
type Dialect int

const (
	// SQLiteDialect represents SQLite dialect.
	SQLiteDialect Dialect = 1 + iota
	// PostgresDialect represents Postgres dialect.
	PostgresDialect
)

// String returns string representation.
func (d Dialect) String() string {
	switch d {
	case SQLiteDialect:
		return "SQLite"
	case PostgresDialect:
		return "Postgres"
	default:
		return fmt.Sprintf("Dialect(%d)", d)
	}
}

// DB represents database connection with known dialect.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Dialect returns SQL dialect of connection.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// NewDB creates a new instance of DB.
func NewDB(conn *sql.DB, dialect Dialect) *DB {
	return &DB{DB: conn, dialect: dialect}
}

// Runner represents SQL runner: database connection or transaction.
type Runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// WithTx returns copy of context with attached transaction.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTx returns transaction attached to context or nil.
func GetTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// GetRunner returns attached transaction or fallback runner.
func GetRunner(ctx context.Context, fallback Runner) Runner {
	if tx := GetTx(ctx); tx != nil {
		return tx
	}
	return fallback
}

// TxOption represents option for transaction.
type TxOption func(*sql.TxOptions)

// WithIsolation sets transaction isolation level.
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(o *sql.TxOptions) {
		o.Isolation = level
	}
}

// WrapTx runs function inside new transaction.
func WrapTx(
	ctx context.Context, conn *DB,
	fn func(tx *sql.Tx) error, options ...TxOption,
) (err error) {
	var txOptions sql.TxOptions
	for _, option := range options {
		option(&txOptions)
	}
	tx, err := conn.BeginTx(ctx, &txOptions)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
