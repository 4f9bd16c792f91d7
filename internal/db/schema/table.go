// Package schema provides dialect-aware builders for schema migrations.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/leetsync/leetsync/internal/db"
)

// Type represents type of column.
type Type int

const (
	// Int64 represents golang int64 type in SQL.
	Int64 Type = 1 + iota
	// String represents golang string type in SQL.
	String
	// JSON represents models.JSON type in SQL.
	JSON
)

// Column represents table column with parameters.
type Column struct {
	Name          string
	Type          Type
	PrimaryKey    bool
	AutoIncrement bool
	Nullable      bool
}

const (
	suffixPrimaryKey = " PRIMARY KEY"
	suffixNotNULL    = " NOT NULL"
)

func (c Column) int64BuildSQL(d db.Dialect) (string, error) {
	typeName := "bigint"
	if c.PrimaryKey {
		if d == db.SQLiteDialect {
			// SQLite does not support bigint primary keys.
			typeName = "integer"
		}
		if d == db.PostgresDialect && c.AutoIncrement {
			// Postgres has special type for autoincrement columns.
			typeName = "bigserial"
		}
		typeName += suffixPrimaryKey
		if c.AutoIncrement && d == db.SQLiteDialect {
			typeName += " AUTOINCREMENT"
		}
	} else if !c.Nullable {
		typeName += suffixNotNULL
	}
	return fmt.Sprintf("%q %s", c.Name, typeName), nil
}

// BuildSQL returns SQL in specified dialect.
func (c Column) BuildSQL(d db.Dialect) (string, error) {
	switch c.Type {
	case Int64:
		return c.int64BuildSQL(d)
	case String:
		typeName := "text"
		if !c.Nullable {
			typeName += suffixNotNULL
		}
		return fmt.Sprintf("%q %s", c.Name, typeName), nil
	case JSON:
		typeName := "blob"
		if d == db.PostgresDialect {
			// Postgres has special types for JSON: json and jsonb.
			// We prefer jsonb over json because it is more efficient.
			typeName = "jsonb"
		}
		if !c.Nullable {
			typeName += suffixNotNULL
		}
		return fmt.Sprintf("%q %s", c.Name, typeName), nil
	default:
		return "", fmt.Errorf("unsupported column type: %v", c.Type)
	}
}

// Operation represents schema operation of migration.
type Operation interface {
	BuildApply(db.Dialect) (string, error)
	BuildUnapply(db.Dialect) (string, error)
}

// CreateTable represents create table query.
type CreateTable struct {
	Name    string
	Columns []Column
	Strict  bool
}

// BuildApply returns create SQL query in specified dialect.
func (q CreateTable) BuildApply(d db.Dialect) (string, error) {
	var query strings.Builder
	query.WriteString("CREATE TABLE ")
	if !q.Strict {
		query.WriteString("IF NOT EXISTS ")
	}
	query.WriteString(fmt.Sprintf("%q (", q.Name))
	for i, column := range q.Columns {
		if i > 0 {
			query.WriteString(", ")
		}
		sql, err := column.BuildSQL(d)
		if err != nil {
			return "", err
		}
		query.WriteString(sql)
	}
	query.WriteRune(')')
	return query.String(), nil
}

// BuildUnapply returns drop SQL query in specified dialect.
func (q CreateTable) BuildUnapply(d db.Dialect) (string, error) {
	var query strings.Builder
	query.WriteString("DROP TABLE ")
	if !q.Strict {
		query.WriteString("IF EXISTS ")
	}
	query.WriteString(fmt.Sprintf("%q", q.Name))
	return query.String(), nil
}

// CreateIndex represents create index query.
type CreateIndex struct {
	Table   string
	Columns []string
	Unique  bool
}

func (q CreateIndex) indexName() string {
	return fmt.Sprintf("%s_%s_idx", q.Table, strings.Join(q.Columns, "_"))
}

// BuildApply returns create SQL query in specified dialect.
func (q CreateIndex) BuildApply(d db.Dialect) (string, error) {
	var query strings.Builder
	query.WriteString("CREATE ")
	if q.Unique {
		query.WriteString("UNIQUE ")
	}
	query.WriteString("INDEX IF NOT EXISTS ")
	query.WriteString(fmt.Sprintf("%q ON %q (", q.indexName(), q.Table))
	for i, column := range q.Columns {
		if i > 0 {
			query.WriteString(", ")
		}
		query.WriteString(fmt.Sprintf("%q", column))
	}
	query.WriteRune(')')
	return query.String(), nil
}

// BuildUnapply returns drop SQL query in specified dialect.
func (q CreateIndex) BuildUnapply(d db.Dialect) (string, error) {
	return fmt.Sprintf("DROP INDEX IF EXISTS %q", q.indexName()), nil
}

// NewMigration creates migration from list of schema operations.
func NewMigration(operations []Operation) db.Migration {
	return &simpleMigration{operations: operations}
}

type simpleMigration struct {
	operations []Operation
}

func (m *simpleMigration) Apply(ctx context.Context, conn *db.DB) error {
	tx := db.GetRunner(ctx, conn)
	for _, operation := range m.operations {
		query, err := operation.BuildApply(conn.Dialect())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (m *simpleMigration) Unapply(ctx context.Context, conn *db.DB) error {
	tx := db.GetRunner(ctx, conn)
	for i := 0; i < len(m.operations); i++ {
		operation := m.operations[len(m.operations)-i-1]
		query, err := operation.BuildUnapply(conn.Dialect())
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}
