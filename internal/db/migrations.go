package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration represents database migration.
type Migration interface {
	// Apply should apply database migration.
	Apply(ctx context.Context, conn *DB) error
	// Unapply should unapply database migration.
	Unapply(ctx context.Context, conn *DB) error
}

type NamedMigration struct {
	Name      string
	Migration Migration
}

// MigrationGroup represents group of database migrations.
type MigrationGroup interface {
	// AddMigration registers new migration to group.
	AddMigration(name string, m Migration)
	// GetMigration returns migration by name.
	GetMigration(name string) Migration
	// GetMigrations returns migrations ordered by name.
	GetMigrations() []NamedMigration
}

func NewMigrationGroup() MigrationGroup {
	return &migrationGroup{
		migrations: map[string]Migration{},
	}
}

type migrationGroup struct {
	migrations map[string]Migration
}

func (g *migrationGroup) AddMigration(name string, m Migration) {
	if _, ok := g.migrations[name]; ok {
		panic(fmt.Errorf("migration %q already exists", name))
	}
	g.migrations[name] = m
}

func (g *migrationGroup) GetMigration(name string) Migration {
	migration, ok := g.migrations[name]
	if !ok {
		panic(fmt.Errorf("migration %q does not exists", name))
	}
	return migration
}

func (g *migrationGroup) GetMigrations() []NamedMigration {
	var names []string
	for name := range g.migrations {
		names = append(names, name)
	}
	sort.Strings(names)
	var migrations []NamedMigration
	for _, name := range names {
		migrations = append(migrations, NamedMigration{
			Name:      name,
			Migration: g.migrations[name],
		})
	}
	return migrations
}

// MigrateOption modifies positions of applied migration range.
type MigrateOption func(state []migrationState, beginPos, endPos *int) error

// WithMigration applies migrations up to migration with specified name.
func WithMigration(name string) MigrateOption {
	if name == "zero" {
		return WithZeroMigration
	}
	return func(state []migrationState, beginPos, endPos *int) error {
		for i := 0; i < len(state); i++ {
			if state[i].Name == name {
				*endPos = i + 1
				return nil
			}
		}
		return fmt.Errorf("invalid migration %q", name)
	}
}

// WithZeroMigration unapplies all currently applied migrations.
func WithZeroMigration(state []migrationState, beginPos, endPos *int) error {
	*endPos = 0
	return nil
}

// ApplyMigrations applies all unapplied migrations from group.
func ApplyMigrations(
	ctx context.Context, conn *DB, group string,
	g MigrationGroup, options ...MigrateOption,
) error {
	m := &migrationManager{
		db:    conn,
		group: group,
		store: NewObjectStore[migration, *migration]("id", migrationTable, conn),
	}
	if err := m.init(ctx); err != nil {
		return err
	}
	return m.apply(ctx, g, options...)
}

type migration struct {
	ID    int64  `db:"id"`
	Group string `db:"group"`
	Name  string `db:"name"`
	Time  int64  `db:"time"`
}

func (o migration) ObjectID() int64 {
	return o.ID
}

func (o *migration) SetObjectID(id int64) {
	o.ID = id
}

const migrationTable = "db_migration"

type migrationState struct {
	Name      string
	Applied   bool
	Supported bool
}

type migrationManager struct {
	db    *DB
	group string
	store ObjectStore[migration, *migration]
}

func (m *migrationManager) init(ctx context.Context) error {
	idColumn := `"id" integer PRIMARY KEY AUTOINCREMENT`
	if m.db.Dialect() == PostgresDialect {
		idColumn = `"id" bigserial PRIMARY KEY`
	}
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (%s,`+
			` "group" text NOT NULL,`+
			` "name" text NOT NULL,`+
			` "time" bigint NOT NULL)`,
		migrationTable, idColumn,
	))
	return err
}

func (m *migrationManager) getApplied(ctx context.Context) ([]migration, error) {
	rows, err := m.store.FindObjects(ctx, `"group" = $1`, m.group)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var migrations []migration
	for rows.Next() {
		migrations = append(migrations, rows.Row())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Name < migrations[j].Name
	})
	return migrations, nil
}

func (m *migrationManager) getState(
	ctx context.Context, g MigrationGroup,
) ([]migrationState, error) {
	migrations := g.GetMigrations()
	applied, err := m.getApplied(ctx)
	if err != nil {
		return nil, err
	}
	var result []migrationState
	it, jt := 0, 0
	for it < len(migrations) && jt < len(applied) {
		if migrations[it].Name < applied[jt].Name {
			result = append(result, migrationState{
				Name: migrations[it].Name, Supported: true,
			})
			it++
		} else if applied[jt].Name < migrations[it].Name {
			result = append(result, migrationState{
				Name: applied[jt].Name, Applied: true,
			})
			jt++
		} else {
			result = append(result, migrationState{
				Name: applied[jt].Name, Applied: true, Supported: true,
			})
			it++
			jt++
		}
	}
	for it < len(migrations) {
		result = append(result, migrationState{
			Name: migrations[it].Name, Supported: true,
		})
		it++
	}
	for jt < len(applied) {
		result = append(result, migrationState{
			Name: applied[jt].Name, Applied: true,
		})
		jt++
	}
	return result, nil
}

func (m *migrationManager) apply(
	ctx context.Context, g MigrationGroup, options ...MigrateOption,
) error {
	state, err := m.getState(ctx, g)
	if err != nil {
		return err
	}
	beginPos := 0
	for i := 0; i < len(state); i++ {
		if state[i].Applied {
			beginPos = i + 1
		}
	}
	endPos := len(state)
	for _, option := range options {
		if err := option(state, &beginPos, &endPos); err != nil {
			return err
		}
	}
	if endPos < beginPos {
		return m.applyBackward(ctx, g, state[endPos:beginPos])
	}
	return m.applyForward(ctx, g, state[beginPos:endPos])
}

func (m *migrationManager) applyForward(
	ctx context.Context, g MigrationGroup, migrations []migrationState,
) error {
	for _, mgr := range migrations {
		impl := g.GetMigration(mgr.Name)
		if err := WrapTx(ctx, m.db, func(tx *sql.Tx) error {
			ctx := WithTx(ctx, tx)
			if err := impl.Apply(ctx, m.db); err != nil {
				return err
			}
			if mgr.Applied {
				return nil
			}
			object := migration{
				Group: m.group,
				Name:  mgr.Name,
				Time:  time.Now().Unix(),
			}
			return m.store.CreateObject(ctx, &object)
		}); err != nil {
			return fmt.Errorf("cannot apply migration %q: %w", mgr.Name, err)
		}
	}
	return nil
}

func (m *migrationManager) applyBackward(
	ctx context.Context, g MigrationGroup, migrations []migrationState,
) error {
	for i := 0; i < len(migrations); i++ {
		mgr := migrations[len(migrations)-i-1]
		if !mgr.Applied {
			return fmt.Errorf("migration %q is not applied", mgr.Name)
		}
		impl := g.GetMigration(mgr.Name)
		if err := WrapTx(ctx, m.db, func(tx *sql.Tx) error {
			ctx := WithTx(ctx, tx)
			object, err := m.getAppliedMigration(ctx, mgr.Name)
			if err != nil {
				return err
			}
			if err := impl.Unapply(ctx, m.db); err != nil {
				return err
			}
			return m.store.DeleteObject(ctx, object.ID)
		}); err != nil {
			return fmt.Errorf("cannot unapply migration %q: %w", mgr.Name, err)
		}
	}
	return nil
}

func (m *migrationManager) getAppliedMigration(
	ctx context.Context, name string,
) (migration, error) {
	rows, err := m.store.FindObjects(
		ctx, `"group" = $1 AND "name" = $2`, m.group, name,
	)
	if err != nil {
		return migration{}, err
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		return rows.Row(), nil
	}
	if err := rows.Err(); err != nil {
		return migration{}, err
	}
	return migration{}, sql.ErrNoRows
}
