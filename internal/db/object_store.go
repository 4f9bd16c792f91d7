package db

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
)

// Object represents an object from store.
type Object interface {
	// ObjectID should return sequential ID of object.
	ObjectID() int64
}

// ObjectPtr represents mutable pointer to object.
type ObjectPtr[T any] interface {
	Object
	// SetObjectID should update sequential ID of object.
	SetObjectID(int64)
	*T
}

// ObjectStore represents persistent store for objects.
type ObjectStore[T any, TPtr ObjectPtr[T]] interface {
	// LoadObjects should load all objects from store ordered by ID.
	LoadObjects(ctx context.Context) (Rows[T], error)
	// FindObjects should find objects with specified expression.
	FindObjects(ctx context.Context, where string, args ...any) (Rows[T], error)
	// CreateObject should create a new object and update its ID.
	CreateObject(ctx context.Context, object TPtr) error
	// UpdateObject should update object with specified ID.
	UpdateObject(ctx context.Context, object TPtr) error
	// DeleteObject should delete existing object from the store.
	DeleteObject(ctx context.Context, id int64) error
}

type objectStore[T any, TPtr ObjectPtr[T]] struct {
	typ   reflect.Type
	db    *DB
	id    string
	table string
}

func (s *objectStore[T, TPtr]) LoadObjects(ctx context.Context) (Rows[T], error) {
	tx := GetRunner(ctx, s.db)
	raw, err := tx.QueryContext(
		ctx,
		fmt.Sprintf(
			"SELECT %s FROM %q ORDER BY %q",
			prepareSelect(s.typ), s.table, s.id,
		),
	)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(s.typ, raw); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &rows[T]{typ: s.typ, rows: raw}, nil
}

func (s *objectStore[T, TPtr]) FindObjects(
	ctx context.Context, where string, args ...any,
) (Rows[T], error) {
	tx := GetRunner(ctx, s.db)
	raw, err := tx.QueryContext(
		ctx,
		fmt.Sprintf(
			"SELECT %s FROM %q WHERE %s",
			prepareSelect(s.typ), s.table, where,
		),
		args...,
	)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(s.typ, raw); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &rows[T]{typ: s.typ, rows: raw}, nil
}

func (s *objectStore[T, TPtr]) CreateObject(ctx context.Context, object TPtr) error {
	clone := cloneRow(*object)
	cols, keys, vals, idPtr := prepareInsert(clone, s.id)
	tx := GetRunner(ctx, s.db)
	switch s.db.Dialect() {
	case PostgresDialect:
		row := tx.QueryRowContext(
			ctx,
			fmt.Sprintf(
				"INSERT INTO %q (%s) VALUES (%s) RETURNING %q",
				s.table, cols, keys, s.id,
			),
			vals...,
		)
		if err := row.Scan(idPtr); err != nil {
			return err
		}
	default:
		res, err := tx.ExecContext(
			ctx,
			fmt.Sprintf(
				"INSERT INTO %q (%s) VALUES (%s)",
				s.table, cols, keys,
			),
			vals...,
		)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count != 1 {
			return fmt.Errorf("invalid amount of affected rows: %d", count)
		}
		if *idPtr, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	*object = clone.Interface().(T)
	return nil
}

func (s *objectStore[T, TPtr]) UpdateObject(ctx context.Context, object TPtr) error {
	clone := cloneRow(*object)
	sets, vals := prepareUpdate(clone, s.id)
	tx := GetRunner(ctx, s.db)
	res, err := tx.ExecContext(
		ctx,
		fmt.Sprintf(
			"UPDATE %q SET %s WHERE %q = $%d",
			s.table, sets, s.id, len(vals),
		),
		vals...,
	)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count != 1 {
		return sql.ErrNoRows
	}
	*object = clone.Interface().(T)
	return nil
}

func (s *objectStore[T, TPtr]) DeleteObject(ctx context.Context, id int64) error {
	tx := GetRunner(ctx, s.db)
	res, err := tx.ExecContext(
		ctx,
		fmt.Sprintf("DELETE FROM %q WHERE %q = $1", s.table, s.id),
		id,
	)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count != 1 {
		return sql.ErrNoRows
	}
	return nil
}

// NewObjectStore creates a new store for objects of specified type.
func NewObjectStore[T any, TPtr ObjectPtr[T]](
	id, table string, conn *DB,
) ObjectStore[T, TPtr] {
	var object T
	return &objectStore[T, TPtr]{
		typ:   reflect.TypeOf(object),
		db:    conn,
		id:    id,
		table: table,
	}
}
