// Package models contains tools for working with leetsync objects stored
// in different databases like SQLite or Postgres.
package models

import (
	"context"
	"database/sql"
	"sync"

	"github.com/udovin/algo/btree"

	"github.com/leetsync/leetsync/internal/db"
)

// ObjectPtr represents mutable pointer to cloneable object.
type ObjectPtr[T any] interface {
	db.ObjectPtr[T]
	Cloner[T]
}

// baseObject represents base for all objects.
type baseObject struct {
	// ID contains object id.
	ID int64 `db:"id"`
}

// ObjectID returns ID of object.
func (o baseObject) ObjectID() int64 {
	return o.ID
}

// SetObjectID updates ID of object.
func (o *baseObject) SetObjectID(id int64) {
	o.ID = id
}

type storeIndex[T any] interface {
	Reset()
	Register(object T)
	Deregister(object T)
}

func newIndex[K comparable, T any, TPtr ObjectPtr[T]](key func(T) K) *index[K, T, TPtr] {
	return &index[K, T, TPtr]{
		key: func(v T) (K, bool) {
			return key(v), true
		},
	}
}

type index[K comparable, T any, TPtr ObjectPtr[T]] struct {
	key   func(T) (K, bool)
	index map[K]map[int64]struct{}
}

func (i *index[K, T, TPtr]) Reset() {
	i.index = map[K]map[int64]struct{}{}
}

func (i *index[K, T, TPtr]) Get(key K) map[int64]struct{} {
	return i.index[key]
}

func (i *index[K, T, TPtr]) Register(object T) {
	key, ok := i.key(object)
	if !ok {
		return
	}
	id := TPtr(&object).ObjectID()
	if _, ok := i.index[key]; !ok {
		i.index[key] = map[int64]struct{}{}
	}
	i.index[key][id] = struct{}{}
}

func (i *index[K, T, TPtr]) Deregister(object T) {
	key, ok := i.key(object)
	if !ok {
		return
	}
	id := TPtr(&object).ObjectID()
	delete(i.index[key], id)
	if len(i.index[key]) == 0 {
		delete(i.index, key)
	}
}

// CachedStore represents store with in-memory cache.
type CachedStore interface {
	Init(ctx context.Context) error
}

type cachedStoreImpl[T any] interface {
	reset()
	onCreateObject(T)
	onDeleteObject(int64)
}

type cachedStore[T any, TPtr ObjectPtr[T]] struct {
	db      *db.DB
	table   string
	store   db.ObjectStore[T, TPtr]
	impl    cachedStoreImpl[T]
	mutex   sync.RWMutex
	objects btree.Map[int64, T]
	indexes []storeIndex[T]
}

// DB returns store database.
func (s *cachedStore[T, TPtr]) DB() *db.DB {
	return s.db
}

// Init loads all objects from database into in-memory cache.
func (s *cachedStore[T, TPtr]) Init(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows, err := s.store.LoadObjects(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	s.impl.reset()
	for rows.Next() {
		s.impl.onCreateObject(rows.Row())
	}
	return rows.Err()
}

// Create creates object and returns copy with valid ID.
func (s *cachedStore[T, TPtr]) Create(ctx context.Context, object TPtr) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.createUnlocked(ctx, object)
}

// Update updates object with specified ID.
func (s *cachedStore[T, TPtr]) Update(ctx context.Context, object T) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.updateUnlocked(ctx, object)
}

// Delete deletes object with specified ID.
func (s *cachedStore[T, TPtr]) Delete(ctx context.Context, id int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.deleteUnlocked(ctx, id)
}

// Get returns object by id.
//
// Returns sql.ErrNoRows if object does not exist.
func (s *cachedStore[T, TPtr]) Get(id int64) (T, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var empty T
	if object, ok := s.objects.Get(id); ok {
		return TPtr(&object).Clone(), nil
	}
	return empty, sql.ErrNoRows
}

// All returns all objects ordered by ID.
func (s *cachedStore[T, TPtr]) All() ([]T, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var objects []T
	for iter := s.objects.Iter(); iter.Next(); {
		value := iter.Value()
		objects = append(objects, TPtr(&value).Clone())
	}
	return objects, nil
}

func (s *cachedStore[T, TPtr]) createUnlocked(ctx context.Context, object TPtr) error {
	if err := s.withTx(ctx, func(ctx context.Context) error {
		return s.store.CreateObject(ctx, object)
	}); err != nil {
		return err
	}
	s.impl.onCreateObject(object.Clone())
	return nil
}

func (s *cachedStore[T, TPtr]) updateUnlocked(ctx context.Context, object T) error {
	clone := TPtr(&object).Clone()
	if err := s.withTx(ctx, func(ctx context.Context) error {
		return s.store.UpdateObject(ctx, &clone)
	}); err != nil {
		return err
	}
	s.impl.onDeleteObject(TPtr(&clone).ObjectID())
	s.impl.onCreateObject(clone)
	return nil
}

func (s *cachedStore[T, TPtr]) deleteUnlocked(ctx context.Context, id int64) error {
	if err := s.withTx(ctx, func(ctx context.Context) error {
		return s.store.DeleteObject(ctx, id)
	}); err != nil {
		return err
	}
	s.impl.onDeleteObject(id)
	return nil
}

func (s *cachedStore[T, TPtr]) withTx(
	ctx context.Context, fn func(ctx context.Context) error,
) error {
	if tx := db.GetTx(ctx); tx != nil {
		return fn(ctx)
	}
	return db.WrapTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(db.WithTx(ctx, tx))
	}, s.txOptions()...)
}

func (s *cachedStore[T, TPtr]) txOptions() []db.TxOption {
	// SQLite driver does not support custom isolation levels.
	if s.db.Dialect() == db.PostgresDialect {
		return []db.TxOption{db.WithIsolation(sql.LevelRepeatableRead)}
	}
	return nil
}

//lint:ignore U1000 Used in generic interface.
func (s *cachedStore[T, TPtr]) reset() {
	for _, index := range s.indexes {
		index.Reset()
	}
	s.objects = btree.NewMap[int64, T](lessInt64)
}

func lessInt64(lhs, rhs int64) bool {
	return lhs < rhs
}

//lint:ignore U1000 Used in generic interface.
func (s *cachedStore[T, TPtr]) onCreateObject(object T) {
	id := TPtr(&object).ObjectID()
	s.objects.Set(id, object)
	for _, index := range s.indexes {
		index.Register(object)
	}
}

//lint:ignore U1000 Used in generic interface.
func (s *cachedStore[T, TPtr]) onDeleteObject(id int64) {
	if object, ok := s.objects.Get(id); ok {
		for _, index := range s.indexes {
			index.Deregister(object)
		}
		s.objects.Delete(id)
	}
}

func makeCachedStore[T any, TPtr ObjectPtr[T]](
	conn *db.DB,
	table string,
	impl cachedStoreImpl[T],
	indexes ...storeIndex[T],
) cachedStore[T, TPtr] {
	store := cachedStore[T, TPtr]{
		db:      conn,
		table:   table,
		store:   db.NewObjectStore[T, TPtr]("id", table, conn),
		impl:    impl,
		indexes: indexes,
	}
	store.reset()
	return store
}
