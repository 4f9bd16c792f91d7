package models

import (
	"context"
	"database/sql"

	"github.com/leetsync/leetsync/internal/db"
)

// Setting represents setting.
type Setting struct {
	baseObject
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Clone creates copy of setting.
func (o Setting) Clone() Setting {
	return o
}

// SettingStore represents store for settings.
type SettingStore struct {
	cachedStore[Setting, *Setting]
	byKey *index[string, Setting, *Setting]
}

// GetByKey returns setting by specified key.
//
// Returns sql.ErrNoRows if setting does not exist.
func (s *SettingStore) GetByKey(key string) (Setting, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for id := range s.byKey.Get(key) {
		if setting, ok := s.objects.Get(id); ok {
			return setting.Clone(), nil
		}
	}
	return Setting{}, sql.ErrNoRows
}

// SetByKey creates setting with specified key or updates its value.
func (s *SettingStore) SetByKey(ctx context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for id := range s.byKey.Get(key) {
		if setting, ok := s.objects.Get(id); ok {
			setting = setting.Clone()
			setting.Value = value
			return s.updateUnlocked(ctx, setting)
		}
	}
	setting := Setting{Key: key, Value: value}
	return s.createUnlocked(ctx, &setting)
}

// DeleteByKey deletes setting with specified key if it exists.
func (s *SettingStore) DeleteByKey(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for id := range s.byKey.Get(key) {
		return s.deleteUnlocked(ctx, id)
	}
	return nil
}

// NewSettingStore creates a new instance of SettingStore.
func NewSettingStore(conn *db.DB, table string) *SettingStore {
	impl := &SettingStore{
		byKey: newIndex[string, Setting, *Setting](func(o Setting) string {
			return o.Key
		}),
	}
	impl.cachedStore = makeCachedStore[Setting, *Setting](
		conn, table, &impl.cachedStore, impl.byKey,
	)
	return impl
}
