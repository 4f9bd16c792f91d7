package models

import (
	"context"

	"github.com/leetsync/leetsync/internal/db"
)

// ProcessedSubmission represents fingerprint of already pushed submission.
type ProcessedSubmission struct {
	baseObject
	Fingerprint string `db:"fingerprint"`
	CreateTime  int64  `db:"create_time"`
}

// Clone creates copy of processed submission.
func (o ProcessedSubmission) Clone() ProcessedSubmission {
	return o
}

// ProcessedSubmissionStore represents store for processed submissions.
type ProcessedSubmissionStore struct {
	cachedStore[ProcessedSubmission, *ProcessedSubmission]
	byFingerprint *index[string, ProcessedSubmission, *ProcessedSubmission]
}

// HasFingerprint reports whether submission with fingerprint was pushed.
func (s *ProcessedSubmissionStore) HasFingerprint(fingerprint string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.byFingerprint.Get(fingerprint)) > 0
}

// Count returns amount of stored fingerprints.
func (s *ProcessedSubmissionStore) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.countUnlocked()
}

func (s *ProcessedSubmissionStore) countUnlocked() int {
	count := 0
	for iter := s.objects.Iter(); iter.Next(); {
		count++
	}
	return count
}

// Prune deletes oldest fingerprints until limit is satisfied.
func (s *ProcessedSubmissionStore) Prune(ctx context.Context, limit int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	amount := s.countUnlocked() - limit
	if amount <= 0 {
		return nil
	}
	var ids []int64
	for iter := s.objects.Iter(); iter.Next() && len(ids) < amount; {
		value := iter.Value()
		ids = append(ids, value.ID)
	}
	for _, id := range ids {
		if err := s.deleteUnlocked(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// NewProcessedSubmissionStore creates a new instance of ProcessedSubmissionStore.
func NewProcessedSubmissionStore(conn *db.DB, table string) *ProcessedSubmissionStore {
	impl := &ProcessedSubmissionStore{
		byFingerprint: newIndex[string, ProcessedSubmission, *ProcessedSubmission](
			func(o ProcessedSubmission) string {
				return o.Fingerprint
			},
		),
	}
	impl.cachedStore = makeCachedStore[ProcessedSubmission, *ProcessedSubmission](
		conn, table, &impl.cachedStore, impl.byFingerprint,
	)
	return impl
}
