package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/leetsync/leetsync/internal/db"
)

// CommitStatus represents status of queued commit.
type CommitStatus int

const (
	// QueuedCommit means that commit is in queue and should be processed.
	QueuedCommit CommitStatus = 0
	// RunningCommit means that commit is already in processing.
	RunningCommit CommitStatus = 1
)

// String returns string representation.
func (t CommitStatus) String() string {
	switch t {
	case QueuedCommit:
		return "queued"
	case RunningCommit:
		return "running"
	default:
		return fmt.Sprintf("CommitStatus(%d)", t)
	}
}

// MarshalText marshals status to text.
func (t CommitStatus) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// CommitKind represents kind of queued commit.
type CommitKind int

const (
	// ImmediateCommit represents commit enqueued after failed
	// immediate push of freshly accepted submission.
	ImmediateCommit CommitKind = 1
	// RetryCommit represents commit re-armed for another attempt by
	// explicit request.
	RetryCommit CommitKind = 2
)

// String returns string representation.
func (t CommitKind) String() string {
	switch t {
	case ImmediateCommit:
		return "immediate"
	case RetryCommit:
		return "retry"
	default:
		return fmt.Sprintf("CommitKind(%d)", t)
	}
}

// MarshalText marshals kind to text.
func (t CommitKind) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Commit represents queued commit of accepted submission.
type Commit struct {
	baseObject
	Kind        CommitKind   `db:"kind"`
	Status      CommitStatus `db:"status"`
	Submission  JSON         `db:"submission"`
	EnqueueTime int64        `db:"enqueue_time"`
	RetryCount  int64        `db:"retry_count"`
	LastError   NString      `db:"last_error"`
}

// Clone creates copy of commit.
func (o Commit) Clone() Commit {
	o.Submission = o.Submission.Clone()
	return o
}

// RefID returns stable reference ID of commit.
func (o Commit) RefID() string {
	return fmt.Sprintf("%s-%d", o.Kind, o.ID)
}

// ScanSubmission scans commit submission.
func (o Commit) ScanSubmission(submission any) error {
	return json.Unmarshal(o.Submission, submission)
}

// SetSubmission updates submission of commit.
func (o *Commit) SetSubmission(submission any) error {
	raw, err := json.Marshal(submission)
	if err != nil {
		return err
	}
	o.Submission = raw
	return nil
}

// CommitStore represents store for queued commits.
type CommitStore struct {
	cachedStore[Commit, *Commit]
	byStatus *index[CommitStatus, Commit, *Commit]
}

// FindByStatus returns a list of commits with specified status.
func (s *CommitStore) FindByStatus(status CommitStatus) ([]Commit, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var commits []Commit
	for iter := s.objects.Iter(); iter.Next(); {
		commit := iter.Value()
		if commit.Status == status {
			commits = append(commits, commit.Clone())
		}
	}
	return commits, nil
}

// PopQueued pops queued commit with lowest ID and sets running status.
//
// Returns sql.ErrNoRows if there is no queued commits.
func (s *CommitStore) PopQueued(ctx context.Context) (Commit, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for iter := s.objects.Iter(); iter.Next(); {
		if commit := iter.Value(); commit.Status == QueuedCommit {
			commit = commit.Clone()
			commit.Status = RunningCommit
			if err := s.updateUnlocked(ctx, commit); err != nil {
				return Commit{}, err
			}
			return commit, nil
		}
	}
	return Commit{}, sql.ErrNoRows
}

// ResetRunning resets all running commits back to queued status.
//
// Running status is not durable and should be reset on daemon startup.
func (s *CommitStore) ResetRunning(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var running []Commit
	for id := range s.byStatus.Get(RunningCommit) {
		if commit, ok := s.objects.Get(id); ok {
			running = append(running, commit.Clone())
		}
	}
	for _, commit := range running {
		commit.Status = QueuedCommit
		if err := s.updateUnlocked(ctx, commit); err != nil {
			return err
		}
	}
	return nil
}

var _ cachedStoreImpl[Commit] = (*cachedStore[Commit, *Commit])(nil)

// NewCommitStore creates a new instance of CommitStore.
func NewCommitStore(conn *db.DB, table string) *CommitStore {
	impl := &CommitStore{
		byStatus: newIndex[CommitStatus, Commit, *Commit](func(o Commit) CommitStatus {
			return o.Status
		}),
	}
	impl.cachedStore = makeCachedStore[Commit, *Commit](
		conn, table, &impl.cachedStore, impl.byStatus,
	)
	return impl
}
