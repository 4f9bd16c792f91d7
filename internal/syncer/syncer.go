// Package syncer implements processing of accepted submissions into
// repository commits.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/leetsync/leetsync/internal/core"
	"github.com/leetsync/leetsync/internal/github"
	"github.com/leetsync/leetsync/internal/leetcode"
	"github.com/leetsync/leetsync/internal/managers"
	"github.com/leetsync/leetsync/internal/models"
	"github.com/leetsync/leetsync/internal/pkg/logs"
)

// maxRetries bounds amount of attempts per queued commit.
const maxRetries = 3

// fingerprintLimit bounds amount of stored processed fingerprints.
const fingerprintLimit = 10000

const rootReadmePath = "README.md"

// skipDuplicatesKey contains setting that toggles fingerprint dedup.
const skipDuplicatesKey = "sync.skip_duplicates"

// Result represents outcome of submission sync attempt.
type Result struct {
	// Skipped means that submission was processed earlier.
	Skipped bool `json:"skipped,omitempty"`
	// Queued means that commit failed and waits in retry queue.
	Queued bool `json:"queued,omitempty"`
	// CommitURL contains URL of created solution commit.
	CommitURL string `json:"commit_url,omitempty"`
}

// Status represents daemon sync status.
type Status struct {
	Configured bool `json:"configured"`
	Processing bool `json:"processing"`
	QueueSize  int  `json:"queue_size"`
}

// Syncer drives accepted submissions through commit protocol.
type Syncer struct {
	core        *core.Core
	credentials *managers.CredentialsManager
	commits     *managers.CommitManager
	endpoint    string

	drainInterval       time.Duration
	maintenanceInterval time.Duration
	itemDelay           time.Duration
	fileDelay           time.Duration

	trigger chan struct{}

	mutex        sync.Mutex
	inFlight     map[string]struct{}
	processing   int
	authPrompted bool
}

// New creates new syncer for specified remote API endpoint.
func New(
	c *core.Core,
	credentials *managers.CredentialsManager,
	commits *managers.CommitManager,
	endpoint string,
) *Syncer {
	return &Syncer{
		core:                c,
		credentials:         credentials,
		commits:             commits,
		endpoint:            endpoint,
		drainInterval:       30 * time.Second,
		maintenanceInterval: 15 * time.Minute,
		itemDelay:           time.Second,
		fileDelay:           500 * time.Millisecond,
		trigger:             make(chan struct{}, 1),
		inFlight:            map[string]struct{}{},
	}
}

// Start starts queue drain and maintenance daemons.
func (s *Syncer) Start() {
	s.core.StartTask("queue-drain", s.runDrainLoop)
	s.core.StartTask("maintenance", s.runMaintenanceLoop)
}

// ProcessQueue triggers queue drain without waiting for tick.
func (s *Syncer) ProcessQueue() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Sync commits freshly accepted submission bypassing the queue.
//
// Failed commit is enqueued for retry and reported with both queued
// flag and cause of failure.
func (s *Syncer) Sync(ctx context.Context, submission leetcode.Submission) (Result, error) {
	if err := submission.Validate(); err != nil {
		return Result{}, err
	}
	fingerprint := submission.Fingerprint()
	if s.skipDuplicates() && s.core.ProcessedSubmissions.HasFingerprint(fingerprint) {
		return Result{Skipped: true}, nil
	}
	if !s.enterFlight(fingerprint) {
		return Result{Skipped: true}, nil
	}
	defer s.leaveFlight(fingerprint)
	s.beginProcessing()
	defer s.endProcessing()
	commitURL, err := s.processSubmission(ctx, submission)
	if err != nil {
		if queueErr := s.enqueueRetry(ctx, submission, err); queueErr != nil {
			s.core.Logger().Error("Unable to enqueue commit", queueErr)
			return Result{}, err
		}
		return Result{Queued: true}, err
	}
	if err := s.recordProcessed(ctx, fingerprint); err != nil {
		s.core.Logger().Error("Unable to record fingerprint", err)
	}
	return Result{CommitURL: commitURL}, nil
}

// GetStatus returns current sync status.
func (s *Syncer) GetStatus() Status {
	status := Status{
		Configured: s.credentials.HasToken() &&
			s.credentials.GetConfig().Configured(),
	}
	s.mutex.Lock()
	status.Processing = s.processing > 0
	s.mutex.Unlock()
	if commits, err := s.core.Commits.All(); err == nil {
		status.QueueSize = len(commits)
	}
	return status
}

// Client returns authenticated remote repository client with target.
func (s *Syncer) Client(ctx context.Context) (*github.Client, managers.RepoConfig, error) {
	token, err := s.credentials.GetToken(ctx)
	if err != nil {
		return nil, managers.RepoConfig{}, err
	}
	return github.NewClient(s.endpoint, token), s.credentials.GetConfig(), nil
}

// UpsertFile commits single file with explicit message.
func (s *Syncer) UpsertFile(
	ctx context.Context, path, message string, content []byte,
) (github.CommitResult, error) {
	client, config, err := s.Client(ctx)
	if err != nil {
		return github.CommitResult{}, err
	}
	if !config.Configured() {
		return github.CommitResult{}, managers.ErrAuthRequired
	}
	result, err := client.CommitFile(
		ctx, config.Owner, config.Name, path, config.Branch, message, content,
	)
	if err != nil {
		return github.CommitResult{}, s.wrapCommitError(ctx, err)
	}
	return result, nil
}

func (s *Syncer) runDrainLoop(ctx context.Context) {
	ticker := time.NewTicker(s.drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.trigger:
		}
		s.drainQueue(ctx)
	}
}

func (s *Syncer) runMaintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(s.maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.runMaintenance(ctx)
	}
}

func (s *Syncer) runMaintenance(ctx context.Context) {
	s.credentials.PruneChecks()
	if err := s.core.ProcessedSubmissions.Prune(ctx, fingerprintLimit); err != nil {
		s.core.Logger().Error("Unable to prune fingerprints", err)
	}
	if _, err := s.credentials.ForceRefresh(ctx); err != nil &&
		!errors.Is(err, managers.ErrAuthRequired) {
		s.core.Logger().Warn("Stored token validation failed", err)
	}
}

// drainQueue processes all queued commits.
//
// Queue is not drained without valid credentials, re-authentication
// is prompted once until credentials are fixed.
func (s *Syncer) drainQueue(ctx context.Context) {
	if _, err := s.credentials.GetToken(ctx); err != nil {
		if errors.Is(err, managers.ErrAuthRequired) ||
			errors.Is(err, managers.ErrAuthInvalid) {
			s.promptAuth(err)
			return
		}
		s.core.Logger().Error("Unable to validate credentials", err)
		return
	}
	s.resetAuthPrompt()
	s.beginProcessing()
	defer s.endProcessing()
	var skipped []models.Commit
	defer func() {
		for _, commit := range skipped {
			s.requeue(ctx, commit)
		}
	}()
	seen := map[int64]struct{}{}
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		commit, err := s.core.Commits.PopQueued(ctx)
		if err != nil {
			if err != sql.ErrNoRows {
				s.core.Logger().Error("Unable to pop commit", err)
			}
			return
		}
		// Each item gets single attempt per drain cycle. Popped item
		// stays running so the next pop advances to later items.
		if _, ok := seen[commit.ID]; ok {
			skipped = append(skipped, commit)
			continue
		}
		seen[commit.ID] = struct{}{}
		if !first {
			if !sleepContext(ctx, s.itemDelay) {
				s.requeue(ctx, commit)
				return
			}
		}
		first = false
		if done := s.processCommit(ctx, commit, &skipped); !done {
			return
		}
	}
}

// processCommit runs commit protocol for one queued item.
//
// Returns false when drain should stop early.
func (s *Syncer) processCommit(
	ctx context.Context, commit models.Commit, skipped *[]models.Commit,
) bool {
	logger := s.core.Logger().With(logs.Any("commit", commit.RefID()))
	if commit.RetryCount >= maxRetries {
		logger.Warn("Abandoning commit after retry budget")
		if err := s.core.Commits.Delete(ctx, commit.ID); err != nil {
			logger.Error("Unable to delete commit", err)
		}
		return true
	}
	var submission leetcode.Submission
	if err := commit.ScanSubmission(&submission); err != nil {
		logger.Error("Unable to decode submission", err)
		if err := s.core.Commits.Delete(ctx, commit.ID); err != nil {
			logger.Error("Unable to delete commit", err)
		}
		return true
	}
	fingerprint := submission.Fingerprint()
	if s.skipDuplicates() && s.core.ProcessedSubmissions.HasFingerprint(fingerprint) {
		logger.Info("Skipping already processed submission")
		if err := s.core.Commits.Delete(ctx, commit.ID); err != nil {
			logger.Error("Unable to delete commit", err)
		}
		return true
	}
	if !s.enterFlight(fingerprint) {
		*skipped = append(*skipped, commit)
		return true
	}
	defer s.leaveFlight(fingerprint)
	if _, err := s.processSubmission(ctx, submission); err != nil {
		logger.Warn("Commit attempt failed", err)
		commit.Status = models.QueuedCommit
		commit.RetryCount++
		commit.LastError = models.NString(err.Error())
		if err := s.core.Commits.Update(ctx, commit); err != nil {
			logger.Error("Unable to update commit", err)
		}
		// Credential problem stops the whole drain cycle.
		if errors.Is(err, managers.ErrAuthInvalid) ||
			errors.Is(err, managers.ErrAuthRequired) {
			s.promptAuth(err)
			return false
		}
		return true
	}
	logger.Info("Commit succeeded")
	if err := s.core.Commits.Delete(ctx, commit.ID); err != nil {
		logger.Error("Unable to delete commit", err)
	}
	if err := s.recordProcessed(ctx, fingerprint); err != nil {
		logger.Error("Unable to record fingerprint", err)
	}
	return true
}

// processSubmission runs full commit protocol for submission.
func (s *Syncer) processSubmission(
	ctx context.Context, submission leetcode.Submission,
) (string, error) {
	client, config, err := s.Client(ctx)
	if err != nil {
		return "", err
	}
	if !config.Configured() {
		return "", managers.ErrAuthRequired
	}
	plan, err := s.commits.Plan(submission)
	if err != nil {
		return "", err
	}
	commitURL := ""
	for i, file := range plan.Files {
		if i > 0 && !sleepContext(ctx, s.fileDelay) {
			return "", ctx.Err()
		}
		result, err := client.CommitFile(
			ctx, config.Owner, config.Name,
			file.Path, config.Branch, plan.Message, file.Content,
		)
		if err != nil {
			return "", s.wrapCommitError(ctx, err)
		}
		if len(commitURL) == 0 {
			commitURL = result.Commit.HTMLURL
		}
	}
	if err := s.updateRootReadme(ctx, client, config, submission, plan.Dir); err != nil {
		return "", err
	}
	return commitURL, nil
}

// updateRootReadme rebuilds aggregate readme from repository state.
func (s *Syncer) updateRootReadme(
	ctx context.Context, client *github.Client, config managers.RepoConfig,
	submission leetcode.Submission, dir string,
) error {
	entries, err := s.commits.ScanEntries(
		ctx, client, config.Owner, config.Name, config.Branch,
	)
	if err != nil {
		return s.wrapCommitError(ctx, err)
	}
	entries = managers.MergeEntry(entries, s.commits.Entry(submission, dir))
	var existing []byte
	file, err := client.GetFile(
		ctx, config.Owner, config.Name, rootReadmePath, config.Branch,
	)
	if err != nil {
		return s.wrapCommitError(ctx, err)
	}
	if file != nil {
		if existing, err = file.Decode(); err != nil {
			return err
		}
	}
	if !sleepContext(ctx, s.fileDelay) {
		return ctx.Err()
	}
	if _, err := client.CommitFile(
		ctx, config.Owner, config.Name, rootReadmePath, config.Branch,
		"Update README", managers.BuildRootReadme(existing, entries),
	); err != nil {
		return s.wrapCommitError(ctx, err)
	}
	return nil
}

// wrapCommitError maps rejected credentials to invalid auth state.
func (s *Syncer) wrapCommitError(ctx context.Context, err error) error {
	if errors.Is(err, github.ErrUnauthorized) {
		if clearErr := s.credentials.Invalidate(ctx); clearErr != nil {
			s.core.Logger().Error("Unable to clear credentials", clearErr)
		}
		return managers.ErrAuthInvalid
	}
	return err
}

func (s *Syncer) enqueueRetry(
	ctx context.Context, submission leetcode.Submission, cause error,
) error {
	commit := models.Commit{
		Kind:        models.ImmediateCommit,
		Status:      models.QueuedCommit,
		EnqueueTime: time.Now().UnixMilli(),
		LastError:   models.NString(cause.Error()),
	}
	if err := commit.SetSubmission(submission); err != nil {
		return err
	}
	return s.core.Commits.Create(ctx, &commit)
}

// skipDuplicates reports whether fingerprint dedup is enabled.
func (s *Syncer) skipDuplicates() bool {
	setting, err := s.core.Settings.GetByKey(skipDuplicatesKey)
	if err != nil {
		return true
	}
	value, err := strconv.ParseBool(setting.Value)
	if err != nil {
		return true
	}
	return value
}

func (s *Syncer) recordProcessed(ctx context.Context, fingerprint string) error {
	// Repeated push with disabled dedup keeps single fingerprint row.
	if s.core.ProcessedSubmissions.HasFingerprint(fingerprint) {
		return nil
	}
	processed := models.ProcessedSubmission{
		Fingerprint: fingerprint,
		CreateTime:  time.Now().Unix(),
	}
	return s.core.ProcessedSubmissions.Create(ctx, &processed)
}

func (s *Syncer) requeue(ctx context.Context, commit models.Commit) {
	commit.Status = models.QueuedCommit
	if err := s.core.Commits.Update(ctx, commit); err != nil {
		s.core.Logger().Error("Unable to requeue commit", err)
	}
}

func (s *Syncer) enterFlight(fingerprint string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.inFlight[fingerprint]; ok {
		return false
	}
	s.inFlight[fingerprint] = struct{}{}
	return true
}

func (s *Syncer) leaveFlight(fingerprint string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.inFlight, fingerprint)
}

func (s *Syncer) beginProcessing() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.processing++
}

func (s *Syncer) endProcessing() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.processing--
}

// promptAuth reports authentication problem once until it is fixed.
func (s *Syncer) promptAuth(err error) {
	s.mutex.Lock()
	prompted := s.authPrompted
	s.authPrompted = true
	s.mutex.Unlock()
	if !prompted {
		s.core.Logger().Warn("Re-authentication required", err)
	}
}

func (s *Syncer) resetAuthPrompt() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.authPrompted = false
}

func sleepContext(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
