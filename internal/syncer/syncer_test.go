package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leetsync/leetsync/internal/config"
	"github.com/leetsync/leetsync/internal/core"
	"github.com/leetsync/leetsync/internal/db"
	"github.com/leetsync/leetsync/internal/github"
	"github.com/leetsync/leetsync/internal/leetcode"
	"github.com/leetsync/leetsync/internal/managers"
	"github.com/leetsync/leetsync/internal/migrations"
	"github.com/leetsync/leetsync/internal/models"
)

// testRepo fakes remote repository API with in-memory file tree.
type testRepo struct {
	mutex     sync.Mutex
	files     map[string][]byte
	token     string
	failPuts  bool
	authPuts  bool
	putsCount int
}

func newTestRepo() *testRepo {
	return &testRepo{files: map[string][]byte{}, token: "good"}
}

func (s *testRepo) get(path string) ([]byte, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	data, ok := s.files[path]
	return data, ok
}

func fileSHA(data []byte) string {
	digest := sha256.Sum256(data)
	return fmt.Sprintf("%x", digest[:8])
}

func (s *testRepo) handler(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if r.Header.Get("Authorization") != "token "+s.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
		return
	}
	if r.URL.Path == "/user" {
		_, _ = w.Write([]byte(`{"login": "octocat"}`))
		return
	}
	prefix := "/repos/octocat/leetcode/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
		return
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)
	switch r.Method {
	case http.MethodGet:
		if data, ok := s.files[path]; ok {
			_ = json.NewEncoder(w).Encode(github.FileContent{
				Path:     path,
				SHA:      fileSHA(data),
				Content:  base64.StdEncoding.EncodeToString(data),
				Encoding: "base64",
			})
			return
		}
		s.listDir(w, path)
	case http.MethodPut:
		if s.authPuts {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
			return
		}
		if s.failPuts {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message": "Server Error"}`))
			return
		}
		var form github.UpdateFileForm
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, err := base64.StdEncoding.DecodeString(form.Content)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if current, ok := s.files[path]; ok {
			if form.SHA != fileSHA(current) {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"message": "SHA mismatch"}`))
				return
			}
			w.WriteHeader(http.StatusOK)
		} else {
			if len(form.SHA) != 0 {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"message": "SHA provided for new file"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
		}
		s.files[path] = data
		s.putsCount++
		_ = json.NewEncoder(w).Encode(github.CommitResult{
			Commit: struct {
				SHA     string `json:"sha"`
				HTMLURL string `json:"html_url"`
			}{
				SHA:     fileSHA(data),
				HTMLURL: "https://github.com/octocat/leetcode/commit/" + fileSHA(data),
			},
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *testRepo) listDir(w http.ResponseWriter, path string) {
	dir := path
	if len(dir) > 0 {
		dir += "/"
	}
	entries := map[string]github.DirEntry{}
	for file := range s.files {
		if !strings.HasPrefix(file, dir) {
			continue
		}
		name, _, nested := strings.Cut(file[len(dir):], "/")
		kind := "file"
		if nested {
			kind = "dir"
		}
		entries[name] = github.DirEntry{Name: name, Path: dir + name, Type: kind}
	}
	if len(entries) == 0 && len(path) > 0 {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
		return
	}
	var names []string
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	var listing []github.DirEntry
	for _, name := range names {
		listing = append(listing, entries[name])
	}
	_ = json.NewEncoder(w).Encode(listing)
}

var testSubmission = leetcode.Submission{
	ID:         "123456789",
	QuestionID: "1",
	Title:      "Two Sum",
	TitleSlug:  "two-sum",
	Difficulty: "Easy",
	Language:   "Python3",
	Code: "class Solution:\n" +
		"    def twoSum(self, nums, target):\n" +
		"        pass",
	Runtime:       "52 ms",
	Memory:        "15.2 MB",
	Timestamp:     "2023-11-14T22:13:20Z",
	Link:          "https://leetcode.com/problems/two-sum/",
	FileExtension: ".py",
}

func testSetup(tb testing.TB, repo *testRepo) (*Syncer, *httptest.Server) {
	cfg := config.Config{
		DB: config.DB{
			Driver:  config.SQLiteDriver,
			Options: config.SQLiteOptions{Path: ":memory:"},
		},
	}
	c, err := core.NewCore(cfg)
	if err != nil {
		tb.Fatal("Error:", err)
	}
	c.SetupAllStores()
	if err := db.ApplyMigrations(
		context.Background(), c.DB, "leetsync", migrations.Schema,
	); err != nil {
		tb.Fatal("Error:", err)
	}
	if err := c.Start(); err != nil {
		tb.Fatal("Error:", err)
	}
	server := httptest.NewServer(http.HandlerFunc(repo.handler))
	credentials := managers.NewCredentialsManager(
		c, managers.NewSecretBox("qwerty123"), server.URL,
	)
	if _, err := credentials.Store(context.Background(), "good", managers.RepoConfig{
		Owner: "octocat", Name: "leetcode", Branch: "main",
	}); err != nil {
		tb.Fatal("Error:", err)
	}
	s := New(c, credentials, managers.NewCommitManager(c), server.URL)
	s.itemDelay = time.Millisecond
	s.fileDelay = time.Millisecond
	return s, server
}

func testTeardown(s *Syncer, server *httptest.Server) {
	server.Close()
	s.core.Stop()
}

func TestSyncerImmediate(t *testing.T) {
	repo := newTestRepo()
	s, server := testSetup(t, repo)
	defer testTeardown(s, server)
	ctx := context.Background()
	result, err := s.Sync(ctx, testSubmission)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if result.Skipped || result.Queued {
		t.Fatalf("Unexpected result: %+v", result)
	}
	if len(result.CommitURL) == 0 {
		t.Error("Expected commit URL")
	}
	if _, ok := repo.get("easy/0001-two-sum/solution.py"); !ok {
		t.Error("Expected solution file")
	}
	if _, ok := repo.get("easy/0001-two-sum/README.md"); !ok {
		t.Error("Expected problem readme")
	}
	readme, ok := repo.get("README.md")
	if !ok {
		t.Fatal("Expected root readme")
	}
	if !strings.Contains(string(readme), "| 1 | 0 | 0 | 1 |") {
		t.Errorf("Unexpected stats: %q", readme)
	}
	if !strings.Contains(string(readme), "[Two Sum](easy/0001-two-sum)") {
		t.Errorf("Expected solution link: %q", readme)
	}
	// Repeated submission is deduplicated.
	result, err = s.Sync(ctx, testSubmission)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if !result.Skipped {
		t.Fatalf("Expected skipped result: %+v", result)
	}
	if !s.core.ProcessedSubmissions.HasFingerprint(testSubmission.Fingerprint()) {
		t.Error("Expected recorded fingerprint")
	}
}

func TestSyncerRetryBound(t *testing.T) {
	repo := newTestRepo()
	repo.failPuts = true
	s, server := testSetup(t, repo)
	defer testTeardown(s, server)
	ctx := context.Background()
	result, err := s.Sync(ctx, testSubmission)
	if err == nil {
		t.Fatal("Expected error")
	}
	if !result.Queued {
		t.Fatalf("Expected queued result: %+v", result)
	}
	commits, err := s.core.Commits.All()
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(commits) != 1 {
		t.Fatalf("Expected 1 queued commit, got %d", len(commits))
	}
	if commits[0].Kind != models.ImmediateCommit {
		t.Errorf("Expected immediate commit, got %v", commits[0].Kind)
	}
	for i := int64(1); i <= maxRetries; i++ {
		s.drainQueue(ctx)
		commit, err := s.core.Commits.Get(commits[0].ID)
		if err != nil {
			t.Fatal("Error:", err)
		}
		if commit.RetryCount != i {
			t.Fatalf("Expected retry count %d, got %d", i, commit.RetryCount)
		}
		if len(commit.LastError) == 0 {
			t.Error("Expected last error")
		}
	}
	// Commit is abandoned after retry budget.
	s.drainQueue(ctx)
	commits, err = s.core.Commits.All()
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(commits) != 0 {
		t.Fatalf("Expected empty queue, got %d commits", len(commits))
	}
	if s.core.ProcessedSubmissions.HasFingerprint(testSubmission.Fingerprint()) {
		t.Error("Expected no recorded fingerprint")
	}
}

func TestSyncerDrainAttemptsAll(t *testing.T) {
	repo := newTestRepo()
	repo.failPuts = true
	s, server := testSetup(t, repo)
	defer testTeardown(s, server)
	ctx := context.Background()
	second := testSubmission
	second.ID = "123456790"
	second.QuestionID = "2"
	second.Title = "Add Two Numbers"
	second.TitleSlug = "add-two-numbers"
	second.Difficulty = "Medium"
	second.Code = "class Solution:\n" +
		"    def addTwoNumbers(self, l1, l2):\n" +
		"        pass"
	if _, err := s.Sync(ctx, testSubmission); err == nil {
		t.Fatal("Expected error")
	}
	if _, err := s.Sync(ctx, second); err == nil {
		t.Fatal("Expected error")
	}
	// Single drain cycle attempts every queued item once.
	s.drainQueue(ctx)
	commits, err := s.core.Commits.All()
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(commits) != 2 {
		t.Fatalf("Expected 2 queued commits, got %d", len(commits))
	}
	for _, commit := range commits {
		if commit.RetryCount != 1 {
			t.Errorf(
				"Expected retry count 1 for %s, got %d",
				commit.RefID(), commit.RetryCount,
			)
		}
		if commit.Status != models.QueuedCommit {
			t.Errorf("Expected queued status, got %v", commit.Status)
		}
	}
}

func TestSyncerSkipDuplicatesOff(t *testing.T) {
	repo := newTestRepo()
	s, server := testSetup(t, repo)
	defer testTeardown(s, server)
	ctx := context.Background()
	if _, err := s.Sync(ctx, testSubmission); err != nil {
		t.Fatal("Error:", err)
	}
	result, err := s.Sync(ctx, testSubmission)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if !result.Skipped {
		t.Fatalf("Expected skipped result: %+v", result)
	}
	// Disabled dedup commits processed submission again.
	if err := s.core.Settings.SetByKey(ctx, skipDuplicatesKey, "false"); err != nil {
		t.Fatal("Error:", err)
	}
	result, err = s.Sync(ctx, testSubmission)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if result.Skipped {
		t.Fatalf("Unexpected skipped result: %+v", result)
	}
	if len(result.CommitURL) == 0 {
		t.Error("Expected commit URL")
	}
}

func TestSyncerDrainSuccess(t *testing.T) {
	repo := newTestRepo()
	repo.failPuts = true
	s, server := testSetup(t, repo)
	defer testTeardown(s, server)
	ctx := context.Background()
	if _, err := s.Sync(ctx, testSubmission); err == nil {
		t.Fatal("Expected error")
	}
	repo.mutex.Lock()
	repo.failPuts = false
	repo.mutex.Unlock()
	s.drainQueue(ctx)
	commits, err := s.core.Commits.All()
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(commits) != 0 {
		t.Fatalf("Expected empty queue, got %d commits", len(commits))
	}
	if _, ok := repo.get("easy/0001-two-sum/solution.py"); !ok {
		t.Error("Expected solution file")
	}
	if !s.core.ProcessedSubmissions.HasFingerprint(testSubmission.Fingerprint()) {
		t.Error("Expected recorded fingerprint")
	}
}

func TestSyncerAuthInvalid(t *testing.T) {
	repo := newTestRepo()
	repo.authPuts = true
	s, server := testSetup(t, repo)
	defer testTeardown(s, server)
	ctx := context.Background()
	result, err := s.Sync(ctx, testSubmission)
	if !errors.Is(err, managers.ErrAuthInvalid) {
		t.Fatalf("Expected %v, got %v", managers.ErrAuthInvalid, err)
	}
	if !result.Queued {
		t.Fatalf("Expected queued result: %+v", result)
	}
	// Rejected credentials are cleared.
	if s.credentials.HasToken() {
		t.Error("Expected cleared token")
	}
	// Next drain prompts re-authentication and keeps the queue.
	s.drainQueue(ctx)
	s.mutex.Lock()
	prompted := s.authPrompted
	s.mutex.Unlock()
	if !prompted {
		t.Error("Expected re-authentication prompt")
	}
	commits, err := s.core.Commits.All()
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(commits) != 1 {
		t.Fatalf("Expected 1 queued commit, got %d", len(commits))
	}
	if commits[0].RetryCount != 0 {
		t.Errorf("Expected retry count 0, got %d", commits[0].RetryCount)
	}
}

func TestSyncerUpsertFile(t *testing.T) {
	repo := newTestRepo()
	s, server := testSetup(t, repo)
	defer testTeardown(s, server)
	ctx := context.Background()
	result, err := s.UpsertFile(ctx, "notes.md", "Add notes", []byte("v1\n"))
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(result.Commit.HTMLURL) == 0 {
		t.Error("Expected commit URL")
	}
	// Update reuses SHA of existing file.
	if _, err := s.UpsertFile(ctx, "notes.md", "Update notes", []byte("v2\n")); err != nil {
		t.Fatal("Error:", err)
	}
	data, ok := repo.get("notes.md")
	if !ok {
		t.Fatal("Expected file")
	}
	if string(data) != "v2\n" {
		t.Errorf("Expected %q, got %q", "v2\n", data)
	}
}

func TestSyncerStatus(t *testing.T) {
	repo := newTestRepo()
	repo.failPuts = true
	s, server := testSetup(t, repo)
	defer testTeardown(s, server)
	ctx := context.Background()
	status := s.GetStatus()
	if !status.Configured {
		t.Error("Expected configured status")
	}
	if status.Processing || status.QueueSize != 0 {
		t.Errorf("Unexpected status: %+v", status)
	}
	if _, err := s.Sync(ctx, testSubmission); err == nil {
		t.Fatal("Expected error")
	}
	status = s.GetStatus()
	if status.QueueSize != 1 {
		t.Errorf("Expected queue size 1, got %d", status.QueueSize)
	}
}
