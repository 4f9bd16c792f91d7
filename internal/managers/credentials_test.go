package managers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testGitHubServer(hits *int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/user" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			atomic.AddInt64(hits, 1)
			if r.Header.Get("Authorization") != "token good" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"login": "octocat"}`))
		},
	))
}

func TestCredentialsManager(t *testing.T) {
	c := testSetup(t)
	defer testTeardown(c)
	var hits int64
	server := testGitHubServer(&hits)
	defer server.Close()
	box := NewSecretBox("qwerty123")
	manager := NewCredentialsManager(c, box, server.URL)
	ctx := context.Background()
	if _, err := manager.GetToken(ctx); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("Expected %v, got %v", ErrAuthRequired, err)
	}
	login, err := manager.Store(ctx, "good", RepoConfig{
		Owner: "octocat", Name: "leetcode",
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	if login != "octocat" {
		t.Errorf("Expected %q, got %q", "octocat", login)
	}
	for i := 0; i < 5; i++ {
		token, err := manager.GetToken(ctx)
		if err != nil {
			t.Fatal("Error:", err)
		}
		if token != "good" {
			t.Errorf("Expected %q, got %q", "good", token)
		}
	}
	// Cached validation bounds remote calls.
	if v := atomic.LoadInt64(&hits); v != 1 {
		t.Fatalf("Expected 1 validation, got %d", v)
	}
	if _, err := manager.ForceRefresh(ctx); err != nil {
		t.Fatal("Error:", err)
	}
	if v := atomic.LoadInt64(&hits); v != 2 {
		t.Fatalf("Expected 2 validations, got %d", v)
	}
	config := manager.GetConfig()
	if config.Owner != "octocat" || config.Name != "leetcode" {
		t.Errorf("Unexpected config: %+v", config)
	}
	if config.Branch != "main" {
		t.Errorf("Expected %q, got %q", "main", config.Branch)
	}
	if !config.Configured() {
		t.Error("Expected configured repository")
	}
}

func TestCredentialsManagerRestart(t *testing.T) {
	c := testSetup(t)
	defer testTeardown(c)
	var hits int64
	server := testGitHubServer(&hits)
	defer server.Close()
	box := NewSecretBox("qwerty123")
	manager := NewCredentialsManager(c, box, server.URL)
	ctx := context.Background()
	if _, err := manager.Store(ctx, "good", RepoConfig{
		Owner: "octocat", Name: "leetcode",
	}); err != nil {
		t.Fatal("Error:", err)
	}
	// Durable tier survives manager restart.
	restarted := NewCredentialsManager(c, box, server.URL)
	token, err := restarted.GetToken(ctx)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if token != "good" {
		t.Errorf("Expected %q, got %q", "good", token)
	}
	if !restarted.HasToken() {
		t.Error("Expected stored token")
	}
}

func TestCredentialsManagerForceRefreshDurable(t *testing.T) {
	c := testSetup(t)
	defer testTeardown(c)
	var hits int64
	server := testGitHubServer(&hits)
	defer server.Close()
	box := NewSecretBox("qwerty123")
	manager := NewCredentialsManager(c, box, server.URL)
	ctx := context.Background()
	if _, err := manager.Store(ctx, "good", RepoConfig{
		Owner: "octocat", Name: "leetcode",
	}); err != nil {
		t.Fatal("Error:", err)
	}
	// Refresh drops memory tier and re-reads durable record.
	if err := c.Settings.DeleteByKey(ctx, secureTokenKey); err != nil {
		t.Fatal("Error:", err)
	}
	if _, err := manager.ForceRefresh(ctx); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("Expected %v, got %v", ErrAuthRequired, err)
	}
}

func TestCredentialsManagerInvalid(t *testing.T) {
	c := testSetup(t)
	defer testTeardown(c)
	var hits int64
	server := testGitHubServer(&hits)
	defer server.Close()
	box := NewSecretBox("qwerty123")
	manager := NewCredentialsManager(c, box, server.URL)
	ctx := context.Background()
	if _, err := manager.Store(ctx, "revoked", RepoConfig{
		Owner: "octocat", Name: "leetcode",
	}); !errors.Is(err, ErrAuthInvalid) {
		t.Fatalf("Expected %v, got %v", ErrAuthInvalid, err)
	}
	if manager.HasToken() {
		t.Error("Expected no stored token")
	}
}

func TestCredentialsManagerCorruption(t *testing.T) {
	c := testSetup(t)
	defer testTeardown(c)
	var hits int64
	server := testGitHubServer(&hits)
	defer server.Close()
	box := NewSecretBox("qwerty123")
	manager := NewCredentialsManager(c, box, server.URL)
	ctx := context.Background()
	if _, err := manager.Store(ctx, "good", RepoConfig{
		Owner: "octocat", Name: "leetcode",
	}); err != nil {
		t.Fatal("Error:", err)
	}
	// Passphrase change makes durable record unreadable.
	changed := NewCredentialsManager(c, NewSecretBox("changed"), server.URL)
	if _, err := changed.GetToken(ctx); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("Expected %v, got %v", ErrAuthRequired, err)
	}
	if changed.HasToken() {
		t.Error("Expected no stored token")
	}
	// Recovery drops only secure settings.
	if config := changed.GetConfig(); !config.Configured() {
		t.Errorf("Expected configured repository, got %+v", config)
	}
}

func TestCredentialsManagerClearAll(t *testing.T) {
	c := testSetup(t)
	defer testTeardown(c)
	var hits int64
	server := testGitHubServer(&hits)
	defer server.Close()
	box := NewSecretBox("qwerty123")
	manager := NewCredentialsManager(c, box, server.URL)
	ctx := context.Background()
	if _, err := manager.Store(ctx, "good", RepoConfig{
		Owner: "octocat", Name: "leetcode",
	}); err != nil {
		t.Fatal("Error:", err)
	}
	if err := manager.ClearAll(ctx); err != nil {
		t.Fatal("Error:", err)
	}
	if manager.HasToken() {
		t.Error("Expected no stored token")
	}
	if config := manager.GetConfig(); config.Configured() {
		t.Errorf("Expected empty config, got %+v", config)
	}
	manager.PruneChecks()
}
