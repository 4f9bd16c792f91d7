package models

import (
	"context"
	"database/sql"
	"testing"
)

func TestSettingStore(t *testing.T) {
	testSetup(t)
	defer testTeardown(t)
	ctx := context.Background()
	store := NewSettingStore(testDB, "leetsync_setting")
	if err := store.Init(ctx); err != nil {
		t.Fatal("Error:", err)
	}
	if _, err := store.GetByKey("repo.branch"); err != sql.ErrNoRows {
		t.Errorf("Expected %v, got %v", sql.ErrNoRows, err)
	}
	if err := store.SetByKey(ctx, "repo.branch", "main"); err != nil {
		t.Fatal("Error:", err)
	}
	setting, err := store.GetByKey("repo.branch")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if setting.Value != "main" {
		t.Errorf("Expected %q, got %q", "main", setting.Value)
	}
	if err := store.SetByKey(ctx, "repo.branch", "master"); err != nil {
		t.Fatal("Error:", err)
	}
	setting, err = store.GetByKey("repo.branch")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if setting.Value != "master" {
		t.Errorf("Expected %q, got %q", "master", setting.Value)
	}
	settings, err := store.All()
	if err != nil {
		t.Fatal("Error:", err)
	}
	if len(settings) != 1 {
		t.Errorf("Expected 1 setting, got %d", len(settings))
	}
	if err := store.DeleteByKey(ctx, "repo.branch"); err != nil {
		t.Fatal("Error:", err)
	}
	if _, err := store.GetByKey("repo.branch"); err != sql.ErrNoRows {
		t.Errorf("Expected %v, got %v", sql.ErrNoRows, err)
	}
	if err := store.DeleteByKey(ctx, "repo.branch"); err != nil {
		t.Fatal("Error:", err)
	}
}
