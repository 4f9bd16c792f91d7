package models

import (
	"context"
	"fmt"
	"testing"
)

func TestProcessedSubmissionStore(t *testing.T) {
	testSetup(t)
	defer testTeardown(t)
	ctx := context.Background()
	store := NewProcessedSubmissionStore(testDB, "leetsync_processed_submission")
	if err := store.Init(ctx); err != nil {
		t.Fatal("Error:", err)
	}
	fingerprint := "two-sum:python3:128:1a2b3c4d"
	if store.HasFingerprint(fingerprint) {
		t.Error("Expected missing fingerprint")
	}
	object := ProcessedSubmission{
		Fingerprint: fingerprint,
		CreateTime:  1000,
	}
	if err := store.Create(ctx, &object); err != nil {
		t.Fatal("Error:", err)
	}
	if !store.HasFingerprint(fingerprint) {
		t.Error("Expected existing fingerprint")
	}
	if count := store.Count(); count != 1 {
		t.Errorf("Expected 1 fingerprint, got %d", count)
	}
	// Reload store from database.
	store = NewProcessedSubmissionStore(testDB, "leetsync_processed_submission")
	if err := store.Init(ctx); err != nil {
		t.Fatal("Error:", err)
	}
	if !store.HasFingerprint(fingerprint) {
		t.Error("Expected existing fingerprint")
	}
}

func TestProcessedSubmissionStorePrune(t *testing.T) {
	testSetup(t)
	defer testTeardown(t)
	ctx := context.Background()
	store := NewProcessedSubmissionStore(testDB, "leetsync_processed_submission")
	if err := store.Init(ctx); err != nil {
		t.Fatal("Error:", err)
	}
	for i := 0; i < 10; i++ {
		object := ProcessedSubmission{
			Fingerprint: fmt.Sprintf("problem-%d:go:100:deadbeef", i),
			CreateTime:  int64(1000 + i),
		}
		if err := store.Create(ctx, &object); err != nil {
			t.Fatal("Error:", err)
		}
	}
	if err := store.Prune(ctx, 4); err != nil {
		t.Fatal("Error:", err)
	}
	if count := store.Count(); count != 4 {
		t.Errorf("Expected 4 fingerprints, got %d", count)
	}
	// Oldest fingerprints should be deleted first.
	if store.HasFingerprint("problem-0:go:100:deadbeef") {
		t.Error("Expected pruned fingerprint")
	}
	if !store.HasFingerprint("problem-9:go:100:deadbeef") {
		t.Error("Expected existing fingerprint")
	}
	if err := store.Prune(ctx, 100); err != nil {
		t.Fatal("Error:", err)
	}
	if count := store.Count(); count != 4 {
		t.Errorf("Expected 4 fingerprints, got %d", count)
	}
}
