package managers

import (
	"errors"
	"testing"
)

func TestSecretBox(t *testing.T) {
	box := NewSecretBox("qwerty123")
	sealed, err := box.Seal("ghp_token_value")
	if err != nil {
		t.Fatal("Error:", err)
	}
	value, err := box.Open(sealed)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if value != "ghp_token_value" {
		t.Errorf("Expected %q, got %q", "ghp_token_value", value)
	}
	resealed, err := box.Seal("ghp_token_value")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if sealed == resealed {
		t.Error("Expected distinct sealed values")
	}
}

func TestSecretBoxMismatch(t *testing.T) {
	box := NewSecretBox("qwerty123")
	sealed, err := box.Seal("ghp_token_value")
	if err != nil {
		t.Fatal("Error:", err)
	}
	other := NewSecretBox("changed")
	if _, err := other.Open(sealed); !errors.Is(err, ErrSealedMismatch) {
		t.Fatalf("Expected %v, got %v", ErrSealedMismatch, err)
	}
	for _, invalid := range []string{
		"", "garbage", "v0:abc", "v1:", "v1:!!!", "v1:YWJj",
	} {
		if _, err := box.Open(invalid); !errors.Is(err, ErrSealedMismatch) {
			t.Fatalf("Expected %v for %q, got %v", ErrSealedMismatch, invalid, err)
		}
	}
}
