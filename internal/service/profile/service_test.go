package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/teambase/teambase/internal/domain/profile"
	"github.com/teambase/teambase/internal/storage/memory"
)

func strPtr(s string) *string { return &s }

func TestUpsertCreatesThenPatches(t *testing.T) {
	svc := NewService(memory.New(), nil)

	created, err := svc.Upsert(context.Background(), "u1", UpdateInput{
		Username: strPtr("Alice"),
		FullName: strPtr(" Alice Liddell "),
	})
	if err != nil {
		t.Fatalf("Upsert create: %v", err)
	}
	if created.Username != "alice" {
		t.Errorf("username = %q, not lowercased", created.Username)
	}
	if created.FullName != "Alice Liddell" {
		t.Errorf("fullName = %q, not trimmed", created.FullName)
	}

	updated, err := svc.Upsert(context.Background(), "u1", UpdateInput{
		Website: strPtr("https://alice.example"),
	})
	if err != nil {
		t.Fatalf("Upsert patch: %v", err)
	}
	if updated.Username != "alice" {
		t.Errorf("patch clobbered username: %q", updated.Username)
	}
	if updated.Website != "https://alice.example" {
		t.Errorf("website = %q", updated.Website)
	}
}

func TestUpsertRejectsBadUsernames(t *testing.T) {
	svc := NewService(memory.New(), nil)

	for _, bad := range []string{"ab", "has space", "rué", "semi;colon"} {
		if _, err := svc.Upsert(context.Background(), "u1", UpdateInput{Username: strPtr(bad)}); err == nil {
			t.Errorf("username %q accepted", bad)
		}
	}
}

func TestUsernameUniquenessAcrossUsers(t *testing.T) {
	svc := NewService(memory.New(), nil)

	if _, err := svc.Upsert(context.Background(), "u1", UpdateInput{Username: strPtr("alice")}); err != nil {
		t.Fatalf("Upsert u1: %v", err)
	}
	if _, err := svc.Upsert(context.Background(), "u2", UpdateInput{Username: strPtr("alice")}); !errors.Is(err, profile.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestIsUsernameAvailable(t *testing.T) {
	svc := NewService(memory.New(), nil)
	if _, err := svc.Upsert(context.Background(), "u1", UpdateInput{Username: strPtr("alice")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	free, err := svc.IsUsernameAvailable(context.Background(), "bob")
	if err != nil || !free {
		t.Errorf("IsUsernameAvailable(bob) = %v, %v; want true", free, err)
	}
	taken, err := svc.IsUsernameAvailable(context.Background(), "ALICE")
	if err != nil || taken {
		t.Errorf("IsUsernameAvailable(ALICE) = %v, %v; want false", taken, err)
	}
}

func TestGetByUsernameEmptyIsNotFound(t *testing.T) {
	svc := NewService(memory.New(), nil)
	if _, err := svc.GetByUsername(context.Background(), "  "); !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMissingProfile(t *testing.T) {
	svc := NewService(memory.New(), nil)
	if err := svc.Delete(context.Background(), "ghost"); !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
