package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newUser(email string) User {
	return User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordDigest: "digest",
		FirstName:      "Ada",
		LastName:       "Obi",
		CreatedAt:      time.Now().UTC(),
	}
}

func TestMemoryRepositoryEmailUniqueness(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, newUser("A@X.com ")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, newUser("a@x.com")); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	user, err := repo.FindByEmail(ctx, "a@X.COM")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if user.Verified || user.Role != RoleUser {
		t.Fatalf("unexpected new user state %+v", user)
	}
}

func TestMemoryRepositoryPINIsOneTime(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	user := newUser("pin@x.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.SetPIN(ctx, user.ID, "first"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if err := repo.SetPIN(ctx, user.ID, "second"); !errors.Is(err, ErrPINAlreadySet) {
		t.Fatalf("expected ErrPINAlreadySet, got %v", err)
	}
	got, _ := repo.FindByID(ctx, user.ID)
	if got.PINDigest != "first" {
		t.Fatalf("pin overwritten: %q", got.PINDigest)
	}
	if err := repo.SetPIN(ctx, uuid.NewString(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepositorySnapshotRestores(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	user := newUser("snap@x.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	restore := repo.Snapshot()
	if err := repo.MarkVerified(ctx, user.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}
	restore()

	got, _ := repo.FindByID(ctx, user.ID)
	if got.Verified {
		t.Fatal("snapshot restore did not roll back verification")
	}
}

func TestFullName(t *testing.T) {
	if got := (User{FirstName: "Ada", LastName: "Obi"}).FullName(); got != "Ada Obi" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := (User{LastName: "Obi"}).FullName(); got != "Obi" {
		t.Fatalf("unexpected name %q", got)
	}
}
