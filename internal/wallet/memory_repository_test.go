package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateNumberIsTenDigits(t *testing.T) {
	for i := 0; i < 100; i++ {
		n, err := GenerateNumber()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if n < 1_000_000_000 || n > 9_999_999_999 {
			t.Fatalf("wallet number %d is not ten digits", n)
		}
	}
}

func TestMemoryRepositoryCreateConstraints(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	owner := uuid.NewString()

	if err := repo.Create(ctx, Wallet{ID: uuid.NewString(), UserID: owner, Number: 1000000001}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, Wallet{ID: uuid.NewString(), UserID: owner, Number: 1000000002}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if err := repo.Create(ctx, Wallet{ID: uuid.NewString(), UserID: uuid.NewString(), Number: 1000000001}); !errors.Is(err, ErrNumberTaken) {
		t.Fatalf("expected ErrNumberTaken, got %v", err)
	}
}

func TestMemoryRepositoryApplyDeltaGuardsBalance(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	owner := uuid.NewString()
	if err := repo.Create(ctx, Wallet{ID: uuid.NewString(), UserID: owner, Number: 1000000001}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.ApplyDelta(ctx, owner, 1000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := repo.ApplyDelta(ctx, owner, -1001); !errors.Is(err, ErrNegativeBalance) {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}
	if _, err := repo.ApplyDelta(ctx, uuid.NewString(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.ApplyDelta(ctx, owner, -150)
		}()
	}
	wg.Wait()

	w, _ := repo.GetByOwner(ctx, owner)
	if w.Balance != 100 {
		t.Fatalf("expected 100 left after six debits, got %d", w.Balance)
	}
}

func TestMemoryRepositoryLockByNumbersSkipsMissing(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, Wallet{ID: uuid.NewString(), UserID: uuid.NewString(), Number: 1000000001}); err != nil {
		t.Fatalf("create: %v", err)
	}
	locked, err := repo.LockByNumbers(ctx, 1000000001, 1000000002)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, ok := locked[1000000001]; !ok || len(locked) != 1 {
		t.Fatalf("unexpected locked set %v", locked)
	}
}
