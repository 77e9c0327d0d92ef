package ledger

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kobo-wallet/kobo/internal/identity"
	"github.com/kobo-wallet/kobo/internal/infra"
	"github.com/kobo-wallet/kobo/internal/wallet"
)

// Requires TEST_DATABASE_URL pointing at a disposable database.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	if err := infra.Migrate(ctx, url); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := infra.NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return NewPostgresStore(pool)
}

func seedPostgresWallet(t *testing.T, store *PostgresStore, balance int64) wallet.Wallet {
	t.Helper()
	ctx := context.Background()
	user := identity.User{
		ID:             uuid.NewString(),
		Email:          uuid.NewString() + "@example.com",
		PasswordDigest: "x",
		FirstName:      "Int",
		LastName:       "Test",
		CreatedAt:      time.Now(),
	}
	number, err := wallet.GenerateNumber()
	if err != nil {
		t.Fatalf("number: %v", err)
	}
	w := wallet.Wallet{ID: uuid.NewString(), UserID: user.ID, Number: number, Balance: balance, CreatedAt: time.Now()}
	err = store.InTx(ctx, func(ctx context.Context, r Repos) error {
		if err := r.Users.Create(ctx, user); err != nil {
			return err
		}
		return r.Wallets.Create(ctx, w)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return w
}

func TestPostgresConcurrentDebitsNeverOverdraw(t *testing.T) {
	store := newPostgresStore(t)
	w := seedPostgresWallet(t, store, 1000)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := Atomic(ctx, store, RetryPolicy{MaxRetries: 3, BaseDelay: 5 * time.Millisecond}, nil,
				func(ctx context.Context, r Repos) error {
					locked, err := r.Wallets.LockByNumbers(ctx, w.Number)
					if err != nil {
						return err
					}
					if locked[w.Number].Balance < 600 {
						return wallet.ErrNegativeBalance
					}
					_, err = r.Wallets.ApplyDelta(ctx, w.UserID, -600)
					return err
				})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, wallet.ErrNegativeBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Repos().Wallets.GetByNumber(ctx, w.Number)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if succeeded != 1 || got.Balance != 400 {
		t.Fatalf("expected one success and 400 left, got %d successes and %d", succeeded, got.Balance)
	}
}

func TestPostgresApplyDeltaGuard(t *testing.T) {
	store := newPostgresStore(t)
	w := seedPostgresWallet(t, store, 10)
	ctx := context.Background()

	if _, err := store.Repos().Wallets.ApplyDelta(ctx, w.UserID, -11); !errors.Is(err, wallet.ErrNegativeBalance) {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}
	if _, err := store.Repos().Wallets.ApplyDelta(ctx, uuid.NewString(), 1); !errors.Is(err, wallet.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
