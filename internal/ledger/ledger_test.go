package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kobo-wallet/kobo/internal/apperr"
	"github.com/kobo-wallet/kobo/internal/metrics"
	"github.com/kobo-wallet/kobo/internal/wallet"
)

var fastRetry = RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, Timeout: time.Second}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	owner := uuid.NewString()
	SeedWallet(store, owner, 1000000001, 500)

	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, r Repos) error {
		if _, err := r.Wallets.ApplyDelta(ctx, owner, -200); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	w, _ := store.Repos().Wallets.GetByOwner(ctx, owner)
	if w.Balance != 500 {
		t.Fatalf("expected rollback to 500, got %d", w.Balance)
	}
}

func TestAtomicRetriesConflicts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	owner := uuid.NewString()
	SeedWallet(store, owner, 1000000001, 0)
	defer FailCommits(store, 2, ErrTxConflict)()

	attempts := 0
	err := Atomic(ctx, store, fastRetry, metrics.New(), func(ctx context.Context, r Repos) error {
		attempts++
		_, err := r.Wallets.ApplyDelta(ctx, owner, 100)
		return err
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	w, _ := store.Repos().Wallets.GetByOwner(ctx, owner)
	if w.Balance != 100 {
		t.Fatalf("delta applied %d times", w.Balance/100)
	}
}

func TestAtomicExhaustionIsUnavailable(t *testing.T) {
	store := NewMemoryStore()
	defer FailCommits(store, 10, &pgconn.PgError{Code: "40001"})()

	err := Atomic(context.Background(), store, fastRetry, nil, func(context.Context, Repos) error { return nil })
	if !apperr.Is(err, apperr.KindServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestAtomicDoesNotRetryDomainErrors(t *testing.T) {
	store := NewMemoryStore()
	attempts := 0
	err := Atomic(context.Background(), store, fastRetry, nil, func(context.Context, Repos) error {
		attempts++
		return wallet.ErrNegativeBalance
	})
	if !errors.Is(err, wallet.ErrNegativeBalance) || attempts != 1 {
		t.Fatalf("expected single attempt with domain error, got %d %v", attempts, err)
	}
}

func TestAtomicTimeoutRollsBack(t *testing.T) {
	store := NewMemoryStore()
	owner := uuid.NewString()
	SeedWallet(store, owner, 1000000001, 1000)

	policy := RetryPolicy{Timeout: 20 * time.Millisecond}
	err := Atomic(context.Background(), store, policy, nil, func(ctx context.Context, r Repos) error {
		if _, err := r.Wallets.ApplyDelta(ctx, owner, -1000); err != nil {
			return err
		}
		<-ctx.Done()
		return fmt.Errorf("waiting for lock: %w", ctx.Err())
	})
	if !apperr.Is(err, apperr.KindServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable on timeout, got %v", err)
	}
	w, _ := store.Repos().Wallets.GetByOwner(context.Background(), owner)
	if w.Balance != 1000 {
		t.Fatalf("timed out unit left balance at %d", w.Balance)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrTxConflict, true},
		{&pgconn.PgError{Code: "40001"}, true},
		{fmt.Errorf("x: %w", &pgconn.PgError{Code: "40P01"}), true},
		{&pgconn.PgError{Code: "23505"}, false},
		{errors.New("other"), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
