package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kobo-wallet/kobo/internal/wallet"
)

// SeedBalance is a test helper that credits a wallet directly, bypassing the
// funds-movement checks.
func SeedBalance(s *MemoryStore, userID string, amount int64) {
	_, _ = s.wallets.ApplyDelta(context.Background(), userID, amount)
}

// SeedWallet is a test helper that creates a wallet with the given number
// and balance.
func SeedWallet(s *MemoryStore, userID string, number, balance int64) wallet.Wallet {
	w := wallet.Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Number:    number,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}
	_ = s.wallets.Create(context.Background(), w)
	return w
}

// FailCommits makes the next n commits fail with err, simulating a crash or
// lost race between the writes and the commit. It returns a restore func.
func FailCommits(s *MemoryStore, n int, err error) func() {
	remaining := n
	s.hookMu.Lock()
	s.beforeCommit = func() error {
		if remaining <= 0 {
			return nil
		}
		remaining--
		return err
	}
	s.hookMu.Unlock()
	return func() {
		s.hookMu.Lock()
		s.beforeCommit = nil
		s.hookMu.Unlock()
	}
}
