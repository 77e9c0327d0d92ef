package ledger

import (
	"context"
	"sync"

	"github.com/kobo-wallet/kobo/internal/identity"
	"github.com/kobo-wallet/kobo/internal/session"
	"github.com/kobo-wallet/kobo/internal/wallet"
)

// MemoryStore backs development and tests. Transactions are serialized by a
// single lock and rolled back by restoring snapshots of every repository.
// Reads through Repos() outside InTx may observe a transaction in flight, and
// a rollback also discards writes made outside InTx while it ran.
type MemoryStore struct {
	txMu sync.Mutex

	users    *identity.MemoryRepository
	sessions *session.MemoryRepository
	wallets  *wallet.MemoryRepository

	hookMu       sync.Mutex
	beforeCommit func() error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    identity.NewMemoryRepository(),
		sessions: session.NewMemoryRepository(),
		wallets:  wallet.NewMemoryRepository(),
	}
}

// Repos returns the shared in-memory repositories.
func (s *MemoryStore) Repos() Repos {
	return Repos{Users: s.users, Sessions: s.sessions, Wallets: s.wallets}
}

// InTx runs fn while holding the store lock and restores every repository
// if fn or the commit hook fails.
func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	restores := []func(){s.users.Snapshot(), s.sessions.Snapshot(), s.wallets.Snapshot()}
	rollback := func() {
		for _, restore := range restores {
			restore()
		}
	}

	if err := fn(ctx, s.Repos()); err != nil {
		rollback()
		return err
	}
	if err := s.commitHook(); err != nil {
		rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) commitHook() error {
	s.hookMu.Lock()
	hook := s.beforeCommit
	s.hookMu.Unlock()
	if hook == nil {
		return nil
	}
	return hook()
}
