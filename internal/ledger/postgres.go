package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kobo-wallet/kobo/internal/identity"
	"github.com/kobo-wallet/kobo/internal/infra"
	"github.com/kobo-wallet/kobo/internal/session"
	"github.com/kobo-wallet/kobo/internal/wallet"
)

// PostgresStore runs units of work as READ COMMITTED transactions. Wallet
// rows are locked explicitly with SELECT ... FOR UPDATE inside them.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func reposFor(db infra.DBTX) Repos {
	return Repos{
		Users:    identity.NewPostgresRepository(db),
		Sessions: session.NewPostgresRepository(db),
		Wallets:  wallet.NewPostgresRepository(db),
	}
}

// Repos returns pool-backed repositories.
func (s *PostgresStore) Repos() Repos { return reposFor(s.db) }

// InTx begins a transaction, runs fn against transaction-bound repositories
// and commits.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, reposFor(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
