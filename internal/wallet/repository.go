package wallet

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kobo-wallet/kobo/internal/infra"
)

var (
	// ErrNotFound is returned when no wallet matches the lookup.
	ErrNotFound = errors.New("wallet not found")
	// ErrExists is returned when the owner already has a wallet.
	ErrExists = errors.New("wallet already exists")
	// ErrNumberTaken is returned when a generated wallet number collides.
	ErrNumberTaken = errors.New("wallet number taken")
	// ErrNegativeBalance is returned when a delta would overdraw the wallet.
	ErrNegativeBalance = errors.New("balance would become negative")
)

// Repository persists wallets. LockByNumbers and ApplyDelta are only
// meaningful inside a ledger transaction.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	GetByNumber(ctx context.Context, number int64) (Wallet, error)
	GetByOwner(ctx context.Context, userID string) (Wallet, error)
	// LockByNumbers row-locks the wallets in ascending number order and
	// returns those that exist.
	LockByNumbers(ctx context.Context, numbers ...int64) (map[int64]Wallet, error)
	// ApplyDelta adds delta to the owner's balance in one statement and fails
	// with ErrNegativeBalance instead of going below zero.
	ApplyDelta(ctx context.Context, userID string, delta int64) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, user_id, wallet_number, wallet_balance, created_at, updated_at`

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return fmt.Errorf("parse wallet id: %w", err)
	}
	userID, err := uuid.Parse(w.UserID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, user_id, wallet_number, wallet_balance, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)`, walletID, userID, w.Number, w.Balance, w.CreatedAt.UTC())
	if constraint, ok := infra.UniqueViolation(err); ok {
		if constraint == "wallets_wallet_number_key" {
			return ErrNumberTaken
		}
		return ErrExists
	}
	return err
}

// GetByNumber fetches a wallet by its public number.
func (r *PostgresRepository) GetByNumber(ctx context.Context, number int64) (Wallet, error) {
	return scanWallet(r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE wallet_number = $1`, number))
}

// GetByOwner fetches the wallet owned by userID.
func (r *PostgresRepository) GetByOwner(ctx context.Context, userID string) (Wallet, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	return scanWallet(r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, uid))
}

// LockByNumbers takes FOR UPDATE locks in wallet_number order so that two
// transfers crossing the same pair cannot deadlock.
func (r *PostgresRepository) LockByNumbers(ctx context.Context, numbers ...int64) (map[int64]Wallet, error) {
	sorted := slices.Clone(numbers)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	rows, err := r.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE wallet_number = ANY($1) ORDER BY wallet_number FOR UPDATE`, sorted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locked := make(map[int64]Wallet, len(sorted))
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		locked[w.Number] = w
	}
	return locked, rows.Err()
}

// ApplyDelta performs a guarded read-modify-write in a single UPDATE.
func (r *PostgresRepository) ApplyDelta(ctx context.Context, userID string, delta int64) (Wallet, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	w, err := scanWallet(r.db.QueryRow(ctx, `UPDATE wallets
        SET wallet_balance = wallet_balance + $2, updated_at = now()
        WHERE user_id = $1 AND wallet_balance + $2 >= 0
        RETURNING `+walletColumns, uid, delta))
	if !errors.Is(err, ErrNotFound) {
		return w, err
	}
	// Distinguish a missing wallet from a rejected debit.
	if _, err := r.GetByOwner(ctx, userID); err != nil {
		return Wallet{}, err
	}
	return Wallet{}, ErrNegativeBalance
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		id, owner uuid.UUID
		w         Wallet
	)
	err := row.Scan(&id, &owner, &w.Number, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrNotFound
	}
	if err != nil {
		return Wallet{}, err
	}
	w.ID = id.String()
	w.UserID = owner.String()
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}
