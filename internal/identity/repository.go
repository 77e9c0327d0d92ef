package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kobo-wallet/kobo/internal/infra"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPINAlreadySet is returned when a PIN is provisioned twice.
	ErrPINAlreadySet = errors.New("account pin already set")
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	MarkVerified(ctx context.Context, id string) error
	SetPIN(ctx context.Context, id, digest string) error
	UpdatePassword(ctx context.Context, id, digest string) error
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db infra.DBTX
}

// NewPostgresRepository builds a Postgres-backed identity repository. db may
// be the pool or an open transaction.
func NewPostgresRepository(db infra.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, password_digest, first_name, last_name, role, COALESCE(account_pin, ''), is_verified, created_at, updated_at`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	role := user.Role
	if role == "" {
		role = RoleUser
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, email, password_digest, first_name, last_name, role, is_verified, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		userID, NormalizeEmail(user.Email), user.PasswordDigest, user.FirstName, user.LastName, string(role), user.Verified, user.CreatedAt.UTC())
	if _, ok := infra.UniqueViolation(err); ok {
		return ErrEmailTaken
	}
	return err
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// FindByEmail fetches a user by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email)))
}

// MarkVerified flips the verification flag.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	return r.update(ctx, `UPDATE users SET is_verified = TRUE, updated_at = now() WHERE id = $1`, id)
}

// SetPIN stores the PIN digest only if no PIN exists yet.
func (r *PostgresRepository) SetPIN(ctx context.Context, id, digest string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET account_pin = $1, updated_at = now()
        WHERE id = $2 AND account_pin IS NULL`, digest, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrPINAlreadySet
	}
	return nil
}

// UpdatePassword replaces the password digest.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, digest string) error {
	return r.update(ctx, `UPDATE users SET password_digest = $2, updated_at = now() WHERE id = $1`, id, digest)
}

func (r *PostgresRepository) update(ctx context.Context, query, id string, args ...any) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (User, error) {
	var (
		id   uuid.UUID
		role string
		user User
	)
	err := row.Scan(&id, &user.Email, &user.PasswordDigest, &user.FirstName, &user.LastName,
		&role, &user.PINDigest, &user.Verified, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.ID = id.String()
	user.Role = Role(role)
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}
