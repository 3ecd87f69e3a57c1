package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devpetry/vipi-matrizes/internal/crypto"
	"github.com/devpetry/vipi-matrizes/internal/model"
)

var (
	// ErrRecoveryTokenInvalid covers both an unknown and an expired token.
	// Callers must not distinguish the two cases.
	ErrRecoveryTokenInvalid = errors.New("recovery token invalid or expired")

	// ErrPasswordReuse is returned when the new password matches the current one.
	ErrPasswordReuse = errors.New("new password equals current password")
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, recovery_token_hash, recovery_token_expires_at, created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.RecoveryTokenHash,
		&user.RecoveryTokenExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	return user, err
}

// GetUserByEmail returns the single live user for an email, or pgx.ErrNoRows.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`, userID)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

type UserUpdate struct {
	Name         *string
	Email        *string
	Role         *model.Role
	PasswordHash *string
}

func (s *Store) UpdateUser(ctx context.Context, userID string, update UserUpdate) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET name = COALESCE($1, name),
		    email = COALESCE($2, email),
		    role = COALESCE($3, role),
		    password_hash = COALESCE($4, password_hash),
		    updated_at = NOW()
		WHERE id = $5 AND deleted_at IS NULL
		RETURNING `+userColumns+`
	`, update.Name, update.Email, update.Role, update.PasswordHash, userID)
	return scanUser(row)
}

// SoftDeleteUser marks the account deleted. Returns false when no live row
// matched.
func (s *Store) SoftDeleteUser(ctx context.Context, userID string, deletedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET deleted_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`, deletedAt, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetRecoveryToken stores the token digest and expiry on the user record,
// overwriting any previously issued, unused token.
func (s *Store) SetRecoveryToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET recovery_token_hash = $1, recovery_token_expires_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`, tokenHash, expiresAt, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ResetPasswordByToken redeems a recovery token: it locks the matching live
// user row, rejects reuse of the current password, then writes the new hash
// and clears both recovery fields in the same transaction. The conditional
// UPDATE makes redemption single-use: when two redemptions race, the loser
// re-evaluates the lock predicate after the winner commits, finds no matching
// row, and gets ErrRecoveryTokenInvalid.
func (s *Store) ResetPasswordByToken(ctx context.Context, tokenHash, newPassword string, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var userID, currentHash string
	err = tx.QueryRow(ctx, `
		SELECT id, password_hash
		FROM users
		WHERE recovery_token_hash = $1
		  AND recovery_token_expires_at > $2
		  AND deleted_at IS NULL
		FOR UPDATE
	`, tokenHash, now).Scan(&userID, &currentHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRecoveryTokenInvalid
	}
	if err != nil {
		return err
	}

	if crypto.CheckPassword(currentHash, newPassword) == nil {
		return ErrPasswordReuse
	}

	newHash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET password_hash = $1,
		    recovery_token_hash = NULL,
		    recovery_token_expires_at = NULL,
		    updated_at = $2
		WHERE id = $3 AND recovery_token_hash = $4
	`, newHash, now, userID, tokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecoveryTokenInvalid
	}

	return tx.Commit(ctx)
}
