package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stashly/stashly-api/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the persistence boundary for account credentials. Accounts are
// the unit of concurrency control: the failure-counter writes are single
// UPDATE statements so parallel attempts against one account serialize on the
// row and never under-count.
type AuthRepo interface {
	// GetUserByEmail retrieves the credential view of an account.
	// Returns types.ErrNotFound if no account has that email.
	GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error)

	// GetUserByID retrieves the credential view by primary key.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error)

	// CreateUser persists a new account with a zeroed failure counter and
	// returns its assigned id. Unique violations map to types.ErrConflict.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*types.UserAuth, error)

	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)

	// RecordLoginFailure bumps the failure counter atomically in SQL
	// (read-modify-write never happens in the application).
	RecordLoginFailure(ctx context.Context, userID uuid.UUID, failedAt time.Time) error

	// ClearLoginFailures resets the counter, on successful login or when the
	// lockout window has elapsed.
	ClearLoginFailures(ctx context.Context, userID uuid.UUID) error

	// UpdatePasswordHash swaps the credential digest after a verified reset.
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, newHash string) error
}

// PGXQuerier is the subset of pgxpool.Pool the repository uses; satisfied by
// pgxmock in tests.
type PGXQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	db     PGXQuerier
}

func NewPostgresAuthRepo(db PGXQuerier, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		db:     db,
	}
}

const userAuthColumns = `id, username, email, password_hash, is_active,
       failed_login_attempts, last_failed_login_at, created_at, updated_at`

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	return r.getUser(ctx,
		"SELECT "+userAuthColumns+" FROM users WHERE email = $1", email)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.UserAuth, error) {
	return r.getUser(ctx,
		"SELECT "+userAuthColumns+" FROM users WHERE id = $1", userID)
}

func (r *PostgresAuthRepo) getUser(ctx context.Context, query string, arg any) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsActive,
		&user.FailedLoginAttempts,
		&user.LastFailedLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get user: query failed: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (*types.UserAuth, error) {
	var user types.UserAuth
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash, is_active, failed_login_attempts)
         VALUES ($1, $2, $3, $4, TRUE, 0)
         RETURNING `+userAuthColumns,
		uuid.New(), username, email, passwordHash).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsActive,
		&user.FailedLoginAttempts,
		&user.LastFailedLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, types.ErrConflict
		}
		return nil, fmt.Errorf("create user: db insert failed: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("email exists: query failed: %w", err)
	}
	return exists, nil
}

func (r *PostgresAuthRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("username exists: query failed: %w", err)
	}
	return exists, nil
}

func (r *PostgresAuthRepo) RecordLoginFailure(ctx context.Context, userID uuid.UUID, failedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
         SET failed_login_attempts = failed_login_attempts + 1,
             last_failed_login_at  = $1,
             updated_at            = $1
         WHERE id = $2`,
		failedAt, userID)
	if err != nil {
		return fmt.Errorf("record login failure: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) ClearLoginFailures(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
         SET failed_login_attempts = 0,
             last_failed_login_at  = NULL,
             updated_at            = now()
         WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("clear login failures: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, newHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`,
		newHash, userID)
	if err != nil {
		return fmt.Errorf("update password: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
