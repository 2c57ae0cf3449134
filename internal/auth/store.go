package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RefreshTokenStore is the durable record of issued refresh tokens, keyed by
// jti. It never sees the signed token itself.
type RefreshTokenStore interface {
	// Persist inserts a new unrevoked record for the token.
	Persist(ctx context.Context, jti string, userID int64, expiresAt time.Time) error

	// Revoke flips the record to revoked exactly once. It returns
	// ErrRefreshNotFound for an unknown jti and ErrRefreshAlreadyInvalid when
	// the record is already revoked or past its expiry.
	Revoke(ctx context.Context, jti string) error
}

// PostgresRefreshTokenStore implements RefreshTokenStore over the
// auth_refresh_tokens table. Records are mutated only to set the revoked
// flag and are never deleted; the history stays queryable for audit.
type PostgresRefreshTokenStore struct {
	db *sql.DB
}

func NewPostgresRefreshTokenStore(db *sql.DB) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{db: db}
}

func (s *PostgresRefreshTokenStore) Persist(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_refresh_tokens (jti, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, jti, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// Revoke takes a row lock before checking state so that two concurrent
// rotations of the same token serialize: the loser observes revoked=true and
// gets ErrRefreshAlreadyInvalid.
func (s *PostgresRefreshTokenStore) Revoke(ctx context.Context, jti string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin revoke tx: %w", err)
	}
	defer tx.Rollback()

	var revoked bool
	var expiresAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT revoked, expires_at
		FROM auth_refresh_tokens
		WHERE jti = $1
		FOR UPDATE
	`, jti).Scan(&revoked, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRefreshNotFound
		}
		return fmt.Errorf("read refresh token: %w", err)
	}

	now := time.Now().UTC()
	if revoked || now.After(expiresAt.UTC()) {
		return ErrRefreshAlreadyInvalid
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE auth_refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE jti = $1
	`, jti, now); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit revoke tx: %w", err)
	}

	return nil
}
