// Package user implements the user-store collaborator: profile records and
// their credentials, plus the CRUD HTTP surface.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"user-management/internal/auth"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("email or username already taken")
)

const pgUniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id int64) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, mobile, first_name, middle_name, last_name, role, status, created_at
		FROM users
		WHERE id = $1
	`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user by id: %w", err)
	}

	return user, nil
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]User, int64, error) {
	query := `
		SELECT id, email, mobile, first_name, middle_name, last_name, role, status, created_at
		FROM users
	`
	countQuery := `SELECT COUNT(*) FROM users`
	args := []any{}

	if params.Status != "" {
		query += ` WHERE status = $1`
		countQuery += ` WHERE status = $1`
		args = append(args, params.Status)
	}
	query += fmt.Sprintf(` ORDER BY id ASC OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, append(args, params.Offset, params.Limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0, params.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

// Create inserts the profile and its credential in one transaction so a user
// never exists without login material.
func (r *Repository) Create(ctx context.Context, params CreateUserParams) (User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("begin create user tx: %w", err)
	}
	defer tx.Rollback()

	var middleName any
	if params.MiddleName != "" {
		middleName = params.MiddleName
	}

	var user User
	row := tx.QueryRowContext(ctx, `
		INSERT INTO users (email, mobile, first_name, middle_name, last_name, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, email, mobile, first_name, middle_name, last_name, role, status, created_at
	`, params.Email, params.Mobile, params.FirstName, middleName, params.LastName, params.Role, params.Status)
	user, err = scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO credentials (user_id, username, password_hash)
		VALUES ($1, $2, $3)
	`, user.ID, params.Username, params.PasswordHash); err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("insert credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("commit create user tx: %w", err)
	}

	return user, nil
}

func (r *Repository) Update(ctx context.Context, id int64, params UpdateUserParams) (User, error) {
	var middleName any
	if params.MiddleName != "" {
		middleName = params.MiddleName
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET email = $2, mobile = $3, first_name = $4, middle_name = $5, last_name = $6, role = $7, status = $8
		WHERE id = $1
		RETURNING id, email, mobile, first_name, middle_name, last_name, role, status, created_at
	`, id, params.Email, params.Mobile, params.FirstName, middleName, params.LastName, params.Role, params.Status)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}

	return user, nil
}

// CredentialByUsername implements auth.UserDirectory.
func (r *Repository) CredentialByUsername(ctx context.Context, username string) (auth.Credential, error) {
	var cred auth.Credential
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, username, password_hash
		FROM credentials
		WHERE username = $1
	`, username).Scan(&cred.UserID, &cred.Username, &cred.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Credential{}, auth.ErrUserNotFound
		}
		return auth.Credential{}, fmt.Errorf("query credential by username: %w", err)
	}

	return cred, nil
}

// HasUser implements auth.UserDirectory.
func (r *Repository) HasUser(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}

	return exists, nil
}

func (r *Repository) CredentialByUserID(ctx context.Context, userID int64) (auth.Credential, error) {
	var cred auth.Credential
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, username, password_hash
		FROM credentials
		WHERE user_id = $1
	`, userID).Scan(&cred.UserID, &cred.Username, &cred.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Credential{}, ErrNotFound
		}
		return auth.Credential{}, fmt.Errorf("query credential by user id: %w", err)
	}

	return cred, nil
}

// UpdatePassword swaps the stored hash and refreshes updated_at.
func (r *Repository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credentials
		SET password_hash = $2, updated_at = $3
		WHERE user_id = $1
	`, userID, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var middleName sql.NullString
	err := row.Scan(&user.ID, &user.Email, &user.Mobile, &user.FirstName, &middleName, &user.LastName, &user.Role, &user.Status, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	if middleName.Valid {
		user.MiddleName = middleName.String
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
