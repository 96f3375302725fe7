package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// ErrUserNotFound is returned when no account exists for an email.
var ErrUserNotFound = errors.New("user not found")

// UserRepository handles database operations for accounts and the
// edit-history log.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new account, hashing the plaintext password. The
// user's Password field is replaced with the hash and SignedUpAt is set.
func (r *UserRepository) CreateUser(ctx context.Context, user *User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Password = string(hash)
	user.SignedUpAt = time.Now().UTC()

	query := `INSERT INTO users (first_name, last_name, email, password, signed_up_at)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		user.FirstName, user.LastName, user.Email, user.Password, user.SignedUpAt); err != nil {
		return fmt.Errorf("create user %s: %w", user.Email, err)
	}
	return nil
}

// GetUser retrieves the account for email, or ErrUserNotFound.
func (r *UserRepository) GetUser(ctx context.Context, email string) (*User, error) {
	var user User
	query := `SELECT first_name, last_name, email, password, signed_up_at FROM users WHERE email = ?`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}
		return nil, fmt.Errorf("get user %s: %w", email, err)
	}
	user.Active = true
	return &user, nil
}

// GetUsers retrieves every account.
func (r *UserRepository) GetUsers(ctx context.Context) ([]*User, error) {
	var users []*User
	query := `SELECT first_name, last_name, email, password, signed_up_at FROM users ORDER BY email`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return users, nil
}

// DeleteUser removes the account for email. It reports whether an account
// existed; a missing account is not an error.
func (r *UserRepository) DeleteUser(ctx context.Context, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE email = ?`, email)
	if err != nil {
		return false, fmt.Errorf("delete user %s: %w", email, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteAllUsers removes every account.
func (r *UserRepository) DeleteAllUsers(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("delete all users: %w", err)
	}
	return nil
}

// RecordEdit appends one (email, page url, timestamp) row to the
// edit-history log.
func (r *UserRepository) RecordEdit(ctx context.Context, email, pageURL string) error {
	query := `INSERT INTO user_edit_history (user_email, page_url, edited_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, email, pageURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("record edit of %s by %s: %w", pageURL, email, err)
	}
	return nil
}

// EditHistory returns the edit log for one account, oldest first.
func (r *UserRepository) EditHistory(ctx context.Context, email string) ([]EditRecord, error) {
	var records []EditRecord
	query := `SELECT user_email, page_url, edited_at FROM user_edit_history
		WHERE user_email = ? ORDER BY edited_at`
	if err := r.db.SelectContext(ctx, &records, query, email); err != nil {
		return nil, fmt.Errorf("get edit history for %s: %w", email, err)
	}
	return records, nil
}
