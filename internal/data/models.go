package data

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is one wiki account. Authenticated and Active are session-scoped
// flags and are never persisted.
type User struct {
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	Email      string    `db:"email"`
	Password   string    `db:"password"`
	SignedUpAt time.Time `db:"signed_up_at"`

	Authenticated bool `db:"-"`
	Active        bool `db:"-"`
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// EditRecord is one row of the append-only edit-history log, written once
// per page save.
type EditRecord struct {
	UserEmail string    `db:"user_email"`
	PageURL   string    `db:"page_url"`
	EditedAt  time.Time `db:"edited_at"`
}
