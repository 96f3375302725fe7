//go:build integration

package data

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// setupUserTest creates a new in-memory SQLite database and a UserRepository
// for testing. It returns the repository and a teardown function to be
// deferred.
func setupUserTest(t *testing.T) (*UserRepository, func()) {
	t.Helper()

	db, err := sqlx.Connect("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("Failed to connect to sqlite test database: %v", err)
	}
	// Every pool connection gets its own in-memory database, so keep one.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE users (
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		signed_up_at TIMESTAMP NOT NULL
	);
	CREATE TABLE user_edit_history (
		user_email TEXT NOT NULL,
		page_url TEXT NOT NULL,
		edited_at TIMESTAMP NOT NULL
	);`
	db.MustExec(schema)

	repo := NewUserRepository(db)

	teardown := func() {
		db.Close()
	}

	return repo, teardown
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo, teardown := setupUserTest(t)
	defer teardown()
	ctx := context.Background()

	user := &User{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"}
	if err := repo.CreateUser(ctx, user, "s3cret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Password == "s3cret" {
		t.Error("password must be hashed at rest")
	}

	got, err := repo.GetUser(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FirstName != "Jane" || got.LastName != "Doe" {
		t.Errorf("unexpected user: %+v", got)
	}
	if !got.CheckPassword("s3cret") {
		t.Error("expected stored hash to verify the original password")
	}
	if got.CheckPassword("wrong") {
		t.Error("expected wrong password to fail verification")
	}
	if !got.Active {
		t.Error("expected loaded user to be active")
	}
	if got.Authenticated {
		t.Error("authenticated flag must not be persisted")
	}
}

func TestUserRepository_GetUserNotFound(t *testing.T) {
	repo, teardown := setupUserTest(t)
	defer teardown()

	_, err := repo.GetUser(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRepository_DeleteUser(t *testing.T) {
	repo, teardown := setupUserTest(t)
	defer teardown()
	ctx := context.Background()

	user := &User{FirstName: "Bob", LastName: "Smith", Email: "bob@example.com"}
	if err := repo.CreateUser(ctx, user, "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	existed, err := repo.DeleteUser(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !existed {
		t.Error("expected delete to report an existing user")
	}

	existed, err = repo.DeleteUser(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if existed {
		t.Error("expected second delete to report no user")
	}
}

func TestUserRepository_DeleteAllUsers(t *testing.T) {
	repo, teardown := setupUserTest(t)
	defer teardown()
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com"} {
		if err := repo.CreateUser(ctx, &User{FirstName: "A", LastName: "B", Email: email}, "pw"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := repo.DeleteAllUsers(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	users, err := repo.GetUsers(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected no users left, got %d", len(users))
	}
}

func TestUserRepository_EditHistory(t *testing.T) {
	repo, teardown := setupUserTest(t)
	defer teardown()
	ctx := context.Background()

	if err := repo.RecordEdit(ctx, "jane@example.com", "home"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.RecordEdit(ctx, "jane@example.com", "home"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.RecordEdit(ctx, "jane@example.com", "about"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.RecordEdit(ctx, "other@example.com", "home"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := repo.EditHistory(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, one per save, got %d", len(records))
	}
	for _, rec := range records {
		if rec.UserEmail != "jane@example.com" {
			t.Errorf("unexpected record for %s", rec.UserEmail)
		}
		if rec.EditedAt.IsZero() {
			t.Error("expected a timestamp on each record")
		}
	}
}
