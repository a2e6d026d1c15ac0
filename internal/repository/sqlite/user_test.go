package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/rdp/drivex-backend/internal/apperror"
	"github.com/rdp/drivex-backend/internal/model"
	"github.com/rdp/drivex-backend/internal/repository"
)

// newTestDB opens an in-memory database with the full schema applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	u := &model.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$2a$04$fakehash",
		AuthProvider: model.ProviderLocal,
	}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("Create(%s) error = %v", email, err)
	}
	return u
}

func TestUserCreate_AssignsIDAndTimestamp(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "a@example.com")

	if u.ID == uuid.Nil {
		t.Error("Create() should assign an ID")
	}
	if u.CreatedAt.IsZero() {
		t.Error("Create() should assign CreatedAt")
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "dup@example.com")

	err := db.CreateUser(context.Background(), &model.User{
		Name:         "Other",
		Email:        "dup@example.com",
		AuthProvider: model.ProviderGoogle,
	})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("Create() error = %v, want ErrDuplicate", err)
	}
}

func TestUserGetByID(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "get@example.com")

	got, err := db.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "get@example.com" || got.Name != "Test User" {
		t.Errorf("got %+v", got)
	}
	if got.PasswordHash != "$2a$04$fakehash" {
		t.Errorf("PasswordHash = %q", got.PasswordHash)
	}
	if got.AuthProvider != model.ProviderLocal {
		t.Errorf("AuthProvider = %q", got.AuthProvider)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "mail@example.com")

	got, err := db.GetByEmail(context.Background(), "mail@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %v, want %v", got.ID, u.ID)
	}
}

func TestUserCreate_FederatedWithoutPassword(t *testing.T) {
	db := newTestDB(t)

	u := &model.User{
		Name:         "Fed User",
		Email:        "fed@example.com",
		AuthProvider: model.ProviderGoogle,
	}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PasswordHash != "" {
		t.Errorf("PasswordHash = %q, want empty for a federated user", got.PasswordHash)
	}
	if got.AuthProvider != model.ProviderGoogle {
		t.Errorf("AuthProvider = %q", got.AuthProvider)
	}
}

func TestUserExistsByEmail(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "yes@example.com")

	exists, err := db.ExistsByEmail(context.Background(), "yes@example.com")
	if err != nil || !exists {
		t.Errorf("ExistsByEmail(yes) = %v, %v", exists, err)
	}
	exists, err = db.ExistsByEmail(context.Background(), "no@example.com")
	if err != nil || exists {
		t.Errorf("ExistsByEmail(no) = %v, %v", exists, err)
	}
}

func TestUserUpdateName(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "rename@example.com")

	if err := db.UpdateName(context.Background(), u.ID, "New Name"); err != nil {
		t.Fatalf("UpdateName() error = %v", err)
	}

	got, err := db.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "New Name" {
		t.Errorf("Name = %q", got.Name)
	}
}

func TestUserUpdateName_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateName(context.Background(), uuid.New(), "x")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateName() error = %v, want ErrNotFound", err)
	}
}

func TestUserUpdatePasswordHash(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "pw@example.com")

	if err := db.UpdatePasswordHash(context.Background(), u.ID, "$2a$04$newhash"); err != nil {
		t.Fatalf("UpdatePasswordHash() error = %v", err)
	}

	got, err := db.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PasswordHash != "$2a$04$newhash" {
		t.Errorf("PasswordHash = %q", got.PasswordHash)
	}
}
