package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rdp/drivex-backend/internal/apperror"
	"github.com/rdp/drivex-backend/internal/model"
	"github.com/rdp/drivex-backend/internal/repository"
)

// CreateUser inserts a new user. The ID and creation timestamp are assigned
// here; an empty PasswordHash is stored as NULL (federated accounts).
//
// Email uniqueness is enforced by the constraint, not by a prior SELECT.
// The service's reconciliation path relies on getting ErrDuplicate back
// when two logins race to create the same account.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = uuid.New()
	user.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at, auth_provider)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID.String(),
		user.Name,
		user.Email,
		nullString(user.PasswordHash),
		user.CreatedAt,
		string(user.AuthProvider),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, repository.ErrDuplicate)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

func (db *DB) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id.String())
}

func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u        model.User
		idStr    string
		hash     sql.NullString
		provider string
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at, auth_provider
		 FROM users `+where,
		arg,
	).Scan(&idStr, &u.Name, &u.Email, &hash, &u.CreatedAt, &provider)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user %v: %w", arg, err)
	}

	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("sqlite: corrupt user id %q: %w", idStr, err)
	}
	u.PasswordHash = hash.String
	u.AuthProvider = model.AuthProvider(provider)

	return &u, nil
}

func (db *DB) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ?`, email,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking email %s: %w", email, err)
	}
	return n > 0, nil
}

func (db *DB) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	return db.updateUser(ctx, id, `SET name = ?`, name)
}

func (db *DB) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return db.updateUser(ctx, id, `SET password_hash = ?`, hash)
}

func (db *DB) updateUser(ctx context.Context, id uuid.UUID, set string, arg any) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users `+set+` WHERE id = ?`, arg, id.String(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id.String())
	}
	return nil
}

// nullString maps "" to NULL so the password_hash column stays NULL for
// federated users.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
