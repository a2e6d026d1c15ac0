// Package repository defines the storage interfaces the service layer
// depends on. The sqlite subpackage implements them; tests substitute fakes.
//
// Ownership is part of every file query: the predicates carry
// "user_id = ? AND is_deleted = 0" instead of separate existence checks, so
// there is no window between a fetch and a mutation for another request to
// slip through.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rdp/drivex-backend/internal/model"
)

// ErrDuplicate is returned when an insert violates a unique constraint
// (users.email, files.storage_path). The federated-login reconciliation
// depends on detecting this to resolve concurrent-creation races.
var ErrDuplicate = errors.New("duplicate row")

// FileFilter narrows and pages a file listing.
//
// Precedence: a non-empty Search wins over Type; a Type of "", "all", or an
// unknown value means no category filter. Page and Size are 0-indexed page
// number and page size.
type FileFilter struct {
	Page   int
	Size   int
	Type   string
	Search string
}

type UserRepository interface {
	// CreateUser inserts a user. Returns ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type FileRepository interface {
	// Create inserts file metadata. Returns ErrDuplicate on a storage
	// path collision.
	Create(ctx context.Context, file *model.File) error

	// GetActive fetches a non-deleted file owned by userID.
	GetActive(ctx context.Context, userID, id uuid.UUID) (*model.File, error)

	// GetAny fetches a file owned by userID regardless of deletion state.
	// Restore needs this to distinguish "deleted" from "gone".
	GetAny(ctx context.Context, userID, id uuid.UUID) (*model.File, error)

	// List returns one page of non-deleted files plus the total count for
	// the same filter, newest first (upload time, then ID as tiebreaker).
	List(ctx context.Context, userID uuid.UUID, filter FileFilter) ([]model.File, int64, error)

	// SoftDelete flags an active file as deleted at the given time.
	SoftDelete(ctx context.Context, userID, id uuid.UUID, at time.Time) error

	// Restore clears the deletion flag and timestamp of a deleted file.
	Restore(ctx context.Context, userID, id uuid.UUID) error

	// StorageUsed sums SizeBytes over the user's non-deleted files.
	StorageUsed(ctx context.Context, userID uuid.UUID) (int64, error)
}
