package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rdp/drivex-backend/internal/apperror"
	"github.com/rdp/drivex-backend/internal/model"
	"github.com/rdp/drivex-backend/internal/repository"
)

const fileColumns = `id, user_id, filename, storage_path, url, mime_type,
	size_bytes, uploaded_at, is_deleted, deleted_at, description`

// documentClause matches the document category. The marker list mirrors
// model.KindOf — the query and the in-memory predicate must agree, or a
// file could be listed under a category its view doesn't claim.
const documentClause = `(mime_type LIKE '%pdf%' OR mime_type LIKE 'text/%'
	OR mime_type LIKE '%word%' OR mime_type LIKE '%sheet%'
	OR mime_type LIKE '%presentation%' OR mime_type LIKE '%officedocument%'
	OR mime_type LIKE '%json%' OR mime_type LIKE '%xml%' OR mime_type LIKE '%csv%')`

// categoryClauses maps a type filter to its SQL predicate. MIME types are
// stored lowercased by the service, so plain LIKE comparisons suffice.
var categoryClauses = map[string]string{
	model.KindImage:    `mime_type LIKE 'image/%'`,
	model.KindVideo:    `mime_type LIKE 'video/%'`,
	model.KindAudio:    `mime_type LIKE 'audio/%'`,
	model.KindDocument: documentClause,
	model.KindOther: `NOT (mime_type LIKE 'image/%' OR mime_type LIKE 'video/%'
		OR mime_type LIKE 'audio/%' OR ` + documentClause + `)`,
}

// Create inserts file metadata. The caller supplies the ID, storage path,
// and upload timestamp (the service generates them alongside the object
// upload, so the path in the store and the row always agree).
func (db *DB) Create(ctx context.Context, file *model.File) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO files (`+fileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID.String(),
		file.UserID.String(),
		file.Filename,
		file.StoragePath,
		file.URL,
		file.MimeType,
		file.SizeBytes,
		file.UploadedAt,
		file.IsDeleted,
		nullTime(file.DeletedAt),
		nullString(file.Description),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: inserting file %s: %w", file.StoragePath, repository.ErrDuplicate)
		}
		return fmt.Errorf("sqlite: inserting file %s: %w", file.ID, err)
	}
	return nil
}

func (db *DB) GetActive(ctx context.Context, userID, id uuid.UUID) (*model.File, error) {
	return db.getFile(ctx, userID, id, true)
}

func (db *DB) GetAny(ctx context.Context, userID, id uuid.UUID) (*model.File, error) {
	return db.getFile(ctx, userID, id, false)
}

func (db *DB) getFile(ctx context.Context, userID, id uuid.UUID, activeOnly bool) (*model.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ? AND user_id = ?`
	if activeOnly {
		query += ` AND is_deleted = 0`
	}

	row := db.conn.QueryRowContext(ctx, query, id.String(), userID.String())
	f, err := scanFile(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("file", id.String())
		}
		return nil, fmt.Errorf("sqlite: getting file %s: %w", id, err)
	}
	return f, nil
}

// List pages the user's active files, newest upload first with the ID as a
// stable tiebreaker. Search takes precedence over the category filter; an
// empty, "all", or unknown type means no category restriction.
func (db *DB) List(ctx context.Context, userID uuid.UUID, filter repository.FileFilter) ([]model.File, int64, error) {
	size := filter.Size
	if size <= 0 {
		size = 20
	}
	page := filter.Page
	if page < 0 {
		page = 0
	}

	where := `user_id = ? AND is_deleted = 0`
	args := []any{userID.String()}

	if search := strings.TrimSpace(filter.Search); search != "" {
		// SQLite's LIKE is case-insensitive for ASCII already; NOCASE
		// makes the intent explicit. Escape the LIKE metacharacters so
		// a search for "100%" doesn't become a wildcard.
		where += ` AND filename LIKE ? ESCAPE '\' COLLATE NOCASE`
		args = append(args, "%"+escapeLike(search)+"%")
	} else if clause, ok := categoryClauses[strings.ToLower(filter.Type)]; ok {
		where += ` AND ` + clause
	}

	var total int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting files: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE `+where+`
		 ORDER BY uploaded_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		append(args, size, page*size)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing files: %w", err)
	}
	defer rows.Close()

	files := make([]model.File, 0, size)
	for rows.Next() {
		f, err := scanFile(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning file row: %w", err)
		}
		files = append(files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating files: %w", err)
	}

	return files, total, nil
}

// SoftDelete flags an active file as deleted. The ownership and liveness
// predicates are part of the UPDATE itself; zero affected rows means the
// file doesn't exist, isn't owned by this user, or is already deleted —
// all of which surface as not-found.
func (db *DB) SoftDelete(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	return db.updateFile(ctx,
		`UPDATE files SET is_deleted = 1, deleted_at = ?
		 WHERE id = ? AND user_id = ? AND is_deleted = 0`,
		id, at, id.String(), userID.String(),
	)
}

// Restore clears the deletion flag of a deleted file.
func (db *DB) Restore(ctx context.Context, userID, id uuid.UUID) error {
	return db.updateFile(ctx,
		`UPDATE files SET is_deleted = 0, deleted_at = NULL
		 WHERE id = ? AND user_id = ? AND is_deleted = 1`,
		id, id.String(), userID.String(),
	)
}

func (db *DB) updateFile(ctx context.Context, query string, id uuid.UUID, args ...any) error {
	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: updating file %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("file", id.String())
	}
	return nil
}

func (db *DB) StorageUsed(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size_bytes), 0) FROM files
		 WHERE user_id = ? AND is_deleted = 0`,
		userID.String(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sqlite: summing storage for user %s: %w", userID, err)
	}
	return total, nil
}

// scanFile reads one files row. Works for both sql.Row and sql.Rows via
// the scan function.
func scanFile(scan func(...any) error) (*model.File, error) {
	var (
		f             model.File
		idStr, uidStr string
		deletedAt     sql.NullTime
		description   sql.NullString
	)

	err := scan(&idStr, &uidStr, &f.Filename, &f.StoragePath, &f.URL,
		&f.MimeType, &f.SizeBytes, &f.UploadedAt, &f.IsDeleted,
		&deletedAt, &description)
	if err != nil {
		return nil, err
	}

	if f.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("corrupt file id %q: %w", idStr, err)
	}
	if f.UserID, err = uuid.Parse(uidStr); err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", uidStr, err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		f.DeletedAt = &t
	}
	f.Description = description.String

	return &f, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
