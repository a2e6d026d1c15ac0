package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rdp/drivex-backend/internal/apperror"
	"github.com/rdp/drivex-backend/internal/model"
	"github.com/rdp/drivex-backend/internal/repository"
)

// seedFile inserts an active file with distinct timestamps so ordering
// assertions are deterministic.
func seedFile(t *testing.T, db *DB, userID uuid.UUID, name, mime string, uploadedAt time.Time) *model.File {
	t.Helper()
	f := &model.File{
		ID:          uuid.New(),
		UserID:      userID,
		Filename:    name,
		StoragePath: fmt.Sprintf("u@example.com/%s-%s", uuid.NewString()[:8], name),
		URL:         "https://store/" + name,
		MimeType:    mime,
		SizeBytes:   100,
		UploadedAt:  uploadedAt,
	}
	if err := db.Create(context.Background(), f); err != nil {
		t.Fatalf("Create(%s) error = %v", name, err)
	}
	return f
}

func TestFileCreate_DuplicateStoragePath(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "files@example.com")
	now := time.Now().UTC()

	f := seedFile(t, db, u.ID, "a.png", "image/png", now)

	dup := &model.File{
		ID:          uuid.New(),
		UserID:      u.ID,
		Filename:    "other.png",
		StoragePath: f.StoragePath,
		URL:         "https://store/other.png",
		MimeType:    "image/png",
		SizeBytes:   1,
		UploadedAt:  now,
	}
	if err := db.Create(context.Background(), dup); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("Create() error = %v, want ErrDuplicate", err)
	}
}

func TestFileGetActive(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "files@example.com")
	f := seedFile(t, db, u.ID, "a.png", "image/png", time.Now().UTC())

	got, err := db.GetActive(context.Background(), u.ID, f.ID)
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if got.Filename != "a.png" || got.MimeType != "image/png" {
		t.Errorf("got %+v", got)
	}
	if got.UserID != u.ID {
		t.Errorf("UserID = %v, want %v", got.UserID, u.ID)
	}
}

func TestFileGetActive_OtherUsersFile(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@example.com")
	intruder := seedUser(t, db, "intruder@example.com")
	f := seedFile(t, db, owner.ID, "secret.pdf", "application/pdf", time.Now().UTC())

	_, err := db.GetActive(context.Background(), intruder.ID, f.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetActive() error = %v, want ErrNotFound for foreign file", err)
	}
}

func TestFileSoftDeleteAndRestore(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "files@example.com")
	f := seedFile(t, db, u.ID, "a.png", "image/png", time.Now().UTC())
	ctx := context.Background()

	if err := db.SoftDelete(ctx, u.ID, f.ID, time.Now().UTC()); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	// Invisible to active lookups, visible to GetAny.
	if _, err := db.GetActive(ctx, u.ID, f.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetActive() after delete error = %v, want ErrNotFound", err)
	}
	got, err := db.GetAny(ctx, u.ID, f.ID)
	if err != nil {
		t.Fatalf("GetAny() error = %v", err)
	}
	if !got.IsDeleted || got.DeletedAt == nil {
		t.Errorf("after delete: IsDeleted = %v, DeletedAt = %v", got.IsDeleted, got.DeletedAt)
	}

	// Deleting twice is not-found: the liveness predicate fails.
	if err := db.SoftDelete(ctx, u.ID, f.ID, time.Now().UTC()); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second SoftDelete() error = %v, want ErrNotFound", err)
	}

	if err := db.Restore(ctx, u.ID, f.ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	got, err = db.GetActive(ctx, u.ID, f.ID)
	if err != nil {
		t.Fatalf("GetActive() after restore error = %v", err)
	}
	if got.IsDeleted || got.DeletedAt != nil {
		t.Errorf("after restore: IsDeleted = %v, DeletedAt = %v", got.IsDeleted, got.DeletedAt)
	}

	// Restoring an active file is not-found for the same reason.
	if err := db.Restore(ctx, u.ID, f.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Restore() error = %v, want ErrNotFound", err)
	}
}

func TestFileList_PagingAndOrder(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "files@example.com")
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		seedFile(t, db, u.ID, fmt.Sprintf("f%d.png", i), "image/png", base.Add(time.Duration(i)*time.Minute))
	}

	files, total, err := db.List(context.Background(), u.ID, repository.FileFilter{Page: 0, Size: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2", len(files))
	}
	// Newest first.
	if files[0].Filename != "f4.png" || files[1].Filename != "f3.png" {
		t.Errorf("page 0 = %q, %q", files[0].Filename, files[1].Filename)
	}

	files, _, err = db.List(context.Background(), u.ID, repository.FileFilter{Page: 2, Size: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 1 || files[0].Filename != "f0.png" {
		t.Errorf("last page = %+v", files)
	}
}

func TestFileList_ExcludesDeleted(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "files@example.com")
	now := time.Now().UTC()

	seedFile(t, db, u.ID, "keep.png", "image/png", now)
	gone := seedFile(t, db, u.ID, "gone.png", "image/png", now)
	if err := db.SoftDelete(context.Background(), u.ID, gone.ID, now); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	files, total, err := db.List(context.Background(), u.ID, repository.FileFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(files) != 1 || files[0].Filename != "keep.png" {
		t.Errorf("total = %d, files = %+v", total, files)
	}
}

func TestFileList_CategoryFilter(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "files@example.com")
	now := time.Now().UTC()

	seedFile(t, db, u.ID, "pic.png", "image/png", now)
	seedFile(t, db, u.ID, "clip.mp4", "video/mp4", now)
	seedFile(t, db, u.ID, "doc.pdf", "application/pdf", now)
	seedFile(t, db, u.ID, "notes.txt", "text/plain", now)
	seedFile(t, db, u.ID, "blob.bin", "application/octet-stream", now)

	tests := []struct {
		typ  string
		want int
	}{
		{"image", 1},
		{"video", 1},
		{"audio", 0},
		{"document", 2},
		{"other", 1},
		{"all", 5},
		{"", 5},
		{"bogus", 5},
	}

	for _, tt := range tests {
		_, total, err := db.List(context.Background(), u.ID, repository.FileFilter{Type: tt.typ})
		if err != nil {
			t.Fatalf("List(type=%q) error = %v", tt.typ, err)
		}
		if total != int64(tt.want) {
			t.Errorf("List(type=%q) total = %d, want %d", tt.typ, total, tt.want)
		}
	}
}

func TestFileList_SearchBeatsCategory(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "files@example.com")
	now := time.Now().UTC()

	seedFile(t, db, u.ID, "Holiday Report.pdf", "application/pdf", now)
	seedFile(t, db, u.ID, "holiday.png", "image/png", now)
	seedFile(t, db, u.ID, "budget.xlsx", "application/vnd.ms-excel.sheet", now)

	// Case-insensitive substring match, category ignored when searching.
	files, total, err := db.List(context.Background(), u.ID, repository.FileFilter{
		Search: "holiday", Type: "image",
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 || len(files) != 2 {
		t.Errorf("total = %d, files = %d, want 2 matches", total, len(files))
	}
}

func TestFileList_SearchEscapesWildcards(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "files@example.com")
	now := time.Now().UTC()

	seedFile(t, db, u.ID, "100% done.txt", "text/plain", now)
	seedFile(t, db, u.ID, "1000 rows.txt", "text/plain", now)

	_, total, err := db.List(context.Background(), u.ID, repository.FileFilter{Search: "100%"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1 (%% must not act as a wildcard)", total)
	}
}

func TestStorageUsed(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "files@example.com")
	now := time.Now().UTC()

	seedFile(t, db, u.ID, "a.png", "image/png", now)
	gone := seedFile(t, db, u.ID, "b.png", "image/png", now)
	if err := db.SoftDelete(context.Background(), u.ID, gone.ID, now); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	used, err := db.StorageUsed(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("StorageUsed() error = %v", err)
	}
	if used != 100 {
		t.Errorf("used = %d, want 100 (deleted files excluded)", used)
	}
}

func TestStorageUsed_NoFiles(t *testing.T) {
	db := newTestDB(t)
	u := seedUser(t, db, "empty@example.com")

	used, err := db.StorageUsed(context.Background(), u.ID)
	if err != nil || used != 0 {
		t.Errorf("StorageUsed() = %d, %v, want 0, nil", used, err)
	}
}
