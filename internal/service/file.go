package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/rdp/drivex-backend/internal/apperror"
	"github.com/rdp/drivex-backend/internal/model"
	"github.com/rdp/drivex-backend/internal/repository"
)

// forbiddenMimeFragments are substrings that mark an upload as executable
// content regardless of its extension.
var forbiddenMimeFragments = []string{
	"executable",
	"x-msdownload",
	"x-msdos-program",
	"x-msi",
	"x-bat",
	"x-sh",
}

// forbiddenExtensions block executables that sniff as harmless types
// (scripts are plain text to a content sniffer).
var forbiddenExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".com": {}, ".scr": {}, ".pif": {},
	".msi": {}, ".dll": {}, ".sh": {}, ".ps1": {}, ".vbs": {}, ".js": {},
	".jar": {},
}

// FileView is the outward shape of a file record.
type FileView struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	MimeType      string    `json:"mimeType"`
	Size          int64     `json:"size"`
	UploadedAt    time.Time `json:"uploadedAt"`
	Kind          string    `json:"kind"`
	Description   string    `json:"description"`
	IsPreviewable bool      `json:"isPreviewable"`
}

// FileListResult is one page of a file listing.
type FileListResult struct {
	Page  int        `json:"page"`
	Size  int        `json:"size"`
	Total int64      `json:"total"`
	Files []FileView `json:"files"`
}

// UploadInput carries everything the handler extracted from a multipart
// upload.
type UploadInput struct {
	Filename    string
	ContentType string // as declared by the client, may be empty
	Data        []byte
	Description string
}

// FileService implements the file lifecycle: upload, listing, soft delete,
// restore, and storage accounting.
type FileService struct {
	files       repository.FileRepository
	users       repository.UserRepository
	store       ObjectStore
	maxFileSize int64
	logger      *slog.Logger
}

func NewFileService(
	files repository.FileRepository,
	users repository.UserRepository,
	store ObjectStore,
	maxFileSize int64,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		files:       files,
		users:       users,
		store:       store,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Upload pushes the bytes to the object store first and records the
// metadata second. If the insert fails the stored object is removed on a
// best-effort basis, so the metadata table never references bytes that were
// not accepted.
func (s *FileService) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*FileView, error) {
	if len(in.Data) == 0 {
		return nil, apperror.BadRequest("File is empty")
	}
	if int64(len(in.Data)) > s.maxFileSize {
		return nil, apperror.TooLarge(fmt.Sprintf("File exceeds the maximum size of %d bytes", s.maxFileSize))
	}

	mimeType := resolveMimeType(in.Data, in.ContentType)
	if err := checkUploadAllowed(in.Filename, mimeType); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// ULIDs are time-ordered, so objects in a user's folder list in upload
	// order. The original extension is kept for tooling downstream.
	path := user.Email + "/" + ulid.Make().String() + strings.ToLower(filepath.Ext(in.Filename))

	url, err := s.store.Upload(ctx, path, mimeType, in.Data)
	if err != nil {
		s.logger.Error("object upload failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Storage("Failed to store file")
	}

	file := &model.File{
		ID:          uuid.New(),
		UserID:      userID,
		Filename:    in.Filename,
		StoragePath: path,
		URL:         url,
		MimeType:    mimeType,
		SizeBytes:   int64(len(in.Data)),
		UploadedAt:  time.Now().UTC(),
		Description: in.Description,
	}
	if err := s.files.Create(ctx, file); err != nil {
		// Roll back the stored object so it doesn't leak unreferenced.
		if delErr := s.store.Delete(ctx, path); delErr != nil {
			s.logger.Error("orphaned object after failed insert",
				slog.String("path", path),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("recording file: %w", err)
	}

	s.logger.Info("file uploaded",
		slog.String("fileID", file.ID.String()),
		slog.String("userID", userID.String()),
		slog.Int64("size", file.SizeBytes),
	)

	view := toFileView(file)
	return &view, nil
}

// List returns one page of the caller's active files, optionally filtered
// by category or a name search. Search takes precedence over category.
func (s *FileService) List(ctx context.Context, userID uuid.UUID, filter repository.FileFilter) (*FileListResult, error) {
	if filter.Page < 0 {
		filter.Page = 0
	}
	if filter.Size <= 0 {
		filter.Size = 20
	}

	files, total, err := s.files.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	views := make([]FileView, len(files))
	for i := range files {
		views[i] = toFileView(&files[i])
	}
	return &FileListResult{
		Page:  filter.Page,
		Size:  filter.Size,
		Total: total,
		Files: views,
	}, nil
}

// Get returns a single active file owned by the caller.
func (s *FileService) Get(ctx context.Context, userID, fileID uuid.UUID) (*FileView, error) {
	file, err := s.files.GetActive(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	view := toFileView(file)
	return &view, nil
}

// Delete soft-deletes the metadata row, then removes the stored object on
// a best-effort basis. The row survives for restore; a failed remote delete
// only leaves restorable bytes behind.
func (s *FileService) Delete(ctx context.Context, userID, fileID uuid.UUID) error {
	file, err := s.files.GetActive(ctx, userID, fileID)
	if err != nil {
		return err
	}

	if err := s.files.SoftDelete(ctx, userID, fileID, time.Now().UTC()); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, file.StoragePath); err != nil {
		s.logger.Warn("remote delete failed after soft delete",
			slog.String("fileID", fileID.String()),
			slog.String("path", file.StoragePath),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("file deleted",
		slog.String("fileID", fileID.String()),
		slog.String("userID", userID.String()),
	)
	return nil
}

// Restore flips a soft-deleted file back to active. The object may or may
// not still exist remotely; restoring only the metadata matches the
// trash-bin semantics the frontend presents.
func (s *FileService) Restore(ctx context.Context, userID, fileID uuid.UUID) (*FileView, error) {
	file, err := s.files.GetAny(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if !file.IsDeleted {
		return nil, apperror.BadRequest("File is not deleted")
	}

	if err := s.files.Restore(ctx, userID, fileID); err != nil {
		return nil, err
	}

	// The delete may have already purged the remote object; the restored
	// record then points at a dead URL. Worth a warning, not a failure.
	if exists, err := s.store.Exists(ctx, file.StoragePath); err == nil && !exists {
		s.logger.Warn("restored file has no remote object",
			slog.String("fileID", fileID.String()),
			slog.String("path", file.StoragePath),
		)
	}

	s.logger.Info("file restored",
		slog.String("fileID", fileID.String()),
		slog.String("userID", userID.String()),
	)

	file.IsDeleted = false
	file.DeletedAt = nil
	view := toFileView(file)
	return &view, nil
}

// StorageUsed sums the sizes of the caller's active files.
func (s *FileService) StorageUsed(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.files.StorageUsed(ctx, userID)
}

// DownloadURL resolves the public URL for an active file.
func (s *FileService) DownloadURL(ctx context.Context, userID, fileID uuid.UUID) (string, error) {
	file, err := s.files.GetActive(ctx, userID, fileID)
	if err != nil {
		return "", err
	}
	return file.URL, nil
}

// resolveMimeType reconciles sniffed content against the declared type.
// Sniffing wins; it only falls back to the declaration when the sniffer
// gives up (application/octet-stream).
func resolveMimeType(data []byte, declared string) string {
	sniffed := http.DetectContentType(data)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	sniffed = strings.TrimSpace(sniffed)

	if sniffed == "application/octet-stream" && declared != "" {
		return strings.ToLower(declared)
	}
	return strings.ToLower(sniffed)
}

func checkUploadAllowed(filename, mimeType string) error {
	for _, fragment := range forbiddenMimeFragments {
		if strings.Contains(mimeType, fragment) {
			return apperror.BadRequest("File type is not allowed: " + mimeType)
		}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, blocked := forbiddenExtensions[ext]; blocked {
		return apperror.BadRequest("File type is not allowed: " + ext)
	}
	return nil
}

func toFileView(f *model.File) FileView {
	return FileView{
		ID:            f.ID,
		Name:          f.Filename,
		URL:           f.URL,
		MimeType:      f.MimeType,
		Size:          f.SizeBytes,
		UploadedAt:    f.UploadedAt,
		Kind:          f.Kind(),
		Description:   f.Description,
		IsPreviewable: f.Previewable(),
	}
}
