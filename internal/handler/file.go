package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rdp/drivex-backend/internal/apperror"
	"github.com/rdp/drivex-backend/internal/auth"
	"github.com/rdp/drivex-backend/internal/repository"
	"github.com/rdp/drivex-backend/internal/service"
)

// multipartMemoryLimit caps how much of a multipart body is buffered in
// memory before spilling to temp files.
const multipartMemoryLimit = 10 << 20 // 10 MiB

// FileHandler exposes the file endpoints. Every route requires a session;
// the middleware has already placed the principal in the context.
type FileHandler struct {
	svc            *service.FileService
	maxRequestSize int64
	logger         *slog.Logger
}

func NewFileHandler(svc *service.FileService, maxRequestSize int64, logger *slog.Logger) *FileHandler {
	return &FileHandler{svc: svc, maxRequestSize: maxRequestSize, logger: logger}
}

// Upload handles POST /api/files/upload. Expects multipart/form-data with a "file"
// part and an optional "description" field.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	// MaxBytesReader closes the connection once the limit is crossed, so an
	// oversized body never streams in fully before being rejected.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, h.logger, apperror.TooLarge("Request body is too large"))
			return
		}
		writeError(w, h.logger, apperror.BadRequest("Request must be multipart/form-data with a file part"))
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, apperror.BadRequest("Missing file part"))
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, h.logger, apperror.TooLarge("Request body is too large"))
			return
		}
		writeError(w, h.logger, apperror.BadRequest("Failed to read file part"))
		return
	}

	view, err := h.svc.Upload(r.Context(), principal.UserID, service.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Description: r.FormValue("description"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "File uploaded successfully", view)
}

// List handles GET /api/files?page=&size=&type=&search=.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	q := r.URL.Query()
	filter := repository.FileFilter{
		Page:   queryInt(q.Get("page"), 0),
		Size:   queryInt(q.Get("size"), 20),
		Type:   q.Get("type"),
		Search: q.Get("search"),
	}

	result, err := h.svc.List(r.Context(), principal.UserID, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", result)
}

// Get handles GET /api/files/{id}.
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, fileID, ok := h.fileRequest(w, r)
	if !ok {
		return
	}

	view, err := h.svc.Get(r.Context(), principal.UserID, fileID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", view)
}

// Delete handles DELETE /api/files/{id} (soft delete).
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, fileID, ok := h.fileRequest(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), principal.UserID, fileID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "File deleted successfully", nil)
}

// Restore handles POST /api/files/{id}/restore.
func (h *FileHandler) Restore(w http.ResponseWriter, r *http.Request) {
	principal, fileID, ok := h.fileRequest(w, r)
	if !ok {
		return
	}

	view, err := h.svc.Restore(r.Context(), principal.UserID, fileID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "File restored successfully", view)
}

// Download handles GET /api/files/{id}/download. The bytes live on the
// public object store; this returns the URL rather than proxying them.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	principal, fileID, ok := h.fileRequest(w, r)
	if !ok {
		return
	}

	url, err := h.svc.DownloadURL(r.Context(), principal.UserID, fileID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]string{"downloadUrl": url})
}

// Usage handles GET /api/files/usage.
func (h *FileHandler) Usage(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("valid authentication required"))
		return
	}

	used, err := h.svc.StorageUsed(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]int64{"storageUsed": used})
}

// fileRequest extracts the principal and the {id} path parameter, writing
// the error response itself when either is missing.
func (h *FileHandler) fileRequest(w http.ResponseWriter, r *http.Request) (auth.Principal, uuid.UUID, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("valid authentication required"))
		return auth.Principal{}, uuid.Nil, false
	}

	fileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("id", "id must be a valid UUID"))
		return auth.Principal{}, uuid.Nil, false
	}
	return principal, fileID, true
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
