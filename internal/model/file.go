package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// File is the metadata record for one stored object.
//
// The bytes themselves live in the remote object store under StoragePath
// ("{owner email}/{ulid}{ext}", unique across the store); URL is the cached
// public composition of that path. Deletion is soft: IsDeleted and DeletedAt
// are set together by a delete and cleared together by a restore. The row is
// only ever removed by an out-of-band cleanup sweep.
type File struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"-"`
	Filename    string     `json:"name"`
	StoragePath string     `json:"-"`
	URL         string     `json:"url"`
	MimeType    string     `json:"mimeType"`
	SizeBytes   int64      `json:"sizeBytes"`
	UploadedAt  time.Time  `json:"uploadedAt"`
	IsDeleted   bool       `json:"-"`
	DeletedAt   *time.Time `json:"-"`
	Description string     `json:"description,omitempty"`
}

// File categories derived from the MIME type. Every file belongs to exactly
// one: the first matching predicate wins and "other" is the final bucket.
const (
	KindImage    = "image"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindDocument = "document"
	KindOther    = "other"
)

// documentMarkers are the substrings that classify a MIME type as a document.
// The same list drives the repository's category queries; keep them in sync.
var documentMarkers = []string{
	"pdf", "text/", "word", "sheet", "presentation", "officedocument",
	"json", "xml", "csv",
}

// Kind returns the coarse category of the file.
func (f *File) Kind() string {
	return KindOf(f.MimeType)
}

// KindOf classifies a MIME type string into one of the five categories.
func KindOf(mimeType string) string {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	case strings.HasPrefix(mt, "audio/"):
		return KindAudio
	case containsAny(mt, documentMarkers):
		return KindDocument
	default:
		return KindOther
	}
}

// Previewable reports whether a typical browser can render the bytes inline.
// Only the common web video containers count; an .mkv is a video but not a
// preview.
func (f *File) Previewable() bool {
	mt := strings.ToLower(f.MimeType)

	if strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "audio/") {
		return true
	}
	if strings.Contains(mt, "pdf") {
		return true
	}
	if strings.HasPrefix(mt, "video/") &&
		containsAny(mt, []string{"mp4", "webm", "ogg", "avi", "mov"}) {
		return true
	}
	return containsAny(mt, []string{"text/", "json", "xml", "csv", "html", "css", "javascript"})
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
