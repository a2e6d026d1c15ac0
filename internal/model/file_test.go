package model

import "testing"

func TestKindOf(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", KindImage},
		{"image/svg+xml", KindImage},
		{"video/mp4", KindVideo},
		{"audio/mpeg", KindAudio},
		{"application/pdf", KindDocument},
		{"text/plain", KindDocument},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", KindDocument},
		{"application/json", KindDocument},
		{"text/csv", KindDocument},
		{"application/zip", KindOther},
		{"application/octet-stream", KindOther},
		{"", KindOther},
	}

	for _, tt := range tests {
		if got := KindOf(tt.mime); got != tt.want {
			t.Errorf("KindOf(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestKindOf_CaseInsensitive(t *testing.T) {
	if got := KindOf("IMAGE/PNG"); got != KindImage {
		t.Errorf("KindOf(IMAGE/PNG) = %q, want %q", got, KindImage)
	}
}

func TestPreviewable(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"image/jpeg", true},
		{"audio/ogg", true},
		{"application/pdf", true},
		{"video/mp4", true},
		{"video/webm", true},
		{"video/quicktime", false}, // a video, but not a web container
		{"video/x-matroska", false},
		{"text/plain", true},
		{"application/json", true},
		{"text/html", true},
		{"application/zip", false},
		{"application/octet-stream", false},
	}

	for _, tt := range tests {
		f := File{MimeType: tt.mime}
		if got := f.Previewable(); got != tt.want {
			t.Errorf("Previewable(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}
