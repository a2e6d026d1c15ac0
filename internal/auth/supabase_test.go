package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const supabaseTestSecret = "supabase-test-secret-0123456789abcdef"

func mintSupabaseToken(t *testing.T, email string, metadata map[string]any, lifetime time.Duration) string {
	t.Helper()

	claims := jwt.MapClaims{
		"email":         email,
		"user_metadata": metadata,
		"exp":           time.Now().Add(lifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(supabaseTestSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func TestSupabaseVerify_FullName(t *testing.T) {
	v := NewSupabaseVerifier(supabaseTestSecret, "", "")

	token := mintSupabaseToken(t, "grace@example.com", map[string]any{
		"full_name": "Grace Hopper",
		"name":      "ignored",
	}, time.Hour)

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Email != "grace@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Name != "Grace Hopper" {
		t.Errorf("Name = %q, want %q", claims.Name, "Grace Hopper")
	}
}

func TestSupabaseVerify_NameFallbacks(t *testing.T) {
	v := NewSupabaseVerifier(supabaseTestSecret, "", "")

	tests := []struct {
		desc     string
		email    string
		metadata map[string]any
		want     string
	}{
		{"name key", "a@example.com", map[string]any{"name": "Plain Name"}, "Plain Name"},
		{"email prefix", "prefix@example.com", map[string]any{}, "prefix"},
		{"nil metadata", "nil.meta@example.com", nil, "nil.meta"},
		{"non-string name", "b@example.com", map[string]any{"full_name": 42}, "b"},
	}

	for _, tt := range tests {
		token := mintSupabaseToken(t, tt.email, tt.metadata, time.Hour)
		claims, err := v.Verify(token)
		if err != nil {
			t.Fatalf("%s: Verify() error = %v", tt.desc, err)
		}
		if claims.Name != tt.want {
			t.Errorf("%s: Name = %q, want %q", tt.desc, claims.Name, tt.want)
		}
	}
}

func TestSupabaseVerify_Failures(t *testing.T) {
	v := NewSupabaseVerifier(supabaseTestSecret, "", "")

	expired := mintSupabaseToken(t, "x@example.com", nil, -time.Hour)
	noEmail := mintSupabaseToken(t, "", nil, time.Hour)

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "x@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	wrongKeyToken, err := wrongKey.SignedString([]byte("a-completely-different-secret-value"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	for _, token := range []string{expired, noEmail, wrongKeyToken, "garbage"} {
		if _, err := v.Verify(token); !errors.Is(err, ErrExternalToken) {
			t.Errorf("Verify(%q...) error = %v, want ErrExternalToken", token[:min(12, len(token))], err)
		}
	}
}

func TestExtractName_UnparseableEmail(t *testing.T) {
	if got := extractName(nil, "@"); got != "Unknown User" {
		t.Errorf("extractName = %q, want Unknown User", got)
	}
}

func TestUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer opaque-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"email":         "remote@example.com",
			"user_metadata": map[string]any{"full_name": "Remote User"},
		})
	}))
	defer srv.Close()

	v := NewSupabaseVerifier(supabaseTestSecret, srv.URL, "anon-key")

	claims, err := v.UserInfo(context.Background(), "opaque-token")
	if err != nil {
		t.Fatalf("UserInfo() error = %v", err)
	}
	if claims.Email != "remote@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Name != "Remote User" {
		t.Errorf("Name = %q", claims.Name)
	}
}

func TestUserInfo_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := NewSupabaseVerifier(supabaseTestSecret, srv.URL, "anon-key")
	if _, err := v.UserInfo(context.Background(), "bad"); !errors.Is(err, ErrExternalToken) {
		t.Errorf("UserInfo() error = %v, want ErrExternalToken", err)
	}
}

func TestUserInfo_NoBaseURL(t *testing.T) {
	v := NewSupabaseVerifier(supabaseTestSecret, "", "")
	if _, err := v.UserInfo(context.Background(), "t"); !errors.Is(err, ErrExternalToken) {
		t.Errorf("UserInfo() error = %v, want ErrExternalToken", err)
	}
}
