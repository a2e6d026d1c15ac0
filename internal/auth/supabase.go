package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrExternalToken is the single failure kind for federated-token
// verification. Every verification or extraction problem collapses into it
// so callers can't probe which check failed.
var ErrExternalToken = errors.New("invalid external token")

// ExternalClaims is the identity extracted from a Supabase-issued token.
type ExternalClaims struct {
	Email string
	Name  string
}

// SupabaseVerifier verifies identity tokens minted by Supabase Auth.
//
// Supabase signs its access tokens with a project-level HS256 secret (the
// "JWT secret" in the project settings), separate from our session secret.
// Verifying locally costs nothing; UserInfo exists as a network fallback for
// tokens whose claims don't carry an email.
type SupabaseVerifier struct {
	secret  []byte
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabaseVerifier creates a verifier for the given project.
// baseURL is the project URL (https://xyz.supabase.co); anonKey is sent as
// the apikey header on user-info calls.
func NewSupabaseVerifier(secret, baseURL, anonKey string) *SupabaseVerifier {
	return &SupabaseVerifier{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// supabaseClaims mirrors the parts of the Supabase access token we read.
type supabaseClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Verify checks the token signature and expiry against the provider secret
// and extracts email + display name. The email claim is required; the name
// falls back from user_metadata to the email prefix to "Unknown User".
func (v *SupabaseVerifier) Verify(tokenStr string) (ExternalClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&supabaseClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		return ExternalClaims{}, ErrExternalToken
	}

	c, ok := token.Claims.(*supabaseClaims)
	if !ok || !token.Valid || c.Email == "" {
		return ExternalClaims{}, ErrExternalToken
	}

	return ExternalClaims{
		Email: c.Email,
		Name:  extractName(c.UserMetadata, c.Email),
	}, nil
}

// extractName applies the name fallback policy: user_metadata.full_name,
// then user_metadata.name, then the email prefix, then "Unknown User".
func extractName(metadata map[string]any, email string) string {
	for _, key := range []string{"full_name", "name"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v
		}
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return "Unknown User"
}

// supabaseUser is the slice of the GET /auth/v1/user response we care about.
type supabaseUser struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// UserInfo fetches the identity behind an access token from the Supabase
// Auth API. Used when a token verifies but its claims carry no email (older
// token formats). oauth2.NewClient attaches the bearer header for us.
func (v *SupabaseVerifier) UserInfo(ctx context.Context, accessToken string) (ExternalClaims, error) {
	if v.baseURL == "" {
		return ExternalClaims{}, ErrExternalToken
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.client)
	client := oauth2.NewClient(ctx, src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return ExternalClaims{}, ErrExternalToken
	}
	req.Header.Set("apikey", v.anonKey)

	resp, err := client.Do(req)
	if err != nil {
		return ExternalClaims{}, ErrExternalToken
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ExternalClaims{}, ErrExternalToken
	}

	var u supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil || u.Email == "" {
		return ExternalClaims{}, ErrExternalToken
	}

	return ExternalClaims{
		Email: u.Email,
		Name:  extractName(u.UserMetadata, u.Email),
	}, nil
}
