// Package auth provides session tokens, federated-token verification,
// password hashing, and the authentication middleware.
//
// Session tokens are stateless JWTs: the server keeps no session table, all
// the information needed (user ID, display name, expiry) is inside the signed
// token, and the HMAC signature makes it tamper-proof without a DB lookup.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token verification failure kinds. Everything that is not specifically an
// expiry, a malformed string, or an unsupported algorithm collapses into
// ErrTokenInvalid.
var (
	ErrTokenInvalid     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenMalformed   = errors.New("malformed token")
	ErrTokenUnsupported = errors.New("unsupported token")
)

// Principal is the identity a verified session token proves.
type Principal struct {
	UserID uuid.UUID
	Name   string
}

// TokenService mints and verifies first-party session tokens (HS256).
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
}

// sessionClaims is the JWT payload: standard sub/iat/exp plus a custom
// "name" claim carrying the display name.
type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// NewTokenService creates a TokenService. The secret must be at least
// 32 bytes — the config layer enforces the same bound, this guards direct
// construction in tests and tools.
func NewTokenService(secret string, expiresIn time.Duration) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: JWT secret must be at least 32 bytes")
	}
	if expiresIn <= 0 {
		return nil, errors.New("auth: token lifetime must be positive")
	}
	return &TokenService{secret: []byte(secret), expiresIn: expiresIn}, nil
}

// Mint creates and signs a session token for the given user.
// Claims: sub = user ID, name = display name, iat = now, exp = now + lifetime.
func (s *TokenService) Mint(userID uuid.UUID, name string) (string, error) {
	now := time.Now()

	c := sessionClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and checks a session token: signature, expiry, and
// structure. Returns the principal encoded in the claims.
//
// jwt.WithValidMethods pins the algorithm to HS256 — without it an attacker
// could present a token signed with "none" or confuse HMAC with RSA.
func (s *TokenService) Verify(tokenStr string) (Principal, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&sessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("%w: alg %v", ErrTokenUnsupported, token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Principal{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Principal{}, ErrTokenMalformed
		case errors.Is(err, ErrTokenUnsupported):
			return Principal{}, ErrTokenUnsupported
		default:
			return Principal{}, ErrTokenInvalid
		}
	}

	c, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return Principal{}, ErrTokenInvalid
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return Principal{}, ErrTokenInvalid
	}

	return Principal{UserID: userID, Name: c.Name}, nil
}
