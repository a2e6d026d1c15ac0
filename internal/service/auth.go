// Package service contains the business logic layer.
//
// Handlers parse HTTP and write responses; services enforce the rules and
// orchestrate the repositories, the object store, the token signer, the
// reset-token ledger, and the mail dispatcher. Services accept primitives
// and the request principal explicitly — nothing here knows about HTTP, and
// there is no ambient "current user".
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rdp/drivex-backend/internal/apperror"
	"github.com/rdp/drivex-backend/internal/auth"
	"github.com/rdp/drivex-backend/internal/model"
	"github.com/rdp/drivex-backend/internal/repository"
	"github.com/rdp/drivex-backend/internal/resettoken"
)

// ObjectStore is the slice of the storage client the services need.
// Declared here so tests can substitute a fake without touching HTTP.
type ObjectStore interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	CreateUserFolder(ctx context.Context, email string) error
}

// MailDispatcher sends password-reset messages.
type MailDispatcher interface {
	SendPasswordReset(email, resetURL string) error
}

// Session is the result of a successful authentication.
type Session struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
	Name        string `json:"name"`
	Email       string `json:"email"`
}

// AuthService implements registration, the two login flows, password
// changes, and the password-reset workflow.
type AuthService struct {
	users       repository.UserRepository
	tokens      *auth.TokenService
	passwords   *auth.PasswordService
	external    ExternalVerifier
	store       ObjectStore
	ledger      *resettoken.Ledger
	mailer      MailDispatcher
	frontendURL string
	expiresIn   time.Duration
	logger      *slog.Logger
}

// ExternalVerifier verifies federated identity tokens.
type ExternalVerifier interface {
	Verify(token string) (auth.ExternalClaims, error)
	UserInfo(ctx context.Context, accessToken string) (auth.ExternalClaims, error)
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	external ExternalVerifier,
	store ObjectStore,
	ledger *resettoken.Ledger,
	mailer MailDispatcher,
	frontendURL string,
	expiresIn time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		passwords:   passwords,
		external:    external,
		store:       store,
		ledger:      ledger,
		mailer:      mailer,
		frontendURL: frontendURL,
		expiresIn:   expiresIn,
		logger:      logger,
	}
}

// Register creates a local-password account and returns a session.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, apperror.BadRequest("Email address is already in use")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		AuthProvider: model.ProviderLocal,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent registration.
			return nil, apperror.BadRequest("Email address is already in use")
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID.String()),
		slog.String("email", user.Email),
	)

	s.createFolderBestEffort(ctx, user.Email)

	return s.mintSession(user)
}

// Login verifies an email/password pair and returns a session. Federated
// accounts have no password hash and always fail here.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("Invalid email or password")
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized("Invalid email or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized("Invalid email or password")
		}
		return nil, fmt.Errorf("verifying password: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID.String()))

	return s.mintSession(user)
}

// ChangePassword verifies the old password and stores a new hash.
// Existing sessions stay valid; tokens are stateless.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.PasswordHash == "" || s.passwords.Verify(user.PasswordHash, oldPassword) != nil {
		return apperror.BadRequest("Old password is incorrect")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("storing password: %w", err)
	}

	s.logger.Info("password changed", slog.String("userID", userID.String()))
	return nil
}

// LoginFederated exchanges a Supabase-issued identity token for a session,
// creating or updating the canonical user record on the way.
//
// Any verification or extraction failure collapses into one non-specific
// bad-request so the endpoint can't be used to probe token internals.
func (s *AuthService) LoginFederated(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := s.external.Verify(accessToken)
	if err != nil {
		// Older Supabase tokens verify against the secret but omit the
		// email claim; the user-info endpoint is the fallback.
		claims, err = s.external.UserInfo(ctx, accessToken)
		if err != nil {
			s.logger.Warn("federated token rejected")
			return nil, apperror.BadRequest("Invalid authentication token")
		}
	}

	user, err := s.reconcileFederatedUser(ctx, claims.Email, claims.Name)
	if err != nil {
		return nil, err
	}

	s.logger.Info("federated login",
		slog.String("userID", user.ID.String()),
		slog.String("email", user.Email),
	)

	s.createFolderBestEffort(ctx, user.Email)

	return s.mintSession(user)
}

// reconcileFederatedUser maps a verified external identity onto a single
// canonical row: read by email, update the name if it drifted, otherwise
// insert a FEDERATED user; a unique-violation on insert means another
// request created the row first, so re-read and use that one.
//
// Note the name update fires even when the incoming name is a synthesized
// fallback (email prefix), so a profile name set by one provider can be
// overwritten by the fallback on the next login. Kept to match the last
// writer-wins behavior the frontend expects.
func (s *AuthService) reconcileFederatedUser(ctx context.Context, email, name string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Name != name {
			if err := s.users.UpdateName(ctx, user.ID, name); err != nil {
				return nil, fmt.Errorf("updating user name: %w", err)
			}
			user.Name = name
		}
		return user, nil

	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{
			Name:         name,
			Email:        email,
			AuthProvider: model.ProviderGoogle,
		}
		createErr := s.users.CreateUser(ctx, user)
		if createErr == nil {
			return user, nil
		}
		if !errors.Is(createErr, repository.ErrDuplicate) {
			return nil, fmt.Errorf("creating federated user: %w", createErr)
		}

		// Concurrent creation race: the other writer won, use its row.
		s.logger.Warn("federated user creation race", slog.String("email", email))
		user, err = s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("creating federated user: %w", createErr)
		}
		return user, nil

	default:
		return nil, fmt.Errorf("fetching user: %w", err)
	}
}

// ForgotPassword mints a reset token and dispatches the reset mail.
// An unknown email is logged and silently succeeds — the endpoint must not
// reveal which addresses have accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("checking email: %w", err)
	}
	if !exists {
		s.logger.Warn("password reset requested for unknown email", slog.String("email", email))
		return nil
	}

	token, err := s.ledger.Mint(email)
	if err != nil {
		return fmt.Errorf("minting reset token: %w", err)
	}

	resetURL := s.frontendURL + "/reset-password?token=" + token
	if err := s.mailer.SendPasswordReset(email, resetURL); err != nil {
		return fmt.Errorf("sending reset mail: %w", err)
	}

	s.logger.Info("password reset initiated", slog.String("email", email))
	return nil
}

// ResetPassword consumes a reset token and stores the new password hash.
// The token is one-shot: it is removed before this returns, success or not
// past the lookup.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, ok := s.ledger.Lookup(token)
	if !ok {
		return apperror.BadRequest("Invalid or expired reset token")
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("storing password: %w", err)
	}

	s.ledger.Consume(token)

	s.logger.Info("password reset completed", slog.String("userID", user.ID.String()))
	return nil
}

// CurrentUser returns the record behind the request principal.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) mintSession(user *model.User) (*Session, error) {
	token, err := s.tokens.Mint(user.ID, user.Name)
	if err != nil {
		return nil, fmt.Errorf("minting session token: %w", err)
	}
	return &Session{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.expiresIn.Seconds()),
		Name:        user.Name,
		Email:       user.Email,
	}, nil
}

// createFolderBestEffort materializes the user's namespace in the object
// store. Failure is logged, never surfaced — the folder also appears
// implicitly on first upload.
func (s *AuthService) createFolderBestEffort(ctx context.Context, email string) {
	if err := s.store.CreateUserFolder(ctx, email); err != nil {
		s.logger.Warn("failed to create user folder",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}
}

func validateName(name string) error {
	if len(name) < 2 || len(name) > 100 {
		return apperror.ValidationFailed("name", "name must be between 2 and 100 characters")
	}
	return nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return apperror.ValidationFailed("email", "email must be a valid address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return apperror.ValidationFailed("password", "password must be at least 8 characters")
	}
	if len(password) > 72 {
		return apperror.ValidationFailed("password", "password must be 72 characters or fewer")
	}
	return nil
}
