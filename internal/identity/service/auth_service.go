package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	credentialdomain "quizdeck/internal/credential/domain"
	"quizdeck/internal/notification"
	"quizdeck/internal/security"
	userdomain "quizdeck/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP codes.
// ErrInvalidCredentials covers unknown email and wrong password alike so the
// boundary never discloses which check failed.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrInvalidRestoreCode     = errors.New("invalid restoration code")
	ErrWeakPassword           = errors.New("password must be at least 8 characters")
	ErrUserNotFound           = errors.New("user not found")
	ErrCodeDelivery           = errors.New("restoration code delivery failed")
	ErrInvalidEmail           = errors.New("invalid email address")
)

const minPasswordLength = 8

// Tokens is a freshly issued access/refresh pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthResult holds the outcome of any operation that authenticates a user.
// PasswordResetRequired signals the caller must route the user through a
// forced password change; the access token is restricted until it completes.
type AuthResult struct {
	Tokens                *Tokens
	UserID                string
	Email                 string
	PasswordResetRequired bool
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	Delete(ctx context.Context, id string) error
}

// CredentialRepo is the minimal credential repository needed by the auth service.
type CredentialRepo interface {
	Create(ctx context.Context, c *credentialdomain.Credential) error
	GetByUserID(ctx context.Context, userID string) (*credentialdomain.Credential, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*credentialdomain.Credential, error)
	SetRefreshToken(ctx context.Context, userID, hash string) error
	RotateRefreshToken(ctx context.Context, userID, oldHash, newHash string) (bool, error)
	SetRestoreCode(ctx context.Context, userID, codeHash string, expiresAt time.Time) error
	ConsumeRestoreCode(ctx context.Context, userID, codeHash, newPasswordHash, newRefreshHash string) (bool, error)
	UpdatePassword(ctx context.Context, userID, newPasswordHash, newRefreshHash string) (bool, error)
	SetPasswordResetRequired(ctx context.Context, userID string, required bool) error
}

// AuthService implements sign-up, sign-in, refresh rotation, email-code
// password recovery, and the forced password reset path.
type AuthService struct {
	userRepo UserRepo
	credRepo CredentialRepo
	sender   notification.CodeSender
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	codeTTL  time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	userRepo UserRepo,
	credRepo CredentialRepo,
	sender notification.CodeSender,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	codeTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		credRepo: credRepo,
		sender:   sender,
		hasher:   hasher,
		tokens:   tokens,
		codeTTL:  codeTTL,
	}
}

// SignUp creates a user with the given email and password and signs them in.
func (s *AuthService) SignUp(ctx context.Context, name, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	refreshToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshHash := security.HashRefreshToken(refreshToken)
	cred := &credentialdomain.Credential{
		UserID:           user.ID,
		PasswordHash:     hashed,
		RefreshTokenHash: &refreshHash,
		UpdatedAt:        now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.credRepo.Create(ctx, cred); err != nil {
		return nil, err
	}
	return s.result(user, refreshToken, false)
}

// SignIn authenticates with email/password and rotates the refresh token.
// When a forced password reset is pending, the result signals it and the
// issued access token is restricted to the reset flow.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, cred, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || cred == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(cred.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	refreshToken, err := s.installRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.result(user, refreshToken, cred.PasswordResetRequired)
}

// Refresh exchanges a valid refresh token for a fresh access/refresh pair.
// Rotation is a compare-and-swap on the stored hash: a stolen, already-rotated
// token loses the race and cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	oldHash := security.HashRefreshToken(refreshToken)
	cred, err := s.credRepo.GetByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, ErrInvalidRefreshToken
	}
	newToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	rotated, err := s.credRepo.RotateRefreshToken(ctx, cred.UserID, oldHash, security.HashRefreshToken(newToken))
	if err != nil {
		return nil, err
	}
	if !rotated {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.userRepo.GetByID(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}
	return s.result(user, newToken, cred.PasswordResetRequired)
}

// RequestPasswordRecovery opens a recovery flow: generates a restoration code,
// persists its hash with a short expiry, and emails it. Unknown emails return
// success without side effects so callers cannot probe for accounts; a mailer
// failure is reported, not swallowed.
func (s *AuthService) RequestPasswordRecovery(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	code, err := security.GenerateRestoreCode()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(s.codeTTL)
	if err := s.credRepo.SetRestoreCode(ctx, user.ID, security.HashRestoreCode(code), expiresAt); err != nil {
		return err
	}
	if err := s.sender.SendCode(ctx, email, code); err != nil {
		return fmt.Errorf("%w: %v", ErrCodeDelivery, err)
	}
	return nil
}

// VerifyRecoveryCode checks a restoration code without consuming it; the code
// stays valid until RestorePassword completes. The returned flag tells the
// caller whether a forced password reset is additionally pending.
func (s *AuthService) VerifyRecoveryCode(ctx context.Context, email, code string) (resetRequired bool, err error) {
	cred, err := s.activeCodeCredential(ctx, normalizeEmail(email), code)
	if err != nil {
		return false, err
	}
	return cred.PasswordResetRequired, nil
}

// RestorePassword consumes the restoration code and installs the new password.
// Consumption is a single conditional update, so two concurrent calls with the
// same code produce exactly one success. Clears the forced-reset flag and
// rotates the refresh token.
func (s *AuthService) RestorePassword(ctx context.Context, email, code, newPassword string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRestoreCode
	}
	newHash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return nil, err
	}
	refreshToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	consumed, err := s.credRepo.ConsumeRestoreCode(ctx, user.ID,
		security.HashRestoreCode(code), newHash, security.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrInvalidRestoreCode
	}
	return s.result(user, refreshToken, false)
}

// SignInWithCode unifies the one-time-password challenge during sign-in and
// the forgot-password code verification step into one transition table:
//
//	flow      code     password   outcome
//	forgot    mismatch skipped    ErrInvalidRestoreCode
//	forgot    match    skipped    tokens issued, reset flag reported
//	challenge mismatch -          ErrInvalidRestoreCode
//	challenge match    mismatch   ErrInvalidCredentials
//	challenge match    match      tokens issued, reset flag reported
//
// The code is not consumed here; only RestorePassword consumes it.
func (s *AuthService) SignInWithCode(ctx context.Context, email, password, code string, forgotPasswordFlow bool) (*AuthResult, error) {
	email = normalizeEmail(email)
	cred, err := s.activeCodeCredential(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if !forgotPasswordFlow {
		if err := s.hasher.Compare(cred.PasswordHash, []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
	}
	user, err := s.userRepo.GetByID(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRestoreCode
	}
	refreshToken, err := s.installRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.result(user, refreshToken, cred.PasswordResetRequired)
}

// ChangePassword replaces the password of an already-authenticated user. This
// is how a forced reset completes when the user signed in with their old
// password or a one-time code: no emailed restoration code is involved, the
// restricted token proves the authentication. Clears the forced-reset flag and
// any open restore code, rotates the refresh token, and issues unrestricted
// tokens.
func (s *AuthService) ChangePassword(ctx context.Context, userID, newPassword string) (*AuthResult, error) {
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	newHash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return nil, err
	}
	refreshToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	updated, err := s.credRepo.UpdatePassword(ctx, userID, newHash, security.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrUserNotFound
	}
	return s.result(user, refreshToken, false)
}

// RequirePasswordReset flags the account so the next successful authentication
// forces a password change. Used by admin tooling and the seed command.
func (s *AuthService) RequirePasswordReset(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.credRepo.SetPasswordResetRequired(ctx, userID, true)
}

// DeleteAccount removes the user; the credential row and memberships cascade.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.userRepo.Delete(ctx, userID)
}

// lookup fetches the user and credential for email. Missing rows come back nil.
func (s *AuthService) lookup(ctx context.Context, email string) (*userdomain.User, *credentialdomain.Credential, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, nil
	}
	cred, err := s.credRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, cred, nil
}

// activeCodeCredential returns the credential when email holds an unexpired
// restoration code matching the supplied one; ErrInvalidRestoreCode otherwise.
// Missing accounts fail the same way as wrong codes.
func (s *AuthService) activeCodeCredential(ctx context.Context, email, code string) (*credentialdomain.Credential, error) {
	_, cred, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if cred == nil || !cred.HasActiveRestoreCode(time.Now().UTC()) {
		return nil, ErrInvalidRestoreCode
	}
	if !security.RestoreCodeEqual(code, *cred.RestoreCodeHash) {
		return nil, ErrInvalidRestoreCode
	}
	return cred, nil
}

// installRefreshToken mints a refresh token and overwrites the stored hash.
// Used after a full re-authentication; the refresh endpoint uses the CAS
// rotation instead.
func (s *AuthService) installRefreshToken(ctx context.Context, userID string) (string, error) {
	token, err := security.NewRefreshToken()
	if err != nil {
		return "", err
	}
	if err := s.credRepo.SetRefreshToken(ctx, userID, security.HashRefreshToken(token)); err != nil {
		return "", err
	}
	return token, nil
}

func (s *AuthService) result(user *userdomain.User, refreshToken string, resetRequired bool) (*AuthResult, error) {
	access, expiresAt, err := s.tokens.IssueAccess(user.ID, user.Email, resetRequired)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Tokens: &Tokens{
			AccessToken:  access,
			RefreshToken: refreshToken,
			ExpiresAt:    expiresAt,
		},
		UserID:                user.ID,
		Email:                 user.Email,
		PasswordResetRequired: resetRequired,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validateEmail(email string) error {
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
