package repository

import (
	"context"
	"time"

	"quizdeck/internal/credential/domain"
)

// Repository defines persistence for credentials. The rotate and consume
// operations are conditional updates: they succeed only when the stored value
// still matches, so concurrent callers racing on the same row get exactly one
// winner.
type Repository interface {
	Create(ctx context.Context, c *domain.Credential) error
	GetByUserID(ctx context.Context, userID string) (*domain.Credential, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Credential, error)
	// SetRefreshToken overwrites the stored refresh token hash. Used after a
	// full re-authentication (sign-up, sign-in, password restore).
	SetRefreshToken(ctx context.Context, userID, hash string) error
	// RotateRefreshToken swaps oldHash for newHash only if oldHash is still the
	// stored value. Returns false when the swap lost the race or the token was
	// already rotated.
	RotateRefreshToken(ctx context.Context, userID, oldHash, newHash string) (bool, error)
	// SetRestoreCode opens a recovery flow: stores the code hash and its expiry,
	// replacing any previous code.
	SetRestoreCode(ctx context.Context, userID, codeHash string, expiresAt time.Time) error
	// ConsumeRestoreCode atomically completes a recovery: only if codeHash still
	// matches an unexpired stored code, it sets the new password hash, clears
	// the code, clears the forced-reset flag, and installs the new refresh
	// token hash. Returns false when the code did not match.
	ConsumeRestoreCode(ctx context.Context, userID, codeHash, newPasswordHash, newRefreshHash string) (bool, error)
	// UpdatePassword replaces the password hash, clears the forced-reset flag
	// and any open restore code, and installs the new refresh token hash.
	// Returns false when no credential row exists for the user.
	UpdatePassword(ctx context.Context, userID, newPasswordHash, newRefreshHash string) (bool, error)
	// SetPasswordResetRequired toggles the forced password reset flag.
	SetPasswordResetRequired(ctx context.Context, userID string, required bool) error
}
