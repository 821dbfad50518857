package domain

import (
	"time"
)

// Credential holds the per-user secret material, one row per user. The raw
// refresh token and restoration code are never stored; only their hashes.
type Credential struct {
	UserID       string
	PasswordHash string
	// RefreshTokenHash is the hash of the single active refresh token, or nil
	// when no session is active. Rotation overwrites; there is no history.
	RefreshTokenHash *string
	// RestoreCodeHash is non-nil only while a recovery flow is open.
	RestoreCodeHash      *string
	RestoreCodeExpiresAt *time.Time
	// PasswordResetRequired forces a password change on the next successful
	// authentication before normal access resumes.
	PasswordResetRequired bool
	UpdatedAt             time.Time
}

// HasActiveRestoreCode reports whether a restoration code is present and not
// yet expired at the given instant.
func (c *Credential) HasActiveRestoreCode(now time.Time) bool {
	if c.RestoreCodeHash == nil {
		return false
	}
	if c.RestoreCodeExpiresAt != nil && now.After(*c.RestoreCodeExpiresAt) {
		return false
	}
	return true
}
