package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"quizdeck/internal/credential/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a credential repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const credentialColumns = `user_id, password_hash, refresh_token_hash, restore_code_hash, restore_code_expires_at, password_reset_required, updated_at`

// Create persists the credential row for a new user.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, password_hash, refresh_token_hash, restore_code_hash, restore_code_expires_at, password_reset_required, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.UserID, c.PasswordHash, c.RefreshTokenHash, c.RestoreCodeHash, c.RestoreCodeExpiresAt, c.PasswordResetRequired, c.UpdatedAt)
	return err
}

// GetByUserID returns the credential for userID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*domain.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id = $1`, userID)
	return scanCredential(row)
}

// GetByRefreshTokenHash resolves the credential holding the given refresh token
// hash, or nil if no session carries it.
func (r *PostgresRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE refresh_token_hash = $1`, hash)
	return scanCredential(row)
}

// SetRefreshToken overwrites the stored refresh token hash unconditionally.
func (r *PostgresRepository) SetRefreshToken(ctx context.Context, userID, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET refresh_token_hash = $2, updated_at = now() WHERE user_id = $1`,
		userID, hash)
	return err
}

// RotateRefreshToken swaps oldHash for newHash in a single conditional update.
// Returns false when the stored value no longer matches oldHash.
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, userID, oldHash, newHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET refresh_token_hash = $3, updated_at = now()
		 WHERE user_id = $1 AND refresh_token_hash = $2`,
		userID, oldHash, newHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetRestoreCode stores the restoration code hash and expiry, replacing any
// previously issued code so exactly one code is active per user.
func (r *PostgresRepository) SetRestoreCode(ctx context.Context, userID, codeHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET restore_code_hash = $2, restore_code_expires_at = $3, updated_at = now()
		 WHERE user_id = $1`,
		userID, codeHash, expiresAt)
	return err
}

// ConsumeRestoreCode completes a recovery in one conditional update. The WHERE
// clause carries the code match and expiry check, so two racing callers with
// the same code produce exactly one success.
func (r *PostgresRepository) ConsumeRestoreCode(ctx context.Context, userID, codeHash, newPasswordHash, newRefreshHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials
		 SET password_hash = $3,
		     restore_code_hash = NULL,
		     restore_code_expires_at = NULL,
		     password_reset_required = FALSE,
		     refresh_token_hash = $4,
		     updated_at = now()
		 WHERE user_id = $1
		   AND restore_code_hash = $2
		   AND (restore_code_expires_at IS NULL OR restore_code_expires_at > now())`,
		userID, codeHash, newPasswordHash, newRefreshHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdatePassword replaces the password in place: new hash, forced-reset flag
// and restore code cleared, fresh refresh token hash installed.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID, newPasswordHash, newRefreshHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials
		 SET password_hash = $2,
		     restore_code_hash = NULL,
		     restore_code_expires_at = NULL,
		     password_reset_required = FALSE,
		     refresh_token_hash = $3,
		     updated_at = now()
		 WHERE user_id = $1`,
		userID, newPasswordHash, newRefreshHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetPasswordResetRequired toggles the forced password reset flag.
func (r *PostgresRepository) SetPasswordResetRequired(ctx context.Context, userID string, required bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET password_reset_required = $2, updated_at = now() WHERE user_id = $1`,
		userID, required)
	return err
}

func scanCredential(row *sql.Row) (*domain.Credential, error) {
	var c domain.Credential
	if err := row.Scan(&c.UserID, &c.PasswordHash, &c.RefreshTokenHash, &c.RestoreCodeHash, &c.RestoreCodeExpiresAt, &c.PasswordResetRequired, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
