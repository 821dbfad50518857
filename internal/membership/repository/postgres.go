package repository

import (
	"context"
	"database/sql"
	"errors"

	"quizdeck/internal/membership/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const membershipColumns = `user_id, organization_id, permission, approvement, created_at`

// GetByUserAndOrg returns the membership for the given user and org, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND organization_id = $2`,
		userID, orgID)
	var m domain.Membership
	if err := row.Scan(&m.UserID, &m.OrgID, &m.Permission, &m.Approvement, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListByOrg returns all memberships for the given org.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE organization_id = $1 ORDER BY created_at`,
		orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.UserID, &m.OrgID, &m.Permission, &m.Approvement, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Create persists the membership. The composite primary key rejects a second
// row for the same (user, org) pair.
func (r *PostgresRepository) Create(ctx context.Context, m *domain.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (user_id, organization_id, permission, approvement, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.UserID, m.OrgID, m.Permission, m.Approvement, m.CreatedAt)
	return err
}

// UpdateApprovement resolves a pending invite with a conditional update, so a
// second response to the same invite affects zero rows.
func (r *PostgresRepository) UpdateApprovement(ctx context.Context, userID, orgID string, to domain.Approvement) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE memberships SET approvement = $3
		 WHERE user_id = $1 AND organization_id = $2 AND approvement = 'pending'`,
		userID, orgID, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete removes the membership row, reporting whether one existed.
func (r *PostgresRepository) Delete(ctx context.Context, userID, orgID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = $1 AND organization_id = $2`,
		userID, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
