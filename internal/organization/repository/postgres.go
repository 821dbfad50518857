package repository

import (
	"context"
	"database/sql"
	"errors"

	"quizdeck/internal/organization/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const orgSelect = `SELECT o.id, o.title, o.description, o.color, o.author_id, u.name, o.created_at
	 FROM organizations o
	 JOIN users u ON u.id = o.author_id`

// GetByID returns the organization for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Org, error) {
	row := r.db.QueryRowContext(ctx, orgSelect+` WHERE o.id = $1`, id)
	var o domain.Org
	if err := row.Scan(&o.ID, &o.Title, &o.Description, &o.Color, &o.AuthorID, &o.AuthorName, &o.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// ListByMember returns organizations where the user holds an accepted membership.
func (r *PostgresRepository) ListByMember(ctx context.Context, userID string) ([]*domain.Org, error) {
	rows, err := r.db.QueryContext(ctx,
		orgSelect+`
		 JOIN memberships m ON m.organization_id = o.id
		 WHERE m.user_id = $1 AND m.approvement = 'accepted'
		 ORDER BY o.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Org
	for rows.Next() {
		var o domain.Org
		if err := rows.Scan(&o.ID, &o.Title, &o.Description, &o.Color, &o.AuthorID, &o.AuthorName, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// Create persists the organization. The organization must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Org) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, title, description, color, author_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.Title, o.Description, o.Color, o.AuthorID, o.CreatedAt)
	return err
}

// Update rewrites the mutable fields, reporting whether a row matched.
func (r *PostgresRepository) Update(ctx context.Context, o *domain.Org) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET title = $2, description = $3, color = $4 WHERE id = $1`,
		o.ID, o.Title, o.Description, o.Color)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete removes the organization row, reporting whether one existed.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
