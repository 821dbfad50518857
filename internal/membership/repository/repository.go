package repository

import (
	"context"

	"quizdeck/internal/membership/domain"
)

// Repository defines persistence for memberships.
type Repository interface {
	GetByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error)
	ListByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
	// UpdateApprovement moves a PENDING membership to the given terminal state.
	// The update is conditional on the row still being pending; returns false
	// when no pending row matched (absent or already resolved).
	UpdateApprovement(ctx context.Context, userID, orgID string, to domain.Approvement) (bool, error)
	// Delete removes the membership row. Returns false when no row existed.
	Delete(ctx context.Context, userID, orgID string) (bool, error)
}
