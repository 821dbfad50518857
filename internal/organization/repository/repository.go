package repository

import (
	"context"

	"quizdeck/internal/organization/domain"
)

// Repository defines persistence for organizations.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Org, error)
	// ListByMember returns organizations in which the user holds an accepted
	// membership, newest first.
	ListByMember(ctx context.Context, userID string) ([]*domain.Org, error)
	Create(ctx context.Context, o *domain.Org) error
	// Update rewrites title, description, and color. Returns false when no row
	// existed.
	Update(ctx context.Context, o *domain.Org) (bool, error)
	// Delete removes the organization; memberships cascade via FK. Returns
	// false when no row existed.
	Delete(ctx context.Context, id string) (bool, error)
}
