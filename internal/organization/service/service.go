package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quizdeck/internal/organization/domain"
)

// Sentinel errors for the organization service.
var (
	ErrOrgNotFound  = errors.New("organization not found")
	ErrForbidden    = errors.New("caller lacks access to this organization")
	ErrInvalidInput = errors.New("invalid organization")
)

// OrgRepo is the persistence surface the service needs.
type OrgRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Org, error)
	ListByMember(ctx context.Context, userID string) ([]*domain.Org, error)
	Create(ctx context.Context, o *domain.Org) error
	Update(ctx context.Context, o *domain.Org) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// AccessChecker answers membership questions; backed by the membership service.
type AccessChecker interface {
	IsMember(ctx context.Context, userID, orgID string) (bool, error)
	HasWriteAccess(ctx context.Context, userID, orgID string) (bool, error)
	AdmitAuthor(ctx context.Context, authorID, orgID string) error
}

// Service manages organizations. Reads require an accepted membership; writes
// require WRITE permission.
type Service struct {
	repo   OrgRepo
	access AccessChecker
}

func New(repo OrgRepo, access AccessChecker) *Service {
	return &Service{repo: repo, access: access}
}

// Create persists a new organization and admits the author as an accepted
// WRITE member, so the author can manage it immediately.
func (s *Service) Create(ctx context.Context, authorID, title, description, color string) (*domain.Org, error) {
	o := &domain.Org{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Color:       color,
		AuthorID:    authorID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	if err := s.access.AdmitAuthor(ctx, authorID, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// Get returns the organization when the caller is an accepted member.
// Non-members get ErrForbidden even for existing organizations; a missing
// organization is reported the same way to avoid confirming its existence.
func (s *Service) Get(ctx context.Context, callerID, orgID string) (*domain.Org, error) {
	ok, err := s.access.IsMember(ctx, callerID, orgID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	o, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrgNotFound
	}
	return o, nil
}

// ListForUser returns the organizations in which the user holds an accepted
// membership, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*domain.Org, error) {
	return s.repo.ListByMember(ctx, userID)
}

// Update rewrites the mutable fields. Requires write access.
func (s *Service) Update(ctx context.Context, callerID, orgID, title, description, color string) (*domain.Org, error) {
	if err := s.requireWrite(ctx, callerID, orgID); err != nil {
		return nil, err
	}
	current, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrOrgNotFound
	}
	current.Title = title
	current.Description = description
	current.Color = color
	if err := current.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrOrgNotFound
	}
	return current, nil
}

// Delete removes the organization; memberships cascade. Requires write access.
func (s *Service) Delete(ctx context.Context, callerID, orgID string) error {
	if err := s.requireWrite(ctx, callerID, orgID); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, orgID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrOrgNotFound
	}
	return nil
}

func (s *Service) requireWrite(ctx context.Context, userID, orgID string) error {
	ok, err := s.access.HasWriteAccess(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
