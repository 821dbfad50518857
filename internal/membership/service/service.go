package service

import (
	"context"
	"errors"
	"time"

	"quizdeck/internal/membership/domain"
	userdomain "quizdeck/internal/user/domain"
)

// Sentinel errors for the membership service.
var (
	ErrForbidden         = errors.New("caller lacks write access in this organization")
	ErrAlreadyMember     = errors.New("user already has a membership in this organization")
	ErrMembershipMissing = errors.New("membership not found")
	ErrAlreadyResolved   = errors.New("invite already accepted or declined")
	ErrInvalidPermission = errors.New("permission must be read or write")
	ErrInvalidDecision   = errors.New("decision must be accepted or declined")
	ErrUserMissing       = errors.New("user not found")
)

// MembershipRepo is the persistence surface the service needs.
type MembershipRepo interface {
	GetByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error)
	ListByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error)
	Create(ctx context.Context, m *domain.Membership) error
	UpdateApprovement(ctx context.Context, userID, orgID string, to domain.Approvement) (bool, error)
	Delete(ctx context.Context, userID, orgID string) (bool, error)
}

// UserLookup resolves invitees by email.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// Service implements the organization membership state machine: invites start
// PENDING and resolve exactly once to ACCEPTED or DECLINED.
type Service struct {
	repo  MembershipRepo
	users UserLookup
}

func New(repo MembershipRepo, users UserLookup) *Service {
	return &Service{repo: repo, users: users}
}

// Invite creates a PENDING membership for the user identified by email. Only
// members with write access may invite. At most one membership per
// (user, organization) pair; an existing row in any state is a conflict.
func (s *Service) Invite(ctx context.Context, callerID, orgID, email string, permission domain.Permission) (*domain.Membership, error) {
	if !permission.Valid() {
		return nil, ErrInvalidPermission
	}
	if err := s.requireWriteAccess(ctx, callerID, orgID); err != nil {
		return nil, err
	}
	invitee, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if invitee == nil {
		return nil, ErrUserMissing
	}
	existing, err := s.repo.GetByUserAndOrg(ctx, invitee.ID, orgID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}
	m := &domain.Membership{
		UserID:      invitee.ID,
		OrgID:       orgID,
		Permission:  permission,
		Approvement: domain.ApprovementPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Respond resolves the caller's own pending invite to ACCEPTED or DECLINED.
// The transition is conditional on the row still being pending, so concurrent
// responses resolve exactly once.
func (s *Service) Respond(ctx context.Context, callerID, orgID string, decision domain.Approvement) error {
	if !decision.IsDecision() {
		return ErrInvalidDecision
	}
	updated, err := s.repo.UpdateApprovement(ctx, callerID, orgID, decision)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}
	// distinguish a missing invite from one already resolved
	m, err := s.repo.GetByUserAndOrg(ctx, callerID, orgID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrMembershipMissing
	}
	return ErrAlreadyResolved
}

// Remove deletes a membership. A member may always remove themselves (leave);
// removing anyone else requires write access.
func (s *Service) Remove(ctx context.Context, callerID, orgID, targetUserID string) error {
	if callerID != targetUserID {
		if err := s.requireWriteAccess(ctx, callerID, orgID); err != nil {
			return err
		}
	}
	deleted, err := s.repo.Delete(ctx, targetUserID, orgID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrMembershipMissing
	}
	return nil
}

// List returns all memberships of the organization, pending invites included.
// Only members of the organization may list.
func (s *Service) List(ctx context.Context, callerID, orgID string) ([]*domain.Membership, error) {
	m, err := s.repo.GetByUserAndOrg(ctx, callerID, orgID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Approvement != domain.ApprovementAccepted {
		return nil, ErrForbidden
	}
	return s.repo.ListByOrg(ctx, orgID)
}

// HasWriteAccess reports whether the user holds an accepted WRITE membership
// in the organization.
func (s *Service) HasWriteAccess(ctx context.Context, userID, orgID string) (bool, error) {
	m, err := s.repo.GetByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	return m != nil && m.HasWriteAccess(), nil
}

// IsMember reports whether the user holds an accepted membership of any level.
func (s *Service) IsMember(ctx context.Context, userID, orgID string) (bool, error) {
	m, err := s.repo.GetByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	return m != nil && m.Approvement == domain.ApprovementAccepted, nil
}

// AdmitAuthor records the organization author as an accepted WRITE member.
// Called by the organization service on creation.
func (s *Service) AdmitAuthor(ctx context.Context, authorID, orgID string) error {
	return s.repo.Create(ctx, &domain.Membership{
		UserID:      authorID,
		OrgID:       orgID,
		Permission:  domain.PermissionWrite,
		Approvement: domain.ApprovementAccepted,
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *Service) requireWriteAccess(ctx context.Context, userID, orgID string) error {
	ok, err := s.HasWriteAccess(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
