package domain

import (
	"time"
)

// Membership links a user to an organization with a permission level and an
// approval state. Identity is the (UserID, OrgID) pair; the composite primary
// key guarantees at most one row per pair.
type Membership struct {
	UserID      string
	OrgID       string
	Permission  Permission
	Approvement Approvement
	CreatedAt   time.Time
}

// Permission is the access level a member holds inside an organization.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Valid reports whether p is a known permission level.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Approvement is the invite approval state. PENDING transitions exactly once
// to ACCEPTED or DECLINED; both are terminal.
type Approvement string

const (
	ApprovementPending  Approvement = "pending"
	ApprovementAccepted Approvement = "accepted"
	ApprovementDeclined Approvement = "declined"
)

// IsDecision reports whether a is a terminal response to an invite.
func (a Approvement) IsDecision() bool {
	return a == ApprovementAccepted || a == ApprovementDeclined
}

// HasWriteAccess reports whether the membership grants write access: the
// member must have accepted the invite and hold WRITE permission.
func (m *Membership) HasWriteAccess() bool {
	return m.Approvement == ApprovementAccepted && m.Permission == PermissionWrite
}
