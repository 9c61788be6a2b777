package domain

import "time"

// UserProvisionedEvent is emitted the first time a verified identity resolves
// to a freshly inserted local row.
type UserProvisionedEvent struct {
	EventID       string
	UserID        string
	Sub           string
	Role          RoleName
	ProvisionedAt time.Time
}

// UserStatusChangedEvent is emitted when an account is locked or unlocked.
type UserStatusChangedEvent struct {
	EventID   string
	UserID    string
	Status    AccountStatus
	Reason    string
	ChangedAt time.Time
}

// UserRoleChangedEvent is emitted after the identity provider confirmed a role
// replacement and the local cache was updated.
type UserRoleChangedEvent struct {
	EventID   string
	UserID    string
	OldRole   RoleName
	NewRole   RoleName
	ChangedAt time.Time
}

// UserManagerChangedEvent covers both single and bulk manager reassignment.
// Affected is 1 for single reassignments.
type UserManagerChangedEvent struct {
	EventID      string
	UserID       string
	OldManagerID string
	NewManagerID string
	Affected     int64
	ChangedAt    time.Time
}

// UserDepartmentChangedEvent is emitted when a user moves into another
// department.
type UserDepartmentChangedEvent struct {
	EventID      string
	UserID       string
	DepartmentID string
	ChangedAt    time.Time
}

// UserDeletedEvent is emitted after both the remote identity and the local row
// are gone.
type UserDeletedEvent struct {
	EventID   string
	UserID    string
	Sub       string
	DeletedAt time.Time
}

// UserInvitedEvent is emitted after a remote identity was created and the
// onboarding email was triggered.
type UserInvitedEvent struct {
	EventID   string
	UserID    string
	Email     string
	Role      RoleName
	InvitedAt time.Time
}
