package domain

import (
	"fmt"
	"strings"
	"time"
)

// RoleName is the single effective role an account holds locally. The set is
// closed; anything else coming from the identity provider is treated as noise.
type RoleName string

const (
	RoleAdmin    RoleName = "admin"
	RoleManager  RoleName = "manager"
	RoleEngineer RoleName = "engineer"
	RoleUser     RoleName = "user"
)

// ParseRole normalises and validates a role string.
func ParseRole(raw string) (RoleName, error) {
	switch RoleName(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleEngineer:
		return RoleEngineer, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// AccountStatus is the local account lifecycle state.
type AccountStatus string

const (
	StatusActive AccountStatus = "active"
	StatusLocked AccountStatus = "locked"
)

// ParseStatus normalises and validates an account status string.
func ParseStatus(raw string) (AccountStatus, error) {
	switch AccountStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusActive:
		return StatusActive, nil
	case StatusLocked:
		return StatusLocked, nil
	default:
		return "", fmt.Errorf("unknown account status %q", raw)
	}
}

// User is the locally stored directory entry for an identity-provider subject.
// Profile fields are pointers because a provisional row may predate the first
// token that carries them.
type User struct {
	ID           string
	Sub          string
	Email        *string
	Name         *string
	Username     *string
	Phone        *string
	Role         RoleName
	Status       AccountStatus
	LockedReason *string
	DepartmentID *string
	ManagerID    *string
	FirstLoginAt *time.Time
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Department is an organisational unit users can belong to.
type Department struct {
	ID          string
	Code        string
	Name        string
	Description *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RealmRole is a role definition as reported by the identity provider.
type RealmRole struct {
	ID          string
	Name        string
	Description string
}
