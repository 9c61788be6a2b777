package port

import (
	"context"
	"time"

	"github.com/slamint/account-management/internal/core/domain"
)

// UserSearchFilter carries the validated directory search predicates. All
// filters combine with AND; the free-text term expands across the four text
// columns with OR before being ANDed in.
type UserSearchFilter struct {
	Query         string
	Role          *domain.RoleName
	Status        *domain.AccountStatus
	DepartmentID  *string
	ManagerID     *string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	LastLoginFrom *time.Time
	LastLoginTo   *time.Time
	Sort          string
	Order         string
	Page          int
	Limit         int
}

// ProfilePatch carries the self-service mutable fields. Nil means "leave as is".
type ProfilePatch struct {
	Name  *string
	Phone *string
}

// UserRepository exposes persistence behaviour for the user directory.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetBySub(ctx context.Context, sub string) (*domain.User, error)
	GetMany(ctx context.Context, ids []string) ([]domain.User, error)

	// InsertProvisional inserts a new row keyed by sub; a unique-key conflict
	// is swallowed, making concurrent first logins collapse onto one row.
	InsertProvisional(ctx context.Context, user domain.User) error

	// TouchLogin applies the provisioning update for sub: last_login always,
	// first_login and each profile field only when currently null. Returns the
	// row as it stands after the update.
	TouchLogin(ctx context.Context, sub string, now time.Time, email, name, username *string) (*domain.User, error)

	Search(ctx context.Context, filter UserSearchFilter) ([]domain.User, int, error)

	UpdateRole(ctx context.Context, id string, role domain.RoleName) error
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, lockedReason *string) error
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error
	UpdateDepartment(ctx context.Context, id string, departmentID string) error
	UpdateManager(ctx context.Context, id string, managerID string, departmentID *string) error

	// ReassignReports moves every engineer reporting to oldManagerID under
	// newManagerID in a single statement, copying the new manager's department.
	ReassignReports(ctx context.Context, oldManagerID, newManagerID string, departmentID *string) (int64, error)

	CountReports(ctx context.Context, managerID string) (int, error)
	CountByDepartment(ctx context.Context, departmentID string) (int, error)
	Delete(ctx context.Context, id string) error
}
