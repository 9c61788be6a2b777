package domain

import "time"

// DepartmentRef is the embedded department shape on a directory entry.
type DepartmentRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ManagerRef is the embedded reporting-manager shape on a directory entry.
type ManagerRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// UserView is the role-shaped representation of a directory entry. Relation
// fields are nil when the viewer is not allowed to see them.
type UserView struct {
	ID               string         `json:"id"`
	Sub              string         `json:"sub"`
	Email            string         `json:"email,omitempty"`
	Name             string         `json:"name,omitempty"`
	Username         string         `json:"username,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	Role             RoleName       `json:"role"`
	Status           AccountStatus  `json:"status"`
	LockedReason     string         `json:"lockedReason,omitempty"`
	Department       *DepartmentRef `json:"department,omitempty"`
	ReportingManager *ManagerRef    `json:"reportingManager,omitempty"`
	FirstLoginAt     *time.Time     `json:"firstLoginAt,omitempty"`
	LastLoginAt      *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// ShapeUser projects a stored user onto the view the given viewer role may
// see. The locked reason only surfaces while the account is actually locked.
func ShapeUser(u User, dept *Department, manager *User, viewer RoleName) UserView {
	view := UserView{
		ID:           u.ID,
		Sub:          u.Sub,
		Email:        deref(u.Email),
		Name:         deref(u.Name),
		Username:     deref(u.Username),
		Phone:        deref(u.Phone),
		Role:         u.Role,
		Status:       u.Status,
		FirstLoginAt: u.FirstLoginAt,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}

	if u.Status == StatusLocked {
		view.LockedReason = deref(u.LockedReason)
	}

	if !CanSeeRelations(viewer) {
		return view
	}

	if dept != nil {
		view.Department = &DepartmentRef{ID: dept.ID, Code: dept.Code, Name: dept.Name}
	}
	if manager != nil {
		view.ReportingManager = &ManagerRef{
			ID:    manager.ID,
			Name:  deref(manager.Name),
			Email: deref(manager.Email),
		}
	}

	return view
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
