package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slamint/account-management/internal/apperr"
	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
	"github.com/slamint/account-management/internal/repository"
)

// selfPatchFields is the hard allow-list for self-service updates. Anything
// outside it is rejected outright so self-service can never reach a
// privileged branch.
var selfPatchFields = map[string]struct{}{
	"name":  {},
	"phone": {},
}

// BulkResult reports how many rows a bulk reassignment moved.
type BulkResult struct {
	Affected int64 `json:"affected"`
}

// InviteInput carries the validated invite payload.
type InviteInput struct {
	Email        string
	FirstName    string
	LastName     string
	Username     string
	Role         string
	DepartmentID *string
	ManagerID    *string
}

func (s *DirectoryService) loadUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("get user: %w", err))
	}
	return user, nil
}

// UpdateSelf applies a self-service profile patch. The patch arrives as raw
// keys so a privileged field can be rejected by name instead of silently
// dropped.
func (s *DirectoryService) UpdateSelf(ctx context.Context, actor domain.User, patch map[string]any) (*domain.UserView, error) {
	var profile port.ProfilePatch
	for key, raw := range patch {
		if _, ok := selfPatchFields[key]; !ok {
			return nil, apperr.BadRequest(apperr.CodeRestrictedField, fmt.Sprintf("Field %q cannot be updated through self-service.", key))
		}

		value, ok := raw.(string)
		if !ok {
			return nil, apperr.BadRequest(apperr.CodeValidation, fmt.Sprintf("Field %q must be a string.", key))
		}
		value = strings.TrimSpace(value)

		switch key {
		case "name":
			profile.Name = &value
		case "phone":
			profile.Phone = &value
		}
	}

	if profile.Name == nil && profile.Phone == nil {
		view := s.shapeOne(ctx, actor, actor.Role)
		return &view, nil
	}

	if err := s.users.UpdateProfile(ctx, actor.ID, profile); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("update profile: %w", err))
	}

	updated, err := s.loadUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	view := s.shapeOne(ctx, *updated, actor.Role)
	return &view, nil
}

// ChangeStatus locks or unlocks an account. Locking stores the reason (empty
// string if omitted); unlocking clears it unconditionally.
func (s *DirectoryService) ChangeStatus(ctx context.Context, actor domain.User, id, status, reason string) (*domain.UserView, error) {
	if err := validateID(id, apperr.CodeInvalidUserID); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return nil, apperr.BadRequest(apperr.CodeInvalidStatus, "Status must be one of: active, locked.")
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	var lockedReason *string
	if parsed == domain.StatusLocked {
		lockedReason = &reason
	}

	if err := s.users.UpdateStatus(ctx, user.ID, parsed, lockedReason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("update status: %w", err))
	}

	user.Status = parsed
	user.LockedReason = lockedReason

	event := domain.UserStatusChangedEvent{
		UserID:    user.ID,
		Status:    parsed,
		Reason:    reason,
		ChangedAt: s.now(),
	}
	if err := s.events.PublishUserStatusChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish status changed event", zap.String("user_id", user.ID), zap.Error(err))
	}

	view := s.shapeOne(ctx, *user, actor.Role)
	return &view, nil
}

// UpdateDepartment moves a manager or engineer into another department.
// Admins and plain users never hold one.
func (s *DirectoryService) UpdateDepartment(ctx context.Context, actor domain.User, id, departmentID string) (*domain.UserView, error) {
	if err := validateID(id, apperr.CodeInvalidUserID); err != nil {
		return nil, err
	}
	if departmentID == "" {
		return nil, apperr.BadRequest(apperr.CodeDeptIDRequired, "departmentId is required.")
	}
	if err := validateID(departmentID, apperr.CodeInvalidDept); err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.Role != domain.RoleManager && user.Role != domain.RoleEngineer {
		return nil, apperr.BadRequest(apperr.CodeRoleNotAssignable, "Only managers and engineers can hold a department.")
	}

	if _, err := s.departments.GetByID(ctx, departmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeDeptNotFound, "Department not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("get department: %w", err))
	}

	if err := s.users.UpdateDepartment(ctx, user.ID, departmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("update department: %w", err))
	}

	user.DepartmentID = &departmentID

	event := domain.UserDepartmentChangedEvent{
		UserID:       user.ID,
		DepartmentID: departmentID,
		ChangedAt:    s.now(),
	}
	if err := s.events.PublishUserDepartmentChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish department changed event", zap.String("user_id", user.ID), zap.Error(err))
	}

	view := s.shapeOne(ctx, *user, actor.Role)
	return &view, nil
}

// UpdateManager assigns an engineer to a manager. The engineer's department
// always follows the manager's, they cannot diverge.
func (s *DirectoryService) UpdateManager(ctx context.Context, actor domain.User, id, managerID string) (*domain.UserView, error) {
	if err := validateID(id, apperr.CodeInvalidUserID); err != nil {
		return nil, err
	}
	if managerID == "" {
		return nil, apperr.BadRequest(apperr.CodeManagerIDRequired, "managerId is required.")
	}
	if err := validateID(managerID, apperr.CodeInvalidManagerID); err != nil {
		return nil, err
	}
	if id == managerID {
		return nil, apperr.BadRequest(apperr.CodeInvalidManagerID, "A user cannot be their own manager.")
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != domain.RoleEngineer {
		return nil, apperr.BadRequest(apperr.CodeManagerNotAssignable, "A reporting manager can only be assigned to engineers.")
	}

	manager, err := s.users.GetByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeManagerNotFound, "Manager not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("get manager: %w", err))
	}
	if manager.Role != domain.RoleManager {
		return nil, apperr.NotFound(apperr.CodeManagerNotFound, "Manager not found.")
	}
	if manager.DepartmentID == nil {
		return nil, apperr.BadRequest(apperr.CodeDeptNotAssigned, "Manager has no department assigned.")
	}

	if err := s.users.UpdateManager(ctx, user.ID, manager.ID, manager.DepartmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("update manager: %w", err))
	}

	oldManagerID := ""
	if user.ManagerID != nil {
		oldManagerID = *user.ManagerID
	}
	user.ManagerID = &manager.ID
	user.DepartmentID = manager.DepartmentID

	event := domain.UserManagerChangedEvent{
		UserID:       user.ID,
		OldManagerID: oldManagerID,
		NewManagerID: manager.ID,
		Affected:     1,
		ChangedAt:    s.now(),
	}
	if err := s.events.PublishUserManagerChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish manager changed event", zap.String("user_id", user.ID), zap.Error(err))
	}

	view := s.shapeOne(ctx, *user, actor.Role)
	return &view, nil
}

// BulkUpdateManager atomically moves every engineer reporting to one manager
// under another. Zero current reports is a successful no-op.
func (s *DirectoryService) BulkUpdateManager(ctx context.Context, actor domain.User, oldManagerID, newManagerID string) (*BulkResult, error) {
	if err := validateID(oldManagerID, apperr.CodeInvalidManagerID); err != nil {
		return nil, err
	}
	if err := validateID(newManagerID, apperr.CodeInvalidNewManagerID); err != nil {
		return nil, err
	}
	if oldManagerID == newManagerID {
		return nil, apperr.BadRequest(apperr.CodeInvalidNewManagerID, "New manager must differ from the current one.")
	}

	oldManager, err := s.users.GetByID(ctx, oldManagerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeManagerNotFound, "Manager not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("get old manager: %w", err))
	}
	if oldManager.Role != domain.RoleManager {
		return nil, apperr.NotFound(apperr.CodeManagerNotFound, "Manager not found.")
	}

	newManager, err := s.users.GetByID(ctx, newManagerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeManagerNotFound, "Manager not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("get new manager: %w", err))
	}
	if newManager.Role != domain.RoleManager {
		return nil, apperr.NotFound(apperr.CodeManagerNotFound, "Manager not found.")
	}
	if newManager.DepartmentID == nil {
		return nil, apperr.BadRequest(apperr.CodeDeptNotAssigned, "New manager has no department assigned.")
	}

	count, err := s.users.CountReports(ctx, oldManagerID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("count reports: %w", err))
	}
	if count == 0 {
		return &BulkResult{Affected: 0}, nil
	}

	affected, err := s.users.ReassignReports(ctx, oldManagerID, newManagerID, newManager.DepartmentID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("reassign reports: %w", err))
	}

	event := domain.UserManagerChangedEvent{
		OldManagerID: oldManagerID,
		NewManagerID: newManagerID,
		Affected:     affected,
		ChangedAt:    s.now(),
	}
	if err := s.events.PublishUserManagerChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish manager changed event", zap.Error(err))
	}

	return &BulkResult{Affected: affected}, nil
}

// ChangeRole replaces a user's role. The local column only commits after the
// identity provider confirmed the replacement and the returned set contains
// the requested role.
func (s *DirectoryService) ChangeRole(ctx context.Context, actor domain.User, id, newRole string) (*domain.UserView, error) {
	if err := validateID(id, apperr.CodeInvalidUserID); err != nil {
		return nil, err
	}

	wanted, err := domain.ParseRole(newRole)
	if err != nil {
		return nil, apperr.BadRequest(apperr.CodeRoleNotExist, "Unknown role.")
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}

	// Guard before any provider call: a manager cannot be orphaned out while
	// owning reports.
	if user.Role == domain.RoleManager {
		count, err := s.users.CountReports(ctx, user.ID)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("count reports: %w", err))
		}
		if count > 0 {
			return nil, apperr.Conflict(apperr.CodeManagerHasEngineer, "Manager still has engineers reporting to them.")
		}
	}

	if user.Role == wanted {
		return nil, apperr.BadRequest(apperr.CodeRoleMustDiffer, "New role must differ from the current role.")
	}

	resulting, err := s.provider.ReplaceUserRoles(ctx, user.Sub, wanted)
	if err != nil {
		if errors.Is(err, port.ErrRemoteUserNotFound) {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found at the identity provider.")
		}
		return nil, apperr.Internal(fmt.Errorf("replace remote roles: %w", err))
	}

	confirmed := false
	for _, role := range resulting {
		if role == wanted {
			confirmed = true
			break
		}
	}
	if !confirmed {
		return nil, apperr.Internal(fmt.Errorf("identity provider did not confirm role %s (got %v)", wanted, resulting))
	}

	if err := s.users.UpdateRole(ctx, user.ID, wanted); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("update role: %w", err))
	}

	event := domain.UserRoleChangedEvent{
		UserID:    user.ID,
		OldRole:   user.Role,
		NewRole:   wanted,
		ChangedAt: s.now(),
	}
	if err := s.events.PublishUserRoleChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish role changed event", zap.String("user_id", user.ID), zap.Error(err))
	}

	user.Role = wanted

	view := s.shapeOne(ctx, *user, actor.Role)
	return &view, nil
}

// DeleteUser deletes remotely first, then locally. A failed remote delete
// leaves both sides intact so the stores never diverge.
func (s *DirectoryService) DeleteUser(ctx context.Context, actor domain.User, id string) (bool, error) {
	if err := validateID(id, apperr.CodeInvalidUserID); err != nil {
		return false, err
	}

	user, err := s.loadUser(ctx, id)
	if err != nil {
		return false, err
	}

	if user.Role == domain.RoleManager {
		count, err := s.users.CountReports(ctx, user.ID)
		if err != nil {
			return false, apperr.Internal(fmt.Errorf("count reports: %w", err))
		}
		if count > 0 {
			return false, apperr.Conflict(apperr.CodeManagerHasEngineer, "Manager still has engineers reporting to them.")
		}
	}

	if err := s.provider.DeleteUser(ctx, user.Sub); err != nil {
		if errors.Is(err, port.ErrRemoteUserNotFound) {
			// Remote identity already gone; removing the local shadow is the
			// converging move.
			s.logger.Warn("remote identity already absent during delete",
				zap.String("user_id", user.ID),
				zap.String("sub", user.Sub),
			)
		} else {
			return false, apperr.Internal(fmt.Errorf("delete remote user: %w", err))
		}
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
		}
		return false, apperr.Internal(fmt.Errorf("delete user: %w", err))
	}

	event := domain.UserDeletedEvent{
		UserID:    user.ID,
		Sub:       user.Sub,
		DeletedAt: s.now(),
	}
	if err := s.events.PublishUserDeleted(ctx, event); err != nil {
		s.logger.Warn("failed to publish user deleted event", zap.String("user_id", user.ID), zap.Error(err))
	}

	return true, nil
}

// InviteUser validates the linkage for the requested role, creates the remote
// identity, seeds the local row through the same idempotent upsert as
// provisioning and triggers the onboarding email. No remote identity is
// created when any validation fails.
func (s *DirectoryService) InviteUser(ctx context.Context, actor domain.User, input InviteInput) (*domain.UserView, error) {
	if strings.TrimSpace(input.Email) == "" {
		return nil, apperr.BadRequest(apperr.CodeValidation, "Email is required.")
	}

	wanted, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, apperr.BadRequest(apperr.CodeRoleNotExist, "Unknown role.")
	}

	catalog, err := s.provider.ListRealmRoles(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list realm roles: %w", err))
	}
	known := false
	for _, role := range catalog {
		if role.Name == string(wanted) {
			known = true
			break
		}
	}
	if !known {
		return nil, apperr.BadRequest(apperr.CodeRoleNotExist, "Role does not exist at the identity provider.")
	}

	var departmentID, managerID *string

	switch wanted {
	case domain.RoleManager:
		if input.DepartmentID == nil || *input.DepartmentID == "" {
			return nil, apperr.BadRequest(apperr.CodeDeptIDRequired, "departmentId is required for managers.")
		}
		if err := validateID(*input.DepartmentID, apperr.CodeInvalidDept); err != nil {
			return nil, err
		}
		if _, err := s.departments.GetByID(ctx, *input.DepartmentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperr.NotFound(apperr.CodeDeptNotFound, "Department not found.")
			}
			return nil, apperr.Internal(fmt.Errorf("get department: %w", err))
		}
		departmentID = input.DepartmentID

	case domain.RoleEngineer:
		if input.ManagerID == nil || *input.ManagerID == "" {
			return nil, apperr.BadRequest(apperr.CodeManagerIDRequired, "managerId is required for engineers.")
		}
		if err := validateID(*input.ManagerID, apperr.CodeInvalidManagerID); err != nil {
			return nil, err
		}
		manager, err := s.users.GetByID(ctx, *input.ManagerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperr.NotFound(apperr.CodeManagerNotFound, "Manager not found.")
			}
			return nil, apperr.Internal(fmt.Errorf("get manager: %w", err))
		}
		if manager.Role != domain.RoleManager {
			return nil, apperr.NotFound(apperr.CodeManagerNotFound, "Manager not found.")
		}
		managerID = input.ManagerID
		departmentID = manager.DepartmentID
	}

	username := strings.TrimSpace(input.Username)
	if username == "" {
		username = strings.SplitN(input.Email, "@", 2)[0]
	}

	remoteID, err := s.provider.CreateUser(ctx, port.RemoteUserInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Username:  username,
	})
	if err != nil {
		if errors.Is(err, port.ErrRemoteUserExists) {
			return nil, apperr.Conflict(apperr.CodeUserExists, "A user with this email or username already exists.")
		}
		return nil, apperr.Internal(fmt.Errorf("create remote user: %w", err))
	}

	if _, err := s.provider.ReplaceUserRoles(ctx, remoteID, wanted); err != nil {
		return nil, apperr.Internal(fmt.Errorf("assign invited role: %w", err))
	}

	email := input.Email
	name := strings.TrimSpace(strings.TrimSpace(input.FirstName) + " " + strings.TrimSpace(input.LastName))
	seed := domain.User{
		ID:           uuid.NewString(),
		Sub:          remoteID,
		Email:        &email,
		Username:     &username,
		Role:         wanted,
		Status:       domain.StatusActive,
		DepartmentID: departmentID,
		ManagerID:    managerID,
	}
	if name != "" {
		seed.Name = &name
	}

	if err := s.users.InsertProvisional(ctx, seed); err != nil {
		return nil, apperr.Internal(fmt.Errorf("insert invited user: %w", err))
	}

	user, err := s.users.GetBySub(ctx, remoteID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load invited user: %w", err))
	}

	if err := s.provider.TriggerOnboardingEmail(ctx, remoteID); err != nil {
		return nil, apperr.InternalCode(apperr.CodeEmailTrigger, "User was created but the onboarding email could not be sent.", err)
	}

	event := domain.UserInvitedEvent{
		UserID:    user.ID,
		Email:     input.Email,
		Role:      wanted,
		InvitedAt: s.now(),
	}
	if err := s.events.PublishUserInvited(ctx, event); err != nil {
		s.logger.Warn("failed to publish user invited event", zap.String("user_id", user.ID), zap.Error(err))
	}

	view := s.shapeOne(ctx, *user, actor.Role)
	return &view, nil
}

// ListRoles exposes the provider's cached, filtered realm-role catalog.
func (s *DirectoryService) ListRoles(ctx context.Context) ([]domain.RealmRole, error) {
	roles, err := s.provider.ListRealmRoles(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list realm roles: %w", err))
	}
	return roles, nil
}
