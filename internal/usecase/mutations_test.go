package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/slamint/account-management/internal/apperr"
	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
	"github.com/slamint/account-management/internal/repository"
)

const otherManagerID = "aaaaaaaa-0000-4000-8000-000000000005"

func otherManagerUser() domain.User {
	d := deptID
	return domain.User{ID: otherManagerID, Sub: "manager2-sub", Role: domain.RoleManager, Status: domain.StatusActive, DepartmentID: &d}
}

func TestUpdateSelfRejectsRestrictedField(t *testing.T) {
	svc := newDirectoryService(t, nil, nil, nil, nil)

	_, err := svc.UpdateSelf(context.Background(), plainUser(), map[string]any{"role": "admin"})
	wantCode(t, err, apperr.CodeRestrictedField)
}

func TestUpdateSelfRejectsNonStringValue(t *testing.T) {
	svc := newDirectoryService(t, nil, nil, nil, nil)

	_, err := svc.UpdateSelf(context.Background(), plainUser(), map[string]any{"name": 42})
	wantCode(t, err, apperr.CodeValidation)
}

func TestUpdateSelfEmptyPatchIsNoop(t *testing.T) {
	users := &userRepoStub{
		updateProfileFn: func(_ context.Context, _ string, _ port.ProfilePatch) error {
			t.Error("empty patch must not reach the store")
			return nil
		},
	}
	svc := newDirectoryService(t, users, nil, nil, nil)

	view, err := svc.UpdateSelf(context.Background(), plainUser(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.ID != plainID {
		t.Fatalf("expected the caller's own view back, got %+v", view)
	}
}

func TestUpdateSelfWritesAllowedFields(t *testing.T) {
	var seen port.ProfilePatch
	patched := plainUser()
	patched.Name = strPtr("New Name")
	users := &userRepoStub{
		updateProfileFn: func(_ context.Context, id string, patch port.ProfilePatch) error {
			if id != plainID {
				t.Errorf("unexpected target id %s", id)
			}
			seen = patch
			return nil
		},
		getByIDFn: idIndex(patched),
	}
	svc := newDirectoryService(t, users, nil, nil, nil)

	view, err := svc.UpdateSelf(context.Background(), plainUser(), map[string]any{"name": " New Name "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.Name == nil || *seen.Name != "New Name" {
		t.Fatalf("expected trimmed name in patch, got %+v", seen)
	}
	if seen.Phone != nil {
		t.Fatalf("phone must stay unset, got %+v", seen)
	}
	if view.Name != "New Name" {
		t.Fatalf("expected reloaded view, got %+v", view)
	}
}

func TestChangeStatusInvalidValue(t *testing.T) {
	svc := newDirectoryService(t, nil, nil, nil, nil)

	_, err := svc.ChangeStatus(context.Background(), adminUser(), engineerID, "suspended", "")
	wantCode(t, err, apperr.CodeInvalidStatus)
}

func TestChangeStatusLockStoresReason(t *testing.T) {
	var gotStatus domain.AccountStatus
	var gotReason *string
	users := &userRepoStub{
		getByIDFn: idIndex(engineerUser()),
		updateStatusFn: func(_ context.Context, _ string, status domain.AccountStatus, reason *string) error {
			gotStatus = status
			gotReason = reason
			return nil
		},
	}
	events := &eventsRecorder{}
	svc := newDirectoryService(t, users, nil, nil, events)

	view, err := svc.ChangeStatus(context.Background(), adminUser(), engineerID, "locked", "policy violation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != domain.StatusLocked || gotReason == nil || *gotReason != "policy violation" {
		t.Fatalf("expected locked with reason, got %v %v", gotStatus, gotReason)
	}
	if view.Status != domain.StatusLocked || view.LockedReason != "policy violation" {
		t.Fatalf("view should reflect the lock, got %+v", view)
	}
	if len(events.statusChanged) != 1 || events.statusChanged[0].Status != domain.StatusLocked {
		t.Fatalf("expected one status changed event, got %+v", events.statusChanged)
	}
}

func TestChangeStatusUnlockClearsReason(t *testing.T) {
	locked := engineerUser()
	locked.Status = domain.StatusLocked
	locked.LockedReason = strPtr("old reason")
	gotReason := strPtr("sentinel")
	users := &userRepoStub{
		getByIDFn: idIndex(locked),
		updateStatusFn: func(_ context.Context, _ string, _ domain.AccountStatus, reason *string) error {
			gotReason = reason
			return nil
		},
	}
	svc := newDirectoryService(t, users, nil, nil, nil)

	view, err := svc.ChangeStatus(context.Background(), adminUser(), engineerID, "active", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotReason != nil {
		t.Fatalf("unlock must clear the stored reason, got %v", *gotReason)
	}
	if view.LockedReason != "" {
		t.Fatalf("view must not expose a reason on active accounts, got %+v", view)
	}
}

func TestUpdateDepartmentRejectsAdminTarget(t *testing.T) {
	users := &userRepoStub{getByIDFn: idIndex(adminUser())}
	svc := newDirectoryService(t, users, nil, nil, nil)

	_, err := svc.UpdateDepartment(context.Background(), adminUser(), adminID, deptID)
	wantCode(t, err, apperr.CodeRoleNotAssignable)
}

func TestUpdateDepartmentMissingDepartment(t *testing.T) {
	users := &userRepoStub{getByIDFn: idIndex(engineerUser())}
	svc := newDirectoryService(t, users, &deptRepoStub{}, nil, nil)

	_, err := svc.UpdateDepartment(context.Background(), adminUser(), engineerID, deptID)
	wantCode(t, err, apperr.CodeDeptNotFound)
}

func TestUpdateDepartmentMovesUser(t *testing.T) {
	var gotDept string
	users := &userRepoStub{
		getByIDFn: idIndex(engineerUser()),
		updateDepartmentFn: func(_ context.Context, _ string, departmentID string) error {
			gotDept = departmentID
			return nil
		},
	}
	departments := &deptRepoStub{
		getByIDFn: func(_ context.Context, id string) (*domain.Department, error) {
			return &domain.Department{ID: id, Code: "ENG", Name: "Engineering"}, nil
		},
	}
	events := &eventsRecorder{}
	svc := newDirectoryService(t, users, departments, nil, events)

	view, err := svc.UpdateDepartment(context.Background(), adminUser(), engineerID, deptID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDept != deptID {
		t.Fatalf("expected department %s, got %s", deptID, gotDept)
	}
	if view.Department == nil || view.Department.ID != deptID {
		t.Fatalf("view should carry the new department, got %+v", view.Department)
	}
	if len(events.departmentChanged) != 1 || events.departmentChanged[0].DepartmentID != deptID {
		t.Fatalf("expected one department changed event, got %+v", events.departmentChanged)
	}
}

func TestUpdateDepartmentRequiresID(t *testing.T) {
	svc := newDirectoryService(t, nil, nil, nil, nil)

	_, err := svc.UpdateDepartment(context.Background(), adminUser(), engineerID, "")
	wantCode(t, err, apperr.CodeDeptIDRequired)
}

func TestUpdateManagerRejectsSelf(t *testing.T) {
	svc := newDirectoryService(t, nil, nil, nil, nil)

	_, err := svc.UpdateManager(context.Background(), adminUser(), engineerID, engineerID)
	wantCode(t, err, apperr.CodeInvalidManagerID)
}

func TestUpdateManagerRequiresEngineerTarget(t *testing.T) {
	users := &userRepoStub{getByIDFn: idIndex(managerUser(), otherManagerUser())}
	svc := newDirectoryService(t, users, nil, nil, nil)

	_, err := svc.UpdateManager(context.Background(), adminUser(), managerID, otherManagerID)
	wantCode(t, err, apperr.CodeManagerNotAssignable)
}

func TestUpdateManagerRequiresManagerDepartment(t *testing.T) {
	bare := managerUser()
	bare.DepartmentID = nil
	users := &userRepoStub{getByIDFn: idIndex(engineerUser(), bare)}
	svc := newDirectoryService(t, users, nil, nil, nil)

	_, err := svc.UpdateManager(context.Background(), adminUser(), engineerID, managerID)
	wantCode(t, err, apperr.CodeDeptNotAssigned)
}

func TestUpdateManagerCopiesDepartment(t *testing.T) {
	var gotManagerID string
	var gotDeptID *string
	users := &userRepoStub{
		getByIDFn: idIndex(engineerUser(), otherManagerUser()),
		updateManagerFn: func(_ context.Context, _ string, managerID string, departmentID *string) error {
			gotManagerID = managerID
			gotDeptID = departmentID
			return nil
		},
	}
	events := &eventsRecorder{}
	svc := newDirectoryService(t, users, nil, nil, events)

	_, err := svc.UpdateManager(context.Background(), adminUser(), engineerID, otherManagerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotManagerID != otherManagerID {
		t.Fatalf("expected manager %s, got %s", otherManagerID, gotManagerID)
	}
	if gotDeptID == nil || *gotDeptID != deptID {
		t.Fatalf("engineer department must follow the manager's, got %v", gotDeptID)
	}
	if len(events.managerChanged) != 1 || events.managerChanged[0].Affected != 1 {
		t.Fatalf("expected one manager changed event with affected=1, got %+v", events.managerChanged)
	}
}

func TestBulkUpdateManagerRejectsSameManager(t *testing.T) {
	svc := newDirectoryService(t, nil, nil, nil, nil)

	_, err := svc.BulkUpdateManager(context.Background(), adminUser(), managerID, managerID)
	wantCode(t, err, apperr.CodeInvalidNewManagerID)
}

func TestBulkUpdateManagerZeroReportsIsNoop(t *testing.T) {
	users := &userRepoStub{
		getByIDFn: idIndex(managerUser(), otherManagerUser()),
		reassignReportsFn: func(_ context.Context, _, _ string, _ *string) (int64, error) {
			t.Error("no write expected when the manager has no reports")
			return 0, nil
		},
	}
	events := &eventsRecorder{}
	svc := newDirectoryService(t, users, nil, nil, events)

	result, err := svc.BulkUpdateManager(context.Background(), adminUser(), managerID, otherManagerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Affected != 0 {
		t.Fatalf("expected affected=0, got %d", result.Affected)
	}
	if len(events.managerChanged) != 0 {
		t.Fatalf("no event expected for the no-op case, got %+v", events.managerChanged)
	}
}

func TestBulkUpdateManagerMovesReports(t *testing.T) {
	var gotDeptID *string
	users := &userRepoStub{
		getByIDFn: idIndex(managerUser(), otherManagerUser()),
		countReportsFn: func(_ context.Context, _ string) (int, error) {
			return 7, nil
		},
		reassignReportsFn: func(_ context.Context, oldID, newID string, departmentID *string) (int64, error) {
			if oldID != managerID || newID != otherManagerID {
				t.Errorf("unexpected reassignment %s -> %s", oldID, newID)
			}
			gotDeptID = departmentID
			return 7, nil
		},
	}
	events := &eventsRecorder{}
	svc := newDirectoryService(t, users, nil, nil, events)

	result, err := svc.BulkUpdateManager(context.Background(), adminUser(), managerID, otherManagerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Affected != 7 {
		t.Fatalf("expected affected=7, got %d", result.Affected)
	}
	if gotDeptID == nil || *gotDeptID != deptID {
		t.Fatalf("reports must move into the new manager's department, got %v", gotDeptID)
	}
	if len(events.managerChanged) != 1 || events.managerChanged[0].Affected != 7 {
		t.Fatalf("expected a manager changed event with affected=7, got %+v", events.managerChanged)
	}
}

func TestChangeRoleBlockedByReportsBeforeProviderCall(t *testing.T) {
	users := &userRepoStub{
		getByIDFn: idIndex(managerUser()),
		countReportsFn: func(_ context.Context, _ string) (int, error) {
			return 3, nil
		},
	}
	provider := &providerStub{}
	svc := newDirectoryService(t, users, nil, provider, nil)

	_, err := svc.ChangeRole(context.Background(), adminUser(), managerID, "engineer")
	wantCode(t, err, apperr.CodeManagerHasEngineer)
	if provider.replaceRolesCalls != 0 {
		t.Fatalf("provider must not be called when the guard trips, got %d calls", provider.replaceRolesCalls)
	}
}

func TestChangeRoleSameRoleRejected(t *testing.T) {
	users := &userRepoStub{getByIDFn: idIndex(engineerUser())}
	svc := newDirectoryService(t, users, nil, nil, nil)

	_, err := svc.ChangeRole(context.Background(), adminUser(), engineerID, "engineer")
	wantCode(t, err, apperr.CodeRoleMustDiffer)
}

func TestChangeRoleUnconfirmedByProvider(t *testing.T) {
	users := &userRepoStub{
		getByIDFn: idIndex(engineerUser()),
		updateRoleFn: func(_ context.Context, _ string, _ domain.RoleName) error {
			t.Error("local role must not change without provider confirmation")
			return nil
		},
	}
	provider := &providerStub{
		replaceRolesFn: func(_ context.Context, _ string, _ domain.RoleName) ([]domain.RoleName, error) {
			return []domain.RoleName{domain.RoleEngineer}, nil
		},
	}
	svc := newDirectoryService(t, users, nil, provider, nil)

	_, err := svc.ChangeRole(context.Background(), adminUser(), engineerID, "manager")
	wantCode(t, err, apperr.CodeInternal)
}

func TestChangeRoleSuccess(t *testing.T) {
	var localRole domain.RoleName
	users := &userRepoStub{
		getByIDFn: idIndex(engineerUser()),
		updateRoleFn: func(_ context.Context, _ string, role domain.RoleName) error {
			localRole = role
			return nil
		},
	}
	events := &eventsRecorder{}
	svc := newDirectoryService(t, users, nil, &providerStub{}, events)

	view, err := svc.ChangeRole(context.Background(), adminUser(), engineerID, "manager")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if localRole != domain.RoleManager {
		t.Fatalf("expected local role manager, got %q", localRole)
	}
	if view.Role != domain.RoleManager {
		t.Fatalf("view should carry the new role, got %+v", view)
	}
	if len(events.roleChanged) != 1 || events.roleChanged[0].NewRole != domain.RoleManager {
		t.Fatalf("expected one role changed event, got %+v", events.roleChanged)
	}
}

func TestChangeRoleRemoteUserMissing(t *testing.T) {
	users := &userRepoStub{getByIDFn: idIndex(engineerUser())}
	provider := &providerStub{
		replaceRolesFn: func(_ context.Context, _ string, _ domain.RoleName) ([]domain.RoleName, error) {
			return nil, port.ErrRemoteUserNotFound
		},
	}
	svc := newDirectoryService(t, users, nil, provider, nil)

	_, err := svc.ChangeRole(context.Background(), adminUser(), engineerID, "manager")
	wantCode(t, err, apperr.CodeUserNotFound)
}

func TestDeleteUserRemoteFailureKeepsLocalRow(t *testing.T) {
	users := &userRepoStub{
		getByIDFn: idIndex(engineerUser()),
		deleteFn: func(_ context.Context, _ string) error {
			t.Error("local row must survive a failed remote delete")
			return nil
		},
	}
	provider := &providerStub{
		deleteUserFn: func(_ context.Context, _ string) error {
			return errors.New("identity provider unavailable")
		},
	}
	svc := newDirectoryService(t, users, nil, provider, nil)

	_, err := svc.DeleteUser(context.Background(), adminUser(), engineerID)
	wantCode(t, err, apperr.CodeInternal)
}

func TestDeleteUserToleratesMissingRemoteIdentity(t *testing.T) {
	deleted := false
	users := &userRepoStub{
		getByIDFn: idIndex(engineerUser()),
		deleteFn: func(_ context.Context, id string) error {
			deleted = id == engineerID
			return nil
		},
	}
	provider := &providerStub{
		deleteUserFn: func(_ context.Context, _ string) error {
			return port.ErrRemoteUserNotFound
		},
	}
	events := &eventsRecorder{}
	svc := newDirectoryService(t, users, nil, provider, events)

	ok, err := svc.DeleteUser(context.Background(), adminUser(), engineerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || !deleted {
		t.Fatal("expected local row removal when the remote identity is already gone")
	}
	if len(events.deleted) != 1 {
		t.Fatalf("expected one deleted event, got %d", len(events.deleted))
	}
}

func TestDeleteUserBlockedByReports(t *testing.T) {
	users := &userRepoStub{
		getByIDFn: idIndex(managerUser()),
		countReportsFn: func(_ context.Context, _ string) (int, error) {
			return 2, nil
		},
	}
	provider := &providerStub{}
	svc := newDirectoryService(t, users, nil, provider, nil)

	_, err := svc.DeleteUser(context.Background(), adminUser(), managerID)
	wantCode(t, err, apperr.CodeManagerHasEngineer)
	if provider.deleteCalls != 0 {
		t.Fatalf("remote delete must not run for a manager with reports, got %d calls", provider.deleteCalls)
	}
}

func TestInviteUserEngineerCopiesManagerDepartment(t *testing.T) {
	invited := domain.User{
		ID:     "cccccccc-0000-4000-8000-000000000001",
		Sub:    "remote-id",
		Role:   domain.RoleEngineer,
		Status: domain.StatusActive,
	}
	users := &userRepoStub{
		getByIDFn: idIndex(managerUser()),
		getBySubFn: func(_ context.Context, sub string) (*domain.User, error) {
			if sub != "remote-id" {
				return nil, repository.ErrNotFound
			}
			return &invited, nil
		},
	}
	provider := &providerStub{
		createUserFn: func(_ context.Context, input port.RemoteUserInput) (string, error) {
			if input.Username != "jane.doe" {
				t.Errorf("username should default to the email local part, got %q", input.Username)
			}
			return "remote-id", nil
		},
	}
	events := &eventsRecorder{}
	svc := newDirectoryService(t, users, nil, provider, events)

	mgr := managerID
	_, err := svc.InviteUser(context.Background(), adminUser(), InviteInput{
		Email:     "jane.doe@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      "engineer",
		ManagerID: &mgr,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users.insertCalls) != 1 {
		t.Fatalf("expected one seed insert, got %d", len(users.insertCalls))
	}
	seed := users.insertCalls[0]
	if seed.ManagerID == nil || *seed.ManagerID != managerID {
		t.Fatalf("seed must reference the manager, got %+v", seed.ManagerID)
	}
	if seed.DepartmentID == nil || *seed.DepartmentID != deptID {
		t.Fatalf("seed department must follow the manager's, got %+v", seed.DepartmentID)
	}
	if seed.FirstLoginAt != nil || seed.LastLoginAt != nil {
		t.Fatalf("invited users have no login timestamps yet, got %+v", seed)
	}
	if provider.replaceRolesCalls != 1 {
		t.Fatalf("expected the invited role to be assigned remotely, got %d calls", provider.replaceRolesCalls)
	}
	if len(events.invited) != 1 || events.invited[0].Role != domain.RoleEngineer {
		t.Fatalf("expected one invited event, got %+v", events.invited)
	}
}

func TestInviteUserManagerRequiresDepartment(t *testing.T) {
	svc := newDirectoryService(t, nil, nil, nil, nil)

	_, err := svc.InviteUser(context.Background(), adminUser(), InviteInput{
		Email: "m@example.com",
		Role:  "manager",
	})
	wantCode(t, err, apperr.CodeDeptIDRequired)
}

func TestInviteUserDuplicateRemoteIdentity(t *testing.T) {
	d := deptID
	departments := &deptRepoStub{
		getByIDFn: func(_ context.Context, id string) (*domain.Department, error) {
			if id == deptID {
				return &domain.Department{ID: deptID, Code: "ENG", Name: "Engineering"}, nil
			}
			return nil, repository.ErrNotFound
		},
	}
	provider := &providerStub{
		createUserFn: func(_ context.Context, _ port.RemoteUserInput) (string, error) {
			return "", port.ErrRemoteUserExists
		},
	}
	svc := newDirectoryService(t, nil, departments, provider, nil)

	_, err := svc.InviteUser(context.Background(), adminUser(), InviteInput{
		Email:        "m@example.com",
		Role:         "manager",
		DepartmentID: &d,
	})
	wantCode(t, err, apperr.CodeUserExists)
}

func TestInviteUserUnknownRole(t *testing.T) {
	svc := newDirectoryService(t, nil, nil, nil, nil)

	_, err := svc.InviteUser(context.Background(), adminUser(), InviteInput{Email: "x@example.com", Role: "wizard"})
	wantCode(t, err, apperr.CodeRoleNotExist)
}

func TestInviteUserEmailTriggerFailure(t *testing.T) {
	invited := domain.User{
		ID:     "cccccccc-0000-4000-8000-000000000002",
		Sub:    "remote-id",
		Role:   domain.RoleUser,
		Status: domain.StatusActive,
	}
	users := &userRepoStub{
		getBySubFn: func(_ context.Context, _ string) (*domain.User, error) {
			return &invited, nil
		},
	}
	provider := &providerStub{
		createUserFn: func(_ context.Context, _ port.RemoteUserInput) (string, error) {
			return "remote-id", nil
		},
		triggerEmailFn: func(_ context.Context, _ string) error {
			return errors.New("smtp unreachable")
		},
	}
	svc := newDirectoryService(t, users, nil, provider, nil)

	_, err := svc.InviteUser(context.Background(), adminUser(), InviteInput{Email: "u@example.com", Role: "user"})
	wantCode(t, err, apperr.CodeEmailTrigger)
}
