package usecase

import (
	"context"
	"time"

	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
	"github.com/slamint/account-management/internal/repository"
)

// userRepoStub implements port.UserRepository with overridable behaviour per
// method. Unset methods return ErrNotFound or zero values.
type userRepoStub struct {
	getByIDFn           func(ctx context.Context, id string) (*domain.User, error)
	getBySubFn          func(ctx context.Context, sub string) (*domain.User, error)
	getManyFn           func(ctx context.Context, ids []string) ([]domain.User, error)
	insertProvisionalFn func(ctx context.Context, user domain.User) error
	touchLoginFn        func(ctx context.Context, sub string, now time.Time, email, name, username *string) (*domain.User, error)
	searchFn            func(ctx context.Context, filter port.UserSearchFilter) ([]domain.User, int, error)
	updateRoleFn        func(ctx context.Context, id string, role domain.RoleName) error
	updateStatusFn      func(ctx context.Context, id string, status domain.AccountStatus, lockedReason *string) error
	updateProfileFn     func(ctx context.Context, id string, patch port.ProfilePatch) error
	updateDepartmentFn  func(ctx context.Context, id string, departmentID string) error
	updateManagerFn     func(ctx context.Context, id string, managerID string, departmentID *string) error
	reassignReportsFn   func(ctx context.Context, oldManagerID, newManagerID string, departmentID *string) (int64, error)
	countReportsFn      func(ctx context.Context, managerID string) (int, error)
	countByDepartmentFn func(ctx context.Context, departmentID string) (int, error)
	deleteFn            func(ctx context.Context, id string) error

	insertCalls []domain.User
}

func (s *userRepoStub) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (s *userRepoStub) GetBySub(ctx context.Context, sub string) (*domain.User, error) {
	if s.getBySubFn != nil {
		return s.getBySubFn(ctx, sub)
	}
	return nil, repository.ErrNotFound
}

func (s *userRepoStub) GetMany(ctx context.Context, ids []string) ([]domain.User, error) {
	if s.getManyFn != nil {
		return s.getManyFn(ctx, ids)
	}
	return nil, nil
}

func (s *userRepoStub) InsertProvisional(ctx context.Context, user domain.User) error {
	s.insertCalls = append(s.insertCalls, user)
	if s.insertProvisionalFn != nil {
		return s.insertProvisionalFn(ctx, user)
	}
	return nil
}

func (s *userRepoStub) TouchLogin(ctx context.Context, sub string, now time.Time, email, name, username *string) (*domain.User, error) {
	if s.touchLoginFn != nil {
		return s.touchLoginFn(ctx, sub, now, email, name, username)
	}
	return nil, repository.ErrNotFound
}

func (s *userRepoStub) Search(ctx context.Context, filter port.UserSearchFilter) ([]domain.User, int, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, filter)
	}
	return nil, 0, nil
}

func (s *userRepoStub) UpdateRole(ctx context.Context, id string, role domain.RoleName) error {
	if s.updateRoleFn != nil {
		return s.updateRoleFn(ctx, id, role)
	}
	return nil
}

func (s *userRepoStub) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, lockedReason *string) error {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, id, status, lockedReason)
	}
	return nil
}

func (s *userRepoStub) UpdateProfile(ctx context.Context, id string, patch port.ProfilePatch) error {
	if s.updateProfileFn != nil {
		return s.updateProfileFn(ctx, id, patch)
	}
	return nil
}

func (s *userRepoStub) UpdateDepartment(ctx context.Context, id string, departmentID string) error {
	if s.updateDepartmentFn != nil {
		return s.updateDepartmentFn(ctx, id, departmentID)
	}
	return nil
}

func (s *userRepoStub) UpdateManager(ctx context.Context, id string, managerID string, departmentID *string) error {
	if s.updateManagerFn != nil {
		return s.updateManagerFn(ctx, id, managerID, departmentID)
	}
	return nil
}

func (s *userRepoStub) ReassignReports(ctx context.Context, oldManagerID, newManagerID string, departmentID *string) (int64, error) {
	if s.reassignReportsFn != nil {
		return s.reassignReportsFn(ctx, oldManagerID, newManagerID, departmentID)
	}
	return 0, nil
}

func (s *userRepoStub) CountReports(ctx context.Context, managerID string) (int, error) {
	if s.countReportsFn != nil {
		return s.countReportsFn(ctx, managerID)
	}
	return 0, nil
}

func (s *userRepoStub) CountByDepartment(ctx context.Context, departmentID string) (int, error) {
	if s.countByDepartmentFn != nil {
		return s.countByDepartmentFn(ctx, departmentID)
	}
	return 0, nil
}

func (s *userRepoStub) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

var _ port.UserRepository = (*userRepoStub)(nil)

// deptRepoStub implements port.DepartmentRepository.
type deptRepoStub struct {
	getByIDFn   func(ctx context.Context, id string) (*domain.Department, error)
	getByCodeFn func(ctx context.Context, code string) (*domain.Department, error)
	getManyFn   func(ctx context.Context, ids []string) ([]domain.Department, error)
	listFn      func(ctx context.Context, filter port.DepartmentSearchFilter) ([]domain.Department, int, error)
	createFn    func(ctx context.Context, dept domain.Department) error
	updateFn    func(ctx context.Context, id string, update port.DepartmentUpdate) error
	deleteFn    func(ctx context.Context, id string) error
}

func (s *deptRepoStub) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (s *deptRepoStub) GetByCode(ctx context.Context, code string) (*domain.Department, error) {
	if s.getByCodeFn != nil {
		return s.getByCodeFn(ctx, code)
	}
	return nil, repository.ErrNotFound
}

func (s *deptRepoStub) GetMany(ctx context.Context, ids []string) ([]domain.Department, error) {
	if s.getManyFn != nil {
		return s.getManyFn(ctx, ids)
	}
	return nil, nil
}

func (s *deptRepoStub) List(ctx context.Context, filter port.DepartmentSearchFilter) ([]domain.Department, int, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (s *deptRepoStub) Create(ctx context.Context, dept domain.Department) error {
	if s.createFn != nil {
		return s.createFn(ctx, dept)
	}
	return nil
}

func (s *deptRepoStub) Update(ctx context.Context, id string, update port.DepartmentUpdate) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, update)
	}
	return nil
}

func (s *deptRepoStub) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

var _ port.DepartmentRepository = (*deptRepoStub)(nil)

// providerStub implements port.IdentityProvider and records calls.
type providerStub struct {
	listRolesFn       func(ctx context.Context) ([]domain.RealmRole, error)
	replaceRolesFn    func(ctx context.Context, remoteID string, role domain.RoleName) ([]domain.RoleName, error)
	createUserFn      func(ctx context.Context, input port.RemoteUserInput) (string, error)
	triggerEmailFn    func(ctx context.Context, remoteID string) error
	deleteUserFn      func(ctx context.Context, remoteID string) error
	replaceRolesCalls int
	deleteCalls       int
}

func (s *providerStub) ListRealmRoles(ctx context.Context) ([]domain.RealmRole, error) {
	if s.listRolesFn != nil {
		return s.listRolesFn(ctx)
	}
	return []domain.RealmRole{
		{ID: "r1", Name: "admin"},
		{ID: "r2", Name: "manager"},
		{ID: "r3", Name: "engineer"},
		{ID: "r4", Name: "user"},
	}, nil
}

func (s *providerStub) ReplaceUserRoles(ctx context.Context, remoteID string, role domain.RoleName) ([]domain.RoleName, error) {
	s.replaceRolesCalls++
	if s.replaceRolesFn != nil {
		return s.replaceRolesFn(ctx, remoteID, role)
	}
	return []domain.RoleName{role}, nil
}

func (s *providerStub) CreateUser(ctx context.Context, input port.RemoteUserInput) (string, error) {
	if s.createUserFn != nil {
		return s.createUserFn(ctx, input)
	}
	return "remote-id", nil
}

func (s *providerStub) TriggerOnboardingEmail(ctx context.Context, remoteID string) error {
	if s.triggerEmailFn != nil {
		return s.triggerEmailFn(ctx, remoteID)
	}
	return nil
}

func (s *providerStub) DeleteUser(ctx context.Context, remoteID string) error {
	s.deleteCalls++
	if s.deleteUserFn != nil {
		return s.deleteUserFn(ctx, remoteID)
	}
	return nil
}

var _ port.IdentityProvider = (*providerStub)(nil)

// eventsRecorder implements port.EventPublisher and records every event.
type eventsRecorder struct {
	provisioned       []domain.UserProvisionedEvent
	statusChanged     []domain.UserStatusChangedEvent
	roleChanged       []domain.UserRoleChangedEvent
	managerChanged    []domain.UserManagerChangedEvent
	departmentChanged []domain.UserDepartmentChangedEvent
	deleted           []domain.UserDeletedEvent
	invited           []domain.UserInvitedEvent
}

func (r *eventsRecorder) PublishUserProvisioned(_ context.Context, event domain.UserProvisionedEvent) error {
	r.provisioned = append(r.provisioned, event)
	return nil
}

func (r *eventsRecorder) PublishUserStatusChanged(_ context.Context, event domain.UserStatusChangedEvent) error {
	r.statusChanged = append(r.statusChanged, event)
	return nil
}

func (r *eventsRecorder) PublishUserRoleChanged(_ context.Context, event domain.UserRoleChangedEvent) error {
	r.roleChanged = append(r.roleChanged, event)
	return nil
}

func (r *eventsRecorder) PublishUserManagerChanged(_ context.Context, event domain.UserManagerChangedEvent) error {
	r.managerChanged = append(r.managerChanged, event)
	return nil
}

func (r *eventsRecorder) PublishUserDepartmentChanged(_ context.Context, event domain.UserDepartmentChangedEvent) error {
	r.departmentChanged = append(r.departmentChanged, event)
	return nil
}

func (r *eventsRecorder) PublishUserDeleted(_ context.Context, event domain.UserDeletedEvent) error {
	r.deleted = append(r.deleted, event)
	return nil
}

func (r *eventsRecorder) PublishUserInvited(_ context.Context, event domain.UserInvitedEvent) error {
	r.invited = append(r.invited, event)
	return nil
}

var _ port.EventPublisher = (*eventsRecorder)(nil)
