package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/slamint/account-management/internal/apperr"
	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
	"github.com/slamint/account-management/internal/repository"
)

// SearchResult is one page of shaped directory entries.
type SearchResult struct {
	Items []domain.UserView `json:"items"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// DirectoryService answers directory queries and performs the guarded
// cross-entity mutations. Every operation loads fresh state, validates against
// the error taxonomy and returns rows shaped by the acting user's own role.
type DirectoryService struct {
	users       port.UserRepository
	departments port.DepartmentRepository
	provider    port.IdentityProvider
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewDirectoryService constructs a DirectoryService instance.
func NewDirectoryService(
	users port.UserRepository,
	departments port.DepartmentRepository,
	provider port.IdentityProvider,
	events port.EventPublisher,
	logger *zap.Logger,
) *DirectoryService {
	return &DirectoryService{
		users:       users,
		departments: departments,
		provider:    provider,
		events:      events,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// resolveViewer maps the caller's subject onto their provisioned local row. A
// caller whose sub is unknown is a bad request, not a server error.
func (s *DirectoryService) resolveViewer(ctx context.Context, viewerSub string) (*domain.User, error) {
	viewer, err := s.users.GetBySub(ctx, viewerSub)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.BadRequest(apperr.CodeInvalidRequestUserID, "Requesting user is not provisioned.")
		}
		return nil, apperr.Internal(fmt.Errorf("resolve viewer: %w", err))
	}
	return viewer, nil
}

// shapeOne resolves the relation rows for a single entry and shapes it for the
// viewer. Relations are plain foreign keys resolved by explicit lookups.
func (s *DirectoryService) shapeOne(ctx context.Context, user domain.User, viewer domain.RoleName) domain.UserView {
	if !domain.CanSeeRelations(viewer) {
		return domain.ShapeUser(user, nil, nil, viewer)
	}

	var dept *domain.Department
	if user.DepartmentID != nil {
		if d, err := s.departments.GetByID(ctx, *user.DepartmentID); err == nil {
			dept = d
		}
	}

	var manager *domain.User
	if user.ManagerID != nil {
		if m, err := s.users.GetByID(ctx, *user.ManagerID); err == nil {
			manager = m
		}
	}

	return domain.ShapeUser(user, dept, manager, viewer)
}

// shapePage resolves department and manager rows for a whole page with two
// batched lookups instead of one pair per row.
func (s *DirectoryService) shapePage(ctx context.Context, users []domain.User, viewer domain.RoleName) []domain.UserView {
	views := make([]domain.UserView, 0, len(users))

	if !domain.CanSeeRelations(viewer) {
		for _, user := range users {
			views = append(views, domain.ShapeUser(user, nil, nil, viewer))
		}
		return views
	}

	deptIDs := make([]string, 0, len(users))
	managerIDs := make([]string, 0, len(users))
	seenDept := make(map[string]struct{})
	seenManager := make(map[string]struct{})
	for _, user := range users {
		if user.DepartmentID != nil {
			if _, ok := seenDept[*user.DepartmentID]; !ok {
				seenDept[*user.DepartmentID] = struct{}{}
				deptIDs = append(deptIDs, *user.DepartmentID)
			}
		}
		if user.ManagerID != nil {
			if _, ok := seenManager[*user.ManagerID]; !ok {
				seenManager[*user.ManagerID] = struct{}{}
				managerIDs = append(managerIDs, *user.ManagerID)
			}
		}
	}

	deptByID := make(map[string]domain.Department, len(deptIDs))
	if depts, err := s.departments.GetMany(ctx, deptIDs); err == nil {
		for _, dept := range depts {
			deptByID[dept.ID] = dept
		}
	} else {
		s.logger.Warn("failed to resolve departments for page", zap.Error(err))
	}

	managerByID := make(map[string]domain.User, len(managerIDs))
	if managers, err := s.users.GetMany(ctx, managerIDs); err == nil {
		for _, manager := range managers {
			managerByID[manager.ID] = manager
		}
	} else {
		s.logger.Warn("failed to resolve managers for page", zap.Error(err))
	}

	for _, user := range users {
		var dept *domain.Department
		if user.DepartmentID != nil {
			if d, ok := deptByID[*user.DepartmentID]; ok {
				dept = &d
			}
		}
		var manager *domain.User
		if user.ManagerID != nil {
			if m, ok := managerByID[*user.ManagerID]; ok {
				manager = &m
			}
		}
		views = append(views, domain.ShapeUser(user, dept, manager, viewer))
	}

	return views
}

// Search runs the filtered, sorted, paginated directory query and shapes each
// row for the viewer's role.
func (s *DirectoryService) Search(ctx context.Context, viewerSub string, filter port.UserSearchFilter) (*SearchResult, error) {
	viewer, err := s.resolveViewer(ctx, viewerSub)
	if err != nil {
		return nil, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	users, total, err := s.users.Search(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("search users: %w", err))
	}

	return &SearchResult{
		Items: s.shapePage(ctx, users, viewer.Role),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// GetByID fetches one entry. Manager viewers only see active engineers that
// report to them; other roles fetch any id.
func (s *DirectoryService) GetByID(ctx context.Context, id string, viewerSub string) (*domain.UserView, error) {
	viewer, err := s.resolveViewer(ctx, viewerSub)
	if err != nil {
		return nil, err
	}

	if err := validateID(id, apperr.CodeInvalidUserID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("get user: %w", err))
	}

	if viewer.Role == domain.RoleManager && viewer.ID != user.ID {
		reportsToViewer := user.Role == domain.RoleEngineer &&
			user.Status == domain.StatusActive &&
			user.ManagerID != nil && *user.ManagerID == viewer.ID
		if !reportsToViewer {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
		}
	}

	view := s.shapeOne(ctx, *user, viewer.Role)
	return &view, nil
}

// GetSelf fetches the caller's own entry by subject.
func (s *DirectoryService) GetSelf(ctx context.Context, sub string) (*domain.UserView, error) {
	user, err := s.users.GetBySub(ctx, sub)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("get self: %w", err))
	}

	view := s.shapeOne(ctx, *user, user.Role)
	return &view, nil
}
