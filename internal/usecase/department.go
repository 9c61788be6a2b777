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

// DepartmentPage is one page of departments.
type DepartmentPage struct {
	Items []domain.Department `json:"items"`
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

// DepartmentInput carries create payload fields.
type DepartmentInput struct {
	Code        string
	Name        string
	Description *string
}

// DepartmentService manages organisational units.
type DepartmentService struct {
	departments port.DepartmentRepository
	users       port.UserRepository
	logger      *zap.Logger
}

// NewDepartmentService constructs a DepartmentService instance.
func NewDepartmentService(departments port.DepartmentRepository, users port.UserRepository, logger *zap.Logger) *DepartmentService {
	return &DepartmentService{departments: departments, users: users, logger: logger}
}

// List returns the filtered, paginated department listing.
func (s *DepartmentService) List(ctx context.Context, filter port.DepartmentSearchFilter) (*DepartmentPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	depts, total, err := s.departments.List(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list departments: %w", err))
	}

	return &DepartmentPage{Items: depts, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Get returns one department by id.
func (s *DepartmentService) Get(ctx context.Context, id string) (*domain.Department, error) {
	if err := validateID(id, apperr.CodeInvalidDept); err != nil {
		return nil, err
	}

	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeDeptNotFound, "Department not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("get department: %w", err))
	}

	return dept, nil
}

// Create adds a department. The code must be unique.
func (s *DepartmentService) Create(ctx context.Context, input DepartmentInput) (*domain.Department, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, apperr.BadRequest(apperr.CodeInvalidDeptDetails, "Department code and name are required.")
	}

	if _, err := s.departments.GetByCode(ctx, code); err == nil {
		return nil, apperr.Conflict(apperr.CodeDeptExists, "A department with this code already exists.")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(fmt.Errorf("check department code: %w", err))
	}

	dept := domain.Department{
		ID:          uuid.NewString(),
		Code:        code,
		Name:        name,
		Description: input.Description,
		IsActive:    true,
	}

	if err := s.departments.Create(ctx, dept); err != nil {
		return nil, apperr.Internal(fmt.Errorf("create department: %w", err))
	}

	created, err := s.departments.GetByID(ctx, dept.ID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load created department: %w", err))
	}

	return created, nil
}

// Update applies the mutable department fields.
func (s *DepartmentService) Update(ctx context.Context, id string, update port.DepartmentUpdate) (*domain.Department, error) {
	if err := validateID(id, apperr.CodeInvalidDept); err != nil {
		return nil, err
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, apperr.BadRequest(apperr.CodeInvalidDeptDetails, "Department name cannot be empty.")
	}

	if err := s.departments.Update(ctx, id, update); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeDeptNotFound, "Department not found.")
		}
		return nil, apperr.Internal(fmt.Errorf("update department: %w", err))
	}

	dept, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load updated department: %w", err))
	}

	return dept, nil
}

// Delete removes a department unless any user still references it.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if err := validateID(id, apperr.CodeInvalidDept); err != nil {
		return err
	}

	if _, err := s.departments.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(apperr.CodeDeptNotFound, "Department not found.")
		}
		return apperr.Internal(fmt.Errorf("get department: %w", err))
	}

	inUse, err := s.users.CountByDepartment(ctx, id)
	if err != nil {
		return apperr.Internal(fmt.Errorf("count department usage: %w", err))
	}
	if inUse > 0 {
		return apperr.Conflict(apperr.CodeDeptInUse, "Department is still assigned to users.")
	}

	if err := s.departments.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(apperr.CodeDeptNotFound, "Department not found.")
		}
		return apperr.Internal(fmt.Errorf("delete department: %w", err))
	}

	return nil
}
