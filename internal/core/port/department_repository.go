package port

import (
	"context"
	"time"

	"github.com/slamint/account-management/internal/core/domain"
)

// DepartmentSearchFilter carries list predicates for departments.
type DepartmentSearchFilter struct {
	Query       string
	IsActive    *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Sort        string
	Order       string
	Page        int
	Limit       int
}

// DepartmentUpdate carries mutable department fields. Nil means "leave as is".
type DepartmentUpdate struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// DepartmentRepository exposes persistence behaviour for departments.
type DepartmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	GetByCode(ctx context.Context, code string) (*domain.Department, error)
	GetMany(ctx context.Context, ids []string) ([]domain.Department, error)
	List(ctx context.Context, filter DepartmentSearchFilter) ([]domain.Department, int, error)
	Create(ctx context.Context, dept domain.Department) error
	Update(ctx context.Context, id string, update DepartmentUpdate) error
	Delete(ctx context.Context, id string) error
}
