package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
	"github.com/slamint/account-management/internal/repository"
)

const departmentsTable = "accmgmt.departments"

var departmentColumns = []string{
	"id",
	"code",
	"name",
	"description",
	"is_active",
	"created_at",
	"updated_at",
}

var departmentSortColumns = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"code":      "code",
}

// DepartmentRepository implements port.DepartmentRepository using PostgreSQL.
type DepartmentRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewDepartmentRepository(exec pgExecutor) *DepartmentRepository {
	return &DepartmentRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanDepartment(row pgx.Row) (*domain.Department, error) {
	var (
		dept        domain.Department
		description sql.NullString
	)

	if err := row.Scan(
		&dept.ID,
		&dept.Code,
		&dept.Name,
		&description,
		&dept.IsActive,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}

	dept.Description = nullableString(description)

	return &dept, nil
}

func (r *DepartmentRepository) getBy(ctx context.Context, pred squirrel.Eq) (*domain.Department, error) {
	stmt, args, err := r.builder.Select(departmentColumns...).
		From(departmentsTable).
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select department sql: %w", err)
	}

	dept, err := scanDepartment(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan department: %w", err)
	}

	return dept, nil
}

// GetByID retrieves a department by identifier.
func (r *DepartmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByCode retrieves a department by its unique code.
func (r *DepartmentRepository) GetByCode(ctx context.Context, code string) (*domain.Department, error) {
	return r.getBy(ctx, squirrel.Eq{"code": code})
}

// GetMany retrieves the departments matching the supplied ids. Missing ids are
// skipped, not errors.
func (r *DepartmentRepository) GetMany(ctx context.Context, ids []string) ([]domain.Department, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	stmt, args, err := r.builder.Select(departmentColumns...).
		From(departmentsTable).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select departments sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query departments: %w", err)
	}
	defer rows.Close()

	depts := make([]domain.Department, 0, len(ids))
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		depts = append(depts, *dept)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}

	return depts, nil
}

func applyDepartmentFilter(query squirrel.SelectBuilder, filter port.DepartmentSearchFilter) squirrel.SelectBuilder {
	if filter.IsActive != nil {
		query = query.Where(squirrel.Eq{"is_active": *filter.IsActive})
	}
	if filter.CreatedFrom != nil {
		query = query.Where(squirrel.GtOrEq{"created_at": *filter.CreatedFrom})
	}
	if filter.CreatedTo != nil {
		query = query.Where(squirrel.LtOrEq{"created_at": *filter.CreatedTo})
	}

	if term := filter.Query; term != "" {
		pattern := "%" + term + "%"
		query = query.Where(squirrel.Or{
			squirrel.ILike{"code": pattern},
			squirrel.ILike{"name": pattern},
		})
	}

	return query
}

// List runs the filtered, sorted, paginated department listing and returns the
// page plus the unpaginated total.
func (r *DepartmentRepository) List(ctx context.Context, filter port.DepartmentSearchFilter) ([]domain.Department, int, error) {
	sortCol, ok := departmentSortColumns[filter.Sort]
	if !ok {
		sortCol = "created_at"
	}
	order := "DESC"
	if filter.Order == "ASC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	countStmt, countArgs, err := applyDepartmentFilter(r.builder.Select("COUNT(*)").From(departmentsTable), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count departments sql: %w", err)
	}

	var total int64
	if err := r.exec.QueryRow(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("scan departments count: %w", err)
	}

	stmt, args, err := applyDepartmentFilter(r.builder.Select(departmentColumns...).From(departmentsTable), filter).
		OrderBy(fmt.Sprintf("%s %s", sortCol, order), "id ASC").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list departments sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query departments: %w", err)
	}
	defer rows.Close()

	depts := make([]domain.Department, 0, limit)
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan department: %w", err)
		}
		depts = append(depts, *dept)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate departments: %w", err)
	}

	return depts, int(total), nil
}

// Create inserts a department row. Code uniqueness is enforced by the schema;
// callers check for duplicates beforehand to produce a typed conflict.
func (r *DepartmentRepository) Create(ctx context.Context, dept domain.Department) error {
	stmt, args, err := r.builder.Insert(departmentsTable).
		Columns("id", "code", "name", "description", "is_active").
		Values(dept.ID, dept.Code, dept.Name, nullArg(dept.Description), dept.IsActive).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert department sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert department: %w", err)
	}

	return nil
}

// Update applies the mutable department fields. Absent fields stay untouched.
func (r *DepartmentRepository) Update(ctx context.Context, id string, update port.DepartmentUpdate) error {
	query := r.builder.Update(departmentsTable).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id})

	if update.Name != nil {
		query = query.Set("name", *update.Name)
	}
	if update.Description != nil {
		query = query.Set("description", *update.Description)
	}
	if update.IsActive != nil {
		query = query.Set("is_active", *update.IsActive)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update department sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes the department row. Usage guards run in the service layer.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete(departmentsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete department sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.DepartmentRepository = (*DepartmentRepository)(nil)
