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

const usersTable = "accmgmt.users"

var userColumns = []string{
	"id",
	"sub",
	"email",
	"name",
	"username",
	"phone",
	"role",
	"status",
	"locked_reason",
	"department_id",
	"manager_id",
	"first_login_at",
	"last_login_at",
	"created_at",
	"updated_at",
}

// sortColumns maps the externally accepted sort keys onto real columns.
// Unknown keys silently fall back to created_at so callers cannot probe the
// schema through the sort parameter.
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"name":        "name",
	"lastLoginAt": "last_login_at",
	"role":        "role",
	"status":      "status",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository. The executor may
// be a pool, a transaction, or a mock.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user         domain.User
		email        sql.NullString
		name         sql.NullString
		username     sql.NullString
		phone        sql.NullString
		lockedReason sql.NullString
		departmentID sql.NullString
		managerID    sql.NullString
		firstLoginAt *time.Time
		lastLoginAt  *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Sub,
		&email,
		&name,
		&username,
		&phone,
		&user.Role,
		&user.Status,
		&lockedReason,
		&departmentID,
		&managerID,
		&firstLoginAt,
		&lastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.Email = nullableString(email)
	user.Name = nullableString(name)
	user.Username = nullableString(username)
	user.Phone = nullableString(phone)
	user.LockedReason = nullableString(lockedReason)
	user.DepartmentID = nullableString(departmentID)
	user.ManagerID = nullableString(managerID)
	user.FirstLoginAt = firstLoginAt
	user.LastLoginAt = lastLoginAt

	return &user, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullArg(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

// GetByID retrieves a user by internal identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From(usersTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

// GetBySub retrieves a user by the identity provider's subject identifier.
func (r *UserRepository) GetBySub(ctx context.Context, sub string) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From(usersTable).
		Where(squirrel.Eq{"sub": sub}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by sub sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user by sub: %w", err)
	}

	return user, nil
}

// GetMany retrieves the users matching the supplied ids. Missing ids are
// skipped, not errors.
func (r *UserRepository) GetMany(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	stmt, args, err := r.builder.Select(userColumns...).
		From(usersTable).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, len(ids))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// InsertProvisional inserts a new user row keyed by sub. A concurrent insert
// for the same sub is swallowed by ON CONFLICT DO NOTHING; the uniqueness
// constraint is the sole correctness mechanism for racing first logins.
func (r *UserRepository) InsertProvisional(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert(usersTable).
		Columns(
			"id",
			"sub",
			"email",
			"name",
			"username",
			"phone",
			"role",
			"status",
			"department_id",
			"manager_id",
			"first_login_at",
			"last_login_at",
		).
		Values(
			user.ID,
			user.Sub,
			nullArg(user.Email),
			nullArg(user.Name),
			nullArg(user.Username),
			nullArg(user.Phone),
			user.Role,
			user.Status,
			nullArg(user.DepartmentID),
			nullArg(user.ManagerID),
			user.FirstLoginAt,
			user.LastLoginAt,
		).
		Suffix("ON CONFLICT (sub) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// TouchLogin applies the provisioning update for a subject: last_login_at is
// always advanced, first_login_at and the profile fields only fill when
// currently null. The COALESCE expressions make the first-write-wins rule
// atomic regardless of which concurrent login reaches the store first.
func (r *UserRepository) TouchLogin(ctx context.Context, sub string, now time.Time, email, name, username *string) (*domain.User, error) {
	stmt, args, err := r.builder.Update(usersTable).
		Set("last_login_at", now).
		Set("first_login_at", squirrel.Expr("COALESCE(first_login_at, ?)", now)).
		Set("email", squirrel.Expr("COALESCE(email, ?)", nullArg(email))).
		Set("name", squirrel.Expr("COALESCE(name, ?)", nullArg(name))).
		Set("username", squirrel.Expr("COALESCE(username, ?)", nullArg(username))).
		Set("updated_at", now).
		Where(squirrel.Eq{"sub": sub}).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build touch login sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan touched user: %w", err)
	}

	return user, nil
}

func columnList() string {
	out := ""
	for i, col := range userColumns {
		if i > 0 {
			out += ", "
		}
		out += col
	}
	return out
}

func applyUserFilter(query squirrel.SelectBuilder, filter port.UserSearchFilter) squirrel.SelectBuilder {
	if filter.Role != nil {
		query = query.Where(squirrel.Eq{"role": *filter.Role})
	}
	if filter.Status != nil {
		query = query.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DepartmentID != nil {
		query = query.Where(squirrel.Eq{"department_id": *filter.DepartmentID})
	}
	if filter.ManagerID != nil {
		query = query.Where(squirrel.Eq{"manager_id": *filter.ManagerID})
	}
	if filter.CreatedFrom != nil {
		query = query.Where(squirrel.GtOrEq{"created_at": *filter.CreatedFrom})
	}
	if filter.CreatedTo != nil {
		query = query.Where(squirrel.LtOrEq{"created_at": *filter.CreatedTo})
	}
	if filter.LastLoginFrom != nil {
		query = query.Where(squirrel.GtOrEq{"last_login_at": *filter.LastLoginFrom})
	}
	if filter.LastLoginTo != nil {
		query = query.Where(squirrel.LtOrEq{"last_login_at": *filter.LastLoginTo})
	}

	if term := filter.Query; term != "" {
		pattern := "%" + term + "%"
		query = query.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"username": pattern},
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"phone": pattern},
		})
	}

	return query
}

// Search runs the compound filtered, sorted, paginated directory query and
// returns the page plus the unpaginated total. Results carry a secondary
// id ASC order so pagination stays stable when the sort key ties.
func (r *UserRepository) Search(ctx context.Context, filter port.UserSearchFilter) ([]domain.User, int, error) {
	sortCol, ok := sortColumns[filter.Sort]
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

	countQuery := applyUserFilter(r.builder.Select("COUNT(*)").From(usersTable), filter)
	countStmt, countArgs, err := countQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count users sql: %w", err)
	}

	var total int64
	if err := r.exec.QueryRow(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("scan users count: %w", err)
	}

	listQuery := applyUserFilter(r.builder.Select(userColumns...).From(usersTable), filter).
		OrderBy(fmt.Sprintf("%s %s", sortCol, order), "id ASC").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit))

	stmt, args, err := listQuery.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build search users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, int(total), nil
}

// UpdateRole overwrites only the cached role column.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role domain.RoleName) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("role", role).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update role sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateStatus sets the account status and the locked reason together. Passing
// a nil reason clears the column.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, lockedReason *string) error {
	var reasonValue any
	if lockedReason != nil {
		reasonValue = *lockedReason
	}

	stmt, args, err := r.builder.Update(usersTable).
		Set("status", status).
		Set("locked_reason", reasonValue).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update status sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateProfile applies the self-service patch. Absent fields stay untouched.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, patch port.ProfilePatch) error {
	query := r.builder.Update(usersTable).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id})

	if patch.Name != nil {
		query = query.Set("name", *patch.Name)
	}
	if patch.Phone != nil {
		query = query.Set("phone", *patch.Phone)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update profile sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateDepartment replaces the user's department reference in full.
func (r *UserRepository) UpdateDepartment(ctx context.Context, id string, departmentID string) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("department_id", departmentID).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
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

// UpdateManager sets the reporting manager and, when supplied, the department
// copied from that manager, in one statement.
func (r *UserRepository) UpdateManager(ctx context.Context, id string, managerID string, departmentID *string) error {
	query := r.builder.Update(usersTable).
		Set("manager_id", managerID).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id})

	if departmentID != nil {
		query = query.Set("department_id", *departmentID)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update manager sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update manager: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ReassignReports atomically moves every engineer reporting to oldManagerID
// under newManagerID. One statement, so a failure never leaves the reports
// half-migrated.
func (r *UserRepository) ReassignReports(ctx context.Context, oldManagerID, newManagerID string, departmentID *string) (int64, error) {
	query := r.builder.Update(usersTable).
		Set("manager_id", newManagerID).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"manager_id": oldManagerID}).
		Where(squirrel.Eq{"role": domain.RoleEngineer})

	if departmentID != nil {
		query = query.Set("department_id", *departmentID)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reassign reports sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("reassign reports: %w", err)
	}

	return ct.RowsAffected(), nil
}

// CountReports returns the number of engineers whose reporting manager is the
// given user.
func (r *UserRepository) CountReports(ctx context.Context, managerID string) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From(usersTable).
		Where(squirrel.Eq{"manager_id": managerID}).
		Where(squirrel.Eq{"role": domain.RoleEngineer}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count reports sql: %w", err)
	}

	var count int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("scan reports count: %w", err)
	}

	return int(count), nil
}

// CountByDepartment returns how many users reference the department. Used by
// the department-in-use delete guard.
func (r *UserRepository) CountByDepartment(ctx context.Context, departmentID string) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From(usersTable).
		Where(squirrel.Eq{"department_id": departmentID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count by department sql: %w", err)
	}

	var count int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("scan department usage count: %w", err)
	}

	return int(count), nil
}

// Delete removes the user row.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete(usersTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
