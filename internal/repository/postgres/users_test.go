package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
	"github.com/slamint/account-management/internal/repository"
)

func userRow(id, sub string) *pgxmock.Rows {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(userColumns).
		AddRow(id, sub, "jo@example.com", "Jo Doe", "jodoe", nil, domain.RoleEngineer, domain.StatusActive, nil, nil, nil, &now, &now, now, now)
}

func TestUserRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM accmgmt\.users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(userRow("user-1", "sub-1"))

	user, err := repo.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if user.ID != "user-1" || user.Sub != "sub-1" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.Email == nil || *user.Email != "jo@example.com" {
		t.Fatalf("expected email to round-trip, got %v", user.Email)
	}
	if user.Phone != nil {
		t.Fatalf("expected nil phone, got %v", *user.Phone)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM accmgmt\.users WHERE id = \$1`).
		WithArgs("user-404").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "user-404"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_InsertProvisional_ConflictIsSilent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	email := "jo@example.com"
	user := domain.User{
		ID:           "user-1",
		Sub:          "sub-1",
		Email:        &email,
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
		FirstLoginAt: &now,
		LastLoginAt:  &now,
	}

	// A racing insert already claimed the sub; zero rows affected is success.
	mock.ExpectExec(`INSERT INTO accmgmt\.users .+ ON CONFLICT \(sub\) DO NOTHING`).
		WithArgs("user-1", "sub-1", "jo@example.com", nil, nil, nil, domain.RoleUser, domain.StatusActive, nil, nil, &now, &now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	if err := repo.InsertProvisional(context.Background(), user); err != nil {
		t.Fatalf("InsertProvisional returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_TouchLogin_ReturnsUpdatedRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	email := "jo@example.com"

	mock.ExpectQuery(`UPDATE accmgmt\.users SET last_login_at = \$1, first_login_at = COALESCE\(first_login_at, \$2\), email = COALESCE\(email, \$3\), name = COALESCE\(name, \$4\), username = COALESCE\(username, \$5\), updated_at = \$6 WHERE sub = \$7 RETURNING`).
		WithArgs(now, now, "jo@example.com", nil, nil, now, "sub-1").
		WillReturnRows(userRow("user-1", "sub-1"))

	user, err := repo.TouchLogin(context.Background(), "sub-1", now, &email, nil, nil)
	if err != nil {
		t.Fatalf("TouchLogin returned error: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user id %q", user.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_TouchLogin_UnknownSub(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE accmgmt\.users SET`).
		WithArgs(now, now, nil, nil, nil, now, "sub-404").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.TouchLogin(context.Background(), "sub-404", now, nil, nil, nil); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Search_AppliesFiltersAndPagination(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	role := domain.RoleEngineer
	filter := port.UserSearchFilter{
		Query: "jo",
		Role:  &role,
		Sort:  "name",
		Order: "ASC",
		Page:  2,
		Limit: 10,
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accmgmt\.users WHERE role = \$1 AND \(name ILIKE \$2 OR username ILIKE \$3 OR email ILIKE \$4 OR phone ILIKE \$5\)`).
		WithArgs(role, "%jo%", "%jo%", "%jo%", "%jo%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(11)))

	mock.ExpectQuery(`SELECT .+ FROM accmgmt\.users WHERE role = \$1 AND .+ ORDER BY name ASC, id ASC LIMIT 10 OFFSET 10`).
		WithArgs(role, "%jo%", "%jo%", "%jo%", "%jo%").
		WillReturnRows(userRow("user-11", "sub-11"))

	users, total, err := repo.Search(context.Background(), filter)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if total != 11 {
		t.Fatalf("expected total 11, got %d", total)
	}
	if len(users) != 1 || users[0].ID != "user-11" {
		t.Fatalf("unexpected page contents: %+v", users)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Search_UnknownSortFallsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accmgmt\.users`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

	mock.ExpectQuery(`ORDER BY created_at DESC, id ASC LIMIT 20 OFFSET 0`).
		WillReturnRows(pgxmock.NewRows(userColumns))

	users, total, err := repo.Search(context.Background(), port.UserSearchFilter{Sort: "password_hash"})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if total != 0 || len(users) != 0 {
		t.Fatalf("expected empty page, got total=%d users=%d", total, len(users))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdateStatus_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	reason := "policy violation"
	mock.ExpectExec(`UPDATE accmgmt\.users SET status = \$1, locked_reason = \$2`).
		WithArgs(domain.StatusLocked, "policy violation", pgxmock.AnyArg(), "user-404").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateStatus(context.Background(), "user-404", domain.StatusLocked, &reason)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_UpdateStatus_UnlockClearsReason(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE accmgmt\.users SET status = \$1, locked_reason = \$2`).
		WithArgs(domain.StatusActive, nil, pgxmock.AnyArg(), "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdateStatus(context.Background(), "user-1", domain.StatusActive, nil); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_ReassignReports(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	dept := "dept-2"
	mock.ExpectExec(`UPDATE accmgmt\.users SET manager_id = \$1, updated_at = \$2, department_id = \$3 WHERE manager_id = \$4 AND role = \$5`).
		WithArgs("mgr-new", pgxmock.AnyArg(), "dept-2", "mgr-old", domain.RoleEngineer).
		WillReturnResult(pgxmock.NewResult("UPDATE", 7))

	affected, err := repo.ReassignReports(context.Background(), "mgr-old", "mgr-new", &dept)
	if err != nil {
		t.Fatalf("ReassignReports returned error: %v", err)
	}
	if affected != 7 {
		t.Fatalf("expected 7 reports moved, got %d", affected)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CountReports(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accmgmt\.users WHERE manager_id = \$1 AND role = \$2`).
		WithArgs("mgr-1", domain.RoleEngineer).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	count, err := repo.CountReports(context.Background(), "mgr-1")
	if err != nil {
		t.Fatalf("CountReports returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 reports, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Delete_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`DELETE FROM accmgmt\.users WHERE id = \$1`).
		WithArgs("user-404").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), "user-404"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
