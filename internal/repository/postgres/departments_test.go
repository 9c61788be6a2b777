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

func departmentRow(id, code, name string) *pgxmock.Rows {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(departmentColumns).
		AddRow(id, code, name, nil, true, now, now)
}

func TestDepartmentRepository_GetByCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDepartmentRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM accmgmt\.departments WHERE code = \$1`).
		WithArgs("ENG").
		WillReturnRows(departmentRow("dept-1", "ENG", "Engineering"))

	dept, err := repo.GetByCode(context.Background(), "ENG")
	if err != nil {
		t.Fatalf("GetByCode returned error: %v", err)
	}
	if dept.ID != "dept-1" || dept.Name != "Engineering" {
		t.Fatalf("unexpected department %+v", dept)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDepartmentRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDepartmentRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM accmgmt\.departments WHERE id = \$1`).
		WithArgs("dept-404").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "dept-404"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDepartmentRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDepartmentRepository(mock)

	active := true
	filter := port.DepartmentSearchFilter{Query: "eng", IsActive: &active, Sort: "name", Order: "ASC"}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accmgmt\.departments WHERE is_active = \$1 AND \(code ILIKE \$2 OR name ILIKE \$3\)`).
		WithArgs(true, "%eng%", "%eng%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	mock.ExpectQuery(`SELECT .+ FROM accmgmt\.departments WHERE is_active = \$1 AND .+ ORDER BY name ASC, id ASC LIMIT 20 OFFSET 0`).
		WithArgs(true, "%eng%", "%eng%").
		WillReturnRows(departmentRow("dept-1", "ENG", "Engineering"))

	depts, total, err := repo.List(context.Background(), filter)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 1 || len(depts) != 1 || depts[0].Code != "ENG" {
		t.Fatalf("unexpected page total=%d depts=%+v", total, depts)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDepartmentRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDepartmentRepository(mock)

	mock.ExpectExec(`INSERT INTO accmgmt\.departments \(id,code,name,description,is_active\)`).
		WithArgs("dept-1", "ENG", "Engineering", nil, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dept := domain.Department{ID: "dept-1", Code: "ENG", Name: "Engineering", IsActive: true}
	if err := repo.Create(context.Background(), dept); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDepartmentRepository_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDepartmentRepository(mock)

	name := "Platform"
	mock.ExpectExec(`UPDATE accmgmt\.departments SET updated_at = \$1, name = \$2 WHERE id = \$3`).
		WithArgs(pgxmock.AnyArg(), "Platform", "dept-404").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Update(context.Background(), "dept-404", port.DepartmentUpdate{Name: &name})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDepartmentRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDepartmentRepository(mock)

	mock.ExpectExec(`DELETE FROM accmgmt\.departments WHERE id = \$1`).
		WithArgs("dept-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := repo.Delete(context.Background(), "dept-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
