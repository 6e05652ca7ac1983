package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestPostgresRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock)
	has := true
	in := NewLead{Name: "Aditi Rao", Phone: "9876543210", Email: "aditi@example.com", Area: "Koramangala", HasLicense: &has}
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "Aditi Rao", "9876543210", "aditi@example.com", "Koramangala", in.CustomArea, in.HasLicense).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	lead, err := repo.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if lead.ID == "" || !lead.CreatedAt.Equal(created) {
		t.Fatalf("unexpected lead %+v", lead)
	}
	if lead.CustomArea != nil {
		t.Fatalf("expected nil custom area")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepositoryWithExec(mock)

	custom := "Whitefield"
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, name, phone").WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "email", "area", "custom_area", "has_license", "created_at"}).
			AddRow("lead-1", "Ravi", "9123456789", "ravi@example.com", AreaOther, &custom, (*bool)(nil), now))

	lead, err := repo.GetByID(context.Background(), "lead-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if lead.CustomArea == nil || *lead.CustomArea != "Whitefield" || lead.HasLicense != nil {
		t.Fatalf("unexpected lead %+v", lead)
	}

	mock.ExpectQuery("SELECT id, name, phone").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepositoryWithExec(mock)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM users WHERE area = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("HSR Layout", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "email", "area", "custom_area", "has_license", "created_at"}).
			AddRow("a", "Asha", "9000000001", "asha@example.com", "HSR Layout", (*string)(nil), (*bool)(nil), now).
			AddRow("b", "Bala", "9000000002", "bala@example.com", "HSR Layout", (*string)(nil), (*bool)(nil), now))

	leads, err := repo.List(context.Background(), ListFilter{Area: "HSR Layout", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(leads) != 2 || leads[1].ID != "b" {
		t.Fatalf("unexpected leads %+v", leads)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
