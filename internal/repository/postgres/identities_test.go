package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/repository"
)

func TestIdentityRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	registeredAt := time.Now().UTC()
	identity := domain.Identity{
		ID:           "identity-1",
		Email:        "Alice@Example.com",
		Name:         "Alice",
		PasswordHash: "argon2-hash",
		Role:         domain.RoleUser,
		Status:       domain.IdentityStatusPendingVerification,
		RegisteredAt: registeredAt,
	}

	mock.ExpectExec(`INSERT INTO adopt\.identities`).
		WithArgs(
			"identity-1",
			"alice@example.com",
			"Alice",
			nil,
			"argon2-hash",
			domain.RoleUser,
			domain.IdentityStatusPendingVerification,
			false,
			identity.LockedUntil,
			identity.PasswordChangedAt,
			false,
			registeredAt,
			identity.LastLogin,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), identity); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_CreateDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	mock.ExpectExec(`INSERT INTO adopt\.identities`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = repo.Create(context.Background(), domain.Identity{ID: "identity-1", Email: "alice@example.com"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	registeredAt := time.Now().UTC()
	phone := "+1-555-0100"

	rows := pgxmock.NewRows([]string{
		"id", "email", "name", "phone", "password_hash", "role", "status", "email_verified", "locked_until", "password_changed_at", "deletion_requested", "registered_at", "last_login",
	}).AddRow(
		"identity-1", "alice@example.com", "Alice", &phone, "argon2-hash", domain.RoleUser, domain.IdentityStatusActive, true, nil, nil, false, registeredAt, nil,
	)

	mock.ExpectQuery(`SELECT .*FROM adopt\.identities`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	identity, err := repo.GetByEmail(context.Background(), "Alice@Example.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if identity.ID != "identity-1" {
		t.Fatalf("expected identity-1, got %s", identity.ID)
	}
	if identity.Phone == nil || *identity.Phone != phone {
		t.Fatalf("expected phone populated")
	}
	if !identity.EmailVerified || identity.Status != domain.IdentityStatusActive {
		t.Fatalf("unexpected account state: %+v", identity)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM adopt\.identities`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_UpdateStatusNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	mock.ExpectExec(`UPDATE adopt\.identities`).
		WithArgs(domain.IdentityStatusSuspended, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdateStatus(context.Background(), "missing", domain.IdentityStatusSuspended); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_UpdatePassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	changedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE adopt\.identities`).
		WithArgs(changedAt, "new-hash", "identity-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.UpdatePassword(context.Background(), "identity-1", "new-hash", changedAt); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_MarkEmailVerified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	mock.ExpectExec(`UPDATE adopt\.identities`).
		WithArgs(true, domain.IdentityStatusPendingVerification, domain.IdentityStatusActive, "identity-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.MarkEmailVerified(context.Background(), "identity-1"); err != nil {
		t.Fatalf("MarkEmailVerified returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepository_SetLockClear(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)

	mock.ExpectExec(`UPDATE adopt\.identities`).
		WithArgs((*time.Time)(nil), "identity-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SetLock(context.Background(), "identity-1", nil); err != nil {
		t.Fatalf("SetLock returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
