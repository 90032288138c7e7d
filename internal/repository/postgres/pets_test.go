package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/repository"
)

func TestPetCatalogRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPetCatalogRepository(mock)

	createdAt := time.Now().UTC()
	breed := "terrier mix"

	rows := pgxmock.NewRows([]string{
		"id", "name", "species", "breed", "age_months", "status", "inquiries", "created_at",
	}).AddRow(
		"pet-1", "Biscuit", "dog", &breed, nil, domain.PetStatusAvailable, 4, createdAt,
	)

	mock.ExpectQuery(`SELECT .*FROM adopt\.pets`).
		WithArgs("pet-1").
		WillReturnRows(rows)

	pet, err := repo.GetByID(context.Background(), "pet-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if pet.Name != "Biscuit" || !pet.Adoptable() {
		t.Fatalf("unexpected pet: %+v", pet)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPetCatalogRepository_MarkPendingIdempotent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPetCatalogRepository(mock)

	// The guard filters out pets that already left the available/pending
	// states; a zero-row update is still a success.
	mock.ExpectExec(`UPDATE adopt\.pets`).
		WithArgs(domain.PetStatusPendingAdoption, "pet-1", "available", "pending_adoption").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.MarkPending(context.Background(), "pet-1"); err != nil {
		t.Fatalf("MarkPending returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPetCatalogRepository_RecordAdopter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPetCatalogRepository(mock)

	at := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO adopt\.adopted_pets .*ON CONFLICT \(pet_id\) DO NOTHING`).
		WithArgs("pet-1", "adopter-1", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.RecordAdopter(context.Background(), "pet-1", "adopter-1", at); err != nil {
		t.Fatalf("RecordAdopter returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPetCatalogRepository_IncrementInquiriesNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPetCatalogRepository(mock)

	mock.ExpectExec(`UPDATE adopt\.pets`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.IncrementInquiries(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
