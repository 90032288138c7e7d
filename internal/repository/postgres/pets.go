package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tailhaven/adoption-service/internal/core/domain"
	"github.com/tailhaven/adoption-service/internal/core/port"
	"github.com/tailhaven/adoption-service/internal/repository"
)

// PetCatalogRepository implements port.PetCatalog using PostgreSQL. Status
// writes are guarded so repeated application of the same transition is a
// no-op rather than an error.
type PetCatalogRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPetCatalogRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewPetCatalogRepository(exec pgExecutor) *PetCatalogRepository {
	repo := &PetCatalogRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *PetCatalogRepository) WithTx(tx pgx.Tx) *PetCatalogRepository {
	if tx == nil {
		return r
	}
	return &PetCatalogRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// GetByID retrieves a pet by identifier.
func (r *PetCatalogRepository) GetByID(ctx context.Context, id string) (*domain.Pet, error) {
	stmt, args, err := r.builder.
		Select("id", "name", "species", "breed", "age_months", "status", "inquiries", "created_at").
		From("adopt.pets").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select pet sql: %w", err)
	}

	var pet domain.Pet
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&pet.ID,
		&pet.Name,
		&pet.Species,
		&pet.Breed,
		&pet.AgeMonths,
		&pet.Status,
		&pet.Inquiries,
		&pet.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan pet: %w", err)
	}

	return &pet, nil
}

// MarkPending moves an available pet to pending_adoption. Already-pending
// pets are left untouched, keeping the operation idempotent.
func (r *PetCatalogRepository) MarkPending(ctx context.Context, petID string) error {
	stmt, args, err := r.builder.Update("adopt.pets").
		Set("status", domain.PetStatusPendingAdoption).
		Where(squirrel.Eq{"id": petID}).
		Where(squirrel.Eq{"status": []string{
			string(domain.PetStatusAvailable),
			string(domain.PetStatusPendingAdoption),
		}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark pending sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("mark pet pending: %w", err)
	}
	return nil
}

// MarkAdopted moves a pet to adopted. Repeat applications are no-ops.
func (r *PetCatalogRepository) MarkAdopted(ctx context.Context, petID, adopterID string, at time.Time) error {
	stmt, args, err := r.builder.Update("adopt.pets").
		SetMap(map[string]any{
			"status":     domain.PetStatusAdopted,
			"adopter_id": adopterID,
			"adopted_at": at,
		}).
		Where(squirrel.Eq{"id": petID}).
		Where(squirrel.NotEq{"status": domain.PetStatusAdopted}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark adopted sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("mark pet adopted: %w", err)
	}
	return nil
}

// RecordAdopter writes the adoption record. ON CONFLICT DO NOTHING keeps the
// write idempotent when a completed transition is re-applied.
func (r *PetCatalogRepository) RecordAdopter(ctx context.Context, petID, adopterID string, at time.Time) error {
	stmt, args, err := r.builder.Insert("adopt.adopted_pets").
		Columns("pet_id", "adopter_id", "adopted_at").
		Values(petID, adopterID, at).
		Suffix("ON CONFLICT (pet_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build record adopter sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("record adopter: %w", err)
	}
	return nil
}

// IncrementInquiries bumps the pet's inquiry counter.
func (r *PetCatalogRepository) IncrementInquiries(ctx context.Context, petID string) error {
	stmt, args, err := r.builder.Update("adopt.pets").
		Set("inquiries", squirrel.Expr("inquiries + 1")).
		Where(squirrel.Eq{"id": petID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build increment inquiries sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("increment inquiries: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ port.PetCatalog = (*PetCatalogRepository)(nil)
